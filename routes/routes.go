package routes

import (
	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"cleanzone-api/config"
	"cleanzone-api/controllers"
	"cleanzone-api/metrics"
	"cleanzone-api/middleware"
	"cleanzone-api/services"
	"cleanzone-api/utils"
	"cleanzone-api/websocket"
)

// Services is everything the HTTP layer needs from the domain.
type Services struct {
	Auth     *services.AuthService
	Users    *services.UserService
	Zones    *services.ZoneService
	Photos   *services.PhotoService
	Events   *services.EventService
	Messages *services.MessageService
	Tiles    *services.TileService
	Hub      *websocket.Hub
}

// NewRouter builds the engine with the global middleware chain and every route.
func NewRouter(cfg *config.Config, db *gorm.DB, svc Services, log *logrus.Logger) *gin.Engine {
	router := gin.New()
	router.Use(
		middleware.RequestID(),
		middleware.RequestLogger(log),
		middleware.Recovery(log),
		middleware.ErrorHandler(log),
		middleware.SecurityHeaders(),
		middleware.CORS(cfg.CORS),
	)

	SetupRoutes(router, cfg, db, svc, log)

	router.NoRoute(func(c *gin.Context) {
		utils.SendError(c, 404, "route not found")
	})
	return router
}

func SetupRoutes(r *gin.Engine, cfg *config.Config, db *gorm.DB, svc Services, log *logrus.Logger) {
	authController := controllers.NewAuthController(svc.Auth)
	userController := controllers.NewUserController(svc.Users)
	zoneController := controllers.NewZoneController(svc.Zones)
	photoController := controllers.NewPhotoController(svc.Photos, cfg.Storage.MaxUploadBytes)
	eventController := controllers.NewEventController(svc.Events)
	messageController := controllers.NewMessageController(svc.Messages, svc.Hub, cfg.Events.ChatHistorySize, log)
	tileController := controllers.NewTileController(svc.Tiles)
	healthController := controllers.NewHealthController(db)

	r.GET("/health", healthController.Check)
	r.GET("/metrics", gin.WrapH(metrics.Handler()))

	// API version 1
	v1 := r.Group("/api/v1")
	v1.Use(middleware.ValidateJSON())

	v1.GET("/tiles/:z/:x/:y", tileController.GetTile)

	// Auth routes (public)
	auth := v1.Group("/auth")
	auth.Use(middleware.RateLimit(cfg.RateLimit))
	{
		auth.POST("/register", authController.Register)
		auth.POST("/login", authController.Login)
		auth.POST("/logout", authController.Logout)
	}

	// Protected routes
	protected := v1.Group("")
	protected.Use(middleware.AuthMiddleware(svc.Auth))
	{
		users := protected.Group("/users")
		{
			users.GET("/me", userController.GetProfile)
			users.PUT("/me", userController.UpdateProfile)
			users.GET("/:id", userController.GetUser)
			users.GET("/:id/statistics", userController.GetStatistics)
		}

		zones := protected.Group("/zones")
		{
			zones.GET("", zoneController.GetZones)
			zones.POST("", zoneController.CreateZone)
			zones.GET("/:id", zoneController.GetZone)
			zones.PUT("/:id", zoneController.UpdateZone)
			zones.PUT("/:id/status", zoneController.UpdateZoneStatus)
			zones.GET("/:id/history", zoneController.GetZoneHistory)
			zones.POST("/:id/photos", photoController.UploadPhoto)
		}

		protected.GET("/photos/:id", photoController.GetPhoto)

		events := protected.Group("/events")
		{
			events.GET("", eventController.GetEvents)
			events.POST("", eventController.CreateEvent)
			events.GET("/:id", eventController.GetEvent)
			events.PUT("/:id", eventController.UpdateEvent)
			events.DELETE("/:id", eventController.DeleteEvent)
			events.POST("/:id/join", eventController.JoinEvent)
			events.POST("/:id/leave", eventController.LeaveEvent)
			events.POST("/:id/cancel", eventController.CancelEvent)
			events.POST("/:id/complete", eventController.CompleteEvent)
			events.GET("/:id/history", eventController.GetEventHistory)

			events.POST("/:id/transfer", eventController.RequestTransfer)
			events.POST("/:id/transfer/accept", eventController.AcceptTransfer)
			events.POST("/:id/transfer/decline", eventController.DeclineTransfer)
			events.DELETE("/:id/transfer", eventController.WithdrawTransfer)

			events.POST("/:id/attendance", eventController.CheckIn)
			events.GET("/:id/attendance", eventController.GetAttendance)

			events.GET("/:id/messages", messageController.GetMessages)
			events.POST("/:id/messages", messageController.SendMessage)
			events.GET("/:id/chat/ws", messageController.Stream)
		}
	}
}
