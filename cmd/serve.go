package cmd

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"gorm.io/gorm"

	"cleanzone-api/clock"
	"cleanzone-api/config"
	"cleanzone-api/database"
	"cleanzone-api/jobs"
	"cleanzone-api/repositories"
	"cleanzone-api/routes"
	"cleanzone-api/services"
	"cleanzone-api/utils"
	"cleanzone-api/websocket"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the API server",
	Long: `Start the CleanZone API server together with the chat hub and the
lifecycle job that persists started events and expires stale transfers.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		return runServer(cfg)
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)
}

func runServer(cfg *config.Config) error {
	log := utils.NewLogger(cfg.Log)
	if cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}

	db, err := database.Initialize(cfg.Database, log)
	if err != nil {
		return fmt.Errorf("failed to connect database: %w", err)
	}
	if err := database.Migrate(db); err != nil {
		return fmt.Errorf("failed to run migrations: %w", err)
	}
	if err := utils.RegisterValidators(); err != nil {
		return fmt.Errorf("failed to register validators: %w", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	clk := clock.NewSystem()
	store := repositories.NewStore(db)
	publisher := newPublisher(cfg, log)
	defer func() {
		if err := publisher.Close(); err != nil {
			log.WithError(err).Warn("Failed to close state change publisher")
		}
	}()

	tileStore, closeTiles := newTileStore(ctx, cfg, db, log)
	defer closeTiles()

	hub := websocket.NewHub(log)
	go hub.Run(ctx)

	hasher := services.NewPasswordHasher(cfg.Auth.PBKDF2Iterations)
	tokens := services.NewTokenService(cfg.Auth.JWTSecret, cfg.Auth.Issuer, cfg.Auth.TokenTTL, clk)
	eventService := services.NewEventService(store, clk, publisher, services.NewEmailService(cfg.SMTP, log), hub, cfg.Events.TransferTTL, log)

	svc := routes.Services{
		Auth:     services.NewAuthService(store, hasher, tokens, log),
		Users:    services.NewUserService(store),
		Zones:    services.NewZoneService(store, clk, publisher, log),
		Photos:   services.NewPhotoService(store, services.NewFileStorage(cfg.Storage.PhotoDir), clk, cfg.Storage.MaxPhotoEdge, log),
		Events:   eventService,
		Messages: services.NewMessageService(store, clk, hub),
		Tiles:    services.NewTileService(tileStore, cfg.Tiles.UpstreamURL, cfg.Tiles.UserAgent, cfg.Tiles.Timeout, clk, log),
		Hub:      hub,
	}

	lifecycle := jobs.NewLifecycleJob(store, eventService, clk, cfg.Events.LifecycleTick, log)
	lifecycle.Start(ctx)
	defer lifecycle.Stop()

	srv := &http.Server{
		Addr:         cfg.Server.Addr(),
		Handler:      routes.NewRouter(cfg, db, svc, log),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	serveErr := make(chan error, 1)
	go func() {
		log.WithField("addr", srv.Addr).Info("Server starting")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()

	select {
	case err := <-serveErr:
		if err != nil {
			return fmt.Errorf("server failed: %w", err)
		}
	case <-ctx.Done():
	}

	log.Info("Shutting down server...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server forced to shutdown: %w", err)
	}

	log.Info("Server exited")
	return nil
}

func newPublisher(cfg *config.Config, log *logrus.Logger) services.StateChangePublisher {
	if cfg.Kafka.Enabled {
		log.WithField("topic", cfg.Kafka.Topic).Info("Publishing state changes to Kafka")
		return services.NewKafkaPublisher(cfg.Kafka.Brokers, cfg.Kafka.Topic, log)
	}
	return services.NewLogPublisher(log)
}

// newTileStore prefers Redis when it is enabled and reachable, and falls back to the database cache.
func newTileStore(ctx context.Context, cfg *config.Config, db *gorm.DB, log *logrus.Logger) (services.TileStore, func()) {
	if cfg.Redis.Enabled {
		client := redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		err := client.Ping(ctx).Err()
		if err == nil {
			log.WithField("addr", cfg.Redis.Addr).Info("Caching tiles in Redis")
			return repositories.NewRedisTileStore(client, cfg.Tiles.CacheTTL), func() { _ = client.Close() }
		}
		log.WithError(err).Warn("Redis unavailable, caching tiles in the database")
		_ = client.Close()
	}
	return repositories.NewTileCacheRepository(db), func() {}
}
