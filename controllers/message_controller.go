package controllers

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"cleanzone-api/apperrors"
	"cleanzone-api/models"
	"cleanzone-api/services"
	"cleanzone-api/utils"
	"cleanzone-api/websocket"
)

type MessageController struct {
	messageService *services.MessageService
	hub            *websocket.Hub
	historySize    int
	log            *logrus.Logger
}

func NewMessageController(messageService *services.MessageService, hub *websocket.Hub, historySize int, log *logrus.Logger) *MessageController {
	return &MessageController{messageService: messageService, hub: hub, historySize: historySize, log: log}
}

// GetMessages returns a page of chat in ascending position. before_position pages backwards.
func (mc *MessageController) GetMessages(c *gin.Context) {
	eventID, err := utils.ParamID(c, "id")
	if err != nil {
		utils.SendAppError(c, err)
		return
	}

	page := models.MessagePage{Limit: utils.ParsePage(c).Limit}
	if c.Query("limit") == "" && mc.historySize > 0 {
		page.Limit = mc.historySize
	}
	if raw := c.Query("before_position"); raw != "" {
		before, err := strconv.ParseUint(raw, 10, 32)
		if err != nil {
			utils.SendAppError(c, apperrors.Validation("before_position must be a positive integer"))
			return
		}
		page.BeforePosition = uint32(before)
	}

	messages, err := mc.messageService.List(c.Request.Context(), utils.CurrentUserID(c), eventID, page)
	if err != nil {
		utils.SendAppError(c, err)
		return
	}
	responses := make([]models.MessageResponse, 0, len(messages))
	for i := range messages {
		responses = append(responses, messages[i].ToResponse())
	}
	c.JSON(http.StatusOK, responses)
}

func (mc *MessageController) SendMessage(c *gin.Context) {
	eventID, err := utils.ParamID(c, "id")
	if err != nil {
		utils.SendAppError(c, err)
		return
	}
	var req models.SendMessageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.SendValidationError(c, err.Error())
		return
	}

	message, err := mc.messageService.Send(c.Request.Context(), utils.CurrentUserID(c), eventID, req.Content)
	if err != nil {
		utils.SendAppError(c, err)
		return
	}
	c.JSON(http.StatusCreated, message.ToResponse())
}

// Stream upgrades to a websocket that receives every new message of the event.
func (mc *MessageController) Stream(c *gin.Context) {
	eventID, err := utils.ParamID(c, "id")
	if err != nil {
		utils.SendAppError(c, err)
		return
	}
	userID := utils.CurrentUserID(c)
	if err := mc.messageService.CheckAccess(c.Request.Context(), userID, eventID); err != nil {
		utils.SendAppError(c, err)
		return
	}

	if err := websocket.Serve(mc.hub, c.Writer, c.Request, eventID, userID); err != nil {
		mc.log.WithError(err).WithField("event_id", eventID).Warn("chat stream upgrade failed")
	}
}
