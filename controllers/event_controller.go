package controllers

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"cleanzone-api/models"
	"cleanzone-api/services"
	"cleanzone-api/utils"
)

type EventController struct {
	eventService *services.EventService
}

func NewEventController(eventService *services.EventService) *EventController {
	return &EventController{eventService: eventService}
}

func (ec *EventController) GetEvents(c *gin.Context) {
	page := utils.ParsePage(c)
	filter := models.EventFilter{Limit: page.Limit, Offset: page.Offset}

	if status := c.Query("status"); status != "" {
		st, err := models.ParseEventStatus(status)
		if err != nil {
			utils.SendAppError(c, err)
			return
		}
		filter.Status = &st
	}
	var err error
	if filter.ZoneID, err = utils.QueryID(c, "zone_id"); err != nil {
		utils.SendAppError(c, err)
		return
	}
	if filter.OrganizerID, err = utils.QueryID(c, "organizer_id"); err != nil {
		utils.SendAppError(c, err)
		return
	}
	if filter.ParticipantID, err = utils.QueryID(c, "participant_id"); err != nil {
		utils.SendAppError(c, err)
		return
	}

	events, total, err := ec.eventService.List(c.Request.Context(), filter)
	if err != nil {
		utils.SendAppError(c, err)
		return
	}

	viewerID := utils.CurrentUserID(c)
	responses := make([]models.EventResponse, 0, len(events))
	for i := range events {
		responses = append(responses, ec.eventService.Project(&events[i], viewerID))
	}
	utils.SendPaginated(c, responses, page, total)
}

func (ec *EventController) CreateEvent(c *gin.Context) {
	var req models.CreateEventRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.SendValidationError(c, err.Error())
		return
	}

	viewerID := utils.CurrentUserID(c)
	event, err := ec.eventService.Create(c.Request.Context(), viewerID, req)
	if err != nil {
		utils.SendAppError(c, err)
		return
	}
	c.JSON(http.StatusCreated, ec.eventService.Project(event, viewerID))
}

func (ec *EventController) GetEvent(c *gin.Context) {
	id, err := utils.ParamID(c, "id")
	if err != nil {
		utils.SendAppError(c, err)
		return
	}

	event, err := ec.eventService.Get(c.Request.Context(), id)
	if err != nil {
		utils.SendAppError(c, err)
		return
	}
	c.JSON(http.StatusOK, ec.eventService.Project(event, utils.CurrentUserID(c)))
}

func (ec *EventController) UpdateEvent(c *gin.Context) {
	id, err := utils.ParamID(c, "id")
	if err != nil {
		utils.SendAppError(c, err)
		return
	}
	var req models.UpdateEventRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.SendValidationError(c, err.Error())
		return
	}

	viewerID := utils.CurrentUserID(c)
	event, err := ec.eventService.Update(c.Request.Context(), viewerID, id, req)
	if err != nil {
		utils.SendAppError(c, err)
		return
	}
	c.JSON(http.StatusOK, ec.eventService.Project(event, viewerID))
}

func (ec *EventController) DeleteEvent(c *gin.Context) {
	id, err := utils.ParamID(c, "id")
	if err != nil {
		utils.SendAppError(c, err)
		return
	}

	if err := ec.eventService.Delete(c.Request.Context(), utils.CurrentUserID(c), id); err != nil {
		utils.SendAppError(c, err)
		return
	}
	utils.SendSuccess(c, "Event deleted successfully", nil)
}

type eventAction func(ctx context.Context, viewerID, id uint32) (*models.Event, error)

// act runs a viewer-scoped state transition and renders the resulting event.
func (ec *EventController) act(c *gin.Context, action eventAction) {
	id, err := utils.ParamID(c, "id")
	if err != nil {
		utils.SendAppError(c, err)
		return
	}

	viewerID := utils.CurrentUserID(c)
	event, err := action(c.Request.Context(), viewerID, id)
	if err != nil {
		utils.SendAppError(c, err)
		return
	}
	c.JSON(http.StatusOK, ec.eventService.Project(event, viewerID))
}

func (ec *EventController) JoinEvent(c *gin.Context)     { ec.act(c, ec.eventService.Join) }
func (ec *EventController) LeaveEvent(c *gin.Context)    { ec.act(c, ec.eventService.Leave) }
func (ec *EventController) CancelEvent(c *gin.Context)   { ec.act(c, ec.eventService.Cancel) }
func (ec *EventController) CompleteEvent(c *gin.Context) { ec.act(c, ec.eventService.Complete) }

func (ec *EventController) AcceptTransfer(c *gin.Context) {
	ec.act(c, ec.eventService.AcceptTransfer)
}

func (ec *EventController) DeclineTransfer(c *gin.Context) {
	ec.act(c, ec.eventService.DeclineTransfer)
}

func (ec *EventController) WithdrawTransfer(c *gin.Context) {
	ec.act(c, ec.eventService.WithdrawTransfer)
}

func (ec *EventController) RequestTransfer(c *gin.Context) {
	var req models.TransferRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.SendValidationError(c, err.Error())
		return
	}
	ec.act(c, func(ctx context.Context, viewerID, id uint32) (*models.Event, error) {
		return ec.eventService.RequestTransfer(ctx, viewerID, id, req.NewOrganizerID)
	})
}

func (ec *EventController) GetEventHistory(c *gin.Context) {
	id, err := utils.ParamID(c, "id")
	if err != nil {
		utils.SendAppError(c, err)
		return
	}

	changes, err := ec.eventService.History(c.Request.Context(), id)
	if err != nil {
		utils.SendAppError(c, err)
		return
	}
	responses := make([]models.StateChangeResponse, 0, len(changes))
	for i := range changes {
		responses = append(responses, changes[i].ToResponse())
	}
	c.JSON(http.StatusOK, responses)
}

func (ec *EventController) CheckIn(c *gin.Context) {
	id, err := utils.ParamID(c, "id")
	if err != nil {
		utils.SendAppError(c, err)
		return
	}

	attendance, err := ec.eventService.CheckIn(c.Request.Context(), utils.CurrentUserID(c), id)
	if err != nil {
		utils.SendAppError(c, err)
		return
	}
	c.JSON(http.StatusCreated, attendance.ToResponse())
}

func (ec *EventController) GetAttendance(c *gin.Context) {
	id, err := utils.ParamID(c, "id")
	if err != nil {
		utils.SendAppError(c, err)
		return
	}

	list, err := ec.eventService.Attendance(c.Request.Context(), utils.CurrentUserID(c), id)
	if err != nil {
		utils.SendAppError(c, err)
		return
	}
	responses := make([]models.AttendanceResponse, 0, len(list))
	for i := range list {
		responses = append(responses, list[i].ToResponse())
	}
	c.JSON(http.StatusOK, responses)
}
