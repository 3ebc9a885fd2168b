package controllers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"cleanzone-api/apperrors"
	"cleanzone-api/models"
	"cleanzone-api/services"
	"cleanzone-api/utils"
)

type ZoneController struct {
	zoneService *services.ZoneService
}

func NewZoneController(zoneService *services.ZoneService) *ZoneController {
	return &ZoneController{zoneService: zoneService}
}

func (zc *ZoneController) GetZones(c *gin.Context) {
	page := utils.ParsePage(c)
	filter := models.ZoneFilter{Limit: page.Limit, Offset: page.Offset}

	if status := c.Query("status"); status != "" {
		st, err := models.ParseZoneStatus(status)
		if err != nil {
			utils.SendAppError(c, err)
			return
		}
		filter.Status = &st
	}
	if severity := c.Query("severity"); severity != "" {
		sev, err := models.ParseSeverity(severity)
		if err != nil {
			utils.SendAppError(c, err)
			return
		}
		filter.Severity = &sev
	}
	reporterID, err := utils.QueryID(c, "reporter_id")
	if err != nil {
		utils.SendAppError(c, err)
		return
	}
	filter.ReporterID = reporterID

	lat, err := utils.QueryFloat(c, "lat")
	if err != nil {
		utils.SendAppError(c, err)
		return
	}
	lon, err := utils.QueryFloat(c, "lon")
	if err != nil {
		utils.SendAppError(c, err)
		return
	}
	if (lat == nil) != (lon == nil) {
		utils.SendAppError(c, apperrors.Validation("lat and lon must be given together"))
		return
	}
	if lat != nil {
		center, err := models.NewLocation(*lat, *lon)
		if err != nil {
			utils.SendAppError(c, err)
			return
		}
		radius, err := utils.QueryFloat(c, "radius_km")
		if err != nil {
			utils.SendAppError(c, err)
			return
		}
		filter.Near = &center
		filter.RadiusKm = 10
		if radius != nil {
			filter.RadiusKm = *radius
		}
	}

	zones, total, err := zc.zoneService.List(c.Request.Context(), filter)
	if err != nil {
		utils.SendAppError(c, err)
		return
	}

	responses := make([]models.ZoneResponse, 0, len(zones))
	for i := range zones {
		resp := zones[i].ToResponse()
		if filter.Near != nil {
			d := filter.Near.DistanceKm(zones[i].Location())
			resp.DistanceKm = &d
		}
		responses = append(responses, resp)
	}
	utils.SendPaginated(c, responses, page, total)
}

func (zc *ZoneController) CreateZone(c *gin.Context) {
	var req models.CreateZoneRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.SendValidationError(c, err.Error())
		return
	}

	zone, err := zc.zoneService.Report(c.Request.Context(), utils.CurrentUserID(c), req)
	if err != nil {
		utils.SendAppError(c, err)
		return
	}
	c.JSON(http.StatusCreated, zone.ToResponse())
}

func (zc *ZoneController) GetZone(c *gin.Context) {
	id, err := utils.ParamID(c, "id")
	if err != nil {
		utils.SendAppError(c, err)
		return
	}

	zone, err := zc.zoneService.Get(c.Request.Context(), id)
	if err != nil {
		utils.SendAppError(c, err)
		return
	}
	c.JSON(http.StatusOK, zone.ToResponse())
}

func (zc *ZoneController) UpdateZone(c *gin.Context) {
	id, err := utils.ParamID(c, "id")
	if err != nil {
		utils.SendAppError(c, err)
		return
	}
	var req models.UpdateZoneRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.SendValidationError(c, err.Error())
		return
	}

	zone, err := zc.zoneService.Update(c.Request.Context(), utils.CurrentUserID(c), utils.CurrentRole(c), id, req)
	if err != nil {
		utils.SendAppError(c, err)
		return
	}
	c.JSON(http.StatusOK, zone.ToResponse())
}

func (zc *ZoneController) UpdateZoneStatus(c *gin.Context) {
	id, err := utils.ParamID(c, "id")
	if err != nil {
		utils.SendAppError(c, err)
		return
	}
	var req models.UpdateZoneStatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.SendValidationError(c, err.Error())
		return
	}
	status, err := models.ParseZoneStatus(req.Status)
	if err != nil {
		utils.SendAppError(c, err)
		return
	}

	zone, err := zc.zoneService.SetStatus(c.Request.Context(), utils.CurrentUserID(c), utils.CurrentRole(c), id, status)
	if err != nil {
		utils.SendAppError(c, err)
		return
	}
	c.JSON(http.StatusOK, zone.ToResponse())
}

func (zc *ZoneController) GetZoneHistory(c *gin.Context) {
	id, err := utils.ParamID(c, "id")
	if err != nil {
		utils.SendAppError(c, err)
		return
	}

	changes, err := zc.zoneService.History(c.Request.Context(), id)
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
