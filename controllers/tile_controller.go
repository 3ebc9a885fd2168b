package controllers

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"cleanzone-api/apperrors"
	"cleanzone-api/services"
	"cleanzone-api/utils"
)

type TileController struct {
	tileService *services.TileService
}

func NewTileController(tileService *services.TileService) *TileController {
	return &TileController{tileService: tileService}
}

// GetTile serves /tiles/:z/:x/:y, where y may carry an image extension.
func (tc *TileController) GetTile(c *gin.Context) {
	y := c.Param("y")
	if dot := strings.IndexByte(y, '.'); dot >= 0 {
		y = y[:dot]
	}

	coords := make([]int, 3)
	for i, raw := range []string{c.Param("z"), c.Param("x"), y} {
		v, err := strconv.Atoi(raw)
		if err != nil {
			utils.SendAppError(c, apperrors.Validation("tile coordinates must be integers"))
			return
		}
		coords[i] = v
	}

	tile, err := tc.tileService.Get(c.Request.Context(), coords[0], coords[1], coords[2])
	if err != nil {
		utils.SendAppError(c, err)
		return
	}

	c.Header("Cache-Control", "public, max-age=86400")
	c.Data(http.StatusOK, tile.ContentType, tile.Data)
}
