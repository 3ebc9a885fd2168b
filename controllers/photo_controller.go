package controllers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"cleanzone-api/models"
	"cleanzone-api/services"
	"cleanzone-api/utils"
)

type PhotoController struct {
	photoService   *services.PhotoService
	maxUploadBytes int64
}

func NewPhotoController(photoService *services.PhotoService, maxUploadBytes int64) *PhotoController {
	return &PhotoController{photoService: photoService, maxUploadBytes: maxUploadBytes}
}

// UploadPhoto accepts a multipart "file" with a "kind" of BEFORE or AFTER.
func (pc *PhotoController) UploadPhoto(c *gin.Context) {
	zoneID, err := utils.ParamID(c, "id")
	if err != nil {
		utils.SendAppError(c, err)
		return
	}
	if pc.maxUploadBytes > 0 {
		c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, pc.maxUploadBytes)
	}

	kind, err := models.ParsePhotoKind(c.DefaultPostForm("kind", string(models.PhotoKindBefore)))
	if err != nil {
		utils.SendAppError(c, err)
		return
	}
	header, err := c.FormFile("file")
	if err != nil {
		utils.SendValidationError(c, "file is required")
		return
	}
	file, err := header.Open()
	if err != nil {
		utils.SendValidationError(c, "file could not be read")
		return
	}
	defer file.Close()

	photo, err := pc.photoService.Upload(c.Request.Context(), utils.CurrentUserID(c), zoneID, kind, file)
	if err != nil {
		utils.SendAppError(c, err)
		return
	}
	c.JSON(http.StatusCreated, photo)
}

func (pc *PhotoController) GetPhoto(c *gin.Context) {
	id, err := utils.ParamID(c, "id")
	if err != nil {
		utils.SendAppError(c, err)
		return
	}

	photo, content, err := pc.photoService.Open(c.Request.Context(), id)
	if err != nil {
		utils.SendAppError(c, err)
		return
	}
	defer content.Close()

	c.DataFromReader(http.StatusOK, -1, photo.ContentType, content, map[string]string{
		"Cache-Control": "public, max-age=31536000, immutable",
	})
}
