package controllers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"cleanzone-api/models"
	"cleanzone-api/services"
	"cleanzone-api/utils"
)

type UserController struct {
	userService *services.UserService
}

func NewUserController(userService *services.UserService) *UserController {
	return &UserController{userService: userService}
}

func (uc *UserController) GetProfile(c *gin.Context) {
	user, err := uc.userService.Get(c.Request.Context(), utils.CurrentUserID(c))
	if err != nil {
		utils.SendAppError(c, err)
		return
	}
	c.JSON(http.StatusOK, user.ToResponse())
}

func (uc *UserController) UpdateProfile(c *gin.Context) {
	var req models.UpdateProfileRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.SendValidationError(c, err.Error())
		return
	}

	user, err := uc.userService.UpdateProfile(c.Request.Context(), utils.CurrentUserID(c), req)
	if err != nil {
		utils.SendAppError(c, err)
		return
	}
	c.JSON(http.StatusOK, user.ToResponse())
}

func (uc *UserController) GetUser(c *gin.Context) {
	id, err := utils.ParamID(c, "id")
	if err != nil {
		utils.SendAppError(c, err)
		return
	}

	user, err := uc.userService.Get(c.Request.Context(), id)
	if err != nil {
		utils.SendAppError(c, err)
		return
	}
	c.JSON(http.StatusOK, user.ToResponse())
}

func (uc *UserController) GetStatistics(c *gin.Context) {
	id, err := utils.ParamID(c, "id")
	if err != nil {
		utils.SendAppError(c, err)
		return
	}

	stats, err := uc.userService.Statistics(c.Request.Context(), id)
	if err != nil {
		utils.SendAppError(c, err)
		return
	}
	c.JSON(http.StatusOK, stats)
}
