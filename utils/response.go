package utils

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"cleanzone-api/apperrors"
)

type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message,omitempty"`
	Code    int    `json:"code,omitempty"`
	// Scope tells the client where to render the message: "form" or "general".
	Scope string `json:"scope,omitempty"`
}

type SuccessResponse struct {
	Message string      `json:"message"`
	Data    interface{} `json:"data,omitempty"`
}

type PaginatedResponse struct {
	Data   interface{} `json:"data"`
	Limit  int         `json:"limit"`
	Offset int         `json:"offset"`
	Total  int64       `json:"total"`
}

func SendError(c *gin.Context, status int, err string) {
	c.JSON(status, ErrorResponse{
		Error: err,
		Code:  status,
		Scope: "general",
	})
}

func SendValidationError(c *gin.Context, err string) {
	c.JSON(http.StatusBadRequest, ErrorResponse{
		Error:   "Validation failed",
		Message: err,
		Code:    http.StatusBadRequest,
		Scope:   "form",
	})
}

// SendAppError renders an error from the service layer with its mapped status.
func SendAppError(c *gin.Context, err error) {
	status := apperrors.HTTPStatus(err)
	scope := "general"
	if apperrors.IsFormError(err) {
		scope = "form"
	}
	if status == http.StatusInternalServerError {
		_ = c.Error(err)
	}
	c.JSON(status, ErrorResponse{
		Error:   http.StatusText(status),
		Message: apperrors.PublicMessage(err),
		Code:    status,
		Scope:   scope,
	})
}

func SendSuccess(c *gin.Context, message string, data interface{}) {
	response := SuccessResponse{
		Message: message,
	}
	if data != nil {
		response.Data = data
	}
	c.JSON(http.StatusOK, response)
}

func SendPaginated(c *gin.Context, data interface{}, page Page, total int64) {
	c.JSON(http.StatusOK, PaginatedResponse{
		Data:   data,
		Limit:  page.Limit,
		Offset: page.Offset,
		Total:  total,
	})
}
