package utils

import (
	"math"
	"strconv"

	"github.com/gin-gonic/gin"

	"cleanzone-api/apperrors"
	"cleanzone-api/models"
)

// Context keys set by the auth middleware.
const (
	ContextUserID = "user_id"
	ContextRole   = "role"
)

type Page struct {
	Limit  int
	Offset int
}

// ParsePage reads limit/offset query parameters, defaulting to 20 and capping at 100.
func ParsePage(c *gin.Context) Page {
	limit, err := strconv.Atoi(c.DefaultQuery("limit", "20"))
	if err != nil || limit <= 0 {
		limit = 20
	}
	if limit > 100 {
		limit = 100
	}
	offset, err := strconv.Atoi(c.DefaultQuery("offset", "0"))
	if err != nil || offset < 0 {
		offset = 0
	}
	return Page{Limit: limit, Offset: offset}
}

// ParamID parses a path parameter as an entity id.
func ParamID(c *gin.Context, name string) (uint32, error) {
	id, err := models.ParseID(c.Param(name))
	if err != nil {
		return 0, err
	}
	return id.Uint32(), nil
}

// QueryID parses an optional query parameter as an entity id.
func QueryID(c *gin.Context, name string) (*uint32, error) {
	raw := c.Query(name)
	if raw == "" {
		return nil, nil
	}
	id, err := models.ParseID(raw)
	if err != nil {
		return nil, err
	}
	v := id.Uint32()
	return &v, nil
}

// QueryFloat parses an optional float query parameter.
func QueryFloat(c *gin.Context, name string) (*float64, error) {
	raw := c.Query(name)
	if raw == "" {
		return nil, nil
	}
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
		return nil, apperrors.Validation("%s must be a number", name)
	}
	return &v, nil
}

func CurrentUserID(c *gin.Context) uint32 {
	id, _ := c.Get(ContextUserID)
	v, _ := id.(uint32)
	return v
}

func CurrentRole(c *gin.Context) models.Role {
	role, _ := c.Get(ContextRole)
	v, _ := role.(models.Role)
	return v
}
