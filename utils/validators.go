package utils

import (
	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"

	"cleanzone-api/models"
)

// RegisterValidators adds the enum validators used in request binding tags.
func RegisterValidators() error {
	v, ok := binding.Validator.Engine().(*validator.Validate)
	if !ok {
		return nil
	}

	validators := map[string]validator.Func{
		"severity": func(fl validator.FieldLevel) bool {
			_, err := models.ParseSeverity(fl.Field().String())
			return err == nil
		},
		"zonestatus": func(fl validator.FieldLevel) bool {
			_, err := models.ParseZoneStatus(fl.Field().String())
			return err == nil
		},
		"photokind": func(fl validator.FieldLevel) bool {
			_, err := models.ParsePhotoKind(fl.Field().String())
			return err == nil
		},
	}
	for tag, fn := range validators {
		if err := v.RegisterValidation(tag, fn); err != nil {
			return err
		}
	}
	return nil
}
