package transport

import (
	"strings"

	"dn_tracker_backend/internal/dn/normalize"
	"dn_tracker_backend/platform/validator"

	govalidator "github.com/go-playground/validator/v10"
)

// StatusTag validates operational DN statuses.
const StatusTag = "dn_status"

// RegisterValidations adds the DN tags to val.
func RegisterValidations(val *validator.Validator) error {
	return val.RegisterValidation(StatusTag, func(fl govalidator.FieldLevel) bool {
		return normalize.IsValidStatus(strings.TrimSpace(fl.Field().String()))
	})
}
