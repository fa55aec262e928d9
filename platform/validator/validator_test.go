package validator

import (
	"testing"

	"github.com/go-playground/validator/v10"
)

type sample struct {
	DNNumber string `json:"dnNumber" validate:"required"`
	Status   string `form:"status" validate:"upper_only"`
}

func TestFieldsUsesTagNames(t *testing.T) {
	val := New()
	if err := val.RegisterValidation("upper_only", func(fl validator.FieldLevel) bool {
		return fl.Field().String() == "POD"
	}); err != nil {
		t.Fatalf("register: %v", err)
	}

	err := val.Struct(sample{Status: "pod"})
	fields := Fields(err)
	if fields["dnNumber"] != "required" {
		t.Fatalf("expected dnNumber required, got %v", fields)
	}
	if fields["status"] != "upper_only" {
		t.Fatalf("expected status upper_only, got %v", fields)
	}
}

func TestFieldsIgnoresOtherErrors(t *testing.T) {
	if Fields(nil) != nil {
		t.Fatal("expected nil fields for nil error")
	}
}
