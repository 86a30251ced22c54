package service

import (
	"regexp"

	"github.com/go-playground/validator/v10"

	"github.com/noah-isme/admission-api/internal/models"
)

var phonePattern = regexp.MustCompile(`^\+?1?\d{9,15}$`)

// NewValidator returns a validator with the admission form tags registered:
// phone, grade (O-level grade) and course (catalogue code).
func NewValidator() *validator.Validate {
	v := validator.New()
	_ = v.RegisterValidation("phone", func(fl validator.FieldLevel) bool {
		return phonePattern.MatchString(fl.Field().String())
	})
	_ = v.RegisterValidation("grade", func(fl validator.FieldLevel) bool {
		return models.IsGrade(fl.Field().String())
	})
	_ = v.RegisterValidation("course", func(fl validator.FieldLevel) bool {
		return models.IsCourse(fl.Field().String())
	})
	return v
}
