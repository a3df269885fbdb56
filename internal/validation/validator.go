// Package validation provides struct validation using go-playground/validator v10.
// Failures are reported as *domain.ValidationError so that they travel through
// the same error paths as hand-written checks.
package validation

import (
	"errors"
	"fmt"
	"reflect"
	"strings"
	"sync"

	"github.com/go-playground/validator/v10"

	"github.com/custodia-labs/continuum/internal/core/domain"
)

// singleton validator instance
var (
	validate     *validator.Validate
	validateOnce sync.Once
)

// GetValidator returns the singleton validator instance.
// Field names in errors follow json tags. Registers:
//   - slug: lowercase alphanumerics separated by single hyphens
//   - method: a supported ingestion method
func GetValidator() *validator.Validate {
	validateOnce.Do(func() {
		validate = validator.New(validator.WithRequiredStructEnabled())

		validate.RegisterTagNameFunc(func(f reflect.StructField) string {
			name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
			if name == "-" {
				return ""
			}
			if name == "" {
				return f.Name
			}
			return name
		})

		_ = validate.RegisterValidation("slug", func(fl validator.FieldLevel) bool {
			return domain.ValidSlug(fl.Field().String())
		})
		_ = validate.RegisterValidation("method", func(fl validator.FieldLevel) bool {
			return domain.Method(fl.Field().String()).IsValid()
		})
	})

	return validate
}

// ValidateStruct validates a struct using the singleton validator.
// Returns nil if validation passes, otherwise a *domain.ValidationError
// describing the first failing field.
func ValidateStruct(s any) error {
	err := GetValidator().Struct(s)
	if err == nil {
		return nil
	}

	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) || len(fieldErrs) == 0 {
		return &domain.ValidationError{Message: err.Error()}
	}
	fe := fieldErrs[0]
	return &domain.ValidationError{Field: fe.Field(), Message: translateError(fe)}
}

// errorMessageTemplates maps validation tags to message templates.
var errorMessageTemplates = map[string]string{
	"required": "is required",
	"url":      "must be a valid URL",
	"slug":     "must contain only lowercase letters, digits and single hyphens",
	"method":   "must be one of github_json, rss, scrape, statuspage_api",
}

// errorMessageWithParam maps validation tags to templates that include param.
var errorMessageWithParam = map[string]string{
	"oneof": "must be one of: %s",
	"gte":   "must be greater than or equal to %s",
	"lte":   "must be less than or equal to %s",
	"min":   "must be at least %s",
	"max":   "must be at most %s",
}

func translateError(fe validator.FieldError) string {
	if msg, ok := errorMessageTemplates[fe.Tag()]; ok {
		return msg
	}
	if template, ok := errorMessageWithParam[fe.Tag()]; ok {
		msg := fmt.Sprintf(template, fe.Param())
		if fe.Kind() == reflect.String && (fe.Tag() == "min" || fe.Tag() == "max") {
			msg += " characters"
		}
		return msg
	}
	return fmt.Sprintf("failed %s validation", fe.Tag())
}
