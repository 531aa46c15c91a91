package config

import (
	"errors"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
)

// RegisterCustomValidators registers the gateway-specific validation rules.
func RegisterCustomValidators(v *validator.Validate) error {
	if err := v.RegisterValidation("hostname_only", validateHostnameOnly); err != nil {
		return fmt.Errorf("registering hostname_only validator: %w", err)
	}
	return nil
}

// validateHostnameOnly rejects values that carry a scheme, path or port.
// The upstream host is always a bare hostname; the client prepends
// "https://" itself.
func validateHostnameOnly(fl validator.FieldLevel) bool {
	host := fl.Field().String()
	if host == "" {
		return false
	}
	if strings.ContainsAny(host, "/:@ ") {
		return false
	}
	return true
}

// Validate checks the configuration using struct tags plus cross-field rules.
func (c *Config) Validate() error {
	v := validator.New(validator.WithRequiredStructEnabled())
	if err := RegisterCustomValidators(v); err != nil {
		return err
	}
	if err := v.Struct(c); err != nil {
		return formatValidationErrors(err)
	}
	return nil
}

// formatValidationErrors converts validator.ValidationErrors into
// actionable messages.
func formatValidationErrors(err error) error {
	var validationErrors validator.ValidationErrors
	if errors.As(err, &validationErrors) {
		messages := make([]string, 0, len(validationErrors))
		for _, e := range validationErrors {
			messages = append(messages, formatSingleValidationError(e))
		}
		return errors.New(strings.Join(messages, "; "))
	}
	return err
}

func formatSingleValidationError(e validator.FieldError) string {
	field := e.Namespace()
	switch e.Tag() {
	case "required":
		return fmt.Sprintf("%s is required", field)
	case "min":
		return fmt.Sprintf("%s must be at least %s characters", field, e.Param())
	case "oneof":
		return fmt.Sprintf("%s must be one of: %s", field, e.Param())
	case "url":
		return fmt.Sprintf("%s must be a valid URL", field)
	case "hostname_port":
		return fmt.Sprintf("%s must be a valid host:port", field)
	case "hostname_only":
		return fmt.Sprintf("%s must be a hostname without scheme, port or path", field)
	default:
		return fmt.Sprintf("%s failed validation: %s", field, e.Tag())
	}
}
