// Package validator provides validation infrastructure for the application.
// This is part of the platform layer and contains no business logic.
package validator

import (
	"crm_workflow_backend/platform/phone"

	"github.com/go-playground/validator/v10"
)

const (
	minPhoneDigits = 6
	maxPhoneDigits = 15
)

// Validator wraps the go-playground validator for structured validation.
type Validator struct {
	v *validator.Validate
}

// New creates a Validator with the application's custom rules registered.
func New() *Validator {
	v := validator.New()
	// Registration only fails for empty tags or nil funcs.
	_ = v.RegisterValidation("phone_digits", validatePhoneDigits)
	return &Validator{v: v}
}

// Struct validates a struct based on validation tags.
func (val *Validator) Struct(s any) error {
	return val.v.Struct(s)
}

// Var validates a single variable against a tag.
func (val *Validator) Var(field any, tag string) error {
	return val.v.Var(field, tag)
}

// Email reports whether value is a syntactically valid e-mail address.
func (val *Validator) Email(value string) bool {
	return val.v.Var(value, "required,email") == nil
}

// RegisterValidation registers a custom validation function.
func (val *Validator) RegisterValidation(tag string, fn validator.Func) error {
	return val.v.RegisterValidation(tag, fn)
}

// phone_digits accepts any raw phone whose digit count is plausible for E.164.
func validatePhoneDigits(fl validator.FieldLevel) bool {
	n := len(phone.Digits(fl.Field().String()))
	return n >= minPhoneDigits && n <= maxPhoneDigits
}
