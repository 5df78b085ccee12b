package serrors

import (
	"fmt"

	"github.com/go-playground/validator/v10"
)

// BaseError is a structured error carrying a stable machine code alongside a
// human readable message. LocaleKey and TemplateData are kept for callers that
// render messages elsewhere; both may be empty.
type BaseError struct {
	Code         string
	Message      string
	LocaleKey    string
	TemplateData map[string]string
}

func (e *BaseError) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func NewError(code, message, localeKey string) *BaseError {
	return &BaseError{
		Code:      code,
		Message:   message,
		LocaleKey: localeKey,
	}
}

func (e *BaseError) WithTemplateData(data map[string]string) *BaseError {
	e.TemplateData = data
	return e
}

func NewFieldRequiredError(field string) *BaseError {
	return NewError("FIELD_REQUIRED", fmt.Sprintf("field %q is required", field), "").
		WithTemplateData(map[string]string{"field": field})
}

// ValidationErrors maps a struct field name to the error raised for it.
type ValidationErrors map[string]*BaseError

// ProcessValidatorErrors converts validator.ValidationErrors into per-field
// BaseErrors keyed by the struct field name.
func ProcessValidatorErrors(errs validator.ValidationErrors) ValidationErrors {
	out := make(ValidationErrors, len(errs))
	for _, fieldErr := range errs {
		switch fieldErr.Tag() {
		case "required":
			out[fieldErr.Field()] = NewFieldRequiredError(fieldErr.Field())
		default:
			out[fieldErr.Field()] = NewError(
				"FIELD_INVALID",
				fmt.Sprintf("field %q failed %q validation", fieldErr.Field(), fieldErr.Tag()),
				"",
			).WithTemplateData(map[string]string{
				"field": fieldErr.Field(),
				"tag":   fieldErr.Tag(),
			})
		}
	}
	return out
}
