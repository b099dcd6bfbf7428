package common

import (
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/google/uuid"
)

// FieldError is one rejected request field.
type FieldError struct {
	Field  string
	Value  string
	Reason string
}

func (e FieldError) Error() string {
	return fmt.Sprintf("%s %q: %s", e.Field, clipValue(e.Value), e.Reason)
}

// clipValue keeps huge inputs (pasted OCR text, long questions) out of error
// messages.
func clipValue(s string) string {
	const max = 48
	if utf8.RuneCountInString(s) <= max {
		return s
	}
	return string([]rune(s)[:max]) + "..."
}

// Rule checks one string field and returns the reason it is rejected, or "".
// Every rule except Required accepts the empty string, so optional fields
// only need Required when they are mandatory.
type Rule func(value string) string

// Validator collects field errors across a request.
type Validator struct {
	errs []FieldError
}

func NewValidator() *Validator {
	return &Validator{}
}

// Field runs rules against value in order and records every rejection.
func (v *Validator) Field(name, value string, rules ...Rule) *Validator {
	for _, rule := range rules {
		if reason := rule(value); reason != "" {
			v.errs = append(v.errs, FieldError{Field: name, Value: value, Reason: reason})
		}
	}
	return v
}

func (v *Validator) HasErrors() bool { return len(v.errs) > 0 }

func (v *Validator) Errors() []FieldError { return v.errs }

// Error folds every field error into one INVALID_INPUT AppError.
func (v *Validator) Error() error {
	if !v.HasErrors() {
		return nil
	}
	return NewAppError(CodeInvalidInput, v.message(), ErrValidation)
}

func (v *Validator) message() string {
	parts := make([]string, len(v.errs))
	for i, e := range v.errs {
		parts[i] = e.Error()
	}
	return strings.Join(parts, "; ")
}

// Required rejects blank values.
func Required(value string) string {
	if strings.TrimSpace(value) == "" {
		return "is required"
	}
	return ""
}

// MinLen rejects values shorter than min characters.
func MinLen(min int) Rule {
	return func(value string) string {
		if value != "" && utf8.RuneCountInString(value) < min {
			return fmt.Sprintf("must be at least %d characters", min)
		}
		return ""
	}
}

// MaxLen rejects values longer than max characters.
func MaxLen(max int) Rule {
	return func(value string) string {
		if utf8.RuneCountInString(value) > max {
			return fmt.Sprintf("must be at most %d characters", max)
		}
		return ""
	}
}

// UUID rejects values that are not document ids.
func UUID(value string) string {
	if value == "" {
		return ""
	}
	if _, err := uuid.Parse(value); err != nil {
		return "must be a valid UUID"
	}
	return ""
}

// OneOf accepts only the listed values.
func OneOf(allowed ...string) Rule {
	return func(value string) string {
		if value == "" {
			return ""
		}
		for _, a := range allowed {
			if value == a {
				return ""
			}
		}
		return "must be one of " + strings.Join(allowed, ", ")
	}
}

// ValidateAndReturnError converts collected field errors into an
// InvalidArgument status for the gRPC surface.
func ValidateAndReturnError(v *Validator) error {
	if v.HasErrors() {
		return InvalidArgumentError(v.message())
	}
	return nil
}
