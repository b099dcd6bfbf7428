package common

import (
	"errors"
	"strings"
	"testing"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

func TestValidator_CollectsErrors(t *testing.T) {
	v := NewValidator().
		Field("question", "  ", Required).
		Field("format", "pdf", OneOf("json", "txt", "html")).
		Field("id", "not-a-uuid", UUID)

	if len(v.Errors()) != 3 {
		t.Fatalf("expected 3 errors, got %d: %v", len(v.Errors()), v.Errors())
	}
	err := v.Error()
	if !errors.Is(err, ErrValidation) {
		t.Errorf("expected ErrValidation, got %v", err)
	}
	if !strings.Contains(err.Error(), "must be one of json, txt, html") {
		t.Errorf("missing OneOf message in %q", err.Error())
	}
}

func TestValidator_MaxLen(t *testing.T) {
	v := NewValidator().Field("question", strings.Repeat("a", 11), MaxLen(10))
	if !v.HasErrors() {
		t.Errorf("expected max length violation")
	}
	if NewValidator().Field("question", "short", Required, MaxLen(10)).HasErrors() {
		t.Errorf("expected no errors for a valid value")
	}
}

func TestValidator_MinLen(t *testing.T) {
	v := NewValidator().Field("lang", "en", MinLen(3))
	if !v.HasErrors() {
		t.Fatal("expected min length violation")
	}
	if got := v.Errors()[0].Reason; got != "must be at least 3 characters" {
		t.Errorf("reason = %q", got)
	}
	if NewValidator().Field("lang", "", MinLen(3)).HasErrors() {
		t.Error("empty optional value should pass MinLen")
	}
	if NewValidator().Field("lang", "deu", MinLen(3)).HasErrors() {
		t.Error("three-letter code should pass MinLen(3)")
	}
}

func TestValidateAndReturnError_InvalidArgument(t *testing.T) {
	err := ValidateAndReturnError(NewValidator().Field("document_id", "", Required, UUID))
	if status.Code(err) != codes.InvalidArgument {
		t.Fatalf("code = %v", status.Code(err))
	}
	if strings.Contains(err.Error(), "UUID") {
		t.Errorf("blank id should only report the missing value: %v", err)
	}
	if ValidateAndReturnError(NewValidator().Field("document_id", "6f1c2a8e-3b1d-4c52-9a77-0f3e5d2b1c44", Required, UUID)) != nil {
		t.Error("valid id rejected")
	}
}

func TestFieldError_ClipsLongValues(t *testing.T) {
	e := FieldError{Field: "raw_text", Value: strings.Repeat("z", 500), Reason: "is required"}
	if len(e.Error()) > 120 {
		t.Errorf("message not clipped: %d bytes", len(e.Error()))
	}
}
