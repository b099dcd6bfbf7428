package common

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

func TestAppError_UnwrapsToSentinel(t *testing.T) {
	cause := errors.New("exit status 1")
	err := fmt.Errorf("page 2: %w", DecodeFailure("decode png", cause))

	if !errors.Is(err, ErrDecode) {
		t.Errorf("expected errors.Is(err, ErrDecode)")
	}
	if !errors.Is(err, cause) {
		t.Errorf("expected the original cause to stay reachable")
	}
	var appErr *AppError
	if !errors.As(err, &appErr) || appErr.Code != CodeDecode {
		t.Errorf("expected AppError with code %s, got %v", CodeDecode, appErr)
	}
}

func TestGRPCCode_Taxonomy(t *testing.T) {
	cases := []struct {
		err  error
		want codes.Code
	}{
		{nil, codes.OK},
		{NotFound("document %s", "x"), codes.NotFound},
		{DecodeFailure("bad", nil), codes.InvalidArgument},
		{EngineUnavailable("no tesseract", nil), codes.FailedPrecondition},
		{LLMUnavailable("no key", nil), codes.FailedPrecondition},
		{LLMRequestFailure("503", nil), codes.Unavailable},
		{errors.New("boom"), codes.Internal},
	}
	for _, tc := range cases {
		if got := GRPCCode(tc.err); got != tc.want {
			t.Errorf("GRPCCode(%v) = %v, want %v", tc.err, got, tc.want)
		}
	}
}

func TestToStatus_PassesThroughStatusErrors(t *testing.T) {
	in := status.Error(codes.AlreadyExists, "dup")
	if got := ToStatus(in); status.Code(got) != codes.AlreadyExists {
		t.Errorf("expected AlreadyExists, got %v", status.Code(got))
	}
	if got := ToStatus(LLMRequestFailure("x", nil)); status.Code(got) != codes.Unavailable {
		t.Errorf("expected Unavailable, got %v", status.Code(got))
	}
}

func TestHTTPStatus(t *testing.T) {
	if got := HTTPStatus(NotFound("x")); got != http.StatusNotFound {
		t.Errorf("expected 404, got %d", got)
	}
	if got := HTTPStatus(LLMUnavailable("x", nil)); got != http.StatusServiceUnavailable {
		t.Errorf("expected 503, got %d", got)
	}
}
