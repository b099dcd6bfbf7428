package common

import (
	"errors"
	"fmt"
	"net/http"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

// AppError represents application-specific errors
type AppError struct {
	Code    string
	Message string
	Cause   error
}

func (e *AppError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *AppError) Unwrap() error {
	return e.Cause
}

// Common application errors
var (
	ErrNotFound     = errors.New("resource not found")
	ErrInvalidInput = errors.New("invalid input")
	ErrInternal     = errors.New("internal error")
	ErrDatabase     = errors.New("database error")
	ErrValidation   = errors.New("validation failed")
)

// Pipeline errors. Callers match them with errors.Is.
var (
	// ErrDecode means a page could not be decoded into an image.
	ErrDecode = errors.New("page decode failed")
	// ErrEngineUnavailable means the OCR engine is missing or misconfigured.
	ErrEngineUnavailable = errors.New("ocr engine unavailable")
	// ErrLLMUnavailable means no language model credentials or endpoint are configured.
	ErrLLMUnavailable = errors.New("llm unavailable")
	// ErrLLMRequest means the language model call failed (network, quota, server).
	ErrLLMRequest = errors.New("llm request failed")
	// ErrParse means model output was not a JSON object. Never escapes the field extractor.
	ErrParse = errors.New("model output parse failed")
)

// Error codes carried by AppError.Code.
const (
	CodeNotFound          = "NOT_FOUND"
	CodeDecode            = "DECODE_ERROR"
	CodeEngineUnavailable = "ENGINE_UNAVAILABLE"
	CodeLLMUnavailable    = "LLM_UNAVAILABLE"
	CodeLLMRequest        = "LLM_REQUEST_ERROR"
	CodeParse             = "PARSE_ERROR"
	CodeConfig            = "CONFIG_ERROR"
	CodeDatabase          = "DATABASE_ERROR"
	CodeInvalidInput      = "INVALID_INPUT"
)

// Error constructors
func NewAppError(code, message string, cause error) *AppError {
	return &AppError{
		Code:    code,
		Message: message,
		Cause:   cause,
	}
}

// NotFound builds a NOT_FOUND AppError wrapping ErrNotFound.
func NotFound(format string, args ...any) error {
	return NewAppError(CodeNotFound, fmt.Sprintf(format, args...), ErrNotFound)
}

// DecodeFailure builds a DECODE_ERROR AppError that unwraps to both ErrDecode and cause.
func DecodeFailure(message string, cause error) error {
	return NewAppError(CodeDecode, message, joinCause(ErrDecode, cause))
}

// EngineUnavailable builds an ENGINE_UNAVAILABLE AppError.
func EngineUnavailable(message string, cause error) error {
	return NewAppError(CodeEngineUnavailable, message, joinCause(ErrEngineUnavailable, cause))
}

// LLMUnavailable builds an LLM_UNAVAILABLE AppError.
func LLMUnavailable(message string, cause error) error {
	return NewAppError(CodeLLMUnavailable, message, joinCause(ErrLLMUnavailable, cause))
}

// LLMRequestFailure builds an LLM_REQUEST_ERROR AppError.
func LLMRequestFailure(message string, cause error) error {
	return NewAppError(CodeLLMRequest, message, joinCause(ErrLLMRequest, cause))
}

func joinCause(sentinel, cause error) error {
	if cause == nil {
		return sentinel
	}
	return errors.Join(sentinel, cause)
}

// gRPC error helpers
func InvalidArgumentError(message string) error {
	return status.Error(codes.InvalidArgument, message)
}

func InternalError(message string) error {
	return status.Error(codes.Internal, message)
}

func InternalErrorf(format string, args ...interface{}) error {
	return InternalError(fmt.Sprintf(format, args...))
}

// GRPCCode maps the error taxonomy onto gRPC status codes.
func GRPCCode(err error) codes.Code {
	switch {
	case err == nil:
		return codes.OK
	case errors.Is(err, ErrNotFound):
		return codes.NotFound
	case errors.Is(err, ErrInvalidInput), errors.Is(err, ErrValidation), errors.Is(err, ErrDecode):
		return codes.InvalidArgument
	case errors.Is(err, ErrEngineUnavailable), errors.Is(err, ErrLLMUnavailable):
		return codes.FailedPrecondition
	case errors.Is(err, ErrLLMRequest):
		return codes.Unavailable
	default:
		return codes.Internal
	}
}

// ToStatus converts err into a gRPC status error, passing through existing status errors.
func ToStatus(err error) error {
	if err == nil {
		return nil
	}
	if _, ok := status.FromError(err); ok {
		return err
	}
	return status.Error(GRPCCode(err), err.Error())
}

// HTTPStatus maps the error taxonomy onto HTTP status codes.
func HTTPStatus(err error) int {
	switch GRPCCode(err) {
	case codes.OK:
		return http.StatusOK
	case codes.NotFound:
		return http.StatusNotFound
	case codes.InvalidArgument:
		return http.StatusBadRequest
	case codes.FailedPrecondition:
		return http.StatusServiceUnavailable
	case codes.Unavailable:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}
