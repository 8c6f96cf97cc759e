package common

import (
	"errors"
	"fmt"
)

// Error codes surfaced to callers. Everything user-visible maps to one of
// these; provider-specific payloads never leak past the pipeline boundary.
const (
	CodeUnsupportedFormat = "UNSUPPORTED_FORMAT"
	CodeExtractionError   = "EXTRACTION_ERROR"
	CodeExtractionTimeout = "EXTRACTION_TIMEOUT"
	CodeExtractionFailed  = "EXTRACTION_FAILED"
	CodeRenderError       = "RENDER_ERROR"
	CodeInvalidInput      = "INVALID_INPUT"
	CodeConfigError       = "CONFIG_ERROR"
	CodeInternal          = "INTERNAL_ERROR"
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
	ErrUnsupportedFormat = errors.New("unsupported document format")
	ErrExtraction        = errors.New("no text could be recovered")
	ErrExtractionTimeout = errors.New("extraction timed out")
	ErrExtractionFailed  = errors.New("entity extraction failed")
	ErrInvalidInput      = errors.New("invalid input")
	ErrInternal          = errors.New("internal error")
)

// Error constructors
func NewAppError(code, message string, cause error) *AppError {
	return &AppError{
		Code:    code,
		Message: message,
		Cause:   cause,
	}
}

func WrapError(err error, message string) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", message, err)
}

// CodeOf walks the error chain and reports the user-facing code.
// Unknown errors report as INTERNAL_ERROR.
func CodeOf(err error) string {
	var ae *AppError
	if errors.As(err, &ae) {
		return ae.Code
	}
	switch {
	case errors.Is(err, ErrUnsupportedFormat):
		return CodeUnsupportedFormat
	case errors.Is(err, ErrExtraction):
		return CodeExtractionError
	case errors.Is(err, ErrExtractionTimeout):
		return CodeExtractionTimeout
	case errors.Is(err, ErrExtractionFailed):
		return CodeExtractionFailed
	case errors.Is(err, ErrInvalidInput):
		return CodeInvalidInput
	}
	return CodeInternal
}
