package recommend

import (
	"errors"
	"fmt"
	"net/http"
)

const (
	CodeInvalidInput          = "invalid_input"
	CodeLocationResolution    = "location_resolution_failed"
	CodeDataSourceUnavailable = "data_source_unavailable"
	CodeDownstreamFailed      = "downstream_failed"
	CodeInternal              = "internal"
)

// Error is a user-facing failure with a stable code.
type Error struct {
	Code    string
	Message string
	Status  int
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *Error) Unwrap() error { return e.Err }

func statusForCode(code string) int {
	switch code {
	case CodeInvalidInput, CodeLocationResolution:
		return http.StatusBadRequest
	case CodeDataSourceUnavailable:
		return http.StatusServiceUnavailable
	case CodeDownstreamFailed:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

func newError(code, message string, err error) *Error {
	return &Error{
		Code:    code,
		Message: message,
		Status:  statusForCode(code),
		Err:     err,
	}
}

// InvalidInput returns a validation error.
func InvalidInput(message string) error {
	return newError(CodeInvalidInput, message, nil)
}

// AsError extracts an *Error, wrapping anything else as internal.
func AsError(err error) *Error {
	var re *Error
	if errors.As(err, &re) {
		return re
	}
	return newError(CodeInternal, "internal error", err)
}

// CodeOf returns the error code of err, or "" if err is nil.
func CodeOf(err error) string {
	if err == nil {
		return ""
	}
	return AsError(err).Code
}
