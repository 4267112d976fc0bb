// Package apperror defines the error taxonomy shared by the engine, the
// catalog and the HTTP layer. Every error that crosses a package boundary
// carries a stable machine-readable Code.
package apperror

import (
	"context"
	"errors"
	"fmt"
	"net/http"
)

// Code is a stable machine-readable error code.
type Code string

// Error codes.
const (
	CodeEntityNotFound          Code = "ENTITY_NOT_FOUND"
	CodeRecordNotFound          Code = "RECORD_NOT_FOUND"
	CodeServiceNotFound         Code = "SERVICE_NOT_FOUND"
	CodeInvalidFilterField      Code = "INVALID_FILTER_FIELD"
	CodeInvalidFilterOperator   Code = "INVALID_FILTER_OPERATOR"
	CodeInvalidFilterValue      Code = "INVALID_FILTER_VALUE"
	CodeValidation              Code = "VALIDATION_FAILED"
	CodeConflict                Code = "CONFLICT"
	CodeRateLimited             Code = "RATE_LIMITED"
	CodeUnsupportedDatabaseType Code = "UNSUPPORTED_DATABASE_TYPE"
	CodePolicyTemplateRender    Code = "POLICY_TEMPLATE_RENDER_ERROR"
	CodeQueryExecution          Code = "QUERY_EXECUTION_ERROR"
	CodeTimeout                 Code = "TIMEOUT"
	CodeInternal                Code = "INTERNAL_ERROR"
)

// Error is a coded error with an optional cause.
type Error struct {
	Code    Code
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *Error) Unwrap() error { return e.Err }

// New creates an Error with a formatted message.
func New(code Code, format string, args ...interface{}) *Error {
	return &Error{Code: code, Message: fmt.Sprintf(format, args...)}
}

// Wrap creates an Error that keeps err as its cause.
func Wrap(code Code, err error, format string, args ...interface{}) *Error {
	return &Error{Code: code, Message: fmt.Sprintf(format, args...), Err: err}
}

// CodeOf returns the code of the first *Error in err's chain.
// Context deadline errors map to CodeTimeout; anything else is CodeInternal.
func CodeOf(err error) Code {
	if err == nil {
		return ""
	}
	var ae *Error
	if errors.As(err, &ae) {
		return ae.Code
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return CodeTimeout
	}
	return CodeInternal
}

// Is reports whether err carries the given code.
func Is(err error, code Code) bool {
	return CodeOf(err) == code
}

// IsClientError reports whether the code is caused by the caller's input.
// Client errors may expose their message; server errors may not.
func IsClientError(code Code) bool {
	switch code {
	case CodeEntityNotFound, CodeRecordNotFound, CodeServiceNotFound,
		CodeInvalidFilterField, CodeInvalidFilterOperator, CodeInvalidFilterValue,
		CodeValidation, CodeConflict, CodeRateLimited:
		return true
	default:
		return false
	}
}

// HTTPStatus maps a code to the HTTP status returned to callers.
func HTTPStatus(code Code) int {
	switch code {
	case CodeEntityNotFound, CodeRecordNotFound, CodeServiceNotFound:
		return http.StatusNotFound
	case CodeInvalidFilterField, CodeInvalidFilterOperator, CodeInvalidFilterValue, CodeValidation:
		return http.StatusBadRequest
	case CodeConflict:
		return http.StatusConflict
	case CodeRateLimited:
		return http.StatusTooManyRequests
	case CodeTimeout:
		return http.StatusGatewayTimeout
	case CodeUnsupportedDatabaseType, CodePolicyTemplateRender, CodeQueryExecution, CodeInternal:
		return http.StatusInternalServerError
	default:
		return http.StatusInternalServerError
	}
}

// PublicMessage returns the message that may be shown to callers.
// Server-side details (SQL text, driver messages) never leave the process.
func PublicMessage(err error) string {
	code := CodeOf(err)
	if IsClientError(code) {
		var ae *Error
		if errors.As(err, &ae) {
			return ae.Message
		}
	}
	switch code {
	case CodeTimeout:
		return "the query did not complete in time"
	case CodeUnsupportedDatabaseType:
		return "the service is configured with an unsupported database type"
	default:
		return "internal server error"
	}
}
