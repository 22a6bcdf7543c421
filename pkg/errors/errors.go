package errors

import (
	stdErrors "errors"
	"fmt"
	"net/http"
)

// Code is the machine readable error category surfaced to clients.
type Code string

const (
	CodeValidation             Code = "VALIDATION_ERROR"
	CodeBudgetMismatch         Code = "BUDGET_MISMATCH"
	CodeInvalidStateTransition Code = "INVALID_STATE_TRANSITION"
	CodeOverconsumption        Code = "OVERCONSUMPTION"
	CodePhaseTerminated        Code = "PHASE_TERMINATED"
	CodeNotFound               Code = "NOT_FOUND"
	CodeConflict               Code = "CONFLICT"
	CodeUnauthorized           Code = "UNAUTHORIZED"
	CodeForbidden              Code = "FORBIDDEN"
	CodeIdempotency            Code = "IDEMPOTENCY_KEY_REUSED"
	CodeRateLimit              Code = "RATE_LIMITED"
	CodeInternal               Code = "INTERNAL_ERROR"
	CodeDependency             Code = "DEPENDENCY_ERROR"
)

// Metadata is the HTTP contract for a code.
type Metadata struct {
	HTTPStatus     int
	Retryable      bool
	PublicMessage  string
	DetailsAllowed bool
	// ExposeMessage lets the error's own message replace PublicMessage.
	ExposeMessage bool
}

type trait uint8

const (
	retryable trait = 1 << iota
	withDetails
	exposed
)

func describe(status int, public string, traits trait) Metadata {
	return Metadata{
		HTTPStatus:     status,
		PublicMessage:  public,
		Retryable:      traits&retryable != 0,
		DetailsAllowed: traits&withDetails != 0,
		ExposeMessage:  traits&exposed != 0,
	}
}

var metadataByCode = map[Code]Metadata{
	CodeValidation:             describe(http.StatusBadRequest, "validation failed", exposed|withDetails),
	CodeBudgetMismatch:         describe(http.StatusUnprocessableEntity, "requested total does not match the allocated budget", exposed|withDetails),
	CodeInvalidStateTransition: describe(http.StatusConflict, "action not allowed in the current status", exposed|withDetails),
	CodeOverconsumption:        describe(http.StatusUnprocessableEntity, "ingredient usage exceeds the requested quantity", exposed|withDetails),
	CodePhaseTerminated:        describe(http.StatusConflict, "phase is closed", exposed|withDetails),
	CodeNotFound:               describe(http.StatusNotFound, "resource not found", exposed),
	CodeConflict:               describe(http.StatusConflict, "concurrent update detected", exposed|retryable),
	CodeUnauthorized:           describe(http.StatusUnauthorized, "authentication required", exposed),
	CodeForbidden:              describe(http.StatusForbidden, "access denied", exposed),
	CodeIdempotency:            describe(http.StatusConflict, "idempotency key reused", exposed|withDetails),
	CodeRateLimit:              describe(http.StatusTooManyRequests, "rate limit exceeded", exposed|retryable),
	CodeInternal:               describe(http.StatusInternalServerError, "internal server error", retryable),
	CodeDependency:             describe(http.StatusServiceUnavailable, "dependency unavailable", retryable|withDetails),
}

func MetadataFor(code Code) Metadata {
	if meta, ok := metadataByCode[code]; ok {
		return meta
	}
	return metadataByCode[CodeInternal]
}

type Error struct {
	code    Code
	message string
	details any
	cause   error
}

func New(code Code, message string) *Error {
	return &Error{code: code, message: message}
}

func Newf(code Code, format string, args ...any) *Error {
	return &Error{code: code, message: fmt.Sprintf(format, args...)}
}

func Wrap(code Code, err error, message string) *Error {
	if err == nil {
		return New(code, message)
	}
	return &Error{code: code, message: message, cause: err}
}

func (e *Error) Code() Code {
	if e == nil {
		return CodeInternal
	}
	return e.code
}

func (e *Error) Message() string {
	if e == nil {
		return ""
	}
	return e.message
}

func (e *Error) Details() any {
	if e == nil {
		return nil
	}
	return e.details
}

func (e *Error) WithDetails(details any) *Error {
	if e == nil {
		return nil
	}
	e.details = details
	return e
}

func (e *Error) Error() string {
	if e == nil {
		return ""
	}
	if e.cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.code, e.message, e.cause)
	}
	return fmt.Sprintf("%s: %s", e.code, e.message)
}

func (e *Error) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.cause
}

func As(err error) *Error {
	if err == nil {
		return nil
	}
	var typed *Error
	if stdErrors.As(err, &typed) {
		return typed
	}
	return nil
}

// IsCode reports whether err carries the given code anywhere in its chain.
func IsCode(err error, code Code) bool {
	typed := As(err)
	return typed != nil && typed.Code() == code
}

// CodeOf returns the code of err, defaulting to CodeInternal for untyped errors.
func CodeOf(err error) Code {
	if typed := As(err); typed != nil {
		return typed.Code()
	}
	return CodeInternal
}
