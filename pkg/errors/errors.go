// Package errors carries the stable error codes every ledger operation fails
// with, plus the HTTP mapping the API uses to render them.
package errors

import (
	stdErrors "errors"
	"fmt"
	"net/http"
)

// Code is the machine-readable kind of a failure. Codes are part of the API
// contract and never change once published.
type Code string

const (
	CodeValidation    Code = "VALIDATION_ERROR"
	CodeNotFound      Code = "NOT_FOUND"
	CodeConflict      Code = "CONFLICT"
	CodeStateConflict Code = "STATE_CONFLICT"
	CodeIdempotency   Code = "IDEMPOTENCY_KEY_REUSED"
	CodeInternal      Code = "INTERNAL_ERROR"
	CodeDependency    Code = "DEPENDENCY_ERROR"

	CodeInvalidTransition Code = "INVALID_TRANSITION"
	CodeAlreadyConverted  Code = "ALREADY_CONVERTED"
	CodeNotAccepted       Code = "NOT_ACCEPTED"
	CodeInsufficientStock Code = "INSUFFICIENT_STOCK"
	CodeNegativeBalance   Code = "NEGATIVE_BALANCE"
	CodeDuplicateNumber   Code = "DUPLICATE_NUMBER"
	CodeRetryableConflict Code = "RETRYABLE_CONFLICT"
)

// Metadata is how a code is presented to API callers.
type Metadata struct {
	HTTPStatus     int
	Retryable      bool
	PublicMessage  string
	DetailsAllowed bool
}

const (
	retry   = true
	details = true
)

var metadataByCode = map[Code]Metadata{
	CodeValidation:    {http.StatusBadRequest, false, "validation failed", details},
	CodeNotFound:      {http.StatusNotFound, false, "resource not found", details},
	CodeConflict:      {http.StatusConflict, false, "conflict detected", false},
	CodeStateConflict: {http.StatusUnprocessableEntity, false, "state transition disallowed", details},
	CodeIdempotency:   {http.StatusConflict, false, "idempotency key reused", details},
	CodeInternal:      {http.StatusInternalServerError, retry, "internal server error", false},
	CodeDependency:    {http.StatusServiceUnavailable, retry, "dependency unavailable", details},

	CodeInvalidTransition: {http.StatusUnprocessableEntity, false, "document status transition not allowed", details},
	CodeAlreadyConverted:  {http.StatusConflict, false, "quote already converted", details},
	CodeNotAccepted:       {http.StatusUnprocessableEntity, false, "quote is not accepted", details},
	CodeInsufficientStock: {http.StatusConflict, false, "insufficient stock", details},
	CodeNegativeBalance:   {http.StatusConflict, false, "points balance cannot go negative", details},
	// A duplicate number means the sequence is corrupt, not that the caller erred.
	CodeDuplicateNumber:   {http.StatusInternalServerError, false, "document number already issued", details},
	CodeRetryableConflict: {http.StatusConflict, retry, "concurrent update, retry the request", false},
}

// MetadataFor falls back to the internal error presentation for unknown codes.
func MetadataFor(code Code) Metadata {
	if meta, ok := metadataByCode[code]; ok {
		return meta
	}
	return metadataByCode[CodeInternal]
}

// Error is a coded failure with an optional cause and client-safe details.
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
	return New(code, fmt.Sprintf(format, args...))
}

// Wrap keeps err reachable through errors.Is and errors.As.
func Wrap(code Code, err error, message string) *Error {
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

// WithDetails attaches details and returns e for chaining.
func (e *Error) WithDetails(details any) *Error {
	if e != nil {
		e.details = details
	}
	return e
}

// Retryable reports whether the caller may repeat the operation unchanged.
func (e *Error) Retryable() bool {
	return MetadataFor(e.Code()).Retryable
}

func (e *Error) Error() string {
	if e == nil {
		return ""
	}
	if e.cause == nil {
		return fmt.Sprintf("%s: %s", e.code, e.message)
	}
	return fmt.Sprintf("%s: %s: %v", e.code, e.message, e.cause)
}

func (e *Error) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.cause
}

// Is matches any *Error with the same code, so sentinel values like
// New(CodeNotFound, "") work with errors.Is.
func (e *Error) Is(target error) bool {
	var other *Error
	if !stdErrors.As(target, &other) || e == nil || other == nil {
		return false
	}
	return e.code == other.code
}

// As returns the outermost *Error in err's chain.
func As(err error) *Error {
	var typed *Error
	if stdErrors.As(err, &typed) {
		return typed
	}
	return nil
}

// IsCode reports whether err carries the given code anywhere in its chain.
func IsCode(err error, code Code) bool {
	for err != nil {
		typed := As(err)
		if typed == nil {
			return false
		}
		if typed.code == code {
			return true
		}
		err = typed.cause
	}
	return false
}
