// Package errors carries the typed error codes shared by services and the
// HTTP layer. Handlers never pick status codes themselves; they return an
// *Error and responses.WriteError maps the code.
package errors

import (
	stdErrors "errors"
	"fmt"
	"net/http"
)

type Code string

const (
	CodeValidation    Code = "VALIDATION_ERROR"
	CodeUnauthorized  Code = "UNAUTHORIZED"
	CodeForbidden     Code = "FORBIDDEN"
	CodeNotFound      Code = "NOT_FOUND"
	CodeConflict      Code = "CONFLICT"
	CodeStateConflict Code = "STATE_CONFLICT"
	CodeIdempotency   Code = "IDEMPOTENCY_KEY_REUSED"
	CodeRateLimit     Code = "RATE_LIMIT_EXCEEDED"
	CodeInternal      Code = "INTERNAL_ERROR"
	CodeDependency    Code = "DEPENDENCY_ERROR"

	// Checkout failures. Each one names the step that stopped the split.
	CodeInvalidLine            Code = "INVALID_LINE"
	CodeInvalidDiscount        Code = "INVALID_DISCOUNT"
	CodePaymentOrderCreation   Code = "PAYMENT_ORDER_CREATION_FAILED"
	CodeSellerOrderPersistence Code = "SELLER_ORDER_PERSISTENCE_FAILED"
)

// Metadata is how a code surfaces over HTTP.
type Metadata struct {
	HTTPStatus     int
	Retryable      bool
	PublicMessage  string
	DetailsAllowed bool
}

const (
	hideDetails = false
	showDetails = true
)

func meta(status int, public string, retryable, details bool) Metadata {
	return Metadata{HTTPStatus: status, Retryable: retryable, PublicMessage: public, DetailsAllowed: details}
}

var metadataByCode = map[Code]Metadata{
	CodeValidation:    meta(http.StatusBadRequest, "validation failed", false, showDetails),
	CodeUnauthorized:  meta(http.StatusUnauthorized, "authentication required", false, hideDetails),
	CodeForbidden:     meta(http.StatusForbidden, "access denied", false, hideDetails),
	CodeNotFound:      meta(http.StatusNotFound, "resource not found", false, hideDetails),
	CodeConflict:      meta(http.StatusConflict, "conflict detected", false, hideDetails),
	CodeStateConflict: meta(http.StatusUnprocessableEntity, "state transition disallowed", false, showDetails),
	CodeIdempotency:   meta(http.StatusConflict, "idempotency key reused", false, showDetails),
	CodeRateLimit:     meta(http.StatusTooManyRequests, "rate limit exceeded", false, hideDetails),
	CodeInternal:      meta(http.StatusInternalServerError, "internal server error", true, hideDetails),
	CodeDependency:    meta(http.StatusServiceUnavailable, "dependency unavailable", true, showDetails),

	CodeInvalidLine:            meta(http.StatusUnprocessableEntity, "cart line could not be priced", false, showDetails),
	CodeInvalidDiscount:        meta(http.StatusUnprocessableEntity, "discount is invalid", false, showDetails),
	CodePaymentOrderCreation:   meta(http.StatusBadGateway, "payment order could not be created", true, showDetails),
	CodeSellerOrderPersistence: meta(http.StatusInternalServerError, "seller orders could not be saved", false, showDetails),
}

// MetadataFor falls back to CodeInternal for unknown codes.
func MetadataFor(code Code) Metadata {
	if m, ok := metadataByCode[code]; ok {
		return m
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
	return New(code, fmt.Sprintf(format, args...))
}

// Wrap keeps err reachable through errors.Is and errors.As.
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
	switch {
	case e == nil:
		return ""
	case e.cause != nil:
		return fmt.Sprintf("%s: %s: %v", e.code, e.message, e.cause)
	default:
		return fmt.Sprintf("%s: %s", e.code, e.message)
	}
}

func (e *Error) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.cause
}

// As returns the outermost *Error in err's chain.
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

// IsCode reports whether the outermost *Error in err's chain carries code.
func IsCode(err error, code Code) bool {
	typed := As(err)
	return typed != nil && typed.code == code
}

// Retryable reports whether a caller may retry after err. Untyped errors are
// treated as internal and therefore retryable.
func Retryable(err error) bool {
	if err == nil {
		return false
	}
	typed := As(err)
	if typed == nil {
		return MetadataFor(CodeInternal).Retryable
	}
	return MetadataFor(typed.code).Retryable
}
