// Package apperr is the canonical failure taxonomy. Domain services return
// these typed failures; the HTTP adapter is the only layer that maps them to
// status codes, so no component below it ever sees a wire status.
package apperr

import (
	"errors"
	"fmt"
	"net/http"
)

// Kind enumerates the failure classes the pipeline can anticipate.
type Kind int

const (
	ValidationFailed Kind = iota
	BadCredentials
	AuthRequired
	Forbidden
	NotFound
	Conflict
	FeatureLocked
	QuotaExceeded
	RateLimited
	PayloadTooLarge
	ServiceUnavailable
	Internal
)

// Error carries a kind, a stable machine code and a human message.
type Error struct {
	Kind    Kind
	Code    string // stable code for clients, e.g. "TRIAL_ALREADY_USED"
	Message string
	err     error
}

func (e *Error) Error() string {
	if e.err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.err)
	}
	return e.Message
}

func (e *Error) Unwrap() error { return e.err }

// New builds a typed failure.
func New(kind Kind, code, message string) *Error {
	return &Error{Kind: kind, Code: code, Message: message}
}

// Wrap attaches an underlying cause without changing the client-visible parts.
func Wrap(kind Kind, code, message string, err error) *Error {
	return &Error{Kind: kind, Code: code, Message: message, err: err}
}

// KindOf extracts the kind of err, or Internal for anything untyped.
func KindOf(err error) Kind {
	var ae *Error
	if errors.As(err, &ae) {
		return ae.Kind
	}
	return Internal
}

// AsError returns the typed failure inside err, or a generic Internal one.
// The Internal message deliberately carries no implementation detail.
func AsError(err error) *Error {
	var ae *Error
	if errors.As(err, &ae) {
		return ae
	}
	return &Error{Kind: Internal, Code: "INTERNAL_ERROR", Message: "An error occurred. Please try again.", err: err}
}

// HTTPStatus maps a kind to its wire status.
func HTTPStatus(kind Kind) int {
	switch kind {
	case ValidationFailed:
		return http.StatusBadRequest
	case BadCredentials, AuthRequired:
		return http.StatusUnauthorized
	case FeatureLocked:
		return http.StatusPaymentRequired
	case Forbidden:
		return http.StatusForbidden
	case NotFound:
		return http.StatusNotFound
	case Conflict:
		return http.StatusConflict
	case PayloadTooLarge:
		return http.StatusRequestEntityTooLarge
	case QuotaExceeded, RateLimited:
		return http.StatusTooManyRequests
	case ServiceUnavailable:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}
