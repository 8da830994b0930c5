package domain

import (
	"errors"
	"fmt"
	"net/http"

	pkgerrors "github.com/pkg/errors"
)

// Sentinel errors for storage-level discrimination.
// Repositories wrap these; services translate them into *Error values before
// they reach the transport layer.
var (
	ErrNotFound  = errors.New("not found")
	ErrConflict  = errors.New("conflict")
	ErrBadCursor = errors.New("bad pagination cursor")
)

// Kind classifies an application error.
type Kind int

const (
	KindInternal Kind = iota
	KindBadRequest
	KindUnauthorized
	KindForbidden
	KindNotFound
	KindExpired
	KindInvalid
	KindRateLimited
	KindUnavailable
)

func (k Kind) String() string {
	switch k {
	case KindBadRequest:
		return "bad_request"
	case KindUnauthorized:
		return "unauthorized"
	case KindForbidden:
		return "forbidden"
	case KindNotFound:
		return "not_found"
	case KindExpired:
		return "expired"
	case KindInvalid:
		return "invalid"
	case KindRateLimited:
		return "rate_limited"
	case KindUnavailable:
		return "unavailable"
	default:
		return "internal"
	}
}

// Status is the HTTP status a kind maps to when the error does not override it.
func (k Kind) Status() int {
	switch k {
	case KindBadRequest, KindExpired, KindInvalid:
		return http.StatusBadRequest
	case KindUnauthorized:
		return http.StatusUnauthorized
	case KindForbidden:
		return http.StatusForbidden
	case KindNotFound:
		return http.StatusNotFound
	case KindRateLimited:
		return http.StatusTooManyRequests
	case KindUnavailable:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// Error is the closed error type every service returns to the transport layer.
type Error struct {
	Kind    Kind
	Status  int
	Message string
	// RetryAfterMinutes is set for KindRateLimited.
	RetryAfterMinutes int

	cause error
}

// NewError builds an *Error with the kind's default status and a captured stack.
func NewError(kind Kind, msg string) *Error {
	return &Error{Kind: kind, Status: kind.Status(), Message: msg, cause: pkgerrors.New(msg)}
}

// WrapError attaches kind and public message to an underlying cause.
func WrapError(kind Kind, msg string, cause error) *Error {
	if cause == nil {
		return NewError(kind, msg)
	}
	return &Error{Kind: kind, Status: kind.Status(), Message: msg, cause: pkgerrors.WithStack(cause)}
}

// RateLimited builds a KindRateLimited error carrying the remaining block window.
func RateLimited(msg string, minutes int) *Error {
	e := NewError(KindRateLimited, msg)
	e.RetryAfterMinutes = minutes
	return e
}

// WithStatus overrides the HTTP status, e.g. an absent OTP record answers 400, not 404.
func (e *Error) WithStatus(status int) *Error {
	e.Status = status
	return e
}

func (e *Error) Error() string {
	if e.cause != nil && e.cause.Error() != e.Message {
		return fmt.Sprintf("%s: %v", e.Message, e.cause)
	}
	return e.Message
}

func (e *Error) Unwrap() error { return e.cause }

// Stack renders the captured stack trace.
func (e *Error) Stack() string {
	if e.cause == nil {
		return ""
	}
	return fmt.Sprintf("%+v", e.cause)
}

// AsError extracts an *Error from err's chain.
func AsError(err error) (*Error, bool) {
	var e *Error
	if errors.As(err, &e) {
		return e, true
	}
	return nil, false
}

// IsKind reports whether err carries an *Error of the given kind.
func IsKind(err error, kind Kind) bool {
	e, ok := AsError(err)
	return ok && e.Kind == kind
}
