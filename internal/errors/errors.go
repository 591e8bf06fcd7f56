// Package errors provides the error kinds shared by the feed sync engine.
// Backend failures are classified once, at the client boundary, so every
// component can decide between rollback, inline notice, or silent retry
// without re-inspecting HTTP details.
package errors

import (
	stderrors "errors"
	"fmt"
	"net/http"
)

// Kind classifies an error for propagation decisions.
type Kind string

const (
	// Backend outcomes
	KindNetwork      Kind = "NETWORK_FAILURE"     // Request could not complete
	KindUnauthorized Kind = "UNAUTHORIZED"        // Credential missing, expired, or rejected (401)
	KindValidation   Kind = "VALIDATION_REJECTED" // 4xx with a server-provided message
	KindServer       Kind = "SERVER_ERROR"        // 5xx

	// Local control API outcomes
	KindBadRequest  Kind = "BAD_REQUEST" // Malformed control request
	KindNotFound    Kind = "NOT_FOUND"   // Unknown item or route
	KindUnavailable Kind = "UNAVAILABLE" // Engine shut down
	KindInternal    Kind = "INTERNAL"    // Anything unclassified
)

// Sentinels usable with errors.Is; matching is by kind only.
var (
	ErrNetwork      = &Error{Kind: KindNetwork}
	ErrUnauthorized = &Error{Kind: KindUnauthorized}
	ErrValidation   = &Error{Kind: KindValidation}
	ErrServer       = &Error{Kind: KindServer}
	ErrNotFound     = &Error{Kind: KindNotFound}
	ErrUnavailable  = &Error{Kind: KindUnavailable}
)

// Error is a classified failure.
type Error struct {
	Kind          Kind   `json:"code"`
	Message       string `json:"message"`
	CorrelationID string `json:"correlationId,omitempty"`
	Status        int    `json:"-"` // Upstream HTTP status, zero when none was received
	Err           error  `json:"-"`
}

// New creates an Error of the given kind.
func New(kind Kind, message string) *Error {
	return &Error{Kind: kind, Message: message}
}

// Wrap creates an Error of the given kind around a cause.
func Wrap(kind Kind, message string, err error) *Error {
	return &Error{Kind: kind, Message: message, Err: err}
}

// FromStatus classifies a non-2xx backend response.
// The message should be the backend's {error} text when one was sent.
func FromStatus(status int, message, correlationID string) *Error {
	e := &Error{
		Message:       message,
		CorrelationID: correlationID,
		Status:        status,
	}
	switch {
	case status == http.StatusUnauthorized:
		e.Kind = KindUnauthorized
	case status >= 400 && status < 500:
		e.Kind = KindValidation
	default:
		e.Kind = KindServer
	}
	if e.Message == "" {
		e.Message = http.StatusText(status)
	}
	return e
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

// Unwrap returns the wrapped cause.
func (e *Error) Unwrap() error {
	return e.Err
}

// Is reports whether target is an *Error of the same kind.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Kind == e.Kind
}

// KindOf returns the kind of err, or KindInternal for unclassified errors.
func KindOf(err error) Kind {
	var e *Error
	if stderrors.As(err, &e) {
		return e.Kind
	}
	return KindInternal
}

// MessageOf returns a user-facing message for err.
func MessageOf(err error) string {
	if err == nil {
		return ""
	}
	var e *Error
	if stderrors.As(err, &e) && e.Message != "" {
		return e.Message
	}
	return err.Error()
}

// IsUnauthorized reports whether err is an authentication failure.
func IsUnauthorized(err error) bool {
	return stderrors.Is(err, ErrUnauthorized)
}

// HTTPStatus maps a kind to the status the local control API answers with.
func HTTPStatus(kind Kind) int {
	switch kind {
	case KindBadRequest, KindValidation:
		return http.StatusBadRequest
	case KindUnauthorized:
		return http.StatusUnauthorized
	case KindNotFound:
		return http.StatusNotFound
	case KindNetwork:
		return http.StatusBadGateway
	case KindServer:
		return http.StatusBadGateway
	case KindUnavailable:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}
