// Package noteerr defines the error kinds shared across the noteum core.
//
// Every failure that can cross a package boundary is tagged with a Kind so
// the HTTP layer can map it to a deterministic status code and a localized
// message without inspecting error strings.
package noteerr

import (
	"errors"
	"fmt"
	"net/http"
)

// Kind classifies an error for transport mapping.
type Kind string

const (
	// KindInvalidInput means the request failed validation.
	KindInvalidInput Kind = "invalid_input"

	// KindNotFound means a note or other resource is missing.
	KindNotFound Kind = "not_found"

	// KindPermissionDenied means an access control check failed.
	KindPermissionDenied Kind = "permission_denied"

	// KindProviderFailure means an upstream AI model call failed.
	KindProviderFailure Kind = "provider_failure"

	// KindEmbeddingFailure means the embedding backend failed.
	KindEmbeddingFailure Kind = "embedding_failure"

	// KindRouterFailure means the provider registry is empty or the
	// requested model is unknown.
	KindRouterFailure Kind = "router_failure"

	// KindConflictBusy means another job (sync or index) is already running.
	KindConflictBusy Kind = "conflict_busy"

	// KindUnauthorized means the bearer token is missing or invalid.
	KindUnauthorized Kind = "unauthorized"

	// KindInternal means an unexpected failure; details are never leaked.
	KindInternal Kind = "internal"
)

// Error is the tagged error carried through the core.
type Error struct {
	Kind       Kind
	Message    string
	Provider   string // provider name for provider/router failures
	StatusCode int    // upstream HTTP status when known
	Cause      error
}

// New creates an error of the given kind.
func New(kind Kind, message string) *Error {
	return &Error{Kind: kind, Message: message}
}

// Newf creates an error of the given kind with a formatted message.
func Newf(kind Kind, format string, args ...any) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

// Wrap creates an error of the given kind wrapping an underlying cause.
func Wrap(kind Kind, message string, cause error) *Error {
	return &Error{Kind: kind, Message: message, Cause: cause}
}

// WithProvider attaches the provider name. Returns the receiver for chaining.
func (e *Error) WithProvider(provider string) *Error {
	e.Provider = provider
	return e
}

// WithStatus attaches the upstream HTTP status code.
func (e *Error) WithStatus(code int) *Error {
	e.StatusCode = code
	return e
}

func (e *Error) Error() string {
	msg := fmt.Sprintf("[%s] %s", e.Kind, e.Message)
	if e.Provider != "" {
		msg = fmt.Sprintf("[%s] %s: %s", e.Kind, e.Provider, e.Message)
	}
	if e.Cause != nil {
		msg = fmt.Sprintf("%s: %v", msg, e.Cause)
	}
	return msg
}

func (e *Error) Unwrap() error {
	return e.Cause
}

// Is matches errors by kind, so errors.Is(err, noteerr.New(kind, ""))
// works regardless of message.
func (e *Error) Is(target error) bool {
	var t *Error
	if errors.As(target, &t) {
		return e.Kind == t.Kind
	}
	return false
}

// HTTPStatus returns the status code this error maps to on the wire.
func (e *Error) HTTPStatus() int {
	return statusFor(e.Kind)
}

// KindOf extracts the kind from any error chain. Untagged errors are
// classified as internal.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindInternal
}

// IsKind reports whether err carries the given kind.
func IsKind(err error, kind Kind) bool {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind == kind
	}
	return false
}

// HTTPStatus returns the status code for any error chain.
func HTTPStatus(err error) int {
	return statusFor(KindOf(err))
}

func statusFor(kind Kind) int {
	switch kind {
	case KindInvalidInput:
		return http.StatusUnprocessableEntity
	case KindNotFound:
		return http.StatusNotFound
	case KindPermissionDenied:
		return http.StatusForbidden
	case KindProviderFailure, KindEmbeddingFailure, KindRouterFailure:
		return http.StatusBadGateway
	case KindConflictBusy:
		// Busy jobs answer 200 with a status payload, not an error status.
		return http.StatusOK
	case KindUnauthorized:
		return http.StatusUnauthorized
	default:
		return http.StatusInternalServerError
	}
}
