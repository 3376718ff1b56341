package provider

import (
	"errors"
	"fmt"
	"net/http"
)

// Kind classifies provider failures so the HTTP layer can branch
// deterministically instead of inspecting error strings.
type Kind string

const (
	// KindUnavailable covers network failures and timeouts reaching the
	// provider. Mapped to 503 by callers.
	KindUnavailable Kind = "unavailable"
	// KindRejected covers 4xx responses from the provider (bad credential,
	// content policy). The provider's status code is preserved.
	KindRejected Kind = "rejected"
)

// Error is a typed provider failure. Message is safe to log but must not be
// forwarded verbatim to clients.
type Error struct {
	Kind    Kind
	Status  int
	Message string
}

func (e *Error) Error() string {
	return fmt.Sprintf("provider %s: %s", e.Kind, e.Message)
}

// Unavailable wraps a transport-level failure.
func Unavailable(err error) *Error {
	return &Error{Kind: KindUnavailable, Status: http.StatusServiceUnavailable, Message: err.Error()}
}

// Rejected wraps a provider-side rejection with its status code.
func Rejected(status int, message string) *Error {
	return &Error{Kind: KindRejected, Status: status, Message: message}
}

// AsError extracts a *Error from err, if present.
func AsError(err error) (*Error, bool) {
	var pe *Error
	if errors.As(err, &pe) {
		return pe, true
	}
	return nil, false
}
