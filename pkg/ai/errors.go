package ai

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
)

// APIError is a non-2xx reply from a provider. Message is the provider's own
// text and must never be shown to end users.
type APIError struct {
	Provider   string
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("%s api error: status %d", e.Provider, e.StatusCode)
	}
	return fmt.Sprintf("%s api error (%d): %s", e.Provider, e.StatusCode, e.Message)
}

// RateLimited reports a provider quota rejection.
func (e *APIError) RateLimited() bool { return e.StatusCode == http.StatusTooManyRequests }

// Unauthorized reports a provider credential or permission failure.
func (e *APIError) Unauthorized() bool {
	return e.StatusCode == http.StatusUnauthorized || e.StatusCode == http.StatusForbidden
}

// Transient reports failures worth retrying: quota and server errors.
func (e *APIError) Transient() bool {
	return e.RateLimited() || e.StatusCode >= http.StatusInternalServerError
}

// ErrEmptyResponse is returned when a provider answers without any content.
var ErrEmptyResponse = errors.New("empty response from provider")

// IsTransient reports whether err is worth one more attempt: provider 429/5xx
// or a network failure. Caller cancellation never is.
func IsTransient(err error) bool {
	if err == nil || errors.Is(err, context.Canceled) {
		return false
	}
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.Transient()
	}
	var netErr net.Error
	return errors.As(err, &netErr)
}

// StatusOf extracts the provider status code, or 0 when err is not an APIError.
func StatusOf(err error) int {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.StatusCode
	}
	return 0
}
