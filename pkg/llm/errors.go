package llm

import (
	"context"
	"errors"
	"fmt"
	"net"
	"time"
)

// ErrUnknownProvider indicates a provider name that no adapter implements.
var ErrUnknownProvider = errors.New("unknown provider")

// ErrNoProviderAvailable indicates every backend in the fallback chain
// failed its availability probe.
var ErrNoProviderAvailable = errors.New("no provider available")

// AuthError indicates absent or rejected credentials.
// Never retried against the same backend; the fallback chain moves on.
type AuthError struct {
	Provider string
	Message  string
}

// Error implements the error interface.
func (e *AuthError) Error() string {
	return fmt.Sprintf("%s: authentication failed: %s", e.Provider, e.Message)
}

// RateLimitError indicates backend throttling.
type RateLimitError struct {
	Provider string
	// RetryAfter is the backend's hint, zero when not supplied.
	RetryAfter time.Duration
}

// Error implements the error interface.
func (e *RateLimitError) Error() string {
	if e.RetryAfter > 0 {
		return fmt.Sprintf("%s: rate limited, retry after %s", e.Provider, e.RetryAfter)
	}
	return fmt.Sprintf("%s: rate limited", e.Provider)
}

// ModelNotFoundError indicates the requested model id is unknown to the
// backend. This is a configuration defect and is never retried.
type ModelNotFoundError struct {
	Provider string
	Model    string
}

// Error implements the error interface.
func (e *ModelNotFoundError) Error() string {
	return fmt.Sprintf("%s: model not found: %s", e.Provider, e.Model)
}

// ProviderError is the generic backend failure.
// Retryable is true for 5xx-class failures and transport timeouts; the
// caller retries by moving to the next backend in the chain, never the
// same backend within one turn.
type ProviderError struct {
	Provider   string
	StatusCode int
	Message    string
	Retryable  bool
}

// Error implements the error interface.
func (e *ProviderError) Error() string {
	if e.StatusCode > 0 {
		return fmt.Sprintf("%s: HTTP %d: %s", e.Provider, e.StatusCode, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Provider, e.Message)
}

// IsRetryable reports whether trying another backend might help.
func IsRetryable(err error) bool {
	var provErr *ProviderError
	if errors.As(err, &provErr) {
		return provErr.Retryable
	}
	var rateErr *RateLimitError
	return errors.As(err, &rateErr)
}

// errorFromStatus maps a backend HTTP status onto the shared taxonomy.
func errorFromStatus(provider string, status int, body, model string, retryAfter time.Duration) error {
	switch {
	case status == 401 || status == 403:
		return &AuthError{Provider: provider, Message: body}
	case status == 429:
		return &RateLimitError{Provider: provider, RetryAfter: retryAfter}
	case status == 404:
		return &ModelNotFoundError{Provider: provider, Model: model}
	default:
		return &ProviderError{
			Provider:   provider,
			StatusCode: status,
			Message:    body,
			Retryable:  status >= 500,
		}
	}
}

// transportError wraps a transport-level failure (connection refused,
// timeout). Timeouts and context deadlines are retryable.
func transportError(provider string, err error) error {
	retryable := false
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		retryable = true
	}
	if errors.Is(err, context.DeadlineExceeded) {
		retryable = true
	}
	return &ProviderError{
		Provider:  provider,
		Message:   err.Error(),
		Retryable: retryable,
	}
}
