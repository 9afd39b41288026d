package inference

import (
	"errors"
	"fmt"
	"net/http"
)

var (
	ErrNoAPIKey = errors.New("inference: API key required")

	// ErrNoMessages means the request had nothing for the caller to answer.
	ErrNoMessages = errors.New("inference: no messages")

	ErrProviderUnavailable = errors.New("inference: provider unavailable")
)

// APIError is a non-2xx answer from a generation API.
type APIError struct {
	Provider   string
	StatusCode int
	Code       string
	Message    string
}

func (e *APIError) Error() string {
	if e.Code == "" {
		return fmt.Sprintf("inference [%s]: %d: %s", e.Provider, e.StatusCode, e.Message)
	}
	return fmt.Sprintf("inference [%s]: %d %s: %s", e.Provider, e.StatusCode, e.Code, e.Message)
}

func (e *APIError) IsRateLimited() bool  { return e.StatusCode == http.StatusTooManyRequests }
func (e *APIError) IsUnauthorized() bool { return e.StatusCode == http.StatusUnauthorized }
func (e *APIError) IsServerError() bool  { return e.StatusCode/100 == 5 }

// IsRetryable reports whether the same request may succeed later.
// A turn is never retried, but the HTTP client retries within its deadline.
func (e *APIError) IsRetryable() bool {
	return e.IsRateLimited() || e.IsServerError()
}

// ProviderError tags an error with the provider that produced it.
type ProviderError struct {
	Provider string
	Err      error
}

func (e *ProviderError) Error() string { return "inference [" + e.Provider + "]: " + e.Err.Error() }
func (e *ProviderError) Unwrap() error { return e.Err }

// WrapError tags err with provider. A nil err stays nil.
func WrapError(provider string, err error) error {
	if err == nil {
		return nil
	}
	return &ProviderError{Provider: provider, Err: err}
}
