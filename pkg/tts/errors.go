package tts

import (
	"errors"
	"fmt"
	"net/http"
)

var (
	ErrNoAPIKey   = errors.New("tts: API key required")
	ErrNoVoiceID  = errors.New("tts: voice ID required")
	ErrEmptyText  = errors.New("tts: empty text")
	ErrEmptyAudio = errors.New("tts: empty audio")

	// ErrNoAudioURL means Murf answered 200 without an audio file or payload.
	ErrNoAudioURL = errors.New("tts: response missing audio file")

	ErrProviderUnavailable = errors.New("tts: provider unavailable")
)

// APIError is a non-2xx answer from a synthesis API.
type APIError struct {
	Provider   string
	StatusCode int
	Code       string // provider error code, may be empty
	Message    string
}

func (e *APIError) Error() string {
	status := fmt.Sprint(e.StatusCode)
	if e.Code != "" {
		status += " " + e.Code
	}
	return fmt.Sprintf("tts [%s]: %s: %s", e.Provider, status, e.Message)
}

// IsRateLimited reports HTTP 429.
func (e *APIError) IsRateLimited() bool { return e.StatusCode == http.StatusTooManyRequests }

// IsUnauthorized reports a rejected key.
func (e *APIError) IsUnauthorized() bool { return e.StatusCode == http.StatusUnauthorized }

// IsServerError reports HTTP 5xx.
func (e *APIError) IsServerError() bool { return e.StatusCode/100 == 5 }

// ProviderError tags an error with the provider that produced it.
type ProviderError struct {
	Provider string
	Err      error
}

func (e *ProviderError) Error() string { return "tts [" + e.Provider + "]: " + e.Err.Error() }
func (e *ProviderError) Unwrap() error { return e.Err }

// WrapError tags err with provider. A nil err stays nil.
func WrapError(provider string, err error) error {
	if err == nil {
		return nil
	}
	return &ProviderError{Provider: provider, Err: err}
}
