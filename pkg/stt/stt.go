// Package stt streams microphone audio to a live speech recognition
// service and emits transcript fragments.
package stt

import (
	"context"
	"errors"
)

// Errors returned by recognition channels and token sources.
var (
	ErrNoAPIKey      = errors.New("stt: API key is required")
	ErrNoProjectID   = errors.New("stt: project ID is required for ephemeral keys")
	ErrChannelClosed = errors.New("stt: recognition channel closed")
	ErrEmptyKey      = errors.New("stt: token endpoint returned an empty key")
)

// Event is one transcript fragment. Non-final events may be revised later.
type Event struct {
	Text  string
	Final bool
}

// Credential authenticates a recognition channel.
type Credential struct {
	Key string `json:"key"`

	// Ephemeral is false when the long-lived account key is handed out.
	Ephemeral bool `json:"-"`
}

// Options configures a live recognition channel.
type Options struct {
	Model          string
	Language       string
	SampleRate     int
	Channels       int
	SmartFormat    bool
	InterimResults bool
}

// DefaultOptions matches 16kHz mono PCM16 capture.
func DefaultOptions() Options {
	return Options{
		Model:          "nova-2",
		Language:       "en-IN",
		SampleRate:     16000,
		Channels:       1,
		SmartFormat:    true,
		InterimResults: true,
	}
}

// Channel is an open, bidirectional recognition stream.
type Channel interface {
	// Send pushes raw PCM16 audio.
	Send(audio []byte) error

	// Events delivers fragments. It is closed when the stream ends.
	Events() <-chan Event

	// Err delivers at most one error if the stream ends without Close.
	Err() <-chan error

	// Close ends the stream. Safe to call more than once.
	Close() error
}

// Provider opens recognition channels.
type Provider interface {
	Open(ctx context.Context, cred Credential, opts Options) (Channel, error)
}

// TokenSource issues credentials for opening channels.
type TokenSource interface {
	Token(ctx context.Context) (Credential, error)
}
