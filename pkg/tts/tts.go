// Package tts provides a unified interface for text-to-speech providers.
//
// Murf is the primary voice for the caller. ElevenLabs is available as an
// alternative. Both implement Provider, so the orchestrator never knows
// which vendor produced the audio.
//
// Example usage:
//
//	provider, _ := tts.NewMurf(
//	    tts.WithAPIKey(os.Getenv("MURF_API_KEY")),
//	    tts.WithVoice("en-IN-isha"),
//	)
//	defer provider.Close()
//
//	result, _ := provider.Synthesize(ctx, tts.Request{Text: "Help me!", Rate: 50, Pitch: 30})
//	// result.Audio contains MP3 or WAV bytes
package tts

import (
	"context"
	"strings"
	"time"
)

// Provider defines the TTS provider interface.
type Provider interface {
	// Synthesize converts one utterance to a complete audio payload.
	// An empty payload is reported as ErrEmptyAudio.
	Synthesize(ctx context.Context, req Request) (*AudioResult, error)

	// Health checks provider connectivity and API key validity.
	Health(ctx context.Context) error

	// Close releases any resources held by the provider.
	Close() error
}

// Request is one synthesis call.
type Request struct {
	// Text is the utterance to speak.
	Text string

	// VoiceID overrides the configured voice.
	VoiceID string

	// Style is the speaking style (e.g. "Conversational", "Angry").
	Style string

	// Rate is the speed adjustment in percent, -50..50.
	Rate int

	// Pitch is the pitch adjustment in percent, -50..50.
	Pitch int
}

// AudioResult represents a complete audio synthesis result.
type AudioResult struct {
	// Audio contains the encoded audio.
	Audio []byte

	// Format describes the audio encoding and sample rate.
	Format AudioFormat

	// Duration is the playback duration if the provider reports it.
	Duration time.Duration

	// CharCount is the number of characters synthesized.
	CharCount int

	// LatencyMs is the total request time in milliseconds.
	LatencyMs int64
}

// AudioFormat describes the audio encoding parameters.
type AudioFormat struct {
	// Encoding is the container or raw format.
	Encoding Encoding

	// SampleRate in Hz. Zero when the container carries it.
	SampleRate int

	// Channels is 1 for mono, 2 for stereo.
	Channels int
}

// Encoding represents audio encoding types.
type Encoding string

const (
	EncodingMP3 Encoding = "mp3"
	EncodingWAV Encoding = "wav"

	// EncodingPCM is headerless little-endian PCM16; SampleRate is required.
	EncodingPCM Encoding = "pcm"
)

// ParseEncoding maps a name like "MP3" or "wav" to an Encoding.
func ParseEncoding(s string) Encoding {
	switch strings.ToLower(s) {
	case "wav":
		return EncodingWAV
	case "pcm", "pcm16":
		return EncodingPCM
	default:
		return EncodingMP3
	}
}

// clampPercent keeps rate and pitch inside the -50..50 range vendors accept.
func clampPercent(v int) int {
	if v < -50 {
		return -50
	}
	if v > 50 {
		return 50
	}
	return v
}
