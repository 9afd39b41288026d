package audioio

import (
	"context"
	"io"
)

// AudioChunk represents a chunk of captured audio.
type AudioChunk struct {
	// Samples contains PCM16 audio samples.
	Samples []int16

	// SampleRate is the sample rate of this chunk.
	SampleRate int

	// Channels is the number of interleaved channels.
	Channels int
}

// Bytes returns the chunk as little-endian PCM16.
func (c *AudioChunk) Bytes() []byte {
	return SamplesToBytes(c.Samples)
}

// Duration returns the duration of this chunk in seconds.
func (c *AudioChunk) Duration() float64 {
	if c.SampleRate == 0 || c.Channels == 0 {
		return 0
	}
	return float64(len(c.Samples)) / float64(c.SampleRate*c.Channels)
}

// Level returns the RMS level of the chunk in [0, 1].
func (c *AudioChunk) Level() float64 {
	return RMS(c.Samples)
}

// Source captures audio from a microphone or other input device.
type Source interface {
	// Start begins audio capture. Chunks are delivered on Stream.
	Start(ctx context.Context) error

	// Stop halts audio capture and closes the stream channel.
	// It is safe to call Stop multiple times.
	Stop() error

	// Stream returns the channel of captured chunks for the current capture.
	Stream() <-chan AudioChunk

	// Config returns the capture configuration.
	Config() Config

	// Name returns the backend name.
	Name() string

	// Close releases all resources.
	io.Closer
}

// SourceStats contains statistics about the audio source.
type SourceStats struct {
	ChunksRead  int64  `json:"chunks_read"`
	SamplesRead int64  `json:"samples_read"`
	Overruns    int64  `json:"overruns"`
	Running     bool   `json:"running"`
	Backend     string `json:"backend"`
}

// SourceWithStats extends Source with statistics.
type SourceWithStats interface {
	Source
	Stats() SourceStats
}
