package tts

import (
	"context"
	"time"

	"github.com/Dupahar/crisis-call-murf-agent/internal/calls"
)

// MockCall is one recorded Mock invocation.
type MockCall = calls.Call[Request]

// Mock is a Provider for tests. Nil funcs fall back to defaults: Health
// and Close succeed, Synthesize reports ErrProviderUnavailable.
type Mock struct {
	SynthesizeFunc func(ctx context.Context, req Request) (*AudioResult, error)
	HealthFunc     func(ctx context.Context) error
	CloseFunc      func() error

	calls.Recorder[Request]
}

// NewMock returns a mock that answers with silent PCM, about 20ms per
// character of text.
func NewMock() *Mock {
	return &Mock{SynthesizeFunc: silence}
}

func silence(_ context.Context, req Request) (*AudioResult, error) {
	n := len(req.Text)
	return &AudioResult{
		Audio:     make([]byte, n*960),
		Format:    AudioFormat{Encoding: EncodingPCM, SampleRate: 24000, Channels: 1},
		CharCount: n,
		LatencyMs: 1,
		Duration:  time.Duration(n) * 20 * time.Millisecond,
	}, nil
}

func (m *Mock) Synthesize(ctx context.Context, req Request) (*AudioResult, error) {
	m.Record("Synthesize", req)
	if m.SynthesizeFunc == nil {
		return nil, WrapError("mock", ErrProviderUnavailable)
	}
	return m.SynthesizeFunc(ctx, req)
}

func (m *Mock) Health(ctx context.Context) error {
	m.Record("Health", Request{})
	if m.HealthFunc == nil {
		return nil
	}
	return m.HealthFunc(ctx)
}

func (m *Mock) Close() error {
	m.Record("Close", Request{})
	if m.CloseFunc == nil {
		return nil
	}
	return m.CloseFunc()
}

// WithError returns a mock whose Synthesize and Health fail with err.
func WithError(err error) *Mock {
	return &Mock{
		SynthesizeFunc: func(context.Context, Request) (*AudioResult, error) { return nil, err },
		HealthFunc:     func(context.Context) error { return err },
	}
}

// WithLatency delays every Synthesize on m by delay, honoring ctx.
func WithLatency(m *Mock, delay time.Duration) *Mock {
	next := m.SynthesizeFunc
	m.SynthesizeFunc = func(ctx context.Context, req Request) (*AudioResult, error) {
		t := time.NewTimer(delay)
		defer t.Stop()
		select {
		case <-t.C:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
		if next == nil {
			return nil, WrapError("mock", ErrProviderUnavailable)
		}
		return next(ctx, req)
	}
	return m
}

var _ Provider = (*Mock)(nil)
