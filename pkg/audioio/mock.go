package audioio

import (
	"context"
	"io"
	"log/slog"
	"math"
	"sync"
	"time"
)

// MockSource stands in for a microphone. Tests push chunks with Emit, or
// configure it to produce a tone or silence on every buffer tick.
type MockSource struct {
	cfg    Config
	logger *slog.Logger

	// StartErr is returned by Start, e.g. to simulate a denied microphone.
	StartErr error

	tone    func(n int) []int16
	mu      sync.Mutex
	out     chan AudioChunk
	quit    chan struct{}
	running bool
	closed  bool
	starts  int
	chunks  int64
	samples int64
}

// MockSourceOption configures a MockSource.
type MockSourceOption func(*MockSource)

// WithSineWave produces a continuous tone at frequency Hz.
func WithSineWave(frequency, amplitude float64) MockSourceOption {
	return func(m *MockSource) {
		var phase float64
		step := 2 * math.Pi * frequency / float64(m.cfg.SampleRate)
		m.tone = func(n int) []int16 {
			out := make([]int16, n*m.cfg.Channels)
			for i := 0; i < n; i++ {
				v := int16(amplitude * math.MaxInt16 * math.Sin(phase))
				for ch := 0; ch < m.cfg.Channels; ch++ {
					out[i*m.cfg.Channels+ch] = v
				}
				phase = math.Mod(phase+step, 2*math.Pi)
			}
			return out
		}
	}
}

// WithSilence produces zeroed buffers.
func WithSilence() MockSourceOption {
	return func(m *MockSource) {
		m.tone = func(n int) []int16 { return make([]int16, n*m.cfg.Channels) }
	}
}

// NewMockSource creates a mock that emits only what Emit is given unless
// an option installs a generator.
func NewMockSource(cfg Config, logger *slog.Logger, opts ...MockSourceOption) *MockSource {
	if logger == nil {
		logger = slog.Default()
	}
	m := &MockSource{cfg: cfg, logger: logger, out: make(chan AudioChunk)}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

func (m *MockSource) Start(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	switch {
	case m.StartErr != nil:
		return m.StartErr
	case m.closed:
		return io.ErrClosedPipe
	case m.running:
		return nil
	}
	m.running = true
	m.starts++
	m.quit = make(chan struct{})
	m.out = make(chan AudioChunk, 16)
	if m.tone != nil {
		go m.tick(ctx, m.quit)
	}
	return nil
}

func (m *MockSource) tick(ctx context.Context, quit <-chan struct{}) {
	t := time.NewTicker(m.cfg.BufferDuration)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			m.Stop()
			return
		case <-quit:
			return
		case <-t.C:
			m.Emit(AudioChunk{
				Samples:    m.tone(m.cfg.BufferSize()),
				SampleRate: m.cfg.SampleRate,
				Channels:   m.cfg.Channels,
			})
		}
	}
}

// Emit delivers chunk while running. It reports false when stopped or
// when the buffer is full.
func (m *MockSource) Emit(chunk AudioChunk) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.running {
		return false
	}
	select {
	case m.out <- chunk:
		m.chunks++
		m.samples += int64(len(chunk.Samples))
		return true
	default:
		return false
	}
}

func (m *MockSource) Stop() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.running {
		m.running = false
		close(m.quit)
		close(m.out)
	}
	return nil
}

func (m *MockSource) Stream() <-chan AudioChunk {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.out
}

func (m *MockSource) Running() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.running
}

// Starts counts successful Start calls that began a capture.
func (m *MockSource) Starts() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.starts
}

func (m *MockSource) Config() Config { return m.cfg }
func (m *MockSource) Name() string   { return string(BackendMock) }

func (m *MockSource) Close() error {
	m.mu.Lock()
	m.closed = true
	m.mu.Unlock()
	return m.Stop()
}

func (m *MockSource) Stats() SourceStats {
	m.mu.Lock()
	defer m.mu.Unlock()
	return SourceStats{
		ChunksRead:  m.chunks,
		SamplesRead: m.samples,
		Running:     m.running,
		Backend:     string(BackendMock),
	}
}

var _ SourceWithStats = (*MockSource)(nil)
