package audioio

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"sync/atomic"

	"github.com/gen2brain/malgo"
)

// MalgoSource captures microphone audio through miniaudio.
type MalgoSource struct {
	cfg    Config
	logger *slog.Logger

	mu       sync.Mutex
	mctx     *malgo.AllocatedContext
	device   *malgo.Device
	running  bool
	closed   bool
	pending  []byte
	streamCh chan AudioChunk

	chunksRead  atomic.Int64
	samplesRead atomic.Int64
	overruns    atomic.Int64
}

// NewMalgoSource initializes the audio context. The capture device is
// opened on Start so a missing microphone surfaces as a setup error there.
func NewMalgoSource(cfg Config, logger *slog.Logger) (*MalgoSource, error) {
	if logger == nil {
		logger = slog.Default()
	}
	mctx, err := malgo.InitContext(nil, malgo.ContextConfig{}, nil)
	if err != nil {
		return nil, fmt.Errorf("init audio context: %w", err)
	}
	return &MalgoSource{
		cfg:      cfg,
		logger:   logger.With("component", "audioio.malgo"),
		mctx:     mctx,
		streamCh: make(chan AudioChunk),
	}, nil
}

// Start opens the default capture device and begins streaming chunks.
func (m *MalgoSource) Start(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return io.ErrClosedPipe
	}
	if m.running {
		return nil
	}

	devCfg := malgo.DefaultDeviceConfig(malgo.Capture)
	devCfg.Capture.Format = malgo.FormatS16
	devCfg.Capture.Channels = uint32(m.cfg.Channels)
	devCfg.SampleRate = uint32(m.cfg.SampleRate)
	devCfg.PeriodSizeInMilliseconds = 20

	m.streamCh = make(chan AudioChunk, 16)
	m.pending = m.pending[:0]

	device, err := malgo.InitDevice(m.mctx.Context, devCfg, malgo.DeviceCallbacks{
		Data: func(_, input []byte, _ uint32) { m.onData(input) },
	})
	if err != nil {
		return fmt.Errorf("open microphone: %w", err)
	}
	if err := device.Start(); err != nil {
		device.Uninit()
		return fmt.Errorf("start microphone: %w", err)
	}

	m.device = device
	m.running = true

	go func() {
		<-ctx.Done()
		m.Stop()
	}()

	m.logger.Info("microphone capture started",
		"sample_rate", m.cfg.SampleRate,
		"channels", m.cfg.Channels,
	)
	return nil
}

// onData runs on the miniaudio thread.
func (m *MalgoSource) onData(input []byte) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if !m.running {
		return
	}

	m.pending = append(m.pending, input...)
	size := m.cfg.BufferBytes()
	for len(m.pending) >= size {
		chunk := AudioChunk{
			Samples:    BytesToSamples(m.pending[:size]),
			SampleRate: m.cfg.SampleRate,
			Channels:   m.cfg.Channels,
		}
		m.pending = m.pending[size:]

		select {
		case m.streamCh <- chunk:
			m.chunksRead.Add(1)
			m.samplesRead.Add(int64(len(chunk.Samples)))
		default:
			m.overruns.Add(1)
		}
	}
}

// Stop halts capture and closes the stream.
func (m *MalgoSource) Stop() error {
	m.mu.Lock()
	if !m.running {
		m.mu.Unlock()
		return nil
	}
	m.running = false
	device := m.device
	m.device = nil
	close(m.streamCh)
	m.mu.Unlock()

	// Stop outside the lock: miniaudio waits for the callback to return.
	if device != nil {
		device.Stop()
		device.Uninit()
	}
	m.logger.Info("microphone capture stopped", "overruns", m.overruns.Load())
	return nil
}

// Stream returns the chunk channel for the current capture.
func (m *MalgoSource) Stream() <-chan AudioChunk {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.streamCh
}

// Config returns the capture configuration.
func (m *MalgoSource) Config() Config {
	return m.cfg
}

// Name returns "malgo".
func (m *MalgoSource) Name() string {
	return string(BackendMalgo)
}

// Close stops capture and frees the audio context.
func (m *MalgoSource) Close() error {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return nil
	}
	m.closed = true
	m.mu.Unlock()

	m.Stop()
	if m.mctx != nil {
		_ = m.mctx.Uninit()
		m.mctx.Free()
	}
	return nil
}

// Stats returns source statistics.
func (m *MalgoSource) Stats() SourceStats {
	m.mu.Lock()
	running := m.running
	m.mu.Unlock()

	return SourceStats{
		ChunksRead:  m.chunksRead.Load(),
		SamplesRead: m.samplesRead.Load(),
		Overruns:    m.overruns.Load(),
		Running:     running,
		Backend:     string(BackendMalgo),
	}
}

var _ SourceWithStats = (*MalgoSource)(nil)
