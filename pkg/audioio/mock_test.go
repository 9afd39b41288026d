package audioio

import (
	"context"
	"errors"
	"testing"
	"time"
)

func testConfig() Config {
	cfg := DefaultConfig()
	cfg.BufferDuration = 10 * time.Millisecond
	return cfg
}

func TestMockSource_StartStop(t *testing.T) {
	src := NewMockSource(testConfig(), nil)
	ctx := context.Background()

	if err := src.Start(ctx); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	if !src.Running() {
		t.Error("expected running after Start")
	}
	if err := src.Start(ctx); err != nil {
		t.Errorf("second Start should be a no-op, got %v", err)
	}
	if src.Starts() != 1 {
		t.Errorf("expected 1 start, got %d", src.Starts())
	}

	if err := src.Stop(); err != nil {
		t.Fatalf("Stop failed: %v", err)
	}
	if err := src.Stop(); err != nil {
		t.Errorf("second Stop should be safe, got %v", err)
	}
	if _, ok := <-src.Stream(); ok {
		t.Error("stream should be closed after Stop")
	}
}

func TestMockSource_Emit(t *testing.T) {
	src := NewMockSource(testConfig(), nil)

	if src.Emit(AudioChunk{Samples: []int16{1}}) {
		t.Error("Emit before Start should drop the chunk")
	}

	src.Start(context.Background())
	defer src.Close()

	if !src.Emit(AudioChunk{Samples: []int16{1, 2}, SampleRate: 16000, Channels: 1}) {
		t.Fatal("Emit should deliver while running")
	}
	chunk := <-src.Stream()
	if len(chunk.Samples) != 2 {
		t.Errorf("expected 2 samples, got %d", len(chunk.Samples))
	}
	if src.Stats().ChunksRead != 1 {
		t.Errorf("expected 1 chunk read, got %d", src.Stats().ChunksRead)
	}
}

func TestMockSource_SineWave(t *testing.T) {
	src := NewMockSource(testConfig(), nil, WithSineWave(440, 0.5))
	src.Start(context.Background())
	defer src.Close()

	select {
	case chunk := <-src.Stream():
		if chunk.Level() == 0 {
			t.Error("sine wave chunk should not be silent")
		}
		cfg := testConfig()
		if want := cfg.BufferSize(); len(chunk.Samples) != want {
			t.Errorf("expected %d samples, got %d", want, len(chunk.Samples))
		}
	case <-time.After(time.Second):
		t.Fatal("no chunk generated")
	}
}

func TestMockSource_StartErr(t *testing.T) {
	denied := errors.New("permission denied")
	src := NewMockSource(testConfig(), nil)
	src.StartErr = denied

	if err := src.Start(context.Background()); !errors.Is(err, denied) {
		t.Errorf("expected permission error, got %v", err)
	}
}

func TestMockSource_ContextCancel(t *testing.T) {
	src := NewMockSource(testConfig(), nil, WithSilence())
	ctx, cancel := context.WithCancel(context.Background())
	src.Start(ctx)
	cancel()

	deadline := time.After(time.Second)
	for src.Running() {
		select {
		case <-deadline:
			t.Fatal("source still running after context cancel")
		case <-time.After(5 * time.Millisecond):
		}
	}
}

func TestAudioChunk(t *testing.T) {
	c := AudioChunk{Samples: make([]int16, 1600), SampleRate: 16000, Channels: 1}
	if c.Duration() != 0.1 {
		t.Errorf("expected 0.1s, got %f", c.Duration())
	}
	if len(c.Bytes()) != 3200 {
		t.Errorf("expected 3200 bytes, got %d", len(c.Bytes()))
	}
}

func TestNewSourceMock(t *testing.T) {
	cfg := testConfig()
	cfg.Backend = BackendMock
	src, err := NewSource(cfg, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if src.Name() != "mock" {
		t.Errorf("expected mock backend, got %s", src.Name())
	}

	cfg.SampleRate = 0
	if _, err := NewSource(cfg, nil); err == nil {
		t.Error("expected validation error")
	}
}
