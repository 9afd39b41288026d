package playback

import (
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/Dupahar/crisis-call-murf-agent/internal/log"
	"github.com/Dupahar/crisis-call-murf-agent/pkg/tts"
)

func newTestPlayer(sink Sink) (*Player, <-chan Result) {
	results := make(chan Result, 8)
	p := NewPlayer(sink, func(r Result) { results <- r }, log.Discard())
	return p, results
}

func clipWithRelease(counter *atomic.Int32) Clip {
	return Clip{
		Audio:   []byte{0, 0},
		Format:  tts.AudioFormat{Encoding: tts.EncodingPCM, SampleRate: 24000, Channels: 1},
		Release: func() { counter.Add(1) },
	}
}

func TestPlayCompletes(t *testing.T) {
	sink := NewMockSink()
	p, results := newTestPlayer(sink)

	var released atomic.Int32
	if err := p.Play(clipWithRelease(&released), 7); err != nil {
		t.Fatalf("Play: %v", err)
	}
	if !p.Playing() || p.CurrentTurn() != 7 {
		t.Fatalf("expected turn 7 playing")
	}

	sink.Last().Finish(nil)

	select {
	case r := <-results:
		if r.TurnID != 7 || r.Err != nil {
			t.Errorf("unexpected result %+v", r)
		}
	case <-time.After(time.Second):
		t.Fatal("no completion reported")
	}
	if p.Playing() {
		t.Error("player should be idle after completion")
	}
	if released.Load() != 1 {
		t.Errorf("expected clip released once, got %d", released.Load())
	}
	if !sink.Last().Closed() {
		t.Error("voice should be closed")
	}
}

func TestPlayErrorReported(t *testing.T) {
	sink := NewMockSink()
	p, results := newTestPlayer(sink)

	var released atomic.Int32
	p.Play(clipWithRelease(&released), 1)
	decodeErr := errors.New("decode failure")
	sink.Last().Finish(decodeErr)

	r := <-results
	if !errors.Is(r.Err, decodeErr) {
		t.Errorf("expected decode error, got %v", r.Err)
	}
	if released.Load() != 1 {
		t.Errorf("expected release on error, got %d", released.Load())
	}
}

func TestInterruptIsIdempotent(t *testing.T) {
	sink := NewMockSink()
	p, results := newTestPlayer(sink)

	if p.Interrupt() {
		t.Error("Interrupt with nothing playing should report false")
	}

	var released atomic.Int32
	p.Play(clipWithRelease(&released), 3)
	voice := sink.Last()

	if !p.Interrupt() {
		t.Error("Interrupt should report true while playing")
	}
	if p.Interrupt() {
		t.Error("second Interrupt should report false")
	}
	if !voice.Stopped() || !voice.Closed() {
		t.Error("voice should be stopped and closed")
	}
	if released.Load() != 1 {
		t.Errorf("expected exactly one release, got %d", released.Load())
	}

	// A late natural end must not surface as completion.
	voice.Finish(nil)
	select {
	case r := <-results:
		t.Errorf("interrupted clip reported %+v", r)
	case <-time.After(50 * time.Millisecond):
	}
}

func TestPlayReplacesCurrent(t *testing.T) {
	sink := NewMockSink()
	p, results := newTestPlayer(sink)

	var first, second atomic.Int32
	p.Play(clipWithRelease(&first), 1)
	p.Play(clipWithRelease(&second), 2)

	voices := sink.Voices()
	if len(voices) != 2 {
		t.Fatalf("expected 2 voices, got %d", len(voices))
	}
	if !voices[0].Stopped() {
		t.Error("first clip should be stopped")
	}
	if first.Load() != 1 {
		t.Error("first clip should be released before the second plays")
	}
	if p.CurrentTurn() != 2 {
		t.Errorf("expected turn 2 current, got %d", p.CurrentTurn())
	}

	voices[1].Finish(nil)
	r := <-results
	if r.TurnID != 2 {
		t.Errorf("expected completion for turn 2, got %d", r.TurnID)
	}
}

func TestPlayStartFailure(t *testing.T) {
	sink := NewMockSink()
	sink.StartErr = ErrUnsupportedFormat
	p, _ := newTestPlayer(sink)

	var released atomic.Int32
	err := p.Play(clipWithRelease(&released), 1)
	if !errors.Is(err, ErrUnsupportedFormat) {
		t.Errorf("expected start error, got %v", err)
	}
	if released.Load() != 1 {
		t.Error("clip should be released when start fails")
	}
	if p.Playing() {
		t.Error("nothing should be playing")
	}
}
