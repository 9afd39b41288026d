package call

import (
	"strings"
	"testing"
	"time"
)

func TestMetricsCollector(t *testing.T) {
	clock := newFakeClock()
	m := NewMetricsCollector(clock.Now)

	m.Begin(1)
	clock.Advance(800 * time.Millisecond)
	m.MarkGenerated(1)
	clock.Advance(400 * time.Millisecond)
	m.MarkSynthesized(1)
	clock.Advance(100 * time.Millisecond)
	m.MarkPlaying(1)
	clock.Advance(2 * time.Second)
	m.Finish(1, false)

	h := m.History()
	if len(h) != 1 {
		t.Fatalf("history = %d turns, want 1", len(h))
	}
	turn := h[0]
	if turn.Generation != 800*time.Millisecond {
		t.Errorf("Generation = %v", turn.Generation)
	}
	if turn.Synthesis != 400*time.Millisecond {
		t.Errorf("Synthesis = %v", turn.Synthesis)
	}
	if turn.FirstAudio != 1300*time.Millisecond {
		t.Errorf("FirstAudio = %v", turn.FirstAudio)
	}
	if turn.Total != 3300*time.Millisecond {
		t.Errorf("Total = %v", turn.Total)
	}
	if !strings.Contains(turn.FormatLatency(), "800ms LLM") {
		t.Errorf("FormatLatency() = %q", turn.FormatLatency())
	}
}

func TestMetricsIgnoresOtherTurns(t *testing.T) {
	clock := newFakeClock()
	m := NewMetricsCollector(clock.Now)

	m.Begin(1)
	m.Begin(2)
	clock.Advance(time.Second)
	m.MarkGenerated(1)
	if got := m.Current().Generation; got != 0 {
		t.Errorf("stale mark recorded: %v", got)
	}

	// A turn that never played is not archived.
	m.Finish(2, false)
	if n := len(m.History()); n != 0 {
		t.Errorf("history = %d, want 0", n)
	}
}

func TestMetricsSummary(t *testing.T) {
	clock := newFakeClock()
	m := NewMetricsCollector(clock.Now)

	if s := m.Summary(); s.Turns != 0 || s.Total != 0 {
		t.Errorf("empty summary = %+v", s)
	}

	for id, interrupted := range []bool{false, true} {
		turn := uint64(id + 1)
		m.Begin(turn)
		clock.Advance(time.Second)
		m.MarkGenerated(turn)
		m.MarkSynthesized(turn)
		m.MarkPlaying(turn)
		clock.Advance(time.Second)
		m.Finish(turn, interrupted)
	}

	s := m.Summary()
	if s.Turns != 2 || s.Interrupted != 1 {
		t.Errorf("summary = %+v", s)
	}
	if s.Generation != 1000 || s.Total != 2000 {
		t.Errorf("averages = %v / %v", s.Generation, s.Total)
	}

	m.Reset()
	if n := len(m.History()); n != 0 {
		t.Errorf("history after Reset = %d", n)
	}
}
