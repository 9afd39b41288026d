package transcript

import (
	"testing"
	"time"
)

// drainer runs the owner side: it drains on every notification.
func drainer(delay time.Duration) (*Aggregator, <-chan string) {
	out := make(chan string, 8)
	var agg *Aggregator
	agg = New(delay, func(gen uint64) {
		if text, ok := agg.Drain(gen); ok {
			out <- text
		}
	})
	return agg, out
}

func TestCoalescesFragmentsWithinWindow(t *testing.T) {
	agg, out := drainer(100*time.Millisecond)

	fragments := []string{"Ma'am", "  stay calm ", "where are you"}
	for _, f := range fragments {
		if !agg.Push(Fragment{Text: f, Final: true}) {
			t.Errorf("final fragment %q should signal barge-in", f)
		}
		time.Sleep(5 * time.Millisecond)
	}

	select {
	case got := <-out:
		if want := "Ma'am stay calm where are you"; got != want {
			t.Errorf("got %q, want %q", got, want)
		}
	case <-time.After(time.Second):
		t.Fatal("no utterance emitted")
	}

	select {
	case extra := <-out:
		t.Errorf("expected exactly one utterance, got extra %q", extra)
	case <-time.After(100 * time.Millisecond):
	}

	if agg.Pending() != "" {
		t.Errorf("buffer should be cleared, got %q", agg.Pending())
	}
}

func TestInterimFragmentsIgnored(t *testing.T) {
	agg, out := drainer(20*time.Millisecond)

	if agg.Push(Fragment{Text: "hel", Final: false}) {
		t.Error("interim fragment must not barge in")
	}
	if agg.Push(Fragment{Text: "   ", Final: true}) {
		t.Error("blank final fragment must not barge in")
	}

	select {
	case got := <-out:
		t.Errorf("unexpected utterance %q", got)
	case <-time.After(80 * time.Millisecond):
	}
}

func TestSeparateUtterances(t *testing.T) {
	agg, out := drainer(20*time.Millisecond)

	agg.Push(Fragment{Text: "Help", Final: true})
	first := <-out
	agg.Push(Fragment{Text: "Get low", Final: true})
	second := <-out

	if first != "Help" || second != "Get low" {
		t.Errorf("got %q and %q", first, second)
	}
}

func TestStaleGenerationDrainsNothing(t *testing.T) {
	agg := New(time.Hour, func(uint64) {})
	agg.Push(Fragment{Text: "one", Final: true})
	agg.Push(Fragment{Text: "two", Final: true})

	if _, ok := agg.Drain(1); ok {
		t.Error("generation 1 was superseded and must not drain")
	}
	text, ok := agg.Drain(2)
	if !ok || text != "one two" {
		t.Errorf("Drain(2) = %q, %v", text, ok)
	}
}

func TestReset(t *testing.T) {
	agg := New(time.Hour, func(uint64) {})
	agg.Push(Fragment{Text: "fire", Final: true})
	agg.Reset()

	if _, ok := agg.Drain(1); ok {
		t.Error("reset buffer must not drain")
	}
	if agg.Pending() != "" {
		t.Error("expected empty buffer after reset")
	}
}
