// Package transcript coalesces streamed recognition fragments into
// complete operator utterances.
//
// Recognizers often emit several short final segments for one spoken
// sentence. The Aggregator buffers final fragments and waits for a quiet
// period (the debounce delay) before handing the joined text to its owner.
package transcript

import (
	"strings"
	"sync"
	"time"
)

// DefaultDelay is the debounce window.
const DefaultDelay = 200 * time.Millisecond

// Fragment is one recognition result.
type Fragment struct {
	Text  string
	Final bool
}

// Aggregator buffers final fragments until the debounce timer fires.
//
// When the timer fires the Aggregator calls notify with the generation
// that armed it. The owner then calls Drain with that generation, which
// keeps buffer mutation on the owner's goroutine. A stale generation
// drains nothing because a newer fragment has re-armed the timer.
type Aggregator struct {
	mu     sync.Mutex
	delay  time.Duration
	parts  []string
	gen    uint64
	timer  *time.Timer
	notify func(gen uint64)
}

// New creates an Aggregator. notify is called from the timer goroutine.
func New(delay time.Duration, notify func(gen uint64)) *Aggregator {
	if delay <= 0 {
		delay = DefaultDelay
	}
	return &Aggregator{delay: delay, notify: notify}
}

// Push adds a fragment. It returns true when the fragment is final and
// carries speech: the operator is talking and caller audio must stop.
// Non-final fragments are advisory and never arm the timer.
func (a *Aggregator) Push(f Fragment) bool {
	text := strings.TrimSpace(f.Text)
	if !f.Final || text == "" {
		return false
	}

	a.mu.Lock()
	defer a.mu.Unlock()

	a.parts = append(a.parts, text)
	a.gen++
	gen := a.gen
	if a.timer != nil {
		a.timer.Stop()
	}
	a.timer = time.AfterFunc(a.delay, func() { a.notify(gen) })
	return true
}

// Drain returns the buffered utterance if gen is the latest timer
// generation, and clears the buffer.
func (a *Aggregator) Drain(gen uint64) (string, bool) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if gen != a.gen || len(a.parts) == 0 {
		return "", false
	}
	text := strings.Join(a.parts, " ")
	a.parts = nil
	a.timer = nil
	return text, true
}

// Pending returns the text buffered so far, for live display.
func (a *Aggregator) Pending() string {
	a.mu.Lock()
	defer a.mu.Unlock()
	return strings.Join(a.parts, " ")
}

// Reset drops the buffer and disarms the timer. Any notification
// already in flight drains nothing.
func (a *Aggregator) Reset() {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.timer != nil {
		a.timer.Stop()
		a.timer = nil
	}
	a.parts = nil
	a.gen++
}
