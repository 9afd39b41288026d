// Package escalation measures how long the operator has held the floor
// and decides when the caller should panic.
//
// The Clock records when the operator last got the floor: call start,
// the end of caller audio, or a barge-in. When an utterance is ready the
// Policy turns the elapsed latency into a Decision. The Decision carries
// an annotation that is inlined into the text sent to the generator and
// stripped from anything stored or displayed.
package escalation

import (
	"fmt"
	"regexp"
	"strings"
	"sync"
	"time"
)

// Directives injected when the operator is too slow.
const (
	DispatcherDirective = "[SYSTEM NOTE: The dispatcher is silent. Beg for help!]"
	DrillDirective      = "[SYSTEM NOTE: The dispatcher hesitated. PANIC and SCREAM!]"
)

// Clock tracks the reference time for response latency.
type Clock struct {
	mu   sync.Mutex
	last time.Time
	now  func() time.Time
}

// NewClock returns a clock reading time from now. A nil now uses time.Now.
func NewClock(now func() time.Time) *Clock {
	if now == nil {
		now = time.Now
	}
	c := &Clock{now: now}
	c.last = now()
	return c
}

// Reset marks the moment the operator got the floor.
func (c *Clock) Reset() {
	c.mu.Lock()
	c.last = c.now()
	c.mu.Unlock()
}

// Latency returns the time since the last Reset.
func (c *Clock) Latency() time.Duration {
	c.mu.Lock()
	defer c.mu.Unlock()
	d := c.now().Sub(c.last)
	if d < 0 {
		return 0
	}
	return d
}

// Since returns the reference time.
func (c *Clock) Since() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.last
}

// Policy maps latency to a panic decision and to the caller's voice.
type Policy struct {
	// HighThreshold is the latency above which the caller panics.
	HighThreshold time.Duration

	// Directive is appended to the generator input on panic.
	Directive string

	// Calm and Urgent are the synthesis settings without and with panic.
	Calm   Prosody
	Urgent Prosody
}

// Dispatcher is the policy for the full dispatcher scenario. It keeps the
// configured voice style and only speeds up and raises pitch on panic.
func Dispatcher() Policy {
	return Policy{
		HighThreshold: 10 * time.Second,
		Directive:     DispatcherDirective,
		Calm:          Prosody{Rate: 10, Pitch: 0},
		Urgent:        Prosody{Rate: 50, Pitch: 30},
	}
}

// Drill is the policy for the shorter variant: an angry caller who turns
// terrified on panic.
func Drill() Policy {
	return Policy{
		HighThreshold: 4 * time.Second,
		Directive:     DrillDirective,
		Calm:          Prosody{Style: "Angry", Rate: 10, Pitch: 0},
		Urgent:        Prosody{Style: "Terrified", Rate: 30, Pitch: 10},
	}
}

// ForScenario returns the policy for a scenario name, defaulting to Dispatcher.
func ForScenario(name string) Policy {
	if strings.EqualFold(name, "drill") {
		return Drill()
	}
	return Dispatcher()
}

// Decision is the outcome of evaluating one turn.
type Decision struct {
	Latency time.Duration
	Panic   bool
	Initial bool

	// Annotation is inlined into the generator input. Empty for the initial turn.
	Annotation string
}

// Evaluate decides panic for a turn. The initial system-triggered turn
// never panics and carries no annotation.
func (p Policy) Evaluate(latency time.Duration, initial bool) Decision {
	d := Decision{Latency: latency, Initial: initial}
	if initial {
		return d
	}

	d.Annotation = LatencyNote(latency)
	if latency > p.HighThreshold {
		d.Panic = true
		d.Annotation += " " + p.Directive
	}
	return d
}

// Apply returns text with the annotation inlined.
func (d Decision) Apply(text string) string {
	if d.Annotation == "" {
		return text
	}
	return text + " " + d.Annotation
}

// Prosody is the synthesis style, rate and pitch for a turn. An empty
// Style keeps the voice's configured style.
type Prosody struct {
	Style string
	Rate  int
	Pitch int
}

// Prosody returns the voice settings for a decision.
func (p Policy) Prosody(d Decision) Prosody {
	if d.Panic {
		return p.Urgent
	}
	return p.Calm
}

// LatencyNote formats the latency annotation, e.g. "[User response time: 3.2s]".
func LatencyNote(latency time.Duration) string {
	return fmt.Sprintf("[User response time: %.1fs]", latency.Seconds())
}

var annotation = regexp.MustCompile(`\s*\[(?:User response time|SYSTEM NOTE):.*?\]`)

// Strip removes every system annotation from text.
func Strip(text string) string {
	return strings.TrimSpace(annotation.ReplaceAllString(text, ""))
}
