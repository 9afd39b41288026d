package call

import (
	"sync"
	"time"
)

// historySize bounds how many finished turns are averaged.
const historySize = 100

// TurnMetrics tracks latency at each stage of one turn.
// All durations are measured from the moment the utterance was issued.
type TurnMetrics struct {
	TurnID uint64 `json:"turn_id"`

	IssuedAt      time.Time `json:"-"`
	GeneratedAt   time.Time `json:"-"`
	SynthesizedAt time.Time `json:"-"`
	PlayingAt     time.Time `json:"-"`
	DoneAt        time.Time `json:"-"`

	Generation  time.Duration `json:"generation_ns"`
	Synthesis   time.Duration `json:"synthesis_ns"`
	FirstAudio  time.Duration `json:"first_audio_ns"`
	Total       time.Duration `json:"total_ns"`
	Interrupted bool          `json:"interrupted"`
}

// MetricsSummary averages recent turns.
type MetricsSummary struct {
	Turns       int     `json:"turns"`
	Interrupted int     `json:"interrupted"`
	Generation  float64 `json:"avg_generation_ms"`
	Synthesis   float64 `json:"avg_synthesis_ms"`
	FirstAudio  float64 `json:"avg_first_audio_ms"`
	Total       float64 `json:"avg_total_ms"`
}

// MetricsCollector records per-turn stage latencies.
// It is goroutine-safe.
type MetricsCollector struct {
	mu      sync.Mutex
	now     func() time.Time
	current TurnMetrics
	history []TurnMetrics
}

// NewMetricsCollector creates a collector reading time from now.
func NewMetricsCollector(now func() time.Time) *MetricsCollector {
	if now == nil {
		now = time.Now
	}
	return &MetricsCollector{
		now:     now,
		history: make([]TurnMetrics, 0, historySize),
	}
}

// Begin starts measuring a turn. Any unfinished turn is discarded.
func (m *MetricsCollector) Begin(turnID uint64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.current = TurnMetrics{TurnID: turnID, IssuedAt: m.now()}
}

// MarkGenerated records when the reply text arrived.
func (m *MetricsCollector) MarkGenerated(turnID uint64) {
	m.mark(turnID, func(t *TurnMetrics, now time.Time) {
		t.GeneratedAt = now
		t.Generation = now.Sub(t.IssuedAt)
	})
}

// MarkSynthesized records when audio arrived.
func (m *MetricsCollector) MarkSynthesized(turnID uint64) {
	m.mark(turnID, func(t *TurnMetrics, now time.Time) {
		t.SynthesizedAt = now
		if !t.GeneratedAt.IsZero() {
			t.Synthesis = now.Sub(t.GeneratedAt)
		}
	})
}

// MarkPlaying records when the clip started.
func (m *MetricsCollector) MarkPlaying(turnID uint64) {
	m.mark(turnID, func(t *TurnMetrics, now time.Time) {
		t.PlayingAt = now
		t.FirstAudio = now.Sub(t.IssuedAt)
	})
}

// Finish archives the turn. interrupted marks a barge-in.
func (m *MetricsCollector) Finish(turnID uint64, interrupted bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.current.TurnID != turnID || m.current.PlayingAt.IsZero() {
		return
	}
	now := m.now()
	m.current.DoneAt = now
	m.current.Total = now.Sub(m.current.IssuedAt)
	m.current.Interrupted = interrupted

	m.history = append(m.history, m.current)
	if len(m.history) > historySize {
		m.history = m.history[1:]
	}
	m.current = TurnMetrics{}
}

// Reset drops all history.
func (m *MetricsCollector) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.current = TurnMetrics{}
	m.history = m.history[:0]
}

func (m *MetricsCollector) mark(turnID uint64, fn func(*TurnMetrics, time.Time)) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.current.TurnID != turnID {
		return
	}
	fn(&m.current, m.now())
}

// Current returns the in-flight turn.
func (m *MetricsCollector) Current() TurnMetrics {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.current
}

// History returns finished turns, oldest first.
func (m *MetricsCollector) History() []TurnMetrics {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]TurnMetrics, len(m.history))
	copy(out, m.history)
	return out
}

// Summary averages recent turns in milliseconds.
func (m *MetricsCollector) Summary() MetricsSummary {
	m.mu.Lock()
	defer m.mu.Unlock()

	s := MetricsSummary{Turns: len(m.history)}
	if s.Turns == 0 {
		return s
	}

	var gen, syn, first, total time.Duration
	for _, h := range m.history {
		gen += h.Generation
		syn += h.Synthesis
		first += h.FirstAudio
		total += h.Total
		if h.Interrupted {
			s.Interrupted++
		}
	}

	n := float64(s.Turns)
	s.Generation = ms(gen) / n
	s.Synthesis = ms(syn) / n
	s.FirstAudio = ms(first) / n
	s.Total = ms(total) / n
	return s
}

func ms(d time.Duration) float64 {
	return float64(d) / float64(time.Millisecond)
}

// FormatLatency returns a one-line stage breakdown for logs.
func (t TurnMetrics) FormatLatency() string {
	return formatDuration(t.Generation) + " LLM | " +
		formatDuration(t.Synthesis) + " TTS | " +
		formatDuration(t.FirstAudio) + " FIRST AUDIO | " +
		formatDuration(t.Total) + " TOTAL"
}

func formatDuration(d time.Duration) string {
	if d == 0 {
		return "---ms"
	}
	return d.Round(time.Millisecond).String()
}
