package call

import (
	"math"
	"strings"
	"time"
)

// Snapshot is the operator-facing view of the call after one event.
type Snapshot struct {
	Session  Session   `json:"session"`
	Scenario Scenario  `json:"scenario"`
	Messages []Message `json:"messages"`

	Panic      bool `json:"panic"`
	Speaking   bool `json:"speaking"`
	Processing bool `json:"processing"`
	Listening  bool `json:"listening"`

	// Interim is the unconfirmed operator speech: buffered finals
	// followed by the latest partial.
	Interim string `json:"interim"`

	LastLatency float64        `json:"last_latency_seconds"`
	Level       float64        `json:"level"`
	Metrics     MetricsSummary `json:"metrics"`
}

func (o *Orchestrator) snapshot() Snapshot {
	msgs := make([]Message, len(o.messages))
	copy(msgs, o.messages)

	interim := strings.TrimSpace(o.agg.Pending() + " " + o.interim)

	return Snapshot{
		Session:     o.session,
		Scenario:    o.cfg.Scenario,
		Messages:    msgs,
		Panic:       o.urgent,
		Speaking:    o.speaking,
		Processing:  o.processing,
		Listening:   o.listening,
		Interim:     interim,
		LastLatency: math.Round(o.latency.Seconds()*10) / 10,
		Level:       math.Float64frombits(o.level.Load()),
		Metrics:     o.metrics.Summary(),
	}
}

// publish stores the latest snapshot and offers it to subscribers.
// Slow subscribers lose intermediate snapshots, never the latest one.
func (o *Orchestrator) publish() {
	s := o.snapshot()

	o.subMu.Lock()
	defer o.subMu.Unlock()
	o.latest = s
	for _, ch := range o.subs {
		select {
		case <-ch:
		default:
		}
		ch <- s
	}
}

// Snapshot returns the state after the most recent event.
func (o *Orchestrator) Snapshot() Snapshot {
	o.subMu.Lock()
	defer o.subMu.Unlock()
	s := o.latest
	s.Level = math.Float64frombits(o.level.Load())
	return s
}

// Subscribe returns a channel receiving every new snapshot, starting with
// the current one. Call cancel to unsubscribe. The channel is closed when
// the orchestrator stops.
func (o *Orchestrator) Subscribe() (<-chan Snapshot, func()) {
	ch := make(chan Snapshot, 1)

	o.subMu.Lock()
	id := o.nextID
	o.nextID++
	ch <- o.latest
	if o.subs != nil {
		o.subs[id] = ch
	} else {
		close(ch)
	}
	o.subMu.Unlock()

	cancel := func() {
		o.subMu.Lock()
		defer o.subMu.Unlock()
		if _, ok := o.subs[id]; ok {
			delete(o.subs, id)
			close(ch)
		}
	}
	return ch, cancel
}

func (o *Orchestrator) closeSubscribers() {
	o.subMu.Lock()
	defer o.subMu.Unlock()
	for id, ch := range o.subs {
		close(ch)
		delete(o.subs, id)
	}
	o.subs = nil
}

// Elapsed returns the call timer as MM:SS.
func (s Snapshot) Elapsed() string {
	return FormatElapsed(s.Session.Elapsed)
}

// Latency returns the last response latency.
func (s Snapshot) Latency() time.Duration {
	return time.Duration(s.LastLatency * float64(time.Second))
}
