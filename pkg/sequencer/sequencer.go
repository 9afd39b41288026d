// Package sequencer issues monotonically increasing turn ids.
//
// Only the most recently issued id is valid. Any asynchronous result
// that carries an older id belongs to a superseded turn and must be
// discarded by the caller: last issued wins.
package sequencer

import "sync/atomic"

// Sequencer owns the turn counter. The zero value is ready to use and
// has no current turn.
type Sequencer struct {
	current atomic.Uint64
}

// Next issues a new turn id. Every id issued before it becomes stale.
func (s *Sequencer) Next() uint64 {
	return s.current.Add(1)
}

// Current returns the most recently issued id, or 0 if none.
func (s *Sequencer) Current() uint64 {
	return s.current.Load()
}

// IsCurrent reports whether id is still the valid turn.
func (s *Sequencer) IsCurrent(id uint64) bool {
	return id != 0 && id == s.current.Load()
}

// Invalidate makes every outstanding id stale without starting a turn.
// The counter keeps counting so ids are never reused.
func (s *Sequencer) Invalidate() {
	s.current.Add(1)
}
