package playback

import (
	"sync"
	"time"
)

// MockSink implements Sink for testing. Clips play until the test calls
// Finish, or for Duration if set.
type MockSink struct {
	// StartErr, if set, is returned by Start.
	StartErr error

	// Duration, if positive, ends each clip on its own after this long.
	Duration time.Duration

	mu     sync.Mutex
	voices []*MockVoice
}

// NewMockSink creates a mock sink.
func NewMockSink() *MockSink {
	return &MockSink{}
}

// Start records the clip and returns a controllable voice.
func (m *MockSink) Start(clip Clip) (Voice, error) {
	if m.StartErr != nil {
		return nil, m.StartErr
	}
	v := &MockVoice{Clip: clip, done: make(chan error, 1)}

	m.mu.Lock()
	m.voices = append(m.voices, v)
	m.mu.Unlock()

	if m.Duration > 0 {
		time.AfterFunc(m.Duration, func() { v.Finish(nil) })
	}
	return v, nil
}

// Voices returns every voice started so far.
func (m *MockSink) Voices() []*MockVoice {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]*MockVoice, len(m.voices))
	copy(out, m.voices)
	return out
}

// Last returns the most recently started voice, or nil.
func (m *MockSink) Last() *MockVoice {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.voices) == 0 {
		return nil
	}
	return m.voices[len(m.voices)-1]
}

// MockVoice is a clip started on a MockSink.
type MockVoice struct {
	Clip Clip

	mu      sync.Mutex
	done    chan error
	ended   bool
	stopped bool
	closed  bool
}

// Finish ends the clip on its own with err (nil for normal completion).
func (v *MockVoice) Finish(err error) {
	v.mu.Lock()
	defer v.mu.Unlock()
	if v.ended || v.stopped {
		return
	}
	v.ended = true
	v.done <- err
}

func (v *MockVoice) Done() <-chan error {
	return v.done
}

func (v *MockVoice) Stop() {
	v.mu.Lock()
	v.stopped = true
	v.mu.Unlock()
}

func (v *MockVoice) Close() error {
	v.mu.Lock()
	v.closed = true
	v.mu.Unlock()
	return nil
}

// Stopped reports whether Stop was called.
func (v *MockVoice) Stopped() bool {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.stopped
}

// Closed reports whether the voice was released.
func (v *MockVoice) Closed() bool {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.closed
}
