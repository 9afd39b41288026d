package stt

import (
	"context"
	"sync"
)

// MockProvider implements Provider for testing.
type MockProvider struct {
	// OpenErr, if set, is returned by Open.
	OpenErr error

	// OpenFunc, if set, overrides the default behavior.
	OpenFunc func(ctx context.Context, cred Credential, opts Options) (Channel, error)

	mu       sync.Mutex
	channels []*MockChannel
	creds    []Credential
}

// NewMockProvider creates a mock provider.
func NewMockProvider() *MockProvider {
	return &MockProvider{}
}

// Open records the credential and returns a new MockChannel.
func (m *MockProvider) Open(ctx context.Context, cred Credential, opts Options) (Channel, error) {
	m.mu.Lock()
	m.creds = append(m.creds, cred)
	m.mu.Unlock()

	if m.OpenFunc != nil {
		return m.OpenFunc(ctx, cred, opts)
	}
	if m.OpenErr != nil {
		return nil, m.OpenErr
	}

	ch := NewMockChannel()
	m.mu.Lock()
	m.channels = append(m.channels, ch)
	m.mu.Unlock()
	return ch, nil
}

// Channels returns every channel opened so far.
func (m *MockProvider) Channels() []*MockChannel {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]*MockChannel, len(m.channels))
	copy(out, m.channels)
	return out
}

// Last returns the most recent channel, or nil.
func (m *MockProvider) Last() *MockChannel {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.channels) == 0 {
		return nil
	}
	return m.channels[len(m.channels)-1]
}

// Credentials returns the credentials passed to Open.
func (m *MockProvider) Credentials() []Credential {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]Credential, len(m.creds))
	copy(out, m.creds)
	return out
}

// MockChannel is a scriptable recognition channel.
type MockChannel struct {
	events chan Event
	errs   chan error

	mu     sync.Mutex
	sent   [][]byte
	closed bool
	ended  bool
}

// NewMockChannel creates an open mock channel.
func NewMockChannel() *MockChannel {
	return &MockChannel{
		events: make(chan Event, 64),
		errs:   make(chan error, 1),
	}
}

// Emit delivers a fragment as if the server sent it.
// It reports false if the channel has ended.
func (c *MockChannel) Emit(ev Event) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.ended {
		return false
	}
	c.events <- ev
	return true
}

// Drop ends the stream as if the server went away.
func (c *MockChannel) Drop(err error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.ended {
		return
	}
	c.ended = true
	if err == nil {
		err = ErrChannelClosed
	}
	c.errs <- err
	close(c.events)
}

func (c *MockChannel) Send(audio []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.ended {
		return ErrChannelClosed
	}
	buf := make([]byte, len(audio))
	copy(buf, audio)
	c.sent = append(c.sent, buf)
	return nil
}

func (c *MockChannel) Events() <-chan Event { return c.events }

func (c *MockChannel) Err() <-chan error { return c.errs }

func (c *MockChannel) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closed = true
	if !c.ended {
		c.ended = true
		close(c.events)
	}
	return nil
}

// Sent returns the audio chunks pushed so far.
func (c *MockChannel) Sent() [][]byte {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([][]byte, len(c.sent))
	copy(out, c.sent)
	return out
}

// Closed reports whether Close was called.
func (c *MockChannel) Closed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closed
}
