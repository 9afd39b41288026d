// Package calls records method invocations for provider mocks.
package calls

import (
	"sync"
	"time"
)

// Call is one recorded invocation.
type Call[R any] struct {
	Method  string
	Request R
	Time    time.Time
}

// Recorder is a goroutine-safe call log. The zero value is ready to use.
type Recorder[R any] struct {
	mu    sync.Mutex
	calls []Call[R]
}

func (r *Recorder[R]) Record(method string, req R) {
	r.mu.Lock()
	r.calls = append(r.calls, Call[R]{Method: method, Request: req, Time: time.Now()})
	r.mu.Unlock()
}

// Calls returns a copy of the log, oldest first.
func (r *Recorder[R]) Calls() []Call[R] {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Call[R](nil), r.calls...)
}

// CallCount counts calls to method.
func (r *Recorder[R]) CallCount(method string) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for _, c := range r.calls {
		if c.Method == method {
			n++
		}
	}
	return n
}

// LastCall returns the newest call, or nil.
func (r *Recorder[R]) LastCall() *Call[R] {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.calls) == 0 {
		return nil
	}
	c := r.calls[len(r.calls)-1]
	return &c
}

func (r *Recorder[R]) Reset() {
	r.mu.Lock()
	r.calls = nil
	r.mu.Unlock()
}
