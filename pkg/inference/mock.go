package inference

import (
	"context"

	"github.com/Dupahar/crisis-call-murf-agent/internal/calls"
)

// MockCall is one recorded Mock invocation. Request is a copy, nil for
// Health and Close.
type MockCall = calls.Call[*ChatRequest]

// Mock is a Provider for tests.
type Mock struct {
	ChatFunc   func(ctx context.Context, req *ChatRequest) (*ChatResponse, error)
	HealthFunc func(ctx context.Context) error
	CloseFunc  func() error

	calls.Recorder[*ChatRequest]
}

// NewMock returns a mock that always answers reply.
func NewMock(reply string) *Mock {
	return &Mock{
		ChatFunc: func(context.Context, *ChatRequest) (*ChatResponse, error) {
			return &ChatResponse{
				Message:      NewAssistantMessage(reply),
				FinishReason: "stop",
				Usage:        Usage{PromptTokens: 10, CompletionTokens: 5, TotalTokens: 15},
			}, nil
		},
	}
}

func (m *Mock) Chat(ctx context.Context, req *ChatRequest) (*ChatResponse, error) {
	cp := *req
	cp.Messages = append([]Message(nil), req.Messages...)
	m.Record("Chat", &cp)

	if m.ChatFunc == nil {
		return nil, WrapError("mock", ErrProviderUnavailable)
	}
	return m.ChatFunc(ctx, req)
}

func (m *Mock) Health(ctx context.Context) error {
	m.Record("Health", nil)
	if m.HealthFunc == nil {
		return nil
	}
	return m.HealthFunc(ctx)
}

func (m *Mock) Close() error {
	m.Record("Close", nil)
	if m.CloseFunc == nil {
		return nil
	}
	return m.CloseFunc()
}

// WithError returns a mock whose Chat and Health fail with err.
func WithError(err error) *Mock {
	return &Mock{
		ChatFunc:   func(context.Context, *ChatRequest) (*ChatResponse, error) { return nil, err },
		HealthFunc: func(context.Context) error { return err },
	}
}

var _ Provider = (*Mock)(nil)
