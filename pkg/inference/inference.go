// Package inference produces the caller's next line. Gemini, any
// OpenAI-compatible endpoint and Mock all implement Provider.
package inference

import "context"

type Provider interface {
	// Chat answers the last message of req. An empty reply is not an error.
	Chat(ctx context.Context, req *ChatRequest) (*ChatResponse, error)
	Health(ctx context.Context) error
	Close() error
}

// ChatRequest carries one generation. Zero Model, MaxTokens and
// Temperature fall back to the provider config.
type ChatRequest struct {
	System      string
	Messages    []Message // oldest first
	Model       string
	MaxTokens   int
	Temperature float64
}

type ChatResponse struct {
	Message      Message
	FinishReason string
	Usage        Usage
	Model        string
	LatencyMs    int64
}

type Usage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}
