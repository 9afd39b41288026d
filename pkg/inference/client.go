package inference

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/Dupahar/crisis-call-murf-agent/internal/httpc"
)

const providerClient = "openai"

// Client speaks the OpenAI chat completions protocol, so it also serves
// compatible local servers such as Ollama or vLLM through WithBaseURL.
type Client struct {
	baseURL string
	config  *Config
	http    *http.Client
	logger  *slog.Logger
}

func NewClient(opts ...Option) (*Client, error) {
	cfg := DefaultConfig()
	cfg.Apply(opts...)

	hc := cfg.HTTPClient
	if hc == nil {
		hc = httpc.NewClient(cfg.Timeout)
	}
	return &Client{
		baseURL: strings.TrimSuffix(cfg.BaseURL, "/"),
		config:  cfg,
		http:    hc,
		logger:  cfg.Logger.With("component", "inference.openai"),
	}, nil
}

// Chat sends the persona as the leading system message followed by the
// history. An empty reply is returned as is.
func (c *Client) Chat(ctx context.Context, req *ChatRequest) (*ChatResponse, error) {
	if len(req.Messages) == 0 {
		return nil, WrapError(providerClient, ErrNoMessages)
	}
	start := time.Now()

	var out completion
	if err := c.post(ctx, "/chat/completions", c.payload(req), &out); err != nil {
		return nil, err
	}
	if len(out.Choices) == 0 {
		return nil, WrapError(providerClient, errors.New("no choices returned"))
	}

	choice := out.Choices[0]
	latency := time.Since(start).Milliseconds()
	c.logger.Debug("chat completed",
		"model", out.Model,
		"finish_reason", choice.FinishReason,
		"latency_ms", latency,
	)

	return &ChatResponse{
		Message:      NewAssistantMessage(choice.Message.Content),
		FinishReason: choice.FinishReason,
		Usage:        out.Usage,
		Model:        out.Model,
		LatencyMs:    latency,
	}, nil
}

// Health lists models, which fails fast on a bad key.
func (c *Client) Health(ctx context.Context) error {
	if err := httpc.GetJSON(ctx, c.http, c.baseURL+"/models", c.headers(), nil); err != nil {
		return c.wrap(err)
	}
	return nil
}

func (c *Client) Close() error {
	c.http.CloseIdleConnections()
	return nil
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatPayload struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	MaxTokens   int           `json:"max_tokens,omitempty"`
	Temperature float64       `json:"temperature,omitempty"`
}

type completion struct {
	Model   string `json:"model"`
	Choices []struct {
		Message      chatMessage `json:"message"`
		FinishReason string      `json:"finish_reason"`
	} `json:"choices"`
	Usage Usage `json:"usage"`
}

func (c *Client) payload(req *ChatRequest) chatPayload {
	p := chatPayload{
		Model:       firstSet(req.Model, c.config.Model),
		MaxTokens:   req.MaxTokens,
		Temperature: req.Temperature,
		Messages:    make([]chatMessage, 0, len(req.Messages)+1),
	}
	if p.MaxTokens == 0 {
		p.MaxTokens = c.config.MaxTokens
	}
	if p.Temperature == 0 {
		p.Temperature = c.config.Temperature
	}

	if req.System != "" {
		p.Messages = append(p.Messages, chatMessage{string(RoleSystem), req.System})
	}
	for _, m := range req.Messages {
		p.Messages = append(p.Messages, chatMessage{string(m.Role), m.Content})
	}
	return p
}

// post retries rate limits and server errors up to MaxRetries times with
// a linear backoff. Retries are off by default.
func (c *Client) post(ctx context.Context, path string, in, out any) error {
	var err error
	for attempt := 0; ; attempt++ {
		err = httpc.PostJSON(ctx, c.http, c.baseURL+path, c.headers(), in, out)
		if err == nil {
			return nil
		}
		err = c.wrap(err)

		var apiErr *APIError
		if attempt >= c.config.MaxRetries || !errors.As(err, &apiErr) || !apiErr.IsRetryable() {
			return err
		}
		c.logger.Warn("retrying request", "attempt", attempt+1, "status", apiErr.StatusCode)

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(c.config.RetryDelay * time.Duration(attempt+1)):
		}
	}
}

func (c *Client) headers() map[string]string {
	if c.config.APIKey == "" {
		return nil
	}
	return map[string]string{"Authorization": "Bearer " + c.config.APIKey}
}

// wrap turns an error status into APIError using the {"error": {...}} shape.
func (c *Client) wrap(err error) error {
	var se *httpc.StatusError
	if !errors.As(err, &se) {
		return WrapError(providerClient, err)
	}

	var body struct {
		Error struct {
			Message string `json:"message"`
			Code    string `json:"code"`
		} `json:"error"`
	}
	apiErr := &APIError{
		Provider:   providerClient,
		StatusCode: se.StatusCode,
		Message:    strings.TrimSpace(string(se.Body)),
	}
	if json.Unmarshal(se.Body, &body) == nil && body.Error.Message != "" {
		apiErr.Message, apiErr.Code = body.Error.Message, body.Error.Code
	}
	return apiErr
}

func firstSet(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}

var _ Provider = (*Client)(nil)
