package inference

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
)

func reply(w http.ResponseWriter, content string) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]any{
		"model": "gpt-4o-mini",
		"choices": []map[string]any{{
			"message":       map[string]string{"role": "assistant", "content": content},
			"finish_reason": "stop",
		}},
		"usage": map[string]int{"prompt_tokens": 10, "completion_tokens": 5, "total_tokens": 15},
	})
}

func ask(t *testing.T, c *Client, text string) (*ChatResponse, error) {
	t.Helper()
	return c.Chat(context.Background(), &ChatRequest{Messages: []Message{NewUserMessage(text)}})
}

func TestClientChat(t *testing.T) {
	var got chatPayload
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != "/chat/completions" {
			t.Errorf("request = %s %s", r.Method, r.URL.Path)
		}
		if h := r.Header.Get("Authorization"); h != "Bearer test-key" {
			t.Errorf("authorization = %q", h)
		}
		if err := json.NewDecoder(r.Body).Decode(&got); err != nil {
			t.Errorf("decode: %v", err)
		}
		reply(w, "Worli! Oberoi Heights!")
	}))
	defer srv.Close()

	c, err := NewClient(WithBaseURL(srv.URL+"/"), WithAPIKey("test-key"))
	if err != nil {
		t.Fatal(err)
	}
	defer c.Close()

	resp, err := c.Chat(context.Background(), &ChatRequest{
		System: "You are Anjali.",
		Messages: []Message{
			NewAssistantMessage("Hello? Is anyone there?"),
			NewUserMessage("Where are you?"),
		},
	})
	if err != nil {
		t.Fatalf("Chat: %v", err)
	}

	want := []chatMessage{
		{"system", "You are Anjali."},
		{"assistant", "Hello? Is anyone there?"},
		{"user", "Where are you?"},
	}
	if len(got.Messages) != len(want) {
		t.Fatalf("sent %d messages, want %d", len(got.Messages), len(want))
	}
	for i := range want {
		if got.Messages[i] != want[i] {
			t.Errorf("message %d = %+v, want %+v", i, got.Messages[i], want[i])
		}
	}
	if got.Model != "gpt-4o-mini" || got.MaxTokens != 60 || got.Temperature != 0.8 {
		t.Errorf("payload defaults = %s/%d/%v", got.Model, got.MaxTokens, got.Temperature)
	}

	if resp.Message.Role != RoleAssistant || resp.Message.Content != "Worli! Oberoi Heights!" {
		t.Errorf("message = %+v", resp.Message)
	}
	if resp.FinishReason != "stop" || resp.Usage.TotalTokens != 15 {
		t.Errorf("finish = %q, usage = %+v", resp.FinishReason, resp.Usage)
	}
}

func TestClientRequestOverrides(t *testing.T) {
	var got chatPayload
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewDecoder(r.Body).Decode(&got)
		if r.Header.Get("Authorization") != "" {
			t.Error("no key configured, but Authorization sent")
		}
		reply(w, "")
	}))
	defer srv.Close()

	c, _ := NewClient(WithBaseURL(srv.URL))
	resp, err := c.Chat(context.Background(), &ChatRequest{
		Messages:    []Message{NewUserMessage("hi")},
		Model:       "llama3",
		MaxTokens:   20,
		Temperature: 0.2,
	})
	if err != nil {
		t.Fatalf("Chat: %v", err)
	}
	if got.Model != "llama3" || got.MaxTokens != 20 || got.Temperature != 0.2 {
		t.Errorf("payload = %+v", got)
	}
	if len(got.Messages) != 1 {
		t.Errorf("empty system prompt should be omitted, sent %d messages", len(got.Messages))
	}
	if resp.Message.Content != "" {
		t.Errorf("content = %q, want empty", resp.Message.Content)
	}
}

func TestClientChatNoMessages(t *testing.T) {
	c, _ := NewClient()
	if _, err := c.Chat(context.Background(), &ChatRequest{}); !errors.Is(err, ErrNoMessages) {
		t.Errorf("err = %v, want ErrNoMessages", err)
	}
}

func TestClientHealth(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/models" {
			t.Errorf("path = %s", r.URL.Path)
		}
		w.Write([]byte(`{"data":[]}`))
	}))
	defer srv.Close()

	c, _ := NewClient(WithBaseURL(srv.URL))
	if err := c.Health(context.Background()); err != nil {
		t.Errorf("Health: %v", err)
	}
}

func TestClientErrors(t *testing.T) {
	tests := []struct {
		name      string
		status    int
		body      string
		wantCode  string
		wantCheck func(*APIError) bool
	}{
		{
			name:      "bad key",
			status:    http.StatusUnauthorized,
			body:      `{"error":{"message":"Invalid API key","code":"invalid_api_key"}}`,
			wantCode:  "invalid_api_key",
			wantCheck: (*APIError).IsUnauthorized,
		},
		{
			name:      "rate limited",
			status:    http.StatusTooManyRequests,
			body:      `{"error":{"message":"slow down","code":"rate_limit_exceeded"}}`,
			wantCode:  "rate_limit_exceeded",
			wantCheck: (*APIError).IsRateLimited,
		},
		{
			name:      "unavailable",
			status:    http.StatusServiceUnavailable,
			body:      "upstream down",
			wantCheck: (*APIError).IsServerError,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var hits atomic.Int32
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				hits.Add(1)
				w.WriteHeader(tt.status)
				w.Write([]byte(tt.body))
			}))
			defer srv.Close()

			c, _ := NewClient(WithBaseURL(srv.URL))
			_, err := ask(t, c, "test")

			var apiErr *APIError
			if !errors.As(err, &apiErr) {
				t.Fatalf("err = %T %v, want *APIError", err, err)
			}
			if apiErr.StatusCode != tt.status || apiErr.Code != tt.wantCode || !tt.wantCheck(apiErr) {
				t.Errorf("APIError = %+v", apiErr)
			}
			if hits.Load() != 1 {
				t.Errorf("attempts = %d, want 1 with retries off", hits.Load())
			}
		})
	}
}

func TestClientRetryWhenEnabled(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if hits.Add(1) == 1 {
			w.WriteHeader(http.StatusTooManyRequests)
			return
		}
		reply(w, "ok")
	}))
	defer srv.Close()

	c, _ := NewClient(WithBaseURL(srv.URL), WithRetry(1, 0))
	resp, err := ask(t, c, "test")
	if err != nil {
		t.Fatalf("Chat: %v", err)
	}
	if resp.Message.Content != "ok" || hits.Load() != 2 {
		t.Errorf("content = %q after %d attempts", resp.Message.Content, hits.Load())
	}
}
