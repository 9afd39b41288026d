package stt

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	"github.com/Dupahar/crisis-call-murf-agent/internal/httpc"
)

// DeepgramAPIURL is the management API base.
const DeepgramAPIURL = "https://api.deepgram.com/v1"

// Ephemeral key parameters.
const (
	tempKeyComment = "temp-key"
	tempKeyTTL     = 60
)

// DeepgramTokenSource mints short-lived keys with the project management API.
type DeepgramTokenSource struct {
	APIKey    string
	ProjectID string

	// BaseURL defaults to DeepgramAPIURL.
	BaseURL string

	// HTTPClient defaults to the shared httpc client.
	HTTPClient *http.Client
}

type createKeyRequest struct {
	Comment string   `json:"comment"`
	Scopes  []string `json:"scopes"`
	TTL     int      `json:"time_to_live_in_seconds"`
}

type createKeyResponse struct {
	Key    string `json:"key"`
	KeyID  string `json:"api_key_id"`
	Expiry string `json:"expiration_date"`
}

// Token creates a key scoped to usage:write that expires after 60 seconds.
func (s *DeepgramTokenSource) Token(ctx context.Context) (Credential, error) {
	apiKey := strings.TrimSpace(s.APIKey)
	if apiKey == "" {
		return Credential{}, ErrNoAPIKey
	}
	projectID := strings.TrimSpace(s.ProjectID)
	if projectID == "" {
		return Credential{}, ErrNoProjectID
	}

	base := s.BaseURL
	if base == "" {
		base = DeepgramAPIURL
	}
	url := fmt.Sprintf("%s/projects/%s/keys", strings.TrimRight(base, "/"), projectID)

	var resp createKeyResponse
	err := httpc.PostJSON(ctx, s.HTTPClient, url,
		map[string]string{"Authorization": "Token " + apiKey},
		createKeyRequest{
			Comment: tempKeyComment,
			Scopes:  []string{"usage:write"},
			TTL:     tempKeyTTL,
		}, &resp)
	if err != nil {
		return Credential{}, fmt.Errorf("deepgram: create temp key: %w", err)
	}
	if resp.Key == "" {
		return Credential{}, ErrEmptyKey
	}
	return Credential{Key: resp.Key, Ephemeral: true}, nil
}

// FallbackTokenSource tries Primary and hands out the long-lived key
// when it fails. The fallback exposes the account key to the client.
type FallbackTokenSource struct {
	Primary TokenSource
	APIKey  string
	Logger  *slog.Logger
}

// Token returns an ephemeral credential if possible.
func (s *FallbackTokenSource) Token(ctx context.Context) (Credential, error) {
	if s.Primary != nil {
		cred, err := s.Primary.Token(ctx)
		if err == nil {
			return cred, nil
		}
		s.logger().Warn("ephemeral key unavailable, falling back to long-lived key (reduced security)",
			"error", err)
	}
	if strings.TrimSpace(s.APIKey) == "" {
		return Credential{}, ErrNoAPIKey
	}
	return Credential{Key: strings.TrimSpace(s.APIKey)}, nil
}

func (s *FallbackTokenSource) logger() *slog.Logger {
	if s.Logger != nil {
		return s.Logger
	}
	return slog.Default()
}

// StaticTokenSource always returns the same credential.
type StaticTokenSource Credential

func (s StaticTokenSource) Token(context.Context) (Credential, error) {
	if s.Key == "" {
		return Credential{}, ErrNoAPIKey
	}
	return Credential(s), nil
}
