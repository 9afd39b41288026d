package inference

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"google.golang.org/genai"
)

const providerGemini = "gemini"

// Gemini generates replies with the Gemini API through the genai SDK.
type Gemini struct {
	client *genai.Client
	config *Config
	logger *slog.Logger
}

// NewGemini creates a Gemini provider.
func NewGemini(ctx context.Context, opts ...Option) (*Gemini, error) {
	cfg := GeminiConfig()
	cfg.Apply(opts...)

	if cfg.APIKey == "" {
		return nil, WrapError(providerGemini, ErrNoAPIKey)
	}

	cc := &genai.ClientConfig{
		APIKey:     cfg.APIKey,
		Backend:    genai.BackendGeminiAPI,
		HTTPClient: cfg.HTTPClient,
	}
	if cfg.BaseURL != "" {
		cc.HTTPOptions = genai.HTTPOptions{BaseURL: cfg.BaseURL}
	}

	client, err := genai.NewClient(ctx, cc)
	if err != nil {
		return nil, WrapError(providerGemini, fmt.Errorf("create client: %w", err))
	}

	return &Gemini{
		client: client,
		config: cfg,
		logger: cfg.Logger.With("component", "inference.gemini"),
	}, nil
}

// Chat sends the history plus the latest message and returns the reply text.
// An empty reply (for example a safety block) is returned as empty content,
// not as an error.
func (g *Gemini) Chat(ctx context.Context, req *ChatRequest) (*ChatResponse, error) {
	contents := toContents(req.Messages)
	if len(contents) == 0 {
		return nil, WrapError(providerGemini, ErrNoMessages)
	}
	start := time.Now()

	model := req.Model
	if model == "" {
		model = g.config.Model
	}

	resp, err := g.client.Models.GenerateContent(ctx, model, contents, g.generateConfig(req))
	if err != nil {
		return nil, WrapError(providerGemini, err)
	}

	out := &ChatResponse{
		Message:   NewAssistantMessage(resp.Text()),
		Model:     model,
		LatencyMs: time.Since(start).Milliseconds(),
	}
	if len(resp.Candidates) > 0 {
		out.FinishReason = string(resp.Candidates[0].FinishReason)
	}
	if u := resp.UsageMetadata; u != nil {
		out.Usage = Usage{
			PromptTokens:     int(u.PromptTokenCount),
			CompletionTokens: int(u.CandidatesTokenCount),
			TotalTokens:      int(u.TotalTokenCount),
		}
	}

	g.logger.Debug("chat completed",
		"model", model,
		"finish_reason", out.FinishReason,
		"latency_ms", out.LatencyMs,
	)
	return out, nil
}

func (g *Gemini) generateConfig(req *ChatRequest) *genai.GenerateContentConfig {
	maxTokens := req.MaxTokens
	if maxTokens == 0 {
		maxTokens = g.config.MaxTokens
	}
	temp := req.Temperature
	if temp == 0 {
		temp = g.config.Temperature
	}

	cfg := &genai.GenerateContentConfig{
		Temperature:     genai.Ptr(float32(temp)),
		MaxOutputTokens: int32(maxTokens),
		SafetySettings:  permissiveSafety(),
	}
	if req.System != "" {
		cfg.SystemInstruction = &genai.Content{Parts: []*genai.Part{{Text: req.System}}}
	}
	return cfg
}

// permissiveSafety lets the caller describe fire, smoke and injury.
func permissiveSafety() []*genai.SafetySetting {
	categories := []genai.HarmCategory{
		genai.HarmCategoryHarassment,
		genai.HarmCategoryHateSpeech,
		genai.HarmCategorySexuallyExplicit,
		genai.HarmCategoryDangerousContent,
	}
	settings := make([]*genai.SafetySetting, len(categories))
	for i, c := range categories {
		settings[i] = &genai.SafetySetting{Category: c, Threshold: genai.HarmBlockThresholdBlockNone}
	}
	return settings
}

// toContents maps the history onto Gemini roles. System messages are
// dropped; the instruction travels separately.
func toContents(messages []Message) []*genai.Content {
	contents := make([]*genai.Content, 0, len(messages))
	for _, m := range messages {
		if m.Role == RoleSystem {
			continue
		}
		role := genai.RoleUser
		if m.Role == RoleAssistant {
			role = genai.RoleModel
		}
		contents = append(contents, &genai.Content{
			Role:  string(role),
			Parts: []*genai.Part{{Text: m.Content}},
		})
	}
	return contents
}

// Health checks that the configured model is reachable with this key.
func (g *Gemini) Health(ctx context.Context) error {
	if _, err := g.client.Models.Get(ctx, g.config.Model, nil); err != nil {
		return WrapError(providerGemini, fmt.Errorf("health check: %w", err))
	}
	return nil
}

// Close releases resources. The genai client holds none.
func (g *Gemini) Close() error {
	return nil
}

// Verify Gemini implements Provider at compile time.
var _ Provider = (*Gemini)(nil)
