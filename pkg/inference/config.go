package inference

import (
	"log/slog"
	"net/http"
	"time"
)

// Config is shared by the generation providers.
type Config struct {
	BaseURL string // OpenAI-compatible endpoint; unused by Gemini
	APIKey  string // optional for local servers
	Model   string

	MaxTokens   int
	Temperature float64
	Timeout     time.Duration

	// MaxRetries is 0 by default: a failed turn is abandoned, not repeated.
	MaxRetries int
	RetryDelay time.Duration

	HTTPClient *http.Client
	Logger     *slog.Logger
}

type Option func(*Config)

func WithBaseURL(url string) Option      { return func(c *Config) { c.BaseURL = url } }
func WithAPIKey(key string) Option       { return func(c *Config) { c.APIKey = key } }
func WithModel(model string) Option      { return func(c *Config) { c.Model = model } }
func WithMaxTokens(n int) Option         { return func(c *Config) { c.MaxTokens = n } }
func WithTemperature(t float64) Option   { return func(c *Config) { c.Temperature = t } }
func WithTimeout(d time.Duration) Option { return func(c *Config) { c.Timeout = d } }

// WithRetry retries rate limits and 5xx answers, waiting delay*attempt.
func WithRetry(maxRetries int, delay time.Duration) Option {
	return func(c *Config) { c.MaxRetries, c.RetryDelay = maxRetries, delay }
}

func WithHTTPClient(client *http.Client) Option { return func(c *Config) { c.HTTPClient = client } }

// WithLogger sets the provider logger. Nil keeps slog.Default.
func WithLogger(l *slog.Logger) Option {
	return func(c *Config) {
		if l != nil {
			c.Logger = l
		}
	}
}

// DefaultConfig targets OpenAI. The token cap keeps replies to a few
// spoken sentences.
func DefaultConfig() *Config {
	return &Config{
		BaseURL:     "https://api.openai.com/v1",
		Model:       "gpt-4o-mini",
		MaxTokens:   60,
		Temperature: 0.8,
		Timeout:     15 * time.Second,
		RetryDelay:  100 * time.Millisecond,
		Logger:      slog.Default(),
	}
}

// GeminiConfig targets the Gemini API.
func GeminiConfig() *Config {
	return &Config{
		Model:       "gemini-2.5-flash",
		MaxTokens:   300,
		Temperature: 0.9,
		Timeout:     15 * time.Second,
		Logger:      slog.Default(),
	}
}

func (c *Config) Apply(opts ...Option) {
	for _, opt := range opts {
		opt(c)
	}
}
