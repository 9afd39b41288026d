package tts

import (
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/Dupahar/crisis-call-murf-agent/internal/httpc"
)

// Config is shared by the synthesis providers. Build it with options.
type Config struct {
	APIKey  string
	BaseURL string // empty uses the provider's public endpoint

	VoiceID string
	Style   string // Murf only
	ModelID string // ElevenLabs only

	OutputFormat Encoding
	SampleRate   int

	// Timeout bounds one synthesis including the Murf audio download.
	Timeout    time.Duration
	HTTPClient *http.Client
	Logger     *slog.Logger
}

type Option func(*Config)

func WithAPIKey(key string) Option             { return func(c *Config) { c.APIKey = key } }
func WithBaseURL(url string) Option            { return func(c *Config) { c.BaseURL = url } }
func WithVoice(voiceID string) Option          { return func(c *Config) { c.VoiceID = voiceID } }
func WithStyle(style string) Option            { return func(c *Config) { c.Style = style } }
func WithModel(modelID string) Option          { return func(c *Config) { c.ModelID = modelID } }
func WithOutputFormat(format Encoding) Option  { return func(c *Config) { c.OutputFormat = format } }
func WithSampleRate(rate int) Option           { return func(c *Config) { c.SampleRate = rate } }
func WithTimeout(timeout time.Duration) Option { return func(c *Config) { c.Timeout = timeout } }
func WithHTTPClient(client *http.Client) Option {
	return func(c *Config) { c.HTTPClient = client }
}

// WithLogger sets the provider logger. Nil keeps slog.Default.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Config) {
		if logger != nil {
			c.Logger = logger
		}
	}
}

// DefaultConfig asks for 24kHz MP3 in the conversational Murf style.
func DefaultConfig() *Config {
	return &Config{
		Style:        DefaultMurfStyle,
		OutputFormat: EncodingMP3,
		SampleRate:   24000,
		Timeout:      20 * time.Second,
		Logger:       slog.Default(),
	}
}

func (c *Config) Apply(opts ...Option) {
	for _, opt := range opts {
		opt(c)
	}
}

// Validate requires an API key.
func (c *Config) Validate() error {
	if c.APIKey == "" {
		return ErrNoAPIKey
	}
	return nil
}

// ValidateWithVoice requires an API key and a voice.
func (c *Config) ValidateWithVoice() error {
	if err := c.Validate(); err != nil {
		return err
	}
	if c.VoiceID == "" {
		return ErrNoVoiceID
	}
	return nil
}

// endpoint returns BaseURL, or def when unset, without a trailing slash.
func (c *Config) endpoint(def string) string {
	if c.BaseURL == "" {
		return def
	}
	return strings.TrimRight(c.BaseURL, "/")
}

func (c *Config) httpClient() *http.Client {
	if c.HTTPClient != nil {
		return c.HTTPClient
	}
	return httpc.NewClient(c.Timeout)
}
