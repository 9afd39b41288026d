// Package config loads crisis call configuration from the environment.
//
// Values come from the process environment, after .env.local and .env
// have been merged in. Command flags may override the result.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Defaults.
const (
	DefaultWebPort      = 8080
	DefaultDebounce     = 200 * time.Millisecond
	DefaultInitialDelay = 1 * time.Second
	DefaultMurfVoice    = "en-IN-isha"
	DefaultMurfStyle    = "Conversational"
	DefaultGeminiModel  = "gemini-2.5-flash"
	DefaultOpenAIModel  = "gpt-4o-mini"
	DefaultSTTModel     = "nova-2"
	DefaultSTTLanguage  = "en-IN"
)

// Scenario names.
const (
	ScenarioDispatcher = "dispatcher"
	ScenarioDrill      = "drill"
)

// Errors reported by Validate. They are setup failures.
var (
	ErrNoSTTKey        = errors.New("config: DEEPGRAM_API_KEY is required")
	ErrNoTTSKey        = errors.New("config: text-to-speech API key is required")
	ErrNoLLMKey        = errors.New("config: generation API key is required")
	ErrUnknownProvider = errors.New("config: unknown provider")
)

// Config holds everything the agent needs to run a call.
type Config struct {
	// Speech recognition
	DeepgramAPIKey    string
	DeepgramProjectID string
	STTModel          string
	STTLanguage       string

	// Generation
	LLMProvider  string // gemini or openai
	GeminiAPIKey string
	GeminiModel  string
	OpenAIAPIKey string
	OpenAIModel  string

	// Synthesis
	TTSProvider       string // murf or elevenlabs
	MurfAPIKey        string
	MurfVoiceID       string
	MurfStyle         string
	ElevenLabsAPIKey  string
	ElevenLabsVoiceID string

	// Turn taking
	Scenario     string
	Debounce     time.Duration
	InitialDelay time.Duration

	// Surfaces
	WebPort  int
	LogLevel string
}

// LoadEnvFiles merges .env.local and .env into the environment.
// Existing variables win and missing files are ignored.
func LoadEnvFiles(files ...string) {
	if len(files) == 0 {
		files = []string{".env.local", ".env"}
	}
	for _, f := range files {
		if _, err := os.Stat(f); err != nil {
			continue
		}
		_ = godotenv.Load(f)
	}
}

// Load reads the configuration from the environment.
func Load() (*Config, error) {
	debounce, err := Duration("DEBOUNCE_MS", DefaultDebounce)
	if err != nil {
		return nil, err
	}
	initial, err := Duration("INITIAL_DELAY_MS", DefaultInitialDelay)
	if err != nil {
		return nil, err
	}
	port, err := Int("WEB_PORT", DefaultWebPort)
	if err != nil {
		return nil, err
	}

	return &Config{
		DeepgramAPIKey:    os.Getenv("DEEPGRAM_API_KEY"),
		DeepgramProjectID: os.Getenv("DEEPGRAM_PROJECT_ID"),
		STTModel:          String("DEEPGRAM_MODEL", DefaultSTTModel),
		STTLanguage:       String("DEEPGRAM_LANGUAGE", DefaultSTTLanguage),

		LLMProvider:  strings.ToLower(String("LLM_PROVIDER", "gemini")),
		GeminiAPIKey: os.Getenv("GEMINI_API_KEY"),
		GeminiModel:  String("GEMINI_MODEL", DefaultGeminiModel),
		OpenAIAPIKey: os.Getenv("OPENAI_API_KEY"),
		OpenAIModel:  String("OPENAI_MODEL", DefaultOpenAIModel),

		TTSProvider:       strings.ToLower(String("TTS_PROVIDER", "murf")),
		MurfAPIKey:        os.Getenv("MURF_API_KEY"),
		MurfVoiceID:       String("MURF_VOICE_ID", DefaultMurfVoice),
		MurfStyle:         String("MURF_STYLE", DefaultMurfStyle),
		ElevenLabsAPIKey:  os.Getenv("ELEVENLABS_API_KEY"),
		ElevenLabsVoiceID: os.Getenv("ELEVENLABS_VOICE_ID"),

		Scenario:     strings.ToLower(String("CRISIS_SCENARIO", ScenarioDispatcher)),
		Debounce:     debounce,
		InitialDelay: initial,

		WebPort:  port,
		LogLevel: String("LOG_LEVEL", "info"),
	}, nil
}

// Validate checks that the selected providers have credentials.
func (c *Config) Validate() error {
	if c.DeepgramAPIKey == "" {
		return ErrNoSTTKey
	}

	switch c.LLMProvider {
	case "gemini":
		if c.GeminiAPIKey == "" {
			return fmt.Errorf("%w: GEMINI_API_KEY", ErrNoLLMKey)
		}
	case "openai":
		if c.OpenAIAPIKey == "" {
			return fmt.Errorf("%w: OPENAI_API_KEY", ErrNoLLMKey)
		}
	default:
		return fmt.Errorf("%w: LLM_PROVIDER=%q", ErrUnknownProvider, c.LLMProvider)
	}

	switch c.TTSProvider {
	case "murf":
		if c.MurfAPIKey == "" {
			return fmt.Errorf("%w: MURF_API_KEY", ErrNoTTSKey)
		}
	case "elevenlabs":
		if c.ElevenLabsAPIKey == "" {
			return fmt.Errorf("%w: ELEVENLABS_API_KEY", ErrNoTTSKey)
		}
	default:
		return fmt.Errorf("%w: TTS_PROVIDER=%q", ErrUnknownProvider, c.TTSProvider)
	}

	switch c.Scenario {
	case ScenarioDispatcher, ScenarioDrill:
	default:
		return fmt.Errorf("config: unknown scenario %q", c.Scenario)
	}
	return nil
}

// String returns the env var or the default if unset.
func String(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

// Int returns the env var parsed as an int, or the default if unset.
func Int(key string, def int) (int, error) {
	v := os.Getenv(key)
	if v == "" {
		return def, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("config: %s: %w", key, err)
	}
	return n, nil
}

// Duration reads an env var holding milliseconds.
func Duration(key string, def time.Duration) (time.Duration, error) {
	v := os.Getenv(key)
	if v == "" {
		return def, nil
	}
	ms, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("config: %s: %w", key, err)
	}
	return time.Duration(ms) * time.Millisecond, nil
}
