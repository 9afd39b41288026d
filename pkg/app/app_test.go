package app

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"

	"github.com/Dupahar/crisis-call-murf-agent/internal/config"
	"github.com/Dupahar/crisis-call-murf-agent/pkg/inference"
	"github.com/Dupahar/crisis-call-murf-agent/pkg/stt"
	"github.com/Dupahar/crisis-call-murf-agent/pkg/tts"
)

func quiet() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func validConfig() *config.Config {
	return &config.Config{
		DeepgramAPIKey: "dg-key",
		LLMProvider:    "openai",
		OpenAIAPIKey:   "sk-test",
		OpenAIModel:    config.DefaultOpenAIModel,
		TTSProvider:    "murf",
		MurfAPIKey:     "murf-key",
		MurfVoiceID:    config.DefaultMurfVoice,
		MurfStyle:      config.DefaultMurfStyle,
		Scenario:       config.ScenarioDispatcher,
		WebPort:        config.DefaultWebPort,
	}
}

func TestNewValidates(t *testing.T) {
	cfg := validConfig()
	cfg.DeepgramAPIKey = ""
	if _, err := New(cfg, quiet()); !errors.Is(err, config.ErrNoSTTKey) {
		t.Errorf("New() error = %v, want ErrNoSTTKey", err)
	}
	if _, err := New(validConfig(), quiet()); err != nil {
		t.Errorf("New() error = %v", err)
	}
}

func TestRunRequiresInit(t *testing.T) {
	a, err := New(validConfig(), quiet())
	if err != nil {
		t.Fatal(err)
	}
	if err := a.Run(context.Background()); err == nil {
		t.Error("Run() before Init should fail")
	}
}

func TestTokenSource(t *testing.T) {
	cfg := validConfig()

	src := TokenSource(cfg, quiet())
	cred, err := src.Token(context.Background())
	if err != nil {
		t.Fatalf("Token() error = %v", err)
	}
	if cred.Key != "dg-key" || cred.Ephemeral {
		t.Errorf("without project id: %+v", cred)
	}

	cfg.DeepgramProjectID = "proj"
	fb := TokenSource(cfg, quiet()).(*stt.FallbackTokenSource)
	if _, ok := fb.Primary.(*stt.DeepgramTokenSource); !ok {
		t.Errorf("primary = %T, want *stt.DeepgramTokenSource", fb.Primary)
	}
}

func TestProviders(t *testing.T) {
	cfg := validConfig()

	llm, err := NewGenerator(context.Background(), cfg, quiet())
	if err != nil {
		t.Fatalf("NewGenerator() error = %v", err)
	}
	if _, ok := llm.(*inference.Client); !ok {
		t.Errorf("generator = %T", llm)
	}

	synth, err := NewSynthesizer(cfg, quiet())
	if err != nil {
		t.Fatalf("NewSynthesizer() error = %v", err)
	}
	if _, ok := synth.(*tts.Murf); !ok {
		t.Errorf("synthesizer = %T", synth)
	}

	cfg.LLMProvider, cfg.TTSProvider = "claude", "polly"
	if _, err := NewGenerator(context.Background(), cfg, quiet()); !errors.Is(err, config.ErrUnknownProvider) {
		t.Errorf("unknown generator error = %v", err)
	}
	if _, err := NewSynthesizer(cfg, quiet()); !errors.Is(err, config.ErrUnknownProvider) {
		t.Errorf("unknown synthesizer error = %v", err)
	}
}
