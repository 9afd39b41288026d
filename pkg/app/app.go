// Package app wires the crisis call agent: recognition, generation,
// synthesis, audio devices, the call orchestrator and the dashboard.
package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/Dupahar/crisis-call-murf-agent/internal/config"
	"github.com/Dupahar/crisis-call-murf-agent/pkg/audioio"
	"github.com/Dupahar/crisis-call-murf-agent/pkg/call"
	"github.com/Dupahar/crisis-call-murf-agent/pkg/escalation"
	"github.com/Dupahar/crisis-call-murf-agent/pkg/inference"
	"github.com/Dupahar/crisis-call-murf-agent/pkg/playback"
	"github.com/Dupahar/crisis-call-murf-agent/pkg/stt"
	"github.com/Dupahar/crisis-call-murf-agent/pkg/tts"
	"github.com/Dupahar/crisis-call-murf-agent/pkg/web"
)

// App owns every component and their lifecycle.
type App struct {
	config *config.Config
	logger *slog.Logger

	tokens stt.TokenSource
	stt    stt.Provider
	llm    inference.Provider
	tts    tts.Provider
	mic    audioio.Source
	sink   playback.Sink

	orchestrator *call.Orchestrator
	webServer    *web.Server
}

// New validates the configuration. Call Init before Run.
func New(cfg *config.Config, logger *slog.Logger) (*App, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &App{config: cfg, logger: logger.With("component", "app")}, nil
}

// Init creates the providers and audio devices.
func (a *App) Init(ctx context.Context) error {
	a.tokens = TokenSource(a.config, a.logger)
	a.stt = stt.NewDeepgram(stt.WithDeepgramLogger(a.logger))

	var err error
	if a.llm, err = NewGenerator(ctx, a.config, a.logger); err != nil {
		return fmt.Errorf("generation: %w", err)
	}
	if a.tts, err = NewSynthesizer(a.config, a.logger); err != nil {
		return fmt.Errorf("synthesis: %w", err)
	}
	a.checkHealth(ctx)

	if a.mic, err = audioio.NewSource(audioio.DefaultConfig(), a.logger); err != nil {
		return fmt.Errorf("microphone: %w", err)
	}
	if a.sink, err = playback.NewOtoSink(playback.DefaultSampleRate, a.logger); err != nil {
		return fmt.Errorf("speaker: %w", err)
	}

	cfg := call.DefaultConfig()
	cfg.Debounce = a.config.Debounce
	cfg.InitialDelay = a.config.InitialDelay
	cfg.Policy = escalation.ForScenario(a.config.Scenario)
	cfg.VoiceID = a.config.MurfVoiceID
	cfg.Style = a.config.MurfStyle
	if a.config.TTSProvider == "elevenlabs" {
		cfg.VoiceID, cfg.Style = a.config.ElevenLabsVoiceID, ""
	}
	cfg.STT.Model = a.config.STTModel
	cfg.STT.Language = a.config.STTLanguage
	cfg.STT.SampleRate = a.mic.Config().SampleRate
	cfg.STT.Channels = a.mic.Config().Channels

	a.orchestrator, err = call.New(cfg, call.Deps{
		Tokens: a.tokens,
		STT:    a.stt,
		Mic:    a.mic,
		LLM:    a.llm,
		TTS:    a.tts,
		Sink:   a.sink,
		Logger: a.logger,
	})
	if err != nil {
		return err
	}

	opts := web.Options{
		Addr:        fmt.Sprintf(":%d", a.config.WebPort),
		Tokens:      a.tokens,
		VoiceLocale: a.config.STTLanguage,
		Logger:      a.logger,
	}
	if lister, ok := a.tts.(web.VoiceLister); ok {
		opts.Voices = lister
	}
	a.webServer = web.NewServer(a.orchestrator, opts)

	a.logger.Info("initialized",
		"llm", a.config.LLMProvider,
		"tts", a.config.TTSProvider,
		"scenario", a.config.Scenario,
		"mic", a.mic.Name(),
	)
	return nil
}

// checkHealth warns about providers that do not answer. Calls still start;
// a failing provider abandons turns instead.
func (a *App) checkHealth(ctx context.Context) {
	if err := a.llm.Health(ctx); err != nil {
		a.logger.Warn("generation provider unhealthy", "error", err)
	}
	if err := a.tts.Health(ctx); err != nil {
		a.logger.Warn("synthesis provider unhealthy", "error", err)
	}
}

// Run serves the dashboard and runs the call loop until ctx is cancelled.
func (a *App) Run(ctx context.Context) error {
	if a.orchestrator == nil {
		return errors.New("app: Init not called")
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	errCh := make(chan error, 2)
	go func() { errCh <- a.orchestrator.Run(ctx) }()
	go func() { errCh <- a.webServer.Run(ctx) }()

	a.logger.Info("ready", "dashboard", fmt.Sprintf("http://localhost:%d", a.config.WebPort))

	var first error
	for i := 0; i < 2; i++ {
		if err := <-errCh; err != nil && first == nil {
			first = err
			cancel()
		}
	}
	return first
}

// Shutdown releases devices and provider connections.
func (a *App) Shutdown() {
	for name, c := range map[string]interface{ Close() error }{
		"microphone": a.mic,
		"generation": a.llm,
		"synthesis":  a.tts,
	} {
		if c == nil {
			continue
		}
		if err := c.Close(); err != nil {
			a.logger.Warn("close failed", "component", name, "error", err)
		}
	}
}

// TokenSource returns the recognition credential source: an ephemeral key
// when a project id is configured, otherwise the long-lived key.
func TokenSource(cfg *config.Config, logger *slog.Logger) stt.TokenSource {
	fb := &stt.FallbackTokenSource{APIKey: cfg.DeepgramAPIKey, Logger: logger}
	if cfg.DeepgramProjectID != "" {
		fb.Primary = &stt.DeepgramTokenSource{
			APIKey:    cfg.DeepgramAPIKey,
			ProjectID: cfg.DeepgramProjectID,
		}
	}
	return fb
}

// NewGenerator builds the configured generation provider.
func NewGenerator(ctx context.Context, cfg *config.Config, logger *slog.Logger) (inference.Provider, error) {
	var (
		p   inference.Provider
		err error
	)
	switch cfg.LLMProvider {
	case "gemini":
		p, err = inference.NewGemini(ctx,
			inference.WithAPIKey(cfg.GeminiAPIKey),
			inference.WithModel(cfg.GeminiModel),
			inference.WithLogger(logger),
		)
	case "openai":
		p, err = inference.NewClient(
			inference.WithAPIKey(cfg.OpenAIAPIKey),
			inference.WithModel(cfg.OpenAIModel),
			inference.WithLogger(logger),
		)
	default:
		err = fmt.Errorf("%w: %q", config.ErrUnknownProvider, cfg.LLMProvider)
	}
	if err != nil {
		return nil, err
	}
	return p, nil
}

// NewSynthesizer builds the configured synthesis provider.
func NewSynthesizer(cfg *config.Config, logger *slog.Logger) (tts.Provider, error) {
	var (
		p   tts.Provider
		err error
	)
	switch cfg.TTSProvider {
	case "murf":
		p, err = tts.NewMurf(
			tts.WithAPIKey(cfg.MurfAPIKey),
			tts.WithVoice(cfg.MurfVoiceID),
			tts.WithStyle(cfg.MurfStyle),
			tts.WithLogger(logger),
		)
	case "elevenlabs":
		p, err = tts.NewElevenLabs(
			tts.WithAPIKey(cfg.ElevenLabsAPIKey),
			tts.WithVoice(cfg.ElevenLabsVoiceID),
			tts.WithLogger(logger),
		)
	default:
		err = fmt.Errorf("%w: %q", config.ErrUnknownProvider, cfg.TTSProvider)
	}
	if err != nil {
		return nil, err
	}
	return p, nil
}
