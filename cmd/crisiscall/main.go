// Crisis call simulator: answer a simulated emergency call and keep a
// panicking caller talking until help is on the way.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/Dupahar/crisis-call-murf-agent/internal/config"
	"github.com/Dupahar/crisis-call-murf-agent/internal/log"
	"github.com/Dupahar/crisis-call-murf-agent/pkg/app"
	"github.com/Dupahar/crisis-call-murf-agent/pkg/tts"
)

func main() {
	config.LoadEnvFiles()

	cfg, err := config.Load()
	if err != nil {
		fatal("configuration error", err)
	}
	listVoices := parseFlags(cfg)

	log.Init(cfg.LogLevel)
	logger := log.L()

	if listVoices {
		if err := printVoices(cfg); err != nil {
			fatal("list voices", err)
		}
		return
	}

	a, err := app.New(cfg, logger)
	if err != nil {
		fatal("configuration error", err)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if err := a.Init(ctx); err != nil {
		a.Shutdown()
		fatal("initialization failed", err)
	}
	if err := serve(ctx, a); err != nil {
		cancel()
		fatal("runtime error", err)
	}
	logger.Info("goodbye")
}

type service interface {
	Run(ctx context.Context) error
	Shutdown()
}

// serve runs s and always shuts it down before returning, since fatal
// exits without running deferred calls.
func serve(ctx context.Context, s service) error {
	err := s.Run(ctx)
	s.Shutdown()
	return err
}

// parseFlags applies command line overrides on top of the environment.
func parseFlags(cfg *config.Config) (listVoices bool) {
	debug := flag.Bool("debug", false, "Enable debug logging")
	port := flag.Int("port", cfg.WebPort, "Dashboard port")
	scenario := flag.String("scenario", cfg.Scenario, "Scenario: dispatcher or drill")
	llm := flag.String("llm", cfg.LLMProvider, "Generation provider: gemini or openai")
	ttsProvider := flag.String("tts", cfg.TTSProvider, "Synthesis provider: murf or elevenlabs")
	voice := flag.String("voice", "", "Voice ID (overrides MURF_VOICE_ID / ELEVENLABS_VOICE_ID)")
	list := flag.Bool("list-voices", false, "List Murf voices for the recognition locale and exit")
	flag.Parse()

	cfg.WebPort = *port
	cfg.Scenario = strings.ToLower(*scenario)
	cfg.LLMProvider = strings.ToLower(*llm)
	cfg.TTSProvider = strings.ToLower(*ttsProvider)
	if *debug {
		cfg.LogLevel = "debug"
	}
	if *voice != "" {
		if cfg.TTSProvider == "elevenlabs" {
			cfg.ElevenLabsVoiceID = *voice
		} else {
			cfg.MurfVoiceID = *voice
		}
	}
	return *list
}

func printVoices(cfg *config.Config) error {
	if cfg.MurfAPIKey == "" {
		return fmt.Errorf("MURF_API_KEY is required")
	}
	murf, err := tts.NewMurf(tts.WithAPIKey(cfg.MurfAPIKey), tts.WithLogger(log.L()))
	if err != nil {
		return err
	}
	defer murf.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	voices, err := murf.ListVoices(ctx)
	if err != nil {
		return err
	}
	for _, v := range tts.FilterVoices(voices, cfg.STTLanguage) {
		fmt.Printf("%-24s %-16s %-8s %s\n", v.VoiceID, v.DisplayName, v.Gender, strings.Join(v.AvailableStyles, ", "))
	}
	return nil
}

func fatal(msg string, err error) {
	fmt.Fprintf(os.Stderr, "%s: %v\n", msg, err)
	os.Exit(1)
}
