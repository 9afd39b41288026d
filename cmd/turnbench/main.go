// Command turnbench measures turn latency against the configured
// generation and synthesis providers without a microphone or dashboard.
//
// It replays a scripted dispatcher conversation through the same
// annotation, sanitizing and prosody rules the live call uses, and prints
// a per-stage breakdown for every turn.
//
// Usage:
//
//	go run ./cmd/turnbench/
//	go run ./cmd/turnbench/ -play -llm openai -tts elevenlabs
//
// Flags:
//
//	-play      Play each reply through the speaker
//	-slow      Simulated operator response time that triggers panic
//	-llm, -tts Provider overrides
package main

import (
	"context"
	"errors"
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
	"github.com/Dupahar/crisis-call-murf-agent/pkg/call"
	"github.com/Dupahar/crisis-call-murf-agent/pkg/escalation"
	"github.com/Dupahar/crisis-call-murf-agent/pkg/inference"
	"github.com/Dupahar/crisis-call-murf-agent/pkg/playback"
	"github.com/Dupahar/crisis-call-murf-agent/pkg/sanitize"
	"github.com/Dupahar/crisis-call-murf-agent/pkg/tts"
)

// step is one scripted operator turn and how long the operator took.
type step struct {
	text    string
	latency time.Duration
}

var (
	play    = flag.Bool("play", false, "Play each reply through the speaker")
	slow    = flag.Duration("slow", 12*time.Second, "Simulated response time for the slow turn")
	llm     = flag.String("llm", "", "Generation provider override: gemini or openai")
	ttsName = flag.String("tts", "", "Synthesis provider override: murf or elevenlabs")
	timeout = flag.Duration("timeout", 20*time.Second, "Per-stage timeout")
)

func main() {
	flag.Parse()
	config.LoadEnvFiles()

	cfg, err := config.Load()
	if err != nil {
		fatal(err)
	}
	if *llm != "" {
		cfg.LLMProvider = strings.ToLower(*llm)
	}
	if *ttsName != "" {
		cfg.TTSProvider = strings.ToLower(*ttsName)
	}
	log.Init(cfg.LogLevel)

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	gen, err := app.NewGenerator(ctx, cfg, log.L())
	if err != nil {
		fatal(err)
	}
	defer gen.Close()

	synth, err := app.NewSynthesizer(cfg, log.L())
	if err != nil {
		fatal(err)
	}
	defer synth.Close()

	b := &bench{
		gen:     gen,
		synth:   synth,
		policy:  escalation.ForScenario(cfg.Scenario),
		metrics: call.NewMetricsCollector(nil),
		voice:   cfg.MurfVoiceID,
		style:   cfg.MurfStyle,
	}
	if cfg.TTSProvider == "elevenlabs" {
		b.voice, b.style = cfg.ElevenLabsVoiceID, ""
	}
	if *play {
		sink, err := playback.NewOtoSink(playback.DefaultSampleRate, log.L())
		if err != nil {
			fatal(err)
		}
		b.done = make(chan playback.Result, 1)
		b.player = playback.NewPlayer(sink, func(r playback.Result) { b.done <- r }, log.L())
		defer b.player.Close()
	}

	fmt.Printf("turnbench: llm=%s tts=%s scenario=%s\n\n", cfg.LLMProvider, cfg.TTSProvider, cfg.Scenario)

	script := []step{
		{call.InitialUtterance, 0},
		{"112, what is your emergency?", 2 * time.Second},
		{"Which floor are you on?", 4 * time.Second},
		{"Okay. Is the door handle hot?", *slow},
		{"Stay low and cover your mouth with a wet cloth.", time.Second},
	}
	for i, s := range script {
		if ctx.Err() != nil {
			break
		}
		b.turn(ctx, uint64(i+1), s, i == 0)
	}

	sum := b.metrics.Summary()
	fmt.Println()
	fmt.Printf("turns: %d  avg LLM %.0fms  avg TTS %.0fms  avg first audio %.0fms\n",
		sum.Turns, sum.Generation, sum.Synthesis, sum.FirstAudio)
}

type bench struct {
	gen     inference.Provider
	synth   tts.Provider
	policy  escalation.Policy
	metrics *call.MetricsCollector
	voice   string
	style   string

	player  *playback.Player
	done    chan playback.Result
	history []call.Message
}

func (b *bench) turn(ctx context.Context, id uint64, s step, initial bool) {
	decision := b.policy.Evaluate(s.latency, initial)
	b.metrics.Begin(id)

	if !initial {
		fmt.Printf("operator (%s): %s\n", s.latency, s.text)
	}
	msgs := append(call.History(b.history), inference.NewUserMessage(decision.Apply(s.text)))

	gctx, cancel := context.WithTimeout(ctx, *timeout)
	resp, err := b.gen.Chat(gctx, &inference.ChatRequest{System: call.Persona, Messages: msgs})
	cancel()
	if err != nil {
		fmt.Printf("  generation failed: %v\n", err)
		return
	}
	b.metrics.MarkGenerated(id)

	reply := sanitize.Clean(resp.Message.Content, initial)
	prosody := b.policy.Prosody(decision)
	if prosody.Style == "" {
		prosody.Style = b.style
	}

	sctx, cancel := context.WithTimeout(ctx, *timeout)
	audio, err := b.synth.Synthesize(sctx, tts.Request{
		Text:    reply.Text,
		VoiceID: b.voice,
		Style:   prosody.Style,
		Rate:    prosody.Rate,
		Pitch:   prosody.Pitch,
	})
	cancel()
	if err == nil && len(audio.Audio) == 0 {
		err = tts.ErrEmptyAudio
	}
	if err != nil {
		fmt.Printf("  synthesis failed: %v\n", err)
		return
	}
	b.metrics.MarkSynthesized(id)

	if !initial {
		b.history = append(b.history, call.Message{Role: call.RoleOperator, Content: s.text})
	}
	b.history = append(b.history, call.Message{Role: call.RoleCaller, Content: reply.Text})

	b.metrics.MarkPlaying(id)
	b.wait(ctx, id, audio)
	b.metrics.Finish(id, false)

	flags := ""
	if decision.Panic {
		flags = " [panic]"
	}
	fmt.Printf("caller%s: %s\n", flags, reply.Text)
	if h := b.metrics.History(); len(h) > 0 {
		fmt.Printf("  %s\n", h[len(h)-1].FormatLatency())
	}
}

// wait plays the clip and blocks until it ends, if playback is enabled.
func (b *bench) wait(ctx context.Context, id uint64, audio *tts.AudioResult) {
	if b.player == nil {
		return
	}
	if err := b.player.Play(playback.Clip{Audio: audio.Audio, Format: audio.Format}, id); err != nil {
		fmt.Printf("  playback failed: %v\n", err)
		return
	}
	select {
	case r := <-b.done:
		if r.Err != nil && !errors.Is(r.Err, context.Canceled) {
			fmt.Printf("  playback error: %v\n", r.Err)
		}
	case <-ctx.Done():
		b.player.Interrupt()
	}
}

func fatal(err error) {
	fmt.Fprintf(os.Stderr, "turnbench: %v\n", err)
	os.Exit(1)
}
