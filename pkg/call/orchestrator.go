// Package call runs one simulated emergency call: it listens to the
// operator, decides when the caller should answer, generates and speaks
// the answer, and lets the operator talk over it.
//
// Everything happens on a single dispatch loop (Run). Network calls,
// timers and audio callbacks run in their own goroutines and post an
// Event back to the loop. Results carry the turn id they were issued
// for; anything that is no longer current is dropped.
package call

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/Dupahar/crisis-call-murf-agent/pkg/audioio"
	"github.com/Dupahar/crisis-call-murf-agent/pkg/escalation"
	"github.com/Dupahar/crisis-call-murf-agent/pkg/inference"
	"github.com/Dupahar/crisis-call-murf-agent/pkg/playback"
	"github.com/Dupahar/crisis-call-murf-agent/pkg/sanitize"
	"github.com/Dupahar/crisis-call-murf-agent/pkg/sequencer"
	"github.com/Dupahar/crisis-call-murf-agent/pkg/stt"
	"github.com/Dupahar/crisis-call-murf-agent/pkg/transcript"
	"github.com/Dupahar/crisis-call-murf-agent/pkg/tts"
)

// Status lines shown to the operator.
const (
	StatusConnecting   = "Connecting..."
	StatusActive       = "Active - High Distress"
	StatusEnded        = "Ended"
	StatusMicError     = "Error accessing microphone"
	StatusChannelError = "Connection Error"
	StatusChannelDrop  = "Recognition channel closed"
)

// Config tunes the orchestrator.
type Config struct {
	Debounce     time.Duration
	InitialDelay time.Duration
	TickInterval time.Duration

	Policy   escalation.Policy
	Scenario Scenario
	Persona  string

	// Style is used when the policy's prosody leaves the style empty.
	VoiceID string
	Style   string

	STT stt.Options

	TokenTimeout      time.Duration
	OpenTimeout       time.Duration
	GenerationTimeout time.Duration
	SynthesisTimeout  time.Duration
}

// DefaultConfig returns the dispatcher scenario with production timings.
func DefaultConfig() Config {
	return Config{
		Debounce:          transcript.DefaultDelay,
		InitialDelay:      time.Second,
		TickInterval:      time.Second,
		Policy:            escalation.Dispatcher(),
		Scenario:          DefaultScenario(),
		Persona:           Persona,
		VoiceID:           "en-IN-isha",
		Style:             "Conversational",
		STT:               stt.DefaultOptions(),
		TokenTimeout:      5 * time.Second,
		OpenTimeout:       10 * time.Second,
		GenerationTimeout: 15 * time.Second,
		SynthesisTimeout:  20 * time.Second,
	}
}

// Deps are the collaborators the orchestrator drives.
type Deps struct {
	Tokens stt.TokenSource
	STT    stt.Provider
	Mic    audioio.Source
	LLM    inference.Provider
	TTS    tts.Provider
	Sink   playback.Sink

	// Now defaults to time.Now. Latency and timestamps read it.
	Now    func() time.Time
	Logger *slog.Logger
}

func (d Deps) validate() error {
	switch {
	case d.Tokens == nil:
		return errors.New("call: token source is required")
	case d.STT == nil:
		return errors.New("call: speech recognition provider is required")
	case d.Mic == nil:
		return errors.New("call: microphone is required")
	case d.LLM == nil:
		return errors.New("call: generation provider is required")
	case d.TTS == nil:
		return errors.New("call: synthesis provider is required")
	case d.Sink == nil:
		return errors.New("call: playback sink is required")
	}
	return nil
}

// Orchestrator owns one call at a time.
type Orchestrator struct {
	cfg    Config
	deps   Deps
	now    func() time.Time
	logger *slog.Logger

	events  chan Event
	done    chan struct{}
	running atomic.Bool
	runCtx  context.Context

	seq     sequencer.Sequencer
	clock   *escalation.Clock
	agg     *transcript.Aggregator
	player  *playback.Player
	metrics *MetricsCollector

	// Loop-owned state.
	session    Session
	messages   []Message
	turn       Turn
	urgent     bool
	speaking   bool
	processing bool
	listening  bool
	interim    string
	latency    time.Duration

	callSeq    uint64
	callCtx    context.Context
	callCancel context.CancelFunc
	epoch      uint64
	channel    stt.Channel
	ticker     *time.Ticker
	tickStop   chan struct{}
	initial    *time.Timer

	// Written by the capture goroutine.
	level atomic.Uint64

	subMu  sync.Mutex
	subs   map[int]chan Snapshot
	nextID int
	latest Snapshot
}

// New creates an orchestrator. Call Run to start it.
func New(cfg Config, deps Deps) (*Orchestrator, error) {
	if err := deps.validate(); err != nil {
		return nil, err
	}
	if deps.Now == nil {
		deps.Now = time.Now
	}
	if deps.Logger == nil {
		deps.Logger = slog.Default()
	}
	def := DefaultConfig()
	if cfg.TickInterval <= 0 {
		cfg.TickInterval = def.TickInterval
	}
	if cfg.Policy.HighThreshold <= 0 {
		cfg.Policy = def.Policy
	}
	for _, d := range []*time.Duration{&cfg.TokenTimeout, &cfg.OpenTimeout, &cfg.GenerationTimeout, &cfg.SynthesisTimeout} {
		if *d <= 0 {
			*d = 15 * time.Second
		}
	}

	o := &Orchestrator{
		cfg:     cfg,
		deps:    deps,
		now:     deps.Now,
		logger:  deps.Logger.With("component", "call"),
		events:  make(chan Event, 256),
		done:    make(chan struct{}),
		clock:   escalation.NewClock(deps.Now),
		metrics: NewMetricsCollector(deps.Now),
		session: NewSession(""),
		subs:    make(map[int]chan Snapshot),
	}
	o.agg = transcript.New(cfg.Debounce, func(gen uint64) {
		o.post(Event{Kind: UtteranceReady, Gen: gen})
	})
	o.player = playback.NewPlayer(deps.Sink, func(r playback.Result) {
		kind := PlaybackEnded
		if r.Err != nil {
			kind = PlaybackErrored
		}
		o.post(Event{Kind: kind, TurnID: r.TurnID, Err: r.Err})
	}, deps.Logger)
	o.latest = o.snapshot()
	return o, nil
}

// Run processes events until ctx is cancelled.
func (o *Orchestrator) Run(ctx context.Context) error {
	if !o.running.CompareAndSwap(false, true) {
		return ErrAlreadyRunning
	}
	o.runCtx = ctx
	defer close(o.done)

	o.logger.Info("orchestrator started", "scenario", o.cfg.Scenario.Title)
	for {
		select {
		case <-ctx.Done():
			if o.session.Live() {
				o.teardown()
				o.session.Transition(PhaseEnded)
				o.session.Status = StatusEnded
			}
			o.player.Close()
			o.publish()
			o.closeSubscribers()
			o.logger.Info("orchestrator stopped")
			return nil
		case ev := <-o.events:
			o.dispatch(ev)
		}
	}
}

// Connect starts a new call. It returns once the call is connecting;
// the phase becomes active when the recognition channel opens.
func (o *Orchestrator) Connect(ctx context.Context) error {
	return o.command(ctx, ConnectRequested)
}

// Disconnect ends the current call.
func (o *Orchestrator) Disconnect(ctx context.Context) error {
	return o.command(ctx, DisconnectRequested)
}

// Listen reopens the recognition channel after it dropped.
func (o *Orchestrator) Listen(ctx context.Context) error {
	return o.command(ctx, ListenRequested)
}

func (o *Orchestrator) command(ctx context.Context, kind EventKind) error {
	reply := make(chan error, 1)
	select {
	case o.events <- Event{Kind: kind, reply: reply}:
	case <-o.done:
		return ErrNotRunning
	case <-ctx.Done():
		return ctx.Err()
	}
	select {
	case err := <-reply:
		return err
	case <-o.done:
		return ErrNotRunning
	case <-ctx.Done():
		return ctx.Err()
	}
}

// post delivers an event unless the loop has stopped.
func (o *Orchestrator) post(ev Event) {
	select {
	case o.events <- ev:
	case <-o.done:
	}
}

func (o *Orchestrator) dispatch(ev Event) {
	var err error
	switch ev.Kind {
	case ConnectRequested:
		err = o.handleConnect()
	case DisconnectRequested:
		err = o.handleDisconnect()
	case ListenRequested:
		err = o.handleListen()
	case ChannelOpened:
		o.handleChannelOpened(ev)
	case ChannelFailed:
		o.handleChannelFailed(ev)
	case ChannelClosed:
		o.handleChannelClosed(ev)
	case FragmentReceived:
		o.handleFragment(ev)
	case UtteranceReady:
		o.handleUtterance(ev)
	case InitialTurnDue:
		o.handleInitialTurn(ev)
	case GenerationDone:
		o.handleGeneration(ev)
	case SynthesisDone:
		o.handleSynthesis(ev)
	case PlaybackEnded, PlaybackErrored:
		o.handlePlaybackEnd(ev)
	case Tick:
		o.handleTick(ev)
	default:
		o.logger.Warn("unknown event", "kind", ev.Kind)
	}
	o.publish()
	if ev.reply != nil {
		ev.reply <- err
	}
}

// --- call lifecycle ---

func (o *Orchestrator) handleConnect() error {
	if o.session.Live() {
		return ErrCallInProgress
	}

	o.callSeq++
	o.session = NewSession(uuid.NewString())
	if err := o.session.Transition(PhaseConnecting); err != nil {
		return err
	}
	o.session.Status = StatusConnecting
	o.messages = nil
	o.turn = Turn{}
	o.urgent, o.speaking, o.processing = false, false, false
	o.interim = ""
	o.latency = 0
	o.metrics.Reset()
	o.callCtx, o.callCancel = context.WithCancel(o.runCtx)
	o.logger = o.deps.Logger.With("component", "call", "call", o.session.ID)

	o.logger.Info("call connecting")
	o.openChannel()
	return nil
}

func (o *Orchestrator) handleDisconnect() error {
	switch o.session.Phase {
	case PhaseIdle:
		return ErrNotActive
	case PhaseEnded:
		return nil
	}

	o.teardown()
	if err := o.session.Transition(PhaseEnded); err != nil {
		return err
	}
	o.session.Status = StatusEnded
	o.logger.Info("call ended", "elapsed", FormatElapsed(o.session.Elapsed), "messages", len(o.messages))
	return nil
}

// teardown releases every resource a live call holds. Outstanding turn
// results become permanently stale.
func (o *Orchestrator) teardown() {
	o.stopCapture()
	if o.player.Interrupt() {
		o.metrics.Finish(o.turn.ID, true)
	}
	o.stopTicker()
	if o.initial != nil {
		o.initial.Stop()
		o.initial = nil
	}
	o.closeChannel()
	o.seq.Invalidate()
	o.agg.Reset()
	if o.callCancel != nil {
		o.callCancel()
	}

	o.speaking, o.processing, o.listening, o.urgent = false, false, false, false
	o.interim = ""
}

func (o *Orchestrator) handleListen() error {
	if o.session.Phase != PhaseActive {
		return ErrNotActive
	}
	if o.listening || o.channel != nil {
		return nil
	}
	o.session.Status = StatusConnecting
	o.openChannel()
	return nil
}

// openChannel fetches a credential and opens recognition off the loop.
func (o *Orchestrator) openChannel() {
	o.epoch++
	epoch := o.epoch
	ctx := o.callCtx

	go func() {
		tctx, cancel := context.WithTimeout(ctx, o.cfg.TokenTimeout)
		cred, err := o.deps.Tokens.Token(tctx)
		cancel()
		if err != nil {
			o.post(Event{Kind: ChannelFailed, Epoch: epoch, Err: fmt.Errorf("get credential: %w", err)})
			return
		}

		octx, cancel := context.WithTimeout(ctx, o.cfg.OpenTimeout)
		ch, err := o.deps.STT.Open(octx, cred, o.cfg.STT)
		cancel()
		if err != nil {
			o.post(Event{Kind: ChannelFailed, Epoch: epoch, Err: fmt.Errorf("open channel: %w", err)})
			return
		}
		o.post(Event{Kind: ChannelOpened, Epoch: epoch, Channel: ch})
	}()
}

func (o *Orchestrator) handleChannelOpened(ev Event) {
	if ev.Epoch != o.epoch || !o.session.Live() {
		ev.Channel.Close()
		return
	}

	o.channel = ev.Channel
	if err := o.startCapture(ev.Epoch, ev.Channel); err != nil {
		o.logger.Error("microphone unavailable", "error", err)
		o.closeChannel()
		o.setupFailed(StatusMicError)
		return
	}
	go o.pumpChannel(ev.Epoch, ev.Channel)

	o.clock.Reset()
	o.listening = true
	o.logger.Info("recognition channel open")

	if o.session.Phase == PhaseConnecting {
		o.session.Transition(PhaseActive)
		o.session.StartedAt = o.now()
		o.startTicker()
		call := o.callSeq
		o.initial = time.AfterFunc(o.cfg.InitialDelay, func() {
			o.post(Event{Kind: InitialTurnDue, Call: call})
		})
	}
	o.session.Status = StatusActive
}

func (o *Orchestrator) handleChannelFailed(ev Event) {
	if ev.Epoch != o.epoch || !o.session.Live() {
		return
	}
	o.logger.Error("recognition setup failed", "error", ev.Err)
	o.setupFailed(StatusChannelError)
}

// setupFailed ends a connecting call with an error status. An active call
// stays up with listening off.
func (o *Orchestrator) setupFailed(status string) {
	if o.session.Phase == PhaseConnecting {
		o.teardown()
		o.session.Fail(status)
		return
	}
	o.stopCapture()
	o.closeChannel()
	o.listening = false
	o.session.Status = status
}

func (o *Orchestrator) handleChannelClosed(ev Event) {
	if ev.Epoch != o.epoch || o.session.Phase != PhaseActive {
		return
	}
	o.logger.Warn("recognition channel dropped", "error", ev.Err)
	o.stopCapture()
	o.closeChannel()
	o.agg.Reset()
	o.listening = false
	o.interim = ""
	o.session.Status = StatusChannelDrop
}

func (o *Orchestrator) closeChannel() {
	if o.channel == nil {
		return
	}
	if err := o.channel.Close(); err != nil {
		o.logger.Debug("close channel", "error", err)
	}
	o.channel = nil
	o.epoch++
}

// pumpChannel forwards recognition events until the channel ends.
func (o *Orchestrator) pumpChannel(epoch uint64, ch stt.Channel) {
	for ev := range ch.Events() {
		o.post(Event{Kind: FragmentReceived, Epoch: epoch, Fragment: ev})
	}
	select {
	case err := <-ch.Err():
		o.post(Event{Kind: ChannelClosed, Epoch: epoch, Err: err})
	default:
	}
}

func (o *Orchestrator) startCapture(epoch uint64, ch stt.Channel) error {
	mic := o.deps.Mic
	if err := mic.Start(o.callCtx); err != nil {
		return err
	}
	stream, logger := mic.Stream(), o.logger

	go func() {
		for chunk := range stream {
			o.level.Store(math.Float64bits(chunk.Level()))
			if err := ch.Send(chunk.Bytes()); err != nil {
				logger.Debug("audio not sent", "epoch", epoch, "error", err)
			}
		}
		o.level.Store(0)
	}()
	return nil
}

func (o *Orchestrator) stopCapture() {
	if err := o.deps.Mic.Stop(); err != nil {
		o.logger.Debug("stop capture", "error", err)
	}
}

func (o *Orchestrator) startTicker() {
	o.stopTicker()
	o.ticker = time.NewTicker(o.cfg.TickInterval)
	o.tickStop = make(chan struct{})
	ticker, stop, call := o.ticker, o.tickStop, o.callSeq

	go func() {
		for {
			select {
			case <-ticker.C:
				o.post(Event{Kind: Tick, Call: call})
			case <-stop:
				return
			}
		}
	}()
}

func (o *Orchestrator) stopTicker() {
	if o.ticker == nil {
		return
	}
	o.ticker.Stop()
	close(o.tickStop)
	o.ticker, o.tickStop = nil, nil
}

func (o *Orchestrator) handleTick(ev Event) {
	if ev.Call != o.callSeq || o.session.Phase != PhaseActive {
		return
	}
	o.session.Elapsed += o.cfg.TickInterval
}

// --- listening ---

func (o *Orchestrator) handleFragment(ev Event) {
	if ev.Epoch != o.epoch || o.session.Phase != PhaseActive {
		return
	}

	f := ev.Fragment
	if !f.Final {
		o.interim = strings.TrimSpace(f.Text)
		return
	}
	o.interim = ""

	if !o.agg.Push(transcript.Fragment{Text: f.Text, Final: true}) {
		return
	}
	if o.player.Interrupt() {
		o.speaking = false
		o.clock.Reset()
		o.metrics.Finish(o.turn.ID, true)
		o.logger.Info("caller interrupted", "turn", o.turn.ID)
	}
}

func (o *Orchestrator) handleUtterance(ev Event) {
	text, ok := o.agg.Drain(ev.Gen)
	if !ok || o.session.Phase != PhaseActive {
		return
	}
	o.startTurn(text, false)
}

func (o *Orchestrator) handleInitialTurn(ev Event) {
	if ev.Call != o.callSeq || o.session.Phase != PhaseActive {
		return
	}
	o.initial = nil
	o.startTurn(InitialUtterance, true)
}

// --- turns ---

// startTurn issues a new turn. Every earlier turn becomes stale.
func (o *Orchestrator) startTurn(text string, initial bool) {
	text = strings.TrimSpace(text)
	if text == "" {
		return
	}

	id := o.seq.Next()
	latency := o.clock.Latency()
	decision := o.cfg.Policy.Evaluate(latency, initial)

	o.turn = Turn{
		ID:        id,
		InputText: text,
		Latency:   latency,
		Panic:     decision.Panic,
		Initial:   initial,
		IssuedAt:  o.now(),
	}
	o.urgent = decision.Panic
	o.latency = latency
	o.processing = true
	o.interim = ""

	msgs := append(History(o.messages), inference.NewUserMessage(decision.Apply(text)))
	if !initial {
		o.messages = append(o.messages, newMessage(RoleOperator, text, o.turn.IssuedAt))
	}
	o.metrics.Begin(id)

	o.logger.Info("turn issued",
		"turn", id,
		"latency", latency.Round(100*time.Millisecond),
		"panic", decision.Panic,
		"initial", initial,
	)

	ctx := o.callCtx
	req := &inference.ChatRequest{System: o.cfg.Persona, Messages: msgs}
	go func() {
		gctx, cancel := context.WithTimeout(ctx, o.cfg.GenerationTimeout)
		defer cancel()
		resp, err := o.deps.LLM.Chat(gctx, req)
		ev := Event{Kind: GenerationDone, TurnID: id, Err: err}
		if err == nil {
			ev.Text = resp.Message.Content
		}
		o.post(ev)
	}()
}

// stale reports whether a result belongs to a superseded turn.
func (o *Orchestrator) stale(ev Event) bool {
	if o.seq.IsCurrent(ev.TurnID) && o.session.Phase == PhaseActive {
		return false
	}
	o.logger.Debug("stale result discarded", "kind", ev.Kind, "turn", ev.TurnID, "current", o.seq.Current())
	return true
}

// abandon drops the current turn after a failure. Nothing is retried.
func (o *Orchestrator) abandon(stage string, err error) {
	if errors.Is(err, context.DeadlineExceeded) {
		o.logger.Warn(stage+" timed out, turn discarded", "turn", o.turn.ID)
	} else {
		o.logger.Warn(stage+" failed, turn abandoned", "turn", o.turn.ID, "error", err)
	}
	o.processing = false
	o.speaking = false
}

func (o *Orchestrator) handleGeneration(ev Event) {
	if o.stale(ev) {
		return
	}
	if ev.Err != nil {
		o.abandon("generation", ev.Err)
		return
	}
	o.metrics.MarkGenerated(ev.TurnID)

	res := sanitize.Clean(ev.Text, o.turn.Initial)
	if res.Fallback {
		o.logger.Warn("empty generation, using fallback line", "turn", ev.TurnID)
	}
	if res.Deduplicated {
		o.logger.Debug("duplicated reply collapsed", "turn", ev.TurnID)
	}

	prosody := o.cfg.Policy.Prosody(escalation.Decision{Panic: o.turn.Panic})
	if prosody.Style == "" {
		prosody.Style = o.cfg.Style
	}
	req := tts.Request{
		Text:    res.Text,
		VoiceID: o.cfg.VoiceID,
		Style:   prosody.Style,
		Rate:    prosody.Rate,
		Pitch:   prosody.Pitch,
	}

	ctx, id := o.callCtx, ev.TurnID
	go func() {
		sctx, cancel := context.WithTimeout(ctx, o.cfg.SynthesisTimeout)
		defer cancel()
		audio, err := o.deps.TTS.Synthesize(sctx, req)
		if err == nil && (audio == nil || len(audio.Audio) == 0) {
			err = tts.ErrEmptyAudio
		}
		o.post(Event{Kind: SynthesisDone, TurnID: id, Text: req.Text, Audio: audio, Err: err})
	}()
}

func (o *Orchestrator) handleSynthesis(ev Event) {
	if o.stale(ev) {
		return
	}
	if ev.Err != nil {
		o.abandon("synthesis", ev.Err)
		return
	}
	o.metrics.MarkSynthesized(ev.TurnID)

	clip := playback.Clip{Audio: ev.Audio.Audio, Format: ev.Audio.Format}
	if err := o.player.Play(clip, ev.TurnID); err != nil {
		o.abandon("playback", err)
		return
	}
	o.metrics.MarkPlaying(ev.TurnID)

	o.messages = append(o.messages, newMessage(RoleCaller, ev.Text, o.now()))
	o.processing = false
	o.speaking = true
	o.logger.Info("caller speaking", "turn", ev.TurnID, "text", ev.Text)
}

// handlePlaybackEnd hands the floor back to the operator. Interrupted
// clips never report. A clip that ends after a newer turn was issued
// leaves that turn's state alone.
func (o *Orchestrator) handlePlaybackEnd(ev Event) {
	if o.session.Phase != PhaseActive {
		return
	}
	if ev.Err != nil {
		o.logger.Warn("playback failed", "turn", ev.TurnID, "error", ev.Err)
	}
	o.metrics.Finish(ev.TurnID, false)
	if m := o.metrics.History(); len(m) > 0 && m[len(m)-1].TurnID == ev.TurnID {
		o.logger.Debug("turn latency", "turn", ev.TurnID, "stages", m[len(m)-1].FormatLatency())
	}
	if !o.seq.IsCurrent(ev.TurnID) {
		o.logger.Debug("stale playback end ignored", "turn", ev.TurnID, "current", o.seq.Current())
		return
	}

	o.speaking = false
	o.urgent = false
	o.clock.Reset()
}

// Metrics returns the turn metrics collector.
func (o *Orchestrator) Metrics() *MetricsCollector {
	return o.metrics
}

// Scenario returns the configured scenario.
func (o *Orchestrator) Scenario() Scenario {
	return o.cfg.Scenario
}
