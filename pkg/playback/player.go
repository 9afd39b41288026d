// Package playback plays synthesized caller speech one clip at a time.
//
// The Player owns the single current clip. Play replaces it, Interrupt
// stops it, and either way the previous clip's resources are released
// before anything else can start. A clip that is interrupted never
// reports completion.
package playback

import (
	"fmt"
	"log/slog"
	"sync"

	"github.com/Dupahar/crisis-call-murf-agent/pkg/tts"
)

// Clip is one synthesized utterance.
type Clip struct {
	Audio  []byte
	Format tts.AudioFormat

	// Release, if set, frees resources tied to the clip. Called exactly once.
	Release func()
}

// Voice controls a clip that a Sink is playing.
type Voice interface {
	// Done delivers one value when playback ends on its own: nil on
	// normal completion, otherwise the mid-playback error.
	Done() <-chan error

	// Stop silences the clip immediately. Done may never fire afterwards.
	Stop()

	// Close releases the underlying device resources.
	Close() error
}

// Sink starts clips on an output device.
type Sink interface {
	Start(clip Clip) (Voice, error)
}

// Result reports how a clip ended.
type Result struct {
	TurnID uint64
	Err    error
}

// handle is the single owned playback resource.
type handle struct {
	turnID  uint64
	voice   Voice
	clip    Clip
	stopped chan struct{}
	once    sync.Once
}

func (h *handle) release() {
	h.once.Do(func() {
		h.voice.Close()
		if h.clip.Release != nil {
			h.clip.Release()
		}
	})
}

// Player plays zero or one clip at a time.
type Player struct {
	sink     Sink
	onFinish func(Result)
	logger   *slog.Logger

	mu      sync.Mutex
	current *handle
}

// NewPlayer creates a player. onFinish is called from a background
// goroutine when a clip completes or fails on its own.
func NewPlayer(sink Sink, onFinish func(Result), logger *slog.Logger) *Player {
	if logger == nil {
		logger = slog.Default()
	}
	if onFinish == nil {
		onFinish = func(Result) {}
	}
	return &Player{
		sink:     sink,
		onFinish: onFinish,
		logger:   logger.With("component", "playback"),
	}
}

// Play interrupts whatever is playing and starts clip for turnID.
// A start failure (for example an undecodable payload) is returned and
// the clip is released.
func (p *Player) Play(clip Clip, turnID uint64) error {
	p.Interrupt()

	voice, err := p.sink.Start(clip)
	if err != nil {
		if clip.Release != nil {
			clip.Release()
		}
		return fmt.Errorf("start playback: %w", err)
	}

	h := &handle{
		turnID:  turnID,
		voice:   voice,
		clip:    clip,
		stopped: make(chan struct{}),
	}

	p.mu.Lock()
	prev := p.current
	p.current = h
	p.mu.Unlock()

	// A concurrent Play could have slipped in between; keep the invariant.
	if prev != nil {
		p.stop(prev)
	}

	go p.watch(h)
	p.logger.Debug("playback started", "turn", turnID, "bytes", len(clip.Audio))
	return nil
}

func (p *Player) watch(h *handle) {
	var err error
	select {
	case err = <-h.voice.Done():
	case <-h.stopped:
		return
	}

	p.mu.Lock()
	if p.current != h {
		p.mu.Unlock()
		return
	}
	p.current = nil
	p.mu.Unlock()

	h.release()
	if err != nil {
		p.logger.Warn("playback failed", "turn", h.turnID, "error", err)
	} else {
		p.logger.Debug("playback finished", "turn", h.turnID)
	}
	p.onFinish(Result{TurnID: h.turnID, Err: err})
}

// Interrupt stops the current clip and releases it. It reports whether
// anything was playing. Safe to call at any time.
func (p *Player) Interrupt() bool {
	p.mu.Lock()
	h := p.current
	p.current = nil
	p.mu.Unlock()

	if h == nil {
		return false
	}
	p.stop(h)
	p.logger.Debug("playback interrupted", "turn", h.turnID)
	return true
}

func (p *Player) stop(h *handle) {
	close(h.stopped)
	h.voice.Stop()
	h.release()
}

// Playing reports whether a clip is current.
func (p *Player) Playing() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.current != nil
}

// CurrentTurn returns the turn id of the current clip, or 0.
func (p *Player) CurrentTurn() uint64 {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.current == nil {
		return 0
	}
	return p.current.turnID
}

// Close interrupts playback.
func (p *Player) Close() error {
	p.Interrupt()
	return nil
}
