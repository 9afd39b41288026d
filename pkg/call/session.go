package call

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

// Errors returned by the session and orchestrator.
var (
	ErrInvalidTransition = errors.New("call: invalid phase transition")
	ErrNotActive         = errors.New("call: no active call")
	ErrCallInProgress    = errors.New("call: call already in progress")
	ErrNotRunning        = errors.New("call: orchestrator not running")
	ErrAlreadyRunning    = errors.New("call: orchestrator already running")
)

// Phase is the lifecycle stage of a call.
type Phase int

const (
	PhaseIdle Phase = iota
	PhaseConnecting
	PhaseActive
	PhaseEnded
)

func (p Phase) String() string {
	switch p {
	case PhaseIdle:
		return "idle"
	case PhaseConnecting:
		return "connecting"
	case PhaseActive:
		return "active"
	case PhaseEnded:
		return "ended"
	default:
		return fmt.Sprintf("phase(%d)", int(p))
	}
}

// MarshalText renders the phase name in JSON.
func (p Phase) MarshalText() ([]byte, error) {
	return []byte(p.String()), nil
}

// transitions lists the legal edges. Reconnecting creates a new Session.
var transitions = map[Phase][]Phase{
	PhaseIdle:       {PhaseConnecting},
	PhaseConnecting: {PhaseActive, PhaseEnded},
	PhaseActive:     {PhaseEnded},
}

// Session is one call from connect to hang-up.
type Session struct {
	ID        string
	Phase     Phase
	Status    string
	Failed    bool
	StartedAt time.Time
	Elapsed   time.Duration
}

// NewSession returns an idle session.
func NewSession(id string) Session {
	return Session{ID: id, Phase: PhaseIdle, Status: "Ready"}
}

// Transition moves to the given phase if the edge is legal.
func (s *Session) Transition(to Phase) error {
	for _, p := range transitions[s.Phase] {
		if p == to {
			s.Phase = to
			return nil
		}
	}
	return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, s.Phase, to)
}

// Fail ends a call that could not be set up. The reason becomes the status.
func (s *Session) Fail(reason string) error {
	if err := s.Transition(PhaseEnded); err != nil {
		return err
	}
	s.Status = reason
	s.Failed = true
	return nil
}

// Live reports whether the call is connecting or active.
func (s Session) Live() bool {
	return s.Phase == PhaseConnecting || s.Phase == PhaseActive
}

// FormatElapsed renders the call timer as MM:SS.
func FormatElapsed(d time.Duration) string {
	secs := int(d / time.Second)
	return fmt.Sprintf("%02d:%02d", secs/60, secs%60)
}

// MarshalJSON renders the timer both as seconds and as MM:SS.
func (s Session) MarshalJSON() ([]byte, error) {
	type view struct {
		ID             string    `json:"id"`
		Phase          Phase     `json:"phase"`
		Status         string    `json:"status"`
		Failed         bool      `json:"failed"`
		StartedAt      time.Time `json:"started_at,omitzero"`
		ElapsedSeconds int       `json:"elapsed_seconds"`
		Elapsed        string    `json:"elapsed"`
	}
	return json.Marshal(view{
		ID:             s.ID,
		Phase:          s.Phase,
		Status:         s.Status,
		Failed:         s.Failed,
		StartedAt:      s.StartedAt,
		ElapsedSeconds: int(s.Elapsed / time.Second),
		Elapsed:        FormatElapsed(s.Elapsed),
	})
}
