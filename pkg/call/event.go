package call

import (
	"fmt"

	"github.com/Dupahar/crisis-call-murf-agent/pkg/stt"
	"github.com/Dupahar/crisis-call-murf-agent/pkg/tts"
)

// EventKind enumerates everything the dispatch loop reacts to.
type EventKind int

const (
	ConnectRequested EventKind = iota
	DisconnectRequested
	ListenRequested
	ChannelOpened
	ChannelFailed
	ChannelClosed
	FragmentReceived
	UtteranceReady
	InitialTurnDue
	GenerationDone
	SynthesisDone
	PlaybackEnded
	PlaybackErrored
	Tick
)

var eventNames = [...]string{
	ConnectRequested:    "connect_requested",
	DisconnectRequested: "disconnect_requested",
	ListenRequested:     "listen_requested",
	ChannelOpened:       "channel_opened",
	ChannelFailed:       "channel_failed",
	ChannelClosed:       "channel_closed",
	FragmentReceived:    "fragment_received",
	UtteranceReady:      "utterance_ready",
	InitialTurnDue:      "initial_turn_due",
	GenerationDone:      "generation_done",
	SynthesisDone:       "synthesis_done",
	PlaybackEnded:       "playback_ended",
	PlaybackErrored:     "playback_errored",
	Tick:                "tick",
}

func (k EventKind) String() string {
	if int(k) >= 0 && int(k) < len(eventNames) {
		return eventNames[k]
	}
	return fmt.Sprintf("event(%d)", int(k))
}

// Event is posted to the dispatch loop. Only the fields relevant to Kind are set.
type Event struct {
	Kind EventKind

	// Epoch identifies the recognition channel an event belongs to.
	Epoch uint64

	// Call identifies the session for timers armed during it.
	Call uint64

	TurnID uint64

	// Gen is the aggregator generation for UtteranceReady.
	Gen uint64

	Fragment stt.Event
	Channel  stt.Channel
	Text     string
	Audio    *tts.AudioResult
	Err      error

	// reply, if set, receives the command outcome.
	reply chan error
}
