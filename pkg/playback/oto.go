package playback

import (
	"bytes"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/ebitengine/oto/v3"
)

// DefaultSampleRate is the speaker rate. Clips are converted to it.
const DefaultSampleRate = 24000

// pollInterval is how often a voice checks whether oto has drained.
const pollInterval = 20 * time.Millisecond

// OtoSink plays clips on the default speaker.
// Only one oto context may exist per process.
type OtoSink struct {
	ctx        *oto.Context
	sampleRate int
	logger     *slog.Logger
}

// NewOtoSink opens the speaker at sampleRate, mono PCM16.
func NewOtoSink(sampleRate int, logger *slog.Logger) (*OtoSink, error) {
	if sampleRate <= 0 {
		sampleRate = DefaultSampleRate
	}
	if logger == nil {
		logger = slog.Default()
	}

	ctx, ready, err := oto.NewContext(&oto.NewContextOptions{
		SampleRate:   sampleRate,
		ChannelCount: 1,
		Format:       oto.FormatSignedInt16LE,
	})
	if err != nil {
		return nil, fmt.Errorf("open speaker: %w", err)
	}
	<-ready

	logger = logger.With("component", "playback.oto")
	logger.Debug("speaker initialized", "sample_rate", sampleRate)
	return &OtoSink{ctx: ctx, sampleRate: sampleRate, logger: logger}, nil
}

// Start decodes the clip and begins playback.
func (s *OtoSink) Start(clip Clip) (Voice, error) {
	pcm, err := Decode(clip.Audio, clip.Format, s.sampleRate)
	if err != nil {
		return nil, err
	}

	player := s.ctx.NewPlayer(bytes.NewReader(pcm))
	v := &otoVoice{
		player: player,
		done:   make(chan error, 1),
		stop:   make(chan struct{}),
	}
	player.Play()
	go v.wait()
	return v, nil
}

type otoVoice struct {
	player   *oto.Player
	done     chan error
	stop     chan struct{}
	stopOnce sync.Once
}

// wait polls until oto drains the reader or the voice is stopped.
func (v *otoVoice) wait() {
	ticker := time.NewTicker(pollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-v.stop:
			return
		case <-ticker.C:
			if v.player.IsPlaying() {
				continue
			}
			v.done <- v.player.Err()
			return
		}
	}
}

func (v *otoVoice) Done() <-chan error {
	return v.done
}

func (v *otoVoice) Stop() {
	v.stopOnce.Do(func() {
		close(v.stop)
		v.player.Pause()
	})
}

func (v *otoVoice) Close() error {
	return v.player.Close()
}
