package tts

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/Dupahar/crisis-call-murf-agent/internal/httpc"
)

const (
	elevenLabsBaseURL  = "https://api.elevenlabs.io/v1"
	providerElevenLabs = "elevenlabs"

	// ModelTurboV2_5 is the fastest English model.
	ModelTurboV2_5 = "eleven_turbo_v2_5"
)

// ElevenLabs implements Provider for ElevenLabs TTS.
//
// ElevenLabs has no style or pitch controls; Rate maps onto the voice
// speed setting and a higher Pitch lowers stability for a shakier voice.
type ElevenLabs struct {
	config  *Config
	client  *http.Client
	logger  *slog.Logger
	baseURL string
}

// NewElevenLabs creates a new ElevenLabs TTS provider.
func NewElevenLabs(opts ...Option) (*ElevenLabs, error) {
	cfg := DefaultConfig()
	cfg.ModelID = ModelTurboV2_5
	cfg.Style = ""
	cfg.Apply(opts...)

	if err := cfg.ValidateWithVoice(); err != nil {
		return nil, err
	}

	return &ElevenLabs{
		config:  cfg,
		client:  cfg.httpClient(),
		logger:  cfg.Logger.With("component", "tts.elevenlabs"),
		baseURL: cfg.endpoint(elevenLabsBaseURL),
	}, nil
}

// Synthesize returns the whole clip. Rate and Pitch are mapped onto voice
// settings since the API has no direct prosody controls.
func (e *ElevenLabs) Synthesize(ctx context.Context, req Request) (*AudioResult, error) {
	if strings.TrimSpace(req.Text) == "" {
		return nil, WrapError(providerElevenLabs, ErrEmptyText)
	}
	start := time.Now()

	voice := firstNonEmpty(req.VoiceID, e.config.VoiceID)
	url := fmt.Sprintf("%s/text-to-speech/%s?output_format=%s", e.baseURL, voice, e.outputFormatParam())

	audio, err := httpc.PostForBytes(ctx, e.client, url, e.headers(), e.buildPayload(req))
	if err != nil {
		return nil, e.wrap(err)
	}
	if len(audio) == 0 {
		return nil, WrapError(providerElevenLabs, ErrEmptyAudio)
	}

	latency := time.Since(start).Milliseconds()
	e.logger.Debug("synthesized",
		"chars", len(req.Text),
		"bytes", len(audio),
		"latency_ms", latency,
		"rate", req.Rate,
		"pitch", req.Pitch,
	)

	return &AudioResult{
		Audio: audio,
		Format: AudioFormat{
			Encoding:   e.config.OutputFormat,
			SampleRate: e.sampleRate(),
			Channels:   1,
		},
		CharCount: len(req.Text),
		LatencyMs: latency,
	}, nil
}

// Health checks the key against the user endpoint.
func (e *ElevenLabs) Health(ctx context.Context) error {
	if err := httpc.GetJSON(ctx, e.client, e.baseURL+"/user", e.headers(), nil); err != nil {
		return e.wrap(err)
	}
	return nil
}

func (e *ElevenLabs) Close() error {
	e.client.CloseIdleConnections()
	return nil
}

func (e *ElevenLabs) headers() map[string]string {
	return map[string]string{"xi-api-key": e.config.APIKey}
}

func (e *ElevenLabs) buildPayload(req Request) map[string]any {
	stability := 0.5 - float64(clampPercent(req.Pitch))/200
	return map[string]any{
		"text":     req.Text,
		"model_id": e.config.ModelID,
		"voice_settings": map[string]any{
			"stability":         stability,
			"similarity_boost":  0.75,
			"use_speaker_boost": true,
			"speed":             speedFromRate(req.Rate),
		},
	}
}

// speedFromRate maps a -50..50 percent rate onto the 0.7..1.2 speed range.
func speedFromRate(rate int) float64 {
	speed := 1 + float64(clampPercent(rate))/250
	if speed < 0.7 {
		return 0.7
	}
	if speed > 1.2 {
		return 1.2
	}
	return speed
}

func (e *ElevenLabs) outputFormatParam() string {
	switch e.config.OutputFormat {
	case EncodingPCM:
		return fmt.Sprintf("pcm_%d", e.sampleRate())
	default:
		return "mp3_44100_128"
	}
}

func (e *ElevenLabs) sampleRate() int {
	if e.config.OutputFormat == EncodingPCM && e.config.SampleRate > 0 {
		return e.config.SampleRate
	}
	if e.config.OutputFormat == EncodingPCM {
		return 24000
	}
	return 44100
}

// wrap turns an error status into APIError using the {"detail": {...}} shape.
func (e *ElevenLabs) wrap(err error) error {
	var se *httpc.StatusError
	if !errors.As(err, &se) {
		return WrapError(providerElevenLabs, err)
	}

	var body struct {
		Detail struct {
			Message string `json:"message"`
			Status  string `json:"status"`
		} `json:"detail"`
	}
	apiErr := &APIError{
		Provider:   providerElevenLabs,
		StatusCode: se.StatusCode,
		Message:    strings.TrimSpace(string(se.Body)),
	}
	if json.Unmarshal(se.Body, &body) == nil && body.Detail.Message != "" {
		apiErr.Message, apiErr.Code = body.Detail.Message, body.Detail.Status
	}
	return apiErr
}

// Verify ElevenLabs implements Provider at compile time.
var _ Provider = (*ElevenLabs)(nil)
