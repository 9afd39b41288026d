package tts

import (
	"context"
	"encoding/base64"
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
	murfBaseURL  = "https://api.murf.ai/v1"
	providerMurf = "murf"
)

// Murf defaults for the caller voice.
const (
	DefaultMurfVoice = "en-IN-isha"
	DefaultMurfStyle = "Conversational"
)

// Murf implements Provider for the Murf speech API.
type Murf struct {
	config  *Config
	client  *http.Client
	logger  *slog.Logger
	baseURL string
}

// NewMurf creates a new Murf TTS provider.
func NewMurf(opts ...Option) (*Murf, error) {
	cfg := DefaultConfig()
	cfg.VoiceID = DefaultMurfVoice
	cfg.Apply(opts...)

	if err := cfg.ValidateWithVoice(); err != nil {
		return nil, err
	}

	return &Murf{
		config:  cfg,
		client:  cfg.httpClient(),
		logger:  cfg.Logger.With("component", "tts.murf"),
		baseURL: cfg.endpoint(murfBaseURL),
	}, nil
}

type murfGenerateRequest struct {
	VoiceID     string `json:"voiceId"`
	Text        string `json:"text"`
	Style       string `json:"style,omitempty"`
	Rate        int    `json:"rate"`
	Pitch       int    `json:"pitch"`
	Format      string `json:"format"`
	SampleRate  int    `json:"sampleRate,omitempty"`
	ChannelType string `json:"channelType"`
}

type murfGenerateResponse struct {
	AudioFile            string  `json:"audioFile"`
	EncodedAudio         string  `json:"encodedAudio"`
	AudioLengthInSeconds float64 `json:"audioLengthInSeconds"`
}

// Synthesize generates speech and downloads the resulting audio file.
func (m *Murf) Synthesize(ctx context.Context, req Request) (*AudioResult, error) {
	if strings.TrimSpace(req.Text) == "" {
		return nil, WrapError(providerMurf, ErrEmptyText)
	}
	start := time.Now()

	payload := murfGenerateRequest{
		VoiceID:     firstNonEmpty(req.VoiceID, m.config.VoiceID),
		Text:        req.Text,
		Style:       firstNonEmpty(req.Style, m.config.Style),
		Rate:        clampPercent(req.Rate),
		Pitch:       clampPercent(req.Pitch),
		Format:      strings.ToUpper(string(m.config.OutputFormat)),
		SampleRate:  m.config.SampleRate,
		ChannelType: "MONO",
	}

	var resp murfGenerateResponse
	err := httpc.PostJSON(ctx, m.client, m.baseURL+"/speech/generate", m.headers(), payload, &resp)
	if err != nil {
		return nil, m.wrap(err)
	}

	var audio []byte
	switch {
	case resp.EncodedAudio != "":
		audio, err = base64.StdEncoding.DecodeString(resp.EncodedAudio)
		if err != nil {
			return nil, WrapError(providerMurf, fmt.Errorf("decode audio: %w", err))
		}
	case resp.AudioFile != "":
		audio, err = httpc.Fetch(ctx, m.client, resp.AudioFile)
		if err != nil {
			return nil, WrapError(providerMurf, fmt.Errorf("fetch audio: %w", err))
		}
	default:
		return nil, WrapError(providerMurf, ErrNoAudioURL)
	}

	if len(audio) == 0 {
		return nil, WrapError(providerMurf, ErrEmptyAudio)
	}

	latency := time.Since(start).Milliseconds()
	m.logger.Debug("synthesized audio",
		"chars", len(req.Text),
		"bytes", len(audio),
		"latency_ms", latency,
		"voice", payload.VoiceID,
		"rate", payload.Rate,
		"pitch", payload.Pitch,
	)

	return &AudioResult{
		Audio: audio,
		Format: AudioFormat{
			Encoding:   m.config.OutputFormat,
			SampleRate: m.config.SampleRate,
			Channels:   1,
		},
		Duration:  time.Duration(resp.AudioLengthInSeconds * float64(time.Second)),
		CharCount: len(req.Text),
		LatencyMs: latency,
	}, nil
}

// Voice describes one Murf voice.
type Voice struct {
	VoiceID         string   `json:"voiceId"`
	DisplayName     string   `json:"displayName"`
	Locale          string   `json:"locale"`
	Accent          string   `json:"accent,omitempty"`
	Gender          string   `json:"gender,omitempty"`
	Description     string   `json:"description,omitempty"`
	AvailableStyles []string `json:"availableStyles,omitempty"`
}

// ListVoices returns the voices available to the account.
func (m *Murf) ListVoices(ctx context.Context) ([]Voice, error) {
	var voices []Voice
	if err := httpc.GetJSON(ctx, m.client, m.baseURL+"/speech/voices", m.headers(), &voices); err != nil {
		return nil, m.wrap(err)
	}
	return voices, nil
}

// FilterVoices returns the voices matching a locale such as "en-IN".
func FilterVoices(voices []Voice, locale string) []Voice {
	var out []Voice
	for _, v := range voices {
		if strings.EqualFold(v.Locale, locale) ||
			strings.Contains(v.DisplayName, "India") ||
			strings.Contains(v.Description, "India") {
			out = append(out, v)
		}
	}
	return out
}

// Health checks API connectivity and key validity.
func (m *Murf) Health(ctx context.Context) error {
	_, err := m.ListVoices(ctx)
	return err
}

// Close releases resources held by the provider.
func (m *Murf) Close() error {
	m.client.CloseIdleConnections()
	return nil
}

// VoiceID returns the configured voice ID.
func (m *Murf) VoiceID() string {
	return m.config.VoiceID
}

func (m *Murf) headers() map[string]string {
	return map[string]string{"api-key": m.config.APIKey}
}

// wrap converts transport errors into APIError where the server answered.
func (m *Murf) wrap(err error) error {
	var se *httpc.StatusError
	if !errors.As(err, &se) {
		return WrapError(providerMurf, err)
	}

	var body struct {
		ErrorMessage string `json:"errorMessage"`
		ErrorCode    int    `json:"errorCode"`
	}
	message := strings.TrimSpace(string(se.Body))
	code := ""
	if json.Unmarshal(se.Body, &body) == nil && body.ErrorMessage != "" {
		message = body.ErrorMessage
		if body.ErrorCode != 0 {
			code = fmt.Sprint(body.ErrorCode)
		}
	}
	return &APIError{
		StatusCode: se.StatusCode,
		Message:    message,
		Code:       code,
		Provider:   providerMurf,
	}
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}

// Verify Murf implements Provider at compile time.
var _ Provider = (*Murf)(nil)
