package tts

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
)

func newMurfServer(t *testing.T, audio []byte, check func(murfGenerateRequest)) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	var srv *httptest.Server

	mux.HandleFunc("/speech/generate", func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("api-key") != "murf-key" {
			w.WriteHeader(http.StatusUnauthorized)
			json.NewEncoder(w).Encode(map[string]any{"errorMessage": "invalid api key", "errorCode": 401})
			return
		}
		var req murfGenerateRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Errorf("decode request: %v", err)
		}
		if check != nil {
			check(req)
		}
		json.NewEncoder(w).Encode(map[string]any{
			"audioFile":            srv.URL + "/files/clip.mp3",
			"audioLengthInSeconds": 1.5,
		})
	})
	mux.HandleFunc("/files/clip.mp3", func(w http.ResponseWriter, r *http.Request) {
		w.Write(audio)
	})
	mux.HandleFunc("/speech/voices", func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode([]Voice{
			{VoiceID: "en-IN-isha", DisplayName: "Isha (F)", Locale: "en-IN"},
			{VoiceID: "en-US-natalie", DisplayName: "Natalie (F)", Locale: "en-US"},
		})
	})

	srv = httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func newTestMurf(t *testing.T, srv *httptest.Server, key string) *Murf {
	t.Helper()
	m, err := NewMurf(WithAPIKey(key), WithBaseURL(srv.URL), WithHTTPClient(srv.Client()))
	if err != nil {
		t.Fatalf("NewMurf: %v", err)
	}
	return m
}

func TestMurfSynthesize(t *testing.T) {
	var got murfGenerateRequest
	srv := newMurfServer(t, []byte("ID3-fake-mp3"), func(r murfGenerateRequest) { got = r })
	m := newTestMurf(t, srv, "murf-key")

	res, err := m.Synthesize(context.Background(), Request{Text: "Help me!", Rate: 50, Pitch: 30})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if string(res.Audio) != "ID3-fake-mp3" {
		t.Errorf("unexpected audio %q", res.Audio)
	}
	if res.Format.Encoding != EncodingMP3 {
		t.Errorf("expected mp3, got %s", res.Format.Encoding)
	}
	if res.Duration.Seconds() != 1.5 {
		t.Errorf("expected 1.5s duration, got %v", res.Duration)
	}

	if got.VoiceID != DefaultMurfVoice || got.Style != DefaultMurfStyle {
		t.Errorf("unexpected voice/style %q/%q", got.VoiceID, got.Style)
	}
	if got.Rate != 50 || got.Pitch != 30 {
		t.Errorf("unexpected rate/pitch %d/%d", got.Rate, got.Pitch)
	}
	if got.Format != "MP3" || got.ChannelType != "MONO" {
		t.Errorf("unexpected format %q channel %q", got.Format, got.ChannelType)
	}
}

func TestMurfEmptyAudio(t *testing.T) {
	srv := newMurfServer(t, nil, nil)
	m := newTestMurf(t, srv, "murf-key")

	_, err := m.Synthesize(context.Background(), Request{Text: "Help"})
	if !errors.Is(err, ErrEmptyAudio) {
		t.Errorf("expected ErrEmptyAudio, got %v", err)
	}
}

func TestMurfEncodedAudio(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]any{
			"encodedAudio": base64.StdEncoding.EncodeToString([]byte("RIFF")),
		})
	}))
	defer srv.Close()
	m := newTestMurf(t, srv, "murf-key")

	res, err := m.Synthesize(context.Background(), Request{Text: "Help"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if string(res.Audio) != "RIFF" {
		t.Errorf("unexpected audio %q", res.Audio)
	}
}

func TestMurfUnauthorized(t *testing.T) {
	srv := newMurfServer(t, []byte("x"), nil)
	m := newTestMurf(t, srv, "wrong")

	_, err := m.Synthesize(context.Background(), Request{Text: "Help"})
	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("expected APIError, got %v", err)
	}
	if !apiErr.IsUnauthorized() || apiErr.Message != "invalid api key" {
		t.Errorf("unexpected error %+v", apiErr)
	}
}

func TestMurfEmptyText(t *testing.T) {
	srv := newMurfServer(t, []byte("x"), nil)
	m := newTestMurf(t, srv, "murf-key")

	if _, err := m.Synthesize(context.Background(), Request{Text: "  "}); !errors.Is(err, ErrEmptyText) {
		t.Errorf("expected ErrEmptyText, got %v", err)
	}
}

func TestMurfListVoices(t *testing.T) {
	srv := newMurfServer(t, nil, nil)
	m := newTestMurf(t, srv, "murf-key")

	voices, err := m.ListVoices(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(voices) != 2 {
		t.Fatalf("expected 2 voices, got %d", len(voices))
	}
	indian := FilterVoices(voices, "en-IN")
	if len(indian) != 1 || indian[0].VoiceID != "en-IN-isha" {
		t.Errorf("unexpected filter result %+v", indian)
	}
	if err := m.Health(context.Background()); err != nil {
		t.Errorf("health: %v", err)
	}
}

func TestElevenLabsSynthesize(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/text-to-speech/voice-1" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		if r.URL.Query().Get("output_format") != "mp3_44100_128" {
			t.Errorf("unexpected output_format %q", r.URL.Query().Get("output_format"))
		}
		var body map[string]any
		json.NewDecoder(r.Body).Decode(&body)
		settings := body["voice_settings"].(map[string]any)
		if settings["speed"].(float64) != 1.2 {
			t.Errorf("expected speed 1.2 for panic rate, got %v", settings["speed"])
		}
		w.Write([]byte("mp3"))
	}))
	defer srv.Close()

	e, err := NewElevenLabs(WithAPIKey("k"), WithVoice("voice-1"), WithBaseURL(srv.URL), WithHTTPClient(srv.Client()))
	if err != nil {
		t.Fatalf("NewElevenLabs: %v", err)
	}
	res, err := e.Synthesize(context.Background(), Request{Text: "Help", Rate: 50})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if string(res.Audio) != "mp3" {
		t.Errorf("unexpected audio %q", res.Audio)
	}
}

func TestSpeedFromRate(t *testing.T) {
	tests := map[int]float64{0: 1, 10: 1.04, 50: 1.2, -50: 0.8, -100: 0.8}
	for rate, want := range tests {
		got := speedFromRate(rate)
		if diff := got - want; diff > 1e-9 || diff < -1e-9 {
			t.Errorf("speedFromRate(%d) = %v, want %v", rate, got, want)
		}
	}
}

func TestElevenLabsError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("xi-api-key") != "bad" {
			t.Errorf("missing key header")
		}
		w.WriteHeader(http.StatusUnauthorized)
		w.Write([]byte(`{"detail":{"status":"invalid_api_key","message":"Invalid API key"}}`))
	}))
	defer srv.Close()

	e, err := NewElevenLabs(WithAPIKey("bad"), WithVoice("voice-1"), WithBaseURL(srv.URL), WithHTTPClient(srv.Client()))
	if err != nil {
		t.Fatalf("NewElevenLabs: %v", err)
	}

	_, err = e.Synthesize(context.Background(), Request{Text: "Help"})
	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("expected APIError, got %v", err)
	}
	if !apiErr.IsUnauthorized() || apiErr.Code != "invalid_api_key" || apiErr.Message != "Invalid API key" {
		t.Errorf("unexpected error %+v", apiErr)
	}
	if err := e.Health(context.Background()); !errors.As(err, &apiErr) {
		t.Errorf("health = %v, want APIError", err)
	}
}
