package stt

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/Dupahar/crisis-call-murf-agent/internal/log"
)

var upgrader = websocket.Upgrader{}

func wsURL(srv *httptest.Server) string {
	return "ws" + strings.TrimPrefix(srv.URL, "http")
}

func results(text string, final bool) []byte {
	msg := map[string]any{
		"type":     "Results",
		"is_final": final,
		"channel": map[string]any{
			"alternatives": []map[string]any{{"transcript": text, "confidence": 0.9}},
		},
	}
	data, _ := json.Marshal(msg)
	return data
}

func TestDeepgramStream(t *testing.T) {
	gotClose := make(chan struct{})

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if got := r.Header.Get("Authorization"); got != "Token test-key" {
			t.Errorf("expected token auth, got %q", got)
		}
		q := r.URL.Query()
		for k, want := range map[string]string{
			"model":           "nova-2",
			"language":        "en-IN",
			"smart_format":    "true",
			"interim_results": "true",
			"encoding":        "linear16",
			"sample_rate":     "16000",
			"channels":        "1",
		} {
			if q.Get(k) != want {
				t.Errorf("query %s = %q, want %q", k, q.Get(k), want)
			}
		}

		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			t.Errorf("upgrade: %v", err)
			return
		}
		defer conn.Close()

		kind, data, err := conn.ReadMessage()
		if err != nil || kind != websocket.BinaryMessage || len(data) != 4 {
			t.Errorf("expected 4 byte binary frame, got kind=%d len=%d err=%v", kind, len(data), err)
		}

		conn.WriteMessage(websocket.TextMessage, []byte(`{"type":"Metadata"}`))
		conn.WriteMessage(websocket.TextMessage, results("hel", false))
		conn.WriteMessage(websocket.TextMessage, results("Help", true))

		for {
			kind, data, err := conn.ReadMessage()
			if err != nil {
				return
			}
			if kind == websocket.TextMessage && strings.Contains(string(data), "CloseStream") {
				close(gotClose)
				return
			}
		}
	}))
	defer srv.Close()

	dg := NewDeepgram(WithListenURL(wsURL(srv)), WithKeepAlive(0), WithDeepgramLogger(log.Discard()))
	ch, err := dg.Open(context.Background(), Credential{Key: "test-key"}, DefaultOptions())
	if err != nil {
		t.Fatalf("Open: %v", err)
	}

	if err := ch.Send([]byte{1, 2, 3, 4}); err != nil {
		t.Fatalf("Send: %v", err)
	}

	want := []Event{{Text: "hel"}, {Text: "Help", Final: true}}
	for i, w := range want {
		select {
		case ev := <-ch.Events():
			if ev != w {
				t.Errorf("event %d = %+v, want %+v", i, ev, w)
			}
		case <-time.After(2 * time.Second):
			t.Fatalf("timed out waiting for event %d", i)
		}
	}

	if err := ch.Close(); err != nil {
		t.Logf("close: %v", err)
	}
	select {
	case <-gotClose:
	case <-time.After(2 * time.Second):
		t.Error("server never saw CloseStream")
	}

	select {
	case err := <-ch.Err():
		t.Errorf("local close should not report an error, got %v", err)
	case <-time.After(50 * time.Millisecond):
	}
	if err := ch.Send([]byte{0}); !errors.Is(err, ErrChannelClosed) {
		t.Errorf("Send after Close: expected ErrChannelClosed, got %v", err)
	}
}

func TestDeepgramRemoteDrop(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		conn.WriteMessage(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseInternalServerErr, "boom"))
		conn.Close()
	}))
	defer srv.Close()

	dg := NewDeepgram(WithListenURL(wsURL(srv)), WithKeepAlive(0), WithDeepgramLogger(log.Discard()))
	ch, err := dg.Open(context.Background(), Credential{Key: "k"}, DefaultOptions())
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer ch.Close()

	select {
	case err := <-ch.Err():
		if !errors.Is(err, ErrChannelClosed) {
			t.Errorf("expected ErrChannelClosed, got %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("no error after remote drop")
	}

	if _, ok := <-ch.Events(); ok {
		t.Error("events channel should be closed")
	}
}

func TestDeepgramKeepAlive(t *testing.T) {
	gotKeepAlive := make(chan struct{}, 1)

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()
		for {
			_, data, err := conn.ReadMessage()
			if err != nil {
				return
			}
			if strings.Contains(string(data), "KeepAlive") {
				select {
				case gotKeepAlive <- struct{}{}:
				default:
				}
			}
		}
	}))
	defer srv.Close()

	dg := NewDeepgram(WithListenURL(wsURL(srv)), WithKeepAlive(10*time.Millisecond), WithDeepgramLogger(log.Discard()))
	ch, err := dg.Open(context.Background(), Credential{Key: "k"}, DefaultOptions())
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer ch.Close()

	select {
	case <-gotKeepAlive:
	case <-time.After(2 * time.Second):
		t.Error("no KeepAlive sent")
	}
}

func TestDeepgramOpenErrors(t *testing.T) {
	dg := NewDeepgram(WithDeepgramLogger(log.Discard()))
	if _, err := dg.Open(context.Background(), Credential{}, DefaultOptions()); !errors.Is(err, ErrNoAPIKey) {
		t.Errorf("expected ErrNoAPIKey, got %v", err)
	}

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
	}))
	defer srv.Close()

	dg = NewDeepgram(WithListenURL(wsURL(srv)), WithDeepgramLogger(log.Discard()))
	_, err := dg.Open(context.Background(), Credential{Key: "bad"}, DefaultOptions())
	if err == nil || !strings.Contains(err.Error(), "401") {
		t.Errorf("expected dial error with status, got %v", err)
	}
}
