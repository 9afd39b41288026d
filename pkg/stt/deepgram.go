package stt

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

const (
	// DeepgramListenURL is the live transcription endpoint.
	DeepgramListenURL = "wss://api.deepgram.com/v1/listen"

	// KeepAliveInterval keeps the socket open through silence.
	// Deepgram drops idle streams after about 10 seconds.
	KeepAliveInterval = 8 * time.Second

	writeTimeout = 5 * time.Second
	eventBuffer  = 64
)

// Deepgram opens live transcription sockets.
type Deepgram struct {
	listenURL string
	keepAlive time.Duration
	dialer    *websocket.Dialer
	logger    *slog.Logger
}

// DeepgramOption configures a Deepgram provider.
type DeepgramOption func(*Deepgram)

// WithListenURL overrides the websocket endpoint (for tests).
func WithListenURL(u string) DeepgramOption {
	return func(d *Deepgram) { d.listenURL = u }
}

// WithKeepAlive sets the KeepAlive interval. Zero disables it.
func WithKeepAlive(interval time.Duration) DeepgramOption {
	return func(d *Deepgram) { d.keepAlive = interval }
}

// WithDeepgramLogger sets the logger.
func WithDeepgramLogger(logger *slog.Logger) DeepgramOption {
	return func(d *Deepgram) { d.logger = logger }
}

// NewDeepgram creates a Deepgram provider.
func NewDeepgram(opts ...DeepgramOption) *Deepgram {
	d := &Deepgram{
		listenURL: DeepgramListenURL,
		keepAlive: KeepAliveInterval,
		dialer: &websocket.Dialer{
			HandshakeTimeout: 10 * time.Second,
		},
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(d)
	}
	d.logger = d.logger.With("component", "stt.deepgram")
	return d
}

// Open dials the listen endpoint. The returned channel is live once Open returns.
func (d *Deepgram) Open(ctx context.Context, cred Credential, opts Options) (Channel, error) {
	if cred.Key == "" {
		return nil, ErrNoAPIKey
	}

	u, err := d.buildURL(opts)
	if err != nil {
		return nil, err
	}

	header := http.Header{}
	header.Set("Authorization", "Token "+cred.Key)

	conn, resp, err := d.dialer.DialContext(ctx, u, header)
	if err != nil {
		if resp != nil {
			return nil, fmt.Errorf("deepgram: dial: %s: %w", resp.Status, err)
		}
		return nil, fmt.Errorf("deepgram: dial: %w", err)
	}

	ch := &deepgramChannel{
		conn:   conn,
		events: make(chan Event, eventBuffer),
		errs:   make(chan error, 1),
		closed: make(chan struct{}),
		logger: d.logger,
	}
	go ch.readLoop()
	if d.keepAlive > 0 {
		go ch.keepAliveLoop(d.keepAlive)
	}

	d.logger.Debug("channel opened", "model", opts.Model, "language", opts.Language)
	return ch, nil
}

func (d *Deepgram) buildURL(opts Options) (string, error) {
	u, err := url.Parse(d.listenURL)
	if err != nil {
		return "", fmt.Errorf("deepgram: listen url: %w", err)
	}
	q := u.Query()
	if opts.Model != "" {
		q.Set("model", opts.Model)
	}
	if opts.Language != "" {
		q.Set("language", opts.Language)
	}
	q.Set("smart_format", strconv.FormatBool(opts.SmartFormat))
	q.Set("interim_results", strconv.FormatBool(opts.InterimResults))
	q.Set("encoding", "linear16")
	if opts.SampleRate > 0 {
		q.Set("sample_rate", strconv.Itoa(opts.SampleRate))
	}
	if opts.Channels > 0 {
		q.Set("channels", strconv.Itoa(opts.Channels))
	}
	u.RawQuery = q.Encode()
	return u.String(), nil
}

// deepgramMessage covers the server messages we care about.
type deepgramMessage struct {
	Type    string `json:"type"`
	IsFinal bool   `json:"is_final"`
	Channel struct {
		Alternatives []struct {
			Transcript string  `json:"transcript"`
			Confidence float64 `json:"confidence"`
		} `json:"alternatives"`
	} `json:"channel"`
	Description string `json:"description"`
}

type deepgramChannel struct {
	conn   *websocket.Conn
	events chan Event
	errs   chan error
	closed chan struct{}
	logger *slog.Logger

	writeMu   sync.Mutex
	closeOnce sync.Once
}

func (c *deepgramChannel) Send(audio []byte) error {
	select {
	case <-c.closed:
		return ErrChannelClosed
	default:
	}
	return c.write(websocket.BinaryMessage, audio)
}

func (c *deepgramChannel) Events() <-chan Event { return c.events }

func (c *deepgramChannel) Err() <-chan error { return c.errs }

// Close asks the server to flush with CloseStream and tears the socket down.
func (c *deepgramChannel) Close() error {
	var err error
	c.closeOnce.Do(func() {
		close(c.closed)
		c.write(websocket.TextMessage, []byte(`{"type":"CloseStream"}`))
		c.writeMu.Lock()
		c.conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
			time.Now().Add(writeTimeout))
		c.writeMu.Unlock()
		err = c.conn.Close()
	})
	return err
}

func (c *deepgramChannel) write(kind int, data []byte) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	c.conn.SetWriteDeadline(time.Now().Add(writeTimeout))
	if err := c.conn.WriteMessage(kind, data); err != nil {
		return fmt.Errorf("deepgram: write: %w", err)
	}
	return nil
}

func (c *deepgramChannel) readLoop() {
	defer close(c.events)

	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			c.fail(err)
			return
		}

		var msg deepgramMessage
		if err := json.Unmarshal(data, &msg); err != nil {
			c.logger.Debug("unparseable message", "error", err)
			continue
		}

		switch msg.Type {
		case "Results":
			if len(msg.Channel.Alternatives) == 0 {
				continue
			}
			ev := Event{Text: msg.Channel.Alternatives[0].Transcript, Final: msg.IsFinal}
			select {
			case c.events <- ev:
			case <-c.closed:
				return
			}
		case "Error":
			c.logger.Warn("server error", "description", msg.Description)
		}
	}
}

// fail reports an unexpected end of stream. Local closes are not errors.
func (c *deepgramChannel) fail(err error) {
	select {
	case <-c.closed:
		return
	default:
	}

	if websocket.IsCloseError(err, websocket.CloseNormalClosure) {
		err = ErrChannelClosed
	} else if !errors.Is(err, ErrChannelClosed) {
		err = fmt.Errorf("%w: %v", ErrChannelClosed, err)
	}
	c.logger.Warn("channel dropped", "error", err)
	c.errs <- err
}

func (c *deepgramChannel) keepAliveLoop(interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-c.closed:
			return
		case <-ticker.C:
			if err := c.write(websocket.TextMessage, []byte(`{"type":"KeepAlive"}`)); err != nil {
				c.logger.Debug("keepalive failed", "error", err)
				return
			}
		}
	}
}
