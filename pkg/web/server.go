// Package web serves the operator dashboard: a REST API that drives the
// call and a websocket that streams call snapshots.
package web

import (
	"context"
	_ "embed"
	"errors"
	"log/slog"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/gofiber/websocket/v2"

	"github.com/Dupahar/crisis-call-murf-agent/pkg/call"
	"github.com/Dupahar/crisis-call-murf-agent/pkg/hub"
	"github.com/Dupahar/crisis-call-murf-agent/pkg/stt"
	"github.com/Dupahar/crisis-call-murf-agent/pkg/tts"
)

//go:embed dashboard.html
var dashboard []byte

// commandTimeout bounds how long an API request waits for the call loop.
const commandTimeout = 5 * time.Second

// Controller drives the call. *call.Orchestrator satisfies it.
type Controller interface {
	Connect(ctx context.Context) error
	Disconnect(ctx context.Context) error
	Listen(ctx context.Context) error
	Snapshot() call.Snapshot
	Subscribe() (<-chan call.Snapshot, func())
	Metrics() *call.MetricsCollector
}

// VoiceLister lists synthesis voices. *tts.Murf satisfies it.
type VoiceLister interface {
	ListVoices(ctx context.Context) ([]tts.Voice, error)
}

// Options configures the server. Only Addr is required to serve.
type Options struct {
	Addr string

	// Tokens backs /api/speech-to-text. Nil disables the endpoint.
	Tokens stt.TokenSource

	// Voices backs /api/voices. Nil disables the endpoint.
	Voices      VoiceLister
	VoiceLocale string

	Logger *slog.Logger
}

// Server is the dashboard server.
type Server struct {
	app    *fiber.App
	opts   Options
	ctrl   Controller
	status *hub.Hub
	logger *slog.Logger
}

// NewServer builds the routes. Call Run to serve.
func NewServer(ctrl Controller, opts Options) *Server {
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if opts.VoiceLocale == "" {
		opts.VoiceLocale = "en-IN"
	}

	s := &Server{
		opts:   opts,
		ctrl:   ctrl,
		status: hub.New("status", opts.Logger),
		logger: opts.Logger.With("component", "web"),
	}

	app := fiber.New(fiber.Config{
		AppName:               "Crisis Call Dashboard",
		DisableStartupMessage: true,
		ErrorHandler:          s.handleError,
	})

	app.Use(recover.New())
	app.Use(cors.New())
	app.Use(s.logRequests)

	app.Get("/", s.handleDashboard)
	app.Get("/health", s.handleHealth)

	api := app.Group("/api")
	api.Get("/status", s.handleStatus)
	api.Get("/messages", s.handleMessages)
	api.Get("/metrics", s.handleMetrics)
	api.Get("/speech-to-text", s.handleSpeechToken)
	api.Get("/voices", s.handleVoices)

	calls := api.Group("/call")
	calls.Post("/connect", s.command(ctrl.Connect))
	calls.Post("/disconnect", s.command(ctrl.Disconnect))
	calls.Post("/listen", s.command(ctrl.Listen))

	app.Use("/ws", func(c *fiber.Ctx) error {
		if websocket.IsWebSocketUpgrade(c) {
			return c.Next()
		}
		return fiber.ErrUpgradeRequired
	})
	app.Get("/ws/status", websocket.New(s.handleStatusWS))

	s.app = app
	return s
}

// Run serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	go s.status.Run(ctx)
	go s.forward(ctx)

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("dashboard listening", "addr", s.opts.Addr)
		errCh <- s.app.Listen(s.opts.Addr)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		s.logger.Info("dashboard shutting down")
		return s.app.ShutdownWithTimeout(5 * time.Second)
	}
}

// forward broadcasts every call snapshot to websocket clients.
func (s *Server) forward(ctx context.Context) {
	updates, cancel := s.ctrl.Subscribe()
	defer cancel()

	for {
		select {
		case <-ctx.Done():
			return
		case snap, ok := <-updates:
			if !ok {
				return
			}
			if err := s.status.BroadcastJSON(snap); err != nil {
				s.logger.Error("encode snapshot", "error", err)
			}
		}
	}
}

// App exposes the fiber app, mainly for tests.
func (s *Server) App() *fiber.App {
	return s.app
}

func (s *Server) logRequests(c *fiber.Ctx) error {
	start := time.Now()
	err := c.Next()
	s.logger.Debug("request",
		"method", c.Method(),
		"path", c.Path(),
		"status", c.Response().StatusCode(),
		"duration", time.Since(start),
	)
	return err
}

func (s *Server) handleError(c *fiber.Ctx, err error) error {
	code := fiber.StatusInternalServerError
	var fe *fiber.Error
	if errors.As(err, &fe) {
		code = fe.Code
	}
	if code >= fiber.StatusInternalServerError {
		s.logger.Error("request failed", "path", c.Path(), "error", err)
	}
	return c.Status(code).JSON(fiber.Map{"error": err.Error()})
}
