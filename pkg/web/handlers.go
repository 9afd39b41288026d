package web

import (
	"context"
	"errors"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/websocket/v2"

	"github.com/Dupahar/crisis-call-murf-agent/pkg/call"
	"github.com/Dupahar/crisis-call-murf-agent/pkg/hub"
	"github.com/Dupahar/crisis-call-murf-agent/pkg/tts"
)

func (s *Server) handleDashboard(c *fiber.Ctx) error {
	c.Type("html")
	return c.Send(dashboard)
}

func (s *Server) handleHealth(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{
		"status":  "ok",
		"clients": s.status.ClientCount(),
	})
}

func (s *Server) handleStatus(c *fiber.Ctx) error {
	return c.JSON(s.ctrl.Snapshot())
}

func (s *Server) handleMessages(c *fiber.Ctx) error {
	return c.JSON(s.ctrl.Snapshot().Messages)
}

func (s *Server) handleMetrics(c *fiber.Ctx) error {
	m := s.ctrl.Metrics()
	return c.JSON(fiber.Map{
		"summary": m.Summary(),
		"turns":   m.History(),
	})
}

// command adapts an orchestrator command to a POST handler that answers
// with the resulting snapshot.
func (s *Server) command(fn func(context.Context) error) fiber.Handler {
	return func(c *fiber.Ctx) error {
		ctx, cancel := context.WithTimeout(c.UserContext(), commandTimeout)
		defer cancel()

		if err := fn(ctx); err != nil {
			return fiber.NewError(commandStatus(err), err.Error())
		}
		return c.JSON(s.ctrl.Snapshot())
	}
}

func commandStatus(err error) int {
	switch {
	case errors.Is(err, call.ErrCallInProgress), errors.Is(err, call.ErrNotActive):
		return fiber.StatusConflict
	case errors.Is(err, call.ErrNotRunning):
		return fiber.StatusServiceUnavailable
	case errors.Is(err, context.DeadlineExceeded):
		return fiber.StatusGatewayTimeout
	default:
		return fiber.StatusInternalServerError
	}
}

// handleSpeechToken hands a short-lived recognition key to a browser client.
func (s *Server) handleSpeechToken(c *fiber.Ctx) error {
	if s.opts.Tokens == nil {
		return fiber.NewError(fiber.StatusServiceUnavailable, "speech recognition not configured")
	}

	ctx, cancel := context.WithTimeout(c.UserContext(), commandTimeout)
	defer cancel()

	cred, err := s.opts.Tokens.Token(ctx)
	if err != nil {
		return fiber.NewError(fiber.StatusInternalServerError, "Failed to generate key: "+err.Error())
	}
	return c.JSON(fiber.Map{"key": cred.Key})
}

// handleVoices lists voices for the configured locale, or all with ?all=true.
func (s *Server) handleVoices(c *fiber.Ctx) error {
	if s.opts.Voices == nil {
		return fiber.NewError(fiber.StatusNotImplemented, "voice listing not available for this provider")
	}

	ctx, cancel := context.WithTimeout(c.UserContext(), commandTimeout)
	defer cancel()

	voices, err := s.opts.Voices.ListVoices(ctx)
	if err != nil {
		return fiber.NewError(fiber.StatusBadGateway, err.Error())
	}
	if !c.QueryBool("all") {
		voices = tts.FilterVoices(voices, c.Query("locale", s.opts.VoiceLocale))
	}
	if voices == nil {
		voices = []tts.Voice{}
	}
	return c.JSON(voices)
}

// handleStatusWS streams snapshots until the browser disconnects.
func (s *Server) handleStatusWS(conn *websocket.Conn) {
	client := hub.NewClient(s.status, conn)
	if client == nil {
		conn.Close()
		return
	}
	client.Run()
}
