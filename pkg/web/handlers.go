package web

import (
	"errors"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/websocket/v2"

	"gazemouse/pkg/engine"
	"gazemouse/pkg/hub"
)

// handleStatus returns the current engine snapshot.
func (s *Server) handleStatus(c *fiber.Ctx) error {
	return c.JSON(s.eng.Snapshot())
}

// handleModel returns the installed calibration model with its quality
// metrics, or 404 when uncalibrated.
func (s *Server) handleModel(c *fiber.Ctx) error {
	m := s.eng.Model()
	if m == nil {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
			"error": "no calibration model installed",
		})
	}
	return c.JSON(m)
}

// handleGetLogs returns the buffered log lines.
func (s *Server) handleGetLogs(c *fiber.Ctx) error {
	s.logsMu.RLock()
	defer s.logsMu.RUnlock()
	return c.JSON(s.logs)
}

// handleStart requests a new control session.
func (s *Server) handleStart(c *fiber.Ctx) error {
	if err := s.eng.Start(); err != nil {
		status := fiber.StatusConflict
		if errors.Is(err, engine.ErrUncalibrated) {
			status = fiber.StatusPreconditionFailed
		}
		return c.Status(status).JSON(fiber.Map{"error": err.Error()})
	}
	s.AddLog("info", "control session started from dashboard")
	return c.JSON(s.eng.Snapshot())
}

// handleStop requests session termination. Stop is honored before the next
// frame, so no action can dispatch after this returns.
func (s *Server) handleStop(c *fiber.Ctx) error {
	s.eng.Stop()
	s.AddLog("info", "stop requested from dashboard")
	return c.JSON(fiber.Map{"stopping": true})
}

// handleStateWS streams engine snapshots. The current snapshot is sent
// immediately so a new client renders without waiting for the next frame.
func (s *Server) handleStateWS(c *websocket.Conn) {
	c.WriteJSON(s.eng.Snapshot())
	hub.NewClient(s.stateHub, c).Run()
}

// handleLogsWS streams log lines, replaying the buffer first.
func (s *Server) handleLogsWS(c *websocket.Conn) {
	s.logsMu.RLock()
	for _, entry := range s.logs {
		c.WriteJSON(entry)
	}
	s.logsMu.RUnlock()

	hub.NewClient(s.logHub, c).Run()
}
