// Package web provides the real-time monitoring dashboard: a small HTTP API
// over the engine plus websocket streams for live state and logs.
package web

import (
	"context"
	"sync"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/websocket/v2"

	"gazemouse/internal/log"
	"gazemouse/pkg/engine"
	"gazemouse/pkg/hub"
)

// LogEntry is one dashboard log line.
type LogEntry struct {
	Time    string `json:"time"`
	Type    string `json:"type"` // info, transition, action, error
	Message string `json:"message"`
}

const logBufferSize = 500

// Server is the dashboard server. It reads the engine but never drives it:
// the only mutations it performs are start and stop requests.
type Server struct {
	app  *fiber.App
	port string
	eng  *engine.Engine

	logs   []LogEntry
	logsMu sync.RWMutex

	stateHub *hub.Hub
	logHub   *hub.Hub
}

// NewServer creates a dashboard server over the given engine.
func NewServer(port string, eng *engine.Engine) *Server {
	s := &Server{
		port:     port,
		eng:      eng,
		logs:     make([]LogEntry, 0, logBufferSize),
		stateHub: hub.New("state"),
		logHub:   hub.New("logs"),
	}

	app := fiber.New(fiber.Config{
		AppName:               "gazemouse dashboard",
		DisableStartupMessage: true,
	})

	app.Use(cors.New())
	app.Static("/", "./web")

	api := app.Group("/api")
	api.Get("/status", s.handleStatus)
	api.Get("/model", s.handleModel)
	api.Get("/logs", s.handleGetLogs)
	api.Post("/start", s.handleStart)
	api.Post("/stop", s.handleStop)

	app.Use("/ws", func(c *fiber.Ctx) error {
		if websocket.IsWebSocketUpgrade(c) {
			return c.Next()
		}
		return fiber.ErrUpgradeRequired
	})
	app.Get("/ws/state", websocket.New(s.handleStateWS))
	app.Get("/ws/logs", websocket.New(s.handleLogsWS))

	s.app = app
	return s
}

// Start runs the hubs and serves until ctx is cancelled or Listen fails.
func (s *Server) Start(ctx context.Context) error {
	go s.stateHub.Run(ctx)
	go s.logHub.Run(ctx)

	log.Info("dashboard listening", "addr", "http://localhost:"+s.port)
	return s.app.Listen(":" + s.port)
}

// StartAsync runs the server in a goroutine, logging any listen failure.
func (s *Server) StartAsync(ctx context.Context) {
	go func() {
		if err := s.Start(ctx); err != nil {
			log.Error("dashboard server failed", "err", err)
		}
	}()
}

// PublishSnapshot broadcasts the engine snapshot to state stream clients.
// Call it at frame rate; slow clients are dropped by the hub.
func (s *Server) PublishSnapshot() {
	s.stateHub.BroadcastJSON(s.eng.Snapshot())
}

// NotifyTransition records a state change on the log stream. Wire it to the
// engine's OnTransition hook.
func (s *Server) NotifyTransition(tr engine.Transition) {
	s.AddLog("transition", tr.From.String()+" -> "+tr.To.String())
}

// AddLog appends a dashboard log line and broadcasts it.
func (s *Server) AddLog(logType, message string) {
	entry := LogEntry{
		Time:    time.Now().Format("15:04:05"),
		Type:    logType,
		Message: message,
	}

	s.logsMu.Lock()
	s.logs = append(s.logs, entry)
	if len(s.logs) > logBufferSize {
		s.logs = s.logs[1:]
	}
	s.logsMu.Unlock()

	s.logHub.BroadcastJSON(entry)
}

// Shutdown stops the HTTP server gracefully.
func (s *Server) Shutdown() error {
	return s.app.Shutdown()
}
