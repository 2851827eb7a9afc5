// Package server exposes the assistant over HTTP: a health endpoint and the
// websocket conversation endpoint.
package server

import (
	"context"
	"log/slog"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/gofiber/websocket/v2"

	"github.com/rbegg/go-max/pkg/session"
)

// Server is the HTTP front of the assistant.
type Server struct {
	app      *fiber.App
	services *session.Services
	logger   *slog.Logger

	// baseCtx parents every session; cancelling it shuts all sessions down.
	baseCtx context.Context
}

// New builds the server. Sessions run under ctx and end when it is
// cancelled.
func New(ctx context.Context, services *session.Services, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	s := &Server{
		services: services,
		logger:   logger.With("component", "server"),
		baseCtx:  ctx,
	}

	app := fiber.New(fiber.Config{
		AppName:               "go-max",
		DisableStartupMessage: true,
	})

	app.Use(recover.New())
	app.Use(cors.New())

	app.Get("/health", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{"status": "healthy"})
	})

	// WebSocket upgrade middleware
	app.Use("/ws", func(c *fiber.Ctx) error {
		if websocket.IsWebSocketUpgrade(c) {
			return c.Next()
		}
		return fiber.ErrUpgradeRequired
	})
	app.Get("/ws", websocket.New(s.handleConversation))

	s.app = app
	return s
}

// handleConversation runs one session for the lifetime of the connection.
func (s *Server) handleConversation(conn *websocket.Conn) {
	select {
	case <-s.services.Ready():
		if err := s.services.Err(); err != nil {
			s.logger.Error("rejecting connection, services failed to start", "error", err)
			conn.WriteMessage(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseInternalServerErr, "assistant unavailable"))
			conn.Close()
			return
		}
	default:
		// Still warming up; the session greets the user and waits.
	}

	manager := session.NewManager(s.services, conn)
	manager.Run(s.baseCtx)
}

// Listen serves on addr until Shutdown.
func (s *Server) Listen(addr string) error {
	s.logger.Info("server listening", "addr", addr)
	return s.app.Listen(addr)
}

// Shutdown stops accepting connections and drains in-flight requests.
func (s *Server) Shutdown(timeout time.Duration) error {
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()
	return s.app.ShutdownWithContext(ctx)
}
