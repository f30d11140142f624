package api

import (
	"net/http"

	"github.com/gofiber/adaptor/v2"
	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/engramdev/engram/pkg/agent"
)

// Server is the HTTP API server for the engram memory engine.
type Server struct {
	config Config
	agent  *agent.Agent
	logger *zap.Logger
	app    *fiber.App
}

// NewServer creates a new API server over the memory engine.
// The mcpHandler is optional; when non-nil it is mounted at /mcp so MCP
// clients share the process with the REST surface.
func NewServer(config Config, eng *agent.Agent, mcpHandler http.Handler, logger *zap.Logger) *Server {
	app := fiber.New(fiber.Config{
		DisableStartupMessage: true,
	})

	s := &Server{
		config: config,
		agent:  eng,
		logger: logger,
		app:    app,
	}

	app.Get("/ping", s.handlePing)
	app.Post("/message", s.handleMessage)
	app.Post("/retrieve", s.handleRetrieve)
	app.Post("/reply", s.handleReply)
	app.Get("/memories/:user_id", s.handleListMemories)
	app.Delete("/memories/:user_id/:id", s.handleDeleteMemory)
	app.Get("/stats/:user_id", s.handleStats)

	if mcpHandler != nil {
		app.All("/mcp", adaptor.HTTPHandler(mcpHandler))
	}

	return s
}

// Run starts the API server on the configured address.
func (s *Server) Run() error {
	s.logger.Info("starting API server",
		zap.String("listen", s.config.ListenAddr),
	)
	return s.app.Listen(s.config.ListenAddr)
}

// Shutdown gracefully shuts down the API server.
func (s *Server) Shutdown() error {
	return s.app.Shutdown()
}
