// Package server exposes the engine's inbound HTTP API: one route to run a
// prediction, one to submit feedback, and a health check.
package server

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"

	"github.com/vk/predictgrid/internal/engine"
	"github.com/vk/predictgrid/internal/graph"
	"github.com/vk/predictgrid/internal/payload"
)

// Executor is the slice of the engine the server needs. Satisfied by
// *engine.Engine.
type Executor interface {
	Execute(ctx context.Context, g *graph.Graph, req *payload.Message) (*payload.Message, *engine.Route, error)
	SendFeedback(ctx context.Context, g *graph.Graph, fb *payload.Feedback) error
}

// Config tunes the server.
type Config struct {
	ListenAddr string
	// RequestTimeout is the overall per-prediction deadline carried down
	// through every node call.
	RequestTimeout time.Duration
}

// Server serves the prediction API for one loaded graph.
type Server struct {
	echo   *echo.Echo
	cfg    Config
	logger *slog.Logger
}

// New wires the routes. The graph is fixed for the server's lifetime;
// parameter hot-swaps go through the graph's own atomic accessors.
func New(cfg Config, g *graph.Graph, exec Executor, logger *slog.Logger) *Server {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.Use(middleware.Recover())

	e.GET("/health", healthHandler())
	e.POST("/api/v1.0/predictions", PredictionsHandler(g, exec, cfg.RequestTimeout, logger))
	e.POST("/api/v1.0/feedback", FeedbackHandler(g, exec, logger))

	return &Server{echo: e, cfg: cfg, logger: logger}
}

// Start blocks serving HTTP until Shutdown or a listener failure.
func (s *Server) Start() error {
	s.logger.Info("API server starting.", "address", s.cfg.ListenAddr)
	err := s.echo.Start(s.cfg.ListenAddr)
	if err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

// Shutdown drains in-flight requests within the context deadline.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.echo.Shutdown(ctx)
}

func healthHandler() echo.HandlerFunc {
	return func(c echo.Context) error {
		return c.String(http.StatusOK, "OK\n")
	}
}
