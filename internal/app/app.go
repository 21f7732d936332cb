package app

import (
	"context"
	"fmt"
	"io"
	"log/slog"

	"github.com/vk/predictgrid/internal/config"
	"github.com/vk/predictgrid/internal/ctxlog"
	"github.com/vk/predictgrid/internal/engine"
	"github.com/vk/predictgrid/internal/graph"
	"github.com/vk/predictgrid/internal/server"
	"github.com/vk/predictgrid/internal/strategy"
	"github.com/vk/predictgrid/internal/transport"
)

// App encapsulates the application's dependencies, configuration, and lifecycle.
type App struct {
	outW   io.Writer
	logger *slog.Logger
	config *Config

	graph  *graph.Graph
	client *transport.Client
	engine *engine.Engine
	server *server.Server
}

// NewApp is the constructor for the main application. It returns a fully
// initialized App instance, including its own isolated logger and a built,
// validated prediction graph. A bad topology is a fatal startup error: the
// app panics rather than accept traffic against a broken graph.
func NewApp(outW io.Writer, appConfig *Config, loader config.Loader, src strategy.Source) *App {
	logger := newLogger(appConfig.LogLevel, appConfig.LogFormat, outW)
	ctx := ctxlog.WithLogger(context.Background(), logger)
	logger.Debug("Logger configured successfully.")

	model, err := loader.Load(ctx, appConfig.TopologyPath)
	if err != nil {
		panic(fmt.Errorf("failed to load topology: %w", err))
	}
	logger.Debug("Topology loaded.", "node_count", len(model.Nodes))

	g, err := graph.Build(ctx, model, transport.SupportedKinds())
	if err != nil {
		panic(fmt.Errorf("failed to build prediction graph: %w", err))
	}
	logger.Info("Prediction graph built.", "root", g.Root().Name, "node_count", g.Len())

	client := transport.NewClient(transport.Options{CallTimeout: appConfig.NodeCallTimeout})
	strategies := strategy.NewSet(client, src)
	eng := engine.New(strategies, client, appConfig.MaxDepth)

	srv := server.New(server.Config{
		ListenAddr:     appConfig.ListenAddr,
		RequestTimeout: appConfig.RequestTimeout,
	}, g, eng, logger)

	return &App{
		outW:   outW,
		logger: logger,
		config: appConfig,
		graph:  g,
		client: client,
		engine: eng,
		server: srv,
	}
}

// Graph returns the built prediction graph. This is primarily for testing.
func (a *App) Graph() *graph.Graph {
	return a.graph
}

// Engine returns the execution engine. This is primarily for testing.
func (a *App) Engine() *engine.Engine {
	return a.engine
}
