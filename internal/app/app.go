package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"

	"github.com/specialistvlad/taskgrid/internal/config"
	"github.com/specialistvlad/taskgrid/internal/conflict"
	"github.com/specialistvlad/taskgrid/internal/ctxlog"
	"github.com/specialistvlad/taskgrid/internal/publish"
	"github.com/specialistvlad/taskgrid/internal/resolver"
)

// sink is an event sink that holds a connection.
type sink interface {
	conflict.EventSink
	io.Closer
}

// App encapsulates the application's dependencies, configuration, and lifecycle.
type App struct {
	outW     io.Writer
	logger   *slog.Logger
	cfg      *Config
	model    *config.Model
	resolver *resolver.Resolver
	engine   *conflict.Engine
	sink     sink

	httpServer *http.Server
}

// NewApp loads the grid through loader, builds the resolver and the conflict
// engine, and connects the event publisher when the grid configures one.
// Logs go to logW; the run report goes to outW.
func NewApp(ctx context.Context, outW, logW io.Writer, cfg *Config, loader config.Loader) (*App, error) {
	logger, err := newLogger(cfg.LogLevel, cfg.LogFormat, logW)
	if err != nil {
		return nil, err
	}
	ctx = ctxlog.WithLogger(ctx, logger)
	logger.Debug("Logger configured successfully.")

	// Load all configuration into the format-agnostic model first.
	model, err := loader.Load(ctx, cfg.GridPath)
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}
	if err := model.Validate(); err != nil {
		return nil, fmt.Errorf("invalid grid: %w", err)
	}
	logger.Debug("Configuration loaded and translated into unified model.", "tasks", len(model.Tasks))

	resolverCfg, err := model.ResolverConfig(resolver.DefaultConfig())
	if err != nil {
		return nil, err
	}
	if cfg.Strategy != "" {
		resolverCfg.Strategy = resolver.Strategy(cfg.Strategy)
	}
	r, err := resolver.New(resolverCfg)
	if err != nil {
		return nil, err
	}
	if err := model.Populate(r); err != nil {
		return nil, fmt.Errorf("failed to build dependency graph: %w", err)
	}
	logger.Debug("Dependency graph built.", "node_count", r.Stats().Nodes, "strategy", resolverCfg.Strategy)

	s, err := newSink(ctx, model.Publisher)
	if err != nil {
		return nil, err
	}

	conflictCfg := model.ConflictConfig(conflict.DefaultConfig())
	if cfg.AutoResolve {
		conflictCfg.AutoResolve = true
	}
	engine, err := conflict.NewEngine(r, conflictCfg, conflict.WithEventSink(s))
	if err != nil {
		_ = s.Close()
		return nil, err
	}

	return &App{
		outW:     outW,
		logger:   logger,
		cfg:      cfg,
		model:    model,
		resolver: r,
		engine:   engine,
		sink:     s,
	}, nil
}

func newSink(ctx context.Context, p *config.PublisherSettings) (sink, error) {
	if p == nil || p.URL == "" {
		return publish.Nop{}, nil
	}
	s, err := publish.DialSocketIO(ctx, publish.SocketIOConfig{
		URL:                p.URL,
		Namespace:          p.Namespace,
		ConnectTimeout:     p.ConnectTimeout,
		InsecureSkipVerify: p.InsecureSkipVerify,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect event publisher: %w", err)
	}
	return s, nil
}

// Resolver returns the application's resolver. This is primarily for testing.
func (a *App) Resolver() *resolver.Resolver {
	return a.resolver
}

// Engine returns the application's conflict engine.
func (a *App) Engine() *conflict.Engine {
	return a.engine
}

// PublishMetrics exposes resolver and engine timings through expvar. expvar
// names are process-global, so call it at most once per process.
func (a *App) PublishMetrics() {
	a.resolver.PublishMetrics("taskgrid_resolver")
	a.engine.PublishMetrics("taskgrid_conflicts")
}

// Close releases the event publisher and stops the health check server.
func (a *App) Close() error {
	ctx := ctxlog.WithLogger(context.Background(), a.logger)
	return errors.Join(a.closeHealthCheckServer(ctx), a.sink.Close())
}
