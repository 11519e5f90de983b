package cli

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	quiz "github.com/dylan-euc/client-side-quiz"
	"github.com/dylan-euc/client-side-quiz/internal/config"
	"github.com/dylan-euc/client-side-quiz/internal/logging"
	quizhttp "github.com/dylan-euc/client-side-quiz/pkg/adapters/http"
	"github.com/dylan-euc/client-side-quiz/pkg/adapters/mcp"
	"github.com/dylan-euc/client-side-quiz/pkg/domain"
	"github.com/dylan-euc/client-side-quiz/pkg/observability"
	"github.com/dylan-euc/client-side-quiz/pkg/session"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"golang.org/x/sync/errgroup"
)

// App is the server-side stack shared by the HTTP and MCP commands.
type App struct {
	Engine   *quiz.Engine
	Sessions *session.Manager
	Storage  *Storage
	Metrics  *observability.Metrics
	Registry *prometheus.Registry

	shutdownTracing func(context.Context) error
}

// NewApp loads flows, opens the session store and wires observability.
func NewApp(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*App, error) {
	app := &App{Registry: prometheus.NewRegistry()}
	app.Registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	app.Metrics = observability.NewMetrics(app.Registry)

	hooks := []domain.LifecycleHooks{observability.LoggingHooks(logger), app.Metrics.Hooks()}
	if cfg.Tracing.Enabled {
		shutdown, err := observability.InitTracing(ctx, stderr, "quiz", quiz.Version)
		if err != nil {
			return nil, err
		}
		app.shutdownTracing = shutdown
		hooks = append(hooks, observability.TracingHooks(observability.Tracer()))
	}
	composed := observability.Compose(hooks...)

	eng, err := NewEngine(ctx, cfg, logger, composed)
	if err != nil {
		_ = app.Close(ctx)
		return nil, err
	}
	app.Engine = eng
	app.Metrics.FlowsLoaded.Set(float64(len(eng.Registry().All())))

	storage, err := OpenStorage(ctx, cfg.Store, cfg.Security, logger)
	if err != nil {
		_ = app.Close(ctx)
		return nil, err
	}
	app.Storage = storage

	opts := []session.Option{
		session.WithLogger(logger),
		session.WithHooks(composed),
		session.WithLockTTL(cfg.Store.LockTTL),
	}
	if storage.Locker != nil {
		opts = append(opts, session.WithLocker(storage.Locker))
	}
	app.Sessions = session.NewManager(eng.Registry(), storage.Store, opts...)
	return app, nil
}

// Close releases the store and flushes pending spans.
func (a *App) Close(ctx context.Context) error {
	var errs []error
	if a.Storage != nil {
		errs = append(errs, a.Storage.Close())
	}
	if a.shutdownTracing != nil {
		errs = append(errs, a.shutdownTracing(ctx))
	}
	return errors.Join(errs...)
}

// Handler builds the HTTP API for cfg.
func (a *App) Handler(cfg *config.Config, logger *slog.Logger) http.Handler {
	opts := []quizhttp.Option{quizhttp.WithLogger(logger)}
	if cfg.Server.Metrics {
		opts = append(opts, quizhttp.WithMetrics(a.Metrics, a.Registry))
	}
	if cfg.Watch {
		opts = append(opts, quizhttp.WithReloads(a.Engine.Subscribe))
	}
	return quizhttp.NewHandler(a.Engine.Registry(), a.Sessions, opts...)
}

// watch starts hot reload when enabled.
func (a *App) watch(ctx context.Context, cfg *config.Config, logger *slog.Logger) error {
	if !cfg.Watch {
		return nil
	}
	if err := a.Engine.Watch(ctx, a.Metrics.RecordFlowReload); err != nil {
		return fmt.Errorf("failed to watch %s: %w", cfg.FlowDir, err)
	}
	logger.Info("watching flows", slog.String("dir", cfg.FlowDir))
	return nil
}

// Serve runs the HTTP API until ctx is cancelled, then shuts down gracefully.
func Serve(ctx context.Context, cfg *config.Config, logger *slog.Logger) error {
	app, err := NewApp(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer func() {
		if err := app.Close(context.Background()); err != nil {
			logger.Warn("shutdown incomplete", logging.Err(err))
		}
	}()

	if err := app.watch(ctx, cfg, logger); err != nil {
		return err
	}

	srv := &http.Server{
		Addr:         cfg.Server.Addr,
		Handler:      app.Handler(cfg, logger),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Info("server listening",
			slog.String("addr", srv.Addr),
			slog.String("flows", cfg.FlowDir),
			slog.String("store", cfg.Store.Driver),
		)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		logger.Info("shutting down", slog.Duration("timeout", cfg.Server.ShutdownTimeout))
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			_ = srv.Close()
			return fmt.Errorf("graceful shutdown did not complete: %w", err)
		}
		return nil
	})
	return g.Wait()
}

// MCP transports.
const (
	TransportStdio = "stdio"
	TransportSSE   = "sse"
)

// ServeMCP exposes the same stack to AI agents over stdio or SSE.
func ServeMCP(ctx context.Context, cfg *config.Config, transport string, logger *slog.Logger) error {
	app, err := NewApp(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer func() { _ = app.Close(context.Background()) }()

	if err := app.watch(ctx, cfg, logger); err != nil {
		return err
	}

	srv := mcp.NewServer(app.Engine.Registry(), app.Sessions,
		mcp.WithLogger(logger),
		mcp.WithVersion(quiz.Version),
	)
	switch transport {
	case TransportStdio:
		logger.Info("starting MCP server (stdio)")
		return srv.ServeStdio()
	case TransportSSE:
		return srv.ServeSSE(ctx, cfg.Server.Addr)
	}
	return fmt.Errorf("unknown transport %q (supported: %s, %s)", transport, TransportStdio, TransportSSE)
}
