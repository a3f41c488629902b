package bootstrap

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/kbukum/automeet/cache"
	"github.com/kbukum/automeet/component"
	"github.com/kbukum/automeet/config"
	"github.com/kbukum/automeet/logger"
	"github.com/kbukum/automeet/observability"
	"github.com/kbukum/automeet/orchestrator"
	"github.com/kbukum/automeet/ratelimit"
	"github.com/kbukum/automeet/server"
	"github.com/kbukum/automeet/sse"
	"github.com/kbukum/automeet/transcript"
)

// App is a wired automeet process.
type App struct {
	Name    string
	Version string
	Cfg     *config.AppConfig
	Logger  *logger.Logger
	Metrics *observability.Metrics

	Components   *component.Registry
	Limiters     *ratelimit.Registry
	Cache        *cache.Cache[transcript.Result]
	Orchestrator *orchestrator.Orchestrator
	// Server and Events are nil when server.enabled is false.
	Server *server.Server
	Events *sse.Hub

	gracefulTimeout time.Duration
	onStart         []Hook
	onReady         []Hook
	onStop          []Hook
}

// New applies defaults to cfg, validates it and wires every component.
// Nothing is started until Run or RunTask.
func New(ctx context.Context, cfg *config.AppConfig, opts ...Option) (*App, error) {
	cfg.ApplyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	o := resolveOptions(opts)

	a := &App{
		Name:            cfg.Name,
		Version:         cfg.Version,
		Cfg:             cfg,
		gracefulTimeout: o.gracefulTimeout,
	}
	if o.logger != nil {
		a.Logger = o.logger
	} else {
		logger.Init(&cfg.Logging)
		a.Logger = logger.GetGlobalLogger()
	}
	logger.RegisterComponents(a.Logger, cfg.Logging.Components, componentLoggers...)
	a.Components = component.NewRegistry()

	if err := a.initTelemetry(ctx); err != nil {
		return nil, err
	}

	a.Limiters = ratelimit.NewRegistry(
		ratelimit.WithLogger(logger.Get("ratelimit")),
		ratelimit.WithMetrics(a.Metrics),
	)

	var err error
	if a.Cache, err = a.newCache(); err != nil {
		return nil, err
	}

	providers, err := a.resolveProviders(o)
	if err != nil {
		return nil, err
	}

	var onJobUpdate func(orchestrator.Job)
	if cfg.Server.Enabled {
		a.Events = sse.NewHub(logger.Get("sse"))
		if err := a.Components.Register(sse.NewComponent(a.Events)); err != nil {
			return nil, err
		}
		onJobUpdate = a.publishJob
	}

	a.Orchestrator, err = orchestrator.New(orchestrator.Deps{
		Transcriber: providers.transcriber,
		Generator:   providers.generator,
		Streamer:    providers.streamer,
		Extractor:   a.newExtractor(ctx),
		Limiters:    a.Limiters,
		Cache:       a.Cache,
		Logger:      logger.Get("orchestrator"),
		Metrics:     a.Metrics,
		OnJobUpdate: onJobUpdate,
	}, cfg.Orchestrator())
	if err != nil {
		return nil, err
	}
	if err := a.Components.Register(a.Orchestrator); err != nil {
		return nil, err
	}

	if cfg.Server.Enabled {
		a.Server = server.New(cfg.Server, a.Logger)
		a.Server.RegisterRoutes(a.Name, a.Orchestrator, a.Components.HealthAll, a.Limiters, a.Events)
	}
	return a, nil
}

// RegisterComponent adds a component to the lifecycle.
func (a *App) RegisterComponent(c component.Component) error {
	return a.Components.Register(c)
}

// ReadyCheck returns an error naming every component that is not healthy.
func (a *App) ReadyCheck(ctx context.Context) error {
	var unhealthy []string
	for _, h := range a.Components.HealthAll(ctx) {
		if h.Status == component.StatusHealthy {
			continue
		}
		detail := h.Name + "=" + string(h.Status)
		if h.Message != "" {
			detail += "(" + h.Message + ")"
		}
		unhealthy = append(unhealthy, detail)
	}
	if len(unhealthy) > 0 {
		return fmt.Errorf("unhealthy components: %v", unhealthy)
	}
	return nil
}

// Run serves the HTTP API until SIGINT, SIGTERM or ctx ends, then shuts
// down gracefully.
func (a *App) Run(ctx context.Context) error {
	if a.Server != nil {
		if err := a.Components.Register(server.NewComponent(a.Server)); err != nil {
			return err
		}
	}
	if err := a.startup(ctx); err != nil {
		return err
	}

	a.Logger.Info("application ready, waiting for shutdown signal")
	a.WaitForSignal(ctx)
	return a.stop()
}

// RunTask starts the components, runs task and shuts down. A signal
// cancels the task's context. The HTTP server is not started.
func (a *App) RunTask(ctx context.Context, task func(ctx context.Context) error) error {
	if err := a.startup(ctx); err != nil {
		return err
	}

	taskCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigCh)

	go func() {
		select {
		case sig := <-sigCh:
			a.Logger.Info("received signal, cancelling task", logger.Fields("signal", sig.String()))
			cancel()
		case <-taskCtx.Done():
		}
	}()

	taskErr := task(taskCtx)
	if stopErr := a.stop(); stopErr != nil && taskErr == nil {
		return stopErr
	}
	return taskErr
}

func (a *App) startup(ctx context.Context) error {
	start := time.Now()
	a.Logger.Info("starting application", logger.Fields("name", a.Name, "version", a.Version))

	if err := a.Components.StartAll(ctx); err != nil {
		return fmt.Errorf("failed to start components: %w", err)
	}
	if err := runHooks(ctx, a.onStart); err != nil {
		a.abort()
		return fmt.Errorf("onStart hook failed: %w", err)
	}
	if err := a.ReadyCheck(ctx); err != nil {
		a.Logger.Warn("ready check reported issues", logger.Fields(logger.FieldError, err.Error()))
	}
	if err := runHooks(ctx, a.onReady); err != nil {
		a.abort()
		return fmt.Errorf("onReady hook failed: %w", err)
	}

	a.logSummary(ctx, time.Since(start))
	return nil
}

// abort stops components after a failed startup.
func (a *App) abort() {
	ctx, cancel := context.WithTimeout(context.Background(), a.gracefulTimeout)
	defer cancel()
	if err := a.Components.StopAll(ctx); err != nil {
		a.Logger.Error("stop after failed startup", logger.Fields(logger.FieldError, err.Error()))
	}
}

// WaitForSignal blocks until SIGINT, SIGTERM or ctx ends. It returns the
// signal, or nil on context cancellation.
func (a *App) WaitForSignal(ctx context.Context) os.Signal {
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigCh)

	select {
	case sig := <-sigCh:
		a.Logger.Info("received shutdown signal", logger.Fields("signal", sig.String()))
		return sig
	case <-ctx.Done():
		a.Logger.Info("context cancelled, shutting down")
		return nil
	}
}

// Shutdown stops the application when the caller manages the lifecycle.
func (a *App) Shutdown(context.Context) error {
	return a.stop()
}

// stop drains and stops components in reverse order, then runs the stop
// hooks, all within the graceful timeout.
func (a *App) stop() error {
	a.Logger.Info("shutting down application", logger.Fields("timeout", a.gracefulTimeout.String()))

	ctx, cancel := context.WithTimeout(context.Background(), a.gracefulTimeout)
	defer cancel()

	var shutdownErr error
	if err := a.Components.StopAll(ctx); err != nil {
		a.Logger.Error("shutdown completed with errors", logger.Fields(logger.FieldError, err.Error()))
		shutdownErr = err
	}
	if err := runHooks(ctx, a.onStop); err != nil {
		a.Logger.Error("onStop hook error", logger.Fields(logger.FieldError, err.Error()))
		if shutdownErr == nil {
			shutdownErr = err
		}
	}

	a.Logger.Info("application shutdown complete")
	return shutdownErr
}
