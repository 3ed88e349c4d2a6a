package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"licensebridge/internal/adb"
	"licensebridge/internal/backend"
	"licensebridge/internal/config"
	"licensebridge/internal/devicecode"
	"licensebridge/internal/events"
	"licensebridge/internal/infrastructure"
	"licensebridge/internal/ledger"
	"licensebridge/internal/licensefile"
	"licensebridge/internal/shell"
	handlers "licensebridge/internal/transport/http"
	ws "licensebridge/internal/websocket"
	"licensebridge/internal/workflow"
)

// Application represents the main application container
type Application struct {
	Config     *config.Config
	Paths      *config.Paths
	Logger     *slog.Logger
	OTel       *infrastructure.OTelProviders
	Metrics    *infrastructure.LicensingMetrics
	Bus        *events.Bus
	Ledger     *ledger.Ledger
	Backend    *backend.Local
	Proxy      *backend.Proxy
	Controller *workflow.Controller
	Router     http.Handler
	Server     *http.Server

	started time.Time
}

// Option customizes how New wires the application.
type Option func(*options)

type options struct {
	logger        *slog.Logger
	runner        shell.Runner
	serials       devicecode.SerialSource
	executableDir func() (string, error)
}

// WithLogger skips global logger initialization and uses l.
func WithLogger(l *slog.Logger) Option {
	return func(o *options) { o.logger = l }
}

// WithRunner replaces the process runner used for adb and serial lookups.
func WithRunner(r shell.Runner) Option {
	return func(o *options) { o.runner = r }
}

// WithSerialSource replaces the host serial number lookup behind device codes.
func WithSerialSource(src devicecode.SerialSource) Option {
	return func(o *options) { o.serials = src }
}

// WithExecutableDir replaces the executable directory lookup.
func WithExecutableDir(fn func() (string, error)) Option {
	return func(o *options) { o.executableDir = fn }
}

// NewApplication loads the configuration and wires the application.
func NewApplication(ctx context.Context, opts ...Option) (*Application, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}
	return New(ctx, cfg, opts...)
}

// New wires every component from cfg.
func New(ctx context.Context, cfg *config.Config, opts ...Option) (*Application, error) {
	o := options{}
	for _, opt := range opts {
		opt(&o)
	}

	a := &Application{Config: cfg, started: time.Now()}
	var err error

	a.Logger = o.logger
	if a.Logger == nil {
		logger, err := infrastructure.InitializeLogger(cfg.Logging)
		if err != nil {
			return nil, fmt.Errorf("failed to initialize logger: %w", err)
		}
		a.Logger = logger
	}

	a.Logger.InfoContext(ctx, "Application starting",
		slog.String("name", config.AppName),
		slog.String("version", config.AppVersion))

	a.Paths, err = resolvePaths(o.executableDir)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve paths: %w", err)
	}
	if err := a.Paths.EnsureDirectories(); err != nil {
		return nil, err
	}
	a.Paths.LogPathResolution(a.Logger)

	providers, err := infrastructure.InitializeOTel(infrastructure.OTelConfigFrom(cfg.Telemetry), a.Logger)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize OpenTelemetry: %w", err)
	}
	a.OTel = providers

	a.Metrics, err = infrastructure.CreateLicensingMetrics(providers.Meter)
	if err != nil {
		return nil, fmt.Errorf("failed to create metrics: %w", err)
	}
	if err := infrastructure.RegisterRuntimeMetrics(providers.Meter, a.started); err != nil {
		return nil, fmt.Errorf("failed to register runtime metrics: %w", err)
	}

	a.Bus = events.NewBus(a.Logger, events.WithDropHook(func() {
		a.Metrics.RecordEventDropped(context.Background())
	}))

	a.Ledger, err = ledger.Open(ctx, cfg.Ledger, a.Logger)
	if err != nil {
		return nil, fmt.Errorf("failed to open ledger: %w", err)
	}

	key, err := licensefile.KeyFromConfig(cfg.Backend)
	if err != nil {
		return nil, fmt.Errorf("failed to load license key: %w", err)
	}
	codec, err := licensefile.NewCodec(key)
	if err != nil {
		return nil, fmt.Errorf("failed to create license codec: %w", err)
	}

	runner := o.runner
	if runner == nil {
		runner = shell.NewExecRunner(a.Logger)
	}
	serials := o.serials
	if serials == nil {
		serials = devicecode.NewHostSource(runner, a.Logger)
	}

	a.Backend, err = backend.NewLocal(cfg.Backend, backend.Dependencies{
		ADB:           adb.NewClient(cfg.Backend.ADBPath, runner, a.Logger),
		Generator:     devicecode.NewGenerator(serials, a.Logger),
		Codec:         codec,
		Ledger:        a.Ledger,
		Events:        a.Bus,
		Metrics:       a.Metrics,
		ExecutableDir: o.executableDir,
		Logger:        a.Logger,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create backend: %w", err)
	}

	a.Proxy = backend.NewProxy(a.Backend, a.Logger,
		backend.WithTracer(providers.Tracer),
		backend.WithMetrics(a.Metrics))

	tracker := workflow.NewTracker(a.Logger)
	tracker.OnChange(func(s workflow.Snapshot) {
		a.Bus.Emit(events.Event{Name: events.NameStatus, Data: s})
	})
	a.Controller = workflow.NewController(a.Proxy, a.Logger, workflow.WithTracker(tracker))
	a.Controller.Start(a.Bus)

	stream := ws.NewHandler(a.Bus, cfg.WebSocket, cfg.Security.AllowedOrigins, a.Logger,
		ws.WithInitialEvent(func() events.Event {
			return events.Event{Name: events.NameStatus, Data: tracker.Snapshot(), Time: time.Now()}
		}))

	a.Router = handlers.NewRouter(handlers.RouterDeps{
		Config:     cfg,
		Proxy:      a.Proxy,
		Controller: a.Controller,
		WebSocket:  stream,
		Metrics:    providers.PrometheusHTTP,
		Checks:     a.healthChecks(),
		Tracer:     providers.Tracer,
		Recorder:   a.Metrics,
		Logger:     a.Logger,
	})

	a.Server = &http.Server{
		Addr:           cfg.Server.Address(),
		Handler:        a.Router,
		ReadTimeout:    cfg.Server.ReadTimeout,
		WriteTimeout:   cfg.Server.WriteTimeout,
		IdleTimeout:    cfg.Server.IdleTimeout,
		MaxHeaderBytes: cfg.Server.MaxHeaderBytes,
		BaseContext:    func(net.Listener) context.Context { return context.Background() },
	}

	a.Logger.InfoContext(ctx, "Application wired",
		slog.String("adb", cfg.Backend.ADBPath),
		slog.Any("ledger_sinks", a.Ledger.Sinks()),
		slog.Int("batch_concurrency", cfg.Backend.BatchConcurrency))
	return a, nil
}

// resolvePaths lays out the directories under the overridden executable
// directory, or next to the running binary.
func resolvePaths(executableDir func() (string, error)) (*config.Paths, error) {
	if executableDir == nil {
		return config.GetPaths()
	}
	dir, err := executableDir()
	if err != nil {
		return nil, err
	}
	return config.PathsFor(dir), nil
}

// healthChecks are the dependencies /healthz reports on.
func (a *Application) healthChecks() map[string]handlers.HealthCheck {
	return map[string]handlers.HealthCheck{
		"adb": func(context.Context) error {
			if !config.FileExists(a.Config.Backend.ADBPath) {
				return fmt.Errorf("adb executable not found at %s", a.Config.Backend.ADBPath)
			}
			return nil
		},
		"temp_dir": func(context.Context) error {
			if err := os.MkdirAll(a.Config.Backend.TempDir, 0o755); err != nil {
				return fmt.Errorf("temp directory unusable: %w", err)
			}
			return nil
		},
	}
}

// Start starts serving on the configured address. Serve errors other than
// a clean shutdown call cancel.
func (a *Application) Start(ctx context.Context, cancel context.CancelFunc) error {
	listener, err := net.Listen("tcp", a.Server.Addr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", a.Server.Addr, err)
	}
	return a.Serve(ctx, listener, cancel)
}

// Serve serves on listener in the background.
func (a *Application) Serve(ctx context.Context, listener net.Listener, cancel context.CancelFunc) error {
	a.Logger.InfoContext(ctx, "Starting HTTP server",
		slog.String("address", listener.Addr().String()),
		slog.String("level", a.Config.Logging.Level))

	go func() {
		if err := a.Server.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			a.Logger.ErrorContext(ctx, "Server error", slog.String("error", err.Error()))
			cancel()
		}
	}()

	go func() {
		if out := a.Controller.Initialize(ctx); out.Kind != workflow.KindSuccess {
			a.Logger.WarnContext(ctx, "Application directory not detected", slog.String("status", out.Message))
		}
	}()
	return nil
}

// Stop gracefully stops the application
func (a *Application) Stop(ctx context.Context) error {
	a.Logger.InfoContext(ctx, "Shutting down application")

	shutdownCtx, cancel := context.WithTimeout(ctx, a.Config.Server.ShutdownTimeout)
	defer cancel()

	var errs []error
	if err := a.Server.Shutdown(shutdownCtx); err != nil {
		errs = append(errs, fmt.Errorf("server shutdown error: %w", err))
	}

	a.Close(shutdownCtx)

	a.Logger.InfoContext(ctx, "Application shutdown complete")
	return errors.Join(errs...)
}

// Close releases everything except the HTTP server: the controller's
// subscription, the event bus and the telemetry providers. The CLI calls it
// directly since it never serves.
func (a *Application) Close(ctx context.Context) {
	a.Controller.Close()
	a.Bus.Close()
	if a.OTel != nil {
		if err := a.OTel.Shutdown(ctx); err != nil {
			a.Logger.ErrorContext(ctx, "Error shutting down OpenTelemetry", slog.String("error", err.Error()))
		}
	}
}

// Run runs the application until interrupted
func (a *Application) Run() error {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := a.Start(ctx, cancel); err != nil {
		return err
	}

	<-ctx.Done()
	a.Logger.Info("Received shutdown signal")

	return a.Stop(context.Background())
}
