package http

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"go.opentelemetry.io/otel/trace"

	"licensebridge/internal/backend"
	"licensebridge/internal/config"
	apierrors "licensebridge/internal/errors"
	"licensebridge/internal/infrastructure"
	"licensebridge/internal/middleware"
	"licensebridge/internal/workflow"
)

// RouterDeps carries everything the router mounts.
type RouterDeps struct {
	Config     *config.Config
	Proxy      *backend.Proxy
	Controller *workflow.Controller
	WebSocket  http.Handler
	Metrics    http.Handler
	Checks     map[string]HealthCheck
	Tracer     trace.Tracer
	Recorder   *infrastructure.LicensingMetrics
	Logger     *slog.Logger
}

// NewRouter builds the full HTTP surface.
func NewRouter(deps RouterDeps) chi.Router {
	logger := deps.Logger
	if logger == nil {
		logger = infrastructure.GetLogger()
	}
	errorHandler := apierrors.NewErrorHandler(logger, false)
	validator := middleware.NewValidator(logger, errorHandler)

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.NewOTelMiddleware(deps.Tracer, deps.Recorder).Handler)
	r.Use(middleware.StructuredLogger(logger))
	r.Use(apierrors.RecoveryMiddleware(errorHandler))
	r.Use(middleware.SecurityHeaders)
	r.Use(middleware.CORS(middleware.CORSConfig{
		AllowedOrigins: deps.Config.Security.AllowedOrigins,
		Logger:         logger,
	}))

	r.NotFound(errorHandler.NotFound)
	r.MethodNotAllowed(errorHandler.MethodNotAllowed)

	r.Get(config.HealthEndpoint, NewHealthHandler(deps.Checks, logger).HealthCheck)
	if deps.Metrics != nil {
		r.Method(http.MethodGet, config.MetricsEndpoint, deps.Metrics)
	}
	if deps.WebSocket != nil {
		r.Method(http.MethodGet, config.WebSocketEndpoint, deps.WebSocket)
	}

	r.Group(func(r chi.Router) {
		if rl := deps.Config.Security.RateLimit; rl.Enabled {
			r.Use(middleware.NewRateLimiter(rl.RPS, rl.Burst, logger, errorHandler).Handler)
		}
		r.Mount(config.CommandsEndpoint, NewCommandsHandler(deps.Proxy, validator, errorHandler, logger).Routes())
		if deps.Controller != nil {
			r.Mount(config.WorkflowEndpoint, NewWorkflowHandler(deps.Controller, validator, errorHandler, logger).Routes())
		}
	})

	return r
}
