package http

import (
	"fmt"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/render"

	"licensebridge/internal/backend"
	apierrors "licensebridge/internal/errors"
	"licensebridge/internal/infrastructure"
	"licensebridge/internal/middleware"
	"licensebridge/pkg/contracts/commands"
)

// CommandsHandler serves the backend commands by name.
type CommandsHandler struct {
	proxy        *backend.Proxy
	validator    *middleware.Validator
	errorHandler *apierrors.ErrorHandler
	logger       *slog.Logger
}

// NewCommandsHandler creates a new commands handler
func NewCommandsHandler(proxy *backend.Proxy, validator *middleware.Validator, errorHandler *apierrors.ErrorHandler, logger *slog.Logger) *CommandsHandler {
	return &CommandsHandler{
		proxy:        proxy,
		validator:    validator,
		errorHandler: errorHandler,
		logger:       infrastructure.WithComponent(logger, "commands_handler"),
	}
}

// Routes returns a chi router for the command endpoints
func (h *CommandsHandler) Routes() chi.Router {
	r := chi.NewRouter()
	r.Get("/", h.List)
	r.Post("/{name}", h.Invoke)
	return r
}

// List handles GET /api/commands
func (h *CommandsHandler) List(w http.ResponseWriter, r *http.Request) {
	render.JSON(w, r, commands.All)
}

// Invoke handles POST /api/commands/{name}
func (h *CommandsHandler) Invoke(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	name := commands.Name(chi.URLParam(r, "name"))
	if !commands.Known(name) {
		h.errorHandler.HandleError(w, r, apierrors.UnknownCommandError(string(name)))
		return
	}

	var (
		result  any
		failure *backend.Failure
	)

	switch name {
	case commands.ListADBDevices:
		result, failure = h.proxy.ListDevices(ctx)

	case commands.ProcessAndroidAuthorization:
		var req commands.AndroidAuthorizationRequest
		if !h.validator.Decode(w, r, &req) {
			return
		}
		result, failure = h.proxy.AuthorizeAndroid(ctx, req.BatchMode)

	case commands.GetExecutableDir:
		result, failure = h.proxy.ExecutableDirectory(ctx)

	case commands.GenerateWindowsDeviceCode:
		result, failure = h.proxy.GenerateDeviceCode(ctx)

	case commands.GenerateAuthFile:
		var req commands.GenerateAuthFileRequest
		if !h.validator.Decode(w, r, &req) {
			return
		}
		result, failure = h.proxy.IssueLicense(ctx, req.DeviceCode, req.TargetPathStr)

	case commands.CheckAuthorization:
		var req commands.CheckAuthorizationRequest
		if !h.validator.Decode(w, r, &req) {
			return
		}
		result, failure = h.proxy.VerifyLicense(ctx, req.AuthFilePathStr, req.DeviceCodeFilePathStr)

	case commands.AuthorizeWindowsApplication:
		var req commands.AuthorizeApplicationRequest
		if !h.validator.Decode(w, r, &req) {
			return
		}
		result, failure = h.proxy.AuthorizeApplication(ctx, req.ApplicationPathStr)

	default:
		h.errorHandler.HandleError(w, r, fmt.Errorf("command %q has no handler", name))
		return
	}

	if failure != nil {
		h.errorHandler.HandleError(w, r, failure.AppError())
		return
	}
	render.JSON(w, r, result)
}
