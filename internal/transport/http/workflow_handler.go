package http

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/render"

	apierrors "licensebridge/internal/errors"
	"licensebridge/internal/infrastructure"
	"licensebridge/internal/middleware"
	"licensebridge/internal/workflow"
	api "licensebridge/pkg/contracts/api/v1"
)

// OutcomeResponse is the answer to every workflow action: what happened
// and what the front end should render now.
type OutcomeResponse struct {
	Outcome workflow.Outcome `json:"outcome"`
	View    workflow.View    `json:"view"`
}

// WorkflowHandler drives the workflow controller over HTTP.
type WorkflowHandler struct {
	controller   *workflow.Controller
	validator    *middleware.Validator
	errorHandler *apierrors.ErrorHandler
	logger       *slog.Logger
}

// NewWorkflowHandler creates a new workflow handler
func NewWorkflowHandler(controller *workflow.Controller, validator *middleware.Validator, errorHandler *apierrors.ErrorHandler, logger *slog.Logger) *WorkflowHandler {
	return &WorkflowHandler{
		controller:   controller,
		validator:    validator,
		errorHandler: errorHandler,
		logger:       infrastructure.WithComponent(logger, "workflow_handler"),
	}
}

// Routes returns a chi router for the workflow endpoints
func (h *WorkflowHandler) Routes() chi.Router {
	r := chi.NewRouter()

	r.Get("/state", h.State)
	r.Get("/flows", h.Flows)
	r.Post("/init", h.Initialize)

	r.Post("/select/{field}", h.Select)

	r.Post("/devices/refresh", h.RefreshDevices)
	r.Post("/android/authorize", h.AuthorizeAndroid)

	r.Post("/device-code/generate", h.GenerateDeviceCode)
	r.Post("/license/issue", h.IssueLicense)
	r.Post("/license/verify", h.VerifyLicense)
	r.Post("/application/authorize", h.AuthorizeApplication)

	return r
}

// State handles GET /api/workflow/state
func (h *WorkflowHandler) State(w http.ResponseWriter, r *http.Request) {
	render.JSON(w, r, h.controller.View())
}

// Flows handles GET /api/workflow/flows
func (h *WorkflowHandler) Flows(w http.ResponseWriter, r *http.Request) {
	render.JSON(w, r, workflow.WindowsFlows)
}

// Initialize handles POST /api/workflow/init
func (h *WorkflowHandler) Initialize(w http.ResponseWriter, r *http.Request) {
	h.respond(w, r, h.controller.Initialize(r.Context()))
}

// Select handles POST /api/workflow/select/{field}
func (h *WorkflowHandler) Select(w http.ResponseWriter, r *http.Request) {
	field, err := workflow.ParseField(chi.URLParam(r, "field"))
	if err != nil {
		h.errorHandler.HandleError(w, r, apierrors.NewNotFoundError("selection field "+chi.URLParam(r, "field")))
		return
	}

	var req api.SelectRequest
	if !h.validator.Decode(w, r, &req) {
		return
	}
	h.respond(w, r, h.controller.Select(r.Context(), field, answer(req.DialogAnswer)))
}

// RefreshDevices handles POST /api/workflow/devices/refresh
func (h *WorkflowHandler) RefreshDevices(w http.ResponseWriter, r *http.Request) {
	h.respond(w, r, h.controller.RefreshDevices(r.Context(), nil))
}

// AuthorizeAndroid handles POST /api/workflow/android/authorize
func (h *WorkflowHandler) AuthorizeAndroid(w http.ResponseWriter, r *http.Request) {
	var req api.AndroidAuthorizeRequest
	if !h.validator.Decode(w, r, &req) {
		return
	}
	h.respond(w, r, h.controller.AuthorizeAndroid(r.Context(), nil, req.BatchMode))
}

// GenerateDeviceCode handles POST /api/workflow/device-code/generate
func (h *WorkflowHandler) GenerateDeviceCode(w http.ResponseWriter, r *http.Request) {
	var req api.GenerateDeviceCodeRequest
	if !h.validator.Decode(w, r, &req) {
		return
	}
	h.respond(w, r, h.controller.GenerateDeviceCode(r.Context(), answer(req.Save)))
}

// IssueLicense handles POST /api/workflow/license/issue
func (h *WorkflowHandler) IssueLicense(w http.ResponseWriter, r *http.Request) {
	h.respond(w, r, h.controller.IssueLicense(r.Context(), nil))
}

// VerifyLicense handles POST /api/workflow/license/verify
func (h *WorkflowHandler) VerifyLicense(w http.ResponseWriter, r *http.Request) {
	h.respond(w, r, h.controller.VerifyLicense(r.Context(), nil))
}

// AuthorizeApplication handles POST /api/workflow/application/authorize
func (h *WorkflowHandler) AuthorizeApplication(w http.ResponseWriter, r *http.Request) {
	h.respond(w, r, h.controller.AuthorizeApplication(r.Context(), nil))
}

// respond writes the outcome with the current view. Refused actions are
// 412, backend failures 502 and host-side failures 500. Every other
// outcome, a failed verification included, is a 200.
func (h *WorkflowHandler) respond(w http.ResponseWriter, r *http.Request, out workflow.Outcome) {
	status := http.StatusOK
	switch out.Kind {
	case workflow.KindPreconditionFailed:
		status = http.StatusPreconditionFailed
	case workflow.KindRemoteFailure:
		status = http.StatusBadGateway
	case workflow.KindLocalFailure:
		status = http.StatusInternalServerError
	}

	h.logger.DebugContext(r.Context(), "workflow action answered",
		slog.String("action", string(out.Action)),
		slog.String("kind", string(out.Kind)),
		slog.Int("status", status))

	render.Status(r, status)
	render.JSON(w, r, OutcomeResponse{Outcome: out, View: h.controller.View()})
}

func answer(a api.DialogAnswer) workflow.Answer {
	return workflow.Answer{Value: a.Value, Cancelled: a.Cancelled}
}
