// Package websocket streams the backend log channel and tracker status
// changes to browser front ends.
package websocket

import (
	"log/slog"
	"net/http"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"licensebridge/internal/config"
	"licensebridge/internal/events"
	"licensebridge/internal/infrastructure"
	"licensebridge/internal/middleware"
)

// Subscriber hands out event subscriptions.
type Subscriber interface {
	Subscribe(name string, buffer int) *events.Subscription
}

// Handler upgrades requests and pumps events to each connection.
type Handler struct {
	bus      Subscriber
	cfg      config.WebSocketConfig
	upgrader websocket.Upgrader
	initial  func() events.Event
	logger   *slog.Logger
}

// Option configures a Handler.
type Option func(*Handler)

// WithInitialEvent sends fn's event first on every new connection, so a
// client renders the current status without waiting for a change.
func WithInitialEvent(fn func() events.Event) Option {
	return func(h *Handler) { h.initial = fn }
}

// NewHandler creates a Handler streaming bus events. Origins are checked
// against allowedOrigins the same way CORS checks them.
func NewHandler(bus Subscriber, cfg config.WebSocketConfig, allowedOrigins []string, logger *slog.Logger, opts ...Option) *Handler {
	h := &Handler{
		bus:    bus,
		cfg:    cfg,
		logger: infrastructure.WithComponent(logger, "websocket"),
	}
	h.upgrader = websocket.Upgrader{
		ReadBufferSize:  cfg.ReadBufferSize,
		WriteBufferSize: cfg.WriteBufferSize,
		CheckOrigin: func(r *http.Request) bool {
			origin := r.Header.Get("Origin")
			return origin == "" || middleware.OriginAllowed(allowedOrigins, origin)
		},
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// ServeHTTP implements http.Handler.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade already wrote the error response.
		h.logger.WarnContext(ctx, "websocket upgrade failed",
			slog.String("error", err.Error()),
			slog.String("origin", r.Header.Get("Origin")))
		return
	}

	id := uuid.New().String()
	sub := h.bus.Subscribe("ws-"+id, h.cfg.SendBuffer)
	c := newClient(id, conn, sub, h.cfg, h.logger.With(
		slog.String("client_id", id),
		slog.String("trace_id", middleware.GetRequestID(ctx)),
	))

	c.logger.InfoContext(ctx, "websocket client connected", slog.String("remote_addr", r.RemoteAddr))

	var first *events.Event
	if h.initial != nil {
		ev := h.initial()
		first = &ev
	}
	go c.writePump(first)
	go c.readPump()
}
