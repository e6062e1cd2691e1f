// Package notifications exposes the notification core over HTTP: snapshot
// and read-state endpoints plus the SSE stream.
package notifications

import (
	"log/slog"
	"time"

	"github.com/go-chi/chi/v5"

	notify "github.com/aurahealth/notify/pkg/notifications"
)

// Handler serves the notification API for one Service instance.
type Handler struct {
	svc       *notify.Service
	logger    *slog.Logger
	heartbeat time.Duration
}

// Option configures a Handler.
type Option func(*Handler)

// WithLogger sets the handler's logger.
func WithLogger(log *slog.Logger) Option {
	return func(h *Handler) {
		h.logger = log
	}
}

// WithHeartbeat sets the SSE heartbeat interval. Heartbeats keep idle
// streams alive through proxies and surface dead client connections.
func WithHeartbeat(d time.Duration) Option {
	return func(h *Handler) {
		if d > 0 {
			h.heartbeat = d
		}
	}
}

// NewHandler creates the notification API handler.
func NewHandler(svc *notify.Service, opts ...Option) *Handler {
	h := &Handler{
		svc:       svc,
		logger:    slog.Default(),
		heartbeat: 25 * time.Second,
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// Router builds the notification routes. Mount it under /notifications with
// the identity middleware applied upstream:
//
//	r := chi.NewRouter()
//	r.Use(resolver.Middleware())
//	r.Mount("/notifications", notifications.Router(handler))
func Router(h *Handler) chi.Router {
	r := chi.NewRouter()

	r.Get("/", h.list)
	r.Post("/", h.create)
	r.Get("/unread-count", h.unreadCount)
	r.Post("/mark-all-read", h.markAllRead)
	r.Post("/{id}/read", h.markRead)
	r.Get("/stream", h.stream)

	return r
}
