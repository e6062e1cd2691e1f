package notifications

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/aurahealth/notify/core"
	"github.com/aurahealth/notify/pkg/identity"
	"github.com/aurahealth/notify/pkg/logger"
)

// list returns the caller's mailbox, newest first. Anonymous callers see
// the broadcast mailbox.
func (h *Handler) list(w http.ResponseWriter, r *http.Request) {
	items, err := h.svc.List(r.Context(), identity.UserID(r.Context()))
	if err != nil {
		h.renderError(w, r, "list notifications", err)
		return
	}
	core.Render(w, r, core.JSON(items))
}

// unreadCount returns the caller's unread total for the bell badge.
func (h *Handler) unreadCount(w http.ResponseWriter, r *http.Request) {
	count, err := h.svc.Unread(r.Context(), identity.UserID(r.Context()))
	if err != nil {
		h.renderError(w, r, "count unread", err)
		return
	}
	core.Render(w, r, core.JSON(map[string]int{"unread": count}))
}

// markRead flips one record to read. Unknown ids succeed as no-ops so the
// call is safely idempotent.
func (h *Handler) markRead(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if err := h.svc.MarkRead(r.Context(), identity.UserID(r.Context()), id); err != nil {
		h.renderError(w, r, "mark read", err)
		return
	}
	core.Render(w, r, core.OK())
}

// markAllRead flips the caller's whole mailbox to read.
func (h *Handler) markAllRead(w http.ResponseWriter, r *http.Request) {
	if err := h.svc.MarkAllRead(r.Context(), identity.UserID(r.Context())); err != nil {
		h.renderError(w, r, "mark all read", err)
		return
	}
	core.Render(w, r, core.OK())
}

type createRequest struct {
	UserID  string          `json:"userId"` // empty broadcasts to every client
	Title   string          `json:"title"`
	Message string          `json:"message"`
	Type    string          `json:"type"`
	Data    json.RawMessage `json:"data"`
}

// create is the ingress collaborating services use to raise a notification.
// It requires an authenticated caller; the recipient comes from the body so
// backend services can target any user or broadcast.
func (h *Handler) create(w http.ResponseWriter, r *http.Request) {
	if !identity.IsAuthenticated(r.Context()) {
		core.Render(w, r, core.JSONError(core.ErrUnauthorized))
		return
	}

	var req createRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		core.Render(w, r, core.JSONError(core.ErrBadRequest))
		return
	}
	if req.Title == "" {
		core.Render(w, r, core.JSONError(core.ErrUnprocessableEntity))
		return
	}

	var payload any
	if len(req.Data) > 0 {
		payload = req.Data
	}

	n, err := h.svc.Create(r.Context(), req.UserID, req.Title, req.Message, req.Type, payload)
	if err != nil {
		h.renderError(w, r, "create notification", err)
		return
	}
	core.Render(w, r, core.JSONStatus(http.StatusCreated, n))
}

func (h *Handler) renderError(w http.ResponseWriter, r *http.Request, op string, err error) {
	h.logger.LogAttrs(r.Context(), slog.LevelError, "Notification API operation failed",
		slog.String("operation", op),
		logger.UserID(identity.UserID(r.Context())),
		logger.Error(err),
	)
	core.Render(w, r, core.JSONError(err))
}
