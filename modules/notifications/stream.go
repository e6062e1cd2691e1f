package notifications

import (
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/aurahealth/notify/core"
	"github.com/aurahealth/notify/pkg/identity"
	"github.com/aurahealth/notify/pkg/logger"
	notify "github.com/aurahealth/notify/pkg/notifications"
)

// stream serves the SSE push channel: the catch-up snapshot in
// chronological order first, then one event frame per published
// notification until the client disconnects. Closing the connection
// cancels the request context, which releases the broker subscription.
func (h *Handler) stream(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		core.Render(w, r, core.JSONError(core.NewHTTPError(http.StatusNotImplemented, "streaming_unsupported")))
		return
	}

	ctx := r.Context()
	userID := identity.UserID(ctx)

	events, err := h.svc.Stream(ctx, userID)
	if err != nil {
		h.renderError(w, r, "open stream", err)
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	h.logger.LogAttrs(ctx, slog.LevelDebug, "Notification stream opened",
		logger.UserID(userID),
	)
	defer h.logger.LogAttrs(ctx, slog.LevelDebug, "Notification stream closed",
		logger.UserID(userID),
	)

	heartbeat := time.NewTicker(h.heartbeat)
	defer heartbeat.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case n, ok := <-events:
			if !ok {
				return
			}
			if err := writeEvent(w, n); err != nil {
				return
			}
			flusher.Flush()
		case <-heartbeat.C:
			// Comment frames are ignored by EventSource but keep the
			// connection alive and detect dead peers.
			if _, err := io.WriteString(w, ": ping\n\n"); err != nil {
				return
			}
			flusher.Flush()
		}
	}
}

// writeEvent emits one notification as a self-delimited SSE data frame.
func writeEvent(w io.Writer, n notify.Notification) error {
	data, err := json.Marshal(n)
	if err != nil {
		return err
	}
	_, err = fmt.Fprintf(w, "data: %s\n\n", data)
	return err
}
