package agent

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/aurahealth/notify/pkg/logger"
	"github.com/aurahealth/notify/pkg/notifications"
)

// State is the agent's connection state.
type State string

const (
	StateDisconnected State = "disconnected"
	StateStreaming    State = "streaming"
	StatePolling      State = "polling"
)

var (
	// ErrMissingBaseURL is returned when the agent is built without a server URL.
	ErrMissingBaseURL = errors.New("agent: base URL is required")
)

// Config configures an Agent.
type Config struct {
	// BaseURL is the notification service root, e.g. "http://localhost:8080".
	BaseURL string

	// Token optionally authenticates the agent; without it the agent sees
	// the broadcast mailbox only.
	Token string

	// HTTPClient defaults to http.DefaultClient.
	HTTPClient *http.Client

	// PollInterval is the full-refresh cadence in the polling fallback.
	// Defaults to 15s.
	PollInterval time.Duration

	// StreamRetryInterval is how long the agent polls before attempting to
	// re-open the push stream. Defaults to 30s.
	StreamRetryInterval time.Duration

	// OnNotification, when set, is invoked for every notification newly
	// applied to local state.
	OnNotification func(notifications.Notification)

	Logger *slog.Logger
}

// Agent mirrors one recipient's mailbox on the client side.
// All exported methods are safe for concurrent use.
type Agent struct {
	cfg    Config
	client *http.Client
	logger *slog.Logger

	mu    sync.RWMutex
	items []notifications.Notification // newest first
	seen  map[string]struct{}
	state State
}

// New creates an agent. It performs no I/O until Load or Run is called.
func New(cfg Config) (*Agent, error) {
	if cfg.BaseURL == "" {
		return nil, ErrMissingBaseURL
	}
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	if cfg.HTTPClient == nil {
		cfg.HTTPClient = http.DefaultClient
	}
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = 15 * time.Second
	}
	if cfg.StreamRetryInterval <= 0 {
		cfg.StreamRetryInterval = 30 * time.Second
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}

	return &Agent{
		cfg:    cfg,
		client: cfg.HTTPClient,
		logger: cfg.Logger,
		seen:   make(map[string]struct{}),
		state:  StateDisconnected,
	}, nil
}

// State returns the current connection state.
func (a *Agent) State() State {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.state
}

// Notifications returns a copy of local state, newest first.
func (a *Agent) Notifications() []notifications.Notification {
	a.mu.RLock()
	defer a.mu.RUnlock()
	out := make([]notifications.Notification, len(a.items))
	copy(out, a.items)
	return out
}

// UnreadCount derives the unread total from local state.
func (a *Agent) UnreadCount() int {
	a.mu.RLock()
	defer a.mu.RUnlock()
	count := 0
	for _, n := range a.items {
		if !n.Read {
			count++
		}
	}
	return count
}

// Load replaces local state with a full snapshot from the server.
func (a *Agent) Load(ctx context.Context) error {
	var items []notifications.Notification
	if err := a.getJSON(ctx, "/notifications", &items); err != nil {
		return fmt.Errorf("load notifications: %w", err)
	}

	a.mu.Lock()
	defer a.mu.Unlock()
	a.items = items
	a.seen = make(map[string]struct{}, len(items))
	for _, n := range items {
		a.seen[n.ID] = struct{}{}
	}
	return nil
}

// Add applies one pushed notification. Applying a notification whose id is
// already present is a no-op, so duplicates across the snapshot/live
// boundary never distort the list or the unread count.
func (a *Agent) Add(n notifications.Notification) {
	a.mu.Lock()
	if _, dup := a.seen[n.ID]; dup {
		a.mu.Unlock()
		return
	}
	a.seen[n.ID] = struct{}{}
	a.items = append([]notifications.Notification{n}, a.items...)
	a.mu.Unlock()

	if a.cfg.OnNotification != nil {
		a.cfg.OnNotification(n)
	}
}

// MarkRead optimistically flips the local record and confirms with the
// server. A failed confirmation is logged, not returned; the next full
// refresh reconciles.
func (a *Agent) MarkRead(ctx context.Context, id string) {
	a.mu.Lock()
	for i := range a.items {
		if a.items[i].ID == id {
			a.items[i].Read = true
			break
		}
	}
	a.mu.Unlock()

	if err := a.post(ctx, "/notifications/"+id+"/read"); err != nil {
		a.logger.LogAttrs(ctx, slog.LevelWarn, "Failed to confirm mark-read",
			slog.String("notification_id", id),
			logger.Error(err),
		)
	}
}

// MarkAllRead optimistically flips every local record and confirms with the
// server.
func (a *Agent) MarkAllRead(ctx context.Context) {
	a.mu.Lock()
	for i := range a.items {
		a.items[i].Read = true
	}
	a.mu.Unlock()

	if err := a.post(ctx, "/notifications/mark-all-read"); err != nil {
		a.logger.LogAttrs(ctx, slog.LevelWarn, "Failed to confirm mark-all-read",
			logger.Error(err),
		)
	}
}

// Run drives the connection state machine until ctx is cancelled: initial
// load, then streaming, with fixed-interval polling whenever the stream is
// unavailable and periodic attempts to get back on the stream.
func (a *Agent) Run(ctx context.Context) error {
	if err := a.Load(ctx); err != nil {
		// Not fatal: the stream snapshot or the first poll catches up.
		a.logger.LogAttrs(ctx, slog.LevelWarn, "Initial notification load failed",
			logger.Error(err),
		)
	}

	for {
		err := a.stream(ctx)
		if ctx.Err() != nil {
			a.setState(StateDisconnected)
			return nil
		}
		a.logger.LogAttrs(ctx, slog.LevelDebug, "Notification stream unavailable, falling back to polling",
			logger.Error(err),
		)

		if err := a.poll(ctx); err != nil {
			a.setState(StateDisconnected)
			return nil
		}
	}
}

func (a *Agent) setState(s State) {
	a.mu.Lock()
	a.state = s
	a.mu.Unlock()
}

// stream consumes the SSE push channel until it fails or ctx is cancelled.
func (a *Agent) stream(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, a.cfg.BaseURL+"/notifications/stream", nil)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "text/event-stream")
	req.Header.Set("Cache-Control", "no-cache")
	a.authorize(req)

	resp, err := a.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("stream endpoint returned %s", resp.Status)
	}

	a.setState(StateStreaming)
	defer a.setState(StateDisconnected)

	return a.consumeEvents(resp.Body)
}

// consumeEvents parses SSE frames: "data:" lines accumulate until a blank
// line delimits the event. Comment lines (heartbeats) are skipped.
func (a *Agent) consumeEvents(body io.Reader) error {
	scanner := bufio.NewScanner(body)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	var data strings.Builder
	for scanner.Scan() {
		line := scanner.Text()
		switch {
		case line == "":
			if data.Len() > 0 {
				a.applyEvent(data.String())
				data.Reset()
			}
		case strings.HasPrefix(line, "data:"):
			if data.Len() > 0 {
				data.WriteByte('\n')
			}
			data.WriteString(strings.TrimPrefix(strings.TrimPrefix(line, "data:"), " "))
		default:
			// Comments and fields we do not use (event:, id:, retry:).
		}
	}

	if err := scanner.Err(); err != nil {
		return err
	}
	return io.EOF
}

func (a *Agent) applyEvent(data string) {
	var n notifications.Notification
	if err := json.Unmarshal([]byte(data), &n); err != nil {
		a.logger.LogAttrs(context.Background(), slog.LevelWarn, "Discarding undecodable stream event",
			logger.Error(err),
		)
		return
	}
	a.Add(n)
}

// poll refreshes local state at a fixed interval until it is time to retry
// the stream. A non-nil error means ctx was cancelled.
func (a *Agent) poll(ctx context.Context) error {
	a.setState(StatePolling)

	ticker := time.NewTicker(a.cfg.PollInterval)
	defer ticker.Stop()
	retry := time.NewTimer(a.cfg.StreamRetryInterval)
	defer retry.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-retry.C:
			return nil
		case <-ticker.C:
			if err := a.Load(ctx); err != nil {
				a.logger.LogAttrs(ctx, slog.LevelWarn, "Notification poll failed",
					logger.Error(err),
				)
			}
		}
	}
}

func (a *Agent) authorize(req *http.Request) {
	if a.cfg.Token != "" {
		req.Header.Set("Authorization", "Bearer "+a.cfg.Token)
	}
}

func (a *Agent) getJSON(ctx context.Context, path string, v any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, a.cfg.BaseURL+path, nil)
	if err != nil {
		return err
	}
	a.authorize(req)

	resp, err := a.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("%s returned %s", path, resp.Status)
	}
	return json.NewDecoder(resp.Body).Decode(v)
}

func (a *Agent) post(ctx context.Context, path string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, a.cfg.BaseURL+path, nil)
	if err != nil {
		return err
	}
	a.authorize(req)

	resp, err := a.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusBadRequest {
		return fmt.Errorf("%s returned %s", path, resp.Status)
	}
	_, _ = io.Copy(io.Discard, resp.Body)
	return nil
}
