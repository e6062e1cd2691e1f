package agent_test

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aurahealth/notify/pkg/agent"
	"github.com/aurahealth/notify/pkg/notifications"
)

func TestNew(t *testing.T) {
	t.Parallel()

	t.Run("requires base URL", func(t *testing.T) {
		t.Parallel()

		_, err := agent.New(agent.Config{})
		require.ErrorIs(t, err, agent.ErrMissingBaseURL)
	})

	t.Run("starts disconnected", func(t *testing.T) {
		t.Parallel()

		a, err := agent.New(agent.Config{BaseURL: "http://localhost:8080"})
		require.NoError(t, err)
		assert.Equal(t, agent.StateDisconnected, a.State())
		assert.Empty(t, a.Notifications())
		assert.Zero(t, a.UnreadCount())
	})
}

func TestAgent_Load(t *testing.T) {
	t.Parallel()

	items := []notifications.Notification{
		{ID: "n2", Title: "second", Read: false, CreatedAt: time.Now().UTC()},
		{ID: "n1", Title: "first", Read: true, CreatedAt: time.Now().UTC().Add(-time.Minute)},
	}

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/notifications", r.URL.Path)
		require.Equal(t, "Bearer secret-token", r.Header.Get("Authorization"))
		require.NoError(t, json.NewEncoder(w).Encode(items))
	}))
	defer srv.Close()

	a, err := agent.New(agent.Config{BaseURL: srv.URL, Token: "secret-token"})
	require.NoError(t, err)

	require.NoError(t, a.Load(context.Background()))

	got := a.Notifications()
	require.Len(t, got, 2)
	assert.Equal(t, "n2", got[0].ID)
	assert.Equal(t, "n1", got[1].ID)
	assert.Equal(t, 1, a.UnreadCount())
}

func TestAgent_Add(t *testing.T) {
	t.Parallel()

	t.Run("prepends new notifications", func(t *testing.T) {
		t.Parallel()

		a, err := agent.New(agent.Config{BaseURL: "http://localhost"})
		require.NoError(t, err)

		a.Add(notifications.Notification{ID: "n1", Title: "first"})
		a.Add(notifications.Notification{ID: "n2", Title: "second"})

		got := a.Notifications()
		require.Len(t, got, 2)
		assert.Equal(t, "n2", got[0].ID)
		assert.Equal(t, "n1", got[1].ID)
		assert.Equal(t, 2, a.UnreadCount())
	})

	t.Run("duplicate ids are no-ops", func(t *testing.T) {
		t.Parallel()

		var delivered int32
		a, err := agent.New(agent.Config{
			BaseURL: "http://localhost",
			OnNotification: func(notifications.Notification) {
				atomic.AddInt32(&delivered, 1)
			},
		})
		require.NoError(t, err)

		a.Add(notifications.Notification{ID: "n1", Title: "first"})
		a.Add(notifications.Notification{ID: "n1", Title: "replayed"})

		require.Len(t, a.Notifications(), 1)
		assert.Equal(t, 1, a.UnreadCount())
		assert.Equal(t, int32(1), atomic.LoadInt32(&delivered))
	})
}

func TestAgent_MarkRead(t *testing.T) {
	t.Parallel()

	var confirmed atomic.Bool
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodPost, r.Method)
		require.Equal(t, "/notifications/n1/read", r.URL.Path)
		confirmed.Store(true)
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	a, err := agent.New(agent.Config{BaseURL: srv.URL})
	require.NoError(t, err)
	a.Add(notifications.Notification{ID: "n1", Title: "first"})
	a.Add(notifications.Notification{ID: "n2", Title: "second"})

	a.MarkRead(context.Background(), "n1")

	assert.True(t, confirmed.Load())
	assert.Equal(t, 1, a.UnreadCount())
	for _, n := range a.Notifications() {
		if n.ID == "n1" {
			assert.True(t, n.Read)
		}
	}
}

func TestAgent_MarkRead_ServerFailureKeepsLocalState(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	a, err := agent.New(agent.Config{BaseURL: srv.URL})
	require.NoError(t, err)
	a.Add(notifications.Notification{ID: "n1", Title: "first"})

	// The optimistic flip survives a failed confirmation.
	a.MarkRead(context.Background(), "n1")
	assert.Zero(t, a.UnreadCount())
}

func TestAgent_MarkAllRead(t *testing.T) {
	t.Parallel()

	var confirmed atomic.Bool
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/notifications/mark-all-read", r.URL.Path)
		confirmed.Store(true)
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	a, err := agent.New(agent.Config{BaseURL: srv.URL})
	require.NoError(t, err)
	a.Add(notifications.Notification{ID: "n1", Title: "first"})
	a.Add(notifications.Notification{ID: "n2", Title: "second"})

	a.MarkAllRead(context.Background())

	assert.True(t, confirmed.Load())
	assert.Zero(t, a.UnreadCount())
}

func TestAgent_Run_Streaming(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	mux := http.NewServeMux()
	mux.HandleFunc("/notifications", func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, json.NewEncoder(w).Encode([]notifications.Notification{
			{ID: "n1", Title: "stored"},
		}))
	})
	mux.HandleFunc("/notifications/stream", func(w http.ResponseWriter, r *http.Request) {
		flusher, ok := w.(http.Flusher)
		require.True(t, ok)
		w.Header().Set("Content-Type", "text/event-stream")
		w.WriteHeader(http.StatusOK)
		flusher.Flush()

		// Replayed snapshot entry, a heartbeat, then a live event.
		fmt.Fprintf(w, "data: %s\n\n", `{"id":"n1","title":"stored","read":false}`)
		fmt.Fprint(w, ": ping\n\n")
		fmt.Fprintf(w, "data: %s\n\n", `{"id":"n2","title":"live","read":false}`)
		flusher.Flush()

		<-r.Context().Done()
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	received := make(chan notifications.Notification, 4)
	a, err := agent.New(agent.Config{
		BaseURL: srv.URL,
		OnNotification: func(n notifications.Notification) {
			received <- n
		},
	})
	require.NoError(t, err)

	done := make(chan error, 1)
	go func() { done <- a.Run(ctx) }()

	select {
	case n := <-received:
		assert.Equal(t, "n2", n.ID)
	case <-time.After(5 * time.Second):
		t.Fatal("timeout waiting for pushed notification")
	}

	require.Eventually(t, func() bool {
		return a.State() == agent.StateStreaming
	}, 5*time.Second, 10*time.Millisecond)

	// The snapshot already contained n1, so the replayed frame was deduped.
	require.Len(t, a.Notifications(), 2)
	assert.Equal(t, "n2", a.Notifications()[0].ID)

	cancel()
	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("timeout waiting for Run to return")
	}
	assert.Equal(t, agent.StateDisconnected, a.State())
}

func TestAgent_Run_PollingFallback(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var loads int32
	mux := http.NewServeMux()
	mux.HandleFunc("/notifications", func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&loads, 1)
		require.NoError(t, json.NewEncoder(w).Encode([]notifications.Notification{
			{ID: "n1", Title: "polled"},
		}))
	})
	mux.HandleFunc("/notifications/stream", func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "stream disabled", http.StatusServiceUnavailable)
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	a, err := agent.New(agent.Config{
		BaseURL:             srv.URL,
		PollInterval:        20 * time.Millisecond,
		StreamRetryInterval: time.Hour,
	})
	require.NoError(t, err)

	done := make(chan error, 1)
	go func() { done <- a.Run(ctx) }()

	require.Eventually(t, func() bool {
		return a.State() == agent.StatePolling && atomic.LoadInt32(&loads) >= 2
	}, 5*time.Second, 10*time.Millisecond)

	require.Len(t, a.Notifications(), 1)
	assert.Equal(t, "n1", a.Notifications()[0].ID)

	cancel()
	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("timeout waiting for Run to return")
	}
}
