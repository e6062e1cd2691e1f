package notifications_test

import (
	"bufio"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aurahealth/notify/modules/notifications"
	"github.com/aurahealth/notify/pkg/identity"
	notify "github.com/aurahealth/notify/pkg/notifications"
)

// asUser injects an authenticated user the way the identity middleware would.
func asUser(userID string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if userID != "" {
				r = r.WithContext(identity.WithUserID(r.Context(), userID))
			}
			next.ServeHTTP(w, r)
		})
	}
}

func newTestServer(t *testing.T, svc *notify.Service, userID string, opts ...notifications.Option) *httptest.Server {
	t.Helper()
	h := notifications.NewHandler(svc, opts...)
	root := http.NewServeMux()
	root.Handle("/", asUser(userID)(notifications.Router(h)))
	srv := httptest.NewServer(root)
	t.Cleanup(srv.Close)
	return srv
}

func newTestService(t *testing.T) *notify.Service {
	t.Helper()
	broker := notify.NewMemoryBroker(16)
	t.Cleanup(func() { _ = broker.Close() })
	return notify.NewService(notify.NewMemoryStorage(), broker)
}

func TestRouter_List(t *testing.T) {
	t.Parallel()

	svc := newTestService(t)
	_, err := svc.Create(context.Background(), "user-1", "first", "", "", nil)
	require.NoError(t, err)
	latest, err := svc.Create(context.Background(), "user-1", "second", "", "", nil)
	require.NoError(t, err)
	_, err = svc.Create(context.Background(), "user-2", "other mailbox", "", "", nil)
	require.NoError(t, err)

	srv := newTestServer(t, svc, "user-1")

	resp, err := http.Get(srv.URL + "/")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var items []notify.Notification
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&items))
	require.Len(t, items, 2)
	assert.Equal(t, latest.ID, items[0].ID)
}

func TestRouter_List_AnonymousSeesBroadcastMailbox(t *testing.T) {
	t.Parallel()

	svc := newTestService(t)
	_, err := svc.Create(context.Background(), "user-1", "targeted", "", "", nil)
	require.NoError(t, err)
	bcast, err := svc.Create(context.Background(), "", "for everyone", "", "", nil)
	require.NoError(t, err)

	srv := newTestServer(t, svc, "")

	resp, err := http.Get(srv.URL + "/")
	require.NoError(t, err)
	defer resp.Body.Close()

	var items []notify.Notification
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&items))
	require.Len(t, items, 1)
	assert.Equal(t, bcast.ID, items[0].ID)
}

func TestRouter_UnreadCount(t *testing.T) {
	t.Parallel()

	svc := newTestService(t)
	n, err := svc.Create(context.Background(), "user-1", "one", "", "", nil)
	require.NoError(t, err)
	_, err = svc.Create(context.Background(), "user-1", "two", "", "", nil)
	require.NoError(t, err)
	require.NoError(t, svc.MarkRead(context.Background(), "user-1", n.ID))

	srv := newTestServer(t, svc, "user-1")

	resp, err := http.Get(srv.URL + "/unread-count")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var body map[string]int
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	assert.Equal(t, 1, body["unread"])
}

func TestRouter_MarkRead(t *testing.T) {
	t.Parallel()

	svc := newTestService(t)
	n, err := svc.Create(context.Background(), "user-1", "event", "", "", nil)
	require.NoError(t, err)

	srv := newTestServer(t, svc, "user-1")

	resp, err := http.Post(srv.URL+"/"+n.ID+"/read", "application/json", nil)
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	count, err := svc.Unread(context.Background(), "user-1")
	require.NoError(t, err)
	assert.Zero(t, count)
}

func TestRouter_MarkRead_UnknownIDSucceeds(t *testing.T) {
	t.Parallel()

	srv := newTestServer(t, newTestService(t), "user-1")

	resp, err := http.Post(srv.URL+"/no-such-id/read", "application/json", nil)
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestRouter_MarkAllRead(t *testing.T) {
	t.Parallel()

	svc := newTestService(t)
	for i := 0; i < 3; i++ {
		_, err := svc.Create(context.Background(), "user-1", "event", "", "", nil)
		require.NoError(t, err)
	}

	srv := newTestServer(t, svc, "user-1")

	resp, err := http.Post(srv.URL+"/mark-all-read", "application/json", nil)
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	count, err := svc.Unread(context.Background(), "user-1")
	require.NoError(t, err)
	assert.Zero(t, count)
}

func TestRouter_Create(t *testing.T) {
	t.Parallel()

	svc := newTestService(t)
	srv := newTestServer(t, svc, "svc-reports")

	body := strings.NewReader(`{
		"userId": "user-1",
		"title": "Analysis ready",
		"message": "Your report is available",
		"type": "analysis_ready",
		"data": {"reportId": "r-42"}
	}`)
	resp, err := http.Post(srv.URL+"/", "application/json", body)
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	var created notify.Notification
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&created))
	assert.NotEmpty(t, created.ID)
	assert.Equal(t, "user-1", created.UserID)

	items, err := svc.List(context.Background(), "user-1")
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, created.ID, items[0].ID)
}

func TestRouter_Create_Rejections(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		caller string
		body   string
		want   int
	}{
		{
			name:   "anonymous caller",
			caller: "",
			body:   `{"title":"x"}`,
			want:   http.StatusUnauthorized,
		},
		{
			name:   "malformed body",
			caller: "svc-reports",
			body:   `{not json`,
			want:   http.StatusBadRequest,
		},
		{
			name:   "missing title",
			caller: "svc-reports",
			body:   `{"message":"no title"}`,
			want:   http.StatusUnprocessableEntity,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			srv := newTestServer(t, newTestService(t), tt.caller)
			resp, err := http.Post(srv.URL+"/", "application/json", strings.NewReader(tt.body))
			require.NoError(t, err)
			defer resp.Body.Close()
			assert.Equal(t, tt.want, resp.StatusCode)
		})
	}
}

func TestRouter_Stream(t *testing.T) {
	t.Parallel()

	svc := newTestService(t)
	stored, err := svc.Create(context.Background(), "user-1", "stored", "", "", nil)
	require.NoError(t, err)

	srv := newTestServer(t, svc, "user-1", notifications.WithHeartbeat(time.Hour))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, srv.URL+"/stream", nil)
	require.NoError(t, err)

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "text/event-stream", resp.Header.Get("Content-Type"))

	frames := make(chan notify.Notification, 8)
	go func() {
		scanner := bufio.NewScanner(resp.Body)
		for scanner.Scan() {
			line := scanner.Text()
			if !strings.HasPrefix(line, "data: ") {
				continue
			}
			var n notify.Notification
			if json.Unmarshal([]byte(strings.TrimPrefix(line, "data: ")), &n) == nil {
				frames <- n
			}
		}
	}()

	nextFrame := func() notify.Notification {
		select {
		case n := <-frames:
			return n
		case <-time.After(5 * time.Second):
			t.Fatal("timeout waiting for SSE frame")
			return notify.Notification{}
		}
	}

	// Catch-up frame first, then the live one.
	assert.Equal(t, stored.ID, nextFrame().ID)

	live, err := svc.Create(context.Background(), "user-1", "live", "", "", nil)
	require.NoError(t, err)
	assert.Equal(t, live.ID, nextFrame().ID)

	// Broadcasts are merged into the targeted stream.
	bcast, err := svc.Create(context.Background(), "", "for everyone", "", "", nil)
	require.NoError(t, err)
	assert.Equal(t, bcast.ID, nextFrame().ID)
}
