// Package agent maintains a client-side mirror of one recipient's mailbox.
//
// The agent prefers the SSE push stream and falls back to fixed-interval
// polling when push is unavailable, periodically retrying the stream. Local
// state is deduplicated by notification id, so replaying the catch-up
// snapshot over an already-loaded mailbox is harmless. The unread count is
// always derived from local state, never kept as a separate counter.
package agent
