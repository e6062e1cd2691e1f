package notifications

import (
	"context"
	"errors"
)

var (
	// ErrMissingID is returned when a notification without an ID is appended.
	ErrMissingID = errors.New("notification id is required")
)

// Storage is the ordered, append-only per-recipient notification log.
// Records are never removed, only appended or flipped to read.
// Implementations must be safe for concurrent use; a snapshot must never
// observe a partially-applied mutation.
type Storage interface {
	// Append adds the notification to the end of its mailbox.
	Append(ctx context.Context, n Notification) error

	// Snapshot returns an independent copy of the mailbox, newest first.
	// An unknown mailbox yields an empty slice, not an error.
	Snapshot(ctx context.Context, mailbox string) ([]Notification, error)

	// MarkRead flips the matching record to read and reports whether it was
	// found. An unknown id is a no-op, not an error.
	MarkRead(ctx context.Context, mailbox, id string) (bool, error)

	// MarkAllRead flips every record in the mailbox to read.
	MarkAllRead(ctx context.Context, mailbox string) error

	// CountUnread returns the number of unread records in the mailbox.
	CountUnread(ctx context.Context, mailbox string) (int, error)
}
