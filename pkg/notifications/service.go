package notifications

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/aurahealth/notify/pkg/broadcast"
	"github.com/aurahealth/notify/pkg/logger"
)

// Service orchestrates notification creation, read-state changes and
// streaming. It is the single entry point the rest of the application uses
// to raise a notification.
type Service struct {
	storage Storage
	broker  Broker
	logger  *slog.Logger
}

// ServiceOption configures a Service.
type ServiceOption func(*Service)

// WithServiceLogger sets the logger for the Service.
func WithServiceLogger(log *slog.Logger) ServiceOption {
	return func(s *Service) {
		s.logger = log
	}
}

// NewService creates a notification service on top of the given storage and
// broker. A nil broker disables live delivery; notifications are still
// stored and visible through List.
func NewService(storage Storage, broker Broker, opts ...ServiceOption) *Service {
	if broker == nil {
		broker = NoOpBroker{}
	}

	s := &Service{
		storage: storage,
		broker:  broker,
		logger:  slog.Default(),
	}

	for _, opt := range opts {
		opt(s)
	}

	return s
}

// Create builds a notification with a fresh id and timestamp, appends it to
// the recipient's mailbox and publishes it to live subscribers. An empty
// userID targets the broadcast mailbox. The payload is serialized
// best-effort: one that cannot be represented as JSON degrades to absent
// rather than failing the call.
func (s *Service) Create(ctx context.Context, userID, title, message, typ string, payload any) (Notification, error) {
	n := Notification{
		ID:        uuid.New().String(),
		UserID:    userID,
		Title:     title,
		Message:   message,
		Type:      typ,
		Data:      s.encodePayload(ctx, payload),
		CreatedAt: time.Now().UTC(),
	}

	// Store first so the record survives even if live delivery fails.
	if err := s.storage.Append(ctx, n); err != nil {
		return Notification{}, fmt.Errorf("store notification: %w", err)
	}

	if err := s.broker.Publish(ctx, n); err != nil {
		// Stored but not delivered live; clients pick it up on the next
		// snapshot or poll.
		s.logger.LogAttrs(ctx, slog.LevelWarn, "Notification stored but live delivery failed",
			slog.String("notification_id", n.ID),
			logger.UserID(n.UserID),
			logger.Error(err),
		)
	}

	return n, nil
}

// List returns the recipient's mailbox, newest first.
func (s *Service) List(ctx context.Context, userID string) ([]Notification, error) {
	return s.storage.Snapshot(ctx, MailboxKey(userID))
}

// MarkRead flips one record to read. An unknown id is a no-op.
func (s *Service) MarkRead(ctx context.Context, userID, id string) error {
	found, err := s.storage.MarkRead(ctx, MailboxKey(userID), id)
	if err != nil {
		return err
	}
	if !found {
		s.logger.LogAttrs(ctx, slog.LevelDebug, "Mark-read for unknown notification id",
			slog.String("notification_id", id),
			logger.UserID(userID),
		)
	}
	return nil
}

// MarkAllRead flips every record in the recipient's mailbox to read.
func (s *Service) MarkAllRead(ctx context.Context, userID string) error {
	return s.storage.MarkAllRead(ctx, MailboxKey(userID))
}

// Unread returns the recipient's unread count.
func (s *Service) Unread(ctx context.Context, userID string) (int, error) {
	return s.storage.CountUnread(ctx, MailboxKey(userID))
}

// Stream yields the recipient's current mailbox in chronological order as a
// catch-up, then every subsequently published notification for the
// recipient, with broadcast notifications merged in. The channel is closed
// when ctx is cancelled. A notification published exactly at subscribe time
// may appear in both the snapshot and the live tail; consumers deduplicate
// by id.
func (s *Service) Stream(ctx context.Context, userID string) (<-chan Notification, error) {
	mailbox := MailboxKey(userID)

	// Subscribe before snapshotting so nothing published in between is lost.
	sub := s.broker.Subscribe(ctx, mailbox)
	var broadcastSub broadcast.Subscriber[Notification]
	if mailbox != BroadcastMailbox {
		broadcastSub = s.broker.Subscribe(ctx, BroadcastMailbox)
	}

	snapshot, err := s.storage.Snapshot(ctx, mailbox)
	if err != nil {
		_ = sub.Close()
		if broadcastSub != nil {
			_ = broadcastSub.Close()
		}
		return nil, fmt.Errorf("snapshot mailbox: %w", err)
	}

	out := make(chan Notification)
	go func() {
		defer close(out)
		defer sub.Close()
		if broadcastSub != nil {
			defer broadcastSub.Close()
		}

		// Snapshot is newest-first; replay it chronologically so clients
		// can simply append.
		for i := len(snapshot) - 1; i >= 0; i-- {
			select {
			case out <- snapshot[i]:
			case <-ctx.Done():
				return
			}
		}

		live := sub.Receive()
		var broadcastLive <-chan Notification
		if broadcastSub != nil {
			broadcastLive = broadcastSub.Receive()
		}

		for live != nil || broadcastLive != nil {
			select {
			case <-ctx.Done():
				return
			case n, ok := <-live:
				if !ok {
					live = nil
					continue
				}
				select {
				case out <- n:
				case <-ctx.Done():
					return
				}
			case n, ok := <-broadcastLive:
				if !ok {
					broadcastLive = nil
					continue
				}
				select {
				case out <- n:
				case <-ctx.Done():
					return
				}
			}
		}
	}()

	return out, nil
}

// encodePayload serializes an arbitrary payload, degrading to absent when it
// cannot be represented as JSON.
func (s *Service) encodePayload(ctx context.Context, payload any) json.RawMessage {
	if payload == nil {
		return nil
	}

	if raw, ok := payload.(json.RawMessage); ok {
		if json.Valid(raw) {
			return raw
		}
		s.logger.LogAttrs(ctx, slog.LevelWarn, "Dropping malformed notification payload")
		return nil
	}

	data, err := json.Marshal(payload)
	if err != nil {
		s.logger.LogAttrs(ctx, slog.LevelWarn, "Dropping unserializable notification payload",
			logger.Error(err),
		)
		return nil
	}
	return data
}

// NoOpBroker discards every publish and hands out closed subscriptions.
// Useful in tests and deployments without live delivery.
type NoOpBroker struct{}

func (NoOpBroker) Subscribe(ctx context.Context, mailbox string) broadcast.Subscriber[Notification] {
	return closedSubscriber(ctx)
}

func (NoOpBroker) Publish(ctx context.Context, n Notification) error { return nil }

func (NoOpBroker) Close() error { return nil }
