package notifications

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"

	"github.com/redis/go-redis/v9"

	"github.com/aurahealth/notify/pkg/broadcast"
	"github.com/aurahealth/notify/pkg/logger"
)

// redisChannelPrefix namespaces broker traffic inside a shared Redis.
const redisChannelPrefix = "notify:mailbox:"

// RedisBroker routes publishes through Redis pub/sub so every process in a
// deployment shares one delivery plane. Locally it fans out through a
// MemoryBroker, preserving the per-subscription queue semantics; a publish
// reaches subscribers in all processes, including the publishing one, via
// the Redis round-trip.
type RedisBroker struct {
	rdb    redis.UniversalClient
	local  *MemoryBroker
	pubsub *redis.PubSub
	logger *slog.Logger
	cancel context.CancelFunc
	done   chan struct{}
}

// RedisBrokerOption configures a RedisBroker.
type RedisBrokerOption func(*RedisBroker)

// WithRedisBrokerLogger sets the logger for the RedisBroker.
func WithRedisBrokerLogger(log *slog.Logger) RedisBrokerOption {
	return func(b *RedisBroker) {
		b.logger = log
	}
}

// NewRedisBroker starts a broker backed by Redis pub/sub. It subscribes to
// the broker's channel namespace immediately and keeps relaying messages
// until Close is called.
func NewRedisBroker(ctx context.Context, rdb redis.UniversalClient, bufferSize int, opts ...RedisBrokerOption) (*RedisBroker, error) {
	runCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))

	b := &RedisBroker{
		rdb:    rdb,
		local:  NewMemoryBroker(bufferSize),
		logger: slog.Default(),
		cancel: cancel,
		done:   make(chan struct{}),
	}
	for _, opt := range opts {
		opt(b)
	}

	b.pubsub = rdb.PSubscribe(runCtx, redisChannelPrefix+"*")
	// Fail fast on broken connections instead of silently dropping the
	// delivery plane.
	if _, err := b.pubsub.Receive(ctx); err != nil {
		cancel()
		_ = b.pubsub.Close()
		return nil, fmt.Errorf("subscribe to redis delivery plane: %w", err)
	}

	go b.relay(runCtx)

	return b, nil
}

func (b *RedisBroker) Subscribe(ctx context.Context, mailbox string) broadcast.Subscriber[Notification] {
	return b.local.Subscribe(ctx, mailbox)
}

// Publish serializes the notification onto the mailbox's Redis channel. The
// local fan-out happens when the message comes back through the relay, so
// every process, this one included, delivers it exactly the same way.
func (b *RedisBroker) Publish(ctx context.Context, n Notification) error {
	payload, err := json.Marshal(n)
	if err != nil {
		return fmt.Errorf("encode notification: %w", err)
	}
	if err := b.rdb.Publish(ctx, redisChannelPrefix+n.Mailbox(), payload).Err(); err != nil {
		return fmt.Errorf("publish to redis: %w", err)
	}
	return nil
}

func (b *RedisBroker) Close() error {
	b.cancel()
	err := b.pubsub.Close()
	<-b.done
	if lerr := b.local.Close(); err == nil {
		err = lerr
	}
	return err
}

// relay feeds messages from Redis into the local fan-out until shutdown.
func (b *RedisBroker) relay(ctx context.Context) {
	defer close(b.done)

	ch := b.pubsub.Channel()
	for {
		select {
		case <-ctx.Done():
			return
		case msg, ok := <-ch:
			if !ok {
				return
			}

			var n Notification
			if err := json.Unmarshal([]byte(msg.Payload), &n); err != nil {
				b.logger.LogAttrs(ctx, slog.LevelWarn, "Discarding undecodable notification from delivery plane",
					slog.String("channel", msg.Channel),
					logger.Error(err),
				)
				continue
			}

			// The channel name is authoritative for routing; a broadcast
			// notification has no user ID, so derive the mailbox from the
			// channel rather than the record.
			mailbox := strings.TrimPrefix(msg.Channel, redisChannelPrefix)
			if err := b.publishLocal(ctx, mailbox, n); err != nil {
				b.logger.LogAttrs(ctx, slog.LevelWarn, "Local fan-out failed",
					slog.String("notification_id", n.ID),
					logger.Error(err),
				)
			}
		}
	}
}

func (b *RedisBroker) publishLocal(ctx context.Context, mailbox string, n Notification) error {
	b.local.mu.Lock()
	bc := b.local.broadcasters[mailbox]
	b.local.mu.Unlock()

	if bc == nil {
		return nil
	}
	return bc.Broadcast(ctx, n)
}
