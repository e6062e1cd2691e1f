package notifications

import (
	"context"
	"sync"

	"github.com/aurahealth/notify/pkg/broadcast"
)

// Broker is the live-subscription registry. A publish is delivered to every
// currently-open subscription for the notification's mailbox, each with its
// own queue; a slow subscriber never blocks the producer or its siblings.
type Broker interface {
	// Subscribe opens a new independent subscription on the mailbox. The
	// subscription is released when ctx is cancelled or the returned
	// subscriber is closed.
	Subscribe(ctx context.Context, mailbox string) broadcast.Subscriber[Notification]

	// Publish fans the notification out to all open subscriptions for its
	// mailbox. Publishing to a mailbox with no subscribers is a no-op.
	Publish(ctx context.Context, n Notification) error

	// Close releases all subscriptions.
	Close() error
}

// MemoryBroker is the in-process Broker. It keeps one broadcaster per
// mailbox that has live subscribers and reaps it when the last subscription
// ends, so idle recipients cost nothing.
type MemoryBroker struct {
	broadcasters map[string]*broadcast.MemoryBroadcaster[Notification]
	bufferSize   int
	closed       bool
	mu           sync.Mutex
}

// NewMemoryBroker creates an in-process broker whose subscriptions buffer up
// to bufferSize pending notifications each.
func NewMemoryBroker(bufferSize int) *MemoryBroker {
	return &MemoryBroker{
		broadcasters: make(map[string]*broadcast.MemoryBroadcaster[Notification]),
		bufferSize:   max(bufferSize, 1),
	}
}

func (m *MemoryBroker) Subscribe(ctx context.Context, mailbox string) broadcast.Subscriber[Notification] {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return closedSubscriber(ctx)
	}

	b, ok := m.broadcasters[mailbox]
	if !ok {
		b = broadcast.NewMemoryBroadcaster[Notification](m.bufferSize)
		m.broadcasters[mailbox] = b
	}
	sub := b.Subscribe(ctx)
	m.mu.Unlock()

	if ctx.Done() != nil {
		go func() {
			<-ctx.Done()
			m.reap(mailbox)
		}()
	}

	return sub
}

func (m *MemoryBroker) Publish(ctx context.Context, n Notification) error {
	m.mu.Lock()
	b := m.broadcasters[n.Mailbox()]
	m.mu.Unlock()

	if b == nil {
		return nil
	}
	return b.Broadcast(ctx, n)
}

func (m *MemoryBroker) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return nil
	}
	m.closed = true

	for key, b := range m.broadcasters {
		_ = b.Close()
		delete(m.broadcasters, key)
	}
	return nil
}

// reap drops the mailbox's broadcaster once its last subscription is gone.
func (m *MemoryBroker) reap(mailbox string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return
	}
	if b, ok := m.broadcasters[mailbox]; ok && b.Subscribers() == 0 {
		delete(m.broadcasters, mailbox)
		_ = b.Close()
	}
}

// closedSubscriber returns a subscriber whose receive channel is already
// closed, for subscriptions opened after broker shutdown.
func closedSubscriber(ctx context.Context) broadcast.Subscriber[Notification] {
	b := broadcast.NewMemoryBroadcaster[Notification](1)
	_ = b.Close()
	return b.Subscribe(ctx)
}
