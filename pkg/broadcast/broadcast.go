package broadcast

import (
	"context"
	"sync"
)

// Subscriber is one consumer's independent delivery queue.
// Implementations must be safe for concurrent use.
type Subscriber[T any] interface {
	// Receive returns the channel values are delivered on. The channel is
	// closed when the subscriber is closed; ranging over it is the normal
	// consumption pattern.
	Receive() <-chan T

	// Close unsubscribes and releases the queue. It is idempotent and safe
	// to call after the broadcaster itself has been closed.
	Close() error
}

// Broadcaster delivers each published value to every active subscriber.
type Broadcaster[T any] interface {
	// Subscribe registers a new independent subscriber. The subscription is
	// torn down automatically when ctx is cancelled.
	Subscribe(ctx context.Context) Subscriber[T]

	// Broadcast sends v to all active subscribers without blocking on any
	// of them. Values may be dropped for subscribers whose queues are full.
	Broadcast(ctx context.Context, v T) error

	// Close shuts the broadcaster down and closes every subscriber.
	Close() error
}

type subscriber[T any] struct {
	ch     chan T
	closed bool
	mu     sync.RWMutex
}

func newSubscriber[T any](bufferSize int) *subscriber[T] {
	return &subscriber[T]{ch: make(chan T, bufferSize)}
}

func (s *subscriber[T]) Receive() <-chan T {
	return s.ch
}

func (s *subscriber[T]) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.closed {
		s.closed = true
		close(s.ch)
	}
	return nil
}

// send enqueues v without blocking. It reports false when the subscriber is
// closed or its queue is full, signalling the caller to evict it.
func (s *subscriber[T]) send(v T) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return false
	}

	select {
	case s.ch <- v:
		return true
	default:
		return false
	}
}
