package notifications

import (
	"context"
	"sync"
)

// MemoryStorage is an in-memory Storage implementation. Mailboxes live for
// the lifetime of the process; there is no retention policy.
type MemoryStorage struct {
	mailboxes map[string][]Notification // mailbox key -> creation order
	mu        sync.RWMutex
}

// NewMemoryStorage creates an empty in-memory notification store.
func NewMemoryStorage() *MemoryStorage {
	return &MemoryStorage{
		mailboxes: make(map[string][]Notification),
	}
}

func (s *MemoryStorage) Append(ctx context.Context, n Notification) error {
	if n.ID == "" {
		return ErrMissingID
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	key := n.Mailbox()
	s.mailboxes[key] = append(s.mailboxes[key], n)
	return nil
}

func (s *MemoryStorage) Snapshot(ctx context.Context, mailbox string) ([]Notification, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	records := s.mailboxes[mailbox]
	out := make([]Notification, len(records))
	for i, n := range records {
		// Reverse to newest-first; copying under the lock guarantees no
		// torn reads of the Read flag.
		out[len(records)-1-i] = n
	}
	return out, nil
}

func (s *MemoryStorage) MarkRead(ctx context.Context, mailbox, id string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	records := s.mailboxes[mailbox]
	for i := range records {
		if records[i].ID == id {
			records[i].Read = true
			return true, nil
		}
	}
	return false, nil
}

func (s *MemoryStorage) MarkAllRead(ctx context.Context, mailbox string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	records := s.mailboxes[mailbox]
	for i := range records {
		records[i].Read = true
	}
	return nil
}

func (s *MemoryStorage) CountUnread(ctx context.Context, mailbox string) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	count := 0
	for _, n := range s.mailboxes[mailbox] {
		if !n.Read {
			count++
		}
	}
	return count, nil
}
