package notifications

import (
	"encoding/json"
	"time"
)

// BroadcastMailbox is the distinguished mailbox for notifications with no
// specific recipient. Its contents are visible to every connected client.
const BroadcastMailbox = "__broadcast__"

// MailboxKey maps a user ID to its mailbox key. The empty user ID denotes
// the broadcast mailbox.
func MailboxKey(userID string) string {
	if userID == "" {
		return BroadcastMailbox
	}
	return userID
}

// Notification is the core domain model. Records are immutable after
// creation except for the Read flag.
type Notification struct {
	ID        string          `json:"id"`
	UserID    string          `json:"userId,omitempty"` // empty targets the broadcast mailbox
	Title     string          `json:"title"`
	Message   string          `json:"message"`
	Type      string          `json:"type,omitempty"` // opaque classification tag, e.g. "analysis_ready"
	Data      json.RawMessage `json:"data,omitempty"` // opaque payload, best-effort round-trip
	Read      bool            `json:"read"`
	CreatedAt time.Time       `json:"createdAt"`
}

// Mailbox returns the mailbox key this notification belongs to.
func (n *Notification) Mailbox() string {
	return MailboxKey(n.UserID)
}

// UnmarshalData decodes the opaque payload into v. It reports false when no
// payload is present or it cannot be decoded; a malformed payload never
// surfaces as an error.
func (n *Notification) UnmarshalData(v any) bool {
	if len(n.Data) == 0 {
		return false
	}
	return json.Unmarshal(n.Data, v) == nil
}
