// Package notifications implements the real-time notification delivery core:
// a durable(-ish) per-recipient mailbox log, a fan-out delivery broker, and
// the service that ties creation, read-state changes and streaming together.
//
// # Architecture
//
// Application code raises a notification through Service.Create, which
// appends the record to a Storage mailbox and then publishes it to the
// Broker. Each open stream connection holds one Broker subscription; a
// publish is fanned out to every live subscription for the recipient
// independently, so two open tabs both see every event and a stalled
// consumer never blocks the producer.
//
// Mailboxes are keyed by recipient. The empty user ID maps to the broadcast
// mailbox, whose notifications are merged into every recipient's live
// stream.
//
// # Storage and broker implementations
//
// MemoryStorage and MemoryBroker keep everything in process memory and are
// the default single-node deployment. PostgresStorage persists mailboxes in
// PostgreSQL behind the same Storage interface, and RedisBroker routes
// publishes through Redis pub/sub so several processes share one delivery
// plane. The service is oblivious to which pair is plugged in.
package notifications
