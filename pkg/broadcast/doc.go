// Package broadcast provides type-safe fan-out of values to any number of
// concurrent subscribers.
//
// Every subscriber owns an independent buffered queue, so a slow or stalled
// consumer never blocks the publisher or its sibling subscribers. When a
// subscriber's queue is full the value is dropped for that subscriber and the
// subscriber is evicted; durable delivery is the job of the storage layer,
// not the broadcast plane.
//
// Usage:
//
//	b := broadcast.NewMemoryBroadcaster[string](16)
//	defer b.Close()
//
//	sub := b.Subscribe(ctx)
//	defer sub.Close()
//
//	_ = b.Broadcast(ctx, "hello")
//	msg := <-sub.Receive()
package broadcast
