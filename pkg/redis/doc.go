// Package redis provides the Redis connection helper used by the cross-node
// delivery plane: a retrying Connect plus a readiness probe.
package redis
