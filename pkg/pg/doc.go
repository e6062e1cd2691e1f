// Package pg wraps pgx connection handling for the notification service:
// pool construction with retries, embedded goose migrations and a readiness
// probe.
package pg
