package httpserver

import (
	"log/slog"
	"time"
)

// Option configures the server.
type Option func(*config)

// WithAddr sets the listen address.
func WithAddr(addr string) Option {
	return func(c *config) { c.addr = addr }
}

// WithLogger sets the logger used by lifecycle hooks.
func WithLogger(log *slog.Logger) Option {
	return func(c *config) { c.logger = log }
}

// WithReadTimeout sets the maximum duration for reading a request.
func WithReadTimeout(d time.Duration) Option {
	return func(c *config) { c.readTimeout = d }
}

// WithWriteTimeout sets the maximum duration for writing a response.
// Leave it zero on servers carrying SSE streams.
func WithWriteTimeout(d time.Duration) Option {
	return func(c *config) { c.writeTimeout = d }
}

// WithIdleTimeout sets the keep-alive idle timeout.
func WithIdleTimeout(d time.Duration) Option {
	return func(c *config) { c.idleTimeout = d }
}

// WithShutdownTimeout bounds how long graceful shutdown may take.
func WithShutdownTimeout(d time.Duration) Option {
	return func(c *config) { c.shutdownTimeout = d }
}

// WithStartHook registers a function invoked just before the server starts
// accepting connections.
func WithStartHook(h func(*slog.Logger)) Option {
	return func(c *config) { c.startHooks = append(c.startHooks, h) }
}

// WithStopHook registers a function invoked after the server has stopped.
func WithStopHook(h func(*slog.Logger)) Option {
	return func(c *config) { c.stopHooks = append(c.stopHooks, h) }
}
