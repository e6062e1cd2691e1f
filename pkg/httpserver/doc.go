// Package httpserver wraps net/http.Server with graceful shutdown, signal
// handling and option-based configuration.
//
// Write timeout defaults to zero because the server hosts long-lived SSE
// streams; a non-zero write timeout would sever every stream at the
// deadline.
package httpserver
