// Package core defines the HTTP response envelope shared by all API
// handlers: a Response abstraction, a standard JSON body shape and typed
// HTTP errors.
package core

import "net/http"

// Response renders itself onto an http.ResponseWriter.
type Response interface {
	Render(w http.ResponseWriter, r *http.Request) error
}

// Render writes resp and falls back to a bare 500 when rendering itself
// fails mid-write.
func Render(w http.ResponseWriter, r *http.Request, resp Response) {
	if err := resp.Render(w, r); err != nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
	}
}
