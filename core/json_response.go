package core

import (
	"encoding/json"
	"errors"
	"net/http"
)

// JSONResponse is the standard JSON response structure.
type JSONResponse struct {
	Code    string       `json:"code,omitempty"`
	Message string       `json:"message,omitempty"`
	Data    any          `json:"data,omitempty"`
	Error   *ErrorDetail `json:"error,omitempty"`
}

// ErrorDetail contains error information.
type ErrorDetail struct {
	Code    string `json:"code,omitempty"`
	Message string `json:"message,omitempty"`
}

type jsonResponse struct {
	status int
	body   any
}

func (j jsonResponse) Render(w http.ResponseWriter, r *http.Request) error {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(j.status)
	return json.NewEncoder(w).Encode(j.body)
}

// JSON creates a 200 response whose body is data encoded as-is.
func JSON(data any) Response {
	return jsonResponse{status: http.StatusOK, body: data}
}

// JSONStatus creates a response with an explicit status code.
func JSONStatus(status int, data any) Response {
	return jsonResponse{status: status, body: data}
}

// OK creates an empty success envelope, used by operations whose only result
// is that they happened.
func OK() Response {
	return jsonResponse{status: http.StatusOK, body: JSONResponse{Code: "ok"}}
}

// JSONError creates a JSON error response. HTTPError values keep their
// status code; anything else is an internal server error.
func JSONError(err error) Response {
	status := http.StatusInternalServerError
	code := "internal_error"

	var httpErr HTTPError
	if errors.As(err, &httpErr) {
		status = httpErr.Code
		code = httpErr.Key
	}

	return jsonResponse{
		status: status,
		body: JSONResponse{
			Code: code,
			Error: &ErrorDetail{
				Code:    code,
				Message: http.StatusText(status),
			},
		},
	}
}
