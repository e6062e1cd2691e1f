package core_test

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aurahealth/notify/core"
)

func render(t *testing.T, resp core.Response) *httptest.ResponseRecorder {
	t.Helper()
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	core.Render(rec, req, resp)
	return rec
}

func TestJSON(t *testing.T) {
	t.Parallel()

	rec := render(t, core.JSON(map[string]string{"hello": "world"}))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/json; charset=utf-8", rec.Header().Get("Content-Type"))

	var body map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "world", body["hello"])
}

func TestJSONStatus(t *testing.T) {
	t.Parallel()

	rec := render(t, core.JSONStatus(http.StatusCreated, map[string]string{"id": "n1"}))
	assert.Equal(t, http.StatusCreated, rec.Code)
}

func TestOK(t *testing.T) {
	t.Parallel()

	rec := render(t, core.OK())
	assert.Equal(t, http.StatusOK, rec.Code)

	var body core.JSONResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "ok", body.Code)
}

func TestJSONError(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		err      error
		wantCode int
		wantKey  string
	}{
		{"http error", core.ErrNotFound, http.StatusNotFound, "not_found"},
		{"wrapped http error", fmt.Errorf("lookup: %w", core.ErrUnauthorized), http.StatusUnauthorized, "unauthorized"},
		{"custom http error", core.NewHTTPError(http.StatusTeapot, "teapot"), http.StatusTeapot, "teapot"},
		{"plain error", errors.New("boom"), http.StatusInternalServerError, "internal_error"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			rec := render(t, core.JSONError(tt.err))
			assert.Equal(t, tt.wantCode, rec.Code)

			var body core.JSONResponse
			require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
			assert.Equal(t, tt.wantKey, body.Code)
			require.NotNil(t, body.Error)
			assert.Equal(t, tt.wantKey, body.Error.Code)
		})
	}
}

func TestHTTPError_Error(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "bad_request", core.ErrBadRequest.Error())
	assert.Equal(t, "rate_limited", core.NewHTTPError(http.StatusTooManyRequests, "rate_limited").Error())
}
