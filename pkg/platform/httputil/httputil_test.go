package httputil

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	dErrors "provenance/pkg/domain-errors"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func decodeEnvelope(t *testing.T, w *httptest.ResponseRecorder) map[string]string {
	t.Helper()
	var body map[string]string
	require.NoError(t, json.NewDecoder(w.Body).Decode(&body))
	return body
}

func TestWriteJSON(t *testing.T) {
	w := httptest.NewRecorder()
	WriteJSON(w, http.StatusCreated, map[string]string{"run_id": "abc"})

	assert.Equal(t, http.StatusCreated, w.Code)
	assert.Equal(t, "application/json", w.Header().Get("Content-Type"))
	assert.JSONEq(t, `{"run_id":"abc"}`, w.Body.String())
}

func TestWriteError_StatusMapping(t *testing.T) {
	tests := []struct {
		code   dErrors.Code
		status int
	}{
		{dErrors.CodeBadRequest, http.StatusBadRequest},
		{dErrors.CodeUnauthorized, http.StatusUnauthorized},
		{dErrors.CodeNotFound, http.StatusNotFound},
		{dErrors.CodeConflict, http.StatusConflict},
		{dErrors.CodeTimeout, http.StatusGatewayTimeout},
		{dErrors.Code("code_from_the_future"), http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(string(tt.code), func(t *testing.T) {
			w := httptest.NewRecorder()
			WriteError(w, dErrors.New(tt.code, "boom"))
			assert.Equal(t, tt.status, w.Code)
		})
	}
}

func TestWriteError_DescriptionPolicy(t *testing.T) {
	t.Run("4xx carries the message", func(t *testing.T) {
		w := httptest.NewRecorder()
		WriteError(w, dErrors.New(dErrors.CodeBadRequest, "client_name is required"))

		body := decodeEnvelope(t, w)
		assert.Equal(t, "bad_request", body["error"])
		assert.Equal(t, "client_name is required", body["error_description"])
	})

	t.Run("5xx suppresses the message", func(t *testing.T) {
		w := httptest.NewRecorder()
		WriteError(w, dErrors.New(dErrors.CodeInternal, "pq: connection refused"))

		body := decodeEnvelope(t, w)
		assert.Equal(t, "internal_error", body["error"])
		assert.NotContains(t, body, "error_description")
	})

	t.Run("uncoded errors become internal", func(t *testing.T) {
		w := httptest.NewRecorder()
		WriteError(w, errors.New("raw failure"))

		assert.Equal(t, http.StatusInternalServerError, w.Code)
		body := decodeEnvelope(t, w)
		assert.Equal(t, "internal_error", body["error"])
		assert.NotContains(t, body, "error_description")
	})
}

type stubRequest struct {
	ClientName string `json:"client_name"`
}

func (r *stubRequest) Validate() error {
	if r.ClientName == "" {
		return dErrors.New(dErrors.CodeBadRequest, "client_name is required")
	}
	return nil
}

func TestDecodeAndPrepare(t *testing.T) {
	post := func(body string) (*httptest.ResponseRecorder, *http.Request) {
		w := httptest.NewRecorder()
		r := httptest.NewRequest(http.MethodPost, "/v1/runs", strings.NewReader(body))
		return w, r
	}

	t.Run("valid body decodes", func(t *testing.T) {
		w, r := post(`{"client_name":"Jane Smith"}`)

		req, ok := DecodeAndPrepare[stubRequest](w, r, discardLogger(), r.Context(), "req-1")

		require.True(t, ok)
		assert.Equal(t, "Jane Smith", req.ClientName)
	})

	t.Run("malformed JSON is a bad request", func(t *testing.T) {
		w, r := post(`{"client_name":`)

		_, ok := DecodeAndPrepare[stubRequest](w, r, discardLogger(), r.Context(), "req-2")

		require.False(t, ok)
		assert.Equal(t, http.StatusBadRequest, w.Code)
		assert.Equal(t, "invalid request body", decodeEnvelope(t, w)["error_description"])
	})

	t.Run("oversized body is rejected", func(t *testing.T) {
		w, r := post(`{"client_name":"` + strings.Repeat("a", maxRequestBody) + `"}`)

		_, ok := DecodeAndPrepare[stubRequest](w, r, discardLogger(), r.Context(), "req-3")

		require.False(t, ok)
		assert.Equal(t, http.StatusBadRequest, w.Code)
		assert.Equal(t, "request body too large", decodeEnvelope(t, w)["error_description"])
	})

	t.Run("validation failure writes the domain error", func(t *testing.T) {
		w, r := post(`{}`)

		_, ok := DecodeAndPrepare[stubRequest](w, r, discardLogger(), r.Context(), "req-4")

		require.False(t, ok)
		assert.Equal(t, http.StatusBadRequest, w.Code)
		assert.Equal(t, "client_name is required", decodeEnvelope(t, w)["error_description"])
	})
}
