package handler

import (
	"bytes"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"provenance/internal/reviewer"
	"provenance/internal/reviewer/handler/mocks"
	dErrors "provenance/pkg/domain-errors"
)

//go:generate mockgen -source=handler.go -destination=mocks/mocks.go -package=mocks Service

// Justification for unit tests: login is the only unauthenticated endpoint,
// so its validation and error envelope are the first thing an attacker
// probes. These tests pin that failures stay uniform and that internal
// errors never leak a description.

func newTestRouter(t *testing.T) (http.Handler, *mocks.MockService) {
	t.Helper()
	ctrl := gomock.NewController(t)
	t.Cleanup(ctrl.Finish)
	mockService := mocks.NewMockService(ctrl)
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	h := New(mockService, logger)
	r := chi.NewRouter()
	h.Register(r)
	return r, mockService
}

func doLogin(t *testing.T, router http.Handler, payload any) *httptest.ResponseRecorder {
	t.Helper()
	raw, err := json.Marshal(payload)
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodPost, "/reviewer/login", bytes.NewReader(raw))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

func decodeError(t *testing.T, rec *httptest.ResponseRecorder) map[string]string {
	t.Helper()
	var resp map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	return resp
}

func TestHandleLogin(t *testing.T) {
	t.Run("valid credentials return an access token", func(t *testing.T) {
		router, mockService := newTestRouter(t)

		mockService.EXPECT().
			Login(gomock.Any(), "jane.reviewer@example.com", "s3cret-passphrase").
			Return(&reviewer.LoginResult{AccessToken: "signed-token", TokenType: "Bearer", ExpiresIn: 3600}, nil)

		rec := doLogin(t, router, map[string]any{
			"email":    "jane.reviewer@example.com",
			"password": "s3cret-passphrase",
		})

		require.Equal(t, http.StatusOK, rec.Code)
		assert.JSONEq(t, `{"access_token":"signed-token","token_type":"Bearer","expires_in":3600}`, rec.Body.String())
	})

	t.Run("rejected credentials return a uniform 401", func(t *testing.T) {
		router, mockService := newTestRouter(t)

		mockService.EXPECT().
			Login(gomock.Any(), "jane.reviewer@example.com", "wrong").
			Return(nil, dErrors.New(dErrors.CodeUnauthorized, "invalid email or password"))

		rec := doLogin(t, router, map[string]any{
			"email":    "jane.reviewer@example.com",
			"password": "wrong",
		})

		require.Equal(t, http.StatusUnauthorized, rec.Code)
		resp := decodeError(t, rec)
		assert.Equal(t, "unauthorized", resp["error"])
		assert.Equal(t, "invalid email or password", resp["error_description"])
	})

	t.Run("missing email rejected", func(t *testing.T) {
		router, _ := newTestRouter(t)

		rec := doLogin(t, router, map[string]any{"password": "s3cret"})

		require.Equal(t, http.StatusBadRequest, rec.Code)
		assert.Contains(t, decodeError(t, rec)["error_description"], "email is required")
	})

	t.Run("malformed email rejected", func(t *testing.T) {
		router, _ := newTestRouter(t)

		rec := doLogin(t, router, map[string]any{"email": "not-an-address", "password": "s3cret"})

		require.Equal(t, http.StatusBadRequest, rec.Code)
		assert.Contains(t, decodeError(t, rec)["error_description"], "not a valid address")
	})

	t.Run("missing password rejected", func(t *testing.T) {
		router, _ := newTestRouter(t)

		rec := doLogin(t, router, map[string]any{"email": "jane.reviewer@example.com"})

		require.Equal(t, http.StatusBadRequest, rec.Code)
		assert.Contains(t, decodeError(t, rec)["error_description"], "password is required")
	})

	t.Run("oversized password rejected before the credential check", func(t *testing.T) {
		router, _ := newTestRouter(t)

		rec := doLogin(t, router, map[string]any{
			"email":    "jane.reviewer@example.com",
			"password": strings.Repeat("x", maxPasswordLength+1),
		})

		require.Equal(t, http.StatusBadRequest, rec.Code)
		assert.Contains(t, decodeError(t, rec)["error_description"], "at most 72 bytes")
	})

	t.Run("malformed body rejected", func(t *testing.T) {
		router, _ := newTestRouter(t)

		req := httptest.NewRequest(http.MethodPost, "/reviewer/login", strings.NewReader("{not json"))
		req.Header.Set("Content-Type", "application/json")
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, req)

		require.Equal(t, http.StatusBadRequest, rec.Code)
		assert.Equal(t, "bad_request", decodeError(t, rec)["error"])
	})

	t.Run("internal failures omit the description", func(t *testing.T) {
		router, mockService := newTestRouter(t)

		mockService.EXPECT().
			Login(gomock.Any(), gomock.Any(), gomock.Any()).
			Return(nil, dErrors.New(dErrors.CodeInternal, "could not load reviewer account"))

		rec := doLogin(t, router, map[string]any{
			"email":    "jane.reviewer@example.com",
			"password": "s3cret",
		})

		require.Equal(t, http.StatusInternalServerError, rec.Code)
		resp := decodeError(t, rec)
		assert.Equal(t, "internal_error", resp["error"])
		assert.Empty(t, resp["error_description"])
	})
}
