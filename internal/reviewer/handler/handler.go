package handler

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"provenance/internal/reviewer"
	dErrors "provenance/pkg/domain-errors"
	"provenance/pkg/platform/httputil"
	"provenance/pkg/requestcontext"
)

// Service defines the interface for reviewer authentication.
type Service interface {
	Login(ctx context.Context, email, password string) (*reviewer.LoginResult, error)
}

// Handler wires the reviewer login endpoint to the reviewer service.
type Handler struct {
	service Service
	logger  *slog.Logger
}

// New constructs a reviewer handler with its dependencies.
func New(service Service, logger *slog.Logger) *Handler {
	return &Handler{
		service: service,
		logger:  logger,
	}
}

// Register mounts the login endpoint on the router. Login is the one
// reviewer route that takes no token; it is what issues them.
func (h *Handler) Register(r chi.Router) {
	r.Post("/reviewer/login", h.handleLogin)
}

// LoginResponse is the HTTP response for POST /v1/reviewer/login.
type LoginResponse struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
	ExpiresIn   int    `json:"expires_in"`
}

// handleLogin handles POST /v1/reviewer/login. Credential failures all
// surface as the same 401; the service records the real reason on the
// security audit trail.
func (h *Handler) handleLogin(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)

	req, ok := httputil.DecodeAndPrepare[LoginRequest](w, r, h.logger, ctx, requestID)
	if !ok {
		return
	}

	result, err := h.service.Login(ctx, req.Email, req.Password)
	if err != nil {
		// Rejected credentials are logged and audited by the service; only
		// infrastructure failures are worth a handler-level error.
		if dErrors.CodeOf(err) == dErrors.CodeInternal {
			h.logger.ErrorContext(ctx, "login attempt failed",
				"request_id", requestID,
				"error", err,
			)
		}
		httputil.WriteError(w, err)
		return
	}

	httputil.WriteJSON(w, http.StatusOK, LoginResponse{
		AccessToken: result.AccessToken,
		TokenType:   result.TokenType,
		ExpiresIn:   result.ExpiresIn,
	})
}
