package middleware

import (
	"log/slog"
	"net/http"
	"strings"

	id "provenance/pkg/domain"
	dErrors "provenance/pkg/domain-errors"
	"provenance/pkg/platform/httputil"
	"provenance/pkg/requestcontext"
)

// TokenValidator validates reviewer bearer tokens.
type TokenValidator interface {
	ValidateToken(tokenString string) (*TokenClaims, error)
}

// TokenClaims represents the claims the transport consumes from a reviewer token.
type TokenClaims struct {
	ReviewerID id.ReviewerID
	APIVersion id.APIVersion
}

// RequireReviewer rejects requests without a valid reviewer bearer token and
// puts the reviewer ID and token API version into the request context.
func RequireReviewer(validator TokenValidator, logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()

			authHeader := r.Header.Get("Authorization")
			const bearerPrefix = "Bearer "
			token, ok := strings.CutPrefix(authHeader, bearerPrefix)
			if !ok || token == "" {
				logger.WarnContext(ctx, "unauthorized access - missing token",
					"request_id", requestcontext.RequestID(ctx),
				)
				httputil.WriteError(w, dErrors.New(dErrors.CodeUnauthorized, "missing or invalid Authorization header"))
				return
			}

			claims, err := validator.ValidateToken(token)
			if err != nil {
				logger.WarnContext(ctx, "unauthorized access - invalid token",
					"request_id", requestcontext.RequestID(ctx),
					"error", err,
				)
				httputil.WriteError(w, dErrors.New(dErrors.CodeUnauthorized, "invalid or expired token"))
				return
			}

			if claims.ReviewerID.IsNil() {
				logger.WarnContext(ctx, "unauthorized access - token without reviewer id",
					"request_id", requestcontext.RequestID(ctx),
				)
				httputil.WriteError(w, dErrors.New(dErrors.CodeUnauthorized, "invalid or expired token"))
				return
			}

			ctx = requestcontext.WithReviewerID(ctx, claims.ReviewerID)
			ctx = requestcontext.WithTokenAPIVersion(ctx, claims.APIVersion)

			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
