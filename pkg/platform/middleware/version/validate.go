package version

import (
	"log/slog"
	"net/http"

	id "provenance/pkg/domain"
	dErrors "provenance/pkg/domain-errors"
	"provenance/pkg/platform/httputil"
	"provenance/pkg/requestcontext"
)

// ValidateTokenVersion rejects tokens minted for a newer API version than
// the route serves. Old tokens stay valid across an API upgrade, but a
// token issued for v2 cannot be replayed against v1 endpoints. Tokens
// without a version claim predate versioned minting and count as v1.
//
// Runs after ExtractVersion and RequireReviewer; both versions come from
// the request context.
func ValidateTokenVersion(logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()

			routeVersion := requestcontext.APIVersion(ctx)
			if routeVersion.IsNil() {
				logger.ErrorContext(ctx, "route version missing from context, ExtractVersion not mounted",
					"request_id", requestcontext.RequestID(ctx),
				)
				httputil.WriteError(w, dErrors.New(dErrors.CodeInternal, "route version not configured"))
				return
			}

			tokenVersion := requestcontext.TokenAPIVersion(ctx)
			if tokenVersion.IsNil() {
				tokenVersion = id.APIVersionV1
			}

			if !routeVersion.IsAtLeast(tokenVersion) {
				logger.WarnContext(ctx, "rejected token minted for a newer API version",
					"route_version", routeVersion.String(),
					"token_version", tokenVersion.String(),
					"reviewer_id", requestcontext.ReviewerID(ctx).String(),
					"request_id", requestcontext.RequestID(ctx),
				)
				httputil.WriteError(w, dErrors.New(dErrors.CodeForbidden, "token API version not valid for this endpoint"))
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}
