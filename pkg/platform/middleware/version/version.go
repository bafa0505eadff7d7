// Package version provides the middleware pair enforcing API version
// compatibility between routes and reviewer tokens.
package version

import (
	"net/http"

	id "provenance/pkg/domain"
	"provenance/pkg/requestcontext"
)

// ExtractVersion stamps the route group's API version into the request
// context. Chi has already matched the version prefix by the time this
// runs, so the version is a property of the mount, not of the request.
//
//	r.Route("/v1", func(v1 chi.Router) {
//	    v1.Use(version.ExtractVersion(id.APIVersionV1))
//	    // ...
//	})
func ExtractVersion(version id.APIVersion) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := requestcontext.WithAPIVersion(r.Context(), version)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
