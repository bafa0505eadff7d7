// Package requesttime pins one timestamp per HTTP request. Everything the
// request touches reads requestcontext.Now and sees the same instant:
// intake timestamps, review receipt times, and the identity agent's
// document expiry comparison.
package requesttime

import (
	"net/http"
	"time"

	"provenance/pkg/requestcontext"
)

// Middleware stores the request arrival time in the context.
func Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := requestcontext.WithTime(r.Context(), time.Now())
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}
