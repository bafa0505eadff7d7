package device

import "net/http"

// Label parses the User-Agent header once per request and stores the result
// in the context. The parse func is injected so this package stays free of
// user-agent library details.
func Label(parse func(string) string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := WithDeviceLabel(r.Context(), parse(r.Header.Get("User-Agent")))
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
