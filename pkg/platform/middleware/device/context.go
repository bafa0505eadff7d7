// Package device carries the parsed device label through the request
// context. Audit events attach it to reviewer actions so a compliance
// reviewer can see what device performed an action.
package device

import "context"

type contextKeyDeviceLabel struct{}

// GetDeviceLabel retrieves the parsed user-agent summary (e.g. "Chrome on
// macOS") from the context.
func GetDeviceLabel(ctx context.Context) string {
	if label, ok := ctx.Value(contextKeyDeviceLabel{}).(string); ok {
		return label
	}
	return ""
}

// WithDeviceLabel injects a parsed user-agent summary into a context.
// Useful for service unit tests that don't run the full HTTP middleware chain.
func WithDeviceLabel(ctx context.Context, label string) context.Context {
	return context.WithValue(ctx, contextKeyDeviceLabel{}, label)
}
