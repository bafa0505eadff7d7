// Package requestcontext carries request-scoped values between middleware
// and services without either side importing net/http. Middleware writes,
// domain code reads, and every accessor degrades to a zero value when the
// chain did not run, so services stay testable with a bare
// context.Background().
package requestcontext

import (
	"context"
	"time"

	id "provenance/pkg/domain"
)

type (
	reviewerIDKey      struct{}
	clientIPKey        struct{}
	userAgentKey       struct{}
	requestIDKey       struct{}
	requestTimeKey     struct{}
	apiVersionKey      struct{}
	tokenAPIVersionKey struct{}
)

// ReviewerID returns the authenticated reviewer, or the nil ID when the
// request is unauthenticated.
func ReviewerID(ctx context.Context) id.ReviewerID {
	v, _ := ctx.Value(reviewerIDKey{}).(id.ReviewerID)
	return v
}

func WithReviewerID(ctx context.Context, reviewerID id.ReviewerID) context.Context {
	return context.WithValue(ctx, reviewerIDKey{}, reviewerID)
}

// ClientIP returns the caller address captured by the metadata middleware.
func ClientIP(ctx context.Context) string {
	v, _ := ctx.Value(clientIPKey{}).(string)
	return v
}

// UserAgent returns the raw User-Agent header.
func UserAgent(ctx context.Context) string {
	v, _ := ctx.Value(userAgentKey{}).(string)
	return v
}

// WithClientMetadata stores the caller address and user agent. Service tests
// that skip the middleware chain inject them here.
func WithClientMetadata(ctx context.Context, clientIP, userAgent string) context.Context {
	ctx = context.WithValue(ctx, clientIPKey{}, clientIP)
	return context.WithValue(ctx, userAgentKey{}, userAgent)
}

// RequestID returns the correlation ID, empty outside an HTTP request.
func RequestID(ctx context.Context) string {
	v, _ := ctx.Value(requestIDKey{}).(string)
	return v
}

func WithRequestID(ctx context.Context, requestID string) context.Context {
	return context.WithValue(ctx, requestIDKey{}, requestID)
}

// Now returns the pinned request time, falling back to the wall clock for
// workers and tests that never pinned one. Code comparing timestamps within
// one request must read the clock here so every comparison sees the same
// instant.
func Now(ctx context.Context) time.Time {
	if t, ok := ctx.Value(requestTimeKey{}).(time.Time); ok {
		return t
	}
	return time.Now()
}

// WithTime pins the clock. The request-time middleware pins it per request;
// the run engine pins it per step so every record mutation in the step
// carries the same time.
func WithTime(ctx context.Context, t time.Time) context.Context {
	return context.WithValue(ctx, requestTimeKey{}, t)
}

// APIVersion returns the version of the mounted route, set by the version
// middleware on each versioned subrouter.
func APIVersion(ctx context.Context) id.APIVersion {
	v, _ := ctx.Value(apiVersionKey{}).(id.APIVersion)
	return v
}

func WithAPIVersion(ctx context.Context, v id.APIVersion) context.Context {
	return context.WithValue(ctx, apiVersionKey{}, v)
}

// TokenAPIVersion returns the version claim minted into the bearer token,
// empty when the token predates version claims.
func TokenAPIVersion(ctx context.Context) id.APIVersion {
	v, _ := ctx.Value(tokenAPIVersionKey{}).(id.APIVersion)
	return v
}

func WithTokenAPIVersion(ctx context.Context, v id.APIVersion) context.Context {
	return context.WithValue(ctx, tokenAPIVersionKey{}, v)
}
