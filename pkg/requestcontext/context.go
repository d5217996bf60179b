// Package requestcontext carries request-scoped values through context so the
// reconciler and its stores never import net/http.
package requestcontext

import (
	"context"
	"time"
)

type (
	requestIDKey   struct{}
	requestTimeKey struct{}
)

// WithRequestID stores the correlation id for the request.
func WithRequestID(ctx context.Context, requestID string) context.Context {
	return context.WithValue(ctx, requestIDKey{}, requestID)
}

// RequestID returns the correlation id, or "" outside a request.
func RequestID(ctx context.Context) string {
	id, _ := ctx.Value(requestIDKey{}).(string)
	return id
}

// WithTime pins the request clock. Every contact written during one
// reconciliation shares this timestamp.
func WithTime(ctx context.Context, t time.Time) context.Context {
	return context.WithValue(ctx, requestTimeKey{}, t)
}

// Now returns the pinned request time, or the wall clock for background work.
func Now(ctx context.Context) time.Time {
	if t, ok := ctx.Value(requestTimeKey{}).(time.Time); ok {
		return t
	}
	return time.Now()
}

// LogAttrs returns the slog key/value pairs identifying the request, followed
// by extra.
func LogAttrs(ctx context.Context, extra ...any) []any {
	attrs := make([]any, 0, 2+len(extra))
	if id := RequestID(ctx); id != "" {
		attrs = append(attrs, "request_id", id)
	}
	return append(attrs, extra...)
}
