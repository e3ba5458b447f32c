// Package requestcontext provides HTTP-independent context accessors for request-scoped values.
//
// Values are set by middleware and consumed by services. Keeping this package
// free of net/http means services never pull in transport code just to read
// the request time or the acting operator.
//
// The operator id is carried here deliberately: every mutation takes the
// already-authenticated operator from the request scope instead of asking some
// shared role singleton who is currently acting.
//
// Usage in services (read values):
//
//	operatorID := requestcontext.OperatorID(ctx)
//	now := requestcontext.Now(ctx)
//
// Usage in tests (inject values):
//
//	ctx = requestcontext.WithTime(ctx, fixedTime)
package requestcontext

import (
	"context"
	"time"

	id "rollcall/pkg/domain"
)

type (
	operatorIDKey  struct{}
	requestIDKey   struct{}
	requestTimeKey struct{}
)

// OperatorID retrieves the authenticated operator id from the context.
// Returns the zero value if not set.
func OperatorID(ctx context.Context) id.OperatorID {
	if opID, ok := ctx.Value(operatorIDKey{}).(id.OperatorID); ok {
		return opID
	}
	return id.OperatorID{}
}

// WithOperatorID injects an operator id into the context.
func WithOperatorID(ctx context.Context, operatorID id.OperatorID) context.Context {
	return context.WithValue(ctx, operatorIDKey{}, operatorID)
}

// RequestID retrieves the request id from the context.
func RequestID(ctx context.Context) string {
	if reqID, ok := ctx.Value(requestIDKey{}).(string); ok {
		return reqID
	}
	return ""
}

// WithRequestID injects a request id into the context.
func WithRequestID(ctx context.Context, requestID string) context.Context {
	return context.WithValue(ctx, requestIDKey{}, requestID)
}

// Now retrieves the request-scoped time from context.
// Falls back to time.Now() for non-HTTP contexts (workers, tests without injection).
func Now(ctx context.Context) time.Time {
	if t, ok := ctx.Value(requestTimeKey{}).(time.Time); ok {
		return t
	}
	return time.Now()
}

// WithTime injects a specific time into a context. All operations within a
// single request observe the same "now", and tests pin timestamps with it.
func WithTime(ctx context.Context, t time.Time) context.Context {
	return context.WithValue(ctx, requestTimeKey{}, t)
}
