package context

import (
	"context"

	"github.com/oklog/ulid/v2"
)

type contextKey string

const (
	requestIDKey     contextKey = "observability_request_id"
	correlationIDKey contextKey = "observability_correlation_id"
)

func WithRequestID(ctx context.Context, requestID string) context.Context {
	if ctx == nil || requestID == "" {
		return ctx
	}
	return context.WithValue(ctx, requestIDKey, requestID)
}

func RequestIDFromContext(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	value, _ := ctx.Value(requestIDKey).(string)
	return value
}

func WithCorrelationID(ctx context.Context, id string) context.Context {
	if ctx == nil || id == "" {
		return ctx
	}
	return context.WithValue(ctx, correlationIDKey, id)
}

func CorrelationIDFromContext(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	value, _ := ctx.Value(correlationIDKey).(string)
	return value
}

// EnsureCorrelationID guarantees a correlation ID on the context, generating a ULID when missing.
func EnsureCorrelationID(ctx context.Context) (context.Context, string) {
	cid := CorrelationIDFromContext(ctx)
	if cid == "" {
		cid = ulid.Make().String()
	}
	return WithCorrelationID(ctx, cid), cid
}
