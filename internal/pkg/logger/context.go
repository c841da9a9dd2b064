// internal/pkg/logger/context.go
package logger

import (
	"context"
	"log/slog"
)

type ctxKey int

const (
	requestIDKey ctxKey = iota
	actorKey
	attrsKey
)

// WithAttrs attaches attributes that every record logged with the returned
// context will carry. Later calls append to what ctx already holds.
func WithAttrs(ctx context.Context, attrs ...slog.Attr) context.Context {
	prev := attrsFrom(ctx)
	merged := make([]slog.Attr, 0, len(prev)+len(attrs))
	merged = append(append(merged, prev...), attrs...)
	return context.WithValue(ctx, attrsKey, merged)
}

func attrsFrom(ctx context.Context) []slog.Attr {
	attrs, _ := ctx.Value(attrsKey).([]slog.Attr)
	return attrs
}

// WithRequestID stores the request or task id and logs it as request_id
func WithRequestID(ctx context.Context, id string) context.Context {
	ctx = context.WithValue(ctx, requestIDKey, id)
	return WithAttrs(ctx, slog.String("request_id", id))
}

// RequestIDFromContext returns the request id, or ""
func RequestIDFromContext(ctx context.Context) string {
	v, _ := ctx.Value(requestIDKey).(string)
	return v
}

// WithActor stores the acting operator and logs it as actor_id
func WithActor(ctx context.Context, actorID string) context.Context {
	ctx = context.WithValue(ctx, actorKey, actorID)
	return WithAttrs(ctx, slog.String("actor_id", actorID))
}

// ActorFromContext returns the acting operator, or ""
func ActorFromContext(ctx context.Context) string {
	v, _ := ctx.Value(actorKey).(string)
	return v
}
