package logger

import "context"

// ctxKey is unexported so no other package can collide with our keys.
type ctxKey struct{}

var requestIDKey = ctxKey{}

// WithRequestID stores the request ID for downstream log records.
func WithRequestID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, requestIDKey, id)
}

// RequestID returns the request ID stored in ctx, or "" when absent.
func RequestID(ctx context.Context) string {
	id, _ := ctx.Value(requestIDKey).(string)
	return id
}
