package logging

import (
	"context"

	"github.com/google/uuid"
)

type contextKey struct{}

// ContextWithRequestID returns ctx carrying id. Records logged with that
// context get a request_id field.
func ContextWithRequestID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, contextKey{}, id)
}

// RequestIDFromContext returns the request id of ctx, or "".
func RequestIDFromContext(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	id, _ := ctx.Value(contextKey{}).(string)
	return id
}

// NewRequestID generates a request id.
func NewRequestID() string {
	return uuid.NewString()
}
