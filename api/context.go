package api

import (
	"context"

	"github.com/google/uuid"
)

type contextKey int

const (
	contextKeySession contextKey = iota
	contextKeyRequestID
)

// SetSessionContext returns a new context with the anonymous session id
// attached.
func SetSessionContext(ctx context.Context, sessionID string) context.Context {
	return context.WithValue(ctx, contextKeySession, sessionID)
}

// SessionFromContext extracts the session id from context, or "".
func SessionFromContext(ctx context.Context) string {
	s, _ := ctx.Value(contextKeySession).(string)
	return s
}

// SetRequestID returns a new context with the request ID attached.
func SetRequestID(ctx context.Context, id uuid.UUID) context.Context {
	return context.WithValue(ctx, contextKeyRequestID, id)
}

// RequestIDFromContext extracts the request ID from context.
func RequestIDFromContext(ctx context.Context) uuid.UUID {
	id, _ := ctx.Value(contextKeyRequestID).(uuid.UUID)
	return id
}
