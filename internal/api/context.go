package api

import (
	"context"
)

type contextKey string

const sessionContextKey contextKey = "session_id"

// SessionIDFromContext extracts the authorized session id from context
func SessionIDFromContext(ctx context.Context) string {
	id, _ := ctx.Value(sessionContextKey).(string)
	return id
}

// ContextWithSessionID adds the authorized session id to context
func ContextWithSessionID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, sessionContextKey, id)
}
