package identity

import "context"

type contextKey struct{}

// WithUserID returns a context carrying the authenticated user ID.
func WithUserID(ctx context.Context, userID string) context.Context {
	return context.WithValue(ctx, contextKey{}, userID)
}

// UserID extracts the authenticated user ID from the context. It returns
// the empty string for anonymous callers, which maps to the broadcast
// mailbox downstream.
func UserID(ctx context.Context) string {
	if id, ok := ctx.Value(contextKey{}).(string); ok {
		return id
	}
	return ""
}

// IsAuthenticated reports whether the context carries a resolved user.
func IsAuthenticated(ctx context.Context) bool {
	return UserID(ctx) != ""
}
