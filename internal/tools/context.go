package tools

import (
	"context"

	"github.com/google/uuid"
)

// userIDKey uses an empty struct for a zero-allocation context key.
type userIDKey struct{}

// ContextWithUserID stores the acting user in the context. The request
// handler sets it once per request; tool sub-tasks retrieve it to tag the
// documents and suggestions they create.
func ContextWithUserID(ctx context.Context, id uuid.UUID) context.Context {
	return context.WithValue(ctx, userIDKey{}, id)
}

// UserIDFromContext retrieves the acting user from the context.
func UserIDFromContext(ctx context.Context) (uuid.UUID, bool) {
	id, ok := ctx.Value(userIDKey{}).(uuid.UUID)
	return id, ok
}
