package domain

import (
	"context"

	"github.com/google/uuid"
)

type userKey struct{}

// WithUser stores the authenticated user id in the context.
func WithUser(ctx context.Context, userID uuid.UUID) context.Context {
	return context.WithValue(ctx, userKey{}, userID)
}

// UserFromContext returns the authenticated user id, or ErrUnauthenticated.
func UserFromContext(ctx context.Context) (uuid.UUID, error) {
	id, ok := ctx.Value(userKey{}).(uuid.UUID)
	if !ok || id == uuid.Nil {
		return uuid.Nil, ErrUnauthenticated
	}
	return id, nil
}
