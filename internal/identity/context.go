package identity

import (
	"context"
	"errors"
)

// ErrNoIdentity is returned by CurrentUser when the context carries no user.
var ErrNoIdentity = errors.New("no user identity bound to request")

type contextKey string

const userIDKey contextKey = "user_id"

// WithUserID returns a copy of ctx bound to userID.
func WithUserID(ctx context.Context, userID string) context.Context {
	return context.WithValue(ctx, userIDKey, userID)
}

// UserIDFromContext returns the bound user id, if any.
func UserIDFromContext(ctx context.Context) (string, bool) {
	userID, ok := ctx.Value(userIDKey).(string)
	return userID, ok && userID != ""
}

// CurrentUser returns the user bound to ctx or ErrNoIdentity.
func CurrentUser(ctx context.Context) (string, error) {
	userID, ok := UserIDFromContext(ctx)
	if !ok {
		return "", ErrNoIdentity
	}
	return userID, nil
}
