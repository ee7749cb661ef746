package access

import (
	"context"

	"github.com/2beens/confhub/internal/hubapi"
)

type identityKey struct{}

func WithIdentity(ctx context.Context, user *hubapi.User) context.Context {
	return context.WithValue(ctx, identityKey{}, user)
}

func IdentityFromContext(ctx context.Context) (*hubapi.User, bool) {
	user, ok := ctx.Value(identityKey{}).(*hubapi.User)
	return user, ok && user != nil
}
