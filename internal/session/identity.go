package session

import (
	"context"

	"github.com/2beens/confhub/internal/credentials"
	"github.com/2beens/confhub/internal/hubapi"
)

//go:generate mockgen -source=$GOFILE -destination=identity_mocks_test.go -package=session

type identityAPI interface {
	CurrentUser(ctx context.Context) (*hubapi.User, error)
	RefreshToken(ctx context.Context, refresh string) (credentials.Credential, error)
}
