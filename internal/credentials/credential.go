package credentials

import (
	"context"
	"errors"
)

const (
	KeyAccess  = "access"
	KeyRefresh = "refresh"
)

var ErrClosed = errors.New("credential store closed")

// Credential is the bearer token pair issued by the conference hub API.
type Credential struct {
	Access  string `json:"access"`
	Refresh string `json:"refresh,omitempty"`
}

func (c Credential) Empty() bool {
	return c.Access == ""
}

// Store persists a single credential slot.
// Load returns an empty credential and no error when nothing is persisted.
// Save fully overwrites the slot: an empty Refresh clears a stored refresh token.
type Store interface {
	Load(ctx context.Context) (Credential, error)
	Save(ctx context.Context, cred Credential) error
	Clear(ctx context.Context) error
	Close() error
}
