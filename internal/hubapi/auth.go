package hubapi

import (
	"context"
	"fmt"
	"net/http"

	"github.com/2beens/confhub/internal/credentials"
)

type tokenPair struct {
	Access  string `json:"access"`
	Refresh string `json:"refresh"`
}

// ObtainToken exchanges username and password for a token pair.
func (c *Client) ObtainToken(ctx context.Context, username, password string) (credentials.Credential, error) {
	var pair tokenPair
	err := c.do(WithoutAuth(ctx), http.MethodPost, "/token/", map[string]string{
		"username": username,
		"password": password,
	}, &pair)
	if err != nil {
		return credentials.Credential{}, fmt.Errorf("obtain token: %w", err)
	}
	if pair.Access == "" {
		return credentials.Credential{}, fmt.Errorf("obtain token: %w: no access token", ErrMalformedResponse)
	}
	return credentials.Credential{Access: pair.Access, Refresh: pair.Refresh}, nil
}

// RefreshToken trades a refresh token for a new access token. The returned
// refresh token is empty when the api does not rotate it.
func (c *Client) RefreshToken(ctx context.Context, refresh string) (credentials.Credential, error) {
	var pair tokenPair
	err := c.do(WithoutAuth(ctx), http.MethodPost, "/token/refresh/", map[string]string{
		"refresh": refresh,
	}, &pair)
	if err != nil {
		return credentials.Credential{}, fmt.Errorf("refresh token: %w", err)
	}
	if pair.Access == "" {
		return credentials.Credential{}, fmt.Errorf("refresh token: %w: no access token", ErrMalformedResponse)
	}
	return credentials.Credential{Access: pair.Access, Refresh: pair.Refresh}, nil
}

func (c *Client) Register(ctx context.Context, req RegisterRequest) (*User, error) {
	var user User
	if err := c.do(WithoutAuth(ctx), http.MethodPost, "/register/", req, &user); err != nil {
		return nil, fmt.Errorf("register: %w", err)
	}
	return &user, nil
}

// CurrentUser is the identity lookup: it resolves the stored bearer credential to a user.
func (c *Client) CurrentUser(ctx context.Context) (*User, error) {
	var user User
	if err := c.do(ctx, http.MethodGet, "/current_user/", nil, &user); err != nil {
		return nil, fmt.Errorf("current user: %w", err)
	}
	if err := user.validate(); err != nil {
		return nil, fmt.Errorf("current user: %w", err)
	}
	return &user, nil
}
