package hubapi

import (
	"context"
	"net/http"

	"github.com/2beens/confhub/internal/credentials"

	log "github.com/sirupsen/logrus"
)

type CredentialSource interface {
	Load(ctx context.Context) (credentials.Credential, error)
}

type noAuthKey struct{}

// WithoutAuth marks the request context so the bearer header is not attached.
func WithoutAuth(ctx context.Context) context.Context {
	return context.WithValue(ctx, noAuthKey{}, true)
}

func authSkipped(ctx context.Context) bool {
	skip, _ := ctx.Value(noAuthKey{}).(bool)
	return skip
}

// bearerTransport is the only place the Authorization header is attached.
// The credential slot is read on every request.
type bearerTransport struct {
	next        http.RoundTripper
	credentials CredentialSource
}

func newBearerTransport(next http.RoundTripper, creds CredentialSource) *bearerTransport {
	return &bearerTransport{
		next:        next,
		credentials: creds,
	}
}

func (t *bearerTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	ctx := req.Context()
	if t.credentials == nil || authSkipped(ctx) {
		return t.next.RoundTrip(req)
	}

	cred, err := t.credentials.Load(ctx)
	if err != nil {
		log.Warnf("bearer transport: load credential: %s", err)
		return t.next.RoundTrip(req)
	}
	if cred.Empty() {
		return t.next.RoundTrip(req)
	}

	authReq := req.Clone(ctx)
	authReq.Header.Set("Authorization", "Bearer "+cred.Access)
	return t.next.RoundTrip(authReq)
}
