package credentials

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func signed(t *testing.T, claims jwt.MapClaims) string {
	t.Helper()
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte("not-our-secret"))
	require.NoError(t, err)
	return token
}

func TestDescribe(t *testing.T) {
	exp := time.Now().Add(time.Hour).Truncate(time.Second)

	t.Run("empty", func(t *testing.T) {
		d := Describe(Credential{})
		assert.False(t, d.Present)
		assert.Equal(t, "no credential stored", d.String())
	})

	t.Run("opaque", func(t *testing.T) {
		d := Describe(Credential{Access: "opaque-token"})
		assert.True(t, d.Present)
		assert.True(t, d.Opaque)
		assert.Contains(t, d.String(), "subject unknown")
		assert.Contains(t, d.String(), "no refresh token")
	})

	t.Run("jwt with sub", func(t *testing.T) {
		d := Describe(Credential{
			Access:  signed(t, jwt.MapClaims{"sub": "alice", "exp": exp.Unix()}),
			Refresh: "r",
		})
		assert.False(t, d.Opaque)
		assert.Equal(t, "alice", d.Subject)
		assert.True(t, exp.Equal(d.ExpiresAt))
		assert.False(t, d.Expired(time.Now()))
		assert.True(t, d.Expired(exp.Add(time.Second)))
		assert.Contains(t, d.String(), "valid until")
		assert.Contains(t, d.String(), "refresh token stored")
	})

	t.Run("jwt with user_id and expired", func(t *testing.T) {
		d := Describe(Credential{
			Access: signed(t, jwt.MapClaims{"user_id": 7, "exp": time.Now().Add(-time.Hour).Unix()}),
		})
		assert.Equal(t, "7", d.Subject)
		assert.Contains(t, d.String(), "expired at")
	})
}
