package credentials

import (
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// Description is a diagnostic view of a credential. It is never used for access decisions.
type Description struct {
	Present    bool
	Opaque     bool
	Subject    string
	ExpiresAt  time.Time
	HasRefresh bool
}

func (d Description) Expired(now time.Time) bool {
	return !d.ExpiresAt.IsZero() && now.After(d.ExpiresAt)
}

func (d Description) String() string {
	if !d.Present {
		return "no credential stored"
	}

	var sb strings.Builder
	if d.Opaque {
		sb.WriteString("access token: opaque, subject unknown")
	} else {
		subject := d.Subject
		if subject == "" {
			subject = "unknown"
		}
		sb.WriteString(fmt.Sprintf("access token: subject %s", subject))
		if d.ExpiresAt.IsZero() {
			sb.WriteString(", no expiry")
		} else {
			state := "valid until"
			if d.Expired(time.Now()) {
				state = "expired at"
			}
			sb.WriteString(fmt.Sprintf(", %s %s", state, d.ExpiresAt.UTC().Format(time.RFC3339)))
		}
	}
	if d.HasRefresh {
		sb.WriteString("; refresh token stored")
	} else {
		sb.WriteString("; no refresh token")
	}
	return sb.String()
}

// Describe decodes the access token claims without verifying the signature.
func Describe(cred Credential) Description {
	d := Description{
		Present:    !cred.Empty(),
		HasRefresh: cred.Refresh != "",
	}
	if !d.Present {
		return d
	}

	claims := jwt.MapClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(cred.Access, claims); err != nil {
		d.Opaque = true
		return d
	}

	if sub, err := claims.GetSubject(); err == nil && sub != "" {
		d.Subject = sub
	} else if userID, ok := claims["user_id"]; ok {
		d.Subject = fmt.Sprint(userID)
	}
	if exp, err := claims.GetExpirationTime(); err == nil && exp != nil {
		d.ExpiresAt = exp.Time
	}

	return d
}
