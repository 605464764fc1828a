// Package auth turns the configured access token into the identity the
// change feed subscribes for.
package auth

import (
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"

	apperrors "github.com/lingoloop/notifier/internal/errors"
)

// Identity is the authenticated user. A nil *Identity means signed out.
type Identity struct {
	UserID      string
	Email       string
	AccessToken string
	ExpiresAt   time.Time
}

// Claims are the fields read from a hosted-auth access token
type Claims struct {
	Email string `json:"email"`
	Role  string `json:"role"`
	jwt.RegisteredClaims
}

// IdentityFromToken reads the subject of token. The signature is not
// checked here; the backend checks it on every request.
func IdentityFromToken(token string) (*Identity, error) {
	token = strings.TrimSpace(strings.TrimPrefix(token, "Bearer "))
	if token == "" {
		return nil, nil
	}

	var claims Claims
	if _, _, err := jwt.NewParser().ParseUnverified(token, &claims); err != nil {
		return nil, apperrors.Unauthorized("malformed access token").WithCause(err)
	}
	if claims.Subject == "" {
		return nil, apperrors.Unauthorized("access token has no subject")
	}

	id := &Identity{
		UserID:      claims.Subject,
		Email:       claims.Email,
		AccessToken: token,
	}
	if claims.ExpiresAt != nil {
		id.ExpiresAt = claims.ExpiresAt.Time
	}
	return id, nil
}

// Expired reports whether the token expiry has passed at now
func (i *Identity) Expired(now time.Time) bool {
	return i != nil && !i.ExpiresAt.IsZero() && now.After(i.ExpiresAt)
}

// Same reports whether two identities refer to the same user
func Same(a, b *Identity) bool {
	if a == nil || b == nil {
		return a == b
	}
	return a.UserID == b.UserID
}
