package auth

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func signedToken(t *testing.T, claims Claims) string {
	t.Helper()
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte("test-secret"))
	require.NoError(t, err)
	return token
}

func TestIdentityFromToken(t *testing.T) {
	exp := time.Now().Add(time.Hour).Truncate(time.Second)
	token := signedToken(t, Claims{
		Email: "learner@example.com",
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   "user-123",
			ExpiresAt: jwt.NewNumericDate(exp),
		},
	})

	id, err := IdentityFromToken("Bearer " + token)
	require.NoError(t, err)
	assert.Equal(t, "user-123", id.UserID)
	assert.Equal(t, "learner@example.com", id.Email)
	assert.Equal(t, token, id.AccessToken)
	assert.True(t, exp.Equal(id.ExpiresAt))
	assert.False(t, id.Expired(time.Now()))
	assert.True(t, id.Expired(exp.Add(time.Second)))
}

func TestIdentityFromEmptyTokenIsSignedOut(t *testing.T) {
	id, err := IdentityFromToken("  ")
	assert.NoError(t, err)
	assert.Nil(t, id)
}

func TestIdentityFromTokenRejectsGarbage(t *testing.T) {
	_, err := IdentityFromToken("not-a-jwt")
	assert.Error(t, err)

	_, err = IdentityFromToken(signedToken(t, Claims{}))
	assert.Error(t, err)
}

func TestSame(t *testing.T) {
	a := &Identity{UserID: "u1"}
	assert.True(t, Same(nil, nil))
	assert.False(t, Same(a, nil))
	assert.True(t, Same(a, &Identity{UserID: "u1", AccessToken: "other"}))
	assert.False(t, Same(a, &Identity{UserID: "u2"}))
}
