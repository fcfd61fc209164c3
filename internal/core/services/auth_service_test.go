package services

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAuthService_RoundTrip(t *testing.T) {
	auth := NewAuthService("secret", time.Hour, "")

	token, err := auth.GenerateToken("ops-1", RoleAdmin)
	require.NoError(t, err)

	claims, err := auth.ValidateToken(token)
	require.NoError(t, err)
	assert.Equal(t, "ops-1", claims.Subject)
	assert.Equal(t, RoleAdmin, claims.Role)
	assert.True(t, auth.IsAdmin(claims))
}

func TestAuthService_ViewerIsNotAdmin(t *testing.T) {
	auth := NewAuthService("secret", time.Hour, "moderator")

	token, err := auth.GenerateToken("guest", RoleAdmin)
	require.NoError(t, err)
	claims, err := auth.ValidateToken(token)
	require.NoError(t, err)

	assert.False(t, auth.IsAdmin(claims), "role must match the configured admin role")
	assert.False(t, auth.IsAdmin(nil))
}

func TestAuthService_RejectsBadTokens(t *testing.T) {
	auth := NewAuthService("secret", time.Hour, "")
	other := NewAuthService("other-secret", time.Hour, "")

	foreign, err := other.GenerateToken("x", RoleAdmin)
	require.NoError(t, err)

	tests := []struct {
		name  string
		token string
		want  error
	}{
		{"garbage", "not-a-token", ErrInvalidToken},
		{"wrong secret", foreign, ErrInvalidToken},
		{"unsigned", unsignedToken(t), ErrInvalidToken},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := auth.ValidateToken(tt.token)
			assert.ErrorIs(t, err, tt.want)
		})
	}
}

func TestAuthService_Expired(t *testing.T) {
	auth := NewAuthService("secret", -time.Minute, "")

	token, err := auth.GenerateToken("ops-1", RoleAdmin)
	require.NoError(t, err)

	_, err = auth.ValidateToken(token)
	assert.ErrorIs(t, err, ErrExpiredToken)
}

func unsignedToken(t *testing.T) string {
	t.Helper()
	token := jwt.NewWithClaims(jwt.SigningMethodNone, &Claims{Role: RoleAdmin})
	s, err := token.SignedString(jwt.UnsafeAllowNoneSignatureType)
	require.NoError(t, err)
	return s
}
