package auth

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"notifier/internal/config"
	pkgerrors "notifier/pkg/errors"
)

const testSecret = "test-signing-secret"

func signToken(t *testing.T, secret string, claims Claims) string {
	t.Helper()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString([]byte(secret))
	require.NoError(t, err)
	return signed
}

func validClaims() Claims {
	return Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   "user-123",
			Audience:  jwt.ClaimStrings{"notifications-api"},
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
			IssuedAt:  jwt.NewNumericDate(time.Now()),
		},
		Email: "ana@example.com",
		Name:  "Ana Silva",
	}
}

func TestVerify_ValidToken(t *testing.T) {
	v := NewVerifier(config.AuthConfig{Secret: testSecret, Audience: "notifications-api"})

	subject, err := v.Verify(signToken(t, testSecret, validClaims()))
	require.NoError(t, err)

	assert.Equal(t, "user-123", subject.UserID)
	assert.Equal(t, "ana@example.com", subject.Email)
	assert.Equal(t, "Ana Silva", subject.Name)
}

func TestVerify_ExpiredToken(t *testing.T) {
	v := NewVerifier(config.AuthConfig{Secret: testSecret, Audience: "notifications-api"})

	claims := validClaims()
	claims.ExpiresAt = jwt.NewNumericDate(time.Now().Add(-time.Hour))

	_, err := v.Verify(signToken(t, testSecret, claims))
	require.Error(t, err)
	assert.Equal(t, 401, pkgerrors.ToHTTPStatus(err))
}

func TestVerify_WrongSecret(t *testing.T) {
	v := NewVerifier(config.AuthConfig{Secret: testSecret})

	_, err := v.Verify(signToken(t, "another-secret", validClaims()))
	require.Error(t, err)
	assert.Equal(t, 401, pkgerrors.ToHTTPStatus(err))
}

func TestVerify_Garbage(t *testing.T) {
	v := NewVerifier(config.AuthConfig{Secret: testSecret})

	_, err := v.Verify("not-a-token")
	require.Error(t, err)
	assert.Equal(t, 401, pkgerrors.ToHTTPStatus(err))
}

func TestVerify_AudienceMismatch(t *testing.T) {
	v := NewVerifier(config.AuthConfig{Secret: testSecret, Audience: "notifications-api"})

	claims := validClaims()
	claims.Audience = jwt.ClaimStrings{"some-other-api"}

	_, err := v.Verify(signToken(t, testSecret, claims))
	require.Error(t, err)
	assert.Equal(t, 403, pkgerrors.ToHTTPStatus(err))
}

func TestVerify_NoAudienceClaimAccepted(t *testing.T) {
	v := NewVerifier(config.AuthConfig{Secret: testSecret, Audience: "notifications-api"})

	claims := validClaims()
	claims.Audience = nil

	subject, err := v.Verify(signToken(t, testSecret, claims))
	require.NoError(t, err)
	assert.Equal(t, "user-123", subject.UserID)
}
