package auth_test

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dosepoint/dosepoint/internal/auth"
)

const (
	testKey      = "test-secret-key-for-testing-only"
	testIssuer   = "https://accounts.dosepoint.io"
	testAudience = "dosepoint-api"
)

func newVerifier() *auth.Verifier {
	return auth.NewVerifier(auth.Config{
		SigningKey: testKey,
		Issuer:     testIssuer,
		Audience:   testAudience,
	})
}

// signToken mimics what the account system issues.
func signToken(t *testing.T, key string, mutate func(*auth.Claims)) string {
	t.Helper()

	now := time.Now()
	claims := auth.Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    testIssuer,
			Subject:   "own_test123",
			Audience:  jwt.ClaimStrings{testAudience},
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(time.Hour)),
		},
	}
	if mutate != nil {
		mutate(&claims)
	}

	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(key))
	require.NoError(t, err)
	return token
}

func TestVerifyOwnerToken(t *testing.T) {
	v := newVerifier()

	id, err := v.Verify(signToken(t, testKey, nil))
	require.NoError(t, err)
	assert.Equal(t, "own_test123", id.OwnerID)
	assert.Empty(t, id.DeviceID)
	assert.False(t, id.IsDevice())
}

func TestVerifyDeviceToken(t *testing.T) {
	v := newVerifier()

	token := signToken(t, testKey, func(c *auth.Claims) {
		c.Subject = "dev_abc"
		c.Use = auth.TokenUseDevice
		c.OwnerID = "own_test123"
	})

	id, err := v.Verify(token)
	require.NoError(t, err)
	assert.Equal(t, "own_test123", id.OwnerID)
	assert.Equal(t, "dev_abc", id.DeviceID)
	assert.True(t, id.IsDevice())
}

func TestVerifyDeviceTokenWithoutOwner(t *testing.T) {
	v := newVerifier()

	token := signToken(t, testKey, func(c *auth.Claims) {
		c.Subject = "dev_abc"
		c.Use = auth.TokenUseDevice
	})

	_, err := v.Verify(token)
	assert.ErrorIs(t, err, auth.ErrInvalidToken)
}

func TestVerifyExpiredToken(t *testing.T) {
	v := newVerifier()

	token := signToken(t, testKey, func(c *auth.Claims) {
		c.ExpiresAt = jwt.NewNumericDate(time.Now().Add(-time.Minute))
	})

	_, err := v.Verify(token)
	assert.ErrorIs(t, err, auth.ErrTokenExpired)
}

func TestVerifyWrongSigningKey(t *testing.T) {
	v := newVerifier()

	_, err := v.Verify(signToken(t, "some-other-key", nil))
	assert.ErrorIs(t, err, auth.ErrInvalidToken)
}

func TestVerifyWrongIssuer(t *testing.T) {
	v := newVerifier()

	token := signToken(t, testKey, func(c *auth.Claims) {
		c.Issuer = "https://evil.example.com"
	})

	_, err := v.Verify(token)
	assert.ErrorIs(t, err, auth.ErrInvalidToken)
}

func TestVerifyMalformedTokens(t *testing.T) {
	v := newVerifier()

	tests := []struct {
		name  string
		token string
	}{
		{"empty token", ""},
		{"malformed token", "not.a.valid.jwt"},
		{"invalid base64", "xxx.yyy.zzz"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := v.Verify(tt.token)
			assert.Error(t, err)
		})
	}
}

func TestVerifyUnknownUseClaim(t *testing.T) {
	v := newVerifier()

	token := signToken(t, testKey, func(c *auth.Claims) {
		c.Use = "service"
	})

	_, err := v.Verify(token)
	assert.ErrorIs(t, err, auth.ErrInvalidToken)
}
