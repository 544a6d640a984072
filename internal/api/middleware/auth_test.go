package middleware_test

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dosepoint/dosepoint/internal/api/middleware"
	"github.com/dosepoint/dosepoint/internal/auth"
)

const (
	testSigningKey = "test-secret-key-for-testing-only"
	testIssuer     = "https://accounts.dosepoint.io"
	testAudience   = "dosepoint-api"
)

func createTestVerifier() *auth.Verifier {
	return auth.NewVerifier(auth.Config{
		SigningKey: testSigningKey,
		Issuer:     testIssuer,
		Audience:   testAudience,
	})
}

func issueTestToken(t *testing.T, mutate func(*auth.Claims)) string {
	t.Helper()

	now := time.Now()
	claims := auth.Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    testIssuer,
			Subject:   "own_testuser123",
			Audience:  jwt.ClaimStrings{testAudience},
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(time.Hour)),
		},
	}
	if mutate != nil {
		mutate(&claims)
	}

	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(testSigningKey))
	require.NoError(t, err)
	return token
}

func TestAuth_MissingAuthorizationHeader(t *testing.T) {
	authMiddleware := middleware.Auth(createTestVerifier())

	handler := authMiddleware(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	req := httptest.NewRequest(http.MethodGet, "/test", http.NoBody)
	rec := httptest.NewRecorder()

	handler.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Contains(t, rec.Body.String(), "missing authorization header")
}

func TestAuth_InvalidAuthorizationFormat(t *testing.T) {
	authMiddleware := middleware.Auth(createTestVerifier())

	handler := authMiddleware(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	tests := []struct {
		name   string
		header string
	}{
		{"no bearer prefix", "token123"},
		{"basic auth", "Basic dXNlcjpwYXNz"},
		{"bearer lowercase no space", "bearer token123"},
		{"empty bearer", "Bearer "},
		{"just bearer", "Bearer"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/test", http.NoBody)
			req.Header.Set("Authorization", tt.header)
			rec := httptest.NewRecorder()

			handler.ServeHTTP(rec, req)

			assert.Equal(t, http.StatusUnauthorized, rec.Code)
		})
	}
}

func TestAuth_InvalidToken(t *testing.T) {
	authMiddleware := middleware.Auth(createTestVerifier())

	handler := authMiddleware(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	req := httptest.NewRequest(http.MethodGet, "/test", http.NoBody)
	req.Header.Set("Authorization", "Bearer invalid.jwt.token")
	rec := httptest.NewRecorder()

	handler.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	// Invalid tokens are detected and reported as such
	assert.Contains(t, rec.Body.String(), "invalid access token")
}

func TestAuth_ExpiredToken(t *testing.T) {
	authMiddleware := middleware.Auth(createTestVerifier())

	token := issueTestToken(t, func(c *auth.Claims) {
		c.ExpiresAt = jwt.NewNumericDate(time.Now().Add(-time.Minute))
	})

	handler := authMiddleware(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	req := httptest.NewRequest(http.MethodGet, "/test", http.NoBody)
	req.Header.Set("Authorization", "Bearer "+token)
	rec := httptest.NewRecorder()

	handler.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Contains(t, rec.Body.String(), "expired")
}

func TestAuth_ValidOwnerToken(t *testing.T) {
	authMiddleware := middleware.Auth(createTestVerifier())
	token := issueTestToken(t, nil)

	var capturedOwnerID string
	handler := authMiddleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		capturedOwnerID = middleware.GetOwnerID(r.Context())
		w.WriteHeader(http.StatusOK)
	}))

	req := httptest.NewRequest(http.MethodGet, "/test", http.NoBody)
	req.Header.Set("Authorization", "Bearer "+token)
	rec := httptest.NewRecorder()

	handler.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "own_testuser123", capturedOwnerID)
}

func TestAuth_DeviceTokenIdentity(t *testing.T) {
	authMiddleware := middleware.Auth(createTestVerifier())
	token := issueTestToken(t, func(c *auth.Claims) {
		c.Subject = "dev_abc"
		c.Use = auth.TokenUseDevice
		c.OwnerID = "own_testuser123"
	})

	var captured *auth.Identity
	handler := authMiddleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		captured = middleware.GetIdentity(r.Context())
		w.WriteHeader(http.StatusOK)
	}))

	req := httptest.NewRequest(http.MethodGet, "/test", http.NoBody)
	req.Header.Set("Authorization", "Bearer "+token)
	rec := httptest.NewRecorder()

	handler.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	require.NotNil(t, captured)
	assert.Equal(t, "own_testuser123", captured.OwnerID)
	assert.Equal(t, "dev_abc", captured.DeviceID)
}

func TestRequireOwner_RejectsDeviceToken(t *testing.T) {
	authMiddleware := middleware.Auth(createTestVerifier())
	token := issueTestToken(t, func(c *auth.Claims) {
		c.Subject = "dev_abc"
		c.Use = auth.TokenUseDevice
		c.OwnerID = "own_testuser123"
	})

	handler := authMiddleware(middleware.RequireOwner(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	})))

	req := httptest.NewRequest(http.MethodGet, "/test", http.NoBody)
	req.Header.Set("Authorization", "Bearer "+token)
	rec := httptest.NewRecorder()

	handler.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusForbidden, rec.Code)
}

func TestRequireOwner_AllowsOwnerToken(t *testing.T) {
	authMiddleware := middleware.Auth(createTestVerifier())
	token := issueTestToken(t, nil)

	handler := authMiddleware(middleware.RequireOwner(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	})))

	req := httptest.NewRequest(http.MethodGet, "/test", http.NoBody)
	req.Header.Set("Authorization", "Bearer "+token)
	rec := httptest.NewRecorder()

	handler.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestAuth_CaseInsensitiveBearer(t *testing.T) {
	authMiddleware := middleware.Auth(createTestVerifier())
	token := issueTestToken(t, nil)

	handler := authMiddleware(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	// Test with different case variations
	cases := []string{"Bearer ", "bearer ", "BEARER "}
	for _, prefix := range cases {
		t.Run(prefix, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/test", http.NoBody)
			req.Header.Set("Authorization", prefix+token)
			rec := httptest.NewRecorder()

			handler.ServeHTTP(rec, req)

			assert.Equal(t, http.StatusOK, rec.Code)
		})
	}
}

func TestGetOwnerID_NoAuth(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/test", http.NoBody)
	assert.Empty(t, middleware.GetOwnerID(req.Context()))
	assert.Nil(t, middleware.GetIdentity(req.Context()))
}
