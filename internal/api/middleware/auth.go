package middleware

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/dosepoint/dosepoint/internal/api/models"
	"github.com/dosepoint/dosepoint/internal/auth"
)

// identityKey is the context key for the authenticated caller.
type identityKey struct{}

// Auth creates authentication middleware that validates JWT bearer tokens.
// Both owner tokens and device tokens are accepted; handlers that must not
// serve devices wrap themselves in RequireOwner.
func Auth(verifier *auth.Verifier) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			// Extract bearer token from Authorization header
			authHeader := r.Header.Get("Authorization")
			if authHeader == "" {
				writeUnauthorized(w, r, "missing authorization header")
				return
			}

			// Check for Bearer prefix (case-insensitive)
			const bearerPrefix = "Bearer "
			if len(authHeader) < len(bearerPrefix) ||
				!strings.EqualFold(authHeader[:len(bearerPrefix)], bearerPrefix) {
				writeUnauthorized(w, r, "invalid authorization header format")
				return
			}

			tokenString := authHeader[len(bearerPrefix):]
			if tokenString == "" {
				writeUnauthorized(w, r, "missing bearer token")
				return
			}

			identity, err := verifier.Verify(tokenString)
			if err != nil {
				switch {
				case errors.Is(err, auth.ErrTokenExpired):
					writeUnauthorized(w, r, "access token has expired")
				case errors.Is(err, auth.ErrInvalidToken):
					writeUnauthorized(w, r, "invalid access token")
				default:
					writeUnauthorized(w, r, "authentication failed")
				}
				return
			}

			ctx := context.WithValue(r.Context(), identityKey{}, identity)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// RequireOwner rejects device tokens. Used on routes that only a signed-in
// owner may call, such as sync and device management.
func RequireOwner(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := GetIdentity(r.Context())
		if id == nil || id.IsDevice() {
			writeForbidden(w, r, "owner token required")
			return
		}
		next.ServeHTTP(w, r)
	})
}

// writeUnauthorized writes a 401 Unauthorized response.
// This is implemented directly here to avoid import cycle with response package.
func writeUnauthorized(w http.ResponseWriter, r *http.Request, detail string) {
	traceID := GetRequestID(r.Context())
	problem := models.NewUnauthorized(traceID, detail)
	problem.Instance = r.URL.Path
	problem.Write(w)
}

// writeForbidden writes a 403 Forbidden response.
func writeForbidden(w http.ResponseWriter, r *http.Request, detail string) {
	traceID := GetRequestID(r.Context())
	problem := models.NewForbidden(traceID, detail)
	problem.Instance = r.URL.Path
	problem.Write(w)
}

// GetIdentity retrieves the authenticated caller from the context.
// Returns nil if not authenticated.
func GetIdentity(ctx context.Context) *auth.Identity {
	if id, ok := ctx.Value(identityKey{}).(*auth.Identity); ok {
		return id
	}
	return nil
}

// GetOwnerID retrieves the authenticated owner ID from the context.
// Returns an empty string if not authenticated.
func GetOwnerID(ctx context.Context) string {
	if id := GetIdentity(ctx); id != nil {
		return id.OwnerID
	}
	return ""
}
