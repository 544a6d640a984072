// Package auth validates the bearer tokens issued by the account system.
// Token issuance, refresh, and revocation live in the account service;
// this API only needs to verify signatures and extract the caller identity.
package auth

import (
	"errors"
	"fmt"

	"github.com/golang-jwt/jwt/v5"
)

// Token use claim values. Owner tokens omit the claim for backwards
// compatibility with older app builds.
const (
	TokenUseOwner  = "owner"
	TokenUseDevice = "device"
)

// Predefined token errors.
var (
	ErrInvalidToken = errors.New("invalid access token")
	ErrTokenExpired = errors.New("access token has expired")
)

// Claims represents the claims carried by access tokens.
type Claims struct {
	jwt.RegisteredClaims

	// Use distinguishes owner tokens from device tokens.
	Use string `json:"use,omitempty"`

	// OwnerID is the owning account on device tokens, whose subject is
	// the device ID.
	OwnerID string `json:"oid,omitempty"`
}

// Identity is the authenticated caller extracted from a token.
type Identity struct {
	// OwnerID is always set.
	OwnerID string

	// DeviceID is set only for device tokens.
	DeviceID string
}

// IsDevice reports whether the identity belongs to a dispenser rather
// than a signed-in owner.
func (id Identity) IsDevice() bool {
	return id.DeviceID != ""
}

// Config holds configuration for the token verifier.
type Config struct {
	// SigningKey is the shared secret the account system signs tokens with.
	SigningKey string

	// Issuer is the expected issuer claim (e.g. "https://accounts.dosepoint.io").
	Issuer string

	// Audience is the expected audience claim (e.g. "dosepoint-api").
	Audience string
}

// Verifier validates access tokens.
type Verifier struct {
	signingKey []byte
	issuer     string
	audience   string
}

// NewVerifier creates a token verifier.
func NewVerifier(cfg Config) *Verifier {
	return &Verifier{
		signingKey: []byte(cfg.SigningKey),
		issuer:     cfg.Issuer,
		audience:   cfg.Audience,
	}
}

// Verify validates a token and returns the caller identity.
func (v *Verifier) Verify(tokenString string) (*Identity, error) {
	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return v.signingKey, nil
	}, jwt.WithValidMethods([]string{"HS256"}),
		jwt.WithIssuer(v.issuer),
		jwt.WithAudience(v.audience),
		jwt.WithExpirationRequired(),
	)

	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, ErrTokenExpired
		}
		return nil, fmt.Errorf("%w: %s", ErrInvalidToken, err.Error())
	}

	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid {
		return nil, ErrInvalidToken
	}

	switch claims.Use {
	case TokenUseDevice:
		if claims.OwnerID == "" || claims.Subject == "" {
			return nil, ErrInvalidToken
		}
		return &Identity{OwnerID: claims.OwnerID, DeviceID: claims.Subject}, nil
	case TokenUseOwner, "":
		if claims.Subject == "" {
			return nil, ErrInvalidToken
		}
		return &Identity{OwnerID: claims.Subject}, nil
	default:
		return nil, ErrInvalidToken
	}
}
