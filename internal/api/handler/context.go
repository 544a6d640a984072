// Package handler provides HTTP handlers for the DosePoint API.
package handler

import (
	"context"

	"github.com/dosepoint/dosepoint/internal/api/middleware"
	"github.com/dosepoint/dosepoint/internal/auth"
)

// GetOwnerID retrieves the authenticated owner ID from the context.
// This is a convenience wrapper around middleware.GetOwnerID.
func GetOwnerID(ctx context.Context) string {
	return middleware.GetOwnerID(ctx)
}

// GetIdentity retrieves the authenticated caller from the context.
func GetIdentity(ctx context.Context) *auth.Identity {
	return middleware.GetIdentity(ctx)
}
