package profile

import (
	"context"
	"time"
)

// Repository defines read access to owner profiles.
type Repository interface {
	// Get retrieves an owner profile by ID.
	Get(ctx context.Context, ownerID string) (*Owner, error)

	// ChangedSince reports whether the profile changed after the cursor and
	// returns it when it did. A nil owner with a nil error means unchanged.
	ChangedSince(ctx context.Context, ownerID string, since time.Time) (*Owner, error)
}
