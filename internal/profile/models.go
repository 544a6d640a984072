// Package profile provides read access to owner profiles. Profiles are
// managed by the account system; this service only reads them for sync
// payloads.
package profile

import (
	"errors"
	"time"
)

// ErrOwnerNotFound is returned when no profile exists for the owner.
var ErrOwnerNotFound = errors.New("owner not found")

// Owner is an account profile as the sync payload carries it.
type Owner struct {
	ID        string
	Email     string
	FullName  string
	Phone     *string
	Language  string
	TimeZone  string
	IsActive  bool
	CreatedAt time.Time
	UpdatedAt time.Time
}
