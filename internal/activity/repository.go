package activity

import (
	"context"
	"time"
)

// Repository defines the interface for activity log persistence.
// Dispense entries are written by the state engine inside its own
// transaction; this interface serves standalone writes and reads.
type Repository interface {
	// Insert appends a log entry.
	Insert(ctx context.Context, entry *Entry) error

	// ListByDevice retrieves entries for a device, newest first.
	ListByDevice(ctx context.Context, deviceID string, opts ListOptions) ([]*Entry, error)

	// ListByOwnerSince retrieves an owner's entries with occurred_at after
	// the cursor, oldest first.
	ListByOwnerSince(ctx context.Context, ownerID string, since time.Time, limit int) ([]*Entry, error)

	// CountByAction counts entries of one action for a device.
	CountByAction(ctx context.Context, deviceID string, action Action) (int, error)

	// DoseStatsByDevice summarizes dispensing for a device.
	DoseStatsByDevice(ctx context.Context, deviceID string) (*DoseStats, error)
}
