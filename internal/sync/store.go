package sync

import (
	"context"
	"time"

	"github.com/dosepoint/dosepoint/internal/activity"
	"github.com/dosepoint/dosepoint/internal/device"
	"github.com/dosepoint/dosepoint/internal/notification"
	"github.com/dosepoint/dosepoint/internal/profile"
)

// SnapshotData is the raw cross-entity read for a full sync.
type SnapshotData struct {
	Owner         *profile.Owner
	Devices       []*device.Device
	Activity      []*activity.Entry
	Notifications []*notification.Notification
	Settings      *notification.Settings
}

// Store gives the orchestrator its consistent snapshot read and cursor
// persistence.
type Store interface {
	// Snapshot reads every entity of the owner inside one transaction whose
	// isolation prevents read skew. Activity is bounded to entries after
	// activitySince. Returns profile.ErrOwnerNotFound for unknown owners;
	// Settings is nil when the owner never saved any.
	Snapshot(ctx context.Context, ownerID string, includeDeleted bool, activitySince time.Time) (*SnapshotData, error)

	// GetCursor retrieves the owner's sync cursor, or ErrNoCursor.
	GetCursor(ctx context.Context, ownerID string) (*Cursor, error)

	// SaveCursor creates or replaces the owner's sync cursor.
	SaveCursor(ctx context.Context, cursor *Cursor) error
}
