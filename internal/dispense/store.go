package dispense

import (
	"context"
	"time"

	"github.com/dosepoint/dosepoint/internal/activity"
	"github.com/dosepoint/dosepoint/internal/device"
)

// Store opens transactions for the state engine. Each Begin spans one
// observation and holds an exclusive per-device scope until Commit or
// Rollback.
type Store interface {
	Begin(ctx context.Context) (Tx, error)
}

// Tx is the narrow transactional surface the engine writes through. All
// operations run inside the same storage transaction; the device row stays
// locked from GetDeviceForUpdate until the transaction ends.
type Tx interface {
	// GetDeviceForUpdate loads the device scoped to the owner and locks it.
	// Returns device.ErrDeviceNotFound when absent or foreign.
	GetDeviceForUpdate(ctx context.Context, ownerID, deviceID string) (*device.Device, error)

	// LatestObservation returns the most recently received observation for
	// the device, or ErrNoObservation.
	LatestObservation(ctx context.Context, deviceID string) (*Observation, error)

	// LastDispenseAt returns when the device last dispensed, or nil when it
	// never has.
	LastDispenseAt(ctx context.Context, deviceID string) (*time.Time, error)

	// InsertObservation appends an observation.
	InsertObservation(ctx context.Context, obs *Observation) error

	// InsertActivity appends an activity log entry.
	InsertActivity(ctx context.Context, entry *activity.Entry) error

	// UpdateDevice persists the device's mutable fields.
	UpdateDevice(ctx context.Context, d *device.Device) error

	Commit(ctx context.Context) error
	Rollback(ctx context.Context) error
}
