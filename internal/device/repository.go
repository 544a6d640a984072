package device

import (
	"context"
	"time"
)

// Repository defines the interface for device persistence.
type Repository interface {
	// Get retrieves a device by ID regardless of owner. Used for
	// device-origin calls where identity comes from the device token.
	Get(ctx context.Context, deviceID string) (*Device, error)

	// GetByOwner retrieves a device by owner ID and device ID.
	GetByOwner(ctx context.Context, ownerID, deviceID string) (*Device, error)

	// ListByOwner retrieves devices for an owner, active only unless
	// opts.IncludeDeleted is set.
	ListByOwner(ctx context.Context, ownerID string, opts ListOptions) (*ListResult, error)

	// Create creates a new device. Returns ErrDuplicateDevice if the MAC
	// address or serial number is already registered.
	Create(ctx context.Context, device *Device) error

	// Update updates the mutable fields of an existing device.
	Update(ctx context.Context, device *Device) error

	// SoftDelete marks a device inactive. Child rows are kept.
	SoftDelete(ctx context.Context, ownerID, deviceID string, at time.Time) error

	// ChangedSince retrieves an owner's devices with updated_at after the
	// cursor, in updated_at order.
	ChangedSince(ctx context.Context, ownerID string, since time.Time) ([]*Device, error)
}
