package device

import (
	"context"
	"sort"
	"sync"
	"time"
)

// InMemoryRepository is an in-memory implementation of Repository.
// This is intended for testing. Production should use the PostgreSQL implementation.
type InMemoryRepository struct {
	mu      sync.RWMutex
	devices map[string]*Device // keyed by device ID
}

// NewInMemoryRepository creates a new in-memory device repository.
func NewInMemoryRepository() *InMemoryRepository {
	return &InMemoryRepository{
		devices: make(map[string]*Device),
	}
}

// Get retrieves a device by ID.
func (r *InMemoryRepository) Get(_ context.Context, deviceID string) (*Device, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	device, ok := r.devices[deviceID]
	if !ok {
		return nil, ErrDeviceNotFound
	}
	return copyDevice(device), nil
}

// GetByOwner retrieves a device by owner ID and device ID.
func (r *InMemoryRepository) GetByOwner(_ context.Context, ownerID, deviceID string) (*Device, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	device, ok := r.devices[deviceID]
	if !ok || device.OwnerID != ownerID {
		return nil, ErrDeviceNotFound
	}
	return copyDevice(device), nil
}

// ListByOwner retrieves devices for an owner.
func (r *InMemoryRepository) ListByOwner(_ context.Context, ownerID string, opts ListOptions) (*ListResult, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var items []*Device
	for _, device := range r.devices {
		if device.OwnerID != ownerID {
			continue
		}
		if !device.IsActive && !opts.IncludeDeleted {
			continue
		}
		items = append(items, copyDevice(device))
	}

	sort.Slice(items, func(i, j int) bool {
		return items[i].CreatedAt.After(items[j].CreatedAt)
	})

	limit := opts.Limit
	if limit <= 0 {
		limit = 50
	}
	result := &ListResult{Items: items}
	if len(items) > limit {
		result.Items = items[:limit]
		result.NextCursor = items[limit-1].ID
	}
	return result, nil
}

// Create creates a new device.
func (r *InMemoryRepository) Create(_ context.Context, device *Device) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, existing := range r.devices {
		if existing.MACAddress == device.MACAddress || existing.SerialNumber == device.SerialNumber {
			return ErrDuplicateDevice
		}
	}
	r.devices[device.ID] = copyDevice(device)
	return nil
}

// Update updates an existing device.
func (r *InMemoryRepository) Update(_ context.Context, device *Device) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.devices[device.ID]; !ok {
		return ErrDeviceNotFound
	}
	r.devices[device.ID] = copyDevice(device)
	return nil
}

// SoftDelete marks a device inactive.
func (r *InMemoryRepository) SoftDelete(_ context.Context, ownerID, deviceID string, at time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	device, ok := r.devices[deviceID]
	if !ok || device.OwnerID != ownerID || !device.IsActive {
		return ErrDeviceNotFound
	}
	device.IsActive = false
	device.IsConnected = false
	device.UpdatedAt = at
	return nil
}

// ChangedSince retrieves an owner's devices with updated_at after the cursor.
func (r *InMemoryRepository) ChangedSince(_ context.Context, ownerID string, since time.Time) ([]*Device, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var items []*Device
	for _, device := range r.devices {
		if device.OwnerID == ownerID && device.UpdatedAt.After(since) {
			items = append(items, copyDevice(device))
		}
	}
	sort.Slice(items, func(i, j int) bool {
		return items[i].UpdatedAt.Before(items[j].UpdatedAt)
	})
	return items, nil
}

func copyDevice(d *Device) *Device {
	c := *d
	if d.Location != nil {
		loc := *d.Location
		c.Location = &loc
	}
	if d.FirmwareVersion != nil {
		fw := *d.FirmwareVersion
		c.FirmwareVersion = &fw
	}
	if d.LastSync != nil {
		ls := *d.LastSync
		c.LastSync = &ls
	}
	return &c
}

// Ensure InMemoryRepository implements Repository interface.
var _ Repository = (*InMemoryRepository)(nil)
