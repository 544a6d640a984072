package dispense

import (
	"context"
	"sync"
	"time"

	"github.com/dosepoint/dosepoint/internal/activity"
	"github.com/dosepoint/dosepoint/internal/device"
)

// InMemoryStore is an in-memory implementation of Store.
// This is intended for testing. Production should use the PostgreSQL
// implementation. A single store-wide mutex held for the transaction's
// lifetime stands in for the per-device row lock.
type InMemoryStore struct {
	mu           sync.Mutex
	devices      map[string]*device.Device
	observations map[string][]*Observation    // keyed by device ID, receipt order
	entries      map[string][]*activity.Entry // keyed by device ID
}

// NewInMemoryStore creates a new in-memory dispense store.
func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{
		devices:      make(map[string]*device.Device),
		observations: make(map[string][]*Observation),
		entries:      make(map[string][]*activity.Entry),
	}
}

// PutDevice stores or replaces a device. Test seeding only.
func (s *InMemoryStore) PutDevice(d *device.Device) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.devices[d.ID] = copyDevice(d)
}

// Device returns the stored device, or nil. Test inspection only.
func (s *InMemoryStore) Device(deviceID string) *device.Device {
	s.mu.Lock()
	defer s.mu.Unlock()
	d, ok := s.devices[deviceID]
	if !ok {
		return nil
	}
	return copyDevice(d)
}

// Observations returns a device's observations in receipt order.
func (s *InMemoryStore) Observations(deviceID string) []*Observation {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]*Observation(nil), s.observations[deviceID]...)
}

// Entries returns a device's activity entries in insertion order.
func (s *InMemoryStore) Entries(deviceID string) []*activity.Entry {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]*activity.Entry(nil), s.entries[deviceID]...)
}

// Begin opens a transaction. The store lock is held until Commit or Rollback.
func (s *InMemoryStore) Begin(_ context.Context) (Tx, error) {
	s.mu.Lock()
	return &memoryTx{store: s}, nil
}

type memoryTx struct {
	store *InMemoryStore
	done  bool

	// Writes are staged and applied on Commit so a rollback leaves the
	// store untouched.
	newObservations []*Observation
	newEntries      []*activity.Entry
	updatedDevice   *device.Device
}

func (t *memoryTx) GetDeviceForUpdate(_ context.Context, ownerID, deviceID string) (*device.Device, error) {
	d, ok := t.store.devices[deviceID]
	if !ok || d.OwnerID != ownerID {
		return nil, device.ErrDeviceNotFound
	}
	return copyDevice(d), nil
}

func (t *memoryTx) LatestObservation(_ context.Context, deviceID string) (*Observation, error) {
	// Staged writes are visible inside the transaction.
	for i := len(t.newObservations) - 1; i >= 0; i-- {
		if t.newObservations[i].DeviceID == deviceID {
			obs := *t.newObservations[i]
			return &obs, nil
		}
	}
	stored := t.store.observations[deviceID]
	if len(stored) == 0 {
		return nil, ErrNoObservation
	}
	obs := *stored[len(stored)-1]
	return &obs, nil
}

func (t *memoryTx) LastDispenseAt(_ context.Context, deviceID string) (*time.Time, error) {
	var last *time.Time
	consider := func(entry *activity.Entry) {
		if entry.DeviceID != deviceID || entry.Action != activity.ActionDoseDispensed {
			return
		}
		if last == nil || entry.OccurredAt.After(*last) {
			at := entry.OccurredAt
			last = &at
		}
	}
	for _, entry := range t.store.entries[deviceID] {
		consider(entry)
	}
	for _, entry := range t.newEntries {
		consider(entry)
	}
	return last, nil
}

func (t *memoryTx) InsertObservation(_ context.Context, obs *Observation) error {
	o := *obs
	t.newObservations = append(t.newObservations, &o)
	return nil
}

func (t *memoryTx) InsertActivity(_ context.Context, entry *activity.Entry) error {
	e := *entry
	t.newEntries = append(t.newEntries, &e)
	return nil
}

func (t *memoryTx) UpdateDevice(_ context.Context, d *device.Device) error {
	t.updatedDevice = copyDevice(d)
	return nil
}

func (t *memoryTx) Commit(_ context.Context) error {
	if t.done {
		return nil
	}
	t.done = true
	defer t.store.mu.Unlock()

	for _, obs := range t.newObservations {
		t.store.observations[obs.DeviceID] = append(t.store.observations[obs.DeviceID], obs)
	}
	for _, entry := range t.newEntries {
		t.store.entries[entry.DeviceID] = append(t.store.entries[entry.DeviceID], entry)
	}
	if t.updatedDevice != nil {
		t.store.devices[t.updatedDevice.ID] = t.updatedDevice
	}
	return nil
}

func (t *memoryTx) Rollback(_ context.Context) error {
	if t.done {
		return nil
	}
	t.done = true
	t.store.mu.Unlock()
	return nil
}

func copyDevice(d *device.Device) *device.Device {
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

var _ Store = (*InMemoryStore)(nil)
