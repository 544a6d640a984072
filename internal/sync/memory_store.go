package sync

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/dosepoint/dosepoint/internal/activity"
	"github.com/dosepoint/dosepoint/internal/device"
	"github.com/dosepoint/dosepoint/internal/notification"
	"github.com/dosepoint/dosepoint/internal/profile"
)

// InMemoryStore is an in-memory implementation of Store backed by the
// in-memory entity repositories.
// This is intended for testing. Production should use the PostgreSQL implementation.
type InMemoryStore struct {
	Profiles      *profile.InMemoryRepository
	Devices       *device.InMemoryRepository
	Activity      *activity.InMemoryRepository
	Notifications *notification.InMemoryRepository

	mu      sync.RWMutex
	cursors map[string]*Cursor
}

// NewInMemoryStore creates an in-memory sync store with fresh repositories.
func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{
		Profiles:      profile.NewInMemoryRepository(),
		Devices:       device.NewInMemoryRepository(),
		Activity:      activity.NewInMemoryRepository(),
		Notifications: notification.NewInMemoryRepository(),
		cursors:       make(map[string]*Cursor),
	}
}

// Snapshot reads the owner's entities from the backing repositories.
func (s *InMemoryStore) Snapshot(ctx context.Context, ownerID string, includeDeleted bool, activitySince time.Time) (*SnapshotData, error) {
	data := &SnapshotData{}

	owner, err := s.Profiles.Get(ctx, ownerID)
	if err != nil {
		return nil, err
	}
	data.Owner = owner

	devices, err := s.Devices.ListByOwner(ctx, ownerID, device.ListOptions{IncludeDeleted: includeDeleted})
	if err != nil {
		return nil, err
	}
	data.Devices = devices.Items

	data.Activity, err = s.Activity.ListByOwnerSince(ctx, ownerID, activitySince, 1000)
	if err != nil {
		return nil, err
	}

	notifications, err := s.Notifications.List(ctx, ownerID, notification.Filter{Limit: 500})
	if err != nil {
		return nil, err
	}
	data.Notifications = notifications.Items

	settings, err := s.Notifications.GetSettings(ctx, ownerID)
	if err != nil && !errors.Is(err, notification.ErrSettingsNotFound) {
		return nil, err
	}
	data.Settings = settings

	return data, nil
}

// GetCursor retrieves the owner's sync cursor.
func (s *InMemoryStore) GetCursor(_ context.Context, ownerID string) (*Cursor, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	cursor, ok := s.cursors[ownerID]
	if !ok {
		return nil, ErrNoCursor
	}
	c := *cursor
	return &c, nil
}

// SaveCursor creates or replaces the owner's sync cursor.
func (s *InMemoryStore) SaveCursor(_ context.Context, cursor *Cursor) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	c := *cursor
	s.cursors[cursor.OwnerID] = &c
	return nil
}

var _ Store = (*InMemoryStore)(nil)
