package notification

import (
	"context"
	"sort"
	"sync"
	"time"
)

// InMemoryRepository is an in-memory implementation of Repository.
// This is intended for testing. Production should use the PostgreSQL implementation.
type InMemoryRepository struct {
	mu            sync.RWMutex
	notifications map[string]*Notification // keyed by notification ID
	settings      map[string]*Settings     // keyed by owner ID
}

// NewInMemoryRepository creates a new in-memory notification repository.
func NewInMemoryRepository() *InMemoryRepository {
	return &InMemoryRepository{
		notifications: make(map[string]*Notification),
		settings:      make(map[string]*Settings),
	}
}

// Insert creates a notification.
func (r *InMemoryRepository) Insert(_ context.Context, n *Notification) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.notifications[n.ID] = copyNotification(n)
	return nil
}

// Get retrieves a notification by owner ID and notification ID.
func (r *InMemoryRepository) Get(_ context.Context, ownerID, notificationID string) (*Notification, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	n, ok := r.notifications[notificationID]
	if !ok || n.OwnerID != ownerID {
		return nil, ErrNotificationNotFound
	}
	return copyNotification(n), nil
}

// List retrieves a filtered page of an owner's notifications, newest first.
func (r *InMemoryRepository) List(_ context.Context, ownerID string, filter Filter) (*ListResult, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var items []*Notification
	for _, n := range r.notifications {
		if n.OwnerID != ownerID {
			continue
		}
		if filter.Type != nil && n.Type != *filter.Type {
			continue
		}
		if filter.IsRead != nil && n.IsRead != *filter.IsRead {
			continue
		}
		if filter.DeviceID != nil && (n.DeviceID == nil || *n.DeviceID != *filter.DeviceID) {
			continue
		}
		items = append(items, copyNotification(n))
	}

	sort.Slice(items, func(i, j int) bool {
		return items[i].CreatedAt.After(items[j].CreatedAt)
	})

	total := len(items)
	limit := filter.Limit
	if limit <= 0 {
		limit = 50
	}
	if filter.Offset < len(items) {
		items = items[filter.Offset:]
	} else {
		items = nil
	}
	if len(items) > limit {
		items = items[:limit]
	}

	return &ListResult{Total: total, Limit: limit, Offset: filter.Offset, Items: items}, nil
}

// MarkRead sets is_read and read_at together.
func (r *InMemoryRepository) MarkRead(_ context.Context, ownerID, notificationID string, at time.Time) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	n, ok := r.notifications[notificationID]
	if !ok || n.OwnerID != ownerID {
		return false, ErrNotificationNotFound
	}
	if n.IsRead {
		return false, nil
	}
	n.IsRead = true
	readAt := at
	n.ReadAt = &readAt
	return true, nil
}

// MarkAllRead marks every unread notification read.
func (r *InMemoryRepository) MarkAllRead(_ context.Context, ownerID string, at time.Time) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	count := 0
	for _, n := range r.notifications {
		if n.OwnerID == ownerID && !n.IsRead {
			n.IsRead = true
			readAt := at
			n.ReadAt = &readAt
			count++
		}
	}
	return count, nil
}

// UnreadCount counts an owner's unread notifications.
func (r *InMemoryRepository) UnreadCount(_ context.Context, ownerID string) (int, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	count := 0
	for _, n := range r.notifications {
		if n.OwnerID == ownerID && !n.IsRead {
			count++
		}
	}
	return count, nil
}

// LatestUnread retrieves the newest unread (owner, device, type) notification
// created after the cutoff.
func (r *InMemoryRepository) LatestUnread(_ context.Context, ownerID string, deviceID *string, t Type, createdAfter time.Time) (*Notification, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var latest *Notification
	for _, n := range r.notifications {
		if n.OwnerID != ownerID || n.Type != t || n.IsRead {
			continue
		}
		if !sameDevice(n.DeviceID, deviceID) {
			continue
		}
		if !n.CreatedAt.After(createdAfter) {
			continue
		}
		if latest == nil || n.CreatedAt.After(latest.CreatedAt) {
			latest = n
		}
	}
	if latest == nil {
		return nil, ErrNotificationNotFound
	}
	return copyNotification(latest), nil
}

// CreatedSince retrieves an owner's notifications created after the cursor.
func (r *InMemoryRepository) CreatedSince(_ context.Context, ownerID string, since time.Time) ([]*Notification, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var items []*Notification
	for _, n := range r.notifications {
		if n.OwnerID == ownerID && n.CreatedAt.After(since) {
			items = append(items, copyNotification(n))
		}
	}
	sort.Slice(items, func(i, j int) bool {
		return items[i].CreatedAt.Before(items[j].CreatedAt)
	})
	return items, nil
}

// ReadSince retrieves an owner's notifications read after the cursor.
func (r *InMemoryRepository) ReadSince(_ context.Context, ownerID string, since time.Time) ([]*Notification, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var items []*Notification
	for _, n := range r.notifications {
		if n.OwnerID == ownerID && n.ReadAt != nil && n.ReadAt.After(since) {
			items = append(items, copyNotification(n))
		}
	}
	sort.Slice(items, func(i, j int) bool {
		return items[i].ReadAt.Before(*items[j].ReadAt)
	})
	return items, nil
}

// GetSettings retrieves an owner's notification settings.
func (r *InMemoryRepository) GetSettings(_ context.Context, ownerID string) (*Settings, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	s, ok := r.settings[ownerID]
	if !ok {
		return nil, ErrSettingsNotFound
	}
	c := *s
	return &c, nil
}

// UpsertSettings creates or replaces an owner's notification settings.
func (r *InMemoryRepository) UpsertSettings(_ context.Context, s *Settings) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	c := *s
	r.settings[s.OwnerID] = &c
	return nil
}

func sameDevice(a, b *string) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return *a == *b
}

func copyNotification(n *Notification) *Notification {
	c := *n
	if n.DeviceID != nil {
		id := *n.DeviceID
		c.DeviceID = &id
	}
	if n.ReadAt != nil {
		at := *n.ReadAt
		c.ReadAt = &at
	}
	if n.Metadata != nil {
		c.Metadata = make(map[string]string, len(n.Metadata))
		for k, v := range n.Metadata {
			c.Metadata[k] = v
		}
	}
	return &c
}

// Ensure InMemoryRepository implements Repository interface.
var _ Repository = (*InMemoryRepository)(nil)
