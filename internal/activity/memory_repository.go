package activity

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
	entries []*Entry
}

// NewInMemoryRepository creates a new in-memory activity repository.
func NewInMemoryRepository() *InMemoryRepository {
	return &InMemoryRepository{}
}

// Insert appends a log entry.
func (r *InMemoryRepository) Insert(_ context.Context, entry *Entry) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.entries = append(r.entries, copyEntry(entry))
	return nil
}

// ListByDevice retrieves entries for a device, newest first.
func (r *InMemoryRepository) ListByDevice(_ context.Context, deviceID string, opts ListOptions) ([]*Entry, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var items []*Entry
	for _, entry := range r.entries {
		if entry.DeviceID != deviceID {
			continue
		}
		if opts.From != nil && entry.OccurredAt.Before(*opts.From) {
			continue
		}
		if opts.To != nil && entry.OccurredAt.After(*opts.To) {
			continue
		}
		items = append(items, copyEntry(entry))
	}

	sort.Slice(items, func(i, j int) bool {
		return items[i].OccurredAt.After(items[j].OccurredAt)
	})

	limit := opts.Limit
	if limit <= 0 {
		limit = 100
	}
	if len(items) > limit {
		items = items[:limit]
	}
	return items, nil
}

// ListByOwnerSince retrieves an owner's entries after the cursor, oldest first.
func (r *InMemoryRepository) ListByOwnerSince(_ context.Context, ownerID string, since time.Time, limit int) ([]*Entry, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var items []*Entry
	for _, entry := range r.entries {
		if entry.OwnerID == ownerID && entry.OccurredAt.After(since) {
			items = append(items, copyEntry(entry))
		}
	}
	sort.Slice(items, func(i, j int) bool {
		return items[i].OccurredAt.Before(items[j].OccurredAt)
	})
	if limit > 0 && len(items) > limit {
		items = items[:limit]
	}
	return items, nil
}

// CountByAction counts entries of one action for a device.
func (r *InMemoryRepository) CountByAction(_ context.Context, deviceID string, action Action) (int, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	count := 0
	for _, entry := range r.entries {
		if entry.DeviceID == deviceID && entry.Action == action {
			count++
		}
	}
	return count, nil
}

// DoseStatsByDevice summarizes dispensing for a device.
func (r *InMemoryRepository) DoseStatsByDevice(_ context.Context, deviceID string) (*DoseStats, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	stats := &DoseStats{DeviceID: deviceID}
	for _, entry := range r.entries {
		if entry.DeviceID != deviceID || entry.Action != ActionDoseDispensed {
			continue
		}
		stats.TotalDoses++
		at := entry.OccurredAt
		if stats.FirstDose == nil || at.Before(*stats.FirstDose) {
			first := at
			stats.FirstDose = &first
		}
		if stats.LastDose == nil || at.After(*stats.LastDose) {
			last := at
			stats.LastDose = &last
		}
	}
	return stats, nil
}

func copyEntry(e *Entry) *Entry {
	c := *e
	if e.DoseAmount != nil {
		amount := *e.DoseAmount
		c.DoseAmount = &amount
	}
	if e.Metadata != nil {
		c.Metadata = make(map[string]string, len(e.Metadata))
		for k, v := range e.Metadata {
			c.Metadata[k] = v
		}
	}
	return &c
}

// Ensure InMemoryRepository implements Repository interface.
var _ Repository = (*InMemoryRepository)(nil)
