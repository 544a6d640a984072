package profile

import (
	"context"
	"sync"
	"time"
)

// InMemoryRepository is an in-memory implementation of Repository.
// This is intended for testing. Production should use the PostgreSQL implementation.
type InMemoryRepository struct {
	mu     sync.RWMutex
	owners map[string]*Owner
}

// NewInMemoryRepository creates a new in-memory profile repository.
func NewInMemoryRepository() *InMemoryRepository {
	return &InMemoryRepository{owners: make(map[string]*Owner)}
}

// Put stores or replaces an owner profile. Test seeding only.
func (r *InMemoryRepository) Put(owner *Owner) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.owners[owner.ID] = copyOwner(owner)
}

// Get retrieves an owner profile by ID.
func (r *InMemoryRepository) Get(_ context.Context, ownerID string) (*Owner, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	owner, ok := r.owners[ownerID]
	if !ok {
		return nil, ErrOwnerNotFound
	}
	return copyOwner(owner), nil
}

// ChangedSince returns the profile when it changed after the cursor.
func (r *InMemoryRepository) ChangedSince(_ context.Context, ownerID string, since time.Time) (*Owner, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	owner, ok := r.owners[ownerID]
	if !ok || !owner.UpdatedAt.After(since) {
		return nil, nil
	}
	return copyOwner(owner), nil
}

func copyOwner(owner *Owner) *Owner {
	c := *owner
	if owner.Phone != nil {
		phone := *owner.Phone
		c.Phone = &phone
	}
	return &c
}

var _ Repository = (*InMemoryRepository)(nil)
