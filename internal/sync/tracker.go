package sync

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/dosepoint/dosepoint/internal/activity"
	"github.com/dosepoint/dosepoint/internal/device"
	"github.com/dosepoint/dosepoint/internal/notification"
	"github.com/dosepoint/dosepoint/internal/profile"
)

// Tracker computes the set of an owner's entities mutated after a cursor.
// Delta reads run against live tables and tolerate sub-second races; replay
// is idempotent on the client.
type Tracker struct {
	profiles      profile.Repository
	devices       device.Repository
	activity      activity.Repository
	notifications notification.Repository
}

// NewTracker creates a change tracker.
func NewTracker(
	profiles profile.Repository,
	devices device.Repository,
	activityRepo activity.Repository,
	notifications notification.Repository,
) *Tracker {
	return &Tracker{
		profiles:      profiles,
		devices:       devices,
		activity:      activityRepo,
		notifications: notifications,
	}
}

// maxDeltaEntries bounds the activity portion of one delta.
const maxDeltaEntries = 1000

// Changes collects everything of the owner's that changed after the cursor,
// devices partitioned into updated and soft-deleted.
func (t *Tracker) Changes(ctx context.Context, ownerID string, since time.Time) (*ChangeSet, error) {
	set := &ChangeSet{}

	owner, err := t.profiles.ChangedSince(ctx, ownerID, since)
	if err != nil {
		return nil, fmt.Errorf("tracking profile changes: %w", err)
	}
	set.Profile = owner

	devices, err := t.devices.ChangedSince(ctx, ownerID, since)
	if err != nil {
		return nil, fmt.Errorf("tracking device changes: %w", err)
	}
	for _, d := range devices {
		if d.IsActive {
			set.DevicesUpdated = append(set.DevicesUpdated, d)
		} else {
			set.DevicesDeleted = append(set.DevicesDeleted, d.ID)
		}
	}

	entries, err := t.activity.ListByOwnerSince(ctx, ownerID, since, maxDeltaEntries)
	if err != nil {
		return nil, fmt.Errorf("tracking activity changes: %w", err)
	}
	set.Activity = entries

	created, err := t.notifications.CreatedSince(ctx, ownerID, since)
	if err != nil {
		return nil, fmt.Errorf("tracking created notifications: %w", err)
	}
	set.NotificationsCreated = created

	read, err := t.notifications.ReadSince(ctx, ownerID, since)
	if err != nil {
		return nil, fmt.Errorf("tracking read notifications: %w", err)
	}
	// A notification both created and read inside the window already carries
	// its read state in the created partition.
	set.NotificationsRead = dropCreated(read, created)

	settings, err := t.notifications.GetSettings(ctx, ownerID)
	if err != nil && !errors.Is(err, notification.ErrSettingsNotFound) {
		return nil, fmt.Errorf("tracking settings changes: %w", err)
	}
	if settings != nil && settings.UpdatedAt.After(since) {
		set.SettingsChanged = settings
	}

	return set, nil
}

func dropCreated(read, created []*notification.Notification) []*notification.Notification {
	if len(read) == 0 || len(created) == 0 {
		return read
	}
	createdIDs := make(map[string]struct{}, len(created))
	for _, n := range created {
		createdIDs[n.ID] = struct{}{}
	}
	kept := read[:0:0]
	for _, n := range read {
		if _, ok := createdIDs[n.ID]; !ok {
			kept = append(kept, n)
		}
	}
	return kept
}
