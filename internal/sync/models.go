// Package sync implements full and incremental synchronization between the
// offline-capable client and the server-authoritative store: change tracking,
// conflict disposition, snapshot assembly, and cursor management.
package sync

import (
	"encoding/json"
	"errors"
	"time"

	"github.com/dosepoint/dosepoint/internal/activity"
	"github.com/dosepoint/dosepoint/internal/device"
	"github.com/dosepoint/dosepoint/internal/notification"
	"github.com/dosepoint/dosepoint/internal/profile"
)

// ErrNoCursor is returned when an owner has never completed a sync.
var ErrNoCursor = errors.New("no sync cursor for owner")

// Status records the outcome of the last sync.
type Status string

const (
	StatusSuccess Status = "success"
	StatusFailed  Status = "failed"
)

// Cursor is the per-owner boundary between synchronized and pending changes.
// It advances only after a sync payload has been fully assembled; a failed
// sync leaves the previous cursor untouched.
type Cursor struct {
	OwnerID       string
	LastFullSync  *time.Time
	LastDeltaSync *time.Time
	Status        Status
	UpdatedAt     time.Time
}

// LastSync returns the most recent of the full and delta sync timestamps.
func (c *Cursor) LastSync() *time.Time {
	switch {
	case c.LastFullSync == nil:
		return c.LastDeltaSync
	case c.LastDeltaSync == nil:
		return c.LastFullSync
	case c.LastDeltaSync.After(*c.LastFullSync):
		return c.LastDeltaSync
	default:
		return c.LastFullSync
	}
}

// ClientInfo describes the syncing client. Metadata only.
type ClientInfo struct {
	Platform   string
	AppVersion string
	Model      string
}

// Snapshot is the result of a full sync: every entity of the owner read
// inside one consistent transaction.
type Snapshot struct {
	Owner         *profile.Owner
	Devices       []*device.Device
	Activity      []*activity.Entry
	Notifications []*notification.Notification
	Settings      *notification.Settings
	Cursor        *Cursor
	ServerTime    time.Time
}

// ChangeSet is everything of an owner's that changed after a cursor,
// partitioned into updated and soft-deleted.
type ChangeSet struct {
	Profile              *profile.Owner
	DevicesUpdated       []*device.Device
	DevicesDeleted       []string
	Activity             []*activity.Entry
	NotificationsCreated []*notification.Notification
	NotificationsRead    []*notification.Notification
	SettingsChanged      *notification.Settings
}

// Empty reports whether nothing changed.
func (c *ChangeSet) Empty() bool {
	return c.Profile == nil &&
		len(c.DevicesUpdated) == 0 &&
		len(c.DevicesDeleted) == 0 &&
		len(c.Activity) == 0 &&
		len(c.NotificationsCreated) == 0 &&
		len(c.NotificationsRead) == 0 &&
		c.SettingsChanged == nil
}

// Delta is the result of an incremental sync.
type Delta struct {
	Changes    *ChangeSet
	Conflicts  []Conflict
	Cursor     *Cursor
	ServerTime time.Time
}

// DeltaResult wraps a delta or the demand for a full resync when the client
// cursor fell behind the retention horizon.
type DeltaResult struct {
	FullSyncRequired bool
	Delta            *Delta
}

// Entity names the record kinds a client may submit changes for.
type Entity string

const (
	EntityDevice               Entity = "device"
	EntityNotification         Entity = "notification"
	EntityNotificationSettings Entity = "notification_settings"
)

// ChangeAction is what the client wants done.
type ChangeAction string

const (
	ActionUpdate ChangeAction = "update"
	ActionDelete ChangeAction = "delete"
)

// ClientChange is one mutation the client performed locally while offline.
type ClientChange struct {
	Entity    Entity
	EntityID  string
	Action    ChangeAction
	ChangedAt time.Time
	Payload   json.RawMessage
}

// ConflictReason explains a rejected client change.
type ConflictReason string

const (
	// ReasonDeletedOnServer: the target was soft-deleted server-side after
	// the client's cursor.
	ReasonDeletedOnServer ConflictReason = "deleted_on_server"

	// ReasonNewerOnServer: the server record changed after the client's
	// cursor and the client intent does not match the server state.
	ReasonNewerOnServer ConflictReason = "newer_on_server"

	// ReasonUnknownEntity: the target does not exist for this owner.
	ReasonUnknownEntity ConflictReason = "unknown_entity"
)

// Conflict reports one rejected client change. The client must discard its
// local version.
type Conflict struct {
	Entity          Entity
	EntityID        string
	Reason          ConflictReason
	ServerUpdatedAt *time.Time
}
