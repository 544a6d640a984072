package models

import (
	"encoding/json"

	"github.com/dosepoint/dosepoint/internal/profile"
	"github.com/dosepoint/dosepoint/internal/sync"
)

// OwnerProfile represents an owner profile inside sync payloads.
type OwnerProfile struct {
	ID       string  `json:"id"`
	Email    string  `json:"email"`
	FullName string  `json:"fullName"`
	Phone    *string `json:"phone,omitempty"`
	Language string  `json:"language"`
	TimeZone string  `json:"timezone"`
}

// OwnerFromDomain converts a domain owner to its API representation.
func OwnerFromDomain(o *profile.Owner) *OwnerProfile {
	if o == nil {
		return nil
	}
	return &OwnerProfile{
		ID:       o.ID,
		Email:    o.Email,
		FullName: o.FullName,
		Phone:    o.Phone,
		Language: o.Language,
		TimeZone: o.TimeZone,
	}
}

// SyncCursor represents an owner's sync cursor.
type SyncCursor struct {
	LastFullSync  *Timestamp `json:"lastFullSync,omitempty"`
	LastDeltaSync *Timestamp `json:"lastDeltaSync,omitempty"`
	Status        string     `json:"status"`
}

// CursorFromDomain converts a domain cursor to its API representation.
func CursorFromDomain(c *sync.Cursor) *SyncCursor {
	if c == nil {
		return nil
	}
	return &SyncCursor{
		LastFullSync:  TimestampPtr(c.LastFullSync),
		LastDeltaSync: TimestampPtr(c.LastDeltaSync),
		Status:        string(c.Status),
	}
}

// ClientInfo describes the syncing client.
type ClientInfo struct {
	Platform   string `json:"platform,omitempty"`
	AppVersion string `json:"appVersion,omitempty"`
	Model      string `json:"model,omitempty"`
}

// FullSyncRequest is the request body for a full sync.
type FullSyncRequest struct {
	ClientInfo     ClientInfo `json:"clientInfo"`
	IncludeDeleted bool       `json:"includeDeleted,omitempty"`
}

// FullSyncResponse is the complete snapshot returned by a full sync.
type FullSyncResponse struct {
	Profile       *OwnerProfile        `json:"profile"`
	Devices       []Device             `json:"devices"`
	Activity      []ActivityEntry      `json:"activity"`
	Notifications []Notification       `json:"notifications"`
	Settings      NotificationSettings `json:"settings"`
	Cursor        *SyncCursor          `json:"cursor"`
	ServerTime    Timestamp            `json:"serverTime"`
}

// ClientChange is one locally performed mutation submitted with a delta sync.
type ClientChange struct {
	Entity    string          `json:"entity" validate:"required,oneof=device notification notification_settings"`
	EntityID  string          `json:"entityId" validate:"required"`
	Action    string          `json:"action" validate:"required,oneof=update delete"`
	ChangedAt *Timestamp      `json:"changedAt,omitempty"`
	Payload   json.RawMessage `json:"payload,omitempty"`
}

// DeltaSyncRequest is the request body for an incremental sync.
type DeltaSyncRequest struct {
	LastSyncTimestamp Timestamp      `json:"lastSyncTimestamp" validate:"required"`
	Changes           []ClientChange `json:"changes,omitempty"`
}

// SyncConflict reports one rejected client change.
type SyncConflict struct {
	Entity          string     `json:"entity"`
	EntityID        string     `json:"entityId"`
	Reason          string     `json:"reason"`
	ServerUpdatedAt *Timestamp `json:"serverUpdatedAt,omitempty"`
}

// DeltaChanges carries the changed server records, partitioned.
type DeltaChanges struct {
	Profile              *OwnerProfile         `json:"profile,omitempty"`
	DevicesUpdated       []Device              `json:"devicesUpdated"`
	DevicesDeleted       []string              `json:"devicesDeleted"`
	Activity             []ActivityEntry       `json:"activity"`
	NotificationsCreated []Notification        `json:"notificationsCreated"`
	NotificationsRead    []Notification        `json:"notificationsRead"`
	Settings             *NotificationSettings `json:"settings,omitempty"`
}

// DeltaSyncResponse is the result of an incremental sync. When
// FullSyncRequired is set no other field carries data.
type DeltaSyncResponse struct {
	FullSyncRequired bool           `json:"fullSyncRequired"`
	Changes          *DeltaChanges  `json:"changes,omitempty"`
	Conflicts        []SyncConflict `json:"conflicts,omitempty"`
	Cursor           *SyncCursor    `json:"cursor,omitempty"`
	ServerTime       *Timestamp     `json:"serverTime,omitempty"`
}

// SyncStatusResponse reports the owner's sync position.
type SyncStatusResponse struct {
	Cursor        *SyncCursor `json:"cursor,omitempty"`
	NeedsFullSync bool        `json:"needsFullSync"`
	ServerTime    Timestamp   `json:"serverTime"`
}
