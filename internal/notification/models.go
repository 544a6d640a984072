// Package notification provides notification storage and the trigger engine
// that de-duplicates alerts and hands them to the push dispatcher.
package notification

import (
	"errors"
	"time"
)

// Repository errors.
var (
	ErrNotificationNotFound = errors.New("notification not found")
	ErrSettingsNotFound     = errors.New("notification settings not found")
)

// Type identifies the kind of notification.
type Type string

const (
	TypeReminder      Type = "reminder"
	TypeLowBattery    Type = "low_battery"
	TypeLowSupplement Type = "low_supplement"
	TypeAchievement   Type = "achievement"
)

// Valid reports whether the type is known.
func (t Type) Valid() bool {
	switch t {
	case TypeReminder, TypeLowBattery, TypeLowSupplement, TypeAchievement:
		return true
	}
	return false
}

// Notification is one alert delivered to an owner. Only is_read/read_at
// mutate after creation; read_at is non-nil exactly when is_read is true.
type Notification struct {
	ID        string
	OwnerID   string
	DeviceID  *string
	Type      Type
	Title     string
	Message   string
	Metadata  map[string]string
	IsRead    bool
	CreatedAt time.Time
	ReadAt    *time.Time
}

// Settings holds an owner's notification preferences and push registration.
// Toggles are edited by the surrounding CRUD surface; the trigger engine and
// the sync snapshot only read them.
type Settings struct {
	OwnerID              string
	ReminderEnabled      bool
	ReminderTime         string // HH:MM local
	LowBatteryEnabled    bool
	LowSupplementEnabled bool
	AchievementEnabled   bool
	PushToken            *string
	PushPlatform         *string
	UpdatedAt            time.Time
}

// DefaultSettings returns the settings applied to owners who never saved any.
func DefaultSettings(ownerID string) *Settings {
	return &Settings{
		OwnerID:              ownerID,
		ReminderEnabled:      true,
		ReminderTime:         "08:00",
		LowBatteryEnabled:    true,
		LowSupplementEnabled: true,
		AchievementEnabled:   true,
	}
}

// Enabled reports whether notifications of the given type are allowed.
func (s *Settings) Enabled(t Type) bool {
	switch t {
	case TypeReminder:
		return s.ReminderEnabled
	case TypeLowBattery:
		return s.LowBatteryEnabled
	case TypeLowSupplement:
		return s.LowSupplementEnabled
	case TypeAchievement:
		return s.AchievementEnabled
	default:
		return false
	}
}

// Filter selects notifications in listings.
type Filter struct {
	Type     *Type
	IsRead   *bool
	DeviceID *string
	Limit    int
	Offset   int
}

// ListResult contains a filtered page of notifications.
type ListResult struct {
	Total  int
	Limit  int
	Offset int
	Items  []*Notification
}
