package models

import "github.com/dosepoint/dosepoint/internal/notification"

// Notification represents one alert delivered to an owner.
type Notification struct {
	ID        string            `json:"id"`
	DeviceID  *string           `json:"deviceId,omitempty"`
	Type      string            `json:"type"`
	Title     string            `json:"title"`
	Message   string            `json:"message"`
	Metadata  map[string]string `json:"metadata,omitempty"`
	IsRead    bool              `json:"isRead"`
	CreatedAt Timestamp         `json:"createdAt"`
	ReadAt    *Timestamp        `json:"readAt,omitempty"`
}

// NotificationFromDomain converts a domain notification to its API representation.
func NotificationFromDomain(n *notification.Notification) Notification {
	return Notification{
		ID:        n.ID,
		DeviceID:  n.DeviceID,
		Type:      string(n.Type),
		Title:     n.Title,
		Message:   n.Message,
		Metadata:  n.Metadata,
		IsRead:    n.IsRead,
		CreatedAt: Timestamp(n.CreatedAt),
		ReadAt:    TimestampPtr(n.ReadAt),
	}
}

// NotificationsFromDomain converts a slice of domain notifications.
func NotificationsFromDomain(notifications []*notification.Notification) []Notification {
	items := make([]Notification, 0, len(notifications))
	for _, n := range notifications {
		items = append(items, NotificationFromDomain(n))
	}
	return items
}

// PagedNotifications represents a filtered page of notifications.
type PagedNotifications struct {
	Items []Notification `json:"items"`
	Meta  OffsetPageMeta `json:"meta"`
}

// UnreadCount reports how many notifications are unread.
type UnreadCount struct {
	Unread int `json:"unread"`
}

// MarkAllReadResult reports how many notifications a read-all changed.
type MarkAllReadResult struct {
	Updated int `json:"updated"`
}

// NotificationSettings represents an owner's notification preferences.
type NotificationSettings struct {
	ReminderEnabled      bool      `json:"reminderEnabled"`
	ReminderTime         string    `json:"reminderTime"`
	LowBatteryEnabled    bool      `json:"lowBatteryEnabled"`
	LowSupplementEnabled bool      `json:"lowSupplementEnabled"`
	AchievementEnabled   bool      `json:"achievementEnabled"`
	PushToken            *string   `json:"pushToken,omitempty"`
	PushPlatform         *string   `json:"pushPlatform,omitempty"`
	UpdatedAt            Timestamp `json:"updatedAt"`
}

// SettingsFromDomain converts domain settings to their API representation.
func SettingsFromDomain(s *notification.Settings) NotificationSettings {
	return NotificationSettings{
		ReminderEnabled:      s.ReminderEnabled,
		ReminderTime:         s.ReminderTime,
		LowBatteryEnabled:    s.LowBatteryEnabled,
		LowSupplementEnabled: s.LowSupplementEnabled,
		AchievementEnabled:   s.AchievementEnabled,
		PushToken:            s.PushToken,
		PushPlatform:         s.PushPlatform,
		UpdatedAt:            Timestamp(s.UpdatedAt),
	}
}

// NotificationSettingsUpdateRequest is the request body for editing settings.
type NotificationSettingsUpdateRequest struct {
	ReminderEnabled      *bool   `json:"reminderEnabled,omitempty"`
	ReminderTime         *string `json:"reminderTime,omitempty"`
	LowBatteryEnabled    *bool   `json:"lowBatteryEnabled,omitempty"`
	LowSupplementEnabled *bool   `json:"lowSupplementEnabled,omitempty"`
	AchievementEnabled   *bool   `json:"achievementEnabled,omitempty"`
	PushToken            *string `json:"pushToken,omitempty"`
	PushPlatform         *string `json:"pushPlatform,omitempty" validate:"omitempty,oneof=ios android"`
}
