package notification

import (
	"context"
	"time"
)

// Repository defines the interface for notification persistence.
type Repository interface {
	// Insert creates a notification.
	Insert(ctx context.Context, n *Notification) error

	// Get retrieves a notification by owner ID and notification ID.
	Get(ctx context.Context, ownerID, notificationID string) (*Notification, error)

	// List retrieves a filtered page of an owner's notifications, newest first.
	List(ctx context.Context, ownerID string, filter Filter) (*ListResult, error)

	// MarkRead sets is_read and read_at together. Marking an already read
	// notification is a no-op and reports changed=false.
	MarkRead(ctx context.Context, ownerID, notificationID string, at time.Time) (changed bool, err error)

	// MarkAllRead marks every unread notification read and returns the count.
	MarkAllRead(ctx context.Context, ownerID string, at time.Time) (int, error)

	// UnreadCount counts an owner's unread notifications.
	UnreadCount(ctx context.Context, ownerID string) (int, error)

	// LatestUnread retrieves the newest unread notification matching
	// (owner, device, type) created after the cutoff. Used for cool-down
	// checks. Returns ErrNotificationNotFound when there is none.
	LatestUnread(ctx context.Context, ownerID string, deviceID *string, t Type, createdAfter time.Time) (*Notification, error)

	// CreatedSince retrieves an owner's notifications created after the
	// cursor, oldest first.
	CreatedSince(ctx context.Context, ownerID string, since time.Time) ([]*Notification, error)

	// ReadSince retrieves an owner's notifications whose read_at is after
	// the cursor, oldest first.
	ReadSince(ctx context.Context, ownerID string, since time.Time) ([]*Notification, error)

	// GetSettings retrieves an owner's notification settings.
	// Returns ErrSettingsNotFound when the owner never saved any.
	GetSettings(ctx context.Context, ownerID string) (*Settings, error)

	// UpsertSettings creates or replaces an owner's notification settings.
	UpsertSettings(ctx context.Context, s *Settings) error
}
