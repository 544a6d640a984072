package notification

import (
	"context"
	"errors"
	"regexp"
	"time"

	"github.com/rs/zerolog"

	"github.com/dosepoint/dosepoint/internal/apperr"
)

const (
	defaultListLimit = 50
	maxListLimit     = 200
)

var reminderTimePattern = regexp.MustCompile(`^([01][0-9]|2[0-3]):[0-5][0-9]$`)

// Service exposes the notification surface used by the API handlers.
type Service struct {
	repo   Repository
	logger zerolog.Logger
	now    func() time.Time
}

// NewService creates a notification service.
func NewService(repo Repository, logger zerolog.Logger) *Service {
	return &Service{
		repo:   repo,
		logger: logger,
		now:    func() time.Time { return time.Now().UTC() },
	}
}

// List retrieves a filtered page of the owner's notifications, newest first.
func (s *Service) List(ctx context.Context, ownerID string, filter Filter) (*ListResult, error) {
	if filter.Type != nil && !filter.Type.Valid() {
		return nil, apperr.Newf(apperr.KindInvalid, "unknown notification type %q", *filter.Type)
	}
	if filter.Limit <= 0 {
		filter.Limit = defaultListLimit
	}
	if filter.Limit > maxListLimit {
		filter.Limit = maxListLimit
	}
	if filter.Offset < 0 {
		filter.Offset = 0
	}

	result, err := s.repo.List(ctx, ownerID, filter)
	if err != nil {
		return nil, apperr.Wrap(apperr.KindInternal, "listing notifications", err)
	}
	return result, nil
}

// Get retrieves one of the owner's notifications.
func (s *Service) Get(ctx context.Context, ownerID, notificationID string) (*Notification, error) {
	n, err := s.repo.Get(ctx, ownerID, notificationID)
	if errors.Is(err, ErrNotificationNotFound) {
		return nil, apperr.New(apperr.KindNotFound, "notification not found")
	}
	if err != nil {
		return nil, apperr.Wrap(apperr.KindInternal, "loading notification", err)
	}
	return n, nil
}

// MarkRead marks a notification read. Marking an already read notification is
// a no-op; the returned notification reflects the stored state either way.
func (s *Service) MarkRead(ctx context.Context, ownerID, notificationID string) (*Notification, error) {
	_, err := s.repo.MarkRead(ctx, ownerID, notificationID, s.now())
	if errors.Is(err, ErrNotificationNotFound) {
		return nil, apperr.New(apperr.KindNotFound, "notification not found")
	}
	if err != nil {
		return nil, apperr.Wrap(apperr.KindInternal, "marking notification read", err)
	}
	return s.Get(ctx, ownerID, notificationID)
}

// MarkAllRead marks every unread notification of the owner read and returns
// how many changed.
func (s *Service) MarkAllRead(ctx context.Context, ownerID string) (int, error) {
	count, err := s.repo.MarkAllRead(ctx, ownerID, s.now())
	if err != nil {
		return 0, apperr.Wrap(apperr.KindInternal, "marking notifications read", err)
	}
	return count, nil
}

// UnreadCount counts the owner's unread notifications.
func (s *Service) UnreadCount(ctx context.Context, ownerID string) (int, error) {
	count, err := s.repo.UnreadCount(ctx, ownerID)
	if err != nil {
		return 0, apperr.Wrap(apperr.KindInternal, "counting unread notifications", err)
	}
	return count, nil
}

// GetSettings retrieves the owner's notification settings, falling back to
// defaults when none were ever saved.
func (s *Service) GetSettings(ctx context.Context, ownerID string) (*Settings, error) {
	settings, err := s.repo.GetSettings(ctx, ownerID)
	if errors.Is(err, ErrSettingsNotFound) {
		return DefaultSettings(ownerID), nil
	}
	if err != nil {
		return nil, apperr.Wrap(apperr.KindInternal, "loading notification settings", err)
	}
	return settings, nil
}

// SettingsUpdate carries a partial settings change. Nil fields are untouched.
type SettingsUpdate struct {
	ReminderEnabled      *bool
	ReminderTime         *string
	LowBatteryEnabled    *bool
	LowSupplementEnabled *bool
	AchievementEnabled   *bool
	PushToken            *string
	PushPlatform         *string
}

// UpdateSettings applies a partial change on top of the stored settings.
func (s *Service) UpdateSettings(ctx context.Context, ownerID string, update SettingsUpdate) (*Settings, error) {
	if update.ReminderTime != nil && !reminderTimePattern.MatchString(*update.ReminderTime) {
		return nil, apperr.Newf(apperr.KindInvalid, "reminder time %q is not HH:MM", *update.ReminderTime)
	}
	if update.PushPlatform != nil {
		switch *update.PushPlatform {
		case "ios", "android":
		default:
			return nil, apperr.Newf(apperr.KindInvalid, "unknown push platform %q", *update.PushPlatform)
		}
	}

	settings, err := s.GetSettings(ctx, ownerID)
	if err != nil {
		return nil, err
	}

	if update.ReminderEnabled != nil {
		settings.ReminderEnabled = *update.ReminderEnabled
	}
	if update.ReminderTime != nil {
		settings.ReminderTime = *update.ReminderTime
	}
	if update.LowBatteryEnabled != nil {
		settings.LowBatteryEnabled = *update.LowBatteryEnabled
	}
	if update.LowSupplementEnabled != nil {
		settings.LowSupplementEnabled = *update.LowSupplementEnabled
	}
	if update.AchievementEnabled != nil {
		settings.AchievementEnabled = *update.AchievementEnabled
	}
	if update.PushToken != nil {
		settings.PushToken = update.PushToken
	}
	if update.PushPlatform != nil {
		settings.PushPlatform = update.PushPlatform
	}
	settings.UpdatedAt = s.now()

	if err := s.repo.UpsertSettings(ctx, settings); err != nil {
		return nil, apperr.Wrap(apperr.KindInternal, "saving notification settings", err)
	}
	return settings, nil
}
