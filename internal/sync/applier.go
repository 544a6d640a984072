package sync

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/dosepoint/dosepoint/internal/apperr"
	"github.com/dosepoint/dosepoint/internal/device"
	"github.com/dosepoint/dosepoint/internal/notification"
)

// ChangeApplier loads server state for and applies client-submitted changes.
// The orchestrator consults State before Apply; Apply only runs for changes
// the resolver accepted.
type ChangeApplier interface {
	State(ctx context.Context, ownerID string, change ClientChange) (ServerState, error)
	Apply(ctx context.Context, ownerID string, change ClientChange) error
}

// ServiceApplier routes client changes through the regular entity services so
// offline edits obey the same validation as direct calls.
type ServiceApplier struct {
	devices       *device.Service
	notifications *notification.Service
	deviceRepo    device.Repository
	ntfRepo       notification.Repository
}

// NewServiceApplier creates a change applier over the entity services.
func NewServiceApplier(
	devices *device.Service,
	notifications *notification.Service,
	deviceRepo device.Repository,
	ntfRepo notification.Repository,
) *ServiceApplier {
	return &ServiceApplier{
		devices:       devices,
		notifications: notifications,
		deviceRepo:    deviceRepo,
		ntfRepo:       ntfRepo,
	}
}

// State loads the resolver's view of the targeted record.
func (a *ServiceApplier) State(ctx context.Context, ownerID string, change ClientChange) (ServerState, error) {
	switch change.Entity {
	case EntityDevice:
		d, err := a.deviceRepo.GetByOwner(ctx, ownerID, change.EntityID)
		if errors.Is(err, device.ErrDeviceNotFound) {
			return ServerState{}, nil
		}
		if err != nil {
			return ServerState{}, fmt.Errorf("loading device state: %w", err)
		}
		return ServerState{
			Exists:    true,
			Deleted:   !d.IsActive,
			UpdatedAt: d.UpdatedAt,
		}, nil

	case EntityNotification:
		n, err := a.ntfRepo.Get(ctx, ownerID, change.EntityID)
		if errors.Is(err, notification.ErrNotificationNotFound) {
			return ServerState{}, nil
		}
		if err != nil {
			return ServerState{}, fmt.Errorf("loading notification state: %w", err)
		}
		updatedAt := n.CreatedAt
		if n.ReadAt != nil {
			updatedAt = *n.ReadAt
		}
		return ServerState{
			Exists:    true,
			UpdatedAt: updatedAt,
			// The only client mutation on a notification is mark-read.
			Satisfied: n.IsRead,
		}, nil

	case EntityNotificationSettings:
		// Settings always exist (defaults stand in) and the latest write
		// wins without conflict reporting.
		settings, err := a.notifications.GetSettings(ctx, ownerID)
		if err != nil {
			return ServerState{}, err
		}
		return ServerState{Exists: true, UpdatedAt: settings.UpdatedAt}, nil

	default:
		return ServerState{}, apperr.Newf(apperr.KindInvalid, "unknown change entity %q", change.Entity)
	}
}

// devicePayload is the client-editable device subset.
type devicePayload struct {
	Name     *string `json:"name"`
	Location *string `json:"location"`
}

// settingsPayload mirrors notification.SettingsUpdate on the wire.
type settingsPayload struct {
	ReminderEnabled      *bool   `json:"reminder_enabled"`
	ReminderTime         *string `json:"reminder_time"`
	LowBatteryEnabled    *bool   `json:"low_battery_enabled"`
	LowSupplementEnabled *bool   `json:"low_supplement_enabled"`
	AchievementEnabled   *bool   `json:"achievement_enabled"`
	PushToken            *string `json:"push_token"`
	PushPlatform         *string `json:"push_platform"`
}

// Apply performs one accepted client change.
func (a *ServiceApplier) Apply(ctx context.Context, ownerID string, change ClientChange) error {
	switch change.Entity {
	case EntityDevice:
		if change.Action == ActionDelete {
			return a.devices.Deactivate(ctx, ownerID, change.EntityID)
		}
		var payload devicePayload
		if err := json.Unmarshal(change.Payload, &payload); err != nil {
			return apperr.Wrap(apperr.KindInvalid, "malformed device change payload", err)
		}
		_, err := a.devices.Update(ctx, ownerID, change.EntityID, device.UpdateInput{
			Name:     payload.Name,
			Location: payload.Location,
		})
		return err

	case EntityNotification:
		if change.Action == ActionDelete {
			return apperr.New(apperr.KindInvalid, "notifications cannot be deleted")
		}
		_, err := a.notifications.MarkRead(ctx, ownerID, change.EntityID)
		return err

	case EntityNotificationSettings:
		if change.Action == ActionDelete {
			return apperr.New(apperr.KindInvalid, "notification settings cannot be deleted")
		}
		var payload settingsPayload
		if err := json.Unmarshal(change.Payload, &payload); err != nil {
			return apperr.Wrap(apperr.KindInvalid, "malformed settings change payload", err)
		}
		_, err := a.notifications.UpdateSettings(ctx, ownerID, notification.SettingsUpdate{
			ReminderEnabled:      payload.ReminderEnabled,
			ReminderTime:         payload.ReminderTime,
			LowBatteryEnabled:    payload.LowBatteryEnabled,
			LowSupplementEnabled: payload.LowSupplementEnabled,
			AchievementEnabled:   payload.AchievementEnabled,
			PushToken:            payload.PushToken,
			PushPlatform:         payload.PushPlatform,
		})
		return err

	default:
		return apperr.Newf(apperr.KindInvalid, "unknown change entity %q", change.Entity)
	}
}

var _ ChangeApplier = (*ServiceApplier)(nil)
