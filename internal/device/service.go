package device

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/dosepoint/dosepoint/internal/activity"
	"github.com/dosepoint/dosepoint/internal/apperr"
	"github.com/dosepoint/dosepoint/internal/notification"
)

// LowLevelThreshold is the battery and supplement percentage at or below
// which a low-level alert fires. Alerts are edge triggered: a report fires
// one only when the previous level was above the threshold.
const LowLevelThreshold = 20

const maxNameLength = 100

// Alerter raises notifications for device conditions. Satisfied by
// notification.TriggerEngine.
type Alerter interface {
	Trigger(ctx context.Context, req notification.TriggerRequest) (*notification.Notification, error)
}

// Service handles device registration, telemetry, and lifecycle.
type Service struct {
	repo     Repository
	activity activity.Repository
	alerter  Alerter
	logger   zerolog.Logger
	now      func() time.Time
}

// NewService creates a device service. alerter may be nil, in which case no
// notifications are raised.
func NewService(repo Repository, activityRepo activity.Repository, alerter Alerter, logger zerolog.Logger) *Service {
	return &Service{
		repo:     repo,
		activity: activityRepo,
		alerter:  alerter,
		logger:   logger,
		now:      func() time.Time { return time.Now().UTC() },
	}
}

// RegisterInput contains the fields for registering a dispenser.
type RegisterInput struct {
	Name            string
	Type            Type
	MACAddress      string
	SerialNumber    string
	Location        *string
	FirmwareVersion *string
}

// Register registers a new dispenser for the owner. The reservoir and battery
// start full; the MAC address is normalized to uppercase colon form.
func (s *Service) Register(ctx context.Context, ownerID string, input RegisterInput) (*Device, error) {
	name := strings.TrimSpace(input.Name)
	if name == "" || len(name) > maxNameLength {
		return nil, apperr.New(apperr.KindInvalid, "device name must be 1-100 characters")
	}
	if !input.Type.Valid() {
		return nil, apperr.Newf(apperr.KindInvalid, "unknown device type %q", input.Type)
	}
	if !ValidMACAddress(input.MACAddress) {
		return nil, apperr.Newf(apperr.KindInvalid, "malformed mac address %q", input.MACAddress)
	}
	serial := strings.ToUpper(strings.TrimSpace(input.SerialNumber))
	if !ValidSerialNumber(serial) {
		return nil, apperr.New(apperr.KindInvalid, "serial number must be 8-100 alphanumeric characters")
	}

	now := s.now()
	d := &Device{
		ID:              uuid.NewString(),
		OwnerID:         ownerID,
		Name:            name,
		Type:            input.Type,
		MACAddress:      NormalizeMACAddress(input.MACAddress),
		SerialNumber:    serial,
		Location:        input.Location,
		BatteryLevel:    100,
		SupplementLevel: 100,
		FirmwareVersion: input.FirmwareVersion,
		IsActive:        true,
		CreatedAt:       now,
		UpdatedAt:       now,
	}

	if err := s.repo.Create(ctx, d); err != nil {
		if errors.Is(err, ErrDuplicateDevice) {
			return nil, apperr.New(apperr.KindConflict, "a device with this mac address or serial number is already registered")
		}
		return nil, apperr.Wrap(apperr.KindInternal, "registering device", err)
	}

	s.logActivity(ctx, d, activity.ActionDeviceActivated, activity.TriggerManual, nil)

	s.logger.Info().
		Str("device_id", d.ID).
		Str("owner_id", ownerID).
		Str("type", string(d.Type)).
		Msg("device registered")

	return d, nil
}

// Get retrieves one of the owner's devices.
func (s *Service) Get(ctx context.Context, ownerID, deviceID string) (*Device, error) {
	d, err := s.repo.GetByOwner(ctx, ownerID, deviceID)
	if errors.Is(err, ErrDeviceNotFound) {
		return nil, apperr.New(apperr.KindNotFound, "device not found")
	}
	if err != nil {
		return nil, apperr.Wrap(apperr.KindInternal, "loading device", err)
	}
	return d, nil
}

// List retrieves the owner's devices.
func (s *Service) List(ctx context.Context, ownerID string, opts ListOptions) (*ListResult, error) {
	result, err := s.repo.ListByOwner(ctx, ownerID, opts)
	if err != nil {
		return nil, apperr.Wrap(apperr.KindInternal, "listing devices", err)
	}
	return result, nil
}

// UpdateInput contains the owner-editable device fields. Nil fields are
// untouched.
type UpdateInput struct {
	Name     *string
	Location *string
}

// Update changes the owner-editable fields of a device.
func (s *Service) Update(ctx context.Context, ownerID, deviceID string, input UpdateInput) (*Device, error) {
	if input.Name != nil {
		trimmed := strings.TrimSpace(*input.Name)
		if trimmed == "" || len(trimmed) > maxNameLength {
			return nil, apperr.New(apperr.KindInvalid, "device name must be 1-100 characters")
		}
		input.Name = &trimmed
	}

	d, err := s.Get(ctx, ownerID, deviceID)
	if err != nil {
		return nil, err
	}

	if input.Name != nil {
		d.Name = *input.Name
	}
	if input.Location != nil {
		d.Location = input.Location
	}
	d.UpdatedAt = s.now()

	if err := s.repo.Update(ctx, d); err != nil {
		return nil, apperr.Wrap(apperr.KindInternal, "updating device", err)
	}
	return d, nil
}

// TelemetryInput carries a device telemetry report. Nil fields are untouched.
type TelemetryInput struct {
	BatteryLevel    *int
	SupplementLevel *int
	IsConnected     *bool
	FirmwareVersion *string
}

// ReportTelemetry applies a telemetry report from a device, records
// connectivity and firmware transitions in the activity log, and raises
// low-level alerts on downward threshold crossings.
func (s *Service) ReportTelemetry(ctx context.Context, ownerID, deviceID string, input TelemetryInput) (*Device, error) {
	if input.BatteryLevel != nil && !ValidLevel(*input.BatteryLevel) {
		return nil, apperr.Newf(apperr.KindInvalid, "battery level %d outside [0,100]", *input.BatteryLevel)
	}
	if input.SupplementLevel != nil && !ValidLevel(*input.SupplementLevel) {
		return nil, apperr.Newf(apperr.KindInvalid, "supplement level %d outside [0,100]", *input.SupplementLevel)
	}

	d, err := s.Get(ctx, ownerID, deviceID)
	if err != nil {
		return nil, err
	}
	if !d.IsActive {
		return nil, apperr.New(apperr.KindConflict, "device is deactivated")
	}

	prevBattery := d.BatteryLevel
	prevSupplement := d.SupplementLevel
	prevConnected := d.IsConnected
	prevFirmware := d.FirmwareVersion

	now := s.now()
	if input.BatteryLevel != nil {
		d.BatteryLevel = *input.BatteryLevel
	}
	if input.SupplementLevel != nil {
		d.SupplementLevel = *input.SupplementLevel
	}
	if input.IsConnected != nil {
		d.IsConnected = *input.IsConnected
	}
	if input.FirmwareVersion != nil {
		d.FirmwareVersion = input.FirmwareVersion
	}
	d.LastSync = &now
	d.UpdatedAt = now

	if err := s.repo.Update(ctx, d); err != nil {
		return nil, apperr.Wrap(apperr.KindInternal, "updating device telemetry", err)
	}

	if input.IsConnected != nil && *input.IsConnected != prevConnected {
		action := activity.ActionDeviceDisconnected
		if *input.IsConnected {
			action = activity.ActionDeviceConnected
		}
		s.logActivity(ctx, d, action, activity.TriggerAutomatic, nil)
	}

	if input.FirmwareVersion != nil && (prevFirmware == nil || *prevFirmware != *input.FirmwareVersion) {
		s.logActivity(ctx, d, activity.ActionFirmwareUpdated, activity.TriggerAutomatic, map[string]string{
			"firmware_version": *input.FirmwareVersion,
		})
	}

	if crossedThreshold(prevBattery, d.BatteryLevel) {
		s.logActivity(ctx, d, activity.ActionBatteryLow, activity.TriggerAutomatic, map[string]string{
			"battery_level": strconv.Itoa(d.BatteryLevel),
		})
		s.alert(ctx, d, notification.TypeLowBattery,
			"Low battery",
			fmt.Sprintf("%s battery is at %d%%", d.Name, d.BatteryLevel))
	}
	if crossedThreshold(prevSupplement, d.SupplementLevel) {
		s.logActivity(ctx, d, activity.ActionSupplementLow, activity.TriggerAutomatic, map[string]string{
			"supplement_level": strconv.Itoa(d.SupplementLevel),
		})
		s.alert(ctx, d, notification.TypeLowSupplement,
			"Supplement running low",
			fmt.Sprintf("%s supplement is at %d%%, about %d doses left", d.Name, d.SupplementLevel, d.DosesRemaining()))
	}

	return d, nil
}

// Deactivate soft-deletes a device. History rows are retained.
func (s *Service) Deactivate(ctx context.Context, ownerID, deviceID string) error {
	d, err := s.Get(ctx, ownerID, deviceID)
	if err != nil {
		return err
	}
	if !d.IsActive {
		return nil
	}

	if err := s.repo.SoftDelete(ctx, ownerID, deviceID, s.now()); err != nil {
		if errors.Is(err, ErrDeviceNotFound) {
			return apperr.New(apperr.KindNotFound, "device not found")
		}
		return apperr.Wrap(apperr.KindInternal, "deactivating device", err)
	}

	s.logActivity(ctx, d, activity.ActionDeviceDeactivated, activity.TriggerManual, nil)

	s.logger.Info().
		Str("device_id", deviceID).
		Str("owner_id", ownerID).
		Msg("device deactivated")

	return nil
}

// Stats summarizes dispensing for one of the owner's devices.
func (s *Service) Stats(ctx context.Context, ownerID, deviceID string) (*activity.DoseStats, error) {
	if _, err := s.Get(ctx, ownerID, deviceID); err != nil {
		return nil, err
	}
	stats, err := s.activity.DoseStatsByDevice(ctx, deviceID)
	if err != nil {
		return nil, apperr.Wrap(apperr.KindInternal, "loading dose stats", err)
	}
	return stats, nil
}

func crossedThreshold(prev, current int) bool {
	return prev > LowLevelThreshold && current <= LowLevelThreshold
}

func (s *Service) logActivity(ctx context.Context, d *Device, action activity.Action, trigger activity.Trigger, metadata map[string]string) {
	entry := &activity.Entry{
		ID:          uuid.NewString(),
		DeviceID:    d.ID,
		OwnerID:     d.OwnerID,
		Action:      action,
		TriggeredBy: trigger,
		Metadata:    metadata,
		OccurredAt:  s.now(),
	}
	if err := s.activity.Insert(ctx, entry); err != nil {
		s.logger.Error().
			Err(err).
			Str("device_id", d.ID).
			Str("action", string(action)).
			Msg("failed to record activity entry")
	}
}

func (s *Service) alert(ctx context.Context, d *Device, t notification.Type, title, message string) {
	if s.alerter == nil {
		return
	}
	deviceID := d.ID
	_, err := s.alerter.Trigger(ctx, notification.TriggerRequest{
		OwnerID:  d.OwnerID,
		DeviceID: &deviceID,
		Type:     t,
		Title:    title,
		Message:  message,
	})
	if err != nil {
		s.logger.Warn().
			Err(err).
			Str("device_id", d.ID).
			Str("type", string(t)).
			Msg("failed to raise device alert")
	}
}
