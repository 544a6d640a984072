// Package activity provides the append-only device activity log.
package activity

import (
	"errors"
	"time"
)

// Repository errors.
var (
	ErrEntryNotFound = errors.New("activity log entry not found")
)

// Action identifies what happened.
type Action string

const (
	ActionDoseDispensed      Action = "dose_dispensed"
	ActionDeviceConnected    Action = "device_connected"
	ActionDeviceDisconnected Action = "device_disconnected"
	ActionBatteryLow         Action = "battery_low"
	ActionSupplementLow      Action = "supplement_low"
	ActionDeviceActivated    Action = "device_activated"
	ActionDeviceDeactivated  Action = "device_deactivated"
	ActionFirmwareUpdated    Action = "firmware_updated"
)

// Trigger identifies what caused an action.
type Trigger string

const (
	TriggerAutomatic Trigger = "automatic"
	TriggerManual    Trigger = "manual"
	TriggerScheduled Trigger = "scheduled"
)

// Entry is one row in the activity log. Entries are write-once: they are
// inserted in the same transaction as the event they record and never updated.
type Entry struct {
	ID          string
	DeviceID    string
	OwnerID     string
	Action      Action
	DoseAmount  *string
	TriggeredBy Trigger
	Metadata    map[string]string
	OccurredAt  time.Time
}

// ListOptions filters activity listings.
type ListOptions struct {
	From  *time.Time
	To    *time.Time
	Limit int
}

// DoseStats summarizes dispensing for a device.
type DoseStats struct {
	DeviceID   string
	TotalDoses int
	FirstDose  *time.Time
	LastDose   *time.Time
}
