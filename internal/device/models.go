// Package device provides dispenser registration, telemetry, and lifecycle management.
package device

import (
	"errors"
	"regexp"
	"strings"
	"time"
)

// Repository errors.
var (
	ErrDeviceNotFound    = errors.New("device not found")
	ErrDuplicateDevice   = errors.New("device with this mac address or serial number already exists")
	ErrDeviceDeactivated = errors.New("device is deactivated")
)

// Type identifies the kind of supplement dispenser.
type Type string

const (
	TypeFishOil  Type = "fish_oil"
	TypeVitaminD Type = "vitamin_d"
	TypeKrillOil Type = "krill_oil"
	TypeVegan    Type = "vegan"
)

// Valid reports whether the type is a known dispenser type.
func (t Type) Valid() bool {
	switch t {
	case TypeFishOil, TypeVitaminD, TypeKrillOil, TypeVegan:
		return true
	}
	return false
}

// DoseAmount returns the fixed per-dispense amount for the type.
func (t Type) DoseAmount() string {
	switch t {
	case TypeFishOil:
		return "5ml"
	case TypeVitaminD:
		return "1000 IU"
	case TypeKrillOil:
		return "3ml"
	case TypeVegan:
		return "5ml"
	default:
		return "1 dose"
	}
}

// Capacity returns the number of doses a full reservoir holds.
func (t Type) Capacity() int {
	switch t {
	case TypeFishOil:
		return 60
	case TypeVitaminD:
		return 100
	case TypeKrillOil:
		return 40
	case TypeVegan:
		return 60
	default:
		return 50
	}
}

// DosePercent returns how many percentage points of the reservoir one
// dispense consumes, derived from the capacity and rounded up.
func (t Type) DosePercent() int {
	capacity := t.Capacity()
	return (100 + capacity - 1) / capacity
}

// Device represents a supplement dispenser owned by exactly one account.
// MAC address and serial number are fixed at registration; telemetry fields
// change on every device push.
type Device struct {
	ID                  string
	OwnerID             string
	Name                string
	Type                Type
	MACAddress          string
	SerialNumber        string
	Location            *string
	BatteryLevel        int
	SupplementLevel     int
	IsConnected         bool
	FirmwareVersion     *string
	TotalDosesDispensed int
	LastSync            *time.Time
	IsActive            bool
	CreatedAt           time.Time
	UpdatedAt           time.Time
}

// DosesRemaining estimates remaining doses from the supplement level.
func (d *Device) DosesRemaining() int {
	return d.SupplementLevel * d.Type.Capacity() / 100
}

var (
	macRegex    = regexp.MustCompile(`^([0-9A-Fa-f]{2}[:-]){5}([0-9A-Fa-f]{2})$`)
	serialRegex = regexp.MustCompile(`^[A-Z0-9]{8,100}$`)
)

// ValidMACAddress reports whether mac is in XX:XX:XX:XX:XX:XX or
// XX-XX-XX-XX-XX-XX form.
func ValidMACAddress(mac string) bool {
	return macRegex.MatchString(mac)
}

// NormalizeMACAddress converts a MAC address to uppercase colon form.
func NormalizeMACAddress(mac string) string {
	return strings.ToUpper(strings.ReplaceAll(mac, "-", ":"))
}

// ValidSerialNumber reports whether serial is 8-100 alphanumeric characters.
func ValidSerialNumber(serial string) bool {
	return serialRegex.MatchString(strings.ToUpper(serial))
}

// ValidLevel reports whether a battery or supplement level is within [0,100].
func ValidLevel(level int) bool {
	return level >= 0 && level <= 100
}

// ListOptions contains options for listing devices.
type ListOptions struct {
	IncludeDeleted bool
	Limit          int
}

// ListResult contains the result of listing devices.
type ListResult struct {
	Items      []*Device
	NextCursor string
}
