// Package dispense implements the device state engine: it consumes one
// device observation, classifies the cup transition, decides whether a dose
// may be released, and applies all derived writes in a single transaction
// serialized per device.
package dispense

import (
	"errors"
	"time"
)

// Store errors.
var (
	// ErrNoObservation is returned when a device has no stored observations.
	ErrNoObservation = errors.New("no observation stored for device")

	// ErrContention is returned when a transaction timed out or lost a lock
	// or serialization race. Safe to retry.
	ErrContention = errors.New("storage contention")
)

// MaxSensorReading bounds the raw sensor value a device may report.
const MaxSensorReading = 999.99

// Observation is one append-only device state report. ReceivedAt is assigned
// by the server and is the ordering authority; ObservedAt is the device's own
// clock, kept as metadata.
type Observation struct {
	ID            string
	DeviceID      string
	CupPlaced     bool
	SensorReading float64
	ObservedAt    *time.Time
	ReceivedAt    time.Time
}

// Transition classifies an observation against the previous one.
type Transition string

const (
	TransitionNone       Transition = "no_change"
	TransitionCupPlaced  Transition = "cup_placed"
	TransitionCupRemoved Transition = "cup_removed"
)

// classifyTransition compares the new cup state against the previous
// observation. The first observation ever with the cup placed counts as a
// cup-placed transition.
func classifyTransition(prev *Observation, cupPlaced bool) Transition {
	prevPlaced := prev != nil && prev.CupPlaced
	switch {
	case cupPlaced && !prevPlaced:
		return TransitionCupPlaced
	case !cupPlaced && prevPlaced:
		return TransitionCupRemoved
	default:
		return TransitionNone
	}
}

// Reason explains why a dispense was refused.
type Reason string

const (
	ReasonCupNotPlaced       Reason = "cup_not_placed"
	ReasonNoTransition       Reason = "no_transition"
	ReasonSupplementEmpty    Reason = "supplement_empty"
	ReasonDeviceDisconnected Reason = "device_disconnected"
	ReasonDeviceInactive     Reason = "device_inactive"
	ReasonRecentDispense     Reason = "recent_dispense"
)

// Decision is the engine's verdict on one observation. The device releases a
// dose only when ShouldDispense is true; it never acts on its own judgment.
type Decision struct {
	ObservationID   string
	Transition      Transition
	ShouldDispense  bool
	DoseAmount      string // set only when ShouldDispense
	Reason          Reason // set only when not dispensing
	SupplementLevel int    // level after the decision was applied
}
