package models

import "github.com/dosepoint/dosepoint/internal/dispense"

// DeviceStateRequest is the request body for one device state observation.
type DeviceStateRequest struct {
	CupPlaced     bool       `json:"cupPlaced"`
	SensorReading float64    `json:"sensorReading" validate:"gte=0,lte=999.99"`
	ObservedAt    *Timestamp `json:"observedAt,omitempty"`
}

// DispenseDecision is the engine's verdict returned to the device.
type DispenseDecision struct {
	ObservationID   string  `json:"observationId"`
	Transition      string  `json:"transition"`
	ShouldDispense  bool    `json:"shouldDispense"`
	DoseAmount      *string `json:"doseAmount,omitempty"`
	Reason          *string `json:"reason,omitempty"`
	SupplementLevel int     `json:"supplementLevel"`
}

// DecisionFromDomain converts an engine decision to its API representation.
func DecisionFromDomain(d *dispense.Decision) DispenseDecision {
	out := DispenseDecision{
		ObservationID:   d.ObservationID,
		Transition:      string(d.Transition),
		ShouldDispense:  d.ShouldDispense,
		SupplementLevel: d.SupplementLevel,
	}
	if d.ShouldDispense {
		dose := d.DoseAmount
		out.DoseAmount = &dose
	} else {
		reason := string(d.Reason)
		out.Reason = &reason
	}
	return out
}
