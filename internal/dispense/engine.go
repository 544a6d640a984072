package dispense

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/dosepoint/dosepoint/internal/activity"
	"github.com/dosepoint/dosepoint/internal/apperr"
	"github.com/dosepoint/dosepoint/internal/device"
	"github.com/dosepoint/dosepoint/internal/notification"
)

// Config holds the dispense policy knobs.
type Config struct {
	// MinDispenseInterval refuses a second dispense within this window.
	// Default: 30 seconds
	MinDispenseInterval time.Duration

	// LowThreshold is the supplement percentage at or below which a
	// low-supplement alert fires on a downward crossing.
	// Default: 20
	LowThreshold int

	// TxTimeout bounds every engine transaction.
	// Default: 5 seconds
	TxTimeout time.Duration

	// HonorDeviceTime rejects observations whose device timestamp is
	// earlier than the previous observation's. Off by default; server
	// receipt time stays the ordering authority either way.
	HonorDeviceTime bool
}

// DefaultConfig returns the standard dispense policy.
func DefaultConfig() Config {
	return Config{
		MinDispenseInterval: 30 * time.Second,
		LowThreshold:        20,
		TxTimeout:           5 * time.Second,
	}
}

// Engine is the device state engine. One Observe call runs the full
// read-classify-decide-write sequence in a single transaction.
type Engine struct {
	store   Store
	alerter device.Alerter
	config  Config
	logger  zerolog.Logger
	now     func() time.Time
}

// NewEngine creates a state engine. alerter may be nil.
func NewEngine(store Store, alerter device.Alerter, cfg Config, logger zerolog.Logger) *Engine {
	if cfg.MinDispenseInterval == 0 {
		cfg.MinDispenseInterval = 30 * time.Second
	}
	if cfg.LowThreshold == 0 {
		cfg.LowThreshold = 20
	}
	if cfg.TxTimeout == 0 {
		cfg.TxTimeout = 5 * time.Second
	}
	return &Engine{
		store:   store,
		alerter: alerter,
		config:  cfg,
		logger:  logger,
		now:     func() time.Time { return time.Now().UTC() },
	}
}

// ObservationInput is one device state push.
type ObservationInput struct {
	CupPlaced     bool
	SensorReading float64
	ObservedAt    *time.Time
}

// Observe processes one observation for a device the owner holds. The
// observation append, transition classification, dispense decision, and every
// derived write commit or roll back together. Replaying the same observation
// is safe: without an intervening cup-removed a second cup-placed report
// never dispenses again.
func (e *Engine) Observe(ctx context.Context, ownerID, deviceID string, input ObservationInput) (*Decision, error) {
	if input.SensorReading < 0 || input.SensorReading > MaxSensorReading {
		return nil, apperr.Newf(apperr.KindInvalid, "sensor reading %.2f outside [0,%.2f]", input.SensorReading, MaxSensorReading)
	}

	ctx, cancel := context.WithTimeout(ctx, e.config.TxTimeout)
	defer cancel()

	tx, err := e.store.Begin(ctx)
	if err != nil {
		return nil, translateStoreErr("opening transaction", err)
	}

	decision, alert, err := e.observe(ctx, tx, ownerID, deviceID, input)
	if err != nil {
		_ = tx.Rollback(context.WithoutCancel(ctx))
		return nil, err
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, translateStoreErr("committing observation", err)
	}

	// Alerts go out only after the transaction is durable, and never block
	// the decision.
	if alert != nil && e.alerter != nil {
		if _, err := e.alerter.Trigger(ctx, *alert); err != nil {
			e.logger.Warn().
				Err(err).
				Str("device_id", deviceID).
				Msg("failed to raise low supplement alert")
		}
	}

	return decision, nil
}

func (e *Engine) observe(ctx context.Context, tx Tx, ownerID, deviceID string, input ObservationInput) (*Decision, *notification.TriggerRequest, error) {
	d, err := tx.GetDeviceForUpdate(ctx, ownerID, deviceID)
	if errors.Is(err, device.ErrDeviceNotFound) {
		return nil, nil, apperr.New(apperr.KindNotFound, "device not found")
	}
	if err != nil {
		return nil, nil, translateStoreErr("loading device", err)
	}

	prev, err := tx.LatestObservation(ctx, deviceID)
	if err != nil && !errors.Is(err, ErrNoObservation) {
		return nil, nil, translateStoreErr("loading previous observation", err)
	}

	if e.config.HonorDeviceTime && input.ObservedAt != nil && prev != nil && prev.ObservedAt != nil {
		if input.ObservedAt.Before(*prev.ObservedAt) {
			return nil, nil, apperr.New(apperr.KindConflict, "observation is older than the last stored observation")
		}
	}

	now := e.now()
	obs := &Observation{
		ID:            uuid.NewString(),
		DeviceID:      deviceID,
		CupPlaced:     input.CupPlaced,
		SensorReading: input.SensorReading,
		ObservedAt:    input.ObservedAt,
		ReceivedAt:    now,
	}
	if err := tx.InsertObservation(ctx, obs); err != nil {
		return nil, nil, translateStoreErr("storing observation", err)
	}

	transition := classifyTransition(prev, input.CupPlaced)
	decision := &Decision{
		ObservationID:   obs.ID,
		Transition:      transition,
		SupplementLevel: d.SupplementLevel,
	}

	prevLevel := d.SupplementLevel
	if reason, ok := e.refuse(ctx, tx, d, transition, input.CupPlaced, now); !ok {
		decision.Reason = reason
	} else {
		if err := e.applyDispense(ctx, tx, d, decision, now); err != nil {
			return nil, nil, err
		}
	}

	d.LastSync = &now
	d.UpdatedAt = now
	if err := tx.UpdateDevice(ctx, d); err != nil {
		return nil, nil, translateStoreErr("updating device", err)
	}

	var alert *notification.TriggerRequest
	if decision.ShouldDispense && crossedDown(prevLevel, d.SupplementLevel, e.config.LowThreshold) {
		alert = &notification.TriggerRequest{
			OwnerID:  d.OwnerID,
			DeviceID: &d.ID,
			Type:     notification.TypeLowSupplement,
			Title:    "Supplement running low",
			Message:  fmt.Sprintf("%s supplement is at %d%%, about %d doses left", d.Name, d.SupplementLevel, d.DosesRemaining()),
		}
	}

	return decision, alert, nil
}

// refuse checks the dispense policy. It reports the first failing rule, or
// ok=true when a dose may be released.
func (e *Engine) refuse(ctx context.Context, tx Tx, d *device.Device, transition Transition, cupPlaced bool, now time.Time) (Reason, bool) {
	if transition != TransitionCupPlaced {
		if !cupPlaced {
			return ReasonCupNotPlaced, false
		}
		// Cup still placed with no intervening removal: a duplicate or
		// retried report, never a second dose.
		return ReasonNoTransition, false
	}

	if !d.IsActive {
		return ReasonDeviceInactive, false
	}
	if !d.IsConnected {
		return ReasonDeviceDisconnected, false
	}
	if d.SupplementLevel <= 0 {
		return ReasonSupplementEmpty, false
	}

	last, err := tx.LastDispenseAt(ctx, d.ID)
	if err != nil {
		e.logger.Error().Err(err).Str("device_id", d.ID).Msg("failed to load last dispense time")
		return ReasonRecentDispense, false
	}
	if last != nil && now.Sub(*last) < e.config.MinDispenseInterval {
		return ReasonRecentDispense, false
	}

	return "", true
}

func (e *Engine) applyDispense(ctx context.Context, tx Tx, d *device.Device, decision *Decision, now time.Time) error {
	doseAmount := d.Type.DoseAmount()

	d.TotalDosesDispensed++
	d.SupplementLevel -= d.Type.DosePercent()
	if d.SupplementLevel < 0 {
		d.SupplementLevel = 0
	}

	entry := &activity.Entry{
		ID:          uuid.NewString(),
		DeviceID:    d.ID,
		OwnerID:     d.OwnerID,
		Action:      activity.ActionDoseDispensed,
		DoseAmount:  &doseAmount,
		TriggeredBy: activity.TriggerAutomatic,
		Metadata: map[string]string{
			"supplement_level": strconv.Itoa(d.SupplementLevel),
		},
		OccurredAt: now,
	}
	if err := tx.InsertActivity(ctx, entry); err != nil {
		return translateStoreErr("storing dispense entry", err)
	}

	decision.ShouldDispense = true
	decision.DoseAmount = doseAmount
	decision.SupplementLevel = d.SupplementLevel

	e.logger.Info().
		Str("device_id", d.ID).
		Str("dose_amount", doseAmount).
		Int("supplement_level", d.SupplementLevel).
		Msg("dispense authorized")

	return nil
}

// crossedDown reports an edge-triggered downward threshold crossing.
func crossedDown(prev, current, threshold int) bool {
	return prev > threshold && current <= threshold
}

func translateStoreErr(msg string, err error) error {
	if errors.Is(err, ErrContention) || errors.Is(err, context.DeadlineExceeded) {
		return apperr.Wrap(apperr.KindTransient, msg, err)
	}
	return apperr.Wrap(apperr.KindInternal, msg, err)
}
