package dispense

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/dosepoint/dosepoint/internal/activity"
	"github.com/dosepoint/dosepoint/internal/device"
)

// PostgresStore is a PostgreSQL implementation of Store. Per-device
// serialization comes from the FOR UPDATE row lock GetDeviceForUpdate takes.
type PostgresStore struct {
	pool *pgxpool.Pool
}

// NewPostgresStore creates a new PostgreSQL dispense store.
func NewPostgresStore(pool *pgxpool.Pool) *PostgresStore {
	return &PostgresStore{pool: pool}
}

// Begin opens a transaction.
func (s *PostgresStore) Begin(ctx context.Context) (Tx, error) {
	tx, err := s.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return nil, translatePgErr(err)
	}
	return &postgresTx{tx: tx}, nil
}

type postgresTx struct {
	tx pgx.Tx
}

func (t *postgresTx) GetDeviceForUpdate(ctx context.Context, ownerID, deviceID string) (*device.Device, error) {
	query := `
		SELECT id, owner_id, name, type, mac_address, serial_number, location,
			battery_level, supplement_level, is_connected, firmware_version,
			total_doses_dispensed, last_sync, is_active, created_at, updated_at
		FROM devices
		WHERE id = $1 AND owner_id = $2
		FOR UPDATE`

	var d device.Device
	err := t.tx.QueryRow(ctx, query, deviceID, ownerID).Scan(
		&d.ID,
		&d.OwnerID,
		&d.Name,
		&d.Type,
		&d.MACAddress,
		&d.SerialNumber,
		&d.Location,
		&d.BatteryLevel,
		&d.SupplementLevel,
		&d.IsConnected,
		&d.FirmwareVersion,
		&d.TotalDosesDispensed,
		&d.LastSync,
		&d.IsActive,
		&d.CreatedAt,
		&d.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, device.ErrDeviceNotFound
		}
		return nil, translatePgErr(err)
	}
	return &d, nil
}

func (t *postgresTx) LatestObservation(ctx context.Context, deviceID string) (*Observation, error) {
	query := `
		SELECT id, device_id, cup_placed, sensor_reading, observed_at, received_at
		FROM device_state_observations
		WHERE device_id = $1
		ORDER BY received_at DESC, id DESC
		LIMIT 1`

	var obs Observation
	err := t.tx.QueryRow(ctx, query, deviceID).Scan(
		&obs.ID,
		&obs.DeviceID,
		&obs.CupPlaced,
		&obs.SensorReading,
		&obs.ObservedAt,
		&obs.ReceivedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNoObservation
		}
		return nil, translatePgErr(err)
	}
	return &obs, nil
}

func (t *postgresTx) LastDispenseAt(ctx context.Context, deviceID string) (*time.Time, error) {
	query := `
		SELECT MAX(occurred_at)
		FROM activity_log
		WHERE device_id = $1 AND action = $2`

	var last *time.Time
	if err := t.tx.QueryRow(ctx, query, deviceID, activity.ActionDoseDispensed).Scan(&last); err != nil {
		return nil, translatePgErr(err)
	}
	return last, nil
}

func (t *postgresTx) InsertObservation(ctx context.Context, obs *Observation) error {
	query := `
		INSERT INTO device_state_observations (id, device_id, cup_placed, sensor_reading, observed_at, received_at)
		VALUES ($1, $2, $3, $4, $5, $6)`

	_, err := t.tx.Exec(ctx, query,
		obs.ID,
		obs.DeviceID,
		obs.CupPlaced,
		obs.SensorReading,
		obs.ObservedAt,
		obs.ReceivedAt,
	)
	return translatePgErr(err)
}

func (t *postgresTx) InsertActivity(ctx context.Context, entry *activity.Entry) error {
	query := `
		INSERT INTO activity_log (id, device_id, owner_id, action, dose_amount, triggered_by, metadata, occurred_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`

	_, err := t.tx.Exec(ctx, query,
		entry.ID,
		entry.DeviceID,
		entry.OwnerID,
		entry.Action,
		entry.DoseAmount,
		entry.TriggeredBy,
		entry.Metadata,
		entry.OccurredAt,
	)
	return translatePgErr(err)
}

func (t *postgresTx) UpdateDevice(ctx context.Context, d *device.Device) error {
	query := `
		UPDATE devices SET
			battery_level = $2,
			supplement_level = $3,
			is_connected = $4,
			total_doses_dispensed = $5,
			last_sync = $6,
			updated_at = $7
		WHERE id = $1`

	_, err := t.tx.Exec(ctx, query,
		d.ID,
		d.BatteryLevel,
		d.SupplementLevel,
		d.IsConnected,
		d.TotalDosesDispensed,
		d.LastSync,
		d.UpdatedAt,
	)
	return translatePgErr(err)
}

func (t *postgresTx) Commit(ctx context.Context) error {
	return translatePgErr(t.tx.Commit(ctx))
}

func (t *postgresTx) Rollback(ctx context.Context) error {
	err := t.tx.Rollback(ctx)
	if err != nil && !errors.Is(err, pgx.ErrTxClosed) {
		return translatePgErr(err)
	}
	return nil
}

// translatePgErr maps lock and serialization failures onto ErrContention so
// driver error types never leave this package.
func translatePgErr(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return ErrContention
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case "55P03", "40001", "40P01", "57014":
			// lock_not_available, serialization_failure, deadlock_detected,
			// query_canceled
			return ErrContention
		}
	}
	return err
}

var _ Store = (*PostgresStore)(nil)
