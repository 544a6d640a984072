package device

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/dosepoint/dosepoint/internal/database"
)

const deviceColumns = `id, owner_id, name, type, mac_address, serial_number, location,
	battery_level, supplement_level, is_connected, firmware_version,
	total_doses_dispensed, last_sync, is_active, created_at, updated_at`

// PostgresRepository is a PostgreSQL implementation of Repository.
type PostgresRepository struct {
	db database.Querier
}

// NewPostgresRepository creates a new PostgreSQL device repository.
func NewPostgresRepository(db database.Querier) *PostgresRepository {
	return &PostgresRepository{db: db}
}

// Get retrieves a device by ID.
func (r *PostgresRepository) Get(ctx context.Context, deviceID string) (*Device, error) {
	query := `SELECT ` + deviceColumns + ` FROM devices WHERE id = $1`
	return r.scanDevice(ctx, query, deviceID)
}

// GetByOwner retrieves a device by owner ID and device ID.
func (r *PostgresRepository) GetByOwner(ctx context.Context, ownerID, deviceID string) (*Device, error) {
	query := `SELECT ` + deviceColumns + ` FROM devices WHERE id = $1 AND owner_id = $2`
	return r.scanDevice(ctx, query, deviceID, ownerID)
}

func (r *PostgresRepository) scanDevice(ctx context.Context, query string, args ...interface{}) (*Device, error) {
	row := r.db.QueryRow(ctx, query, args...)
	device, err := scanDeviceRow(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrDeviceNotFound
		}
		return nil, err
	}
	return device, nil
}

// scanDeviceRow scans a device from any row shaped like deviceColumns.
func scanDeviceRow(row pgx.Row) (*Device, error) {
	var device Device
	err := row.Scan(
		&device.ID,
		&device.OwnerID,
		&device.Name,
		&device.Type,
		&device.MACAddress,
		&device.SerialNumber,
		&device.Location,
		&device.BatteryLevel,
		&device.SupplementLevel,
		&device.IsConnected,
		&device.FirmwareVersion,
		&device.TotalDosesDispensed,
		&device.LastSync,
		&device.IsActive,
		&device.CreatedAt,
		&device.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &device, nil
}

// ListByOwner retrieves devices for an owner.
func (r *PostgresRepository) ListByOwner(ctx context.Context, ownerID string, opts ListOptions) (*ListResult, error) {
	limit := opts.Limit
	if limit <= 0 {
		limit = 50
	}
	fetchLimit := limit + 1

	query := `SELECT ` + deviceColumns + `
		FROM devices
		WHERE owner_id = $1 AND (is_active OR $2)
		ORDER BY created_at DESC
		LIMIT $3`

	rows, err := r.db.Query(ctx, query, ownerID, opts.IncludeDeleted, fetchLimit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	devices, err := collectDevices(rows)
	if err != nil {
		return nil, err
	}

	result := &ListResult{Items: devices}
	if len(devices) > limit {
		result.Items = devices[:limit]
		result.NextCursor = devices[limit-1].ID
	}
	return result, nil
}

func collectDevices(rows pgx.Rows) ([]*Device, error) {
	var devices []*Device
	for rows.Next() {
		device, err := scanDeviceRow(rows)
		if err != nil {
			return nil, err
		}
		devices = append(devices, device)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return devices, nil
}

// Create creates a new device.
func (r *PostgresRepository) Create(ctx context.Context, device *Device) error {
	query := `
		INSERT INTO devices (` + deviceColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16)
	`

	_, err := r.db.Exec(ctx, query,
		device.ID,
		device.OwnerID,
		device.Name,
		device.Type,
		device.MACAddress,
		device.SerialNumber,
		device.Location,
		device.BatteryLevel,
		device.SupplementLevel,
		device.IsConnected,
		device.FirmwareVersion,
		device.TotalDosesDispensed,
		device.LastSync,
		device.IsActive,
		device.CreatedAt,
		device.UpdatedAt,
	)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return ErrDuplicateDevice
		}
		return err
	}
	return nil
}

// Update updates the mutable fields of an existing device.
func (r *PostgresRepository) Update(ctx context.Context, device *Device) error {
	query := `
		UPDATE devices SET
			name = $2,
			location = $3,
			battery_level = $4,
			supplement_level = $5,
			is_connected = $6,
			firmware_version = $7,
			total_doses_dispensed = $8,
			last_sync = $9,
			is_active = $10,
			updated_at = $11
		WHERE id = $1
	`

	result, err := r.db.Exec(ctx, query,
		device.ID,
		device.Name,
		device.Location,
		device.BatteryLevel,
		device.SupplementLevel,
		device.IsConnected,
		device.FirmwareVersion,
		device.TotalDosesDispensed,
		device.LastSync,
		device.IsActive,
		device.UpdatedAt,
	)
	if err != nil {
		return err
	}
	if result.RowsAffected() == 0 {
		return ErrDeviceNotFound
	}
	return nil
}

// SoftDelete marks a device inactive.
func (r *PostgresRepository) SoftDelete(ctx context.Context, ownerID, deviceID string, at time.Time) error {
	query := `
		UPDATE devices SET is_active = false, is_connected = false, updated_at = $3
		WHERE id = $1 AND owner_id = $2 AND is_active
	`

	result, err := r.db.Exec(ctx, query, deviceID, ownerID, at)
	if err != nil {
		return err
	}
	if result.RowsAffected() == 0 {
		return ErrDeviceNotFound
	}
	return nil
}

// ChangedSince retrieves an owner's devices with updated_at after the cursor.
func (r *PostgresRepository) ChangedSince(ctx context.Context, ownerID string, since time.Time) ([]*Device, error) {
	query := `SELECT ` + deviceColumns + `
		FROM devices
		WHERE owner_id = $1 AND updated_at > $2
		ORDER BY updated_at ASC`

	rows, err := r.db.Query(ctx, query, ownerID, since)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return collectDevices(rows)
}

// Ensure PostgresRepository implements Repository interface.
var _ Repository = (*PostgresRepository)(nil)
