package sync

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/dosepoint/dosepoint/internal/activity"
	"github.com/dosepoint/dosepoint/internal/device"
	"github.com/dosepoint/dosepoint/internal/notification"
	"github.com/dosepoint/dosepoint/internal/profile"
)

const (
	snapshotDeviceLimit       = 500
	snapshotActivityLimit     = 1000
	snapshotNotificationLimit = 500
)

// PostgresStore is a PostgreSQL implementation of Store. Snapshot reads run
// in a read-only repeatable-read transaction so no entity reflects a point
// before or after the transaction's logical start.
type PostgresStore struct {
	pool *pgxpool.Pool
}

// NewPostgresStore creates a new PostgreSQL sync store.
func NewPostgresStore(pool *pgxpool.Pool) *PostgresStore {
	return &PostgresStore{pool: pool}
}

// Snapshot reads the owner's entities inside one consistent transaction.
func (s *PostgresStore) Snapshot(ctx context.Context, ownerID string, includeDeleted bool, activitySince time.Time) (*SnapshotData, error) {
	tx, err := s.pool.BeginTx(ctx, pgx.TxOptions{
		IsoLevel:   pgx.RepeatableRead,
		AccessMode: pgx.ReadOnly,
	})
	if err != nil {
		return nil, fmt.Errorf("opening snapshot transaction: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	// The entity repositories run against the transaction, so every read
	// shares its snapshot.
	profiles := profile.NewPostgresRepository(tx)
	devices := device.NewPostgresRepository(tx)
	entries := activity.NewPostgresRepository(tx)
	notifications := notification.NewPostgresRepository(tx)

	data := &SnapshotData{}

	data.Owner, err = profiles.Get(ctx, ownerID)
	if err != nil {
		return nil, err
	}

	deviceList, err := devices.ListByOwner(ctx, ownerID, device.ListOptions{
		IncludeDeleted: includeDeleted,
		Limit:          snapshotDeviceLimit,
	})
	if err != nil {
		return nil, fmt.Errorf("reading snapshot devices: %w", err)
	}
	data.Devices = deviceList.Items

	data.Activity, err = entries.ListByOwnerSince(ctx, ownerID, activitySince, snapshotActivityLimit)
	if err != nil {
		return nil, fmt.Errorf("reading snapshot activity: %w", err)
	}

	notificationList, err := notifications.List(ctx, ownerID, notification.Filter{
		Limit: snapshotNotificationLimit,
	})
	if err != nil {
		return nil, fmt.Errorf("reading snapshot notifications: %w", err)
	}
	data.Notifications = notificationList.Items

	data.Settings, err = notifications.GetSettings(ctx, ownerID)
	if errors.Is(err, notification.ErrSettingsNotFound) {
		data.Settings = nil
	} else if err != nil {
		return nil, fmt.Errorf("reading snapshot settings: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("closing snapshot transaction: %w", err)
	}
	return data, nil
}

const cursorColumns = `owner_id, last_full_sync, last_delta_sync, status, updated_at`

// GetCursor retrieves the owner's sync cursor.
func (s *PostgresStore) GetCursor(ctx context.Context, ownerID string) (*Cursor, error) {
	query := `SELECT ` + cursorColumns + ` FROM sync_cursors WHERE owner_id = $1`

	var cursor Cursor
	err := s.pool.QueryRow(ctx, query, ownerID).Scan(
		&cursor.OwnerID,
		&cursor.LastFullSync,
		&cursor.LastDeltaSync,
		&cursor.Status,
		&cursor.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNoCursor
		}
		return nil, err
	}
	return &cursor, nil
}

// SaveCursor creates or replaces the owner's sync cursor.
func (s *PostgresStore) SaveCursor(ctx context.Context, cursor *Cursor) error {
	query := `
		INSERT INTO sync_cursors (owner_id, last_full_sync, last_delta_sync, status, updated_at)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (owner_id) DO UPDATE SET
			last_full_sync = EXCLUDED.last_full_sync,
			last_delta_sync = EXCLUDED.last_delta_sync,
			status = EXCLUDED.status,
			updated_at = EXCLUDED.updated_at`

	_, err := s.pool.Exec(ctx, query,
		cursor.OwnerID,
		cursor.LastFullSync,
		cursor.LastDeltaSync,
		cursor.Status,
		cursor.UpdatedAt,
	)
	return err
}

var _ Store = (*PostgresStore)(nil)
