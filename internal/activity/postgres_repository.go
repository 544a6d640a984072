package activity

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/dosepoint/dosepoint/internal/database"
)

const entryColumns = `id, device_id, owner_id, action, dose_amount, triggered_by, metadata, occurred_at`

// PostgresRepository is a PostgreSQL implementation of Repository.
type PostgresRepository struct {
	db database.Querier
}

// NewPostgresRepository creates a new PostgreSQL activity repository.
func NewPostgresRepository(db database.Querier) *PostgresRepository {
	return &PostgresRepository{db: db}
}

// Insert appends a log entry.
func (r *PostgresRepository) Insert(ctx context.Context, entry *Entry) error {
	query := `
		INSERT INTO activity_log (` + entryColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`

	_, err := r.db.Exec(ctx, query,
		entry.ID,
		entry.DeviceID,
		entry.OwnerID,
		entry.Action,
		entry.DoseAmount,
		entry.TriggeredBy,
		entry.Metadata,
		entry.OccurredAt,
	)
	return err
}

// ListByDevice retrieves entries for a device, newest first.
func (r *PostgresRepository) ListByDevice(ctx context.Context, deviceID string, opts ListOptions) ([]*Entry, error) {
	limit := opts.Limit
	if limit <= 0 {
		limit = 100
	}

	query := `SELECT ` + entryColumns + `
		FROM activity_log
		WHERE device_id = $1
		  AND ($2::timestamptz IS NULL OR occurred_at >= $2)
		  AND ($3::timestamptz IS NULL OR occurred_at <= $3)
		ORDER BY occurred_at DESC
		LIMIT $4`

	rows, err := r.db.Query(ctx, query, deviceID, opts.From, opts.To, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return collectEntries(rows)
}

// ListByOwnerSince retrieves an owner's entries after the cursor, oldest first.
func (r *PostgresRepository) ListByOwnerSince(ctx context.Context, ownerID string, since time.Time, limit int) ([]*Entry, error) {
	if limit <= 0 {
		limit = 500
	}

	query := `SELECT ` + entryColumns + `
		FROM activity_log
		WHERE owner_id = $1 AND occurred_at > $2
		ORDER BY occurred_at ASC
		LIMIT $3`

	rows, err := r.db.Query(ctx, query, ownerID, since, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return collectEntries(rows)
}

// CountByAction counts entries of one action for a device.
func (r *PostgresRepository) CountByAction(ctx context.Context, deviceID string, action Action) (int, error) {
	query := `SELECT COUNT(*) FROM activity_log WHERE device_id = $1 AND action = $2`

	var count int
	if err := r.db.QueryRow(ctx, query, deviceID, action).Scan(&count); err != nil {
		return 0, err
	}
	return count, nil
}

// DoseStatsByDevice summarizes dispensing for a device.
func (r *PostgresRepository) DoseStatsByDevice(ctx context.Context, deviceID string) (*DoseStats, error) {
	query := `
		SELECT COUNT(*), MIN(occurred_at), MAX(occurred_at)
		FROM activity_log
		WHERE device_id = $1 AND action = $2
	`

	stats := &DoseStats{DeviceID: deviceID}
	err := r.db.QueryRow(ctx, query, deviceID, ActionDoseDispensed).
		Scan(&stats.TotalDoses, &stats.FirstDose, &stats.LastDose)
	if err != nil {
		return nil, err
	}
	return stats, nil
}

func collectEntries(rows pgx.Rows) ([]*Entry, error) {
	var entries []*Entry
	for rows.Next() {
		var entry Entry
		err := rows.Scan(
			&entry.ID,
			&entry.DeviceID,
			&entry.OwnerID,
			&entry.Action,
			&entry.DoseAmount,
			&entry.TriggeredBy,
			&entry.Metadata,
			&entry.OccurredAt,
		)
		if err != nil {
			return nil, err
		}
		entries = append(entries, &entry)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return entries, nil
}

// Ensure PostgresRepository implements Repository interface.
var _ Repository = (*PostgresRepository)(nil)
