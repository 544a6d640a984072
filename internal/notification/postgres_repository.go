package notification

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/dosepoint/dosepoint/internal/database"
)

const notificationColumns = `id, owner_id, device_id, type, title, message, metadata, is_read, created_at, read_at`

const settingsColumns = `owner_id, reminder_enabled, reminder_time, low_battery_enabled,
	low_supplement_enabled, achievement_enabled, push_token, push_platform, updated_at`

// PostgresRepository is a PostgreSQL implementation of Repository.
type PostgresRepository struct {
	db database.Querier
}

// NewPostgresRepository creates a new PostgreSQL notification repository.
func NewPostgresRepository(db database.Querier) *PostgresRepository {
	return &PostgresRepository{db: db}
}

// Insert creates a notification.
func (r *PostgresRepository) Insert(ctx context.Context, n *Notification) error {
	query := `
		INSERT INTO notifications (` + notificationColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	`

	_, err := r.db.Exec(ctx, query,
		n.ID, n.OwnerID, n.DeviceID, n.Type, n.Title, n.Message,
		n.Metadata, n.IsRead, n.CreatedAt, n.ReadAt,
	)
	return err
}

// Get retrieves a notification by owner ID and notification ID.
func (r *PostgresRepository) Get(ctx context.Context, ownerID, notificationID string) (*Notification, error) {
	query := `SELECT ` + notificationColumns + ` FROM notifications WHERE id = $1 AND owner_id = $2`

	n, err := scanNotification(r.db.QueryRow(ctx, query, notificationID, ownerID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotificationNotFound
		}
		return nil, err
	}
	return n, nil
}

// List retrieves a filtered page of an owner's notifications, newest first.
func (r *PostgresRepository) List(ctx context.Context, ownerID string, filter Filter) (*ListResult, error) {
	limit := filter.Limit
	if limit <= 0 {
		limit = 50
	}

	where := ` WHERE owner_id = $1
		AND ($2::text IS NULL OR type = $2)
		AND ($3::boolean IS NULL OR is_read = $3)
		AND ($4::text IS NULL OR device_id = $4)`

	var total int
	countQuery := `SELECT COUNT(*) FROM notifications` + where
	if err := r.db.QueryRow(ctx, countQuery, ownerID, filter.Type, filter.IsRead, filter.DeviceID).Scan(&total); err != nil {
		return nil, err
	}

	query := `SELECT ` + notificationColumns + ` FROM notifications` + where + `
		ORDER BY created_at DESC
		LIMIT $5 OFFSET $6`

	rows, err := r.db.Query(ctx, query, ownerID, filter.Type, filter.IsRead, filter.DeviceID, limit, filter.Offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	items, err := collectNotifications(rows)
	if err != nil {
		return nil, err
	}

	return &ListResult{
		Total:  total,
		Limit:  limit,
		Offset: filter.Offset,
		Items:  items,
	}, nil
}

// MarkRead sets is_read and read_at together.
func (r *PostgresRepository) MarkRead(ctx context.Context, ownerID, notificationID string, at time.Time) (bool, error) {
	query := `
		UPDATE notifications SET is_read = true, read_at = $3
		WHERE id = $1 AND owner_id = $2 AND NOT is_read
	`

	result, err := r.db.Exec(ctx, query, notificationID, ownerID, at)
	if err != nil {
		return false, err
	}
	if result.RowsAffected() > 0 {
		return true, nil
	}

	// Distinguish "already read" from "absent".
	var exists bool
	err = r.db.QueryRow(ctx,
		`SELECT EXISTS (SELECT 1 FROM notifications WHERE id = $1 AND owner_id = $2)`,
		notificationID, ownerID,
	).Scan(&exists)
	if err != nil {
		return false, err
	}
	if !exists {
		return false, ErrNotificationNotFound
	}
	return false, nil
}

// MarkAllRead marks every unread notification read.
func (r *PostgresRepository) MarkAllRead(ctx context.Context, ownerID string, at time.Time) (int, error) {
	query := `UPDATE notifications SET is_read = true, read_at = $2 WHERE owner_id = $1 AND NOT is_read`

	result, err := r.db.Exec(ctx, query, ownerID, at)
	if err != nil {
		return 0, err
	}
	return int(result.RowsAffected()), nil
}

// UnreadCount counts an owner's unread notifications.
func (r *PostgresRepository) UnreadCount(ctx context.Context, ownerID string) (int, error) {
	var count int
	err := r.db.QueryRow(ctx,
		`SELECT COUNT(*) FROM notifications WHERE owner_id = $1 AND NOT is_read`,
		ownerID,
	).Scan(&count)
	return count, err
}

// LatestUnread retrieves the newest unread (owner, device, type) notification
// created after the cutoff.
func (r *PostgresRepository) LatestUnread(ctx context.Context, ownerID string, deviceID *string, t Type, createdAfter time.Time) (*Notification, error) {
	query := `SELECT ` + notificationColumns + `
		FROM notifications
		WHERE owner_id = $1
		  AND type = $2
		  AND device_id IS NOT DISTINCT FROM $3
		  AND NOT is_read
		  AND created_at > $4
		ORDER BY created_at DESC
		LIMIT 1`

	n, err := scanNotification(r.db.QueryRow(ctx, query, ownerID, t, deviceID, createdAfter))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotificationNotFound
		}
		return nil, err
	}
	return n, nil
}

// CreatedSince retrieves an owner's notifications created after the cursor.
func (r *PostgresRepository) CreatedSince(ctx context.Context, ownerID string, since time.Time) ([]*Notification, error) {
	query := `SELECT ` + notificationColumns + `
		FROM notifications
		WHERE owner_id = $1 AND created_at > $2
		ORDER BY created_at ASC`

	rows, err := r.db.Query(ctx, query, ownerID, since)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return collectNotifications(rows)
}

// ReadSince retrieves an owner's notifications read after the cursor.
func (r *PostgresRepository) ReadSince(ctx context.Context, ownerID string, since time.Time) ([]*Notification, error) {
	query := `SELECT ` + notificationColumns + `
		FROM notifications
		WHERE owner_id = $1 AND read_at IS NOT NULL AND read_at > $2
		ORDER BY read_at ASC`

	rows, err := r.db.Query(ctx, query, ownerID, since)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return collectNotifications(rows)
}

// GetSettings retrieves an owner's notification settings.
func (r *PostgresRepository) GetSettings(ctx context.Context, ownerID string) (*Settings, error) {
	query := `SELECT ` + settingsColumns + ` FROM notification_settings WHERE owner_id = $1`

	var s Settings
	err := r.db.QueryRow(ctx, query, ownerID).Scan(
		&s.OwnerID,
		&s.ReminderEnabled,
		&s.ReminderTime,
		&s.LowBatteryEnabled,
		&s.LowSupplementEnabled,
		&s.AchievementEnabled,
		&s.PushToken,
		&s.PushPlatform,
		&s.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrSettingsNotFound
		}
		return nil, err
	}
	return &s, nil
}

// UpsertSettings creates or replaces an owner's notification settings.
func (r *PostgresRepository) UpsertSettings(ctx context.Context, s *Settings) error {
	query := `
		INSERT INTO notification_settings (` + settingsColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		ON CONFLICT (owner_id) DO UPDATE SET
			reminder_enabled = EXCLUDED.reminder_enabled,
			reminder_time = EXCLUDED.reminder_time,
			low_battery_enabled = EXCLUDED.low_battery_enabled,
			low_supplement_enabled = EXCLUDED.low_supplement_enabled,
			achievement_enabled = EXCLUDED.achievement_enabled,
			push_token = EXCLUDED.push_token,
			push_platform = EXCLUDED.push_platform,
			updated_at = EXCLUDED.updated_at
	`

	_, err := r.db.Exec(ctx, query,
		s.OwnerID,
		s.ReminderEnabled,
		s.ReminderTime,
		s.LowBatteryEnabled,
		s.LowSupplementEnabled,
		s.AchievementEnabled,
		s.PushToken,
		s.PushPlatform,
		s.UpdatedAt,
	)
	return err
}

func scanNotification(row pgx.Row) (*Notification, error) {
	var n Notification
	err := row.Scan(
		&n.ID, &n.OwnerID, &n.DeviceID, &n.Type, &n.Title, &n.Message,
		&n.Metadata, &n.IsRead, &n.CreatedAt, &n.ReadAt,
	)
	if err != nil {
		return nil, err
	}
	return &n, nil
}

func collectNotifications(rows pgx.Rows) ([]*Notification, error) {
	var items []*Notification
	for rows.Next() {
		n, err := scanNotification(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, n)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return items, nil
}

// Ensure PostgresRepository implements Repository interface.
var _ Repository = (*PostgresRepository)(nil)
