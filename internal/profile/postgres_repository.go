package profile

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/dosepoint/dosepoint/internal/database"
)

const ownerColumns = `id, email, full_name, phone, language, timezone, is_active, created_at, updated_at`

// PostgresRepository is a PostgreSQL implementation of Repository.
type PostgresRepository struct {
	db database.Querier
}

// NewPostgresRepository creates a new PostgreSQL profile repository.
func NewPostgresRepository(db database.Querier) *PostgresRepository {
	return &PostgresRepository{db: db}
}

// Get retrieves an owner profile by ID.
func (r *PostgresRepository) Get(ctx context.Context, ownerID string) (*Owner, error) {
	query := `SELECT ` + ownerColumns + ` FROM owners WHERE id = $1`
	return r.scanOwner(r.db.QueryRow(ctx, query, ownerID))
}

// ChangedSince returns the profile when it changed after the cursor.
func (r *PostgresRepository) ChangedSince(ctx context.Context, ownerID string, since time.Time) (*Owner, error) {
	query := `SELECT ` + ownerColumns + ` FROM owners WHERE id = $1 AND updated_at > $2`
	owner, err := r.scanOwner(r.db.QueryRow(ctx, query, ownerID, since))
	if errors.Is(err, ErrOwnerNotFound) {
		return nil, nil
	}
	return owner, err
}

func (r *PostgresRepository) scanOwner(row pgx.Row) (*Owner, error) {
	var owner Owner
	err := row.Scan(
		&owner.ID,
		&owner.Email,
		&owner.FullName,
		&owner.Phone,
		&owner.Language,
		&owner.TimeZone,
		&owner.IsActive,
		&owner.CreatedAt,
		&owner.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrOwnerNotFound
		}
		return nil, err
	}
	return &owner, nil
}

var _ Repository = (*PostgresRepository)(nil)
