// Package tags provides the PostgreSQL-backed repository for server-side
// tag persistence and sync queries.
package tags

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/example/cardbox/internal/dbx"
	"github.com/example/cardbox/internal/models"
	"github.com/example/cardbox/internal/shared"
	"github.com/jackc/pgx/v5/pgconn"
)

// PostgresRepository implements tag storage over a dbx.DBTX (*sql.DB or *sql.Tx).
type PostgresRepository struct {
	db dbx.DBTX
}

// NewPostgresRepository constructs a repository bound to the given DBTX.
func NewPostgresRepository(db dbx.DBTX) *PostgresRepository {
	return &PostgresRepository{db: db}
}

// Upsert stores a tag for a specific user. An id the user already owns is
// updated in place (the rename path); renaming onto a taken name surfaces
// as ErrConflict. A new id whose name collides with an existing tag keeps
// the established row and id, refreshing only the color.
func (r *PostgresRepository) Upsert(ctx context.Context, userID string, tag *models.Tag) error {
	res, err := r.db.ExecContext(ctx,
		`UPDATE tags SET name = $3, color = $4 WHERE user_id = $1 AND id = $2`,
		userID, tag.ID, tag.Name, tag.Color)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("%w: tag name already exists", shared.ErrConflict)
		}
		return fmt.Errorf("db error: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected error: %w", err)
	}
	if n == 1 {
		return nil
	}

	query := `
		INSERT INTO tags (id, user_id, name, color, created_at)
		VALUES ($1, $2, $3, $4, to_timestamp($5::bigint / 1000.0))
		ON CONFLICT (user_id, name)
		DO UPDATE SET color = EXCLUDED.color;
	`
	_, err = r.db.ExecContext(ctx, query, tag.ID, userID, tag.Name, tag.Color, tag.CreatedAt)
	if err != nil {
		// The only unique left is the primary key, meaning the id belongs
		// to another user.
		if isUniqueViolation(err) {
			return fmt.Errorf("%w: tag id already in use", shared.ErrConflict)
		}
		return fmt.Errorf("db error: %w", err)
	}
	return nil
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}

func (r *PostgresRepository) Get(ctx context.Context, userID, id string) (*models.Tag, error) {
	query := `SELECT id, name, COALESCE(color, ''), (EXTRACT(EPOCH FROM created_at) * 1000)::bigint
		FROM tags WHERE user_id = $1 AND id = $2`

	var tag models.Tag
	err := r.db.QueryRowContext(ctx, query, userID, id).
		Scan(&tag.ID, &tag.Name, &tag.Color, &tag.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, shared.ErrNotFound
		}
		return nil, fmt.Errorf("db error: %w", err)
	}
	return &tag, nil
}

// ListUpdated returns all tags for userID created strictly after
// sinceMillis. A non-positive sinceMillis returns everything.
func (r *PostgresRepository) ListUpdated(ctx context.Context, userID string, sinceMillis int64) ([]models.Tag, error) {
	query := `SELECT id, name, COALESCE(color, ''), (EXTRACT(EPOCH FROM created_at) * 1000)::bigint
		FROM tags
		WHERE user_id = $1 AND created_at > to_timestamp($2::bigint / 1000.0)
		ORDER BY name`
	return r.list(ctx, query, userID, sinceMillis)
}

// ListByIDs returns the user's tags whose ids are in ids. Used to resolve
// tag names for the public share projection.
func (r *PostgresRepository) ListByIDs(ctx context.Context, userID string, ids []string) ([]models.Tag, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	query := `SELECT id, name, COALESCE(color, ''), (EXTRACT(EPOCH FROM created_at) * 1000)::bigint
		FROM tags
		WHERE user_id = $1 AND id = ANY($2::uuid[])
		ORDER BY name`
	return r.list(ctx, query, userID, ids)
}

// Delete removes the tag; absent tags are a no-op so redelivered deletes
// stay idempotent.
func (r *PostgresRepository) Delete(ctx context.Context, userID, id string) error {
	_, err := r.db.ExecContext(ctx, `DELETE FROM tags WHERE user_id = $1 AND id = $2`, userID, id)
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	return nil
}

func (r *PostgresRepository) DeleteAllForUser(ctx context.Context, userID string) error {
	_, err := r.db.ExecContext(ctx, `DELETE FROM tags WHERE user_id = $1`, userID)
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	return nil
}

func (r *PostgresRepository) list(ctx context.Context, query string, args ...any) ([]models.Tag, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to select tags: %w", err)
	}
	defer rows.Close()

	var result []models.Tag
	for rows.Next() {
		var tag models.Tag
		if err := rows.Scan(&tag.ID, &tag.Name, &tag.Color, &tag.CreatedAt); err != nil {
			return nil, err
		}
		result = append(result, tag)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}
