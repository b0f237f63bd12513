// Package links provides the PostgreSQL-backed repository for server-side
// link persistence and sync queries.
package links

import (
	"context"
	"errors"
	"fmt"

	"github.com/example/cardbox/internal/dbx"
	"github.com/example/cardbox/internal/models"
	"github.com/example/cardbox/internal/shared"
	"github.com/jackc/pgx/v5/pgconn"
)

// PostgresRepository implements link storage over a dbx.DBTX (*sql.DB or *sql.Tx).
type PostgresRepository struct {
	db dbx.DBTX
}

// NewPostgresRepository constructs a repository bound to the given DBTX.
func NewPostgresRepository(db dbx.DBTX) *PostgresRepository {
	return &PostgresRepository{db: db}
}

// Upsert inserts a link or, when the (user, source, target) pair already
// exists, updates its relation and description. A link referencing a card
// the server does not have fails with ErrNotFound so batch callers can
// skip it.
func (r *PostgresRepository) Upsert(ctx context.Context, userID string, link *models.Link) error {
	query := `
		INSERT INTO links (id, user_id, source_id, target_id, relation, description, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, to_timestamp($7::bigint / 1000.0))
		ON CONFLICT (user_id, source_id, target_id)
		DO UPDATE SET
			relation = EXCLUDED.relation,
			description = EXCLUDED.description;
	`
	_, err := r.db.ExecContext(ctx, query,
		link.ID, userID, link.SourceID, link.TargetID, link.Relation, link.Description, link.CreatedAt)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) {
			switch pgErr.Code {
			case "23503":
				return fmt.Errorf("%w: referenced card does not exist", shared.ErrNotFound)
			case "23505":
				return fmt.Errorf("%w: link id already in use", shared.ErrConflict)
			}
		}
		return fmt.Errorf("db error: %w", err)
	}
	return nil
}

// ListUpdated returns all links for userID created strictly after
// sinceMillis. A non-positive sinceMillis returns everything.
func (r *PostgresRepository) ListUpdated(ctx context.Context, userID string, sinceMillis int64) ([]models.Link, error) {
	query := `SELECT id, source_id, target_id, relation, description,
			(EXTRACT(EPOCH FROM created_at) * 1000)::bigint
		FROM links
		WHERE user_id = $1 AND created_at > to_timestamp($2::bigint / 1000.0)
		ORDER BY created_at`
	rows, err := r.db.QueryContext(ctx, query, userID, sinceMillis)
	if err != nil {
		return nil, fmt.Errorf("failed to select links: %w", err)
	}
	defer rows.Close()

	var result []models.Link
	for rows.Next() {
		var link models.Link
		if err := rows.Scan(&link.ID, &link.SourceID, &link.TargetID,
			&link.Relation, &link.Description, &link.CreatedAt); err != nil {
			return nil, err
		}
		result = append(result, link)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}

// Delete removes the link; absent links are a no-op so redelivered deletes
// stay idempotent.
func (r *PostgresRepository) Delete(ctx context.Context, userID, id string) error {
	_, err := r.db.ExecContext(ctx, `DELETE FROM links WHERE user_id = $1 AND id = $2`, userID, id)
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	return nil
}

func (r *PostgresRepository) DeleteAllForUser(ctx context.Context, userID string) error {
	_, err := r.db.ExecContext(ctx, `DELETE FROM links WHERE user_id = $1`, userID)
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	return nil
}
