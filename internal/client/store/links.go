package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/example/cardbox/internal/dbx"
	"github.com/example/cardbox/internal/models"
	"github.com/example/cardbox/internal/shared"
)

// LinkRepository stores directed links with secondary lookups by source and
// target card id.
type LinkRepository struct {
	db dbx.DBTX
}

func NewLinkRepository(db dbx.DBTX) *LinkRepository {
	return &LinkRepository{db: db}
}

const linkColumns = `id, source_id, target_id, relation, description, created_at`

func (r *LinkRepository) Upsert(ctx context.Context, l *models.Link) error {
	query := `INSERT INTO links (` + linkColumns + `)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			source_id = excluded.source_id,
			target_id = excluded.target_id,
			relation = excluded.relation,
			description = excluded.description,
			created_at = excluded.created_at
	`
	_, err := r.db.ExecContext(ctx, query,
		l.ID, l.SourceID, l.TargetID, string(l.Relation), nullableString(l.Description), l.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to upsert link: %w", err)
	}
	return nil
}

func (r *LinkRepository) Get(ctx context.Context, id string) (*models.Link, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+linkColumns+` FROM links WHERE id = ?`, id)
	return scanLink(row)
}

// GetByPair looks up the link with the given ordered endpoint pair.
func (r *LinkRepository) GetByPair(ctx context.Context, sourceID, targetID string) (*models.Link, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+linkColumns+` FROM links WHERE source_id = ? AND target_id = ?`, sourceID, targetID)
	return scanLink(row)
}

func (r *LinkRepository) GetAll(ctx context.Context) ([]models.Link, error) {
	return r.list(ctx, `SELECT `+linkColumns+` FROM links ORDER BY created_at ASC`)
}

func (r *LinkRepository) ListBySource(ctx context.Context, sourceID string) ([]models.Link, error) {
	return r.list(ctx, `SELECT `+linkColumns+` FROM links WHERE source_id = ?`, sourceID)
}

func (r *LinkRepository) ListByTarget(ctx context.Context, targetID string) ([]models.Link, error) {
	return r.list(ctx, `SELECT `+linkColumns+` FROM links WHERE target_id = ?`, targetID)
}

// ListByCard lists every link in which the card participates as either
// endpoint.
func (r *LinkRepository) ListByCard(ctx context.Context, cardID string) ([]models.Link, error) {
	return r.list(ctx,
		`SELECT `+linkColumns+` FROM links WHERE source_id = ? OR target_id = ?`, cardID, cardID)
}

func (r *LinkRepository) Delete(ctx context.Context, id string) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM links WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("failed to delete link: %w", err)
	}
	ra, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if ra == 0 {
		return fmt.Errorf("link %s: %w", id, shared.ErrNotFound)
	}
	return nil
}

func (r *LinkRepository) list(ctx context.Context, query string, args ...any) ([]models.Link, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to select links: %w", err)
	}
	defer rows.Close()

	var result []models.Link
	for rows.Next() {
		var (
			l    models.Link
			desc sql.NullString
		)
		if err := rows.Scan(&l.ID, &l.SourceID, &l.TargetID, &l.Relation, &desc, &l.CreatedAt); err != nil {
			return nil, err
		}
		l.Description = desc.String
		result = append(result, l)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}

func scanLink(row *sql.Row) (*models.Link, error) {
	var (
		l    models.Link
		desc sql.NullString
	)
	err := row.Scan(&l.ID, &l.SourceID, &l.TargetID, &l.Relation, &desc, &l.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, shared.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("query row scan failed: %w", err)
	}
	l.Description = desc.String
	return &l, nil
}
