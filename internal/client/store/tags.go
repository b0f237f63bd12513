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

// TagRepository stores tags keyed by id with a unique index on the
// normalized name. Callers are expected to normalize before lookup; the
// repository only enforces uniqueness.
type TagRepository struct {
	db dbx.DBTX
}

func NewTagRepository(db dbx.DBTX) *TagRepository {
	return &TagRepository{db: db}
}

func (r *TagRepository) Upsert(ctx context.Context, t *models.Tag) error {
	query := `INSERT INTO tags (id, name, color, created_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			name = excluded.name,
			color = excluded.color,
			created_at = excluded.created_at
	`
	_, err := r.db.ExecContext(ctx, query, t.ID, t.Name, nullableString(t.Color), t.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to upsert tag: %w", err)
	}
	return nil
}

func (r *TagRepository) Get(ctx context.Context, id string) (*models.Tag, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT id, name, color, created_at FROM tags WHERE id = ?`, id)
	return scanTag(row)
}

// GetByName looks a tag up by its normalized name.
func (r *TagRepository) GetByName(ctx context.Context, name string) (*models.Tag, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT id, name, color, created_at FROM tags WHERE name = ?`, name)
	return scanTag(row)
}

func (r *TagRepository) GetAll(ctx context.Context) ([]models.Tag, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, name, color, created_at FROM tags ORDER BY name ASC`)
	if err != nil {
		return nil, fmt.Errorf("failed to select tags: %w", err)
	}
	defer rows.Close()

	var result []models.Tag
	for rows.Next() {
		var (
			t     models.Tag
			color sql.NullString
		)
		if err := rows.Scan(&t.ID, &t.Name, &color, &t.CreatedAt); err != nil {
			return nil, err
		}
		t.Color = color.String
		result = append(result, t)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}

func (r *TagRepository) Delete(ctx context.Context, id string) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM tags WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("failed to delete tag: %w", err)
	}
	ra, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if ra == 0 {
		return fmt.Errorf("tag %s: %w", id, shared.ErrNotFound)
	}
	return nil
}

func scanTag(row *sql.Row) (*models.Tag, error) {
	var (
		t     models.Tag
		color sql.NullString
	)
	err := row.Scan(&t.ID, &t.Name, &color, &t.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, shared.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("query row scan failed: %w", err)
	}
	t.Color = color.String
	return &t, nil
}

func nullableString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}
