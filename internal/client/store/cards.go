package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/example/cardbox/internal/dbx"
	"github.com/example/cardbox/internal/models"
	"github.com/example/cardbox/internal/shared"
)

// CardRepository stores cards keyed by id, with secondary lookups by type,
// status and share id. Tag membership is kept as a JSON array column; the
// replica does not need relational joins over it.
type CardRepository struct {
	db dbx.DBTX
}

func NewCardRepository(db dbx.DBTX) *CardRepository {
	return &CardRepository{db: db}
}

const cardColumns = `id, share_id, title, content, type, status, is_public, word_count, tag_ids, created_at, updated_at, promoted_at`

// Upsert writes the full card snapshot by primary key. Applying the same
// snapshot twice is a no-op; the local mutation path and the merge path both
// rely on that.
func (r *CardRepository) Upsert(ctx context.Context, c *models.Card) error {
	tagIDs, err := json.Marshal(c.TagIDs)
	if err != nil {
		return fmt.Errorf("failed to encode tag ids: %w", err)
	}

	query := `INSERT INTO cards (` + cardColumns + `)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			share_id = excluded.share_id,
			title = excluded.title,
			content = excluded.content,
			type = excluded.type,
			status = excluded.status,
			is_public = excluded.is_public,
			word_count = excluded.word_count,
			tag_ids = excluded.tag_ids,
			created_at = excluded.created_at,
			updated_at = excluded.updated_at,
			promoted_at = excluded.promoted_at
	`
	_, err = r.db.ExecContext(ctx, query,
		c.ID, c.ShareID, c.Title, c.Content, string(c.Type), string(c.Status),
		c.IsPublic, c.WordCount, string(tagIDs), c.CreatedAt, c.UpdatedAt, nullableMillis(c.PromotedAt))
	if err != nil {
		return fmt.Errorf("failed to upsert card: %w", err)
	}
	return nil
}

func (r *CardRepository) Get(ctx context.Context, id string) (*models.Card, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+cardColumns+` FROM cards WHERE id = ?`, id)
	return scanCard(row)
}

func (r *CardRepository) GetByShareID(ctx context.Context, shareID string) (*models.Card, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+cardColumns+` FROM cards WHERE share_id = ?`, shareID)
	return scanCard(row)
}

// GetAll lists every card, newest first.
func (r *CardRepository) GetAll(ctx context.Context) ([]models.Card, error) {
	return r.list(ctx, `SELECT `+cardColumns+` FROM cards ORDER BY created_at DESC`)
}

func (r *CardRepository) ListByType(ctx context.Context, t models.CardType) ([]models.Card, error) {
	return r.list(ctx, `SELECT `+cardColumns+` FROM cards WHERE type = ? ORDER BY created_at DESC`, string(t))
}

func (r *CardRepository) ListByStatus(ctx context.Context, s models.CardStatus) ([]models.Card, error) {
	return r.list(ctx, `SELECT `+cardColumns+` FROM cards WHERE status = ? ORDER BY created_at DESC`, string(s))
}

// Search matches the query as a case-insensitive substring of title or
// content.
func (r *CardRepository) Search(ctx context.Context, query string) ([]models.Card, error) {
	pattern := "%" + query + "%"
	return r.list(ctx,
		`SELECT `+cardColumns+` FROM cards WHERE title LIKE ? OR content LIKE ? ORDER BY created_at DESC`,
		pattern, pattern)
}

func (r *CardRepository) Delete(ctx context.Context, id string) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM cards WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("failed to delete card: %w", err)
	}
	ra, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if ra == 0 {
		return fmt.Errorf("card %s: %w", id, shared.ErrNotFound)
	}
	return nil
}

func (r *CardRepository) list(ctx context.Context, query string, args ...any) ([]models.Card, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to select cards: %w", err)
	}
	defer rows.Close()

	var result []models.Card
	for rows.Next() {
		c, err := scanCardRow(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, *c)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanCardRow(s rowScanner) (*models.Card, error) {
	var (
		c          models.Card
		tagIDs     string
		promotedAt sql.NullInt64
	)
	err := s.Scan(&c.ID, &c.ShareID, &c.Title, &c.Content, &c.Type, &c.Status,
		&c.IsPublic, &c.WordCount, &tagIDs, &c.CreatedAt, &c.UpdatedAt, &promotedAt)
	if err != nil {
		return nil, err
	}
	if err := json.Unmarshal([]byte(tagIDs), &c.TagIDs); err != nil {
		return nil, fmt.Errorf("failed to decode tag ids: %w", err)
	}
	if promotedAt.Valid {
		c.PromotedAt = promotedAt.Int64
	}
	return &c, nil
}

func scanCard(row *sql.Row) (*models.Card, error) {
	c, err := scanCardRow(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, shared.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("query row scan failed: %w", err)
	}
	return c, nil
}

// nullableMillis maps the zero timestamp to NULL so "never promoted" does
// not round-trip as 1970.
func nullableMillis(ms int64) sql.NullInt64 {
	return sql.NullInt64{Int64: ms, Valid: ms != 0}
}
