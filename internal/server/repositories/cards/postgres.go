// Package cards provides the PostgreSQL-backed repository for server-side
// card persistence and sync queries.
package cards

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/example/cardbox/internal/dbx"
	"github.com/example/cardbox/internal/models"
	"github.com/example/cardbox/internal/shared"
	"github.com/jackc/pgx/v5/pgconn"
)

// PostgresRepository implements card storage over a dbx.DBTX (*sql.DB or *sql.Tx).
type PostgresRepository struct {
	db dbx.DBTX
}

// NewPostgresRepository constructs a repository bound to the given DBTX.
func NewPostgresRepository(db dbx.DBTX) *PostgresRepository {
	return &PostgresRepository{db: db}
}

// Timestamps cross the wire as epoch milliseconds and live in the database
// as timestamptz; the conversion happens inside the SQL on both paths.
const selectColumns = `
	id, share_id, title, content, type, status, is_public, word_count, tag_ids,
	(EXTRACT(EPOCH FROM created_at) * 1000)::bigint,
	(EXTRACT(EPOCH FROM updated_at) * 1000)::bigint,
	(EXTRACT(EPOCH FROM promoted_at) * 1000)::bigint`

// Upsert inserts or updates a card by id for a specific user. If a
// conflicting row exists for another user, no row is updated and
// ErrConflict is returned. Stale versions are accepted as-is; last writer
// wins on the timestamps the client sends. created_at is fixed at first
// insert and kept on conflict.
func (r *PostgresRepository) Upsert(ctx context.Context, userID string, card *models.Card) error {
	tagIDs, err := json.Marshal(card.TagIDs)
	if err != nil {
		return fmt.Errorf("failed to encode tag ids: %w", err)
	}

	query := `
		INSERT INTO cards (id, user_id, share_id, title, content, type, status, is_public, word_count, tag_ids,
			created_at, updated_at, promoted_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10,
			to_timestamp($11::bigint / 1000.0),
			to_timestamp($12::bigint / 1000.0),
			to_timestamp(NULLIF($13::bigint, 0) / 1000.0))
		ON CONFLICT (id)
		DO UPDATE SET
			share_id = EXCLUDED.share_id,
			title = EXCLUDED.title,
			content = EXCLUDED.content,
			type = EXCLUDED.type,
			status = EXCLUDED.status,
			is_public = EXCLUDED.is_public,
			word_count = EXCLUDED.word_count,
			tag_ids = EXCLUDED.tag_ids,
			updated_at = EXCLUDED.updated_at,
			promoted_at = EXCLUDED.promoted_at
			WHERE cards.user_id = EXCLUDED.user_id;
	`
	res, err := r.db.ExecContext(ctx, query,
		card.ID, userID, card.ShareID, card.Title, card.Content, card.Type, card.Status,
		card.IsPublic, card.WordCount, tagIDs, card.CreatedAt, card.UpdatedAt, card.PromotedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("%w: share id already in use", shared.ErrConflict)
		}
		return fmt.Errorf("db error: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected error: %w", err)
	}
	switch n {
	case 1:
		return nil
	case 0:
		return shared.ErrConflict
	default:
		return fmt.Errorf("unexpected rows affected: %d", n)
	}
}

// Update applies a partial update to one card owned by userID. Nil patch
// fields keep their stored values; promoted_at in particular is never
// cleared once set because a nil field coalesces to the old value.
func (r *PostgresRepository) Update(ctx context.Context, userID, id string, patch *models.CardPatch) error {
	var tagIDs any
	if patch.TagIDs != nil {
		b, err := json.Marshal(patch.TagIDs)
		if err != nil {
			return fmt.Errorf("failed to encode tag ids: %w", err)
		}
		tagIDs = b
	}

	query := `
		UPDATE cards SET
			title = COALESCE($3, title),
			content = COALESCE($4, content),
			type = COALESCE($5, type),
			status = COALESCE($6, status),
			is_public = COALESCE($7, is_public),
			word_count = COALESCE($8, word_count),
			tag_ids = COALESCE($9::jsonb, tag_ids),
			updated_at = COALESCE(to_timestamp($10::bigint / 1000.0), updated_at),
			promoted_at = COALESCE(to_timestamp($11::bigint / 1000.0), promoted_at)
		WHERE user_id = $1 AND id = $2`

	res, err := r.db.ExecContext(ctx, query, userID, id,
		patch.Title, patch.Content, stringPtr(patch.Type), stringPtr(patch.Status),
		patch.IsPublic, patch.WordCount, tagIDs, patch.UpdatedAt, patch.PromotedAt)
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected error: %w", err)
	}
	if n == 0 {
		return shared.ErrNotFound
	}
	return nil
}

func stringPtr[T ~string](p *T) *string {
	if p == nil {
		return nil
	}
	s := string(*p)
	return &s
}

// Get returns one card owned by userID.
func (r *PostgresRepository) Get(ctx context.Context, userID, id string) (*models.Card, error) {
	query := `SELECT ` + selectColumns + ` FROM cards WHERE user_id = $1 AND id = $2`
	return scanCard(r.db.QueryRowContext(ctx, query, userID, id))
}

// GetShared resolves a share id to its card and owner, regardless of the
// caller. Only public cards are returned; a private card behaves as if it
// did not exist.
func (r *PostgresRepository) GetShared(ctx context.Context, shareID string) (*models.Card, string, error) {
	query := `SELECT user_id, ` + selectColumns + ` FROM cards WHERE share_id = $1 AND is_public = TRUE`

	var (
		card       models.Card
		ownerID    string
		tagIDs     []byte
		promotedAt sql.NullInt64
	)
	err := r.db.QueryRowContext(ctx, query, shareID).Scan(&ownerID,
		&card.ID, &card.ShareID, &card.Title, &card.Content, &card.Type, &card.Status,
		&card.IsPublic, &card.WordCount, &tagIDs, &card.CreatedAt, &card.UpdatedAt, &promotedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, "", shared.ErrNotFound
		}
		return nil, "", fmt.Errorf("db error: %w", err)
	}
	if err := json.Unmarshal(tagIDs, &card.TagIDs); err != nil {
		return nil, "", fmt.Errorf("failed to decode tag ids: %w", err)
	}
	if promotedAt.Valid {
		card.PromotedAt = promotedAt.Int64
	}
	return &card, ownerID, nil
}

// ListUpdated returns all cards for userID with updated_at strictly after
// sinceMillis. A non-positive sinceMillis returns everything.
func (r *PostgresRepository) ListUpdated(ctx context.Context, userID string, sinceMillis int64) ([]models.Card, error) {
	query := `SELECT ` + selectColumns + ` FROM cards
		WHERE user_id = $1 AND updated_at > to_timestamp($2::bigint / 1000.0)
		ORDER BY updated_at`
	rows, err := r.db.QueryContext(ctx, query, userID, sinceMillis)
	if err != nil {
		return nil, fmt.Errorf("failed to select cards: %w", err)
	}
	defer rows.Close()

	var result []models.Card
	for rows.Next() {
		card, err := scanCardRow(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, *card)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}

// Delete removes the card. Deleting an absent card is not an error so a
// redelivered delete stays idempotent.
func (r *PostgresRepository) Delete(ctx context.Context, userID, id string) error {
	_, err := r.db.ExecContext(ctx, `DELETE FROM cards WHERE user_id = $1 AND id = $2`, userID, id)
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	return nil
}

// DeleteAllForUser removes every card of the user. Links go with them via
// the foreign key cascade.
func (r *PostgresRepository) DeleteAllForUser(ctx context.Context, userID string) error {
	_, err := r.db.ExecContext(ctx, `DELETE FROM cards WHERE user_id = $1`, userID)
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanCardRow(s rowScanner) (*models.Card, error) {
	var (
		card       models.Card
		tagIDs     []byte
		promotedAt sql.NullInt64
	)
	err := s.Scan(&card.ID, &card.ShareID, &card.Title, &card.Content, &card.Type, &card.Status,
		&card.IsPublic, &card.WordCount, &tagIDs, &card.CreatedAt, &card.UpdatedAt, &promotedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, shared.ErrNotFound
		}
		return nil, fmt.Errorf("db error: %w", err)
	}
	if err := json.Unmarshal(tagIDs, &card.TagIDs); err != nil {
		return nil, fmt.Errorf("failed to decode tag ids: %w", err)
	}
	if promotedAt.Valid {
		card.PromotedAt = promotedAt.Int64
	}
	return &card, nil
}

func scanCard(row *sql.Row) (*models.Card, error) {
	return scanCardRow(row)
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}
