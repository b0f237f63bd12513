package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/example/cardbox/internal/dbx"
)

// MetadataRepository is a small key-value table used for sync bookkeeping
// (pending queue, last-sync watermark, session token). It lives in the same
// database file as the replica but is deliberately outside the replica
// collections, so wiping those never touches it.
type MetadataRepository struct {
	db dbx.DBTX
}

func NewMetadataRepository(db dbx.DBTX) *MetadataRepository {
	return &MetadataRepository{db: db}
}

// Get returns the value for key, or nil when the key is absent.
func (r *MetadataRepository) Get(ctx context.Context, key string) ([]byte, error) {
	var value []byte
	err := r.db.QueryRowContext(ctx, `SELECT value FROM metadata WHERE key = ?`, key).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get metadata[%s]: %w", key, err)
	}
	return value, nil
}

func (r *MetadataRepository) Set(ctx context.Context, key string, value []byte) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO metadata (key, value) VALUES (?, ?)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value
	`, key, value)
	if err != nil {
		return fmt.Errorf("failed to set metadata[%s]: %w", key, err)
	}
	return nil
}

func (r *MetadataRepository) Delete(ctx context.Context, key string) error {
	_, err := r.db.ExecContext(ctx, `DELETE FROM metadata WHERE key = ?`, key)
	if err != nil {
		return fmt.Errorf("failed to delete metadata[%s]: %w", key, err)
	}
	return nil
}
