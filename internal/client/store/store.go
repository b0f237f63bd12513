// Package store implements the local replica: durable, indexed storage for
// cards, tags and links on the client device, plus a small metadata
// key-value table used for sync bookkeeping. The replica is the only state
// mutated both by user actions and by sync merges; both go through the same
// upsert/delete primitives.
package store

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/example/cardbox/internal/client/store/migrations"
	"github.com/example/cardbox/internal/dbx"
	"github.com/example/cardbox/internal/models"
	"github.com/pressly/goose/v3"
)

// Store bundles the replica repositories over a single SQLite database.
type Store struct {
	db       *sql.DB
	Cards    *CardRepository
	Tags     *TagRepository
	Links    *LinkRepository
	Metadata *MetadataRepository
}

// RunMigrations applies the embedded goose migrations.
func RunMigrations(ctx context.Context, db *sql.DB) error {
	goose.SetBaseFS(migrations.Migrations)

	if err := goose.SetDialect("sqlite3"); err != nil {
		return fmt.Errorf("failed to set goose dialect: %w", err)
	}

	return goose.UpContext(ctx, db, ".")
}

// Open opens (creating if necessary) the replica database at dsn, applies
// migrations and returns a ready Store.
func Open(ctx context.Context, dsn string) (*Store, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("db open error: %w", err)
	}

	if err := RunMigrations(ctx, db); err != nil {
		return nil, fmt.Errorf("migration error: %w", err)
	}

	return New(db), nil
}

// New builds a Store over an already-open database. Used by tests.
func New(db *sql.DB) *Store {
	return &Store{
		db:       db,
		Cards:    NewCardRepository(db),
		Tags:     NewTagRepository(db),
		Links:    NewLinkRepository(db),
		Metadata: NewMetadataRepository(db),
	}
}

func (s *Store) Close() error {
	return s.db.Close()
}

// DeleteCardCascade removes a card and every link in which it participates,
// in one transaction, so the replica never holds a dangling link. The
// removed links are returned so the caller can queue their remote deletion.
func (s *Store) DeleteCardCascade(ctx context.Context, id string) ([]models.Link, error) {
	var removed []models.Link

	err := dbx.WithTx(ctx, s.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		links := NewLinkRepository(tx)
		cards := NewCardRepository(tx)

		incident, err := links.ListByCard(ctx, id)
		if err != nil {
			return err
		}

		for _, l := range incident {
			if err := links.Delete(ctx, l.ID); err != nil {
				return err
			}
		}

		if err := cards.Delete(ctx, id); err != nil {
			return err
		}

		removed = incident
		return nil
	})
	if err != nil {
		return nil, err
	}

	return removed, nil
}

// WipeCollections deletes every card, tag and link. The metadata table is
// left alone; the caller decides what sync bookkeeping to reset.
func (s *Store) WipeCollections(ctx context.Context) error {
	return dbx.WithTx(ctx, s.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		for _, table := range []string{"links", "cards", "tags"} {
			if _, err := tx.ExecContext(ctx, `DELETE FROM `+table); err != nil {
				return fmt.Errorf("failed to wipe %s: %w", table, err)
			}
		}
		return nil
	})
}
