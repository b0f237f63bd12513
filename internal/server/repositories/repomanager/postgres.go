// Package repomanager provides a concrete RepositoryManager for PostgreSQL,
// wiring together repository constructors and database migrations (via goose).
package repomanager

import (
	"context"
	"database/sql"

	"github.com/example/cardbox/internal/dbx"
	"github.com/example/cardbox/internal/server/migrations"
	"github.com/example/cardbox/internal/server/repositories/cards"
	"github.com/example/cardbox/internal/server/repositories/links"
	"github.com/example/cardbox/internal/server/repositories/tags"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/pressly/goose/v3"
)

// PostgresRepositoryManager vends PostgreSQL-backed repository
// implementations and exposes a schema migration hook.
type PostgresRepositoryManager struct{}

// Cards returns a cards.Repository bound to the provided DBTX.
func (m *PostgresRepositoryManager) Cards(db dbx.DBTX) cards.Repository {
	return cards.NewPostgresRepository(db)
}

// Tags returns a tags.Repository bound to the provided DBTX.
func (m *PostgresRepositoryManager) Tags(db dbx.DBTX) tags.Repository {
	return tags.NewPostgresRepository(db)
}

// Links returns a links.Repository bound to the provided DBTX.
func (m *PostgresRepositoryManager) Links(db dbx.DBTX) links.Repository {
	return links.NewPostgresRepository(db)
}

// gooseUpContext is a seam for testing goose.UpContext.
var gooseUpContext = func(ctx context.Context, db *sql.DB, dir string, opts ...goose.OptionsFunc) error {
	return goose.UpContext(ctx, db, dir, opts...)
}

// RunMigrations sets up goose with the embedded migrations and runs them
// against the provided database connection.
func (m *PostgresRepositoryManager) RunMigrations(ctx context.Context, db *sql.DB) error {
	goose.SetBaseFS(migrations.Migrations)
	goose.SetDialect("pgx")
	if err := gooseUpContext(ctx, db, "."); err != nil {
		return err
	}
	return nil
}

// NewPostgresRepositoryManager constructs a PostgreSQL-backed RepositoryManager.
func NewPostgresRepositoryManager() RepositoryManager {
	return &PostgresRepositoryManager{}
}
