package repomanager

import (
	"context"
	"database/sql"

	"github.com/example/cardbox/internal/dbx"
	"github.com/example/cardbox/internal/server/repositories/cards"
	"github.com/example/cardbox/internal/server/repositories/links"
	"github.com/example/cardbox/internal/server/repositories/tags"
)

type RepositoryManager interface {
	RunMigrations(context.Context, *sql.DB) error
	Cards(db dbx.DBTX) cards.Repository
	Tags(db dbx.DBTX) tags.Repository
	Links(db dbx.DBTX) links.Repository
}
