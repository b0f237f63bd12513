package links

import (
	"context"

	"github.com/example/cardbox/internal/models"
)

// Repository is the server-side link storage contract.
type Repository interface {
	Upsert(ctx context.Context, userID string, link *models.Link) error
	ListUpdated(ctx context.Context, userID string, sinceMillis int64) ([]models.Link, error)
	Delete(ctx context.Context, userID, id string) error
	DeleteAllForUser(ctx context.Context, userID string) error
}
