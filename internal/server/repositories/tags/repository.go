package tags

import (
	"context"

	"github.com/example/cardbox/internal/models"
)

// Repository is the server-side tag storage contract.
type Repository interface {
	Upsert(ctx context.Context, userID string, tag *models.Tag) error
	Get(ctx context.Context, userID, id string) (*models.Tag, error)
	ListUpdated(ctx context.Context, userID string, sinceMillis int64) ([]models.Tag, error)
	ListByIDs(ctx context.Context, userID string, ids []string) ([]models.Tag, error)
	Delete(ctx context.Context, userID, id string) error
	DeleteAllForUser(ctx context.Context, userID string) error
}
