package cards

import (
	"context"

	"github.com/example/cardbox/internal/models"
)

// Repository is the server-side card storage contract.
type Repository interface {
	Upsert(ctx context.Context, userID string, card *models.Card) error
	Update(ctx context.Context, userID, id string, patch *models.CardPatch) error
	Get(ctx context.Context, userID, id string) (*models.Card, error)
	GetShared(ctx context.Context, shareID string) (*models.Card, string, error)
	ListUpdated(ctx context.Context, userID string, sinceMillis int64) ([]models.Card, error)
	Delete(ctx context.Context, userID, id string) error
	DeleteAllForUser(ctx context.Context, userID string) error
}
