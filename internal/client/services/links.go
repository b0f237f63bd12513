package services

import (
	"context"
	"errors"
	"fmt"
	"slices"

	"github.com/google/uuid"

	syncengine "github.com/example/cardbox/internal/client/sync"
	"github.com/example/cardbox/internal/client/store"
	"github.com/example/cardbox/internal/models"
	"github.com/example/cardbox/internal/shared"
)

// LinkService implements typed relations between cards. The ordered
// (source, target) pair is unique: linking an already-linked pair updates
// the existing link instead of creating a duplicate.
type LinkService struct {
	store  *store.Store
	engine *syncengine.Service
}

func NewLinkService(st *store.Store, engine *syncengine.Service) *LinkService {
	return &LinkService{store: st, engine: engine}
}

func (s *LinkService) ready() error {
	if s.store == nil {
		return shared.ErrNotReady
	}
	return nil
}

// Create links source to target. Both cards must exist locally and a card
// cannot link to itself.
func (s *LinkService) Create(ctx context.Context, sourceID, targetID string, relation models.RelationType, description string) (*models.Link, error) {
	if err := s.ready(); err != nil {
		return nil, err
	}
	if sourceID == targetID {
		return nil, fmt.Errorf("%w: a card cannot link to itself", shared.ErrValidation)
	}
	if !models.ValidRelation(relation) {
		return nil, fmt.Errorf("%w: unknown relation %q", shared.ErrValidation, relation)
	}

	if _, err := s.store.Cards.Get(ctx, sourceID); err != nil {
		return nil, fmt.Errorf("source card: %w", err)
	}
	if _, err := s.store.Cards.Get(ctx, targetID); err != nil {
		return nil, fmt.Errorf("target card: %w", err)
	}

	existing, err := s.store.Links.GetByPair(ctx, sourceID, targetID)
	if err != nil && !errors.Is(err, shared.ErrNotFound) {
		return nil, err
	}
	if existing != nil {
		existing.Relation = relation
		existing.Description = description
		if err := s.store.Links.Upsert(ctx, existing); err != nil {
			return nil, fmt.Errorf("failed to save link: %w", err)
		}
		if err := s.engine.Enqueue(ctx, models.EntityLink, models.ActionUpdate, existing.ID, existing); err != nil {
			return nil, err
		}
		return existing, nil
	}

	link := &models.Link{
		ID:          uuid.NewString(),
		SourceID:    sourceID,
		TargetID:    targetID,
		Relation:    relation,
		Description: description,
		CreatedAt:   nowMillis(),
	}
	if err := s.store.Links.Upsert(ctx, link); err != nil {
		return nil, fmt.Errorf("failed to save link: %w", err)
	}
	if err := s.engine.Enqueue(ctx, models.EntityLink, models.ActionCreate, link.ID, link); err != nil {
		return nil, err
	}
	return link, nil
}

func (s *LinkService) Delete(ctx context.Context, id string) error {
	if err := s.ready(); err != nil {
		return err
	}
	if err := s.store.Links.Delete(ctx, id); err != nil {
		return err
	}
	return s.engine.Enqueue(ctx, models.EntityLink, models.ActionDelete, id, nil)
}

// ListForCard returns every link the card participates in, as source or
// target.
func (s *LinkService) ListForCard(ctx context.Context, cardID string) ([]models.Link, error) {
	if err := s.ready(); err != nil {
		return nil, err
	}
	return s.store.Links.ListByCard(ctx, cardID)
}

// SuggestRelated proposes cards sharing at least one tag with the given
// card, excluding itself and cards it is already linked to. Candidates are
// ordered by shared-tag count, best match first.
func (s *LinkService) SuggestRelated(ctx context.Context, cardID string) ([]models.Card, error) {
	if err := s.ready(); err != nil {
		return nil, err
	}

	card, err := s.store.Cards.Get(ctx, cardID)
	if err != nil {
		return nil, err
	}
	if len(card.TagIDs) == 0 {
		return nil, nil
	}

	links, err := s.store.Links.ListByCard(ctx, cardID)
	if err != nil {
		return nil, err
	}
	linked := make(map[string]struct{}, len(links))
	for _, l := range links {
		linked[l.SourceID] = struct{}{}
		linked[l.TargetID] = struct{}{}
	}

	cards, err := s.store.Cards.GetAll(ctx)
	if err != nil {
		return nil, err
	}

	type candidate struct {
		card   models.Card
		shared int
	}
	var candidates []candidate
	for _, other := range cards {
		if other.ID == cardID {
			continue
		}
		if _, ok := linked[other.ID]; ok {
			continue
		}
		n := 0
		for _, tagID := range other.TagIDs {
			if slices.Contains(card.TagIDs, tagID) {
				n++
			}
		}
		if n > 0 {
			candidates = append(candidates, candidate{card: other, shared: n})
		}
	}

	slices.SortStableFunc(candidates, func(a, b candidate) int { return b.shared - a.shared })

	result := make([]models.Card, 0, len(candidates))
	for _, c := range candidates {
		result = append(result, c.card)
	}
	return result, nil
}
