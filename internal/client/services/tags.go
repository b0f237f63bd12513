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

// TagService implements tag operations. Names are normalized to lower-case
// trimmed form before every lookup and write, so "Go " and "go" are the
// same tag.
type TagService struct {
	store  *store.Store
	engine *syncengine.Service
}

func NewTagService(st *store.Store, engine *syncengine.Service) *TagService {
	return &TagService{store: st, engine: engine}
}

func (s *TagService) ready() error {
	if s.store == nil {
		return shared.ErrNotReady
	}
	return nil
}

// Create stores a new tag with a palette color. Fails with ErrConflict when
// the normalized name already exists.
func (s *TagService) Create(ctx context.Context, name string) (*models.Tag, error) {
	if err := s.ready(); err != nil {
		return nil, err
	}
	normalized := normalizeTagName(name)
	if normalized == "" {
		return nil, fmt.Errorf("%w: tag name is required", shared.ErrValidation)
	}

	existing, err := s.store.Tags.GetByName(ctx, normalized)
	if err != nil && !errors.Is(err, shared.ErrNotFound) {
		return nil, err
	}
	if existing != nil {
		return nil, fmt.Errorf("%w: tag %q already exists", shared.ErrConflict, normalized)
	}

	tag := &models.Tag{
		ID:        uuid.NewString(),
		Name:      normalized,
		Color:     randomTagColor(),
		CreatedAt: nowMillis(),
	}
	if err := s.store.Tags.Upsert(ctx, tag); err != nil {
		return nil, fmt.Errorf("failed to save tag: %w", err)
	}
	if err := s.engine.Enqueue(ctx, models.EntityTag, models.ActionCreate, tag.ID, tag); err != nil {
		return nil, err
	}
	return tag, nil
}

// GetOrCreate returns the tag with the normalized name, creating it when
// absent.
func (s *TagService) GetOrCreate(ctx context.Context, name string) (*models.Tag, error) {
	if err := s.ready(); err != nil {
		return nil, err
	}
	normalized := normalizeTagName(name)
	if normalized == "" {
		return nil, fmt.Errorf("%w: tag name is required", shared.ErrValidation)
	}

	tag, err := s.store.Tags.GetByName(ctx, normalized)
	if err == nil {
		return tag, nil
	}
	if !errors.Is(err, shared.ErrNotFound) {
		return nil, err
	}
	return s.Create(ctx, normalized)
}

// Rename changes a tag's name, keeping normalization and per-owner
// uniqueness.
func (s *TagService) Rename(ctx context.Context, id, newName string) (*models.Tag, error) {
	if err := s.ready(); err != nil {
		return nil, err
	}
	normalized := normalizeTagName(newName)
	if normalized == "" {
		return nil, fmt.Errorf("%w: tag name is required", shared.ErrValidation)
	}

	tag, err := s.store.Tags.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if tag.Name == normalized {
		return tag, nil
	}

	existing, err := s.store.Tags.GetByName(ctx, normalized)
	if err != nil && !errors.Is(err, shared.ErrNotFound) {
		return nil, err
	}
	if existing != nil && existing.ID != id {
		return nil, fmt.Errorf("%w: tag %q already exists", shared.ErrConflict, normalized)
	}

	tag.Name = normalized
	if err := s.store.Tags.Upsert(ctx, tag); err != nil {
		return nil, fmt.Errorf("failed to save tag: %w", err)
	}
	if err := s.engine.Enqueue(ctx, models.EntityTag, models.ActionUpdate, tag.ID, tag); err != nil {
		return nil, err
	}
	return tag, nil
}

// Delete removes the tag and strips its id from every card referencing it.
// Each touched card is queued as an update so the detachment replicates.
func (s *TagService) Delete(ctx context.Context, id string) error {
	if err := s.ready(); err != nil {
		return err
	}

	if _, err := s.store.Tags.Get(ctx, id); err != nil {
		return err
	}

	cards, err := s.store.Cards.GetAll(ctx)
	if err != nil {
		return err
	}
	for i := range cards {
		card := cards[i]
		if !slices.Contains(card.TagIDs, id) {
			continue
		}
		card.TagIDs = slices.DeleteFunc(card.TagIDs, func(tagID string) bool { return tagID == id })
		card.UpdatedAt = nowMillis()
		if err := s.store.Cards.Upsert(ctx, &card); err != nil {
			return fmt.Errorf("failed to detach tag from card %s: %w", card.ID, err)
		}
		if err := s.engine.Enqueue(ctx, models.EntityCard, models.ActionUpdate, card.ID, &card); err != nil {
			return err
		}
	}

	if err := s.store.Tags.Delete(ctx, id); err != nil {
		return err
	}
	return s.engine.Enqueue(ctx, models.EntityTag, models.ActionDelete, id, nil)
}

func (s *TagService) Get(ctx context.Context, id string) (*models.Tag, error) {
	if err := s.ready(); err != nil {
		return nil, err
	}
	return s.store.Tags.Get(ctx, id)
}

func (s *TagService) List(ctx context.Context) ([]models.Tag, error) {
	if err := s.ready(); err != nil {
		return nil, err
	}
	return s.store.Tags.GetAll(ctx)
}
