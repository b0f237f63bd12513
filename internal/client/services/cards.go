package services

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"

	syncengine "github.com/example/cardbox/internal/client/sync"
	"github.com/example/cardbox/internal/client/store"
	"github.com/example/cardbox/internal/models"
	"github.com/example/cardbox/internal/shared"
)

// CardService implements card lifecycle operations on the local replica.
type CardService struct {
	store  *store.Store
	tags   *TagService
	engine *syncengine.Service
}

func NewCardService(st *store.Store, tags *TagService, engine *syncengine.Service) *CardService {
	return &CardService{store: st, tags: tags, engine: engine}
}

// CardUpdate carries the mutable card fields; nil means "leave unchanged".
type CardUpdate struct {
	Title    *string
	Content  *string
	Type     *models.CardType
	Status   *models.CardStatus
	IsPublic *bool
	TagNames []string
}

func (s *CardService) ready() error {
	if s.store == nil {
		return shared.ErrNotReady
	}
	return nil
}

func validateTitle(title string) error {
	title = strings.TrimSpace(title)
	if title == "" {
		return fmt.Errorf("%w: title is required", shared.ErrValidation)
	}
	if len([]rune(title)) > models.TitleMaxLength {
		return fmt.Errorf("%w: title exceeds %d characters", shared.ErrValidation, models.TitleMaxLength)
	}
	return nil
}

func validateContent(content string) (int, error) {
	words := countWords(content)
	if words > models.WordLimitHard {
		return 0, fmt.Errorf("%w: content exceeds %d words", shared.ErrValidation, models.WordLimitHard)
	}
	return words, nil
}

// Create validates and stores a new card, then queues it for delivery.
// Tag names are resolved to tags, creating missing ones on the fly.
func (s *CardService) Create(ctx context.Context, title, content string, cardType models.CardType, tagNames []string) (*models.Card, error) {
	if err := s.ready(); err != nil {
		return nil, err
	}
	if err := validateTitle(title); err != nil {
		return nil, err
	}
	if !models.ValidCardType(cardType) {
		return nil, fmt.Errorf("%w: unknown card type %q", shared.ErrValidation, cardType)
	}
	words, err := validateContent(content)
	if err != nil {
		return nil, err
	}

	tagIDs, err := s.resolveTagNames(ctx, tagNames)
	if err != nil {
		return nil, err
	}

	shareID, err := newShareID(models.ShareIDLength)
	if err != nil {
		return nil, fmt.Errorf("failed to generate share id: %w", err)
	}

	now := nowMillis()
	card := &models.Card{
		ID:        uuid.NewString(),
		ShareID:   shareID,
		Title:     strings.TrimSpace(title),
		Content:   content,
		Type:      cardType,
		Status:    models.CardStatusDraft,
		WordCount: words,
		TagIDs:    tagIDs,
		CreatedAt: now,
		UpdatedAt: now,
	}

	if err := s.store.Cards.Upsert(ctx, card); err != nil {
		return nil, fmt.Errorf("failed to save card: %w", err)
	}
	if err := s.engine.Enqueue(ctx, models.EntityCard, models.ActionCreate, card.ID, card); err != nil {
		return nil, err
	}
	return card, nil
}

// Update applies the non-nil fields of upd to the card and queues the new
// version.
func (s *CardService) Update(ctx context.Context, id string, upd CardUpdate) (*models.Card, error) {
	if err := s.ready(); err != nil {
		return nil, err
	}

	card, err := s.store.Cards.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	if upd.Title != nil {
		if err := validateTitle(*upd.Title); err != nil {
			return nil, err
		}
		card.Title = strings.TrimSpace(*upd.Title)
	}
	if upd.Content != nil {
		words, err := validateContent(*upd.Content)
		if err != nil {
			return nil, err
		}
		card.Content = *upd.Content
		card.WordCount = words
	}
	if upd.Type != nil {
		if !models.ValidCardType(*upd.Type) {
			return nil, fmt.Errorf("%w: unknown card type %q", shared.ErrValidation, *upd.Type)
		}
		card.Type = *upd.Type
	}
	if upd.Status != nil {
		if !models.ValidCardStatus(*upd.Status) {
			return nil, fmt.Errorf("%w: unknown card status %q", shared.ErrValidation, *upd.Status)
		}
		card.Status = *upd.Status
	}
	if upd.IsPublic != nil {
		card.IsPublic = *upd.IsPublic
	}
	if upd.TagNames != nil {
		tagIDs, err := s.resolveTagNames(ctx, upd.TagNames)
		if err != nil {
			return nil, err
		}
		card.TagIDs = tagIDs
	}

	card.UpdatedAt = nowMillis()
	if err := s.store.Cards.Upsert(ctx, card); err != nil {
		return nil, fmt.Errorf("failed to save card: %w", err)
	}
	if err := s.engine.Enqueue(ctx, models.EntityCard, models.ActionUpdate, card.ID, card); err != nil {
		return nil, err
	}
	return card, nil
}

// Promote turns a card into a PERMANENT, ARCHIVED note. A card qualifies
// only once it is linked to at least one other card.
func (s *CardService) Promote(ctx context.Context, id string) (*models.Card, error) {
	if err := s.ready(); err != nil {
		return nil, err
	}

	card, err := s.store.Cards.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if card.Type == models.CardTypePermanent {
		return nil, shared.ErrAlreadyPermanent
	}

	links, err := s.store.Links.ListByCard(ctx, id)
	if err != nil {
		return nil, err
	}
	if len(links) == 0 {
		return nil, fmt.Errorf("%w: card must be linked to at least one other card", shared.ErrValidation)
	}

	now := nowMillis()
	card.Type = models.CardTypePermanent
	card.Status = models.CardStatusArchived
	card.PromotedAt = now
	card.UpdatedAt = now

	if err := s.store.Cards.Upsert(ctx, card); err != nil {
		return nil, fmt.Errorf("failed to save card: %w", err)
	}
	if err := s.engine.Enqueue(ctx, models.EntityCard, models.ActionUpdate, card.ID, card); err != nil {
		return nil, err
	}
	return card, nil
}

// Delete removes a card and its incident links from the replica and queues
// the deletions, links first so the remote store never sees a dangling
// reference.
func (s *CardService) Delete(ctx context.Context, id string) error {
	if err := s.ready(); err != nil {
		return err
	}

	removedLinks, err := s.store.DeleteCardCascade(ctx, id)
	if err != nil {
		return err
	}

	for _, l := range removedLinks {
		if err := s.engine.Enqueue(ctx, models.EntityLink, models.ActionDelete, l.ID, nil); err != nil {
			return err
		}
	}
	return s.engine.Enqueue(ctx, models.EntityCard, models.ActionDelete, id, nil)
}

func (s *CardService) Get(ctx context.Context, id string) (*models.Card, error) {
	if err := s.ready(); err != nil {
		return nil, err
	}
	return s.store.Cards.Get(ctx, id)
}

func (s *CardService) List(ctx context.Context) ([]models.Card, error) {
	if err := s.ready(); err != nil {
		return nil, err
	}
	return s.store.Cards.GetAll(ctx)
}

func (s *CardService) ListByType(ctx context.Context, t models.CardType) ([]models.Card, error) {
	if err := s.ready(); err != nil {
		return nil, err
	}
	if !models.ValidCardType(t) {
		return nil, fmt.Errorf("%w: unknown card type %q", shared.ErrValidation, t)
	}
	return s.store.Cards.ListByType(ctx, t)
}

func (s *CardService) ListByStatus(ctx context.Context, st models.CardStatus) ([]models.Card, error) {
	if err := s.ready(); err != nil {
		return nil, err
	}
	if !models.ValidCardStatus(st) {
		return nil, fmt.Errorf("%w: unknown card status %q", shared.ErrValidation, st)
	}
	return s.store.Cards.ListByStatus(ctx, st)
}

// Search matches the query against titles and content, case-insensitively.
func (s *CardService) Search(ctx context.Context, query string) ([]models.Card, error) {
	if err := s.ready(); err != nil {
		return nil, err
	}
	query = strings.TrimSpace(query)
	if query == "" {
		return s.store.Cards.GetAll(ctx)
	}
	return s.store.Cards.Search(ctx, query)
}

func (s *CardService) resolveTagNames(ctx context.Context, names []string) ([]string, error) {
	ids := make([]string, 0, len(names))
	seen := make(map[string]struct{}, len(names))
	for _, name := range names {
		normalized := normalizeTagName(name)
		if normalized == "" {
			continue
		}
		if _, ok := seen[normalized]; ok {
			continue
		}
		seen[normalized] = struct{}{}

		tag, err := s.tags.GetOrCreate(ctx, normalized)
		if err != nil {
			return nil, err
		}
		ids = append(ids, tag.ID)
	}
	return ids, nil
}
