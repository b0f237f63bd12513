package httpapi

import (
	"fmt"
	"net/http"

	"github.com/example/cardbox/internal/models"
	"github.com/example/cardbox/internal/shared"
)

func validateCard(card *models.Card) error {
	if card.ID == "" {
		return fmt.Errorf("%w: card id is required", shared.ErrValidation)
	}
	if card.Title == "" {
		return fmt.Errorf("%w: title is required", shared.ErrValidation)
	}
	if len([]rune(card.Title)) > models.TitleMaxLength {
		return fmt.Errorf("%w: title exceeds %d characters", shared.ErrValidation, models.TitleMaxLength)
	}
	if len(card.ShareID) != models.ShareIDLength {
		return fmt.Errorf("%w: share id must be %d characters", shared.ErrValidation, models.ShareIDLength)
	}
	if !models.ValidCardType(card.Type) {
		return fmt.Errorf("%w: unknown card type %q", shared.ErrValidation, card.Type)
	}
	if !models.ValidCardStatus(card.Status) {
		return fmt.Errorf("%w: unknown card status %q", shared.ErrValidation, card.Status)
	}
	if card.CreatedAt <= 0 || card.UpdatedAt <= 0 {
		return fmt.Errorf("%w: timestamps are required", shared.ErrValidation)
	}
	if card.TagIDs == nil {
		card.TagIDs = []string{}
	}
	return nil
}

func (s *Server) handleListCards(w http.ResponseWriter, r *http.Request) {
	cards, err := s.repos.Cards(s.db).ListUpdated(r.Context(), userID(r), sinceParam(r))
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	q := r.URL.Query()
	if t := q.Get("type"); t != "" {
		cards = filterCards(cards, func(c *models.Card) bool { return c.Type == models.CardType(t) })
	}
	if st := q.Get("status"); st != "" {
		cards = filterCards(cards, func(c *models.Card) bool { return c.Status == models.CardStatus(st) })
	}

	if cards == nil {
		cards = []models.Card{}
	}
	s.writeJSON(w, r, http.StatusOK, cards)
}

func filterCards(cards []models.Card, keep func(*models.Card) bool) []models.Card {
	filtered := cards[:0]
	for i := range cards {
		if keep(&cards[i]) {
			filtered = append(filtered, cards[i])
		}
	}
	return filtered
}

func (s *Server) handleGetCard(w http.ResponseWriter, r *http.Request) {
	card, err := s.repos.Cards(s.db).Get(r.Context(), userID(r), r.PathValue("id"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeJSON(w, r, http.StatusOK, card)
}

// handleUpsertCard serves POST /cards: a full-record upsert keyed by the
// card id.
func (s *Server) handleUpsertCard(w http.ResponseWriter, r *http.Request) {
	var card models.Card
	if err := decodeJSON(r, &card); err != nil {
		s.writeError(w, r, err)
		return
	}
	if err := validateCard(&card); err != nil {
		s.writeError(w, r, err)
		return
	}

	if err := s.repos.Cards(s.db).Upsert(r.Context(), userID(r), &card); err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeJSON(w, r, http.StatusOK, &card)
}

func validateCardPatch(patch *models.CardPatch) error {
	if patch.Title != nil {
		if *patch.Title == "" {
			return fmt.Errorf("%w: title is required", shared.ErrValidation)
		}
		if len([]rune(*patch.Title)) > models.TitleMaxLength {
			return fmt.Errorf("%w: title exceeds %d characters", shared.ErrValidation, models.TitleMaxLength)
		}
	}
	if patch.Type != nil && !models.ValidCardType(*patch.Type) {
		return fmt.Errorf("%w: unknown card type %q", shared.ErrValidation, *patch.Type)
	}
	if patch.Status != nil && !models.ValidCardStatus(*patch.Status) {
		return fmt.Errorf("%w: unknown card status %q", shared.ErrValidation, *patch.Status)
	}
	if patch.UpdatedAt != nil && *patch.UpdatedAt <= 0 {
		return fmt.Errorf("%w: timestamps are required", shared.ErrValidation)
	}
	return nil
}

// handlePatchCard serves PUT /cards/{id}: a partial update where absent
// fields keep their stored values. A supplied tagIds array replaces the
// association wholesale.
func (s *Server) handlePatchCard(w http.ResponseWriter, r *http.Request) {
	var patch models.CardPatch
	if err := decodeJSON(r, &patch); err != nil {
		s.writeError(w, r, err)
		return
	}
	if err := validateCardPatch(&patch); err != nil {
		s.writeError(w, r, err)
		return
	}

	repo := s.repos.Cards(s.db)
	id := r.PathValue("id")
	if err := repo.Update(r.Context(), userID(r), id, &patch); err != nil {
		s.writeError(w, r, err)
		return
	}
	card, err := repo.Get(r.Context(), userID(r), id)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeJSON(w, r, http.StatusOK, card)
}

func (s *Server) handleDeleteCard(w http.ResponseWriter, r *http.Request) {
	if err := s.repos.Cards(s.db).Delete(r.Context(), userID(r), r.PathValue("id")); err != nil {
		s.writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// handleBatchCards upserts a whole slice in one request. All-or-nothing is
// not promised; a failure aborts the loop and the client re-enqueues
// per item.
func (s *Server) handleBatchCards(w http.ResponseWriter, r *http.Request) {
	var cards []models.Card
	if err := decodeJSON(r, &cards); err != nil {
		s.writeError(w, r, err)
		return
	}

	repo := s.repos.Cards(s.db)
	for i := range cards {
		if err := validateCard(&cards[i]); err != nil {
			s.writeError(w, r, err)
			return
		}
		if err := repo.Upsert(r.Context(), userID(r), &cards[i]); err != nil {
			s.writeError(w, r, err)
			return
		}
	}
	s.writeJSON(w, r, http.StatusOK, map[string]int{"saved": len(cards)})
}
