package httpapi

import (
	"net/http"

	"github.com/example/cardbox/internal/models"
)

// handleGetShared resolves a public share id to its reduced projection.
// No authentication; the response never exposes the internal card id or
// the owner.
func (s *Server) handleGetShared(w http.ResponseWriter, r *http.Request) {
	shareID := r.PathValue("shareID")
	if len(shareID) != models.ShareIDLength {
		http.Error(w, "invalid share id", http.StatusBadRequest)
		return
	}

	card, ownerID, err := s.repos.Cards(s.db).GetShared(r.Context(), shareID)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	tagNames := []string{}
	if len(card.TagIDs) > 0 {
		tags, err := s.repos.Tags(s.db).ListByIDs(r.Context(), ownerID, card.TagIDs)
		if err != nil {
			s.writeError(w, r, err)
			return
		}
		for _, t := range tags {
			tagNames = append(tagNames, t.Name)
		}
	}

	s.writeJSON(w, r, http.StatusOK, &models.SharedCard{
		ShareID:   card.ShareID,
		Title:     card.Title,
		Content:   card.Content,
		Type:      card.Type,
		WordCount: card.WordCount,
		CreatedAt: card.CreatedAt,
		Tags:      tagNames,
	})
}
