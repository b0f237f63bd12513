package httpapi

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/example/cardbox/internal/models"
	"github.com/example/cardbox/internal/shared"
)

func validateLink(link *models.Link) error {
	if link.ID == "" {
		return fmt.Errorf("%w: link id is required", shared.ErrValidation)
	}
	if link.SourceID == "" || link.TargetID == "" {
		return fmt.Errorf("%w: source and target are required", shared.ErrValidation)
	}
	if link.SourceID == link.TargetID {
		return fmt.Errorf("%w: a card cannot link to itself", shared.ErrValidation)
	}
	if !models.ValidRelation(link.Relation) {
		return fmt.Errorf("%w: unknown relation %q", shared.ErrValidation, link.Relation)
	}
	if link.CreatedAt <= 0 {
		return fmt.Errorf("%w: timestamps are required", shared.ErrValidation)
	}
	return nil
}

func (s *Server) handleListLinks(w http.ResponseWriter, r *http.Request) {
	links, err := s.repos.Links(s.db).ListUpdated(r.Context(), userID(r), sinceParam(r))
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	// Optional filter to links touching one card.
	if cardID := r.URL.Query().Get("cardId"); cardID != "" {
		filtered := links[:0]
		for _, l := range links {
			if l.SourceID == cardID || l.TargetID == cardID {
				filtered = append(filtered, l)
			}
		}
		links = filtered
	}

	if links == nil {
		links = []models.Link{}
	}
	s.writeJSON(w, r, http.StatusOK, links)
}

// handleUpsertLink serves both POST /links and PUT /links/{id}. A link to
// a card the server has never received fails with 404 rather than creating
// a dangling reference.
func (s *Server) handleUpsertLink(w http.ResponseWriter, r *http.Request) {
	var link models.Link
	if err := decodeJSON(r, &link); err != nil {
		s.writeError(w, r, err)
		return
	}
	if pathID := r.PathValue("id"); pathID != "" {
		link.ID = pathID
	}
	if err := validateLink(&link); err != nil {
		s.writeError(w, r, err)
		return
	}

	if err := s.repos.Links(s.db).Upsert(r.Context(), userID(r), &link); err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeJSON(w, r, http.StatusOK, &link)
}

func (s *Server) handleDeleteLink(w http.ResponseWriter, r *http.Request) {
	if err := s.repos.Links(s.db).Delete(r.Context(), userID(r), r.PathValue("id")); err != nil {
		s.writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type skippedLink struct {
	ID     string `json:"id"`
	Reason string `json:"reason"`
}

type batchLinksResponse struct {
	Saved   []models.Link `json:"saved"`
	Skipped []skippedLink `json:"skipped"`
}

// handleBatchLinks upserts links one by one. Links referencing unknown
// cards are reported as skipped instead of failing the batch: the client
// may legitimately hold links whose cards were deleted remotely.
func (s *Server) handleBatchLinks(w http.ResponseWriter, r *http.Request) {
	var links []models.Link
	if err := decodeJSON(r, &links); err != nil {
		s.writeError(w, r, err)
		return
	}

	repo := s.repos.Links(s.db)
	resp := batchLinksResponse{Saved: []models.Link{}, Skipped: []skippedLink{}}
	for i := range links {
		link := links[i]
		if err := validateLink(&link); err != nil {
			resp.Skipped = append(resp.Skipped, skippedLink{ID: link.ID, Reason: err.Error()})
			continue
		}
		err := repo.Upsert(r.Context(), userID(r), &link)
		switch {
		case err == nil:
			resp.Saved = append(resp.Saved, link)
		case errors.Is(err, shared.ErrNotFound), errors.Is(err, shared.ErrConflict):
			resp.Skipped = append(resp.Skipped, skippedLink{ID: link.ID, Reason: err.Error()})
		default:
			s.writeError(w, r, err)
			return
		}
	}
	s.writeJSON(w, r, http.StatusOK, &resp)
}
