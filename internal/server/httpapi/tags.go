package httpapi

import (
	"fmt"
	"net/http"
	"strings"

	"github.com/example/cardbox/internal/models"
	"github.com/example/cardbox/internal/shared"
)

func validateTag(tag *models.Tag) error {
	if tag.ID == "" {
		return fmt.Errorf("%w: tag id is required", shared.ErrValidation)
	}
	tag.Name = strings.ToLower(strings.TrimSpace(tag.Name))
	if tag.Name == "" {
		return fmt.Errorf("%w: tag name is required", shared.ErrValidation)
	}
	if tag.CreatedAt <= 0 {
		return fmt.Errorf("%w: timestamps are required", shared.ErrValidation)
	}
	return nil
}

func (s *Server) handleListTags(w http.ResponseWriter, r *http.Request) {
	tags, err := s.repos.Tags(s.db).ListUpdated(r.Context(), userID(r), sinceParam(r))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	if tags == nil {
		tags = []models.Tag{}
	}
	s.writeJSON(w, r, http.StatusOK, tags)
}

// handleUpsertTag serves both POST /tags and PUT /tags/{id}.
func (s *Server) handleUpsertTag(w http.ResponseWriter, r *http.Request) {
	var tag models.Tag
	if err := decodeJSON(r, &tag); err != nil {
		s.writeError(w, r, err)
		return
	}
	if pathID := r.PathValue("id"); pathID != "" {
		tag.ID = pathID
	}
	if err := validateTag(&tag); err != nil {
		s.writeError(w, r, err)
		return
	}

	if err := s.repos.Tags(s.db).Upsert(r.Context(), userID(r), &tag); err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeJSON(w, r, http.StatusOK, &tag)
}

func (s *Server) handleDeleteTag(w http.ResponseWriter, r *http.Request) {
	if err := s.repos.Tags(s.db).Delete(r.Context(), userID(r), r.PathValue("id")); err != nil {
		s.writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleBatchTags(w http.ResponseWriter, r *http.Request) {
	var tags []models.Tag
	if err := decodeJSON(r, &tags); err != nil {
		s.writeError(w, r, err)
		return
	}

	repo := s.repos.Tags(s.db)
	for i := range tags {
		if err := validateTag(&tags[i]); err != nil {
			s.writeError(w, r, err)
			return
		}
		if err := repo.Upsert(r.Context(), userID(r), &tags[i]); err != nil {
			s.writeError(w, r, err)
			return
		}
	}
	s.writeJSON(w, r, http.StatusOK, map[string]int{"saved": len(tags)})
}
