package httpapi

import (
	"context"
	"fmt"
	"net/http"

	"github.com/example/cardbox/internal/dbx"
	"github.com/example/cardbox/internal/server/backup"
)

// runInTx is swapped out in tests, where there is no real database
// underneath the repositories.
var runInTx = dbx.WithTx

// handleReset erases every record of the authenticated user so the client
// can re-upload its replica from scratch. The data is snapshotted to
// object storage first; if the snapshot cannot be written the reset is
// refused, because afterwards there is nothing left to recover.
func (s *Server) handleReset(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	uid := userID(r)

	cards, err := s.repos.Cards(s.db).ListUpdated(ctx, uid, 0)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	tags, err := s.repos.Tags(s.db).ListUpdated(ctx, uid, 0)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	links, err := s.repos.Links(s.db).ListUpdated(ctx, uid, 0)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	key, err := s.backup.Store(ctx, &backup.Snapshot{
		UserID: uid,
		Cards:  cards,
		Tags:   tags,
		Links:  links,
	})
	if err != nil {
		s.writeError(w, r, fmt.Errorf("pre-reset backup failed: %w", err))
		return
	}
	s.logger.Info(ctx, "pre-reset snapshot stored", "user", uid, "key", key)

	err = runInTx(ctx, s.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		// Deleting cards cascades to links via the foreign keys.
		if err := s.repos.Cards(tx).DeleteAllForUser(ctx, uid); err != nil {
			return err
		}
		return s.repos.Tags(tx).DeleteAllForUser(ctx, uid)
	})
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}
