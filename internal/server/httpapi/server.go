// Package httpapi exposes the CardBox server over REST/JSON. Every
// data endpoint is scoped to the authenticated user; mutations are
// idempotent upserts and deletes so the client's at-least-once delivery is
// safe.
package httpapi

import (
	"context"
	"database/sql"
	"net/http"
	"time"

	"github.com/example/cardbox/internal/logging"
	"github.com/example/cardbox/internal/server/backup"
	sc "github.com/example/cardbox/internal/server/config"
	"github.com/example/cardbox/internal/server/repositories/repomanager"
)

// SnapshotStore saves a user snapshot before destructive operations.
// *backup.Service implements it; tests substitute a stub.
type SnapshotStore interface {
	Store(ctx context.Context, snapshot *backup.Snapshot) (string, error)
}

// Server holds the API dependencies and builds the route table.
type Server struct {
	db     *sql.DB
	repos  repomanager.RepositoryManager
	backup SnapshotStore
	logger logging.Logger
	config *sc.Config

	httpServer *http.Server
}

func NewServer(db *sql.DB, repos repomanager.RepositoryManager, bk SnapshotStore, logger logging.Logger, config *sc.Config) *Server {
	return &Server{
		db:     db,
		repos:  repos,
		backup: bk,
		logger: logger,
		config: config,
	}
}

// Handler builds the route table. Split out from Run so tests can drive
// the API through httptest.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /ping", s.handlePing)
	mux.HandleFunc("GET /share/{shareID}", s.handleGetShared)

	mux.Handle("GET /cards", s.withAuth(s.handleListCards))
	mux.Handle("POST /cards", s.withAuth(s.handleUpsertCard))
	mux.Handle("GET /cards/{id}", s.withAuth(s.handleGetCard))
	mux.Handle("PUT /cards/{id}", s.withAuth(s.handlePatchCard))
	mux.Handle("DELETE /cards/{id}", s.withAuth(s.handleDeleteCard))
	mux.Handle("POST /cards/batch", s.withAuth(s.handleBatchCards))

	mux.Handle("GET /tags", s.withAuth(s.handleListTags))
	mux.Handle("POST /tags", s.withAuth(s.handleUpsertTag))
	mux.Handle("PUT /tags/{id}", s.withAuth(s.handleUpsertTag))
	mux.Handle("DELETE /tags/{id}", s.withAuth(s.handleDeleteTag))
	mux.Handle("POST /tags/batch", s.withAuth(s.handleBatchTags))

	mux.Handle("GET /links", s.withAuth(s.handleListLinks))
	mux.Handle("POST /links", s.withAuth(s.handleUpsertLink))
	mux.Handle("PUT /links/{id}", s.withAuth(s.handleUpsertLink))
	mux.Handle("DELETE /links/{id}", s.withAuth(s.handleDeleteLink))
	mux.Handle("POST /links/batch", s.withAuth(s.handleBatchLinks))

	mux.Handle("POST /sync/reset", s.withAuth(s.handleReset))

	return mux
}

func (s *Server) handlePing(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
}

// Run serves the API until ctx is cancelled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	s.httpServer = &http.Server{
		Addr:              s.config.EndpointAddr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- s.httpServer.ListenAndServe()
	}()

	s.logger.Info(ctx, "http server listening", "addr", s.config.EndpointAddr)

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return s.httpServer.Shutdown(shutdownCtx)
	}
}
