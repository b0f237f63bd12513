package sync

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// ErrSyncBusy is returned when a recovery procedure is requested while a
// sync cycle is running. Unlike ordinary triggers, recovery is explicit
// user intent, so the caller is told instead of silently dropped.
var ErrSyncBusy = errors.New("sync in progress")

// ClearAndResync erases the entire replica, the pending queue and the
// watermark, then rebuilds local state from a full pull. There is no
// local-only push step: local state was just erased, so nothing is
// local-only. Used when the replica is suspected corrupt or hopelessly
// diverged.
func (s *Service) ClearAndResync(ctx context.Context) error {
	if !s.syncing.CompareAndSwap(false, true) {
		return ErrSyncBusy
	}
	defer func() {
		s.syncing.Store(false)
		s.notifyStatus(ctx)
	}()

	s.lastErr.Store("")
	s.notifyStatus(ctx)

	if err := s.store.WipeCollections(ctx); err != nil {
		s.lastErr.Store(err.Error())
		return fmt.Errorf("wipe replica: %w", err)
	}
	if err := s.queue.Clear(ctx); err != nil {
		s.lastErr.Store(err.Error())
		return err
	}
	if err := s.store.Metadata.Delete(ctx, WatermarkKey); err != nil {
		s.lastErr.Store(err.Error())
		return err
	}

	pulled, err := s.pull(ctx, true)
	if err != nil {
		s.lastErr.Store(err.Error())
		return err
	}
	if _, err := s.merge(ctx, pulled, true); err != nil {
		s.lastErr.Store(err.Error())
		return fmt.Errorf("merge: %w", err)
	}
	return nil
}

// ForceOverwriteRemote deletes every remote record of the user and
// replaces it with the entire local replica. Destructive and irreversible
// for the remote side; confirmation is the caller's responsibility, this
// is only the primitive.
func (s *Service) ForceOverwriteRemote(ctx context.Context) error {
	if !s.syncing.CompareAndSwap(false, true) {
		return ErrSyncBusy
	}
	defer func() {
		s.syncing.Store(false)
		s.notifyStatus(ctx)
	}()

	s.lastErr.Store("")
	s.notifyStatus(ctx)

	if err := s.remote.Reset(ctx); err != nil {
		s.lastErr.Store(err.Error())
		return fmt.Errorf("remote reset: %w", err)
	}

	cards, err := s.store.Cards.GetAll(ctx)
	if err != nil {
		s.lastErr.Store(err.Error())
		return err
	}
	tags, err := s.store.Tags.GetAll(ctx)
	if err != nil {
		s.lastErr.Store(err.Error())
		return err
	}
	links, err := s.store.Links.GetAll(ctx)
	if err != nil {
		s.lastErr.Store(err.Error())
		return err
	}

	s.pushLocalOnly(ctx, &localOnly{cards: cards, tags: tags, links: links})

	if err := s.setWatermark(ctx, time.Now().UnixMilli()); err != nil {
		s.lastErr.Store(err.Error())
		return err
	}
	return nil
}
