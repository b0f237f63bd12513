// Package sync implements the local-first sync engine: it flushes the
// mutation queue to the remote store, pulls remote deltas, merges them into
// the replica by last-writer-wins, re-pushes records the remote store has
// never seen, and broadcasts status and data-change events.
package sync

import (
	"context"
	"fmt"
	"strconv"
	"sync/atomic"
	"time"

	"github.com/example/cardbox/internal/client/queue"
	"github.com/example/cardbox/internal/client/remote"
	"github.com/example/cardbox/internal/client/store"
	"github.com/example/cardbox/internal/logging"
	"github.com/example/cardbox/internal/models"
)

// WatermarkKey is the metadata key holding the last-successful-sync epoch
// millisecond timestamp that bounds incremental pulls.
const WatermarkKey = "last-sync-timestamp"

// Remote is the surface of the remote store adapter the engine needs.
// *remote.Client implements it; tests substitute fakes.
type Remote interface {
	Ping(ctx context.Context) error
	ListCards(ctx context.Context, since int64) ([]models.Card, error)
	ListTags(ctx context.Context, since int64) ([]models.Tag, error)
	ListLinks(ctx context.Context, since int64) ([]models.Link, error)
	Apply(ctx context.Context, item models.QueueItem) error
	BatchCards(ctx context.Context, cards []models.Card) error
	BatchTags(ctx context.Context, tags []models.Tag) error
	BatchLinks(ctx context.Context, links []models.Link) (*remote.BatchLinkResult, error)
	Reset(ctx context.Context) error
}

// Service owns the mutation queue and coordinates the sync cycle
// Idle -> Flushing -> Pulling -> Merging -> PushingLocalOnly -> Idle.
// One instance per process, passed by reference to every consumer; no
// package-level state.
type Service struct {
	store  *store.Store
	queue  *queue.Queue
	remote Remote
	logger logging.Logger
	*bus

	syncing  atomic.Bool // one full cycle at a time; extra triggers are dropped
	flushing atomic.Bool // one queue flush at a time
	online   atomic.Bool
	lastErr  atomic.Value // string
}

func NewService(st *store.Store, q *queue.Queue, r Remote, logger logging.Logger) *Service {
	s := &Service{
		store:  st,
		queue:  q,
		remote: r,
		logger: logger,
		bus:    newBus(),
	}
	s.lastErr.Store("")
	return s
}

// SubscribeStatus registers a status listener; the returned function
// unsubscribes it.
func (s *Service) SubscribeStatus(fn StatusListener) func() { return s.subscribeStatus(fn) }

// SubscribeData registers a post-merge data listener; the returned function
// unsubscribes it.
func (s *Service) SubscribeData(fn DataListener) func() { return s.subscribeData(fn) }

// Online reports the last known connectivity state.
func (s *Service) Online() bool { return s.online.Load() }

// SetOnline records a connectivity change. The offline -> online transition
// triggers a forced full sync to catch up on everything missed.
func (s *Service) SetOnline(ctx context.Context, online bool) {
	was := s.online.Swap(online)
	if online && !was {
		go func() {
			if err := s.FullSync(ctx, true); err != nil {
				s.logger.Warn(ctx, "sync after reconnect failed", "error", err)
			}
		}()
	}
}

// Status recomputes the current sync status from the queue and the
// persisted watermark.
func (s *Service) Status(ctx context.Context) models.SyncStatus {
	pending, err := s.queue.Len(ctx)
	if err != nil {
		s.logger.Warn(ctx, "failed to read queue length", "error", err)
	}
	return models.SyncStatus{
		IsSyncing:    s.syncing.Load(),
		LastSyncAt:   s.watermark(ctx),
		PendingCount: pending,
		Error:        s.lastErr.Load().(string),
	}
}

func (s *Service) notifyStatus(ctx context.Context) {
	s.publishStatus(s.Status(ctx))
}

func (s *Service) watermark(ctx context.Context) int64 {
	data, err := s.store.Metadata.Get(ctx, WatermarkKey)
	if err != nil || len(data) == 0 {
		return 0
	}
	ms, err := strconv.ParseInt(string(data), 10, 64)
	if err != nil {
		return 0
	}
	return ms
}

func (s *Service) setWatermark(ctx context.Context, ms int64) error {
	return s.store.Metadata.Set(ctx, WatermarkKey, []byte(strconv.FormatInt(ms, 10)))
}

// Enqueue records a local mutation for delivery and, when the connection is
// known to be up, kicks off an opportunistic flush.
func (s *Service) Enqueue(ctx context.Context, entity models.EntityKind, action models.Action, entityID string, payload any) error {
	if err := s.queue.Enqueue(ctx, entity, action, entityID, payload); err != nil {
		return err
	}
	s.notifyStatus(ctx)

	if s.online.Load() {
		go func() {
			if err := s.Flush(context.WithoutCancel(ctx)); err != nil {
				s.logger.Warn(ctx, "opportunistic flush failed", "error", err)
			}
		}()
	}
	return nil
}

// Flush delivers every pending mutation. Items are processed
// independently: one failure does not block the rest. A failed item is kept
// for retry until it hits the ceiling, then dropped with a log line. A
// flush requested while one is running is a no-op; the queue itself is the
// durable record of what remains.
func (s *Service) Flush(ctx context.Context) error {
	if !s.flushing.CompareAndSwap(false, true) {
		return nil
	}
	defer s.flushing.Store(false)

	pending, err := s.queue.Pending(ctx)
	if err != nil {
		return err
	}
	if len(pending) == 0 {
		return nil
	}

	s.notifyStatus(ctx)

	var succeeded, failed []models.QueueItem
	for _, item := range pending {
		if err := s.remote.Apply(ctx, item); err != nil {
			s.logger.Warn(ctx, "push failed",
				"entity", item.Entity, "id", item.EntityID, "action", item.Action, "error", err)
			failed = append(failed, item)
			continue
		}
		succeeded = append(succeeded, item)
	}

	dropped, err := s.queue.Resolve(ctx, succeeded, failed)
	for _, item := range dropped {
		s.logger.Error(ctx, "mutation dropped after retry ceiling",
			"entity", item.Entity, "id", item.EntityID, "action", item.Action, "retries", item.Retries)
	}
	s.notifyStatus(ctx)
	return err
}

// pull fetches the three collections, bounded by the watermark unless a
// full pull is forced.
func (s *Service) pull(ctx context.Context, full bool) (*DataUpdate, error) {
	var since int64
	if !full {
		since = s.watermark(ctx)
	}

	tags, err := s.remote.ListTags(ctx, since)
	if err != nil {
		return nil, fmt.Errorf("pull tags: %w", err)
	}
	cards, err := s.remote.ListCards(ctx, since)
	if err != nil {
		return nil, fmt.Errorf("pull cards: %w", err)
	}
	links, err := s.remote.ListLinks(ctx, since)
	if err != nil {
		return nil, fmt.Errorf("pull links: %w", err)
	}

	return &DataUpdate{Cards: cards, Tags: tags, Links: links}, nil
}

// localOnly holds records present in the replica but absent from the
// pulled remote snapshot: created or mutated locally and never durably
// persisted remotely.
type localOnly struct {
	cards []models.Card
	tags  []models.Tag
	links []models.Link
}

// merge reconciles pulled data into the replica, last-writer-wins per
// record: tags and links compare createdAt, cards compare updatedAt, and
// only a strictly newer remote record overwrites the local one. Writes are
// applied record by record; an error on one record does not roll back
// already-applied siblings. The pre-merge snapshot of the replica yields
// the local-only sets.
func (s *Service) merge(ctx context.Context, pulled *DataUpdate, forceNotify bool) (*localOnly, error) {
	localCards, err := s.store.Cards.GetAll(ctx)
	if err != nil {
		return nil, err
	}
	localTags, err := s.store.Tags.GetAll(ctx)
	if err != nil {
		return nil, err
	}
	localLinks, err := s.store.Links.GetAll(ctx)
	if err != nil {
		return nil, err
	}

	remoteCardIDs := make(map[string]struct{}, len(pulled.Cards))
	for _, c := range pulled.Cards {
		remoteCardIDs[c.ID] = struct{}{}
	}
	remoteTagIDs := make(map[string]struct{}, len(pulled.Tags))
	for _, t := range pulled.Tags {
		remoteTagIDs[t.ID] = struct{}{}
	}
	remoteLinkIDs := make(map[string]struct{}, len(pulled.Links))
	for _, l := range pulled.Links {
		remoteLinkIDs[l.ID] = struct{}{}
	}

	only := &localOnly{}
	for _, c := range localCards {
		if _, ok := remoteCardIDs[c.ID]; !ok {
			only.cards = append(only.cards, c)
		}
	}
	for _, t := range localTags {
		if _, ok := remoteTagIDs[t.ID]; !ok {
			only.tags = append(only.tags, t)
		}
	}
	for _, l := range localLinks {
		if _, ok := remoteLinkIDs[l.ID]; !ok {
			only.links = append(only.links, l)
		}
	}

	localTagByID := make(map[string]models.Tag, len(localTags))
	for _, t := range localTags {
		localTagByID[t.ID] = t
	}
	localCardByID := make(map[string]models.Card, len(localCards))
	for _, c := range localCards {
		localCardByID[c.ID] = c
	}
	localLinkByID := make(map[string]models.Link, len(localLinks))
	for _, l := range localLinks {
		localLinkByID[l.ID] = l
	}

	// Tags first, then cards, then links: links and card-tag references
	// depend on their referents existing.
	for i := range pulled.Tags {
		t := pulled.Tags[i]
		if local, ok := localTagByID[t.ID]; ok && t.CreatedAt <= local.CreatedAt {
			continue
		}
		if err := s.store.Tags.Upsert(ctx, &t); err != nil {
			s.logger.Warn(ctx, "merge tag failed", "id", t.ID, "error", err)
		}
	}
	for i := range pulled.Cards {
		c := pulled.Cards[i]
		if local, ok := localCardByID[c.ID]; ok && c.UpdatedAt <= local.UpdatedAt {
			continue
		}
		if err := s.store.Cards.Upsert(ctx, &c); err != nil {
			s.logger.Warn(ctx, "merge card failed", "id", c.ID, "error", err)
		}
	}
	for i := range pulled.Links {
		l := pulled.Links[i]
		if local, ok := localLinkByID[l.ID]; ok && l.CreatedAt <= local.CreatedAt {
			continue
		}
		if err := s.store.Links.Upsert(ctx, &l); err != nil {
			s.logger.Warn(ctx, "merge link failed", "id", l.ID, "error", err)
		}
	}

	if err := s.setWatermark(ctx, time.Now().UnixMilli()); err != nil {
		return nil, err
	}
	s.notifyStatus(ctx)

	update := DataUpdate{}
	if len(pulled.Cards) > 0 || forceNotify {
		update.Cards = pulled.Cards
	}
	if len(pulled.Tags) > 0 || forceNotify {
		update.Tags = pulled.Tags
	}
	if len(pulled.Links) > 0 || forceNotify {
		update.Links = pulled.Links
	}
	s.publishData(update)

	return only, nil
}

// pushLocalOnly batch-uploads local-only records in dependency order. A
// failed batch degrades gracefully: each of its items is re-enqueued
// individually so the per-item retry path takes over on the next cycle.
func (s *Service) pushLocalOnly(ctx context.Context, only *localOnly) {
	if err := s.remote.BatchTags(ctx, only.tags); err != nil {
		s.logger.Warn(ctx, "batch tag push failed, re-queueing", "count", len(only.tags), "error", err)
		for i := range only.tags {
			t := only.tags[i]
			if qerr := s.queue.Enqueue(ctx, models.EntityTag, models.ActionCreate, t.ID, &t); qerr != nil {
				s.logger.Error(ctx, "failed to re-queue tag", "id", t.ID, "error", qerr)
			}
		}
	}

	if err := s.remote.BatchCards(ctx, only.cards); err != nil {
		s.logger.Warn(ctx, "batch card push failed, re-queueing", "count", len(only.cards), "error", err)
		for i := range only.cards {
			c := only.cards[i]
			if qerr := s.queue.Enqueue(ctx, models.EntityCard, models.ActionCreate, c.ID, &c); qerr != nil {
				s.logger.Error(ctx, "failed to re-queue card", "id", c.ID, "error", qerr)
			}
		}
	}

	result, err := s.remote.BatchLinks(ctx, only.links)
	if err != nil {
		s.logger.Warn(ctx, "batch link push failed, re-queueing", "count", len(only.links), "error", err)
		for i := range only.links {
			l := only.links[i]
			if qerr := s.queue.Enqueue(ctx, models.EntityLink, models.ActionCreate, l.ID, &l); qerr != nil {
				s.logger.Error(ctx, "failed to re-queue link", "id", l.ID, "error", qerr)
			}
		}
		return
	}
	for _, skipped := range result.Skipped {
		s.logger.Warn(ctx, "link skipped by server", "id", skipped.ID, "reason", skipped.Reason)
	}
}

// FullSync runs one complete cycle: flush the queue, pull remote deltas,
// merge them, and push anything only the replica knows about. Only one
// cycle runs at a time; concurrent triggers are dropped. Cycle errors are
// captured into the sync status; the queue and watermark stay as they are
// so the next cycle picks up from persisted state.
func (s *Service) FullSync(ctx context.Context, forceFullPull bool) error {
	if !s.syncing.CompareAndSwap(false, true) {
		return nil
	}

	s.lastErr.Store("")
	s.notifyStatus(ctx)

	err := s.runCycle(ctx, forceFullPull)

	s.syncing.Store(false)
	if err != nil {
		s.lastErr.Store(err.Error())
	}
	s.notifyStatus(ctx)
	return err
}

func (s *Service) runCycle(ctx context.Context, forceFullPull bool) error {
	if err := s.Flush(ctx); err != nil {
		return fmt.Errorf("flush: %w", err)
	}

	pulled, err := s.pull(ctx, forceFullPull)
	if err != nil {
		return err
	}

	only, err := s.merge(ctx, pulled, forceFullPull)
	if err != nil {
		return fmt.Errorf("merge: %w", err)
	}

	if len(only.cards) > 0 || len(only.tags) > 0 || len(only.links) > 0 {
		s.pushLocalOnly(ctx, only)
	}
	return nil
}

// RunPeriodic triggers a full sync on every tick while the connection is
// up, until ctx is done. The caller starts it only for authenticated
// sessions.
func (s *Service) RunPeriodic(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if !s.online.Load() {
				continue
			}
			if err := s.FullSync(ctx, false); err != nil {
				s.logger.Warn(ctx, "periodic sync failed", "error", err)
			}
		}
	}
}
