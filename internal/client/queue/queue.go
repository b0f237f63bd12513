// Package queue implements the durable mutation queue: the ordered record
// of local mutations not yet confirmed by the remote store. It is persisted
// as a JSON array under a metadata key, independent of the replica
// collections, so it survives restarts and replica wipes.
package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/example/cardbox/internal/client/store"
	"github.com/example/cardbox/internal/models"
)

const (
	// StorageKey is the metadata key holding the serialized queue.
	StorageKey = "sync-queue"

	// MaxRetries bounds delivery attempts per item. An item that has
	// failed this many times is dropped rather than retried forever, so a
	// single malformed mutation cannot stall the queue.
	MaxRetries = 3
)

// Queue holds at most one pending item per (entity kind, entity id): a
// newer mutation for the same entity supersedes the queued one, so a rapid
// create-update-delete collapses to a single delete. The index map makes
// that invariant structural; the slice preserves enqueue order.
type Queue struct {
	meta *store.MetadataRepository

	mu     sync.Mutex
	order  []string
	items  map[string]*models.QueueItem
	loaded bool
}

func New(meta *store.MetadataRepository) *Queue {
	return &Queue{
		meta:  meta,
		items: make(map[string]*models.QueueItem),
	}
}

func itemKey(entity models.EntityKind, entityID string) string {
	return string(entity) + "/" + entityID
}

// load reads the persisted queue once. Corrupt stored state is treated as
// an empty queue rather than a fatal error; the replica is still intact and
// a full sync re-detects anything unsent.
func (q *Queue) load(ctx context.Context) error {
	if q.loaded {
		return nil
	}

	data, err := q.meta.Get(ctx, StorageKey)
	if err != nil {
		return fmt.Errorf("failed to load queue: %w", err)
	}

	var stored []models.QueueItem
	if len(data) > 0 {
		if err := json.Unmarshal(data, &stored); err != nil {
			stored = nil
		}
	}

	q.order = q.order[:0]
	q.items = make(map[string]*models.QueueItem, len(stored))
	for i := range stored {
		item := stored[i]
		key := itemKey(item.Entity, item.EntityID)
		q.order = append(q.order, key)
		q.items[key] = &item
	}
	q.loaded = true
	return nil
}

func (q *Queue) persist(ctx context.Context) error {
	items := make([]models.QueueItem, 0, len(q.order))
	for _, key := range q.order {
		items = append(items, *q.items[key])
	}

	data, err := json.Marshal(items)
	if err != nil {
		return fmt.Errorf("failed to encode queue: %w", err)
	}
	return q.meta.Set(ctx, StorageKey, data)
}

// Enqueue records a mutation, replacing any queued item for the same
// entity. Payload is the full entity snapshot for create/update and nil for
// delete.
func (q *Queue) Enqueue(ctx context.Context, entity models.EntityKind, action models.Action, entityID string, payload any) error {
	q.mu.Lock()
	defer q.mu.Unlock()

	if err := q.load(ctx); err != nil {
		return err
	}

	var data json.RawMessage
	if payload != nil {
		encoded, err := json.Marshal(payload)
		if err != nil {
			return fmt.Errorf("failed to encode payload: %w", err)
		}
		data = encoded
	}

	now := time.Now().UnixMilli()
	key := itemKey(entity, entityID)
	if _, ok := q.items[key]; ok {
		q.removeLocked(key)
	}

	q.items[key] = &models.QueueItem{
		ID:       fmt.Sprintf("%s-%s-%d", entity, entityID, now),
		Entity:   entity,
		Action:   action,
		EntityID: entityID,
		Data:     data,
		QueuedAt: now,
	}
	q.order = append(q.order, key)

	return q.persist(ctx)
}

// Pending returns copies of all queued items in enqueue order.
func (q *Queue) Pending(ctx context.Context) ([]models.QueueItem, error) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if err := q.load(ctx); err != nil {
		return nil, err
	}

	items := make([]models.QueueItem, 0, len(q.order))
	for _, key := range q.order {
		items = append(items, *q.items[key])
	}
	return items, nil
}

// Len reports the number of pending items.
func (q *Queue) Len(ctx context.Context) (int, error) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if err := q.load(ctx); err != nil {
		return 0, err
	}
	return len(q.order), nil
}

// Resolve removes successfully delivered items and bumps the retry counter
// of failed ones. A failed item that reaches the retry ceiling is dropped;
// its key is returned so the caller can log it. Items enqueued while the
// flush was running are untouched: a newer mutation for a flushed entity
// replaced the in-flight snapshot and must survive both outcomes.
func (q *Queue) Resolve(ctx context.Context, succeeded, failed []models.QueueItem) ([]models.QueueItem, error) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if err := q.load(ctx); err != nil {
		return nil, err
	}

	for _, item := range succeeded {
		key := itemKey(item.Entity, item.EntityID)
		if current, ok := q.items[key]; ok && current.ID == item.ID {
			q.removeLocked(key)
		}
	}

	var dropped []models.QueueItem
	for _, item := range failed {
		key := itemKey(item.Entity, item.EntityID)
		current, ok := q.items[key]
		if !ok || current.ID != item.ID {
			continue
		}
		current.Retries++
		if current.Retries >= MaxRetries {
			q.removeLocked(key)
			dropped = append(dropped, *current)
		}
	}

	if err := q.persist(ctx); err != nil {
		return dropped, err
	}
	return dropped, nil
}

// Clear drops every pending item, e.g. on logout or clear-and-resync.
func (q *Queue) Clear(ctx context.Context) error {
	q.mu.Lock()
	defer q.mu.Unlock()

	q.order = nil
	q.items = make(map[string]*models.QueueItem)
	q.loaded = true
	return q.meta.Delete(ctx, StorageKey)
}

func (q *Queue) removeLocked(key string) {
	delete(q.items, key)
	for i, k := range q.order {
		if k == key {
			q.order = append(q.order[:i], q.order[i+1:]...)
			break
		}
	}
}
