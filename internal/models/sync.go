package models

import "encoding/json"

// EntityKind names the three synchronized collections.
type EntityKind string

const (
	EntityCard EntityKind = "card"
	EntityTag  EntityKind = "tag"
	EntityLink EntityKind = "link"
)

// Action is a queued mutation kind.
type Action string

const (
	ActionCreate Action = "create"
	ActionUpdate Action = "update"
	ActionDelete Action = "delete"
)

// QueueItem is one pending local mutation awaiting delivery to the remote
// store. Data holds the full entity snapshot for create/update and is
// empty for delete.
type QueueItem struct {
	ID       string          `json:"id"`
	Entity   EntityKind      `json:"entity"`
	Action   Action          `json:"action"`
	EntityID string          `json:"entityId"`
	Data     json.RawMessage `json:"data,omitempty"`
	QueuedAt int64           `json:"timestamp"`
	Retries  int             `json:"retries"`
}

// SyncStatus is the ephemeral view of the sync engine, recomputed from the
// queue and the persisted watermark rather than stored on its own.
type SyncStatus struct {
	IsSyncing    bool   `json:"isSyncing"`
	LastSyncAt   int64  `json:"lastSyncAt"`
	PendingCount int    `json:"pendingCount"`
	Error        string `json:"error,omitempty"`
}
