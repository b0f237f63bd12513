package remote

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/example/cardbox/internal/models"
)

// ListCards fetches the caller's cards, restricted to updatedAt > since
// when since is positive.
func (c *Client) ListCards(ctx context.Context, since int64) ([]models.Card, error) {
	var cards []models.Card
	if err := c.getWithRetry(ctx, "/cards"+sinceQuery(since), &cards); err != nil {
		return nil, err
	}
	return cards, nil
}

// ListTags fetches the caller's tags, restricted to createdAt > since when
// since is positive.
func (c *Client) ListTags(ctx context.Context, since int64) ([]models.Tag, error) {
	var tags []models.Tag
	if err := c.getWithRetry(ctx, "/tags"+sinceQuery(since), &tags); err != nil {
		return nil, err
	}
	return tags, nil
}

// ListLinks fetches the caller's links, restricted to createdAt > since
// when since is positive.
func (c *Client) ListLinks(ctx context.Context, since int64) ([]models.Link, error) {
	var links []models.Link
	if err := c.getWithRetry(ctx, "/links"+sinceQuery(since), &links); err != nil {
		return nil, err
	}
	return links, nil
}

// Apply delivers a single queued mutation to the endpoint matching its
// entity and action. Creates are POSTed (upsert-by-id on the server),
// updates PUT, deletes DELETE, so a duplicate delivery is harmless.
func (c *Client) Apply(ctx context.Context, item models.QueueItem) error {
	collection := "/" + string(item.Entity) + "s"

	switch item.Action {
	case models.ActionCreate:
		return c.do(ctx, http.MethodPost, collection, json.RawMessage(item.Data), nil)
	case models.ActionUpdate:
		return c.do(ctx, http.MethodPut, collection+"/"+item.EntityID, json.RawMessage(item.Data), nil)
	case models.ActionDelete:
		return c.do(ctx, http.MethodDelete, collection+"/"+item.EntityID, nil, nil)
	}
	return fmt.Errorf("unknown queue action %q", item.Action)
}

// BatchCards upserts cards in one round-trip.
func (c *Client) BatchCards(ctx context.Context, cards []models.Card) error {
	if len(cards) == 0 {
		return nil
	}
	return c.do(ctx, http.MethodPost, "/cards/batch", cards, nil)
}

// BatchTags upserts tags in one round-trip.
func (c *Client) BatchTags(ctx context.Context, tags []models.Tag) error {
	if len(tags) == 0 {
		return nil
	}
	return c.do(ctx, http.MethodPost, "/tags/batch", tags, nil)
}

// BatchLinkResult reports the partial outcome of a batch link upsert:
// links referencing cards the server does not know (or that belong to
// another user) are skipped, not failed.
type BatchLinkResult struct {
	Saved   []models.Link `json:"saved"`
	Skipped []SkippedLink `json:"skipped"`
}

type SkippedLink struct {
	ID     string `json:"id"`
	Reason string `json:"reason"`
}

// BatchLinks upserts links in one round-trip.
func (c *Client) BatchLinks(ctx context.Context, links []models.Link) (*BatchLinkResult, error) {
	if len(links) == 0 {
		return &BatchLinkResult{}, nil
	}
	var result BatchLinkResult
	if err := c.do(ctx, http.MethodPost, "/links/batch", links, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// Reset deletes every remote record of the authenticated user, in
// foreign-key-safe order, server-side. Destructive; only the
// force-overwrite recovery flow calls it.
func (c *Client) Reset(ctx context.Context) error {
	return c.do(ctx, http.MethodPost, "/sync/reset", nil, nil)
}

// FetchShared resolves a public share identifier to its reduced
// projection. No authentication involved.
func (c *Client) FetchShared(ctx context.Context, shareID string) (*models.SharedCard, error) {
	var card models.SharedCard
	if err := c.getWithRetry(ctx, "/share/"+shareID, &card); err != nil {
		return nil, err
	}
	return &card, nil
}
