package remote

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/example/cardbox/internal/models"
	"github.com/example/cardbox/internal/shared"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func staticToken(token string) TokenSource {
	return func(ctx context.Context) (string, error) { return token, nil }
}

func TestListCardsSendsTokenAndSince(t *testing.T) {
	var gotAuth, gotSince string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		gotSince = r.URL.Query().Get("since")
		_ = json.NewEncoder(w).Encode([]models.Card{{ID: "c1"}})
	}))
	defer srv.Close()

	c := NewClient(srv.URL, staticToken("tok123"))
	cards, err := c.ListCards(context.Background(), 1500)
	require.NoError(t, err)

	require.Len(t, cards, 1)
	assert.Equal(t, "c1", cards[0].ID)
	assert.Equal(t, "Bearer tok123", gotAuth)
	assert.Equal(t, "1500", gotSince)
}

func TestListCardsZeroSinceOmitsQuery(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.False(t, r.URL.Query().Has("since"))
		_ = json.NewEncoder(w).Encode([]models.Card{})
	}))
	defer srv.Close()

	c := NewClient(srv.URL, staticToken(""))
	_, err := c.ListCards(context.Background(), 0)
	require.NoError(t, err)
}

func TestGetRetriesTransientErrors(t *testing.T) {
	attempts := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		attempts++
		if attempts == 1 {
			http.Error(w, "temporarily down", http.StatusInternalServerError)
			return
		}
		_ = json.NewEncoder(w).Encode([]models.Tag{{ID: "t1"}})
	}))
	defer srv.Close()

	c := NewClient(srv.URL, staticToken(""))
	tags, err := c.ListTags(context.Background(), 0)
	require.NoError(t, err)
	require.Len(t, tags, 1)
	assert.Equal(t, 2, attempts)
}

func TestGetDoesNotRetryClientErrors(t *testing.T) {
	attempts := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		attempts++
		http.Error(w, "nope", http.StatusUnauthorized)
	}))
	defer srv.Close()

	c := NewClient(srv.URL, staticToken("expired"))
	_, err := c.ListLinks(context.Background(), 0)
	assert.ErrorIs(t, err, shared.ErrUnauthorized)
	assert.Equal(t, 1, attempts)
}

func TestApplyMapsActionsToEndpoints(t *testing.T) {
	type call struct{ method, path string }
	var calls []call
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls = append(calls, call{r.Method, r.URL.Path})
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	c := NewClient(srv.URL, staticToken("tok"))
	ctx := context.Background()

	payload, _ := json.Marshal(models.Card{ID: "c1"})
	require.NoError(t, c.Apply(ctx, models.QueueItem{
		Entity: models.EntityCard, Action: models.ActionCreate, EntityID: "c1", Data: payload,
	}))
	require.NoError(t, c.Apply(ctx, models.QueueItem{
		Entity: models.EntityTag, Action: models.ActionUpdate, EntityID: "t1", Data: payload,
	}))
	require.NoError(t, c.Apply(ctx, models.QueueItem{
		Entity: models.EntityLink, Action: models.ActionDelete, EntityID: "l1",
	}))

	require.Len(t, calls, 3)
	assert.Equal(t, call{http.MethodPost, "/cards"}, calls[0])
	assert.Equal(t, call{http.MethodPut, "/tags/t1"}, calls[1])
	assert.Equal(t, call{http.MethodDelete, "/links/l1"}, calls[2])
}

func TestApplyUnknownAction(t *testing.T) {
	c := NewClient("http://127.0.0.1:0", staticToken(""))
	err := c.Apply(context.Background(), models.QueueItem{Entity: models.EntityCard, Action: "explode"})
	assert.Error(t, err)
}

func TestBatchLinksDecodesSkipped(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/links/batch", r.URL.Path)
		_ = json.NewEncoder(w).Encode(BatchLinkResult{
			Saved:   []models.Link{{ID: "l1"}},
			Skipped: []SkippedLink{{ID: "l2", Reason: "referenced card does not exist"}},
		})
	}))
	defer srv.Close()

	c := NewClient(srv.URL, staticToken("tok"))
	result, err := c.BatchLinks(context.Background(), []models.Link{{ID: "l1"}, {ID: "l2"}})
	require.NoError(t, err)

	require.Len(t, result.Saved, 1)
	require.Len(t, result.Skipped, 1)
	assert.Equal(t, "l2", result.Skipped[0].ID)
}

func TestBatchEmptySlicesSkipRequest(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Fatal("no request expected for empty batch")
	}))
	defer srv.Close()

	c := NewClient(srv.URL, staticToken(""))
	require.NoError(t, c.BatchCards(context.Background(), nil))
	require.NoError(t, c.BatchTags(context.Background(), nil))

	result, err := c.BatchLinks(context.Background(), nil)
	require.NoError(t, err)
	assert.Empty(t, result.Saved)
}

func TestFetchShared(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/share/abcDEF1234", r.URL.Path)
		_ = json.NewEncoder(w).Encode(models.SharedCard{ShareID: "abcDEF1234", Title: "public note"})
	}))
	defer srv.Close()

	c := NewClient(srv.URL, staticToken(""))
	card, err := c.FetchShared(context.Background(), "abcDEF1234")
	require.NoError(t, err)
	assert.Equal(t, "public note", card.Title)
}
