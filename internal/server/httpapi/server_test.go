package httpapi

import (
	"bytes"
	"context"
	"database/sql"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sort"
	"testing"
	"time"

	"github.com/example/cardbox/internal/dbx"
	"github.com/example/cardbox/internal/logging"
	"github.com/example/cardbox/internal/models"
	"github.com/example/cardbox/internal/server/auth"
	"github.com/example/cardbox/internal/server/backup"
	sc "github.com/example/cardbox/internal/server/config"
	cardsrepo "github.com/example/cardbox/internal/server/repositories/cards"
	linksrepo "github.com/example/cardbox/internal/server/repositories/links"
	"github.com/example/cardbox/internal/server/repositories/repomanager"
	tagsrepo "github.com/example/cardbox/internal/server/repositories/tags"
	"github.com/example/cardbox/internal/shared"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// memoryState is a single-process stand-in for the database, shared by the
// fake repositories.
type memoryState struct {
	cards map[string]ownedCard
	tags  map[string]ownedTag
	links map[string]ownedLink
}

type ownedCard struct {
	owner string
	card  models.Card
}

type ownedTag struct {
	owner string
	tag   models.Tag
}

type ownedLink struct {
	owner string
	link  models.Link
}

func newMemoryState() *memoryState {
	return &memoryState{
		cards: make(map[string]ownedCard),
		tags:  make(map[string]ownedTag),
		links: make(map[string]ownedLink),
	}
}

type memoryCards struct{ state *memoryState }

func (m *memoryCards) Upsert(ctx context.Context, userID string, card *models.Card) error {
	if existing, ok := m.state.cards[card.ID]; ok && existing.owner != userID {
		return shared.ErrConflict
	}
	m.state.cards[card.ID] = ownedCard{owner: userID, card: *card}
	return nil
}

func (m *memoryCards) Update(ctx context.Context, userID, id string, patch *models.CardPatch) error {
	oc, ok := m.state.cards[id]
	if !ok || oc.owner != userID {
		return shared.ErrNotFound
	}
	if patch.Title != nil {
		oc.card.Title = *patch.Title
	}
	if patch.Content != nil {
		oc.card.Content = *patch.Content
	}
	if patch.Type != nil {
		oc.card.Type = *patch.Type
	}
	if patch.Status != nil {
		oc.card.Status = *patch.Status
	}
	if patch.IsPublic != nil {
		oc.card.IsPublic = *patch.IsPublic
	}
	if patch.WordCount != nil {
		oc.card.WordCount = *patch.WordCount
	}
	if patch.TagIDs != nil {
		oc.card.TagIDs = patch.TagIDs
	}
	if patch.UpdatedAt != nil {
		oc.card.UpdatedAt = *patch.UpdatedAt
	}
	if patch.PromotedAt != nil {
		oc.card.PromotedAt = *patch.PromotedAt
	}
	m.state.cards[id] = oc
	return nil
}

func (m *memoryCards) Get(ctx context.Context, userID, id string) (*models.Card, error) {
	oc, ok := m.state.cards[id]
	if !ok || oc.owner != userID {
		return nil, shared.ErrNotFound
	}
	card := oc.card
	return &card, nil
}

func (m *memoryCards) GetShared(ctx context.Context, shareID string) (*models.Card, string, error) {
	for _, oc := range m.state.cards {
		if oc.card.ShareID == shareID && oc.card.IsPublic {
			card := oc.card
			return &card, oc.owner, nil
		}
	}
	return nil, "", shared.ErrNotFound
}

func (m *memoryCards) ListUpdated(ctx context.Context, userID string, sinceMillis int64) ([]models.Card, error) {
	var result []models.Card
	for _, oc := range m.state.cards {
		if oc.owner == userID && oc.card.UpdatedAt > sinceMillis {
			result = append(result, oc.card)
		}
	}
	sort.Slice(result, func(i, j int) bool { return result[i].UpdatedAt < result[j].UpdatedAt })
	return result, nil
}

func (m *memoryCards) Delete(ctx context.Context, userID, id string) error {
	if oc, ok := m.state.cards[id]; ok && oc.owner == userID {
		delete(m.state.cards, id)
		for lid, ol := range m.state.links {
			if ol.link.SourceID == id || ol.link.TargetID == id {
				delete(m.state.links, lid)
			}
		}
	}
	return nil
}

func (m *memoryCards) DeleteAllForUser(ctx context.Context, userID string) error {
	for id, oc := range m.state.cards {
		if oc.owner == userID {
			delete(m.state.cards, id)
		}
	}
	for id, ol := range m.state.links {
		if ol.owner == userID {
			delete(m.state.links, id)
		}
	}
	return nil
}

type memoryTags struct{ state *memoryState }

func (m *memoryTags) Upsert(ctx context.Context, userID string, tag *models.Tag) error {
	if existing, ok := m.state.tags[tag.ID]; ok && existing.owner == userID {
		for id, ot := range m.state.tags {
			if ot.owner == userID && ot.tag.Name == tag.Name && id != tag.ID {
				return shared.ErrConflict
			}
		}
		existing.tag.Name = tag.Name
		existing.tag.Color = tag.Color
		m.state.tags[tag.ID] = existing
		return nil
	}
	// Name collision with a new id keeps the existing row; only the color
	// is refreshed.
	for id, ot := range m.state.tags {
		if ot.owner == userID && ot.tag.Name == tag.Name {
			ot.tag.Color = tag.Color
			m.state.tags[id] = ot
			return nil
		}
	}
	m.state.tags[tag.ID] = ownedTag{owner: userID, tag: *tag}
	return nil
}

func (m *memoryTags) Get(ctx context.Context, userID, id string) (*models.Tag, error) {
	ot, ok := m.state.tags[id]
	if !ok || ot.owner != userID {
		return nil, shared.ErrNotFound
	}
	tag := ot.tag
	return &tag, nil
}

func (m *memoryTags) ListUpdated(ctx context.Context, userID string, sinceMillis int64) ([]models.Tag, error) {
	var result []models.Tag
	for _, ot := range m.state.tags {
		if ot.owner == userID && ot.tag.CreatedAt > sinceMillis {
			result = append(result, ot.tag)
		}
	}
	sort.Slice(result, func(i, j int) bool { return result[i].Name < result[j].Name })
	return result, nil
}

func (m *memoryTags) ListByIDs(ctx context.Context, userID string, ids []string) ([]models.Tag, error) {
	var result []models.Tag
	for _, id := range ids {
		if ot, ok := m.state.tags[id]; ok && ot.owner == userID {
			result = append(result, ot.tag)
		}
	}
	sort.Slice(result, func(i, j int) bool { return result[i].Name < result[j].Name })
	return result, nil
}

func (m *memoryTags) Delete(ctx context.Context, userID, id string) error {
	if ot, ok := m.state.tags[id]; ok && ot.owner == userID {
		delete(m.state.tags, id)
	}
	return nil
}

func (m *memoryTags) DeleteAllForUser(ctx context.Context, userID string) error {
	for id, ot := range m.state.tags {
		if ot.owner == userID {
			delete(m.state.tags, id)
		}
	}
	return nil
}

type memoryLinks struct{ state *memoryState }

func (m *memoryLinks) Upsert(ctx context.Context, userID string, link *models.Link) error {
	srcOK := false
	tgtOK := false
	if oc, ok := m.state.cards[link.SourceID]; ok && oc.owner == userID {
		srcOK = true
	}
	if oc, ok := m.state.cards[link.TargetID]; ok && oc.owner == userID {
		tgtOK = true
	}
	if !srcOK || !tgtOK {
		return shared.ErrNotFound
	}
	for id, ol := range m.state.links {
		if ol.owner == userID && ol.link.SourceID == link.SourceID && ol.link.TargetID == link.TargetID {
			ol.link.Relation = link.Relation
			ol.link.Description = link.Description
			m.state.links[id] = ol
			return nil
		}
	}
	m.state.links[link.ID] = ownedLink{owner: userID, link: *link}
	return nil
}

func (m *memoryLinks) ListUpdated(ctx context.Context, userID string, sinceMillis int64) ([]models.Link, error) {
	var result []models.Link
	for _, ol := range m.state.links {
		if ol.owner == userID && ol.link.CreatedAt > sinceMillis {
			result = append(result, ol.link)
		}
	}
	sort.Slice(result, func(i, j int) bool { return result[i].CreatedAt < result[j].CreatedAt })
	return result, nil
}

func (m *memoryLinks) Delete(ctx context.Context, userID, id string) error {
	if ol, ok := m.state.links[id]; ok && ol.owner == userID {
		delete(m.state.links, id)
	}
	return nil
}

func (m *memoryLinks) DeleteAllForUser(ctx context.Context, userID string) error {
	for id, ol := range m.state.links {
		if ol.owner == userID {
			delete(m.state.links, id)
		}
	}
	return nil
}

type memoryManager struct{ state *memoryState }

func (m *memoryManager) RunMigrations(ctx context.Context, db *sql.DB) error { return nil }
func (m *memoryManager) Cards(db dbx.DBTX) cardsrepo.Repository              { return &memoryCards{m.state} }
func (m *memoryManager) Tags(db dbx.DBTX) tagsrepo.Repository                { return &memoryTags{m.state} }
func (m *memoryManager) Links(db dbx.DBTX) linksrepo.Repository              { return &memoryLinks{m.state} }

var _ repomanager.RepositoryManager = (*memoryManager)(nil)

type stubSnapshots struct {
	stored []*backup.Snapshot
	err    error
}

func (s *stubSnapshots) Store(ctx context.Context, snapshot *backup.Snapshot) (string, error) {
	if s.err != nil {
		return "", s.err
	}
	s.stored = append(s.stored, snapshot)
	return "backups/test.json", nil
}

const testSecret = "test-secret"

func newTestAPI(t *testing.T) (*httptest.Server, *memoryState, *stubSnapshots) {
	t.Helper()

	state := newMemoryState()
	snapshots := &stubSnapshots{}
	srv := NewServer(nil, &memoryManager{state}, snapshots, logging.NewNopLogger(), &sc.Config{SecretKey: testSecret})

	// The fake repositories ignore their DBTX argument, so transactions
	// degrade to plain function calls.
	prev := runInTx
	runInTx = func(ctx context.Context, db *sql.DB, opts *sql.TxOptions, fn func(ctx context.Context, tx dbx.DBTX) error) error {
		return fn(ctx, nil)
	}
	t.Cleanup(func() { runInTx = prev })

	ts := httptest.NewServer(srv.Handler())
	t.Cleanup(ts.Close)
	return ts, state, snapshots
}

func authToken(t *testing.T, userID string) string {
	t.Helper()
	token, err := auth.GenerateToken(userID, []byte(testSecret), time.Minute)
	require.NoError(t, err)
	return token
}

func doRequest(t *testing.T, method, url, token string, body any) *http.Response {
	t.Helper()

	var reader *bytes.Reader
	if body != nil {
		data, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(data)
	} else {
		reader = bytes.NewReader(nil)
	}

	req, err := http.NewRequest(method, url, reader)
	require.NoError(t, err)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	t.Cleanup(func() { _ = resp.Body.Close() })
	return resp
}

func apiCard(id string, updatedAt int64) models.Card {
	return models.Card{
		ID: id, ShareID: (id + "0000000000")[:10], Title: "card " + id,
		Type: models.CardTypeProject, Status: models.CardStatusDraft,
		TagIDs: []string{}, CreatedAt: 1000, UpdatedAt: updatedAt,
	}
}

func TestAuthRequired(t *testing.T) {
	ts, _, _ := newTestAPI(t)

	resp := doRequest(t, http.MethodGet, ts.URL+"/cards", "", nil)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	resp = doRequest(t, http.MethodGet, ts.URL+"/cards", "garbage-token", nil)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

func TestPingIsPublic(t *testing.T) {
	ts, _, _ := newTestAPI(t)

	resp := doRequest(t, http.MethodGet, ts.URL+"/ping", "", nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestUpsertAndListCards(t *testing.T) {
	ts, _, _ := newTestAPI(t)
	token := authToken(t, "u1")

	card := apiCard("c1", 2000)
	resp := doRequest(t, http.MethodPost, ts.URL+"/cards", token, card)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	resp = doRequest(t, http.MethodGet, ts.URL+"/cards", token, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var cards []models.Card
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&cards))
	require.Len(t, cards, 1)
	assert.Equal(t, "c1", cards[0].ID)

	// incremental pull excludes records at or before the watermark
	resp = doRequest(t, http.MethodGet, ts.URL+"/cards?since=2000", token, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	cards = nil
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&cards))
	assert.Empty(t, cards)
}

func TestListCardsTypeStatusFilter(t *testing.T) {
	ts, _, _ := newTestAPI(t)
	token := authToken(t, "u1")

	project := apiCard("c1", 2000)
	literature := apiCard("c2", 2100)
	literature.Type = models.CardTypeLiterature
	literature.Status = models.CardStatusArchived
	for _, c := range []models.Card{project, literature} {
		resp := doRequest(t, http.MethodPost, ts.URL+"/cards", token, c)
		require.Equal(t, http.StatusOK, resp.StatusCode)
	}

	resp := doRequest(t, http.MethodGet, ts.URL+"/cards?type=LITERATURE", token, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var cards []models.Card
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&cards))
	require.Len(t, cards, 1)
	assert.Equal(t, "c2", cards[0].ID)

	resp = doRequest(t, http.MethodGet, ts.URL+"/cards?type=LITERATURE&status=DRAFT", token, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	cards = nil
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&cards))
	assert.Empty(t, cards)
}

func TestPatchCardPartial(t *testing.T) {
	ts, state, _ := newTestAPI(t)
	token := authToken(t, "u1")

	card := apiCard("c1", 2000)
	card.Content = "original body"
	resp := doRequest(t, http.MethodPost, ts.URL+"/cards", token, card)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	title := "renamed"
	updatedAt := int64(3000)
	resp = doRequest(t, http.MethodPut, ts.URL+"/cards/c1", token, models.CardPatch{
		Title:     &title,
		UpdatedAt: &updatedAt,
	})
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var got models.Card
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&got))
	assert.Equal(t, "renamed", got.Title)
	assert.Equal(t, "original body", got.Content, "unsupplied fields must keep their values")
	assert.Equal(t, int64(3000), got.UpdatedAt)
	assert.Equal(t, "original body", state.cards["c1"].card.Content)
}

func TestPatchCardValidation(t *testing.T) {
	ts, _, _ := newTestAPI(t)
	token := authToken(t, "u1")

	resp := doRequest(t, http.MethodPost, ts.URL+"/cards", token, apiCard("c1", 2000))
	require.Equal(t, http.StatusOK, resp.StatusCode)

	bogus := models.CardType("BOGUS")
	resp = doRequest(t, http.MethodPut, ts.URL+"/cards/c1", token, models.CardPatch{Type: &bogus})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	empty := ""
	resp = doRequest(t, http.MethodPut, ts.URL+"/cards/c1", token, models.CardPatch{Title: &empty})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestUpsertTagNameCollisionKeepsExisting(t *testing.T) {
	ts, state, _ := newTestAPI(t)
	token := authToken(t, "u1")

	resp := doRequest(t, http.MethodPost, ts.URL+"/tags", token,
		models.Tag{ID: "t1", Name: "golang", Color: "#111111", CreatedAt: 1000})
	require.Equal(t, http.StatusOK, resp.StatusCode)

	// same name from another replica with a fresh id
	resp = doRequest(t, http.MethodPost, ts.URL+"/tags", token,
		models.Tag{ID: "t2", Name: "golang", Color: "#222222", CreatedAt: 2000})
	require.Equal(t, http.StatusOK, resp.StatusCode)

	require.Len(t, state.tags, 1)
	assert.Equal(t, "#222222", state.tags["t1"].tag.Color)
}

func TestUpsertCardValidation(t *testing.T) {
	ts, _, _ := newTestAPI(t)
	token := authToken(t, "u1")

	bad := apiCard("c1", 2000)
	bad.Type = "BOGUS"
	resp := doRequest(t, http.MethodPost, ts.URL+"/cards", token, bad)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	bad = apiCard("c1", 2000)
	bad.ShareID = "short"
	resp = doRequest(t, http.MethodPost, ts.URL+"/cards", token, bad)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestUsersAreIsolated(t *testing.T) {
	ts, _, _ := newTestAPI(t)

	resp := doRequest(t, http.MethodPost, ts.URL+"/cards", authToken(t, "u1"), apiCard("c1", 2000))
	require.Equal(t, http.StatusOK, resp.StatusCode)

	resp = doRequest(t, http.MethodGet, ts.URL+"/cards", authToken(t, "u2"), nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var cards []models.Card
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&cards))
	assert.Empty(t, cards)

	// u2 cannot hijack u1's card id: upsert is rejected, patch sees nothing
	resp = doRequest(t, http.MethodPost, ts.URL+"/cards", authToken(t, "u2"), apiCard("c1", 3000))
	assert.Equal(t, http.StatusConflict, resp.StatusCode)

	title := "stolen"
	resp = doRequest(t, http.MethodPut, ts.URL+"/cards/c1", authToken(t, "u2"), models.CardPatch{Title: &title})
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestDeleteCard(t *testing.T) {
	ts, state, _ := newTestAPI(t)
	token := authToken(t, "u1")

	resp := doRequest(t, http.MethodPost, ts.URL+"/cards", token, apiCard("c1", 2000))
	require.Equal(t, http.StatusOK, resp.StatusCode)

	resp = doRequest(t, http.MethodDelete, ts.URL+"/cards/c1", token, nil)
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)
	assert.Empty(t, state.cards)

	// deleting again stays idempotent
	resp = doRequest(t, http.MethodDelete, ts.URL+"/cards/c1", token, nil)
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)
}

func TestBatchLinksReportsSkipped(t *testing.T) {
	ts, _, _ := newTestAPI(t)
	token := authToken(t, "u1")

	for _, id := range []string{"c1", "c2"} {
		resp := doRequest(t, http.MethodPost, ts.URL+"/cards", token, apiCard(id, 2000))
		require.Equal(t, http.StatusOK, resp.StatusCode)
	}

	batch := []models.Link{
		{ID: "l1", SourceID: "c1", TargetID: "c2", Relation: models.RelationExtension, CreatedAt: 1000},
		{ID: "l2", SourceID: "c1", TargetID: "ghost", Relation: models.RelationExtension, CreatedAt: 1000},
	}
	resp := doRequest(t, http.MethodPost, ts.URL+"/links/batch", token, batch)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var result batchLinksResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&result))
	require.Len(t, result.Saved, 1)
	assert.Equal(t, "l1", result.Saved[0].ID)
	require.Len(t, result.Skipped, 1)
	assert.Equal(t, "l2", result.Skipped[0].ID)
}

func TestGetShared(t *testing.T) {
	ts, _, _ := newTestAPI(t)
	token := authToken(t, "u1")

	tag := models.Tag{ID: "t1", Name: "public-notes", CreatedAt: 1000}
	resp := doRequest(t, http.MethodPost, ts.URL+"/tags", token, tag)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	card := apiCard("c1", 2000)
	card.ShareID = "abcDEF1234"
	card.IsPublic = true
	card.TagIDs = []string{"t1"}
	resp = doRequest(t, http.MethodPost, ts.URL+"/cards", token, card)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	// malformed id
	resp = doRequest(t, http.MethodGet, ts.URL+"/share/short", "", nil)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	// unknown id
	resp = doRequest(t, http.MethodGet, ts.URL+"/share/0000000000", "", nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	resp = doRequest(t, http.MethodGet, ts.URL+"/share/abcDEF1234", "", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var sharedCard models.SharedCard
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&sharedCard))
	assert.Equal(t, "abcDEF1234", sharedCard.ShareID)
	assert.Equal(t, []string{"public-notes"}, sharedCard.Tags)
}

func TestGetSharedPrivateCardHidden(t *testing.T) {
	ts, _, _ := newTestAPI(t)
	token := authToken(t, "u1")

	card := apiCard("c1", 2000)
	card.ShareID = "abcDEF1234"
	resp := doRequest(t, http.MethodPost, ts.URL+"/cards", token, card)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	resp = doRequest(t, http.MethodGet, ts.URL+"/share/abcDEF1234", "", nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestResetSnapshotsThenErases(t *testing.T) {
	ts, state, snapshots := newTestAPI(t)
	token := authToken(t, "u1")

	resp := doRequest(t, http.MethodPost, ts.URL+"/cards", token, apiCard("c1", 2000))
	require.Equal(t, http.StatusOK, resp.StatusCode)
	resp = doRequest(t, http.MethodPost, ts.URL+"/tags", token, models.Tag{ID: "t1", Name: "go", CreatedAt: 1000})
	require.Equal(t, http.StatusOK, resp.StatusCode)

	resp = doRequest(t, http.MethodPost, ts.URL+"/sync/reset", token, nil)
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)

	require.Len(t, snapshots.stored, 1)
	assert.Equal(t, "u1", snapshots.stored[0].UserID)
	assert.Len(t, snapshots.stored[0].Cards, 1)

	assert.Empty(t, state.cards)
	assert.Empty(t, state.tags)
}

func TestResetRefusedWhenBackupFails(t *testing.T) {
	ts, state, snapshots := newTestAPI(t)
	snapshots.err = context.DeadlineExceeded
	token := authToken(t, "u1")

	resp := doRequest(t, http.MethodPost, ts.URL+"/cards", token, apiCard("c1", 2000))
	require.Equal(t, http.StatusOK, resp.StatusCode)

	resp = doRequest(t, http.MethodPost, ts.URL+"/sync/reset", token, nil)
	assert.Equal(t, http.StatusInternalServerError, resp.StatusCode)
	assert.Len(t, state.cards, 1, "data must survive a refused reset")
}
