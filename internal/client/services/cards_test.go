package services

import (
	"context"
	"database/sql"
	"strings"
	"testing"

	"github.com/example/cardbox/internal/client/queue"
	"github.com/example/cardbox/internal/client/remote"
	"github.com/example/cardbox/internal/client/store"
	syncengine "github.com/example/cardbox/internal/client/sync"
	"github.com/example/cardbox/internal/logging"
	"github.com/example/cardbox/internal/models"
	"github.com/example/cardbox/internal/shared"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	_ "modernc.org/sqlite"
)

// stubRemote satisfies the sync engine; the services tests never go online,
// so no call should ever reach it.
type stubRemote struct{}

func (stubRemote) Ping(ctx context.Context) error { return nil }
func (stubRemote) ListCards(ctx context.Context, since int64) ([]models.Card, error) {
	return nil, nil
}
func (stubRemote) ListTags(ctx context.Context, since int64) ([]models.Tag, error) { return nil, nil }
func (stubRemote) ListLinks(ctx context.Context, since int64) ([]models.Link, error) {
	return nil, nil
}
func (stubRemote) Apply(ctx context.Context, item models.QueueItem) error  { return nil }
func (stubRemote) BatchCards(ctx context.Context, c []models.Card) error   { return nil }
func (stubRemote) BatchTags(ctx context.Context, tags []models.Tag) error  { return nil }
func (stubRemote) Reset(ctx context.Context) error                         { return nil }
func (stubRemote) BatchLinks(ctx context.Context, l []models.Link) (*remote.BatchLinkResult, error) {
	return &remote.BatchLinkResult{}, nil
}

type testEnv struct {
	store *store.Store
	queue *queue.Queue
	cards *CardService
	tags  *TagService
	links *LinkService
}

func setupServices(t *testing.T) *testEnv {
	t.Helper()
	db, err := sql.Open("sqlite", ":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	require.NoError(t, store.RunMigrations(context.Background(), db))

	st := store.New(db)
	q := queue.New(st.Metadata)
	engine := syncengine.NewService(st, q, stubRemote{}, logging.NewNopLogger())

	tags := NewTagService(st, engine)
	return &testEnv{
		store: st,
		queue: q,
		cards: NewCardService(st, tags, engine),
		tags:  tags,
		links: NewLinkService(st, engine),
	}
}

func TestCreateCard(t *testing.T) {
	env := setupServices(t)
	ctx := context.Background()

	card, err := env.cards.Create(ctx, "  My first note ", "one two three", models.CardTypeProject, []string{"Go", "go", " notes "})
	require.NoError(t, err)

	assert.NotEmpty(t, card.ID)
	assert.Len(t, card.ShareID, models.ShareIDLength)
	assert.Equal(t, "My first note", card.Title)
	assert.Equal(t, models.CardStatusDraft, card.Status)
	assert.Equal(t, 3, card.WordCount)
	assert.Len(t, card.TagIDs, 2, "duplicate and empty tag names collapse")
	assert.Positive(t, card.CreatedAt)

	// mutation is queued for delivery
	pending, err := env.queue.Pending(ctx)
	require.NoError(t, err)
	require.Len(t, pending, 3, "two tags plus the card")
}

func TestCreateCardValidation(t *testing.T) {
	env := setupServices(t)
	ctx := context.Background()

	_, err := env.cards.Create(ctx, "", "content", models.CardTypeProject, nil)
	assert.ErrorIs(t, err, shared.ErrValidation)

	_, err = env.cards.Create(ctx, strings.Repeat("x", models.TitleMaxLength+1), "content", models.CardTypeProject, nil)
	assert.ErrorIs(t, err, shared.ErrValidation)

	_, err = env.cards.Create(ctx, "ok", "content", "BOGUS", nil)
	assert.ErrorIs(t, err, shared.ErrValidation)

	tooLong := strings.Repeat("word ", models.WordLimitHard+1)
	_, err = env.cards.Create(ctx, "ok", tooLong, models.CardTypeProject, nil)
	assert.ErrorIs(t, err, shared.ErrValidation)
}

func TestCountWordsMixedScripts(t *testing.T) {
	assert.Equal(t, 0, countWords(""))
	assert.Equal(t, 3, countWords("one two three"))
	assert.Equal(t, 4, countWords("日本語だ"))
	assert.Equal(t, 5, countWords("note about 漢字 here"))
	assert.Equal(t, 2, countWords("  spaced   out  "))
}

func TestUpdateCard(t *testing.T) {
	env := setupServices(t)
	ctx := context.Background()

	card, err := env.cards.Create(ctx, "title", "old content", models.CardTypeProject, nil)
	require.NoError(t, err)
	createdUpdatedAt := card.UpdatedAt

	newContent := "brand new content here"
	updated, err := env.cards.Update(ctx, card.ID, CardUpdate{Content: &newContent})
	require.NoError(t, err)

	assert.Equal(t, "brand new content here", updated.Content)
	assert.Equal(t, 4, updated.WordCount)
	assert.GreaterOrEqual(t, updated.UpdatedAt, createdUpdatedAt)

	// the queued create was superseded by the update snapshot
	pending, err := env.queue.Pending(ctx)
	require.NoError(t, err)
	require.Len(t, pending, 1)
	assert.Equal(t, models.ActionUpdate, pending[0].Action)
}

func TestPromoteRequiresLink(t *testing.T) {
	env := setupServices(t)
	ctx := context.Background()

	card, err := env.cards.Create(ctx, "lonely", "content", models.CardTypeInnovation, nil)
	require.NoError(t, err)

	_, err = env.cards.Promote(ctx, card.ID)
	assert.ErrorIs(t, err, shared.ErrValidation)
}

func TestPromote(t *testing.T) {
	env := setupServices(t)
	ctx := context.Background()

	a, err := env.cards.Create(ctx, "idea", "content", models.CardTypeInnovation, nil)
	require.NoError(t, err)
	b, err := env.cards.Create(ctx, "source", "content", models.CardTypeLiterature, nil)
	require.NoError(t, err)

	_, err = env.links.Create(ctx, a.ID, b.ID, models.RelationExtension, "")
	require.NoError(t, err)

	promoted, err := env.cards.Promote(ctx, a.ID)
	require.NoError(t, err)
	assert.Equal(t, models.CardTypePermanent, promoted.Type)
	assert.Equal(t, models.CardStatusArchived, promoted.Status)
	assert.Positive(t, promoted.PromotedAt)

	_, err = env.cards.Promote(ctx, a.ID)
	assert.ErrorIs(t, err, shared.ErrAlreadyPermanent)
}

func TestDeleteCardQueuesLinkDeletes(t *testing.T) {
	env := setupServices(t)
	ctx := context.Background()

	a, err := env.cards.Create(ctx, "a", "content", models.CardTypeProject, nil)
	require.NoError(t, err)
	b, err := env.cards.Create(ctx, "b", "content", models.CardTypeProject, nil)
	require.NoError(t, err)

	link, err := env.links.Create(ctx, a.ID, b.ID, models.RelationExtension, "")
	require.NoError(t, err)

	require.NoError(t, env.cards.Delete(ctx, a.ID))

	pending, err := env.queue.Pending(ctx)
	require.NoError(t, err)

	actions := make(map[string]models.Action)
	for _, item := range pending {
		actions[string(item.Entity)+"/"+item.EntityID] = item.Action
	}
	assert.Equal(t, models.ActionDelete, actions["link/"+link.ID])
	assert.Equal(t, models.ActionDelete, actions["card/"+a.ID])

	_, err = env.store.Cards.Get(ctx, a.ID)
	assert.ErrorIs(t, err, shared.ErrNotFound)
}

func TestSearchCards(t *testing.T) {
	env := setupServices(t)
	ctx := context.Background()

	_, err := env.cards.Create(ctx, "Atomic habits", "notes on habit stacking", models.CardTypeLiterature, nil)
	require.NoError(t, err)
	_, err = env.cards.Create(ctx, "Unrelated", "nothing here", models.CardTypeProject, nil)
	require.NoError(t, err)

	found, err := env.cards.Search(ctx, "habit")
	require.NoError(t, err)
	require.Len(t, found, 1)
	assert.Equal(t, "Atomic habits", found[0].Title)
}

func TestServiceNotReady(t *testing.T) {
	cards := NewCardService(nil, nil, nil)
	_, err := cards.List(context.Background())
	assert.ErrorIs(t, err, shared.ErrNotReady)
}
