// Package cli is the interactive terminal front end of the CardBox client.
// It wires the replica, the mutation queue, the remote adapter and the sync
// engine together and drives them from a small REPL.
package cli

import (
	"bufio"
	"context"
	"log/slog"
	"os"
	"time"

	"github.com/example/cardbox/internal/client/config"
	"github.com/example/cardbox/internal/client/queue"
	"github.com/example/cardbox/internal/client/remote"
	"github.com/example/cardbox/internal/client/services"
	"github.com/example/cardbox/internal/client/store"
	syncengine "github.com/example/cardbox/internal/client/sync"
	"github.com/example/cardbox/internal/logging"

	_ "modernc.org/sqlite"
)

// sessionTokenKey is the metadata key the session token persists under, so
// a restart does not require logging in again.
const sessionTokenKey = "session-token"

type App struct {
	config *config.Config
	logger logging.Logger

	store  *store.Store
	engine *syncengine.Service

	cards *services.CardService
	tags  *services.TagService
	links *services.LinkService
	api   *remote.Client

	token  string
	reader *bufio.Reader
}

func NewApp(ctx context.Context, cfg *config.Config) (*App, error) {
	logger := logging.NewSlogLogger(slog.New(slog.NewTextHandler(os.Stderr, nil)))

	st, err := store.Open(ctx, cfg.DatabasePath)
	if err != nil {
		return nil, err
	}

	app := &App{
		config: cfg,
		logger: logger,
		store:  st,
		reader: bufio.NewReader(os.Stdin),
	}

	api := remote.NewClient(cfg.ServerURL, func(ctx context.Context) (string, error) {
		return app.token, nil
	})

	q := queue.New(st.Metadata)
	engine := syncengine.NewService(st, q, api, logger)

	tags := services.NewTagService(st, engine)

	app.api = api
	app.engine = engine
	app.tags = tags
	app.cards = services.NewCardService(st, tags, engine)
	app.links = services.NewLinkService(st, engine)

	if data, err := st.Metadata.Get(ctx, sessionTokenKey); err == nil && len(data) > 0 {
		app.token = string(data)
	}

	return app, nil
}

func (a *App) isLoggedIn() bool {
	return a.token != ""
}

// Run starts the background watchers and enters the REPL. It returns when
// the user exits or stdin closes.
func (a *App) Run(ctx context.Context) {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	defer a.store.Close()

	go a.startOnlineStatusWatcher(ctx, a.config.OnlineCheckInterval)
	go a.engine.RunPeriodic(ctx, a.config.SyncInterval)

	a.root(ctx)
}

// startOnlineStatusWatcher probes the server on a fixed interval and feeds
// the result to the sync engine, which handles the reconnect catch-up
// itself.
func (a *App) startOnlineStatusWatcher(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			pingCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
			err := a.api.Ping(pingCtx)
			cancel()
			a.engine.SetOnline(ctx, err == nil)
		}
	}
}
