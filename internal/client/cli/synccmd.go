package cli

import (
	"context"
	"fmt"
	"os"
	"strings"
)

func (a *App) syncNow(ctx context.Context) {
	if !a.isLoggedIn() {
		fmt.Println("Log in first")
		return
	}
	if err := a.engine.FullSync(ctx, false); err != nil {
		fmt.Println("Sync failed:", err)
		return
	}
	fmt.Println("Sync complete")
}

func (a *App) syncStatus(ctx context.Context) {
	st := a.engine.Status(ctx)

	state := "idle"
	if st.IsSyncing {
		state = "syncing"
	}
	last := "never"
	if st.LastSyncAt > 0 {
		last = formatMillis(st.LastSyncAt)
	}
	fmt.Printf("state: %s  pending: %d  last sync: %s\n", state, st.PendingCount, last)
	if st.Error != "" {
		fmt.Println("last error:", st.Error)
	}
}

// clearAndResync discards the local replica and rebuilds it from the
// server. Requires confirmation because unsynced local changes are lost.
func (a *App) clearAndResync(ctx context.Context) {
	if !a.isLoggedIn() {
		fmt.Println("Log in first")
		return
	}
	answer, err := getSimpleText(a.reader, "This discards unsynced local changes and re-downloads everything. Type 'yes' to continue", os.Stdout)
	if err != nil || strings.ToLower(answer) != "yes" {
		fmt.Println("Cancelled")
		return
	}
	if err := a.engine.ClearAndResync(ctx); err != nil {
		fmt.Println("Resync failed:", err)
		return
	}
	fmt.Println("Local replica rebuilt from server")
}

// forceOverwriteRemote replaces everything on the server with the local
// replica. Requires confirmation because remote-only data is lost.
func (a *App) forceOverwriteRemote(ctx context.Context) {
	if !a.isLoggedIn() {
		fmt.Println("Log in first")
		return
	}
	answer, err := getSimpleText(a.reader, "This ERASES all server data for your account and uploads the local replica. Type 'yes' to continue", os.Stdout)
	if err != nil || strings.ToLower(answer) != "yes" {
		fmt.Println("Cancelled")
		return
	}
	if err := a.engine.ForceOverwriteRemote(ctx); err != nil {
		fmt.Println("Push failed:", err)
		return
	}
	fmt.Println("Server overwritten with local replica")
}

// fetchShared resolves a public share id against the server. Works without
// login.
func (a *App) fetchShared(ctx context.Context, args []string) {
	if len(args) == 0 {
		fmt.Println("Usage: share <share-id>")
		return
	}
	card, err := a.api.FetchShared(ctx, args[0])
	if err != nil {
		fmt.Println("Error:", err)
		return
	}

	fmt.Printf("%s [%s]\n", card.Title, card.Type)
	fmt.Printf("words: %d  created: %s\n", card.WordCount, formatMillis(card.CreatedAt))
	if len(card.Tags) > 0 {
		fmt.Println("tags:", strings.Join(card.Tags, ", "))
	}
	fmt.Println()
	fmt.Println(card.Content)
}
