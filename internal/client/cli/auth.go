package cli

import (
	"context"
	"fmt"
	"os"
)

// login stores a session token obtained from the external identity flow.
// The token is persisted so the session survives restarts.
func (a *App) login(ctx context.Context) {
	token, err := getSecret("Paste session token", os.Stdout)
	if err != nil {
		fmt.Println("Error reading token:", err)
		return
	}
	if token == "" {
		fmt.Println("Empty token, staying logged out")
		return
	}

	a.token = token
	if err := a.store.Metadata.Set(ctx, sessionTokenKey, []byte(token)); err != nil {
		fmt.Println("Error saving token:", err)
		return
	}

	fmt.Println("Logged in")
	go func() {
		if err := a.engine.FullSync(context.WithoutCancel(ctx), true); err != nil {
			a.logger.Warn(ctx, "initial sync failed", "error", err)
		}
	}()
}

// logout forgets the session token. Local data stays on the device.
func (a *App) logout(ctx context.Context) {
	a.token = ""
	if err := a.store.Metadata.Delete(ctx, sessionTokenKey); err != nil {
		fmt.Println("Error clearing token:", err)
		return
	}
	fmt.Println("Logged out")
}
