package cli

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"strings"
)

func (a *App) prompt() string {
	state := "offline"
	if a.engine.Online() {
		state = "online"
	}
	if !a.isLoggedIn() {
		return fmt.Sprintf("cardbox (%s, not logged in)> ", state)
	}
	return fmt.Sprintf("cardbox (%s)> ", state)
}

// root runs the command loop until EOF or exit.
func (a *App) root(ctx context.Context) {
	fmt.Println("Welcome to CardBox (type 'help' for commands)")
	scanner := bufio.NewScanner(os.Stdin)

	for {
		fmt.Print(a.prompt())
		if !scanner.Scan() {
			return
		}
		parts := strings.Fields(scanner.Text())
		if len(parts) == 0 {
			continue
		}
		cmd, args := parts[0], parts[1:]

		switch cmd {
		case "help":
			a.help()
		case "login":
			a.login(ctx)
		case "logout":
			a.logout(ctx)
		case "add":
			a.addCard(ctx)
		case "l", "list":
			a.listCards(ctx, args)
		case "show":
			a.showCard(ctx, args)
		case "search":
			a.searchCards(ctx, args)
		case "edit":
			a.editCard(ctx, args)
		case "publish":
			a.setPublic(ctx, args, true)
		case "unpublish":
			a.setPublic(ctx, args, false)
		case "promote":
			a.promoteCard(ctx, args)
		case "delete":
			a.deleteCard(ctx, args)
		case "link":
			a.addLink(ctx, args)
		case "links":
			a.listLinks(ctx, args)
		case "unlink":
			a.deleteLink(ctx, args)
		case "suggest":
			a.suggestLinks(ctx, args)
		case "tag":
			a.tagCommand(ctx, args)
		case "share":
			a.fetchShared(ctx, args)
		case "sync":
			a.syncNow(ctx)
		case "status":
			a.syncStatus(ctx)
		case "resync":
			a.clearAndResync(ctx)
		case "pushall":
			a.forceOverwriteRemote(ctx)
		case "exit", "quit":
			fmt.Println("Bye!")
			return
		default:
			fmt.Println("Unknown command:", cmd)
		}
	}
}

func (a *App) help() {
	fmt.Println("Cards:  add, (l)ist [type|status], show <id>, search <query>, edit <id>,")
	fmt.Println("        publish <id>, unpublish <id>, promote <id>, delete <id>")
	fmt.Println("Links:  link <source> <target>, links <id>, unlink <link-id>, suggest <id>")
	fmt.Println("Tags:   tag list | tag add <name> | tag rename <id> <name> | tag delete <id>")
	fmt.Println("Share:  share <share-id>")
	fmt.Println("Sync:   sync, status, resync, pushall")
	fmt.Println("Other:  login, logout, help, exit")
}
