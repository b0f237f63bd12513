package cli

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/example/cardbox/internal/models"
)

func (a *App) addLink(ctx context.Context, args []string) {
	if len(args) < 2 {
		fmt.Println("Usage: link <source-id> <target-id>")
		return
	}

	relLine, err := getSimpleText(a.reader, "Relation (EXTENSION/OPPOSITION, default EXTENSION)", os.Stdout)
	if err != nil {
		fmt.Println("Error:", err)
		return
	}
	relation := models.RelationExtension
	if relLine != "" {
		relation = models.RelationType(strings.ToUpper(relLine))
	}

	description, err := getSimpleText(a.reader, "Description (optional)", os.Stdout)
	if err != nil {
		fmt.Println("Error:", err)
		return
	}

	link, err := a.links.Create(ctx, args[0], args[1], relation, description)
	if err != nil {
		fmt.Println("Error:", err)
		return
	}
	fmt.Printf("Linked %s -> %s (%s) as %s\n", link.SourceID, link.TargetID, link.Relation, link.ID)
}

func (a *App) listLinks(ctx context.Context, args []string) {
	if len(args) == 0 {
		fmt.Println("Usage: links <card-id>")
		return
	}
	links, err := a.links.ListForCard(ctx, args[0])
	if err != nil {
		fmt.Println("Error:", err)
		return
	}
	if len(links) == 0 {
		fmt.Println("No links")
		return
	}
	for _, l := range links {
		line := fmt.Sprintf("%s  %s -> %s  %s", l.ID, l.SourceID, l.TargetID, l.Relation)
		if l.Description != "" {
			line += "  (" + l.Description + ")"
		}
		fmt.Println(line)
	}
}

func (a *App) deleteLink(ctx context.Context, args []string) {
	if len(args) == 0 {
		fmt.Println("Usage: unlink <link-id>")
		return
	}
	if err := a.links.Delete(ctx, args[0]); err != nil {
		fmt.Println("Error:", err)
		return
	}
	fmt.Println("Unlinked")
}

func (a *App) suggestLinks(ctx context.Context, args []string) {
	if len(args) == 0 {
		fmt.Println("Usage: suggest <card-id>")
		return
	}
	cards, err := a.links.SuggestRelated(ctx, args[0])
	if err != nil {
		fmt.Println("Error:", err)
		return
	}
	if len(cards) == 0 {
		fmt.Println("No suggestions")
		return
	}
	for _, c := range cards {
		a.printCardLine(&c)
	}
}
