package cli

import (
	"context"
	"fmt"
	"strings"
)

func (a *App) tagCommand(ctx context.Context, args []string) {
	if len(args) == 0 {
		fmt.Println("Usage: tag list | tag add <name> | tag rename <id> <name> | tag delete <id>")
		return
	}

	switch args[0] {
	case "list":
		tags, err := a.tags.List(ctx)
		if err != nil {
			fmt.Println("Error:", err)
			return
		}
		if len(tags) == 0 {
			fmt.Println("No tags")
			return
		}
		for _, t := range tags {
			fmt.Printf("%s  %-20s %s\n", t.ID, t.Name, t.Color)
		}

	case "add":
		if len(args) < 2 {
			fmt.Println("Usage: tag add <name>")
			return
		}
		tag, err := a.tags.Create(ctx, strings.Join(args[1:], " "))
		if err != nil {
			fmt.Println("Error:", err)
			return
		}
		fmt.Printf("Created tag %s (%s)\n", tag.Name, tag.ID)

	case "rename":
		if len(args) < 3 {
			fmt.Println("Usage: tag rename <id> <name>")
			return
		}
		tag, err := a.tags.Rename(ctx, args[1], strings.Join(args[2:], " "))
		if err != nil {
			fmt.Println("Error:", err)
			return
		}
		fmt.Printf("Renamed to %s\n", tag.Name)

	case "delete":
		if len(args) < 2 {
			fmt.Println("Usage: tag delete <id>")
			return
		}
		if err := a.tags.Delete(ctx, args[1]); err != nil {
			fmt.Println("Error:", err)
			return
		}
		fmt.Println("Deleted")

	default:
		fmt.Println("Unknown tag subcommand:", args[0])
	}
}
