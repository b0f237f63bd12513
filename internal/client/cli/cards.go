package cli

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/example/cardbox/internal/client/services"
	"github.com/example/cardbox/internal/models"
)

func (a *App) addCard(ctx context.Context) {
	title, err := getSimpleText(a.reader, "Title", os.Stdout)
	if err != nil {
		fmt.Println("Error:", err)
		return
	}

	kind, err := getSimpleText(a.reader, "Type (PERMANENT/INNOVATION/LITERATURE/PROJECT, default PROJECT)", os.Stdout)
	if err != nil {
		fmt.Println("Error:", err)
		return
	}
	cardType := models.CardType(strings.ToUpper(strings.TrimSpace(kind)))
	if kind == "" {
		cardType = models.CardTypeProject
	}

	content, err := getMultiline(a.reader, "Content", os.Stdout)
	if err != nil {
		fmt.Println("Error:", err)
		return
	}

	tagLine, err := getSimpleText(a.reader, "Tags (comma separated, optional)", os.Stdout)
	if err != nil {
		fmt.Println("Error:", err)
		return
	}
	var tagNames []string
	if tagLine != "" {
		tagNames = strings.Split(tagLine, ",")
	}

	card, err := a.cards.Create(ctx, title, content, cardType, tagNames)
	if err != nil {
		fmt.Println("Error:", err)
		return
	}
	fmt.Printf("Created card %s (%d words)\n", card.ID, card.WordCount)
	if card.WordCount > models.WordLimitSoft {
		fmt.Printf("Note: content exceeds the recommended %d words\n", models.WordLimitSoft)
	}
}

func (a *App) listCards(ctx context.Context, args []string) {
	var (
		cards []models.Card
		err   error
	)
	switch {
	case len(args) == 0:
		cards, err = a.cards.List(ctx)
	case models.ValidCardType(models.CardType(strings.ToUpper(args[0]))):
		cards, err = a.cards.ListByType(ctx, models.CardType(strings.ToUpper(args[0])))
	case models.ValidCardStatus(models.CardStatus(strings.ToUpper(args[0]))):
		cards, err = a.cards.ListByStatus(ctx, models.CardStatus(strings.ToUpper(args[0])))
	default:
		fmt.Println("Usage: list [PERMANENT|INNOVATION|LITERATURE|PROJECT|DRAFT|PENDING|ARCHIVED]")
		return
	}
	if err != nil {
		fmt.Println("Error:", err)
		return
	}
	if len(cards) == 0 {
		fmt.Println("No cards")
		return
	}
	for _, c := range cards {
		a.printCardLine(&c)
	}
}

func (a *App) searchCards(ctx context.Context, args []string) {
	if len(args) == 0 {
		fmt.Println("Usage: search <query>")
		return
	}
	cards, err := a.cards.Search(ctx, strings.Join(args, " "))
	if err != nil {
		fmt.Println("Error:", err)
		return
	}
	if len(cards) == 0 {
		fmt.Println("No matches")
		return
	}
	for _, c := range cards {
		a.printCardLine(&c)
	}
}

func (a *App) showCard(ctx context.Context, args []string) {
	if len(args) == 0 {
		fmt.Println("Usage: show <id>")
		return
	}
	card, err := a.cards.Get(ctx, args[0])
	if err != nil {
		fmt.Println("Error:", err)
		return
	}

	fmt.Printf("%s [%s/%s]\n", card.Title, card.Type, card.Status)
	fmt.Printf("id: %s  share: %s  public: %v  words: %d\n", card.ID, card.ShareID, card.IsPublic, card.WordCount)
	fmt.Printf("created: %s  updated: %s\n", formatMillis(card.CreatedAt), formatMillis(card.UpdatedAt))
	if card.PromotedAt != 0 {
		fmt.Printf("promoted: %s\n", formatMillis(card.PromotedAt))
	}
	if names := a.tagNames(ctx, card.TagIDs); len(names) > 0 {
		fmt.Println("tags:", strings.Join(names, ", "))
	}
	fmt.Println()
	fmt.Println(card.Content)
}

func (a *App) editCard(ctx context.Context, args []string) {
	if len(args) == 0 {
		fmt.Println("Usage: edit <id>")
		return
	}
	card, err := a.cards.Get(ctx, args[0])
	if err != nil {
		fmt.Println("Error:", err)
		return
	}

	title, err := getSimpleText(a.reader, fmt.Sprintf("Title [%s] (empty keeps current)", card.Title), os.Stdout)
	if err != nil {
		fmt.Println("Error:", err)
		return
	}
	content, err := getMultiline(a.reader, "Content (empty keeps current)", os.Stdout)
	if err != nil {
		fmt.Println("Error:", err)
		return
	}

	var patch services.CardUpdate
	if title != "" {
		patch.Title = &title
	}
	if content != "" {
		patch.Content = &content
	}

	updated, err := a.cards.Update(ctx, card.ID, patch)
	if err != nil {
		fmt.Println("Error:", err)
		return
	}
	fmt.Printf("Updated card %s (%d words)\n", updated.ID, updated.WordCount)
}

func (a *App) setPublic(ctx context.Context, args []string, public bool) {
	if len(args) == 0 {
		fmt.Println("Usage: publish|unpublish <id>")
		return
	}
	card, err := a.cards.Update(ctx, args[0], services.CardUpdate{IsPublic: &public})
	if err != nil {
		fmt.Println("Error:", err)
		return
	}
	if card.IsPublic {
		fmt.Printf("Card is public at share id %s\n", card.ShareID)
	} else {
		fmt.Println("Card is private")
	}
}

func (a *App) promoteCard(ctx context.Context, args []string) {
	if len(args) == 0 {
		fmt.Println("Usage: promote <id>")
		return
	}
	card, err := a.cards.Promote(ctx, args[0])
	if err != nil {
		fmt.Println("Error:", err)
		return
	}
	fmt.Printf("Promoted %s to PERMANENT (archived)\n", card.ID)
}

func (a *App) deleteCard(ctx context.Context, args []string) {
	if len(args) == 0 {
		fmt.Println("Usage: delete <id>")
		return
	}
	if err := a.cards.Delete(ctx, args[0]); err != nil {
		fmt.Println("Error:", err)
		return
	}
	fmt.Println("Deleted")
}

func (a *App) printCardLine(c *models.Card) {
	marker := " "
	if c.IsPublic {
		marker = "*"
	}
	fmt.Printf("%s %s  %-10s %-8s  %s\n", marker, c.ID, c.Type, c.Status, c.Title)
}

func (a *App) tagNames(ctx context.Context, ids []string) []string {
	names := make([]string, 0, len(ids))
	for _, id := range ids {
		tag, err := a.tags.Get(ctx, id)
		if err != nil {
			continue
		}
		names = append(names, tag.Name)
	}
	return names
}

func formatMillis(ms int64) string {
	return time.UnixMilli(ms).Format("2006-01-02 15:04")
}
