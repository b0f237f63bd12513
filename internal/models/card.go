// Package models defines the entities shared by the client replica, the
// mutation queue and the server API. All timestamps are Unix epoch
// milliseconds so the same value round-trips through JSON, SQLite and
// PostgreSQL without losing the ordering the merge logic depends on.
package models

// CardType is one of the four note categories.
type CardType string

const (
	CardTypePermanent  CardType = "PERMANENT"
	CardTypeInnovation CardType = "INNOVATION"
	CardTypeLiterature CardType = "LITERATURE"
	CardTypeProject    CardType = "PROJECT"
)

// CardStatus is the editorial state of a card.
type CardStatus string

const (
	CardStatusDraft    CardStatus = "DRAFT"
	CardStatusPending  CardStatus = "PENDING"
	CardStatusArchived CardStatus = "ARCHIVED"
)

// RelationType is the kind of a directed link between two cards.
type RelationType string

const (
	RelationExtension  RelationType = "EXTENSION"
	RelationOpposition RelationType = "OPPOSITION"
)

const (
	// TitleMaxLength is the hard bound on card titles.
	TitleMaxLength = 100

	// WordLimitSoft and WordLimitHard bound card content length in words.
	WordLimitSoft = 500
	WordLimitHard = 2000

	// ShareIDLength is the exact length of public share identifiers.
	ShareIDLength = 10
)

// Card is the primary note entity.
//
// PromotedAt is zero until the card is promoted to PERMANENT; once set it
// is never cleared.
type Card struct {
	ID         string     `json:"id"`
	ShareID    string     `json:"shareId"`
	Title      string     `json:"title"`
	Content    string     `json:"content"`
	Type       CardType   `json:"type"`
	Status     CardStatus `json:"status"`
	IsPublic   bool       `json:"isPublic"`
	WordCount  int        `json:"wordCount"`
	TagIDs     []string   `json:"tagIds"`
	CreatedAt  int64      `json:"createdAt"`
	UpdatedAt  int64      `json:"updatedAt"`
	PromotedAt int64      `json:"promotedAt,omitempty"`
}

// Tag is a named label. Name is stored normalized (lower-cased, trimmed)
// and is the dedup key per owner.
type Tag struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	Color     string `json:"color,omitempty"`
	CreatedAt int64  `json:"createdAt"`
}

// Link is a directed, typed relation between two cards. The ordered
// (SourceID, TargetID) pair is unique per owner.
type Link struct {
	ID          string       `json:"id"`
	SourceID    string       `json:"sourceId"`
	TargetID    string       `json:"targetId"`
	Relation    RelationType `json:"relation"`
	Description string       `json:"description,omitempty"`
	CreatedAt   int64        `json:"createdAt"`
}

// CardPatch is the partial-update payload for a single card. Nil fields are
// left unchanged; a non-nil TagIDs replaces the association wholesale. The
// share id is fixed at creation and cannot be patched.
type CardPatch struct {
	Title      *string     `json:"title"`
	Content    *string     `json:"content"`
	Type       *CardType   `json:"type"`
	Status     *CardStatus `json:"status"`
	IsPublic   *bool       `json:"isPublic"`
	WordCount  *int        `json:"wordCount"`
	TagIDs     []string    `json:"tagIds"`
	UpdatedAt  *int64      `json:"updatedAt"`
	PromotedAt *int64      `json:"promotedAt"`
}

// SharedCard is the reduced public projection returned for share links.
// It never exposes the internal card id.
type SharedCard struct {
	ShareID   string   `json:"shareId"`
	Title     string   `json:"title"`
	Content   string   `json:"content"`
	Type      CardType `json:"type"`
	WordCount int      `json:"wordCount"`
	CreatedAt int64    `json:"createdAt"`
	Tags      []string `json:"tags"`
}

// ValidCardType reports whether t is one of the four known categories.
func ValidCardType(t CardType) bool {
	switch t {
	case CardTypePermanent, CardTypeInnovation, CardTypeLiterature, CardTypeProject:
		return true
	}
	return false
}

// ValidCardStatus reports whether s is a known status.
func ValidCardStatus(s CardStatus) bool {
	switch s {
	case CardStatusDraft, CardStatusPending, CardStatusArchived:
		return true
	}
	return false
}

// ValidRelation reports whether r is a known relation kind.
func ValidRelation(r RelationType) bool {
	return r == RelationExtension || r == RelationOpposition
}
