package cards

import (
	"strings"
)

// Type classifies a card.
type Type string

const (
	TypeUnstable  Type = "UNSTABLE"
	TypeCurse     Type = "CURSE"
	TypeHidden    Type = "HIDDEN"
	TypeTransform Type = "TRANSFORM"
	TypeForced    Type = "FORCED"
	TypeSummon    Type = "SUMMON"
)

// TargetKind describes what a card needs to be aimed at.
type TargetKind string

const (
	TargetNone   TargetKind = "NONE"
	TargetBoard  TargetKind = "BOARD"
	TargetPiece  TargetKind = "PIECE"
	TargetSquare TargetKind = "SQUARE"
)

// Card is a single card definition.
type Card struct {
	ID          string     `yaml:"id" json:"id"`
	Name        string     `yaml:"name" json:"name"`
	Description string     `yaml:"description" json:"description"`
	Type        Type       `yaml:"type" json:"card_type,omitempty"`
	Target      TargetKind `yaml:"target" json:"target_type,omitempty"`
}

// Placeholder builds a card for an id missing from the catalog, named after
// the id itself.
func Placeholder(id string) Card {
	words := strings.Split(id, "_")
	for i, w := range words {
		if w == "" {
			continue
		}
		words[i] = strings.ToUpper(w[:1]) + w[1:]
	}
	return Card{
		ID:          id,
		Name:        strings.Join(words, " "),
		Description: "Placeholder",
		Target:      TargetNone,
	}
}

// Target carries the squares a player aimed a card at, in algebraic notation.
type Target struct {
	Square    string `json:"target,omitempty"`
	Secondary string `json:"secondary,omitempty"`
}
