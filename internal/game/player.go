package game

import (
	"github.com/arcanechess/arcane-server-go/internal/game/board"
	"github.com/arcanechess/arcane-server-go/internal/game/cards"
)

// Player is one side of a match. It is only touched under its match's lock.
type Player struct {
	ID       string
	Name     string
	Color    board.Color
	Deck     *cards.Deck
	Hand     cards.Hand
	Discard  cards.DiscardPile
	Captured []*board.Piece
}

// NewPlayer creates a player with the given deck. A nil deck is empty.
func NewPlayer(id, name string, deck *cards.Deck) *Player {
	if deck == nil {
		deck, _ = cards.NewDeck(nil)
	}
	return &Player{ID: id, Name: name, Deck: deck}
}

// DrawCard moves the top card of the deck into the hand.
func (p *Player) DrawCard() bool {
	c, err := p.Deck.Draw()
	if err != nil {
		return false
	}
	p.Hand.Add(c)
	return true
}

// PlayerView is the public part of a player.
type PlayerView struct {
	ID        string   `json:"id"`
	Name      string   `json:"name"`
	Color     string   `json:"color"`
	HandSize  int      `json:"hand_size"`
	DeckSize  int      `json:"deck_size"`
	Discarded int      `json:"discarded"`
	Captured  []string `json:"captured"`
}

func (p *Player) view() PlayerView {
	captured := make([]string, 0, len(p.Captured))
	for _, c := range p.Captured {
		captured = append(captured, c.ID)
	}
	return PlayerView{
		ID:        p.ID,
		Name:      p.Name,
		Color:     string(p.Color),
		HandSize:  p.Hand.Len(),
		DeckSize:  p.Deck.Size(),
		Discarded: p.Discard.Size(),
		Captured:  captured,
	}
}
