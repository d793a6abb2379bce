package cards

import (
	"errors"
	"math/rand"
)

// DeckSize is the exact number of cards a player brings to a match.
const DeckSize = 16

var (
	ErrDeckFull  = errors.New("deck cannot hold more than 16 cards")
	ErrDeckEmpty = errors.New("deck is empty")
)

// Deck is a stack of cards drawn from the top.
type Deck struct {
	cards []Card
}

// NewDeck builds a deck from cards in order; the last card is on top.
func NewDeck(cards []Card) (*Deck, error) {
	d := &Deck{cards: make([]Card, 0, DeckSize)}
	for _, c := range cards {
		if err := d.Add(c); err != nil {
			return nil, err
		}
	}
	return d, nil
}

// Add puts a card on top of the deck.
func (d *Deck) Add(c Card) error {
	if len(d.cards) >= DeckSize {
		return ErrDeckFull
	}
	d.cards = append(d.cards, c)
	return nil
}

// Draw removes and returns the top card.
func (d *Deck) Draw() (Card, error) {
	if len(d.cards) == 0 {
		return Card{}, ErrDeckEmpty
	}
	top := d.cards[len(d.cards)-1]
	d.cards = d.cards[:len(d.cards)-1]
	return top, nil
}

// Top returns the top card without drawing it.
func (d *Deck) Top() (Card, bool) {
	if len(d.cards) == 0 {
		return Card{}, false
	}
	return d.cards[len(d.cards)-1], true
}

// Shuffle reorders the deck using rng.
func (d *Deck) Shuffle(rng *rand.Rand) {
	rng.Shuffle(len(d.cards), func(i, j int) {
		d.cards[i], d.cards[j] = d.cards[j], d.cards[i]
	})
}

// Size returns the number of cards left.
func (d *Deck) Size() int {
	return len(d.cards)
}

// Hand holds the cards a player may play.
type Hand struct {
	cards []Card
}

func (h *Hand) Add(c Card) {
	h.cards = append(h.cards, c)
}

// Remove takes the first card with the given id out of the hand.
func (h *Hand) Remove(id string) (Card, bool) {
	for i, c := range h.cards {
		if c.ID == id {
			h.cards = append(h.cards[:i], h.cards[i+1:]...)
			return c, true
		}
	}
	return Card{}, false
}

func (h *Hand) Has(id string) bool {
	for _, c := range h.cards {
		if c.ID == id {
			return true
		}
	}
	return false
}

// Cards returns a copy of the hand.
func (h *Hand) Cards() []Card {
	return append([]Card(nil), h.cards...)
}

func (h *Hand) Len() int {
	return len(h.cards)
}

// DiscardPile collects played cards.
type DiscardPile struct {
	cards []Card
}

func (p *DiscardPile) Add(c Card) {
	p.cards = append(p.cards, c)
}

func (p *DiscardPile) Top() (Card, bool) {
	if len(p.cards) == 0 {
		return Card{}, false
	}
	return p.cards[len(p.cards)-1], true
}

func (p *DiscardPile) Size() int {
	return len(p.cards)
}
