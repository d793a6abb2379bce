package cards

import (
	_ "embed"
	"fmt"
	"os"
	"sort"

	"gopkg.in/yaml.v3"
)

//go:embed catalog.yaml
var builtinCatalog []byte

// Catalog maps card ids to their definitions.
type Catalog struct {
	cards map[string]Card
}

type catalogFile struct {
	Cards []Card `yaml:"cards"`
}

// ParseCatalog decodes a YAML card list.
func ParseCatalog(data []byte) (*Catalog, error) {
	var file catalogFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("failed to parse card catalog: %w", err)
	}
	c := &Catalog{cards: make(map[string]Card, len(file.Cards))}
	for _, card := range file.Cards {
		if card.ID == "" {
			return nil, fmt.Errorf("card catalog entry %q has no id", card.Name)
		}
		if _, dup := c.cards[card.ID]; dup {
			return nil, fmt.Errorf("duplicate card id %q in catalog", card.ID)
		}
		c.cards[card.ID] = card
	}
	return c, nil
}

// DefaultCatalog returns the catalog compiled into the binary.
func DefaultCatalog() *Catalog {
	c, err := ParseCatalog(builtinCatalog)
	if err != nil {
		panic(err)
	}
	return c
}

// LoadCatalog reads a catalog file. An empty path yields DefaultCatalog.
func LoadCatalog(path string) (*Catalog, error) {
	if path == "" {
		return DefaultCatalog(), nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read card catalog: %w", err)
	}
	return ParseCatalog(data)
}

// Len returns the number of known cards.
func (c *Catalog) Len() int {
	return len(c.cards)
}

// Lookup returns the definition of id.
func (c *Catalog) Lookup(id string) (Card, bool) {
	card, ok := c.cards[id]
	return card, ok
}

// Card returns the definition of id, or a placeholder when the catalog does
// not know it.
func (c *Catalog) Card(id string) Card {
	if card, ok := c.cards[id]; ok {
		return card
	}
	return Placeholder(id)
}

// BuildDeck turns a list of card ids into a deck. The first id ends up on top.
func (c *Catalog) BuildDeck(ids []string) (*Deck, error) {
	list := make([]Card, 0, len(ids))
	for i := len(ids) - 1; i >= 0; i-- {
		list = append(list, c.Card(ids[i]))
	}
	return NewDeck(list)
}

// IDs lists every known card id in sorted order.
func (c *Catalog) IDs() []string {
	ids := make([]string, 0, len(c.cards))
	for id := range c.cards {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}
