package board

import (
	"fmt"
	"strings"
)

// Color is the side a piece belongs to.
type Color string

const (
	White   Color = "W"
	Black   Color = "B"
	NoColor Color = ""
)

// Opposite returns the other side. NoColor has no opposite.
func (c Color) Opposite() Color {
	switch c {
	case White:
		return Black
	case Black:
		return White
	default:
		return NoColor
	}
}

// Forward is the rank direction pieces of this color advance in.
func (c Color) Forward() int {
	if c == Black {
		return -1
	}
	return 1
}

// HomeRank is the back rank of this color.
func (c Color) HomeRank() int {
	if c == Black {
		return Size - 1
	}
	return 0
}

// FarRank is the opponent's back rank.
func (c Color) FarRank() int {
	if c == Black {
		return 0
	}
	return Size - 1
}

// Name returns "white", "black" or "neutral".
func (c Color) Name() string {
	switch c {
	case White:
		return "white"
	case Black:
		return "black"
	default:
		return "neutral"
	}
}

// ParseColor accepts "W", "B", "white" or "black" in any case.
func ParseColor(s string) (Color, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "w", "white":
		return White, nil
	case "b", "black":
		return Black, nil
	default:
		return NoColor, fmt.Errorf("unknown color %q", s)
	}
}

// Kind tags the rule variant of a piece.
type Kind uint8

const (
	NoKind Kind = iota
	King
	Queen
	Rook
	Bishop
	Knight
	Pawn
	Peon
	Scout
	HeadHunter
	Witch
	Warlock
	Cleric
	DarkLord
	Effigy
	Barricade
)

var kindSymbols = map[Kind]string{
	King:       "K",
	Queen:      "Q",
	Rook:       "R",
	Bishop:     "B",
	Knight:     "N",
	Pawn:       "P",
	Peon:       "E",
	Scout:      "S",
	HeadHunter: "H",
	Witch:      "T",
	Warlock:    "W",
	Cleric:     "C",
	DarkLord:   "D",
	Effigy:     "F",
	Barricade:  "X",
}

var kindNames = map[Kind]string{
	King:       "KING",
	Queen:      "QUEEN",
	Rook:       "ROOK",
	Bishop:     "BISHOP",
	Knight:     "KNIGHT",
	Pawn:       "PAWN",
	Peon:       "PEON",
	Scout:      "SCOUT",
	HeadHunter: "HEADHUNTER",
	Witch:      "WITCH",
	Warlock:    "WARLOCK",
	Cleric:     "CLERIC",
	DarkLord:   "DARKLORD",
	Effigy:     "EFFIGY",
	Barricade:  "BARRICADE",
}

// Material values. Kings and obstacles carry no material.
var kindValues = map[Kind]int{
	Queen:      9,
	Rook:       5,
	Bishop:     3,
	Knight:     3,
	Pawn:       1,
	Peon:       1,
	Scout:      2,
	HeadHunter: 4,
	Witch:      3,
	Warlock:    4,
	Cleric:     2,
	DarkLord:   8,
}

func (k Kind) String() string {
	if name, ok := kindNames[k]; ok {
		return name
	}
	return fmt.Sprintf("KIND_%d", int(k))
}

// Symbol is the single-letter tag used on the wire.
func (k Kind) Symbol() string {
	return kindSymbols[k]
}

// Value is the material value of the kind.
func (k Kind) Value() int {
	return kindValues[k]
}

// ParseKind accepts a symbol ("Q") or a name ("queen").
func ParseKind(s string) (Kind, error) {
	want := strings.ToUpper(strings.TrimSpace(s))
	for k, sym := range kindSymbols {
		if sym == want {
			return k, nil
		}
	}
	for k, name := range kindNames {
		if name == want {
			return k, nil
		}
	}
	return NoKind, fmt.Errorf("unknown piece kind %q", s)
}

// Piece is a single piece on the board. The board owns its position.
type Piece struct {
	ID       string
	Color    Color
	Kind     Kind
	Value    int
	HasMoved bool
	Marked   bool

	// Peon: set once the peon has stood on the far rank.
	Unlocked bool
	// Warlock: alternate movement while its effigy's destruction is fresh.
	Empowered bool
	// DarkLord: king-like movement during daylight.
	Daylight bool
	// DarkLord: piece id being enthralled and turns spent on it.
	EnthrallTarget   string
	EnthrallProgress int
	// Effigy: warlock it is bound to and the curse that created it.
	LinkedID string
	Curse    string
}

// NewPiece builds a piece with the default value for its kind.
func NewPiece(id string, color Color, kind Kind) *Piece {
	return &Piece{
		ID:    id,
		Color: color,
		Kind:  kind,
		Value: kind.Value(),
	}
}

// Clone returns an independent copy of the piece.
func (p *Piece) Clone() *Piece {
	cp := *p
	return &cp
}

func (p *Piece) String() string {
	return fmt.Sprintf("%s %s (%s)", p.Color.Name(), strings.ToLower(p.Kind.String()), p.ID)
}

// Immobile reports whether the piece never moves on its own.
func (p *Piece) Immobile() bool {
	return p.Kind == Effigy || p.Kind == Barricade
}
