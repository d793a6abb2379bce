package board

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/arcanechess/arcane-server-go/internal/game/effects"
)

// ErrNoPiece is returned when a move starts from an empty square.
var ErrNoPiece = errors.New("no piece at source square")

// Config holds board-wide rule state consulted by the movement filters.
// Every field has a usable zero value.
type Config struct {
	ForbiddenActive bool
	Forbidden       map[Coordinate]bool
	GreenTiles      map[Coordinate]bool
}

func newConfig() Config {
	return Config{
		Forbidden:  make(map[Coordinate]bool),
		GreenTiles: make(map[Coordinate]bool),
	}
}

// IsForbidden reports whether c lies in active forbidden territory.
func (c Config) IsForbidden(sq Coordinate) bool {
	return c.ForbiddenActive && c.Forbidden[sq]
}

// Board owns the position of every piece plus the match context the rule
// engine needs: board config, effect tracker and the current turn number.
type Board struct {
	squares map[Coordinate]*Piece
	Config  Config
	Effects *effects.Tracker
	// Turn is the fullmove number of the owning match.
	Turn   int
	nextID int
}

// Outcome reports the side effects of applying a move.
type Outcome struct {
	Moved         *Piece
	Captured      *Piece
	CapturedAt    Coordinate
	LeftGreenTile bool
	Promoted      *Piece
	Marked        *Piece
	// Landed is set when the mover changed squares; LandedAt is its new
	// square.
	Landed   bool
	LandedAt Coordinate
}

// New returns an empty board.
func New() *Board {
	return &Board{
		squares: make(map[Coordinate]*Piece),
		Config:  newConfig(),
		Effects: effects.NewTracker(),
		Turn:    1,
	}
}

var backRank = []Kind{Rook, Knight, Bishop, Queen, King, Bishop, Knight, Rook}

// NewStandard returns a board in the standard starting position.
func NewStandard() *Board {
	b := New()
	for _, color := range []Color{White, Black} {
		home := color.HomeRank()
		pawnRank := home + color.Forward()
		for file, kind := range backRank {
			b.Place(Coord(file, home), b.NewPiece(color, kind))
			b.Place(Coord(file, pawnRank), b.NewPiece(color, Pawn))
		}
	}
	return b
}

// NewPiece creates a piece with a board-unique id. It is not placed.
func (b *Board) NewPiece(color Color, kind Kind) *Piece {
	b.nextID++
	prefix := strings.ToLower(string(color))
	if prefix == "" {
		prefix = "n"
	}
	return NewPiece(fmt.Sprintf("%s%s%d", prefix, kind.Symbol(), b.nextID), color, kind)
}

// InBounds reports whether c is on the board.
func (b *Board) InBounds(c Coordinate) bool {
	return c.InBounds()
}

// IsEmpty reports whether an on-board square has no piece.
func (b *Board) IsEmpty(c Coordinate) bool {
	return c.InBounds() && b.squares[c] == nil
}

// IsEnemy reports whether c holds a piece of a different side than color.
// Neutral obstacles are nobody's enemy.
func (b *Board) IsEnemy(c Coordinate, color Color) bool {
	p := b.squares[c]
	return p != nil && p.Color != NoColor && p.Color != color
}

// PieceAt returns the piece on c or nil. Asking about an off-board square is
// a programming error and panics.
func (b *Board) PieceAt(c Coordinate) *Piece {
	if !c.InBounds() {
		panic(fmt.Sprintf("board: PieceAt called with off-board coordinate (%d,%d)", c.File, c.Rank))
	}
	return b.squares[c]
}

// Place puts p on c, replacing any occupant.
func (b *Board) Place(c Coordinate, p *Piece) {
	if !c.InBounds() {
		panic(fmt.Sprintf("board: Place called with off-board coordinate (%d,%d)", c.File, c.Rank))
	}
	b.squares[c] = p
}

// Remove clears c and returns the piece that stood there.
func (b *Board) Remove(c Coordinate) *Piece {
	p := b.squares[c]
	delete(b.squares, c)
	return p
}

// Find locates a piece by id.
func (b *Board) Find(id string) (Coordinate, *Piece, bool) {
	for c, p := range b.squares {
		if p.ID == id {
			return c, p, true
		}
	}
	return Coordinate{}, nil, false
}

// Placement pairs a piece with its square.
type Placement struct {
	At    Coordinate
	Piece *Piece
}

// Pieces lists the pieces of one color in rank-then-file order. NoColor lists
// neutral pieces.
func (b *Board) Pieces(color Color) []Placement {
	out := make([]Placement, 0, 16)
	for _, pl := range b.All() {
		if pl.Piece.Color == color {
			out = append(out, pl)
		}
	}
	return out
}

// All lists every piece in rank-then-file order.
func (b *Board) All() []Placement {
	out := make([]Placement, 0, len(b.squares))
	for c, p := range b.squares {
		out = append(out, Placement{At: c, Piece: p})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].At.Rank != out[j].At.Rank {
			return out[i].At.Rank < out[j].At.Rank
		}
		return out[i].At.File < out[j].At.File
	})
	return out
}

// King returns the square of color's king.
func (b *Board) King(color Color) (Coordinate, bool) {
	for c, p := range b.squares {
		if p.Kind == King && p.Color == color {
			return c, true
		}
	}
	return Coordinate{}, false
}

// Material sums the value of every piece of color.
func (b *Board) Material(color Color) int {
	total := 0
	for _, p := range b.squares {
		if p.Color == color {
			total += p.Value
		}
	}
	return total
}

// Count returns the number of pieces on the board.
func (b *Board) Count() int {
	return len(b.squares)
}

// ActivateForbiddenLands turns the outer ring of the board into forbidden
// territory.
func (b *Board) ActivateForbiddenLands() {
	b.Config.ForbiddenActive = true
	for i := 0; i < Size; i++ {
		b.Config.Forbidden[Coord(i, 0)] = true
		b.Config.Forbidden[Coord(i, Size-1)] = true
		b.Config.Forbidden[Coord(0, i)] = true
		b.Config.Forbidden[Coord(Size-1, i)] = true
	}
}

// ClearMarks removes the mark flag from every piece.
func (b *Board) ClearMarks() {
	for _, p := range b.squares {
		p.Marked = false
	}
}

// Apply executes a move that the rule engine produced.
func (b *Board) Apply(m Move) (Outcome, error) {
	mover := b.squares[m.From]
	if mover == nil {
		return Outcome{}, fmt.Errorf("%w: %s", ErrNoPiece, m.From)
	}
	out := Outcome{Moved: mover}

	switch {
	case m.Meta.Mark:
		target := b.squares[m.To]
		if target == nil {
			return Outcome{}, fmt.Errorf("%w: mark target %s", ErrNoPiece, m.To)
		}
		b.ClearMarks()
		target.Marked = true
		out.Marked = target
		return out, nil

	case m.Meta.Ranged:
		target := b.Remove(m.To)
		if target != nil {
			out.Captured = target
			out.CapturedAt = m.To
			b.Config.GreenTiles[m.To] = true
		}
		mover.HasMoved = true
		return out, nil
	}

	if b.Config.GreenTiles[m.From] && m.Meta.LeavingGreenTile {
		delete(b.Config.GreenTiles, m.From)
		out.LeftGreenTile = true
	}

	if target := b.squares[m.To]; target != nil {
		out.Captured = target
		out.CapturedAt = m.To
		b.Config.GreenTiles[m.To] = true
	}

	delete(b.squares, m.From)
	b.squares[m.To] = mover
	mover.HasMoved = true
	out.Landed = true
	out.LandedAt = m.To

	if m.Meta.Castle != "" {
		rookFrom, rookTo := Coord(Size-1, m.From.Rank), Coord(m.To.File-1, m.From.Rank)
		if m.Meta.Castle == CastleQueenside {
			rookFrom, rookTo = Coord(0, m.From.Rank), Coord(m.To.File+1, m.From.Rank)
		}
		if rook := b.Remove(rookFrom); rook != nil {
			rook.HasMoved = true
			b.squares[rookTo] = rook
		}
	}

	if mover.Kind == Peon && m.To.Rank == mover.Color.FarRank() {
		mover.Unlocked = true
	}

	if m.Promotion != NoKind {
		promoted := b.NewPiece(mover.Color, m.Promotion)
		promoted.HasMoved = true
		b.squares[m.To] = promoted
		out.Promoted = promoted
	}

	return out, nil
}

// Clone returns a deep copy of the board, including its effects.
func (b *Board) Clone() *Board {
	cp := &Board{
		squares: make(map[Coordinate]*Piece, len(b.squares)),
		Config: Config{
			ForbiddenActive: b.Config.ForbiddenActive,
			Forbidden:       make(map[Coordinate]bool, len(b.Config.Forbidden)),
			GreenTiles:      make(map[Coordinate]bool, len(b.Config.GreenTiles)),
		},
		Effects: b.Effects.Clone(),
		Turn:    b.Turn,
		nextID:  b.nextID,
	}
	for c, p := range b.squares {
		cp.squares[c] = p.Clone()
	}
	for c := range b.Config.Forbidden {
		cp.Config.Forbidden[c] = true
	}
	for c := range b.Config.GreenTiles {
		cp.Config.GreenTiles[c] = true
	}
	return cp
}

// String renders the board with white at the bottom.
func (b *Board) String() string {
	var sb strings.Builder
	for rank := Size - 1; rank >= 0; rank-- {
		for file := 0; file < Size; file++ {
			p := b.squares[Coord(file, rank)]
			switch {
			case p == nil:
				sb.WriteByte('.')
			case p.Color == Black:
				sb.WriteString(strings.ToLower(p.Kind.Symbol()))
			default:
				sb.WriteString(p.Kind.Symbol())
			}
		}
		sb.WriteByte('\n')
	}
	return sb.String()
}
