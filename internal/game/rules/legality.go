package rules

import (
	"github.com/arcanechess/arcane-server-go/internal/game/board"
)

// IsSquareAttacked reports whether any piece of color by could capture a king
// standing on sq. Squares not holding a king of the other side are tested
// with a stand-in king on a copy of the board.
func IsSquareAttacked(b *board.Board, sq board.Coordinate, by board.Color) bool {
	view := b
	if occupant := b.PieceAt(sq); occupant == nil || occupant.Color != by.Opposite() || occupant.Kind != board.King {
		view = b.Clone()
		view.Place(sq, board.NewPiece("standin", by.Opposite(), board.King))
	}
	for _, pl := range view.Pieces(by) {
		for _, m := range captures(view, pl.At, pl.Piece) {
			if m.To == sq {
				return true
			}
		}
	}
	return false
}

// InCheck reports whether color's king can be captured. A side without a king
// is never in check.
func InCheck(b *board.Board, color board.Color) bool {
	king, ok := b.King(color)
	if !ok {
		return false
	}
	return IsSquareAttacked(b, king, color.Opposite())
}

// Legal returns the moves of the piece on at that do not leave its own king
// capturable. Captures into forbidden territory are dropped here as well, so
// every capture Legal offers is also in LegalCaptures.
func Legal(b *board.Board, at board.Coordinate) []board.Move {
	p := b.PieceAt(at)
	if p == nil {
		return nil
	}
	return kingSafe(b, p.Color, filterForbiddenTarget(b, Moves(b, at)))
}

// LegalCaptures is Legal restricted to Captures.
func LegalCaptures(b *board.Board, at board.Coordinate) []board.Move {
	p := b.PieceAt(at)
	if p == nil {
		return nil
	}
	return kingSafe(b, p.Color, Captures(b, at))
}

// HasAnyLegalMove reports whether color has at least one legal move.
func HasAnyLegalMove(b *board.Board, color board.Color) bool {
	for _, pl := range b.Pieces(color) {
		if len(Legal(b, pl.At)) > 0 {
			return true
		}
	}
	return false
}

func kingSafe(b *board.Board, color board.Color, moves []board.Move) []board.Move {
	if _, ok := b.King(color); !ok {
		return moves
	}
	out := moves[:0:0]
	for _, m := range moves {
		sim := b.Clone()
		if _, err := sim.Apply(m); err != nil {
			continue
		}
		if !InCheck(sim, color) {
			out = append(out, m)
		}
	}
	return out
}
