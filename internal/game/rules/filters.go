package rules

import (
	"github.com/arcanechess/arcane-server-go/internal/game/board"
	"github.com/arcanechess/arcane-server-go/internal/game/effects"
)

// ExhaustionRange is the furthest Manhattan distance an exhausted piece may
// travel.
const ExhaustionRange = 4

// filterMoves applies the board-wide modifiers shared by every piece kind, in
// order: forbidden-lands exit, then exhaustion.
func filterMoves(b *board.Board, at board.Coordinate, p *board.Piece, moves []board.Move) []board.Move {
	moves = filterForbiddenExit(b, at, moves)
	return filterExhaustion(b, p, at, moves)
}

// filterForbiddenExit drops captures that would carry a piece out of
// forbidden territory.
func filterForbiddenExit(b *board.Board, at board.Coordinate, moves []board.Move) []board.Move {
	if !b.Config.IsForbidden(at) {
		return moves
	}
	out := moves[:0:0]
	for _, m := range moves {
		if m.Meta.Capture && !b.Config.IsForbidden(m.To) {
			continue
		}
		out = append(out, m)
	}
	return out
}

// filterForbiddenTarget drops captures landing in forbidden territory. Kings
// get no shelter there, so check and checkmate work on the edge ring.
func filterForbiddenTarget(b *board.Board, moves []board.Move) []board.Move {
	if !b.Config.ForbiddenActive {
		return moves
	}
	out := moves[:0:0]
	for _, m := range moves {
		if m.IsCapture() && b.Config.IsForbidden(m.To) {
			if victim := b.PieceAt(m.To); victim == nil || victim.Kind != board.King {
				continue
			}
		}
		out = append(out, m)
	}
	return out
}

func filterExhaustion(b *board.Board, p *board.Piece, at board.Coordinate, moves []board.Move) []board.Move {
	if p.Color == board.NoColor || !b.Effects.Has(effects.TypeExhaustion, effects.ColorTarget(string(p.Color))) {
		return moves
	}
	out := moves[:0:0]
	for _, m := range moves {
		if board.Manhattan(at, m.To) > ExhaustionRange {
			continue
		}
		out = append(out, m)
	}
	return out
}
