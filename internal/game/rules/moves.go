package rules

import (
	"github.com/arcanechess/arcane-server-go/internal/game/board"
)

// Ray and step limits for the variant pieces.
const (
	ScoutRange         = 5
	HeadHunterRange    = 3
	WarlockRange       = 2
	ClericForwardRange = 1
	ClericBackRange    = 2
	ClericSideRange    = 2
	ClericProtectRange = 3
)

type generator func(b *board.Board, at board.Coordinate, p *board.Piece, castling bool) []board.Move

func generatorFor(kind board.Kind) (generator, bool) {
	switch kind {
	case board.King:
		return kingMoves, true
	case board.Queen:
		return queenMoves, true
	case board.Rook:
		return rookMoves, true
	case board.Bishop:
		return bishopMoves, true
	case board.Knight:
		return knightMoves, true
	case board.Pawn:
		return pawnMoves, true
	case board.Peon:
		return peonMoves, true
	case board.Scout:
		return scoutMoves, true
	case board.HeadHunter:
		return headHunterMoves, true
	case board.Witch:
		return witchMoves, true
	case board.Warlock:
		return warlockMoves, true
	case board.Cleric:
		return clericMoves, true
	case board.DarkLord:
		return darkLordMoves, true
	default:
		// Effigies and barricades never move.
		return nil, false
	}
}

var (
	queenMoves  = sliderMoves(allEight, unlimited)
	rookMoves   = sliderMoves(orthogonal, unlimited)
	bishopMoves = sliderMoves(diagonal, unlimited)
	knightMoves = jumpMoves(knightJump)
	kingSteps   = jumpMoves(allEight)
	witchJumps  = jumpMoves(witchSteps)
)

// Moves returns every move the piece on at may make, captures included,
// after the forbidden-lands exit and exhaustion filters. Moves are not yet
// filtered for king safety; see Legal.
func Moves(b *board.Board, at board.Coordinate) []board.Move {
	p := b.PieceAt(at)
	if p == nil {
		return nil
	}
	return filterMoves(b, at, p, raw(b, at, p, true))
}

// Captures returns the capturing subset of Moves after the forbidden-lands
// target filter. Scouts and clerics never capture.
func Captures(b *board.Board, at board.Coordinate) []board.Move {
	p := b.PieceAt(at)
	if p == nil {
		return nil
	}
	return captures(b, at, p)
}

func captures(b *board.Board, at board.Coordinate, p *board.Piece) []board.Move {
	if p.Kind == board.Scout || p.Kind == board.Cleric {
		return []board.Move{}
	}
	all := raw(b, at, p, false)
	out := make([]board.Move, 0, len(all))
	for _, m := range all {
		if m.Meta.Capture {
			out = append(out, m)
		}
	}
	return filterForbiddenTarget(b, filterMoves(b, at, p, out))
}

func raw(b *board.Board, at board.Coordinate, p *board.Piece, castling bool) []board.Move {
	gen, ok := generatorFor(p.Kind)
	if !ok {
		return []board.Move{}
	}
	return gen(b, at, p, castling)
}

func newMove(b *board.Board, from, to board.Coordinate, p *board.Piece) board.Move {
	return board.Move{
		From:    from,
		To:      to,
		PieceID: p.ID,
		Meta:    board.MoveMeta{Capture: b.IsEnemy(to, p.Color)},
	}
}

// ray walks from at in one direction until the board edge, the length limit
// or the first occupied square. An enemy occupant ends the ray with a capture.
func ray(b *board.Board, at board.Coordinate, p *board.Piece, s step, limit int, capture bool) []board.Move {
	out := make([]board.Move, 0, board.Size)
	cur := at
	for n := 1; limit == unlimited || n <= limit; n++ {
		next, ok := cur.Offset(s.df, s.dr)
		if !ok {
			break
		}
		cur = next
		if b.IsEmpty(cur) {
			out = append(out, newMove(b, at, cur, p))
			continue
		}
		if capture && b.IsEnemy(cur, p.Color) {
			out = append(out, newMove(b, at, cur, p))
		}
		break
	}
	return out
}

func sliderMoves(dirs []step, limit int) generator {
	return func(b *board.Board, at board.Coordinate, p *board.Piece, _ bool) []board.Move {
		out := make([]board.Move, 0, 2*board.Size)
		for _, s := range dirs {
			out = append(out, ray(b, at, p, s, limit, true)...)
		}
		return out
	}
}

// single lands on the target square when it is empty or holds an enemy.
func single(b *board.Board, at board.Coordinate, p *board.Piece, s step) (board.Move, bool) {
	to, ok := at.Offset(s.df, s.dr)
	if !ok {
		return board.Move{}, false
	}
	if b.IsEmpty(to) || b.IsEnemy(to, p.Color) {
		return newMove(b, at, to, p), true
	}
	return board.Move{}, false
}

func jumpMoves(jumps []step) generator {
	return func(b *board.Board, at board.Coordinate, p *board.Piece, _ bool) []board.Move {
		out := make([]board.Move, 0, len(jumps))
		for _, s := range jumps {
			if m, ok := single(b, at, p, s); ok {
				out = append(out, m)
			}
		}
		return out
	}
}

func kingMoves(b *board.Board, at board.Coordinate, p *board.Piece, castling bool) []board.Move {
	out := kingSteps(b, at, p, false)
	if castling {
		out = append(out, castlingMoves(b, at, p)...)
	}
	return out
}

func castlingMoves(b *board.Board, at board.Coordinate, p *board.Piece) []board.Move {
	home := p.Color.HomeRank()
	if p.HasMoved || at != board.Coord(4, home) {
		return nil
	}
	enemy := p.Color.Opposite()
	out := make([]board.Move, 0, 2)

	try := func(rookFile int, between []int, transit []int, to int, tag string) {
		rook := b.PieceAt(board.Coord(rookFile, home))
		if rook == nil || rook.Kind != board.Rook || rook.Color != p.Color || rook.HasMoved {
			return
		}
		for _, f := range between {
			if !b.IsEmpty(board.Coord(f, home)) {
				return
			}
		}
		for _, f := range transit {
			if IsSquareAttacked(b, board.Coord(f, home), enemy) {
				return
			}
		}
		out = append(out, board.Move{
			From:    at,
			To:      board.Coord(to, home),
			PieceID: p.ID,
			Meta:    board.MoveMeta{Castle: tag},
		})
	}

	try(7, []int{5, 6}, []int{4, 5, 6}, 6, board.CastleKingside)
	try(0, []int{1, 2, 3}, []int{4, 3, 2}, 2, board.CastleQueenside)
	return out
}

func pawnMoves(b *board.Board, at board.Coordinate, p *board.Piece, _ bool) []board.Move {
	out := forwardMoves(b, at, p, p.Color.Forward(), !p.HasMoved)
	for i := range out {
		if out[i].To.Rank == p.Color.FarRank() {
			out[i].Promotion = board.Queen
		}
	}
	return out
}

func peonMoves(b *board.Board, at board.Coordinate, p *board.Piece, _ bool) []board.Move {
	out := forwardMoves(b, at, p, p.Color.Forward(), !p.HasMoved)
	if p.Unlocked {
		out = append(out, forwardMoves(b, at, p, -p.Color.Forward(), false)...)
	}
	return out
}

// forwardMoves produces pawn-style pushes and diagonal captures along dir.
func forwardMoves(b *board.Board, at board.Coordinate, p *board.Piece, dir int, double bool) []board.Move {
	out := make([]board.Move, 0, 4)
	if one, ok := at.Offset(0, dir); ok && b.IsEmpty(one) {
		out = append(out, newMove(b, at, one, p))
		if two, ok := at.Offset(0, 2*dir); ok && double && b.IsEmpty(two) {
			out = append(out, newMove(b, at, two, p))
		}
	}
	for _, df := range []int{-1, 1} {
		if to, ok := at.Offset(df, dir); ok && b.IsEnemy(to, p.Color) {
			out = append(out, newMove(b, at, to, p))
		}
	}
	return out
}

func scoutMoves(b *board.Board, at board.Coordinate, p *board.Piece, _ bool) []board.Move {
	out := make([]board.Move, 0, 2*board.Size)
	for _, s := range allEight {
		cur := at
		for n := 1; n <= ScoutRange; n++ {
			next, ok := cur.Offset(s.df, s.dr)
			if !ok {
				break
			}
			cur = next
			if b.IsEmpty(cur) {
				out = append(out, board.Move{From: at, To: cur, PieceID: p.ID})
				continue
			}
			if b.IsEnemy(cur, p.Color) {
				out = append(out, board.Move{
					From:    at,
					To:      cur,
					PieceID: p.ID,
					Meta:    board.MoveMeta{Mark: true},
				})
			}
			break
		}
	}
	return out
}

// headHunterMoves allows a king step plus a ranged capture exactly three
// squares ahead. The ranged capture does not require a clear path.
func headHunterMoves(b *board.Board, at board.Coordinate, p *board.Piece, _ bool) []board.Move {
	out := kingSteps(b, at, p, false)
	if to, ok := at.Offset(0, HeadHunterRange*p.Color.Forward()); ok && b.IsEnemy(to, p.Color) {
		out = append(out, board.Move{
			From:    at,
			To:      to,
			PieceID: p.ID,
			Meta:    board.MoveMeta{Capture: true, Ranged: true},
		})
	}
	return out
}

var witchSteps = []step{{2, 2}, {2, -2}, {-2, -2}, {-2, 2}, {1, 0}, {-1, 0}}

func witchMoves(b *board.Board, at board.Coordinate, p *board.Piece, _ bool) []board.Move {
	out := witchJumps(b, at, p, false)
	if b.Config.GreenTiles[at] {
		for i := range out {
			out[i].Meta.LeavingGreenTile = true
		}
	}
	return out
}

func warlockMoves(b *board.Board, at board.Coordinate, p *board.Piece, _ bool) []board.Move {
	if p.Empowered {
		out := knightMoves(b, at, p, false)
		return append(out, rookMoves(b, at, p, false)...)
	}

	out := make([]board.Move, 0, 16)
	for _, s := range diagonal {
		out = append(out, ray(b, at, p, s, WarlockRange, true)...)
	}
	// Orthogonal jumps of two keep the warlock on its square color, so only
	// the second square of a clear path is a destination.
	for _, s := range orthogonal {
		mid, ok := at.Offset(s.df, s.dr)
		if !ok || !b.IsEmpty(mid) {
			continue
		}
		if m, ok := single(b, at, p, step{2 * s.df, 2 * s.dr}); ok {
			out = append(out, m)
		}
	}
	if back, ok := at.Offset(0, -p.Color.Forward()); ok && b.IsEmpty(back) {
		out = append(out, newMove(b, at, back, p))
	}
	return out
}

func clericMoves(b *board.Board, at board.Coordinate, p *board.Piece, _ bool) []board.Move {
	fwd := p.Color.Forward()
	out := make([]board.Move, 0, 7)
	out = append(out, ray(b, at, p, step{0, fwd}, ClericForwardRange, false)...)
	out = append(out, ray(b, at, p, step{0, -fwd}, ClericBackRange, false)...)
	out = append(out, ray(b, at, p, step{1, 0}, ClericSideRange, false)...)
	out = append(out, ray(b, at, p, step{-1, 0}, ClericSideRange, false)...)
	return out
}

// IsProtecting reports whether a cleric on at shields sq.
func IsProtecting(at, sq board.Coordinate) bool {
	d := board.Manhattan(at, sq)
	return d >= 1 && d <= ClericProtectRange
}

func darkLordMoves(b *board.Board, at board.Coordinate, p *board.Piece, _ bool) []board.Move {
	if p.Daylight {
		return kingSteps(b, at, p, false)
	}
	return queenMoves(b, at, p, false)
}
