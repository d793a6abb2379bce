package rules

import (
	"errors"
	"strconv"

	"github.com/arcanechess/arcane-server-go/internal/game/board"
	"github.com/arcanechess/arcane-server-go/internal/game/effects"
)

// Timings of the variant mechanics, in fullmove turns.
const (
	EmpowermentTurns = 2
	DaylightTurns    = 2
	DaylightCycle    = 4
	EnthrallTurns    = 2
	MarkTurns        = 5
	MineFuse         = 4
	// DarkLordDeathThreshold is the enemy material at or below which a
	// DarkLord perishes.
	DarkLordDeathThreshold = 10
)

var (
	ErrNotDarkLord           = errors.New("piece is not a darklord")
	ErrInvalidEnthrallTarget = errors.New("invalid enthrall target")
	ErrNotWarlock            = errors.New("piece is not a warlock")
)

// StartEnthralling begins converting the enemy piece on target to the
// DarkLord's side. Kings cannot be enthralled.
func StartEnthralling(b *board.Board, darklord, target board.Coordinate) error {
	dl := b.PieceAt(darklord)
	if dl == nil || dl.Kind != board.DarkLord {
		return ErrNotDarkLord
	}
	victim := b.PieceAt(target)
	if victim == nil || !b.IsEnemy(target, dl.Color) || victim.Kind == board.King || board.Chebyshev(darklord, target) != 1 {
		return ErrInvalidEnthrallTarget
	}
	dl.EnthrallTarget = victim.ID
	dl.EnthrallProgress = 0
	return nil
}

// ProgressEnthralling advances the DarkLord's enthrallment by one turn. It
// returns the converted piece when the conversion completes. The attempt is
// cancelled, and cancelled reported, when the target is gone, no longer
// adjacent or no longer an enemy.
func ProgressEnthralling(b *board.Board, darklordID string) (converted *board.Piece, cancelled bool) {
	at, dl, ok := b.Find(darklordID)
	if !ok || dl.Kind != board.DarkLord || dl.EnthrallTarget == "" {
		return nil, false
	}
	targetAt, victim, ok := b.Find(dl.EnthrallTarget)
	if !ok || !b.IsEnemy(targetAt, dl.Color) || board.Chebyshev(at, targetAt) != 1 {
		CancelEnthralling(dl)
		return nil, true
	}
	dl.EnthrallProgress++
	if dl.EnthrallProgress < EnthrallTurns {
		return nil, false
	}
	victim.Color = dl.Color
	CancelEnthralling(dl)
	return victim, false
}

// CancelEnthralling clears the DarkLord's enthrallment state.
func CancelEnthralling(dl *board.Piece) {
	dl.EnthrallTarget = ""
	dl.EnthrallProgress = 0
}

// CheckDeathCondition removes the DarkLord on at when the opposing side's
// material has fallen to the threshold. It reports whether the DarkLord died.
func CheckDeathCondition(b *board.Board, at board.Coordinate) bool {
	dl := b.PieceAt(at)
	if dl == nil || dl.Kind != board.DarkLord {
		return false
	}
	if b.Material(dl.Color.Opposite()) > DarkLordDeathThreshold {
		return false
	}
	b.Remove(at)
	return true
}

// CheckDarkLords applies CheckDeathCondition to every DarkLord on the board
// and returns the ones removed.
func CheckDarkLords(b *board.Board) []*board.Piece {
	var dead []*board.Piece
	for _, pl := range b.All() {
		if pl.Piece.Kind != board.DarkLord {
			continue
		}
		if CheckDeathCondition(b, pl.At) {
			dead = append(dead, pl.Piece)
		}
	}
	return dead
}

// InDaylight reports whether fullmove falls in the daylight half of the
// cycle. Daylight covers fullmoves 2 and 3 of every four.
func InDaylight(fullmove int) bool {
	return fullmove%DaylightCycle >= DaylightCycle-DaylightTurns
}

// RefreshDaylight sets the daylight flag of every DarkLord for fullmove. It
// runs at each turn boundary, so both sides see the same two turns of
// daylight and two of night. The daylight effect mirrors the flag for
// clients.
func RefreshDaylight(b *board.Board, fullmove int) {
	lit := InDaylight(fullmove)
	dawn := fullmove - fullmove%DaylightCycle + DaylightCycle - DaylightTurns
	for _, pl := range b.All() {
		dl := pl.Piece
		if dl.Kind != board.DarkLord {
			continue
		}
		dl.Daylight = lit
		target := effects.PieceTarget(dl.ID)
		if !lit {
			for _, e := range b.Effects.ByTarget(target) {
				if e.Type == effects.TypeDaylight {
					b.Effects.Remove(e.ID)
				}
			}
			continue
		}
		if !b.Effects.Has(effects.TypeDaylight, target) {
			b.Effects.Add(effects.TypeDaylight, dawn, DaylightTurns, target, map[string]string{"piece_id": dl.ID})
		}
	}
}

// Empower switches a warlock to its empowered movement for a limited time.
func Empower(b *board.Board, warlockID string) error {
	_, w, ok := b.Find(warlockID)
	if !ok || w.Kind != board.Warlock {
		return ErrNotWarlock
	}
	w.Empowered = true
	b.Effects.Add(effects.TypeEmpowerment, b.Turn, EmpowermentTurns, effects.PieceTarget(w.ID), map[string]string{"piece_id": w.ID})
	return nil
}

// Mark registers the timed mark a scout left on a piece, replacing any mark
// effect already on the board.
func Mark(b *board.Board, target *board.Piece) {
	for _, e := range b.Effects.ByType(effects.TypeMark) {
		b.Effects.Remove(e.ID)
	}
	b.Effects.Add(effects.TypeMark, b.Turn, MarkTurns, effects.PieceTarget(target.ID), map[string]string{"piece_id": target.ID})
}

// MineRadius is the Chebyshev radius a mine blast clears.
const MineRadius = 1

// PlaceMine arms a mine on sq. It detonates when a piece lands on sq, or on
// its own once the fuse runs out.
func PlaceMine(b *board.Board, sq board.Coordinate) string {
	return b.Effects.Add(effects.TypeMine, b.Turn, MineFuse, effects.SquareTarget(sq.Algebraic()), map[string]string{
		"file": strconv.Itoa(sq.File),
		"rank": strconv.Itoa(sq.Rank),
	})
}

// Detonate removes every piece within MineRadius of sq, sq included. Kings
// are never destroyed by a blast.
func Detonate(b *board.Board, sq board.Coordinate) []*board.Piece {
	var destroyed []*board.Piece
	for df := -MineRadius; df <= MineRadius; df++ {
		for dr := -MineRadius; dr <= MineRadius; dr++ {
			c, ok := sq.Offset(df, dr)
			if !ok {
				continue
			}
			if p := b.PieceAt(c); p != nil && p.Kind != board.King {
				destroyed = append(destroyed, b.Remove(c))
			}
		}
	}
	return destroyed
}

// TriggerMine sets off any mine armed on sq and returns what the blast
// destroyed.
func TriggerMine(b *board.Board, sq board.Coordinate) []*board.Piece {
	mines := b.Effects.ByTarget(effects.SquareTarget(sq.Algebraic()))
	armed := false
	for _, e := range mines {
		if e.Type == effects.TypeMine {
			b.Effects.Remove(e.ID)
			armed = true
		}
	}
	if !armed {
		return nil
	}
	return Detonate(b, sq)
}

// Resolve applies the rule consequences of an applied move: scout marks are
// tracked, a destroyed effigy empowers its warlock and a piece landing on a
// mine sets it off. It returns the pieces a mine destroyed.
func Resolve(b *board.Board, out board.Outcome) []*board.Piece {
	if out.Marked != nil {
		Mark(b, out.Marked)
	}
	if c := out.Captured; c != nil && c.Kind == board.Effigy && c.LinkedID != "" {
		_ = Empower(b, c.LinkedID)
	}
	if out.Landed {
		return TriggerMine(b, out.LandedAt)
	}
	return nil
}

// InstallHandlers binds the expiry handlers for every effect type to b. The
// handlers find their piece by id when they run; a captured piece is simply
// skipped.
func InstallHandlers(b *board.Board) {
	withPiece := func(e effects.Effect, fn func(*board.Piece)) {
		if _, p, ok := b.Find(e.Metadata["piece_id"]); ok {
			fn(p)
		}
	}

	b.Effects.Handle(effects.TypeEmpowerment, effects.Handler{
		Expire: func(e effects.Effect) {
			withPiece(e, func(p *board.Piece) { p.Empowered = false })
		},
	})
	b.Effects.Handle(effects.TypeDaylight, effects.Handler{
		Expire: func(e effects.Effect) {
			withPiece(e, func(p *board.Piece) { p.Daylight = false })
		},
	})
	b.Effects.Handle(effects.TypeMark, effects.Handler{
		Expire: func(e effects.Effect) {
			withPiece(e, func(p *board.Piece) { p.Marked = false })
		},
	})
	b.Effects.Handle(effects.TypeMine, effects.Handler{
		Expire: func(e effects.Effect) {
			file, ferr := strconv.Atoi(e.Metadata["file"])
			rank, rerr := strconv.Atoi(e.Metadata["rank"])
			if ferr != nil || rerr != nil {
				return
			}
			if sq := board.Coord(file, rank); sq.InBounds() {
				Detonate(b, sq)
			}
		},
	})
}
