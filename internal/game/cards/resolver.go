package cards

import (
	"errors"
	"fmt"

	"github.com/arcanechess/arcane-server-go/internal/game/board"
	"github.com/arcanechess/arcane-server-go/internal/game/effects"
	"github.com/arcanechess/arcane-server-go/internal/game/rules"
)

var (
	ErrUnknownCard   = errors.New("unknown card")
	ErrInvalidTarget = errors.New("invalid card target")
	ErrNoSpace       = errors.New("no space available")
)

// ExhaustionTurns is how long the exhaustion curse lasts.
const ExhaustionTurns = 2

// Resolver applies a card's effect to the board on behalf of color. It
// returns a message for the player or an error when the card cannot be played
// as aimed; a failed resolution must leave the board unchanged.
type Resolver interface {
	Resolve(b *board.Board, color board.Color, cardID string, target Target) (string, error)
}

// ResolverFunc adapts a function to the Resolver interface.
type ResolverFunc func(b *board.Board, color board.Color, cardID string, target Target) (string, error)

func (f ResolverFunc) Resolve(b *board.Board, color board.Color, cardID string, target Target) (string, error) {
	return f(b, color, cardID, target)
}

// DefaultResolver implements the built-in cards.
type DefaultResolver struct {
	handlers map[string]ResolverFunc
}

// NewDefaultResolver returns a resolver for the built-in cards.
func NewDefaultResolver() *DefaultResolver {
	r := &DefaultResolver{}
	r.handlers = map[string]ResolverFunc{
		"forbidden_lands":   forbiddenLands,
		"exhaustion":        exhaustion,
		"mine":              mine,
		"summon_peon":       summonPeon,
		"barricade":         barricade,
		"pawn_scout":        transform(board.Pawn, board.Scout),
		"knight_headhunter": transform(board.Knight, board.HeadHunter),
		"bishop_warlock":    transform(board.Bishop, board.Warlock),
		"cursed_effigy":     cursedEffigy,
		"eye_for_an_eye":    eyeForAnEye,
	}
	return r
}

// Supports reports whether the resolver knows cardID.
func (r *DefaultResolver) Supports(cardID string) bool {
	_, ok := r.handlers[cardID]
	return ok
}

func (r *DefaultResolver) Resolve(b *board.Board, color board.Color, cardID string, target Target) (string, error) {
	h, ok := r.handlers[cardID]
	if !ok {
		return "", fmt.Errorf("%w: %s", ErrUnknownCard, cardID)
	}
	return h(b, color, cardID, target)
}

func parseTarget(s string) (board.Coordinate, error) {
	if s == "" {
		return board.Coordinate{}, fmt.Errorf("%w: no target square provided", ErrInvalidTarget)
	}
	return board.ParseAlgebraic(s)
}

func forbiddenLands(b *board.Board, color board.Color, _ string, _ Target) (string, error) {
	if !b.Config.ForbiddenActive {
		b.ActivateForbiddenLands()
		return "Forbidden Lands activated: the outer ring is now protected.", nil
	}
	home := color.HomeRank()
	for file := 0; file < board.Size; file++ {
		sq := board.Coord(file, home)
		if b.IsEmpty(sq) {
			b.Place(sq, b.NewPiece(color, board.Pawn))
			return fmt.Sprintf("A pawn has been summoned in the Forbidden Lands at %s.", sq), nil
		}
	}
	return "", fmt.Errorf("%w: back rank is full", ErrNoSpace)
}

func exhaustion(b *board.Board, color board.Color, _ string, _ Target) (string, error) {
	enemy := color.Opposite()
	b.Effects.Add(effects.TypeExhaustion, b.Turn, ExhaustionTurns, effects.ColorTarget(string(enemy)), map[string]string{"color": string(enemy)})
	return fmt.Sprintf("%s pieces are exhausted.", enemy.Name()), nil
}

func mine(b *board.Board, _ board.Color, _ string, target Target) (string, error) {
	sq, err := parseTarget(target.Square)
	if err != nil {
		return "", err
	}
	rules.PlaceMine(b, sq)
	return "Mine placed.", nil
}

func summonPeon(b *board.Board, color board.Color, _ string, target Target) (string, error) {
	sq, err := parseTarget(target.Square)
	if err != nil {
		return "", err
	}
	if !b.IsEmpty(sq) || sq.Rank == color.Opposite().HomeRank() {
		return "", fmt.Errorf("%w: cannot summon on %s", ErrInvalidTarget, sq)
	}
	b.Place(sq, b.NewPiece(color, board.Peon))
	return fmt.Sprintf("Peon summoned at %s.", sq), nil
}

func barricade(b *board.Board, _ board.Color, _ string, target Target) (string, error) {
	sq, err := parseTarget(target.Square)
	if err != nil {
		return "", err
	}
	if !b.IsEmpty(sq) {
		return "", fmt.Errorf("%w: %s is occupied", ErrInvalidTarget, sq)
	}
	b.Place(sq, b.NewPiece(board.NoColor, board.Barricade))
	return fmt.Sprintf("Barricade raised at %s.", sq), nil
}

// transform replaces one of the player's pieces of kind from with a fresh
// piece of kind to on the same square.
func transform(from, to board.Kind) ResolverFunc {
	return func(b *board.Board, color board.Color, _ string, target Target) (string, error) {
		sq, err := parseTarget(target.Square)
		if err != nil {
			return "", err
		}
		old := b.PieceAt(sq)
		if old == nil || old.Color != color || old.Kind != from {
			return "", fmt.Errorf("%w: %s must hold your %s", ErrInvalidTarget, sq, from)
		}
		p := b.NewPiece(color, to)
		p.HasMoved = old.HasMoved
		p.Marked = old.Marked
		b.Place(sq, p)
		return fmt.Sprintf("%s at %s transformed into %s.", from, sq, to), nil
	}
}

func cursedEffigy(b *board.Board, color board.Color, cardID string, target Target) (string, error) {
	sq, err := parseTarget(target.Square)
	if err != nil {
		return "", err
	}
	if !b.IsEmpty(sq) {
		return "", fmt.Errorf("%w: %s is occupied", ErrInvalidTarget, sq)
	}

	var warlock *board.Piece
	if target.Secondary != "" {
		wsq, err := board.ParseAlgebraic(target.Secondary)
		if err != nil {
			return "", err
		}
		warlock = b.PieceAt(wsq)
	} else {
		for _, pl := range b.Pieces(color) {
			if pl.Piece.Kind == board.Warlock {
				warlock = pl.Piece
				break
			}
		}
	}
	if warlock == nil || warlock.Kind != board.Warlock || warlock.Color != color {
		return "", fmt.Errorf("%w: you need a warlock to bind the effigy", ErrInvalidTarget)
	}

	effigy := b.NewPiece(color.Opposite(), board.Effigy)
	effigy.LinkedID = warlock.ID
	effigy.Curse = cardID
	b.Place(sq, effigy)
	return fmt.Sprintf("Effigy placed at %s.", sq), nil
}

func eyeForAnEye(b *board.Board, color board.Color, _ string, target Target) (string, error) {
	own, err := parseTarget(target.Square)
	if err != nil {
		return "", err
	}
	other, err := parseTarget(target.Secondary)
	if err != nil {
		return "", err
	}
	friend, foe := b.PieceAt(own), b.PieceAt(other)
	if friend == nil || friend.Color != color || foe == nil || !b.IsEnemy(other, color) {
		return "", fmt.Errorf("%w: pick one friendly and one enemy piece", ErrInvalidTarget)
	}
	for _, p := range []*board.Piece{friend, foe} {
		p.Marked = true
		b.Effects.Add(effects.TypeMark, b.Turn, rules.MarkTurns, effects.PieceTarget(p.ID), map[string]string{"piece_id": p.ID})
	}
	return "Both pieces are marked.", nil
}
