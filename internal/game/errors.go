package game

import (
	"errors"

	"github.com/arcanechess/arcane-server-go/internal/game/board"
	"github.com/arcanechess/arcane-server-go/internal/game/cards"
)

// Rule violations. Every one of them leaves the match unchanged.
var (
	ErrNotYourTurn            = errors.New("not your turn")
	ErrIllegalMove            = errors.New("illegal move")
	ErrTimeExpired            = errors.New("time expired")
	ErrGameNotFound           = errors.New("game not found")
	ErrGameOver               = errors.New("game is over")
	ErrPlayerNotInGame        = errors.New("player not in game")
	ErrInvalidSquareNotation  = board.ErrInvalidSquareNotation
	ErrUnknownCard            = cards.ErrUnknownCard
	ErrCardNotInHand          = errors.New("card not in hand")
	ErrInvalidPromotionChoice = errors.New("invalid promotion choice")
	ErrNoPendingPromotion     = errors.New("no promotion pending")
	ErrDeckSizeInvalid        = errors.New("deck must contain exactly 16 cards")
	ErrAlreadyQueued          = errors.New("already in matchmaking queue")
	ErrAlreadyInGame          = errors.New("already in an active game")
)

// Outcome converts an action result to the success flag and message sent to
// clients.
func Outcome(err error) (bool, string) {
	if err == nil {
		return true, "ok"
	}
	return false, err.Error()
}
