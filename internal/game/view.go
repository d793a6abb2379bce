package game

import (
	"sort"
	"time"

	"github.com/arcanechess/arcane-server-go/internal/game/board"
	"github.com/arcanechess/arcane-server-go/internal/game/cards"
	"github.com/arcanechess/arcane-server-go/internal/game/effects"
	"github.com/arcanechess/arcane-server-go/internal/game/rules"
)

// HistoryWindow is how many of the latest history entries a view carries.
const HistoryWindow = 10

// PieceView is the transport representation of a piece. Kind-specific fields
// are only set for the kinds they apply to.
type PieceView struct {
	ID       string `json:"id"`
	Type     string `json:"type"`
	Symbol   string `json:"symbol"`
	Color    string `json:"color"`
	Value    int    `json:"value"`
	HasMoved bool   `json:"has_moved"`
	Marked   bool   `json:"marked,omitempty"`

	Unlocked                  *bool  `json:"unlocked,omitempty"`
	Empowered                 *bool  `json:"empowered,omitempty"`
	EmpowermentTurnsRemaining *int   `json:"empowerment_turns_remaining,omitempty"`
	Daylight                  *bool  `json:"daylight,omitempty"`
	Enthralling               string `json:"enthralling,omitempty"`
	EnthrallProgress          *int   `json:"enthrall_progress,omitempty"`
	LinkedID                  string `json:"linked_id,omitempty"`
	Curse                     string `json:"curse,omitempty"`

	LegalMoves    []board.MoveView `json:"legal_moves,omitempty"`
	LegalCaptures []board.MoveView `json:"legal_captures,omitempty"`
}

// HistoryView is the transport representation of a history record.
type HistoryView struct {
	Ply       int             `json:"ply"`
	Color     string          `json:"color"`
	Move      *board.MoveView `json:"move,omitempty"`
	CardID    string          `json:"card_id,omitempty"`
	Captured  string          `json:"captured,omitempty"`
	Enthrall  string          `json:"enthrall,omitempty"`
	Timestamp time.Time       `json:"timestamp"`
}

// PromotionView describes a promotion awaiting the owner's choice.
type PromotionView struct {
	Color  string `json:"color"`
	Square string `json:"square"`
}

// GameView is the serializable view of a match. The perspective fields are
// filled only when the view is built for one of the players.
type GameView struct {
	GameID           string               `json:"game_id"`
	Status           string               `json:"status"`
	CurrentTurn      string               `json:"current_turn"`
	Board            map[string]PieceView `json:"board"`
	WhiteTime        float64              `json:"white_time"`
	BlackTime        float64              `json:"black_time"`
	HalfmoveClock    int                  `json:"halfmove_clock"`
	FullmoveNumber   int                  `json:"fullmove_number"`
	MoveHistory      []HistoryView        `json:"move_history"`
	Winner           string               `json:"winner,omitempty"`
	WinReason        string               `json:"win_reason,omitempty"`
	CreatedAt        time.Time            `json:"created_at"`
	LastUpdate       time.Time            `json:"last_update"`
	Effects          []effects.View       `json:"effects"`
	GreenTiles       []string             `json:"green_tiles"`
	ForbiddenActive  bool                 `json:"forbidden_active"`
	PendingPromotion *PromotionView       `json:"pending_promotion,omitempty"`
	Players          []PlayerView         `json:"players"`

	YourColor        string       `json:"your_color,omitempty"`
	YourTurn         *bool        `json:"your_turn,omitempty"`
	YourHand         []cards.Card `json:"your_hand,omitempty"`
	YourDeckSize     *int         `json:"your_deck_size,omitempty"`
	OpponentHandSize *int         `json:"opponent_hand_size,omitempty"`
	OpponentDeckSize *int         `json:"opponent_deck_size,omitempty"`
}

// View builds the view of the match for playerID, or a neutral view when
// playerID is empty or not in the match. withMoves adds each piece's legal
// moves and captures.
func (g *GameState) View(playerID string, withMoves bool) GameView {
	g.mu.Lock()
	defer g.mu.Unlock()

	b := g.board
	v := GameView{
		GameID:          g.id,
		Status:          string(g.status),
		CurrentTurn:     string(g.turn),
		Board:           make(map[string]PieceView, b.Count()),
		WhiteTime:       g.remaining[board.White].Seconds(),
		BlackTime:       g.remaining[board.Black].Seconds(),
		HalfmoveClock:   g.halfmove,
		FullmoveNumber:  g.fullmove,
		WinReason:       g.winReason,
		CreatedAt:       g.createdAt,
		LastUpdate:      g.updatedAt,
		Effects:         b.Effects.Views(b.Turn),
		ForbiddenActive: b.Config.ForbiddenActive,
		GreenTiles:      make([]string, 0, len(b.Config.GreenTiles)),
	}
	if g.winner != board.NoColor {
		v.Winner = string(g.winner)
	}

	for _, pl := range b.All() {
		pv := pieceView(b, pl.Piece)
		if withMoves && g.status.Live() && pl.Piece.Color == g.turn {
			pv.LegalMoves = moveViews(rules.Legal(b, pl.At))
			pv.LegalCaptures = moveViews(rules.LegalCaptures(b, pl.At))
		}
		v.Board[pl.At.Algebraic()] = pv
	}
	for sq, on := range b.Config.GreenTiles {
		if on {
			v.GreenTiles = append(v.GreenTiles, sq.Algebraic())
		}
	}
	sort.Strings(v.GreenTiles)

	start := 0
	if len(g.history) > HistoryWindow {
		start = len(g.history) - HistoryWindow
	}
	v.MoveHistory = make([]HistoryView, 0, len(g.history)-start)
	for _, rec := range g.history[start:] {
		v.MoveHistory = append(v.MoveHistory, historyView(rec))
	}

	if g.pending != nil {
		v.PendingPromotion = &PromotionView{Color: string(g.pending.color), Square: g.pending.at.Algebraic()}
	}
	for _, color := range []board.Color{board.White, board.Black} {
		v.Players = append(v.Players, g.players[color].view())
	}

	if color, ok := g.PlayerColor(playerID); ok {
		me, opp := g.players[color], g.players[color.Opposite()]
		yourTurn := g.turn == color
		deck, oppHand, oppDeck := me.Deck.Size(), opp.Hand.Len(), opp.Deck.Size()
		v.YourColor = string(color)
		v.YourTurn = &yourTurn
		v.YourHand = me.Hand.Cards()
		v.YourDeckSize = &deck
		v.OpponentHandSize = &oppHand
		v.OpponentDeckSize = &oppDeck
	}
	return v
}

func pieceView(b *board.Board, p *board.Piece) PieceView {
	pv := PieceView{
		ID:       p.ID,
		Type:     p.Kind.String(),
		Symbol:   p.Kind.Symbol(),
		Color:    string(p.Color),
		Value:    p.Value,
		HasMoved: p.HasMoved,
		Marked:   p.Marked,
	}
	switch p.Kind {
	case board.Peon:
		pv.Unlocked = boolPtr(p.Unlocked)
	case board.Warlock:
		pv.Empowered = boolPtr(p.Empowered)
		if p.Empowered {
			remaining := 0
			for _, e := range b.Effects.ByTarget(effects.PieceTarget(p.ID)) {
				if e.Type == effects.TypeEmpowerment {
					remaining = e.TurnsRemaining(b.Turn)
				}
			}
			pv.EmpowermentTurnsRemaining = &remaining
		}
	case board.DarkLord:
		pv.Daylight = boolPtr(p.Daylight)
		pv.Enthralling = p.EnthrallTarget
		if p.EnthrallTarget != "" {
			progress := p.EnthrallProgress
			pv.EnthrallProgress = &progress
		}
	case board.Effigy:
		pv.LinkedID = p.LinkedID
		pv.Curse = p.Curse
	}
	return pv
}

func historyView(rec Record) HistoryView {
	hv := HistoryView{
		Ply:       rec.Ply,
		Color:     string(rec.Color),
		CardID:    rec.CardID,
		Captured:  rec.Captured,
		Enthrall:  rec.Enthrall,
		Timestamp: rec.Timestamp,
	}
	if rec.Move != nil {
		mv := rec.Move.View()
		hv.Move = &mv
	}
	return hv
}

func moveViews(moves []board.Move) []board.MoveView {
	if len(moves) == 0 {
		return nil
	}
	out := make([]board.MoveView, len(moves))
	for i, m := range moves {
		out[i] = m.View()
	}
	return out
}

func boolPtr(v bool) *bool {
	return &v
}
