package game

import (
	"encoding/json"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/arcanechess/arcane-server-go/internal/game/board"
	"github.com/arcanechess/arcane-server-go/internal/game/cards"
	"github.com/arcanechess/arcane-server-go/internal/game/effects"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2026, 1, 1, 10, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

var testDeck = []string{
	"exhaustion", "mine", "barricade", "summon_peon",
	"forbidden_lands", "pawn_scout", "knight_headhunter", "bishop_warlock",
	"cursed_effigy", "eye_for_an_eye", "time_warp", "time_warp",
	"time_warp", "time_warp", "time_warp", "time_warp",
}

func testPlayers(t *testing.T) (*Player, *Player) {
	t.Helper()
	catalog := cards.DefaultCatalog()
	whiteDeck, err := catalog.BuildDeck(testDeck)
	require.NoError(t, err)
	blackDeck, err := catalog.BuildDeck(testDeck)
	require.NoError(t, err)
	return NewPlayer("alice", "Alice", whiteDeck), NewPlayer("bob", "Bob", blackDeck)
}

func newTestGame(t *testing.T, clock *fakeClock, opts ...Option) *GameState {
	t.Helper()
	white, black := testPlayers(t)
	base := []Option{WithClock(clock.Now), WithLogger(zaptest.NewLogger(t))}
	return NewGameState("game-1", white, black, append(base, opts...)...)
}

func move(from, to string) board.Move {
	return board.Move{From: board.MustParse(from), To: board.MustParse(to)}
}

func put(b *board.Board, sq string, color board.Color, kind board.Kind) *board.Piece {
	p := b.NewPiece(color, kind)
	b.Place(board.MustParse(sq), p)
	return p
}

func TestNewGameStateDealsOpeningHands(t *testing.T) {
	g := newTestGame(t, newFakeClock())

	assert.Equal(t, StatusInProgress, g.Status())
	assert.Equal(t, board.White, g.Turn())
	white := g.Player(board.White)
	assert.Equal(t, board.White, white.Color)
	assert.Equal(t, DefaultOpeningHand, white.Hand.Len())
	assert.Equal(t, cards.DeckSize-DefaultOpeningHand, white.Deck.Size())
	assert.True(t, white.Hand.Has("exhaustion"))

	half, full := g.Counters()
	assert.Equal(t, 0, half)
	assert.Equal(t, 1, full)
}

func TestApplyMoveTurnOrder(t *testing.T) {
	g := newTestGame(t, newFakeClock())

	require.NoError(t, g.ApplyMove("alice", move("e2", "e4")))
	assert.Equal(t, board.Black, g.Turn())

	assert.ErrorIs(t, g.ApplyMove("alice", move("d2", "d4")), ErrNotYourTurn)
	assert.ErrorIs(t, g.ApplyMove("mallory", move("e7", "e5")), ErrPlayerNotInGame)

	require.NoError(t, g.ApplyMove("bob", move("e7", "e5")))
	half, full := g.Counters()
	assert.Equal(t, 0, half)
	assert.Equal(t, 2, full)
	assert.Len(t, g.History(), 2)
}

func TestApplyMoveRejectsIllegalMoves(t *testing.T) {
	g := newTestGame(t, newFakeClock())
	before, err := g.Checksum()
	require.NoError(t, err)

	assert.ErrorIs(t, g.ApplyMove("alice", move("e2", "e5")), ErrIllegalMove)
	assert.ErrorIs(t, g.ApplyMove("alice", move("e7", "e5")), ErrIllegalMove)
	assert.ErrorIs(t, g.ApplyMove("alice", move("e4", "e5")), ErrIllegalMove)
	assert.ErrorIs(t, g.ApplyMove("alice", board.Move{From: board.Coord(9, 9), To: board.Coord(0, 0)}), ErrIllegalMove)

	after, err := g.Checksum()
	require.NoError(t, err)
	assert.Equal(t, before, after)
	assert.Equal(t, board.White, g.Turn())
}

func TestHalfmoveClock(t *testing.T) {
	g := newTestGame(t, newFakeClock())

	require.NoError(t, g.ApplyMove("alice", move("g1", "f3")))
	require.NoError(t, g.ApplyMove("bob", move("g8", "f6")))
	half, _ := g.Counters()
	assert.Equal(t, 2, half)

	require.NoError(t, g.ApplyMove("alice", move("e2", "e4")))
	half, _ = g.Counters()
	assert.Equal(t, 0, half)
}

func TestFoolsMate(t *testing.T) {
	g := newTestGame(t, newFakeClock())

	require.NoError(t, g.ApplyMove("alice", move("f2", "f3")))
	require.NoError(t, g.ApplyMove("bob", move("e7", "e5")))
	require.NoError(t, g.ApplyMove("alice", move("g2", "g4")))
	require.NoError(t, g.ApplyMove("bob", move("d8", "h4")))

	assert.Equal(t, StatusCheckmate, g.Status())
	winner, reason := g.Result()
	assert.Equal(t, board.Black, winner)
	assert.Equal(t, "Checkmate", reason)

	assert.ErrorIs(t, g.ApplyMove("alice", move("a2", "a3")), ErrGameOver)
}

func TestCheckStatus(t *testing.T) {
	b := board.New()
	put(b, "e1", board.White, board.King)
	put(b, "e8", board.Black, board.King)
	put(b, "a2", board.White, board.Rook)
	put(b, "h7", board.Black, board.Pawn)
	g := newTestGame(t, newFakeClock(), WithBoard(b))

	require.NoError(t, g.ApplyMove("alice", move("a2", "a8")))
	assert.Equal(t, StatusCheck, g.Status())
	assert.True(t, g.Status().Live())

	require.NoError(t, g.ApplyMove("bob", move("e8", "e7")))
	assert.Equal(t, StatusInProgress, g.Status())
}

func TestStalemate(t *testing.T) {
	b := board.New()
	put(b, "f7", board.White, board.King)
	put(b, "g5", board.White, board.Queen)
	put(b, "h8", board.Black, board.King)
	g := newTestGame(t, newFakeClock(), WithBoard(b))

	require.NoError(t, g.ApplyMove("alice", move("g5", "g6")))
	assert.Equal(t, StatusStalemate, g.Status())
	winner, _ := g.Result()
	assert.Equal(t, board.NoColor, winner)
}

func TestInsufficientMaterial(t *testing.T) {
	b := board.New()
	put(b, "e1", board.White, board.King)
	put(b, "e2", board.Black, board.Pawn)
	put(b, "e8", board.Black, board.King)
	put(b, "a5", board.NoColor, board.Barricade)
	g := newTestGame(t, newFakeClock(), WithBoard(b))

	require.NoError(t, g.ApplyMove("alice", move("e1", "e2")))
	assert.Equal(t, StatusDraw, g.Status())
	_, reason := g.Result()
	assert.Equal(t, "Insufficient material", reason)
}

func TestFiftyMoveRule(t *testing.T) {
	g := newTestGame(t, newFakeClock())
	g.halfmove = FiftyMoveLimit - 1

	require.NoError(t, g.ApplyMove("alice", move("g1", "f3")))
	assert.Equal(t, StatusDraw, g.Status())
	_, reason := g.Result()
	assert.Equal(t, "Fifty-move rule", reason)
}

func TestDestroyedKingEndsGame(t *testing.T) {
	g := newTestGame(t, newFakeClock())
	g.board.Remove(board.MustParse("e8"))

	require.NoError(t, g.ApplyMove("alice", move("e2", "e4")))
	assert.Equal(t, StatusCheckmate, g.Status())
	winner, _ := g.Result()
	assert.Equal(t, board.White, winner)
}

func TestDefaultPromotionCanBeChanged(t *testing.T) {
	b := board.New()
	put(b, "e1", board.White, board.King)
	put(b, "e8", board.Black, board.King)
	put(b, "a7", board.White, board.Pawn)
	put(b, "h7", board.Black, board.Pawn)
	g := newTestGame(t, newFakeClock(), WithBoard(b))

	require.NoError(t, g.ApplyMove("alice", move("a7", "a8")))
	assert.Equal(t, board.Queen, g.board.PieceAt(board.MustParse("a8")).Kind)
	assert.Equal(t, StatusCheck, g.Status())

	assert.ErrorIs(t, g.HandlePromotion("alice", board.King), ErrInvalidPromotionChoice)
	assert.ErrorIs(t, g.HandlePromotion("bob", board.Knight), ErrNoPendingPromotion)

	require.NoError(t, g.HandlePromotion("alice", board.Knight))
	assert.Equal(t, board.Knight, g.board.PieceAt(board.MustParse("a8")).Kind)
	assert.Equal(t, StatusInProgress, g.Status())
	assert.Equal(t, board.Black, g.Turn())

	assert.ErrorIs(t, g.HandlePromotion("alice", board.Rook), ErrNoPendingPromotion)
}

func TestExplicitPromotion(t *testing.T) {
	b := board.New()
	put(b, "e1", board.White, board.King)
	put(b, "e8", board.Black, board.King)
	put(b, "a7", board.White, board.Pawn)
	put(b, "h7", board.Black, board.Pawn)
	g := newTestGame(t, newFakeClock(), WithBoard(b))

	m := move("a7", "a8")
	m.Promotion = board.Rook
	require.NoError(t, g.ApplyMove("alice", m))
	assert.Equal(t, board.Rook, g.board.PieceAt(board.MustParse("a8")).Kind)
	assert.ErrorIs(t, g.HandlePromotion("alice", board.Queen), ErrNoPendingPromotion)
}

func TestPlayCard(t *testing.T) {
	g := newTestGame(t, newFakeClock())

	msg, err := g.PlayCard("alice", "exhaustion", cards.Target{})
	require.NoError(t, err)
	assert.NotEmpty(t, msg)

	white := g.Player(board.White)
	assert.False(t, white.Hand.Has("exhaustion"))
	assert.Equal(t, DefaultOpeningHand, white.Hand.Len())
	assert.Equal(t, 1, white.Discard.Size())
	assert.True(t, g.board.Effects.Has(effects.TypeExhaustion, effects.ColorTarget("B")))
	assert.Equal(t, board.Black, g.Turn())
	half, _ := g.Counters()
	assert.Equal(t, 1, half)

	_, err = g.PlayCard("bob", "eye_for_an_eye", cards.Target{})
	assert.ErrorIs(t, err, ErrCardNotInHand)

	_, err = g.PlayCard("bob", "mine", cards.Target{Square: "z9"})
	assert.Error(t, err)
	assert.True(t, g.Player(board.Black).Hand.Has("mine"))
	assert.Equal(t, board.Black, g.Turn())
}

func TestPlayCardNotYourTurn(t *testing.T) {
	g := newTestGame(t, newFakeClock())
	_, err := g.PlayCard("bob", "mine", cards.Target{Square: "e5"})
	assert.ErrorIs(t, err, ErrNotYourTurn)
}

func TestClockDebitsSideToMove(t *testing.T) {
	clock := newFakeClock()
	g := newTestGame(t, clock)

	clock.Advance(3 * time.Second)
	require.NoError(t, g.ApplyMove("alice", move("e2", "e4")))
	assert.Equal(t, DefaultInitialTime-3*time.Second, g.TimeRemaining(board.White))

	clock.Advance(2 * time.Second)
	assert.False(t, g.UpdateTimer())
	assert.Equal(t, DefaultInitialTime-2*time.Second, g.TimeRemaining(board.Black))
	assert.Equal(t, DefaultInitialTime-3*time.Second, g.TimeRemaining(board.White))
}

func TestTimeout(t *testing.T) {
	clock := newFakeClock()
	g := newTestGame(t, clock, WithInitialTime(10*time.Second))

	clock.Advance(4 * time.Second)
	assert.False(t, g.UpdateTimer())
	assert.Equal(t, 6*time.Second, g.TimeRemaining(board.White))

	clock.Advance(7 * time.Second)
	assert.True(t, g.UpdateTimer())
	assert.False(t, g.UpdateTimer())
	assert.Equal(t, StatusTimeout, g.Status())

	winner, reason := g.Result()
	assert.Equal(t, board.Black, winner)
	assert.Equal(t, "White ran out of time", reason)
	assert.ErrorIs(t, g.ApplyMove("alice", move("e2", "e4")), ErrTimeExpired)
}

func TestMoveAfterFlagFallIsRejected(t *testing.T) {
	clock := newFakeClock()
	g := newTestGame(t, clock, WithInitialTime(5*time.Second))

	clock.Advance(6 * time.Second)
	assert.ErrorIs(t, g.ApplyMove("alice", move("e2", "e4")), ErrTimeExpired)
	assert.Equal(t, StatusTimeout, g.Status())
	assert.Nil(t, g.board.PieceAt(board.MustParse("e4")))
	assert.True(t, g.UpdateTimer(), "a flag fall found by a move is still reported once")
	assert.False(t, g.UpdateTimer())
}

func TestResignForfeitAndEnd(t *testing.T) {
	g := newTestGame(t, newFakeClock())
	require.NoError(t, g.Resign("bob"))
	assert.Equal(t, StatusResigned, g.Status())
	winner, reason := g.Result()
	assert.Equal(t, board.White, winner)
	assert.Equal(t, "Black resigned", reason)
	assert.ErrorIs(t, g.Resign("alice"), ErrGameOver)

	g = newTestGame(t, newFakeClock())
	require.NoError(t, g.ApplyMove("alice", move("e2", "e4")))
	g.Forfeit(board.White, "disconnected")
	assert.Equal(t, StatusForfeit, g.Status())
	winner, _ = g.Result()
	assert.Equal(t, board.Black, winner)

	g = newTestGame(t, newFakeClock())
	g.End("Game manually ended")
	assert.Equal(t, StatusForfeit, g.Status())
	winner, reason = g.Result()
	assert.Equal(t, board.NoColor, winner)
	assert.Equal(t, "Game manually ended", reason)

	g.End("again")
	_, reason = g.Result()
	assert.Equal(t, "Game manually ended", reason)
}

func TestStartEnthrallingCostsTurn(t *testing.T) {
	b := board.New()
	put(b, "e1", board.White, board.King)
	put(b, "e8", board.Black, board.King)
	put(b, "d4", board.White, board.DarkLord)
	put(b, "a7", board.Black, board.Rook)
	put(b, "h8", board.Black, board.Queen)
	put(b, "a1", board.White, board.Rook)
	victim := put(b, "d5", board.Black, board.Knight)
	g := newTestGame(t, newFakeClock(), WithBoard(b))

	require.NoError(t, g.StartEnthralling("alice", board.MustParse("d4"), board.MustParse("d5")))
	assert.Equal(t, board.Black, g.Turn())
	assert.Equal(t, victim.ID, g.board.PieceAt(board.MustParse("d4")).EnthrallTarget)

	assert.ErrorIs(t, g.StartEnthralling("bob", board.MustParse("d4"), board.MustParse("d5")), ErrIllegalMove)
}

func TestViewPerspective(t *testing.T) {
	g := newTestGame(t, newFakeClock())

	v := g.View("alice", true)
	assert.Equal(t, "game-1", v.GameID)
	assert.Equal(t, "IN_PROGRESS", v.Status)
	assert.Equal(t, "W", v.YourColor)
	require.NotNil(t, v.YourTurn)
	assert.True(t, *v.YourTurn)
	assert.Len(t, v.YourHand, DefaultOpeningHand)
	require.NotNil(t, v.OpponentHandSize)
	assert.Equal(t, DefaultOpeningHand, *v.OpponentHandSize)
	assert.Len(t, v.Board, 32)
	assert.Len(t, v.Board["e2"].LegalMoves, 2)
	assert.Empty(t, v.Board["e7"].LegalMoves)
	assert.Equal(t, float64(900), v.WhiteTime)

	neutral := g.View("", false)
	assert.Empty(t, neutral.YourColor)
	assert.Nil(t, neutral.YourHand)
	assert.Empty(t, neutral.Board["e2"].LegalMoves)

	data, err := json.Marshal(v)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"game_id":"game-1"`)
}

func TestViewHistoryWindow(t *testing.T) {
	g := newTestGame(t, newFakeClock())
	shuffle := [][2]string{{"g1", "f3"}, {"g8", "f6"}, {"f3", "g1"}, {"f6", "g8"}}
	for i := 0; i < 3; i++ {
		for j, mv := range shuffle {
			player := "alice"
			if j%2 == 1 {
				player = "bob"
			}
			require.NoError(t, g.ApplyMove(player, move(mv[0], mv[1])))
		}
	}

	v := g.View("", false)
	assert.Len(t, g.History(), 12)
	require.Len(t, v.MoveHistory, HistoryWindow)
	assert.Equal(t, 3, v.MoveHistory[0].Ply)
	assert.Equal(t, 12, v.HalfmoveClock)
}

func TestPieceViewFields(t *testing.T) {
	b := board.New()
	put(b, "e1", board.White, board.King)
	put(b, "e8", board.Black, board.King)
	put(b, "d4", board.White, board.DarkLord)
	put(b, "c3", board.White, board.Peon)
	g := newTestGame(t, newFakeClock(), WithBoard(b))

	v := g.View("", false)
	dl := v.Board["d4"]
	require.NotNil(t, dl.Daylight)
	assert.False(t, *dl.Daylight)
	assert.Nil(t, dl.Unlocked)
	peon := v.Board["c3"]
	require.NotNil(t, peon.Unlocked)
	assert.Equal(t, "E", peon.Symbol)
}

func TestDaylightSplitsEvenlyForWhite(t *testing.T) {
	b := board.New()
	put(b, "e1", board.White, board.King)
	put(b, "b1", board.White, board.Knight)
	dl := put(b, "d1", board.White, board.DarkLord)
	put(b, "e8", board.Black, board.King)
	put(b, "g8", board.Black, board.Knight)
	put(b, "a8", board.Black, board.Queen)
	put(b, "h8", board.Black, board.Rook)
	g := newTestGame(t, newFakeClock(), WithBoard(b))

	white := [][2]string{{"b1", "c3"}, {"c3", "b1"}}
	black := [][2]string{{"g8", "f6"}, {"f6", "g8"}}
	lit := make([]bool, 0, 8)
	for i := 0; i < 8; i++ {
		lit = append(lit, dl.Daylight)
		require.NoError(t, g.ApplyMove("alice", move(white[i%2][0], white[i%2][1])))
		assert.Equal(t, lit[i], dl.Daylight, "daylight changed mid-turn at fullmove %d", i+1)
		require.NoError(t, g.ApplyMove("bob", move(black[i%2][0], black[i%2][1])))
	}
	assert.Equal(t, []bool{false, true, true, false, false, true, true, false}, lit)
	_, fullmove := g.Counters()
	assert.Equal(t, 9, fullmove)
}

func TestForbiddenCaptureMatchesLegalMoves(t *testing.T) {
	b := board.New()
	b.ActivateForbiddenLands()
	put(b, "a1", board.White, board.King)
	put(b, "d4", board.White, board.Rook)
	put(b, "d8", board.Black, board.Knight)
	put(b, "g4", board.Black, board.Pawn)
	put(b, "h6", board.Black, board.King)
	g := newTestGame(t, newFakeClock(), WithBoard(b))

	offered := g.LegalMovesFor(board.MustParse("d4"))
	for _, m := range offered {
		assert.NotEqual(t, "d8", m.To.Algebraic())
	}
	assert.ErrorIs(t, g.ApplyMove("alice", move("d4", "d8")), ErrIllegalMove)

	require.True(t, board.ContainsMove(offered, move("d4", "g4")))
	require.NoError(t, g.ApplyMove("alice", move("d4", "g4")))
	assert.Equal(t, board.Black, g.Turn())
}

func TestEdgeKingCanBeCheckedUnderForbiddenLands(t *testing.T) {
	b := board.New()
	b.ActivateForbiddenLands()
	put(b, "e1", board.White, board.King)
	put(b, "d4", board.White, board.Rook)
	put(b, "h8", board.Black, board.King)
	put(b, "a7", board.Black, board.Pawn)
	g := newTestGame(t, newFakeClock(), WithBoard(b))

	require.NoError(t, g.ApplyMove("alice", move("d4", "d8")))
	assert.Equal(t, StatusCheck, g.Status())
}

func TestMineUnderKingSparesIt(t *testing.T) {
	g := newTestGame(t, newFakeClock())
	_, err := g.PlayCard("alice", "mine", cards.Target{Square: "e8"})
	require.NoError(t, err)

	white := [][2]string{{"g1", "f3"}, {"f3", "g1"}}
	black := [][2]string{{"b8", "c6"}, {"c6", "b8"}}
	require.NoError(t, g.ApplyMove("bob", move(black[0][0], black[0][1])))
	for i := 1; i <= 4; i++ {
		require.NoError(t, g.ApplyMove("alice", move(white[(i-1)%2][0], white[(i-1)%2][1])))
		if i < 4 {
			require.NoError(t, g.ApplyMove("bob", move(black[i%2][0], black[i%2][1])))
		}
	}

	king := g.board.PieceAt(board.MustParse("e8"))
	require.NotNil(t, king)
	assert.Equal(t, board.King, king.Kind)
	for _, sq := range []string{"d8", "f8", "d7", "e7", "f7"} {
		assert.Nil(t, g.board.PieceAt(board.MustParse(sq)), sq)
	}
	assert.True(t, g.Status().Live())
	assert.Empty(t, g.board.Effects.ByType(effects.TypeMine))
}

func TestLandingOnMineDetonatesIt(t *testing.T) {
	bus := NewEventBus()
	var blasts []string
	bus.SubscribeTyped(EventPieceCaptured, func(e Event) {
		if e.Detail == "mine" {
			blasts = append(blasts, e.PieceID)
		}
	})
	g := newTestGame(t, newFakeClock(), WithEventBus(bus))
	_, err := g.PlayCard("alice", "mine", cards.Target{Square: "c6"})
	require.NoError(t, err)

	require.NoError(t, g.ApplyMove("bob", move("b8", "c6")))
	for _, sq := range []string{"c6", "b7", "c7", "d7"} {
		assert.Nil(t, g.board.PieceAt(board.MustParse(sq)), sq)
	}
	assert.NotNil(t, g.board.PieceAt(board.MustParse("a7")))
	assert.NotNil(t, g.board.PieceAt(board.MustParse("e8")))
	assert.Len(t, blasts, 4)
	assert.Empty(t, g.board.Effects.ByType(effects.TypeMine))
	assert.Equal(t, board.White, g.Turn())
	half, _ := g.Counters()
	assert.Zero(t, half)
}
