package game

import (
	"fmt"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/arcanechess/arcane-server-go/internal/game/board"
	"github.com/arcanechess/arcane-server-go/internal/game/cards"
	"github.com/arcanechess/arcane-server-go/internal/game/rules"
)

// Defaults for a new match.
const (
	DefaultInitialTime = 15 * time.Minute
	DefaultOpeningHand = 4
	// FiftyMoveLimit is the halfmove count at which the match is drawn.
	FiftyMoveLimit = 100
)

// Record is one entry of the append-only match history: a move, a card play
// or an enthrallment.
type Record struct {
	Ply       int
	Color     board.Color
	Move      *board.Move
	CardID    string
	Captured  string
	Enthrall  string
	Timestamp time.Time
}

// GreenTileHook runs when a piece leaves a green tile. It is called with the
// match lock held and must not call back into the match.
type GreenTileHook func(b *board.Board, at board.Coordinate, p *board.Piece)

type pendingPromotion struct {
	color   board.Color
	at      board.Coordinate
	pieceID string
}

// GameState is a single match. All methods are safe for concurrent use; every
// mutation happens under the match's own lock so the timer loop and player
// actions never race.
type GameState struct {
	mu     sync.Mutex
	logger *zap.Logger

	id       string
	board    *board.Board
	players  map[board.Color]*Player
	turn     board.Color
	halfmove int
	fullmove int
	history  []Record

	status    Status
	winner    board.Color
	winReason string

	remaining map[board.Color]time.Duration
	lastTick  time.Time
	createdAt time.Time
	updatedAt time.Time

	// flagReported is set once UpdateTimer has reported the timeout.
	flagReported bool

	now         func() time.Time
	resolver    cards.Resolver
	openingHand int
	onGreenTile GreenTileHook
	pending     *pendingPromotion
	events      *EventBus
}

// Option configures a GameState.
type Option func(*GameState)

// WithClock replaces the wall clock, mainly for tests.
func WithClock(now func() time.Time) Option {
	return func(g *GameState) { g.now = now }
}

// WithInitialTime sets each side's clock.
func WithInitialTime(d time.Duration) Option {
	return func(g *GameState) {
		g.remaining[board.White] = d
		g.remaining[board.Black] = d
	}
}

// WithResolver sets the card effect resolver.
func WithResolver(r cards.Resolver) Option {
	return func(g *GameState) { g.resolver = r }
}

// WithLogger sets the match logger.
func WithLogger(logger *zap.Logger) Option {
	return func(g *GameState) { g.logger = logger }
}

// WithOpeningHand sets how many cards each player draws at the start.
func WithOpeningHand(n int) Option {
	return func(g *GameState) { g.openingHand = n }
}

// WithGreenTileHook installs the callback for pieces leaving green tiles.
func WithGreenTileHook(h GreenTileHook) Option {
	return func(g *GameState) { g.onGreenTile = h }
}

// WithEventBus publishes the match's events on bus.
func WithEventBus(bus *EventBus) Option {
	return func(g *GameState) { g.events = bus }
}

// WithBoard starts the match from a custom position.
func WithBoard(b *board.Board) Option {
	return func(g *GameState) { g.board = b }
}

// NewGameState creates a match in progress with white to move.
func NewGameState(id string, white, black *Player, opts ...Option) *GameState {
	g := &GameState{
		logger:      zap.NewNop(),
		id:          id,
		players:     map[board.Color]*Player{board.White: white, board.Black: black},
		turn:        board.White,
		fullmove:    1,
		history:     make([]Record, 0, 64),
		status:      StatusInProgress,
		remaining:   map[board.Color]time.Duration{board.White: DefaultInitialTime, board.Black: DefaultInitialTime},
		now:         time.Now,
		resolver:    cards.NewDefaultResolver(),
		openingHand: DefaultOpeningHand,
	}
	for _, opt := range opts {
		opt(g)
	}
	if g.logger == nil {
		g.logger = zap.NewNop()
	}
	if g.board == nil {
		g.board = board.NewStandard()
	}
	g.board.Turn = g.fullmove
	rules.InstallHandlers(g.board)

	white.Color = board.White
	black.Color = board.Black
	for _, p := range []*Player{white, black} {
		for i := 0; i < g.openingHand; i++ {
			if !p.DrawCard() {
				break
			}
		}
	}

	now := g.now()
	g.createdAt, g.updatedAt, g.lastTick = now, now, now
	return g
}

func (g *GameState) ID() string {
	return g.id
}

func (g *GameState) Status() Status {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.status
}

// Result returns the winner (NoColor for none) and the reason the match ended.
func (g *GameState) Result() (board.Color, string) {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.winner, g.winReason
}

func (g *GameState) Turn() board.Color {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.turn
}

// Counters returns the halfmove clock and fullmove number.
func (g *GameState) Counters() (halfmove, fullmove int) {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.halfmove, g.fullmove
}

// TimeRemaining returns the clock of color.
func (g *GameState) TimeRemaining(color board.Color) time.Duration {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.remaining[color]
}

// Player returns the player of color.
func (g *GameState) Player(color board.Color) *Player {
	return g.players[color]
}

// PlayerColor returns the color playerID plays.
func (g *GameState) PlayerColor(playerID string) (board.Color, bool) {
	for color, p := range g.players {
		if p.ID == playerID {
			return color, true
		}
	}
	return board.NoColor, false
}

// HasPlayer reports whether playerID takes part in the match.
func (g *GameState) HasPlayer(playerID string) bool {
	_, ok := g.PlayerColor(playerID)
	return ok
}

// History returns a copy of the match history.
func (g *GameState) History() []Record {
	g.mu.Lock()
	defer g.mu.Unlock()
	return append([]Record(nil), g.history...)
}

// CreatedAt returns when the match started.
func (g *GameState) CreatedAt() time.Time {
	return g.createdAt
}

// LegalMovesFor returns the legal moves of the piece on c.
func (g *GameState) LegalMovesFor(c board.Coordinate) []board.Move {
	g.mu.Lock()
	defer g.mu.Unlock()
	if !c.InBounds() {
		return nil
	}
	return rules.Legal(g.board, c)
}

// beginAction runs the checks shared by every turn-consuming action and
// charges the mover's clock.
func (g *GameState) beginAction(playerID string) (board.Color, error) {
	if g.status.Terminal() {
		if g.status == StatusTimeout {
			return board.NoColor, ErrTimeExpired
		}
		return board.NoColor, ErrGameOver
	}
	color, ok := g.PlayerColor(playerID)
	if !ok {
		return board.NoColor, ErrPlayerNotInGame
	}
	if color != g.turn {
		return board.NoColor, ErrNotYourTurn
	}
	if g.tick() {
		return board.NoColor, ErrTimeExpired
	}
	return color, nil
}

// clearPending drops an unanswered promotion choice once its owner acts again.
func (g *GameState) clearPending(color board.Color) {
	if g.pending != nil && g.pending.color == color {
		g.pending = nil
	}
}

// ApplyMove validates m against the freshly generated legal moves and plays it.
// A move without a promotion choice that reaches the far rank promotes to a
// queen; the owner may change the choice with HandlePromotion before their
// next action.
func (g *GameState) ApplyMove(playerID string, m board.Move) error {
	g.mu.Lock()
	defer g.mu.Unlock()

	color, err := g.beginAction(playerID)
	if err != nil {
		return err
	}
	if !m.From.InBounds() || !m.To.InBounds() {
		return fmt.Errorf("%w: square off the board", ErrIllegalMove)
	}
	mover := g.board.PieceAt(m.From)
	if mover == nil {
		return fmt.Errorf("%w: no piece at %s", ErrIllegalMove, m.From)
	}
	if mover.Color != color {
		return fmt.Errorf("%w: piece at %s is not yours", ErrIllegalMove, m.From)
	}
	if m.Promotion != board.NoKind && !validPromotion(m.Promotion) {
		return ErrInvalidPromotionChoice
	}

	candidate, ok := matchMove(rules.Legal(g.board, m.From), m)
	if !ok {
		return fmt.Errorf("%w: %s", ErrIllegalMove, m)
	}
	chosen := candidate
	if candidate.Promotion != board.NoKind && m.Promotion != board.NoKind {
		chosen.Promotion = m.Promotion
	}

	g.clearPending(color)
	pawnMove := mover.Kind == board.Pawn
	out, err := g.board.Apply(chosen)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrIllegalMove, err)
	}
	blasted := rules.Resolve(g.board, out)

	rec := Record{Ply: len(g.history) + 1, Color: color, Move: &chosen, Timestamp: g.now()}
	g.publish(Event{Type: EventMoveMade, PlayerID: playerID, PieceID: out.Moved.ID, Square: chosen.To.Algebraic(), Detail: chosen.String()})
	if out.Captured != nil {
		g.players[color].Captured = append(g.players[color].Captured, out.Captured)
		rec.Captured = out.Captured.ID
		g.publish(Event{Type: EventPieceCaptured, PlayerID: playerID, PieceID: out.Captured.ID, Square: out.CapturedAt.Algebraic()})
	}
	for _, p := range blasted {
		g.publish(Event{Type: EventPieceCaptured, PieceID: p.ID, Square: chosen.To.Algebraic(), Detail: "mine"})
	}
	if len(blasted) > 0 {
		g.logger.Info("mine detonated",
			zap.String("game_id", g.id),
			zap.String("square", chosen.To.Algebraic()),
			zap.Int("destroyed", len(blasted)),
		)
	}
	if out.LeftGreenTile && g.onGreenTile != nil {
		g.onGreenTile(g.board, chosen.To, out.Moved)
	}
	if out.Promoted != nil && m.Promotion == board.NoKind {
		g.pending = &pendingPromotion{color: color, at: chosen.To, pieceID: out.Promoted.ID}
	}

	if out.Captured != nil || pawnMove || len(blasted) > 0 {
		g.halfmove = 0
	} else {
		g.halfmove++
	}
	g.history = append(g.history, rec)

	g.logger.Debug("move applied",
		zap.String("game_id", g.id),
		zap.String("player_id", playerID),
		zap.String("move", chosen.String()),
	)
	g.advance(color)
	return nil
}

func validPromotion(k board.Kind) bool {
	switch k {
	case board.Queen, board.Rook, board.Bishop, board.Knight:
		return true
	default:
		return false
	}
}

// matchMove finds the legal move a request refers to. A request without a
// promotion choice matches a promoting move.
func matchMove(legal []board.Move, req board.Move) (board.Move, bool) {
	for _, c := range legal {
		if c.From != req.From || c.To != req.To {
			continue
		}
		if c.Promotion == req.Promotion || (c.Promotion != board.NoKind && req.Promotion != board.NoKind) || req.Promotion == board.NoKind {
			return c, true
		}
	}
	return board.Move{}, false
}

// PlayCard plays a card from the player's hand. It returns the resolver's
// message on success.
func (g *GameState) PlayCard(playerID, cardID string, target cards.Target) (string, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	color, err := g.beginAction(playerID)
	if err != nil {
		return "", err
	}
	player := g.players[color]
	if !player.Hand.Has(cardID) {
		return "", fmt.Errorf("%w: %s", ErrCardNotInHand, cardID)
	}
	if g.resolver == nil {
		return "", fmt.Errorf("%w: %s", ErrUnknownCard, cardID)
	}
	msg, err := g.resolver.Resolve(g.board, color, cardID, target)
	if err != nil {
		return "", err
	}

	g.clearPending(color)
	card, _ := player.Hand.Remove(cardID)
	player.Discard.Add(card)
	player.DrawCard()

	g.halfmove++
	g.history = append(g.history, Record{Ply: len(g.history) + 1, Color: color, CardID: cardID, Timestamp: g.now()})
	g.publish(Event{Type: EventCardPlayed, PlayerID: playerID, CardID: cardID, Square: target.Square, Detail: msg})
	g.logger.Info("card played",
		zap.String("game_id", g.id),
		zap.String("player_id", playerID),
		zap.String("card_id", cardID),
	)
	g.advance(color)
	return msg, nil
}

// StartEnthralling spends the player's turn setting their DarkLord on an
// adjacent enemy piece.
func (g *GameState) StartEnthralling(playerID string, darklord, target board.Coordinate) error {
	g.mu.Lock()
	defer g.mu.Unlock()

	color, err := g.beginAction(playerID)
	if err != nil {
		return err
	}
	if !darklord.InBounds() || !target.InBounds() {
		return fmt.Errorf("%w: square off the board", ErrIllegalMove)
	}
	dl := g.board.PieceAt(darklord)
	if dl == nil || dl.Color != color {
		return fmt.Errorf("%w: no darklord of yours on %s", ErrIllegalMove, darklord)
	}
	if err := rules.StartEnthralling(g.board, darklord, target); err != nil {
		return fmt.Errorf("%w: %v", ErrIllegalMove, err)
	}
	g.clearPending(color)

	g.halfmove++
	g.history = append(g.history, Record{Ply: len(g.history) + 1, Color: color, Enthrall: dl.EnthrallTarget, Timestamp: g.now()})
	g.publish(Event{Type: EventEnthrallStarted, PlayerID: playerID, PieceID: dl.ID, Square: target.Algebraic(), Detail: dl.EnthrallTarget})
	g.advance(color)
	return nil
}

// HandlePromotion replaces the piece the player just promoted with kind. It
// does not consume a turn.
func (g *GameState) HandlePromotion(playerID string, kind board.Kind) error {
	g.mu.Lock()
	defer g.mu.Unlock()

	color, ok := g.PlayerColor(playerID)
	if !ok {
		return ErrPlayerNotInGame
	}
	if !validPromotion(kind) {
		return ErrInvalidPromotionChoice
	}
	pend := g.pending
	if pend == nil || pend.color != color {
		return ErrNoPendingPromotion
	}
	current := g.board.PieceAt(pend.at)
	if current == nil || current.ID != pend.pieceID {
		g.pending = nil
		return ErrNoPendingPromotion
	}

	p := g.board.NewPiece(color, kind)
	p.HasMoved = true
	g.board.Place(pend.at, p)
	g.pending = nil
	g.publish(Event{Type: EventPromoted, PlayerID: playerID, PieceID: p.ID, Square: pend.at.Algebraic(), Detail: kind.Symbol()})
	if n := len(g.history); n > 0 && g.history[n-1].Move != nil && g.history[n-1].Color == color {
		mv := *g.history[n-1].Move
		mv.Promotion = kind
		g.history[n-1].Move = &mv
	}
	if g.status.Live() {
		g.evaluate(color)
	}
	return nil
}

// Resign ends the match in the opponent's favour.
func (g *GameState) Resign(playerID string) error {
	g.mu.Lock()
	defer g.mu.Unlock()

	color, ok := g.PlayerColor(playerID)
	if !ok {
		return ErrPlayerNotInGame
	}
	if g.status.Terminal() {
		return ErrGameOver
	}
	g.finish(StatusResigned, color.Opposite(), fmt.Sprintf("%s resigned", capitalize(color.Name())))
	return nil
}

// Forfeit ends the match against color regardless of its state.
func (g *GameState) Forfeit(color board.Color, reason string) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.finish(StatusForfeit, color.Opposite(), reason)
}

// End stops a live match without a winner.
func (g *GameState) End(reason string) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.status.Live() {
		g.finish(StatusForfeit, board.NoColor, reason)
	}
}

// UpdateTimer charges the elapsed time to the side to move. It returns true
// exactly once per match: for the first call after the clock ran out, even
// when an action rather than the timer noticed the flag fall.
func (g *GameState) UpdateTimer() bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.tick()
	if g.status != StatusTimeout || g.flagReported {
		return false
	}
	g.flagReported = true
	return true
}

func (g *GameState) tick() bool {
	if !g.status.Live() {
		return false
	}
	now := g.now()
	elapsed := now.Sub(g.lastTick)
	g.lastTick = now
	g.updatedAt = now
	g.remaining[g.turn] -= elapsed
	if g.remaining[g.turn] > 0 {
		return false
	}
	g.remaining[g.turn] = 0
	g.finish(StatusTimeout, g.turn.Opposite(), fmt.Sprintf("%s ran out of time", capitalize(g.turn.Name())))
	return true
}

func (g *GameState) finish(status Status, winner board.Color, reason string) {
	g.status = status
	g.winner = winner
	g.winReason = reason
	g.updatedAt = g.now()
	evt := Event{Type: EventGameOver, Detail: reason}
	if p, ok := g.players[winner]; ok {
		evt.PlayerID = p.ID
	}
	g.publish(evt)
	g.logger.Info("game finished",
		zap.String("game_id", g.id),
		zap.String("status", string(status)),
		zap.String("winner", winner.Name()),
		zap.String("reason", reason),
	)
}

// advance runs the end-of-action bookkeeping shared by moves and cards.
func (g *GameState) advance(mover board.Color) {
	g.board.Effects.ProcessTurn(g.fullmove)
	for _, dead := range rules.CheckDarkLords(g.board) {
		g.publish(Event{Type: EventDarkLordDied, PieceID: dead.ID})
		g.logger.Info("darklord perished",
			zap.String("game_id", g.id),
			zap.String("piece_id", dead.ID),
		)
	}
	g.evaluate(mover)
	if g.status.Live() {
		g.switchTurn()
	}
	g.updatedAt = g.now()
}

// evaluate checks the position for the side about to move after mover acted.
func (g *GameState) evaluate(mover board.Color) {
	next := mover.Opposite()
	for _, c := range []board.Color{next, mover} {
		if _, ok := g.board.King(c); !ok {
			g.finish(StatusCheckmate, c.Opposite(), fmt.Sprintf("%s king was destroyed", capitalize(c.Name())))
			return
		}
	}

	inCheck := rules.InCheck(g.board, next)
	if !rules.HasAnyLegalMove(g.board, next) {
		if inCheck {
			g.finish(StatusCheckmate, mover, "Checkmate")
		} else {
			g.finish(StatusStalemate, board.NoColor, "Stalemate")
		}
		return
	}
	if insufficientMaterial(g.board) {
		g.finish(StatusDraw, board.NoColor, "Insufficient material")
		return
	}
	if g.halfmove >= FiftyMoveLimit {
		g.finish(StatusDraw, board.NoColor, "Fifty-move rule")
		return
	}
	if inCheck {
		g.status = StatusCheck
	} else {
		g.status = StatusInProgress
	}
}

func insufficientMaterial(b *board.Board) bool {
	for _, pl := range b.All() {
		if pl.Piece.Kind != board.King && !pl.Piece.Immobile() {
			return false
		}
	}
	return true
}

func (g *GameState) switchTurn() {
	if g.turn == board.Black {
		g.fullmove++
	}
	g.turn = g.turn.Opposite()
	g.board.Turn = g.fullmove
	rules.RefreshDaylight(g.board, g.fullmove)

	for _, pl := range g.board.Pieces(g.turn) {
		if pl.Piece.Kind != board.DarkLord || pl.Piece.EnthrallTarget == "" {
			continue
		}
		converted, cancelled := rules.ProgressEnthralling(g.board, pl.Piece.ID)
		switch {
		case converted != nil:
			g.publish(Event{Type: EventPieceEnthralled, PlayerID: g.players[g.turn].ID, PieceID: converted.ID})
			g.logger.Info("piece enthralled",
				zap.String("game_id", g.id),
				zap.String("piece_id", converted.ID),
			)
		case cancelled:
			g.logger.Debug("enthrallment cancelled",
				zap.String("game_id", g.id),
				zap.String("darklord_id", pl.Piece.ID),
			)
		}
	}
	g.lastTick = g.now()
}

func (g *GameState) publish(evt Event) {
	if g.events == nil {
		return
	}
	evt.GameID = g.id
	evt.Timestamp = g.now()
	g.events.Publish(evt)
}

func capitalize(s string) string {
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:]
}
