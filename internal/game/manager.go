package game

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/arcanechess/arcane-server-go/internal/game/board"
	"github.com/arcanechess/arcane-server-go/internal/game/cards"
	"github.com/arcanechess/arcane-server-go/internal/repository"
)

// DefaultMaxConcurrentGames caps the number of live matches.
const DefaultMaxConcurrentGames = 20

// SampleDeck is the deck used by CreateSampleGame. Ids without a catalog entry
// become placeholder cards.
var SampleDeck = []string{
	"transform_pawn", "king_switch", "summon_peon", "safe_zone",
	"teleport_knight", "double_move", "freeze_piece", "sacrifice",
	"heal_king", "destroy_square", "swap_pieces", "mirror_move",
	"time_warp", "lightning_strike", "shield_barrier", "cursed_effigy",
}

// QueueEntry is a player waiting for an opponent.
type QueueEntry struct {
	PlayerID    string
	PlayerName  string
	DeckCardIDs []string
	JoinedAt    time.Time
}

// Stats summarises the manager.
type Stats struct {
	TotalGames    int `json:"total_games"`
	ActiveGames   int `json:"active_games"`
	FinishedGames int `json:"finished_games"`
	QueueSize     int `json:"queue_size"`
	TotalPlayers  int `json:"total_players"`
	MovesPlayed   int `json:"moves_played"`
	CardsPlayed   int `json:"cards_played"`
	Captures      int `json:"captures"`
}

// TimeoutFunc is told about every match whose clock ran out during a tick.
type TimeoutFunc func(g *GameState)

// Manager owns every match on the server, the matchmaking queue and the
// shared clock loop. Lock order is manager before match.
type Manager struct {
	mu     sync.RWMutex
	games  map[string]*GameState
	queue  []QueueEntry
	logger *zap.Logger

	maxGames    int
	initialTime time.Duration
	openingHand int
	now         func() time.Time
	catalog     *cards.Catalog
	resolver    cards.Resolver
	store       repository.ResultStore
	events      *EventBus

	moves    atomic.Int64
	played   atomic.Int64
	captures atomic.Int64

	timerMu     sync.Mutex
	timerCancel context.CancelFunc
	timerDone   chan struct{}
}

// ManagerOption configures a Manager.
type ManagerOption func(*Manager)

// WithMaxConcurrentGames changes the live match cap.
func WithMaxConcurrentGames(n int) ManagerOption {
	return func(m *Manager) { m.maxGames = n }
}

// WithGameClock sets the initial time per side for new matches.
func WithGameClock(d time.Duration) ManagerOption {
	return func(m *Manager) { m.initialTime = d }
}

// WithHandSize sets the opening hand for new matches.
func WithHandSize(n int) ManagerOption {
	return func(m *Manager) { m.openingHand = n }
}

// WithManagerClock replaces the wall clock for the manager and its matches.
func WithManagerClock(now func() time.Time) ManagerOption {
	return func(m *Manager) { m.now = now }
}

// WithCatalog sets the catalog decks are built from.
func WithCatalog(c *cards.Catalog) ManagerOption {
	return func(m *Manager) { m.catalog = c }
}

// WithCardResolver sets the resolver used by new matches.
func WithCardResolver(r cards.Resolver) ManagerOption {
	return func(m *Manager) { m.resolver = r }
}

// WithResultStore archives finished matches when they are removed.
func WithResultStore(s repository.ResultStore) ManagerOption {
	return func(m *Manager) { m.store = s }
}

// NewManager creates an empty manager.
func NewManager(logger *zap.Logger, opts ...ManagerOption) *Manager {
	if logger == nil {
		logger = zap.NewNop()
	}
	m := &Manager{
		games:       make(map[string]*GameState),
		queue:       make([]QueueEntry, 0),
		logger:      logger,
		maxGames:    DefaultMaxConcurrentGames,
		initialTime: DefaultInitialTime,
		openingHand: DefaultOpeningHand,
		now:         time.Now,
		resolver:    cards.NewDefaultResolver(),
		events:      NewEventBus(),
	}
	for _, opt := range opts {
		opt(m)
	}
	if m.catalog == nil {
		m.catalog = cards.DefaultCatalog()
	}
	m.events.SubscribeTyped(EventMoveMade, func(Event) { m.moves.Add(1) })
	m.events.SubscribeTyped(EventCardPlayed, func(Event) { m.played.Add(1) })
	m.events.SubscribeTyped(EventPieceCaptured, func(Event) { m.captures.Add(1) })
	return m
}

// Events returns the bus every match of this manager publishes on.
func (m *Manager) Events() *EventBus {
	return m.events
}

// AddToQueue appends a player to the matchmaking queue and returns their
// 1-based position.
func (m *Manager) AddToQueue(playerID, playerName string, deckCardIDs []string) (int, error) {
	if len(deckCardIDs) != cards.DeckSize {
		return 0, fmt.Errorf("%w (got %d)", ErrDeckSizeInvalid, len(deckCardIDs))
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	for _, e := range m.queue {
		if e.PlayerID == playerID {
			return 0, ErrAlreadyQueued
		}
	}
	if m.playerGameLocked(playerID) != nil {
		return 0, ErrAlreadyInGame
	}

	m.queue = append(m.queue, QueueEntry{
		PlayerID:    playerID,
		PlayerName:  playerName,
		DeckCardIDs: append([]string(nil), deckCardIDs...),
		JoinedAt:    m.now(),
	})
	m.logger.Info("player queued",
		zap.String("player_id", playerID),
		zap.Int("position", len(m.queue)),
	)
	return len(m.queue), nil
}

// RemoveFromQueue drops a player from the queue.
func (m *Manager) RemoveFromQueue(playerID string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	for i, e := range m.queue {
		if e.PlayerID == playerID {
			m.queue = append(m.queue[:i], m.queue[i+1:]...)
			return true
		}
	}
	return false
}

// QueueSize returns the number of waiting players.
func (m *Manager) QueueSize() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.queue)
}

// TryMatchPlayers pairs the two longest-waiting players. Nothing happens when
// fewer than two are queued or the live match cap is reached.
func (m *Manager) TryMatchPlayers() (*GameState, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if len(m.queue) < 2 {
		return nil, false
	}
	if m.liveCountLocked() >= m.maxGames {
		m.logger.Debug("match cap reached", zap.Int("max_games", m.maxGames))
		return nil, false
	}

	first, second := m.queue[0], m.queue[1]
	g, err := m.startGameLocked(first, second)
	if err != nil {
		m.logger.Error("failed to start matched game", zap.Error(err))
		return nil, false
	}
	m.queue = m.queue[2:]
	return g, true
}

// StartGame creates a match between two players. The first plays White.
func (m *Manager) StartGame(white, black QueueEntry) (*GameState, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.startGameLocked(white, black)
}

func (m *Manager) startGameLocked(white, black QueueEntry) (*GameState, error) {
	whiteDeck, err := m.catalog.BuildDeck(white.DeckCardIDs)
	if err != nil {
		return nil, fmt.Errorf("build deck for %s: %w", white.PlayerID, err)
	}
	blackDeck, err := m.catalog.BuildDeck(black.DeckCardIDs)
	if err != nil {
		return nil, fmt.Errorf("build deck for %s: %w", black.PlayerID, err)
	}

	id := uuid.New().String()
	g := NewGameState(id,
		NewPlayer(white.PlayerID, white.PlayerName, whiteDeck),
		NewPlayer(black.PlayerID, black.PlayerName, blackDeck),
		WithClock(m.now),
		WithInitialTime(m.initialTime),
		WithOpeningHand(m.openingHand),
		WithResolver(m.resolver),
		WithLogger(m.logger.With(zap.String("game_id", id))),
		WithEventBus(m.events),
	)
	m.games[id] = g

	m.logger.Info("game started",
		zap.String("game_id", id),
		zap.String("white", white.PlayerID),
		zap.String("black", black.PlayerID),
	)
	return g, nil
}

// CreateSampleGame starts a match between two players using SampleDeck.
func (m *Manager) CreateSampleGame(whiteID, blackID string) (*GameState, error) {
	return m.StartGame(
		QueueEntry{PlayerID: whiteID, PlayerName: displayName(whiteID), DeckCardIDs: SampleDeck},
		QueueEntry{PlayerID: blackID, PlayerName: displayName(blackID), DeckCardIDs: SampleDeck},
	)
}

func displayName(id string) string {
	if id == "" {
		return id
	}
	return strings.ToUpper(id[:1]) + strings.ToLower(id[1:])
}

// GetGame looks a match up by id.
func (m *Manager) GetGame(gameID string) (*GameState, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	g, ok := m.games[gameID]
	if !ok {
		return nil, ErrGameNotFound
	}
	return g, nil
}

// GetPlayerGame returns the live match playerID takes part in.
func (m *Manager) GetPlayerGame(playerID string) (*GameState, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	g := m.playerGameLocked(playerID)
	return g, g != nil
}

func (m *Manager) playerGameLocked(playerID string) *GameState {
	for _, g := range m.games {
		if g.HasPlayer(playerID) && g.Status().Live() {
			return g
		}
	}
	return nil
}

// ActiveGames returns the live matches ordered by creation time.
func (m *Manager) ActiveGames() []*GameState {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]*GameState, 0, len(m.games))
	for _, g := range m.games {
		if g.Status().Live() {
			out = append(out, g)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt().Before(out[j].CreatedAt()) })
	return out
}

// FinishedGames returns the matches that have ended but are still registered.
func (m *Manager) FinishedGames() []*GameState {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var out []*GameState
	for _, g := range m.games {
		if g.Status().Terminal() {
			out = append(out, g)
		}
	}
	return out
}

func (m *Manager) liveCountLocked() int {
	n := 0
	for _, g := range m.games {
		if g.Status().Live() {
			n++
		}
	}
	return n
}

// MakeMove plays a move given in algebraic notation. promotion may be empty
// or one of Q, R, B, N.
func (m *Manager) MakeMove(gameID, playerID, from, to, promotion string) (*GameState, error) {
	g, err := m.GetGame(gameID)
	if err != nil {
		return nil, err
	}
	src, err := board.ParseAlgebraic(from)
	if err != nil {
		return g, err
	}
	dst, err := board.ParseAlgebraic(to)
	if err != nil {
		return g, err
	}
	mv := board.Move{From: src, To: dst}
	if promotion != "" {
		kind, err := board.ParseKind(promotion)
		if err != nil || !validPromotion(kind) {
			return g, ErrInvalidPromotionChoice
		}
		mv.Promotion = kind
	}
	return g, g.ApplyMove(playerID, mv)
}

// PlayCard plays a card in a match and returns the resolver's message.
func (m *Manager) PlayCard(gameID, playerID, cardID string, target cards.Target) (string, *GameState, error) {
	g, err := m.GetGame(gameID)
	if err != nil {
		return "", nil, err
	}
	msg, err := g.PlayCard(playerID, cardID, target)
	return msg, g, err
}

// HandlePromotion changes the player's pending promotion.
func (m *Manager) HandlePromotion(gameID, playerID, kind string) (*GameState, error) {
	g, err := m.GetGame(gameID)
	if err != nil {
		return nil, err
	}
	k, err := board.ParseKind(kind)
	if err != nil {
		return g, ErrInvalidPromotionChoice
	}
	return g, g.HandlePromotion(playerID, k)
}

// StartEnthralling sets a DarkLord on an adjacent enemy.
func (m *Manager) StartEnthralling(gameID, playerID, darklord, target string) (*GameState, error) {
	g, err := m.GetGame(gameID)
	if err != nil {
		return nil, err
	}
	dl, err := board.ParseAlgebraic(darklord)
	if err != nil {
		return g, err
	}
	victim, err := board.ParseAlgebraic(target)
	if err != nil {
		return g, err
	}
	return g, g.StartEnthralling(playerID, dl, victim)
}

// LegalMoves returns the legal moves of the piece on square.
func (m *Manager) LegalMoves(gameID, square string) ([]board.Move, error) {
	g, err := m.GetGame(gameID)
	if err != nil {
		return nil, err
	}
	c, err := board.ParseAlgebraic(square)
	if err != nil {
		return nil, err
	}
	return g.LegalMovesFor(c), nil
}

// ForfeitGame ends a match against playerID.
func (m *Manager) ForfeitGame(gameID, playerID, reason string) (*GameState, error) {
	g, err := m.GetGame(gameID)
	if err != nil {
		return nil, err
	}
	color, ok := g.PlayerColor(playerID)
	if !ok {
		return g, ErrPlayerNotInGame
	}
	if reason == "" {
		reason = fmt.Sprintf("%s forfeited", capitalize(color.Name()))
	}
	g.Forfeit(color, reason)
	m.logger.Info("game forfeited",
		zap.String("game_id", gameID),
		zap.String("player_id", playerID),
		zap.String("reason", reason),
	)
	return g, nil
}

// EndGame stops a match without a winner. Finished matches are left as they
// are.
func (m *Manager) EndGame(gameID string) (*GameState, error) {
	g, err := m.GetGame(gameID)
	if err != nil {
		return nil, err
	}
	g.End("Game manually ended")
	return g, nil
}

// RemoveGame drops a match from the registry. A finished match is archived to
// the result store first.
func (m *Manager) RemoveGame(ctx context.Context, gameID string) bool {
	m.mu.Lock()
	g, ok := m.games[gameID]
	if ok {
		delete(m.games, gameID)
	}
	m.mu.Unlock()

	if !ok {
		return false
	}
	m.archive(ctx, g)
	m.logger.Info("game removed", zap.String("game_id", gameID))
	return true
}

// CleanupFinishedGames removes every finished match and returns how many were
// removed.
func (m *Manager) CleanupFinishedGames(ctx context.Context) int {
	m.mu.Lock()
	finished := make([]*GameState, 0)
	for id, g := range m.games {
		if g.Status().Terminal() {
			finished = append(finished, g)
			delete(m.games, id)
		}
	}
	m.mu.Unlock()

	for _, g := range finished {
		m.archive(ctx, g)
	}
	if len(finished) > 0 {
		m.logger.Info("finished games cleaned up", zap.Int("count", len(finished)))
	}
	return len(finished)
}

func (m *Manager) archive(ctx context.Context, g *GameState) {
	if m.store == nil {
		return
	}
	status := g.Status()
	if !status.Terminal() {
		return
	}
	winner, reason := g.Result()
	_, fullmove := g.Counters()
	result := repository.MatchResult{
		GameID:        g.ID(),
		WhitePlayerID: g.Player(board.White).ID,
		BlackPlayerID: g.Player(board.Black).ID,
		Status:        string(status),
		Winner:        string(winner),
		WinReason:     reason,
		Fullmoves:     fullmove,
		StartedAt:     g.CreatedAt(),
		EndedAt:       m.now(),
	}
	if err := m.store.SaveResult(ctx, result); err != nil {
		m.logger.Warn("failed to archive game",
			zap.String("game_id", g.ID()),
			zap.Error(err),
		)
	}
}

// GetStats returns registry and queue counters.
func (m *Manager) GetStats() Stats {
	m.mu.RLock()
	defer m.mu.RUnlock()

	live := m.liveCountLocked()
	return Stats{
		TotalGames:    len(m.games),
		ActiveGames:   live,
		FinishedGames: len(m.games) - live,
		QueueSize:     len(m.queue),
		TotalPlayers:  len(m.queue) + len(m.games)*2,
		MovesPlayed:   int(m.moves.Load()),
		CardsPlayed:   int(m.played.Load()),
		Captures:      int(m.captures.Load()),
	}
}

// TickTimers updates the clock of every live match once and reports each
// match whose timeout has not been reported before. It returns the number of timeouts.
func (m *Manager) TickTimers(onTimeout TimeoutFunc) int {
	m.mu.RLock()
	games := make([]*GameState, 0, len(m.games))
	for _, g := range m.games {
		games = append(games, g)
	}
	m.mu.RUnlock()

	flipped := 0
	for _, g := range games {
		if !g.UpdateTimer() {
			continue
		}
		flipped++
		m.logger.Info("game timed out", zap.String("game_id", g.ID()))
		if onTimeout != nil {
			onTimeout(g)
		}
	}
	return flipped
}

// StartTimer runs TickTimers every interval until ctx is cancelled or
// StopTimer is called. Starting a running timer is a no-op; once the loop has
// exited the timer may be started again.
func (m *Manager) StartTimer(ctx context.Context, interval time.Duration, onTimeout TimeoutFunc) {
	m.timerMu.Lock()
	defer m.timerMu.Unlock()
	if m.timerCancel != nil {
		return
	}

	ctx, cancel := context.WithCancel(ctx)
	done := make(chan struct{})
	m.timerCancel = cancel
	m.timerDone = done

	go func() {
		defer func() {
			cancel()
			m.timerMu.Lock()
			if m.timerDone == done {
				m.timerCancel, m.timerDone = nil, nil
			}
			m.timerMu.Unlock()
			close(done)
		}()
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				m.TickTimers(onTimeout)
			}
		}
	}()
	m.logger.Info("game timer started", zap.Duration("interval", interval))
}

// StopTimer stops the timer loop and waits for an in-flight tick to finish.
func (m *Manager) StopTimer() {
	m.timerMu.Lock()
	cancel, done := m.timerCancel, m.timerDone
	m.timerCancel, m.timerDone = nil, nil
	m.timerMu.Unlock()

	if cancel == nil {
		return
	}
	cancel()
	<-done
	m.logger.Info("game timer stopped")
}
