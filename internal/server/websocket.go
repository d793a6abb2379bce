package server

import (
	"encoding/json"
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/arcanechess/arcane-server-go/internal/game"
	"github.com/arcanechess/arcane-server-go/internal/game/board"
	"github.com/arcanechess/arcane-server-go/internal/game/cards"
	"github.com/arcanechess/arcane-server-go/internal/session"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 64 * 1024
	sendBuffer     = 32
)

// Inbound message types.
const (
	msgJoinQueue  = "join_queue"
	msgLeaveQueue = "leave_queue"
	msgMove       = "move"
	msgPlayCard   = "play_card"
	msgPromote    = "promote"
	msgEnthrall   = "enthrall"
	msgLegalMoves = "legal_moves"
	msgResign     = "resign"
	msgReconnect  = "reconnect"
	msgPing       = "ping"
)

// Outbound message types.
const (
	msgQueueJoined = "queue_joined"
	msgQueueLeft   = "queue_left"
	msgGameStarted = "game_started"
	msgGameUpdate  = "game_update"
	msgGameOver    = "game_over"
	msgCardPlayed  = "card_played"
	msgError       = "error"
	msgPong        = "pong"
)

// ClientMessage is a frame sent by a player.
type ClientMessage struct {
	Type      string   `json:"type"`
	GameID    string   `json:"game_id,omitempty"`
	Name      string   `json:"name,omitempty"`
	Deck      []string `json:"deck,omitempty"`
	From      string   `json:"from,omitempty"`
	To        string   `json:"to,omitempty"`
	Promotion string   `json:"promotion,omitempty"`
	Card      string   `json:"card,omitempty"`
	Target    string   `json:"target,omitempty"`
	Secondary string   `json:"secondary,omitempty"`
	Piece     string   `json:"piece,omitempty"`
	DarkLord  string   `json:"darklord,omitempty"`
	Square    string   `json:"square,omitempty"`
	Token     string   `json:"token,omitempty"`
}

// ServerMessage is a frame sent to a player.
type ServerMessage struct {
	Type      string           `json:"type"`
	Message   string           `json:"message,omitempty"`
	Position  int              `json:"position,omitempty"`
	GameID    string           `json:"game_id,omitempty"`
	GameState *game.GameView   `json:"game_state,omitempty"`
	Token     string           `json:"token,omitempty"`
	Reason    string           `json:"reason,omitempty"`
	Winner    string           `json:"winner,omitempty"`
	Square    string           `json:"square,omitempty"`
	Moves     []board.MoveView `json:"moves,omitempty"`
}

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// Client is one websocket connection.
type Client struct {
	id   string
	hub  *Hub
	conn *websocket.Conn
	send chan []byte
}

// Hub routes player frames to the game manager and fans match updates out to
// the connected players.
type Hub struct {
	mu       sync.RWMutex
	clients  map[string]*Client
	closed   bool
	pumps    sync.WaitGroup
	games    *game.Manager
	sessions *session.Manager
	logger   *zap.Logger
}

// NewHub creates a hub on top of the game and session managers.
func NewHub(games *game.Manager, sessions *session.Manager, logger *zap.Logger) *Hub {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Hub{
		clients:  make(map[string]*Client),
		games:    games,
		sessions: sessions,
		logger:   logger,
	}
}

// SetBufferSizes adjusts the websocket read and write buffers.
func SetBufferSizes(read, write int) {
	if read > 0 {
		upgrader.ReadBufferSize = read
	}
	if write > 0 {
		upgrader.WriteBufferSize = write
	}
}

// Handler returns the HTTP routes served next to the websocket endpoint.
func (h *Hub) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /ws/{client_id}", h.serveWS)
	mux.HandleFunc("GET /status", h.handleStatus)
	mux.HandleFunc("GET /game/{id}", h.handleGame)
	mux.HandleFunc("POST /test/create_sample_game", h.handleSampleGame)
	mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	return mux
}

// ConnectionCount returns the number of open connections.
func (h *Hub) ConnectionCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// register adds c and reserves its pumps. It reports false once the hub is
// closed.
func (h *Hub) register(c *Client) bool {
	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		return false
	}
	old := h.clients[c.id]
	h.clients[c.id] = c
	h.pumps.Add(2)
	h.mu.Unlock()

	if old != nil {
		close(old.send)
	}
	h.logger.Info("client connected", zap.String("client_id", c.id))
	return true
}

// Close drops every connection and waits for the connection goroutines to
// finish. New connections are refused afterwards.
func (h *Hub) Close() {
	h.mu.Lock()
	h.closed = true
	conns := make([]*websocket.Conn, 0, len(h.clients))
	for _, c := range h.clients {
		conns = append(conns, c.conn)
	}
	h.mu.Unlock()

	for _, conn := range conns {
		conn.Close()
	}
	h.pumps.Wait()
}

func (h *Hub) unregister(c *Client) {
	h.mu.Lock()
	current, ok := h.clients[c.id]
	if ok && current == c {
		delete(h.clients, c.id)
		close(c.send)
	}
	h.mu.Unlock()

	if !ok || current != c {
		return
	}
	h.games.RemoveFromQueue(c.id)
	h.sessions.MarkDisconnected(c.id)
	h.logger.Info("client disconnected", zap.String("client_id", c.id))
}

func (h *Hub) serveWS(w http.ResponseWriter, r *http.Request) {
	clientID := r.PathValue("client_id")
	if clientID == "" {
		http.Error(w, "client id required", http.StatusBadRequest)
		return
	}
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warn("websocket upgrade failed", zap.Error(err))
		return
	}

	client := &Client{id: clientID, hub: h, conn: conn, send: make(chan []byte, sendBuffer)}
	if !h.register(client) {
		conn.Close()
		return
	}

	go client.writePump()
	go client.readPump()
}

func (c *Client) readPump() {
	defer func() {
		c.hub.unregister(c)
		c.conn.Close()
		c.hub.pumps.Done()
	}()

	c.conn.SetReadLimit(maxMessageSize)
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				c.hub.logger.Warn("websocket read failed", zap.String("client_id", c.id), zap.Error(err))
			}
			return
		}

		var msg ClientMessage
		if err := json.Unmarshal(data, &msg); err != nil {
			c.hub.sendTo(c.id, ServerMessage{Type: msgError, Message: "Invalid JSON format"})
			continue
		}
		c.hub.handleMessage(c.id, msg)
	}
}

func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
		c.hub.pumps.Done()
	}()

	for {
		select {
		case message, ok := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
				return
			}
		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// sendTo queues msg for clientID. Slow clients drop frames rather than block
// the sender.
func (h *Hub) sendTo(clientID string, msg ServerMessage) {
	data, err := json.Marshal(msg)
	if err != nil {
		h.logger.Error("failed to marshal message", zap.String("type", msg.Type), zap.Error(err))
		return
	}

	h.mu.RLock()
	defer h.mu.RUnlock()
	c, ok := h.clients[clientID]
	if !ok {
		return
	}
	select {
	case c.send <- data:
	default:
		h.logger.Warn("client send buffer full", zap.String("client_id", clientID), zap.String("type", msg.Type))
	}
}

func (h *Hub) sendError(clientID string, err error) {
	h.sendTo(clientID, ServerMessage{Type: msgError, Message: err.Error()})
}

func (h *Hub) handleMessage(clientID string, msg ClientMessage) {
	switch msg.Type {
	case msgJoinQueue:
		h.handleJoinQueue(clientID, msg)
	case msgLeaveQueue:
		h.games.RemoveFromQueue(clientID)
		h.sendTo(clientID, ServerMessage{Type: msgQueueLeft})
	case msgMove:
		g, err := h.games.MakeMove(msg.GameID, clientID, msg.From, msg.To, msg.Promotion)
		h.afterAction(clientID, g, err)
	case msgPlayCard:
		target := cards.Target{Square: msg.Target, Secondary: msg.Secondary}
		text, g, err := h.games.PlayCard(msg.GameID, clientID, msg.Card, target)
		if err == nil {
			h.sendTo(clientID, ServerMessage{Type: msgCardPlayed, GameID: msg.GameID, Message: text})
		}
		h.afterAction(clientID, g, err)
	case msgPromote:
		g, err := h.games.HandlePromotion(msg.GameID, clientID, msg.Piece)
		h.afterAction(clientID, g, err)
	case msgEnthrall:
		g, err := h.games.StartEnthralling(msg.GameID, clientID, msg.DarkLord, msg.Target)
		h.afterAction(clientID, g, err)
	case msgLegalMoves:
		moves, err := h.games.LegalMoves(msg.GameID, msg.Square)
		if err != nil {
			h.sendError(clientID, err)
			return
		}
		views := make([]board.MoveView, 0, len(moves))
		for _, m := range moves {
			views = append(views, m.View())
		}
		h.sendTo(clientID, ServerMessage{Type: msgLegalMoves, GameID: msg.GameID, Square: msg.Square, Moves: views})
	case msgResign:
		g, err := h.games.GetGame(msg.GameID)
		if err == nil {
			err = g.Resign(clientID)
		}
		h.afterAction(clientID, g, err)
	case msgReconnect:
		h.handleReconnect(clientID, msg)
	case msgPing:
		h.sendTo(clientID, ServerMessage{Type: msgPong})
	default:
		h.sendTo(clientID, ServerMessage{Type: msgError, Message: "Unknown message type: " + msg.Type})
	}
}

func (h *Hub) handleJoinQueue(clientID string, msg ClientMessage) {
	name := msg.Name
	if name == "" {
		name = clientID
	}
	pos, err := h.games.AddToQueue(clientID, name, msg.Deck)
	if err != nil {
		h.sendError(clientID, err)
		return
	}
	h.sendTo(clientID, ServerMessage{Type: msgQueueJoined, Position: pos})
	h.MatchQueued()
}

// MatchQueued pairs queued players while the queue and the match cap allow,
// announcing each new match. It returns the number of matches started.
func (h *Hub) MatchQueued() int {
	started := 0
	for {
		g, ok := h.games.TryMatchPlayers()
		if !ok {
			return started
		}
		h.announceGame(g)
		started++
	}
}

// announceGame issues reconnect tokens and sends each player their view of a
// new match.
func (h *Hub) announceGame(g *game.GameState) {
	colors := []board.Color{board.White, board.Black}
	tokens := make(map[board.Color]string, len(colors))
	for _, color := range colors {
		p := g.Player(color)
		token, err := h.sessions.Issue(p.ID, g.ID())
		if err != nil {
			h.logger.Error("failed to issue session", zap.String("player_id", p.ID), zap.Error(err))
		}
		tokens[color] = token
	}
	h.recordSnapshot(g)

	for _, color := range colors {
		p := g.Player(color)
		view := g.View(p.ID, true)
		h.sendTo(p.ID, ServerMessage{Type: msgGameStarted, GameID: g.ID(), GameState: &view, Token: tokens[color]})
	}
	h.logger.Info("game announced",
		zap.String("game_id", g.ID()),
		zap.String("white", g.Player(board.White).ID),
		zap.String("black", g.Player(board.Black).ID),
	)
}

func (h *Hub) handleReconnect(clientID string, msg ClientMessage) {
	s, err := h.sessions.Validate(clientID, msg.Token)
	if err != nil {
		h.sendError(clientID, err)
		return
	}
	if err := h.sessions.MarkReconnected(clientID); err != nil {
		h.sendError(clientID, err)
		return
	}
	g, err := h.games.GetGame(s.GameID)
	if err != nil {
		h.sendError(clientID, err)
		return
	}
	view := g.View(clientID, true)
	h.sendTo(clientID, ServerMessage{Type: msgGameUpdate, GameID: g.ID(), GameState: &view})
	h.logger.Info("player reconnected", zap.String("player_id", clientID), zap.String("game_id", g.ID()))
}

func (h *Hub) afterAction(clientID string, g *game.GameState, err error) {
	if err != nil {
		h.sendError(clientID, err)
		return
	}
	h.BroadcastGame(g)
}

// BroadcastGame sends both players their view of g, followed by a game_over
// frame once the match has ended.
func (h *Hub) BroadcastGame(g *game.GameState) {
	for _, color := range []board.Color{board.White, board.Black} {
		p := g.Player(color)
		view := g.View(p.ID, true)
		h.sendTo(p.ID, ServerMessage{Type: msgGameUpdate, GameID: g.ID(), GameState: &view})
	}
	h.recordSnapshot(g)

	status := g.Status()
	if !status.Terminal() {
		return
	}
	winner, reason := g.Result()
	h.broadcastGameOver(g, string(status), winner, reason)
}

// NotifyTimeout is the timer callback for matches whose clock ran out.
func (h *Hub) NotifyTimeout(g *game.GameState) {
	winner, reason := g.Result()
	h.broadcastGameOver(g, "timeout", winner, reason)
}

// ExpireSession forfeits the match of a player whose reconnect lease ran out.
func (h *Hub) ExpireSession(s session.Session) {
	g, err := h.games.GetGame(s.GameID)
	if err != nil || !g.Status().Live() {
		return
	}
	g, err = h.games.ForfeitGame(s.GameID, s.UserID, "")
	if err != nil {
		h.logger.Warn("failed to forfeit expired session", zap.String("user_id", s.UserID), zap.Error(err))
		return
	}
	h.BroadcastGame(g)
}

func (h *Hub) broadcastGameOver(g *game.GameState, reason string, winner board.Color, message string) {
	msg := ServerMessage{
		Type:    msgGameOver,
		GameID:  g.ID(),
		Reason:  reason,
		Winner:  string(winner),
		Message: message,
	}
	for _, color := range []board.Color{board.White, board.Black} {
		h.sendTo(g.Player(color).ID, msg)
	}
}

func (h *Hub) recordSnapshot(g *game.GameState) {
	snap := g.Snapshot()
	data, err := snap.SerializeToBytes()
	if err != nil {
		h.logger.Warn("failed to serialize snapshot", zap.String("game_id", g.ID()), zap.Error(err))
		return
	}
	sum, err := snap.ComputeChecksum()
	if err != nil {
		h.logger.Warn("failed to checksum snapshot", zap.String("game_id", g.ID()), zap.Error(err))
		return
	}
	for _, color := range []board.Color{board.White, board.Black} {
		err := h.sessions.UpdateSnapshot(g.Player(color).ID, data, sum.Hash)
		if err != nil && !errors.Is(err, session.ErrSessionNotFound) {
			h.logger.Warn("failed to store snapshot", zap.String("game_id", g.ID()), zap.Error(err))
		}
	}
}

type statusResponse struct {
	Connections   int `json:"connections"`
	Queue         int `json:"queue"`
	ActiveGames   int `json:"active_games"`
	TotalGames    int `json:"total_games"`
	FinishedGames int `json:"finished_games"`
	Sessions      int `json:"sessions"`
}

func (h *Hub) handleStatus(w http.ResponseWriter, r *http.Request) {
	stats := h.games.GetStats()
	writeJSON(w, http.StatusOK, statusResponse{
		Connections:   h.ConnectionCount(),
		Queue:         stats.QueueSize,
		ActiveGames:   stats.ActiveGames,
		TotalGames:    stats.TotalGames,
		FinishedGames: stats.FinishedGames,
		Sessions:      h.sessions.Count(),
	})
}

type gameResponse struct {
	Success   bool           `json:"success"`
	GameState *game.GameView `json:"game_state,omitempty"`
	Error     string         `json:"error,omitempty"`
}

func (h *Hub) handleGame(w http.ResponseWriter, r *http.Request) {
	g, err := h.games.GetGame(r.PathValue("id"))
	if err != nil {
		writeJSON(w, http.StatusNotFound, gameResponse{Error: "Game not found"})
		return
	}
	view := g.View(r.URL.Query().Get("player_id"), false)
	writeJSON(w, http.StatusOK, gameResponse{Success: true, GameState: &view})
}

type sampleGameResponse struct {
	Success bool   `json:"success"`
	GameID  string `json:"game_id,omitempty"`
	Message string `json:"message"`
}

func (h *Hub) handleSampleGame(w http.ResponseWriter, r *http.Request) {
	white := r.URL.Query().Get("white")
	if white == "" {
		white = "player1"
	}
	black := r.URL.Query().Get("black")
	if black == "" {
		black = "player2"
	}
	g, err := h.games.CreateSampleGame(white, black)
	if err != nil {
		writeJSON(w, http.StatusConflict, sampleGameResponse{Message: err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, sampleGameResponse{
		Success: true,
		GameID:  g.ID(),
		Message: "Sample game created between " + white + " and " + black,
	})
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}
