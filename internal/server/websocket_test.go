package server

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
	"golang.org/x/crypto/bcrypt"

	"github.com/arcanechess/arcane-server-go/internal/game"
	"github.com/arcanechess/arcane-server-go/internal/session"
)

func newTestHub(t *testing.T, opts ...game.ManagerOption) *Hub {
	t.Helper()
	logger := zaptest.NewLogger(t)
	games := game.NewManager(logger, opts...)
	sessions := session.NewManager(time.Minute, logger, session.WithBcryptCost(bcrypt.MinCost))
	hub := NewHub(games, sessions, logger)
	t.Cleanup(hub.Close)
	return hub
}

func dial(t *testing.T, srv *httptest.Server, clientID string) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws/" + clientID
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	return conn
}

func send(t *testing.T, conn *websocket.Conn, msg ClientMessage) {
	t.Helper()
	require.NoError(t, conn.WriteJSON(msg))
}

// readUntil reads frames until one of type want arrives.
func readUntil(t *testing.T, conn *websocket.Conn, want string) ServerMessage {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(5*time.Second)))
	for {
		var msg ServerMessage
		require.NoError(t, conn.ReadJSON(&msg))
		if msg.Type == want {
			return msg
		}
	}
}

func TestWebSocketMatchFlow(t *testing.T) {
	hub := newTestHub(t)
	srv := httptest.NewServer(hub.Handler())
	defer srv.Close()

	alice := dial(t, srv, "alice")
	bob := dial(t, srv, "bob")

	send(t, alice, ClientMessage{Type: msgJoinQueue, Deck: game.SampleDeck})
	joined := readUntil(t, alice, msgQueueJoined)
	assert.Equal(t, 1, joined.Position)

	send(t, bob, ClientMessage{Type: msgJoinQueue, Deck: game.SampleDeck})
	started := readUntil(t, bob, msgGameStarted)
	require.NotNil(t, started.GameState)
	assert.Equal(t, "B", started.GameState.YourColor)
	assert.NotEmpty(t, started.Token)

	aliceStart := readUntil(t, alice, msgGameStarted)
	assert.Equal(t, "W", aliceStart.GameState.YourColor)
	gameID := aliceStart.GameID
	require.NotEmpty(t, gameID)

	send(t, bob, ClientMessage{Type: msgMove, GameID: gameID, From: "e7", To: "e5"})
	errMsg := readUntil(t, bob, msgError)
	assert.Equal(t, game.ErrNotYourTurn.Error(), errMsg.Message)

	send(t, alice, ClientMessage{Type: msgMove, GameID: gameID, From: "e2", To: "e4"})
	update := readUntil(t, bob, msgGameUpdate)
	require.NotNil(t, update.GameState)
	assert.Equal(t, "B", update.GameState.CurrentTurn)
	assert.Contains(t, update.GameState.Board, "e4")

	send(t, bob, ClientMessage{Type: msgLegalMoves, GameID: gameID, Square: "e7"})
	legal := readUntil(t, bob, msgLegalMoves)
	assert.Len(t, legal.Moves, 2)

	send(t, bob, ClientMessage{Type: msgResign, GameID: gameID})
	over := readUntil(t, alice, msgGameOver)
	assert.Equal(t, "RESIGNED", over.Reason)
	assert.Equal(t, "W", over.Winner)
	assert.Equal(t, "Black resigned", over.Message)
}

func TestWebSocketPingAndErrors(t *testing.T) {
	hub := newTestHub(t)
	srv := httptest.NewServer(hub.Handler())
	defer srv.Close()

	conn := dial(t, srv, "carol")
	send(t, conn, ClientMessage{Type: msgPing})
	readUntil(t, conn, msgPong)

	send(t, conn, ClientMessage{Type: "dance"})
	msg := readUntil(t, conn, msgError)
	assert.Contains(t, msg.Message, "Unknown message type")

	send(t, conn, ClientMessage{Type: msgJoinQueue, Deck: game.SampleDeck[:3]})
	msg = readUntil(t, conn, msgError)
	assert.Contains(t, msg.Message, game.ErrDeckSizeInvalid.Error())

	require.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte("{")))
	msg = readUntil(t, conn, msgError)
	assert.Equal(t, "Invalid JSON format", msg.Message)
}

func TestWebSocketReconnect(t *testing.T) {
	hub := newTestHub(t)
	srv := httptest.NewServer(hub.Handler())
	defer srv.Close()

	alice := dial(t, srv, "alice")
	bob := dial(t, srv, "bob")
	send(t, alice, ClientMessage{Type: msgJoinQueue, Deck: game.SampleDeck})
	readUntil(t, alice, msgQueueJoined)
	send(t, bob, ClientMessage{Type: msgJoinQueue, Deck: game.SampleDeck})
	started := readUntil(t, alice, msgGameStarted)

	s, ok := hub.sessions.Get("alice")
	require.True(t, ok)
	assert.NotEmpty(t, s.Checksum)

	send(t, alice, ClientMessage{Type: msgReconnect, Token: "forged"})
	msg := readUntil(t, alice, msgError)
	assert.Equal(t, session.ErrInvalidToken.Error(), msg.Message)

	send(t, alice, ClientMessage{Type: msgReconnect, Token: started.Token})
	msg = readUntil(t, alice, msgGameUpdate)
	assert.Equal(t, started.GameID, msg.GameID)
}

func TestStatusEndpoint(t *testing.T) {
	hub := newTestHub(t)
	_, err := hub.games.CreateSampleGame("alice", "bob")
	require.NoError(t, err)

	rec := httptest.NewRecorder()
	hub.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/status", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	var body statusResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, statusResponse{ActiveGames: 1, TotalGames: 1}, body)
}

func TestGameEndpoint(t *testing.T) {
	hub := newTestHub(t)
	handler := hub.Handler()

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/test/create_sample_game", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	var created sampleGameResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &created))
	require.True(t, created.Success)

	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/game/"+created.GameID+"?player_id=player2", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	var found gameResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &found))
	require.NotNil(t, found.GameState)
	assert.Equal(t, "B", found.GameState.YourColor)

	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/game/missing", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Contains(t, rec.Body.String(), "Game not found")
}

func TestExpireSessionForfeits(t *testing.T) {
	hub := newTestHub(t)
	g, err := hub.games.CreateSampleGame("alice", "bob")
	require.NoError(t, err)

	hub.ExpireSession(session.Session{UserID: "bob", GameID: g.ID()})
	assert.Equal(t, game.StatusForfeit, g.Status())
	winner, reason := g.Result()
	assert.Equal(t, "W", string(winner))
	assert.Equal(t, "Black forfeited", reason)
}

func TestHubCloseWaitsForConnections(t *testing.T) {
	hub := newTestHub(t)
	srv := httptest.NewServer(hub.Handler())
	defer srv.Close()

	conn := dial(t, srv, "dave")
	send(t, conn, ClientMessage{Type: msgPing})
	readUntil(t, conn, msgPong)
	require.Equal(t, 1, hub.ConnectionCount())

	hub.Close()
	assert.Zero(t, hub.ConnectionCount())
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(5*time.Second)))
	_, _, err := conn.ReadMessage()
	assert.Error(t, err)

	late := dial(t, srv, "erin")
	require.NoError(t, late.SetReadDeadline(time.Now().Add(5*time.Second)))
	_, _, err = late.ReadMessage()
	assert.Error(t, err)
	assert.Zero(t, hub.ConnectionCount())

	hub.Close()
}

func TestMatchQueuedAfterCapFrees(t *testing.T) {
	hub := newTestHub(t, game.WithMaxConcurrentGames(1))
	srv := httptest.NewServer(hub.Handler())
	defer srv.Close()

	busy, err := hub.games.CreateSampleGame("carol", "dave")
	require.NoError(t, err)

	alice := dial(t, srv, "alice")
	bob := dial(t, srv, "bob")
	send(t, alice, ClientMessage{Type: msgJoinQueue, Deck: game.SampleDeck})
	readUntil(t, alice, msgQueueJoined)
	send(t, bob, ClientMessage{Type: msgJoinQueue, Deck: game.SampleDeck})
	joined := readUntil(t, bob, msgQueueJoined)
	assert.Equal(t, 2, joined.Position)
	assert.Zero(t, hub.MatchQueued())

	require.NoError(t, busy.Resign("dave"))
	assert.Equal(t, 1, hub.MatchQueued())
	started := readUntil(t, alice, msgGameStarted)
	assert.Equal(t, "W", started.GameState.YourColor)
	readUntil(t, bob, msgGameStarted)
	assert.Zero(t, hub.MatchQueued())
}
