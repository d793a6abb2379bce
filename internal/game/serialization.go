package game

import (
	"bytes"
	"crypto/sha256"
	"encoding/gob"
	"encoding/hex"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/arcanechess/arcane-server-go/internal/game/board"
)

// Snapshot is a point-in-time copy of a match used for reconnection and
// archival. It carries only plain data so it can be gob encoded.
type Snapshot struct {
	GameID    string
	Status    string
	Turn      string
	Halfmove  int
	Fullmove  int
	WhiteTime time.Duration
	BlackTime time.Duration
	Winner    string
	WinReason string
	Pieces    map[string]SnapshotPiece
	Effects   []string
	Green     []string
	Forbidden bool
	Hands     map[string][]string
	DeckSizes map[string]int
	History   []string
	Timestamp time.Time
}

// SnapshotPiece is a piece inside a Snapshot.
type SnapshotPiece struct {
	ID       string
	Color    string
	Kind     string
	HasMoved bool
	Marked   bool
	Flags    string
}

// SerializationChecksum is the digest of a snapshot's deterministic form.
type SerializationChecksum struct {
	Hash      string
	Timestamp string
	Version   int
}

// Snapshot captures the current match.
func (g *GameState) Snapshot() *Snapshot {
	g.mu.Lock()
	defer g.mu.Unlock()

	b := g.board
	s := &Snapshot{
		GameID:    g.id,
		Status:    string(g.status),
		Turn:      string(g.turn),
		Halfmove:  g.halfmove,
		Fullmove:  g.fullmove,
		WhiteTime: g.remaining[board.White],
		BlackTime: g.remaining[board.Black],
		Winner:    string(g.winner),
		WinReason: g.winReason,
		Pieces:    make(map[string]SnapshotPiece, b.Count()),
		Forbidden: b.Config.ForbiddenActive,
		Hands:     make(map[string][]string, 2),
		DeckSizes: make(map[string]int, 2),
		Timestamp: g.now(),
	}
	for _, pl := range b.All() {
		p := pl.Piece
		s.Pieces[pl.At.Algebraic()] = SnapshotPiece{
			ID:       p.ID,
			Color:    string(p.Color),
			Kind:     p.Kind.Symbol(),
			HasMoved: p.HasMoved,
			Marked:   p.Marked,
			Flags: fmt.Sprintf("%t,%t,%t,%s,%d,%s,%s",
				p.Unlocked, p.Empowered, p.Daylight, p.EnthrallTarget, p.EnthrallProgress, p.LinkedID, p.Curse),
		}
	}
	for _, e := range b.Effects.Views(b.Turn) {
		s.Effects = append(s.Effects, fmt.Sprintf("%s|%s|%s|%d", e.ID, e.Type, e.Target, e.TurnsRemaining))
	}
	for sq, on := range b.Config.GreenTiles {
		if on {
			s.Green = append(s.Green, sq.Algebraic())
		}
	}
	sort.Strings(s.Green)
	for color, p := range g.players {
		ids := make([]string, 0, p.Hand.Len())
		for _, c := range p.Hand.Cards() {
			ids = append(ids, c.ID)
		}
		s.Hands[string(color)] = ids
		s.DeckSizes[string(color)] = p.Deck.Size()
	}
	for _, rec := range g.history {
		s.History = append(s.History, historyLine(rec))
	}
	return s
}

func historyLine(rec Record) string {
	switch {
	case rec.Move != nil:
		return fmt.Sprintf("%d:%s:move:%s", rec.Ply, rec.Color, rec.Move)
	case rec.CardID != "":
		return fmt.Sprintf("%d:%s:card:%s", rec.Ply, rec.Color, rec.CardID)
	default:
		return fmt.Sprintf("%d:%s:enthrall:%s", rec.Ply, rec.Color, rec.Enthrall)
	}
}

// Checksum returns the digest of the current position.
func (g *GameState) Checksum() (string, error) {
	sum, err := g.Snapshot().ComputeChecksum()
	if err != nil {
		return "", err
	}
	return sum.Hash, nil
}

// ComputeChecksum hashes the snapshot's deterministic representation. The
// timestamp is excluded so equal positions hash equally.
func (s *Snapshot) ComputeChecksum() (*SerializationChecksum, error) {
	hash := sha256.New()
	if _, err := hash.Write([]byte(s.deterministicRepresentation())); err != nil {
		return nil, fmt.Errorf("failed to compute hash: %w", err)
	}
	return &SerializationChecksum{
		Hash:      hex.EncodeToString(hash.Sum(nil)),
		Timestamp: s.Timestamp.UTC().Format("2006-01-02T15:04:05.000Z"),
		Version:   1,
	}, nil
}

func (s *Snapshot) deterministicRepresentation() string {
	var buf bytes.Buffer

	fmt.Fprintf(&buf, "GAME:%s|%s|%s|%d|%d|%d|%d|%s|%s|%t\n",
		s.GameID, s.Status, s.Turn, s.Halfmove, s.Fullmove,
		s.WhiteTime.Milliseconds(), s.BlackTime.Milliseconds(),
		s.Winner, s.WinReason, s.Forbidden,
	)

	squares := make([]string, 0, len(s.Pieces))
	for sq := range s.Pieces {
		squares = append(squares, sq)
	}
	sort.Strings(squares)
	for _, sq := range squares {
		p := s.Pieces[sq]
		fmt.Fprintf(&buf, "PIECE:%s|%s|%s|%s|%t|%t|%s\n", sq, p.ID, p.Color, p.Kind, p.HasMoved, p.Marked, p.Flags)
	}

	// Effects keep registration order.
	for _, e := range s.Effects {
		fmt.Fprintf(&buf, "EFFECT:%s\n", e)
	}
	buf.WriteString("GREEN:" + strings.Join(s.Green, ",") + "\n")

	colors := make([]string, 0, len(s.Hands))
	for c := range s.Hands {
		colors = append(colors, c)
	}
	sort.Strings(colors)
	for _, c := range colors {
		fmt.Fprintf(&buf, "HAND:%s|%d|%s\n", c, s.DeckSizes[c], strings.Join(s.Hands[c], ","))
	}

	buf.WriteString("HISTORY:\n")
	for _, h := range s.History {
		buf.WriteString("  " + h + "\n")
	}
	return buf.String()
}

// VerifyChecksum reports whether the snapshot still matches expected.
func (s *Snapshot) VerifyChecksum(expected *SerializationChecksum) (bool, error) {
	computed, err := s.ComputeChecksum()
	if err != nil {
		return false, fmt.Errorf("failed to compute checksum: %w", err)
	}
	return computed.Hash == expected.Hash, nil
}

// SerializeToBytes gob encodes the snapshot.
func (s *Snapshot) SerializeToBytes() ([]byte, error) {
	var buf bytes.Buffer
	if err := gob.NewEncoder(&buf).Encode(s); err != nil {
		return nil, fmt.Errorf("failed to encode snapshot: %w", err)
	}
	return buf.Bytes(), nil
}

// DeserializeSnapshot decodes a snapshot produced by SerializeToBytes.
func DeserializeSnapshot(data []byte) (*Snapshot, error) {
	var s Snapshot
	if err := gob.NewDecoder(bytes.NewReader(data)).Decode(&s); err != nil {
		return nil, fmt.Errorf("failed to decode snapshot: %w", err)
	}
	return &s, nil
}
