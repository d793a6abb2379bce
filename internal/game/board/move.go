package board

// Castle side tags carried in MoveMeta.Castle.
const (
	CastleKingside  = "K"
	CastleQueenside = "Q"
)

// MoveMeta carries variant-specific flags produced by the rule engine.
type MoveMeta struct {
	Castle           string `json:"castle,omitempty"`
	Mark             bool   `json:"mark,omitempty"`
	LeavingGreenTile bool   `json:"leaving_green_tile,omitempty"`
	Ranged           bool   `json:"ranged,omitempty"`
	Capture          bool   `json:"capture,omitempty"`
}

// Move describes a candidate or requested move. It is a value; applying it is
// the board's job.
type Move struct {
	From      Coordinate
	To        Coordinate
	PieceID   string
	Promotion Kind
	Meta      MoveMeta
}

// Same reports structural equality of from, to and promotion.
func (m Move) Same(o Move) bool {
	return m.From == o.From && m.To == o.To && m.Promotion == o.Promotion
}

// IsCapture reports whether the move removes an enemy piece.
func (m Move) IsCapture() bool {
	return m.Meta.Capture
}

func (m Move) String() string {
	s := m.From.Algebraic() + m.To.Algebraic()
	if m.Promotion != NoKind {
		s += "=" + m.Promotion.Symbol()
	}
	return s
}

// MoveView is the transport representation of a move.
type MoveView struct {
	From      string   `json:"from"`
	To        string   `json:"to"`
	PieceID   string   `json:"piece_id,omitempty"`
	Promotion string   `json:"promotion,omitempty"`
	Meta      MoveMeta `json:"metadata"`
}

// View converts the move for transport.
func (m Move) View() MoveView {
	v := MoveView{
		From:    m.From.Algebraic(),
		To:      m.To.Algebraic(),
		PieceID: m.PieceID,
		Meta:    m.Meta,
	}
	if m.Promotion != NoKind {
		v.Promotion = m.Promotion.Symbol()
	}
	return v
}

// ContainsMove reports whether moves holds a move structurally equal to m.
func ContainsMove(moves []Move, m Move) bool {
	for _, candidate := range moves {
		if candidate.Same(m) {
			return true
		}
	}
	return false
}

// FindMove returns the first move matching m structurally.
func FindMove(moves []Move, m Move) (Move, bool) {
	for _, candidate := range moves {
		if candidate.Same(m) {
			return candidate, true
		}
	}
	return Move{}, false
}
