package game

// Status is the lifecycle state of a match.
type Status string

const (
	StatusWaiting    Status = "WAITING"
	StatusInProgress Status = "IN_PROGRESS"
	StatusCheck      Status = "CHECK"
	StatusCheckmate  Status = "CHECKMATE"
	StatusStalemate  Status = "STALEMATE"
	StatusResigned   Status = "RESIGNED"
	StatusDraw       Status = "DRAW"
	StatusTimeout    Status = "TIMEOUT"
	StatusForfeit    Status = "FORFEIT"
)

// Terminal reports whether the match is over.
func (s Status) Terminal() bool {
	switch s {
	case StatusCheckmate, StatusStalemate, StatusResigned, StatusDraw, StatusTimeout, StatusForfeit:
		return true
	default:
		return false
	}
}

// Live reports whether players may still act. A side in check is still
// playing.
func (s Status) Live() bool {
	return s == StatusInProgress || s == StatusCheck
}

func (s Status) String() string {
	return string(s)
}
