package domain

// SideCastling holds one side's castling rights.
type SideCastling struct {
	Kingside  bool `json:"kingside"`
	Queenside bool `json:"queenside"`
}

// CastlingRights for both sides.
type CastlingRights struct {
	White SideCastling `json:"white"`
	Black SideCastling `json:"black"`
}

// EndState is the single authoritative end-of-game tag.
type EndState string

const (
	EndNone       EndState = ""
	EndStalemate  EndState = "stalemate"
	EndCheckmate  EndState = "checkmate"
	EndTimeout    EndState = "timeout"
	EndDisconnect EndState = "disconnect"
)

// Valid reports whether the tag is one the server may send.
func (e EndState) Valid() bool {
	switch e {
	case EndNone, EndStalemate, EndCheckmate, EndTimeout, EndDisconnect:
		return true
	default:
		return false
	}
}

// Snapshot is one complete game state. It is replaced wholesale on every
// authoritative update.
type Snapshot struct {
	Board          Board          `json:"board"`
	Turn           Color          `json:"turn"`
	HalfmoveClock  uint           `json:"halfmoveClock"`
	FullmoveNumber uint           `json:"fullmoveNumber"`
	Castling       CastlingRights `json:"castlingRights"`
	Ended          bool           `json:"ended"`
	EndState       EndState       `json:"endState"`
}

// Clone deep-copies the snapshot.
func (s *Snapshot) Clone() *Snapshot {
	if s == nil {
		return nil
	}
	cp := *s
	cp.Board = s.Board.Clone()
	return &cp
}

// Equal compares snapshots by value.
func (s *Snapshot) Equal(o *Snapshot) bool {
	if s == nil || o == nil {
		return s == o
	}
	return s.Turn == o.Turn &&
		s.HalfmoveClock == o.HalfmoveClock &&
		s.FullmoveNumber == o.FullmoveNumber &&
		s.Castling == o.Castling &&
		s.Ended == o.Ended &&
		s.EndState == o.EndState &&
		s.Board.Equal(&o.Board)
}

// Player is one seat's metadata. RemainingTime is in milliseconds.
type Player struct {
	Username      string `json:"username"`
	RemainingTime int64  `json:"time"`
}

// Players is always assigned as a pair.
type Players struct {
	You      *Player `json:"you"`
	Opponent *Player `json:"opponent"`
}

// Notification is a user-visible message. DurationMs nil means the presenter default.
type Notification struct {
	ID         string `json:"id"`
	Text       string `json:"text"`
	DurationMs *int   `json:"duration,omitempty"`
}
