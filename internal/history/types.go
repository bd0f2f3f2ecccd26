// Package history keeps a record of every game the client saw finish.
package history

import "time"

// Record is one finished game from this client's point of view. Clocks are
// the last values the server pushed.
type Record struct {
	ID                  int64
	SessionID           string
	GameCode            string
	Color               string // side this client played
	You                 string
	Opponent            string
	YouRemainingMs      int64
	OpponentRemainingMs int64
	EndState            string
	Result              string // "1-0", "0-1", "1/2-1/2" or "*"
	FinalFEN            string
	StartedAt           time.Time
	EndedAt             time.Time
	DurationMs          int64
}
