package store

import "github.com/park285/scuffed-chess-client/internal/domain"

// Change names which part of the state a committed mutation touched.
type Change string

const (
	ChangeConnection    Change = "connection"
	ChangeGame          Change = "game"
	ChangeEndState      Change = "end_state"
	ChangeLocalMove     Change = "local_move"
	ChangePlayers       Change = "players"
	ChangeNotifications Change = "notifications"
	ChangeSession       Change = "session"
)

// State is a point-in-time copy of everything the store owns. Readers may
// keep and modify it freely.
type State struct {
	Connected     bool
	Game          *domain.Snapshot
	You           *domain.Player
	Opponent      *domain.Player
	Notifications []domain.Notification

	Color    domain.Color
	GameCode string
	InGame   bool
}

// ChangeCallback observes committed transitions in commit order.
type ChangeCallback func(state State, change Change)

type subscriberEntry struct {
	id       int
	callback ChangeCallback
}
