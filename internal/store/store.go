// Package store holds the client's single source of truth for game state.
package store

import (
	"sync"

	"github.com/google/uuid"
	"github.com/park285/scuffed-chess-client/internal/domain"
	"go.uber.org/zap"
)

// Store is the process-wide state container. All writes go through the
// named entry points below; each one validates first and then commits the
// whole transition under the write lock.
type Store struct {
	mu sync.RWMutex

	connected     bool
	game          *domain.Snapshot
	pendingEnd    domain.EndState
	you           *domain.Player
	opponent      *domain.Player
	notifications []domain.Notification

	color    domain.Color
	gameCode string
	inGame   bool

	// writeM orders commit plus subscriber delivery across writers.
	writeM sync.Mutex
	subs   []subscriberEntry
	subsM  sync.RWMutex
	nextID int

	logger *zap.Logger
}

type Option func(*Store)

func WithLogger(l *zap.Logger) Option {
	return func(s *Store) {
		if l != nil {
			s.logger = l
		}
	}
}

func New(opts ...Option) *Store {
	s := &Store{logger: zap.NewNop(), notifications: make([]domain.Notification, 0)}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// State returns a deep copy of the current state.
func (s *Store) State() State {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.copyLocked()
}

// Game returns a copy of the current snapshot, or nil before the first update.
func (s *Store) Game() *domain.Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.game.Clone()
}

func (s *Store) Connected() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.connected
}

func (s *Store) copyLocked() State {
	st := State{
		Connected:     s.connected,
		Game:          s.game.Clone(),
		You:           clonePlayer(s.you),
		Opponent:      clonePlayer(s.opponent),
		Notifications: append([]domain.Notification(nil), s.notifications...),
		Color:         s.color,
		GameCode:      s.gameCode,
		InGame:        s.inGame,
	}
	return st
}

func clonePlayer(p *domain.Player) *domain.Player {
	if p == nil {
		return nil
	}
	cp := *p
	return &cp
}

// commit runs fn under the write lock and then hands the resulting state to
// subscribers. fn returns false when nothing changed.
func (s *Store) commit(change Change, fn func() bool) {
	s.writeM.Lock()
	defer s.writeM.Unlock()

	s.mu.Lock()
	changed := fn()
	var st State
	if changed {
		st = s.copyLocked()
	}
	s.mu.Unlock()

	if !changed {
		return
	}
	s.subsM.RLock()
	subs := make([]subscriberEntry, len(s.subs))
	copy(subs, s.subs)
	s.subsM.RUnlock()
	for _, entry := range subs {
		if entry.callback != nil {
			entry.callback(st, change)
		}
	}
}

// Subscribe registers a callback for committed transitions. Callbacks run on
// the mutating goroutine and must not call back into mutation entry points.
func (s *Store) Subscribe(cb ChangeCallback) int {
	s.subsM.Lock()
	defer s.subsM.Unlock()
	s.nextID++
	s.subs = append(s.subs, subscriberEntry{id: s.nextID, callback: cb})
	return s.nextID
}

func (s *Store) Unsubscribe(id int) {
	s.subsM.Lock()
	defer s.subsM.Unlock()
	for i, entry := range s.subs {
		if entry.id == id {
			s.subs = append(s.subs[:i], s.subs[i+1:]...)
			break
		}
	}
}

// SetConnectionStatus always succeeds.
func (s *Store) SetConnectionStatus(connected bool) {
	s.commit(ChangeConnection, func() bool {
		s.connected = connected
		return true
	})
	s.logger.Debug("store_connection", zap.Bool("connected", connected))
}

// SetGameSnapshot replaces the whole snapshot. It overrides any optimistic
// local move applied since the previous snapshot. An end state received
// before the first snapshot is folded into this one.
func (s *Store) SetGameSnapshot(snap *domain.Snapshot) error {
	if snap == nil {
		return reject("SetGameSnapshot", "snapshot is nil")
	}
	if !snap.Board.Consistent() {
		return reject("SetGameSnapshot", "square occupancy flags disagree with pieces")
	}
	if !snap.EndState.Valid() {
		return reject("SetGameSnapshot", "unknown end state %q", snap.EndState)
	}
	next := snap.Clone()
	s.commit(ChangeGame, func() bool {
		if s.pendingEnd != domain.EndNone && next.EndState == domain.EndNone {
			next.EndState, next.Ended = s.pendingEnd, true
		}
		s.pendingEnd = domain.EndNone
		s.game = next
		return true
	})
	s.logger.Debug("store_game", zap.String("turn", next.Turn.String()), zap.Uint("fullmove", next.FullmoveNumber))
	return nil
}

// SetPlayers assigns both seats together or neither.
func (s *Store) SetPlayers(players domain.Players) error {
	if players.You == nil || players.Opponent == nil {
		return reject("SetPlayers", "both players are required")
	}
	you, opp := clonePlayer(players.You), clonePlayer(players.Opponent)
	s.commit(ChangePlayers, func() bool {
		s.you, s.opponent = you, opp
		return true
	})
	return nil
}

// SetEndState updates only the end fields of the current snapshot. Before
// any snapshot exists the tag is held and applied by the next
// SetGameSnapshot.
func (s *Store) SetEndState(tag domain.EndState) error {
	if !tag.Valid() {
		return reject("SetEndState", "unknown end state %q", tag)
	}
	s.commit(ChangeEndState, func() bool {
		if s.game == nil {
			s.pendingEnd = tag
			return false
		}
		if s.game.EndState == tag && s.game.Ended == (tag != domain.EndNone) {
			return false
		}
		s.game.EndState = tag
		s.game.Ended = tag != domain.EndNone
		return true
	})
	if tag != domain.EndNone {
		s.logger.Info("store_end_state", zap.String("end_state", string(tag)))
	}
	return nil
}

// ApplyLocalMove optimistically moves the piece on from to to without any
// legality check. It reports whether a piece was moved; an empty source
// square is a silent no-op.
func (s *Store) ApplyLocalMove(from, to domain.Square) (bool, error) {
	if !from.InBounds() || !to.InBounds() {
		return false, reject("ApplyLocalMove", "square out of range: %s -> %s", from.Algebraic(), to.Algebraic())
	}
	moved := false
	s.commit(ChangeLocalMove, func() bool {
		if s.game == nil {
			return false
		}
		if from.File == to.File && from.Rank == to.Rank {
			return false
		}
		src := &s.game.Board[from.File][from.Rank]
		if src.Piece == nil {
			return false
		}
		dst := &s.game.Board[to.File][to.Rank]
		dst.Piece, dst.ContainsPiece = src.Piece, true
		src.Piece, src.ContainsPiece = nil, false
		moved = true
		return true
	})
	if moved {
		s.logger.Debug("store_local_move", zap.String("from", from.Algebraic()), zap.String("to", to.Algebraic()))
	}
	return moved, nil
}

// EnqueueNotification appends to the queue and returns the notification ID.
func (s *Store) EnqueueNotification(n domain.Notification) string {
	if n.ID == "" {
		n.ID = uuid.NewString()
	}
	if n.DurationMs != nil {
		d := *n.DurationMs
		n.DurationMs = &d
	}
	s.commit(ChangeNotifications, func() bool {
		s.notifications = append(s.notifications, n)
		return true
	})
	return n.ID
}

// DequeueNotification pops the front of the queue. ok is false when empty.
func (s *Store) DequeueNotification() (n domain.Notification, ok bool) {
	s.commit(ChangeNotifications, func() bool {
		if len(s.notifications) == 0 {
			return false
		}
		n, ok = s.notifications[0], true
		s.notifications = s.notifications[1:]
		return true
	})
	return n, ok
}

func (s *Store) SetColor(c domain.Color) {
	s.commit(ChangeSession, func() bool {
		s.color = c
		return true
	})
}

func (s *Store) SetGameCode(code string) {
	s.commit(ChangeSession, func() bool {
		s.gameCode = code
		return true
	})
}

func (s *Store) SetInGame(inGame bool) {
	s.commit(ChangeSession, func() bool {
		s.inGame = inGame
		return true
	})
}

// SetSession sets color, game code and in-game together in one commit.
func (s *Store) SetSession(c domain.Color, code string, inGame bool) {
	s.commit(ChangeSession, func() bool {
		s.color, s.gameCode, s.inGame = c, code, inGame
		return true
	})
}
