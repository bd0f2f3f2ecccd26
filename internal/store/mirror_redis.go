package store

import (
	"context"
	"encoding/json"
	"errors"
	"strconv"
	"strings"
	"time"

	"github.com/park285/scuffed-chess-client/internal/domain"
	"github.com/park285/scuffed-chess-client/internal/fen"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

const (
	ttlMirror      = 24 * time.Hour
	mirrorDeadline = 2 * time.Second
)

// RedisMirror copies committed states into Redis so display surfaces in
// other processes can follow the same game. Writes happen on Run's
// goroutine; when Redis falls behind only the latest state is written.
type RedisMirror struct {
	rdb     *redis.Client
	session string
	logger  *zap.Logger
	latest  chan mirrorJob
	done    chan struct{}
}

type mirrorJob struct {
	st     State
	change Change
}

// MirrorState is what RedisMirror.Load reads back.
type MirrorState struct {
	Connected bool
	FEN       string
	EndState  domain.EndState
	Players   domain.Players
	GameCode  string
	InGame    bool
	Queued    int
}

// mirrorEvent is published on the events channel after each write.
type mirrorEvent struct {
	Change Change `json:"change"`
	FEN    string `json:"fen,omitempty"`
	At     int64  `json:"at"`
}

func NewRedisMirror(rdb *redis.Client, session string, logger *zap.Logger) *RedisMirror {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &RedisMirror{
		rdb:     rdb,
		session: strings.TrimSpace(session),
		logger:  logger,
		latest:  make(chan mirrorJob, 1),
		done:    make(chan struct{}),
	}
}

func (m *RedisMirror) keyState() string    { return "client:" + m.session + ":state" }
func (m *RedisMirror) keyEvents() string   { return "client:" + m.session + ":events" }
func (m *RedisMirror) keyNotified() string { return "client:" + m.session + ":notifications" }

// Attach subscribes the mirror to s and returns the subscription id. The
// callback only queues the state; Run does the I/O.
func (m *RedisMirror) Attach(s *Store) int {
	return s.Subscribe(func(st State, c Change) {
		m.offer(mirrorJob{st: st, change: c})
	})
}

func (m *RedisMirror) offer(j mirrorJob) {
	for {
		select {
		case m.latest <- j:
			return
		default:
		}
		select {
		case <-m.latest:
		default:
		}
	}
}

// Run writes queued states until ctx is done.
func (m *RedisMirror) Run(ctx context.Context) {
	defer close(m.done)
	for {
		select {
		case <-ctx.Done():
			return
		case j := <-m.latest:
			wctx, cancel := context.WithTimeout(ctx, mirrorDeadline)
			if err := m.Write(wctx, j.st, j.change); err != nil {
				m.logger.Warn("mirror_write_error", zap.String("session", m.session), zap.String("change", string(j.change)), zap.Error(err))
			}
			cancel()
		}
	}
}

// Done is closed when Run returns.
func (m *RedisMirror) Done() <-chan struct{} { return m.done }

// Write persists the whole of st, so a skipped intermediate state loses
// nothing but its event. The notification queue itself stays local; only
// its length is mirrored.
func (m *RedisMirror) Write(ctx context.Context, st State, c Change) error {
	fields := map[string]any{
		"connected": strconv.FormatBool(st.Connected),
		"game_code": st.GameCode,
		"in_game":   strconv.FormatBool(st.InGame),
		"color":     st.Color.String(),
	}
	encoded := ""
	if st.Game != nil {
		encoded = fen.Encode(st.Game)
		fields["fen"] = encoded
		fields["end_state"] = string(st.Game.EndState)
	}
	if st.You != nil && st.Opponent != nil {
		raw, err := json.Marshal(domain.Players{You: st.You, Opponent: st.Opponent})
		if err != nil {
			return err
		}
		fields["players"] = string(raw)
	}
	ev, err := json.Marshal(mirrorEvent{Change: c, FEN: encoded, At: time.Now().UnixMilli()})
	if err != nil {
		return err
	}

	pipe := m.rdb.TxPipeline()
	pipe.HSet(ctx, m.keyState(), fields)
	pipe.Expire(ctx, m.keyState(), ttlMirror)
	pipe.Set(ctx, m.keyNotified(), len(st.Notifications), ttlMirror)
	if _, err := pipe.Exec(ctx); err != nil {
		return err
	}
	return m.rdb.Publish(ctx, m.keyEvents(), ev).Err()
}

// Load reads the mirrored state. It returns nil when nothing was mirrored.
func (m *RedisMirror) Load(ctx context.Context) (*MirrorState, error) {
	h, err := m.rdb.HGetAll(ctx, m.keyState()).Result()
	if err != nil {
		return nil, err
	}
	if len(h) == 0 {
		return nil, nil
	}
	out := &MirrorState{
		FEN:      h["fen"],
		EndState: domain.EndState(h["end_state"]),
		GameCode: h["game_code"],
	}
	out.Connected, _ = strconv.ParseBool(h["connected"])
	out.InGame, _ = strconv.ParseBool(h["in_game"])
	queued, err := m.rdb.Get(ctx, m.keyNotified()).Int()
	if err != nil && !errors.Is(err, redis.Nil) {
		return nil, err
	}
	out.Queued = queued
	if raw := h["players"]; raw != "" {
		if err := json.Unmarshal([]byte(raw), &out.Players); err != nil {
			return nil, err
		}
	}
	return out, nil
}

// Events subscribes to mirrored change events.
func (m *RedisMirror) Events(ctx context.Context) *redis.PubSub {
	return m.rdb.Subscribe(ctx, m.keyEvents())
}
