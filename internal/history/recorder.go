package history

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/park285/scuffed-chess-client/internal/domain"
	"github.com/park285/scuffed-chess-client/internal/fen"
	"github.com/park285/scuffed-chess-client/internal/store"
)

// Recorder watches the store and saves a Record each time a game ends.
// Saving happens on its own goroutine so store subscribers never wait on
// the database.
type Recorder struct {
	repo    Repository
	session string
	logger  *zap.Logger
	now     func() time.Time

	mu        sync.Mutex
	ended     bool
	startedAt time.Time

	queue chan *Record
	done  chan struct{}
}

func NewRecorder(repo Repository, session string, logger *zap.Logger) *Recorder {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Recorder{
		repo:    repo,
		session: session,
		logger:  logger,
		now:     time.Now,
		queue:   make(chan *Record, 16),
		done:    make(chan struct{}),
	}
}

// Attach subscribes the recorder to s.
func (r *Recorder) Attach(s *store.Store) int {
	return s.Subscribe(r.observe)
}

func (r *Recorder) observe(st store.State, change store.Change) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if change == store.ChangeSession {
		switch {
		case st.InGame && r.startedAt.IsZero():
			r.startedAt = r.now()
		case !st.InGame:
			r.startedAt = time.Time{}
		}
	}
	if st.Game == nil {
		return
	}
	ended := st.Game.Ended
	if ended && !r.ended && st.GameCode != "" {
		rec := BuildRecord(st, r.session, r.startedAt, r.now())
		select {
		case r.queue <- rec:
		default:
			r.logger.Warn("history_queue_full", zap.String("game_code", rec.GameCode))
		}
	}
	r.ended = ended
}

// Run saves queued records until ctx is done, then drains what is left.
func (r *Recorder) Run(ctx context.Context) {
	defer close(r.done)
	for {
		select {
		case rec := <-r.queue:
			r.save(ctx, rec)
		case <-ctx.Done():
			for {
				select {
				case rec := <-r.queue:
					r.save(context.Background(), rec)
				default:
					return
				}
			}
		}
	}
}

// Done is closed when Run returns.
func (r *Recorder) Done() <-chan struct{} { return r.done }

func (r *Recorder) save(ctx context.Context, rec *Record) {
	sctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	id, err := r.repo.SaveGame(sctx, rec)
	if err != nil {
		r.logger.Warn("history_save_failed", zap.String("game_code", rec.GameCode), zap.Error(err))
		return
	}
	r.logger.Info("history_saved",
		zap.Int64("id", id),
		zap.String("game_code", rec.GameCode),
		zap.String("end_state", rec.EndState),
		zap.String("result", rec.Result),
	)
}

// BuildRecord captures st as a finished game.
func BuildRecord(st store.State, session string, started, ended time.Time) *Record {
	rec := &Record{
		SessionID: session,
		GameCode:  st.GameCode,
		Color:     st.Color.String(),
		StartedAt: started,
		EndedAt:   ended,
	}
	if st.You != nil {
		rec.You, rec.YouRemainingMs = st.You.Username, st.You.RemainingTime
	}
	if st.Opponent != nil {
		rec.Opponent, rec.OpponentRemainingMs = st.Opponent.Username, st.Opponent.RemainingTime
	}
	if st.Game != nil {
		rec.EndState = string(st.Game.EndState)
		rec.FinalFEN = fen.Encode(st.Game)
		rec.Result = Result(st.Game.EndState, st.Game.Turn, st.Color)
	} else {
		rec.Result = "*"
	}
	if !started.IsZero() && ended.After(started) {
		rec.DurationMs = ended.Sub(started).Milliseconds()
	}
	return rec
}

// Result scores a finished game. The side to move is the one that got
// mated or flagged; a disconnect end is only ever delivered to the player
// who stayed, so that side wins.
func Result(end domain.EndState, toMove, own domain.Color) string {
	switch end {
	case domain.EndStalemate:
		return "1/2-1/2"
	case domain.EndCheckmate, domain.EndTimeout:
		return winnerToken(toMove.Opponent())
	case domain.EndDisconnect:
		return winnerToken(own)
	default:
		return "*"
	}
}

func winnerToken(c domain.Color) string {
	if c == domain.White {
		return "1-0"
	}
	return "0-1"
}
