package history

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	_ "github.com/lib/pq"
)

var ErrInvalidRecord = errors.New("invalid game record")

type Repository interface {
	SaveGame(ctx context.Context, rec *Record) (int64, error)
	RecentGames(ctx context.Context, limit int) ([]*Record, error)
	Close() error
}

type pgRepository struct {
	db *sql.DB
}

// Open connects to Postgres and makes sure the table exists. An empty
// databaseURL selects the in-memory repository.
func Open(ctx context.Context, databaseURL string) (Repository, error) {
	if strings.TrimSpace(databaseURL) == "" {
		return NewMemoryRepository(), nil
	}
	db, err := sql.Open("postgres", databaseURL)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(4)
	db.SetMaxIdleConns(2)
	db.SetConnMaxLifetime(30 * time.Minute)

	pctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := db.PingContext(pctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}
	r := &pgRepository{db: db}
	if err := r.ensureSchema(pctx); err != nil {
		_ = db.Close()
		return nil, err
	}
	return r, nil
}

const schema = `
	CREATE TABLE IF NOT EXISTS client_games (
		id                    BIGSERIAL PRIMARY KEY,
		session_id            TEXT NOT NULL,
		game_code             TEXT NOT NULL,
		color                 TEXT NOT NULL,
		you_name              TEXT NOT NULL DEFAULT '',
		opponent_name         TEXT NOT NULL DEFAULT '',
		you_remaining_ms      BIGINT NOT NULL DEFAULT 0,
		opponent_remaining_ms BIGINT NOT NULL DEFAULT 0,
		end_state             TEXT NOT NULL,
		result                TEXT NOT NULL,
		final_fen             TEXT NOT NULL,
		started_at            TIMESTAMPTZ,
		ended_at              TIMESTAMPTZ NOT NULL,
		duration_ms           BIGINT NOT NULL DEFAULT 0,
		UNIQUE (session_id, game_code)
	)`

func (r *pgRepository) ensureSchema(ctx context.Context) error {
	if _, err := r.db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("create client_games: %w", err)
	}
	return nil
}

func (r *pgRepository) Close() error {
	if r == nil || r.db == nil {
		return nil
	}
	return r.db.Close()
}

// SaveGame upserts rec keyed by session and game code.
func (r *pgRepository) SaveGame(ctx context.Context, rec *Record) (int64, error) {
	if err := validate(rec); err != nil {
		return 0, err
	}

	const query = `
		INSERT INTO client_games (
			session_id, game_code, color,
			you_name, opponent_name, you_remaining_ms, opponent_remaining_ms,
			end_state, result, final_fen,
			started_at, ended_at, duration_ms
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
		ON CONFLICT (session_id, game_code) DO UPDATE SET
			color=EXCLUDED.color,
			you_name=EXCLUDED.you_name,
			opponent_name=EXCLUDED.opponent_name,
			you_remaining_ms=EXCLUDED.you_remaining_ms,
			opponent_remaining_ms=EXCLUDED.opponent_remaining_ms,
			end_state=EXCLUDED.end_state,
			result=EXCLUDED.result,
			final_fen=EXCLUDED.final_fen,
			started_at=EXCLUDED.started_at,
			ended_at=EXCLUDED.ended_at,
			duration_ms=EXCLUDED.duration_ms
		RETURNING id`

	var started sql.NullTime
	if !rec.StartedAt.IsZero() {
		started = sql.NullTime{Time: rec.StartedAt, Valid: true}
	}
	var id int64
	err := r.db.QueryRowContext(ctx, query,
		rec.SessionID, rec.GameCode, rec.Color,
		rec.You, rec.Opponent, rec.YouRemainingMs, rec.OpponentRemainingMs,
		rec.EndState, rec.Result, rec.FinalFEN,
		started, rec.EndedAt, rec.DurationMs,
	).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("upsert client_games: %w", err)
	}
	return id, nil
}

func (r *pgRepository) RecentGames(ctx context.Context, limit int) ([]*Record, error) {
	if limit <= 0 {
		limit = 10
	}
	const query = `
		SELECT id, session_id, game_code, color, you_name, opponent_name,
			you_remaining_ms, opponent_remaining_ms, end_state, result, final_fen,
			started_at, ended_at, duration_ms
		FROM client_games
		ORDER BY ended_at DESC, id DESC
		LIMIT $1`

	rows, err := r.db.QueryContext(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("query client_games: %w", err)
	}
	defer rows.Close()

	out := make([]*Record, 0, limit)
	for rows.Next() {
		rec := &Record{}
		var started sql.NullTime
		if err := rows.Scan(
			&rec.ID, &rec.SessionID, &rec.GameCode, &rec.Color, &rec.You, &rec.Opponent,
			&rec.YouRemainingMs, &rec.OpponentRemainingMs, &rec.EndState, &rec.Result, &rec.FinalFEN,
			&started, &rec.EndedAt, &rec.DurationMs,
		); err != nil {
			return nil, fmt.Errorf("scan client_games: %w", err)
		}
		if started.Valid {
			rec.StartedAt = started.Time
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

func validate(rec *Record) error {
	if rec == nil {
		return ErrInvalidRecord
	}
	if strings.TrimSpace(rec.SessionID) == "" || strings.TrimSpace(rec.GameCode) == "" {
		return fmt.Errorf("%w: session and game code required", ErrInvalidRecord)
	}
	if rec.EndedAt.IsZero() {
		return fmt.Errorf("%w: missing end time", ErrInvalidRecord)
	}
	return nil
}
