// Package session runs the outbound game flows: each one is a server
// request paired with the store mutations the client makes around it.
package session

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/park285/scuffed-chess-client/internal/domain"
	"github.com/park285/scuffed-chess-client/internal/store"
	"github.com/park285/scuffed-chess-client/internal/transport"
)

var (
	ErrNoGame        = errors.New("no active game")
	ErrNoUsername    = errors.New("username required")
	ErrAlreadyInGame = errors.New("already in a game")
)

// Commander is the server API the session drives.
type Commander interface {
	Create(ctx context.Context, username string) (string, error)
	Join(ctx context.Context, username, code string) (string, error)
	Move(ctx context.Context, code string, from, to transport.Coord, promotion domain.Class) (bool, error)
	ValidMoves(ctx context.Context, code string, sq transport.Coord) ([]transport.Coord, error)
	Leave(ctx context.Context, code string, isOpponent bool) (bool, error)
}

type Session struct {
	store    *store.Store
	cmds     Commander
	username string
	logger   *zap.Logger
}

func New(s *store.Store, cmds Commander, username string, logger *zap.Logger) *Session {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Session{store: s, cmds: cmds, username: strings.TrimSpace(username), logger: logger}
}

// Create opens a game as White and returns its code.
func (s *Session) Create(ctx context.Context) (string, error) {
	if err := s.ready(); err != nil {
		return "", err
	}
	code, err := s.cmds.Create(ctx, s.username)
	if err != nil {
		return "", err
	}
	s.enter(code, domain.White)
	return code, nil
}

// Join enters an existing game as Black.
func (s *Session) Join(ctx context.Context, code string) (string, error) {
	if err := s.ready(); err != nil {
		return "", err
	}
	code = strings.ToLower(strings.TrimSpace(code))
	if code == "" {
		return "", fmt.Errorf("join: %w", transport.ErrRefused)
	}
	joined, err := s.cmds.Join(ctx, s.username, code)
	if err != nil {
		return "", err
	}
	s.enter(joined, domain.Black)
	return joined, nil
}

func (s *Session) ready() error {
	if s.username == "" {
		return ErrNoUsername
	}
	if s.store.State().InGame {
		return ErrAlreadyInGame
	}
	return nil
}

func (s *Session) enter(code string, c domain.Color) {
	s.store.SetSession(c, code, true)
	s.logger.Info("session_entered", zap.String("game_code", code), zap.String("color", c.String()))
}

// Move applies from→to to the local board right away and then asks the
// server. The server's next board push overrides the local guess, so a
// refused move needs no rollback here.
func (s *Session) Move(ctx context.Context, from, to transport.Coord, promotion domain.Class) (bool, error) {
	code, err := s.activeCode()
	if err != nil {
		return false, err
	}
	if _, err := s.store.ApplyLocalMove(square(from), square(to)); err != nil {
		return false, err
	}
	ok, err := s.cmds.Move(ctx, code, from, to, promotion)
	if err != nil {
		return false, err
	}
	if !ok {
		s.logger.Debug("session_move_refused", zap.String("game_code", code),
			zap.String("from", square(from).Algebraic()), zap.String("to", square(to).Algebraic()))
	}
	return ok, nil
}

// ValidMoves lists the destinations the server allows for the piece at sq.
func (s *Session) ValidMoves(ctx context.Context, sq transport.Coord) ([]transport.Coord, error) {
	code, err := s.activeCode()
	if err != nil {
		return nil, err
	}
	return s.cmds.ValidMoves(ctx, code, sq)
}

// Leave quits the current game. Local session state is cleared even when
// the server request fails, since the server drops the game on disconnect.
func (s *Session) Leave(ctx context.Context) (bool, error) {
	st := s.store.State()
	if !st.InGame || st.GameCode == "" {
		return false, ErrNoGame
	}
	left, err := s.cmds.Leave(ctx, st.GameCode, st.Color == domain.Black)
	s.store.SetSession(st.Color, "", false)
	s.logger.Info("session_left", zap.String("game_code", st.GameCode), zap.Bool("acknowledged", left))
	return left, err
}

func (s *Session) activeCode() (string, error) {
	st := s.store.State()
	if !st.InGame || st.GameCode == "" {
		return "", ErrNoGame
	}
	return st.GameCode, nil
}

func square(c transport.Coord) domain.Square {
	return domain.Square{File: c.File, Rank: c.Rank}
}
