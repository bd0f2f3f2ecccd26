package session

import (
	"context"
	"errors"
	"testing"

	"github.com/park285/scuffed-chess-client/internal/domain"
	"github.com/park285/scuffed-chess-client/internal/fen"
	"github.com/park285/scuffed-chess-client/internal/store"
	"github.com/park285/scuffed-chess-client/internal/transport"
)

type fakeCommander struct {
	code      string
	moveOK    bool
	leaveErr  error
	moves     []transport.Coord
	lastLeave struct {
		code       string
		isOpponent bool
	}
	moveCalls int
}

func (f *fakeCommander) Create(_ context.Context, _ string) (string, error) {
	if f.code == "" {
		return "", transport.ErrRefused
	}
	return f.code, nil
}

func (f *fakeCommander) Join(_ context.Context, _ string, code string) (string, error) {
	if code != f.code {
		return "", transport.ErrRefused
	}
	return code, nil
}

func (f *fakeCommander) Move(context.Context, string, transport.Coord, transport.Coord, domain.Class) (bool, error) {
	f.moveCalls++
	return f.moveOK, nil
}

func (f *fakeCommander) ValidMoves(context.Context, string, transport.Coord) ([]transport.Coord, error) {
	return f.moves, nil
}

func (f *fakeCommander) Leave(_ context.Context, code string, isOpponent bool) (bool, error) {
	f.lastLeave.code, f.lastLeave.isOpponent = code, isOpponent
	return f.leaveErr == nil, f.leaveErr
}

func TestCreateSetsWhiteSession(t *testing.T) {
	st := store.New()
	s := New(st, &fakeCommander{code: "abcdef"}, "alice", nil)

	code, err := s.Create(context.Background())
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	got := st.State()
	if code != "abcdef" || got.GameCode != "abcdef" || !got.InGame || got.Color != domain.White {
		t.Fatalf("state = %+v", got)
	}
	if _, err := s.Create(context.Background()); !errors.Is(err, ErrAlreadyInGame) {
		t.Fatalf("second Create err = %v", err)
	}
}

func TestJoinSetsBlackSession(t *testing.T) {
	st := store.New()
	s := New(st, &fakeCommander{code: "abcdef"}, "bob", nil)
	var partial []store.State
	st.Subscribe(func(cur store.State, c store.Change) {
		if c == store.ChangeSession && !(cur.InGame && cur.GameCode == "abcdef" && cur.Color == domain.Black) {
			partial = append(partial, cur)
		}
	})

	if _, err := s.Join(context.Background(), " ABCDEF "); err != nil {
		t.Fatalf("Join: %v", err)
	}
	got := st.State()
	if got.Color != domain.Black || got.GameCode != "abcdef" || !got.InGame {
		t.Fatalf("state = %+v", got)
	}
	if len(partial) != 0 {
		t.Fatalf("half-entered session observed: %+v", partial)
	}
}

func TestJoinRefusedLeavesStateAlone(t *testing.T) {
	st := store.New()
	s := New(st, &fakeCommander{code: "abcdef"}, "bob", nil)

	if _, err := s.Join(context.Background(), "zzzzzz"); !errors.Is(err, transport.ErrRefused) {
		t.Fatalf("err = %v", err)
	}
	if got := st.State(); got.InGame || got.GameCode != "" {
		t.Fatalf("state = %+v", got)
	}
}

func TestUsernameRequired(t *testing.T) {
	s := New(store.New(), &fakeCommander{code: "abcdef"}, "  ", nil)
	if _, err := s.Create(context.Background()); !errors.Is(err, ErrNoUsername) {
		t.Fatalf("err = %v", err)
	}
}

func TestMoveAppliesLocallyFirst(t *testing.T) {
	st := store.New()
	snap, err := fen.Decode(fen.Start)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if err := st.SetGameSnapshot(snap); err != nil {
		t.Fatalf("SetGameSnapshot: %v", err)
	}
	cmds := &fakeCommander{code: "abcdef", moveOK: true}
	s := New(st, cmds, "alice", nil)
	if _, err := s.Create(context.Background()); err != nil {
		t.Fatalf("Create: %v", err)
	}

	ok, err := s.Move(context.Background(), transport.Coord{File: 4, Rank: 6}, transport.Coord{File: 4, Rank: 4}, domain.Queen)
	if err != nil || !ok {
		t.Fatalf("Move = %v, %v", ok, err)
	}
	board := st.Game().Board
	if board[4][6].ContainsPiece || !board[4][4].ContainsPiece || board[4][4].Piece.Class != domain.Pawn {
		t.Fatalf("local move not applied")
	}
	if cmds.moveCalls != 1 {
		t.Fatalf("move calls = %d", cmds.moveCalls)
	}
}

func TestMoveWithoutGame(t *testing.T) {
	s := New(store.New(), &fakeCommander{}, "alice", nil)
	if _, err := s.Move(context.Background(), transport.Coord{}, transport.Coord{File: 1}, domain.Queen); !errors.Is(err, ErrNoGame) {
		t.Fatalf("err = %v", err)
	}
	if _, err := s.ValidMoves(context.Background(), transport.Coord{}); !errors.Is(err, ErrNoGame) {
		t.Fatalf("err = %v", err)
	}
}

func TestMoveOutOfRangeIsRejected(t *testing.T) {
	st := store.New()
	cmds := &fakeCommander{code: "abcdef"}
	s := New(st, cmds, "alice", nil)
	if _, err := s.Create(context.Background()); err != nil {
		t.Fatalf("Create: %v", err)
	}
	_, err := s.Move(context.Background(), transport.Coord{File: 8}, transport.Coord{}, domain.Queen)
	if !errors.Is(err, store.ErrRejected) {
		t.Fatalf("err = %v", err)
	}
	if cmds.moveCalls != 0 {
		t.Fatalf("server was asked to play a rejected move")
	}
}

func TestLeaveClearsSession(t *testing.T) {
	st := store.New()
	cmds := &fakeCommander{code: "abcdef", leaveErr: transport.ErrNotConnected}
	s := New(st, cmds, "bob", nil)
	if _, err := s.Join(context.Background(), "abcdef"); err != nil {
		t.Fatalf("Join: %v", err)
	}

	if _, err := s.Leave(context.Background()); !errors.Is(err, transport.ErrNotConnected) {
		t.Fatalf("err = %v", err)
	}
	if cmds.lastLeave.code != "abcdef" || !cmds.lastLeave.isOpponent {
		t.Fatalf("leave args = %+v", cmds.lastLeave)
	}
	if got := st.State(); got.InGame || got.GameCode != "" {
		t.Fatalf("state = %+v", got)
	}
	if _, err := s.Leave(context.Background()); !errors.Is(err, ErrNoGame) {
		t.Fatalf("second Leave err = %v", err)
	}
}
