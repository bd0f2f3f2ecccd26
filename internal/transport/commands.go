package transport

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/park285/scuffed-chess-client/internal/domain"
)

// Outbound request names understood by the game server.
const (
	CmdCreate     = "game:create"
	CmdJoin       = "game:join"
	CmdMove       = "game:move"
	CmdValidMoves = "game:valid-moves"
	CmdLeave      = "game:leave"
)

// ErrRefused is returned when the server answers a create or join with an
// empty game code.
var ErrRefused = staticErr("request refused by server")

// Coord is a board coordinate as the server encodes it.
type Coord struct {
	File int `json:"file"`
	Rank int `json:"rank"`
}

// Commands wraps a Requester with the typed server API.
type Commands struct {
	r       Requester
	timeout time.Duration
}

func NewCommands(r Requester, timeout time.Duration) *Commands {
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &Commands{r: r, timeout: timeout}
}

// Create opens a new game and returns its code.
func (c *Commands) Create(ctx context.Context, username string) (string, error) {
	return c.code(ctx, CmdCreate, username)
}

// Join enters the game identified by code.
func (c *Commands) Join(ctx context.Context, username, code string) (string, error) {
	return c.code(ctx, CmdJoin, username, code)
}

// Move asks the server to play from→to. promotion is only read by the
// server when a pawn reaches the last rank. The server answers false for
// moves it does not accept; the authoritative board follows as a push event
// either way.
func (c *Commands) Move(ctx context.Context, code string, from, to Coord, promotion domain.Class) (bool, error) {
	var ok bool
	if err := c.call(ctx, &ok, CmdMove, code, from.File, from.Rank, to.File, to.Rank, int(promotion)); err != nil {
		return false, err
	}
	return ok, nil
}

// ValidMoves lists the destinations of the piece at sq.
func (c *Commands) ValidMoves(ctx context.Context, code string, sq Coord) ([]Coord, error) {
	var raw json.RawMessage
	if err := c.call(ctx, &raw, CmdValidMoves, code, sq.File, sq.Rank); err != nil {
		return nil, err
	}
	raw = unwrapString(raw)
	moves := []Coord{}
	if len(raw) == 0 || string(raw) == "null" {
		return moves, nil
	}
	if err := json.Unmarshal(raw, &moves); err != nil {
		return nil, fmt.Errorf("decode %s result: %w", CmdValidMoves, err)
	}
	return moves, nil
}

// Leave ends the client's participation in code.
func (c *Commands) Leave(ctx context.Context, code string, isOpponent bool) (bool, error) {
	var ok bool
	if err := c.call(ctx, &ok, CmdLeave, code, isOpponent); err != nil {
		return false, err
	}
	return ok, nil
}

func (c *Commands) code(ctx context.Context, event string, args ...any) (string, error) {
	var code string
	if err := c.call(ctx, &code, event, args...); err != nil {
		return "", err
	}
	code = strings.TrimSpace(code)
	if code == "" {
		return "", fmt.Errorf("%s: %w", event, ErrRefused)
	}
	return code, nil
}

func (c *Commands) call(ctx context.Context, out any, event string, args ...any) error {
	if c == nil || c.r == nil {
		return ErrUnavailable
	}
	if _, ok := ctx.Deadline(); !ok {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}
	res, err := c.r.Request(ctx, event, args...)
	if err != nil {
		return fmt.Errorf("%s: %w", event, err)
	}
	if err := json.Unmarshal(res, out); err != nil {
		return fmt.Errorf("decode %s result: %w", event, err)
	}
	return nil
}

// unwrapString returns the contents of raw when it is a JSON string. The
// server emits some structured results as serialized JSON text.
func unwrapString(raw json.RawMessage) json.RawMessage {
	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		return raw
	}
	return json.RawMessage(s)
}
