package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/fatih/color"

	"github.com/park285/scuffed-chess-client/internal/domain"
	"github.com/park285/scuffed-chess-client/internal/fen"
	"github.com/park285/scuffed-chess-client/internal/session"
	"github.com/park285/scuffed-chess-client/internal/store"
	"github.com/park285/scuffed-chess-client/internal/transport"
)

var (
	errColor    = color.New(color.FgRed)
	noticeColor = color.New(color.FgYellow, color.Bold)
)

var errUsage = errors.New("usage: create | join <code> | move <from> <to> [q|r|b|n] | moves <square> | leave | state")

// console reads line commands and drives the session with them.
type console struct {
	sess  *session.Session
	store *store.Store
	out   io.Writer
}

func (c *console) run(ctx context.Context, in io.Reader) {
	sc := bufio.NewScanner(in)
	for sc.Scan() {
		if ctx.Err() != nil {
			return
		}
		line := strings.TrimSpace(sc.Text())
		if line == "" {
			continue
		}
		if err := c.exec(ctx, strings.Fields(line)); err != nil {
			errColor.Fprintf(c.out, "error: %v\n", err)
		}
	}
}

func (c *console) exec(ctx context.Context, args []string) error {
	switch strings.ToLower(args[0]) {
	case "create":
		code, err := c.sess.Create(ctx)
		if err != nil {
			return err
		}
		fmt.Fprintf(c.out, "created game %s, you play white\n", code)
	case "join":
		if len(args) != 2 {
			return errUsage
		}
		code, err := c.sess.Join(ctx, args[1])
		if err != nil {
			return err
		}
		fmt.Fprintf(c.out, "joined game %s, you play black\n", code)
	case "move":
		if len(args) < 3 || len(args) > 4 {
			return errUsage
		}
		from, to, err := parsePair(args[1], args[2])
		if err != nil {
			return err
		}
		promotion := domain.Queen
		if len(args) == 4 {
			if promotion, err = parsePromotion(args[3]); err != nil {
				return err
			}
		}
		ok, err := c.sess.Move(ctx, from, to, promotion)
		if err != nil {
			return err
		}
		if !ok {
			fmt.Fprintln(c.out, "move refused")
		}
	case "moves":
		if len(args) != 2 {
			return errUsage
		}
		sq, err := domain.ParseSquare(args[1])
		if err != nil {
			return err
		}
		moves, err := c.sess.ValidMoves(ctx, transport.Coord{File: sq.File, Rank: sq.Rank})
		if err != nil {
			return err
		}
		names := make([]string, 0, len(moves))
		for _, m := range moves {
			names = append(names, domain.Square{File: m.File, Rank: m.Rank}.Algebraic())
		}
		fmt.Fprintf(c.out, "%s: %s\n", args[1], strings.Join(names, " "))
	case "leave":
		if _, err := c.sess.Leave(ctx); err != nil {
			return err
		}
		fmt.Fprintln(c.out, "left game")
	case "state":
		fmt.Fprintln(c.out, describe(c.store.State()))
	default:
		return errUsage
	}
	return nil
}

func parsePair(a, b string) (transport.Coord, transport.Coord, error) {
	from, err := domain.ParseSquare(a)
	if err != nil {
		return transport.Coord{}, transport.Coord{}, err
	}
	to, err := domain.ParseSquare(b)
	if err != nil {
		return transport.Coord{}, transport.Coord{}, err
	}
	return transport.Coord{File: from.File, Rank: from.Rank}, transport.Coord{File: to.File, Rank: to.Rank}, nil
}

func parsePromotion(s string) (domain.Class, error) {
	switch strings.ToLower(s) {
	case "q":
		return domain.Queen, nil
	case "r":
		return domain.Rook, nil
	case "b":
		return domain.Bishop, nil
	case "n":
		return domain.Knight, nil
	default:
		return 0, fmt.Errorf("bad promotion %q", s)
	}
}

func describe(st store.State) string {
	var b strings.Builder
	fmt.Fprintf(&b, "connected=%t in_game=%t code=%q color=%s", st.Connected, st.InGame, st.GameCode, st.Color)
	if st.Game != nil {
		fmt.Fprintf(&b, "\nfen=%s", fen.Encode(st.Game))
		if st.Game.Ended {
			fmt.Fprintf(&b, "\nended=%s", st.Game.EndState)
		}
	}
	if st.You != nil && st.Opponent != nil {
		fmt.Fprintf(&b, "\nyou=%s (%dms) opponent=%s (%dms)", st.You.Username, st.You.RemainingTime, st.Opponent.Username, st.Opponent.RemainingTime)
	}
	return b.String()
}
