package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"strconv"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/park285/scuffed-chess-client/internal/fen"
	"github.com/park285/scuffed-chess-client/internal/history"
	"github.com/park285/scuffed-chess-client/internal/msgcat"
	"github.com/park285/scuffed-chess-client/internal/router"
	"github.com/park285/scuffed-chess-client/internal/store"
	"github.com/park285/scuffed-chess-client/internal/transport"
)

// synccheck connects to the server, feeds every pushed frame through the
// router into a scratch store for a short window and prints the result.
func main() {
	wsURL := os.Getenv("SERVER_WS_URL")
	baseURL := os.Getenv("SERVER_BASE_URL")
	window := 10 * time.Second
	if v, err := strconv.Atoi(os.Getenv("SYNCCHECK_SECONDS")); err == nil && v > 0 {
		window = time.Duration(v) * time.Second
	}

	if baseURL != "" {
		client := transport.NewHTTPClient(baseURL, transport.WithTimeout(8*time.Second), transport.WithRetry(1))
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		moves, err := transport.NewCommands(client, 0).ValidMoves(ctx, "", transport.Coord{})
		cancel()
		if err != nil {
			log.Printf("http check error: %v", err)
		} else {
			log.Printf("http check ok: %d moves", len(moves))
		}
	}

	if wsURL == "" {
		log.Println("SERVER_WS_URL not set; skipping push check")
		return
	}

	st := store.New()
	rt := router.New(st, router.WithCatalog(msgcat.MustDefault()))

	// with REDIS_URL set the scratch store is mirrored under its own session
	// and the mirror is read back at the end
	var (
		mirror *store.RedisMirror
		events atomic.Int64
	)
	mctx, mcancel := context.WithCancel(context.Background())
	defer mcancel()
	if redisURL := os.Getenv("REDIS_URL"); redisURL != "" {
		opt, err := redis.ParseURL(redisURL)
		if err != nil {
			log.Printf("redis url error: %v", err)
		} else {
			rdb := redis.NewClient(opt)
			defer rdb.Close()
			mirror = store.NewRedisMirror(rdb, "synccheck-"+uuid.NewString(), nil)
			mirror.Attach(st)
			go mirror.Run(mctx)
			sub := mirror.Events(mctx)
			defer sub.Close()
			go func() {
				for range sub.Channel() {
					events.Add(1)
				}
			}()
		}
	}

	ws := transport.NewWebSocket(wsURL, 0, time.Second)
	ws.OnStateChange(func(state transport.WebSocketState) {
		log.Printf("ws state: %s", state)
		switch state {
		case transport.WSStateConnected:
			rt.HandleConnection(true)
		case transport.WSStateDisconnected, transport.WSStateFailed:
			rt.HandleConnection(false)
		}
	})
	ws.OnFrame(func(f *transport.Frame) {
		applied := rt.Dispatch(f.Event, f.Data)
		fmt.Printf("frame event=%s applied=%t data=%s\n", f.Event, applied, f.Data)
	})

	cctx, ccancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer ccancel()
	if err := ws.Connect(cctx); err != nil {
		log.Printf("ws connect error: %v", err)
		return
	}

	<-time.After(window)
	_ = ws.Close(context.Background())

	s := st.State()
	fmt.Printf("connected=%t notifications=%d\n", s.Connected, len(s.Notifications))
	if s.Game != nil {
		fmt.Printf("fen=%s ended=%t end_state=%q\n", fen.Encode(s.Game), s.Game.Ended, s.Game.EndState)
	}
	if s.You != nil && s.Opponent != nil {
		fmt.Printf("you=%s opponent=%s\n", s.You.Username, s.Opponent.Username)
	}
	for _, n := range s.Notifications {
		fmt.Printf("notification: %s\n", n.Text)
	}

	if mirror != nil {
		reportMirror(mctx, mirror, s, &events)
	}
	if dbURL := os.Getenv("DATABASE_URL"); dbURL != "" {
		reportHistory(dbURL)
	}
}

func reportMirror(ctx context.Context, m *store.RedisMirror, s store.State, events *atomic.Int64) {
	wctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	// the worker may have skipped intermediate states; write the final one
	if err := m.Write(wctx, s, store.ChangeGame); err != nil {
		log.Printf("mirror write error: %v", err)
		return
	}
	ms, err := m.Load(wctx)
	if err != nil {
		log.Printf("mirror load error: %v", err)
		return
	}
	if ms == nil {
		log.Println("mirror empty")
		return
	}
	fmt.Printf("mirror connected=%t fen=%s end_state=%q queued=%d events=%d\n",
		ms.Connected, ms.FEN, ms.EndState, ms.Queued, events.Load())
}

func reportHistory(dbURL string) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	repo, err := history.Open(ctx, dbURL)
	if err != nil {
		log.Printf("history open error: %v", err)
		return
	}
	defer repo.Close()
	games, err := repo.RecentGames(ctx, 5)
	if err != nil {
		log.Printf("history read error: %v", err)
		return
	}
	fmt.Printf("recent games: %d\n", len(games))
	for _, g := range games {
		fmt.Printf("  %s %s %s %s\n", g.EndedAt.Format(time.RFC3339), g.GameCode, g.EndState, g.Result)
	}
}
