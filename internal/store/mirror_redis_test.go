package store

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/park285/scuffed-chess-client/internal/domain"
	"github.com/park285/scuffed-chess-client/internal/fen"
	"github.com/redis/go-redis/v9"
)

func newTestMirror(t *testing.T) (*RedisMirror, *miniredis.Miniredis) {
	t.Helper()
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("miniredis: %v", err)
	}
	t.Cleanup(func() { mr.Close() })
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })
	return NewRedisMirror(rdb, "sess-1", nil), mr
}

// runMirror starts m's writer for the duration of the test.
func runMirror(t *testing.T, m *RedisMirror) {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	go m.Run(ctx)
	t.Cleanup(func() {
		cancel()
		<-m.Done()
	})
}

// waitMirror polls Load until ok accepts the mirrored state.
func waitMirror(t *testing.T, m *RedisMirror, ok func(*MirrorState) bool) *MirrorState {
	t.Helper()
	deadline := time.Now().Add(3 * time.Second)
	for {
		got, err := m.Load(context.Background())
		if err != nil {
			t.Fatalf("Load: %v", err)
		}
		if got != nil && ok(got) {
			return got
		}
		if time.Now().After(deadline) {
			t.Fatalf("mirror never caught up, last: %+v", got)
		}
		time.Sleep(10 * time.Millisecond)
	}
}

func TestMirrorFollowsStore(t *testing.T) {
	m, mr := newTestMirror(t)
	s := New()
	m.Attach(s)
	runMirror(t, m)

	s.SetConnectionStatus(true)
	if err := s.SetGameSnapshot(mustDecode(t, fen.Start)); err != nil {
		t.Fatalf("SetGameSnapshot: %v", err)
	}
	if err := s.SetPlayers(domain.Players{
		You:      &domain.Player{Username: "freddie", RemainingTime: 1000},
		Opponent: &domain.Player{Username: "hikaru", RemainingTime: 2000},
	}); err != nil {
		t.Fatalf("SetPlayers: %v", err)
	}
	if err := s.SetEndState(domain.EndTimeout); err != nil {
		t.Fatalf("SetEndState: %v", err)
	}

	got := waitMirror(t, m, func(ms *MirrorState) bool { return ms.EndState == domain.EndTimeout })
	if !got.Connected || got.FEN != fen.Start || got.EndState != domain.EndTimeout {
		t.Fatalf("unexpected mirror: %+v", got)
	}
	if got.Players.You == nil || got.Players.You.Username != "freddie" || got.Players.Opponent.RemainingTime != 2000 {
		t.Fatalf("unexpected players: %+v", got.Players)
	}
	if ttl := mr.TTL(m.keyState()); ttl <= 0 || ttl > ttlMirror {
		t.Fatalf("unexpected ttl: %v", ttl)
	}
}

func TestMirrorLoadEmpty(t *testing.T) {
	m, _ := newTestMirror(t)
	got, err := m.Load(context.Background())
	if err != nil || got != nil {
		t.Fatalf("expected nil state, got %+v err=%v", got, err)
	}
}

func TestMirrorPublishesEvents(t *testing.T) {
	m, _ := newTestMirror(t)
	ctx := context.Background()
	sub := m.Events(ctx)
	defer sub.Close()
	if _, err := sub.Receive(ctx); err != nil {
		t.Fatalf("subscribe: %v", err)
	}

	s := New()
	m.Attach(s)
	runMirror(t, m)
	if err := s.SetGameSnapshot(mustDecode(t, fen.Empty)); err != nil {
		t.Fatalf("SetGameSnapshot: %v", err)
	}

	select {
	case msg := <-sub.Channel():
		var ev mirrorEvent
		if err := json.Unmarshal([]byte(msg.Payload), &ev); err != nil {
			t.Fatalf("unmarshal: %v", err)
		}
		if ev.Change != ChangeGame || ev.FEN != fen.Empty {
			t.Fatalf("unexpected event: %+v", ev)
		}
	case <-time.After(2 * time.Second):
		t.Fatalf("no event published")
	}
}

func TestMirrorCountsNotifications(t *testing.T) {
	m, mr := newTestMirror(t)
	s := New()
	m.Attach(s)
	runMirror(t, m)
	s.EnqueueNotification(domain.Notification{Text: "a"})
	s.EnqueueNotification(domain.Notification{Text: "b"})
	waitMirror(t, m, func(ms *MirrorState) bool { return ms.Queued == 2 })
	if v, err := mr.Get(m.keyNotified()); err != nil || v != "2" {
		t.Fatalf("expected 2 queued, got %q err=%v", v, err)
	}
}

func TestMirrorDoesNotBlockMutations(t *testing.T) {
	m, mr := newTestMirror(t)
	s := New()
	m.Attach(s)
	runMirror(t, m)
	mr.Close()

	start := time.Now()
	for i := 0; i < 20; i++ {
		s.SetConnectionStatus(i%2 == 0)
		s.EnqueueNotification(domain.Notification{Text: "x"})
	}
	if d := time.Since(start); d > 500*time.Millisecond {
		t.Fatalf("mutations waited on redis: %s", d)
	}
}
