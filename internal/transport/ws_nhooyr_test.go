package transport

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"nhooyr.io/websocket"
	"nhooyr.io/websocket/wsjson"
)

// newPushServer accepts one socket per connection and runs serve on it.
func newPushServer(t *testing.T, serve func(ctx context.Context, c *websocket.Conn)) string {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		c, err := websocket.Accept(w, r, nil)
		if err != nil {
			return
		}
		defer c.CloseNow()
		serve(r.Context(), c)
	}))
	t.Cleanup(srv.Close)
	return "ws" + strings.TrimPrefix(srv.URL, "http")
}

// drain reads until the client goes away.
func drain(ctx context.Context, c *websocket.Conn) {
	for {
		if _, _, err := c.Read(ctx); err != nil {
			return
		}
	}
}

func closeWS(t *testing.T, ws *WebSocket) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	if err := ws.Close(ctx); err != nil {
		t.Fatalf("close: %v", err)
	}
}

func TestWebSocketDeliversFramesInOrder(t *testing.T) {
	url := newPushServer(t, func(ctx context.Context, c *websocket.Conn) {
		for _, fen := range []string{"a", "b", "c"} {
			data, _ := json.Marshal(fen)
			if err := wsjson.Write(ctx, c, Frame{Event: "game:fen", Data: data}); err != nil {
				return
			}
		}
		drain(ctx, c)
	})

	ws := NewWebSocket(url, 0, 0)
	var mu sync.Mutex
	var got []string
	done := make(chan struct{})
	ws.OnFrame(func(f *Frame) {
		var s string
		_ = json.Unmarshal(f.Data, &s)
		mu.Lock()
		got = append(got, s)
		if len(got) == 3 {
			close(done)
		}
		mu.Unlock()
	})
	if err := ws.Connect(context.Background()); err != nil {
		t.Fatalf("connect: %v", err)
	}
	defer closeWS(t, ws)

	select {
	case <-done:
	case <-time.After(3 * time.Second):
		t.Fatalf("timed out waiting for frames")
	}
	mu.Lock()
	defer mu.Unlock()
	if strings.Join(got, "") != "abc" {
		t.Fatalf("order = %v", got)
	}
}

func TestWebSocketSkipsMalformedFrames(t *testing.T) {
	url := newPushServer(t, func(ctx context.Context, c *websocket.Conn) {
		_ = c.Write(ctx, websocket.MessageText, []byte(`{"event":"game:fen","data":"a"}`))
		_ = c.Write(ctx, websocket.MessageText, []byte(`{"event":"game:players","id":7,"data":{}}`))
		_ = c.Write(ctx, websocket.MessageText, []byte(`not json`))
		_ = c.Write(ctx, websocket.MessageBinary, []byte{0x01, 0x02})
		_ = c.Write(ctx, websocket.MessageText, []byte(`{"event":"game:fen","data":"c"}`))
		drain(ctx, c)
	})

	ws := NewWebSocket(url, 0, 0)
	var mu sync.Mutex
	var got []string
	var states []WebSocketState
	done := make(chan struct{})
	ws.OnStateChange(func(s WebSocketState) {
		mu.Lock()
		states = append(states, s)
		mu.Unlock()
	})
	ws.OnFrame(func(f *Frame) {
		var s string
		_ = json.Unmarshal(f.Data, &s)
		mu.Lock()
		got = append(got, s)
		if s == "c" {
			close(done)
		}
		mu.Unlock()
	})
	if err := ws.Connect(context.Background()); err != nil {
		t.Fatalf("connect: %v", err)
	}
	defer closeWS(t, ws)

	select {
	case <-done:
	case <-time.After(3 * time.Second):
		t.Fatalf("frame after garbage never arrived")
	}
	if ws.State() != WSStateConnected {
		t.Fatalf("state = %s, want connected", ws.State())
	}
	mu.Lock()
	defer mu.Unlock()
	if strings.Join(got, "") != "ac" {
		t.Fatalf("frames = %v", got)
	}
	for _, s := range states {
		if s == WSStateDisconnected {
			t.Fatalf("connection dropped on a bad frame: %v", states)
		}
	}
}

func TestWebSocketRequestResolvesAck(t *testing.T) {
	url := newPushServer(t, func(ctx context.Context, c *websocket.Conn) {
		var req Frame
		if err := wsjson.Read(ctx, c, &req); err != nil {
			return
		}
		var args []any
		_ = json.Unmarshal(req.Data, &args)
		if req.Event != CmdCreate || len(args) != 1 || args[0] != "alice" {
			return
		}
		// a push frame ahead of the ack must not satisfy the request
		_ = wsjson.Write(ctx, c, Frame{Event: "game:players", Data: json.RawMessage(`"{}"`)})
		_ = wsjson.Write(ctx, c, Frame{Event: EventAck, ID: "unrelated", Data: json.RawMessage(`"nope"`)})
		_ = wsjson.Write(ctx, c, Frame{Event: EventAck, ID: req.ID, Data: json.RawMessage(`"abcdef"`)})
		drain(ctx, c)
	})

	ws := NewWebSocket(url, 0, 0)
	if err := ws.Connect(context.Background()); err != nil {
		t.Fatalf("connect: %v", err)
	}
	defer closeWS(t, ws)

	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	code, err := NewCommands(ws, 0).Create(ctx, "alice")
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if code != "abcdef" {
		t.Fatalf("code = %q", code)
	}
}

func TestWebSocketStateCallbacks(t *testing.T) {
	url := newPushServer(t, func(ctx context.Context, c *websocket.Conn) { drain(ctx, c) })

	ws := NewWebSocket(url, 0, 0)
	var mu sync.Mutex
	var states []WebSocketState
	ws.OnStateChange(func(s WebSocketState) {
		mu.Lock()
		states = append(states, s)
		mu.Unlock()
	})
	if err := ws.Connect(context.Background()); err != nil {
		t.Fatalf("connect: %v", err)
	}
	if ws.State() != WSStateConnected {
		t.Fatalf("state = %s", ws.State())
	}
	closeWS(t, ws)

	mu.Lock()
	defer mu.Unlock()
	if len(states) < 3 || states[0] != WSStateConnecting || states[1] != WSStateConnected || states[len(states)-1] != WSStateClosed {
		t.Fatalf("states = %v", states)
	}
}

func TestWebSocketRequestWhileDisconnected(t *testing.T) {
	ws := NewWebSocket("ws://127.0.0.1:1/", 0, 0)
	_, err := ws.Request(context.Background(), CmdCreate, "alice")
	if !errors.Is(err, ErrNotConnected) {
		t.Fatalf("err = %v, want ErrNotConnected", err)
	}
}

func TestWebSocketConnectAfterClose(t *testing.T) {
	ws := NewWebSocket("ws://127.0.0.1:1/", 0, 0)
	closeWS(t, ws)
	if err := ws.Connect(context.Background()); !errors.Is(err, ErrClosed) {
		t.Fatalf("err = %v, want ErrClosed", err)
	}
}

func TestReconnectBackoff(t *testing.T) {
	ws := NewWebSocket("", 3, 50*time.Millisecond)
	if d := ws.reconnectBackoff(1); d != 50*time.Millisecond {
		t.Fatalf("attempt 1 = %s", d)
	}
	if d := ws.reconnectBackoff(3); d != 200*time.Millisecond {
		t.Fatalf("attempt 3 = %s", d)
	}
	ws.reconnectDelay = 0
	if d := ws.reconnectBackoff(2); d != 200*time.Millisecond {
		t.Fatalf("default attempt 2 = %s", d)
	}
}
