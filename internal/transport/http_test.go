package transport

import (
	"context"
	"net"
	"sync/atomic"
	"testing"

	"github.com/valyala/fasthttp"
	"github.com/valyala/fasthttp/fasthttputil"
)

func newInmemoryClient(t *testing.T, h fasthttp.RequestHandler) *HTTPClient {
	t.Helper()
	ln := fasthttputil.NewInmemoryListener()
	go func() { _ = fasthttp.Serve(ln, h) }()
	t.Cleanup(func() { _ = ln.Close() })
	return NewHTTPClient("http://rpc.test/", WithDialer(func(string) (net.Conn, error) { return ln.Dial() }))
}

func TestHTTPClientPostsArgs(t *testing.T) {
	var gotPath, gotBody, gotHeader string
	c := newInmemoryClient(t, func(ctx *fasthttp.RequestCtx) {
		gotPath = string(ctx.Path())
		gotBody = string(ctx.PostBody())
		gotHeader = string(ctx.Request.Header.Peek("X-Session"))
		ctx.SetContentType("application/json")
		ctx.SetBodyString(`"abcdef"`)
	})
	c.headers = func() map[string]string { return map[string]string{"X-Session": "s1", " ": "skip"} }

	res, err := c.Request(context.Background(), CmdJoin, "alice", "abcdef")
	if err != nil {
		t.Fatalf("request: %v", err)
	}
	if string(res) != `"abcdef"` {
		t.Fatalf("result = %s", res)
	}
	if gotPath != "/rpc/game:join" {
		t.Fatalf("path = %q", gotPath)
	}
	if gotBody != `["alice","abcdef"]` {
		t.Fatalf("body = %q", gotBody)
	}
	if gotHeader != "s1" {
		t.Fatalf("header = %q", gotHeader)
	}
}

func TestHTTPClientRetriesServerErrors(t *testing.T) {
	var calls int32
	c := newInmemoryClient(t, func(ctx *fasthttp.RequestCtx) {
		if atomic.AddInt32(&calls, 1) == 1 {
			ctx.SetStatusCode(fasthttp.StatusServiceUnavailable)
			return
		}
		ctx.SetBodyString("true")
	})

	res, err := c.Request(context.Background(), CmdLeave, "abcdef", false)
	if err != nil {
		t.Fatalf("request: %v", err)
	}
	if string(res) != "true" {
		t.Fatalf("result = %s", res)
	}
	if n := atomic.LoadInt32(&calls); n != 2 {
		t.Fatalf("calls = %d, want 2", n)
	}
}

func TestHTTPClientDoesNotRetryClientErrors(t *testing.T) {
	var calls int32
	c := newInmemoryClient(t, func(ctx *fasthttp.RequestCtx) {
		atomic.AddInt32(&calls, 1)
		ctx.SetStatusCode(fasthttp.StatusBadRequest)
		ctx.SetBodyString("bad args")
	})

	if _, err := c.Request(context.Background(), CmdMove, "abcdef"); err == nil {
		t.Fatalf("expected error")
	}
	if n := atomic.LoadInt32(&calls); n != 1 {
		t.Fatalf("calls = %d, want 1", n)
	}
}

func TestAutoEgressFallsBackWhenPushIsDown(t *testing.T) {
	c := newInmemoryClient(t, func(ctx *fasthttp.RequestCtx) {
		ctx.SetBodyString(`"ghijkl"`)
	})
	ws := NewWebSocket("ws://127.0.0.1:1/", 0, 0)
	e := NewEgress("auto", c, ws, nil)

	code, err := NewCommands(e, 0).Create(context.Background(), "bob")
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if code != "ghijkl" {
		t.Fatalf("code = %q", code)
	}
}

func TestEgressModes(t *testing.T) {
	if _, ok := NewEgress("http", nil, nil, nil).(*httpEgress); !ok {
		t.Fatalf("http mode")
	}
	if _, ok := NewEgress("ws", nil, nil, nil).(*wsEgress); !ok {
		t.Fatalf("ws mode")
	}
	if _, ok := NewEgress("", nil, nil, nil).(*wsEgress); !ok {
		t.Fatalf("default mode")
	}
	if _, err := NewEgress("http", nil, nil, nil).Request(context.Background(), CmdCreate); err != ErrUnavailable {
		t.Fatalf("nil http client err = %v", err)
	}
}
