// Package router maps inbound server events onto store mutations.
package router

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/park285/scuffed-chess-client/internal/domain"
	"github.com/park285/scuffed-chess-client/internal/fen"
	"github.com/park285/scuffed-chess-client/internal/msgcat"
	"github.com/park285/scuffed-chess-client/internal/store"
	"go.uber.org/zap"
)

// Wire event names.
const (
	EventConnect        = "connect"
	EventDisconnect     = "disconnect"
	EventBoardUpdate    = "game:fen"
	EventPlayersUpdate  = "game:players"
	EventEndStateUpdate = "game:end-state"
)

// Mutator is the part of the store the router writes to.
type Mutator interface {
	SetConnectionStatus(connected bool)
	SetGameSnapshot(snap *domain.Snapshot) error
	SetPlayers(players domain.Players) error
	SetEndState(tag domain.EndState) error
	EnqueueNotification(n domain.Notification) string
}

type handlerFunc func(payload json.RawMessage) error

type route struct {
	handle handlerFunc
	// notifyKey is the catalog key shown to the user when handle fails.
	notifyKey string
	fallback  string
	// diagnostic routes also log the raw error at warn level.
	diagnostic bool
}

// Router holds no state of its own beyond the dispatch table.
type Router struct {
	store   Mutator
	catalog *msgcat.Catalog
	logger  *zap.Logger
	toastMs int
	table   map[string]route
}

type Option func(*Router)

func WithLogger(l *zap.Logger) Option {
	return func(r *Router) {
		if l != nil {
			r.logger = l
		}
	}
}

func WithCatalog(c *msgcat.Catalog) Option {
	return func(r *Router) { r.catalog = c }
}

// WithToastDuration sets the display duration attached to failure notifications.
func WithToastDuration(ms int) Option {
	return func(r *Router) { r.toastMs = ms }
}

func New(m Mutator, opts ...Option) *Router {
	r := &Router{store: m, logger: zap.NewNop(), toastMs: 2000}
	for _, opt := range opts {
		opt(r)
	}
	r.table = map[string]route{
		EventConnect: {handle: func(json.RawMessage) error {
			r.store.SetConnectionStatus(true)
			return nil
		}},
		EventDisconnect: {handle: func(json.RawMessage) error {
			r.store.SetConnectionStatus(false)
			return nil
		}},
		EventBoardUpdate: {
			handle:    r.boardUpdate,
			notifyKey: "sync.error.board",
			fallback:  "Error while parsing game data.",
		},
		EventPlayersUpdate: {
			handle:     r.playersUpdate,
			notifyKey:  "sync.error.players",
			fallback:   "Error while parsing players data.",
			diagnostic: true,
		},
		EventEndStateUpdate: {
			handle:     r.endStateUpdate,
			notifyKey:  "sync.error.end_state",
			fallback:   "Error while parsing end state data.",
			diagnostic: true,
		},
	}
	return r
}

// Dispatch routes one inbound event. It reports whether the mutation was
// applied; failures are contained here and surfaced as a notification.
// Unknown event names are ignored.
func (r *Router) Dispatch(name string, payload json.RawMessage) bool {
	rt, ok := r.table[name]
	if !ok {
		r.logger.Debug("sync_event_ignored", zap.String("event", name))
		return false
	}
	err := r.isolate(rt.handle, payload)
	if err == nil {
		return true
	}
	r.fail(name, rt, payload, err)
	return false
}

// HandleConnection is the transport status observer hook.
func (r *Router) HandleConnection(connected bool) {
	if connected {
		r.Dispatch(EventConnect, nil)
		return
	}
	r.Dispatch(EventDisconnect, nil)
}

func (r *Router) isolate(h handlerFunc, payload json.RawMessage) (err error) {
	defer func() {
		if rec := recover(); rec != nil {
			err = fmt.Errorf("handler panic: %v", rec)
		}
	}()
	return h(payload)
}

func (r *Router) fail(name string, rt route, payload json.RawMessage, err error) {
	text := r.catalog.Text(rt.notifyKey, nil, "")
	if text == "" {
		text = r.catalog.Text("sync.error.generic", map[string]string{"Channel": name}, rt.fallback)
	}
	if text == "" {
		text = fmt.Sprintf("Error while handling %s update.", name)
	}
	d := r.toastMs
	n := domain.Notification{Text: text}
	if d > 0 {
		n.DurationMs = &d
	}
	r.store.EnqueueNotification(n)

	fields := []zap.Field{zap.String("event", name), zap.String("kind", errorKind(err)), zap.Error(err)}
	if rt.diagnostic {
		r.logger.Warn("sync_event_error", append(fields, zap.String("payload", truncate(string(payload), 256)))...)
		return
	}
	r.logger.Debug("sync_event_error", fields...)
}

func (r *Router) boardUpdate(payload json.RawMessage) error {
	raw, err := unquote(EventBoardUpdate, payload)
	if err != nil {
		return err
	}
	snap, err := fen.Decode(raw)
	if err != nil {
		return err
	}
	return r.store.SetGameSnapshot(snap)
}

type wirePlayers struct {
	You      *domain.Player `json:"you"`
	Opponent *domain.Player `json:"opponent"`
}

// playersUpdate accepts the object directly or, as the server sends it, a
// JSON string holding the object.
func (r *Router) playersUpdate(payload json.RawMessage) error {
	body := []byte(strings.TrimSpace(string(payload)))
	if len(body) > 0 && body[0] == '"' {
		s, err := unquote(EventPlayersUpdate, payload)
		if err != nil {
			return err
		}
		body = []byte(s)
	}
	var p wirePlayers
	if err := json.Unmarshal(body, &p); err != nil {
		return &ParseError{Channel: EventPlayersUpdate, Err: err}
	}
	return r.store.SetPlayers(domain.Players{You: p.You, Opponent: p.Opponent})
}

func (r *Router) endStateUpdate(payload json.RawMessage) error {
	tag, err := unquote(EventEndStateUpdate, payload)
	if err != nil {
		return err
	}
	return r.store.SetEndState(domain.EndState(tag))
}

func unquote(channel string, payload json.RawMessage) (string, error) {
	var s string
	if err := json.Unmarshal(payload, &s); err != nil {
		return "", &ParseError{Channel: channel, Err: err}
	}
	return s, nil
}

func errorKind(err error) string {
	switch {
	case errors.Is(err, fen.ErrDecode):
		return "decode"
	case errors.Is(err, ErrParse):
		return "parse"
	case errors.Is(err, store.ErrRejected):
		return "rejected"
	default:
		return "internal"
	}
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
