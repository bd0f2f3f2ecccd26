package transport

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"nhooyr.io/websocket"
	"nhooyr.io/websocket/wsjson"
)

type callbackEntry struct {
	id       int
	callback FrameCallback
}

type stateCallbackEntry struct {
	id       int
	callback StateCallback
}

// WebSocket is the push transport. It is created once at startup and
// reconnects on its own; frames are handed to callbacks one at a time from
// a single reader goroutine, in arrival order.
type WebSocket struct {
	wsURL string

	conn  *websocket.Conn
	connM sync.RWMutex
	// writeM serializes writes; wsjson.Write is not safe for concurrent use.
	writeM sync.Mutex

	state  WebSocketState
	stateM sync.RWMutex

	frameCbs []callbackEntry
	stateCbs []stateCallbackEntry
	cbM      sync.RWMutex
	nextCbID int

	pending  map[string]chan json.RawMessage
	pendingM sync.Mutex

	maxReconnectAttempts int
	reconnectDelay       time.Duration
	pingInterval         time.Duration
	writeTimeout         time.Duration

	stopCh   chan struct{}
	stopOnce sync.Once
	wg       sync.WaitGroup

	rootCtx    context.Context
	rootCancel context.CancelFunc

	headerProvider HeaderProvider
	logger         *zap.Logger
}

func NewWebSocket(wsURL string, maxReconnectAttempts int, reconnectDelay time.Duration) *WebSocket {
	rootCtx, rootCancel := context.WithCancel(context.Background())
	return &WebSocket{
		wsURL:                wsURL,
		state:                WSStateDisconnected,
		maxReconnectAttempts: maxReconnectAttempts,
		reconnectDelay:       reconnectDelay,
		pingInterval:         30 * time.Second,
		writeTimeout:         5 * time.Second,
		stopCh:               make(chan struct{}),
		pending:              make(map[string]chan json.RawMessage),
		rootCtx:              rootCtx,
		rootCancel:           rootCancel,
		logger:               zap.NewNop(),
	}
}

// SetHeaderProvider injects headers into the handshake.
func (ws *WebSocket) SetHeaderProvider(h HeaderProvider) { ws.headerProvider = h }

func (ws *WebSocket) SetLogger(l *zap.Logger) {
	if l != nil {
		ws.logger = l
	}
}

// SetPingInterval must be called before Connect.
func (ws *WebSocket) SetPingInterval(d time.Duration) {
	if d > 0 {
		ws.pingInterval = d
	}
}

func (ws *WebSocket) Connect(ctx context.Context) error {
	if ws.isStopping() {
		return ErrClosed
	}
	if st := ws.State(); st == WSStateConnected || st == WSStateConnecting {
		return nil
	}
	ws.setState(WSStateConnecting)

	dialCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	conn, err := ws.dial(dialCtx)
	if err != nil {
		ws.logger.Warn("ws_connect_error", zap.String("url", ws.wsURL), zap.Error(err))
		ws.setState(WSStateFailed)
		ws.scheduleReconnect()
		return err
	}
	ws.attach(conn)
	return nil
}

func (ws *WebSocket) dial(ctx context.Context) (*websocket.Conn, error) {
	conn, _, err := websocket.Dial(ctx, ws.wsURL, &websocket.DialOptions{
		CompressionMode: websocket.CompressionNoContextTakeover,
		HTTPHeader:      ws.buildHeaders(),
	})
	return conn, err
}

func (ws *WebSocket) attach(conn *websocket.Conn) {
	ws.connM.Lock()
	ws.conn = conn
	ws.connM.Unlock()

	connCtx, connCancel := context.WithCancel(ws.rootCtx)
	ws.wg.Add(2)
	go ws.listen(connCtx, connCancel, conn)
	go ws.pingLoop(connCtx, conn)
	ws.setState(WSStateConnected)
}

func (ws *WebSocket) currentConn() *websocket.Conn {
	ws.connM.RLock()
	defer ws.connM.RUnlock()
	return ws.conn
}

func (ws *WebSocket) listen(ctx context.Context, cancel context.CancelFunc, conn *websocket.Conn) {
	defer ws.wg.Done()
	defer cancel()
	for {
		typ, raw, err := conn.Read(ctx)
		if err != nil {
			if ws.isStopping() {
				return
			}
			ws.logger.Info("ws_read_closed", zap.Error(err))
			ws.dropConn(conn, websocket.StatusGoingAway, "reconnect")
			ws.setState(WSStateDisconnected)
			ws.scheduleReconnect()
			return
		}
		// a malformed envelope is skipped; the connection stays up
		if typ != websocket.MessageText {
			ws.logger.Warn("ws_frame_not_text", zap.Int("type", int(typ)), zap.Int("len", len(raw)))
			continue
		}
		var frame Frame
		if err := json.Unmarshal(raw, &frame); err != nil {
			ws.logger.Warn("ws_frame_decode_failed", zap.Error(err), zap.String("raw", truncate(string(raw), 200)))
			continue
		}
		if frame.Event == EventAck {
			ws.resolve(frame.ID, frame.Data)
			continue
		}

		ws.cbM.RLock()
		callbacks := make([]callbackEntry, len(ws.frameCbs))
		copy(callbacks, ws.frameCbs)
		ws.cbM.RUnlock()
		for _, entry := range callbacks {
			if entry.callback != nil {
				entry.callback(&frame)
			}
		}
	}
}

func (ws *WebSocket) pingLoop(ctx context.Context, conn *websocket.Conn) {
	defer ws.wg.Done()
	t := time.NewTicker(ws.pingInterval)
	defer t.Stop()
	failures := 0
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			pctx, cancel := context.WithTimeout(ctx, 3*time.Second)
			err := conn.Ping(pctx)
			cancel()
			if err == nil {
				failures = 0
				continue
			}
			failures++
			if failures >= 2 {
				ws.logger.Warn("ws_ping_failure", zap.Error(err))
				// closing the conn ends listen, which drives the reconnect
				ws.dropConn(conn, websocket.StatusGoingAway, "ping failure")
				return
			}
		}
	}
}

func (ws *WebSocket) scheduleReconnect() {
	if ws.maxReconnectAttempts <= 0 || ws.isStopping() {
		return
	}
	ws.setState(WSStateReconnecting)

	go func() {
		for attempt := 1; attempt <= ws.maxReconnectAttempts; attempt++ {
			select {
			case <-ws.stopCh:
				return
			case <-time.After(ws.reconnectBackoff(attempt)):
			}

			dialCtx, cancel := context.WithTimeout(ws.rootCtx, 10*time.Second)
			conn, err := ws.dial(dialCtx)
			cancel()
			if err != nil {
				ws.logger.Debug("ws_reconnect_attempt_failed", zap.Int("attempt", attempt), zap.Error(err))
				continue
			}
			if ws.isStopping() {
				_ = conn.Close(websocket.StatusNormalClosure, "close")
				return
			}
			ws.attach(conn)
			return
		}
		ws.setState(WSStateFailed)
	}()
}

func (ws *WebSocket) reconnectBackoff(attempt int) time.Duration {
	base := ws.reconnectDelay
	if base <= 0 {
		return backoffDuration(attempt)
	}
	if attempt > 6 {
		attempt = 6
	}
	return time.Duration(1<<uint(attempt-1)) * base
}

// Send writes one frame.
func (ws *WebSocket) Send(ctx context.Context, frame *Frame) error {
	conn := ws.currentConn()
	if conn == nil || ws.State() != WSStateConnected {
		return ErrNotConnected
	}
	if _, ok := ctx.Deadline(); !ok {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, ws.writeTimeout)
		defer cancel()
	}
	ws.writeM.Lock()
	defer ws.writeM.Unlock()
	return wsjson.Write(ctx, conn, frame)
}

// Request sends event with positional args and waits for its ack.
func (ws *WebSocket) Request(ctx context.Context, event string, args ...any) (json.RawMessage, error) {
	if args == nil {
		args = []any{}
	}
	data, err := json.Marshal(args)
	if err != nil {
		return nil, fmt.Errorf("marshal %s args: %w", event, err)
	}
	id := uuid.NewString()
	ch := make(chan json.RawMessage, 1)
	ws.pendingM.Lock()
	ws.pending[id] = ch
	ws.pendingM.Unlock()
	defer func() {
		ws.pendingM.Lock()
		delete(ws.pending, id)
		ws.pendingM.Unlock()
	}()

	if err := ws.Send(ctx, &Frame{Event: event, ID: id, Data: data}); err != nil {
		return nil, err
	}
	select {
	case res := <-ch:
		return res, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-ws.stopCh:
		return nil, ErrClosed
	}
}

func (ws *WebSocket) resolve(id string, data json.RawMessage) {
	ws.pendingM.Lock()
	ch, ok := ws.pending[id]
	ws.pendingM.Unlock()
	if !ok {
		ws.logger.Debug("ws_ack_unmatched", zap.String("id", id))
		return
	}
	select {
	case ch <- data:
	default:
	}
}

func (ws *WebSocket) OnFrame(cb FrameCallback) int {
	ws.cbM.Lock()
	defer ws.cbM.Unlock()
	ws.nextCbID++
	ws.frameCbs = append(ws.frameCbs, callbackEntry{id: ws.nextCbID, callback: cb})
	return ws.nextCbID
}

func (ws *WebSocket) RemoveFrameCallback(id int) {
	ws.cbM.Lock()
	defer ws.cbM.Unlock()
	for i, cb := range ws.frameCbs {
		if cb.id == id {
			ws.frameCbs = append(ws.frameCbs[:i], ws.frameCbs[i+1:]...)
			break
		}
	}
}

func (ws *WebSocket) OnStateChange(cb StateCallback) int {
	ws.cbM.Lock()
	defer ws.cbM.Unlock()
	ws.nextCbID++
	ws.stateCbs = append(ws.stateCbs, stateCallbackEntry{id: ws.nextCbID, callback: cb})
	return ws.nextCbID
}

func (ws *WebSocket) RemoveStateCallback(id int) {
	ws.cbM.Lock()
	defer ws.cbM.Unlock()
	for i, cb := range ws.stateCbs {
		if cb.id == id {
			ws.stateCbs = append(ws.stateCbs[:i], ws.stateCbs[i+1:]...)
			break
		}
	}
}

func (ws *WebSocket) State() WebSocketState {
	ws.stateM.RLock()
	defer ws.stateM.RUnlock()
	return ws.state
}

func (ws *WebSocket) setState(state WebSocketState) {
	ws.stateM.Lock()
	prev := ws.state
	ws.state = state
	ws.stateM.Unlock()
	if prev == state {
		return
	}
	ws.logger.Debug("ws_state", zap.String("from", prev.String()), zap.String("to", state.String()))

	ws.cbM.RLock()
	callbacks := make([]stateCallbackEntry, len(ws.stateCbs))
	copy(callbacks, ws.stateCbs)
	ws.cbM.RUnlock()
	for _, entry := range callbacks {
		if entry.callback != nil {
			entry.callback(state)
		}
	}
}

func (ws *WebSocket) Close(ctx context.Context) error {
	ws.stopOnce.Do(func() { close(ws.stopCh) })
	if conn := ws.currentConn(); conn != nil {
		ws.dropConn(conn, websocket.StatusNormalClosure, "close")
	}
	ws.rootCancel()

	done := make(chan struct{})
	go func() {
		ws.wg.Wait()
		close(done)
	}()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-done:
		ws.setState(WSStateClosed)
		return nil
	}
}

// dropConn closes conn and clears it if it is still the current one.
func (ws *WebSocket) dropConn(conn *websocket.Conn, code websocket.StatusCode, reason string) {
	ws.connM.Lock()
	if ws.conn == conn {
		ws.conn = nil
	}
	ws.connM.Unlock()
	_ = conn.Close(code, reason)
}

func (ws *WebSocket) isStopping() bool {
	select {
	case <-ws.stopCh:
		return true
	default:
		return false
	}
}

func (ws *WebSocket) buildHeaders() http.Header {
	hdr := http.Header{}
	if ws.headerProvider == nil {
		return hdr
	}
	for k, v := range ws.headerProvider() {
		if strings.TrimSpace(k) == "" || strings.TrimSpace(v) == "" {
			continue
		}
		hdr.Set(k, v)
	}
	return hdr
}
