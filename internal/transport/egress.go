package transport

import (
	"context"
	"encoding/json"
	"errors"

	"go.uber.org/zap"
)

// Requester sends one request and returns its raw result.
type Requester interface {
	Request(ctx context.Context, event string, args ...any) (json.RawMessage, error)
}

type egressMode string

const (
	egressHTTP egressMode = "http"
	egressWS   egressMode = "ws"
	egressAuto egressMode = "auto"
)

// NewEgress picks the outbound path for mode. auto prefers the push channel
// while it is connected and falls back to HTTP once on failure. Unknown
// modes behave like ws.
func NewEgress(mode string, c *HTTPClient, ws *WebSocket, logger *zap.Logger) Requester {
	if logger == nil {
		logger = zap.NewNop()
	}
	switch egressMode(mode) {
	case egressHTTP:
		return &httpEgress{c: c}
	case egressAuto:
		return &autoEgress{ws: &wsEgress{ws: ws}, http: &httpEgress{c: c}, logger: logger}
	default:
		return &wsEgress{ws: ws}
	}
}

type httpEgress struct{ c *HTTPClient }

func (h *httpEgress) Request(ctx context.Context, event string, args ...any) (json.RawMessage, error) {
	if h == nil || h.c == nil {
		return nil, ErrUnavailable
	}
	return h.c.Request(ctx, event, args...)
}

type wsEgress struct{ ws *WebSocket }

func (w *wsEgress) Request(ctx context.Context, event string, args ...any) (json.RawMessage, error) {
	if w == nil || w.ws == nil {
		return nil, ErrUnavailable
	}
	return w.ws.Request(ctx, event, args...)
}

func (w *wsEgress) connected() bool {
	return w != nil && w.ws != nil && w.ws.State() == WSStateConnected
}

type autoEgress struct {
	ws     *wsEgress
	http   *httpEgress
	logger *zap.Logger
}

func (a *autoEgress) Request(ctx context.Context, event string, args ...any) (json.RawMessage, error) {
	if a.ws.connected() {
		res, err := a.ws.Request(ctx, event, args...)
		if err == nil {
			return res, nil
		}
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return nil, err
		}
		a.logger.Warn("egress_fallback", zap.String("event", event), zap.Error(err))
	}
	return a.http.Request(ctx, event, args...)
}
