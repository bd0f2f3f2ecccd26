package main

import (
	"sync"

	"go.uber.org/zap"

	"github.com/park285/scuffed-chess-client/internal/domain"
	"github.com/park285/scuffed-chess-client/internal/msgcat"
	"github.com/park285/scuffed-chess-client/internal/router"
	"github.com/park285/scuffed-chess-client/internal/store"
	"github.com/park285/scuffed-chess-client/internal/transport"
)

// connWatcher turns transport state changes into connection updates and
// lost/restored notifications. Intermediate states such as reconnecting
// count as down.
type connWatcher struct {
	router  *router.Router
	store   *store.Store
	catalog *msgcat.Catalog
	toastMs int
	logger  *zap.Logger

	mu     sync.Mutex
	up     bool
	everUp bool
}

func newConnWatcher(rt *router.Router, st *store.Store, cat *msgcat.Catalog, toastMs int, logger *zap.Logger) *connWatcher {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &connWatcher{router: rt, store: st, catalog: cat, toastMs: toastMs, logger: logger}
}

func (w *connWatcher) onState(state transport.WebSocketState) {
	up := state == transport.WSStateConnected

	w.mu.Lock()
	changed := up != w.up
	wasEverUp := w.everUp
	w.up = up
	if up {
		w.everUp = true
	}
	w.mu.Unlock()

	if !changed {
		return
	}
	w.router.HandleConnection(up)
	w.logger.Info("client_connection", zap.Bool("connected", up), zap.String("state", state.String()))

	switch {
	case up && wasEverUp:
		w.notify("sync.connection.restored", "Reconnected to the server.")
	case !up && wasEverUp && state != transport.WSStateClosed:
		w.notify("sync.connection.lost", "Connection to the server was lost.")
	}
}

func (w *connWatcher) notify(key, fallback string) {
	d := w.toastMs
	w.store.EnqueueNotification(domain.Notification{Text: w.catalog.Text(key, nil, fallback), DurationMs: &d})
}
