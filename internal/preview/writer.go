package preview

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"go.uber.org/zap"

	"github.com/park285/scuffed-chess-client/internal/domain"
	"github.com/park285/scuffed-chess-client/internal/store"
)

type frame struct {
	snap *domain.Snapshot
	opts Options
}

// Writer keeps a PNG file in step with the store's board. Only the latest
// board is rendered when updates arrive faster than the disk keeps up.
type Writer struct {
	path     string
	renderer *Renderer
	logger   *zap.Logger
	latest   chan frame
	done     chan struct{}
}

func NewWriter(path string, r *Renderer, logger *zap.Logger) *Writer {
	if r == nil {
		r = NewRenderer(0)
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Writer{path: path, renderer: r, logger: logger, latest: make(chan frame, 1), done: make(chan struct{})}
}

// Attach subscribes w to board changes on s.
func (w *Writer) Attach(s *store.Store) int {
	return s.Subscribe(func(st store.State, c store.Change) {
		switch c {
		case store.ChangeGame, store.ChangeLocalMove, store.ChangeEndState, store.ChangeSession:
		default:
			return
		}
		if st.Game == nil {
			return
		}
		w.offer(frame{snap: st.Game, opts: Options{Flip: st.InGame && st.Color == domain.Black, Header: st.GameCode}})
	})
}

func (w *Writer) offer(f frame) {
	for {
		select {
		case w.latest <- f:
			return
		default:
		}
		select {
		case <-w.latest:
		default:
		}
	}
}

// Run renders offered boards until ctx is done.
func (w *Writer) Run(ctx context.Context) {
	defer close(w.done)
	for {
		select {
		case <-ctx.Done():
			return
		case f := <-w.latest:
			if err := w.write(ctx, f); err != nil {
				w.logger.Warn("preview_write_failed", zap.String("path", w.path), zap.Error(err))
			}
		}
	}
}

// Done is closed when Run returns.
func (w *Writer) Done() <-chan struct{} { return w.done }

func (w *Writer) write(ctx context.Context, f frame) error {
	rctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	data, err := w.renderer.RenderPNG(rctx, f.snap, f.opts)
	if err != nil {
		return err
	}
	if dir := filepath.Dir(w.path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create preview dir: %w", err)
		}
	}
	tmp := w.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("write preview: %w", err)
	}
	if err := os.Rename(tmp, w.path); err != nil {
		return fmt.Errorf("replace preview: %w", err)
	}
	w.logger.Debug("preview_written", zap.String("path", w.path), zap.Int("bytes", len(data)))
	return nil
}
