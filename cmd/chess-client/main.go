package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	appcfg "github.com/park285/scuffed-chess-client/internal/config"
	"github.com/park285/scuffed-chess-client/internal/history"
	"github.com/park285/scuffed-chess-client/internal/msgcat"
	"github.com/park285/scuffed-chess-client/internal/obslog"
	"github.com/park285/scuffed-chess-client/internal/preview"
	"github.com/park285/scuffed-chess-client/internal/router"
	"github.com/park285/scuffed-chess-client/internal/session"
	"github.com/park285/scuffed-chess-client/internal/store"
	"github.com/park285/scuffed-chess-client/internal/transport"
)

func main() {
	cfg, err := appcfg.Load()
	if err != nil {
		log.Fatalf("config error: %v", err)
	}
	if err := obslog.InitFromEnv(); err != nil {
		log.Fatalf("logger init error: %v", err)
	}
	defer obslog.Sync()
	logger := obslog.L().With(zap.String("session", cfg.SessionID))

	catalog, err := msgcat.New(cfg.MessagesDir)
	if err != nil {
		logger.Fatal("messages_load_failed", zap.Error(err))
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	st := store.New(store.WithLogger(logger.Named("store")))
	rt := router.New(st,
		router.WithLogger(logger.Named("router")),
		router.WithCatalog(catalog),
		router.WithToastDuration(cfg.ToastDurationMs),
	)

	var (
		rdb    *redis.Client
		mirror *store.RedisMirror
	)
	if cfg.RedisURL != "" {
		opt, err := redis.ParseURL(cfg.RedisURL)
		if err != nil {
			logger.Fatal("redis_url_invalid", zap.Error(err))
		}
		rdb = redis.NewClient(opt)
		mirror = store.NewRedisMirror(rdb, cfg.SessionID, logger.Named("mirror"))
		mirror.Attach(st)
		go mirror.Run(ctx)
	}

	repo, err := history.Open(ctx, cfg.DatabaseURL)
	if err != nil {
		logger.Fatal("history_open_failed", zap.Error(err))
	}
	recorder := history.NewRecorder(repo, cfg.SessionID, logger.Named("history"))
	recorder.Attach(st)
	go recorder.Run(ctx)

	var writer *preview.Writer
	if cfg.PreviewPath != "" {
		writer = preview.NewWriter(cfg.PreviewPath, preview.NewRenderer(64), logger.Named("preview"))
		writer.Attach(st)
		go writer.Run(ctx)
	}

	notices := newNotifier(st, logger)
	go notices.run(ctx)

	headers := func() map[string]string {
		return map[string]string{"X-Session-Id": cfg.SessionID}
	}
	ws := transport.NewWebSocket(cfg.ServerWSURL, cfg.WSMaxReconnect, cfg.WSReconnectDelay)
	ws.SetHeaderProvider(headers)
	ws.SetLogger(logger.Named("ws"))
	ws.OnFrame(func(f *transport.Frame) {
		rt.Dispatch(f.Event, f.Data)
	})
	ws.OnStateChange(newConnWatcher(rt, st, catalog, cfg.ToastDurationMs, logger).onState)

	var httpc *transport.HTTPClient
	if cfg.ServerBaseURL != "" {
		httpc = transport.NewHTTPClient(cfg.ServerBaseURL, transport.WithHeaderProvider(headers))
	}
	cmds := transport.NewCommands(transport.NewEgress(cfg.EgressMode, httpc, ws, logger.Named("egress")), cfg.RequestTimeout)
	sess := session.New(st, cmds, cfg.Username, logger.Named("session"))

	cctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	err = ws.Connect(cctx)
	cancel()
	if err != nil && cfg.WSMaxReconnect == 0 {
		logger.Fatal("ws_connect_failed", zap.Error(err))
	}

	if cfg.AutoEnter && ws.State() == transport.WSStateConnected {
		autoEnter(ctx, sess, cfg.GameCode, logger)
	}

	con := &console{sess: sess, store: st, out: os.Stdout}
	go con.run(ctx, os.Stdin)

	<-ctx.Done()
	logger.Info("client_shutdown")

	sctx, scancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer scancel()
	if st.State().InGame {
		if _, err := sess.Leave(sctx); err != nil {
			logger.Warn("leave_on_shutdown_failed", zap.Error(err))
		}
	}
	_ = ws.Close(sctx)
	<-recorder.Done()
	if writer != nil {
		<-writer.Done()
	}
	if mirror != nil {
		<-mirror.Done()
	}
	_ = repo.Close()
	if rdb != nil {
		_ = rdb.Close()
	}
}

// autoEnter joins GAME_CODE when set and otherwise creates a new game.
func autoEnter(ctx context.Context, sess *session.Session, code string, logger *zap.Logger) {
	var err error
	if code != "" {
		_, err = sess.Join(ctx, code)
	} else {
		code, err = sess.Create(ctx)
	}
	if err != nil {
		logger.Warn("auto_enter_failed", zap.String("game_code", code), zap.Error(err))
		return
	}
	fmt.Printf("game code: %s\n", code)
}

// notifier prints queued notifications as they arrive. Presenting them any
// other way is up to the reader of the store.
type notifier struct {
	st     *store.Store
	logger *zap.Logger
	wake   chan struct{}
	subID  int
}

// newNotifier subscribes right away so nothing enqueued before run starts
// is missed.
func newNotifier(st *store.Store, logger *zap.Logger) *notifier {
	n := &notifier{st: st, logger: logger, wake: make(chan struct{}, 1)}
	n.subID = st.Subscribe(func(_ store.State, c store.Change) {
		if c == store.ChangeNotifications {
			n.poke()
		}
	})
	return n
}

func (n *notifier) poke() {
	select {
	case n.wake <- struct{}{}:
	default:
	}
}

func (n *notifier) run(ctx context.Context) {
	defer n.st.Unsubscribe(n.subID)
	n.flush()
	for {
		select {
		case <-ctx.Done():
			return
		case <-n.wake:
			n.flush()
		}
	}
}

func (n *notifier) flush() {
	for {
		note, ok := n.st.DequeueNotification()
		if !ok {
			return
		}
		n.logger.Info("notification", zap.String("id", note.ID), zap.String("text", note.Text))
		noticeColor.Printf("! %s\n", note.Text)
	}
}
