package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	petname "github.com/dustinkirkland/golang-petname"
	"github.com/google/uuid"
)

type AppConfig struct {
	ServerWSURL   string
	ServerBaseURL string
	EgressMode    string

	SessionID string
	Username  string
	GameCode  string
	// AutoEnter is set when USERNAME or GAME_CODE was given; the client then
	// creates or joins a game right after connecting.
	AutoEnter bool

	RedisURL    string
	DatabaseURL string

	MessagesDir string
	PreviewPath string

	WSMaxReconnect   int
	WSReconnectDelay time.Duration
	ToastDurationMs  int
	RequestTimeout   time.Duration
}

func Load() (*AppConfig, error) {
	cfg := &AppConfig{
		EgressMode:       "ws",
		WSMaxReconnect:   5,
		WSReconnectDelay: time.Second,
		ToastDurationMs:  2000,
		RequestTimeout:   5 * time.Second,
	}

	cfg.ServerWSURL = strings.TrimSpace(os.Getenv("SERVER_WS_URL"))
	cfg.ServerBaseURL = strings.TrimSpace(os.Getenv("SERVER_BASE_URL"))
	if v := strings.ToLower(strings.TrimSpace(os.Getenv("EGRESS_MODE"))); v != "" {
		cfg.EgressMode = v
	}

	cfg.SessionID = strings.TrimSpace(os.Getenv("CLIENT_SESSION_ID"))
	if cfg.SessionID == "" {
		cfg.SessionID = uuid.NewString()
	}
	cfg.Username = strings.TrimSpace(os.Getenv("USERNAME"))
	cfg.GameCode = strings.ToLower(strings.TrimSpace(os.Getenv("GAME_CODE")))
	cfg.AutoEnter = cfg.Username != "" || cfg.GameCode != ""
	if cfg.Username == "" {
		cfg.Username = petname.Generate(2, "-")
	}

	cfg.RedisURL = strings.TrimSpace(os.Getenv("REDIS_URL"))
	cfg.DatabaseURL = strings.TrimSpace(os.Getenv("DATABASE_URL"))
	cfg.MessagesDir = strings.TrimSpace(os.Getenv("MESSAGES_DIR"))
	cfg.PreviewPath = strings.TrimSpace(os.Getenv("PREVIEW_PATH"))

	if v := strings.TrimSpace(os.Getenv("WS_MAX_RECONNECT")); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n >= 0 {
			cfg.WSMaxReconnect = n
		}
	}
	if v := strings.TrimSpace(os.Getenv("WS_RECONNECT_DELAY_MS")); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			cfg.WSReconnectDelay = time.Duration(n) * time.Millisecond
		}
	}
	if v := strings.TrimSpace(os.Getenv("TOAST_DURATION_MS")); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			cfg.ToastDurationMs = n
		}
	}
	if v := strings.TrimSpace(os.Getenv("REQUEST_TIMEOUT_MS")); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			cfg.RequestTimeout = time.Duration(n) * time.Millisecond
		}
	}

	if cfg.ServerWSURL == "" {
		return nil, errors.New("SERVER_WS_URL is required")
	}
	switch cfg.EgressMode {
	case "ws":
	case "http", "auto":
		if cfg.ServerBaseURL == "" {
			return nil, fmt.Errorf("SERVER_BASE_URL is required for EGRESS_MODE=%s", cfg.EgressMode)
		}
	default:
		return nil, fmt.Errorf("unknown EGRESS_MODE %q", cfg.EgressMode)
	}

	return cfg, nil
}
