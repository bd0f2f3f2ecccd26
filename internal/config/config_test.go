package config

import (
	"testing"
	"time"
)

func setBase(t *testing.T) {
	t.Helper()
	for _, k := range []string{
		"SERVER_WS_URL", "SERVER_BASE_URL", "EGRESS_MODE", "CLIENT_SESSION_ID", "USERNAME", "GAME_CODE",
		"REDIS_URL", "DATABASE_URL", "MESSAGES_DIR", "PREVIEW_PATH",
		"WS_MAX_RECONNECT", "WS_RECONNECT_DELAY_MS", "TOAST_DURATION_MS", "REQUEST_TIMEOUT_MS",
	} {
		t.Setenv(k, "")
	}
	t.Setenv("SERVER_WS_URL", "ws://localhost:8000/ws")
}

func TestLoadDefaults(t *testing.T) {
	setBase(t)
	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.EgressMode != "ws" || cfg.WSMaxReconnect != 5 || cfg.WSReconnectDelay != time.Second || cfg.ToastDurationMs != 2000 {
		t.Fatalf("defaults = %+v", cfg)
	}
	if cfg.SessionID == "" {
		t.Fatalf("session id not generated")
	}
	if cfg.Username == "" || cfg.AutoEnter {
		t.Fatalf("username = %q auto = %v", cfg.Username, cfg.AutoEnter)
	}
}

func TestLoadOverrides(t *testing.T) {
	setBase(t)
	t.Setenv("EGRESS_MODE", "AUTO")
	t.Setenv("SERVER_BASE_URL", "http://localhost:8000")
	t.Setenv("CLIENT_SESSION_ID", "fixed")
	t.Setenv("GAME_CODE", " ABCDEF ")
	t.Setenv("WS_MAX_RECONNECT", "0")
	t.Setenv("WS_RECONNECT_DELAY_MS", "250")
	t.Setenv("TOAST_DURATION_MS", "nope")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.EgressMode != "auto" || cfg.SessionID != "fixed" || cfg.GameCode != "abcdef" || !cfg.AutoEnter {
		t.Fatalf("cfg = %+v", cfg)
	}
	if cfg.WSMaxReconnect != 0 || cfg.WSReconnectDelay != 250*time.Millisecond || cfg.ToastDurationMs != 2000 {
		t.Fatalf("numbers = %+v", cfg)
	}
}

func TestLoadErrors(t *testing.T) {
	setBase(t)
	t.Setenv("SERVER_WS_URL", "")
	if _, err := Load(); err == nil {
		t.Fatalf("missing SERVER_WS_URL accepted")
	}

	setBase(t)
	t.Setenv("EGRESS_MODE", "http")
	if _, err := Load(); err == nil {
		t.Fatalf("http egress without base url accepted")
	}

	setBase(t)
	t.Setenv("EGRESS_MODE", "carrier-pigeon")
	if _, err := Load(); err == nil {
		t.Fatalf("unknown egress accepted")
	}
}
