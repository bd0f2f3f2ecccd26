package msgcat

import (
	"os"
	"path/filepath"
	"testing"
)

func TestDefaultsRender(t *testing.T) {
	c, err := New("")
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	got, err := c.Render("sync.error.players", nil)
	if err != nil || got != "Error while parsing players data." {
		t.Fatalf("Render: %q err=%v", got, err)
	}
	got, err = c.Render("sync.error.generic", map[string]string{"Channel": "game:fen"})
	if err != nil || got != "Error while handling game:fen update." {
		t.Fatalf("Render generic: %q err=%v", got, err)
	}
}

func TestMissingKeyAndData(t *testing.T) {
	c := MustDefault()
	if _, err := c.Render("nope", nil); err == nil {
		t.Fatalf("expected error for missing key")
	}
	if _, err := c.Render("sync.error.generic", map[string]string{}); err == nil {
		t.Fatalf("expected error for missing template data")
	}
	if got := c.Text("nope", nil, "fallback"); got != "fallback" {
		t.Fatalf("Text fallback: %q", got)
	}
	var nilCat *Catalog
	if got := nilCat.Text("sync.error.board", nil, "fb"); got != "fb" {
		t.Fatalf("nil catalog: %q", got)
	}
}

func TestOverrideDir(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "a.yaml"), []byte("sync:\n  error:\n    board: \"Board broke.\"\n"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	c, err := New(dir)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if got := c.Text("sync.error.board", nil, ""); got != "Board broke." {
		t.Fatalf("override not applied: %q", got)
	}
	if !c.Has("sync.error.players") {
		t.Fatalf("defaults lost after override")
	}
}

func TestOverrideDuplicateKeys(t *testing.T) {
	dir := t.TempDir()
	body := []byte("sync:\n  error:\n    board: \"x\"\n")
	for _, name := range []string{"a.yaml", "b.yml"} {
		if err := os.WriteFile(filepath.Join(dir, name), body, 0o644); err != nil {
			t.Fatalf("write: %v", err)
		}
	}
	if _, err := New(dir); err == nil {
		t.Fatalf("expected duplicate key error")
	}
}

func TestNonStringLeafRejected(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "a.yaml"), []byte("sync:\n  retries: 3\n"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	if _, err := New(dir); err == nil {
		t.Fatalf("expected error for non-string leaf")
	}
}
