package core

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestConfigWatcherReload(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "engine.toml")
	if err := os.WriteFile(path, []byte("[renderer]\nmsaa = 4\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	cw, err := NewConfigWatcher(path)
	if err != nil {
		t.Fatal(err)
	}
	defer cw.Close()

	// an unrelated file in the same directory is ignored
	if err := os.WriteFile(filepath.Join(dir, "other.toml"), []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, []byte("[renderer]\nmsaa = 2\nvsync = false\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	select {
	case cfg := <-cw.Updates():
		if cfg.Renderer.MSAA != 2 || cfg.Renderer.VSync {
			t.Errorf("reloaded config = %+v", cfg.Renderer)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for config reload")
	}
}

func TestConfigWatcherCloseIsIdempotent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "engine.yaml")
	if err := os.WriteFile(path, []byte("log:\n  level: info\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	cw, err := NewConfigWatcher(path)
	if err != nil {
		t.Fatal(err)
	}
	if err := cw.Close(); err != nil {
		t.Fatalf("first close: %v", err)
	}
	if err := cw.Close(); err != nil {
		t.Fatalf("second close: %v", err)
	}
}
