package core

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
)

func TestParseConfig(t *testing.T) {
	tests := []struct {
		name    string
		ext     string
		data    string
		wantErr error
		check   func(t *testing.T, cfg *Config)
	}{
		{
			name: "toml overrides",
			ext:  ".toml",
			data: `
[application]
name = "demo"
width = 800
height = 600

[renderer]
vsync = false
msaa = 8
clear_color = [0.0, 0.5, 1.0, 1.0]
`,
			check: func(t *testing.T, cfg *Config) {
				if cfg.Application.Name != "demo" || cfg.Application.StartWidth != 800 {
					t.Errorf("application section not decoded: %+v", cfg.Application)
				}
				if cfg.Renderer.VSync || cfg.Renderer.MSAA != 8 {
					t.Errorf("renderer section not decoded: %+v", cfg.Renderer)
				}
				if cfg.Renderer.ClearColor[2] != 1.0 {
					t.Errorf("clear color = %v", cfg.Renderer.ClearColor)
				}
				if cfg.Renderer.OffscreenFormat != "bgra8_unorm" {
					t.Errorf("default offscreen format lost: %q", cfg.Renderer.OffscreenFormat)
				}
			},
		},
		{
			name: "yaml overrides",
			ext:  ".yml",
			data: "renderer:\n  msaa: 1\n  offscreen_format: rgba8_unorm\nlog:\n  level: debug\n",
			check: func(t *testing.T, cfg *Config) {
				if cfg.Renderer.MSAA != 1 || cfg.Renderer.OffscreenFormat != "rgba8_unorm" {
					t.Errorf("renderer section not decoded: %+v", cfg.Renderer)
				}
				if cfg.Log.Level != "debug" {
					t.Errorf("log level = %q", cfg.Log.Level)
				}
				if cfg.Application.StartWidth != 1280 {
					t.Errorf("default width lost: %d", cfg.Application.StartWidth)
				}
			},
		},
		{name: "unknown toml key", ext: ".toml", data: "[renderer]\nbogus = 1\n", wantErr: ErrConfig},
		{name: "invalid msaa", ext: ".toml", data: "[renderer]\nmsaa = 3\n", wantErr: ErrConfig},
		{name: "zero width", ext: ".yaml", data: "application:\n  width: 0\n", wantErr: ErrConfig},
		{name: "clear color out of range", ext: ".toml", data: "[renderer]\nclear_color = [2.0, 0.0, 0.0, 1.0]\n", wantErr: ErrConfig},
		{name: "unsupported extension", ext: ".json", data: "{}", wantErr: ErrConfig},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg, err := ParseConfig([]byte(tt.data), tt.ext)
			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Fatalf("err = %v, want %v", err, tt.wantErr)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			tt.check(t, cfg)
		})
	}
}

func TestLoadConfigMissingFile(t *testing.T) {
	if _, err := LoadConfig(filepath.Join(t.TempDir(), "nope.toml")); !errors.Is(err, os.ErrNotExist) {
		t.Fatalf("err = %v, want not exist", err)
	}
}

func TestRequiresRecreation(t *testing.T) {
	base := DefaultConfig()

	same := DefaultConfig()
	same.Renderer.ClearColor = [4]float32{1, 0, 0, 1}
	if base.RequiresRecreation(same) {
		t.Error("clear colour change should not require recreation")
	}

	vsync := DefaultConfig()
	vsync.Renderer.VSync = !base.Renderer.VSync
	if !base.RequiresRecreation(vsync) {
		t.Error("vsync change should require recreation")
	}

	msaa := DefaultConfig()
	msaa.Renderer.MSAA = 1
	if !base.RequiresRecreation(msaa) {
		t.Error("msaa change should require recreation")
	}
}
