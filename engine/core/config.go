package core

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/pelletier/go-toml/v2"
	"gopkg.in/yaml.v3"
)

type ApplicationConfig struct {
	// The application name used in windowing.
	Name string `toml:"name" yaml:"name"`
	// Window starting position.
	StartPosX uint32 `toml:"x" yaml:"x"`
	StartPosY uint32 `toml:"y" yaml:"y"`
	// Window starting size.
	StartWidth  uint32 `toml:"width" yaml:"width"`
	StartHeight uint32 `toml:"height" yaml:"height"`
}

type RendererConfig struct {
	VSync bool `toml:"vsync" yaml:"vsync"`
	// Requested multisample count. Clamped to what the device supports.
	MSAA       uint32     `toml:"msaa" yaml:"msaa"`
	ClearColor [4]float32 `toml:"clear_color" yaml:"clear_color"`
	// Offscreen colour format, "bgra8_unorm" or "rgba8_unorm".
	OffscreenFormat string `toml:"offscreen_format" yaml:"offscreen_format"`
	Validation      bool   `toml:"validation" yaml:"validation"`
	DebugAsserts    bool   `toml:"debug_asserts" yaml:"debug_asserts"`
}

type LogConfig struct {
	Level string `toml:"level" yaml:"level"`
}

type Config struct {
	Application ApplicationConfig `toml:"application" yaml:"application"`
	Renderer    RendererConfig    `toml:"renderer" yaml:"renderer"`
	Log         LogConfig         `toml:"log" yaml:"log"`
}

// DefaultConfig returns the configuration used when no file is supplied.
func DefaultConfig() *Config {
	return &Config{
		Application: ApplicationConfig{
			Name:        "Lumen",
			StartPosX:   100,
			StartPosY:   100,
			StartWidth:  1280,
			StartHeight: 720,
		},
		Renderer: RendererConfig{
			VSync:           true,
			MSAA:            4,
			ClearColor:      [4]float32{0.1, 0.1, 0.15, 1.0},
			OffscreenFormat: "bgra8_unorm",
			DebugAsserts:    true,
		},
		Log: LogConfig{Level: "info"},
	}
}

// LoadConfig reads a TOML or YAML file depending on its extension. Missing
// keys keep their default values.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		err = fmt.Errorf("failed to read config %s: %w", path, err)
		LogError(err.Error())
		return nil, err
	}
	cfg, err := ParseConfig(data, filepath.Ext(path))
	if err != nil {
		err = fmt.Errorf("failed to parse config %s: %w", path, err)
		LogError(err.Error())
		return nil, err
	}
	return cfg, nil
}

// ParseConfig decodes data as TOML (".toml") or YAML (".yaml", ".yml").
func ParseConfig(data []byte, ext string) (*Config, error) {
	cfg := DefaultConfig()
	switch strings.ToLower(ext) {
	case ".toml":
		dec := toml.NewDecoder(bytes.NewReader(data))
		dec.DisallowUnknownFields()
		if err := dec.Decode(cfg); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrConfig, err)
		}
	case ".yaml", ".yml":
		dec := yaml.NewDecoder(bytes.NewReader(data))
		dec.KnownFields(true)
		if err := dec.Decode(cfg); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrConfig, err)
		}
	default:
		return nil, fmt.Errorf("%w: unsupported config extension %q", ErrConfig, ext)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) Validate() error {
	if c.Application.StartWidth == 0 || c.Application.StartHeight == 0 {
		return fmt.Errorf("%w: window size must be non-zero", ErrConfig)
	}
	switch c.Renderer.MSAA {
	case 1, 2, 4, 8, 16, 32, 64:
	default:
		return fmt.Errorf("%w: msaa must be a power of two between 1 and 64, got %d", ErrConfig, c.Renderer.MSAA)
	}
	switch c.Renderer.OffscreenFormat {
	case "bgra8_unorm", "rgba8_unorm":
	default:
		return fmt.Errorf("%w: unknown offscreen format %q", ErrConfig, c.Renderer.OffscreenFormat)
	}
	for i, v := range c.Renderer.ClearColor {
		if v < 0 || v > 1 {
			return fmt.Errorf("%w: clear_color[%d] out of range: %f", ErrConfig, i, v)
		}
	}
	return nil
}

// RequiresRecreation reports whether moving from c to next needs the
// swapchain to be rebuilt.
func (c *Config) RequiresRecreation(next *Config) bool {
	return c.Renderer.VSync != next.Renderer.VSync || c.Renderer.MSAA != next.Renderer.MSAA
}
