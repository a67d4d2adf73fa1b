package engine

import "github.com/spaghettifunk/lumen/engine/core"

type Game struct {
	Config *core.Config
	// ConfigPath is watched for changes when not empty.
	ConfigPath string
	// AssetsPath holds the compiled shaders under shaders/.
	AssetsPath   string
	State        interface{}
	FnInitialize Initialize
	FnUpdate     Update
	FnOnResize   OnResize
	FnShutdown   Shutdown
}

type Initialize func(world *World) error
type Update func(world *World, deltaTime float64) error
type OnResize func(world *World, width uint32, height uint32) error
type Shutdown func(world *World) error
