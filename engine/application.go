package engine

import (
	"github.com/spaghettifunk/lumen/engine/renderer/hal"
	"github.com/spaghettifunk/lumen/engine/scene"
)

// World is what the game sees of the engine: the device to upload models
// with, the active camera and every entity that gets drawn.
type World struct {
	Device   hal.Resources
	Camera   *scene.Camera
	Entities scene.Map
	// Camera projection parameters. The aspect ratio follows the swapchain.
	FovY      float32
	NearPlane float32
	FarPlane  float32
}

func newWorld(device hal.Resources) *World {
	return &World{
		Device:    device,
		Camera:    scene.NewCamera(),
		Entities:  make(scene.Map),
		FovY:      50.0,
		NearPlane: 0.1,
		FarPlane:  100.0,
	}
}
