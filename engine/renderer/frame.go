package renderer

import (
	"github.com/spaghettifunk/lumen/engine/renderer/hal"
	"github.com/spaghettifunk/lumen/engine/scene"
)

// FrameInfo is handed to every draw system while a pass is open.
type FrameInfo struct {
	FrameIndex          int
	ImageIndex          uint32
	FrameTime           float64
	CommandBuffer       hal.CommandBuffer
	Camera              *scene.Camera
	GlobalDescriptorSet hal.DescriptorSet
	Entities            scene.Map
}

// DrawSystem records draw commands into FrameInfo.CommandBuffer. It must not
// begin or end rendering.
type DrawSystem interface {
	Render(frame *FrameInfo)
}
