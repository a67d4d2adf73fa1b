package systems

import (
	"fmt"

	"github.com/spaghettifunk/lumen/engine/core"
	"github.com/spaghettifunk/lumen/engine/renderer"
	"github.com/spaghettifunk/lumen/engine/renderer/hal"
)

// OffscreenSource yields the current descriptor set of the sampled
// offscreen image. The set changes whenever the target is recreated.
type OffscreenSource interface {
	OffscreenDescriptorSet() hal.DescriptorSet
}

// CompositeSystem copies the offscreen image onto the swapchain image with
// a single fullscreen triangle.
type CompositeSystem struct {
	device   hal.Device
	source   OffscreenSource
	pipeline hal.Pipeline
	layout   hal.PipelineLayout
}

func NewCompositeSystem(device hal.Device, target PassTarget, offscreenLayout hal.DescriptorSetLayout, source OffscreenSource, shaders Shaders) (*CompositeSystem, error) {
	pipeline, layout, err := createPipeline(device, shaders, hal.PipelineDesc{
		SetLayouts:  []hal.DescriptorSetLayout{offscreenLayout},
		ColorFormat: target.ColorFormat,
		DepthFormat: target.DepthFormat,
		Samples:     target.Samples,
		CullMode:    hal.CullModeNone,
	})
	if err != nil {
		err = fmt.Errorf("composite system: %w", err)
		core.LogError(err.Error())
		return nil, err
	}
	return &CompositeSystem{device: device, source: source, pipeline: pipeline, layout: layout}, nil
}

func (s *CompositeSystem) Render(frame *renderer.FrameInfo) {
	cmd := frame.CommandBuffer
	s.device.CmdBindPipeline(cmd, s.pipeline)
	s.device.CmdBindDescriptorSets(cmd, s.layout, 0, s.source.OffscreenDescriptorSet())
	s.device.CmdDraw(cmd, 3, 1, 0, 0)
}

func (s *CompositeSystem) Destroy() {
	if s.pipeline != 0 {
		s.device.DestroyPipeline(s.pipeline, s.layout)
		s.pipeline, s.layout = 0, 0
	}
}
