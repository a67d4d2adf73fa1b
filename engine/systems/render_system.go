package systems

import (
	"fmt"

	"github.com/spaghettifunk/lumen/engine/core"
	"github.com/spaghettifunk/lumen/engine/math"
	"github.com/spaghettifunk/lumen/engine/renderer"
	"github.com/spaghettifunk/lumen/engine/renderer/hal"
	"github.com/spaghettifunk/lumen/engine/scene"
)

type meshPushConstants struct {
	ModelMatrix  math.Mat4
	NormalMatrix math.Mat4
}

// RenderSystem draws every entity that has a model, lit by the global ubo.
type RenderSystem struct {
	device   hal.Device
	pipeline hal.Pipeline
	layout   hal.PipelineLayout
}

func NewRenderSystem(device hal.Device, target PassTarget, globalLayout hal.DescriptorSetLayout, shaders Shaders) (*RenderSystem, error) {
	pipeline, layout, err := createPipeline(device, shaders, hal.PipelineDesc{
		VertexStride:     scene.VertexStride,
		VertexAttributes: scene.VertexAttributes(),
		SetLayouts:       []hal.DescriptorSetLayout{globalLayout},
		PushConstantSize: uint32(len(hal.Bytes(&meshPushConstants{}))),
		PushStages:       hal.ShaderStageVertex | hal.ShaderStageFragment,
		ColorFormat:      target.ColorFormat,
		DepthFormat:      target.DepthFormat,
		Samples:          target.Samples,
		CullMode:         hal.CullModeBack,
		DepthWrite:       true,
	})
	if err != nil {
		err = fmt.Errorf("render system: %w", err)
		core.LogError(err.Error())
		return nil, err
	}
	return &RenderSystem{device: device, pipeline: pipeline, layout: layout}, nil
}

func (s *RenderSystem) Render(frame *renderer.FrameInfo) {
	cmd := frame.CommandBuffer
	s.device.CmdBindPipeline(cmd, s.pipeline)
	s.device.CmdBindDescriptorSets(cmd, s.layout, 0, frame.GlobalDescriptorSet)

	for _, e := range frame.Entities {
		if e.Model == nil {
			continue
		}
		push := meshPushConstants{
			ModelMatrix:  e.Transform.Mat4(),
			NormalMatrix: e.Transform.NormalMatrix(),
		}
		s.device.CmdPushConstants(cmd, s.layout, hal.ShaderStageVertex|hal.ShaderStageFragment, 0, hal.Bytes(&push))
		e.Model.Bind(s.device, cmd)
		e.Model.Draw(s.device, cmd)
	}
}

func (s *RenderSystem) Destroy() {
	if s.pipeline != 0 {
		s.device.DestroyPipeline(s.pipeline, s.layout)
		s.pipeline, s.layout = 0, 0
	}
}
