package systems

import (
	"fmt"

	"golang.org/x/exp/slices"

	"github.com/spaghettifunk/lumen/engine/core"
	"github.com/spaghettifunk/lumen/engine/math"
	"github.com/spaghettifunk/lumen/engine/renderer"
	"github.com/spaghettifunk/lumen/engine/renderer/hal"
	"github.com/spaghettifunk/lumen/engine/scene"
)

// lightOrbitSpeed is in radians per second around -Y.
const lightOrbitSpeed = 0.5

type pointLightPushConstants struct {
	Position math.Vec4
	Color    math.Vec4
	Radius   float32
	_        [3]float32
}

/**
 * @brief Draws every point light as a camera facing billboard and feeds
 * the light list of the global ubo.
 */
type PointLightSystem struct {
	device   hal.Device
	pipeline hal.Pipeline
	layout   hal.PipelineLayout
}

func NewPointLightSystem(device hal.Device, target PassTarget, globalLayout hal.DescriptorSetLayout, shaders Shaders) (*PointLightSystem, error) {
	pipeline, layout, err := createPipeline(device, shaders, hal.PipelineDesc{
		SetLayouts:       []hal.DescriptorSetLayout{globalLayout},
		PushConstantSize: uint32(len(hal.Bytes(&pointLightPushConstants{}))),
		PushStages:       hal.ShaderStageVertex | hal.ShaderStageFragment,
		ColorFormat:      target.ColorFormat,
		DepthFormat:      target.DepthFormat,
		Samples:          target.Samples,
		CullMode:         hal.CullModeNone,
		AlphaBlend:       true,
	})
	if err != nil {
		err = fmt.Errorf("point light system: %w", err)
		core.LogError(err.Error())
		return nil, err
	}
	return &PointLightSystem{device: device, pipeline: pipeline, layout: layout}, nil
}

// Update orbits the lights and copies them into ubo.
func (s *PointLightSystem) Update(frame *renderer.FrameInfo, ubo *GlobalUbo) {
	rotate := math.NewMat4RotationY(float32(-lightOrbitSpeed * frame.FrameTime))

	n := 0
	for _, e := range frame.Entities {
		if e.PointLight == nil {
			continue
		}
		core.Assert(n < MaxLights, "point lights exceed maximum of %d", MaxLights)
		if n >= MaxLights {
			break
		}
		e.Transform.Translation = rotate.MulVec4(e.Transform.Translation.ToVec4(1)).ToVec3()

		ubo.PointLights[n] = PointLightData{
			Position: e.Transform.Translation.ToVec4(1),
			Color:    e.Color.ToVec4(e.PointLight.Intensity),
		}
		n++
	}
	ubo.NumLights = int32(n)
}

// Render draws lights back to front so their blended billboards composite
// correctly.
func (s *PointLightSystem) Render(frame *renderer.FrameInfo) {
	lights := frame.Entities.PointLights()
	if len(lights) == 0 {
		return
	}
	eye := frame.Camera.Position()
	slices.SortStableFunc(lights, func(a, b *scene.Entity) int {
		da := eye.Sub(a.Transform.Translation).LengthSquared()
		db := eye.Sub(b.Transform.Translation).LengthSquared()
		switch {
		case da > db:
			return -1
		case da < db:
			return 1
		}
		return 0
	})

	cmd := frame.CommandBuffer
	s.device.CmdBindPipeline(cmd, s.pipeline)
	s.device.CmdBindDescriptorSets(cmd, s.layout, 0, frame.GlobalDescriptorSet)
	for _, e := range lights {
		push := pointLightPushConstants{
			Position: e.Transform.Translation.ToVec4(1),
			Color:    e.Color.ToVec4(e.PointLight.Intensity),
			Radius:   e.Transform.Scale.X,
		}
		s.device.CmdPushConstants(cmd, s.layout, hal.ShaderStageVertex|hal.ShaderStageFragment, 0, hal.Bytes(&push))
		s.device.CmdDraw(cmd, 6, 1, 0, 0)
	}
}

func (s *PointLightSystem) Destroy() {
	if s.pipeline != 0 {
		s.device.DestroyPipeline(s.pipeline, s.layout)
		s.pipeline, s.layout = 0, 0
	}
}
