package systems

import (
	"fmt"

	"github.com/spaghettifunk/lumen/engine/core"
	"github.com/spaghettifunk/lumen/engine/math"
	"github.com/spaghettifunk/lumen/engine/renderer/hal"
)

const MaxLights = 10

type PointLightData struct {
	// Position w is unused.
	Position math.Vec4
	// Color w is the intensity.
	Color math.Vec4
}

// GlobalUbo is laid out for std140: every member is 16 byte aligned.
type GlobalUbo struct {
	Projection        math.Mat4
	View              math.Mat4
	InverseView       math.Mat4
	AmbientLightColor math.Vec4
	PointLights       [MaxLights]PointLightData
	NumLights         int32
	_                 [3]int32
}

// GlobalResources is one uniform buffer and descriptor set per frame slot,
// bound as set 0 by every scene pipeline.
type GlobalResources struct {
	device  hal.Device
	layout  hal.DescriptorSetLayout
	pool    hal.DescriptorPool
	buffers []hal.Buffer
	sets    []hal.DescriptorSet
}

func NewGlobalResources(device hal.Device, frames int) (*GlobalResources, error) {
	g := &GlobalResources{device: device}
	if err := g.build(frames); err != nil {
		err = fmt.Errorf("%w: %w", core.ErrDevice, err)
		core.LogError(err.Error())
		g.Destroy()
		return nil, err
	}
	return g, nil
}

func (g *GlobalResources) build(frames int) error {
	var err error
	g.layout, err = g.device.CreateDescriptorSetLayout([]hal.DescriptorBinding{{
		Binding: 0,
		Type:    hal.DescriptorTypeUniformBuffer,
		Count:   1,
		Stages:  hal.ShaderStageVertex | hal.ShaderStageFragment,
	}})
	if err != nil {
		return fmt.Errorf("failed to create global descriptor set layout: %w", err)
	}
	g.pool, err = g.device.CreateDescriptorPool(uint32(frames), []hal.DescriptorPoolSize{{Type: hal.DescriptorTypeUniformBuffer, Count: uint32(frames)}})
	if err != nil {
		return fmt.Errorf("failed to create global descriptor pool: %w", err)
	}

	size := uint64(len(hal.Bytes(&GlobalUbo{})))
	for i := 0; i < frames; i++ {
		buf, err := g.device.CreateBuffer(size, hal.BufferUsageUniform)
		if err != nil {
			return fmt.Errorf("failed to create global uniform buffer %d: %w", i, err)
		}
		g.buffers = append(g.buffers, buf)
		set, err := g.device.AllocateDescriptorSet(g.pool, g.layout)
		if err != nil {
			return fmt.Errorf("failed to allocate global descriptor set %d: %w", i, err)
		}
		g.device.WriteBufferDescriptor(set, 0, buf, 0, size)
		g.sets = append(g.sets, set)
	}
	return nil
}

// Write uploads ubo into the buffer of frame slot frameIndex.
func (g *GlobalResources) Write(frameIndex int, ubo *GlobalUbo) error {
	if err := g.device.WriteBuffer(g.buffers[frameIndex], 0, hal.Bytes(ubo)); err != nil {
		err = fmt.Errorf("failed to write global ubo for frame %d: %w", frameIndex, err)
		core.LogError(err.Error())
		return err
	}
	return nil
}

func (g *GlobalResources) Set(frameIndex int) hal.DescriptorSet {
	return g.sets[frameIndex]
}

func (g *GlobalResources) Layout() hal.DescriptorSetLayout {
	return g.layout
}

func (g *GlobalResources) Destroy() {
	for _, b := range g.buffers {
		g.device.DestroyBuffer(b)
	}
	g.buffers, g.sets = nil, nil
	if g.pool != 0 {
		g.device.DestroyDescriptorPool(g.pool)
		g.pool = 0
	}
	if g.layout != 0 {
		g.device.DestroyDescriptorSetLayout(g.layout)
		g.layout = 0
	}
}
