package systems

import (
	"fmt"

	"github.com/spaghettifunk/lumen/engine/core"
	"github.com/spaghettifunk/lumen/engine/math"
	"github.com/spaghettifunk/lumen/engine/renderer"
	"github.com/spaghettifunk/lumen/engine/renderer/hal"
)

// ShaderSet is every shader pair the built-in systems need.
type ShaderSet struct {
	Mesh       Shaders
	PointLight Shaders
	Composite  Shaders
}

// LoadShaderSet reads the compiled shaders from dir on a small worker pool.
func LoadShaderSet(dir string) (ShaderSet, error) {
	js, err := NewJobSystem(3, 3)
	if err != nil {
		return ShaderSet{}, err
	}
	var set ShaderSet
	jobs := []struct {
		name string
		dst  *Shaders
	}{
		{"simple_shader", &set.Mesh},
		{"point_light", &set.PointLight},
		{"composite", &set.Composite},
	}
	for _, j := range jobs {
		j := j
		js.Submit(JobTask{
			Name: "load " + j.name,
			Run: func() error {
				s, err := LoadShaders(dir, j.name)
				if err != nil {
					return err
				}
				*j.dst = s
				return nil
			},
		})
	}
	if err := js.Shutdown(); err != nil {
		return ShaderSet{}, err
	}
	return set, nil
}

type SystemManagerConfig struct {
	Shaders ShaderSet
	// Scene is the offscreen pass, Screen the swapchain pass.
	Scene  PassTarget
	Screen PassTarget
	// OffscreenLayout is the set layout of the sampled offscreen image.
	OffscreenLayout hal.DescriptorSetLayout
	Source          OffscreenSource
	Frames          int
}

/**
 * @brief Owns the global per-frame uniforms and the draw systems, and
 * rebuilds the pipelines when the pass targets change.
 */
type SystemManager struct {
	device hal.Device
	config SystemManagerConfig

	global     *GlobalResources
	pointLight *PointLightSystem
	mesh       *RenderSystem
	composite  *CompositeSystem

	AmbientLight math.Vec4
}

func NewSystemManager(device hal.Device, config SystemManagerConfig) (*SystemManager, error) {
	if config.Frames <= 0 {
		return nil, fmt.Errorf("%w: system manager needs at least one frame, got %d", core.ErrConfig, config.Frames)
	}
	global, err := NewGlobalResources(device, config.Frames)
	if err != nil {
		return nil, err
	}
	sm := &SystemManager{
		device:       device,
		config:       config,
		global:       global,
		AmbientLight: math.NewVec4(1, 1, 1, 0.02),
	}
	if err := sm.buildPipelines(); err != nil {
		sm.Shutdown()
		return nil, err
	}
	return sm, nil
}

func (sm *SystemManager) buildPipelines() error {
	var err error
	if sm.mesh, err = NewRenderSystem(sm.device, sm.config.Scene, sm.global.Layout(), sm.config.Shaders.Mesh); err != nil {
		return err
	}
	if sm.pointLight, err = NewPointLightSystem(sm.device, sm.config.Scene, sm.global.Layout(), sm.config.Shaders.PointLight); err != nil {
		return err
	}
	if sm.composite, err = NewCompositeSystem(sm.device, sm.config.Screen, sm.config.OffscreenLayout, sm.config.Source, sm.config.Shaders.Composite); err != nil {
		return err
	}
	return nil
}

func (sm *SystemManager) destroyPipelines() {
	if sm.composite != nil {
		sm.composite.Destroy()
		sm.composite = nil
	}
	if sm.pointLight != nil {
		sm.pointLight.Destroy()
		sm.pointLight = nil
	}
	if sm.mesh != nil {
		sm.mesh.Destroy()
		sm.mesh = nil
	}
}

// Retarget rebuilds the pipelines when a swapchain recreation changed the
// sample count or formats. It reports whether anything was rebuilt.
func (sm *SystemManager) Retarget(scene, screen PassTarget, offscreenLayout hal.DescriptorSetLayout) (bool, error) {
	if scene == sm.config.Scene && screen == sm.config.Screen && offscreenLayout == sm.config.OffscreenLayout {
		return false, nil
	}
	sm.destroyPipelines()
	sm.config.Scene, sm.config.Screen, sm.config.OffscreenLayout = scene, screen, offscreenLayout
	if err := sm.buildPipelines(); err != nil {
		sm.destroyPipelines()
		return true, err
	}
	core.LogDebug("draw pipelines rebuilt for %d samples", scene.Samples)
	return true, nil
}

// GlobalSet returns the global descriptor set of a frame slot.
func (sm *SystemManager) GlobalSet(frameIndex int) hal.DescriptorSet {
	return sm.global.Set(frameIndex)
}

// Update fills the camera and light uniforms for frame and uploads them.
func (sm *SystemManager) Update(frame *renderer.FrameInfo) error {
	ubo := GlobalUbo{
		Projection:        frame.Camera.Projection(),
		View:              frame.Camera.View(),
		InverseView:       frame.Camera.InverseView(),
		AmbientLightColor: sm.AmbientLight,
	}
	sm.pointLight.Update(frame, &ubo)
	return sm.global.Write(frame.FrameIndex, &ubo)
}

// RenderScene draws into the open offscreen pass.
func (sm *SystemManager) RenderScene(frame *renderer.FrameInfo) {
	sm.mesh.Render(frame)
	sm.pointLight.Render(frame)
}

// RenderScreen draws into the open swapchain pass.
func (sm *SystemManager) RenderScreen(frame *renderer.FrameInfo) {
	sm.composite.Render(frame)
}

func (sm *SystemManager) Shutdown() {
	sm.destroyPipelines()
	if sm.global != nil {
		sm.global.Destroy()
		sm.global = nil
	}
}
