package engine

import (
	"errors"
	"fmt"
	"path/filepath"
	"sync/atomic"

	"github.com/spaghettifunk/lumen/engine/core"
	"github.com/spaghettifunk/lumen/engine/math"
	"github.com/spaghettifunk/lumen/engine/platform"
	"github.com/spaghettifunk/lumen/engine/renderer"
	"github.com/spaghettifunk/lumen/engine/renderer/hal"
	"github.com/spaghettifunk/lumen/engine/renderer/vulkan"
	"github.com/spaghettifunk/lumen/engine/systems"
)

type Stage uint8

const (
	// Engine is in an uninitialized state
	EngineStageUninitialized Stage = iota
	// Engine is currently initializing
	EngineStageInitializing
	// Engine initialization is complete
	EngineStageInitialized
	// Engine is currently running
	EngineStageRunning
	// Engine is in the process of shutting down
	EngineStageShuttingDown
)

type Engine struct {
	currentStage Stage
	gameInstance *Game
	config       *core.Config
	// isRunning is cleared from signal handlers too.
	isRunning    atomic.Bool

	platform *platform.Platform
	context  *vulkan.VulkanContext

	// device is what the frame loop talks to. It is the Vulkan context
	// unless a test swaps it.
	device        hal.Device
	renderer      *renderer.Renderer
	systemManager *systems.SystemManager
	watcher       *core.ConfigWatcher
	world         *World

	clock    *core.Clock
	lastTime float64
	width    uint32
	height   uint32
}

func New(g *Game) (*Engine, error) {
	if g == nil || g.FnInitialize == nil || g.FnUpdate == nil {
		return nil, fmt.Errorf("%w: game needs at least an initialize and an update function", core.ErrConfig)
	}
	cfg := g.Config
	if cfg == nil {
		cfg = core.DefaultConfig()
	}
	if err := cfg.Validate(); err != nil {
		core.LogError(err.Error())
		return nil, err
	}
	if !core.SetLogLevel(cfg.Log.Level) {
		core.LogWarn("unknown log level %q, keeping the current one", cfg.Log.Level)
	}
	core.SetFatalAssertions(cfg.Renderer.DebugAsserts)

	p, err := platform.New()
	if err != nil {
		return nil, err
	}

	return &Engine{
		currentStage: EngineStageUninitialized,
		gameInstance: g,
		config:       cfg,
		platform:     p,
		clock:        core.NewClock(),
		width:        cfg.Application.StartWidth,
		height:       cfg.Application.StartHeight,
	}, nil
}

/**
 * @brief Opens the window, creates the device, the renderer and the draw
 * systems, then hands the world to the game.
 */
func (e *Engine) Initialize() error {
	e.currentStage = EngineStageInitializing
	app := e.config.Application

	if !core.EventInitialize() {
		return fmt.Errorf("failed to initialize the event system")
	}

	if err := e.platform.Startup(app.Name, app.StartPosX, app.StartPosY, app.StartWidth, app.StartHeight); err != nil {
		return err
	}

	ctx, err := vulkan.New(e.platform.Window(), vulkan.Options{
		ApplicationName: app.Name,
		Validation:      e.config.Renderer.Validation,
	})
	if err != nil {
		return err
	}
	e.context = ctx

	shaders, err := systems.LoadShaderSet(filepath.Join(e.gameInstance.AssetsPath, "shaders"))
	if err != nil {
		return err
	}
	if err := e.setup(ctx, e.platform, shaders); err != nil {
		return err
	}

	if e.gameInstance.ConfigPath != "" {
		w, err := core.NewConfigWatcher(e.gameInstance.ConfigPath)
		if err != nil {
			// Hot reload is a convenience; the engine runs without it.
			core.LogWarn("config hot reload disabled: %s", err)
		} else {
			e.watcher = w
		}
	}

	e.currentStage = EngineStageInitialized
	return nil
}

// setup builds everything above the device. It is split from Initialize so
// the frame loop can run against any hal.Device.
func (e *Engine) setup(device hal.Device, window renderer.Window, shaders systems.ShaderSet) error {
	e.device = device

	core.EventRegister(core.EVENT_CODE_APPLICATION_QUIT, e, e.onEvent)
	core.EventRegister(core.EVENT_CODE_RESIZED, e, e.onResized)
	core.EventRegister(core.EVENT_CODE_CONFIG_RELOADED, e, e.onConfigReloaded)

	r, err := renderer.New(device, window, e.config.Renderer)
	if err != nil {
		return err
	}
	e.renderer = r

	scene, screen := e.passTargets()
	sm, err := systems.NewSystemManager(device, systems.SystemManagerConfig{
		Shaders:         shaders,
		Scene:           scene,
		Screen:          screen,
		OffscreenLayout: r.Offscreen().DescriptorSetLayout(),
		Source:          r,
		Frames:          renderer.MaxFramesInFlight,
	})
	if err != nil {
		return err
	}
	e.systemManager = sm

	e.world = newWorld(device)
	if err := e.gameInstance.FnInitialize(e.world); err != nil {
		return err
	}
	extent := r.Swapchain().Extent()
	e.width, e.height = extent.Width, extent.Height
	if e.gameInstance.FnOnResize != nil {
		if err := e.gameInstance.FnOnResize(e.world, e.width, e.height); err != nil {
			return err
		}
	}
	e.isRunning.Store(true)
	return nil
}

// passTargets describes the offscreen and swapchain attachments for the
// pipelines of the draw systems.
func (e *Engine) passTargets() (systems.PassTarget, systems.PassTarget) {
	sc := e.renderer.Swapchain()
	off := e.renderer.Offscreen()
	scene := systems.PassTarget{
		ColorFormat: off.Format(),
		DepthFormat: sc.DepthFormat(),
		Samples:     off.SampleCount(),
	}
	screen := systems.PassTarget{
		ColorFormat: sc.ImageFormat(),
		DepthFormat: sc.DepthFormat(),
		Samples:     sc.SampleCount(),
	}
	return scene, screen
}

func (e *Engine) Run() error {
	e.currentStage = EngineStageRunning
	e.clock.Start()
	e.clock.Update()
	e.lastTime = e.clock.Elapsed()

	for e.isRunning.Load() {
		e.platform.PumpMessages()
		if e.platform.ShouldClose() {
			e.isRunning.Store(false)
			break
		}
		e.pollConfig()

		e.clock.Update()
		currentTime := e.clock.Elapsed()
		delta := currentTime - e.lastTime
		frameStartTime := e.platform.Time()

		if err := e.tick(delta); err != nil {
			if errors.Is(err, core.ErrWindowClosed) {
				core.LogInfo("Window closed while minimized, shutting down.")
				e.isRunning.Store(false)
				return nil
			}
			core.LogError("Frame failed, shutting down: %s", err)
			e.isRunning.Store(false)
			return err
		}

		e.renderer.Metrics().Update(e.platform.Time() - frameStartTime)
		e.lastTime = currentTime
	}
	return nil
}

// tick runs one iteration of the loop after window events were pumped.
func (e *Engine) tick(delta float64) error {
	if e.renderer.NeedsRecreation() {
		if err := e.recreate(); err != nil {
			return err
		}
	}
	if err := e.gameInstance.FnUpdate(e.world, delta); err != nil {
		return err
	}
	return e.drawFrame(delta)
}

// pollConfig forwards a reloaded configuration, if any, as an event.
func (e *Engine) pollConfig() {
	if e.watcher == nil {
		return
	}
	select {
	case cfg := <-e.watcher.Updates():
		ctx := core.EventContext{Payload: cfg}
		core.EventFire(core.EVENT_CODE_CONFIG_RELOADED, e, ctx)
	default:
	}
}

/**
 * @brief Records and presents one frame: scene into the offscreen target,
 * then the composite onto the swapchain image. A skipped frame is not an
 * error; the swapchain is recreated at the top of the next tick.
 */
func (e *Engine) drawFrame(delta float64) error {
	r := e.renderer
	e.world.Camera.SetPerspectiveProjection(math.DegToRad(e.world.FovY), r.AspectRatio(), e.world.NearPlane, e.world.FarPlane)

	cmd, err := r.BeginFrame()
	if err != nil {
		return err
	}
	if cmd == hal.NullCommandBuffer {
		return nil
	}

	frame := &renderer.FrameInfo{
		FrameIndex:          r.FrameIndex(),
		ImageIndex:          r.ImageIndex(),
		FrameTime:           delta,
		CommandBuffer:       cmd,
		Camera:              e.world.Camera,
		GlobalDescriptorSet: e.systemManager.GlobalSet(r.FrameIndex()),
		Entities:            e.world.Entities,
	}
	if err := e.systemManager.Update(frame); err != nil {
		return err
	}

	if err := r.BeginOffscreenRendering(cmd); err != nil {
		return err
	}
	e.systemManager.RenderScene(frame)
	if err := r.EndOffscreenRendering(cmd); err != nil {
		return err
	}
	if err := r.TransitionOffscreenForSampling(cmd); err != nil {
		return err
	}

	if err := r.BeginSwapchainRendering(cmd); err != nil {
		return err
	}
	e.systemManager.RenderScreen(frame)
	if err := r.EndSwapchainRendering(cmd); err != nil {
		return err
	}

	if _, err := r.EndFrame(); err != nil {
		return err
	}
	return nil
}

// recreate rebuilds the swapchain and, when the sample count or formats
// moved, the pipelines that render into it.
func (e *Engine) recreate() error {
	if err := e.renderer.RecreateSwapchain(); err != nil {
		return err
	}
	scene, screen := e.passTargets()
	if _, err := e.systemManager.Retarget(scene, screen, e.renderer.Offscreen().DescriptorSetLayout()); err != nil {
		return err
	}
	extent := e.renderer.Swapchain().Extent()
	if extent.Width != e.width || extent.Height != e.height {
		e.width, e.height = extent.Width, extent.Height
		if e.gameInstance.FnOnResize != nil {
			return e.gameInstance.FnOnResize(e.world, e.width, e.height)
		}
	}
	return nil
}

// applyConfig takes the runtime-adjustable parts of a reloaded configuration.
func (e *Engine) applyConfig(next *core.Config) {
	if next.Renderer.OffscreenFormat != e.config.Renderer.OffscreenFormat {
		core.LogWarn("offscreen format change to %q needs a restart", next.Renderer.OffscreenFormat)
	}
	if next.Renderer.Validation != e.config.Renderer.Validation {
		core.LogWarn("validation layer change needs a restart")
	}
	if next.Log.Level != e.config.Log.Level && !core.SetLogLevel(next.Log.Level) {
		core.LogWarn("unknown log level %q, keeping the current one", next.Log.Level)
	}
	core.SetFatalAssertions(next.Renderer.DebugAsserts)

	rc := next.Renderer
	rc.OffscreenFormat = e.config.Renderer.OffscreenFormat
	rc.Validation = e.config.Renderer.Validation
	if e.config.RequiresRecreation(next) {
		core.LogInfo("Config reload requires swapchain recreation.")
	}
	e.renderer.ApplyConfig(rc)

	applied := *next
	applied.Renderer = rc
	e.config = &applied
}

func (e *Engine) Shutdown() error {
	e.currentStage = EngineStageShuttingDown
	e.isRunning.Store(false)

	if e.watcher != nil {
		if err := e.watcher.Close(); err != nil {
			core.LogError(err.Error())
		}
		e.watcher = nil
	}
	e.teardown()
	if e.context != nil {
		e.context.Destroy()
		e.context = nil
	}
	if err := core.EventShutdown(); err != nil {
		return err
	}
	if e.platform != nil {
		if err := e.platform.Shutdown(); err != nil {
			return err
		}
	}
	return nil
}

// teardown releases everything setup created, game resources first.
func (e *Engine) teardown() {
	if e.device != nil {
		if err := e.device.WaitIdle(); err != nil {
			core.LogError(err.Error())
		}
	}
	if e.world != nil && e.gameInstance.FnShutdown != nil {
		if err := e.gameInstance.FnShutdown(e.world); err != nil {
			core.LogError(err.Error())
		}
	}
	if e.systemManager != nil {
		e.systemManager.Shutdown()
		e.systemManager = nil
	}
	if e.renderer != nil {
		e.renderer.Destroy()
		e.renderer = nil
	}
	core.EventUnregister(core.EVENT_CODE_APPLICATION_QUIT, e)
	core.EventUnregister(core.EVENT_CODE_RESIZED, e)
	core.EventUnregister(core.EVENT_CODE_CONFIG_RELOADED, e)
}

// GetFramebufferSize returns the width and height (in this order) of the
// swapchain images.
func (e *Engine) GetFramebufferSize() (uint32, uint32) {
	return e.width, e.height
}

func (e *Engine) onEvent(code core.SystemEventCode, sender interface{}, listenerInst interface{}, data core.EventContext) bool {
	if code == core.EVENT_CODE_APPLICATION_QUIT {
		core.LogInfo("EVENT_CODE_APPLICATION_QUIT received, shutting down.")
		e.isRunning.Store(false)
		if e.platform != nil {
			e.platform.RequestClose()
		}
		return true
	}
	return false
}

func (e *Engine) onResized(code core.SystemEventCode, sender interface{}, listenerInst interface{}, data core.EventContext) bool {
	width, height := data.Data.U32[0], data.Data.U32[1]
	if width == 0 || height == 0 {
		core.LogInfo("Window minimized, rendering paused until it is restored.")
	} else {
		core.LogDebug("Window resize: %d, %d", width, height)
	}
	// Other listeners may want it too.
	return false
}

func (e *Engine) onConfigReloaded(code core.SystemEventCode, sender interface{}, listenerInst interface{}, data core.EventContext) bool {
	cfg, ok := data.Payload.(*core.Config)
	if !ok {
		core.LogError("wrong payload associated with the event code `%d`", code)
		return false
	}
	core.LogInfo("Configuration reloaded.")
	e.applyConfig(cfg)
	return false
}
