package renderer

import (
	"fmt"

	"github.com/spaghettifunk/lumen/engine/core"
	"github.com/spaghettifunk/lumen/engine/renderer/hal"
	"github.com/spaghettifunk/lumen/engine/renderer/offscreen"
	"github.com/spaghettifunk/lumen/engine/renderer/swapchain"
)

// MaxFramesInFlight mirrors the swapchain frame-slot count.
const MaxFramesInFlight = swapchain.MaxFramesInFlight

/**
 * @brief Window is what the renderer needs from the platform layer.
 */
type Window interface {
	/** @brief The current framebuffer size in pixels. Zero while minimized. */
	FramebufferExtent() hal.Extent2D
	/** @brief Whether the framebuffer was resized since the flag was cleared. */
	WasResized() bool
	ClearResizedFlag()
	/** @brief Blocks until at least one window event arrived. */
	WaitEvents()
	/** @brief Whether the user asked for the window to close. */
	ShouldClose() bool
}

type FrameState int

const (
	FrameIdle FrameState = iota
	FrameBegun
	FrameOffscreenRecording
	FrameOffscreenDone
	FrameSwapchainRecording
	FramePresenting
)

func (s FrameState) String() string {
	switch s {
	case FrameIdle:
		return "idle"
	case FrameBegun:
		return "begun"
	case FrameOffscreenRecording:
		return "offscreen-recording"
	case FrameOffscreenDone:
		return "offscreen-done"
	case FrameSwapchainRecording:
		return "swapchain-recording"
	case FramePresenting:
		return "presenting"
	}
	return "unknown"
}

/**
 * @brief Renderer drives one frame at a time: acquire, offscreen pass,
 * swapchain pass, submit and present. It never recreates the swapchain on
 * its own; callers check NeedsRecreation and call RecreateSwapchain.
 */
type Renderer struct {
	device hal.Device
	window Window
	config core.RendererConfig

	swapchain *swapchain.Swapchain
	offscreen *offscreen.Target

	commandBuffers []hal.CommandBuffer
	state          FrameState
	frameIndex     int
	imageIndex     uint32

	// swapchainDrawn is set once the swapchain image reached present layout.
	swapchainDrawn  bool
	needsRecreation bool

	metrics *core.FrameMetrics
}

// New builds the swapchain, the offscreen target and the per-frame command
// buffers. It blocks while the window has no area.
func New(device hal.Device, window Window, config core.RendererConfig) (*Renderer, error) {
	format, err := hal.FormatFromName(config.OffscreenFormat)
	if err != nil {
		err = fmt.Errorf("%w: %w", core.ErrConfig, err)
		core.LogError(err.Error())
		return nil, err
	}

	r := &Renderer{
		device:  device,
		window:  window,
		config:  config,
		metrics: core.NewFrameMetrics(),
	}

	extent, err := r.waitForExtent()
	if err != nil {
		return nil, err
	}
	r.swapchain, err = swapchain.New(device, swapchain.Config{VSync: config.VSync, MSAA: config.MSAA}, extent)
	if err != nil {
		return nil, err
	}
	r.offscreen, err = offscreen.New(device, offscreen.Config{Format: format, ClearColor: config.ClearColor},
		r.swapchain.Extent(), r.swapchain.DepthFormat(), r.swapchain.SampleCount())
	if err != nil {
		r.swapchain.Destroy()
		return nil, err
	}
	r.commandBuffers, err = device.AllocateCommandBuffers(MaxFramesInFlight)
	if err != nil {
		err = fmt.Errorf("failed to allocate command buffers: %w", err)
		core.LogError(err.Error())
		r.offscreen.Destroy()
		r.swapchain.Destroy()
		return nil, err
	}
	core.LogInfo("Renderer initialized with %d frames in flight.", MaxFramesInFlight)
	return r, nil
}

// waitForExtent blocks on window events while the framebuffer has no area.
// It gives up with core.ErrWindowClosed once the window is closing.
func (r *Renderer) waitForExtent() (hal.Extent2D, error) {
	extent := r.window.FramebufferExtent()
	for extent.IsZero() {
		if r.window.ShouldClose() {
			return hal.Extent2D{}, core.ErrWindowClosed
		}
		r.window.WaitEvents()
		extent = r.window.FramebufferExtent()
	}
	return extent, nil
}

// check reports a lifecycle misuse. With fatal assertions it panics.
func (r *Renderer) check(cmd hal.CommandBuffer, op string, allowed ...FrameState) error {
	for _, s := range allowed {
		if r.state == s {
			if cmd != r.commandBuffers[r.frameIndex] {
				err := fmt.Errorf("%s: command buffer %d is not the current frame's: %w", op, cmd, core.ErrAssertion)
				core.Assert(false, "%s", err.Error())
				return err
			}
			return nil
		}
	}
	sentinel := core.ErrFrameNotInProgress
	if r.state != FrameIdle {
		sentinel = core.ErrAssertion
	}
	err := fmt.Errorf("%s in state %s: %w", op, r.state, sentinel)
	core.Assert(false, "%s", err.Error())
	return err
}

/**
 * @brief Acquires the next swapchain image and begins the frame's command
 * buffer. Returns hal.NullCommandBuffer with a nil error when no frame can
 * be rendered (swapchain out of date or recreation pending).
 */
func (r *Renderer) BeginFrame() (hal.CommandBuffer, error) {
	if r.state != FrameIdle {
		err := fmt.Errorf("BeginFrame in state %s: %w", r.state, core.ErrFrameInProgress)
		core.Assert(false, "%s", err.Error())
		return hal.NullCommandBuffer, err
	}
	if r.needsRecreation {
		return hal.NullCommandBuffer, nil
	}
	if r.window.FramebufferExtent().IsZero() {
		// Minimized: nothing to draw into until the window has area again.
		r.needsRecreation = true
		r.metrics.SkippedFrames++
		return hal.NullCommandBuffer, nil
	}

	index, result, err := r.swapchain.AcquireNextImage()
	if err != nil {
		return hal.NullCommandBuffer, err
	}
	switch result {
	case hal.ResultOutOfDate:
		r.needsRecreation = true
		r.metrics.SkippedFrames++
		core.LogDebug("swapchain out of date on acquire")
		return hal.NullCommandBuffer, nil
	case hal.ResultSuboptimal:
		r.metrics.SuboptimalFrames++
	}

	r.imageIndex = index
	cmd := r.commandBuffers[r.frameIndex]
	if err := r.device.BeginCommandBuffer(cmd); err != nil {
		err = fmt.Errorf("failed to begin recording command buffer: %w", err)
		core.LogError(err.Error())
		return hal.NullCommandBuffer, err
	}
	r.state = FrameBegun
	r.swapchainDrawn = false
	return cmd, nil
}

func (r *Renderer) BeginOffscreenRendering(cmd hal.CommandBuffer) error {
	if err := r.check(cmd, "BeginOffscreenRendering", FrameBegun); err != nil {
		return err
	}
	r.offscreen.BeginRendering(cmd)
	r.state = FrameOffscreenRecording
	return nil
}

func (r *Renderer) EndOffscreenRendering(cmd hal.CommandBuffer) error {
	if err := r.check(cmd, "EndOffscreenRendering", FrameOffscreenRecording); err != nil {
		return err
	}
	r.offscreen.EndRendering(cmd)
	r.state = FrameOffscreenDone
	return nil
}

// TransitionOffscreenForSampling makes the offscreen result readable by the
// swapchain pass. BeginSwapchainRendering does it as well when skipped.
func (r *Renderer) TransitionOffscreenForSampling(cmd hal.CommandBuffer) error {
	if err := r.check(cmd, "TransitionOffscreenForSampling", FrameBegun, FrameOffscreenDone); err != nil {
		return err
	}
	r.offscreen.TransitionForSampling(cmd)
	return nil
}

/**
 * @brief Opens the pass that renders into the acquired swapchain image. The
 * image is cleared with the configured clear colour.
 */
func (r *Renderer) BeginSwapchainRendering(cmd hal.CommandBuffer) error {
	if err := r.check(cmd, "BeginSwapchainRendering", FrameBegun, FrameOffscreenDone); err != nil {
		return err
	}
	r.offscreen.TransitionForSampling(cmd)

	i := int(r.imageIndex)
	sc := r.swapchain
	barriers := []hal.ImageBarrier{{
		Image:     sc.Image(i),
		Aspect:    hal.AspectColor,
		OldLayout: hal.ImageLayoutUndefined,
		NewLayout: hal.ImageLayoutColorAttachment,
		SrcStage:  hal.StageColorAttachmentOutput,
		DstStage:  hal.StageColorAttachmentOutput,
		SrcAccess: hal.AccessNone,
		DstAccess: hal.AccessColorAttachmentWrite,
	}}
	multisampled := sc.SampleCount() > hal.SampleCount1
	if multisampled {
		barriers = append(barriers, hal.ImageBarrier{
			Image:     sc.ColorImage(i),
			Aspect:    hal.AspectColor,
			OldLayout: hal.ImageLayoutUndefined,
			NewLayout: hal.ImageLayoutColorAttachment,
			SrcStage:  hal.StageColorAttachmentOutput,
			DstStage:  hal.StageColorAttachmentOutput,
			SrcAccess: hal.AccessColorAttachmentWrite,
			DstAccess: hal.AccessColorAttachmentWrite,
		})
	}
	barriers = append(barriers, offscreen.DepthBarrier(sc.DepthImage(i), sc.DepthFormat()))
	r.device.CmdImageBarrier(cmd, barriers...)

	colour := hal.RenderingAttachment{
		View:       sc.ImageView(i),
		Layout:     hal.ImageLayoutColorAttachment,
		LoadOp:     hal.LoadOpClear,
		StoreOp:    hal.StoreOpStore,
		ClearColor: r.config.ClearColor,
	}
	if multisampled {
		colour.View = sc.ColorView(i)
		colour.StoreOp = hal.StoreOpDontCare
		colour.ResolveMode = hal.ResolveModeAverage
		colour.ResolveView = sc.ImageView(i)
		colour.ResolveLayout = hal.ImageLayoutColorAttachment
	}
	area := hal.Rect2D{Extent: sc.Extent()}
	r.device.CmdBeginRendering(cmd, hal.RenderingInfo{
		Area:  area,
		Color: []hal.RenderingAttachment{colour},
		Depth: &hal.RenderingAttachment{
			View:       sc.DepthView(i),
			Layout:     hal.ImageLayoutDepthAttachment,
			LoadOp:     hal.LoadOpClear,
			StoreOp:    hal.StoreOpDontCare,
			ClearDepth: 1.0,
		},
	})
	r.device.CmdSetViewport(cmd, hal.FullViewport(sc.Extent()))
	r.device.CmdSetScissor(cmd, area)
	r.state = FrameSwapchainRecording
	return nil
}

func (r *Renderer) EndSwapchainRendering(cmd hal.CommandBuffer) error {
	if err := r.check(cmd, "EndSwapchainRendering", FrameSwapchainRecording); err != nil {
		return err
	}
	r.device.CmdEndRendering(cmd)
	r.device.CmdImageBarrier(cmd, r.presentBarrier(hal.ImageLayoutColorAttachment))
	r.swapchainDrawn = true
	r.state = FramePresenting
	return nil
}

func (r *Renderer) presentBarrier(from hal.ImageLayout) hal.ImageBarrier {
	return hal.ImageBarrier{
		Image:     r.swapchain.Image(int(r.imageIndex)),
		Aspect:    hal.AspectColor,
		OldLayout: from,
		NewLayout: hal.ImageLayoutPresentSrc,
		SrcStage:  hal.StageColorAttachmentOutput,
		DstStage:  hal.StageBottomOfPipe,
		SrcAccess: hal.AccessColorAttachmentWrite,
		DstAccess: hal.AccessNone,
	}
}

/**
 * @brief Ends recording, submits and presents. Returns false when the
 * swapchain has to be recreated before the next frame.
 */
func (r *Renderer) EndFrame() (bool, error) {
	cmd := hal.NullCommandBuffer
	if r.state != FrameIdle {
		cmd = r.commandBuffers[r.frameIndex]
	}
	if err := r.check(cmd, "EndFrame", FrameBegun, FrameOffscreenDone, FramePresenting); err != nil {
		return false, err
	}
	if !r.swapchainDrawn {
		// A frame without a swapchain pass still has to present a valid image.
		r.device.CmdImageBarrier(cmd, r.presentBarrier(hal.ImageLayoutUndefined))
	}
	r.state = FrameIdle

	if err := r.device.EndCommandBuffer(cmd); err != nil {
		err = fmt.Errorf("failed to record command buffer: %w", err)
		core.LogError(err.Error())
		return false, err
	}
	result, err := r.swapchain.SubmitAndPresent(cmd, r.imageIndex)
	if err != nil {
		return false, err
	}
	r.frameIndex = r.swapchain.CurrentFrame()

	if result == hal.ResultOutOfDate || r.window.WasResized() {
		r.window.ClearResizedFlag()
		r.needsRecreation = true
		return false, nil
	}
	if result == hal.ResultSuboptimal {
		r.metrics.SuboptimalFrames++
	}
	return true, nil
}

/**
 * @brief Rebuilds the swapchain and the offscreen target for the current
 * window size. Blocks while the window is minimized.
 */
func (r *Renderer) RecreateSwapchain() error {
	if r.state != FrameIdle {
		err := fmt.Errorf("RecreateSwapchain in state %s: %w", r.state, core.ErrFrameInProgress)
		core.Assert(false, "%s", err.Error())
		return err
	}
	extent, err := r.waitForExtent()
	if err != nil {
		return err
	}

	next, err := r.swapchain.Recreate(extent)
	if err != nil {
		return err
	}
	r.swapchain = next
	if err := r.offscreen.Recreate(next.Extent(), next.DepthFormat(), next.SampleCount()); err != nil {
		return err
	}
	r.frameIndex = 0
	r.needsRecreation = false
	r.metrics.Recreations++
	core.LogInfo("Swapchain recreated (%dx%d).", next.Extent().Width, next.Extent().Height)
	return nil
}

// ApplyConfig takes the settings that can change at runtime. VSync and MSAA
// changes schedule a swapchain recreation.
func (r *Renderer) ApplyConfig(config core.RendererConfig) {
	r.SetClearColor(config.ClearColor)
	if config.VSync != r.config.VSync || config.MSAA != r.config.MSAA {
		r.swapchain.SetConfig(swapchain.Config{VSync: config.VSync, MSAA: config.MSAA})
		r.needsRecreation = true
	}
	r.config = config
}

func (r *Renderer) SetClearColor(c [4]float32) {
	r.config.ClearColor = c
	r.offscreen.SetClearColor(c)
}

func (r *Renderer) NeedsRecreation() bool {
	return r.needsRecreation
}

func (r *Renderer) IsFrameInProgress() bool {
	return r.state != FrameIdle
}

func (r *Renderer) State() FrameState {
	return r.state
}

func (r *Renderer) FrameIndex() int {
	return r.frameIndex
}

func (r *Renderer) ImageIndex() uint32 {
	return r.imageIndex
}

func (r *Renderer) AspectRatio() float32 {
	return r.swapchain.AspectRatio()
}

func (r *Renderer) OffscreenDescriptorSet() hal.DescriptorSet {
	return r.offscreen.DescriptorSet()
}

func (r *Renderer) Swapchain() *swapchain.Swapchain {
	return r.swapchain
}

func (r *Renderer) Offscreen() *offscreen.Target {
	return r.offscreen
}

func (r *Renderer) Metrics() *core.FrameMetrics {
	return r.metrics
}

// Destroy waits for the device and releases everything the renderer owns.
func (r *Renderer) Destroy() {
	if err := r.device.WaitIdle(); err != nil {
		core.LogError(err.Error())
	}
	r.device.FreeCommandBuffers(r.commandBuffers)
	r.commandBuffers = nil
	r.offscreen.Destroy()
	r.swapchain.Destroy()
	core.LogInfo("renderer destroyed")
}
