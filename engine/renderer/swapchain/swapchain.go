// Package swapchain owns the presentable images, their per-image attachments
// and the frame-slot synchronisation used to pace the CPU against the GPU.
package swapchain

import (
	"fmt"

	"github.com/spaghettifunk/lumen/engine/core"
	"github.com/spaghettifunk/lumen/engine/renderer/hal"
)

// MaxFramesInFlight is the number of frames the CPU may record ahead of the GPU.
const MaxFramesInFlight = 2

type Config struct {
	VSync bool
	// MSAA is the requested sample count. It is clamped to the device maximum.
	MSAA uint32
}

type attachment struct {
	image  hal.Image
	memory hal.DeviceMemory
	view   hal.ImageView
}

// retiredChain is a replaced swapchain kept alive until the frames that may
// still reference it have been submitted.
type retiredChain struct {
	chain           *Swapchain
	framesRemaining int
}

type Swapchain struct {
	device hal.Device
	config Config

	handle      hal.Swapchain
	format      hal.SurfaceFormat
	presentMode hal.PresentMode
	extent      hal.Extent2D
	depthFormat hal.Format
	samples     hal.SampleCount

	// Per image.
	images         []hal.Image
	views          []hal.ImageView
	depth          []attachment
	color          []attachment
	renderFinished []hal.Semaphore
	imagesInFlight []hal.Fence

	// Per frame slot.
	imageAvailable [MaxFramesInFlight]hal.Semaphore
	inFlight       [MaxFramesInFlight]hal.Fence
	currentFrame   int

	retired *retiredChain
}

// New creates a swapchain for a window of the given extent.
func New(device hal.Device, config Config, windowExtent hal.Extent2D) (*Swapchain, error) {
	return create(device, config, windowExtent, 0)
}

func create(device hal.Device, config Config, windowExtent hal.Extent2D, old hal.Swapchain) (*Swapchain, error) {
	if windowExtent.IsZero() {
		err := fmt.Errorf("cannot create swapchain for %dx%d window: %w", windowExtent.Width, windowExtent.Height, core.ErrZeroExtent)
		core.LogError(err.Error())
		return nil, err
	}
	sc := &Swapchain{device: device, config: config}
	if err := sc.build(windowExtent, old); err != nil {
		core.LogError(err.Error())
		sc.destroyResources()
		return nil, err
	}
	core.LogInfo("Swapchain ready: %d images, %dx%d, %s, %s, %dx msaa.",
		len(sc.images), sc.extent.Width, sc.extent.Height, sc.format.Format, sc.presentMode, sc.samples)
	return sc, nil
}

func (sc *Swapchain) build(windowExtent hal.Extent2D, old hal.Swapchain) error {
	support, err := sc.device.SurfaceSupport()
	if err != nil {
		return fmt.Errorf("failed to query surface support: %w", err)
	}
	if len(support.Formats) == 0 || len(support.PresentModes) == 0 {
		return fmt.Errorf("surface offers no formats or present modes: %w", core.ErrDevice)
	}

	sc.format = chooseSurfaceFormat(support.Formats)
	sc.presentMode = choosePresentMode(support.PresentModes, sc.config.VSync)
	sc.extent = chooseExtent(support.Capabilities, windowExtent)
	if sc.extent.IsZero() {
		return fmt.Errorf("surface extent %dx%d: %w", sc.extent.Width, sc.extent.Height, core.ErrZeroExtent)
	}

	sc.depthFormat, err = sc.device.DepthFormat()
	if err != nil {
		return fmt.Errorf("failed to find a depth format: %w", err)
	}
	sc.samples = hal.ClampSampleCount(sc.config.MSAA, sc.device.MaxSampleCount())

	sc.handle, err = sc.device.CreateSwapchain(hal.SwapchainDesc{
		MinImageCount: chooseImageCount(support.Capabilities),
		Format:        sc.format,
		Extent:        sc.extent,
		PresentMode:   sc.presentMode,
		OldSwapchain:  old,
	})
	if err != nil {
		return fmt.Errorf("failed to create swapchain: %w", err)
	}
	sc.images, err = sc.device.SwapchainImages(sc.handle)
	if err != nil {
		return fmt.Errorf("failed to get swapchain images: %w", err)
	}

	count := len(sc.images)
	sc.views = make([]hal.ImageView, count)
	sc.depth = make([]attachment, count)
	sc.color = make([]attachment, count)
	sc.renderFinished = make([]hal.Semaphore, count)
	sc.imagesInFlight = make([]hal.Fence, count)

	for i, img := range sc.images {
		if sc.views[i], err = sc.device.CreateImageView(img, sc.format.Format, hal.AspectColor, 1); err != nil {
			return fmt.Errorf("failed to create view for swapchain image %d: %w", i, err)
		}
		if sc.samples > hal.SampleCount1 {
			if sc.color[i], err = sc.allocate(sc.format.Format, hal.UsageColorAttachment|hal.UsageTransientAttachment, hal.AspectColor); err != nil {
				return fmt.Errorf("failed to create multisample colour for image %d: %w", i, err)
			}
		}
		if sc.depth[i], err = sc.allocate(sc.depthFormat, hal.UsageDepthStencilAttachment, hal.AspectDepth); err != nil {
			return fmt.Errorf("failed to create depth attachment for image %d: %w", i, err)
		}
		if sc.renderFinished[i], err = sc.device.CreateSemaphore(); err != nil {
			return fmt.Errorf("failed to create render finished semaphore %d: %w", i, err)
		}
	}

	for i := 0; i < MaxFramesInFlight; i++ {
		if sc.imageAvailable[i], err = sc.device.CreateSemaphore(); err != nil {
			return fmt.Errorf("failed to create image available semaphore %d: %w", i, err)
		}
		// Signaled so the first wait on each slot returns immediately.
		if sc.inFlight[i], err = sc.device.CreateFence(true); err != nil {
			return fmt.Errorf("failed to create in-flight fence %d: %w", i, err)
		}
	}
	return nil
}

func (sc *Swapchain) allocate(format hal.Format, usage hal.ImageUsage, aspect hal.ImageAspect) (attachment, error) {
	var a attachment
	var err error
	a.image, a.memory, err = sc.device.AllocateImage(hal.ImageDesc{
		Extent:    sc.extent,
		Format:    format,
		Usage:     usage,
		Samples:   sc.samples,
		MipLevels: 1,
	})
	if err != nil {
		return a, err
	}
	a.view, err = sc.device.CreateImageView(a.image, format, aspect, 1)
	if err != nil {
		sc.device.DestroyImage(a.image, a.memory)
		return attachment{}, err
	}
	return a, nil
}

// Recreate builds a replacement chain for the new window extent. The
// receiver is retired into the new chain and destroyed once
// MaxFramesInFlight frames have been submitted on the replacement. The
// replacement must keep the colour and depth formats.
func (sc *Swapchain) Recreate(windowExtent hal.Extent2D) (*Swapchain, error) {
	if err := sc.device.WaitIdle(); err != nil {
		err = fmt.Errorf("failed to wait for device idle: %w", err)
		core.LogError(err.Error())
		return nil, err
	}

	next, err := create(sc.device, sc.config, windowExtent, sc.handle)
	if err != nil {
		return nil, err
	}
	if !sc.CompareFormats(next) {
		err := fmt.Errorf("swapchain format went from %s/%s to %s/%s: %w",
			sc.format.Format, sc.depthFormat, next.format.Format, next.depthFormat, core.ErrSwapchainFormatChanged)
		core.LogError(err.Error())
		next.Destroy()
		return nil, err
	}

	// The device is idle, so an older retired chain can go right away.
	if sc.retired != nil {
		sc.retired.chain.Destroy()
		sc.retired = nil
	}
	next.retired = &retiredChain{chain: sc, framesRemaining: MaxFramesInFlight}
	return next, nil
}

// SetConfig changes the settings used by the next Recreate.
func (sc *Swapchain) SetConfig(config Config) {
	sc.config = config
}

// AcquireNextImage waits for the current frame slot to be free and acquires
// the next presentable image. It never advances the frame slot.
func (sc *Swapchain) AcquireNextImage() (uint32, hal.Result, error) {
	if err := sc.device.WaitForFence(sc.inFlight[sc.currentFrame]); err != nil {
		err = fmt.Errorf("failed to wait for frame %d fence: %w", sc.currentFrame, err)
		core.LogError(err.Error())
		return 0, hal.ResultSuccess, err
	}
	index, result, err := sc.device.AcquireNextImage(sc.handle, sc.imageAvailable[sc.currentFrame])
	if err != nil {
		err = fmt.Errorf("failed to acquire swapchain image: %w", err)
		core.LogError(err.Error())
		return 0, result, err
	}
	return index, result, nil
}

// SubmitAndPresent submits cmd for the acquired image and queues it for
// presentation. The frame slot advances only when both succeed and the
// chain was not reported out of date.
func (sc *Swapchain) SubmitAndPresent(cmd hal.CommandBuffer, imageIndex uint32) (hal.Result, error) {
	if int(imageIndex) >= len(sc.images) {
		err := fmt.Errorf("image index %d out of range (%d images): %w", imageIndex, len(sc.images), core.ErrAssertion)
		core.LogError(err.Error())
		return hal.ResultSuccess, err
	}

	// A previous frame may still be using this image.
	if f := sc.imagesInFlight[imageIndex]; f != 0 {
		if err := sc.device.WaitForFence(f); err != nil {
			err = fmt.Errorf("failed to wait for image %d fence: %w", imageIndex, err)
			core.LogError(err.Error())
			return hal.ResultSuccess, err
		}
	}
	fence := sc.inFlight[sc.currentFrame]
	sc.imagesInFlight[imageIndex] = fence

	if err := sc.device.ResetFence(fence); err != nil {
		err = fmt.Errorf("failed to reset frame %d fence: %w", sc.currentFrame, err)
		core.LogError(err.Error())
		return hal.ResultSuccess, err
	}
	err := sc.device.QueueSubmit(hal.SubmitInfo{
		CommandBuffer: cmd,
		Wait:          sc.imageAvailable[sc.currentFrame],
		WaitStage:     hal.StageColorAttachmentOutput,
		Signal:        sc.renderFinished[imageIndex],
		Fence:         fence,
	})
	if err != nil {
		err = fmt.Errorf("failed to submit draw command buffer: %w", err)
		core.LogError(err.Error())
		return hal.ResultSuccess, err
	}
	sc.tickRetired()

	result, err := sc.device.QueuePresent(hal.PresentInfo{
		Swapchain:  sc.handle,
		ImageIndex: imageIndex,
		Wait:       sc.renderFinished[imageIndex],
	})
	if err != nil {
		err = fmt.Errorf("failed to present swapchain image: %w", err)
		core.LogError(err.Error())
		return result, err
	}
	if result != hal.ResultOutOfDate {
		sc.currentFrame = (sc.currentFrame + 1) % MaxFramesInFlight
	}
	return result, nil
}

func (sc *Swapchain) tickRetired() {
	if sc.retired == nil {
		return
	}
	sc.retired.framesRemaining--
	if sc.retired.framesRemaining <= 0 {
		sc.retired.chain.Destroy()
		sc.retired = nil
		core.LogDebug("retired swapchain destroyed")
	}
}

func (sc *Swapchain) Handle() hal.Swapchain {
	return sc.handle
}

func (sc *Swapchain) ImageCount() int {
	return len(sc.images)
}

func (sc *Swapchain) Extent() hal.Extent2D {
	return sc.extent
}

func (sc *Swapchain) ImageFormat() hal.Format {
	return sc.format.Format
}

func (sc *Swapchain) DepthFormat() hal.Format {
	return sc.depthFormat
}

func (sc *Swapchain) SampleCount() hal.SampleCount {
	return sc.samples
}

func (sc *Swapchain) PresentMode() hal.PresentMode {
	return sc.presentMode
}

func (sc *Swapchain) CurrentFrame() int {
	return sc.currentFrame
}

func (sc *Swapchain) Image(i int) hal.Image {
	return sc.images[i]
}

func (sc *Swapchain) ImageView(i int) hal.ImageView {
	return sc.views[i]
}

func (sc *Swapchain) DepthImage(i int) hal.Image {
	return sc.depth[i].image
}

func (sc *Swapchain) DepthView(i int) hal.ImageView {
	return sc.depth[i].view
}

func (sc *Swapchain) ColorImage(i int) hal.Image {
	return sc.color[i].image
}

func (sc *Swapchain) ColorView(i int) hal.ImageView {
	return sc.color[i].view
}

func (sc *Swapchain) AspectRatio() float32 {
	if sc.extent.Height == 0 {
		return 1
	}
	return float32(sc.extent.Width) / float32(sc.extent.Height)
}

// CompareFormats reports whether other uses the same colour and depth formats.
func (sc *Swapchain) CompareFormats(other *Swapchain) bool {
	return sc.format.Format == other.format.Format && sc.depthFormat == other.depthFormat
}

// Destroy releases the chain and any retired predecessor. The caller must
// make sure the device is idle.
func (sc *Swapchain) Destroy() {
	if sc.retired != nil {
		sc.retired.chain.Destroy()
		sc.retired = nil
	}
	sc.destroyResources()
}

func (sc *Swapchain) destroyResources() {
	for i := MaxFramesInFlight - 1; i >= 0; i-- {
		if sc.inFlight[i] != 0 {
			sc.device.DestroyFence(sc.inFlight[i])
			sc.inFlight[i] = 0
		}
		if sc.imageAvailable[i] != 0 {
			sc.device.DestroySemaphore(sc.imageAvailable[i])
			sc.imageAvailable[i] = 0
		}
	}
	for i := len(sc.images) - 1; i >= 0; i-- {
		if sc.renderFinished[i] != 0 {
			sc.device.DestroySemaphore(sc.renderFinished[i])
		}
		sc.destroyAttachment(sc.depth[i])
		sc.destroyAttachment(sc.color[i])
		if sc.views[i] != 0 {
			sc.device.DestroyImageView(sc.views[i])
		}
	}
	// Swapchain images belong to the swapchain itself.
	if sc.handle != 0 {
		sc.device.DestroySwapchain(sc.handle)
		sc.handle = 0
	}
	sc.images, sc.views, sc.depth, sc.color = nil, nil, nil, nil
	sc.renderFinished, sc.imagesInFlight = nil, nil
}

func (sc *Swapchain) destroyAttachment(a attachment) {
	if a.view != 0 {
		sc.device.DestroyImageView(a.view)
	}
	if a.image != 0 {
		sc.device.DestroyImage(a.image, a.memory)
	}
}
