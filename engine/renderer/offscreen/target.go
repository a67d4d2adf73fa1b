// Package offscreen implements a multisampled render target that resolves
// into a sampled image for a later pass.
package offscreen

import (
	"fmt"

	"github.com/spaghettifunk/lumen/engine/core"
	"github.com/spaghettifunk/lumen/engine/renderer/hal"
)

type Config struct {
	Format     hal.Format
	ClearColor [4]float32
}

type attachment struct {
	image  hal.Image
	memory hal.DeviceMemory
	view   hal.ImageView
}

type Target struct {
	device hal.Device
	config Config

	extent      hal.Extent2D
	depthFormat hal.Format
	samples     hal.SampleCount

	// color is absent when samples == 1 and rendering goes to resolve directly.
	color   attachment
	resolve attachment
	depth   attachment

	sampler   hal.Sampler
	setLayout hal.DescriptorSetLayout
	pool      hal.DescriptorPool
	set       hal.DescriptorSet

	layout LayoutState
}

// New creates the target and leaves the resolve image in shader-read layout.
func New(device hal.Device, config Config, extent hal.Extent2D, depthFormat hal.Format, samples hal.SampleCount) (*Target, error) {
	if config.Format == hal.FormatUndefined {
		config.Format = hal.FormatB8G8R8A8Unorm
	}
	t := &Target{device: device, config: config}

	var err error
	t.sampler, err = device.CreateSampler(hal.SamplerDesc{
		MagFilter:     hal.FilterLinear,
		MinFilter:     hal.FilterLinear,
		AddressMode:   hal.AddressModeClampToEdge,
		MaxAnisotropy: 1.0,
		MaxLod:        1.0,
	})
	if err != nil {
		err = fmt.Errorf("%w: failed to create offscreen sampler: %w", core.ErrDevice, err)
		core.LogError(err.Error())
		return nil, err
	}
	if err := t.Recreate(extent, depthFormat, samples); err != nil {
		device.DestroySampler(t.sampler)
		return nil, err
	}
	return t, nil
}

// Recreate releases every image, view and descriptor object and builds new
// ones for extent. The sampler is kept.
func (t *Target) Recreate(extent hal.Extent2D, depthFormat hal.Format, samples hal.SampleCount) error {
	if extent.IsZero() {
		err := fmt.Errorf("offscreen target %dx%d: %w", extent.Width, extent.Height, core.ErrZeroExtent)
		core.LogError(err.Error())
		return err
	}
	t.release()
	t.extent = extent
	t.depthFormat = depthFormat
	t.samples = samples

	if err := t.build(); err != nil {
		err = fmt.Errorf("%w: %w", core.ErrDevice, err)
		core.LogError(err.Error())
		t.release()
		return err
	}
	core.LogDebug("Offscreen target created (%dx%d, %dx msaa).", extent.Width, extent.Height, samples)
	return nil
}

func (t *Target) build() error {
	var err error
	if t.samples > hal.SampleCount1 {
		t.color, err = t.allocate(t.config.Format, hal.UsageColorAttachment|hal.UsageTransientAttachment, t.samples, hal.AspectColor)
		if err != nil {
			return fmt.Errorf("failed to create offscreen multisample colour: %w", err)
		}
	}
	t.resolve, err = t.allocate(t.config.Format, hal.UsageColorAttachment|hal.UsageSampled, hal.SampleCount1, hal.AspectColor)
	if err != nil {
		return fmt.Errorf("failed to create offscreen resolve image: %w", err)
	}
	t.depth, err = t.allocate(t.depthFormat, hal.UsageDepthStencilAttachment, t.samples, hal.AspectDepth)
	if err != nil {
		return fmt.Errorf("failed to create offscreen depth: %w", err)
	}

	// The swapchain pass samples the resolve image from the first frame, so
	// it has to be in shader-read layout before any offscreen pass ran.
	cmd, err := t.device.BeginOneShotCommands()
	if err != nil {
		return fmt.Errorf("failed to begin offscreen layout transition: %w", err)
	}
	t.device.CmdImageBarrier(cmd, hal.ImageBarrier{
		Image:     t.resolve.image,
		Aspect:    hal.AspectColor,
		OldLayout: hal.ImageLayoutUndefined,
		NewLayout: hal.ImageLayoutShaderReadOnly,
		SrcStage:  hal.StageTopOfPipe,
		DstStage:  hal.StageFragmentShader,
		SrcAccess: hal.AccessNone,
		DstAccess: hal.AccessShaderRead,
	})
	if err := t.device.EndOneShotCommands(cmd); err != nil {
		return fmt.Errorf("failed to transition offscreen image: %w", err)
	}
	if err := t.layout.set(LayoutShaderReadOnly); err != nil {
		return err
	}

	t.setLayout, err = t.device.CreateDescriptorSetLayout([]hal.DescriptorBinding{{
		Binding: 0,
		Type:    hal.DescriptorTypeCombinedImageSampler,
		Count:   1,
		Stages:  hal.ShaderStageFragment,
	}})
	if err != nil {
		return fmt.Errorf("failed to create offscreen descriptor set layout: %w", err)
	}
	t.pool, err = t.device.CreateDescriptorPool(1, []hal.DescriptorPoolSize{{Type: hal.DescriptorTypeCombinedImageSampler, Count: 1}})
	if err != nil {
		return fmt.Errorf("failed to create offscreen descriptor pool: %w", err)
	}
	t.set, err = t.device.AllocateDescriptorSet(t.pool, t.setLayout)
	if err != nil {
		return fmt.Errorf("failed to allocate offscreen descriptor set: %w", err)
	}
	t.device.WriteImageDescriptor(t.set, 0, t.resolve.view, t.sampler, hal.ImageLayoutShaderReadOnly)
	return nil
}

func (t *Target) allocate(format hal.Format, usage hal.ImageUsage, samples hal.SampleCount, aspect hal.ImageAspect) (attachment, error) {
	var a attachment
	var err error
	a.image, a.memory, err = t.device.AllocateImage(hal.ImageDesc{
		Extent:    t.extent,
		Format:    format,
		Usage:     usage,
		Samples:   samples,
		MipLevels: 1,
	})
	if err != nil {
		return attachment{}, err
	}
	if a.view, err = t.device.CreateImageView(a.image, format, aspect, 1); err != nil {
		t.device.DestroyImage(a.image, a.memory)
		return attachment{}, err
	}
	return a, nil
}

// BeginRendering transitions the attachments and opens a rendering scope
// that clears colour and depth and resolves into the sampled image.
func (t *Target) BeginRendering(cmd hal.CommandBuffer) {
	barriers := make([]hal.ImageBarrier, 0, 3)
	if t.layout.Current() != LayoutColorAttachment {
		barriers = append(barriers, hal.ImageBarrier{
			Image:     t.resolve.image,
			Aspect:    hal.AspectColor,
			OldLayout: t.layout.Current().ImageLayout(),
			NewLayout: hal.ImageLayoutColorAttachment,
			SrcStage:  hal.StageFragmentShader,
			DstStage:  hal.StageColorAttachmentOutput,
			SrcAccess: hal.AccessShaderRead,
			DstAccess: hal.AccessColorAttachmentWrite,
		})
	}
	// Multisample colour and depth are cleared every pass.
	if t.color.image != 0 {
		barriers = append(barriers, hal.ImageBarrier{
			Image:     t.color.image,
			Aspect:    hal.AspectColor,
			OldLayout: hal.ImageLayoutUndefined,
			NewLayout: hal.ImageLayoutColorAttachment,
			SrcStage:  hal.StageColorAttachmentOutput,
			DstStage:  hal.StageColorAttachmentOutput,
			SrcAccess: hal.AccessColorAttachmentWrite,
			DstAccess: hal.AccessColorAttachmentWrite,
		})
	}
	barriers = append(barriers, DepthBarrier(t.depth.image, t.depthFormat))
	t.device.CmdImageBarrier(cmd, barriers...)
	core.Assert(t.layout.set(LayoutColorAttachment) == nil, "offscreen layout %s cannot become colour attachment", t.layout.Current())

	colour := hal.RenderingAttachment{
		View:       t.resolve.view,
		Layout:     hal.ImageLayoutColorAttachment,
		LoadOp:     hal.LoadOpClear,
		StoreOp:    hal.StoreOpStore,
		ClearColor: t.config.ClearColor,
	}
	if t.color.image != 0 {
		colour.View = t.color.view
		colour.StoreOp = hal.StoreOpDontCare
		colour.ResolveMode = hal.ResolveModeAverage
		colour.ResolveView = t.resolve.view
		colour.ResolveLayout = hal.ImageLayoutColorAttachment
	}
	area := hal.Rect2D{Extent: t.extent}
	t.device.CmdBeginRendering(cmd, hal.RenderingInfo{
		Area:  area,
		Color: []hal.RenderingAttachment{colour},
		Depth: &hal.RenderingAttachment{
			View:       t.depth.view,
			Layout:     hal.ImageLayoutDepthAttachment,
			LoadOp:     hal.LoadOpClear,
			StoreOp:    hal.StoreOpDontCare,
			ClearDepth: 1.0,
		},
	})
	t.device.CmdSetViewport(cmd, hal.FullViewport(t.extent))
	t.device.CmdSetScissor(cmd, area)
}

// EndRendering closes the scope. The resolve image stays a colour attachment
// until TransitionForSampling.
func (t *Target) EndRendering(cmd hal.CommandBuffer) {
	t.device.CmdEndRendering(cmd)
}

// TransitionForSampling makes the resolve image readable from fragment
// shaders. It does nothing when the image already is.
func (t *Target) TransitionForSampling(cmd hal.CommandBuffer) {
	if t.layout.Current() == LayoutShaderReadOnly {
		return
	}
	t.device.CmdImageBarrier(cmd, hal.ImageBarrier{
		Image:     t.resolve.image,
		Aspect:    hal.AspectColor,
		OldLayout: t.layout.Current().ImageLayout(),
		NewLayout: hal.ImageLayoutShaderReadOnly,
		SrcStage:  hal.StageColorAttachmentOutput,
		DstStage:  hal.StageFragmentShader,
		SrcAccess: hal.AccessColorAttachmentWrite,
		DstAccess: hal.AccessShaderRead,
	})
	core.Assert(t.layout.set(LayoutShaderReadOnly) == nil, "offscreen layout %s cannot become shader read", t.layout.Current())
}

// DepthBarrier moves a depth image from undefined to attachment layout,
// discarding its contents. The previous frame's depth writes to the same
// image must finish first.
func DepthBarrier(image hal.Image, format hal.Format) hal.ImageBarrier {
	aspect := hal.AspectDepth
	if format.HasStencil() {
		aspect |= hal.AspectStencil
	}
	return hal.ImageBarrier{
		Image:     image,
		Aspect:    aspect,
		OldLayout: hal.ImageLayoutUndefined,
		NewLayout: hal.ImageLayoutDepthAttachment,
		SrcStage:  hal.StageLateFragmentTests,
		DstStage:  hal.StageEarlyFragmentTests | hal.StageLateFragmentTests,
		SrcAccess: hal.AccessDepthStencilAttachmentWrite,
		DstAccess: hal.AccessDepthStencilAttachmentWrite,
	}
}

func (t *Target) DescriptorSet() hal.DescriptorSet {
	return t.set
}

func (t *Target) DescriptorSetLayout() hal.DescriptorSetLayout {
	return t.setLayout
}

func (t *Target) ResolveView() hal.ImageView {
	return t.resolve.view
}

func (t *Target) ResolveImage() hal.Image {
	return t.resolve.image
}

func (t *Target) Sampler() hal.Sampler {
	return t.sampler
}

func (t *Target) Extent() hal.Extent2D {
	return t.extent
}

func (t *Target) Layout() Layout {
	return t.layout.Current()
}

func (t *Target) Format() hal.Format {
	return t.config.Format
}

func (t *Target) SampleCount() hal.SampleCount {
	return t.samples
}

// SetClearColor changes the clear colour used by the next pass.
func (t *Target) SetClearColor(c [4]float32) {
	t.config.ClearColor = c
}

// Destroy releases everything including the sampler.
func (t *Target) Destroy() {
	t.release()
	if t.sampler != 0 {
		t.device.DestroySampler(t.sampler)
		t.sampler = 0
	}
}

func (t *Target) release() {
	// Destroying the pool frees the set.
	if t.pool != 0 {
		t.device.DestroyDescriptorPool(t.pool)
	}
	if t.setLayout != 0 {
		t.device.DestroyDescriptorSetLayout(t.setLayout)
	}
	t.pool, t.setLayout, t.set = 0, 0, 0
	for _, a := range []*attachment{&t.depth, &t.resolve, &t.color} {
		if a.view != 0 {
			t.device.DestroyImageView(a.view)
		}
		if a.image != 0 {
			t.device.DestroyImage(a.image, a.memory)
		}
		*a = attachment{}
	}
	t.layout.reset()
}
