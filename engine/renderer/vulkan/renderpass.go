package vulkan

import (
	vk "github.com/goki/vulkan"

	"github.com/spaghettifunk/lumen/engine/renderer/hal"
)

func (vc *VulkanContext) renderingAttachment(a hal.RenderingAttachment, depth bool) vk.RenderingAttachmentInfo {
	info := vk.RenderingAttachmentInfo{
		SType:       vk.StructureTypeRenderingAttachmentInfo,
		ImageView:   vc.imageView(a.View),
		ImageLayout: toVkLayout(a.Layout),
		ResolveMode: toVkResolveMode(a.ResolveMode),
		LoadOp:      toVkLoadOp(a.LoadOp),
		StoreOp:     toVkStoreOp(a.StoreOp),
	}
	if a.ResolveMode != hal.ResolveModeNone {
		info.ResolveImageView = vc.imageView(a.ResolveView)
		info.ResolveImageLayout = toVkLayout(a.ResolveLayout)
	}
	if depth {
		info.ClearValue = vk.NewClearDepthStencil(a.ClearDepth, a.ClearStencil)
	} else {
		info.ClearValue = vk.NewClearValue(a.ClearColor[:])
	}
	return info
}

/**
 * @brief Begins dynamic rendering into the given attachments. There are no
 * render pass or framebuffer objects.
 */
func (vc *VulkanContext) CmdBeginRendering(cmd hal.CommandBuffer, info hal.RenderingInfo) {
	colors := make([]vk.RenderingAttachmentInfo, len(info.Color))
	for i, c := range info.Color {
		colors[i] = vc.renderingAttachment(c, false)
	}
	renderingInfo := vk.RenderingInfo{
		SType: vk.StructureTypeRenderingInfo,
		RenderArea: vk.Rect2D{
			Offset: vk.Offset2D{X: info.Area.X, Y: info.Area.Y},
			Extent: vk.Extent2D{Width: info.Area.Extent.Width, Height: info.Area.Extent.Height},
		},
		LayerCount:           1,
		ColorAttachmentCount: uint32(len(colors)),
		PColorAttachments:    colors,
	}
	if info.Depth != nil {
		depth := vc.renderingAttachment(*info.Depth, true)
		renderingInfo.PDepthAttachment = &depth
	}
	vk.CmdBeginRendering(vc.commandBuffer(cmd), &renderingInfo)
}

func (vc *VulkanContext) CmdEndRendering(cmd hal.CommandBuffer) {
	vk.CmdEndRendering(vc.commandBuffer(cmd))
}

func (vc *VulkanContext) CmdSetViewport(cmd hal.CommandBuffer, viewport hal.Viewport) {
	vk.CmdSetViewport(vc.commandBuffer(cmd), 0, 1, []vk.Viewport{{
		X:        viewport.X,
		Y:        viewport.Y,
		Width:    viewport.Width,
		Height:   viewport.Height,
		MinDepth: viewport.MinDepth,
		MaxDepth: viewport.MaxDepth,
	}})
}

func (vc *VulkanContext) CmdSetScissor(cmd hal.CommandBuffer, scissor hal.Rect2D) {
	vk.CmdSetScissor(vc.commandBuffer(cmd), 0, 1, []vk.Rect2D{{
		Offset: vk.Offset2D{X: scissor.X, Y: scissor.Y},
		Extent: vk.Extent2D{Width: scissor.Extent.Width, Height: scissor.Extent.Height},
	}})
}
