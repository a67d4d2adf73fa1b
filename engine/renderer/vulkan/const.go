package vulkan

import (
	vk "github.com/goki/vulkan"

	"github.com/spaghettifunk/lumen/engine/renderer/hal"
)

/**
 * @brief Max number of descriptor sets a single pool hands out when the
 * caller asks for zero.
 */
const VULKAN_DEFAULT_POOL_SETS uint32 = 16

var formats = map[hal.Format]vk.Format{
	hal.FormatUndefined:       vk.FormatUndefined,
	hal.FormatB8G8R8A8Unorm:   vk.FormatB8g8r8a8Unorm,
	hal.FormatB8G8R8A8Srgb:    vk.FormatB8g8r8a8Srgb,
	hal.FormatR8G8B8A8Unorm:   vk.FormatR8g8b8a8Unorm,
	hal.FormatR8G8B8A8Srgb:    vk.FormatR8g8b8a8Srgb,
	hal.FormatD32Sfloat:       vk.FormatD32Sfloat,
	hal.FormatD32SfloatS8Uint: vk.FormatD32SfloatS8Uint,
	hal.FormatD24UnormS8Uint:  vk.FormatD24UnormS8Uint,
}

func toVkFormat(f hal.Format) vk.Format {
	return formats[f]
}

// fromVkFormat reports false for formats the renderer has no name for.
func fromVkFormat(f vk.Format) (hal.Format, bool) {
	for k, v := range formats {
		if v == f && k != hal.FormatUndefined {
			return k, true
		}
	}
	return hal.FormatUndefined, false
}

func toVkLayout(l hal.ImageLayout) vk.ImageLayout {
	switch l {
	case hal.ImageLayoutColorAttachment:
		return vk.ImageLayoutColorAttachmentOptimal
	case hal.ImageLayoutDepthAttachment:
		return vk.ImageLayoutDepthStencilAttachmentOptimal
	case hal.ImageLayoutShaderReadOnly:
		return vk.ImageLayoutShaderReadOnlyOptimal
	case hal.ImageLayoutTransferDst:
		return vk.ImageLayoutTransferDstOptimal
	case hal.ImageLayoutPresentSrc:
		return vk.ImageLayoutPresentSrc
	}
	return vk.ImageLayoutUndefined
}

func toVkStages(s hal.PipelineStage) vk.PipelineStageFlags {
	var out vk.PipelineStageFlagBits
	bits := []struct {
		from hal.PipelineStage
		to   vk.PipelineStageFlagBits
	}{
		{hal.StageTopOfPipe, vk.PipelineStageTopOfPipeBit},
		{hal.StageFragmentShader, vk.PipelineStageFragmentShaderBit},
		{hal.StageEarlyFragmentTests, vk.PipelineStageEarlyFragmentTestsBit},
		{hal.StageLateFragmentTests, vk.PipelineStageLateFragmentTestsBit},
		{hal.StageColorAttachmentOutput, vk.PipelineStageColorAttachmentOutputBit},
		{hal.StageTransfer, vk.PipelineStageTransferBit},
		{hal.StageBottomOfPipe, vk.PipelineStageBottomOfPipeBit},
	}
	for _, b := range bits {
		if s&b.from != 0 {
			out |= b.to
		}
	}
	return vk.PipelineStageFlags(out)
}

func toVkAccess(a hal.Access) vk.AccessFlags {
	var out vk.AccessFlagBits
	bits := []struct {
		from hal.Access
		to   vk.AccessFlagBits
	}{
		{hal.AccessShaderRead, vk.AccessShaderReadBit},
		{hal.AccessColorAttachmentRead, vk.AccessColorAttachmentReadBit},
		{hal.AccessColorAttachmentWrite, vk.AccessColorAttachmentWriteBit},
		{hal.AccessDepthStencilAttachmentRead, vk.AccessDepthStencilAttachmentReadBit},
		{hal.AccessDepthStencilAttachmentWrite, vk.AccessDepthStencilAttachmentWriteBit},
		{hal.AccessTransferWrite, vk.AccessTransferWriteBit},
	}
	for _, b := range bits {
		if a&b.from != 0 {
			out |= b.to
		}
	}
	return vk.AccessFlags(out)
}

func toVkAspect(a hal.ImageAspect) vk.ImageAspectFlags {
	var out vk.ImageAspectFlagBits
	if a&hal.AspectColor != 0 {
		out |= vk.ImageAspectColorBit
	}
	if a&hal.AspectDepth != 0 {
		out |= vk.ImageAspectDepthBit
	}
	if a&hal.AspectStencil != 0 {
		out |= vk.ImageAspectStencilBit
	}
	return vk.ImageAspectFlags(out)
}

func toVkImageUsage(u hal.ImageUsage) vk.ImageUsageFlags {
	var out vk.ImageUsageFlagBits
	if u&hal.UsageColorAttachment != 0 {
		out |= vk.ImageUsageColorAttachmentBit
	}
	if u&hal.UsageDepthStencilAttachment != 0 {
		out |= vk.ImageUsageDepthStencilAttachmentBit
	}
	if u&hal.UsageSampled != 0 {
		out |= vk.ImageUsageSampledBit
	}
	if u&hal.UsageTransferDst != 0 {
		out |= vk.ImageUsageTransferDstBit
	}
	if u&hal.UsageTransientAttachment != 0 {
		out |= vk.ImageUsageTransientAttachmentBit
	}
	return vk.ImageUsageFlags(out)
}

func toVkPresentMode(m hal.PresentMode) vk.PresentMode {
	switch m {
	case hal.PresentModeImmediate:
		return vk.PresentModeImmediate
	case hal.PresentModeMailbox:
		return vk.PresentModeMailbox
	case hal.PresentModeFifoRelaxed:
		return vk.PresentModeFifoRelaxed
	}
	return vk.PresentModeFifo
}

func fromVkPresentMode(m vk.PresentMode) (hal.PresentMode, bool) {
	switch m {
	case vk.PresentModeImmediate:
		return hal.PresentModeImmediate, true
	case vk.PresentModeMailbox:
		return hal.PresentModeMailbox, true
	case vk.PresentModeFifo:
		return hal.PresentModeFifo, true
	case vk.PresentModeFifoRelaxed:
		return hal.PresentModeFifoRelaxed, true
	}
	return 0, false
}

func toVkResolveMode(m hal.ResolveMode) vk.ResolveModeFlagBits {
	if m == hal.ResolveModeAverage {
		return vk.ResolveModeAverageBit
	}
	return vk.ResolveModeNone
}

func toVkLoadOp(op hal.LoadOp) vk.AttachmentLoadOp {
	switch op {
	case hal.LoadOpLoad:
		return vk.AttachmentLoadOpLoad
	case hal.LoadOpDontCare:
		return vk.AttachmentLoadOpDontCare
	}
	return vk.AttachmentLoadOpClear
}

func toVkStoreOp(op hal.StoreOp) vk.AttachmentStoreOp {
	if op == hal.StoreOpDontCare {
		return vk.AttachmentStoreOpDontCare
	}
	return vk.AttachmentStoreOpStore
}

func toVkFilter(f hal.Filter) vk.Filter {
	if f == hal.FilterNearest {
		return vk.FilterNearest
	}
	return vk.FilterLinear
}

func toVkAddressMode(m hal.AddressMode) vk.SamplerAddressMode {
	switch m {
	case hal.AddressModeRepeat:
		return vk.SamplerAddressModeRepeat
	case hal.AddressModeClampToBorder:
		return vk.SamplerAddressModeClampToBorder
	}
	return vk.SamplerAddressModeClampToEdge
}

func toVkDescriptorType(t hal.DescriptorType) vk.DescriptorType {
	if t == hal.DescriptorTypeUniformBuffer {
		return vk.DescriptorTypeUniformBuffer
	}
	return vk.DescriptorTypeCombinedImageSampler
}

func toVkShaderStages(s hal.ShaderStage) vk.ShaderStageFlags {
	var out vk.ShaderStageFlagBits
	if s&hal.ShaderStageVertex != 0 {
		out |= vk.ShaderStageVertexBit
	}
	if s&hal.ShaderStageFragment != 0 {
		out |= vk.ShaderStageFragmentBit
	}
	return vk.ShaderStageFlags(out)
}

func toVkBufferUsage(u hal.BufferUsage) vk.BufferUsageFlags {
	var out vk.BufferUsageFlagBits
	if u&hal.BufferUsageVertex != 0 {
		out |= vk.BufferUsageVertexBufferBit
	}
	if u&hal.BufferUsageIndex != 0 {
		out |= vk.BufferUsageIndexBufferBit
	}
	if u&hal.BufferUsageUniform != 0 {
		out |= vk.BufferUsageUniformBufferBit
	}
	return vk.BufferUsageFlags(out)
}

func toVkCullMode(m hal.CullMode) vk.CullModeFlags {
	switch m {
	case hal.CullModeBack:
		return vk.CullModeFlags(vk.CullModeBackBit)
	case hal.CullModeFront:
		return vk.CullModeFlags(vk.CullModeFrontBit)
	}
	return vk.CullModeFlags(vk.CullModeNone)
}

func vertexFormat(components uint32) vk.Format {
	switch components {
	case 1:
		return vk.FormatR32Sfloat
	case 2:
		return vk.FormatR32g32Sfloat
	case 3:
		return vk.FormatR32g32b32Sfloat
	}
	return vk.FormatR32g32b32a32Sfloat
}
