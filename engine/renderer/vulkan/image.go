package vulkan

import (
	"fmt"

	vk "github.com/goki/vulkan"

	"github.com/spaghettifunk/lumen/engine/core"
	"github.com/spaghettifunk/lumen/engine/renderer/hal"
)

/**
 * @brief Creates a 2D optimal-tiling image backed by device local memory.
 */
func (vc *VulkanContext) AllocateImage(desc hal.ImageDesc) (hal.Image, hal.DeviceMemory, error) {
	if desc.Extent.IsZero() {
		return 0, 0, fmt.Errorf("%w: image extent %dx%d", core.ErrZeroExtent, desc.Extent.Width, desc.Extent.Height)
	}
	mipLevels := desc.MipLevels
	if mipLevels == 0 {
		mipLevels = 1
	}
	samples := desc.Samples
	if samples == 0 {
		samples = hal.SampleCount1
	}

	imageCreateInfo := vk.ImageCreateInfo{
		SType:     vk.StructureTypeImageCreateInfo,
		ImageType: vk.ImageType2d,
		Format:    toVkFormat(desc.Format),
		Extent: vk.Extent3D{
			Width:  desc.Extent.Width,
			Height: desc.Extent.Height,
			Depth:  1,
		},
		MipLevels:     mipLevels,
		ArrayLayers:   1,
		Samples:       vk.SampleCountFlagBits(samples),
		Tiling:        vk.ImageTilingOptimal,
		Usage:         toVkImageUsage(desc.Usage),
		SharingMode:   vk.SharingModeExclusive,
		InitialLayout: vk.ImageLayoutUndefined,
	}

	var image vk.Image
	if res := vk.CreateImage(vc.Device.LogicalDevice, &imageCreateInfo, vc.Allocator, &image); res != vk.Success {
		return 0, 0, vkError("vkCreateImage", res)
	}

	var memoryRequirements vk.MemoryRequirements
	vk.GetImageMemoryRequirements(vc.Device.LogicalDevice, image, &memoryRequirements)
	memoryRequirements.Deref()

	memoryType := vc.FindMemoryIndex(memoryRequirements.MemoryTypeBits, uint32(vk.MemoryPropertyDeviceLocalBit))
	if memoryType == -1 {
		vk.DestroyImage(vc.Device.LogicalDevice, image, vc.Allocator)
		err := fmt.Errorf("%w: required memory type not found, image not valid", core.ErrDevice)
		core.LogError(err.Error())
		return 0, 0, err
	}

	memoryAllocateInfo := vk.MemoryAllocateInfo{
		SType:           vk.StructureTypeMemoryAllocateInfo,
		AllocationSize:  memoryRequirements.Size,
		MemoryTypeIndex: uint32(memoryType),
	}
	var memory vk.DeviceMemory
	if res := vk.AllocateMemory(vc.Device.LogicalDevice, &memoryAllocateInfo, vc.Allocator, &memory); res != vk.Success {
		vk.DestroyImage(vc.Device.LogicalDevice, image, vc.Allocator)
		return 0, 0, vkError("vkAllocateMemory", res)
	}
	if res := vk.BindImageMemory(vc.Device.LogicalDevice, image, memory, 0); res != vk.Success {
		vk.FreeMemory(vc.Device.LogicalDevice, memory, vc.Allocator)
		vk.DestroyImage(vc.Device.LogicalDevice, image, vc.Allocator)
		return 0, 0, vkError("vkBindImageMemory", res)
	}
	return vc.images.add(image), vc.memories.add(memory), nil
}

func (vc *VulkanContext) DestroyImage(image hal.Image, memory hal.DeviceMemory) {
	if m, ok := vc.memories.remove(memory); ok {
		vk.FreeMemory(vc.Device.LogicalDevice, m, vc.Allocator)
	}
	if i, ok := vc.images.remove(image); ok {
		vk.DestroyImage(vc.Device.LogicalDevice, i, vc.Allocator)
	}
}

func (vc *VulkanContext) CreateImageView(image hal.Image, format hal.Format, aspect hal.ImageAspect, mipLevels uint32) (hal.ImageView, error) {
	img, ok := vc.images.get(image)
	if !ok {
		return 0, unknownHandle("image", uint64(image))
	}
	if mipLevels == 0 {
		mipLevels = 1
	}
	viewCreateInfo := vk.ImageViewCreateInfo{
		SType:    vk.StructureTypeImageViewCreateInfo,
		Image:    img,
		ViewType: vk.ImageViewType2d,
		Format:   toVkFormat(format),
		SubresourceRange: vk.ImageSubresourceRange{
			AspectMask:     toVkAspect(aspect),
			BaseMipLevel:   0,
			LevelCount:     mipLevels,
			BaseArrayLayer: 0,
			LayerCount:     1,
		},
	}
	var view vk.ImageView
	if res := vk.CreateImageView(vc.Device.LogicalDevice, &viewCreateInfo, vc.Allocator, &view); res != vk.Success {
		return 0, vkError("vkCreateImageView", res)
	}
	return vc.views.add(view), nil
}

func (vc *VulkanContext) DestroyImageView(view hal.ImageView) {
	if v, ok := vc.views.remove(view); ok {
		vk.DestroyImageView(vc.Device.LogicalDevice, v, vc.Allocator)
	}
}

func (vc *VulkanContext) imageView(view hal.ImageView) vk.ImageView {
	if view == 0 {
		return nil
	}
	v, ok := vc.views.get(view)
	if !ok {
		core.LogFatal("unknown image view %d", view)
	}
	return v
}

func (vc *VulkanContext) CmdImageBarrier(cmd hal.CommandBuffer, barriers ...hal.ImageBarrier) {
	if len(barriers) == 0 {
		return
	}
	var srcStages, dstStages vk.PipelineStageFlags
	imageBarriers := make([]vk.ImageMemoryBarrier, 0, len(barriers))
	for _, b := range barriers {
		img, ok := vc.images.get(b.Image)
		if !ok {
			core.LogFatal("barrier on unknown image %d", b.Image)
			return
		}
		srcStages |= toVkStages(b.SrcStage)
		dstStages |= toVkStages(b.DstStage)
		imageBarriers = append(imageBarriers, vk.ImageMemoryBarrier{
			SType:               vk.StructureTypeImageMemoryBarrier,
			OldLayout:           toVkLayout(b.OldLayout),
			NewLayout:           toVkLayout(b.NewLayout),
			SrcQueueFamilyIndex: vk.QueueFamilyIgnored,
			DstQueueFamilyIndex: vk.QueueFamilyIgnored,
			Image:               img,
			SrcAccessMask:       toVkAccess(b.SrcAccess),
			DstAccessMask:       toVkAccess(b.DstAccess),
			SubresourceRange: vk.ImageSubresourceRange{
				AspectMask:     toVkAspect(b.Aspect),
				BaseMipLevel:   0,
				LevelCount:     1,
				BaseArrayLayer: 0,
				LayerCount:     1,
			},
		})
	}
	vk.CmdPipelineBarrier(vc.commandBuffer(cmd), srcStages, dstStages, 0, 0, nil, 0, nil, uint32(len(imageBarriers)), imageBarriers)
}
