package vulkan

import (
	"fmt"
	"math"

	vk "github.com/goki/vulkan"

	"github.com/spaghettifunk/lumen/engine/core"
	"github.com/spaghettifunk/lumen/engine/renderer/hal"
)

type VulkanSwapchainSupportInfo struct {
	Capabilities vk.SurfaceCapabilities
	Formats      []vk.SurfaceFormat
	PresentModes []vk.PresentMode
}

func querySwapchainSupport(physicalDevice vk.PhysicalDevice, surface vk.Surface) (*VulkanSwapchainSupportInfo, error) {
	supportInfo := &VulkanSwapchainSupportInfo{}

	// Surface capabilities
	if res := vk.GetPhysicalDeviceSurfaceCapabilities(physicalDevice, surface, &supportInfo.Capabilities); res != vk.Success {
		return nil, vkError("vkGetPhysicalDeviceSurfaceCapabilitiesKHR", res)
	}
	supportInfo.Capabilities.Deref()
	supportInfo.Capabilities.CurrentExtent.Deref()
	supportInfo.Capabilities.MinImageExtent.Deref()
	supportInfo.Capabilities.MaxImageExtent.Deref()

	// Surface formats
	var formatCount uint32
	if res := vk.GetPhysicalDeviceSurfaceFormats(physicalDevice, surface, &formatCount, nil); res != vk.Success {
		return nil, vkError("vkGetPhysicalDeviceSurfaceFormatsKHR", res)
	}
	if formatCount != 0 {
		supportInfo.Formats = make([]vk.SurfaceFormat, formatCount)
		if res := vk.GetPhysicalDeviceSurfaceFormats(physicalDevice, surface, &formatCount, supportInfo.Formats); res != vk.Success {
			return nil, vkError("vkGetPhysicalDeviceSurfaceFormatsKHR", res)
		}
		for i := range supportInfo.Formats {
			supportInfo.Formats[i].Deref()
		}
	}

	// Present modes
	var presentModeCount uint32
	if res := vk.GetPhysicalDeviceSurfacePresentModes(physicalDevice, surface, &presentModeCount, nil); res != vk.Success {
		return nil, vkError("vkGetPhysicalDeviceSurfacePresentModesKHR", res)
	}
	if presentModeCount != 0 {
		supportInfo.PresentModes = make([]vk.PresentMode, presentModeCount)
		if res := vk.GetPhysicalDeviceSurfacePresentModes(physicalDevice, surface, &presentModeCount, supportInfo.PresentModes); res != vk.Success {
			return nil, vkError("vkGetPhysicalDeviceSurfacePresentModesKHR", res)
		}
	}
	return supportInfo, nil
}

/**
 * @brief Queries the surface as it is right now. Formats the renderer has
 * no name for are left out.
 */
func (vc *VulkanContext) SurfaceSupport() (hal.SurfaceSupport, error) {
	info, err := querySwapchainSupport(vc.Device.PhysicalDevice, vc.Surface)
	if err != nil {
		return hal.SurfaceSupport{}, err
	}
	caps := info.Capabilities
	support := hal.SurfaceSupport{
		Capabilities: hal.SurfaceCapabilities{
			MinImageCount: caps.MinImageCount,
			MaxImageCount: caps.MaxImageCount,
			CurrentExtent: hal.Extent2D{Width: caps.CurrentExtent.Width, Height: caps.CurrentExtent.Height},
			MinExtent:     hal.Extent2D{Width: caps.MinImageExtent.Width, Height: caps.MinImageExtent.Height},
			MaxExtent:     hal.Extent2D{Width: caps.MaxImageExtent.Width, Height: caps.MaxImageExtent.Height},
		},
	}
	for _, f := range info.Formats {
		format, ok := fromVkFormat(f.Format)
		if !ok {
			continue
		}
		space := hal.ColorSpaceOther
		if f.ColorSpace == vk.ColorSpaceSrgbNonlinear {
			space = hal.ColorSpaceSrgbNonlinear
		}
		support.Formats = append(support.Formats, hal.SurfaceFormat{Format: format, ColorSpace: space})
	}
	for _, m := range info.PresentModes {
		if mode, ok := fromVkPresentMode(m); ok {
			support.PresentModes = append(support.PresentModes, mode)
		}
	}
	return support, nil
}

func (vc *VulkanContext) CreateSwapchain(desc hal.SwapchainDesc) (hal.Swapchain, error) {
	if desc.Extent.IsZero() {
		return 0, fmt.Errorf("%w: swapchain extent %dx%d", core.ErrZeroExtent, desc.Extent.Width, desc.Extent.Height)
	}
	info, err := querySwapchainSupport(vc.Device.PhysicalDevice, vc.Surface)
	if err != nil {
		return 0, err
	}

	colorSpace := vk.ColorSpaceSrgbNonlinear
	if desc.Format.ColorSpace != hal.ColorSpaceSrgbNonlinear {
		core.LogWarn("swapchain requested with a non sRGB colour space, using sRGB nonlinear")
	}

	swapchainCreateInfo := vk.SwapchainCreateInfo{
		SType:            vk.StructureTypeSwapchainCreateInfo,
		Surface:          vc.Surface,
		MinImageCount:    desc.MinImageCount,
		ImageFormat:      toVkFormat(desc.Format.Format),
		ImageColorSpace:  colorSpace,
		ImageExtent:      vk.Extent2D{Width: desc.Extent.Width, Height: desc.Extent.Height},
		ImageArrayLayers: 1,
		ImageUsage:       vk.ImageUsageFlags(vk.ImageUsageColorAttachmentBit),
		PreTransform:     info.Capabilities.CurrentTransform,
		CompositeAlpha:   vk.CompositeAlphaOpaqueBit,
		PresentMode:      toVkPresentMode(desc.PresentMode),
		Clipped:          vk.True,
	}

	// Setup the queue family indices
	if vc.Device.GraphicsQueueIndex != vc.Device.PresentQueueIndex {
		swapchainCreateInfo.ImageSharingMode = vk.SharingModeConcurrent
		swapchainCreateInfo.QueueFamilyIndexCount = 2
		swapchainCreateInfo.PQueueFamilyIndices = []uint32{
			uint32(vc.Device.GraphicsQueueIndex),
			uint32(vc.Device.PresentQueueIndex),
		}
	} else {
		swapchainCreateInfo.ImageSharingMode = vk.SharingModeExclusive
	}

	if desc.OldSwapchain != 0 {
		old, ok := vc.swapchains.get(desc.OldSwapchain)
		if !ok {
			return 0, unknownHandle("swapchain", uint64(desc.OldSwapchain))
		}
		swapchainCreateInfo.OldSwapchain = old.handle
	}

	var swapchainHandle vk.Swapchain
	if res := vk.CreateSwapchain(vc.Device.LogicalDevice, &swapchainCreateInfo, vc.Allocator, &swapchainHandle); res != vk.Success {
		return 0, vkError("vkCreateSwapchainKHR", res)
	}

	var imageCount uint32
	if res := vk.GetSwapchainImages(vc.Device.LogicalDevice, swapchainHandle, &imageCount, nil); res != vk.Success {
		vk.DestroySwapchain(vc.Device.LogicalDevice, swapchainHandle, vc.Allocator)
		return 0, vkError("vkGetSwapchainImagesKHR", res)
	}
	images := make([]vk.Image, imageCount)
	if res := vk.GetSwapchainImages(vc.Device.LogicalDevice, swapchainHandle, &imageCount, images); res != vk.Success {
		vk.DestroySwapchain(vc.Device.LogicalDevice, swapchainHandle, vc.Allocator)
		return 0, vkError("vkGetSwapchainImagesKHR", res)
	}

	// Swapchain images are owned by the swapchain; they are only registered
	// so barriers and views can refer to them.
	obj := &swapchainObject{handle: swapchainHandle, images: make([]hal.Image, imageCount)}
	for i, img := range images {
		obj.images[i] = vc.images.add(img)
	}
	core.LogInfo("Swapchain created with %d images (%dx%d, %s).", imageCount, desc.Extent.Width, desc.Extent.Height, desc.PresentMode)
	return vc.swapchains.add(obj), nil
}

func (vc *VulkanContext) SwapchainImages(swapchain hal.Swapchain) ([]hal.Image, error) {
	obj, ok := vc.swapchains.get(swapchain)
	if !ok {
		return nil, unknownHandle("swapchain", uint64(swapchain))
	}
	out := make([]hal.Image, len(obj.images))
	copy(out, obj.images)
	return out, nil
}

func (vc *VulkanContext) DestroySwapchain(swapchain hal.Swapchain) {
	obj, ok := vc.swapchains.remove(swapchain)
	if !ok {
		return
	}
	for _, img := range obj.images {
		vc.images.remove(img)
	}
	vk.DestroySwapchain(vc.Device.LogicalDevice, obj.handle, vc.Allocator)
}

/**
 * @brief Acquires the next image index. Out-of-date and suboptimal results
 * are reported through the Result, not as errors.
 */
func (vc *VulkanContext) AcquireNextImage(swapchain hal.Swapchain, signal hal.Semaphore) (uint32, hal.Result, error) {
	obj, ok := vc.swapchains.get(swapchain)
	if !ok {
		return 0, hal.ResultSuccess, unknownHandle("swapchain", uint64(swapchain))
	}
	semaphore, ok := vc.semaphores.get(signal)
	if !ok {
		return 0, hal.ResultSuccess, unknownHandle("semaphore", uint64(signal))
	}
	var imageIndex uint32
	result := vk.AcquireNextImage(vc.Device.LogicalDevice, obj.handle, math.MaxUint64, semaphore, nil, &imageIndex)
	switch result {
	case vk.Success:
		return imageIndex, hal.ResultSuccess, nil
	case vk.Suboptimal:
		return imageIndex, hal.ResultSuboptimal, nil
	case vk.ErrorOutOfDate:
		return 0, hal.ResultOutOfDate, nil
	}
	return 0, hal.ResultSuccess, vkError("vkAcquireNextImageKHR", result)
}

func (vc *VulkanContext) QueueSubmit(info hal.SubmitInfo) error {
	submitInfo := vk.SubmitInfo{
		SType:              vk.StructureTypeSubmitInfo,
		CommandBufferCount: 1,
		PCommandBuffers:    []vk.CommandBuffer{vc.commandBuffer(info.CommandBuffer)},
	}
	if info.Wait != 0 {
		wait, ok := vc.semaphores.get(info.Wait)
		if !ok {
			return unknownHandle("semaphore", uint64(info.Wait))
		}
		submitInfo.WaitSemaphoreCount = 1
		submitInfo.PWaitSemaphores = []vk.Semaphore{wait}
		submitInfo.PWaitDstStageMask = []vk.PipelineStageFlags{toVkStages(info.WaitStage)}
	}
	if info.Signal != 0 {
		signal, ok := vc.semaphores.get(info.Signal)
		if !ok {
			return unknownHandle("semaphore", uint64(info.Signal))
		}
		submitInfo.SignalSemaphoreCount = 1
		submitInfo.PSignalSemaphores = []vk.Semaphore{signal}
	}
	var fence vk.Fence
	if info.Fence != 0 {
		f, ok := vc.fences.get(info.Fence)
		if !ok {
			return unknownHandle("fence", uint64(info.Fence))
		}
		fence = f
	}
	return vc.locks.SafeCall(QueueManagement, func() error {
		if res := vk.QueueSubmit(vc.Device.GraphicsQueue, 1, []vk.SubmitInfo{submitInfo}, fence); res != vk.Success {
			return vkError("vkQueueSubmit", res)
		}
		return nil
	})
}

func (vc *VulkanContext) QueuePresent(info hal.PresentInfo) (hal.Result, error) {
	obj, ok := vc.swapchains.get(info.Swapchain)
	if !ok {
		return hal.ResultSuccess, unknownHandle("swapchain", uint64(info.Swapchain))
	}
	// Return the image to the swapchain for presentation.
	presentInfo := vk.PresentInfo{
		SType:          vk.StructureTypePresentInfo,
		SwapchainCount: 1,
		PSwapchains:    []vk.Swapchain{obj.handle},
		PImageIndices:  []uint32{info.ImageIndex},
	}
	if info.Wait != 0 {
		wait, ok := vc.semaphores.get(info.Wait)
		if !ok {
			return hal.ResultSuccess, unknownHandle("semaphore", uint64(info.Wait))
		}
		presentInfo.WaitSemaphoreCount = 1
		presentInfo.PWaitSemaphores = []vk.Semaphore{wait}
	}

	var result vk.Result
	if err := vc.locks.SafeCall(QueueManagement, func() error {
		result = vk.QueuePresent(vc.Device.PresentQueue, &presentInfo)
		return nil
	}); err != nil {
		return hal.ResultSuccess, err
	}
	switch result {
	case vk.Success:
		return hal.ResultSuccess, nil
	case vk.Suboptimal:
		return hal.ResultSuboptimal, nil
	case vk.ErrorOutOfDate:
		return hal.ResultOutOfDate, nil
	}
	return hal.ResultSuccess, vkError("vkQueuePresentKHR", result)
}
