package vulkan

import (
	"math"

	vk "github.com/goki/vulkan"

	"github.com/spaghettifunk/lumen/engine/core"
	"github.com/spaghettifunk/lumen/engine/renderer/hal"
)

func (vc *VulkanContext) CreateSemaphore() (hal.Semaphore, error) {
	semaphoreCreateInfo := vk.SemaphoreCreateInfo{
		SType: vk.StructureTypeSemaphoreCreateInfo,
	}
	var semaphore vk.Semaphore
	if res := vk.CreateSemaphore(vc.Device.LogicalDevice, &semaphoreCreateInfo, vc.Allocator, &semaphore); res != vk.Success {
		return 0, vkError("vkCreateSemaphore", res)
	}
	return vc.semaphores.add(semaphore), nil
}

func (vc *VulkanContext) DestroySemaphore(semaphore hal.Semaphore) {
	if s, ok := vc.semaphores.remove(semaphore); ok {
		vk.DestroySemaphore(vc.Device.LogicalDevice, s, vc.Allocator)
	}
}

func (vc *VulkanContext) CreateFence(signaled bool) (hal.Fence, error) {
	fenceCreateInfo := vk.FenceCreateInfo{
		SType: vk.StructureTypeFenceCreateInfo,
	}
	// Make sure to signal the fence if required.
	if signaled {
		fenceCreateInfo.Flags = vk.FenceCreateFlags(vk.FenceCreateSignaledBit)
	}
	var fence vk.Fence
	if res := vk.CreateFence(vc.Device.LogicalDevice, &fenceCreateInfo, vc.Allocator, &fence); res != vk.Success {
		return 0, vkError("vkCreateFence", res)
	}
	return vc.fences.add(fence), nil
}

func (vc *VulkanContext) DestroyFence(fence hal.Fence) {
	if f, ok := vc.fences.remove(fence); ok {
		vk.DestroyFence(vc.Device.LogicalDevice, f, vc.Allocator)
	}
}

func (vc *VulkanContext) WaitForFence(fence hal.Fence) error {
	f, ok := vc.fences.get(fence)
	if !ok {
		return unknownHandle("fence", uint64(fence))
	}
	result := vk.WaitForFences(vc.Device.LogicalDevice, 1, []vk.Fence{f}, vk.True, math.MaxUint64)
	switch result {
	case vk.Success:
		return nil
	case vk.Timeout:
		core.LogWarn("vk_fence_wait - Timed out")
	}
	return vkError("vkWaitForFences", result)
}

func (vc *VulkanContext) ResetFence(fence hal.Fence) error {
	f, ok := vc.fences.get(fence)
	if !ok {
		return unknownHandle("fence", uint64(fence))
	}
	if res := vk.ResetFences(vc.Device.LogicalDevice, 1, []vk.Fence{f}); res != vk.Success {
		return vkError("vkResetFences", res)
	}
	return nil
}
