package vulkan

import (
	vk "github.com/goki/vulkan"

	"github.com/spaghettifunk/lumen/engine/core"
	"github.com/spaghettifunk/lumen/engine/renderer/hal"
)

type descriptorPool struct {
	handle vk.DescriptorPool
	sets   []hal.DescriptorSet
}

type bufferObject struct {
	handle vk.Buffer
	memory vk.DeviceMemory
	size   uint64
	// mapped is the persistent host mapping of host visible buffers.
	mapped []byte
}

type swapchainObject struct {
	handle vk.Swapchain
	images []hal.Image
}

/**
 * @brief Owns the Vulkan instance, surface and logical device, and maps
 * every object handed to the renderer onto its Vulkan handle.
 * VulkanContext implements hal.Device.
 */
type VulkanContext struct {
	Instance  vk.Instance
	Allocator *vk.AllocationCallbacks
	Surface   vk.Surface

	debugCallback vk.DebugReportCallback

	Device *VulkanDevice

	locks *VulkanLockPool

	images          *handleTable[hal.Image, vk.Image]
	memories        *handleTable[hal.DeviceMemory, vk.DeviceMemory]
	views           *handleTable[hal.ImageView, vk.ImageView]
	samplers        *handleTable[hal.Sampler, vk.Sampler]
	setLayouts      *handleTable[hal.DescriptorSetLayout, vk.DescriptorSetLayout]
	descriptorPools *handleTable[hal.DescriptorPool, *descriptorPool]
	descriptorSets  *handleTable[hal.DescriptorSet, vk.DescriptorSet]
	semaphores      *handleTable[hal.Semaphore, vk.Semaphore]
	fences          *handleTable[hal.Fence, vk.Fence]
	commandBuffers  *handleTable[hal.CommandBuffer, vk.CommandBuffer]
	swapchains      *handleTable[hal.Swapchain, *swapchainObject]
	buffers         *handleTable[hal.Buffer, *bufferObject]
	shaders         *handleTable[hal.ShaderModule, vk.ShaderModule]
	pipelineLayouts *handleTable[hal.PipelineLayout, vk.PipelineLayout]
	pipelines       *handleTable[hal.Pipeline, vk.Pipeline]
}

var _ hal.Device = (*VulkanContext)(nil)

func newContext() *VulkanContext {
	return &VulkanContext{
		Device:          &VulkanDevice{GraphicsQueueIndex: -1, PresentQueueIndex: -1},
		locks:           NewVulkanLockPool(),
		images:          newHandleTable[hal.Image, vk.Image](),
		memories:        newHandleTable[hal.DeviceMemory, vk.DeviceMemory](),
		views:           newHandleTable[hal.ImageView, vk.ImageView](),
		samplers:        newHandleTable[hal.Sampler, vk.Sampler](),
		setLayouts:      newHandleTable[hal.DescriptorSetLayout, vk.DescriptorSetLayout](),
		descriptorPools: newHandleTable[hal.DescriptorPool, *descriptorPool](),
		descriptorSets:  newHandleTable[hal.DescriptorSet, vk.DescriptorSet](),
		semaphores:      newHandleTable[hal.Semaphore, vk.Semaphore](),
		fences:          newHandleTable[hal.Fence, vk.Fence](),
		commandBuffers:  newHandleTable[hal.CommandBuffer, vk.CommandBuffer](),
		swapchains:      newHandleTable[hal.Swapchain, *swapchainObject](),
		buffers:         newHandleTable[hal.Buffer, *bufferObject](),
		shaders:         newHandleTable[hal.ShaderModule, vk.ShaderModule](),
		pipelineLayouts: newHandleTable[hal.PipelineLayout, vk.PipelineLayout](),
		pipelines:       newHandleTable[hal.Pipeline, vk.Pipeline](),
	}
}

func (vc *VulkanContext) FindMemoryIndex(typeFilter, propertyFlags uint32) int32 {
	memoryProperties := vc.Device.Memory
	for i := uint32(0); i < memoryProperties.MemoryTypeCount; i++ {
		// Check each memory type to see if its bit is set to 1.
		memoryProperties.MemoryTypes[i].Deref()
		if (typeFilter&(1<<i)) != 0 && (uint32(memoryProperties.MemoryTypes[i].PropertyFlags)&propertyFlags) == propertyFlags {
			return int32(i)
		}
	}
	core.LogWarn("Unable to find suitable memory type!")
	return -1
}

// liveObjects counts the objects the renderer never released.
func (vc *VulkanContext) liveObjects() map[string]int {
	counts := map[string]int{
		"image-view":            vc.views.len(),
		"sampler":               vc.samplers.len(),
		"descriptor-set-layout": vc.setLayouts.len(),
		"descriptor-pool":       vc.descriptorPools.len(),
		"semaphore":             vc.semaphores.len(),
		"fence":                 vc.fences.len(),
		"command-buffer":        vc.commandBuffers.len(),
		"swapchain":             vc.swapchains.len(),
		"buffer":                vc.buffers.len(),
		"shader-module":         vc.shaders.len(),
		"pipeline":              vc.pipelines.len(),
		"device-memory":         vc.memories.len(),
	}
	for k, v := range counts {
		if v == 0 {
			delete(counts, k)
		}
	}
	return counts
}
