// Package hal is the narrow GPU vocabulary the frame lifecycle is written
// against. The Vulkan backend implements Device; tests use haltest.
package hal

// Opaque handles. The zero value is the null handle.
type (
	Image               uint64
	DeviceMemory        uint64
	ImageView           uint64
	Sampler             uint64
	DescriptorSetLayout uint64
	DescriptorPool      uint64
	DescriptorSet       uint64
	Semaphore           uint64
	Fence               uint64
	CommandBuffer       uint64
	Swapchain           uint64
	Buffer              uint64
	ShaderModule        uint64
	PipelineLayout      uint64
	Pipeline            uint64
)

// NullCommandBuffer is returned by frame entry points when no frame was begun.
const NullCommandBuffer CommandBuffer = 0
