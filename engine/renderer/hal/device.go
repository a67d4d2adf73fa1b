package hal

// Allocator creates and releases images and views. This is the part of the
// device the offscreen target and swapchain attachments need.
type Allocator interface {
	AllocateImage(desc ImageDesc) (Image, DeviceMemory, error)
	DestroyImage(image Image, memory DeviceMemory)
	CreateImageView(image Image, format Format, aspect ImageAspect, mipLevels uint32) (ImageView, error)
	DestroyImageView(view ImageView)
}

type Descriptors interface {
	CreateSampler(desc SamplerDesc) (Sampler, error)
	DestroySampler(sampler Sampler)
	CreateDescriptorSetLayout(bindings []DescriptorBinding) (DescriptorSetLayout, error)
	DestroyDescriptorSetLayout(layout DescriptorSetLayout)
	CreateDescriptorPool(maxSets uint32, sizes []DescriptorPoolSize) (DescriptorPool, error)
	// DestroyDescriptorPool also frees every set allocated from the pool.
	DestroyDescriptorPool(pool DescriptorPool)
	AllocateDescriptorSet(pool DescriptorPool, layout DescriptorSetLayout) (DescriptorSet, error)
	WriteImageDescriptor(set DescriptorSet, binding uint32, view ImageView, sampler Sampler, layout ImageLayout)
	WriteBufferDescriptor(set DescriptorSet, binding uint32, buffer Buffer, offset, size uint64)
}

type Sync interface {
	CreateSemaphore() (Semaphore, error)
	DestroySemaphore(semaphore Semaphore)
	CreateFence(signaled bool) (Fence, error)
	DestroyFence(fence Fence)
	// WaitForFence blocks without a timeout.
	WaitForFence(fence Fence) error
	ResetFence(fence Fence) error
}

type Commands interface {
	AllocateCommandBuffers(count uint32) ([]CommandBuffer, error)
	FreeCommandBuffers(buffers []CommandBuffer)
	BeginCommandBuffer(cmd CommandBuffer) error
	EndCommandBuffer(cmd CommandBuffer) error
	// BeginOneShotCommands returns a recording command buffer for one-off work.
	BeginOneShotCommands() (CommandBuffer, error)
	// EndOneShotCommands submits, waits for completion and frees cmd.
	EndOneShotCommands(cmd CommandBuffer) error
}

// Recorder is the command recording surface. Draw systems receive only this.
type Recorder interface {
	CmdImageBarrier(cmd CommandBuffer, barriers ...ImageBarrier)
	CmdBeginRendering(cmd CommandBuffer, info RenderingInfo)
	CmdEndRendering(cmd CommandBuffer)
	CmdSetViewport(cmd CommandBuffer, viewport Viewport)
	CmdSetScissor(cmd CommandBuffer, scissor Rect2D)
	CmdBindPipeline(cmd CommandBuffer, pipeline Pipeline)
	CmdBindDescriptorSets(cmd CommandBuffer, layout PipelineLayout, firstSet uint32, sets ...DescriptorSet)
	CmdPushConstants(cmd CommandBuffer, layout PipelineLayout, stages ShaderStage, offset uint32, data []byte)
	CmdBindVertexBuffer(cmd CommandBuffer, buffer Buffer, offset uint64)
	CmdBindIndexBuffer(cmd CommandBuffer, buffer Buffer, offset uint64)
	CmdDraw(cmd CommandBuffer, vertexCount, instanceCount, firstVertex, firstInstance uint32)
	CmdDrawIndexed(cmd CommandBuffer, indexCount, instanceCount, firstIndex uint32, vertexOffset int32, firstInstance uint32)
}

// Presenter owns the surface side: swapchain objects and queue operations.
type Presenter interface {
	SurfaceSupport() (SurfaceSupport, error)
	CreateSwapchain(desc SwapchainDesc) (Swapchain, error)
	SwapchainImages(swapchain Swapchain) ([]Image, error)
	DestroySwapchain(swapchain Swapchain)
	AcquireNextImage(swapchain Swapchain, signal Semaphore) (uint32, Result, error)
	QueueSubmit(info SubmitInfo) error
	QueuePresent(info PresentInfo) (Result, error)
}

// Resources covers buffers, shaders and pipelines used by draw systems.
type Resources interface {
	CreateBuffer(size uint64, usage BufferUsage) (Buffer, error)
	WriteBuffer(buffer Buffer, offset uint64, data []byte) error
	DestroyBuffer(buffer Buffer)
	CreateShaderModule(spirv []byte) (ShaderModule, error)
	DestroyShaderModule(module ShaderModule)
	CreateGraphicsPipeline(desc PipelineDesc) (Pipeline, PipelineLayout, error)
	DestroyPipeline(pipeline Pipeline, layout PipelineLayout)
}

type Capabilities interface {
	DepthFormat() (Format, error)
	MaxSampleCount() SampleCount
	WaitIdle() error
}

// Device is everything the renderer consumes from the GPU.
type Device interface {
	Allocator
	Descriptors
	Sync
	Commands
	Recorder
	Presenter
	Resources
	Capabilities
}
