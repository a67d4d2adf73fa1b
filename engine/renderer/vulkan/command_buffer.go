package vulkan

import (
	vk "github.com/goki/vulkan"

	"github.com/spaghettifunk/lumen/engine/core"
	"github.com/spaghettifunk/lumen/engine/renderer/hal"
)

func (vc *VulkanContext) commandBuffer(cmd hal.CommandBuffer) vk.CommandBuffer {
	c, ok := vc.commandBuffers.get(cmd)
	if !ok {
		core.LogFatal("unknown command buffer %d", cmd)
	}
	return c
}

func (vc *VulkanContext) AllocateCommandBuffers(count uint32) ([]hal.CommandBuffer, error) {
	allocateInfo := vk.CommandBufferAllocateInfo{
		SType:              vk.StructureTypeCommandBufferAllocateInfo,
		CommandPool:        vc.Device.GraphicsCommandPool,
		CommandBufferCount: count,
		Level:              vk.CommandBufferLevelPrimary,
	}
	handles := make([]vk.CommandBuffer, count)
	if res := vk.AllocateCommandBuffers(vc.Device.LogicalDevice, &allocateInfo, handles); res != vk.Success {
		return nil, vkError("vkAllocateCommandBuffers", res)
	}
	out := make([]hal.CommandBuffer, count)
	for i, h := range handles {
		out[i] = vc.commandBuffers.add(h)
	}
	return out, nil
}

func (vc *VulkanContext) FreeCommandBuffers(buffers []hal.CommandBuffer) {
	handles := make([]vk.CommandBuffer, 0, len(buffers))
	for _, b := range buffers {
		if h, ok := vc.commandBuffers.remove(b); ok {
			handles = append(handles, h)
		}
	}
	if len(handles) == 0 {
		return
	}
	vk.FreeCommandBuffers(vc.Device.LogicalDevice, vc.Device.GraphicsCommandPool, uint32(len(handles)), handles)
}

func (vc *VulkanContext) begin(cmd vk.CommandBuffer, singleUse bool) error {
	beginInfo := vk.CommandBufferBeginInfo{
		SType: vk.StructureTypeCommandBufferBeginInfo,
	}
	if singleUse {
		beginInfo.Flags |= vk.CommandBufferUsageFlags(vk.CommandBufferUsageOneTimeSubmitBit)
	}
	if res := vk.BeginCommandBuffer(cmd, &beginInfo); res != vk.Success {
		return vkError("vkBeginCommandBuffer", res)
	}
	return nil
}

// BeginCommandBuffer resets cmd implicitly; the pool allows per-buffer reset.
func (vc *VulkanContext) BeginCommandBuffer(cmd hal.CommandBuffer) error {
	return vc.begin(vc.commandBuffer(cmd), false)
}

func (vc *VulkanContext) EndCommandBuffer(cmd hal.CommandBuffer) error {
	if res := vk.EndCommandBuffer(vc.commandBuffer(cmd)); res != vk.Success {
		return vkError("vkEndCommandBuffer", res)
	}
	return nil
}

func (vc *VulkanContext) BeginOneShotCommands() (hal.CommandBuffer, error) {
	cmds, err := vc.AllocateCommandBuffers(1)
	if err != nil {
		return 0, err
	}
	if err := vc.begin(vc.commandBuffer(cmds[0]), true); err != nil {
		vc.FreeCommandBuffers(cmds)
		return 0, err
	}
	return cmds[0], nil
}

/**
 * @brief Ends, submits and waits on a one-shot command buffer, then frees it.
 */
func (vc *VulkanContext) EndOneShotCommands(cmd hal.CommandBuffer) error {
	defer vc.FreeCommandBuffers([]hal.CommandBuffer{cmd})

	handle := vc.commandBuffer(cmd)
	if res := vk.EndCommandBuffer(handle); res != vk.Success {
		return vkError("vkEndCommandBuffer", res)
	}
	submitInfo := vk.SubmitInfo{
		SType:              vk.StructureTypeSubmitInfo,
		CommandBufferCount: 1,
		PCommandBuffers:    []vk.CommandBuffer{handle},
	}
	return vc.locks.SafeCall(QueueManagement, func() error {
		if res := vk.QueueSubmit(vc.Device.GraphicsQueue, 1, []vk.SubmitInfo{submitInfo}, nil); res != vk.Success {
			return vkError("vkQueueSubmit", res)
		}
		// Using a queue wait instead of a fence; these are rare.
		if res := vk.QueueWaitIdle(vc.Device.GraphicsQueue); res != vk.Success {
			return vkError("vkQueueWaitIdle", res)
		}
		return nil
	})
}

func (vc *VulkanContext) CmdBindPipeline(cmd hal.CommandBuffer, pipeline hal.Pipeline) {
	p, ok := vc.pipelines.get(pipeline)
	if !ok {
		core.LogFatal("bind of unknown pipeline %d", pipeline)
		return
	}
	vk.CmdBindPipeline(vc.commandBuffer(cmd), vk.PipelineBindPointGraphics, p)
}

func (vc *VulkanContext) CmdBindDescriptorSets(cmd hal.CommandBuffer, layout hal.PipelineLayout, firstSet uint32, sets ...hal.DescriptorSet) {
	l, ok := vc.pipelineLayouts.get(layout)
	if !ok {
		core.LogFatal("bind with unknown pipeline layout %d", layout)
		return
	}
	handles := make([]vk.DescriptorSet, len(sets))
	for i, s := range sets {
		h, ok := vc.descriptorSets.get(s)
		if !ok {
			core.LogFatal("bind of unknown descriptor set %d", s)
			return
		}
		handles[i] = h
	}
	vk.CmdBindDescriptorSets(vc.commandBuffer(cmd), vk.PipelineBindPointGraphics, l, firstSet, uint32(len(handles)), handles, 0, nil)
}

func (vc *VulkanContext) CmdPushConstants(cmd hal.CommandBuffer, layout hal.PipelineLayout, stages hal.ShaderStage, offset uint32, data []byte) {
	l, ok := vc.pipelineLayouts.get(layout)
	if !ok {
		core.LogFatal("push constants with unknown pipeline layout %d", layout)
		return
	}
	if len(data) == 0 {
		return
	}
	vk.CmdPushConstants(vc.commandBuffer(cmd), l, toVkShaderStages(stages), offset, uint32(len(data)), unsafePointer(data))
}

func (vc *VulkanContext) CmdDraw(cmd hal.CommandBuffer, vertexCount, instanceCount, firstVertex, firstInstance uint32) {
	vk.CmdDraw(vc.commandBuffer(cmd), vertexCount, instanceCount, firstVertex, firstInstance)
}

func (vc *VulkanContext) CmdDrawIndexed(cmd hal.CommandBuffer, indexCount, instanceCount, firstIndex uint32, vertexOffset int32, firstInstance uint32) {
	vk.CmdDrawIndexed(vc.commandBuffer(cmd), indexCount, instanceCount, firstIndex, vertexOffset, firstInstance)
}
