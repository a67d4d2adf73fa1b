package vulkan

import (
	"fmt"
	"unsafe"

	vk "github.com/goki/vulkan"

	"github.com/spaghettifunk/lumen/engine/core"
	"github.com/spaghettifunk/lumen/engine/renderer/hal"
)

/**
 * @brief Creates a host visible, coherent buffer that stays mapped for its
 * whole lifetime. Uniform, vertex and index data are small enough here that
 * staging through device local memory is not worth it.
 */
func (vc *VulkanContext) CreateBuffer(size uint64, usage hal.BufferUsage) (hal.Buffer, error) {
	if size == 0 {
		return 0, fmt.Errorf("%w: buffer of zero size", core.ErrDevice)
	}
	bufferCreateInfo := vk.BufferCreateInfo{
		SType:       vk.StructureTypeBufferCreateInfo,
		Size:        vk.DeviceSize(size),
		Usage:       toVkBufferUsage(usage),
		SharingMode: vk.SharingModeExclusive,
	}
	var buffer vk.Buffer
	if res := vk.CreateBuffer(vc.Device.LogicalDevice, &bufferCreateInfo, vc.Allocator, &buffer); res != vk.Success {
		return 0, vkError("vkCreateBuffer", res)
	}

	var memReq vk.MemoryRequirements
	vk.GetBufferMemoryRequirements(vc.Device.LogicalDevice, buffer, &memReq)
	memReq.Deref()

	memoryType := vc.FindMemoryIndex(memReq.MemoryTypeBits, uint32(vk.MemoryPropertyHostVisibleBit|vk.MemoryPropertyHostCoherentBit))
	if memoryType == -1 {
		vk.DestroyBuffer(vc.Device.LogicalDevice, buffer, vc.Allocator)
		err := fmt.Errorf("%w: unable to create buffer because the required memory type index was not found", core.ErrDevice)
		core.LogError(err.Error())
		return 0, err
	}
	allocInfo := vk.MemoryAllocateInfo{
		SType:           vk.StructureTypeMemoryAllocateInfo,
		AllocationSize:  memReq.Size,
		MemoryTypeIndex: uint32(memoryType),
	}
	var memory vk.DeviceMemory
	if res := vk.AllocateMemory(vc.Device.LogicalDevice, &allocInfo, vc.Allocator, &memory); res != vk.Success {
		vk.DestroyBuffer(vc.Device.LogicalDevice, buffer, vc.Allocator)
		return 0, vkError("vkAllocateMemory", res)
	}
	if res := vk.BindBufferMemory(vc.Device.LogicalDevice, buffer, memory, 0); res != vk.Success {
		vk.FreeMemory(vc.Device.LogicalDevice, memory, vc.Allocator)
		vk.DestroyBuffer(vc.Device.LogicalDevice, buffer, vc.Allocator)
		return 0, vkError("vkBindBufferMemory", res)
	}

	var data unsafe.Pointer
	if res := vk.MapMemory(vc.Device.LogicalDevice, memory, 0, vk.DeviceSize(size), 0, &data); res != vk.Success {
		vk.FreeMemory(vc.Device.LogicalDevice, memory, vc.Allocator)
		vk.DestroyBuffer(vc.Device.LogicalDevice, buffer, vc.Allocator)
		return 0, vkError("vkMapMemory", res)
	}
	return vc.buffers.add(&bufferObject{
		handle: buffer,
		memory: memory,
		size:   size,
		mapped: unsafe.Slice((*byte)(data), size),
	}), nil
}

func (vc *VulkanContext) WriteBuffer(buffer hal.Buffer, offset uint64, data []byte) error {
	b, ok := vc.buffers.get(buffer)
	if !ok {
		return unknownHandle("buffer", uint64(buffer))
	}
	if offset+uint64(len(data)) > b.size {
		return fmt.Errorf("%w: write of %d bytes at %d overflows buffer of %d", core.ErrDevice, len(data), offset, b.size)
	}
	copy(b.mapped[offset:], data)
	return nil
}

func (vc *VulkanContext) DestroyBuffer(buffer hal.Buffer) {
	b, ok := vc.buffers.remove(buffer)
	if !ok {
		return
	}
	vk.UnmapMemory(vc.Device.LogicalDevice, b.memory)
	b.mapped = nil
	vk.DestroyBuffer(vc.Device.LogicalDevice, b.handle, vc.Allocator)
	vk.FreeMemory(vc.Device.LogicalDevice, b.memory, vc.Allocator)
}

func (vc *VulkanContext) CmdBindVertexBuffer(cmd hal.CommandBuffer, buffer hal.Buffer, offset uint64) {
	b, ok := vc.buffers.get(buffer)
	if !ok {
		core.LogFatal("bind of unknown vertex buffer %d", buffer)
		return
	}
	vk.CmdBindVertexBuffers(vc.commandBuffer(cmd), 0, 1, []vk.Buffer{b.handle}, []vk.DeviceSize{vk.DeviceSize(offset)})
}

// Indices are always 32 bit.
func (vc *VulkanContext) CmdBindIndexBuffer(cmd hal.CommandBuffer, buffer hal.Buffer, offset uint64) {
	b, ok := vc.buffers.get(buffer)
	if !ok {
		core.LogFatal("bind of unknown index buffer %d", buffer)
		return
	}
	vk.CmdBindIndexBuffer(vc.commandBuffer(cmd), b.handle, vk.DeviceSize(offset), vk.IndexTypeUint32)
}
