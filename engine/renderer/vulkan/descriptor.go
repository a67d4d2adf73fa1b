package vulkan

import (
	vk "github.com/goki/vulkan"

	"github.com/spaghettifunk/lumen/engine/core"
	"github.com/spaghettifunk/lumen/engine/renderer/hal"
)

func (vc *VulkanContext) CreateSampler(desc hal.SamplerDesc) (hal.Sampler, error) {
	samplerInfo := vk.SamplerCreateInfo{
		SType:                   vk.StructureTypeSamplerCreateInfo,
		MagFilter:               toVkFilter(desc.MagFilter),
		MinFilter:               toVkFilter(desc.MinFilter),
		AddressModeU:            toVkAddressMode(desc.AddressMode),
		AddressModeV:            toVkAddressMode(desc.AddressMode),
		AddressModeW:            toVkAddressMode(desc.AddressMode),
		BorderColor:             vk.BorderColorFloatOpaqueBlack,
		UnnormalizedCoordinates: vk.False,
		CompareEnable:           vk.False,
		CompareOp:               vk.CompareOpAlways,
		MipmapMode:              vk.SamplerMipmapModeLinear,
		MipLodBias:              0.0,
		MinLod:                  0.0,
		MaxLod:                  desc.MaxLod,
	}
	if desc.MaxAnisotropy > 0 {
		samplerInfo.AnisotropyEnable = vk.True
		samplerInfo.MaxAnisotropy = desc.MaxAnisotropy
	}
	var sampler vk.Sampler
	if res := vk.CreateSampler(vc.Device.LogicalDevice, &samplerInfo, vc.Allocator, &sampler); res != vk.Success {
		return 0, vkError("vkCreateSampler", res)
	}
	return vc.samplers.add(sampler), nil
}

func (vc *VulkanContext) DestroySampler(sampler hal.Sampler) {
	if s, ok := vc.samplers.remove(sampler); ok {
		vk.DestroySampler(vc.Device.LogicalDevice, s, vc.Allocator)
	}
}

func (vc *VulkanContext) CreateDescriptorSetLayout(bindings []hal.DescriptorBinding) (hal.DescriptorSetLayout, error) {
	layoutBindings := make([]vk.DescriptorSetLayoutBinding, len(bindings))
	for i, b := range bindings {
		count := b.Count
		if count == 0 {
			count = 1
		}
		layoutBindings[i] = vk.DescriptorSetLayoutBinding{
			Binding:         b.Binding,
			DescriptorType:  toVkDescriptorType(b.Type),
			DescriptorCount: count,
			StageFlags:      toVkShaderStages(b.Stages),
		}
	}
	layoutInfo := vk.DescriptorSetLayoutCreateInfo{
		SType:        vk.StructureTypeDescriptorSetLayoutCreateInfo,
		BindingCount: uint32(len(layoutBindings)),
		PBindings:    layoutBindings,
	}
	var layout vk.DescriptorSetLayout
	if res := vk.CreateDescriptorSetLayout(vc.Device.LogicalDevice, &layoutInfo, vc.Allocator, &layout); res != vk.Success {
		return 0, vkError("vkCreateDescriptorSetLayout", res)
	}
	return vc.setLayouts.add(layout), nil
}

func (vc *VulkanContext) DestroyDescriptorSetLayout(layout hal.DescriptorSetLayout) {
	if l, ok := vc.setLayouts.remove(layout); ok {
		vk.DestroyDescriptorSetLayout(vc.Device.LogicalDevice, l, vc.Allocator)
	}
}

func (vc *VulkanContext) CreateDescriptorPool(maxSets uint32, sizes []hal.DescriptorPoolSize) (hal.DescriptorPool, error) {
	if maxSets == 0 {
		maxSets = VULKAN_DEFAULT_POOL_SETS
	}
	poolSizes := make([]vk.DescriptorPoolSize, len(sizes))
	for i, s := range sizes {
		poolSizes[i] = vk.DescriptorPoolSize{
			Type:            toVkDescriptorType(s.Type),
			DescriptorCount: s.Count,
		}
	}
	poolInfo := vk.DescriptorPoolCreateInfo{
		SType:         vk.StructureTypeDescriptorPoolCreateInfo,
		PoolSizeCount: uint32(len(poolSizes)),
		PPoolSizes:    poolSizes,
		MaxSets:       maxSets,
	}
	var pool vk.DescriptorPool
	if res := vk.CreateDescriptorPool(vc.Device.LogicalDevice, &poolInfo, vc.Allocator, &pool); res != vk.Success {
		return 0, vkError("vkCreateDescriptorPool", res)
	}
	return vc.descriptorPools.add(&descriptorPool{handle: pool}), nil
}

// DestroyDescriptorPool frees the pool and forgets every set it handed out.
func (vc *VulkanContext) DestroyDescriptorPool(pool hal.DescriptorPool) {
	p, ok := vc.descriptorPools.remove(pool)
	if !ok {
		return
	}
	for _, s := range p.sets {
		vc.descriptorSets.remove(s)
	}
	vk.DestroyDescriptorPool(vc.Device.LogicalDevice, p.handle, vc.Allocator)
}

func (vc *VulkanContext) AllocateDescriptorSet(pool hal.DescriptorPool, layout hal.DescriptorSetLayout) (hal.DescriptorSet, error) {
	p, ok := vc.descriptorPools.get(pool)
	if !ok {
		return 0, unknownHandle("descriptor pool", uint64(pool))
	}
	l, ok := vc.setLayouts.get(layout)
	if !ok {
		return 0, unknownHandle("descriptor set layout", uint64(layout))
	}
	allocInfo := vk.DescriptorSetAllocateInfo{
		SType:              vk.StructureTypeDescriptorSetAllocateInfo,
		DescriptorPool:     p.handle,
		DescriptorSetCount: 1,
		PSetLayouts:        []vk.DescriptorSetLayout{l},
	}
	sets := make([]vk.DescriptorSet, 1)
	if res := vk.AllocateDescriptorSets(vc.Device.LogicalDevice, &allocInfo, &sets[0]); res != vk.Success {
		return 0, vkError("vkAllocateDescriptorSets", res)
	}
	set := vc.descriptorSets.add(sets[0])
	p.sets = append(p.sets, set)
	return set, nil
}

func (vc *VulkanContext) WriteImageDescriptor(set hal.DescriptorSet, binding uint32, view hal.ImageView, sampler hal.Sampler, layout hal.ImageLayout) {
	ds, ok := vc.descriptorSets.get(set)
	if !ok {
		core.LogFatal("write to unknown descriptor set %d", set)
		return
	}
	s, ok := vc.samplers.get(sampler)
	if !ok {
		core.LogFatal("write with unknown sampler %d", sampler)
		return
	}
	imageInfo := vk.DescriptorImageInfo{
		ImageLayout: toVkLayout(layout),
		ImageView:   vc.imageView(view),
		Sampler:     s,
	}
	write := vk.WriteDescriptorSet{
		SType:           vk.StructureTypeWriteDescriptorSet,
		DstSet:          ds,
		DstBinding:      binding,
		DstArrayElement: 0,
		DescriptorType:  vk.DescriptorTypeCombinedImageSampler,
		DescriptorCount: 1,
		PImageInfo:      []vk.DescriptorImageInfo{imageInfo},
	}
	vk.UpdateDescriptorSets(vc.Device.LogicalDevice, 1, []vk.WriteDescriptorSet{write}, 0, nil)
}

func (vc *VulkanContext) WriteBufferDescriptor(set hal.DescriptorSet, binding uint32, buffer hal.Buffer, offset, size uint64) {
	ds, ok := vc.descriptorSets.get(set)
	if !ok {
		core.LogFatal("write to unknown descriptor set %d", set)
		return
	}
	b, ok := vc.buffers.get(buffer)
	if !ok {
		core.LogFatal("write with unknown buffer %d", buffer)
		return
	}
	bufferInfo := vk.DescriptorBufferInfo{
		Buffer: b.handle,
		Offset: vk.DeviceSize(offset),
		Range:  vk.DeviceSize(size),
	}
	write := vk.WriteDescriptorSet{
		SType:           vk.StructureTypeWriteDescriptorSet,
		DstSet:          ds,
		DstBinding:      binding,
		DstArrayElement: 0,
		DescriptorType:  vk.DescriptorTypeUniformBuffer,
		DescriptorCount: 1,
		PBufferInfo:     []vk.DescriptorBufferInfo{bufferInfo},
	}
	vk.UpdateDescriptorSets(vc.Device.LogicalDevice, 1, []vk.WriteDescriptorSet{write}, 0, nil)
}
