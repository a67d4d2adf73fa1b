package vulkan

import (
	"encoding/binary"
	"fmt"

	vk "github.com/goki/vulkan"

	"github.com/spaghettifunk/lumen/engine/core"
	"github.com/spaghettifunk/lumen/engine/renderer/hal"
)

// spirvWords reinterprets SPIR-V bytecode as the little endian words
// vkCreateShaderModule expects.
func spirvWords(code []byte) ([]uint32, error) {
	if len(code) == 0 || len(code)%4 != 0 {
		return nil, fmt.Errorf("%w: SPIR-V size %d is not a positive multiple of 4", core.ErrDevice, len(code))
	}
	words := make([]uint32, len(code)/4)
	for i := range words {
		words[i] = binary.LittleEndian.Uint32(code[i*4:])
	}
	return words, nil
}

func (vc *VulkanContext) CreateShaderModule(spirv []byte) (hal.ShaderModule, error) {
	words, err := spirvWords(spirv)
	if err != nil {
		core.LogError(err.Error())
		return 0, err
	}
	createInfo := vk.ShaderModuleCreateInfo{
		SType:    vk.StructureTypeShaderModuleCreateInfo,
		CodeSize: uint(len(spirv)),
		PCode:    words,
	}
	var module vk.ShaderModule
	if res := vk.CreateShaderModule(vc.Device.LogicalDevice, &createInfo, vc.Allocator, &module); res != vk.Success {
		return 0, vkError("vkCreateShaderModule", res)
	}
	return vc.shaders.add(module), nil
}

func (vc *VulkanContext) DestroyShaderModule(module hal.ShaderModule) {
	if m, ok := vc.shaders.remove(module); ok {
		vk.DestroyShaderModule(vc.Device.LogicalDevice, m, vc.Allocator)
	}
}
