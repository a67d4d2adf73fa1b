package vulkan

import (
	"fmt"
	"unsafe"

	vk "github.com/goki/vulkan"

	"github.com/spaghettifunk/lumen/engine/core"
	"github.com/spaghettifunk/lumen/engine/renderer/hal"
)

type VulkanDevice struct {
	PhysicalDevice     vk.PhysicalDevice
	LogicalDevice      vk.Device
	GraphicsQueueIndex int32
	PresentQueueIndex  int32

	GraphicsQueue vk.Queue
	PresentQueue  vk.Queue

	GraphicsCommandPool vk.CommandPool

	Properties vk.PhysicalDeviceProperties
	Features   vk.PhysicalDeviceFeatures
	Memory     vk.PhysicalDeviceMemoryProperties

	DepthFormat    vk.Format
	MaxSampleCount hal.SampleCount
}

type VulkanPhysicalDeviceRequirements struct {
	Graphics             bool
	Present              bool
	DeviceExtensionNames []string
	SamplerAnisotropy    bool
	DiscreteGPU          bool
	// MinApiVersion is the lowest Vulkan version the device must report.
	MinApiVersion vk.Version
}

type VulkanPhysicalDeviceQueueFamilyInfo struct {
	GraphicsFamilyIndex int32
	PresentFamilyIndex  int32
}

/**
 * @brief Selects a physical device and creates the logical device, its
 * queues and the graphics command pool.
 */
func (vc *VulkanContext) DeviceCreate() error {
	if err := vc.SelectPhysicalDevice(); err != nil {
		return err
	}

	core.LogInfo("Creating logical device...")

	// NOTE: Do not create additional queues for shared indices.
	indices := []uint32{uint32(vc.Device.GraphicsQueueIndex)}
	if vc.Device.PresentQueueIndex != vc.Device.GraphicsQueueIndex {
		indices = append(indices, uint32(vc.Device.PresentQueueIndex))
	}

	queueCreateInfos := make([]vk.DeviceQueueCreateInfo, len(indices))
	for i := range indices {
		queueCreateInfos[i] = vk.DeviceQueueCreateInfo{
			SType:            vk.StructureTypeDeviceQueueCreateInfo,
			QueueFamilyIndex: indices[i],
			QueueCount:       1,
			PQueuePriorities: []float32{1.0},
		}
	}

	deviceFeatures := vk.PhysicalDeviceFeatures{
		SamplerAnisotropy: vk.True,
	}

	extensionNames := []string{vk.KhrSwapchainExtensionName}
	if vc.hasDeviceExtension("VK_KHR_portability_subset") {
		core.LogInfo("Adding required extension 'VK_KHR_portability_subset'.")
		extensionNames = append(extensionNames, "VK_KHR_portability_subset")
	}

	// Dynamic rendering is core in 1.3 but still has to be switched on.
	features13 := vk.PhysicalDeviceVulkan13Features{
		SType:            vk.StructureTypePhysicalDeviceVulkan13Features,
		DynamicRendering: vk.True,
	}
	features13Ref, features13Allocs := features13.PassRef()
	defer features13Allocs.Free()

	deviceCreateInfo := vk.DeviceCreateInfo{
		SType:                   vk.StructureTypeDeviceCreateInfo,
		PNext:                   unsafe.Pointer(features13Ref),
		QueueCreateInfoCount:    uint32(len(queueCreateInfos)),
		PQueueCreateInfos:       queueCreateInfos,
		PEnabledFeatures:        []vk.PhysicalDeviceFeatures{deviceFeatures},
		EnabledExtensionCount:   uint32(len(extensionNames)),
		PpEnabledExtensionNames: VulkanSafeStrings(extensionNames),
	}

	var device vk.Device
	if res := vk.CreateDevice(vc.Device.PhysicalDevice, &deviceCreateInfo, vc.Allocator, &device); res != vk.Success {
		return vkError("vkCreateDevice", res)
	}
	vc.Device.LogicalDevice = device
	core.LogInfo("Logical device created.")

	var graphicsQueue, presentQueue vk.Queue
	vk.GetDeviceQueue(vc.Device.LogicalDevice, uint32(vc.Device.GraphicsQueueIndex), 0, &graphicsQueue)
	vk.GetDeviceQueue(vc.Device.LogicalDevice, uint32(vc.Device.PresentQueueIndex), 0, &presentQueue)
	vc.Device.GraphicsQueue = graphicsQueue
	vc.Device.PresentQueue = presentQueue
	core.LogInfo("Queues obtained.")

	poolCreateInfo := vk.CommandPoolCreateInfo{
		SType:            vk.StructureTypeCommandPoolCreateInfo,
		QueueFamilyIndex: uint32(vc.Device.GraphicsQueueIndex),
		Flags:            vk.CommandPoolCreateFlags(vk.CommandPoolCreateResetCommandBufferBit),
	}
	var pool vk.CommandPool
	if res := vk.CreateCommandPool(vc.Device.LogicalDevice, &poolCreateInfo, vc.Allocator, &pool); res != vk.Success {
		return vkError("vkCreateCommandPool", res)
	}
	vc.Device.GraphicsCommandPool = pool
	core.LogInfo("Graphics command pool created.")

	if !vc.DeviceDetectDepthFormat() {
		err := fmt.Errorf("%w: no supported depth format", core.ErrDevice)
		core.LogError(err.Error())
		return err
	}
	return nil
}

func (vc *VulkanContext) DeviceDestroy() {
	vc.Device.GraphicsQueue = nil
	vc.Device.PresentQueue = nil

	if vc.Device.GraphicsCommandPool != nil {
		core.LogInfo("Destroying command pools...")
		vk.DestroyCommandPool(vc.Device.LogicalDevice, vc.Device.GraphicsCommandPool, vc.Allocator)
		vc.Device.GraphicsCommandPool = nil
	}

	if vc.Device.LogicalDevice != nil {
		core.LogInfo("Destroying logical device...")
		vk.DestroyDevice(vc.Device.LogicalDevice, vc.Allocator)
		vc.Device.LogicalDevice = nil
	}

	// Physical devices are not destroyed.
	vc.Device.PhysicalDevice = nil
	vc.Device.GraphicsQueueIndex = -1
	vc.Device.PresentQueueIndex = -1
}

func (vc *VulkanContext) hasDeviceExtension(name string) bool {
	for _, ext := range deviceExtensions(vc.Device.PhysicalDevice) {
		if ext == name {
			return true
		}
	}
	return false
}

func deviceExtensions(device vk.PhysicalDevice) []string {
	var count uint32
	if res := vk.EnumerateDeviceExtensionProperties(device, "", &count, nil); res != vk.Success || count == 0 {
		return nil
	}
	available := make([]vk.ExtensionProperties, count)
	if res := vk.EnumerateDeviceExtensionProperties(device, "", &count, available); res != vk.Success {
		return nil
	}
	names := make([]string, 0, count)
	for i := range available {
		available[i].Deref()
		names = append(names, cString(available[i].ExtensionName[:]))
	}
	return names
}

func (vc *VulkanContext) DeviceDetectDepthFormat() bool {
	candidates := []vk.Format{
		vk.FormatD32Sfloat,
		vk.FormatD32SfloatS8Uint,
		vk.FormatD24UnormS8Uint,
	}
	flags := vk.FormatFeatureFlags(vk.FormatFeatureDepthStencilAttachmentBit)
	for _, candidate := range candidates {
		var properties vk.FormatProperties
		vk.GetPhysicalDeviceFormatProperties(vc.Device.PhysicalDevice, candidate, &properties)
		properties.Deref()
		if properties.LinearTilingFeatures&flags == flags || properties.OptimalTilingFeatures&flags == flags {
			vc.Device.DepthFormat = candidate
			return true
		}
	}
	vc.Device.DepthFormat = vk.FormatUndefined
	return false
}

func (vc *VulkanContext) SelectPhysicalDevice() error {
	var physicalDeviceCount uint32
	if res := vk.EnumeratePhysicalDevices(vc.Instance, &physicalDeviceCount, nil); res != vk.Success {
		return vkError("vkEnumeratePhysicalDevices", res)
	}
	if physicalDeviceCount == 0 {
		err := fmt.Errorf("%w: no devices which support Vulkan were found", core.ErrDevice)
		core.LogError(err.Error())
		return err
	}
	physicalDevices := make([]vk.PhysicalDevice, physicalDeviceCount)
	if res := vk.EnumeratePhysicalDevices(vc.Instance, &physicalDeviceCount, physicalDevices); res != vk.Success {
		return vkError("vkEnumeratePhysicalDevices", res)
	}

	requirements := VulkanPhysicalDeviceRequirements{
		Graphics:             true,
		Present:              true,
		SamplerAnisotropy:    true,
		DiscreteGPU:          false,
		DeviceExtensionNames: []string{vk.KhrSwapchainExtensionName},
		MinApiVersion:        vk.MakeVersion(1, 3, 0),
	}

	for _, candidate := range physicalDevices {
		var properties vk.PhysicalDeviceProperties
		vk.GetPhysicalDeviceProperties(candidate, &properties)
		properties.Deref()
		properties.Limits.Deref()

		var features vk.PhysicalDeviceFeatures
		vk.GetPhysicalDeviceFeatures(candidate, &features)
		features.Deref()

		var memory vk.PhysicalDeviceMemoryProperties
		vk.GetPhysicalDeviceMemoryProperties(candidate, &memory)
		memory.Deref()

		queueInfo, ok := PhysicalDeviceMeetsRequirements(candidate, vc.Surface, &properties, &features, &requirements)
		if !ok {
			continue
		}

		name := cString(properties.DeviceName[:])
		core.LogInfo("Selected device: '%s'.", name)
		switch properties.DeviceType {
		case vk.PhysicalDeviceTypeIntegratedGpu:
			core.LogInfo("GPU type is Integrated.")
		case vk.PhysicalDeviceTypeDiscreteGpu:
			core.LogInfo("GPU type is Discrete.")
		case vk.PhysicalDeviceTypeVirtualGpu:
			core.LogInfo("GPU type is Virtual.")
		case vk.PhysicalDeviceTypeCpu:
			core.LogInfo("GPU type is CPU.")
		default:
			core.LogInfo("GPU type is Unknown.")
		}
		core.LogInfo(
			"Vulkan API version: %d.%d.%d",
			vk.Version(properties.ApiVersion).Major(),
			vk.Version(properties.ApiVersion).Minor(),
			vk.Version(properties.ApiVersion).Patch(),
		)
		for j := 0; j < int(memory.MemoryHeapCount); j++ {
			memory.MemoryHeaps[j].Deref()
			memorySizeGib := float64(memory.MemoryHeaps[j].Size) / 1024.0 / 1024.0 / 1024.0
			if vk.MemoryHeapFlagBits(memory.MemoryHeaps[j].Flags)&vk.MemoryHeapDeviceLocalBit != 0 {
				core.LogInfo("Local GPU memory: %.2f GiB", memorySizeGib)
			} else {
				core.LogInfo("Shared System memory: %.2f GiB", memorySizeGib)
			}
		}

		vc.Device.PhysicalDevice = candidate
		vc.Device.GraphicsQueueIndex = queueInfo.GraphicsFamilyIndex
		vc.Device.PresentQueueIndex = queueInfo.PresentFamilyIndex
		vc.Device.Properties = properties
		vc.Device.Features = features
		vc.Device.Memory = memory
		vc.Device.MaxSampleCount = maxUsableSampleCount(properties.Limits)
		core.LogInfo("Physical device selected.")
		return nil
	}

	err := fmt.Errorf("%w: no physical devices were found which meet the requirements", core.ErrDevice)
	core.LogError(err.Error())
	return err
}

func maxUsableSampleCount(limits vk.PhysicalDeviceLimits) hal.SampleCount {
	counts := limits.FramebufferColorSampleCounts & limits.FramebufferDepthSampleCounts
	for c := hal.SampleCount64; c > hal.SampleCount1; c >>= 1 {
		if uint32(counts)&uint32(c) != 0 {
			return c
		}
	}
	return hal.SampleCount1
}

func PhysicalDeviceMeetsRequirements(device vk.PhysicalDevice, surface vk.Surface, properties *vk.PhysicalDeviceProperties, features *vk.PhysicalDeviceFeatures, requirements *VulkanPhysicalDeviceRequirements) (VulkanPhysicalDeviceQueueFamilyInfo, bool) {
	queueInfo := VulkanPhysicalDeviceQueueFamilyInfo{GraphicsFamilyIndex: -1, PresentFamilyIndex: -1}

	if requirements.DiscreteGPU && properties.DeviceType != vk.PhysicalDeviceTypeDiscreteGpu {
		core.LogInfo("Device is not a discrete GPU, and one is required. Skipping.")
		return queueInfo, false
	}
	if properties.ApiVersion < uint32(requirements.MinApiVersion) {
		core.LogInfo("Device does not support Vulkan %d.%d, skipping.", requirements.MinApiVersion.Major(), requirements.MinApiVersion.Minor())
		return queueInfo, false
	}

	var queueFamilyCount uint32
	vk.GetPhysicalDeviceQueueFamilyProperties(device, &queueFamilyCount, nil)
	queueFamilies := make([]vk.QueueFamilyProperties, queueFamilyCount)
	vk.GetPhysicalDeviceQueueFamilyProperties(device, &queueFamilyCount, queueFamilies)

	for i := range queueFamilies {
		queueFamilies[i].Deref()
		if queueInfo.GraphicsFamilyIndex < 0 && vk.QueueFlagBits(queueFamilies[i].QueueFlags)&vk.QueueGraphicsBit != 0 {
			queueInfo.GraphicsFamilyIndex = int32(i)
		}
		var supportsPresent vk.Bool32
		if res := vk.GetPhysicalDeviceSurfaceSupport(device, uint32(i), surface, &supportsPresent); res != vk.Success {
			return queueInfo, false
		}
		// Prefer a family that does both.
		if supportsPresent == vk.True && (queueInfo.PresentFamilyIndex < 0 || int32(i) == queueInfo.GraphicsFamilyIndex) {
			queueInfo.PresentFamilyIndex = int32(i)
		}
	}

	if (requirements.Graphics && queueInfo.GraphicsFamilyIndex < 0) || (requirements.Present && queueInfo.PresentFamilyIndex < 0) {
		return queueInfo, false
	}
	core.LogDebug("Graphics Family Index: %d", queueInfo.GraphicsFamilyIndex)
	core.LogDebug("Present Family Index:  %d", queueInfo.PresentFamilyIndex)

	support, err := querySwapchainSupport(device, surface)
	if err != nil || len(support.Formats) == 0 || len(support.PresentModes) == 0 {
		core.LogInfo("Required swapchain support not present, skipping device.")
		return queueInfo, false
	}

	available := deviceExtensions(device)
	for _, required := range requirements.DeviceExtensionNames {
		found := false
		for _, ext := range available {
			if ext == required {
				found = true
				break
			}
		}
		if !found {
			core.LogInfo("Required extension not found: '%s', skipping device.", required)
			return queueInfo, false
		}
	}

	if requirements.SamplerAnisotropy && features.SamplerAnisotropy == vk.False {
		core.LogInfo("Device does not support samplerAnisotropy, skipping.")
		return queueInfo, false
	}
	return queueInfo, true
}

func (vc *VulkanContext) DepthFormat() (hal.Format, error) {
	f, ok := fromVkFormat(vc.Device.DepthFormat)
	if !ok {
		err := fmt.Errorf("%w: no supported depth format", core.ErrDevice)
		core.LogError(err.Error())
		return hal.FormatUndefined, err
	}
	return f, nil
}

func (vc *VulkanContext) MaxSampleCount() hal.SampleCount {
	return vc.Device.MaxSampleCount
}

func (vc *VulkanContext) WaitIdle() error {
	return vc.locks.SafeCall(QueueManagement, func() error {
		if res := vk.DeviceWaitIdle(vc.Device.LogicalDevice); res != vk.Success {
			return vkError("vkDeviceWaitIdle", res)
		}
		return nil
	})
}
