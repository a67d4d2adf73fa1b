package vulkan

import (
	"fmt"
	"unsafe"

	vk "github.com/goki/vulkan"

	"github.com/spaghettifunk/lumen/engine/core"
	"github.com/spaghettifunk/lumen/engine/renderer/hal"
)

/**
 * @brief Creates a graphics pipeline for dynamic rendering together with
 * its layout. Viewport and scissor are dynamic state.
 */
func (vc *VulkanContext) CreateGraphicsPipeline(desc hal.PipelineDesc) (hal.Pipeline, hal.PipelineLayout, error) {
	vertexModule, ok := vc.shaders.get(desc.VertexShader)
	if !ok {
		return 0, 0, unknownHandle("shader module", uint64(desc.VertexShader))
	}
	fragmentModule, ok := vc.shaders.get(desc.FragmentShader)
	if !ok {
		return 0, 0, unknownHandle("shader module", uint64(desc.FragmentShader))
	}
	setLayouts := make([]vk.DescriptorSetLayout, len(desc.SetLayouts))
	for i, l := range desc.SetLayouts {
		h, ok := vc.setLayouts.get(l)
		if !ok {
			return 0, 0, unknownHandle("descriptor set layout", uint64(l))
		}
		setLayouts[i] = h
	}

	stages := []vk.PipelineShaderStageCreateInfo{
		{
			SType:  vk.StructureTypePipelineShaderStageCreateInfo,
			Stage:  vk.ShaderStageVertexBit,
			Module: vertexModule,
			PName:  VulkanSafeString("main"),
		},
		{
			SType:  vk.StructureTypePipelineShaderStageCreateInfo,
			Stage:  vk.ShaderStageFragmentBit,
			Module: fragmentModule,
			PName:  VulkanSafeString("main"),
		},
	}

	// Viewport state, the actual values are set while recording.
	viewportState := vk.PipelineViewportStateCreateInfo{
		SType:         vk.StructureTypePipelineViewportStateCreateInfo,
		ViewportCount: 1,
		ScissorCount:  1,
	}

	// Rasterizer
	rasterizerCreateInfo := vk.PipelineRasterizationStateCreateInfo{
		SType:                   vk.StructureTypePipelineRasterizationStateCreateInfo,
		DepthClampEnable:        vk.False,
		RasterizerDiscardEnable: vk.False,
		PolygonMode:             vk.PolygonModeFill,
		LineWidth:               1.0,
		CullMode:                toVkCullMode(desc.CullMode),
		FrontFace:               vk.FrontFaceClockwise,
		DepthBiasEnable:         vk.False,
	}

	samples := desc.Samples
	if samples == 0 {
		samples = hal.SampleCount1
	}
	multisamplingCreateInfo := vk.PipelineMultisampleStateCreateInfo{
		SType:                 vk.StructureTypePipelineMultisampleStateCreateInfo,
		SampleShadingEnable:   vk.False,
		RasterizationSamples:  vk.SampleCountFlagBits(samples),
		MinSampleShading:      1.0,
		AlphaToCoverageEnable: vk.False,
		AlphaToOneEnable:      vk.False,
	}

	// Depth and stencil testing.
	depthStencil := vk.PipelineDepthStencilStateCreateInfo{
		SType:             vk.StructureTypePipelineDepthStencilStateCreateInfo,
		DepthTestEnable:   vk.False,
		DepthWriteEnable:  vk.False,
		StencilTestEnable: vk.False,
	}
	if desc.DepthFormat != hal.FormatUndefined {
		depthStencil.DepthTestEnable = vk.True
		depthStencil.DepthCompareOp = vk.CompareOpLess
		depthStencil.DepthBoundsTestEnable = vk.False
		if desc.DepthWrite {
			depthStencil.DepthWriteEnable = vk.True
		}
	}

	colorBlendAttachmentState := vk.PipelineColorBlendAttachmentState{
		BlendEnable: vk.False,
		ColorWriteMask: vk.ColorComponentFlags(vk.ColorComponentRBit) | vk.ColorComponentFlags(vk.ColorComponentGBit) |
			vk.ColorComponentFlags(vk.ColorComponentBBit) | vk.ColorComponentFlags(vk.ColorComponentABit),
	}
	if desc.AlphaBlend {
		colorBlendAttachmentState.BlendEnable = vk.True
		colorBlendAttachmentState.SrcColorBlendFactor = vk.BlendFactorSrcAlpha
		colorBlendAttachmentState.DstColorBlendFactor = vk.BlendFactorOneMinusSrcAlpha
		colorBlendAttachmentState.ColorBlendOp = vk.BlendOpAdd
		colorBlendAttachmentState.SrcAlphaBlendFactor = vk.BlendFactorOne
		colorBlendAttachmentState.DstAlphaBlendFactor = vk.BlendFactorZero
		colorBlendAttachmentState.AlphaBlendOp = vk.BlendOpAdd
	}

	colorBlendStateCreateInfo := vk.PipelineColorBlendStateCreateInfo{
		SType:           vk.StructureTypePipelineColorBlendStateCreateInfo,
		LogicOpEnable:   vk.False,
		LogicOp:         vk.LogicOpCopy,
		AttachmentCount: 1,
		PAttachments:    []vk.PipelineColorBlendAttachmentState{colorBlendAttachmentState},
	}

	// Dynamic state
	dynamicStates := []vk.DynamicState{
		vk.DynamicStateViewport,
		vk.DynamicStateScissor,
	}
	dynamicStateCreateInfo := vk.PipelineDynamicStateCreateInfo{
		SType:             vk.StructureTypePipelineDynamicStateCreateInfo,
		DynamicStateCount: uint32(len(dynamicStates)),
		PDynamicStates:    dynamicStates,
	}

	// Vertex input
	vertexInputInfo := vk.PipelineVertexInputStateCreateInfo{
		SType: vk.StructureTypePipelineVertexInputStateCreateInfo,
	}
	if desc.VertexStride > 0 {
		attributes := make([]vk.VertexInputAttributeDescription, len(desc.VertexAttributes))
		for i, a := range desc.VertexAttributes {
			attributes[i] = vk.VertexInputAttributeDescription{
				Binding:  0,
				Location: a.Location,
				Format:   vertexFormat(a.Components),
				Offset:   a.Offset,
			}
		}
		vertexInputInfo.VertexBindingDescriptionCount = 1
		vertexInputInfo.PVertexBindingDescriptions = []vk.VertexInputBindingDescription{{
			Binding:   0,
			Stride:    desc.VertexStride,
			InputRate: vk.VertexInputRateVertex, // Move to next data entry for each vertex.
		}}
		vertexInputInfo.VertexAttributeDescriptionCount = uint32(len(attributes))
		vertexInputInfo.PVertexAttributeDescriptions = attributes
	}

	// Input assembly
	inputAssembly := vk.PipelineInputAssemblyStateCreateInfo{
		SType:                  vk.StructureTypePipelineInputAssemblyStateCreateInfo,
		Topology:               vk.PrimitiveTopologyTriangleList,
		PrimitiveRestartEnable: vk.False,
	}

	// Pipeline layout
	pipelineLayoutCreateInfo := vk.PipelineLayoutCreateInfo{
		SType:          vk.StructureTypePipelineLayoutCreateInfo,
		SetLayoutCount: uint32(len(setLayouts)),
		PSetLayouts:    setLayouts,
	}

	// Push constants
	if desc.PushConstantSize > 0 {
		// NOTE: only 128 bytes are guaranteed by every implementation.
		if desc.PushConstantSize > 128 || desc.PushConstantSize%4 != 0 {
			err := fmt.Errorf("%w: push constant size %d must be a multiple of 4 and at most 128", core.ErrDevice, desc.PushConstantSize)
			core.LogError(err.Error())
			return 0, 0, err
		}
		pipelineLayoutCreateInfo.PushConstantRangeCount = 1
		pipelineLayoutCreateInfo.PPushConstantRanges = []vk.PushConstantRange{{
			StageFlags: toVkShaderStages(desc.PushStages),
			Offset:     0,
			Size:       desc.PushConstantSize,
		}}
	}

	var pipelineLayout vk.PipelineLayout
	if err := vc.locks.SafeCall(PipelineManagement, func() error {
		if res := vk.CreatePipelineLayout(vc.Device.LogicalDevice, &pipelineLayoutCreateInfo, vc.Allocator, &pipelineLayout); res != vk.Success {
			return vkError("vkCreatePipelineLayout", res)
		}
		return nil
	}); err != nil {
		return 0, 0, err
	}

	// Attachment formats replace the render pass.
	renderingInfo := vk.PipelineRenderingCreateInfo{
		SType:                   vk.StructureTypePipelineRenderingCreateInfo,
		ColorAttachmentCount:    1,
		PColorAttachmentFormats: []vk.Format{toVkFormat(desc.ColorFormat)},
		DepthAttachmentFormat:   toVkFormat(desc.DepthFormat),
	}
	if desc.DepthFormat.HasStencil() {
		renderingInfo.StencilAttachmentFormat = toVkFormat(desc.DepthFormat)
	}
	renderingRef, renderingAllocs := renderingInfo.PassRef()
	defer renderingAllocs.Free()

	// Pipeline create
	pipelineCreateInfo := vk.GraphicsPipelineCreateInfo{
		SType:               vk.StructureTypeGraphicsPipelineCreateInfo,
		PNext:               unsafe.Pointer(renderingRef),
		StageCount:          uint32(len(stages)),
		PStages:             stages,
		PVertexInputState:   &vertexInputInfo,
		PInputAssemblyState: &inputAssembly,
		PViewportState:      &viewportState,
		PRasterizationState: &rasterizerCreateInfo,
		PMultisampleState:   &multisamplingCreateInfo,
		PDepthStencilState:  &depthStencil,
		PColorBlendState:    &colorBlendStateCreateInfo,
		PDynamicState:       &dynamicStateCreateInfo,
		Layout:              pipelineLayout,
		Subpass:             0,
		BasePipelineHandle:  vk.NullPipeline,
		BasePipelineIndex:   -1,
	}

	pPipelines := make([]vk.Pipeline, 1)
	if err := vc.locks.SafeCall(PipelineManagement, func() error {
		if res := vk.CreateGraphicsPipelines(vc.Device.LogicalDevice, vk.NullPipelineCache, 1, []vk.GraphicsPipelineCreateInfo{pipelineCreateInfo}, vc.Allocator, pPipelines); res != vk.Success {
			return vkError("vkCreateGraphicsPipelines", res)
		}
		return nil
	}); err != nil {
		vk.DestroyPipelineLayout(vc.Device.LogicalDevice, pipelineLayout, vc.Allocator)
		return 0, 0, err
	}

	core.LogDebug("Graphics pipeline created!")
	return vc.pipelines.add(pPipelines[0]), vc.pipelineLayouts.add(pipelineLayout), nil
}

func (vc *VulkanContext) DestroyPipeline(pipeline hal.Pipeline, layout hal.PipelineLayout) {
	_ = vc.locks.SafeCall(PipelineManagement, func() error {
		if p, ok := vc.pipelines.remove(pipeline); ok {
			vk.DestroyPipeline(vc.Device.LogicalDevice, p, vc.Allocator)
		}
		if l, ok := vc.pipelineLayouts.remove(layout); ok {
			vk.DestroyPipelineLayout(vc.Device.LogicalDevice, l, vc.Allocator)
		}
		return nil
	})
}
