package vulkan

import (
	"fmt"

	vk "github.com/goki/vulkan"

	"github.com/spaghettifunk/kiln/engine/renderer/metadata"
)

/**
 * @brief Holds a Vulkan pipeline and its layout.
 */
type VulkanPipeline struct {
	/** @brief The internal pipeline handle. */
	Handle vk.Pipeline
	/** @brief The pipeline layout. */
	PipelineLayout vk.PipelineLayout
}

type VulkanPipelineConfig struct {
	/** @brief A pointer to the renderpass to associate with the pipeline. */
	Renderpass *VulkanRenderpass
	/** @brief One binding per vertex stream slot. */
	Bindings []vk.VertexInputBindingDescription
	/** @brief An array of attributes. */
	Attributes []vk.VertexInputAttributeDescription
	/** @brief An array of stages. */
	Stages []vk.PipelineShaderStageCreateInfo
	/** @brief The initial viewport configuration. */
	Viewport vk.Viewport
	/** @brief The initial scissor configuration. */
	Scissor    vk.Rect2D
	Topology   metadata.PrimitiveTopology
	Blend      metadata.BlendState
	Depth      metadata.DepthState
	Rasterizer metadata.RasterizerState
	/** @brief Size of the push constant block, 0 when the program has no constants. */
	PushConstantSize uint32
}

func cullMode(mode metadata.FaceCullMode) vk.CullModeFlags {
	switch mode {
	case metadata.FaceCullModeNone:
		return vk.CullModeFlags(vk.CullModeNone)
	case metadata.FaceCullModeFront:
		return vk.CullModeFlags(vk.CullModeFrontBit)
	case metadata.FaceCullModeFrontAndBack:
		return vk.CullModeFlags(vk.CullModeFrontAndBack)
	}
	return vk.CullModeFlags(vk.CullModeBackBit)
}

func compareOp(op metadata.CompareOp) vk.CompareOp {
	switch op {
	case metadata.CompareOpNever:
		return vk.CompareOpNever
	case metadata.CompareOpLessOrEqual:
		return vk.CompareOpLessOrEqual
	case metadata.CompareOpEqual:
		return vk.CompareOpEqual
	case metadata.CompareOpAlways:
		return vk.CompareOpAlways
	}
	return vk.CompareOpLess
}

func blendFactor(f metadata.BlendFactor) vk.BlendFactor {
	switch f {
	case metadata.BlendFactorZero:
		return vk.BlendFactorZero
	case metadata.BlendFactorSrcAlpha:
		return vk.BlendFactorSrcAlpha
	case metadata.BlendFactorOneMinusSrcAlpha:
		return vk.BlendFactorOneMinusSrcAlpha
	}
	return vk.BlendFactorOne
}

func primitiveTopology(t metadata.PrimitiveTopology) vk.PrimitiveTopology {
	if t == metadata.PrimitiveTopologyLineList {
		return vk.PrimitiveTopologyLineList
	}
	return vk.PrimitiveTopologyTriangleList
}

func boolToVk(b bool) vk.Bool32 {
	if b {
		return vk.True
	}
	return vk.False
}

func NewGraphicsPipeline(context *VulkanContext, config *VulkanPipelineConfig) (*VulkanPipeline, vk.Result) {
	outPipeline := &VulkanPipeline{}

	// Viewport state
	viewportState := vk.PipelineViewportStateCreateInfo{
		SType:         vk.StructureTypePipelineViewportStateCreateInfo,
		ViewportCount: 1,
		PViewports:    []vk.Viewport{config.Viewport},
		ScissorCount:  1,
		PScissors:     []vk.Rect2D{config.Scissor},
	}

	// Rasterizer
	rasterizerCreateInfo := vk.PipelineRasterizationStateCreateInfo{
		SType:                   vk.StructureTypePipelineRasterizationStateCreateInfo,
		DepthClampEnable:        vk.False,
		RasterizerDiscardEnable: vk.False,
		PolygonMode:             vk.PolygonModeFill,
		LineWidth:               1.0,
		CullMode:                cullMode(config.Rasterizer.CullMode),
		FrontFace:               vk.FrontFaceCounterClockwise,
		DepthBiasEnable:         vk.False,
	}
	if config.Rasterizer.FillMode == metadata.FillModeWireframe {
		rasterizerCreateInfo.PolygonMode = vk.PolygonModeLine
	}

	// Multisampling.
	multisamplingCreateInfo := vk.PipelineMultisampleStateCreateInfo{
		SType:                 vk.StructureTypePipelineMultisampleStateCreateInfo,
		SampleShadingEnable:   vk.False,
		RasterizationSamples:  vk.SampleCount1Bit,
		MinSampleShading:      1.0,
		AlphaToCoverageEnable: vk.False,
		AlphaToOneEnable:      vk.False,
	}

	// Depth and stencil testing.
	depthStencil := vk.PipelineDepthStencilStateCreateInfo{
		SType:             vk.StructureTypePipelineDepthStencilStateCreateInfo,
		DepthTestEnable:   boolToVk(config.Depth.TestEnabled),
		DepthWriteEnable:  boolToVk(config.Depth.WriteEnabled),
		DepthCompareOp:    compareOp(config.Depth.Compare),
		StencilTestEnable: vk.False,
	}

	colorBlendAttachmentState := vk.PipelineColorBlendAttachmentState{
		BlendEnable:         boolToVk(config.Blend.Enabled),
		SrcColorBlendFactor: blendFactor(config.Blend.SrcColor),
		DstColorBlendFactor: blendFactor(config.Blend.DstColor),
		ColorBlendOp:        vk.BlendOpAdd,
		SrcAlphaBlendFactor: blendFactor(config.Blend.SrcAlpha),
		DstAlphaBlendFactor: blendFactor(config.Blend.DstAlpha),
		AlphaBlendOp:        vk.BlendOpAdd,
		ColorWriteMask: vk.ColorComponentFlags(vk.ColorComponentRBit) | vk.ColorComponentFlags(vk.ColorComponentGBit) |
			vk.ColorComponentFlags(vk.ColorComponentBBit) | vk.ColorComponentFlags(vk.ColorComponentABit),
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
		SType:                           vk.StructureTypePipelineVertexInputStateCreateInfo,
		VertexBindingDescriptionCount:   uint32(len(config.Bindings)),
		PVertexBindingDescriptions:      config.Bindings,
		VertexAttributeDescriptionCount: uint32(len(config.Attributes)),
		PVertexAttributeDescriptions:    config.Attributes,
	}

	// Input assembly
	inputAssembly := vk.PipelineInputAssemblyStateCreateInfo{
		SType:                  vk.StructureTypePipelineInputAssemblyStateCreateInfo,
		Topology:               primitiveTopology(config.Topology),
		PrimitiveRestartEnable: vk.False,
	}

	// Pipeline layout
	pipelineLayoutCreateInfo := vk.PipelineLayoutCreateInfo{
		SType: vk.StructureTypePipelineLayoutCreateInfo,
	}

	// Push constants
	if config.PushConstantSize > 0 {
		if config.PushConstantSize > MAX_PUSH_CONSTANT_SIZE {
			context.Logger.Error(fmt.Sprintf("NewGraphicsPipeline: push constant block of %d bytes exceeds %d", config.PushConstantSize, MAX_PUSH_CONSTANT_SIZE))
			return nil, vk.ErrorInitializationFailed
		}
		pipelineLayoutCreateInfo.PushConstantRangeCount = 1
		pipelineLayoutCreateInfo.PPushConstantRanges = []vk.PushConstantRange{{
			StageFlags: vk.ShaderStageFlags(vk.ShaderStageVertexBit) | vk.ShaderStageFlags(vk.ShaderStageFragmentBit),
			Offset:     0,
			Size:       config.PushConstantSize,
		}}
	}

	// Create the pipeline layout.
	if res := lockPool.SafeCall(PipelineManagement, func() vk.Result {
		var pPipelineLayout vk.PipelineLayout
		result := vk.CreatePipelineLayout(context.Device.LogicalDevice, &pipelineLayoutCreateInfo, context.Allocator, &pPipelineLayout)
		outPipeline.PipelineLayout = pPipelineLayout
		return result
	}); !VulkanResultIsSuccess(res) {
		context.Logger.Error("vkCreatePipelineLayout failed", "result", VulkanResultString(res, true))
		return nil, res
	}

	// Pipeline create
	pipelineCreateInfo := vk.GraphicsPipelineCreateInfo{
		SType:               vk.StructureTypeGraphicsPipelineCreateInfo,
		StageCount:          uint32(len(config.Stages)),
		PStages:             config.Stages,
		PVertexInputState:   &vertexInputInfo,
		PInputAssemblyState: &inputAssembly,
		PViewportState:      &viewportState,
		PRasterizationState: &rasterizerCreateInfo,
		PMultisampleState:   &multisamplingCreateInfo,
		PDepthStencilState:  &depthStencil,
		PColorBlendState:    &colorBlendStateCreateInfo,
		PDynamicState:       &dynamicStateCreateInfo,
		Layout:              outPipeline.PipelineLayout,
		RenderPass:          config.Renderpass.Handle,
		Subpass:             0,
		BasePipelineHandle:  vk.NullPipeline,
		BasePipelineIndex:   -1,
	}

	pPipelines := make([]vk.Pipeline, 1)
	if res := lockPool.SafeCall(PipelineManagement, func() vk.Result {
		return vk.CreateGraphicsPipelines(
			context.Device.LogicalDevice,
			vk.NullPipelineCache,
			1,
			[]vk.GraphicsPipelineCreateInfo{pipelineCreateInfo},
			context.Allocator,
			pPipelines)
	}); !VulkanResultIsSuccess(res) {
		context.Logger.Error("vkCreateGraphicsPipelines failed", "result", VulkanResultString(res, true))
		outPipeline.Destroy(context)
		return nil, res
	}
	outPipeline.Handle = pPipelines[0]

	context.Logger.Debug("Graphics pipeline created!")
	return outPipeline, vk.Success
}

func (pipeline *VulkanPipeline) Destroy(context *VulkanContext) {
	lockPool.SafeCall(PipelineManagement, func() vk.Result {
		// Destroy pipeline
		if pipeline.Handle != vk.NullPipeline {
			vk.DestroyPipeline(context.Device.LogicalDevice, pipeline.Handle, context.Allocator)
			pipeline.Handle = vk.NullPipeline
		}
		// Destroy layout
		if pipeline.PipelineLayout != vk.NullPipelineLayout {
			vk.DestroyPipelineLayout(context.Device.LogicalDevice, pipeline.PipelineLayout, context.Allocator)
			pipeline.PipelineLayout = vk.NullPipelineLayout
		}
		return vk.Success
	})
}

func (pipeline *VulkanPipeline) Bind(commandBuffer *VulkanCommandBuffer, bindPoint vk.PipelineBindPoint) {
	lockPool.SafeCall(CommandBufferManagement, func() vk.Result {
		vk.CmdBindPipeline(commandBuffer.Handle, bindPoint, pipeline.Handle)
		return vk.Success
	})
}
