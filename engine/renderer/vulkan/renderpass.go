package vulkan

import (
	vk "github.com/goki/vulkan"

	"github.com/spaghettifunk/kiln/engine/math"
)

/**
 * @brief Describes the single colour + depth pass the offscreen target uses.
 */
type RenderpassConfig struct {
	ColorFormat vk.Format
	DepthFormat vk.Format
	// FinalColorLayout is the layout the colour attachment is left in.
	FinalColorLayout vk.ImageLayout
	ClearColor       math.Vec4
	ClearDepth       float32
	ClearStencil     uint32
}

type VulkanRenderpass struct {
	Handle vk.RenderPass
	Config RenderpassConfig
	// RenderArea is updated on resize; the pass always starts at the origin.
	Width, Height uint32
}

// offscreenRenderpassConfig clears to a dark blue and leaves the colour
// attachment ready for readback.
func offscreenRenderpassConfig(context *VulkanContext) RenderpassConfig {
	return RenderpassConfig{
		ColorFormat:      OFFSCREEN_COLOR_FORMAT,
		DepthFormat:      context.Device.DepthFormat,
		FinalColorLayout: vk.ImageLayoutTransferSrcOptimal,
		ClearColor:       math.NewVec4(0, 0, 0.2, 1),
		ClearDepth:       1,
	}
}

func RenderpassCreate(context *VulkanContext, config RenderpassConfig, width, height uint32) (*VulkanRenderpass, vk.Result) {
	attachments := []vk.AttachmentDescription{
		{
			Format:         config.ColorFormat,
			Samples:        vk.SampleCount1Bit,
			LoadOp:         vk.AttachmentLoadOpClear,
			StoreOp:        vk.AttachmentStoreOpStore,
			StencilLoadOp:  vk.AttachmentLoadOpDontCare,
			StencilStoreOp: vk.AttachmentStoreOpDontCare,
			InitialLayout:  vk.ImageLayoutUndefined,
			FinalLayout:    config.FinalColorLayout,
		},
		{
			Format:         config.DepthFormat,
			Samples:        vk.SampleCount1Bit,
			LoadOp:         vk.AttachmentLoadOpClear,
			StoreOp:        vk.AttachmentStoreOpDontCare,
			StencilLoadOp:  vk.AttachmentLoadOpDontCare,
			StencilStoreOp: vk.AttachmentStoreOpDontCare,
			InitialLayout:  vk.ImageLayoutUndefined,
			FinalLayout:    vk.ImageLayoutDepthStencilAttachmentOptimal,
		},
	}
	for i := range attachments {
		attachments[i].Deref()
	}

	colorReferences := []vk.AttachmentReference{{Attachment: 0, Layout: vk.ImageLayoutColorAttachmentOptimal}}
	depthReference := vk.AttachmentReference{Attachment: 1, Layout: vk.ImageLayoutDepthStencilAttachmentOptimal}
	depthReference.Deref()

	subpass := vk.SubpassDescription{
		PipelineBindPoint:       vk.PipelineBindPointGraphics,
		ColorAttachmentCount:    uint32(len(colorReferences)),
		PColorAttachments:       colorReferences,
		PDepthStencilAttachment: &depthReference,
	}
	subpass.Deref()

	// The previous frame must be done writing colour and depth before this one clears them.
	dependency := vk.SubpassDependency{
		SrcSubpass: vk.SubpassExternal,
		DstSubpass: 0,
		SrcStageMask: vk.PipelineStageFlags(vk.PipelineStageColorAttachmentOutputBit) |
			vk.PipelineStageFlags(vk.PipelineStageLateFragmentTestsBit),
		DstStageMask: vk.PipelineStageFlags(vk.PipelineStageColorAttachmentOutputBit) |
			vk.PipelineStageFlags(vk.PipelineStageEarlyFragmentTestsBit),
		DstAccessMask: vk.AccessFlags(vk.AccessColorAttachmentWriteBit) |
			vk.AccessFlags(vk.AccessDepthStencilAttachmentWriteBit),
	}
	dependency.Deref()

	createInfo := vk.RenderPassCreateInfo{
		SType:           vk.StructureTypeRenderPassCreateInfo,
		AttachmentCount: uint32(len(attachments)),
		PAttachments:    attachments,
		SubpassCount:    1,
		PSubpasses:      []vk.SubpassDescription{subpass},
		DependencyCount: 1,
		PDependencies:   []vk.SubpassDependency{dependency},
	}
	createInfo.Deref()

	var handle vk.RenderPass
	if res := vk.CreateRenderPass(context.Device.LogicalDevice, &createInfo, context.Allocator, &handle); res != vk.Success {
		return nil, res
	}
	return &VulkanRenderpass{
		Handle: handle,
		Config: config,
		Width:  width,
		Height: height,
	}, vk.Success
}

func (vr *VulkanRenderpass) Destroy(context *VulkanContext) {
	if vr.Handle != vk.NullRenderPass {
		vk.DestroyRenderPass(context.Device.LogicalDevice, vr.Handle, context.Allocator)
		vr.Handle = vk.NullRenderPass
	}
}

// clearValues returns the colour and depth clear values, in attachment order.
func (vr *VulkanRenderpass) clearValues() []vk.ClearValue {
	values := make([]vk.ClearValue, 2)
	c := vr.Config.ClearColor.Array()
	values[0].SetColor(c[:])
	values[1].SetDepthStencil(vr.Config.ClearDepth, vr.Config.ClearStencil)
	return values
}

func (vr *VulkanRenderpass) Begin(commandBuffer *VulkanCommandBuffer, framebuffer vk.Framebuffer) {
	values := vr.clearValues()
	beginInfo := vk.RenderPassBeginInfo{
		SType:       vk.StructureTypeRenderPassBeginInfo,
		RenderPass:  vr.Handle,
		Framebuffer: framebuffer,
		RenderArea: vk.Rect2D{
			Extent: vk.Extent2D{Width: vr.Width, Height: vr.Height},
		},
		ClearValueCount: uint32(len(values)),
		PClearValues:    values,
	}
	beginInfo.Deref()

	vk.CmdBeginRenderPass(commandBuffer.Handle, &beginInfo, vk.SubpassContentsInline)
	commandBuffer.State = COMMAND_BUFFER_STATE_IN_RENDER_PASS
}

func (vr *VulkanRenderpass) End(commandBuffer *VulkanCommandBuffer) {
	vk.CmdEndRenderPass(commandBuffer.Handle)
	commandBuffer.State = COMMAND_BUFFER_STATE_RECORDING
}
