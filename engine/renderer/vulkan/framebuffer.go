package vulkan

import (
	vk "github.com/goki/vulkan"
)

type VulkanFramebuffer struct {
	Handle      vk.Framebuffer
	Attachments []vk.ImageView
	Renderpass  *VulkanRenderpass
}

func FramebufferCreate(context *VulkanContext, renderpass *VulkanRenderpass, width, height uint32, attachments []vk.ImageView) (*VulkanFramebuffer, vk.Result) {
	outFramebuffer := &VulkanFramebuffer{
		Attachments: append([]vk.ImageView(nil), attachments...),
		Renderpass:  renderpass,
	}

	framebufferCreateInfo := vk.FramebufferCreateInfo{
		SType:           vk.StructureTypeFramebufferCreateInfo,
		RenderPass:      renderpass.Handle,
		AttachmentCount: uint32(len(outFramebuffer.Attachments)),
		PAttachments:    outFramebuffer.Attachments,
		Width:           width,
		Height:          height,
		Layers:          1,
	}

	var pFramebuffer vk.Framebuffer
	if res := vk.CreateFramebuffer(context.Device.LogicalDevice, &framebufferCreateInfo, context.Allocator, &pFramebuffer); res != vk.Success {
		context.Logger.Error("failed to create framebuffer", "result", VulkanResultString(res, true))
		return nil, res
	}
	outFramebuffer.Handle = pFramebuffer
	return outFramebuffer, vk.Success
}

func (vfb *VulkanFramebuffer) Destroy(context *VulkanContext) {
	if vfb.Handle != vk.NullFramebuffer {
		vk.DestroyFramebuffer(context.Device.LogicalDevice, vfb.Handle, context.Allocator)
		vfb.Handle = vk.NullFramebuffer
	}
	vfb.Attachments = nil
	vfb.Renderpass = nil
}

// VulkanRenderTarget is the offscreen colour and depth pair every frame renders into.
type VulkanRenderTarget struct {
	Color       *VulkanImage
	Depth       *VulkanImage
	Renderpass  *VulkanRenderpass
	Framebuffer *VulkanFramebuffer
}

const OFFSCREEN_COLOR_FORMAT = vk.FormatR8g8b8a8Unorm

func RenderTargetCreate(context *VulkanContext, width, height uint32) (*VulkanRenderTarget, vk.Result) {
	target := &VulkanRenderTarget{}

	color, res := ImageCreate(context, width, height, OFFSCREEN_COLOR_FORMAT,
		vk.ImageUsageColorAttachmentBit|vk.ImageUsageTransferSrcBit, vk.ImageAspectColorBit)
	if res != vk.Success {
		return nil, res
	}
	target.Color = color

	depth, res := ImageCreate(context, width, height, context.Device.DepthFormat,
		vk.ImageUsageDepthStencilAttachmentBit, vk.ImageAspectDepthBit)
	if res != vk.Success {
		target.Destroy(context)
		return nil, res
	}
	target.Depth = depth

	renderpass, res := RenderpassCreate(context, offscreenRenderpassConfig(context), width, height)
	if res != vk.Success {
		target.Destroy(context)
		return nil, res
	}
	target.Renderpass = renderpass

	framebuffer, res := FramebufferCreate(context, renderpass, width, height, []vk.ImageView{color.View, depth.View})
	if res != vk.Success {
		target.Destroy(context)
		return nil, res
	}
	target.Framebuffer = framebuffer
	return target, vk.Success
}

func (t *VulkanRenderTarget) Destroy(context *VulkanContext) {
	if t.Framebuffer != nil {
		t.Framebuffer.Destroy(context)
		t.Framebuffer = nil
	}
	if t.Renderpass != nil {
		t.Renderpass.Destroy(context)
		t.Renderpass = nil
	}
	if t.Depth != nil {
		t.Depth.Destroy(context)
		t.Depth = nil
	}
	if t.Color != nil {
		t.Color.Destroy(context)
		t.Color = nil
	}
}
