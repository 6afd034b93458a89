package vulkan

import (
	vk "github.com/goki/vulkan"

	"github.com/spaghettifunk/kiln/engine/core"
)

type VulkanContext struct {
	// The framebuffer's current width.
	FramebufferWidth uint32
	// The framebuffer's current height.
	FramebufferHeight uint32

	Instance  vk.Instance
	Allocator *vk.AllocationCallbacks

	debugMessenger vk.DebugReportCallback

	Device *VulkanDevice

	// Offscreen colour and depth target every frame renders into.
	Target *VulkanRenderTarget

	GraphicsCommandBuffer *VulkanCommandBuffer
	InFlightFence         *VulkanFence

	Logger *core.Logger
}

func (vc *VulkanContext) FindMemoryIndex(typeFilter, propertyFlags uint32) int32 {
	var memoryProperties vk.PhysicalDeviceMemoryProperties
	vk.GetPhysicalDeviceMemoryProperties(vc.Device.PhysicalDevice, &memoryProperties)
	memoryProperties.Deref()

	for i := uint32(0); i < memoryProperties.MemoryTypeCount; i++ {
		// Check each memory type to see if its bit is set to 1.
		memoryProperties.MemoryTypes[i].Deref()
		if (typeFilter&(1<<i)) != 0 && (uint32(memoryProperties.MemoryTypes[i].PropertyFlags)&propertyFlags) == propertyFlags {
			return int32(i)
		}
	}
	vc.Logger.Warn("Unable to find suitable memory type!")
	return -1
}
