package vulkan

import (
	vk "github.com/goki/vulkan"
)

type VulkanImage struct {
	Handle vk.Image
	Memory vk.DeviceMemory
	View   vk.ImageView
	Format vk.Format
	Width  uint32
	Height uint32
}

// ImageCreate allocates a device local 2D image with a single mip level and a view over aspect.
func ImageCreate(context *VulkanContext, width, height uint32, format vk.Format, usage vk.ImageUsageFlagBits, aspect vk.ImageAspectFlagBits) (*VulkanImage, vk.Result) {
	img := &VulkanImage{
		Format: format,
		Width:  width,
		Height: height,
	}
	device := context.Device.LogicalDevice

	imageCreateInfo := vk.ImageCreateInfo{
		SType:     vk.StructureTypeImageCreateInfo,
		ImageType: vk.ImageType2d,
		Format:    format,
		Extent: vk.Extent3D{
			Width:  width,
			Height: height,
			Depth:  1,
		},
		MipLevels:     1,
		ArrayLayers:   1,
		Samples:       vk.SampleCount1Bit,
		Tiling:        vk.ImageTilingOptimal,
		Usage:         vk.ImageUsageFlags(usage),
		SharingMode:   vk.SharingModeExclusive,
		InitialLayout: vk.ImageLayoutUndefined,
	}
	var handle vk.Image
	if res := vk.CreateImage(device, &imageCreateInfo, context.Allocator, &handle); res != vk.Success {
		return nil, res
	}
	img.Handle = handle

	var memReqs vk.MemoryRequirements
	vk.GetImageMemoryRequirements(device, handle, &memReqs)
	memReqs.Deref()

	memoryType := context.FindMemoryIndex(memReqs.MemoryTypeBits, uint32(vk.MemoryPropertyDeviceLocalBit))
	if memoryType < 0 {
		img.Destroy(context)
		return nil, vk.ErrorOutOfDeviceMemory
	}

	allocateInfo := vk.MemoryAllocateInfo{
		SType:           vk.StructureTypeMemoryAllocateInfo,
		AllocationSize:  memReqs.Size,
		MemoryTypeIndex: uint32(memoryType),
	}
	var memory vk.DeviceMemory
	if res := vk.AllocateMemory(device, &allocateInfo, context.Allocator, &memory); res != vk.Success {
		img.Destroy(context)
		return nil, res
	}
	img.Memory = memory
	if res := vk.BindImageMemory(device, handle, memory, 0); res != vk.Success {
		img.Destroy(context)
		return nil, res
	}

	viewCreateInfo := vk.ImageViewCreateInfo{
		SType:    vk.StructureTypeImageViewCreateInfo,
		Image:    handle,
		ViewType: vk.ImageViewType2d,
		Format:   format,
		SubresourceRange: vk.ImageSubresourceRange{
			AspectMask: vk.ImageAspectFlags(aspect),
			LevelCount: 1,
			LayerCount: 1,
		},
	}
	var view vk.ImageView
	if res := vk.CreateImageView(device, &viewCreateInfo, context.Allocator, &view); res != vk.Success {
		img.Destroy(context)
		return nil, res
	}
	img.View = view
	return img, vk.Success
}

func (img *VulkanImage) Destroy(context *VulkanContext) {
	device := context.Device.LogicalDevice
	if img.View != vk.NullImageView {
		vk.DestroyImageView(device, img.View, context.Allocator)
		img.View = vk.NullImageView
	}
	if img.Memory != vk.NullDeviceMemory {
		vk.FreeMemory(device, img.Memory, context.Allocator)
		img.Memory = vk.NullDeviceMemory
	}
	if img.Handle != vk.NullImage {
		vk.DestroyImage(device, img.Handle, context.Allocator)
		img.Handle = vk.NullImage
	}
}
