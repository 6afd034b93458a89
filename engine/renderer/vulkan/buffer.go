package vulkan

import (
	"unsafe"

	vk "github.com/goki/vulkan"

	"github.com/spaghettifunk/kiln/engine/renderer/metadata"
)

/**
 * @brief A host visible device buffer backing one vertex stream or an index list.
 */
type VulkanBuffer struct {
	Handle vk.Buffer
	Memory vk.DeviceMemory
	Desc   metadata.BufferDescription
}

func bufferUsageFlags(t metadata.BufferType) vk.BufferUsageFlagBits {
	if t == metadata.BufferTypeIndex {
		return vk.BufferUsageIndexBufferBit
	}
	return vk.BufferUsageVertexBufferBit
}

// BufferCreate creates a buffer in host visible, coherent memory and uploads data, if any.
func BufferCreate(context *VulkanContext, desc metadata.BufferDescription, data []byte) (*VulkanBuffer, vk.Result) {
	out, res := newHostBuffer(context, desc, bufferUsageFlags(desc.Type))
	if res != vk.Success {
		return nil, res
	}
	if len(data) > 0 {
		if res := out.Write(context, 0, data); res != vk.Success {
			out.Destroy(context)
			return nil, res
		}
	}
	return out, vk.Success
}

func newHostBuffer(context *VulkanContext, desc metadata.BufferDescription, usage vk.BufferUsageFlagBits) (*VulkanBuffer, vk.Result) {
	out := &VulkanBuffer{Desc: desc}
	device := context.Device.LogicalDevice

	bufferCreateInfo := vk.BufferCreateInfo{
		SType:       vk.StructureTypeBufferCreateInfo,
		Size:        vk.DeviceSize(desc.Size),
		Usage:       vk.BufferUsageFlags(usage),
		SharingMode: vk.SharingModeExclusive,
	}

	res := lockPool.SafeCall(BufferManagement, func() vk.Result {
		var handle vk.Buffer
		if res := vk.CreateBuffer(device, &bufferCreateInfo, context.Allocator, &handle); res != vk.Success {
			return res
		}
		out.Handle = handle

		// Ask device about its memory requirements.
		var memReqs vk.MemoryRequirements
		vk.GetBufferMemoryRequirements(device, handle, &memReqs)
		memReqs.Deref()

		memoryType := context.FindMemoryIndex(memReqs.MemoryTypeBits,
			uint32(vk.MemoryPropertyHostVisibleBit|vk.MemoryPropertyHostCoherentBit))
		if memoryType < 0 {
			return vk.ErrorOutOfDeviceMemory
		}

		allocateInfo := vk.MemoryAllocateInfo{
			SType:           vk.StructureTypeMemoryAllocateInfo,
			AllocationSize:  memReqs.Size,
			MemoryTypeIndex: uint32(memoryType),
		}
		var memory vk.DeviceMemory
		if res := vk.AllocateMemory(device, &allocateInfo, context.Allocator, &memory); res != vk.Success {
			return res
		}
		out.Memory = memory
		return vk.BindBufferMemory(device, handle, memory, 0)
	})
	if res != vk.Success {
		out.Destroy(context)
		return nil, res
	}
	return out, vk.Success
}

// Read copies size bytes out of the buffer memory.
func (b *VulkanBuffer) Read(context *VulkanContext, size uint32) ([]byte, vk.Result) {
	var ptr unsafe.Pointer
	if res := vk.MapMemory(context.Device.LogicalDevice, b.Memory, 0, vk.DeviceSize(size), 0, &ptr); res != vk.Success {
		return nil, res
	}
	out := make([]byte, size)
	copy(out, unsafe.Slice((*byte)(ptr), size))
	vk.UnmapMemory(context.Device.LogicalDevice, b.Memory)
	return out, vk.Success
}

// Write copies data into the buffer memory starting at offset.
func (b *VulkanBuffer) Write(context *VulkanContext, offset uint32, data []byte) vk.Result {
	var ptr unsafe.Pointer
	if res := vk.MapMemory(context.Device.LogicalDevice, b.Memory, vk.DeviceSize(offset), vk.DeviceSize(len(data)), 0, &ptr); res != vk.Success {
		context.Logger.Warn("failed to map device memory", "buffer", b.Desc.Name, "len", len(data))
		return res
	}
	vk.Memcopy(ptr, data)
	vk.UnmapMemory(context.Device.LogicalDevice, b.Memory)
	return vk.Success
}

func (b *VulkanBuffer) Destroy(context *VulkanContext) {
	device := context.Device.LogicalDevice
	lockPool.SafeCall(BufferManagement, func() vk.Result {
		if b.Handle != vk.NullBuffer {
			vk.DestroyBuffer(device, b.Handle, context.Allocator)
			b.Handle = vk.NullBuffer
		}
		if b.Memory != vk.NullDeviceMemory {
			vk.FreeMemory(device, b.Memory, context.Allocator)
			b.Memory = vk.NullDeviceMemory
		}
		return vk.Success
	})
}
