package vulkan

import (
	vk "github.com/goki/vulkan"
)

type VulkanCommandBufferState int

const (
	COMMAND_BUFFER_STATE_READY VulkanCommandBufferState = iota
	COMMAND_BUFFER_STATE_RECORDING
	COMMAND_BUFFER_STATE_IN_RENDER_PASS
	COMMAND_BUFFER_STATE_RECORDING_ENDED
	COMMAND_BUFFER_STATE_SUBMITTED
	COMMAND_BUFFER_STATE_NOT_ALLOCATED
)

type VulkanCommandBuffer struct {
	Handle vk.CommandBuffer
	// Command buffer state.
	State VulkanCommandBufferState
}

func NewVulkanCommandBuffer(context *VulkanContext, pool vk.CommandPool, isPrimary bool) (*VulkanCommandBuffer, vk.Result) {
	level := vk.CommandBufferLevelSecondary
	if isPrimary {
		level = vk.CommandBufferLevelPrimary
	}

	allocateInfo := vk.CommandBufferAllocateInfo{
		SType:              vk.StructureTypeCommandBufferAllocateInfo,
		CommandPool:        pool,
		CommandBufferCount: 1,
		Level:              level,
	}

	handles := make([]vk.CommandBuffer, 1)
	if res := vk.AllocateCommandBuffers(context.Device.LogicalDevice, &allocateInfo, handles); res != vk.Success {
		context.Logger.Error("failed to allocate command buffer", "result", VulkanResultString(res, true))
		return nil, res
	}
	return &VulkanCommandBuffer{
		Handle: handles[0],
		State:  COMMAND_BUFFER_STATE_READY,
	}, vk.Success
}

func (v *VulkanCommandBuffer) Free(context *VulkanContext, pool vk.CommandPool) {
	vk.FreeCommandBuffers(context.Device.LogicalDevice, pool, 1, []vk.CommandBuffer{v.Handle})
	v.Handle = nil
	v.State = COMMAND_BUFFER_STATE_NOT_ALLOCATED
}

func (v *VulkanCommandBuffer) Begin(isSingleUse, isRenderpassContinue, isSimultaneousUse bool) vk.Result {
	beginInfo := vk.CommandBufferBeginInfo{
		SType: vk.StructureTypeCommandBufferBeginInfo,
	}
	if isSingleUse {
		beginInfo.Flags |= vk.CommandBufferUsageFlags(vk.CommandBufferUsageOneTimeSubmitBit)
	}
	if isRenderpassContinue {
		beginInfo.Flags |= vk.CommandBufferUsageFlags(vk.CommandBufferUsageRenderPassContinueBit)
	}
	if isSimultaneousUse {
		beginInfo.Flags |= vk.CommandBufferUsageFlags(vk.CommandBufferUsageSimultaneousUseBit)
	}

	res := vk.BeginCommandBuffer(v.Handle, &beginInfo)
	if res == vk.Success {
		v.State = COMMAND_BUFFER_STATE_RECORDING
	}
	return res
}

func (v *VulkanCommandBuffer) End() vk.Result {
	res := vk.EndCommandBuffer(v.Handle)
	if res == vk.Success {
		v.State = COMMAND_BUFFER_STATE_RECORDING_ENDED
	}
	return res
}

func (v *VulkanCommandBuffer) UpdateSubmitted() {
	v.State = COMMAND_BUFFER_STATE_SUBMITTED
}

func (v *VulkanCommandBuffer) Reset() {
	v.State = COMMAND_BUFFER_STATE_READY
}

// Submit ends recording and hands the buffer to the queue, signaling fence when it completes.
func (v *VulkanCommandBuffer) Submit(queue vk.Queue, fence vk.Fence) vk.Result {
	if res := v.End(); res != vk.Success {
		return res
	}
	submitInfo := vk.SubmitInfo{
		SType:              vk.StructureTypeSubmitInfo,
		CommandBufferCount: 1,
		PCommandBuffers:    []vk.CommandBuffer{v.Handle},
	}
	res := lockPool.SafeCall(QueueManagement, func() vk.Result {
		return vk.QueueSubmit(queue, 1, []vk.SubmitInfo{submitInfo}, fence)
	})
	if res == vk.Success {
		v.UpdateSubmitted()
	}
	return res
}

/**
 * Allocates and begins recording to a one-shot command buffer.
 */
func AllocateAndBeginSingleUse(context *VulkanContext, pool vk.CommandPool) (*VulkanCommandBuffer, vk.Result) {
	cb, res := NewVulkanCommandBuffer(context, pool, true)
	if res != vk.Success {
		return nil, res
	}
	if res := cb.Begin(true, false, false); res != vk.Success {
		cb.Free(context, pool)
		return nil, res
	}
	return cb, vk.Success
}

/**
 * Ends recording, submits to and waits for queue operation and frees the provided command buffer.
 */
func (v *VulkanCommandBuffer) EndSingleUse(context *VulkanContext, pool vk.CommandPool, queue vk.Queue) vk.Result {
	defer v.Free(context, pool)

	if res := v.Submit(queue, vk.NullFence); res != vk.Success {
		return res
	}
	return lockPool.SafeCall(QueueManagement, func() vk.Result {
		return vk.QueueWaitIdle(queue)
	})
}
