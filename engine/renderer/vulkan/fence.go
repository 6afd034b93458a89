package vulkan

import (
	"fmt"

	vk "github.com/goki/vulkan"
)

type VulkanFence struct {
	Handle     vk.Fence
	IsSignaled bool
}

func NewFence(context *VulkanContext, createSignaled bool) (*VulkanFence, error) {
	fence := &VulkanFence{
		// Make sure to signal the fence if required.
		IsSignaled: createSignaled,
	}

	fenceCreateInfo := vk.FenceCreateInfo{
		SType: vk.StructureTypeFenceCreateInfo,
	}
	if fence.IsSignaled {
		fenceCreateInfo.Flags = vk.FenceCreateFlags(vk.FenceCreateSignaledBit)
	}

	var pFence vk.Fence
	if res := vk.CreateFence(context.Device.LogicalDevice, &fenceCreateInfo, context.Allocator, &pFence); res != vk.Success {
		err := fmt.Errorf("failed to create fence: %s", VulkanResultString(res, true))
		context.Logger.Error(err.Error())
		return nil, err
	}
	fence.Handle = pFence
	return fence, nil
}

func (vf *VulkanFence) FenceDestroy(context *VulkanContext) {
	if vf.Handle != vk.NullFence {
		vk.DestroyFence(context.Device.LogicalDevice, vf.Handle, context.Allocator)
		vf.Handle = vk.NullFence
	}
	vf.IsSignaled = false
}

// FenceWait blocks until the fence is signaled or the timeout expires.
func (vf *VulkanFence) FenceWait(context *VulkanContext, timeoutNs uint64) vk.Result {
	if vf.IsSignaled {
		// If already signaled, do not wait.
		return vk.Success
	}
	result := vk.WaitForFences(context.Device.LogicalDevice, 1, []vk.Fence{vf.Handle}, vk.True, timeoutNs)
	switch result {
	case vk.Success:
		vf.IsSignaled = true
	case vk.Timeout:
		context.Logger.Warn("vk_fence_wait - Timed out")
	default:
		context.Logger.Error("vk_fence_wait", "result", VulkanResultString(result, true))
	}
	return result
}

func (vf *VulkanFence) FenceReset(context *VulkanContext) vk.Result {
	if !vf.IsSignaled {
		return vk.Success
	}
	res := vk.ResetFences(context.Device.LogicalDevice, 1, []vk.Fence{vf.Handle})
	if res == vk.Success {
		vf.IsSignaled = false
	}
	return res
}
