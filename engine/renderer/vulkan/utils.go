package vulkan

import (
	"encoding/binary"
	"fmt"

	vk "github.com/goki/vulkan"

	"github.com/spaghettifunk/kiln/engine/renderer/metadata"
)

type resultInfo struct {
	name        string
	description string
	success     bool
}

// See https://www.khronos.org/registry/vulkan/specs/1.3-extensions/man/html/VkResult.html
var vulkanResults = map[vk.Result]resultInfo{
	vk.Success:                 {"VK_SUCCESS", "command successfully completed", true},
	vk.NotReady:                {"VK_NOT_READY", "a fence or query has not yet completed", true},
	vk.Timeout:                 {"VK_TIMEOUT", "a wait operation has not completed in the specified time", true},
	vk.EventSet:                {"VK_EVENT_SET", "an event is signaled", true},
	vk.EventReset:              {"VK_EVENT_RESET", "an event is unsignaled", true},
	vk.Incomplete:              {"VK_INCOMPLETE", "a return array was too small for the result", true},
	vk.Suboptimal:              {"VK_SUBOPTIMAL_KHR", "the swapchain no longer matches the surface exactly", true},
	vk.ThreadIdle:              {"VK_THREAD_IDLE_KHR", "deferred operation has no work for this thread", true},
	vk.ThreadDone:              {"VK_THREAD_DONE_KHR", "deferred operation has no work left to assign", true},
	vk.OperationDeferred:       {"VK_OPERATION_DEFERRED_KHR", "some of the requested work was deferred", true},
	vk.OperationNotDeferred:    {"VK_OPERATION_NOT_DEFERRED_KHR", "no requested work was deferred", true},
	vk.PipelineCompileRequired: {"VK_PIPELINE_COMPILE_REQUIRED_EXT", "pipeline creation would have required compilation", true},

	vk.ErrorOutOfHostMemory:             {"VK_ERROR_OUT_OF_HOST_MEMORY", "a host memory allocation has failed", false},
	vk.ErrorOutOfDeviceMemory:           {"VK_ERROR_OUT_OF_DEVICE_MEMORY", "a device memory allocation has failed", false},
	vk.ErrorInitializationFailed:        {"VK_ERROR_INITIALIZATION_FAILED", "initialization of an object could not be completed", false},
	vk.ErrorDeviceLost:                  {"VK_ERROR_DEVICE_LOST", "the logical or physical device has been lost", false},
	vk.ErrorMemoryMapFailed:             {"VK_ERROR_MEMORY_MAP_FAILED", "mapping of a memory object has failed", false},
	vk.ErrorLayerNotPresent:             {"VK_ERROR_LAYER_NOT_PRESENT", "a requested layer is not present or could not be loaded", false},
	vk.ErrorExtensionNotPresent:         {"VK_ERROR_EXTENSION_NOT_PRESENT", "a requested extension is not supported", false},
	vk.ErrorFeatureNotPresent:           {"VK_ERROR_FEATURE_NOT_PRESENT", "a requested feature is not supported", false},
	vk.ErrorIncompatibleDriver:          {"VK_ERROR_INCOMPATIBLE_DRIVER", "the requested Vulkan version is not supported by the driver", false},
	vk.ErrorTooManyObjects:              {"VK_ERROR_TOO_MANY_OBJECTS", "too many objects of the type have already been created", false},
	vk.ErrorFormatNotSupported:          {"VK_ERROR_FORMAT_NOT_SUPPORTED", "a requested format is not supported on this device", false},
	vk.ErrorFragmentedPool:              {"VK_ERROR_FRAGMENTED_POOL", "a pool allocation failed due to fragmentation", false},
	vk.ErrorSurfaceLost:                 {"VK_ERROR_SURFACE_LOST_KHR", "a surface is no longer available", false},
	vk.ErrorNativeWindowInUse:           {"VK_ERROR_NATIVE_WINDOW_IN_USE_KHR", "the window is already in use", false},
	vk.ErrorOutOfDate:                   {"VK_ERROR_OUT_OF_DATE_KHR", "the surface changed and the swapchain must be recreated", false},
	vk.ErrorIncompatibleDisplay:         {"VK_ERROR_INCOMPATIBLE_DISPLAY_KHR", "the display is incompatible with the swapchain", false},
	vk.ErrorInvalidShaderNv:             {"VK_ERROR_INVALID_SHADER_NV", "one or more shaders failed to compile or link", false},
	vk.ErrorOutOfPoolMemory:             {"VK_ERROR_OUT_OF_POOL_MEMORY", "a pool memory allocation has failed", false},
	vk.ErrorInvalidExternalHandle:       {"VK_ERROR_INVALID_EXTERNAL_HANDLE", "an external handle is not valid for its type", false},
	vk.ErrorFragmentation:               {"VK_ERROR_FRAGMENTATION", "a descriptor pool creation failed due to fragmentation", false},
	vk.ErrorInvalidDeviceAddress:        {"VK_ERROR_INVALID_DEVICE_ADDRESS_EXT", "the requested buffer address is not available", false},
	vk.ErrorFullScreenExclusiveModeLost: {"VK_ERROR_FULL_SCREEN_EXCLUSIVE_MODE_LOST_EXT", "exclusive full-screen access was lost", false},
	vk.ErrorUnknown:                     {"VK_ERROR_UNKNOWN", "an unknown error has occurred", false},
}

// VulkanResultString names result; extended appends a short description.
func VulkanResultString(result vk.Result, extended bool) string {
	info, ok := vulkanResults[result]
	if !ok {
		return fmt.Sprintf("VkResult(%d)", int32(result))
	}
	if !extended {
		return info.name
	}
	return info.name + " " + info.description
}

// VulkanResultIsSuccess reports non-error codes. Unknown codes count as success.
func VulkanResultIsSuccess(result vk.Result) bool {
	info, ok := vulkanResults[result]
	return !ok || info.success
}

// VulkanSafeString null-terminates s for the C side.
func VulkanSafeString(s string) string {
	if len(s) == 0 || s[len(s)-1] != 0 {
		return s + "\x00"
	}
	return s
}

func VulkanSafeStrings(list []string) []string {
	out := make([]string, len(list))
	for i := range list {
		out[i] = VulkanSafeString(list[i])
	}
	return out
}

// cString converts a fixed size, null-terminated C array.
func cString(arr []byte) string {
	for i, b := range arr {
		if b == 0 {
			return string(arr[:i])
		}
	}
	return string(arr)
}

// toResult maps a Vulkan result onto the device result codes the renderer checks.
func toResult(result vk.Result) metadata.Result {
	switch result {
	case vk.Success:
		return metadata.ResultSuccess
	case vk.ErrorOutOfHostMemory, vk.ErrorOutOfDeviceMemory, vk.ErrorTooManyObjects:
		return metadata.ResultErrorOutOfMemory
	case vk.ErrorDeviceLost:
		return metadata.ResultErrorDeviceLost
	case vk.ErrorInitializationFailed:
		return metadata.ResultErrorNotInitialized
	}
	if VulkanResultIsSuccess(result) {
		return metadata.ResultSuccess
	}
	return metadata.ResultErrorInvalidArgument
}

// spirvWords reinterprets SPIR-V bytes as the little endian words Vulkan expects.
func spirvWords(code []byte) []uint32 {
	words := make([]uint32, len(code)/4)
	for i := range words {
		words[i] = binary.LittleEndian.Uint32(code[4*i:])
	}
	return words
}
