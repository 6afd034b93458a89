package vulkan

import (
	"testing"

	vk "github.com/goki/vulkan"
	"github.com/stretchr/testify/assert"

	"github.com/spaghettifunk/kiln/engine/renderer/metadata"
)

func TestVulkanResultString(t *testing.T) {
	assert.Equal(t, "VK_ERROR_DEVICE_LOST", VulkanResultString(vk.ErrorDeviceLost, false))
	assert.Equal(t, "VK_SUCCESS command successfully completed", VulkanResultString(vk.Success, true))
	assert.Equal(t, "VkResult(12345)", VulkanResultString(vk.Result(12345), true))
}

func TestVulkanResultIsSuccess(t *testing.T) {
	assert.True(t, VulkanResultIsSuccess(vk.Success))
	assert.True(t, VulkanResultIsSuccess(vk.Incomplete))
	assert.False(t, VulkanResultIsSuccess(vk.ErrorOutOfDeviceMemory))
}

func TestToResult(t *testing.T) {
	assert.Equal(t, metadata.ResultSuccess, toResult(vk.Success))
	assert.Equal(t, metadata.ResultErrorOutOfMemory, toResult(vk.ErrorOutOfHostMemory))
	assert.Equal(t, metadata.ResultErrorDeviceLost, toResult(vk.ErrorDeviceLost))
	assert.Equal(t, metadata.ResultErrorInvalidArgument, toResult(vk.ErrorFormatNotSupported))
}

func TestSafeStrings(t *testing.T) {
	assert.Equal(t, "\x00", VulkanSafeString(""))
	assert.Equal(t, "main\x00", VulkanSafeString("main"))
	assert.Equal(t, "main\x00", VulkanSafeString("main\x00"))
	assert.Equal(t, []string{"a\x00", "b\x00"}, VulkanSafeStrings([]string{"a", "b\x00"}))
}

func TestCString(t *testing.T) {
	assert.Equal(t, "VK_LAYER", cString([]byte{'V', 'K', '_', 'L', 'A', 'Y', 'E', 'R', 0, 'x'}))
	assert.Equal(t, "abc", cString([]byte("abc")))
}

func TestSpirvWords(t *testing.T) {
	words := spirvWords([]byte{0x03, 0x02, 0x23, 0x07, 1, 0, 0, 0})
	assert.Equal(t, []uint32{0x07230203, 1}, words)
}
