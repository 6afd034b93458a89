package vulkan

import (
	"sync"

	vk "github.com/goki/vulkan"
)

type LockGroup string

const (
	ResourceManagement      LockGroup = "resource_management"
	CommandBufferManagement LockGroup = "command_buffer_management"
	BufferManagement        LockGroup = "buffer_management"
	PipelineManagement      LockGroup = "pipeline_management"
	ShaderManagement        LockGroup = "shader_management"
	QueueManagement         LockGroup = "queue_management"
)

// Mutex pool. Handle creation and destruction go through it so asset loading
// goroutines may create buffers while the render loop records commands.
type VulkanLockPool struct {
	locks map[LockGroup]*sync.Mutex
	mu    sync.Mutex // Protects access to the locks map
}

func NewVulkanLockPool() *VulkanLockPool {
	return &VulkanLockPool{
		locks: make(map[LockGroup]*sync.Mutex),
	}
}

// Get or create a mutex for a specific group
func (vs *VulkanLockPool) lock(group LockGroup) *sync.Mutex {
	vs.mu.Lock()
	l, exists := vs.locks[group]
	if !exists {
		l = &sync.Mutex{}
		vs.locks[group] = l
	}
	vs.mu.Unlock()

	l.Lock()
	return l
}

func (vs *VulkanLockPool) SafeCall(group LockGroup, fn func() vk.Result) vk.Result {
	l := vs.lock(group)
	defer l.Unlock()

	return fn()
}

var lockPool = NewVulkanLockPool()
