package vulkan

import (
	"runtime"

	vk "github.com/goki/vulkan"
)

type VulkanDevice struct {
	PhysicalDevice     vk.PhysicalDevice
	LogicalDevice      vk.Device
	GraphicsQueueIndex int32
	TransferQueueIndex int32

	GraphicsQueue vk.Queue
	TransferQueue vk.Queue

	GraphicsCommandPool vk.CommandPool

	Properties vk.PhysicalDeviceProperties
	Features   vk.PhysicalDeviceFeatures
	Memory     vk.PhysicalDeviceMemoryProperties

	DepthFormat vk.Format
}

type VulkanPhysicalDeviceRequirements struct {
	Graphics             bool
	Compute              bool
	Transfer             bool
	DeviceExtensionNames []string
	DiscreteGPU          bool
}

type VulkanPhysicalDeviceQueueFamilyInfo struct {
	GraphicsFamilyIndex int32
	ComputeFamilyIndex  int32
	TransferFamilyIndex int32
}

// DeviceCreate selects a physical device and creates the logical device, its queues and
// the graphics command pool.
func DeviceCreate(context *VulkanContext) vk.Result {
	context.Device = &VulkanDevice{
		GraphicsQueueIndex: -1,
		TransferQueueIndex: -1,
	}
	if res := SelectPhysicalDevice(context); res != vk.Success {
		return res
	}

	context.Logger.Info("Creating logical device...")

	// NOTE: Do not create additional queues for shared indices.
	indices := []uint32{uint32(context.Device.GraphicsQueueIndex)}
	if context.Device.TransferQueueIndex != context.Device.GraphicsQueueIndex {
		indices = append(indices, uint32(context.Device.TransferQueueIndex))
	}

	queueCreateInfos := make([]vk.DeviceQueueCreateInfo, len(indices))
	for i := range indices {
		queueCreateInfos[i] = vk.DeviceQueueCreateInfo{
			SType:            vk.StructureTypeDeviceQueueCreateInfo,
			QueueFamilyIndex: indices[i],
			QueueCount:       1,
			PQueuePriorities: []float32{1.0},
		}
	}

	extensionNames := []string{}
	if deviceSupportsExtension(context.Device.PhysicalDevice, "VK_KHR_portability_subset") {
		context.Logger.Info("Adding required extension 'VK_KHR_portability_subset'.")
		extensionNames = append(extensionNames, "VK_KHR_portability_subset")
	}

	deviceCreateInfo := vk.DeviceCreateInfo{
		SType:                   vk.StructureTypeDeviceCreateInfo,
		QueueCreateInfoCount:    uint32(len(queueCreateInfos)),
		PQueueCreateInfos:       queueCreateInfos,
		PEnabledFeatures:        []vk.PhysicalDeviceFeatures{{}},
		EnabledExtensionCount:   uint32(len(extensionNames)),
		PpEnabledExtensionNames: VulkanSafeStrings(extensionNames),
	}

	var device vk.Device
	if res := vk.CreateDevice(context.Device.PhysicalDevice, &deviceCreateInfo, context.Allocator, &device); res != vk.Success {
		return res
	}
	context.Device.LogicalDevice = device
	context.Logger.Info("Logical device created.")

	var graphicsQueue, transferQueue vk.Queue
	vk.GetDeviceQueue(device, uint32(context.Device.GraphicsQueueIndex), 0, &graphicsQueue)
	vk.GetDeviceQueue(device, uint32(context.Device.TransferQueueIndex), 0, &transferQueue)
	context.Device.GraphicsQueue = graphicsQueue
	context.Device.TransferQueue = transferQueue
	context.Logger.Info("Queues obtained.")

	// Create command pool for graphics queue.
	poolCreateInfo := vk.CommandPoolCreateInfo{
		SType:            vk.StructureTypeCommandPoolCreateInfo,
		QueueFamilyIndex: uint32(context.Device.GraphicsQueueIndex),
		Flags:            vk.CommandPoolCreateFlags(vk.CommandPoolCreateResetCommandBufferBit),
	}
	var pool vk.CommandPool
	if res := vk.CreateCommandPool(device, &poolCreateInfo, context.Allocator, &pool); res != vk.Success {
		return res
	}
	context.Device.GraphicsCommandPool = pool
	context.Logger.Info("Graphics command pool created.")

	if !DeviceDetectDepthFormat(context.Device) {
		context.Logger.Error("Failed to find a supported depth format.")
		return vk.ErrorFormatNotSupported
	}
	return vk.Success
}

func DeviceDestroy(context *VulkanContext) {
	if context.Device == nil {
		return
	}
	// Unset queues
	context.Device.GraphicsQueue = nil
	context.Device.TransferQueue = nil

	if context.Device.GraphicsCommandPool != vk.NullCommandPool {
		context.Logger.Info("Destroying command pools...")
		vk.DestroyCommandPool(context.Device.LogicalDevice, context.Device.GraphicsCommandPool, context.Allocator)
		context.Device.GraphicsCommandPool = vk.NullCommandPool
	}

	if context.Device.LogicalDevice != nil {
		context.Logger.Info("Destroying logical device...")
		vk.DestroyDevice(context.Device.LogicalDevice, context.Allocator)
		context.Device.LogicalDevice = nil
	}

	// Physical devices are not destroyed.
	context.Device.PhysicalDevice = nil
	context.Device.GraphicsQueueIndex = -1
	context.Device.TransferQueueIndex = -1
}

func DeviceDetectDepthFormat(device *VulkanDevice) bool {
	candidates := []vk.Format{
		vk.FormatD32Sfloat,
		vk.FormatD32SfloatS8Uint,
		vk.FormatD24UnormS8Uint,
	}
	flags := vk.FormatFeatureFlags(vk.FormatFeatureDepthStencilAttachmentBit)
	for _, candidate := range candidates {
		var properties vk.FormatProperties
		vk.GetPhysicalDeviceFormatProperties(device.PhysicalDevice, candidate, &properties)
		properties.Deref()
		if properties.LinearTilingFeatures&flags == flags || properties.OptimalTilingFeatures&flags == flags {
			device.DepthFormat = candidate
			return true
		}
	}
	return false
}

func SelectPhysicalDevice(context *VulkanContext) vk.Result {
	var physicalDeviceCount uint32
	if res := vk.EnumeratePhysicalDevices(context.Instance, &physicalDeviceCount, nil); res != vk.Success {
		return res
	}
	if physicalDeviceCount == 0 {
		context.Logger.Error("No devices which support Vulkan were found.")
		return vk.ErrorInitializationFailed
	}

	physicalDevices := make([]vk.PhysicalDevice, physicalDeviceCount)
	if res := vk.EnumeratePhysicalDevices(context.Instance, &physicalDeviceCount, physicalDevices); res != vk.Success {
		return res
	}

	requirements := VulkanPhysicalDeviceRequirements{
		Graphics:    true,
		Transfer:    true,
		DiscreteGPU: true,
	}
	// Integrated GPUs are the norm on laptops and CI runners.
	if runtime.GOOS == "darwin" || len(physicalDevices) == 1 {
		requirements.DiscreteGPU = false
	}

	for _, physicalDevice := range physicalDevices {
		var properties vk.PhysicalDeviceProperties
		vk.GetPhysicalDeviceProperties(physicalDevice, &properties)
		properties.Deref()

		var features vk.PhysicalDeviceFeatures
		vk.GetPhysicalDeviceFeatures(physicalDevice, &features)
		features.Deref()

		var memory vk.PhysicalDeviceMemoryProperties
		vk.GetPhysicalDeviceMemoryProperties(physicalDevice, &memory)
		memory.Deref()

		queueInfo, ok := PhysicalDeviceMeetsRequirements(context, physicalDevice, &properties, &requirements)
		if !ok {
			continue
		}

		name := cString(properties.DeviceName[:])
		context.Logger.Info("Selected device", "name", name, "type", deviceTypeString(properties.DeviceType))
		context.Logger.Infof(
			"GPU Driver version: %d.%d.%d",
			vk.Version(properties.DriverVersion).Major(),
			vk.Version(properties.DriverVersion).Minor(),
			vk.Version(properties.DriverVersion).Patch(),
		)
		context.Logger.Infof(
			"Vulkan API version: %d.%d.%d",
			vk.Version(properties.ApiVersion).Major(),
			vk.Version(properties.ApiVersion).Minor(),
			vk.Version(properties.ApiVersion).Patch(),
		)
		for j := uint32(0); j < memory.MemoryHeapCount; j++ {
			memory.MemoryHeaps[j].Deref()
			memorySizeGib := float64(memory.MemoryHeaps[j].Size) / 1024.0 / 1024.0 / 1024.0
			if vk.MemoryHeapFlagBits(memory.MemoryHeaps[j].Flags)&vk.MemoryHeapDeviceLocalBit != 0 {
				context.Logger.Infof("Local GPU memory: %.2f GiB", memorySizeGib)
			} else {
				context.Logger.Infof("Shared System memory: %.2f GiB", memorySizeGib)
			}
		}

		context.Device.PhysicalDevice = physicalDevice
		context.Device.GraphicsQueueIndex = queueInfo.GraphicsFamilyIndex
		context.Device.TransferQueueIndex = queueInfo.TransferFamilyIndex
		// Keep a copy of properties, features and memory info for later use.
		context.Device.Properties = properties
		context.Device.Features = features
		context.Device.Memory = memory
		break
	}

	// Ensure a device was selected
	if context.Device.PhysicalDevice == nil {
		context.Logger.Error("No physical devices were found which meet the requirements.")
		return vk.ErrorInitializationFailed
	}

	context.Logger.Info("Physical device selected.")
	return vk.Success
}

func PhysicalDeviceMeetsRequirements(context *VulkanContext, device vk.PhysicalDevice, properties *vk.PhysicalDeviceProperties, requirements *VulkanPhysicalDeviceRequirements) (VulkanPhysicalDeviceQueueFamilyInfo, bool) {
	queueInfo := VulkanPhysicalDeviceQueueFamilyInfo{
		GraphicsFamilyIndex: -1,
		ComputeFamilyIndex:  -1,
		TransferFamilyIndex: -1,
	}

	if requirements.DiscreteGPU && properties.DeviceType != vk.PhysicalDeviceTypeDiscreteGpu {
		context.Logger.Info("Device is not a discrete GPU, and one is required. Skipping.")
		return queueInfo, false
	}

	var queueFamilyCount uint32
	vk.GetPhysicalDeviceQueueFamilyProperties(device, &queueFamilyCount, nil)
	queueFamilies := make([]vk.QueueFamilyProperties, queueFamilyCount)
	vk.GetPhysicalDeviceQueueFamilyProperties(device, &queueFamilyCount, queueFamilies)

	// Look at each queue and see what queues it supports
	minTransferScore := 255
	for i := range queueFamilies {
		queueFamilies[i].Deref()
		flags := vk.QueueFlagBits(queueFamilies[i].QueueFlags)
		currentTransferScore := 0

		if flags&vk.QueueGraphicsBit != 0 {
			if queueInfo.GraphicsFamilyIndex < 0 {
				queueInfo.GraphicsFamilyIndex = int32(i)
			}
			currentTransferScore++
		}
		if flags&vk.QueueComputeBit != 0 {
			if queueInfo.ComputeFamilyIndex < 0 {
				queueInfo.ComputeFamilyIndex = int32(i)
			}
			currentTransferScore++
		}
		if flags&vk.QueueTransferBit != 0 {
			// Take the index if it is the current lowest. This increases the
			// liklihood that it is a dedicated transfer queue.
			if currentTransferScore <= minTransferScore {
				minTransferScore = currentTransferScore
				queueInfo.TransferFamilyIndex = int32(i)
			}
		}
	}

	context.Logger.Debug("queue families",
		"graphics", queueInfo.GraphicsFamilyIndex,
		"compute", queueInfo.ComputeFamilyIndex,
		"transfer", queueInfo.TransferFamilyIndex,
	)

	if (requirements.Graphics && queueInfo.GraphicsFamilyIndex < 0) ||
		(requirements.Compute && queueInfo.ComputeFamilyIndex < 0) ||
		(requirements.Transfer && queueInfo.TransferFamilyIndex < 0) {
		return queueInfo, false
	}

	for _, name := range requirements.DeviceExtensionNames {
		if !deviceSupportsExtension(device, name) {
			context.Logger.Infof("Required extension not found: '%s', skipping device.", name)
			return queueInfo, false
		}
	}

	context.Logger.Info("Device meets queue requirements.")
	return queueInfo, true
}

func deviceSupportsExtension(device vk.PhysicalDevice, name string) bool {
	var count uint32
	if res := vk.EnumerateDeviceExtensionProperties(device, "", &count, nil); res != vk.Success || count == 0 {
		return false
	}
	available := make([]vk.ExtensionProperties, count)
	if res := vk.EnumerateDeviceExtensionProperties(device, "", &count, available); res != vk.Success {
		return false
	}
	for i := range available {
		available[i].Deref()
		if cString(available[i].ExtensionName[:]) == name {
			return true
		}
	}
	return false
}

func deviceTypeString(t vk.PhysicalDeviceType) string {
	switch t {
	case vk.PhysicalDeviceTypeIntegratedGpu:
		return "integrated"
	case vk.PhysicalDeviceTypeDiscreteGpu:
		return "discrete"
	case vk.PhysicalDeviceTypeVirtualGpu:
		return "virtual"
	case vk.PhysicalDeviceTypeCpu:
		return "cpu"
	}
	return "unknown"
}
