package vulkan

import (
	"errors"
	"fmt"
	"math"
	"runtime"
	"unsafe"

	"github.com/go-gl/glfw/v3.3/glfw"
	vk "github.com/goki/vulkan"

	"github.com/spaghettifunk/kiln/engine/core"
	"github.com/spaghettifunk/kiln/engine/renderer/metadata"
)

type stateKind uint8

const (
	stateBlend stateKind = iota
	stateDepth
	stateRasterizer
)

type renderState struct {
	kind       stateKind
	blend      metadata.BlendState
	depth      metadata.DepthState
	rasterizer metadata.RasterizerState
}

type vertexBinding struct {
	buffer *VulkanBuffer
	stride uint32
	offset uint32
}

type pipelineKey struct {
	program    uint32
	layout     metadata.InputLayoutHandle
	blend      metadata.StateHandle
	depth      metadata.StateHandle
	rasterizer metadata.StateHandle
	topology   metadata.PrimitiveTopology
}

// VulkanRenderer renders into an offscreen target. Pipelines are built lazily,
// one per program, input layout, state and topology combination.
type VulkanRenderer struct {
	context *VulkanContext
	logger  *core.Logger
	debug   bool

	initialized bool
	inFrame     bool

	nextHandle uint64
	nextShader uint32

	buffers   map[metadata.BufferHandle]*VulkanBuffer
	layouts   map[metadata.InputLayoutHandle]*VulkanInputLayout
	states    map[metadata.StateHandle]renderState
	shaders   map[uint32]*VulkanShader
	pipelines map[pipelineKey]*VulkanPipeline

	// Objects released while a frame may still read them.
	pendingBuffers   []*VulkanBuffer
	pendingPipelines []*VulkanPipeline
	pendingShaders   []*VulkanShader

	boundProgram    *metadata.ShaderProgram
	boundLayout     metadata.InputLayoutHandle
	boundVertex     map[uint32]vertexBinding
	boundIndex      *VulkanBuffer
	boundBlend      metadata.StateHandle
	boundDepth      metadata.StateHandle
	boundRasterizer metadata.StateHandle
}

func New(logger *core.Logger, debug bool) *VulkanRenderer {
	return &VulkanRenderer{
		context: &VulkanContext{
			Logger: logger,
		},
		logger:      logger,
		debug:       debug,
		buffers:     make(map[metadata.BufferHandle]*VulkanBuffer),
		layouts:     make(map[metadata.InputLayoutHandle]*VulkanInputLayout),
		states:      make(map[metadata.StateHandle]renderState),
		shaders:     make(map[uint32]*VulkanShader),
		pipelines:   make(map[pipelineKey]*VulkanPipeline),
		boundVertex: make(map[uint32]vertexBinding),
	}
}

func (vr *VulkanRenderer) Name() string {
	return "vulkan"
}

// Initialize loads Vulkan through glfw, which must be initialized already.
func (vr *VulkanRenderer) Initialize(appName string, appWidth, appHeight uint32) error {
	if !glfw.VulkanSupported() {
		return errors.New("vulkan loader not found")
	}
	procAddr := glfw.GetVulkanGetInstanceProcAddress()
	if procAddr == nil {
		return errors.New("GetInstanceProcAddress is nil")
	}
	vk.SetGetInstanceProcAddr(procAddr)

	if err := vk.Init(); err != nil {
		return fmt.Errorf("failed to initialize vk: %w", err)
	}

	vr.context.Allocator = nil
	vr.context.FramebufferWidth = appWidth
	vr.context.FramebufferHeight = appHeight

	// Setup Vulkan instance.
	appInfo := &vk.ApplicationInfo{
		SType:              vk.StructureTypeApplicationInfo,
		ApiVersion:         uint32(vk.MakeVersion(1, 0, 0)),
		ApplicationVersion: uint32(vk.MakeVersion(1, 0, 0)),
		PApplicationName:   VulkanSafeString(appName),
		PEngineName:        VulkanSafeString("Kiln Engine"),
	}

	createInfo := vk.InstanceCreateInfo{
		SType:            vk.StructureTypeInstanceCreateInfo,
		PApplicationInfo: appInfo,
	}

	// No surface: rendering goes to an offscreen target.
	requiredExtensions := []string{}
	if runtime.GOOS == "darwin" {
		requiredExtensions = append(requiredExtensions,
			"VK_KHR_portability_enumeration",
			"VK_KHR_get_physical_device_properties2",
		)
		createInfo.Flags |= 1
	}

	requiredValidationLayerNames := []string{}
	if vr.debug {
		requiredExtensions = append(requiredExtensions, vk.ExtDebugReportExtensionName)
		vr.logger.Debug("Required extensions", "names", requiredExtensions)

		// Validation layers should only be enabled on non-release builds.
		requiredValidationLayerNames = []string{"VK_LAYER_KHRONOS_validation"}
		if err := vr.checkValidationLayers(requiredValidationLayerNames); err != nil {
			return err
		}
	}

	createInfo.EnabledExtensionCount = uint32(len(requiredExtensions))
	createInfo.PpEnabledExtensionNames = VulkanSafeStrings(requiredExtensions)
	createInfo.EnabledLayerCount = uint32(len(requiredValidationLayerNames))
	createInfo.PpEnabledLayerNames = VulkanSafeStrings(requiredValidationLayerNames)

	var instance vk.Instance
	if res := vk.CreateInstance(&createInfo, vr.context.Allocator, &instance); res != vk.Success {
		return fmt.Errorf("failed in creating the Vulkan Instance with error `%s`", VulkanResultString(res, true))
	}
	vr.context.Instance = instance
	if err := vk.InitInstance(instance); err != nil {
		return err
	}
	vr.logger.Info("Vulkan Instance created.")

	// Debugger
	if vr.debug {
		debugCreateInfo := vk.DebugReportCallbackCreateInfo{
			SType:       vk.StructureTypeDebugReportCallbackCreateInfo,
			Flags:       vk.DebugReportFlags(vk.DebugReportErrorBit | vk.DebugReportWarningBit | vk.DebugReportPerformanceWarningBit),
			PfnCallback: vr.debugCallback,
		}
		var dbg vk.DebugReportCallback
		if err := vk.Error(vk.CreateDebugReportCallback(instance, &debugCreateInfo, nil, &dbg)); err != nil {
			return fmt.Errorf("vk.CreateDebugReportCallback failed: %w", err)
		}
		vr.context.debugMessenger = dbg
		vr.logger.Debug("Vulkan debugger created.")
	}

	if res := DeviceCreate(vr.context); res != vk.Success {
		return fmt.Errorf("failed to create device: %s", VulkanResultString(res, true))
	}

	target, res := RenderTargetCreate(vr.context, appWidth, appHeight)
	if res != vk.Success {
		return fmt.Errorf("failed to create offscreen target: %s", VulkanResultString(res, true))
	}
	vr.context.Target = target

	cb, res := NewVulkanCommandBuffer(vr.context, vr.context.Device.GraphicsCommandPool, true)
	if res != vk.Success {
		return fmt.Errorf("failed to allocate the graphics command buffer: %s", VulkanResultString(res, true))
	}
	vr.context.GraphicsCommandBuffer = cb

	// Signaled, so the first frame does not wait on a submission that never happened.
	fence, err := NewFence(vr.context, true)
	if err != nil {
		return err
	}
	vr.context.InFlightFence = fence

	vr.initialized = true
	vr.logger.Info("Vulkan renderer initialized successfully.", "width", appWidth, "height", appHeight)
	return nil
}

func (vr *VulkanRenderer) checkValidationLayers(required []string) error {
	var availableLayerCount uint32
	if res := vk.EnumerateInstanceLayerProperties(&availableLayerCount, nil); res != vk.Success {
		return fmt.Errorf("failed to enumerate layers: %s", VulkanResultString(res, true))
	}
	availableLayers := make([]vk.LayerProperties, availableLayerCount)
	if res := vk.EnumerateInstanceLayerProperties(&availableLayerCount, availableLayers); res != vk.Success {
		return fmt.Errorf("failed to enumerate layers: %s", VulkanResultString(res, true))
	}

	for _, name := range required {
		found := false
		for j := range availableLayers {
			availableLayers[j].Deref()
			if name == cString(availableLayers[j].LayerName[:]) {
				found = true
				break
			}
		}
		if !found {
			return fmt.Errorf("required validation layer is missing: %s", name)
		}
	}
	vr.logger.Info("All required validation layers are present.")
	return nil
}

func (vr *VulkanRenderer) Shutdown() error {
	if !vr.initialized {
		return nil
	}
	device := vr.context.Device.LogicalDevice
	vk.DeviceWaitIdle(device)
	vr.flushPending()

	// Destroy in the opposite order of creation.
	for key, p := range vr.pipelines {
		p.Destroy(vr.context)
		delete(vr.pipelines, key)
	}
	for id, s := range vr.shaders {
		s.Destroy(vr.context)
		delete(vr.shaders, id)
	}
	for h, b := range vr.buffers {
		b.Destroy(vr.context)
		delete(vr.buffers, h)
	}
	if len(vr.layouts) > 0 || len(vr.states) > 0 {
		vr.logger.Warn("shutting down with live objects", "layouts", len(vr.layouts), "states", len(vr.states))
	}

	if vr.context.InFlightFence != nil {
		vr.context.InFlightFence.FenceDestroy(vr.context)
		vr.context.InFlightFence = nil
	}
	if vr.context.GraphicsCommandBuffer != nil {
		vr.context.GraphicsCommandBuffer.Free(vr.context, vr.context.Device.GraphicsCommandPool)
		vr.context.GraphicsCommandBuffer = nil
	}
	if vr.context.Target != nil {
		vr.context.Target.Destroy(vr.context)
		vr.context.Target = nil
	}

	DeviceDestroy(vr.context)

	if vr.context.debugMessenger != vk.NullDebugReportCallback {
		vk.DestroyDebugReportCallback(vr.context.Instance, vr.context.debugMessenger, vr.context.Allocator)
		vr.context.debugMessenger = vk.NullDebugReportCallback
	}
	vk.DestroyInstance(vr.context.Instance, vr.context.Allocator)
	vr.context.Instance = nil

	vr.initialized = false
	vr.logger.Info("Vulkan renderer shut down.")
	return nil
}

// Resized recreates the offscreen target. Pipelines stay valid since the viewport is dynamic.
func (vr *VulkanRenderer) Resized(width, height uint16) error {
	vr.context.FramebufferWidth = uint32(width)
	vr.context.FramebufferHeight = uint32(height)
	if !vr.initialized || width == 0 || height == 0 {
		return nil
	}
	if res := vk.DeviceWaitIdle(vr.context.Device.LogicalDevice); res != vk.Success {
		return fmt.Errorf("vkDeviceWaitIdle failed: %s", VulkanResultString(res, true))
	}
	vr.context.Target.Destroy(vr.context)
	target, res := RenderTargetCreate(vr.context, uint32(width), uint32(height))
	if res != vk.Success {
		return fmt.Errorf("failed to recreate offscreen target: %s", VulkanResultString(res, true))
	}
	vr.context.Target = target
	vr.logger.Info("Vulkan renderer backend->resized", "width", width, "height", height)
	return nil
}

func (vr *VulkanRenderer) BeginFrame(deltaTime float64) error {
	if vr.inFrame {
		return errors.New("BeginFrame called twice without EndFrame")
	}
	// Wait for the execution of the previous frame to complete.
	if res := vr.context.InFlightFence.FenceWait(vr.context, math.MaxUint64); res != vk.Success {
		return fmt.Errorf("in-flight fence wait failure: %s", VulkanResultString(res, true))
	}
	vr.flushPending()
	if res := vr.context.InFlightFence.FenceReset(vr.context); res != vk.Success {
		return fmt.Errorf("failed to reset fence: %s", VulkanResultString(res, true))
	}

	commandBuffer := vr.context.GraphicsCommandBuffer
	commandBuffer.Reset()
	if res := commandBuffer.Begin(false, false, false); res != vk.Success {
		return fmt.Errorf("failed to begin command buffer: %s", VulkanResultString(res, true))
	}

	// Dynamic state
	viewport := vk.Viewport{
		X:        0.0,
		Y:        0.0,
		Width:    float32(vr.context.FramebufferWidth),
		Height:   float32(vr.context.FramebufferHeight),
		MinDepth: 0.0,
		MaxDepth: 1.0,
	}
	scissor := vk.Rect2D{
		Extent: vk.Extent2D{
			Width:  vr.context.FramebufferWidth,
			Height: vr.context.FramebufferHeight,
		},
	}
	vk.CmdSetViewport(commandBuffer.Handle, 0, 1, []vk.Viewport{viewport})
	vk.CmdSetScissor(commandBuffer.Handle, 0, 1, []vk.Rect2D{scissor})

	target := vr.context.Target
	target.Renderpass.Width = vr.context.FramebufferWidth
	target.Renderpass.Height = vr.context.FramebufferHeight
	target.Renderpass.Begin(commandBuffer, target.Framebuffer.Handle)

	vr.inFrame = true
	return nil
}

func (vr *VulkanRenderer) EndFrame(deltaTime float64) error {
	if !vr.inFrame {
		return errors.New("EndFrame called without BeginFrame")
	}
	vr.inFrame = false

	commandBuffer := vr.context.GraphicsCommandBuffer
	vr.context.Target.Renderpass.End(commandBuffer)

	if res := commandBuffer.Submit(vr.context.Device.GraphicsQueue, vr.context.InFlightFence.Handle); res != vk.Success {
		return fmt.Errorf("vkQueueSubmit failed with result: %s", VulkanResultString(res, true))
	}
	return nil
}

// ReadColor waits for the last frame and returns the RGBA8 contents of the offscreen target.
func (vr *VulkanRenderer) ReadColor() ([]byte, error) {
	if !vr.initialized || vr.inFrame {
		return nil, errors.New("ReadColor called outside of a completed frame")
	}
	if res := vr.context.InFlightFence.FenceWait(vr.context, math.MaxUint64); res != vk.Success {
		return nil, fmt.Errorf("in-flight fence wait failure: %s", VulkanResultString(res, true))
	}

	width, height := vr.context.Target.Color.Width, vr.context.Target.Color.Height
	size := width * height * 4
	staging, res := newHostBuffer(vr.context, metadata.BufferDescription{Name: "readback", Size: size}, vk.BufferUsageTransferDstBit)
	if res != vk.Success {
		return nil, fmt.Errorf("failed to create readback buffer: %s", VulkanResultString(res, true))
	}
	defer staging.Destroy(vr.context)

	pool := vr.context.Device.GraphicsCommandPool
	cb, res := AllocateAndBeginSingleUse(vr.context, pool)
	if res != vk.Success {
		return nil, fmt.Errorf("failed to begin readback: %s", VulkanResultString(res, true))
	}
	region := vk.BufferImageCopy{
		ImageSubresource: vk.ImageSubresourceLayers{
			AspectMask: vk.ImageAspectFlags(vk.ImageAspectColorBit),
			LayerCount: 1,
		},
		ImageExtent: vk.Extent3D{Width: width, Height: height, Depth: 1},
	}
	vk.CmdCopyImageToBuffer(cb.Handle, vr.context.Target.Color.Handle, vk.ImageLayoutTransferSrcOptimal, staging.Handle, 1, []vk.BufferImageCopy{region})
	if res := cb.EndSingleUse(vr.context, pool, vr.context.Device.GraphicsQueue); res != vk.Success {
		return nil, fmt.Errorf("readback submission failed: %s", VulkanResultString(res, true))
	}

	pixels, res := staging.Read(vr.context, size)
	if res != vk.Success {
		return nil, fmt.Errorf("failed to map readback buffer: %s", VulkanResultString(res, true))
	}
	return pixels, nil
}

func (vr *VulkanRenderer) flushPending() {
	for _, p := range vr.pendingPipelines {
		p.Destroy(vr.context)
	}
	for _, s := range vr.pendingShaders {
		s.Destroy(vr.context)
	}
	for _, b := range vr.pendingBuffers {
		b.Destroy(vr.context)
	}
	vr.pendingPipelines = nil
	vr.pendingShaders = nil
	vr.pendingBuffers = nil
}

// waitIdleFrame makes sure no submitted frame reads memory the host is about to write.
func (vr *VulkanRenderer) waitIdleFrame() vk.Result {
	if vr.inFrame {
		return vk.Success
	}
	return vr.context.InFlightFence.FenceWait(vr.context, math.MaxUint64)
}

func (vr *VulkanRenderer) handle() uint64 {
	vr.nextHandle++
	return vr.nextHandle
}

func (vr *VulkanRenderer) BufferCreate(desc metadata.BufferDescription, data []byte) (metadata.BufferHandle, metadata.Result) {
	if !vr.initialized {
		return metadata.InvalidHandle, metadata.ResultErrorNotInitialized
	}
	if desc.Size == 0 || uint32(len(data)) > desc.Size {
		return metadata.InvalidHandle, metadata.ResultErrorInvalidArgument
	}
	buf, res := BufferCreate(vr.context, desc, data)
	if res != vk.Success {
		vr.logger.Error("failed to create buffer", "name", desc.Name, "result", VulkanResultString(res, true))
		return metadata.InvalidHandle, toResult(res)
	}
	h := metadata.BufferHandle(vr.handle())
	vr.buffers[h] = buf
	return h, metadata.ResultSuccess
}

func (vr *VulkanRenderer) BufferWrite(handle metadata.BufferHandle, offset uint32, data []byte) metadata.Result {
	buf, ok := vr.buffers[handle]
	if !ok {
		return metadata.ResultErrorInvalidHandle
	}
	if buf.Desc.Usage != metadata.BufferUsageDynamic || uint64(offset)+uint64(len(data)) > uint64(buf.Desc.Size) {
		return metadata.ResultErrorInvalidArgument
	}
	if res := vr.waitIdleFrame(); res != vk.Success {
		return toResult(res)
	}
	return toResult(buf.Write(vr.context, offset, data))
}

func (vr *VulkanRenderer) BufferDescribe(handle metadata.BufferHandle) (metadata.BufferDescription, metadata.Result) {
	buf, ok := vr.buffers[handle]
	if !ok {
		return metadata.BufferDescription{}, metadata.ResultErrorInvalidHandle
	}
	return buf.Desc, metadata.ResultSuccess
}

func (vr *VulkanRenderer) BufferDestroy(handle metadata.BufferHandle) metadata.Result {
	buf, ok := vr.buffers[handle]
	if !ok {
		return metadata.ResultErrorInvalidHandle
	}
	delete(vr.buffers, handle)
	for slot, vb := range vr.boundVertex {
		if vb.buffer == buf {
			delete(vr.boundVertex, slot)
		}
	}
	if vr.boundIndex == buf {
		vr.boundIndex = nil
	}
	vr.pendingBuffers = append(vr.pendingBuffers, buf)
	return metadata.ResultSuccess
}

func (vr *VulkanRenderer) InputLayoutCreate(elements []metadata.InputElement, program *metadata.ShaderProgram) (metadata.InputLayoutHandle, metadata.Result) {
	layout, res := NewInputLayout(elements, program)
	if res != metadata.ResultSuccess {
		return metadata.InvalidHandle, res
	}
	h := metadata.InputLayoutHandle(vr.handle())
	vr.layouts[h] = layout
	return h, metadata.ResultSuccess
}

func (vr *VulkanRenderer) InputLayoutDestroy(handle metadata.InputLayoutHandle) metadata.Result {
	if _, ok := vr.layouts[handle]; !ok {
		return metadata.ResultErrorInvalidHandle
	}
	delete(vr.layouts, handle)
	if vr.boundLayout == handle {
		vr.boundLayout = metadata.InvalidHandle
	}
	vr.retirePipelines(func(k pipelineKey) bool { return k.layout == handle })
	return metadata.ResultSuccess
}

func (vr *VulkanRenderer) retirePipelines(match func(pipelineKey) bool) {
	for key, p := range vr.pipelines {
		if match(key) {
			vr.pendingPipelines = append(vr.pendingPipelines, p)
			delete(vr.pipelines, key)
		}
	}
}

func (vr *VulkanRenderer) createState(s renderState) (metadata.StateHandle, metadata.Result) {
	h := metadata.StateHandle(vr.handle())
	vr.states[h] = s
	return h, metadata.ResultSuccess
}

func (vr *VulkanRenderer) BlendStateCreate(state metadata.BlendState) (metadata.StateHandle, metadata.Result) {
	return vr.createState(renderState{kind: stateBlend, blend: state})
}

func (vr *VulkanRenderer) DepthStateCreate(state metadata.DepthState) (metadata.StateHandle, metadata.Result) {
	return vr.createState(renderState{kind: stateDepth, depth: state})
}

func (vr *VulkanRenderer) RasterizerStateCreate(state metadata.RasterizerState) (metadata.StateHandle, metadata.Result) {
	return vr.createState(renderState{kind: stateRasterizer, rasterizer: state})
}

func (vr *VulkanRenderer) StateDestroy(handle metadata.StateHandle) metadata.Result {
	if _, ok := vr.states[handle]; !ok {
		return metadata.ResultErrorInvalidHandle
	}
	delete(vr.states, handle)
	vr.retirePipelines(func(k pipelineKey) bool {
		return k.blend == handle || k.depth == handle || k.rasterizer == handle
	})
	return metadata.ResultSuccess
}

func (vr *VulkanRenderer) ShaderCreate(program *metadata.ShaderProgram) metadata.Result {
	if !vr.initialized {
		return metadata.ResultErrorNotInitialized
	}
	if program == nil || len(program.Inputs) == 0 {
		return metadata.ResultErrorInvalidArgument
	}
	shader, res := NewVulkanShader(vr.context, program)
	if res != metadata.ResultSuccess {
		return res
	}
	vr.nextShader++
	program.ID = vr.nextShader
	program.InternalData = shader
	vr.shaders[program.ID] = shader
	return metadata.ResultSuccess
}

func (vr *VulkanRenderer) ShaderDestroy(program *metadata.ShaderProgram) metadata.Result {
	shader, ok := vr.shaders[program.ID]
	if !ok {
		return metadata.ResultErrorInvalidHandle
	}
	delete(vr.shaders, program.ID)
	if vr.boundProgram == program {
		vr.boundProgram = nil
	}
	id := program.ID
	vr.retirePipelines(func(k pipelineKey) bool { return k.program == id })
	vr.pendingShaders = append(vr.pendingShaders, shader)
	program.InternalData = nil
	return metadata.ResultSuccess
}

func (vr *VulkanRenderer) ShaderUse(program *metadata.ShaderProgram) metadata.Result {
	if _, ok := vr.shaders[program.ID]; !ok {
		return metadata.ResultErrorInvalidHandle
	}
	vr.boundProgram = program
	return metadata.ResultSuccess
}

// ShaderSetParameter packs constants into push constants. Texture and sampler values are
// recorded for the draw check; descriptor sets are not bound.
func (vr *VulkanRenderer) ShaderSetParameter(program *metadata.ShaderProgram, param metadata.ShaderParameter) metadata.Result {
	shader, ok := vr.shaders[program.ID]
	if !ok {
		return metadata.ResultErrorInvalidHandle
	}
	binding, ok := program.Binding(param.Name)
	if !ok || !parameterFits(binding.Kind, param.Type) {
		return metadata.ResultErrorBindingMismatch
	}
	shader.SetParameter(binding, param)
	return metadata.ResultSuccess
}

func parameterFits(kind metadata.ResourceBindingKind, t metadata.ShaderParameterType) bool {
	switch kind {
	case metadata.ResourceBindingConstants:
		return t == metadata.ShaderParameterFloat || t == metadata.ShaderParameterVector4
	case metadata.ResourceBindingTexture:
		return t == metadata.ShaderParameterTexture
	case metadata.ResourceBindingSampler:
		return t == metadata.ShaderParameterSampler
	}
	return false
}

func (vr *VulkanRenderer) SetInputLayout(handle metadata.InputLayoutHandle) metadata.Result {
	if _, ok := vr.layouts[handle]; !ok {
		return metadata.ResultErrorInvalidHandle
	}
	vr.boundLayout = handle
	return metadata.ResultSuccess
}

func (vr *VulkanRenderer) SetVertexBuffer(slot uint32, handle metadata.BufferHandle, stride, offset uint32) metadata.Result {
	buf, ok := vr.buffers[handle]
	if !ok {
		return metadata.ResultErrorInvalidHandle
	}
	if buf.Desc.Type != metadata.BufferTypeVertex || offset >= buf.Desc.Size {
		return metadata.ResultErrorInvalidArgument
	}
	vr.boundVertex[slot] = vertexBinding{buffer: buf, stride: stride, offset: offset}
	return metadata.ResultSuccess
}

func (vr *VulkanRenderer) SetIndexBuffer(handle metadata.BufferHandle) metadata.Result {
	buf, ok := vr.buffers[handle]
	if !ok {
		return metadata.ResultErrorInvalidHandle
	}
	if buf.Desc.Type != metadata.BufferTypeIndex {
		return metadata.ResultErrorInvalidArgument
	}
	vr.boundIndex = buf
	return metadata.ResultSuccess
}

func (vr *VulkanRenderer) setState(kind stateKind, handle metadata.StateHandle, dst *metadata.StateHandle) metadata.Result {
	s, ok := vr.states[handle]
	if !ok {
		return metadata.ResultErrorInvalidHandle
	}
	if s.kind != kind {
		return metadata.ResultErrorInvalidArgument
	}
	*dst = handle
	return metadata.ResultSuccess
}

func (vr *VulkanRenderer) SetBlendState(handle metadata.StateHandle) metadata.Result {
	return vr.setState(stateBlend, handle, &vr.boundBlend)
}

func (vr *VulkanRenderer) SetDepthState(handle metadata.StateHandle) metadata.Result {
	return vr.setState(stateDepth, handle, &vr.boundDepth)
}

func (vr *VulkanRenderer) SetRasterizerState(handle metadata.StateHandle) metadata.Result {
	return vr.setState(stateRasterizer, handle, &vr.boundRasterizer)
}

func (vr *VulkanRenderer) pipeline(key pipelineKey, layout *VulkanInputLayout, shader *VulkanShader) (*VulkanPipeline, vk.Result) {
	if p, ok := vr.pipelines[key]; ok {
		return p, vk.Success
	}
	width, height := vr.context.FramebufferWidth, vr.context.FramebufferHeight
	config := &VulkanPipelineConfig{
		Renderpass: vr.context.Target.Renderpass,
		Bindings:   layout.Bindings,
		Attributes: layout.Attributes,
		Stages:     shader.StageInfos(),
		Viewport: vk.Viewport{
			Width:    float32(width),
			Height:   float32(height),
			MaxDepth: 1.0,
		},
		Scissor:          vk.Rect2D{Extent: vk.Extent2D{Width: width, Height: height}},
		Topology:         key.topology,
		Blend:            vr.states[key.blend].blend,
		Depth:            vr.states[key.depth].depth,
		Rasterizer:       vr.states[key.rasterizer].rasterizer,
		PushConstantSize: shader.ConstantsSize,
	}
	p, res := NewGraphicsPipeline(vr.context, config)
	if res != vk.Success {
		return nil, res
	}
	vr.pipelines[key] = p
	return p, vk.Success
}

func (vr *VulkanRenderer) DrawIndexed(topology metadata.PrimitiveTopology, indexCount, firstIndex uint32, baseVertex int32) metadata.Result {
	if !vr.initialized {
		return metadata.ResultErrorNotInitialized
	}
	if !vr.inFrame {
		return metadata.ResultErrorInvalidArgument
	}
	program := vr.boundProgram
	if program == nil {
		return metadata.ResultErrorBindingMismatch
	}
	shader := vr.shaders[program.ID]
	layout, ok := vr.layouts[vr.boundLayout]
	if !ok || layout.Program != program.ID {
		return metadata.ResultErrorBindingMismatch
	}
	for _, b := range layout.Bindings {
		vb, bound := vr.boundVertex[b.Binding]
		if !bound || vb.stride != b.Stride {
			return metadata.ResultErrorBindingMismatch
		}
	}
	for _, binding := range program.Bindings {
		if _, set := shader.Parameters[binding.Name]; !set {
			return metadata.ResultErrorBindingMismatch
		}
	}
	if vr.boundBlend == metadata.InvalidHandle || vr.boundDepth == metadata.InvalidHandle || vr.boundRasterizer == metadata.InvalidHandle {
		return metadata.ResultErrorBindingMismatch
	}
	if vr.boundIndex == nil {
		return metadata.ResultErrorBindingMismatch
	}
	if uint64(firstIndex+indexCount)*4 > uint64(vr.boundIndex.Desc.Size) {
		return metadata.ResultErrorInvalidArgument
	}

	key := pipelineKey{
		program:    program.ID,
		layout:     vr.boundLayout,
		blend:      vr.boundBlend,
		depth:      vr.boundDepth,
		rasterizer: vr.boundRasterizer,
		topology:   topology,
	}
	pipeline, res := vr.pipeline(key, layout, shader)
	if res != vk.Success {
		return toResult(res)
	}

	commandBuffer := vr.context.GraphicsCommandBuffer
	pipeline.Bind(commandBuffer, vk.PipelineBindPointGraphics)
	if shader.ConstantsSize > 0 {
		vk.CmdPushConstants(commandBuffer.Handle, pipeline.PipelineLayout,
			vk.ShaderStageFlags(vk.ShaderStageVertexBit)|vk.ShaderStageFlags(vk.ShaderStageFragmentBit),
			0, shader.ConstantsSize, unsafe.Pointer(&shader.Constants[0]))
	}
	for _, b := range layout.Bindings {
		vb := vr.boundVertex[b.Binding]
		vk.CmdBindVertexBuffers(commandBuffer.Handle, b.Binding, 1, []vk.Buffer{vb.buffer.Handle}, []vk.DeviceSize{vk.DeviceSize(vb.offset)})
	}
	vk.CmdBindIndexBuffer(commandBuffer.Handle, vr.boundIndex.Handle, 0, vk.IndexTypeUint32)
	vk.CmdDrawIndexed(commandBuffer.Handle, indexCount, 1, firstIndex, baseVertex, 0)

	// Binding state does not persist across draws.
	vr.boundVertex = make(map[uint32]vertexBinding)
	return metadata.ResultSuccess
}

func (vr *VulkanRenderer) debugCallback(flags vk.DebugReportFlags, objectType vk.DebugReportObjectType, object uint64, location uint64, messageCode int32, pLayerPrefix string, pMessage string, pUserData unsafe.Pointer) vk.Bool32 {
	switch {
	case flags&vk.DebugReportFlags(vk.DebugReportErrorBit) != 0:
		vr.logger.Error(pMessage, "layer", pLayerPrefix, "code", messageCode)
	case flags&vk.DebugReportFlags(vk.DebugReportWarningBit) != 0:
		vr.logger.Warn(pMessage, "layer", pLayerPrefix, "code", messageCode)
	case flags&vk.DebugReportFlags(vk.DebugReportPerformanceWarningBit) != 0:
		vr.logger.Warn(pMessage, "layer", pLayerPrefix, "code", messageCode, "performance", true)
	default:
		vr.logger.Debug(pMessage, "layer", pLayerPrefix, "code", messageCode)
	}
	return vk.Bool32(vk.False)
}
