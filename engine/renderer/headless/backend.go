// Package headless implements an in-memory device. It keeps every object the
// renderer creates, validates bindings at draw time like a real device would and
// records the draws, so it is used by tests and on machines without a GPU.
package headless

import (
	"fmt"

	"github.com/spaghettifunk/kiln/engine/renderer/metadata"
)

type buffer struct {
	desc metadata.BufferDescription
	data []byte
}

type layout struct {
	elements []metadata.InputElement
	program  uint32
}

type stateKind uint8

const (
	stateBlend stateKind = iota
	stateDepth
	stateRasterizer
)

// DrawRecord is one DrawIndexed call with the bindings it was issued with.
type DrawRecord struct {
	Program       string
	Topology      metadata.PrimitiveTopology
	IndexCount    uint32
	FirstIndex    uint32
	BaseVertex    int32
	Layout        metadata.InputLayoutHandle
	VertexBuffers map[uint32]metadata.BufferHandle
	IndexBuffer   metadata.BufferHandle
	Parameters    map[string]metadata.ShaderParameter
}

type vertexBinding struct {
	buffer metadata.BufferHandle
	stride uint32
	offset uint32
}

type HeadlessBackend struct {
	initialized bool
	inFrame     bool
	width       uint32
	height      uint32

	nextHandle uint64
	nextShader uint32

	buffers map[metadata.BufferHandle]*buffer
	layouts map[metadata.InputLayoutHandle]*layout
	states  map[metadata.StateHandle]stateKind
	shaders map[uint32]*metadata.ShaderProgram
	params  map[uint32]map[string]metadata.ShaderParameter

	boundLayout     metadata.InputLayoutHandle
	boundVertex     map[uint32]vertexBinding
	boundIndex      metadata.BufferHandle
	boundBlend      metadata.StateHandle
	boundDepth      metadata.StateHandle
	boundRasterizer metadata.StateHandle
	boundProgram    *metadata.ShaderProgram

	calls    map[string]int
	draws    []DrawRecord
	failures map[string]metadata.Result
}

func New() *HeadlessBackend {
	return &HeadlessBackend{
		buffers:     make(map[metadata.BufferHandle]*buffer),
		layouts:     make(map[metadata.InputLayoutHandle]*layout),
		states:      make(map[metadata.StateHandle]stateKind),
		shaders:     make(map[uint32]*metadata.ShaderProgram),
		params:      make(map[uint32]map[string]metadata.ShaderParameter),
		boundVertex: make(map[uint32]vertexBinding),
		calls:       make(map[string]int),
		failures:    make(map[string]metadata.Result),
	}
}

func (b *HeadlessBackend) Name() string {
	return "headless"
}

func (b *HeadlessBackend) Initialize(appName string, appWidth, appHeight uint32) error {
	if b.initialized {
		return fmt.Errorf("headless backend already initialized")
	}
	b.initialized = true
	b.width = appWidth
	b.height = appHeight
	return nil
}

func (b *HeadlessBackend) Shutdown() error {
	b.initialized = false
	return nil
}

func (b *HeadlessBackend) Resized(width, height uint16) error {
	b.width = uint32(width)
	b.height = uint32(height)
	return nil
}

func (b *HeadlessBackend) BeginFrame(deltaTime float64) error {
	if b.inFrame {
		return fmt.Errorf("BeginFrame called twice without EndFrame")
	}
	b.inFrame = true
	return nil
}

func (b *HeadlessBackend) EndFrame(deltaTime float64) error {
	if !b.inFrame {
		return fmt.Errorf("EndFrame called without BeginFrame")
	}
	b.inFrame = false
	return nil
}

// FailNext makes the next call named call return res instead of running.
func (b *HeadlessBackend) FailNext(call string, res metadata.Result) {
	b.failures[call] = res
}

func (b *HeadlessBackend) enter(call string) (metadata.Result, bool) {
	b.calls[call]++
	if res, ok := b.failures[call]; ok {
		delete(b.failures, call)
		return res, true
	}
	return metadata.ResultSuccess, false
}

func (b *HeadlessBackend) handle() uint64 {
	b.nextHandle++
	return b.nextHandle
}

func (b *HeadlessBackend) BufferCreate(desc metadata.BufferDescription, data []byte) (metadata.BufferHandle, metadata.Result) {
	if res, failed := b.enter("BufferCreate"); failed {
		return metadata.InvalidHandle, res
	}
	if desc.Size == 0 || uint32(len(data)) > desc.Size {
		return metadata.InvalidHandle, metadata.ResultErrorInvalidArgument
	}
	buf := &buffer{desc: desc, data: make([]byte, desc.Size)}
	copy(buf.data, data)
	h := metadata.BufferHandle(b.handle())
	b.buffers[h] = buf
	return h, metadata.ResultSuccess
}

func (b *HeadlessBackend) BufferWrite(handle metadata.BufferHandle, offset uint32, data []byte) metadata.Result {
	if res, failed := b.enter("BufferWrite"); failed {
		return res
	}
	buf, ok := b.buffers[handle]
	if !ok {
		return metadata.ResultErrorInvalidHandle
	}
	if buf.desc.Usage != metadata.BufferUsageDynamic {
		return metadata.ResultErrorInvalidArgument
	}
	if uint64(offset)+uint64(len(data)) > uint64(len(buf.data)) {
		return metadata.ResultErrorInvalidArgument
	}
	copy(buf.data[offset:], data)
	return metadata.ResultSuccess
}

// BufferDescribe is a lookup, it is not recorded as a device call.
func (b *HeadlessBackend) BufferDescribe(handle metadata.BufferHandle) (metadata.BufferDescription, metadata.Result) {
	buf, ok := b.buffers[handle]
	if !ok {
		return metadata.BufferDescription{}, metadata.ResultErrorInvalidHandle
	}
	return buf.desc, metadata.ResultSuccess
}

func (b *HeadlessBackend) BufferDestroy(handle metadata.BufferHandle) metadata.Result {
	if res, failed := b.enter("BufferDestroy"); failed {
		return res
	}
	if _, ok := b.buffers[handle]; !ok {
		return metadata.ResultErrorInvalidHandle
	}
	delete(b.buffers, handle)
	for slot, vb := range b.boundVertex {
		if vb.buffer == handle {
			delete(b.boundVertex, slot)
		}
	}
	if b.boundIndex == handle {
		b.boundIndex = metadata.InvalidHandle
	}
	return metadata.ResultSuccess
}

func (b *HeadlessBackend) InputLayoutCreate(elements []metadata.InputElement, program *metadata.ShaderProgram) (metadata.InputLayoutHandle, metadata.Result) {
	if res, failed := b.enter("InputLayoutCreate"); failed {
		return metadata.InvalidHandle, res
	}
	if program == nil || len(elements) == 0 {
		return metadata.InvalidHandle, metadata.ResultErrorInvalidArgument
	}
	// Every shader input must be fed by exactly one element at its location.
	for _, in := range program.Inputs {
		fed := 0
		for _, el := range elements {
			if el.Location == in.Location {
				fed++
			}
		}
		if fed != 1 {
			return metadata.InvalidHandle, metadata.ResultErrorBindingMismatch
		}
	}
	h := metadata.InputLayoutHandle(b.handle())
	b.layouts[h] = &layout{
		elements: append([]metadata.InputElement(nil), elements...),
		program:  program.ID,
	}
	return h, metadata.ResultSuccess
}

func (b *HeadlessBackend) InputLayoutDestroy(handle metadata.InputLayoutHandle) metadata.Result {
	if res, failed := b.enter("InputLayoutDestroy"); failed {
		return res
	}
	if _, ok := b.layouts[handle]; !ok {
		return metadata.ResultErrorInvalidHandle
	}
	delete(b.layouts, handle)
	if b.boundLayout == handle {
		b.boundLayout = metadata.InvalidHandle
	}
	return metadata.ResultSuccess
}

func (b *HeadlessBackend) createState(call string, kind stateKind) (metadata.StateHandle, metadata.Result) {
	if res, failed := b.enter(call); failed {
		return metadata.InvalidHandle, res
	}
	h := metadata.StateHandle(b.handle())
	b.states[h] = kind
	return h, metadata.ResultSuccess
}

func (b *HeadlessBackend) BlendStateCreate(state metadata.BlendState) (metadata.StateHandle, metadata.Result) {
	return b.createState("BlendStateCreate", stateBlend)
}

func (b *HeadlessBackend) DepthStateCreate(state metadata.DepthState) (metadata.StateHandle, metadata.Result) {
	return b.createState("DepthStateCreate", stateDepth)
}

func (b *HeadlessBackend) RasterizerStateCreate(state metadata.RasterizerState) (metadata.StateHandle, metadata.Result) {
	return b.createState("RasterizerStateCreate", stateRasterizer)
}

func (b *HeadlessBackend) StateDestroy(handle metadata.StateHandle) metadata.Result {
	if res, failed := b.enter("StateDestroy"); failed {
		return res
	}
	if _, ok := b.states[handle]; !ok {
		return metadata.ResultErrorInvalidHandle
	}
	delete(b.states, handle)
	return metadata.ResultSuccess
}

func (b *HeadlessBackend) ShaderCreate(program *metadata.ShaderProgram) metadata.Result {
	if res, failed := b.enter("ShaderCreate"); failed {
		return res
	}
	if program == nil || len(program.Inputs) == 0 {
		return metadata.ResultErrorInvalidArgument
	}
	b.nextShader++
	program.ID = b.nextShader
	b.shaders[program.ID] = program
	b.params[program.ID] = make(map[string]metadata.ShaderParameter)
	return metadata.ResultSuccess
}

func (b *HeadlessBackend) ShaderDestroy(program *metadata.ShaderProgram) metadata.Result {
	if res, failed := b.enter("ShaderDestroy"); failed {
		return res
	}
	if _, ok := b.shaders[program.ID]; !ok {
		return metadata.ResultErrorInvalidHandle
	}
	delete(b.shaders, program.ID)
	delete(b.params, program.ID)
	if b.boundProgram == program {
		b.boundProgram = nil
	}
	return metadata.ResultSuccess
}

func (b *HeadlessBackend) ShaderUse(program *metadata.ShaderProgram) metadata.Result {
	if res, failed := b.enter("ShaderUse"); failed {
		return res
	}
	if _, ok := b.shaders[program.ID]; !ok {
		return metadata.ResultErrorInvalidHandle
	}
	b.boundProgram = program
	return metadata.ResultSuccess
}

func (b *HeadlessBackend) ShaderSetParameter(program *metadata.ShaderProgram, param metadata.ShaderParameter) metadata.Result {
	if res, failed := b.enter("ShaderSetParameter"); failed {
		return res
	}
	params, ok := b.params[program.ID]
	if !ok {
		return metadata.ResultErrorInvalidHandle
	}
	binding, ok := program.Binding(param.Name)
	if !ok || !parameterFits(binding.Kind, param.Type) {
		return metadata.ResultErrorBindingMismatch
	}
	params[param.Name] = param
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

func (b *HeadlessBackend) SetInputLayout(handle metadata.InputLayoutHandle) metadata.Result {
	if res, failed := b.enter("SetInputLayout"); failed {
		return res
	}
	if _, ok := b.layouts[handle]; !ok {
		return metadata.ResultErrorInvalidHandle
	}
	b.boundLayout = handle
	return metadata.ResultSuccess
}

func (b *HeadlessBackend) SetVertexBuffer(slot uint32, handle metadata.BufferHandle, stride, offset uint32) metadata.Result {
	if res, failed := b.enter("SetVertexBuffer"); failed {
		return res
	}
	buf, ok := b.buffers[handle]
	if !ok {
		return metadata.ResultErrorInvalidHandle
	}
	if buf.desc.Type != metadata.BufferTypeVertex || offset >= buf.desc.Size {
		return metadata.ResultErrorInvalidArgument
	}
	b.boundVertex[slot] = vertexBinding{buffer: handle, stride: stride, offset: offset}
	return metadata.ResultSuccess
}

func (b *HeadlessBackend) SetIndexBuffer(handle metadata.BufferHandle) metadata.Result {
	if res, failed := b.enter("SetIndexBuffer"); failed {
		return res
	}
	buf, ok := b.buffers[handle]
	if !ok {
		return metadata.ResultErrorInvalidHandle
	}
	if buf.desc.Type != metadata.BufferTypeIndex {
		return metadata.ResultErrorInvalidArgument
	}
	b.boundIndex = handle
	return metadata.ResultSuccess
}

func (b *HeadlessBackend) setState(call string, kind stateKind, handle metadata.StateHandle, dst *metadata.StateHandle) metadata.Result {
	if res, failed := b.enter(call); failed {
		return res
	}
	k, ok := b.states[handle]
	if !ok {
		return metadata.ResultErrorInvalidHandle
	}
	if k != kind {
		return metadata.ResultErrorInvalidArgument
	}
	*dst = handle
	return metadata.ResultSuccess
}

func (b *HeadlessBackend) SetBlendState(handle metadata.StateHandle) metadata.Result {
	return b.setState("SetBlendState", stateBlend, handle, &b.boundBlend)
}

func (b *HeadlessBackend) SetDepthState(handle metadata.StateHandle) metadata.Result {
	return b.setState("SetDepthState", stateDepth, handle, &b.boundDepth)
}

func (b *HeadlessBackend) SetRasterizerState(handle metadata.StateHandle) metadata.Result {
	return b.setState("SetRasterizerState", stateRasterizer, handle, &b.boundRasterizer)
}

func (b *HeadlessBackend) DrawIndexed(topology metadata.PrimitiveTopology, indexCount, firstIndex uint32, baseVertex int32) metadata.Result {
	if res, failed := b.enter("DrawIndexed"); failed {
		return res
	}
	if !b.initialized {
		return metadata.ResultErrorNotInitialized
	}
	if b.boundProgram == nil {
		return metadata.ResultErrorBindingMismatch
	}
	lay, ok := b.layouts[b.boundLayout]
	if !ok || lay.program != b.boundProgram.ID {
		return metadata.ResultErrorBindingMismatch
	}
	for _, el := range lay.elements {
		if _, bound := b.boundVertex[el.Slot]; !bound {
			return metadata.ResultErrorBindingMismatch
		}
	}
	params := b.params[b.boundProgram.ID]
	for _, binding := range b.boundProgram.Bindings {
		if _, set := params[binding.Name]; !set {
			return metadata.ResultErrorBindingMismatch
		}
	}
	if b.boundBlend == metadata.InvalidHandle || b.boundDepth == metadata.InvalidHandle || b.boundRasterizer == metadata.InvalidHandle {
		return metadata.ResultErrorBindingMismatch
	}
	ib, ok := b.buffers[b.boundIndex]
	if !ok {
		return metadata.ResultErrorBindingMismatch
	}
	if uint64(firstIndex+indexCount)*4 > uint64(ib.desc.Size) {
		return metadata.ResultErrorInvalidArgument
	}

	record := DrawRecord{
		Program:       b.boundProgram.Name,
		Topology:      topology,
		IndexCount:    indexCount,
		FirstIndex:    firstIndex,
		BaseVertex:    baseVertex,
		Layout:        b.boundLayout,
		VertexBuffers: make(map[uint32]metadata.BufferHandle, len(b.boundVertex)),
		IndexBuffer:   b.boundIndex,
		Parameters:    make(map[string]metadata.ShaderParameter, len(params)),
	}
	for slot, vb := range b.boundVertex {
		record.VertexBuffers[slot] = vb.buffer
	}
	for name, p := range params {
		record.Parameters[name] = p
	}
	b.draws = append(b.draws, record)

	// Binding state does not persist across draws.
	b.boundVertex = make(map[uint32]vertexBinding)
	return metadata.ResultSuccess
}
