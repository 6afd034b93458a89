package renderer

import (
	"fmt"
	"runtime"
	"strings"

	"github.com/spaghettifunk/kiln/engine/core"
	"github.com/spaghettifunk/kiln/engine/renderer/headless"
	"github.com/spaghettifunk/kiln/engine/renderer/metadata"
	"github.com/spaghettifunk/kiln/engine/renderer/vulkan"
)

type RendererType uint8

const (
	Headless RendererType = iota
	Vulkan
)

func (t RendererType) String() string {
	switch t {
	case Headless:
		return "headless"
	case Vulkan:
		return "vulkan"
	}
	return fmt.Sprintf("renderer(%d)", uint8(t))
}

func ParseRendererType(s string) (RendererType, error) {
	switch strings.ToLower(s) {
	case "headless", "":
		return Headless, nil
	case "vulkan":
		return Vulkan, nil
	}
	return 0, fmt.Errorf("unknown renderer type %q", s)
}

type Config struct {
	Type RendererType
	// Debug enables the validation layers of backends that have them.
	Debug bool
}

// Renderer is the checked front-end over a RendererBackend. Every device call
// goes through it; a failing result terminates the process with a diagnostic.
type Renderer struct {
	backend     RendererBackend
	logger      *core.Logger
	states      *stateCache
	frameNumber uint64
}

func New(cfg Config, logger *core.Logger) (*Renderer, error) {
	var backend RendererBackend
	switch cfg.Type {
	case Headless:
		backend = headless.New()
	case Vulkan:
		backend = vulkan.New(logger.With("backend", "vulkan"), cfg.Debug)
	default:
		return nil, fmt.Errorf("unsupported renderer type %s", cfg.Type)
	}
	return NewWithBackend(backend, logger), nil
}

// NewWithBackend builds a renderer on top of an already constructed backend.
func NewWithBackend(backend RendererBackend, logger *core.Logger) *Renderer {
	r := &Renderer{
		backend: backend,
		logger:  logger,
	}
	r.states = newStateCache(r)
	return r
}

func (r *Renderer) Name() string {
	return r.backend.Name()
}

func (r *Renderer) Backend() RendererBackend {
	return r.backend
}

func (r *Renderer) FrameNumber() uint64 {
	return r.frameNumber
}

func (r *Renderer) Initialize(appName string, appWidth, appHeight uint32) error {
	if err := r.backend.Initialize(appName, appWidth, appHeight); err != nil {
		return fmt.Errorf("failed to initialize %s renderer: %w", r.backend.Name(), err)
	}
	r.logger.Info("renderer initialized", "backend", r.backend.Name(), "width", appWidth, "height", appHeight)
	return nil
}

func (r *Renderer) Shutdown() error {
	r.states.destroy()
	return r.backend.Shutdown()
}

func (r *Renderer) OnResize(width, height uint16) error {
	return r.backend.Resized(width, height)
}

func (r *Renderer) BeginFrame(deltaTime float64) error {
	return r.backend.BeginFrame(deltaTime)
}

func (r *Renderer) EndFrame(deltaTime float64) error {
	if err := r.backend.EndFrame(deltaTime); err != nil {
		return err
	}
	r.frameNumber++
	return nil
}

// Check terminates the process when res is not a success code. expr names the
// failing call; the diagnostic carries the caller's file and line and the device.
func (r *Renderer) Check(res metadata.Result, expr string) {
	r.check(res, expr, 2)
}

func (r *Renderer) check(res metadata.Result, expr string, skip int) {
	if res.Succeeded() {
		return
	}
	_, file, line, ok := runtime.Caller(skip)
	if !ok {
		file = "???"
		line = 0
	}
	r.logger.Fatal("device call failed",
		"expr", expr,
		"result", res.String(),
		"file", file,
		"line", line,
		"device", r.backend.Name(),
	)
}

func (r *Renderer) CreateBuffer(desc metadata.BufferDescription, data []byte) metadata.BufferHandle {
	handle, res := r.backend.BufferCreate(desc, data)
	r.check(res, fmt.Sprintf("BufferCreate(%s)", desc.Name), 2)
	return handle
}

func (r *Renderer) WriteBuffer(buffer metadata.BufferHandle, offset uint32, data []byte) {
	r.check(r.backend.BufferWrite(buffer, offset, data), "BufferWrite", 2)
}

func (r *Renderer) DestroyBuffer(buffer metadata.BufferHandle) {
	r.check(r.backend.BufferDestroy(buffer), "BufferDestroy", 2)
}

// DescribeBuffer returns the description of a live buffer. An unknown handle is
// reported with ok false and is not fatal.
func (r *Renderer) DescribeBuffer(buffer metadata.BufferHandle) (desc metadata.BufferDescription, ok bool) {
	desc, res := r.backend.BufferDescribe(buffer)
	return desc, res == metadata.ResultSuccess
}

func (r *Renderer) CreateInputLayout(elements []metadata.InputElement, program *metadata.ShaderProgram) metadata.InputLayoutHandle {
	handle, res := r.backend.InputLayoutCreate(elements, program)
	r.check(res, fmt.Sprintf("InputLayoutCreate(%s)", program.Name), 2)
	return handle
}

func (r *Renderer) DestroyInputLayout(layout metadata.InputLayoutHandle) {
	r.check(r.backend.InputLayoutDestroy(layout), "InputLayoutDestroy", 2)
}

func (r *Renderer) CreateShader(program *metadata.ShaderProgram) {
	r.check(r.backend.ShaderCreate(program), fmt.Sprintf("ShaderCreate(%s)", program.Name), 2)
	program.State = metadata.SHADER_STATE_CREATED
}

func (r *Renderer) DestroyShader(program *metadata.ShaderProgram) {
	if program.State != metadata.SHADER_STATE_CREATED {
		return
	}
	r.check(r.backend.ShaderDestroy(program), fmt.Sprintf("ShaderDestroy(%s)", program.Name), 2)
	program.State = metadata.SHADER_STATE_NOT_CREATED
}

func (r *Renderer) UseShader(program *metadata.ShaderProgram) {
	r.check(r.backend.ShaderUse(program), fmt.Sprintf("ShaderUse(%s)", program.Name), 2)
}

func (r *Renderer) SetShaderParameter(program *metadata.ShaderProgram, param metadata.ShaderParameter) {
	r.check(r.backend.ShaderSetParameter(program, param), fmt.Sprintf("ShaderSetParameter(%s.%s)", program.Name, param.Name), 2)
}

func (r *Renderer) SetInputLayout(layout metadata.InputLayoutHandle) {
	r.check(r.backend.SetInputLayout(layout), "SetInputLayout", 2)
}

func (r *Renderer) SetVertexBuffer(slot uint32, buffer metadata.BufferHandle, stride, offset uint32) {
	r.check(r.backend.SetVertexBuffer(slot, buffer, stride, offset), fmt.Sprintf("SetVertexBuffer(%d)", slot), 2)
}

func (r *Renderer) SetIndexBuffer(buffer metadata.BufferHandle) {
	r.check(r.backend.SetIndexBuffer(buffer), "SetIndexBuffer", 2)
}

// RenderStates returns the shared state objects for cfg, creating them on first use.
// The handles belong to the renderer and stay valid until Shutdown.
func (r *Renderer) RenderStates(cfg metadata.RenderStateConfig) RenderStateHandles {
	return r.states.acquire(cfg)
}

func (r *Renderer) ApplyRenderStates(states RenderStateHandles) {
	r.check(r.backend.SetBlendState(states.Blend), "SetBlendState", 2)
	r.check(r.backend.SetDepthState(states.Depth), "SetDepthState", 2)
	r.check(r.backend.SetRasterizerState(states.Rasterizer), "SetRasterizerState", 2)
}

func (r *Renderer) DrawIndexed(topology metadata.PrimitiveTopology, indexCount, firstIndex uint32, baseVertex int32) {
	r.check(r.backend.DrawIndexed(topology, indexCount, firstIndex, baseVertex), "DrawIndexed", 2)
}
