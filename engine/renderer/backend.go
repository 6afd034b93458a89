package renderer

import "github.com/spaghettifunk/kiln/engine/renderer/metadata"

// RendererBackend is the GPU device layer. Lifecycle calls return errors,
// device calls return a metadata.Result where anything but success is fatal.
type RendererBackend interface {
	Name() string
	Initialize(appName string, appWidth, appHeight uint32) error
	Shutdown() error
	Resized(width, height uint16) error
	BeginFrame(deltaTime float64) error
	EndFrame(deltaTime float64) error

	BufferCreate(desc metadata.BufferDescription, data []byte) (metadata.BufferHandle, metadata.Result)
	BufferWrite(buffer metadata.BufferHandle, offset uint32, data []byte) metadata.Result
	BufferDestroy(buffer metadata.BufferHandle) metadata.Result
	// BufferDescribe reports the description a live buffer was created with.
	BufferDescribe(buffer metadata.BufferHandle) (metadata.BufferDescription, metadata.Result)

	InputLayoutCreate(elements []metadata.InputElement, program *metadata.ShaderProgram) (metadata.InputLayoutHandle, metadata.Result)
	InputLayoutDestroy(layout metadata.InputLayoutHandle) metadata.Result

	BlendStateCreate(state metadata.BlendState) (metadata.StateHandle, metadata.Result)
	DepthStateCreate(state metadata.DepthState) (metadata.StateHandle, metadata.Result)
	RasterizerStateCreate(state metadata.RasterizerState) (metadata.StateHandle, metadata.Result)
	StateDestroy(state metadata.StateHandle) metadata.Result

	ShaderCreate(program *metadata.ShaderProgram) metadata.Result
	ShaderDestroy(program *metadata.ShaderProgram) metadata.Result
	ShaderUse(program *metadata.ShaderProgram) metadata.Result
	ShaderSetParameter(program *metadata.ShaderProgram, param metadata.ShaderParameter) metadata.Result

	SetInputLayout(layout metadata.InputLayoutHandle) metadata.Result
	SetVertexBuffer(slot uint32, buffer metadata.BufferHandle, stride, offset uint32) metadata.Result
	SetIndexBuffer(buffer metadata.BufferHandle) metadata.Result
	SetBlendState(state metadata.StateHandle) metadata.Result
	SetDepthState(state metadata.StateHandle) metadata.Result
	SetRasterizerState(state metadata.StateHandle) metadata.Result
	DrawIndexed(topology metadata.PrimitiveTopology, indexCount, firstIndex uint32, baseVertex int32) metadata.Result
}
