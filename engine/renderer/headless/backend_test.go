package headless

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spaghettifunk/kiln/engine/renderer/metadata"
)

func testProgram() *metadata.ShaderProgram {
	return &metadata.ShaderProgram{
		Name: "test",
		Inputs: []metadata.ShaderInput{
			{Name: "in_position", Attribute: metadata.VertexAttributePosition, ElementType: metadata.VertexElementFloat32, ComponentCount: 3, Location: 0},
		},
		Bindings: []metadata.ResourceBinding{
			{Name: "tint", Kind: metadata.ResourceBindingConstants, Slot: 0},
		},
	}
}

func TestBufferCreateAndWrite(t *testing.T) {
	b := New()

	h, res := b.BufferCreate(metadata.BufferDescription{Name: "vb", Size: 8, Usage: metadata.BufferUsageDynamic}, []byte{1, 2})
	require.Equal(t, metadata.ResultSuccess, res)
	assert.NotEqual(t, metadata.BufferHandle(metadata.InvalidHandle), h)

	assert.Equal(t, metadata.ResultSuccess, b.BufferWrite(h, 4, []byte{9, 9, 9, 9}))
	data, ok := b.BufferData(h)
	require.True(t, ok)
	assert.Equal(t, []byte{1, 2, 0, 0, 9, 9, 9, 9}, data)

	assert.Equal(t, metadata.ResultErrorInvalidArgument, b.BufferWrite(h, 6, []byte{1, 2, 3}))
	assert.Equal(t, metadata.ResultSuccess, b.BufferDestroy(h))
	assert.Equal(t, metadata.ResultErrorInvalidHandle, b.BufferDestroy(h))
	assert.Equal(t, 0, b.LiveBuffers())
}

func TestBufferWriteImmutable(t *testing.T) {
	b := New()
	h, res := b.BufferCreate(metadata.BufferDescription{Size: 4}, nil)
	require.Equal(t, metadata.ResultSuccess, res)
	assert.Equal(t, metadata.ResultErrorInvalidArgument, b.BufferWrite(h, 0, []byte{1}))
}

func TestInputLayoutMustFeedEveryInput(t *testing.T) {
	b := New()
	p := testProgram()
	require.Equal(t, metadata.ResultSuccess, b.ShaderCreate(p))

	_, res := b.InputLayoutCreate([]metadata.InputElement{{Location: 3}}, p)
	assert.Equal(t, metadata.ResultErrorBindingMismatch, res)

	h, res := b.InputLayoutCreate([]metadata.InputElement{{Location: 0}}, p)
	assert.Equal(t, metadata.ResultSuccess, res)
	assert.Equal(t, 1, b.LiveLayouts())
	assert.Equal(t, metadata.ResultSuccess, b.InputLayoutDestroy(h))
}

func TestFailNext(t *testing.T) {
	b := New()
	b.FailNext("BufferCreate", metadata.ResultErrorOutOfMemory)

	_, res := b.BufferCreate(metadata.BufferDescription{Size: 4}, nil)
	assert.Equal(t, metadata.ResultErrorOutOfMemory, res)
	_, res = b.BufferCreate(metadata.BufferDescription{Size: 4}, nil)
	assert.Equal(t, metadata.ResultSuccess, res)
	assert.Equal(t, 2, b.Calls("BufferCreate"))
}

func TestShaderParameterMustMatchBinding(t *testing.T) {
	b := New()
	p := testProgram()
	require.Equal(t, metadata.ResultSuccess, b.ShaderCreate(p))

	assert.Equal(t, metadata.ResultSuccess, b.ShaderSetParameter(p, metadata.ShaderParameter{Name: "tint", Type: metadata.ShaderParameterVector4}))
	assert.Equal(t, metadata.ResultErrorBindingMismatch, b.ShaderSetParameter(p, metadata.ShaderParameter{Name: "tint", Type: metadata.ShaderParameterTexture}))
	assert.Equal(t, metadata.ResultErrorBindingMismatch, b.ShaderSetParameter(p, metadata.ShaderParameter{Name: "missing"}))
}

func TestDrawIndexedValidatesBindings(t *testing.T) {
	b := New()
	require.NoError(t, b.Initialize("test", 1, 1))
	p := testProgram()
	require.Equal(t, metadata.ResultSuccess, b.ShaderCreate(p))

	vb, _ := b.BufferCreate(metadata.BufferDescription{Type: metadata.BufferTypeVertex, Size: 36}, nil)
	ib, _ := b.BufferCreate(metadata.BufferDescription{Type: metadata.BufferTypeIndex, Size: 12}, nil)
	lay, _ := b.InputLayoutCreate([]metadata.InputElement{{Slot: 0, Location: 0}}, p)
	blend, _ := b.BlendStateCreate(metadata.BlendStateOpaque)
	depth, _ := b.DepthStateCreate(metadata.DepthStateDefault)
	raster, _ := b.RasterizerStateCreate(metadata.RasterizerStateDefault)

	require.Equal(t, metadata.ResultSuccess, b.ShaderUse(p))
	require.Equal(t, metadata.ResultSuccess, b.SetInputLayout(lay))
	require.Equal(t, metadata.ResultSuccess, b.SetIndexBuffer(ib))
	require.Equal(t, metadata.ResultSuccess, b.SetBlendState(blend))
	require.Equal(t, metadata.ResultSuccess, b.SetDepthState(depth))
	require.Equal(t, metadata.ResultSuccess, b.SetRasterizerState(raster))

	// No vertex buffer on slot 0 yet.
	assert.Equal(t, metadata.ResultErrorBindingMismatch, b.DrawIndexed(metadata.PrimitiveTopologyTriangleList, 3, 0, 0))

	require.Equal(t, metadata.ResultSuccess, b.SetVertexBuffer(0, vb, 12, 0))
	// Program binding "tint" was never populated.
	assert.Equal(t, metadata.ResultErrorBindingMismatch, b.DrawIndexed(metadata.PrimitiveTopologyTriangleList, 3, 0, 0))

	require.Equal(t, metadata.ResultSuccess, b.ShaderSetParameter(p, metadata.ShaderParameter{Name: "tint", Type: metadata.ShaderParameterVector4}))
	require.Equal(t, metadata.ResultSuccess, b.SetVertexBuffer(0, vb, 12, 0))
	assert.Equal(t, metadata.ResultErrorInvalidArgument, b.DrawIndexed(metadata.PrimitiveTopologyTriangleList, 4, 0, 0))
	assert.Equal(t, metadata.ResultSuccess, b.DrawIndexed(metadata.PrimitiveTopologyTriangleList, 3, 0, 0))

	require.Len(t, b.Draws(), 1)
	d := b.Draws()[0]
	assert.Equal(t, "test", d.Program)
	assert.Equal(t, uint32(3), d.IndexCount)
	assert.Equal(t, vb, d.VertexBuffers[0])
	assert.Equal(t, ib, d.IndexBuffer)

	// Vertex bindings are consumed by the draw.
	assert.Equal(t, metadata.ResultErrorBindingMismatch, b.DrawIndexed(metadata.PrimitiveTopologyTriangleList, 3, 0, 0))
}

func TestSetStateRejectsWrongKind(t *testing.T) {
	b := New()
	blend, _ := b.BlendStateCreate(metadata.BlendStateOpaque)
	assert.Equal(t, metadata.ResultErrorInvalidArgument, b.SetDepthState(blend))
	assert.Equal(t, metadata.ResultErrorInvalidHandle, b.SetDepthState(999))
}
