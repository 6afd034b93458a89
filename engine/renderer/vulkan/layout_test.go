package vulkan

import (
	"encoding/binary"
	"math"
	"testing"

	vk "github.com/goki/vulkan"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spaghettifunk/kiln/engine/renderer/metadata"
)

func testProgram() *metadata.ShaderProgram {
	return &metadata.ShaderProgram{
		ID:   7,
		Name: "unlit",
		Inputs: []metadata.ShaderInput{
			{Name: "in_position", Attribute: metadata.VertexAttributePosition, ElementType: metadata.VertexElementFloat32, ComponentCount: 3, Location: 0},
			{Name: "in_colour", Attribute: metadata.VertexAttributeColor, ElementType: metadata.VertexElementFloat32, ComponentCount: 4, Location: 1},
		},
		Bindings: []metadata.ResourceBinding{
			{Name: "tint", Kind: metadata.ResourceBindingConstants, Slot: 1},
			{Name: "albedo", Kind: metadata.ResourceBindingTexture, Slot: 0},
		},
	}
}

func TestVertexFormat(t *testing.T) {
	cases := []struct {
		el     metadata.InputElement
		format vk.Format
	}{
		{metadata.InputElement{ElementType: metadata.VertexElementFloat32, ComponentCount: 1}, vk.FormatR32Sfloat},
		{metadata.InputElement{ElementType: metadata.VertexElementFloat32, ComponentCount: 3}, vk.FormatR32g32b32Sfloat},
		{metadata.InputElement{ElementType: metadata.VertexElementUint8, ComponentCount: 4, Normalized: true}, vk.FormatR8g8b8a8Unorm},
		{metadata.InputElement{ElementType: metadata.VertexElementUint8, ComponentCount: 4}, vk.FormatR8g8b8a8Uint},
	}
	for _, c := range cases {
		format, ok := vertexFormat(c.el)
		require.True(t, ok)
		assert.Equal(t, c.format, format)
	}

	_, ok := vertexFormat(metadata.InputElement{ElementType: metadata.VertexElementFloat32, ComponentCount: 5})
	assert.False(t, ok)
}

func TestNewInputLayout(t *testing.T) {
	program := testProgram()
	elements := []metadata.InputElement{
		{Attribute: metadata.VertexAttributeColor, Slot: 1, Location: 1, ElementType: metadata.VertexElementUint8, ComponentCount: 4, Normalized: true, Stride: 4},
		{Attribute: metadata.VertexAttributePosition, Slot: 0, Location: 0, ElementType: metadata.VertexElementFloat32, ComponentCount: 3, Stride: 12},
	}

	layout, res := NewInputLayout(elements, program)
	require.Equal(t, metadata.ResultSuccess, res)
	assert.Equal(t, uint32(7), layout.Program)
	assert.Equal(t, []uint32{0, 1}, layout.Slots())
	assert.Equal(t, uint32(12), layout.Bindings[0].Stride)
	assert.Equal(t, uint32(4), layout.Bindings[1].Stride)
	require.Len(t, layout.Attributes, 2)
	assert.Equal(t, vk.FormatR8g8b8a8Unorm, layout.Attributes[0].Format)
	assert.Equal(t, uint32(1), layout.Attributes[0].Binding)
}

func TestNewInputLayoutRejectsUnfedInput(t *testing.T) {
	elements := []metadata.InputElement{
		{Attribute: metadata.VertexAttributePosition, Slot: 0, Location: 0, ElementType: metadata.VertexElementFloat32, ComponentCount: 3, Stride: 12},
	}
	_, res := NewInputLayout(elements, testProgram())
	assert.Equal(t, metadata.ResultErrorBindingMismatch, res)

	_, res = NewInputLayout(nil, testProgram())
	assert.Equal(t, metadata.ResultErrorInvalidArgument, res)
}

func TestNewInputLayoutRejectsConflictingStrides(t *testing.T) {
	elements := []metadata.InputElement{
		{Attribute: metadata.VertexAttributePosition, Slot: 0, Location: 0, ElementType: metadata.VertexElementFloat32, ComponentCount: 3, Stride: 12},
		{Attribute: metadata.VertexAttributeColor, Slot: 0, Location: 1, ElementType: metadata.VertexElementFloat32, ComponentCount: 4, Stride: 16},
	}
	_, res := NewInputLayout(elements, testProgram())
	assert.Equal(t, metadata.ResultErrorInvalidArgument, res)
}

func TestToResult(t *testing.T) {
	assert.Equal(t, metadata.ResultSuccess, toResult(vk.Success))
	assert.Equal(t, metadata.ResultErrorOutOfMemory, toResult(vk.ErrorOutOfDeviceMemory))
	assert.Equal(t, metadata.ResultErrorDeviceLost, toResult(vk.ErrorDeviceLost))
	assert.Equal(t, metadata.ResultErrorNotInitialized, toResult(vk.ErrorInitializationFailed))
	assert.Equal(t, metadata.ResultErrorInvalidArgument, toResult(vk.ErrorFormatNotSupported))
}

func TestSpirvWords(t *testing.T) {
	code := []byte{0x03, 0x02, 0x23, 0x07, 0x00, 0x00, 0x01, 0x00}
	assert.Equal(t, []uint32{0x07230203, 0x00010000}, spirvWords(code))
}

func TestShaderParameterPacking(t *testing.T) {
	shader := &VulkanShader{
		Constants:     make([]byte, 32),
		ConstantsSize: 32,
		Parameters:    make(map[string]metadata.ShaderParameter),
	}
	tint := metadata.ResourceBinding{Name: "tint", Kind: metadata.ResourceBindingConstants, Slot: 1}
	shader.SetParameter(tint, metadata.ShaderParameter{Name: "tint", Type: metadata.ShaderParameterVector4, Vector4: [4]float32{1, 0.5, 0.25, 1}})

	got := math.Float32frombits(binary.LittleEndian.Uint32(shader.Constants[16+4:]))
	assert.Equal(t, float32(0.5), got)
	assert.Contains(t, shader.Parameters, "tint")

	albedo := metadata.ResourceBinding{Name: "albedo", Kind: metadata.ResourceBindingTexture}
	shader.SetParameter(albedo, metadata.ShaderParameter{Name: "albedo", Type: metadata.ShaderParameterTexture, Texture: "bricks"})
	assert.Equal(t, "bricks", shader.Parameters["albedo"].Texture)
}

func TestPipelineStateMapping(t *testing.T) {
	assert.Equal(t, vk.CullModeFlags(vk.CullModeNone), cullMode(metadata.FaceCullModeNone))
	assert.Equal(t, vk.CullModeFlags(vk.CullModeBackBit), cullMode(metadata.FaceCullModeBack))
	assert.Equal(t, vk.CompareOpLessOrEqual, compareOp(metadata.CompareOpLessOrEqual))
	assert.Equal(t, vk.BlendFactorOneMinusSrcAlpha, blendFactor(metadata.BlendFactorOneMinusSrcAlpha))
	assert.Equal(t, vk.PrimitiveTopologyLineList, primitiveTopology(metadata.PrimitiveTopologyLineList))
	assert.Equal(t, vk.PrimitiveTopologyTriangleList, primitiveTopology(metadata.PrimitiveTopologyTriangleList))
	assert.Equal(t, vk.Bool32(vk.True), boolToVk(true))
}

func TestParameterFits(t *testing.T) {
	assert.True(t, parameterFits(metadata.ResourceBindingConstants, metadata.ShaderParameterFloat))
	assert.True(t, parameterFits(metadata.ResourceBindingSampler, metadata.ShaderParameterSampler))
	assert.False(t, parameterFits(metadata.ResourceBindingTexture, metadata.ShaderParameterVector4))
}
