package metadata

import "fmt"

/**
 * @brief Represents the current state of a given shader.
 */
type ShaderState int

const (
	/** @brief The shader has not yet gone through the creation process, and is unusable.*/
	SHADER_STATE_NOT_CREATED ShaderState = iota
	/** @brief The shader is created on the device and ready for use.*/
	SHADER_STATE_CREATED
)

/** @brief Shader stages available in the system. */
type ShaderStage int

const (
	ShaderStageVertex   ShaderStage = 0x00000001
	ShaderStageGeometry ShaderStage = 0x00000002
	ShaderStageFragment ShaderStage = 0x00000004
	ShaderStageCompute  ShaderStage = 0x0000008
)

/**
 * @brief One entry of the vertex shader input signature.
 */
type ShaderInput struct {
	/** @brief The input Name, as declared in the shader source. */
	Name string
	/** @brief The vertex attribute feeding this input. */
	Attribute VertexAttribute
	/** @brief The component type the shader reads. */
	ElementType VertexElementType
	/** @brief Number of components the shader reads, 1 to 4. */
	ComponentCount uint32
	/** @brief The input Location (register). */
	Location uint32
}

/** @brief Kinds of resources a shader program binds. */
type ResourceBindingKind uint8

const (
	ResourceBindingConstants ResourceBindingKind = iota
	ResourceBindingTexture
	ResourceBindingSampler
)

func (k ResourceBindingKind) String() string {
	switch k {
	case ResourceBindingConstants:
		return "constants"
	case ResourceBindingTexture:
		return "texture"
	case ResourceBindingSampler:
		return "sampler"
	}
	return fmt.Sprintf("binding(%d)", uint8(k))
}

/**
 * @brief A resource slot the program expects to be populated at draw time.
 */
type ResourceBinding struct {
	Name string
	Kind ResourceBindingKind
	Slot uint32
}

/**
 * @brief A shader stage source. Code is SPIR-V for the Vulkan backend.
 */
type ShaderStageConfig struct {
	Stage ShaderStage
	Entry string
	Code  []byte
}

/**
 * @brief Represents a shader program on the frontend.
 */
type ShaderProgram struct {
	/** @brief The shader identifier, assigned by the backend. */
	ID   uint32
	Name string
	/** @brief The vertex shader input signature. */
	Inputs []ShaderInput
	/** @brief The resources the program reads. */
	Bindings []ResourceBinding
	Stages   []ShaderStageConfig
	/** @brief The internal State of the shader. */
	State ShaderState
	/** @brief An opaque pointer to hold renderer API specific data. Renderer is responsible for creation and destruction of this. */
	InternalData interface{}
}

// Input returns the signature entry for attribute, if the program reads it.
func (p *ShaderProgram) Input(attribute VertexAttribute) (ShaderInput, bool) {
	for _, in := range p.Inputs {
		if in.Attribute == attribute {
			return in, true
		}
	}
	return ShaderInput{}, false
}

// Binding returns the resource binding with the given name.
func (p *ShaderProgram) Binding(name string) (ResourceBinding, bool) {
	for _, b := range p.Bindings {
		if b.Name == name {
			return b, true
		}
	}
	return ResourceBinding{}, false
}

/** @brief Available shader parameter types. */
type ShaderParameterType uint8

const (
	ShaderParameterFloat ShaderParameterType = iota
	ShaderParameterVector4
	ShaderParameterTexture
	ShaderParameterSampler
)

func ShaderParameterTypeFromString(s string) (ShaderParameterType, error) {
	switch s {
	case "float", "f32":
		return ShaderParameterFloat, nil
	case "vec4", "vector4":
		return ShaderParameterVector4, nil
	case "texture":
		return ShaderParameterTexture, nil
	case "sampler":
		return ShaderParameterSampler, nil
	}
	return 0, fmt.Errorf("string %s is not a valid ShaderParameterType", s)
}

/** @brief Texture sampling filter. */
type TextureFilter uint8

const (
	TextureFilterModeNearest TextureFilter = iota
	TextureFilterModeLinear
)

/** @brief Texture addressing mode outside [0, 1]. */
type TextureRepeat uint8

const (
	TextureRepeatRepeat TextureRepeat = iota
	TextureRepeatMirroredRepeat
	TextureRepeatClampToEdge
)

/** @brief Sampler state description. */
type SamplerState struct {
	MinFilter TextureFilter
	MagFilter TextureFilter
	RepeatU   TextureRepeat
	RepeatV   TextureRepeat
}

/**
 * @brief A value uploaded to a program resource binding before a draw.
 */
type ShaderParameter struct {
	Name    string
	Type    ShaderParameterType
	Float   float32
	Vector4 [4]float32
	/** @brief Texture resource name. */
	Texture string
	Sampler SamplerState
}
