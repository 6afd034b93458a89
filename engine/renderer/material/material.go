// Package material holds named shading parameters and uploads them to a
// shader program before a draw.
package material

import (
	"errors"
	"fmt"
	"sort"

	"github.com/spaghettifunk/kiln/engine/math"
	"github.com/spaghettifunk/kiln/engine/renderer/metadata"
)

/** @brief The name of the default material. */
const DEFAULT_MATERIAL_NAME string = "default"

var (
	ErrParameterNotFound = errors.New("material parameter not found")
	ErrParameterType     = errors.New("material parameter has the wrong type")
	ErrInvalidName       = errors.New("invalid material parameter name")
)

// ParameterSetter uploads one parameter to a program. *renderer.Renderer implements it.
type ParameterSetter interface {
	SetShaderParameter(program *metadata.ShaderProgram, param metadata.ShaderParameter)
}

/**
 * @brief A material, a named set of shader parameters (floats, vectors,
 * textures and sampler states) applied before a draw.
 */
type Material struct {
	/** @brief The material name. */
	Name string
	/** @brief The name of the shader program the material is meant for. */
	ShaderName string
	/** @brief Incremented every time the material is changed. */
	Generation uint32

	params map[string]metadata.ShaderParameter
}

func New(name, shaderName string) *Material {
	return &Material{
		Name:       name,
		ShaderName: shaderName,
		params:     make(map[string]metadata.ShaderParameter),
	}
}

func (m *Material) set(param metadata.ShaderParameter) error {
	if param.Name == "" {
		return ErrInvalidName
	}
	if prev, ok := m.params[param.Name]; ok && prev.Type != param.Type {
		return fmt.Errorf("%w: %q is a %s", ErrParameterType, param.Name, typeName(prev.Type))
	}
	m.params[param.Name] = param
	m.Generation++
	return nil
}

func (m *Material) SetFloat(name string, value float32) error {
	return m.set(metadata.ShaderParameter{Name: name, Type: metadata.ShaderParameterFloat, Float: value})
}

func (m *Material) SetVector(name string, value math.Vec4) error {
	return m.set(metadata.ShaderParameter{Name: name, Type: metadata.ShaderParameterVector4, Vector4: value.Array()})
}

// SetTexture binds the texture resource with the given name.
func (m *Material) SetTexture(name, texture string) error {
	return m.set(metadata.ShaderParameter{Name: name, Type: metadata.ShaderParameterTexture, Texture: texture})
}

func (m *Material) SetSampler(name string, sampler metadata.SamplerState) error {
	return m.set(metadata.ShaderParameter{Name: name, Type: metadata.ShaderParameterSampler, Sampler: sampler})
}

func (m *Material) get(name string, t metadata.ShaderParameterType) (metadata.ShaderParameter, error) {
	p, ok := m.params[name]
	if !ok {
		return p, fmt.Errorf("%w: %q in material %q", ErrParameterNotFound, name, m.Name)
	}
	if p.Type != t {
		return p, fmt.Errorf("%w: %q is a %s, not a %s", ErrParameterType, name, typeName(p.Type), typeName(t))
	}
	return p, nil
}

func (m *Material) Float(name string) (float32, error) {
	p, err := m.get(name, metadata.ShaderParameterFloat)
	return p.Float, err
}

func (m *Material) Vector(name string) (math.Vec4, error) {
	p, err := m.get(name, metadata.ShaderParameterVector4)
	return math.NewVec4(p.Vector4[0], p.Vector4[1], p.Vector4[2], p.Vector4[3]), err
}

func (m *Material) Texture(name string) (string, error) {
	p, err := m.get(name, metadata.ShaderParameterTexture)
	return p.Texture, err
}

func (m *Material) Sampler(name string) (metadata.SamplerState, error) {
	p, err := m.get(name, metadata.ShaderParameterSampler)
	return p.Sampler, err
}

// Remove deletes the parameter, reporting whether it existed.
func (m *Material) Remove(name string) bool {
	if _, ok := m.params[name]; !ok {
		return false
	}
	delete(m.params, name)
	m.Generation++
	return true
}

func (m *Material) Len() int {
	return len(m.params)
}

// Parameters returns every parameter sorted by name.
func (m *Material) Parameters() []metadata.ShaderParameter {
	out := make([]metadata.ShaderParameter, 0, len(m.params))
	for _, p := range m.params {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// CopyFrom replaces the content of m with the content of other, keeping m's
// identity so holders of the pointer see the new values.
func (m *Material) CopyFrom(other *Material) {
	m.ShaderName = other.ShaderName
	m.params = make(map[string]metadata.ShaderParameter, len(other.params))
	for k, v := range other.params {
		m.params[k] = v
	}
	m.Generation++
}

/**
 * @brief Uploads the parameters the program declares a binding for. Parameters
 * the program does not read are skipped. Nothing is uploaded when a parameter
 * kind does not fit its binding.
 *
 * @return The number of uploaded parameters.
 */
func (m *Material) Apply(setter ParameterSetter, program *metadata.ShaderProgram) (int, error) {
	if program == nil {
		return 0, fmt.Errorf("material %q: nil program", m.Name)
	}
	params := m.Parameters()
	upload := params[:0]
	for _, p := range params {
		binding, ok := program.Binding(p.Name)
		if !ok {
			continue
		}
		if !fits(binding.Kind, p.Type) {
			return 0, fmt.Errorf("%w: %q is a %s, program %q binds a %s",
				ErrParameterType, p.Name, typeName(p.Type), program.Name, binding.Kind)
		}
		upload = append(upload, p)
	}
	for _, p := range upload {
		setter.SetShaderParameter(program, p)
	}
	return len(upload), nil
}

func fits(kind metadata.ResourceBindingKind, t metadata.ShaderParameterType) bool {
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

func typeName(t metadata.ShaderParameterType) string {
	switch t {
	case metadata.ShaderParameterFloat:
		return "float"
	case metadata.ShaderParameterVector4:
		return "vec4"
	case metadata.ShaderParameterTexture:
		return "texture"
	case metadata.ShaderParameterSampler:
		return "sampler"
	}
	return fmt.Sprintf("parameter(%d)", uint8(t))
}
