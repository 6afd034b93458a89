package testbed

import (
	"fmt"

	"github.com/spaghettifunk/kiln/engine/assets/loaders"
	"github.com/spaghettifunk/kiln/engine/math"
	"github.com/spaghettifunk/kiln/engine/renderer/metadata"
)

const (
	TRIANGLE_PROGRAM = "triangle"
	LINES_PROGRAM    = "lines"

	TINT_PARAMETER = "tint"
	WORLD_CAMERA   = "world"
)

// cameraBindings are the four rows of the view projection matrix, one vec4 per slot.
func cameraBindings() []metadata.ResourceBinding {
	bindings := make([]metadata.ResourceBinding, 0, 5)
	for i := uint32(0); i < 4; i++ {
		bindings = append(bindings, metadata.ResourceBinding{
			Name: viewProjectionName(i),
			Kind: metadata.ResourceBindingConstants,
			Slot: i,
		})
	}
	return append(bindings, metadata.ResourceBinding{Name: TINT_PARAMETER, Kind: metadata.ResourceBindingConstants, Slot: 4})
}

func viewProjectionName(row uint32) string {
	return fmt.Sprintf("view_projection_%d", row)
}

// colorProgram reads float3 positions and float4 colours.
func colorProgram(name string) *metadata.ShaderProgram {
	return &metadata.ShaderProgram{
		Name: name,
		Inputs: []metadata.ShaderInput{
			{Name: "in_position", Attribute: metadata.VertexAttributePosition, ElementType: metadata.VertexElementFloat32, ComponentCount: 3, Location: 0},
			{Name: "in_color", Attribute: metadata.VertexAttributeColor, ElementType: metadata.VertexElementFloat32, ComponentCount: 4, Location: 1},
		},
		Bindings: cameraBindings(),
	}
}

// loadProgram builds the named program. Backends that compile stages get the
// SPIR-V found in shaderDir.
func loadProgram(name, shaderDir string, needsStages bool) (*metadata.ShaderProgram, error) {
	p := colorProgram(name)
	if !needsStages {
		return p, nil
	}
	stages, err := loaders.LoadProgramStages(shaderDir, name)
	if err != nil {
		return nil, err
	}
	p.Stages = stages
	return p, nil
}

// viewProjectionParameters splits m into one vec4 parameter per row.
func viewProjectionParameters(m math.Mat4) []metadata.ShaderParameter {
	params := make([]metadata.ShaderParameter, 4)
	for row := uint32(0); row < 4; row++ {
		params[row] = metadata.ShaderParameter{
			Name: viewProjectionName(row),
			Type: metadata.ShaderParameterVector4,
			Vector4: [4]float32{
				m.Data[row*4], m.Data[row*4+1], m.Data[row*4+2], m.Data[row*4+3],
			},
		}
	}
	return params
}
