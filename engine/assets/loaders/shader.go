package loaders

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spaghettifunk/kiln/engine/renderer/metadata"
)

var stageSuffixes = []struct {
	suffix string
	stage  metadata.ShaderStage
}{
	{".vert.spv", metadata.ShaderStageVertex},
	{".geom.spv", metadata.ShaderStageGeometry},
	{".frag.spv", metadata.ShaderStageFragment},
	{".comp.spv", metadata.ShaderStageCompute},
}

// ShaderLoader reads one compiled SPIR-V stage named <program>.<stage>.spv.
type ShaderLoader struct{}

func (sl *ShaderLoader) Load(path string) (*Resource, error) {
	stage, program, ok := shaderStageFromPath(path)
	if !ok {
		return nil, fmt.Errorf("%s: cannot tell the shader stage from the file name", path)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	if len(data) == 0 || len(data)%4 != 0 {
		return nil, fmt.Errorf("%s: SPIR-V size %d is not a multiple of 4", path, len(data))
	}
	return &Resource{
		Name:     program,
		FullPath: path,
		Type:     ResourceTypeShader,
		DataSize: uint64(len(data)),
		Data: metadata.ShaderStageConfig{
			Stage: stage,
			Entry: "main",
			Code:  data,
		},
	}, nil
}

func shaderStageFromPath(path string) (metadata.ShaderStage, string, bool) {
	base := filepath.Base(path)
	for _, s := range stageSuffixes {
		if strings.HasSuffix(base, s.suffix) {
			return s.stage, strings.TrimSuffix(base, s.suffix), true
		}
	}
	return 0, "", false
}

// LoadProgramStages reads the vertex and fragment stages of program from dir.
func LoadProgramStages(dir, program string) ([]metadata.ShaderStageConfig, error) {
	sl := &ShaderLoader{}
	var stages []metadata.ShaderStageConfig
	for _, suffix := range []string{".vert.spv", ".frag.spv"} {
		res, err := sl.Load(filepath.Join(dir, program+suffix))
		if err != nil {
			return nil, fmt.Errorf("shader %q: %w", program, err)
		}
		stages = append(stages, res.Data.(metadata.ShaderStageConfig))
	}
	return stages, nil
}
