package loaders

import (
	"bytes"
	"fmt"
	"os"
	"sort"
	"strings"

	"github.com/pelletier/go-toml/v2"

	"github.com/spaghettifunk/kiln/engine/math"
	"github.com/spaghettifunk/kiln/engine/renderer/material"
	"github.com/spaghettifunk/kiln/engine/renderer/metadata"
)

type samplerFile struct {
	MinFilter string `toml:"min_filter"`
	MagFilter string `toml:"mag_filter"`
	RepeatU   string `toml:"repeat_u"`
	RepeatV   string `toml:"repeat_v"`
}

/**
 * @brief The on-disk layout of a material file:
 *
 *	name = "grid"
 *	shader = "lines"
 *	[floats]
 *	intensity = 0.5
 *	[vectors]
 *	tint = [1.0, 1.0, 1.0, 1.0]
 *	[textures]
 *	albedo = "checker"
 *	[samplers.albedo_sampler]
 *	min_filter = "linear"
 */
type materialFile struct {
	Name     string                 `toml:"name"`
	Shader   string                 `toml:"shader"`
	Floats   map[string]float32     `toml:"floats"`
	Vectors  map[string][]float32   `toml:"vectors"`
	Textures map[string]string      `toml:"textures"`
	Samplers map[string]samplerFile `toml:"samplers"`
}

type MaterialLoader struct{}

func (ml *MaterialLoader) Load(path string) (*Resource, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	m, err := ParseMaterial(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return &Resource{
		Name:     m.Name,
		FullPath: path,
		Type:     ResourceTypeMaterial,
		DataSize: uint64(len(data)),
		Data:     m,
	}, nil
}

// ParseMaterial decodes and validates a material file.
func ParseMaterial(data []byte) (*material.Material, error) {
	var mf materialFile
	if err := toml.NewDecoder(bytes.NewReader(data)).DisallowUnknownFields().Decode(&mf); err != nil {
		return nil, fmt.Errorf("invalid material file: %w", err)
	}
	if mf.Name == "" {
		return nil, fmt.Errorf("material name is required")
	}
	if mf.Shader == "" {
		return nil, fmt.Errorf("material %q: shader name is required", mf.Name)
	}

	m := material.New(mf.Name, mf.Shader)
	for _, name := range sortedKeys(mf.Floats) {
		if err := m.SetFloat(name, mf.Floats[name]); err != nil {
			return nil, err
		}
	}
	for _, name := range sortedKeys(mf.Vectors) {
		v := mf.Vectors[name]
		if len(v) != 4 {
			return nil, fmt.Errorf("material %q: vector %q needs 4 values, got %d", mf.Name, name, len(v))
		}
		if err := m.SetVector(name, math.NewVec4(v[0], v[1], v[2], v[3])); err != nil {
			return nil, err
		}
	}
	for _, name := range sortedKeys(mf.Textures) {
		if mf.Textures[name] == "" {
			return nil, fmt.Errorf("material %q: texture %q has no name", mf.Name, name)
		}
		if err := m.SetTexture(name, mf.Textures[name]); err != nil {
			return nil, err
		}
	}
	for _, name := range sortedKeys(mf.Samplers) {
		s, err := parseSampler(mf.Samplers[name])
		if err != nil {
			return nil, fmt.Errorf("material %q: sampler %q: %w", mf.Name, name, err)
		}
		if err := m.SetSampler(name, s); err != nil {
			return nil, err
		}
	}
	return m, nil
}

func parseSampler(sf samplerFile) (metadata.SamplerState, error) {
	var s metadata.SamplerState
	var err error
	if s.MinFilter, err = parseFilter(sf.MinFilter); err != nil {
		return s, err
	}
	if s.MagFilter, err = parseFilter(sf.MagFilter); err != nil {
		return s, err
	}
	if s.RepeatU, err = parseRepeat(sf.RepeatU); err != nil {
		return s, err
	}
	if s.RepeatV, err = parseRepeat(sf.RepeatV); err != nil {
		return s, err
	}
	return s, nil
}

func parseFilter(s string) (metadata.TextureFilter, error) {
	switch strings.ToLower(s) {
	case "", "nearest":
		return metadata.TextureFilterModeNearest, nil
	case "linear":
		return metadata.TextureFilterModeLinear, nil
	}
	return 0, fmt.Errorf("unknown filter %q", s)
}

func parseRepeat(s string) (metadata.TextureRepeat, error) {
	switch strings.ToLower(s) {
	case "", "repeat":
		return metadata.TextureRepeatRepeat, nil
	case "mirrored_repeat":
		return metadata.TextureRepeatMirroredRepeat, nil
	case "clamp_to_edge":
		return metadata.TextureRepeatClampToEdge, nil
	}
	return 0, fmt.Errorf("unknown repeat mode %q", s)
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
