package loaders

import (
	"image"
	"image/png"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/image/bmp"
	"golang.org/x/image/tiff"

	"github.com/spaghettifunk/kiln/engine/math"
	"github.com/spaghettifunk/kiln/engine/renderer/metadata"
)

func TestParseMaterial(t *testing.T) {
	m, err := ParseMaterial([]byte(`
name = "brick"
shader = "lit"

[floats]
shininess = 32.0

[vectors]
diffuse_colour = [1.0, 0.5, 0.25, 1.0]

[textures]
diffuse_texture = "brick_albedo"

[samplers.diffuse_sampler]
min_filter = "linear"
mag_filter = "nearest"
repeat_u = "clamp_to_edge"
repeat_v = "mirrored_repeat"
`))
	require.NoError(t, err)
	assert.Equal(t, "brick", m.Name)
	assert.Equal(t, "lit", m.ShaderName)
	assert.Equal(t, 4, m.Len())

	v, err := m.Vector("diffuse_colour")
	require.NoError(t, err)
	assert.Equal(t, math.NewVec4(1, 0.5, 0.25, 1), v)

	s, err := m.Sampler("diffuse_sampler")
	require.NoError(t, err)
	assert.Equal(t, metadata.SamplerState{
		MinFilter: metadata.TextureFilterModeLinear,
		MagFilter: metadata.TextureFilterModeNearest,
		RepeatU:   metadata.TextureRepeatClampToEdge,
		RepeatV:   metadata.TextureRepeatMirroredRepeat,
	}, s)
}

func TestParseMaterialRejects(t *testing.T) {
	tests := []struct {
		name string
		data string
	}{
		{name: "missing name", data: "shader = \"lit\"\n"},
		{name: "missing shader", data: "name = \"brick\"\n"},
		{name: "short vector", data: "name = \"b\"\nshader = \"lit\"\n[vectors]\ntint = [1.0, 2.0]\n"},
		{name: "unknown filter", data: "name = \"b\"\nshader = \"lit\"\n[samplers.s]\nmin_filter = \"cubic\"\n"},
		{name: "empty texture", data: "name = \"b\"\nshader = \"lit\"\n[textures]\nalbedo = \"\"\n"},
		{name: "unknown key", data: "name = \"b\"\nshader = \"lit\"\nshininess = 3.0\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseMaterial([]byte(tt.data))
			assert.Error(t, err)
		})
	}
}

func TestShaderLoader(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "lines.vert.spv"), []byte{0x03, 0x02, 0x23, 0x07}, 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "lines.frag.spv"), []byte{0x03, 0x02, 0x23, 0x07}, 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "odd.vert.spv"), []byte{0x01, 0x02, 0x03}, 0o644))

	stages, err := LoadProgramStages(dir, "lines")
	require.NoError(t, err)
	require.Len(t, stages, 2)
	assert.Equal(t, metadata.ShaderStageVertex, stages[0].Stage)
	assert.Equal(t, metadata.ShaderStageFragment, stages[1].Stage)
	assert.Equal(t, "main", stages[0].Entry)

	_, err = (&ShaderLoader{}).Load(filepath.Join(dir, "odd.vert.spv"))
	assert.Error(t, err)

	_, err = LoadProgramStages(dir, "missing")
	assert.Error(t, err)
}

func TestDetermineResourceType(t *testing.T) {
	assert.Equal(t, ResourceTypeMaterial, DetermineResourceType("materials/grid.toml"))
	assert.Equal(t, ResourceTypeShader, DetermineResourceType("shaders/lines.vert.spv"))
	assert.Equal(t, ResourceTypeTexture, DetermineResourceType("textures/brick_albedo.PNG"))
	assert.Equal(t, ResourceTypeTexture, DetermineResourceType("textures/noise.webp"))
	assert.Equal(t, ResourceTypeNone, DetermineResourceType("model.obj"))
}

func writeImage(t *testing.T, path string, encode func(io.Writer, image.Image) error, width, height int) {
	t.Helper()
	f, err := os.Create(path)
	require.NoError(t, err)
	defer f.Close()
	require.NoError(t, encode(f, image.NewRGBA(image.Rect(0, 0, width, height))))
}

func TestTextureLoader(t *testing.T) {
	tests := []struct {
		file   string
		format string
		encode func(io.Writer, image.Image) error
	}{
		{file: "albedo.png", format: "png", encode: png.Encode},
		{file: "albedo.bmp", format: "bmp", encode: bmp.Encode},
		{file: "albedo.tiff", format: "tiff", encode: func(w io.Writer, m image.Image) error { return tiff.Encode(w, m, nil) }},
	}
	for _, tt := range tests {
		t.Run(tt.format, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), tt.file)
			writeImage(t, path, tt.encode, 8, 4)

			res, err := (&TextureLoader{}).Load(path)
			require.NoError(t, err)
			assert.Equal(t, ResourceTypeTexture, res.Type)
			assert.Equal(t, "albedo", res.Name)
			assert.Equal(t, &TextureInfo{Name: "albedo", Format: tt.format, Width: 8, Height: 4}, res.Data)
		})
	}
}

func TestTextureLoaderRejectsGarbage(t *testing.T) {
	path := filepath.Join(t.TempDir(), "broken.png")
	require.NoError(t, os.WriteFile(path, []byte("not an image"), 0o644))
	_, err := (&TextureLoader{}).Load(path)
	assert.Error(t, err)

	_, err = (&TextureLoader{}).Load(filepath.Join(t.TempDir(), "missing.png"))
	assert.ErrorIs(t, err, os.ErrNotExist)
}
