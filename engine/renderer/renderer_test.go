package renderer

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spaghettifunk/kiln/engine/core"
	"github.com/spaghettifunk/kiln/engine/renderer/headless"
	"github.com/spaghettifunk/kiln/engine/renderer/metadata"
)

type fatalExit struct {
	code int
}

func newCapturingRenderer(t *testing.T) (*Renderer, *headless.HeadlessBackend, *bytes.Buffer) {
	t.Helper()
	var out bytes.Buffer
	logger, err := core.NewLogger(core.LoggerConfig{Level: "debug", Output: &out})
	require.NoError(t, err)
	logger.SetExitFunc(func(code int) { panic(fatalExit{code: code}) })

	backend := headless.New()
	r := NewWithBackend(backend, logger)
	require.NoError(t, r.Initialize("test", 320, 200))
	return r, backend, &out
}

func TestParseRendererType(t *testing.T) {
	tests := []struct {
		in      string
		want    RendererType
		wantErr bool
	}{
		{in: "headless", want: Headless},
		{in: "", want: Headless},
		{in: "Vulkan", want: Vulkan},
		{in: "metal", wantErr: true},
	}
	for _, tt := range tests {
		got, err := ParseRendererType(tt.in)
		if tt.wantErr {
			assert.Error(t, err, tt.in)
			continue
		}
		require.NoError(t, err, tt.in)
		assert.Equal(t, tt.want, got)
	}
}

func TestNewHeadless(t *testing.T) {
	r, err := New(Config{Type: Headless}, core.NewDiscardLogger())
	require.NoError(t, err)
	assert.Equal(t, "headless", r.Name())

	_, err = New(Config{Type: RendererType(42)}, core.NewDiscardLogger())
	assert.Error(t, err)
}

func TestCheckSuccessDoesNothing(t *testing.T) {
	r, _, out := newCapturingRenderer(t)
	out.Reset()
	assert.NotPanics(t, func() { r.Check(metadata.ResultSuccess, "noop") })
	assert.Empty(t, out.String())
}

func TestCheckFailureIsFatal(t *testing.T) {
	r, _, out := newCapturingRenderer(t)

	assert.PanicsWithValue(t, fatalExit{code: 1}, func() {
		r.Check(metadata.ResultErrorDeviceLost, "device.Present()")
	})
	log := out.String()
	assert.Contains(t, log, "device.Present()")
	assert.Contains(t, log, "ERROR_DEVICE_LOST")
	assert.Contains(t, log, "renderer_test.go")
	assert.Contains(t, log, "headless")
}

func TestCheckedWrapperReportsCaller(t *testing.T) {
	r, backend, out := newCapturingRenderer(t)
	backend.FailNext("BufferCreate", metadata.ResultErrorOutOfMemory)

	assert.Panics(t, func() {
		r.CreateBuffer(metadata.BufferDescription{Name: "big", Size: 1 << 20}, nil)
	})
	log := out.String()
	assert.Contains(t, log, "BufferCreate(big)")
	assert.Contains(t, log, "ERROR_OUT_OF_MEMORY")
	assert.Contains(t, log, "renderer_test.go")
}

func TestRenderStatesAreShared(t *testing.T) {
	r, backend, _ := newCapturingRenderer(t)

	a := r.RenderStates(metadata.DefaultRenderState())
	b := r.RenderStates(metadata.DefaultRenderState())
	assert.Equal(t, a, b)
	assert.Equal(t, 3, backend.LiveStates())

	alpha := metadata.DefaultRenderState()
	alpha.Blend = metadata.BlendStateAlpha
	c := r.RenderStates(alpha)
	assert.NotEqual(t, a.Blend, c.Blend)
	assert.Equal(t, a.Depth, c.Depth)
	assert.Equal(t, 4, backend.LiveStates())
	assert.Equal(t, 4, r.states.len())

	require.NoError(t, r.Shutdown())
	assert.Equal(t, 0, backend.LiveStates())
}

func TestShaderLifecycle(t *testing.T) {
	r, backend, _ := newCapturingRenderer(t)
	p := &metadata.ShaderProgram{
		Name:   "p",
		Inputs: []metadata.ShaderInput{{Attribute: metadata.VertexAttributePosition, ElementType: metadata.VertexElementFloat32, ComponentCount: 3}},
	}
	r.CreateShader(p)
	assert.Equal(t, metadata.SHADER_STATE_CREATED, p.State)
	r.DestroyShader(p)
	assert.Equal(t, metadata.SHADER_STATE_NOT_CREATED, p.State)
	// A second destroy is ignored.
	r.DestroyShader(p)
	assert.Equal(t, 1, backend.Calls("ShaderDestroy"))
}

func TestFrameNumber(t *testing.T) {
	r, _, _ := newCapturingRenderer(t)
	for i := 0; i < 3; i++ {
		require.NoError(t, r.BeginFrame(0.016))
		require.NoError(t, r.EndFrame(0.016))
	}
	assert.Equal(t, uint64(3), r.FrameNumber())
	assert.Error(t, r.EndFrame(0.016))
}
