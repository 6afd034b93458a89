package vertexfactory

import (
	"encoding/binary"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spaghettifunk/kiln/engine/core"
	"github.com/spaghettifunk/kiln/engine/renderer"
	"github.com/spaghettifunk/kiln/engine/renderer/headless"
	"github.com/spaghettifunk/kiln/engine/renderer/metadata"
)

type fatalExit struct {
	code int
}

func newTestRenderer(t *testing.T) (*renderer.Renderer, *headless.HeadlessBackend) {
	t.Helper()
	logger := core.NewDiscardLogger()
	logger.SetExitFunc(func(code int) { panic(fatalExit{code: code}) })
	backend := headless.New()
	r := renderer.NewWithBackend(backend, logger)
	require.NoError(t, r.Initialize("test", 640, 480))
	return r, backend
}

func newTestFactory(t *testing.T) (*DeviceVertexFactory, *renderer.Renderer, *headless.HeadlessBackend) {
	t.Helper()
	r, backend := newTestRenderer(t)
	return NewDeviceVertexFactory(r, core.NewDiscardLogger()), r, backend
}

func positionProgram() *metadata.ShaderProgram {
	return &metadata.ShaderProgram{
		Name: "position",
		Inputs: []metadata.ShaderInput{
			{Name: "in_position", Attribute: metadata.VertexAttributePosition, ElementType: metadata.VertexElementFloat32, ComponentCount: 3, Location: 0},
		},
	}
}

func colorProgram() *metadata.ShaderProgram {
	p := positionProgram()
	p.Name = "color"
	p.Inputs = append(p.Inputs, metadata.ShaderInput{
		Name: "in_color", Attribute: metadata.VertexAttributeColor, ElementType: metadata.VertexElementFloat32, ComponentCount: 4, Location: 1,
	})
	return p
}

func createProgram(t *testing.T, r *renderer.Renderer, p *metadata.ShaderProgram) *metadata.ShaderProgram {
	t.Helper()
	r.CreateShader(p)
	return p
}

func positionStream(vertices uint32, slot uint32, flags metadata.VertexStreamFlags) metadata.VertexStreamDescription {
	return metadata.VertexStreamDescription{
		Attribute:      metadata.VertexAttributePosition,
		Name:           "position",
		ElementType:    metadata.VertexElementFloat32,
		SourceIndex:    0,
		ComponentCount: 3,
		BufferSize:     12 * vertices,
		Slot:           slot,
		Flags:          flags,
	}
}

func colorStream(vertices uint32, slot uint32, flags metadata.VertexStreamFlags) metadata.VertexStreamDescription {
	return metadata.VertexStreamDescription{
		Attribute:      metadata.VertexAttributeColor,
		Name:           "color",
		ElementType:    metadata.VertexElementUint8,
		SourceIndex:    1,
		ComponentCount: 4,
		BufferSize:     4 * vertices,
		Slot:           slot,
		Flags:          flags,
	}
}

func triangleMesh(vertices uint32) *metadata.Mesh {
	positions := make([]float32, 0, 3*vertices)
	for i := uint32(0); i < vertices; i++ {
		positions = append(positions, float32(i), float32(i)*2, 0)
	}
	colors := make([]byte, 4*vertices)
	for i := range colors {
		colors[i] = 0xff
	}
	return &metadata.Mesh{
		Name:        "triangle",
		VertexCount: vertices,
		Streams: []metadata.MeshStream{
			{Attribute: metadata.VertexAttributePosition, Data: metadata.Float32Bytes(positions...)},
			{Attribute: metadata.VertexAttributeColor, Data: colors},
		},
	}
}

func TestAllocReleaseRoundTrip(t *testing.T) {
	tests := []struct {
		name         string
		program      func() *metadata.ShaderProgram
		descriptions []metadata.VertexStreamDescription
	}{
		{
			name:         "single position stream",
			program:      positionProgram,
			descriptions: []metadata.VertexStreamDescription{positionStream(3, 0, metadata.VertexStreamFlags{})},
		},
		{
			name:    "dynamic position and normalized color",
			program: colorProgram,
			descriptions: []metadata.VertexStreamDescription{
				positionStream(3, 0, metadata.VertexStreamFlags{Dynamic: true}),
				colorStream(3, 1, metadata.VertexStreamFlags{Normalized: true}),
			},
		},
		{
			name:    "stream unused by the shader",
			program: positionProgram,
			descriptions: []metadata.VertexStreamDescription{
				colorStream(3, 4, metadata.VertexStreamFlags{Normalized: true, Release: true}),
				positionStream(3, 2, metadata.VertexStreamFlags{}),
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f, r, backend := newTestFactory(t)
			require.NoError(t, f.SetShaderProgram(createProgram(t, r, tt.program())))
			require.NoError(t, f.SetVertexStreamDescriptions(tt.descriptions))

			before := f.VertexStreamDescriptions()
			require.Equal(t, StateConfigured, f.State())
			require.Nil(t, f.InputLayout())

			require.NoError(t, f.AllocGPUResource(triangleMesh(3)))
			assert.Equal(t, StateAllocated, f.State())
			assert.Equal(t, len(tt.descriptions)+1, backend.LiveBuffers())
			assert.Equal(t, 1, backend.LiveLayouts())

			f.ReleaseGPUResource()
			assert.Equal(t, StateConfigured, f.State())
			assert.Equal(t, before, f.VertexStreamDescriptions())
			assert.Nil(t, f.InputLayout())
			assert.Equal(t, 0, backend.LiveBuffers())
			assert.Equal(t, 0, backend.LiveLayouts())

			// The factory can be allocated again after a release.
			require.NoError(t, f.AllocGPUResource(triangleMesh(3)))
			f.ReleaseGPUResource()
		})
	}
}

func TestReleaseWithoutAllocationIsNoop(t *testing.T) {
	f, _, backend := newTestFactory(t)
	f.ReleaseGPUResource()
	assert.Equal(t, StateUnconfigured, f.State())
	assert.Equal(t, 0, backend.TotalCalls())
}

func TestAllocTwiceFailsAndKeepsFirstAllocation(t *testing.T) {
	f, r, backend := newTestFactory(t)
	program := createProgram(t, r, positionProgram())
	require.NoError(t, f.SetShaderProgram(program))
	require.NoError(t, f.SetVertexStreamDescriptions([]metadata.VertexStreamDescription{positionStream(3, 0, metadata.VertexStreamFlags{})}))
	require.NoError(t, f.AllocGPUResource(triangleMesh(3)))

	buffers := backend.LiveBuffers()
	layout := f.InputLayout()

	err := f.AllocGPUResource(triangleMesh(3))
	assert.ErrorIs(t, err, ErrInvalidState)
	assert.Equal(t, StateAllocated, f.State())
	assert.Equal(t, buffers, backend.LiveBuffers())
	assert.Same(t, layout, f.InputLayout())

	require.NoError(t, r.BeginFrame(0))
	assert.NoError(t, f.DrawCall(program, triangleMesh(3)))
	require.NoError(t, r.EndFrame(0))
	assert.Len(t, backend.Draws(), 1)
}

func TestUpdateVertexStreamBuffer(t *testing.T) {
	f, r, backend := newTestFactory(t)
	require.NoError(t, f.SetShaderProgram(createProgram(t, r, colorProgram())))
	require.NoError(t, f.SetVertexStreamDescriptions([]metadata.VertexStreamDescription{
		positionStream(3, 0, metadata.VertexStreamFlags{Dynamic: true}),
		colorStream(3, 1, metadata.VertexStreamFlags{Normalized: true}),
	}))

	// Nothing is allocated yet.
	err := f.UpdateVertexStreamBuffer(metadata.VertexAttributePosition, make([]byte, 36), 36)
	assert.ErrorIs(t, err, ErrStreamNotFound)

	require.NoError(t, f.AllocGPUResource(triangleMesh(3)))

	t.Run("exceeding the buffer size fails on dynamic streams", func(t *testing.T) {
		err := f.UpdateVertexStreamBuffer(metadata.VertexAttributePosition, make([]byte, 37), 37)
		assert.ErrorIs(t, err, ErrCapacityExceeded)
	})
	t.Run("exceeding the buffer size fails on static streams", func(t *testing.T) {
		err := f.UpdateVertexStreamBuffer(metadata.VertexAttributeColor, make([]byte, 13), 13)
		assert.ErrorIs(t, err, ErrCapacityExceeded)
	})
	t.Run("static streams cannot be updated", func(t *testing.T) {
		err := f.UpdateVertexStreamBuffer(metadata.VertexAttributeColor, make([]byte, 12), 12)
		assert.ErrorIs(t, err, ErrNotDynamic)
	})
	t.Run("unknown attribute", func(t *testing.T) {
		err := f.UpdateVertexStreamBuffer(metadata.VertexAttributeNormal, make([]byte, 4), 4)
		assert.ErrorIs(t, err, ErrStreamNotFound)
	})
	t.Run("short data", func(t *testing.T) {
		err := f.UpdateVertexStreamBuffer(metadata.VertexAttributePosition, make([]byte, 4), 12)
		assert.ErrorIs(t, err, ErrSizeMismatch)
	})
	t.Run("partial update of a dynamic stream", func(t *testing.T) {
		data := metadata.Float32Bytes(7, 8, 9)
		require.NoError(t, f.UpdateVertexStreamBuffer(metadata.VertexAttributePosition, data, uint32(len(data))))

		var handle metadata.BufferHandle
		for h := metadata.BufferHandle(1); h < 16; h++ {
			desc, ok := backend.BufferDescription(h)
			if ok && desc.Usage == metadata.BufferUsageDynamic {
				handle = h
			}
		}
		content, ok := backend.BufferData(handle)
		require.True(t, ok)
		assert.Equal(t, data, content[:12])
		assert.Equal(t, triangleMesh(3).Streams[0].Data[12:], content[12:])
	})
}

func TestDuplicateSlotsAreRejected(t *testing.T) {
	f, _, _ := newTestFactory(t)
	first := []metadata.VertexStreamDescription{positionStream(3, 0, metadata.VertexStreamFlags{})}
	require.NoError(t, f.SetVertexStreamDescriptions(first))

	err := f.SetVertexStreamDescriptions([]metadata.VertexStreamDescription{
		positionStream(3, 1, metadata.VertexStreamFlags{}),
		colorStream(3, 1, metadata.VertexStreamFlags{Normalized: true}),
	})
	assert.ErrorIs(t, err, ErrDuplicateSlot)
	assert.Equal(t, first, f.VertexStreamDescriptions())
	assert.Equal(t, StateConfigured, f.State())
}

func TestDuplicateAttributesAreRejected(t *testing.T) {
	f, _, _ := newTestFactory(t)
	err := f.SetVertexStreamDescriptions([]metadata.VertexStreamDescription{
		positionStream(3, 0, metadata.VertexStreamFlags{}),
		positionStream(3, 1, metadata.VertexStreamFlags{}),
	})
	assert.ErrorIs(t, err, ErrDuplicateAttribute)
	assert.Equal(t, StateUnconfigured, f.State())
}

func TestInvalidDescription(t *testing.T) {
	f, _, _ := newTestFactory(t)
	d := positionStream(3, 0, metadata.VertexStreamFlags{})
	d.ComponentCount = 5
	assert.ErrorIs(t, f.SetVertexStreamDescriptions([]metadata.VertexStreamDescription{d}), ErrInvalidDescription)

	d = positionStream(3, 0, metadata.VertexStreamFlags{})
	d.BufferSize = 35
	assert.ErrorIs(t, f.SetVertexStreamDescriptions([]metadata.VertexStreamDescription{d}), ErrInvalidDescription)
}

func TestAllocChecksVertexCount(t *testing.T) {
	f, r, backend := newTestFactory(t)
	require.NoError(t, f.SetShaderProgram(createProgram(t, r, positionProgram())))
	require.NoError(t, f.SetVertexStreamDescriptions([]metadata.VertexStreamDescription{{
		Attribute:      metadata.VertexAttributePosition,
		Name:           "position",
		ElementType:    metadata.VertexElementFloat32,
		ComponentCount: 3,
		BufferSize:     36,
		Slot:           0,
	}}))
	calls := backend.TotalCalls()

	err := f.AllocGPUResource(triangleMesh(4))
	assert.ErrorIs(t, err, ErrSizeMismatch)
	assert.Equal(t, StateConfigured, f.State())
	assert.Equal(t, calls, backend.TotalCalls())
	assert.Equal(t, 0, backend.LiveBuffers())

	require.NoError(t, f.AllocGPUResource(triangleMesh(3)))
	assert.Equal(t, StateAllocated, f.State())
}

func TestAllocRejectsInconsistentMesh(t *testing.T) {
	f, r, _ := newTestFactory(t)
	require.NoError(t, f.SetShaderProgram(createProgram(t, r, positionProgram())))
	require.NoError(t, f.SetVertexStreamDescriptions([]metadata.VertexStreamDescription{positionStream(3, 0, metadata.VertexStreamFlags{})}))

	mesh := triangleMesh(3)
	mesh.Streams[0].Data = mesh.Streams[0].Data[:24]
	assert.ErrorIs(t, f.AllocGPUResource(mesh), ErrSizeMismatch)

	mesh = triangleMesh(3)
	mesh.Indices = []uint32{0, 1, 3}
	assert.ErrorIs(t, f.AllocGPUResource(mesh), ErrSizeMismatch)

	mesh = triangleMesh(3)
	mesh.Streams = mesh.Streams[1:]
	assert.ErrorIs(t, f.AllocGPUResource(mesh), ErrSizeMismatch)

	assert.ErrorIs(t, f.AllocGPUResource(nil), ErrSizeMismatch)
	assert.Equal(t, StateConfigured, f.State())
}

func TestAllocRejectsOverflowingVertexCounts(t *testing.T) {
	tests := []struct {
		name        string
		description metadata.VertexStreamDescription
		vertexCount uint32
	}{
		{
			// 16 * (1<<28 + 1) is 16 once truncated to 32 bits
			name: "padded stride",
			description: metadata.VertexStreamDescription{
				Attribute: metadata.VertexAttributePosition, Name: "position", ElementType: metadata.VertexElementFloat32,
				ComponentCount: 3, Stride: 16, BufferSize: 16,
			},
			vertexCount: 1<<28 + 1,
		},
		{
			// more generated indices than a uint32 sized index buffer holds
			name: "index count",
			description: metadata.VertexStreamDescription{
				Attribute: metadata.VertexAttributePosition, Name: "position", ElementType: metadata.VertexElementFloat32,
				ComponentCount: 1, BufferSize: 4,
			},
			vertexCount: 1<<30 + 1,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f, r, backend := newTestFactory(t)
			require.NoError(t, f.SetShaderProgram(createProgram(t, r, &metadata.ShaderProgram{
				Name: "scalar",
				Inputs: []metadata.ShaderInput{{
					Name: "in_position", Attribute: metadata.VertexAttributePosition,
					ElementType: metadata.VertexElementFloat32, ComponentCount: tt.description.ComponentCount,
				}},
			})))
			require.NoError(t, f.SetVertexStreamDescriptions([]metadata.VertexStreamDescription{tt.description}))

			mesh := &metadata.Mesh{
				Name:        "huge",
				VertexCount: tt.vertexCount,
				Streams: []metadata.MeshStream{
					{Attribute: metadata.VertexAttributePosition, Data: make([]byte, tt.description.BufferSize)},
				},
			}
			assert.NotPanics(t, func() {
				assert.ErrorIs(t, f.AllocGPUResource(mesh), ErrSizeMismatch)
			})
			assert.Equal(t, StateConfigured, f.State())
			assert.Equal(t, 0, backend.LiveBuffers())
		})
	}
}

func TestAllocPaddedStride(t *testing.T) {
	f, r, backend := newTestFactory(t)
	require.NoError(t, f.SetShaderProgram(createProgram(t, r, positionProgram())))
	padded := positionStream(3, 0, metadata.VertexStreamFlags{})
	padded.Stride = 16
	padded.BufferSize = 48
	require.NoError(t, f.SetVertexStreamDescriptions([]metadata.VertexStreamDescription{padded}))

	mesh := triangleMesh(3)
	assert.ErrorIs(t, f.AllocGPUResource(mesh), ErrSizeMismatch, "tightly packed data does not fill a padded stream")

	mesh.Streams[0].Data = make([]byte, 48)
	require.NoError(t, f.AllocGPUResource(mesh))
	elements, ok := backend.LayoutElements(f.InputLayout().Handle)
	require.True(t, ok)
	assert.Equal(t, uint32(16), elements[0].Stride)
}

func TestDrawCallBeforeAllocationTouchesNoDevice(t *testing.T) {
	f, r, backend := newTestFactory(t)
	program := createProgram(t, r, positionProgram())
	require.NoError(t, f.SetShaderProgram(program))
	require.NoError(t, f.SetVertexStreamDescriptions([]metadata.VertexStreamDescription{positionStream(3, 0, metadata.VertexStreamFlags{})}))
	calls := backend.TotalCalls()

	err := f.DrawCall(program, triangleMesh(3))
	assert.ErrorIs(t, err, ErrInvalidState)
	assert.Equal(t, calls, backend.TotalCalls())
	assert.Empty(t, backend.Draws())

	assert.ErrorIs(t, f.SetupVertexStreams(), ErrInvalidState)
	assert.ErrorIs(t, f.SetRenderState(), ErrInvalidState)
	assert.Equal(t, calls, backend.TotalCalls())
}

func TestDrawCall(t *testing.T) {
	f, r, backend := newTestFactory(t)
	program := createProgram(t, r, colorProgram())
	require.NoError(t, f.SetShaderProgram(program))
	require.NoError(t, f.SetVertexStreamDescriptions([]metadata.VertexStreamDescription{
		positionStream(3, 2, metadata.VertexStreamFlags{}),
		colorStream(3, 5, metadata.VertexStreamFlags{Normalized: true}),
	}))
	mesh := triangleMesh(3)
	mesh.Indices = []uint32{2, 1, 0}
	require.NoError(t, f.AllocGPUResource(mesh))

	require.NoError(t, r.BeginFrame(0.016))
	require.NoError(t, f.DrawCall(program, mesh))
	require.NoError(t, r.EndFrame(0.016))

	require.Len(t, backend.Draws(), 1)
	draw := backend.Draws()[0]
	assert.Equal(t, "color", draw.Program)
	assert.Equal(t, uint32(3), draw.IndexCount)
	assert.Equal(t, metadata.PrimitiveTopologyTriangleList, draw.Topology)
	assert.Contains(t, draw.VertexBuffers, uint32(2))
	assert.Contains(t, draw.VertexBuffers, uint32(5))
	assert.Equal(t, f.InputLayout().Handle, draw.Layout)

	indices, ok := backend.BufferData(draw.IndexBuffer)
	require.True(t, ok)
	assert.Equal(t, uint32(2), binary.LittleEndian.Uint32(indices[0:]))
	assert.Equal(t, uint32(0), binary.LittleEndian.Uint32(indices[8:]))

	// Mesh with a different index count than the allocation.
	other := triangleMesh(3)
	other.Indices = []uint32{0, 1, 2, 2, 1, 0}
	assert.ErrorIs(t, f.DrawCall(program, other), ErrSizeMismatch)
}

func TestInputLayoutMatching(t *testing.T) {
	normalized := metadata.VertexStreamFlags{Normalized: true}

	elements, err := MatchInputLayout([]metadata.VertexStreamDescription{
		colorStream(3, 1, normalized),
		positionStream(3, 0, metadata.VertexStreamFlags{}),
	}, colorProgram())
	require.NoError(t, err)
	require.Len(t, elements, 2)
	// Description order is kept.
	assert.Equal(t, metadata.VertexAttributeColor, elements[0].Attribute)
	assert.Equal(t, uint32(1), elements[0].Location)
	assert.True(t, elements[0].Normalized)
	assert.Equal(t, uint32(12), elements[1].Stride)

	_, err = MatchInputLayout([]metadata.VertexStreamDescription{
		positionStream(3, 0, metadata.VertexStreamFlags{}),
		colorStream(3, 1, metadata.VertexStreamFlags{}),
	}, colorProgram())
	assert.ErrorIs(t, err, ErrSignatureMismatch, "raw uint8 cannot feed a float input")

	_, err = MatchInputLayout([]metadata.VertexStreamDescription{
		positionStream(3, 0, metadata.VertexStreamFlags{}),
	}, colorProgram())
	assert.ErrorIs(t, err, ErrSignatureMismatch, "color input is not fed")

	_, err = MatchInputLayout(nil, nil)
	assert.ErrorIs(t, err, ErrNoShaderProgram)
}

func TestAllocRequiresShaderProgram(t *testing.T) {
	f, _, backend := newTestFactory(t)
	require.NoError(t, f.SetVertexStreamDescriptions([]metadata.VertexStreamDescription{positionStream(3, 0, metadata.VertexStreamFlags{})}))
	assert.ErrorIs(t, f.AllocGPUResource(triangleMesh(3)), ErrNoShaderProgram)
	assert.Equal(t, 0, backend.LiveBuffers())
	assert.ErrorIs(t, f.SetShaderProgram(nil), ErrNoShaderProgram)
}

func TestStateMachine(t *testing.T) {
	f, r, _ := newTestFactory(t)
	assert.Equal(t, StateUnconfigured, f.State())
	assert.ErrorIs(t, f.AllocGPUResource(triangleMesh(3)), ErrNoStreams)

	program := createProgram(t, r, positionProgram())
	require.NoError(t, f.SetShaderProgram(program))
	require.NoError(t, f.SetVertexStreamDescriptions([]metadata.VertexStreamDescription{positionStream(3, 0, metadata.VertexStreamFlags{})}))
	require.NoError(t, f.AllocGPUResource(triangleMesh(3)))

	err := f.SetVertexStreamDescriptions([]metadata.VertexStreamDescription{positionStream(4, 0, metadata.VertexStreamFlags{})})
	assert.ErrorIs(t, err, ErrInvalidState)
	assert.ErrorIs(t, f.SetShaderProgram(program), ErrInvalidState)
	assert.Equal(t, StateAllocated, f.State())

	f.ReleaseGPUResource()
	require.NoError(t, f.SetVertexStreamDescriptions(nil))
	assert.Equal(t, StateUnconfigured, f.State())
	assert.Empty(t, f.VertexStreamDescriptions())
}

func TestCapabilityFlags(t *testing.T) {
	f, _, _ := newTestFactory(t)
	skin := []metadata.VertexStreamDescription{
		positionStream(3, 0, metadata.VertexStreamFlags{}),
		{Attribute: metadata.VertexAttributeBlendIndices, Name: "indices", ElementType: metadata.VertexElementUint8, ComponentCount: 4, BufferSize: 12, Slot: 1},
		{Attribute: metadata.VertexAttributeBlendWeights, Name: "weights", ElementType: metadata.VertexElementFloat32, ComponentCount: 4, BufferSize: 48, Slot: 2},
	}
	require.NoError(t, f.SetVertexStreamDescriptions(skin))
	assert.True(t, f.IsGPUSkin())
	assert.False(t, f.IsMorph())
	assert.False(t, f.HasCustomData())

	require.NoError(t, f.SetVertexStreamDescriptions([]metadata.VertexStreamDescription{
		positionStream(3, 0, metadata.VertexStreamFlags{}),
		{Attribute: metadata.VertexAttributeMorphPosition, Name: "morph", ElementType: metadata.VertexElementFloat32, ComponentCount: 3, BufferSize: 36, Slot: 1},
		{Attribute: metadata.VertexAttributeCustom2, Name: "custom", ElementType: metadata.VertexElementFloat32, ComponentCount: 1, BufferSize: 12, Slot: 2},
	}))
	assert.False(t, f.IsGPUSkin())
	assert.True(t, f.IsMorph())
	assert.True(t, f.HasCustomData())

	f.SetGPUSkin(true)
	f.SetMorph(false)
	f.SetCustomData(false)
	assert.True(t, f.IsGPUSkin())
	assert.False(t, f.IsMorph())
	assert.False(t, f.HasCustomData())
}

func TestExternalStreamBuffers(t *testing.T) {
	for _, release := range []bool{false, true} {
		f, r, backend := newTestFactory(t)
		require.NoError(t, f.SetShaderProgram(createProgram(t, r, positionProgram())))
		require.NoError(t, f.SetVertexStreamDescriptions([]metadata.VertexStreamDescription{
			positionStream(3, 0, metadata.VertexStreamFlags{Release: release}),
		}))

		shared := r.CreateBuffer(metadata.BufferDescription{Name: "shared", Size: 36}, nil)
		require.NoError(t, f.BindExternalStreamBuffer(metadata.VertexAttributePosition, shared))
		assert.ErrorIs(t, f.BindExternalStreamBuffer(metadata.VertexAttributeNormal, shared), ErrStreamNotFound)
		assert.ErrorIs(t, f.BindExternalStreamBuffer(metadata.VertexAttributePosition, metadata.InvalidHandle), ErrInvalidBuffer)

		// No mesh data is needed for an externally fed stream.
		mesh := &metadata.Mesh{Name: "external", VertexCount: 3}
		require.NoError(t, f.AllocGPUResource(mesh))
		assert.Equal(t, 2, backend.LiveBuffers(), "shared buffer plus the index buffer")

		f.ReleaseGPUResource()
		_, alive := backend.BufferData(shared)
		assert.Equal(t, !release, alive)
	}
}

func TestExternalStreamBufferMustFitTheStream(t *testing.T) {
	tests := []struct {
		name  string
		flags metadata.VertexStreamFlags
		desc  metadata.BufferDescription
	}{
		{
			name: "too small",
			desc: metadata.BufferDescription{Name: "small", Type: metadata.BufferTypeVertex, Usage: metadata.BufferUsageDynamic, Size: 4},
		},
		{
			name: "index buffer",
			desc: metadata.BufferDescription{Name: "indices", Type: metadata.BufferTypeIndex, Size: 36},
		},
		{
			name:  "immutable buffer for a dynamic stream",
			flags: metadata.VertexStreamFlags{Dynamic: true},
			desc:  metadata.BufferDescription{Name: "immutable", Type: metadata.BufferTypeVertex, Usage: metadata.BufferUsageImmutable, Size: 36},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f, r, backend := newTestFactory(t)
			require.NoError(t, f.SetShaderProgram(createProgram(t, r, positionProgram())))
			require.NoError(t, f.SetVertexStreamDescriptions([]metadata.VertexStreamDescription{positionStream(3, 0, tt.flags)}))

			shared := r.CreateBuffer(tt.desc, nil)
			assert.ErrorIs(t, f.BindExternalStreamBuffer(metadata.VertexAttributePosition, shared), ErrInvalidBuffer)
			assert.Equal(t, 1, backend.LiveBuffers())
		})
	}
}

func TestExternalStreamBufferDestroyedBeforeAllocation(t *testing.T) {
	f, r, backend := newTestFactory(t)
	require.NoError(t, f.SetShaderProgram(createProgram(t, r, positionProgram())))
	require.NoError(t, f.SetVertexStreamDescriptions([]metadata.VertexStreamDescription{
		positionStream(3, 0, metadata.VertexStreamFlags{Dynamic: true}),
	}))
	shared := r.CreateBuffer(metadata.BufferDescription{Name: "shared", Usage: metadata.BufferUsageDynamic, Size: 36}, nil)
	require.NoError(t, f.BindExternalStreamBuffer(metadata.VertexAttributePosition, shared))
	r.DestroyBuffer(shared)

	assert.ErrorIs(t, f.AllocGPUResource(&metadata.Mesh{Name: "external", VertexCount: 3}), ErrInvalidBuffer)
	assert.Equal(t, StateConfigured, f.State())
	assert.Equal(t, 0, backend.LiveBuffers())
}

func TestDynamicExternalStreamBufferUpdates(t *testing.T) {
	f, r, backend := newTestFactory(t)
	require.NoError(t, f.SetShaderProgram(createProgram(t, r, positionProgram())))
	require.NoError(t, f.SetVertexStreamDescriptions([]metadata.VertexStreamDescription{
		positionStream(3, 0, metadata.VertexStreamFlags{Dynamic: true}),
	}))
	shared := r.CreateBuffer(metadata.BufferDescription{Name: "shared", Usage: metadata.BufferUsageDynamic, Size: 36}, nil)
	require.NoError(t, f.BindExternalStreamBuffer(metadata.VertexAttributePosition, shared))
	require.NoError(t, f.AllocGPUResource(&metadata.Mesh{Name: "external", VertexCount: 3}))

	data := metadata.Float32Bytes(1, 2, 3, 4, 5, 6, 7, 8, 9)
	require.NoError(t, f.UpdateVertexStreamBuffer(metadata.VertexAttributePosition, data, uint32(len(data))))
	got, ok := backend.BufferData(shared)
	require.True(t, ok)
	assert.Equal(t, data, got)
}

func TestSharedInputLayout(t *testing.T) {
	r, backend := newTestRenderer(t)
	program := createProgram(t, r, positionProgram())
	descriptions := []metadata.VertexStreamDescription{positionStream(3, 0, metadata.VertexStreamFlags{})}

	a := NewDeviceVertexFactory(r, core.NewDiscardLogger())
	require.NoError(t, a.SetShaderProgram(program))
	require.NoError(t, a.SetVertexStreamDescriptions(descriptions))
	require.NoError(t, a.AllocGPUResource(triangleMesh(3)))

	b := NewDeviceVertexFactory(r, core.NewDiscardLogger())
	require.NoError(t, b.SetShaderProgram(program))
	assert.ErrorIs(t, b.SetInputLayout(a.InputLayout()), ErrInvalidState)
	require.NoError(t, b.SetVertexStreamDescriptions(descriptions))
	require.NoError(t, b.SetInputLayout(a.InputLayout()))
	require.NoError(t, b.AllocGPUResource(triangleMesh(3)))
	assert.Equal(t, 1, backend.Calls("InputLayoutCreate"))
	assert.Same(t, a.InputLayout(), b.InputLayout())

	require.NoError(t, r.BeginFrame(0))
	require.NoError(t, b.DrawCall(program, triangleMesh(3)))
	require.NoError(t, r.EndFrame(0))

	b.ReleaseGPUResource()
	assert.Equal(t, 1, backend.LiveLayouts())
	assert.NotNil(t, b.InputLayout())

	a.ReleaseGPUResource()
	assert.Equal(t, 0, backend.LiveLayouts())
}

func TestSharedRenderStates(t *testing.T) {
	r, backend := newTestRenderer(t)
	program := createProgram(t, r, positionProgram())
	for i := 0; i < 3; i++ {
		f := NewDeviceVertexFactory(r, core.NewDiscardLogger())
		require.NoError(t, f.SetShaderProgram(program))
		require.NoError(t, f.SetVertexStreamDescriptions([]metadata.VertexStreamDescription{positionStream(3, 0, metadata.VertexStreamFlags{})}))
		require.NoError(t, f.AllocGPUResource(triangleMesh(3)))
	}
	assert.Equal(t, 3, backend.LiveStates())
	require.NoError(t, r.Shutdown())
	assert.Equal(t, 0, backend.LiveStates())
}

func TestBindingMismatchIsFatal(t *testing.T) {
	f, r, _ := newTestFactory(t)
	program := positionProgram()
	program.Bindings = []metadata.ResourceBinding{{Name: "albedo", Kind: metadata.ResourceBindingTexture, Slot: 0}}
	createProgram(t, r, program)
	require.NoError(t, f.SetShaderProgram(program))
	require.NoError(t, f.SetVertexStreamDescriptions([]metadata.VertexStreamDescription{positionStream(3, 0, metadata.VertexStreamFlags{})}))
	require.NoError(t, f.AllocGPUResource(triangleMesh(3)))

	assert.PanicsWithValue(t, fatalExit{code: 1}, func() {
		_ = f.DrawCall(program, triangleMesh(3))
	})
}

func TestDrawPrimitivesRange(t *testing.T) {
	f, r, backend := newTestFactory(t)
	program := createProgram(t, r, positionProgram())
	require.NoError(t, f.SetShaderProgram(program))
	require.NoError(t, f.SetVertexStreamDescriptions([]metadata.VertexStreamDescription{positionStream(6, 0, metadata.VertexStreamFlags{Dynamic: true})}))
	mesh := triangleMesh(6)
	mesh.Topology = metadata.PrimitiveTopologyLineList
	require.NoError(t, f.AllocGPUResource(mesh))

	assert.ErrorIs(t, f.DrawPrimitives(program, metadata.PrimitiveTopologyLineList, 7), ErrCapacityExceeded)
	require.NoError(t, f.DrawPrimitives(program, metadata.PrimitiveTopologyLineList, 0))
	assert.Empty(t, backend.Draws())

	require.NoError(t, f.DrawPrimitives(program, metadata.PrimitiveTopologyLineList, 4))
	require.Len(t, backend.Draws(), 1)
	assert.Equal(t, uint32(4), backend.Draws()[0].IndexCount)
	assert.Equal(t, metadata.PrimitiveTopologyLineList, backend.Draws()[0].Topology)

	other := positionProgram()
	other.Inputs[0].ComponentCount = 4
	assert.ErrorIs(t, f.DrawPrimitives(other, metadata.PrimitiveTopologyLineList, 4), ErrSignatureMismatch)
}

func TestDrawCallRejectsAnotherProgramWithTheSameSignature(t *testing.T) {
	f, r, backend := newTestFactory(t)
	committed := createProgram(t, r, positionProgram())
	twin := createProgram(t, r, positionProgram())
	require.NoError(t, f.SetShaderProgram(committed))
	require.NoError(t, f.SetVertexStreamDescriptions([]metadata.VertexStreamDescription{positionStream(3, 0, metadata.VertexStreamFlags{})}))
	require.NoError(t, f.AllocGPUResource(triangleMesh(3)))
	calls := backend.TotalCalls()

	require.NoError(t, r.BeginFrame(0))
	assert.NotPanics(t, func() {
		assert.ErrorIs(t, f.DrawCall(twin, triangleMesh(3)), ErrSignatureMismatch)
	})
	assert.Equal(t, calls, backend.TotalCalls())
	assert.Empty(t, backend.Draws())

	require.NoError(t, f.DrawCall(committed, triangleMesh(3)))
	require.NoError(t, r.EndFrame(0))
	assert.Len(t, backend.Draws(), 1)
}
