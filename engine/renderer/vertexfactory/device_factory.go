package vertexfactory

import (
	"fmt"

	"github.com/spaghettifunk/kiln/engine/core"
	"github.com/spaghettifunk/kiln/engine/renderer"
	"github.com/spaghettifunk/kiln/engine/renderer/metadata"
)

type streamBuffer struct {
	handle metadata.BufferHandle
	// owned buffers were created by this factory and are always destroyed on release.
	owned bool
}

// DeviceVertexFactory binds stream descriptions to buffers created through a
// renderer, builds the input layout for a shader program and issues draws.
type DeviceVertexFactory struct {
	streamSet

	name     string
	renderer *renderer.Renderer
	logger   *core.Logger

	program *metadata.ShaderProgram

	// external holds buffers bound with BindExternalStreamBuffer, by description index.
	external map[int]metadata.BufferHandle
	buffers  []streamBuffer

	indexBuffer metadata.BufferHandle
	indexCount  uint32
	vertexCount uint32

	layout      *metadata.InputLayout
	ownedLayout bool

	renderState metadata.RenderStateConfig
	states      renderer.RenderStateHandles
}

var _ VertexFactory = (*DeviceVertexFactory)(nil)

func NewDeviceVertexFactory(r *renderer.Renderer, logger *core.Logger) *DeviceVertexFactory {
	name := core.NewResourceName("vertex-factory")
	return &DeviceVertexFactory{
		name:        name,
		renderer:    r,
		logger:      logger.With("factory", name),
		external:    make(map[int]metadata.BufferHandle),
		renderState: metadata.DefaultRenderState(),
	}
}

func (f *DeviceVertexFactory) Name() string {
	return f.name
}

func (f *DeviceVertexFactory) SetVertexStreamDescriptions(descriptions []metadata.VertexStreamDescription) error {
	if err := f.configure(descriptions); err != nil {
		return err
	}
	f.external = make(map[int]metadata.BufferHandle)
	f.layout = nil
	f.ownedLayout = false
	return nil
}

// SetShaderProgram commits the program whose input signature the next
// allocation builds its layout for.
func (f *DeviceVertexFactory) SetShaderProgram(program *metadata.ShaderProgram) error {
	if program == nil {
		return ErrNoShaderProgram
	}
	if f.state == StateAllocated {
		return fmt.Errorf("%w: shader program cannot change while allocated", ErrInvalidState)
	}
	f.program = program
	return nil
}

func (f *DeviceVertexFactory) ShaderProgram() *metadata.ShaderProgram {
	return f.program
}

// SetRenderStateConfig selects the blend, depth and rasterizer state used by draws.
func (f *DeviceVertexFactory) SetRenderStateConfig(cfg metadata.RenderStateConfig) {
	f.renderState = cfg
	if f.state == StateAllocated {
		f.states = f.renderer.RenderStates(cfg)
	}
}

// BindExternalStreamBuffer feeds the stream carrying attribute from a buffer
// created elsewhere. The factory destroys it on release only when the stream
// has the Release flag.
func (f *DeviceVertexFactory) BindExternalStreamBuffer(attribute metadata.VertexAttribute, buffer metadata.BufferHandle) error {
	if f.state != StateConfigured {
		return fmt.Errorf("%w: external buffers are bound between configuration and allocation", ErrInvalidState)
	}
	if buffer == metadata.InvalidHandle {
		return ErrInvalidBuffer
	}
	i := f.find(attribute)
	if i < 0 {
		return fmt.Errorf("%w: %s", ErrStreamNotFound, attribute)
	}
	if err := f.checkExternal(f.descriptions[i], buffer); err != nil {
		return err
	}
	f.external[i] = buffer
	return nil
}

// checkExternal verifies buffer can back the stream d: a live vertex buffer at
// least BufferSize bytes long, dynamic when the stream is.
func (f *DeviceVertexFactory) checkExternal(d metadata.VertexStreamDescription, buffer metadata.BufferHandle) error {
	desc, ok := f.renderer.DescribeBuffer(buffer)
	switch {
	case !ok:
		return fmt.Errorf("%w: buffer %d for %q is not alive", ErrInvalidBuffer, buffer, d.Name)
	case desc.Type != metadata.BufferTypeVertex:
		return fmt.Errorf("%w: buffer %q for %q is not a vertex buffer", ErrInvalidBuffer, desc.Name, d.Name)
	case desc.Size < d.BufferSize:
		return fmt.Errorf("%w: buffer %q has %d bytes, %q needs %d", ErrInvalidBuffer, desc.Name, desc.Size, d.Name, d.BufferSize)
	case d.Flags.Dynamic && desc.Usage != metadata.BufferUsageDynamic:
		return fmt.Errorf("%w: dynamic stream %q needs a dynamic buffer, %q is not", ErrInvalidBuffer, d.Name, desc.Name)
	}
	return nil
}

// SetInputLayout installs a layout built elsewhere, typically by another factory
// sharing the same descriptions and program. The factory never destroys it.
func (f *DeviceVertexFactory) SetInputLayout(layout *metadata.InputLayout) error {
	if f.state == StateUnconfigured {
		return fmt.Errorf("%w: no descriptions", ErrInvalidState)
	}
	if layout == nil || layout.Handle == metadata.InvalidHandle {
		return fmt.Errorf("%w: nil input layout", ErrSignatureMismatch)
	}
	for _, el := range layout.Elements {
		i := f.find(el.Attribute)
		if i < 0 || f.descriptions[i].Slot != el.Slot {
			return fmt.Errorf("%w: layout element %s on slot %d has no matching stream", ErrSignatureMismatch, el.Attribute, el.Slot)
		}
	}
	if f.ownedLayout && f.layout != nil {
		f.renderer.DestroyInputLayout(f.layout.Handle)
	}
	f.layout = layout
	f.ownedLayout = false
	return nil
}

// InputLayout returns the current layout, nil when none is built or bound.
func (f *DeviceVertexFactory) InputLayout() *metadata.InputLayout {
	return f.layout
}

func (f *DeviceVertexFactory) AllocGPUResource(mesh *metadata.Mesh) error {
	switch f.state {
	case StateUnconfigured:
		return ErrNoStreams
	case StateAllocated:
		return fmt.Errorf("%w: already allocated", ErrInvalidState)
	}
	if f.program == nil {
		return ErrNoShaderProgram
	}
	if err := validateMesh(f.descriptions, f.external, mesh); err != nil {
		return err
	}
	for i, h := range f.external {
		if err := f.checkExternal(f.descriptions[i], h); err != nil {
			return err
		}
	}
	var elements []metadata.InputElement
	if f.layout == nil {
		var err error
		if elements, err = MatchInputLayout(f.descriptions, f.program); err != nil {
			return err
		}
	}

	// Everything below is device work; failures there are fatal.
	f.buffers = make([]streamBuffer, len(f.descriptions))
	for i, d := range f.descriptions {
		if h, ok := f.external[i]; ok {
			f.buffers[i] = streamBuffer{handle: h}
			continue
		}
		usage := metadata.BufferUsageImmutable
		if d.Flags.Dynamic {
			usage = metadata.BufferUsageDynamic
		}
		desc := metadata.BufferDescription{
			Name:  fmt.Sprintf("%s.%s", f.name, d.Name),
			Type:  metadata.BufferTypeVertex,
			Usage: usage,
			Size:  d.BufferSize,
		}
		f.buffers[i] = streamBuffer{
			handle: f.renderer.CreateBuffer(desc, mesh.Stream(d.SourceIndex).Data),
			owned:  true,
		}
	}

	indices := mesh.IndexData()
	f.indexBuffer = f.renderer.CreateBuffer(metadata.BufferDescription{
		Name: f.name + ".indices",
		Type: metadata.BufferTypeIndex,
		Size: uint32(len(indices)),
	}, indices)
	f.indexCount = mesh.IndexCount()
	f.vertexCount = mesh.VertexCount

	if f.layout == nil {
		f.layout = &metadata.InputLayout{
			Handle:   f.renderer.CreateInputLayout(elements, f.program),
			Elements: elements,
		}
		f.ownedLayout = true
	}
	f.states = f.renderer.RenderStates(f.renderState)

	f.state = StateAllocated
	f.logger.Debug("gpu resources allocated", "mesh", mesh.Name, "streams", len(f.buffers), "indices", f.indexCount)
	return nil
}

func (f *DeviceVertexFactory) ReleaseGPUResource() {
	if f.state != StateAllocated {
		return
	}
	for i, b := range f.buffers {
		if b.owned {
			f.renderer.DestroyBuffer(b.handle)
			continue
		}
		if f.descriptions[i].Flags.Release {
			f.renderer.DestroyBuffer(b.handle)
			delete(f.external, i)
		}
	}
	f.buffers = nil

	f.renderer.DestroyBuffer(f.indexBuffer)
	f.indexBuffer = metadata.InvalidHandle
	f.indexCount = 0
	f.vertexCount = 0

	if f.ownedLayout {
		f.renderer.DestroyInputLayout(f.layout.Handle)
		f.layout = nil
		f.ownedLayout = false
	}
	f.states = renderer.RenderStateHandles{}

	f.state = StateConfigured
	f.logger.Debug("gpu resources released")
}

func (f *DeviceVertexFactory) UpdateVertexStreamBuffer(attribute metadata.VertexAttribute, data []byte, sizeBytes uint32) error {
	i := f.find(attribute)
	if f.state != StateAllocated || i < 0 {
		return fmt.Errorf("%w: %s", ErrStreamNotFound, attribute)
	}
	d := f.descriptions[i]
	if sizeBytes > d.BufferSize {
		return fmt.Errorf("%w: %d bytes into %q of %d bytes", ErrCapacityExceeded, sizeBytes, d.Name, d.BufferSize)
	}
	if !d.Flags.Dynamic {
		return fmt.Errorf("%w: %q", ErrNotDynamic, d.Name)
	}
	if uint32(len(data)) < sizeBytes {
		return fmt.Errorf("%w: %d bytes given, %d requested", ErrSizeMismatch, len(data), sizeBytes)
	}
	if sizeBytes == 0 {
		return nil
	}
	f.renderer.WriteBuffer(f.buffers[i].handle, 0, data[:sizeBytes])
	return nil
}

func (f *DeviceVertexFactory) SetupVertexStreams() error {
	if f.state != StateAllocated {
		return fmt.Errorf("%w: streams are not allocated", ErrInvalidState)
	}
	for i, d := range f.descriptions {
		f.renderer.SetVertexBuffer(d.Slot, f.buffers[i].handle, d.EffectiveStride(), 0)
	}
	return nil
}

// SetRenderState applies the shared blend, depth and rasterizer states.
func (f *DeviceVertexFactory) SetRenderState() error {
	if f.state != StateAllocated {
		return fmt.Errorf("%w: render states are acquired on allocation", ErrInvalidState)
	}
	f.renderer.ApplyRenderStates(f.states)
	return nil
}

// DrawCall draws mesh with program. mesh must have the vertex and index counts
// the factory was allocated with.
func (f *DeviceVertexFactory) DrawCall(program *metadata.ShaderProgram, mesh *metadata.Mesh) error {
	if f.state != StateAllocated {
		return fmt.Errorf("%w: draw requires allocated resources, factory is %s", ErrInvalidState, f.state)
	}
	if mesh == nil {
		return fmt.Errorf("%w: nil mesh", ErrSizeMismatch)
	}
	if mesh.VertexCount != f.vertexCount || mesh.IndexCount() != f.indexCount {
		return fmt.Errorf("%w: mesh %q has %d vertices and %d indices, factory holds %d and %d",
			ErrSizeMismatch, mesh.Name, mesh.VertexCount, mesh.IndexCount(), f.vertexCount, f.indexCount)
	}
	return f.DrawPrimitives(program, mesh.Topology, f.indexCount)
}

// DrawPrimitives draws the first indexCount indices of the allocated index buffer.
func (f *DeviceVertexFactory) DrawPrimitives(program *metadata.ShaderProgram, topology metadata.PrimitiveTopology, indexCount uint32) error {
	if f.state != StateAllocated {
		return fmt.Errorf("%w: draw requires allocated resources, factory is %s", ErrInvalidState, f.state)
	}
	if program == nil {
		return ErrNoShaderProgram
	}
	if program != f.program {
		return fmt.Errorf("%w: program %q is not the one the layout was built for", ErrSignatureMismatch, program.Name)
	}
	if indexCount > f.indexCount {
		return fmt.Errorf("%w: %d indices requested, %d allocated", ErrCapacityExceeded, indexCount, f.indexCount)
	}
	if indexCount == 0 {
		return nil
	}

	f.renderer.SetInputLayout(f.layout.Handle)
	if err := f.SetupVertexStreams(); err != nil {
		return err
	}
	if err := f.SetRenderState(); err != nil {
		return err
	}
	f.renderer.UseShader(program)
	f.renderer.SetIndexBuffer(f.indexBuffer)
	f.renderer.DrawIndexed(topology, indexCount, 0, 0)
	return nil
}
