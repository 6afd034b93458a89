// Package canvas batches debug lines into dynamic vertex streams and draws
// them with a single call per flush.
package canvas

import (
	"encoding/binary"
	"errors"
	"fmt"
	gomath "math"

	"github.com/spaghettifunk/kiln/engine/core"
	"github.com/spaghettifunk/kiln/engine/math"
	"github.com/spaghettifunk/kiln/engine/renderer"
	"github.com/spaghettifunk/kiln/engine/renderer/metadata"
	"github.com/spaghettifunk/kiln/engine/renderer/vertexfactory"
)

const (
	POSITION_SLOT uint32 = 0
	COLOR_SLOT    uint32 = 1

	positionSize = 3 * 4
	colorSize    = 4
)

var ErrZeroCapacity = errors.New("line canvas capacity must be greater than zero")

// StreamUpdater rewrites a dynamic vertex stream.
type StreamUpdater interface {
	UpdateVertexStreamBuffer(attribute metadata.VertexAttribute, data []byte, sizeBytes uint32) error
}

// Drawer draws the first indexCount indices of the bound streams.
type Drawer interface {
	DrawPrimitives(program *metadata.ShaderProgram, topology metadata.PrimitiveTopology, indexCount uint32) error
}

// Target is what a canvas needs from its vertex factory.
type Target interface {
	StreamUpdater
	Drawer
}

// Descriptions returns the stream layout of a canvas holding capacity lines:
// float3 positions on slot 0 and normalized rgba8 colours on slot 1.
func Descriptions(capacity uint32) []metadata.VertexStreamDescription {
	vertices := 2 * capacity
	return []metadata.VertexStreamDescription{
		{
			Attribute:      metadata.VertexAttributePosition,
			Name:           "canvas.position",
			ElementType:    metadata.VertexElementFloat32,
			SourceIndex:    0,
			ComponentCount: 3,
			BufferSize:     positionSize * vertices,
			Slot:           POSITION_SLOT,
			Flags:          metadata.VertexStreamFlags{Dynamic: true},
		},
		{
			Attribute:      metadata.VertexAttributeColor,
			Name:           "canvas.color",
			ElementType:    metadata.VertexElementUint8,
			SourceIndex:    1,
			ComponentCount: 4,
			BufferSize:     colorSize * vertices,
			Slot:           COLOR_SLOT,
			Flags:          metadata.VertexStreamFlags{Dynamic: true, Normalized: true},
		},
	}
}

// RenderState draws lines over the scene without writing depth.
func RenderState() metadata.RenderStateConfig {
	return metadata.RenderStateConfig{
		Blend:      metadata.BlendStateAlpha,
		Depth:      metadata.DepthStateReadOnly,
		Rasterizer: metadata.RasterizerStateNoCull,
	}
}

/**
 * @brief A fixed capacity batch of coloured lines. Lines added past the
 * capacity are dropped and counted until the next flush.
 */
type LineCanvas struct {
	name     string
	target   Target
	owned    *vertexfactory.DeviceVertexFactory
	logger   *core.Logger
	capacity uint32

	positions []byte
	colors    []byte
	lines     uint32

	dropped      uint64
	droppedFrame uint64
}

// NewLineCanvas creates a canvas that draws through target.
func NewLineCanvas(target Target, capacity uint32, logger *core.Logger) (*LineCanvas, error) {
	if capacity == 0 {
		return nil, ErrZeroCapacity
	}
	name := core.NewResourceName("line-canvas")
	return &LineCanvas{
		name:      name,
		target:    target,
		logger:    logger.With("canvas", name),
		capacity:  capacity,
		positions: make([]byte, 0, positionSize*2*capacity),
		colors:    make([]byte, 0, colorSize*2*capacity),
	}, nil
}

// NewDeviceLineCanvas allocates a vertex factory on r for program and builds a
// canvas on top of it. The canvas owns the factory and frees it on Release.
func NewDeviceLineCanvas(r *renderer.Renderer, program *metadata.ShaderProgram, capacity uint32, logger *core.Logger) (*LineCanvas, error) {
	if capacity == 0 {
		return nil, ErrZeroCapacity
	}
	factory := vertexfactory.NewDeviceVertexFactory(r, logger)
	if err := factory.SetVertexStreamDescriptions(Descriptions(capacity)); err != nil {
		return nil, err
	}
	if err := factory.SetShaderProgram(program); err != nil {
		return nil, err
	}
	factory.SetRenderStateConfig(RenderState())

	vertices := 2 * capacity
	mesh := &metadata.Mesh{
		Name:        "line-canvas",
		VertexCount: vertices,
		Streams: []metadata.MeshStream{
			{Attribute: metadata.VertexAttributePosition, Data: make([]byte, positionSize*vertices)},
			{Attribute: metadata.VertexAttributeColor, Data: make([]byte, colorSize*vertices)},
		},
		Topology: metadata.PrimitiveTopologyLineList,
	}
	if err := factory.AllocGPUResource(mesh); err != nil {
		return nil, fmt.Errorf("failed to allocate line canvas: %w", err)
	}

	c, err := NewLineCanvas(factory, capacity, logger)
	if err != nil {
		factory.ReleaseGPUResource()
		return nil, err
	}
	c.owned = factory
	return c, nil
}

func (c *LineCanvas) Name() string {
	return c.name
}

func (c *LineCanvas) Capacity() uint32 {
	return c.capacity
}

// Lines is the number of lines waiting for the next flush.
func (c *LineCanvas) Lines() uint32 {
	return c.lines
}

// Dropped is the number of lines dropped since the canvas was created.
func (c *LineCanvas) Dropped() uint64 {
	return c.dropped
}

// AddLine queues a line. It returns false when the canvas is full.
func (c *LineCanvas) AddLine(from, to math.Vec3, colour math.Vec4) bool {
	if c.lines >= c.capacity {
		c.dropped++
		c.droppedFrame++
		return false
	}
	rgba := packColor(colour)
	c.positions = appendVec3(c.positions, from)
	c.positions = appendVec3(c.positions, to)
	c.colors = append(c.colors, rgba[:]...)
	c.colors = append(c.colors, rgba[:]...)
	c.lines++
	return true
}

// AddBox queues the twelve edges of the axis aligned box spanning min and max.
func (c *LineCanvas) AddBox(min, max math.Vec3, colour math.Vec4) {
	corners := [8]math.Vec3{
		{X: min.X, Y: min.Y, Z: min.Z},
		{X: max.X, Y: min.Y, Z: min.Z},
		{X: max.X, Y: max.Y, Z: min.Z},
		{X: min.X, Y: max.Y, Z: min.Z},
		{X: min.X, Y: min.Y, Z: max.Z},
		{X: max.X, Y: min.Y, Z: max.Z},
		{X: max.X, Y: max.Y, Z: max.Z},
		{X: min.X, Y: max.Y, Z: max.Z},
	}
	for i := 0; i < 4; i++ {
		c.AddLine(corners[i], corners[(i+1)%4], colour)
		c.AddLine(corners[4+i], corners[4+(i+1)%4], colour)
		c.AddLine(corners[i], corners[4+i], colour)
	}
}

// AddAxes queues the x, y and z axes at origin in red, green and blue.
func (c *LineCanvas) AddAxes(origin math.Vec3, length float32) {
	c.AddLine(origin, origin.Add(math.NewVec3(length, 0, 0)), math.NewVec4(1, 0, 0, 1))
	c.AddLine(origin, origin.Add(math.NewVec3(0, length, 0)), math.NewVec4(0, 1, 0, 1))
	c.AddLine(origin, origin.Add(math.NewVec3(0, 0, length)), math.NewVec4(0, 0, 1, 1))
}

// Clear drops every queued line.
func (c *LineCanvas) Clear() {
	c.positions = c.positions[:0]
	c.colors = c.colors[:0]
	c.lines = 0
	c.droppedFrame = 0
}

/**
 * @brief Uploads the queued lines and draws them with program, then clears the
 * canvas. Nothing is drawn when the canvas is empty.
 */
func (c *LineCanvas) Flush(program *metadata.ShaderProgram) error {
	if c.droppedFrame > 0 {
		c.logger.Warn("line canvas overflow", "dropped", c.droppedFrame, "capacity", c.capacity)
	}
	if c.lines == 0 {
		c.Clear()
		return nil
	}
	if err := c.target.UpdateVertexStreamBuffer(metadata.VertexAttributePosition, c.positions, uint32(len(c.positions))); err != nil {
		return err
	}
	if err := c.target.UpdateVertexStreamBuffer(metadata.VertexAttributeColor, c.colors, uint32(len(c.colors))); err != nil {
		return err
	}
	if err := c.target.DrawPrimitives(program, metadata.PrimitiveTopologyLineList, 2*c.lines); err != nil {
		return err
	}
	c.Clear()
	return nil
}

// Release frees the vertex factory created by NewDeviceLineCanvas.
func (c *LineCanvas) Release() {
	if c.owned != nil {
		c.owned.ReleaseGPUResource()
		c.owned = nil
	}
	c.Clear()
}

func appendVec3(dst []byte, v math.Vec3) []byte {
	dst = binary.LittleEndian.AppendUint32(dst, gomath.Float32bits(v.X))
	dst = binary.LittleEndian.AppendUint32(dst, gomath.Float32bits(v.Y))
	return binary.LittleEndian.AppendUint32(dst, gomath.Float32bits(v.Z))
}

func packColor(c math.Vec4) [4]byte {
	return [4]byte{unorm8(c.X), unorm8(c.Y), unorm8(c.Z), unorm8(c.W)}
}

func unorm8(f float32) byte {
	return byte(math.Clamp(f, 0, 1)*255 + 0.5)
}
