package metadata

import "fmt"

/** @brief Identifies what a vertex stream carries. */
type VertexAttribute uint8

const (
	VertexAttributePosition VertexAttribute = iota
	VertexAttributeNormal
	VertexAttributeTangent
	VertexAttributeColor
	VertexAttributeTexCoord0
	VertexAttributeTexCoord1
	VertexAttributeBlendIndices
	VertexAttributeBlendWeights
	VertexAttributeMorphPosition
	VertexAttributeMorphNormal
	VertexAttributeCustom0
	VertexAttributeCustom1
	VertexAttributeCustom2
	VertexAttributeCustom3

	VertexAttributeMax
)

var vertexAttributeNames = [VertexAttributeMax]string{
	"position",
	"normal",
	"tangent",
	"color",
	"texcoord0",
	"texcoord1",
	"blend_indices",
	"blend_weights",
	"morph_position",
	"morph_normal",
	"custom0",
	"custom1",
	"custom2",
	"custom3",
}

func (a VertexAttribute) String() string {
	if a < VertexAttributeMax {
		return vertexAttributeNames[a]
	}
	return fmt.Sprintf("attribute(%d)", uint8(a))
}

// IsMorph reports whether the attribute carries a morph target delta.
func (a VertexAttribute) IsMorph() bool {
	return a == VertexAttributeMorphPosition || a == VertexAttributeMorphNormal
}

// IsCustom reports whether the attribute is one of the free custom channels.
func (a VertexAttribute) IsCustom() bool {
	return a >= VertexAttributeCustom0 && a <= VertexAttributeCustom3
}

/** @brief The data type of a single component of a vertex element. */
type VertexElementType uint8

const (
	VertexElementFloat32 VertexElementType = iota
	VertexElementUint8
)

// Size returns the size in bytes of one component.
func (t VertexElementType) Size() uint32 {
	switch t {
	case VertexElementFloat32:
		return 4
	case VertexElementUint8:
		return 1
	}
	return 0
}

func (t VertexElementType) String() string {
	switch t {
	case VertexElementFloat32:
		return "float32"
	case VertexElementUint8:
		return "uint8"
	}
	return fmt.Sprintf("element(%d)", uint8(t))
}

/**
 * @brief Per-stream behaviour switches.
 */
type VertexStreamFlags struct {
	/** @brief Integer data is scaled to [0, 1] when read by the shader. */
	Normalized bool
	/** @brief The factory destroys the stream buffer on release, even when it did not create it. */
	Release bool
	/** @brief The stream buffer can be rewritten by the CPU after creation. */
	Dynamic bool
}

/**
 * @brief Describes one CPU-side vertex stream and how it is bound on the GPU.
 */
type VertexStreamDescription struct {
	/** @brief What the stream carries. */
	Attribute VertexAttribute
	/** @brief Human readable name, used in diagnostics. */
	Name string
	/** @brief Type of a single component. */
	ElementType VertexElementType
	/** @brief Index into the mesh stream list the data is read from. */
	SourceIndex uint32
	/** @brief Number of components per vertex, 1 to 4. */
	ComponentCount uint32
	/** @brief Total size of the GPU buffer in bytes. */
	BufferSize uint32
	/** @brief The vertex buffer binding slot. */
	Slot uint32
	/** @brief Distance in bytes between two vertices. 0 means tightly packed. */
	Stride uint32
	Flags  VertexStreamFlags
}

// ElementSize is the size in bytes of one vertex worth of data in this stream.
func (d VertexStreamDescription) ElementSize() uint32 {
	return d.ComponentCount * d.ElementType.Size()
}

// EffectiveStride returns Stride, or ElementSize when the stream is tightly packed.
func (d VertexStreamDescription) EffectiveStride() uint32 {
	if d.Stride == 0 {
		return d.ElementSize()
	}
	return d.Stride
}

// VertexCapacity is the number of vertices the declared buffer holds.
func (d VertexStreamDescription) VertexCapacity() uint32 {
	stride := d.EffectiveStride()
	if stride == 0 {
		return 0
	}
	return d.BufferSize / stride
}

// Validate checks the description on its own, without a mesh.
func (d VertexStreamDescription) Validate() error {
	if d.Attribute >= VertexAttributeMax {
		return fmt.Errorf("stream %q: unknown attribute %d", d.Name, d.Attribute)
	}
	if d.ElementType.Size() == 0 {
		return fmt.Errorf("stream %q: unknown element type %d", d.Name, d.ElementType)
	}
	if d.ComponentCount < 1 || d.ComponentCount > 4 {
		return fmt.Errorf("stream %q: component count %d out of range [1, 4]", d.Name, d.ComponentCount)
	}
	if d.BufferSize == 0 {
		return fmt.Errorf("stream %q: buffer size is zero", d.Name)
	}
	if d.Stride != 0 && d.Stride < d.ElementSize() {
		return fmt.Errorf("stream %q: stride %d smaller than element size %d", d.Name, d.Stride, d.ElementSize())
	}
	if d.BufferSize%d.EffectiveStride() != 0 {
		return fmt.Errorf("stream %q: buffer size %d is not a multiple of stride %d", d.Name, d.BufferSize, d.EffectiveStride())
	}
	return nil
}
