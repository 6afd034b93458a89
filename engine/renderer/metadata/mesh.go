package metadata

import (
	"encoding/binary"
	"math"
)

/** @brief How the index list is assembled into primitives. */
type PrimitiveTopology uint8

const (
	PrimitiveTopologyTriangleList PrimitiveTopology = iota
	PrimitiveTopologyLineList
)

func (t PrimitiveTopology) String() string {
	if t == PrimitiveTopologyLineList {
		return "line_list"
	}
	return "triangle_list"
}

/** @brief One CPU-side vertex stream of a mesh. */
type MeshStream struct {
	Attribute VertexAttribute
	Data      []byte
}

/**
 * @brief CPU-side mesh data handed to a vertex factory.
 */
type Mesh struct {
	Name        string
	VertexCount uint32
	/** @brief Streams, addressed by VertexStreamDescription.SourceIndex. */
	Streams []MeshStream
	/** @brief Indices. When empty a sequential list 0..VertexCount-1 is used. */
	Indices  []uint32
	Topology PrimitiveTopology
}

// Stream returns the stream at index, or nil when out of range.
func (m *Mesh) Stream(index uint32) *MeshStream {
	if int(index) >= len(m.Streams) {
		return nil
	}
	return &m.Streams[index]
}

// IndexCount is the number of indices drawn for this mesh.
func (m *Mesh) IndexCount() uint32 {
	if len(m.Indices) == 0 {
		return m.VertexCount
	}
	return uint32(len(m.Indices))
}

// MAX_INDEX_COUNT is the largest index count whose byte size fits a uint32 buffer size.
const MAX_INDEX_COUNT = math.MaxUint32 / INDEX_SIZE

// INDEX_SIZE is the size in bytes of one index.
const INDEX_SIZE = 4

// IndexData returns the indices as little endian bytes, generating them if needed.
// Callers check IndexCount against MAX_INDEX_COUNT first.
func (m *Mesh) IndexData() []byte {
	count := uint64(m.IndexCount())
	out := make([]byte, INDEX_SIZE*count)
	for i := uint64(0); i < count; i++ {
		v := uint32(i)
		if len(m.Indices) > 0 {
			v = m.Indices[i]
		}
		binary.LittleEndian.PutUint32(out[INDEX_SIZE*i:], v)
	}
	return out
}

// Float32Bytes packs floats as little endian bytes, the layout GPU buffers expect.
func Float32Bytes(values ...float32) []byte {
	out := make([]byte, 4*len(values))
	for i, v := range values {
		binary.LittleEndian.PutUint32(out[4*i:], math.Float32bits(v))
	}
	return out
}
