// Package vertexfactory describes per-vertex attribute streams, allocates the
// GPU buffers backing them and binds them for draw calls.
package vertexfactory

import (
	"errors"
	"fmt"

	"github.com/spaghettifunk/kiln/engine/renderer/metadata"
)

var (
	ErrInvalidState       = errors.New("vertex factory: invalid state")
	ErrNoStreams          = errors.New("vertex factory: no stream descriptions")
	ErrInvalidDescription = errors.New("vertex factory: invalid stream description")
	ErrDuplicateSlot      = errors.New("vertex factory: duplicate binding slot")
	ErrDuplicateAttribute = errors.New("vertex factory: duplicate attribute")
	ErrSizeMismatch       = errors.New("vertex factory: mesh data does not match stream sizes")
	ErrStreamNotFound     = errors.New("vertex factory: no allocated stream for attribute")
	ErrNotDynamic         = errors.New("vertex factory: stream is not dynamic")
	ErrCapacityExceeded   = errors.New("vertex factory: data exceeds stream buffer size")
	ErrNoShaderProgram    = errors.New("vertex factory: no shader program")
	ErrSignatureMismatch  = errors.New("vertex factory: streams do not match shader input signature")
	ErrInvalidBuffer      = errors.New("vertex factory: invalid buffer handle")
)

// State is the lifecycle position of a factory.
type State uint8

const (
	// No descriptions set.
	StateUnconfigured State = iota
	// Descriptions set, no GPU resources.
	StateConfigured
	// GPU resources created and ready to draw.
	StateAllocated
)

func (s State) String() string {
	switch s {
	case StateUnconfigured:
		return "unconfigured"
	case StateConfigured:
		return "configured"
	case StateAllocated:
		return "allocated"
	}
	return fmt.Sprintf("state(%d)", uint8(s))
}

// VertexFactory owns a set of vertex stream descriptions and the GPU buffers
// created from them.
type VertexFactory interface {
	// SetVertexStreamDescriptions replaces the description set. The factory keeps
	// its own copy. It fails while GPU resources are allocated.
	SetVertexStreamDescriptions(descriptions []metadata.VertexStreamDescription) error
	VertexStreamDescriptions() []metadata.VertexStreamDescription
	// AllocGPUResource creates one buffer per description and one index buffer
	// from mesh. Nothing is created when it fails.
	AllocGPUResource(mesh *metadata.Mesh) error
	// ReleaseGPUResource frees what AllocGPUResource created. It is a no-op
	// when nothing is allocated.
	ReleaseGPUResource()
	// UpdateVertexStreamBuffer overwrites the first sizeBytes of the dynamic
	// stream carrying attribute.
	UpdateVertexStreamBuffer(attribute metadata.VertexAttribute, data []byte, sizeBytes uint32) error
	// SetupVertexStreams binds every stream buffer to its slot, in description order.
	SetupVertexStreams() error

	IsGPUSkin() bool
	IsMorph() bool
	HasCustomData() bool
	SetGPUSkin(enabled bool)
	SetMorph(enabled bool)
	SetCustomData(enabled bool)

	State() State
}

// streamSet holds the backend independent part of a factory: the descriptions,
// the capability flags and the lifecycle state.
type streamSet struct {
	descriptions []metadata.VertexStreamDescription
	state        State

	gpuSkin    bool
	morph      bool
	customData bool
}

func (s *streamSet) VertexStreamDescriptions() []metadata.VertexStreamDescription {
	return append([]metadata.VertexStreamDescription(nil), s.descriptions...)
}

func (s *streamSet) State() State {
	return s.state
}

func (s *streamSet) IsGPUSkin() bool {
	return s.gpuSkin
}

func (s *streamSet) IsMorph() bool {
	return s.morph
}

func (s *streamSet) HasCustomData() bool {
	return s.customData
}

func (s *streamSet) SetGPUSkin(enabled bool) {
	s.gpuSkin = enabled
}

func (s *streamSet) SetMorph(enabled bool) {
	s.morph = enabled
}

func (s *streamSet) SetCustomData(enabled bool) {
	s.customData = enabled
}

// configure validates descriptions and installs a copy of them.
func (s *streamSet) configure(descriptions []metadata.VertexStreamDescription) error {
	if s.state == StateAllocated {
		return fmt.Errorf("%w: descriptions cannot change while allocated", ErrInvalidState)
	}
	if err := validateDescriptions(descriptions); err != nil {
		return err
	}

	s.descriptions = append([]metadata.VertexStreamDescription(nil), descriptions...)
	if len(s.descriptions) == 0 {
		s.state = StateUnconfigured
	} else {
		s.state = StateConfigured
	}
	s.deriveCapabilities()
	return nil
}

func (s *streamSet) deriveCapabilities() {
	var indices, weights bool
	s.morph = false
	s.customData = false
	for _, d := range s.descriptions {
		switch {
		case d.Attribute == metadata.VertexAttributeBlendIndices:
			indices = true
		case d.Attribute == metadata.VertexAttributeBlendWeights:
			weights = true
		case d.Attribute.IsMorph():
			s.morph = true
		case d.Attribute.IsCustom():
			s.customData = true
		}
	}
	s.gpuSkin = indices && weights
}

// find returns the index of the description carrying attribute, or -1.
func (s *streamSet) find(attribute metadata.VertexAttribute) int {
	for i := range s.descriptions {
		if s.descriptions[i].Attribute == attribute {
			return i
		}
	}
	return -1
}

func validateDescriptions(descriptions []metadata.VertexStreamDescription) error {
	slots := make(map[uint32]string, len(descriptions))
	attributes := make(map[metadata.VertexAttribute]string, len(descriptions))
	for _, d := range descriptions {
		if err := d.Validate(); err != nil {
			return fmt.Errorf("%w: %s", ErrInvalidDescription, err)
		}
		if other, ok := slots[d.Slot]; ok {
			return fmt.Errorf("%w: slot %d used by %q and %q", ErrDuplicateSlot, d.Slot, other, d.Name)
		}
		slots[d.Slot] = d.Name
		if other, ok := attributes[d.Attribute]; ok {
			return fmt.Errorf("%w: %s carried by %q and %q", ErrDuplicateAttribute, d.Attribute, other, d.Name)
		}
		attributes[d.Attribute] = d.Name
	}
	return nil
}

// validateMesh checks mesh against the descriptions. Streams listed in external
// come from buffers bound elsewhere and need no mesh data.
func validateMesh(descriptions []metadata.VertexStreamDescription, external map[int]metadata.BufferHandle, mesh *metadata.Mesh) error {
	if mesh == nil {
		return fmt.Errorf("%w: nil mesh", ErrSizeMismatch)
	}
	if mesh.VertexCount == 0 {
		return fmt.Errorf("%w: mesh %q has no vertices", ErrSizeMismatch, mesh.Name)
	}
	if n := mesh.IndexCount(); n > metadata.MAX_INDEX_COUNT {
		return fmt.Errorf("%w: mesh %q has %d indices, at most %d fit an index buffer",
			ErrSizeMismatch, mesh.Name, n, uint32(metadata.MAX_INDEX_COUNT))
	}
	for i, d := range descriptions {
		// a padded stride sizes the buffer by stride, tightly packed streams by element size
		if want := uint64(d.EffectiveStride()) * uint64(mesh.VertexCount); uint64(d.BufferSize) != want {
			return fmt.Errorf("%w: stream %q declares %d bytes, %d vertices need %d",
				ErrSizeMismatch, d.Name, d.BufferSize, mesh.VertexCount, want)
		}
		if _, ok := external[i]; ok {
			continue
		}
		stream := mesh.Stream(d.SourceIndex)
		if stream == nil {
			return fmt.Errorf("%w: mesh %q has no source stream %d for %q", ErrSizeMismatch, mesh.Name, d.SourceIndex, d.Name)
		}
		if stream.Attribute != d.Attribute {
			return fmt.Errorf("%w: source stream %d carries %s, %q expects %s",
				ErrSizeMismatch, d.SourceIndex, stream.Attribute, d.Name, d.Attribute)
		}
		if uint32(len(stream.Data)) != d.BufferSize {
			return fmt.Errorf("%w: stream %q has %d bytes, expected %d",
				ErrSizeMismatch, d.Name, len(stream.Data), d.BufferSize)
		}
	}
	for _, idx := range mesh.Indices {
		if idx >= mesh.VertexCount {
			return fmt.Errorf("%w: index %d out of range for %d vertices", ErrSizeMismatch, idx, mesh.VertexCount)
		}
	}
	return nil
}

// MatchInputLayout builds the input layout feeding program from descriptions.
// Every shader input must be fed by the stream of the same attribute, with the
// same element type and component count, or by a normalized uint8 stream when
// the shader reads floats.
func MatchInputLayout(descriptions []metadata.VertexStreamDescription, program *metadata.ShaderProgram) ([]metadata.InputElement, error) {
	if program == nil {
		return nil, ErrNoShaderProgram
	}
	elements := make([]metadata.InputElement, 0, len(program.Inputs))
	fed := make(map[uint32]bool, len(program.Inputs))
	for _, d := range descriptions {
		in, ok := program.Input(d.Attribute)
		if !ok {
			continue
		}
		if !compatible(d, in) {
			return nil, fmt.Errorf("%w: stream %q (%s x%d) cannot feed input %q (%s x%d)",
				ErrSignatureMismatch, d.Name, d.ElementType, d.ComponentCount, in.Name, in.ElementType, in.ComponentCount)
		}
		elements = append(elements, metadata.InputElement{
			Attribute:      d.Attribute,
			Slot:           d.Slot,
			Location:       in.Location,
			ElementType:    d.ElementType,
			ComponentCount: d.ComponentCount,
			Normalized:     d.Flags.Normalized,
			Stride:         d.EffectiveStride(),
		})
		fed[in.Location] = true
	}
	for _, in := range program.Inputs {
		if !fed[in.Location] {
			return nil, fmt.Errorf("%w: no stream feeds input %q (%s)", ErrSignatureMismatch, in.Name, in.Attribute)
		}
	}
	return elements, nil
}

func compatible(d metadata.VertexStreamDescription, in metadata.ShaderInput) bool {
	if d.ComponentCount != in.ComponentCount {
		return false
	}
	if d.ElementType == in.ElementType {
		return true
	}
	return d.ElementType == metadata.VertexElementUint8 && d.Flags.Normalized && in.ElementType == metadata.VertexElementFloat32
}
