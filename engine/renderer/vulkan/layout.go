package vulkan

import (
	"sort"

	vk "github.com/goki/vulkan"

	"github.com/spaghettifunk/kiln/engine/renderer/metadata"
)

/**
 * @brief The vertex input state derived from an input layout.
 */
type VulkanInputLayout struct {
	Elements   []metadata.InputElement
	Program    uint32
	Bindings   []vk.VertexInputBindingDescription
	Attributes []vk.VertexInputAttributeDescription
}

var float32Formats = [...]vk.Format{
	vk.FormatR32Sfloat,
	vk.FormatR32g32Sfloat,
	vk.FormatR32g32b32Sfloat,
	vk.FormatR32g32b32a32Sfloat,
}

var unormFormats = [...]vk.Format{
	vk.FormatR8Unorm,
	vk.FormatR8g8Unorm,
	vk.FormatR8g8b8Unorm,
	vk.FormatR8g8b8a8Unorm,
}

var uintFormats = [...]vk.Format{
	vk.FormatR8Uint,
	vk.FormatR8g8Uint,
	vk.FormatR8g8b8Uint,
	vk.FormatR8g8b8a8Uint,
}

// vertexFormat maps an element onto a Vulkan attribute format.
func vertexFormat(el metadata.InputElement) (vk.Format, bool) {
	if el.ComponentCount < 1 || el.ComponentCount > 4 {
		return vk.FormatUndefined, false
	}
	i := el.ComponentCount - 1
	switch el.ElementType {
	case metadata.VertexElementFloat32:
		return float32Formats[i], true
	case metadata.VertexElementUint8:
		if el.Normalized {
			return unormFormats[i], true
		}
		return uintFormats[i], true
	}
	return vk.FormatUndefined, false
}

// NewInputLayout builds one binding per slot and one attribute per element. Every
// program input must be fed by exactly one element.
func NewInputLayout(elements []metadata.InputElement, program *metadata.ShaderProgram) (*VulkanInputLayout, metadata.Result) {
	if program == nil || len(elements) == 0 {
		return nil, metadata.ResultErrorInvalidArgument
	}
	for _, in := range program.Inputs {
		fed := 0
		for _, el := range elements {
			if el.Location == in.Location {
				fed++
			}
		}
		if fed != 1 {
			return nil, metadata.ResultErrorBindingMismatch
		}
	}

	layout := &VulkanInputLayout{
		Elements: append([]metadata.InputElement(nil), elements...),
		Program:  program.ID,
	}
	strides := make(map[uint32]uint32)
	for _, el := range elements {
		format, ok := vertexFormat(el)
		if !ok {
			return nil, metadata.ResultErrorInvalidArgument
		}
		if prev, seen := strides[el.Slot]; seen && prev != el.Stride {
			return nil, metadata.ResultErrorInvalidArgument
		}
		strides[el.Slot] = el.Stride
		layout.Attributes = append(layout.Attributes, vk.VertexInputAttributeDescription{
			Location: el.Location,
			Binding:  el.Slot,
			Format:   format,
			Offset:   el.Offset,
		})
	}
	for slot, stride := range strides {
		layout.Bindings = append(layout.Bindings, vk.VertexInputBindingDescription{
			Binding:   slot,
			Stride:    stride,
			InputRate: vk.VertexInputRateVertex, // Move to next data entry for each vertex.
		})
	}
	sort.Slice(layout.Bindings, func(i, j int) bool {
		return layout.Bindings[i].Binding < layout.Bindings[j].Binding
	})
	return layout, metadata.ResultSuccess
}

// Slots lists the binding slots a draw with this layout reads from.
func (l *VulkanInputLayout) Slots() []uint32 {
	slots := make([]uint32, len(l.Bindings))
	for i, b := range l.Bindings {
		slots[i] = b.Binding
	}
	return slots
}
