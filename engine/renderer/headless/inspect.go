package headless

import "github.com/spaghettifunk/kiln/engine/renderer/metadata"

// Calls returns how many times the named device call ran.
func (b *HeadlessBackend) Calls(call string) int {
	return b.calls[call]
}

// TotalCalls returns the number of device calls made so far.
func (b *HeadlessBackend) TotalCalls() int {
	total := 0
	for _, n := range b.calls {
		total += n
	}
	return total
}

func (b *HeadlessBackend) Draws() []DrawRecord {
	return b.draws
}

func (b *HeadlessBackend) LiveBuffers() int {
	return len(b.buffers)
}

func (b *HeadlessBackend) LiveLayouts() int {
	return len(b.layouts)
}

func (b *HeadlessBackend) LiveStates() int {
	return len(b.states)
}

// BufferData returns a copy of the buffer content.
func (b *HeadlessBackend) BufferData(handle metadata.BufferHandle) ([]byte, bool) {
	buf, ok := b.buffers[handle]
	if !ok {
		return nil, false
	}
	return append([]byte(nil), buf.data...), true
}

func (b *HeadlessBackend) BufferDescription(handle metadata.BufferHandle) (metadata.BufferDescription, bool) {
	buf, ok := b.buffers[handle]
	if !ok {
		return metadata.BufferDescription{}, false
	}
	return buf.desc, true
}

func (b *HeadlessBackend) LayoutElements(handle metadata.InputLayoutHandle) ([]metadata.InputElement, bool) {
	lay, ok := b.layouts[handle]
	if !ok {
		return nil, false
	}
	return lay.elements, true
}
