package metadata

import "fmt"

/** @brief Opaque device handle to a buffer. 0 is never a valid handle. */
type BufferHandle uint64

/** @brief Opaque device handle to an input layout. */
type InputLayoutHandle uint64

/** @brief Opaque device handle to a blend, depth or rasterizer state object. */
type StateHandle uint64

const InvalidHandle = 0

type BufferUsage uint8

const (
	/** @brief Written once at creation. */
	BufferUsageImmutable BufferUsage = iota
	/** @brief CPU writable after creation. */
	BufferUsageDynamic
)

type BufferType uint8

const (
	BufferTypeVertex BufferType = iota
	BufferTypeIndex
)

func (t BufferType) String() string {
	if t == BufferTypeIndex {
		return "index"
	}
	return "vertex"
}

/**
 * @brief Describes a buffer to be created on the device.
 */
type BufferDescription struct {
	Name  string
	Type  BufferType
	Usage BufferUsage
	/** @brief Size in bytes. */
	Size uint32
}

/**
 * @brief One element of an input layout: a stream slot feeding a shader location.
 */
type InputElement struct {
	Attribute      VertexAttribute
	Slot           uint32
	Location       uint32
	ElementType    VertexElementType
	ComponentCount uint32
	Normalized     bool
	Stride         uint32
	Offset         uint32
}

/**
 * @brief A device input layout with the elements it was built from.
 */
type InputLayout struct {
	Handle   InputLayoutHandle
	Elements []InputElement
}

/**
 * @brief Device call result. Anything other than ResultSuccess is fatal.
 */
type Result int32

const (
	ResultSuccess Result = iota
	ResultErrorOutOfMemory
	ResultErrorInvalidHandle
	ResultErrorInvalidArgument
	ResultErrorBindingMismatch
	ResultErrorDeviceLost
	ResultErrorNotInitialized
)

func (r Result) String() string {
	switch r {
	case ResultSuccess:
		return "SUCCESS"
	case ResultErrorOutOfMemory:
		return "ERROR_OUT_OF_MEMORY"
	case ResultErrorInvalidHandle:
		return "ERROR_INVALID_HANDLE"
	case ResultErrorInvalidArgument:
		return "ERROR_INVALID_ARGUMENT"
	case ResultErrorBindingMismatch:
		return "ERROR_BINDING_MISMATCH"
	case ResultErrorDeviceLost:
		return "ERROR_DEVICE_LOST"
	case ResultErrorNotInitialized:
		return "ERROR_NOT_INITIALIZED"
	}
	return fmt.Sprintf("RESULT(%d)", int32(r))
}

// Succeeded mirrors the device convention of a single success code.
func (r Result) Succeeded() bool {
	return r == ResultSuccess
}
