package metadata

/** @brief Determines face culling mode during rendering. */
type FaceCullMode int

const (
	/** @brief No faces are culled. */
	FaceCullModeNone FaceCullMode = 0x0
	/** @brief Only front faces are culled. */
	FaceCullModeFront FaceCullMode = 0x1
	/** @brief Only back faces are culled. */
	FaceCullModeBack FaceCullMode = 0x2
	/** @brief Both front and back faces are culled. */
	FaceCullModeFrontAndBack FaceCullMode = 0x3
)

type FillMode int

const (
	FillModeSolid FillMode = iota
	FillModeWireframe
)

type CompareOp int

const (
	CompareOpNever CompareOp = iota
	CompareOpLess
	CompareOpLessOrEqual
	CompareOpEqual
	CompareOpAlways
)

type BlendFactor int

const (
	BlendFactorZero BlendFactor = iota
	BlendFactorOne
	BlendFactorSrcAlpha
	BlendFactorOneMinusSrcAlpha
)

/** @brief Colour blending applied to the output merger. */
type BlendState struct {
	Enabled  bool
	SrcColor BlendFactor
	DstColor BlendFactor
	SrcAlpha BlendFactor
	DstAlpha BlendFactor
}

/** @brief Depth test configuration. */
type DepthState struct {
	TestEnabled  bool
	WriteEnabled bool
	Compare      CompareOp
}

/** @brief Rasterizer configuration. */
type RasterizerState struct {
	CullMode  FaceCullMode
	FillMode  FillMode
	LineWidth float32
}

var (
	BlendStateOpaque = BlendState{
		SrcColor: BlendFactorOne, DstColor: BlendFactorZero,
		SrcAlpha: BlendFactorOne, DstAlpha: BlendFactorZero,
	}
	BlendStateAlpha = BlendState{
		Enabled:  true,
		SrcColor: BlendFactorSrcAlpha, DstColor: BlendFactorOneMinusSrcAlpha,
		SrcAlpha: BlendFactorOne, DstAlpha: BlendFactorOneMinusSrcAlpha,
	}
	DepthStateDefault = DepthState{
		TestEnabled:  true,
		WriteEnabled: true,
		Compare:      CompareOpLess,
	}
	DepthStateReadOnly = DepthState{
		TestEnabled: true,
		Compare:     CompareOpLessOrEqual,
	}
	RasterizerStateDefault = RasterizerState{
		CullMode:  FaceCullModeBack,
		FillMode:  FillModeSolid,
		LineWidth: 1,
	}
	RasterizerStateNoCull = RasterizerState{
		CullMode:  FaceCullModeNone,
		FillMode:  FillModeSolid,
		LineWidth: 1,
	}
)

/**
 * @brief The fixed-function state a draw is issued with.
 */
type RenderStateConfig struct {
	Blend      BlendState
	Depth      DepthState
	Rasterizer RasterizerState
}

// DefaultRenderState is opaque, depth tested and back face culled.
func DefaultRenderState() RenderStateConfig {
	return RenderStateConfig{
		Blend:      BlendStateOpaque,
		Depth:      DepthStateDefault,
		Rasterizer: RasterizerStateDefault,
	}
}
