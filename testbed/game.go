package testbed

import (
	"errors"
	gomath "math"

	"github.com/spaghettifunk/kiln/engine"
	"github.com/spaghettifunk/kiln/engine/assets"
	"github.com/spaghettifunk/kiln/engine/core"
	"github.com/spaghettifunk/kiln/engine/math"
	"github.com/spaghettifunk/kiln/engine/renderer"
	"github.com/spaghettifunk/kiln/engine/renderer/canvas"
	"github.com/spaghettifunk/kiln/engine/renderer/components"
	"github.com/spaghettifunk/kiln/engine/renderer/material"
	"github.com/spaghettifunk/kiln/engine/renderer/metadata"
	"github.com/spaghettifunk/kiln/engine/renderer/vertexfactory"
	"github.com/spaghettifunk/kiln/engine/systems"
)

type gameState struct {
	logger   *core.Logger
	renderer *renderer.Renderer

	cameras    *systems.CameraSystem
	camera     *components.Camera
	controller *systems.CameraController
	aspect     float32

	triangleProgram  *metadata.ShaderProgram
	triangle         *vertexfactory.DeviceVertexFactory
	triangleMesh     *metadata.Mesh
	triangleMaterial *material.Material
	colors           []byte

	lineProgram  *metadata.ShaderProgram
	lines        *canvas.LineCanvas
	lineMaterial *material.Material

	time float64
}

// NewTestGame returns a game drawing a colour cycling triangle and a debug
// grid, with a free flying camera.
func NewTestGame() *engine.Game {
	state := &gameState{}
	return &engine.Game{
		Name:         "testbed",
		State:        state,
		FnInitialize: state.initialize,
		FnUpdate:     state.update,
		FnRender:     state.render,
		FnOnResize:   state.onResize,
		FnShutdown:   state.shutdown,
	}
}

func (g *gameState) initialize(e *engine.Engine) error {
	cfg := e.Config()
	g.logger = e.Logger().With("game", "testbed")
	g.renderer = e.Renderer()
	needsStages := g.renderer.Name() == renderer.Vulkan.String()

	camera, err := e.Cameras().Acquire(WORLD_CAMERA)
	if err != nil {
		return err
	}
	g.cameras = e.Cameras()
	g.camera = camera
	g.camera.FovRadians = math.DegToRad(cfg.Camera.FovDegrees)
	g.camera.NearClip = cfg.Camera.NearClip
	g.camera.FarClip = cfg.Camera.FarClip
	g.camera.SetPosition(cfg.Camera.StartPosition())
	controller, err := systems.NewCameraController(g.camera, e.Input(), cfg.Camera.Controller())
	if err != nil {
		return err
	}
	g.controller = controller

	if g.triangleProgram, err = loadProgram(TRIANGLE_PROGRAM, cfg.Renderer.ShaderDir, needsStages); err != nil {
		return err
	}
	g.renderer.CreateShader(g.triangleProgram)
	g.triangleMaterial = g.material(e.Assets(), "triangle", TRIANGLE_PROGRAM)

	if err := g.createTriangle(e.Logger()); err != nil {
		return err
	}

	if cfg.Canvas.Enabled {
		if g.lineProgram, err = loadProgram(LINES_PROGRAM, cfg.Renderer.ShaderDir, needsStages); err != nil {
			return err
		}
		g.renderer.CreateShader(g.lineProgram)
		g.lineMaterial = g.material(e.Assets(), "debug_lines", LINES_PROGRAM)
		if g.lines, err = canvas.NewDeviceLineCanvas(g.renderer, g.lineProgram, cfg.Canvas.Capacity, e.Logger()); err != nil {
			return err
		}
	}
	g.logger.Info("testbed ready", "canvas", cfg.Canvas.Enabled)
	return nil
}

// material returns the named material from the assets, or a white one.
func (g *gameState) material(am *assets.AssetManager, name, program string) *material.Material {
	m, err := am.Material(name)
	if err == nil {
		return m
	}
	if !errors.Is(err, assets.ErrMaterialNotFound) {
		g.logger.Warn("material lookup failed", "name", name, "err", err)
	}
	m = material.New(name, program)
	_ = m.SetVector(TINT_PARAMETER, math.NewVec4One())
	return m
}

func (g *gameState) createTriangle(logger *core.Logger) error {
	const vertices = 3
	g.colors = make([]byte, 4*vertices)
	g.triangleMesh = &metadata.Mesh{
		Name:        "triangle",
		VertexCount: vertices,
		Streams: []metadata.MeshStream{
			{Attribute: metadata.VertexAttributePosition, Data: metadata.Float32Bytes(
				-1, -1, 0,
				1, -1, 0,
				0, 1, 0,
			)},
			{Attribute: metadata.VertexAttributeColor, Data: g.colors},
		},
		Indices:  []uint32{0, 1, 2},
		Topology: metadata.PrimitiveTopologyTriangleList,
	}

	g.triangle = vertexfactory.NewDeviceVertexFactory(g.renderer, logger)
	err := g.triangle.SetVertexStreamDescriptions([]metadata.VertexStreamDescription{
		{
			Attribute:      metadata.VertexAttributePosition,
			Name:           "position",
			ElementType:    metadata.VertexElementFloat32,
			SourceIndex:    0,
			ComponentCount: 3,
			BufferSize:     12 * vertices,
			Slot:           0,
		},
		{
			Attribute:      metadata.VertexAttributeColor,
			Name:           "color",
			ElementType:    metadata.VertexElementUint8,
			SourceIndex:    1,
			ComponentCount: 4,
			BufferSize:     4 * vertices,
			Slot:           1,
			Flags:          metadata.VertexStreamFlags{Normalized: true, Dynamic: true},
		},
	})
	if err != nil {
		return err
	}
	if err := g.triangle.SetShaderProgram(g.triangleProgram); err != nil {
		return err
	}
	g.triangle.SetRenderStateConfig(metadata.RenderStateConfig{
		Blend:      metadata.BlendStateOpaque,
		Depth:      metadata.DepthStateDefault,
		Rasterizer: metadata.RasterizerStateNoCull,
	})
	return g.triangle.AllocGPUResource(g.triangleMesh)
}

func (g *gameState) update(deltaTime float64) error {
	g.time += deltaTime
	g.controller.Update(float32(deltaTime))

	// Cycle the vertex colours a third of a turn apart.
	for v := 0; v < 3; v++ {
		phase := g.time + float64(v)*2*gomath.Pi/3
		g.colors[4*v] = channel(phase)
		g.colors[4*v+1] = channel(phase + 2*gomath.Pi/3)
		g.colors[4*v+2] = channel(phase + 4*gomath.Pi/3)
		g.colors[4*v+3] = 255
	}
	return g.triangle.UpdateVertexStreamBuffer(metadata.VertexAttributeColor, g.colors, uint32(len(g.colors)))
}

func channel(phase float64) byte {
	return byte(127.5 + 127.5*gomath.Sin(phase))
}

func (g *gameState) render(deltaTime float64) error {
	viewProjection := g.camera.ViewProjection(g.aspect)

	if err := g.draw(g.triangleProgram, g.triangleMaterial, viewProjection); err != nil {
		return err
	}
	if err := g.triangle.DrawCall(g.triangleProgram, g.triangleMesh); err != nil {
		return err
	}

	if g.lines == nil {
		return nil
	}
	g.lines.AddAxes(math.NewVec3Zero(), 2)
	g.lines.AddBox(math.NewVec3(-1, -1, -0.1), math.NewVec3(1, 1, 0.1), math.NewVec4(1, 1, 0, 1))
	grey := math.NewVec4(0.4, 0.4, 0.4, 1)
	for i := -5; i <= 5; i++ {
		f := float32(i)
		g.lines.AddLine(math.NewVec3(f, -1, -5), math.NewVec3(f, -1, 5), grey)
		g.lines.AddLine(math.NewVec3(-5, -1, f), math.NewVec3(5, -1, f), grey)
	}
	if err := g.draw(g.lineProgram, g.lineMaterial, viewProjection); err != nil {
		return err
	}
	return g.lines.Flush(g.lineProgram)
}

// draw uploads the camera and the material of the next draw with program.
func (g *gameState) draw(program *metadata.ShaderProgram, m *material.Material, viewProjection math.Mat4) error {
	for _, p := range viewProjectionParameters(viewProjection) {
		g.renderer.SetShaderParameter(program, p)
	}
	_, err := m.Apply(g.renderer, program)
	return err
}

func (g *gameState) onResize(width, height uint32) error {
	if height == 0 {
		return nil
	}
	g.aspect = float32(width) / float32(height)
	return nil
}

func (g *gameState) shutdown() error {
	if g.lines != nil {
		g.lines.Release()
	}
	if g.triangle != nil {
		g.triangle.ReleaseGPUResource()
	}
	for _, p := range []*metadata.ShaderProgram{g.triangleProgram, g.lineProgram} {
		if p != nil {
			g.renderer.DestroyShader(p)
		}
	}
	if g.cameras != nil {
		g.cameras.Release(WORLD_CAMERA)
	}
	return nil
}
