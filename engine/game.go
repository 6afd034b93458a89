package engine

// Game is the application running on top of the engine. Every callback is
// optional.
type Game struct {
	Name         string
	State        interface{}
	FnInitialize Initialize
	FnUpdate     Update
	FnRender     Render
	FnOnResize   OnResize
	FnShutdown   Shutdown
}

// Initialize runs once the renderer and the assets are ready.
type Initialize func(e *Engine) error

// Update runs once per frame before rendering.
type Update func(deltaTime float64) error

// Render runs between BeginFrame and EndFrame.
type Render func(deltaTime float64) error

type OnResize func(width uint32, height uint32) error

// Shutdown runs before the renderer is shut down.
type Shutdown func() error
