// Package platform owns the glfw window and feeds its input into a core.InputState.
package platform

import (
	"fmt"
	"runtime"
	"time"

	"github.com/go-gl/glfw/v3.3/glfw"

	"github.com/spaghettifunk/kiln/engine/core"
)

func init() {
	// GLFW event handling must run on the main OS thread
	runtime.LockOSThread()
}

type ResizeFunc func(width, height uint32)

type Platform struct {
	Window *glfw.Window

	logger   *core.Logger
	input    *core.InputState
	onResize ResizeFunc
	started  bool
}

func New(input *core.InputState, logger *core.Logger) *Platform {
	return &Platform{
		input:  input,
		logger: logger,
	}
}

// Startup initializes glfw. The Vulkan backend needs it even without a window.
func (p *Platform) Startup() error {
	if p.started {
		return nil
	}
	if err := glfw.Init(); err != nil {
		return fmt.Errorf("failed to initialize glfw: %w", err)
	}
	p.started = true
	return nil
}

// OpenWindow creates a visible window without a client API and routes its
// callbacks into the input state.
func (p *Platform) OpenWindow(applicationName string, x, y, width, height uint32) error {
	if err := p.Startup(); err != nil {
		return err
	}
	glfw.WindowHint(glfw.Visible, glfw.False)
	glfw.WindowHint(glfw.Resizable, glfw.True)
	glfw.WindowHint(glfw.ClientAPI, glfw.NoAPI) // Required for Vulkan.

	window, err := glfw.CreateWindow(int(width), int(height), applicationName, nil, nil)
	if err != nil {
		return fmt.Errorf("failed to create window: %w", err)
	}
	p.Window = window

	p.Window.SetKeyCallback(p.keyCallback)
	p.Window.SetMouseButtonCallback(p.mouseButtonCallback)
	p.Window.SetCursorPosCallback(p.cursorPosCallback)
	p.Window.SetScrollCallback(p.scrollCallback)
	p.Window.SetFramebufferSizeCallback(p.framebufferSizeCallback)
	p.Window.SetPos(int(x), int(y))
	p.Window.Show()

	p.logger.Info("window opened", "name", applicationName, "width", width, "height", height)
	return nil
}

// OnResize registers the function called when the framebuffer size changes.
func (p *Platform) OnResize(fn ResizeFunc) {
	p.onResize = fn
}

// PumpMessages processes pending window events. It returns false once the
// window was asked to close.
func (p *Platform) PumpMessages() bool {
	if p.Window == nil {
		return true
	}
	glfw.PollEvents()
	return !p.Window.ShouldClose()
}

// RequestClose makes the next PumpMessages return false.
func (p *Platform) RequestClose() {
	if p.Window != nil {
		p.Window.SetShouldClose(true)
	}
}

func (p *Platform) Shutdown() error {
	if p.Window != nil {
		p.Window.Destroy()
		p.Window = nil
	}
	if p.started {
		glfw.Terminate()
		p.started = false
	}
	return nil
}

func (p *Platform) Sleep(d time.Duration) {
	time.Sleep(d)
}

func (p *Platform) keyCallback(w *glfw.Window, key glfw.Key, scancode int, action glfw.Action, mods glfw.ModifierKey) {
	code, ok := TranslateKey(key)
	if !ok || action == glfw.Repeat {
		return
	}
	p.input.ProcessKey(code, action == glfw.Press)
}

func (p *Platform) mouseButtonCallback(w *glfw.Window, button glfw.MouseButton, action glfw.Action, mods glfw.ModifierKey) {
	b, ok := TranslateButton(button)
	if !ok {
		return
	}
	p.input.ProcessButton(b, action == glfw.Press)
}

func (p *Platform) cursorPosCallback(w *glfw.Window, xpos, ypos float64) {
	p.input.ProcessMouseMove(int32(xpos), int32(ypos))
}

func (p *Platform) scrollCallback(w *glfw.Window, xoff, yoff float64) {
	switch {
	case yoff > 0:
		p.input.ProcessMouseWheel(1)
	case yoff < 0:
		p.input.ProcessMouseWheel(-1)
	}
}

func (p *Platform) framebufferSizeCallback(w *glfw.Window, width, height int) {
	if p.onResize != nil {
		p.onResize(uint32(width), uint32(height))
	}
}
