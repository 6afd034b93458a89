// Package engine wires the platform, the renderer and the assets together
// and runs the frame loop.
package engine

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/spaghettifunk/kiln/engine/assets"
	"github.com/spaghettifunk/kiln/engine/config"
	"github.com/spaghettifunk/kiln/engine/core"
	"github.com/spaghettifunk/kiln/engine/platform"
	"github.com/spaghettifunk/kiln/engine/renderer"
	"github.com/spaghettifunk/kiln/engine/systems"
)

var ErrInvalidStage = errors.New("invalid engine stage")

type Engine struct {
	currentStage Stage
	config       config.EngineConfig
	gameInstance *Game
	logger       *core.Logger

	platform     *platform.Platform
	input        *core.InputState
	renderer     *renderer.Renderer
	assetManager *assets.AssetManager
	systems      *systems.SystemManager

	clock       *core.Clock
	metrics     *core.Metrics
	lastTime    float64
	frameCount  uint64
	isSuspended bool
	quit        bool

	width  uint32
	height uint32
}

// New builds an engine for game from cfg. Nothing touches the device before Initialize.
func New(cfg config.EngineConfig, game *Game, logger *core.Logger) (*Engine, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if game == nil {
		return nil, fmt.Errorf("nil game")
	}
	rendererType, err := renderer.ParseRendererType(cfg.Renderer.Backend)
	if err != nil {
		return nil, err
	}
	r, err := renderer.New(renderer.Config{Type: rendererType, Debug: cfg.Renderer.Debug}, logger.With("system", "renderer"))
	if err != nil {
		return nil, err
	}
	sm, err := systems.NewSystemManager(cfg.Jobs.Systems(), logger)
	if err != nil {
		return nil, err
	}
	input := core.NewInputState()
	e := &Engine{
		currentStage: EngineStageUninitialized,
		config:       cfg,
		gameInstance: game,
		logger:       logger,
		input:        input,
		renderer:     r,
		assetManager: assets.NewAssetManager(logger.With("system", "assets"), sm.Jobs()),
		systems:      sm,
		clock:        core.NewClock(),
		metrics:      core.NewMetrics(),
		width:        cfg.Application.StartWidth,
		height:       cfg.Application.StartHeight,
	}
	if cfg.Application.Window || rendererType == renderer.Vulkan {
		e.platform = platform.New(input, logger.With("system", "platform"))
	}
	return e, nil
}

func (e *Engine) Stage() Stage {
	return e.currentStage
}

func (e *Engine) Config() config.EngineConfig {
	return e.config
}

func (e *Engine) Logger() *core.Logger {
	return e.logger
}

func (e *Engine) Input() *core.InputState {
	return e.input
}

func (e *Engine) Renderer() *renderer.Renderer {
	return e.renderer
}

func (e *Engine) Assets() *assets.AssetManager {
	return e.assetManager
}

func (e *Engine) Cameras() *systems.CameraSystem {
	return e.systems.Cameras()
}

func (e *Engine) Jobs() *systems.JobSystem {
	return e.systems.Jobs()
}

func (e *Engine) Metrics() *core.Metrics {
	return e.metrics
}

func (e *Engine) FrameCount() uint64 {
	return e.frameCount
}

// FramebufferSize returns the width and height (in this order) of the framebuffer.
func (e *Engine) FramebufferSize() (uint32, uint32) {
	return e.width, e.height
}

// RequestQuit stops the loop at the end of the current frame.
func (e *Engine) RequestQuit() {
	e.quit = true
}

func (e *Engine) Initialize() error {
	if e.currentStage != EngineStageUninitialized {
		return fmt.Errorf("%w: initialize from %s", ErrInvalidStage, e.currentStage)
	}
	e.currentStage = EngineStageInitializing
	app := e.config.Application

	if e.platform != nil {
		// glfw must be up before the Vulkan backend asks it for the loader.
		if err := e.platform.Startup(); err != nil {
			return err
		}
		if app.Window {
			if err := e.platform.OpenWindow(app.Name, app.StartPosX, app.StartPosY, app.StartWidth, app.StartHeight); err != nil {
				return err
			}
			e.platform.OnResize(e.onResized)
		}
	}

	if err := e.renderer.Initialize(app.Name, app.StartWidth, app.StartHeight); err != nil {
		return err
	}

	if dir := e.config.Materials.Dir; dir != "" {
		if err := e.assetManager.Initialize(dir, e.config.Materials.Watch); err != nil {
			return fmt.Errorf("failed to load materials: %w", err)
		}
	}

	if e.gameInstance.FnInitialize != nil {
		if err := e.gameInstance.FnInitialize(e); err != nil {
			return err
		}
	}
	if e.gameInstance.FnOnResize != nil {
		if err := e.gameInstance.FnOnResize(e.width, e.height); err != nil {
			return err
		}
	}

	e.currentStage = EngineStageInitialized
	e.logger.Info("engine initialized", "game", e.gameInstance.Name, "backend", e.renderer.Name())
	return nil
}

/**
 * @brief Runs the frame loop until ctx is cancelled, the window closes,
 * escape is pressed, RequestQuit is called or the configured number of frames
 * was rendered.
 */
func (e *Engine) Run(ctx context.Context) error {
	if e.currentStage != EngineStageInitialized {
		return fmt.Errorf("%w: run from %s", ErrInvalidStage, e.currentStage)
	}
	e.currentStage = EngineStageRunning
	defer func() { e.currentStage = EngineStageInitialized }()

	var targetFrameSeconds float64
	if fps := e.config.Application.TargetFPS; fps > 0 {
		targetFrameSeconds = 1.0 / float64(fps)
	}
	maxFrames := e.config.Application.MaxFrames

	e.clock.Start()
	e.clock.Update()
	e.lastTime = e.clock.Elapsed()

	for !e.quit {
		select {
		case <-ctx.Done():
			e.logger.Info("shutdown requested", "reason", ctx.Err())
			return nil
		default:
		}
		if e.platform != nil && !e.platform.PumpMessages() {
			e.logger.Info("window closed")
			return nil
		}
		if e.isSuspended {
			time.Sleep(10 * time.Millisecond)
			continue
		}

		e.clock.Update()
		currentTime := e.clock.Elapsed()
		delta := currentTime - e.lastTime
		frameStart := time.Now()

		if err := e.frame(delta); err != nil {
			return err
		}

		frameElapsed := time.Since(frameStart).Seconds()
		e.metrics.Update(frameElapsed)
		if remaining := targetFrameSeconds - frameElapsed; remaining > 0 && e.platform != nil {
			e.platform.Sleep(time.Duration(remaining * float64(time.Second)))
		}

		// NOTE: Input update/state copying should always be handled
		// after any input should be recorded; I.E. before this line.
		e.input.Update()
		e.lastTime = currentTime
		e.frameCount++

		if maxFrames > 0 && e.frameCount >= maxFrames {
			e.logger.Info("frame limit reached", "frames", e.frameCount)
			return nil
		}
	}
	return nil
}

func (e *Engine) frame(delta float64) error {
	if e.input.KeyPressed(core.KEY_ESCAPE) {
		e.logger.Info("escape pressed, shutting down")
		e.quit = true
		return nil
	}
	if e.config.Materials.Watch {
		e.assetManager.ApplyReloads()
	}
	e.systems.Update()
	if e.gameInstance.FnUpdate != nil {
		if err := e.gameInstance.FnUpdate(delta); err != nil {
			return fmt.Errorf("game update failed: %w", err)
		}
	}
	if err := e.renderer.BeginFrame(delta); err != nil {
		return err
	}
	if e.gameInstance.FnRender != nil {
		if err := e.gameInstance.FnRender(delta); err != nil {
			return fmt.Errorf("game render failed: %w", err)
		}
	}
	return e.renderer.EndFrame(delta)
}

// Shutdown releases everything in reverse order of creation.
func (e *Engine) Shutdown() error {
	if e.currentStage == EngineStageShutdown {
		return nil
	}
	e.currentStage = EngineStageShuttingDown
	var errs []error
	if e.gameInstance.FnShutdown != nil {
		errs = append(errs, e.gameInstance.FnShutdown())
	}
	errs = append(errs, e.assetManager.Close())
	errs = append(errs, e.systems.Shutdown())
	errs = append(errs, e.renderer.Shutdown())
	if e.platform != nil {
		errs = append(errs, e.platform.Shutdown())
	}
	e.currentStage = EngineStageShutdown
	e.logger.Info("engine shut down", "frames", e.frameCount)
	return errors.Join(errs...)
}

func (e *Engine) onResized(width, height uint32) {
	if width == e.width && height == e.height {
		return
	}
	e.width = width
	e.height = height
	e.logger.Debug("window resize", "width", width, "height", height)

	// Handle minimization
	if width == 0 || height == 0 {
		e.logger.Info("window minimized, suspending application")
		e.isSuspended = true
		return
	}
	if e.isSuspended {
		e.logger.Info("window restored, resuming application")
		e.isSuspended = false
	}
	if err := e.renderer.OnResize(uint16(width), uint16(height)); err != nil {
		e.logger.Error("renderer resize failed", "err", err)
	}
	if e.gameInstance.FnOnResize != nil {
		if err := e.gameInstance.FnOnResize(width, height); err != nil {
			e.logger.Error("game resize failed", "err", err)
		}
	}
}
