package engine

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spaghettifunk/kiln/engine/config"
	"github.com/spaghettifunk/kiln/engine/core"
	"github.com/spaghettifunk/kiln/engine/systems"
)

type counters struct {
	initialize, update, render, resize, shutdown int
}

func headlessConfig(frames uint64) config.EngineConfig {
	cfg := config.Default()
	cfg.Application.Window = false
	cfg.Application.MaxFrames = frames
	cfg.Application.TargetFPS = 0
	cfg.Renderer.Backend = "headless"
	cfg.Materials.Dir = ""
	return cfg
}

func countingGame(c *counters) *Game {
	return &Game{
		Name: "counting",
		FnInitialize: func(e *Engine) error {
			c.initialize++
			return nil
		},
		FnUpdate: func(float64) error {
			c.update++
			return nil
		},
		FnRender: func(float64) error {
			c.render++
			return nil
		},
		FnOnResize: func(w, h uint32) error {
			c.resize++
			return nil
		},
		FnShutdown: func() error {
			c.shutdown++
			return nil
		},
	}
}

func newEngine(t *testing.T, cfg config.EngineConfig, game *Game) *Engine {
	t.Helper()
	e, err := New(cfg, game, core.NewDiscardLogger())
	require.NoError(t, err)
	return e
}

func TestLifecycle(t *testing.T) {
	c := &counters{}
	e := newEngine(t, headlessConfig(3), countingGame(c))
	assert.Equal(t, EngineStageUninitialized, e.Stage())

	require.NoError(t, e.Initialize())
	assert.Equal(t, EngineStageInitialized, e.Stage())
	assert.Equal(t, 1, c.initialize)
	assert.Equal(t, 1, c.resize)

	require.NoError(t, e.Run(context.Background()))
	assert.Equal(t, EngineStageInitialized, e.Stage())
	assert.Equal(t, uint64(3), e.FrameCount())
	assert.Equal(t, 3, c.update)
	assert.Equal(t, 3, c.render)

	assert.Equal(t, uint64(3), e.Renderer().FrameNumber())

	require.NoError(t, e.Shutdown())
	assert.Equal(t, EngineStageShutdown, e.Stage())
	assert.Equal(t, 1, c.shutdown)
	err := e.Jobs().Submit(systems.JobTask{Name: "late", OnStart: func() (interface{}, error) { return nil, nil }})
	assert.ErrorIs(t, err, systems.ErrJobSystemClosed)

	require.NoError(t, e.Shutdown())
	assert.Equal(t, 1, c.shutdown)
}

func TestInvalidStages(t *testing.T) {
	e := newEngine(t, headlessConfig(1), countingGame(&counters{}))
	assert.ErrorIs(t, e.Run(context.Background()), ErrInvalidStage)

	require.NoError(t, e.Initialize())
	assert.ErrorIs(t, e.Initialize(), ErrInvalidStage)
	require.NoError(t, e.Shutdown())
	assert.ErrorIs(t, e.Run(context.Background()), ErrInvalidStage)
}

func TestNewRejectsBadInput(t *testing.T) {
	_, err := New(headlessConfig(1), nil, core.NewDiscardLogger())
	assert.Error(t, err)

	cfg := headlessConfig(1)
	cfg.Renderer.Backend = "metal"
	_, err = New(cfg, countingGame(&counters{}), core.NewDiscardLogger())
	assert.Error(t, err)

	cfg = headlessConfig(0)
	_, err = New(cfg, countingGame(&counters{}), core.NewDiscardLogger())
	assert.ErrorIs(t, err, config.ErrInvalidConfig)
}

func TestRunStopsOnCancelledContext(t *testing.T) {
	c := &counters{}
	e := newEngine(t, headlessConfig(100), countingGame(c))
	require.NoError(t, e.Initialize())

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	require.NoError(t, e.Run(ctx))
	assert.Zero(t, e.FrameCount())
	assert.Zero(t, c.update)
	require.NoError(t, e.Shutdown())
}

func TestRequestQuit(t *testing.T) {
	c := &counters{}
	game := countingGame(c)
	var e *Engine
	game.FnUpdate = func(float64) error {
		c.update++
		e.RequestQuit()
		return nil
	}
	e = newEngine(t, headlessConfig(100), game)
	require.NoError(t, e.Initialize())
	require.NoError(t, e.Run(context.Background()))
	assert.Equal(t, uint64(1), e.FrameCount())
	assert.Equal(t, 1, c.render)
	require.NoError(t, e.Shutdown())
}

func TestEscapeStopsBeforeUpdate(t *testing.T) {
	c := &counters{}
	e := newEngine(t, headlessConfig(100), countingGame(c))
	require.NoError(t, e.Initialize())

	e.Input().ProcessKey(core.KEY_ESCAPE, true)
	require.NoError(t, e.Run(context.Background()))
	assert.Equal(t, uint64(1), e.FrameCount())
	assert.Zero(t, c.update)
	require.NoError(t, e.Shutdown())
}

func TestUpdateErrorStopsLoop(t *testing.T) {
	boom := errors.New("boom")
	c := &counters{}
	game := countingGame(c)
	game.FnUpdate = func(float64) error { return boom }
	e := newEngine(t, headlessConfig(100), game)
	require.NoError(t, e.Initialize())

	err := e.Run(context.Background())
	assert.ErrorIs(t, err, boom)
	assert.Zero(t, c.render)
	assert.Zero(t, e.FrameCount())
	require.NoError(t, e.Shutdown())
}

func TestInitializeErrorIsReturned(t *testing.T) {
	boom := errors.New("boom")
	game := countingGame(&counters{})
	game.FnInitialize = func(*Engine) error { return boom }
	e := newEngine(t, headlessConfig(1), game)
	assert.ErrorIs(t, e.Initialize(), boom)
	require.NoError(t, e.Shutdown())
}

func TestShutdownJoinsGameError(t *testing.T) {
	boom := errors.New("boom")
	game := countingGame(&counters{})
	game.FnShutdown = func() error { return boom }
	e := newEngine(t, headlessConfig(1), game)
	require.NoError(t, e.Initialize())
	assert.ErrorIs(t, e.Shutdown(), boom)
	assert.Equal(t, EngineStageShutdown, e.Stage())
}

func TestJobCallbacksRunOnTheFrameLoop(t *testing.T) {
	c := &counters{}
	game := countingGame(c)
	completed := false
	game.FnInitialize = func(e *Engine) error {
		return e.Jobs().Submit(systems.JobTask{
			Name:       "warmup",
			OnStart:    func() (interface{}, error) { return 42, nil },
			OnComplete: func(r interface{}) { completed = r.(int) == 42 },
		})
	}
	var e *Engine
	game.FnUpdate = func(float64) error {
		if completed {
			e.RequestQuit()
		}
		return nil
	}
	e = newEngine(t, headlessConfig(100000), game)
	require.NoError(t, e.Initialize())
	require.NoError(t, e.Run(context.Background()))
	assert.True(t, completed)
	require.NoError(t, e.Shutdown())
}
