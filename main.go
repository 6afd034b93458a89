/*
Kiln demo: opens a window (or runs headless), draws a colour cycling triangle
and a debug line grid with a free flying camera.
*/
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io/fs"
	"os"
	"os/signal"
	"syscall"

	"github.com/spaghettifunk/kiln/engine"
	"github.com/spaghettifunk/kiln/engine/config"
	"github.com/spaghettifunk/kiln/engine/core"
	"github.com/spaghettifunk/kiln/testbed"
)

func main() {
	configPath := flag.String("config", "kiln.toml", "path to the engine configuration file")
	backend := flag.String("backend", "", "renderer backend, overrides the configuration (headless or vulkan)")
	frames := flag.Uint64("frames", 0, "stop after this many frames, overrides the configuration")
	flag.Parse()

	if err := run(*configPath, *backend, *frames); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run(configPath, backend string, frames uint64) error {
	cfg, err := config.Load(configPath)
	if errors.Is(err, fs.ErrNotExist) {
		cfg = config.Default()
	} else if err != nil {
		return err
	}
	if backend != "" {
		cfg.Renderer.Backend = backend
	}
	if frames > 0 {
		cfg.Application.MaxFrames = frames
	}

	logger, err := core.NewLogger(cfg.Log.Logger())
	if err != nil {
		return err
	}
	defer logger.Close()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	e, err := engine.New(cfg, testbed.NewTestGame(), logger)
	if err != nil {
		return err
	}
	if err := e.Initialize(); err != nil {
		return errors.Join(err, e.Shutdown())
	}
	runErr := e.Run(ctx)
	return errors.Join(runErr, e.Shutdown())
}
