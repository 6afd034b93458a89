package systems

import (
	"errors"
	"fmt"

	"github.com/spaghettifunk/kiln/engine/core"
	"github.com/spaghettifunk/kiln/engine/renderer/components"
)

const DEFAULT_CAMERA_NAME = "default"

var ErrCameraLimit = errors.New("camera limit reached")

type cameraLookup struct {
	camera         *components.Camera
	referenceCount uint16
}

/**
 * @brief Hands out named cameras shared by reference count. The default
 * camera always exists and is never released.
 */
type CameraSystem struct {
	Config  CameraSystemConfig
	logger  *core.Logger
	cameras map[string]*cameraLookup
	// A default, non-registered camera that always exists as a fallback.
	DefaultCamera *components.Camera
}

/** @brief The camera system configuration. */
type CameraSystemConfig struct {
	/** @brief The maximum number of named cameras alive at once. */
	MaxCameraCount uint16
}

func NewCameraSystem(config CameraSystemConfig, logger *core.Logger) (*CameraSystem, error) {
	if config.MaxCameraCount == 0 {
		return nil, fmt.Errorf("func NewCameraSystem - config.MaxCameraCount must be > 0")
	}
	return &CameraSystem{
		Config:        config,
		logger:        logger,
		cameras:       make(map[string]*cameraLookup, config.MaxCameraCount),
		DefaultCamera: components.NewCamera(),
	}, nil
}

/**
 * @brief Shuts down the camera system. Every named camera is dropped.
 */
func (cs *CameraSystem) Shutdown() error {
	if len(cs.cameras) > 0 {
		cs.logger.Debug("cameras still acquired at shutdown", "count", len(cs.cameras))
	}
	cs.cameras = make(map[string]*cameraLookup)
	return nil
}

/**
 * @brief Acquires a camera by name, creating it on first use.
 * Internal reference counter is incremented.
 *
 * @param name The name of the camera to acquire.
 */
func (cs *CameraSystem) Acquire(name string) (*components.Camera, error) {
	if name == DEFAULT_CAMERA_NAME {
		return cs.DefaultCamera, nil
	}
	lookup, ok := cs.cameras[name]
	if !ok {
		if len(cs.cameras) >= int(cs.Config.MaxCameraCount) {
			return nil, fmt.Errorf("%w: cannot create camera %q, adjust MaxCameraCount (%d)", ErrCameraLimit, name, cs.Config.MaxCameraCount)
		}
		cs.logger.Debug("creating camera", "name", name)
		lookup = &cameraLookup{camera: components.NewCamera()}
		cs.cameras[name] = lookup
	}
	lookup.referenceCount++
	return lookup.camera, nil
}

/**
 * @brief Releases a camera with the given name. Internal reference
 * counter is decremented. If this reaches 0, the camera is dropped and the
 * next Acquire creates a fresh one.
 *
 * @param name The name of the camera to release.
 */
func (cs *CameraSystem) Release(name string) {
	if name == DEFAULT_CAMERA_NAME {
		cs.logger.Debug("cannot release default camera, nothing was done")
		return
	}
	lookup, ok := cs.cameras[name]
	if !ok {
		cs.logger.Warn("camera release failed lookup, nothing was done", "name", name)
		return
	}
	lookup.referenceCount--
	if lookup.referenceCount == 0 {
		lookup.camera.Reset()
		delete(cs.cameras, name)
	}
}

// Count returns the number of named cameras alive.
func (cs *CameraSystem) Count() int {
	return len(cs.cameras)
}

/**
 * @brief Gets a pointer to the default camera.
 */
func (cs *CameraSystem) GetDefault() *components.Camera {
	return cs.DefaultCamera
}
