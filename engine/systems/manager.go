package systems

import (
	"errors"

	"github.com/spaghettifunk/kiln/engine/core"
)

const MAX_CAMERA_COUNT uint16 = 100

type SystemManagerConfig struct {
	JobWorkers   int
	JobQueueSize int
}

// SystemManager owns the engine wide systems and shuts them down in reverse
// order of creation.
type SystemManager struct {
	cameraSystem *CameraSystem
	jobSystem    *JobSystem
}

func NewSystemManager(config SystemManagerConfig, logger *core.Logger) (*SystemManager, error) {
	js, err := NewJobSystem(config.JobWorkers, config.JobQueueSize, logger.With("system", "jobs"))
	if err != nil {
		return nil, err
	}

	cs, err := NewCameraSystem(CameraSystemConfig{
		MaxCameraCount: MAX_CAMERA_COUNT,
	}, logger.With("system", "cameras"))
	if err != nil {
		return nil, errors.Join(err, js.Shutdown())
	}
	return &SystemManager{
		cameraSystem: cs,
		jobSystem:    js,
	}, nil
}

func (sm *SystemManager) Cameras() *CameraSystem {
	return sm.cameraSystem
}

func (sm *SystemManager) Jobs() *JobSystem {
	return sm.jobSystem
}

// Update runs once per frame on the render loop goroutine.
func (sm *SystemManager) Update() {
	sm.jobSystem.Update()
}

func (sm *SystemManager) Shutdown() error {
	if err := sm.cameraSystem.Shutdown(); err != nil {
		return err
	}
	if err := sm.jobSystem.Shutdown(); err != nil {
		return err
	}
	return nil
}
