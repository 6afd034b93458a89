// Package config loads the engine configuration from a TOML file.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/pelletier/go-toml/v2"

	"github.com/spaghettifunk/kiln/engine/core"
	"github.com/spaghettifunk/kiln/engine/math"
	"github.com/spaghettifunk/kiln/engine/systems"
)

var ErrInvalidConfig = errors.New("invalid configuration")

type ApplicationConfig struct {
	// The application name used in windowing, if applicable.
	Name string `toml:"name"`
	// Window starting position, if applicable.
	StartPosX uint32 `toml:"start_pos_x"`
	StartPosY uint32 `toml:"start_pos_y"`
	// Window starting size. Also the size of the offscreen target.
	StartWidth  uint32 `toml:"start_width"`
	StartHeight uint32 `toml:"start_height"`
	// Window opens a glfw window. Without it the demo runs for MaxFrames frames.
	Window bool `toml:"window"`
	// MaxFrames stops the loop after that many frames. 0 runs until the window closes.
	MaxFrames uint64 `toml:"max_frames"`
	// TargetFPS limits the frame rate. 0 disables the limit.
	TargetFPS uint32 `toml:"target_fps"`
}

type LogConfig struct {
	Level        string `toml:"level"`
	File         string `toml:"file"`
	Prefix       string `toml:"prefix"`
	ReportCaller bool   `toml:"report_caller"`
}

type RendererConfig struct {
	// Backend is "headless" or "vulkan".
	Backend string `toml:"backend"`
	// Debug enables validation layers.
	Debug bool `toml:"debug"`
	// ShaderDir holds the compiled SPIR-V stages, named <program>.<stage>.spv.
	ShaderDir string `toml:"shader_dir"`
}

type CameraConfig struct {
	Position        [3]float32 `toml:"position"`
	FovDegrees      float32    `toml:"fov_degrees"`
	NearClip        float32    `toml:"near_clip"`
	FarClip         float32    `toml:"far_clip"`
	MoveSpeed       float32    `toml:"move_speed"`
	MinSpeed        float32    `toml:"min_speed"`
	MaxSpeed        float32    `toml:"max_speed"`
	SpeedStep       float32    `toml:"speed_step"`
	LookSensitivity float32    `toml:"look_sensitivity"`
	Sharpness       float32    `toml:"sharpness"`
}

type CanvasConfig struct {
	Enabled bool `toml:"enabled"`
	// Capacity is the number of lines the debug canvas holds per frame.
	Capacity uint32 `toml:"capacity"`
}

type MaterialsConfig struct {
	// Dir is scanned for *.toml material files.
	Dir string `toml:"dir"`
	// Watch reloads materials when their files change.
	Watch bool `toml:"watch"`
}

type JobsConfig struct {
	// Workers is the number of goroutines running background jobs.
	Workers int `toml:"workers"`
	// QueueSize is how many jobs may wait for a worker.
	QueueSize int `toml:"queue_size"`
}

// EngineConfig is the root of the configuration file.
type EngineConfig struct {
	Application ApplicationConfig `toml:"application"`
	Log         LogConfig         `toml:"log"`
	Renderer    RendererConfig    `toml:"renderer"`
	Camera      CameraConfig      `toml:"camera"`
	Canvas      CanvasConfig      `toml:"canvas"`
	Materials   MaterialsConfig   `toml:"materials"`
	Jobs        JobsConfig        `toml:"jobs"`
}

// Default returns the configuration used for every key the file leaves out.
func Default() EngineConfig {
	controller := systems.DefaultCameraControllerConfig()
	return EngineConfig{
		Application: ApplicationConfig{
			Name:        "Kiln",
			StartPosX:   100,
			StartPosY:   100,
			StartWidth:  1280,
			StartHeight: 720,
			Window:      true,
			TargetFPS:   60,
		},
		Log: LogConfig{
			Level: "info",
		},
		Renderer: RendererConfig{
			Backend:   "headless",
			ShaderDir: "assets/shaders",
		},
		Camera: CameraConfig{
			Position:        [3]float32{0, 2, 10},
			FovDegrees:      45,
			NearClip:        0.1,
			FarClip:         1000,
			MoveSpeed:       controller.MoveSpeed,
			MinSpeed:        controller.MinSpeed,
			MaxSpeed:        controller.MaxSpeed,
			SpeedStep:       controller.SpeedStep,
			LookSensitivity: controller.LookSensitivity,
			Sharpness:       controller.Sharpness,
		},
		Canvas: CanvasConfig{
			Enabled:  true,
			Capacity: 1024,
		},
		Materials: MaterialsConfig{
			Dir: "assets/materials",
		},
		Jobs: JobsConfig{
			Workers:   2,
			QueueSize: 64,
		},
	}
}

// Load reads and validates the file at path.
func Load(path string) (EngineConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return EngineConfig{}, fmt.Errorf("failed to read config: %w", err)
	}
	cfg, err := Parse(data)
	if err != nil {
		return EngineConfig{}, fmt.Errorf("%s: %w", path, err)
	}
	return cfg, nil
}

// Parse decodes data over the defaults. Unknown keys are rejected.
func Parse(data []byte) (EngineConfig, error) {
	cfg := Default()
	dec := toml.NewDecoder(bytes.NewReader(data)).DisallowUnknownFields()
	if err := dec.Decode(&cfg); err != nil {
		var strict *toml.StrictMissingError
		if errors.As(err, &strict) {
			return EngineConfig{}, fmt.Errorf("%w: %s", ErrInvalidConfig, strict.String())
		}
		return EngineConfig{}, fmt.Errorf("%w: %s", ErrInvalidConfig, err)
	}
	if err := cfg.Validate(); err != nil {
		return EngineConfig{}, err
	}
	return cfg, nil
}

func (c EngineConfig) Validate() error {
	if c.Application.Name == "" {
		return fmt.Errorf("%w: application.name is empty", ErrInvalidConfig)
	}
	if c.Application.StartWidth == 0 || c.Application.StartHeight == 0 {
		return fmt.Errorf("%w: application size %dx%d", ErrInvalidConfig, c.Application.StartWidth, c.Application.StartHeight)
	}
	if !c.Application.Window && c.Application.MaxFrames == 0 {
		return fmt.Errorf("%w: application.max_frames is required without a window", ErrInvalidConfig)
	}
	switch strings.ToLower(c.Log.Level) {
	case "debug", "info", "warn", "error", "fatal":
	default:
		return fmt.Errorf("%w: unknown log.level %q", ErrInvalidConfig, c.Log.Level)
	}
	switch strings.ToLower(c.Renderer.Backend) {
	case "headless", "vulkan":
	default:
		return fmt.Errorf("%w: unknown renderer.backend %q", ErrInvalidConfig, c.Renderer.Backend)
	}
	if c.Camera.FovDegrees <= 0 || c.Camera.FovDegrees >= 180 {
		return fmt.Errorf("%w: camera.fov_degrees %v outside (0, 180)", ErrInvalidConfig, c.Camera.FovDegrees)
	}
	if c.Camera.NearClip <= 0 || c.Camera.FarClip <= c.Camera.NearClip {
		return fmt.Errorf("%w: camera clip range [%v, %v]", ErrInvalidConfig, c.Camera.NearClip, c.Camera.FarClip)
	}
	if err := c.Camera.Controller().Validate(); err != nil {
		return fmt.Errorf("%w: %s", ErrInvalidConfig, err)
	}
	if c.Canvas.Enabled && c.Canvas.Capacity == 0 {
		return fmt.Errorf("%w: canvas.capacity must be greater than zero", ErrInvalidConfig)
	}
	if c.Materials.Watch && c.Materials.Dir == "" {
		return fmt.Errorf("%w: materials.watch needs materials.dir", ErrInvalidConfig)
	}
	if c.Jobs.Workers <= 0 || c.Jobs.QueueSize < 0 {
		return fmt.Errorf("%w: jobs needs at least one worker and a non-negative queue_size", ErrInvalidConfig)
	}
	return nil
}

// Systems converts the jobs section for the system manager.
func (c JobsConfig) Systems() systems.SystemManagerConfig {
	return systems.SystemManagerConfig{
		JobWorkers:   c.Workers,
		JobQueueSize: c.QueueSize,
	}
}

// Logger converts the log section for core.NewLogger.
func (c LogConfig) Logger() core.LoggerConfig {
	return core.LoggerConfig{
		Level:        c.Level,
		File:         c.File,
		Prefix:       c.Prefix,
		ReportCaller: c.ReportCaller,
	}
}

// Controller converts the camera section for the camera controller.
func (c CameraConfig) Controller() systems.CameraControllerConfig {
	return systems.CameraControllerConfig{
		MoveSpeed:       c.MoveSpeed,
		MinSpeed:        c.MinSpeed,
		MaxSpeed:        c.MaxSpeed,
		SpeedStep:       c.SpeedStep,
		LookSensitivity: c.LookSensitivity,
		Sharpness:       c.Sharpness,
	}
}

func (c CameraConfig) StartPosition() math.Vec3 {
	return math.NewVec3(c.Position[0], c.Position[1], c.Position[2])
}
