package systems

import (
	"fmt"
	gomath "math"

	"github.com/spaghettifunk/kiln/engine/core"
	"github.com/spaghettifunk/kiln/engine/math"
	"github.com/spaghettifunk/kiln/engine/renderer/components"
)

/** @brief The camera controller configuration. */
type CameraControllerConfig struct {
	/** @brief Movement speed in units per second. */
	MoveSpeed float32
	/** @brief Bounds for the speed changed by the mouse wheel. */
	MinSpeed float32
	MaxSpeed float32
	/** @brief Speed multiplier applied per wheel tick. */
	SpeedStep float32
	/** @brief Radians of rotation per pixel of mouse drag. */
	LookSensitivity float32
	/** @brief How fast the camera catches up with its target. 0 disables smoothing. */
	Sharpness float32
}

func DefaultCameraControllerConfig() CameraControllerConfig {
	return CameraControllerConfig{
		MoveSpeed:       5,
		MinSpeed:        0.5,
		MaxSpeed:        100,
		SpeedStep:       1.1,
		LookSensitivity: 0.005,
		Sharpness:       12,
	}
}

func (c CameraControllerConfig) Validate() error {
	if c.MinSpeed <= 0 || c.MaxSpeed < c.MinSpeed {
		return fmt.Errorf("camera speed bounds [%v, %v] are invalid", c.MinSpeed, c.MaxSpeed)
	}
	if c.MoveSpeed < c.MinSpeed || c.MoveSpeed > c.MaxSpeed {
		return fmt.Errorf("camera move speed %v outside [%v, %v]", c.MoveSpeed, c.MinSpeed, c.MaxSpeed)
	}
	if c.SpeedStep <= 1 {
		return fmt.Errorf("camera speed step must be greater than 1, got %v", c.SpeedStep)
	}
	if c.Sharpness < 0 || c.LookSensitivity < 0 {
		return fmt.Errorf("camera sharpness and look sensitivity cannot be negative")
	}
	return nil
}

/**
 * @brief Drives a camera from keyboard and mouse input. WASD moves on the
 * horizontal plane, Q and E move down and up, dragging with the right mouse
 * button looks around and the wheel changes the speed. Input moves a target;
 * the camera follows it with exponential damping.
 */
type CameraController struct {
	camera *components.Camera
	input  *core.InputState
	config CameraControllerConfig

	speed          float32
	targetPosition math.Vec3
	targetRotation math.Vec3
}

func NewCameraController(camera *components.Camera, input *core.InputState, config CameraControllerConfig) (*CameraController, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}
	return &CameraController{
		camera:         camera,
		input:          input,
		config:         config,
		speed:          config.MoveSpeed,
		targetPosition: camera.Position(),
		targetRotation: camera.EulerRotation(),
	}, nil
}

func (cc *CameraController) Camera() *components.Camera {
	return cc.camera
}

func (cc *CameraController) Speed() float32 {
	return cc.speed
}

func (cc *CameraController) TargetPosition() math.Vec3 {
	return cc.targetPosition
}

func (cc *CameraController) TargetRotation() math.Vec3 {
	return cc.targetRotation
}

// SetTarget moves the target without touching the camera.
func (cc *CameraController) SetTarget(position, rotation math.Vec3) {
	cc.targetPosition = position
	rotation.X = math.Clamp(rotation.X, -components.PITCH_LIMIT, components.PITCH_LIMIT)
	cc.targetRotation = rotation
}

// Snap places the camera on its target immediately.
func (cc *CameraController) Snap() {
	cc.camera.SetPosition(cc.targetPosition)
	cc.camera.SetEulerRotation(cc.targetRotation)
}

/**
 * @brief Reads this frame's input and moves the camera toward its target.
 *
 * @param deltaTime Seconds since the previous update.
 */
func (cc *CameraController) Update(deltaTime float32) {
	if deltaTime < 0 {
		deltaTime = 0
	}
	cc.updateSpeed()
	cc.updateRotation()
	cc.updatePosition(deltaTime)

	t := math.DampFactor(cc.config.Sharpness, deltaTime)
	cc.camera.SetPosition(cc.camera.Position().Lerp(cc.targetPosition, t))
	cc.camera.SetEulerRotation(cc.camera.EulerRotation().Lerp(cc.targetRotation, t))
}

func (cc *CameraController) updateSpeed() {
	wheel := cc.input.MouseWheel()
	if wheel == 0 {
		return
	}
	factor := float32(gomath.Pow(float64(cc.config.SpeedStep), float64(wheel)))
	cc.speed = math.Clamp(cc.speed*factor, cc.config.MinSpeed, cc.config.MaxSpeed)
}

func (cc *CameraController) updateRotation() {
	if !cc.input.IsButtonDown(core.BUTTON_RIGHT) || !cc.input.WasButtonDown(core.BUTTON_RIGHT) {
		return
	}
	dx, dy := cc.input.MouseDelta()
	if dx == 0 && dy == 0 {
		return
	}
	rotation := cc.targetRotation
	rotation.Y -= float32(dx) * cc.config.LookSensitivity
	rotation.X -= float32(dy) * cc.config.LookSensitivity
	cc.SetTarget(cc.targetPosition, rotation)
}

func (cc *CameraController) updatePosition(deltaTime float32) {
	var local math.Vec3
	if cc.input.IsKeyDown(core.KEY_W) {
		local.Z -= 1
	}
	if cc.input.IsKeyDown(core.KEY_S) {
		local.Z += 1
	}
	if cc.input.IsKeyDown(core.KEY_A) {
		local.X -= 1
	}
	if cc.input.IsKeyDown(core.KEY_D) {
		local.X += 1
	}
	if cc.input.IsKeyDown(core.KEY_E) {
		local.Y += 1
	}
	if cc.input.IsKeyDown(core.KEY_Q) {
		local.Y -= 1
	}
	if local.LengthSquared() == 0 {
		return
	}

	// Move relative to where the target looks, keeping Q and E on the world up axis.
	yaw := math.NewMat4EulerY(cc.targetRotation.Y)
	planar := math.NewVec3(local.X, 0, local.Z).Transform(yaw)
	direction := planar.Add(math.NewVec3(0, local.Y, 0)).Normalized()
	cc.targetPosition = cc.targetPosition.Add(direction.MulScalar(cc.speed * deltaTime))
}
