package components

import (
	"github.com/spaghettifunk/kiln/engine/math"
)

/** @brief The pitch limit, 89 degrees, keeping the camera away from gimbal lock. */
const PITCH_LIMIT float32 = 1.55334306

/**
 * @brief A perspective camera described by a position and Euler angles
 * (pitch, yaw, roll). The view matrix is rebuilt lazily when either changes.
 */
type Camera struct {
	/** @brief The position of this camera. Use SetPosition so the view is rebuilt. */
	position math.Vec3
	/** @brief Euler rotation (pitch, yaw, roll) in radians. Use SetEulerRotation so the view is rebuilt. */
	eulerRotation math.Vec3
	/** @brief Internal flag used to determine when the view matrix needs to be rebuilt. */
	isDirty    bool
	viewMatrix math.Mat4

	FovRadians float32
	NearClip   float32
	FarClip    float32
}

func NewCamera() *Camera {
	camera := &Camera{
		FovRadians: math.DegToRad(45),
		NearClip:   0.1,
		FarClip:    1000,
	}
	camera.Reset()
	return camera
}

func (c *Camera) Reset() {
	c.eulerRotation = math.NewVec3Zero()
	c.position = math.NewVec3Zero()
	c.isDirty = false
	c.viewMatrix = math.NewMat4Identity()
}

func (c *Camera) Position() math.Vec3 {
	return c.position
}

func (c *Camera) SetPosition(position math.Vec3) {
	c.position = position
	c.isDirty = true
}

func (c *Camera) EulerRotation() math.Vec3 {
	return c.eulerRotation
}

// SetEulerRotation sets pitch, yaw and roll. Pitch is clamped to PITCH_LIMIT.
func (c *Camera) SetEulerRotation(rotation math.Vec3) {
	rotation.X = math.Clamp(rotation.X, -PITCH_LIMIT, PITCH_LIMIT)
	c.eulerRotation = rotation
	c.isDirty = true
}

// View returns the world to view transform.
func (c *Camera) View() math.Mat4 {
	if c.isDirty {
		rotation := math.NewMat4EulerXYZ(c.eulerRotation.X, c.eulerRotation.Y, c.eulerRotation.Z)
		translation := math.NewMat4Translation(c.position)
		c.viewMatrix = rotation.Mul(translation).Inverse()
		c.isDirty = false
	}
	return c.viewMatrix
}

func (c *Camera) Projection(aspectRatio float32) math.Mat4 {
	return math.NewMat4Perspective(c.FovRadians, aspectRatio, c.NearClip, c.FarClip)
}

// ViewProjection is View followed by Projection.
func (c *Camera) ViewProjection(aspectRatio float32) math.Mat4 {
	return c.View().Mul(c.Projection(aspectRatio))
}

func (c *Camera) Forward() math.Vec3 {
	return c.View().Forward()
}

func (c *Camera) Backward() math.Vec3 {
	return c.View().Backward()
}

func (c *Camera) Left() math.Vec3 {
	return c.View().Left()
}

func (c *Camera) Right() math.Vec3 {
	return c.View().Right()
}

func (c *Camera) move(direction math.Vec3, amount float32) {
	c.position = c.position.Add(direction.MulScalar(amount))
	c.isDirty = true
}

func (c *Camera) MoveForward(amount float32) {
	c.move(c.Forward(), amount)
}

func (c *Camera) MoveBackward(amount float32) {
	c.move(c.Backward(), amount)
}

func (c *Camera) MoveLeft(amount float32) {
	c.move(c.Left(), amount)
}

func (c *Camera) MoveRight(amount float32) {
	c.move(c.Right(), amount)
}

func (c *Camera) MoveUp(amount float32) {
	c.move(math.NewVec3Up(), amount)
}

func (c *Camera) MoveDown(amount float32) {
	c.move(math.NewVec3Down(), amount)
}

func (c *Camera) Yaw(amount float32) {
	c.eulerRotation.Y += amount
	c.isDirty = true
}

func (c *Camera) Pitch(amount float32) {
	c.SetEulerRotation(math.NewVec3(c.eulerRotation.X+amount, c.eulerRotation.Y, c.eulerRotation.Z))
}
