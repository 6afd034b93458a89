package math

import (
	m "math"

	"golang.org/x/exp/constraints"
)

const (
	/** @brief An approximate representation of PI. */
	K_PI float32 = 3.14159265358979323846
	/** @brief An approximate representation of PI divided by 2. */
	K_HALF_PI float32 = 0.5 * K_PI
	/** @brief A multiplier used to convert degrees to radians. */
	K_DEG2RAD_MULTIPLIER float32 = K_PI / 180.0
	/** @brief A multiplier used to convert radians to degrees. */
	K_RAD2DEG_MULTIPLIER float32 = 180.0 / K_PI
	/** @brief Smallest positive number where 1.0 + FLOAT_EPSILON != 0 */
	K_FLOAT_EPSILON float32 = 1.192092896e-07
)

func ksin(x float32) float32 {
	return float32(m.Sin(float64(x)))
}

func kcos(x float32) float32 {
	return float32(m.Cos(float64(x)))
}

func ktan(x float32) float32 {
	return float32(m.Tan(float64(x)))
}

func ksqrt(x float32) float32 {
	return float32(m.Sqrt(float64(x)))
}

func kabs(x float32) float32 {
	return float32(m.Abs(float64(x)))
}

// Clamp returns the value `f` clamped to the range [low, high].
// It works for any numeric type (integers and floats).
func Clamp[T constraints.Ordered](f, low, high T) T {
	if f < low {
		return low
	}
	if f > high {
		return high
	}
	return f
}

// Lerp interpolates linearly between a and b. t is not clamped.
func Lerp[T constraints.Float](a, b, t T) T {
	return a + (b-a)*t
}

// DampFactor is the fraction of the remaining distance covered in dt seconds when
// approaching a target with the given sharpness. It does not depend on the frame rate:
// two steps of dt/2 cover the same distance as one step of dt.
func DampFactor(sharpness, dt float32) float32 {
	if sharpness <= 0 {
		return 1
	}
	return 1 - float32(m.Exp(float64(-sharpness*dt)))
}

func DegToRad(degrees float32) float32 {
	return degrees * K_DEG2RAD_MULTIPLIER
}

func RadToDeg(radians float32) float32 {
	return radians * K_RAD2DEG_MULTIPLIER
}
