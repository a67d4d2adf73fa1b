package math

import (
	stdmath "math"

	"golang.org/x/exp/constraints"
)

const (
	PI      float32 = 3.14159265358979323846
	EPSILON float32 = 1.192092896e-07
)

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

// Max returns the larger of a and b.
func Max[T constraints.Ordered](a, b T) T {
	if a > b {
		return a
	}
	return b
}

func DegToRad(degrees float32) float32 {
	return degrees * (PI / 180.0)
}

func RadToDeg(radians float32) float32 {
	return radians * (180.0 / PI)
}

func sin(x float32) float32  { return float32(stdmath.Sin(float64(x))) }
func cos(x float32) float32  { return float32(stdmath.Cos(float64(x))) }
func tan(x float32) float32  { return float32(stdmath.Tan(float64(x))) }
func sqrt(x float32) float32 { return float32(stdmath.Sqrt(float64(x))) }
func abs(x float32) float32  { return float32(stdmath.Abs(float64(x))) }
