package math32

import "math"

// MaxFloat32 is the largest finite float32 value.
const MaxFloat32 = math.MaxFloat32

// Epsilon is the tolerance used for float comparisons across the module.
const Epsilon = 1e-5

// Min returns the minimum of two values.
func Min[T float32 | int32](a, b T) T {
	if a < b {
		return a
	}
	return b
}

// Max returns the maximum of two values.
func Max[T float32 | int32](a, b T) T {
	if a > b {
		return a
	}
	return b
}

// Abs returns the absolute value of a float32.
func Abs(a float32) float32 {
	if a < 0 {
		return -a
	}
	return a
}

// Clamp limits value to [min, max].
func Clamp(value, min, max float32) float32 {
	if value < min {
		return min
	}
	if value > max {
		return max
	}
	return value
}

// Clamp01 limits value to [0, 1].
func Clamp01(value float32) float32 {
	return Clamp(value, 0, 1)
}

// CeilToInt returns the ceiling of a float32 as an integer.
func CeilToInt(a float32) int {
	return int(math.Ceil(float64(a)))
}

// Sqrt returns the square root of a float32.
func Sqrt(a float32) float32 {
	return float32(math.Sqrt(float64(a)))
}

// ApproxEqual reports whether a and b differ by less than Epsilon.
func ApproxEqual(a, b float32) bool {
	return Abs(a-b) < Epsilon
}
