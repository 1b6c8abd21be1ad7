package spatialmath

import (
	"math"
)

// NormalizeAngle wraps an angle in radians into (-pi, pi].
func NormalizeAngle(rad float64) float64 {
	wrapped := math.Mod(rad, 2*math.Pi)
	if wrapped > math.Pi {
		wrapped -= 2 * math.Pi
	} else if wrapped <= -math.Pi {
		wrapped += 2 * math.Pi
	}
	return wrapped
}

// HeadingError is the signed shortest rotation from `from` to `to`, in (-pi, pi].
func HeadingError(from, to float64) float64 {
	return NormalizeAngle(to - from)
}

// Finite reports whether every value is neither NaN nor infinite.
func Finite(values ...float64) bool {
	for _, v := range values {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return false
		}
	}
	return true
}
