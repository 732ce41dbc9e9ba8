// Package convert holds the narrowing integer conversions used where
// configured sizes and retry attempts meet fixed-width APIs.
package convert

import "math"

// Int32 converts v to int32, clamping it to the int32 range.
func Int32(v int) int32 {
	return int32(min(max(v, math.MinInt32), math.MaxInt32))
}

// Uint converts v to uint. Negative values become zero.
func Uint(v int) uint {
	if v < 0 {
		return 0
	}
	return uint(v)
}
