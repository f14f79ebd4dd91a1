// Package mathx has small numeric helpers shared by the waveform tools
package mathx

import "math"

// Round rounds a float to the nearest "unit" (0.1 for tenth, 0.01 for hundredth, and so on).
// Halves round away from zero.
func Round(x, unit float64) float64 {
	return math.Round(x/unit) * unit
}

// Lerp interpolates between a and b; frac 0 is a, frac 1 is b
func Lerp(a, b, frac float64) float64 {
	return a + frac*(b-a)
}
