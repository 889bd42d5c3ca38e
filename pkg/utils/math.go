package utils

import (
	"cmp"
	"math"
)

// Clamp limits v to [lo, hi]
func Clamp[T cmp.Ordered](v, lo, hi T) T {
	return min(max(v, lo), hi)
}

// Round rounds value to the given number of decimal places
func Round(value float64, decimals int) float64 {
	p := math.Pow(10, float64(decimals))
	return math.Round(value*p) / p
}
