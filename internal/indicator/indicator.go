// Package indicator provides technical analysis indicators for financial markets
package indicator

import "math"

// All indicators return slices with the same length as their input. Positions
// where a value is not yet defined hold NaN, so callers must check with
// math.IsNaN before using a value in a trading decision. Ratios with a zero
// denominator saturate to a bound instead of producing NaN.

// nanSlice returns a slice of n NaNs.
func nanSlice(n int) []float64 {
	s := make([]float64, n)
	for i := range s {
		s[i] = math.NaN()
	}
	return s
}

// Crossover reports whether a series crossed above another between the
// previous and current values.
func Crossover(prevA, prevB, currA, currB float64) bool {
	return prevA <= prevB && currA > currB
}

// Crossunder reports whether a series crossed below another between the
// previous and current values.
func Crossunder(prevA, prevB, currA, currB float64) bool {
	return prevA >= prevB && currA < currB
}
