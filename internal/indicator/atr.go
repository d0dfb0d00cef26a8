package indicator

import "math"

// CalculateATR calculates the Average True Range as an EMA of the true
// range. The first bar's true range is its high-low span; later bars also
// consider the gap from the previous close. Fewer than two bars yields all
// NaN.
func CalculateATR(highs, lows, closes []float64, period int) []float64 {
	n := len(highs)
	if period <= 0 || n < 2 || len(lows) != n || len(closes) != n {
		return nanSlice(n)
	}

	tr := make([]float64, n)
	tr[0] = highs[0] - lows[0]
	for i := 1; i < n; i++ {
		hl := highs[i] - lows[i]
		hc := math.Abs(highs[i] - closes[i-1])
		lc := math.Abs(lows[i] - closes[i-1])
		tr[i] = math.Max(hl, math.Max(hc, lc))
	}

	return CalculateEMA(tr, period)
}
