package indicator

import "math"

// CalculateADX calculates the Average Directional Index. Directional
// movements count only the larger of the up or down move when positive, the
// directional indicators are EMAs of those movements scaled by the ATR, and
// the ADX is an EMA of the resulting DX. Ratios with a zero denominator
// resolve to 0 (no directional movement means no measurable trend) so flat
// warmup bars never poison the smoothing with NaN. A series shorter than
// period+1 is all NaN.
func CalculateADX(highs, lows, closes []float64, period int) []float64 {
	n := len(highs)
	if period <= 0 || n < period+1 || len(lows) != n || len(closes) != n {
		return nanSlice(n)
	}

	plusDM := make([]float64, n)
	minusDM := make([]float64, n)
	for i := 1; i < n; i++ {
		moveUp := highs[i] - highs[i-1]
		moveDown := lows[i-1] - lows[i]

		if moveUp > moveDown && moveUp > 0 {
			plusDM[i] = moveUp
		}
		if moveDown > moveUp && moveDown > 0 {
			minusDM[i] = moveDown
		}
	}

	atr := CalculateATR(highs, lows, closes, period)
	plusSmooth := CalculateEMA(plusDM, period)
	minusSmooth := CalculateEMA(minusDM, period)

	dx := make([]float64, n)
	for i := 0; i < n; i++ {
		var plusDI, minusDI float64
		if atr[i] != 0 && !math.IsNaN(atr[i]) {
			plusDI = 100 * plusSmooth[i] / atr[i]
			minusDI = 100 * minusSmooth[i] / atr[i]
		}

		sum := plusDI + minusDI
		if sum == 0 {
			dx[i] = 0
		} else {
			dx[i] = 100 * math.Abs(plusDI-minusDI) / sum
		}
	}

	return CalculateEMA(dx, period)
}
