package indicator

import "math"

// BollingerResult holds the three Bollinger band lines.
type BollingerResult struct {
	Upper  []float64
	Middle []float64
	Lower  []float64
}

// CalculateBollingerBands calculates Bollinger Bands: an SMA middle band
// with upper and lower bands offset by stdDev population standard
// deviations. All three bands are NaN until a full period is available.
func CalculateBollingerBands(prices []float64, period int, stdDev float64) *BollingerResult {
	result := &BollingerResult{
		Upper:  nanSlice(len(prices)),
		Middle: CalculateSMA(prices, period),
		Lower:  nanSlice(len(prices)),
	}
	if period <= 0 || len(prices) < period {
		return result
	}

	for i := period - 1; i < len(prices); i++ {
		mean := result.Middle[i]
		variance := 0.0
		for j := i - period + 1; j <= i; j++ {
			diff := prices[j] - mean
			variance += diff * diff
		}
		sd := math.Sqrt(variance / float64(period))
		result.Upper[i] = mean + stdDev*sd
		result.Lower[i] = mean - stdDev*sd
	}

	return result
}
