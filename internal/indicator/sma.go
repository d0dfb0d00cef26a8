package indicator

// CalculateSMA calculates the Simple Moving Average over the given period.
// The first period-1 values are NaN; if the series is shorter than the
// period, every value is NaN. A window containing NaN yields NaN, so an SMA
// of another indicator stays undefined until that indicator's warmup has
// fully left the window.
func CalculateSMA(prices []float64, period int) []float64 {
	if period <= 0 || len(prices) < period {
		return nanSlice(len(prices))
	}

	result := nanSlice(len(prices))
	for i := period - 1; i < len(prices); i++ {
		sum := 0.0
		for j := i - period + 1; j <= i; j++ {
			sum += prices[j]
		}
		result[i] = sum / float64(period)
	}
	return result
}
