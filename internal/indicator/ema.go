package indicator

// CalculateEMA calculates the Exponential Moving Average with smoothing
// factor 2/(period+1). The first value seeds the average, so the result is
// defined for every index when the input is.
func CalculateEMA(prices []float64, period int) []float64 {
	if len(prices) == 0 {
		return nil
	}
	if period <= 0 {
		return nanSlice(len(prices))
	}

	alpha := 2.0 / float64(period+1)
	result := make([]float64, len(prices))
	result[0] = prices[0]
	for i := 1; i < len(prices); i++ {
		result[i] = alpha*prices[i] + (1-alpha)*result[i-1]
	}
	return result
}
