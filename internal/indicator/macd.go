package indicator

// MACDResult holds the MACD line, its signal line and the histogram.
type MACDResult struct {
	MACD      []float64
	Signal    []float64
	Histogram []float64
}

// CalculateMACD calculates the Moving Average Convergence Divergence: the
// difference between a fast and a slow EMA, an EMA of that difference as the
// signal line, and their spread as the histogram.
func CalculateMACD(prices []float64, fastPeriod, slowPeriod, signalPeriod int) *MACDResult {
	fast := CalculateEMA(prices, fastPeriod)
	slow := CalculateEMA(prices, slowPeriod)

	macd := make([]float64, len(prices))
	for i := range macd {
		macd[i] = fast[i] - slow[i]
	}

	signal := CalculateEMA(macd, signalPeriod)

	histogram := make([]float64, len(prices))
	for i := range histogram {
		histogram[i] = macd[i] - signal[i]
	}

	return &MACDResult{MACD: macd, Signal: signal, Histogram: histogram}
}
