package indicator

// StochasticResult holds the results of stochastic oscillator calculation
type StochasticResult struct {
	K []float64 // %K line values
	D []float64 // %D line values
}

// CalculateStochastic calculates the Stochastic Oscillator:
// %K = 100 * (close - lowest_low) / (highest_high - lowest_low) over
// kPeriod, %D = SMA of %K over dPeriod. A window with no range yields the
// neutral %K of 50. Both lines are NaN during warmup and the %D warmup
// extends past the %K warmup by dPeriod-1 bars.
func CalculateStochastic(highs, lows, closes []float64, kPeriod, dPeriod int) *StochasticResult {
	n := len(highs)
	if kPeriod <= 0 || dPeriod <= 0 || n < kPeriod || len(lows) != n || len(closes) != n {
		return &StochasticResult{K: nanSlice(n), D: nanSlice(n)}
	}

	k := nanSlice(n)
	for i := kPeriod - 1; i < n; i++ {
		highest := highs[i-kPeriod+1]
		lowest := lows[i-kPeriod+1]
		for j := i - kPeriod + 2; j <= i; j++ {
			if highs[j] > highest {
				highest = highs[j]
			}
			if lows[j] < lowest {
				lowest = lows[j]
			}
		}

		if highest == lowest {
			k[i] = 50.0
		} else {
			k[i] = 100.0 * (closes[i] - lowest) / (highest - lowest)
		}
	}

	return &StochasticResult{K: k, D: CalculateSMA(k, dPeriod)}
}

// StochasticSignals defines common stochastic oscillator signal levels
const (
	StochasticOverbought = 80.0
	StochasticOversold   = 20.0
	StochasticMiddle     = 50.0
)

// IsOverbought checks if the stochastic oscillator indicates overbought conditions
func IsOverbought(k, d float64) bool {
	return k > StochasticOverbought && d > StochasticOverbought
}

// IsOversold checks if the stochastic oscillator indicates oversold conditions
func IsOversold(k, d float64) bool {
	return k < StochasticOversold && d < StochasticOversold
}
