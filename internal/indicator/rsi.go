package indicator

import "math"

// CalculateRSI calculates the Relative Strength Index using Wilder's
// smoothing. The first defined value sits at index period (it needs period
// price changes); everything before is NaN, and a series shorter than
// period+1 is all NaN. When the average loss is zero the RSI saturates to
// 100 rather than dividing by zero, which also covers a fully flat window.
func CalculateRSI(prices []float64, period int) []float64 {
	if period <= 0 || len(prices) < period+1 {
		return nanSlice(len(prices))
	}

	result := nanSlice(len(prices))

	var gain, loss float64
	// Seed with the simple average of the first period changes
	for i := 1; i <= period; i++ {
		change := prices[i] - prices[i-1]
		if change > 0 {
			gain += change
		} else {
			loss += -change
		}
	}
	avgGain := gain / float64(period)
	avgLoss := loss / float64(period)
	result[period] = rsiFromAverages(avgGain, avgLoss)

	// Wilder smoothing for subsequent values
	for i := period + 1; i < len(prices); i++ {
		change := prices[i] - prices[i-1]
		gain = 0
		loss = 0
		if change > 0 {
			gain = change
		} else {
			loss = -change
		}
		avgGain = (avgGain*float64(period-1) + gain) / float64(period)
		avgLoss = (avgLoss*float64(period-1) + loss) / float64(period)
		result[i] = rsiFromAverages(avgGain, avgLoss)
	}

	return result
}

func rsiFromAverages(avgGain, avgLoss float64) float64 {
	if avgLoss == 0 {
		return 100
	}
	rs := avgGain / avgLoss
	return 100 - (100 / (1 + rs))
}

// RSIState computes the RSI incrementally, one price at a time. Feeding it
// the same series as CalculateRSI produces identical values without
// recomputing the whole prefix on every bar.
type RSIState struct {
	period  int
	count   int
	prev    float64
	gainSum float64
	lossSum float64
	avgGain float64
	avgLoss float64
}

// NewRSIState creates an incremental RSI calculator for the given period.
func NewRSIState(period int) *RSIState {
	return &RSIState{period: period}
}

// Update feeds the next price and returns the RSI at that point, or NaN
// while the state is still warming up.
func (s *RSIState) Update(price float64) float64 {
	if s.period <= 0 {
		return math.NaN()
	}

	s.count++
	if s.count == 1 {
		s.prev = price
		return math.NaN()
	}

	change := price - s.prev
	s.prev = price
	changes := s.count - 1

	switch {
	case changes < s.period:
		if change > 0 {
			s.gainSum += change
		} else {
			s.lossSum += -change
		}
		return math.NaN()
	case changes == s.period:
		if change > 0 {
			s.gainSum += change
		} else {
			s.lossSum += -change
		}
		s.avgGain = s.gainSum / float64(s.period)
		s.avgLoss = s.lossSum / float64(s.period)
	default:
		var gain, loss float64
		if change > 0 {
			gain = change
		} else {
			loss = -change
		}
		s.avgGain = (s.avgGain*float64(s.period-1) + gain) / float64(s.period)
		s.avgLoss = (s.avgLoss*float64(s.period-1) + loss) / float64(s.period)
	}

	return rsiFromAverages(s.avgGain, s.avgLoss)
}

// Value returns the current RSI without feeding a new price, or NaN while
// warming up.
func (s *RSIState) Value() float64 {
	if s.count <= s.period {
		return math.NaN()
	}
	return rsiFromAverages(s.avgGain, s.avgLoss)
}

// Reset returns the state to empty so it can be reused for a new series.
func (s *RSIState) Reset() {
	*s = RSIState{period: s.period}
}
