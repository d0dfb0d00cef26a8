package indicator

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCalculateATR(t *testing.T) {
	highs := []float64{110, 112, 115, 113, 118, 120, 119, 121}
	lows := []float64{100, 105, 108, 107, 110, 113, 114, 116}
	closes := []float64{105, 110, 112, 111, 116, 118, 117, 120}

	t.Run("Basic calculation", func(t *testing.T) {
		// True ranges: 10, 7, 7, 6, 8, 7, 5, 5 smoothed with EMA(3)
		assertSeries(t, []float64{10, 8.5, 7.75, 6.875, 7.4375, 7.2188, 6.1094, 5.5547},
			CalculateATR(highs, lows, closes, 3))
	})

	t.Run("Gap from previous close dominates", func(t *testing.T) {
		// Second bar gaps up: high-low is 2 but distance from previous close
		// is 10, so TR = 10 and the ATR follows it.
		h := []float64{102, 112}
		l := []float64{100, 110}
		c := []float64{100, 111}
		result := CalculateATR(h, l, c, 1)
		assert.InDelta(t, 2.0, result[0], 0.01)
		assert.InDelta(t, 12.0, result[1], 0.01)
	})

	t.Run("Flat series is zero", func(t *testing.T) {
		flat := []float64{10, 10, 10, 10}
		for i, v := range CalculateATR(flat, flat, flat, 3) {
			assert.InDelta(t, 0.0, v, 1e-9, "index %d", i)
		}
	})

	t.Run("Fewer than two bars undefined", func(t *testing.T) {
		result := CalculateATR([]float64{110}, []float64{100}, []float64{105}, 3)
		assert.True(t, math.IsNaN(result[0]))
	})
}
