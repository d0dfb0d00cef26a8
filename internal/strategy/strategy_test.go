package strategy

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/amirphl/nse-backtest/internal/candle"
	"github.com/amirphl/nse-backtest/internal/position"
)

func testCandle(i int, open, high, low, close float64) candle.Candle {
	base := time.Date(2024, 1, 15, 9, 15, 0, 0, time.UTC)
	return candle.Candle{
		Timestamp: base.Add(time.Duration(i) * time.Minute),
		Open:      open,
		High:      high,
		Low:       low,
		Close:     close,
		Volume:    1000,
		Symbol:    "NIFTY",
		Timeframe: "1m",
		Source:    "test",
	}
}

// closesToCandles builds a 1m series whose highs and lows sit one point
// around the close, tight enough not to trip percentage brackets by
// accident.
func closesToCandles(closes []float64) []candle.Candle {
	out := make([]candle.Candle, len(closes))
	for i, c := range closes {
		out[i] = testCandle(i, c, c+1, c-1, c)
	}
	return out
}

// runStrategy drives a strategy over candles in the engine's per-bar
// order and returns the trader for inspection.
func runStrategy(s Strategy, candles []candle.Candle, initialCapital float64) *position.Trader {
	trader := position.NewTrader("NIFTY", initialCapital, nil, nil)
	if c, ok := s.(TraderConfigurer); ok {
		c.ConfigureTrader(trader)
	}

	for i, c := range candles {
		bar := &Bar{Index: i, Candle: c, History: candles[:i+1], Trader: trader}
		s.Before(bar)
		if trader.Book.IsFlat() {
			if s.ShouldLong(bar) {
				if !s.ShouldCancelEntry(bar) {
					trader.GoLong(c, 0, 0)
				}
			} else if s.ShouldShort(bar) {
				if !s.ShouldCancelEntry(bar) {
					trader.GoShort(c, 0, 0)
				}
			}
		}
		if !trader.Book.IsFlat() {
			s.After(bar)
		}
	}
	return trader
}

func TestApplyBrackets(t *testing.T) {
	t.Run("long offsets", func(t *testing.T) {
		trader := position.NewTrader("NIFTY", 100000, nil, nil)
		trader.GoLong(testCandle(0, 100, 101, 99, 100), 0, 0)

		applyBrackets(trader, 0.02, 0.03)

		assert.InDelta(t, 98.0, trader.Book.StopLoss, 1e-9)
		assert.InDelta(t, 103.0, trader.Book.TakeProfit, 1e-9)
	})

	t.Run("short offsets", func(t *testing.T) {
		trader := position.NewTrader("NIFTY", 100000, nil, nil)
		trader.GoShort(testCandle(0, 100, 101, 99, 100), 0, 0)

		applyBrackets(trader, 0.02, 0.03)

		assert.InDelta(t, 102.0, trader.Book.StopLoss, 1e-9)
		assert.InDelta(t, 97.0, trader.Book.TakeProfit, 1e-9)
	})

	t.Run("placed at most once", func(t *testing.T) {
		trader := position.NewTrader("NIFTY", 100000, nil, nil)
		trader.GoLong(testCandle(0, 100, 101, 99, 100), 0, 0)

		applyBrackets(trader, 0.02, 0.03)
		applyBrackets(trader, 0.10, 0.20)

		assert.InDelta(t, 98.0, trader.Book.StopLoss, 1e-9)
		assert.InDelta(t, 103.0, trader.Book.TakeProfit, 1e-9)
	})

	t.Run("partially set brackets left alone", func(t *testing.T) {
		trader := position.NewTrader("NIFTY", 100000, nil, nil)
		trader.GoLong(testCandle(0, 100, 101, 99, 100), 0, 0)
		trader.SetStopLoss(95)

		applyBrackets(trader, 0.02, 0.03)

		assert.InDelta(t, 95.0, trader.Book.StopLoss, 1e-9)
		assert.Zero(t, trader.Book.TakeProfit)
	})

	t.Run("flat book is a no-op", func(t *testing.T) {
		trader := position.NewTrader("NIFTY", 100000, nil, nil)

		applyBrackets(trader, 0.02, 0.03)

		assert.Zero(t, trader.Book.StopLoss)
		assert.Zero(t, trader.Book.TakeProfit)
	})
}
