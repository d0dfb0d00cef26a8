package position

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/amirphl/nse-backtest/internal/candle"
	"github.com/amirphl/nse-backtest/internal/instrument"
)

func testCandle(ts time.Time, open, high, low, close float64) candle.Candle {
	return candle.Candle{
		Timestamp: ts,
		Open:      open,
		High:      high,
		Low:       low,
		Close:     close,
		Volume:    1000,
		Symbol:    "NIFTY50",
		Timeframe: "1m",
		Source:    "test",
	}
}

func nifty(t *testing.T) instrument.Instrument {
	t.Helper()
	inst, err := instrument.New("NIFTY", instrument.Futures, 75, 0.11, 0.05, 9.0, 0.0003)
	require.NoError(t, err)
	return inst
}

func TestTraderMarginRoundTrip(t *testing.T) {
	inst := nifty(t)
	trader := NewTrader("NIFTY50", 250000,
		LotMarginSizing{Instrument: inst, RiskFraction: 0.9, MaxLots: 3, LotsPerEntry: 1},
		MarginAccounting{Instrument: inst, ChargeCosts: true},
	)
	trader.InstrumentName = "NIFTY"

	base := time.Date(2024, 1, 15, 9, 30, 0, 0, time.UTC)
	entry := testCandle(base, 23490, 23510, 23480, 23500)
	exit := testCandle(base.Add(5*time.Minute), 23590, 23610, 23580, 23600)

	trader.GoLong(entry, 0, 0)

	require.True(t, trader.Book.IsLong())
	assert.Equal(t, 1, trader.Book.Lots)
	assert.Equal(t, 75.0, trader.Book.Size)
	assert.Equal(t, 23500.0, trader.Book.EntryPrice)
	assert.InDelta(t, 193875.0, trader.Book.MarginReserved, 0.01)
	assert.InDelta(t, 250000.0-193875.0, trader.Capital, 0.01)
	assert.Equal(t, base, trader.Book.EntryTime)

	trader.Liquidate(exit, 0, ReasonSignal)

	require.True(t, trader.Book.IsFlat())
	require.Len(t, trader.Trades, 1)

	trade := trader.Trades[0]
	assert.NotEmpty(t, trade.ID)
	assert.Equal(t, Long, trade.Side)
	assert.Equal(t, 23500.0, trade.EntryPrice)
	assert.Equal(t, 23600.0, trade.ExitPrice)
	assert.Equal(t, 1, trade.Lots)
	assert.InDelta(t, 531.0, trade.TransactionCost, 0.01)    // 23600 x 75 x 0.0003
	assert.InDelta(t, 6969.0, trade.PnL, 0.01)               // 7500 gross - 531 cost
	assert.InDelta(t, 193875.0, trade.MarginUsed, 0.01)
	assert.Equal(t, "NIFTY", trade.Instrument)
	assert.Equal(t, base, trade.EntryTime)
	assert.Equal(t, exit.Timestamp, trade.ExitTime)

	assert.InDelta(t, 256969.0, trader.Capital, 0.01)
}

func TestTraderShortRoundTrip(t *testing.T) {
	trader := NewTrader("NIFTY50", 100000, FullCapitalSizing{}, CashAccounting{})

	base := time.Date(2024, 1, 15, 9, 30, 0, 0, time.UTC)
	entry := testCandle(base, 23500, 23510, 23480, 23500)
	exit := testCandle(base.Add(time.Minute), 23410, 23420, 23390, 23400)

	trader.GoShort(entry, 0, 0)
	require.True(t, trader.Book.IsShort())
	assert.InDelta(t, 100000.0/23500.0, trader.Book.Size, 1e-9)
	assert.InDelta(t, 100000.0, trader.Capital, 0.01, "cash entry reserves nothing")

	trader.Liquidate(exit, 0, ReasonSignal)
	require.Len(t, trader.Trades, 1)

	wantPnL := (23500.0 - 23400.0) * (100000.0 / 23500.0)
	assert.InDelta(t, wantPnL, trader.Trades[0].PnL, 0.01)
	assert.InDelta(t, 100000.0+wantPnL, trader.Capital, 0.01)
}

func TestTraderNoOps(t *testing.T) {
	base := time.Date(2024, 1, 15, 9, 30, 0, 0, time.UTC)
	c := testCandle(base, 23500, 23510, 23480, 23500)

	t.Run("Liquidate while flat", func(t *testing.T) {
		trader := NewTrader("NIFTY50", 100000, nil, nil)
		trader.Liquidate(c, 0, ReasonSignal)
		assert.Empty(t, trader.Trades)
		assert.InDelta(t, 100000.0, trader.Capital, 0.01)
	})

	t.Run("Same side entry does not duplicate", func(t *testing.T) {
		trader := NewTrader("NIFTY50", 100000, nil, nil)
		trader.GoLong(c, 0, 0)
		book := trader.Book

		trader.GoLong(c, 0, 23600)
		assert.Equal(t, book, trader.Book, "second entry must not touch the book")
		assert.Empty(t, trader.Trades)
	})

	t.Run("Opposite side entry while open ignored", func(t *testing.T) {
		trader := NewTrader("NIFTY50", 100000, nil, nil)
		trader.GoLong(c, 0, 0)

		trader.GoShort(c, 0, 0)
		assert.True(t, trader.Book.IsLong())
		assert.Empty(t, trader.Trades)
	})

	t.Run("Unsizeable entry leaves trader flat", func(t *testing.T) {
		inst := nifty(t)
		// 100k capital cannot margin a single NIFTY lot.
		trader := NewTrader("NIFTY50", 100000,
			LotMarginSizing{Instrument: inst, RiskFraction: 0.9, MaxLots: 3, LotsPerEntry: 1},
			MarginAccounting{Instrument: inst, ChargeCosts: true},
		)
		trader.GoLong(c, 0, 0)
		assert.True(t, trader.Book.IsFlat())
		assert.Empty(t, trader.Trades)
		assert.InDelta(t, 100000.0, trader.Capital, 0.01)
	})
}

func TestTraderBrackets(t *testing.T) {
	base := time.Date(2024, 1, 15, 9, 30, 0, 0, time.UTC)

	t.Run("Long stop loss hit at stop price", func(t *testing.T) {
		trader := NewTrader("NIFTY50", 100000, nil, nil)
		trader.GoLong(testCandle(base, 23500, 23510, 23480, 23500), 0, 0)
		trader.SetStopLoss(23300)
		trader.SetTakeProfit(23800)

		trader.UpdatePosition(testCandle(base.Add(time.Minute), 23400, 23450, 23290, 23350))

		require.Len(t, trader.Trades, 1)
		assert.Equal(t, 23300.0, trader.Trades[0].ExitPrice)
		assert.Equal(t, ReasonStopLoss, trader.Trades[0].Reason)
	})

	t.Run("Long take profit hit at target price", func(t *testing.T) {
		trader := NewTrader("NIFTY50", 100000, nil, nil)
		trader.GoLong(testCandle(base, 23500, 23510, 23480, 23500), 0, 0)
		trader.SetStopLoss(23300)
		trader.SetTakeProfit(23800)

		trader.UpdatePosition(testCandle(base.Add(time.Minute), 23700, 23850, 23650, 23750))

		require.Len(t, trader.Trades, 1)
		assert.Equal(t, 23800.0, trader.Trades[0].ExitPrice)
		assert.Equal(t, ReasonTakeProfit, trader.Trades[0].Reason)
	})

	t.Run("Short stop loss on high", func(t *testing.T) {
		trader := NewTrader("NIFTY50", 100000, nil, nil)
		trader.GoShort(testCandle(base, 23500, 23510, 23480, 23500), 0, 0)
		trader.SetStopLoss(23700)
		trader.SetTakeProfit(23200)

		trader.UpdatePosition(testCandle(base.Add(time.Minute), 23600, 23720, 23580, 23650))

		require.Len(t, trader.Trades, 1)
		assert.Equal(t, 23700.0, trader.Trades[0].ExitPrice)
		assert.Equal(t, ReasonStopLoss, trader.Trades[0].Reason)
	})

	t.Run("Short take profit on low", func(t *testing.T) {
		trader := NewTrader("NIFTY50", 100000, nil, nil)
		trader.GoShort(testCandle(base, 23500, 23510, 23480, 23500), 0, 0)
		trader.SetStopLoss(23700)
		trader.SetTakeProfit(23200)

		trader.UpdatePosition(testCandle(base.Add(time.Minute), 23300, 23350, 23150, 23250))

		require.Len(t, trader.Trades, 1)
		assert.Equal(t, 23200.0, trader.Trades[0].ExitPrice)
		assert.Equal(t, ReasonTakeProfit, trader.Trades[0].Reason)
	})

	t.Run("Stop loss wins when both hit in one bar", func(t *testing.T) {
		trader := NewTrader("NIFTY50", 100000, nil, nil)
		trader.GoLong(testCandle(base, 23500, 23510, 23480, 23500), 0, 0)
		trader.SetStopLoss(23300)
		trader.SetTakeProfit(23800)

		trader.UpdatePosition(testCandle(base.Add(time.Minute), 23500, 23900, 23200, 23600))

		require.Len(t, trader.Trades, 1)
		assert.Equal(t, ReasonStopLoss, trader.Trades[0].Reason)
	})

	t.Run("No brackets set means no exit", func(t *testing.T) {
		trader := NewTrader("NIFTY50", 100000, nil, nil)
		trader.GoLong(testCandle(base, 23500, 23510, 23480, 23500), 0, 0)

		trader.UpdatePosition(testCandle(base.Add(time.Minute), 23500, 23900, 23200, 23600))
		assert.True(t, trader.Book.IsLong())
		assert.Empty(t, trader.Trades)
	})
}

func TestTraderExplicitQuantityLotRounding(t *testing.T) {
	inst := nifty(t)
	trader := NewTrader("NIFTY50", 1000000,
		LotMarginSizing{Instrument: inst, RiskFraction: 0.9, MaxLots: 3},
		MarginAccounting{Instrument: inst, ChargeCosts: true},
	)

	base := time.Date(2024, 1, 15, 9, 30, 0, 0, time.UTC)
	c := testCandle(base, 995, 1005, 990, 1000)

	// 160 shares rounds down to 150, two whole lots.
	trader.GoLong(c, 160, 0)

	require.True(t, trader.Book.IsLong())
	assert.Equal(t, 150.0, trader.Book.Size)
	assert.Equal(t, 2, trader.Book.Lots)
	assert.InDelta(t, inst.MarginRequired(1000, 2), trader.Book.MarginReserved, 0.01)
}

func TestTraderCapitalConservation(t *testing.T) {
	inst := nifty(t)
	trader := NewTrader("NIFTY50", 500000,
		LotMarginSizing{Instrument: inst, RiskFraction: 0.9, MaxLots: 3, LotsPerEntry: 1},
		MarginAccounting{Instrument: inst, ChargeCosts: true},
	)

	base := time.Date(2024, 1, 15, 9, 30, 0, 0, time.UTC)
	prices := []struct{ entry, exit float64 }{
		{23500, 23600},
		{23600, 23550},
		{23550, 23700},
	}

	for i, p := range prices {
		ts := base.Add(time.Duration(2*i) * time.Minute)
		trader.GoLong(testCandle(ts, p.entry, p.entry+10, p.entry-10, p.entry), 0, 0)
		trader.Liquidate(testCandle(ts.Add(time.Minute), p.exit, p.exit+10, p.exit-10, p.exit), 0, ReasonSignal)
	}

	require.Len(t, trader.Trades, 3)
	var pnlSum float64
	for _, trade := range trader.Trades {
		pnlSum += trade.PnL
	}
	assert.InDelta(t, trader.InitialCapital+pnlSum, trader.Capital, 0.01,
		"final capital must reconcile with recorded PnL")
	assert.True(t, trader.Book.IsFlat())
	assert.InDelta(t, 0.0, trader.Book.MarginReserved, 0.01)
}

func TestTraderReset(t *testing.T) {
	trader := NewTrader("NIFTY50", 100000, nil, nil)
	base := time.Date(2024, 1, 15, 9, 30, 0, 0, time.UTC)

	trader.GoLong(testCandle(base, 23500, 23510, 23480, 23500), 0, 0)
	trader.Liquidate(testCandle(base.Add(time.Minute), 23600, 23610, 23580, 23600), 0, ReasonSignal)
	require.NotEmpty(t, trader.Trades)

	trader.Reset()
	assert.InDelta(t, 100000.0, trader.Capital, 0.01)
	assert.True(t, trader.Book.IsFlat())
	assert.Empty(t, trader.Trades)
}
