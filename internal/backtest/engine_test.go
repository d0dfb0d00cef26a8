package backtest

import (
	"context"
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/amirphl/nse-backtest/internal/candle"
	"github.com/amirphl/nse-backtest/internal/journal"
	"github.com/amirphl/nse-backtest/internal/position"
	"github.com/amirphl/nse-backtest/internal/strategy"
)

func testCandle(i int, close float64) candle.Candle {
	base := time.Date(2024, 1, 15, 9, 15, 0, 0, time.UTC)
	return candle.Candle{
		Timestamp: base.Add(time.Duration(i) * time.Minute),
		Open:      close,
		High:      close + 1,
		Low:       close - 1,
		Close:     close,
		Volume:    1000,
		Symbol:    "NIFTY",
		Timeframe: "1m",
		Source:    "test",
	}
}

func testSeries(closes []float64) []candle.Candle {
	out := make([]candle.Candle, len(closes))
	for i, c := range closes {
		out[i] = testCandle(i, c)
	}
	return out
}

// crossoverSeries produces exactly one long entry at index 5 for a 2/3
// crossover strategy, closed by the take profit on the next bar.
func crossoverSeries() []candle.Candle {
	return testSeries([]float64{100, 99, 98, 97, 96, 100, 104})
}

func newCrossoverStrategy(t *testing.T) strategy.Strategy {
	t.Helper()
	cfg := strategy.DefaultMACrossoverConfig()
	cfg.FastPeriod = 2
	cfg.SlowPeriod = 3
	cfg.RSIPeriod = 50 // longer than the series, so the filter never engages
	s, err := strategy.NewMACrossover(cfg)
	require.NoError(t, err)
	return s
}

func testConfig() Config {
	return Config{
		Symbol:         "NIFTY",
		Timeframe:      "1m",
		InitialCapital: 100000,
	}
}

// holdForever goes long on the first bar and never exits on its own, so
// the position survives to the end-of-data liquidation.
type holdForever struct{ entered bool }

func (h *holdForever) Name() string             { return "hold_forever" }
func (h *holdForever) WarmupPeriod() int        { return 1 }
func (h *holdForever) Reset()                   { h.entered = false }
func (h *holdForever) Before(bar *strategy.Bar) {}
func (h *holdForever) ShouldLong(bar *strategy.Bar) bool {
	if h.entered {
		return false
	}
	h.entered = true
	return true
}
func (h *holdForever) ShouldShort(bar *strategy.Bar) bool       { return false }
func (h *holdForever) ShouldCancelEntry(bar *strategy.Bar) bool { return false }
func (h *holdForever) After(bar *strategy.Bar)                  {}

func TestEngineNotReady(t *testing.T) {
	e := New(newCrossoverStrategy(t), testConfig())

	results, err := e.Run(context.Background())

	require.ErrorIs(t, err, ErrNotReady)
	assert.Nil(t, results)
	assert.Equal(t, NotLoaded, e.State())
}

func TestEngineLoad(t *testing.T) {
	t.Run("empty series", func(t *testing.T) {
		e := New(newCrossoverStrategy(t), testConfig())

		require.ErrorIs(t, e.Load(nil), ErrNoCandles)
		assert.Equal(t, NotLoaded, e.State())
	})

	t.Run("out of order", func(t *testing.T) {
		series := crossoverSeries()
		series[2], series[3] = series[3], series[2]
		e := New(newCrossoverStrategy(t), testConfig())

		err := e.Load(series)

		require.Error(t, err)
		assert.Contains(t, err.Error(), "out of order")
	})

	t.Run("valid series", func(t *testing.T) {
		e := New(newCrossoverStrategy(t), testConfig())

		require.NoError(t, e.Load(crossoverSeries()))
		assert.Equal(t, Loaded, e.State())
	})

	t.Run("date range excludes everything", func(t *testing.T) {
		cfg := testConfig()
		cfg.Finish = time.Date(2020, 1, 1, 0, 0, 0, 0, time.UTC)
		e := New(newCrossoverStrategy(t), cfg)

		require.ErrorIs(t, e.Load(crossoverSeries()), ErrNoCandles)
	})
}

func TestEngineRun(t *testing.T) {
	e := New(newCrossoverStrategy(t), testConfig())
	require.NoError(t, e.Load(crossoverSeries()))

	results, err := e.Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, Done, e.State())
	assert.Same(t, results, e.Results())

	assert.NotEmpty(t, results.RunID)
	assert.Equal(t, "ma_crossover", results.Strategy)
	assert.Equal(t, "NIFTY", results.Symbol)
	assert.Equal(t, "NSE", results.Exchange)
	assert.Equal(t, "1m", results.Timeframe)
	assert.Equal(t, testCandle(0, 100).Timestamp, results.Start)
	assert.Equal(t, testCandle(6, 104).Timestamp, results.Finish)

	assert.InDelta(t, 100000.0, results.InitialCapital, 1e-9)
	assert.InDelta(t, 103000.0, results.FinalCapital, 1e-9)
	assert.InDelta(t, 3000.0, results.TotalReturn, 1e-9)
	assert.InDelta(t, 3.0, results.TotalReturnPercentage, 1e-9)

	require.Len(t, results.Trades, 1)
	trade := results.Trades[0]
	assert.Equal(t, position.Long, trade.Side)
	assert.InDelta(t, 100.0, trade.EntryPrice, 1e-9)
	assert.InDelta(t, 103.0, trade.ExitPrice, 1e-9)
	assert.InDelta(t, 1000.0, trade.Quantity, 1e-9)
	assert.InDelta(t, 3000.0, trade.PnL, 1e-9)
	assert.Equal(t, position.ReasonTakeProfit, trade.Reason)
	assert.Equal(t, testCandle(5, 100).Timestamp, trade.EntryTime)
	assert.Equal(t, testCandle(6, 104).Timestamp, trade.ExitTime)

	assert.Equal(t, 1, results.Metrics.TotalTrades)
	assert.Equal(t, 1, results.Metrics.WinningTrades)
	assert.Equal(t, 0, results.Metrics.LosingTrades)
	assert.InDelta(t, 1.0, results.Metrics.WinRate, 1e-9)
	assert.True(t, math.IsInf(results.Metrics.ProfitFactor, 1))
	assert.InDelta(t, 3000.0, results.Metrics.TotalProfit, 1e-9)
}

func TestEngineForceLiquidation(t *testing.T) {
	e := New(&holdForever{}, testConfig())
	require.NoError(t, e.Load(testSeries([]float64{100, 101, 102})))

	results, err := e.Run(context.Background())
	require.NoError(t, err)

	require.Len(t, results.Trades, 1)
	trade := results.Trades[0]
	assert.Equal(t, position.Long, trade.Side)
	assert.InDelta(t, 100.0, trade.EntryPrice, 1e-9)
	assert.InDelta(t, 102.0, trade.ExitPrice, 1e-9)
	assert.InDelta(t, 1000.0, trade.Quantity, 1e-9)
	assert.InDelta(t, 2000.0, trade.PnL, 1e-9)
	assert.Equal(t, position.ReasonEndOfData, trade.Reason)
	assert.Equal(t, testCandle(0, 100).Timestamp, trade.EntryTime)
	assert.Equal(t, testCandle(2, 102).Timestamp, trade.ExitTime)

	assert.InDelta(t, 102000.0, results.FinalCapital, 1e-9)
}

func TestEngineDateFilter(t *testing.T) {
	cfg := testConfig()
	cfg.Start = testCandle(2, 0).Timestamp
	cfg.Finish = testCandle(4, 0).Timestamp
	e := New(&holdForever{}, cfg)
	require.NoError(t, e.Load(crossoverSeries()))

	results, err := e.Run(context.Background())
	require.NoError(t, err)

	// Both bounds are inclusive: indexes 2 through 4 survive the filter.
	assert.Equal(t, testCandle(2, 0).Timestamp, results.Start)
	assert.Equal(t, testCandle(4, 0).Timestamp, results.Finish)

	require.Len(t, results.Trades, 1)
	assert.Equal(t, testCandle(2, 0).Timestamp, results.Trades[0].EntryTime)
	assert.Equal(t, testCandle(4, 0).Timestamp, results.Trades[0].ExitTime)
}

func TestEngineDeterminism(t *testing.T) {
	e := New(newCrossoverStrategy(t), testConfig())
	require.NoError(t, e.Load(crossoverSeries()))

	first, err := e.Run(context.Background())
	require.NoError(t, err)
	second, err := e.Run(context.Background())
	require.NoError(t, err)

	// Record IDs are freshly assigned per run; everything economic must
	// come out identical.
	stripIDs := func(trades []position.Trade) []position.Trade {
		out := make([]position.Trade, len(trades))
		copy(out, trades)
		for i := range out {
			out[i].ID = ""
		}
		return out
	}

	assert.NotEqual(t, first.RunID, second.RunID)
	assert.Equal(t, stripIDs(first.Trades), stripIDs(second.Trades))
	assert.Equal(t, first.Metrics, second.Metrics)
	assert.InDelta(t, first.FinalCapital, second.FinalCapital, 0)
}

func TestEngineCancellation(t *testing.T) {
	e := New(newCrossoverStrategy(t), testConfig())
	require.NoError(t, e.Load(crossoverSeries()))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	results, err := e.Run(ctx)

	require.ErrorIs(t, err, context.Canceled)
	assert.Nil(t, results)
	assert.Nil(t, e.Results())
	assert.Equal(t, Loaded, e.State())

	// The engine stays usable after an aborted pass.
	results, err = e.Run(context.Background())
	require.NoError(t, err)
	assert.InDelta(t, 103000.0, results.FinalCapital, 1e-9)
}

func TestEngineJournal(t *testing.T) {
	mem := journal.NewMemory()
	e := New(newCrossoverStrategy(t), testConfig())
	e.Journal = mem
	require.NoError(t, e.Load(crossoverSeries()))

	_, err := e.Run(context.Background())
	require.NoError(t, err)

	until := time.Now().UTC().Add(time.Hour)

	started, err := mem.GetEvents(journal.EventRunStarted, time.Time{}, until)
	require.NoError(t, err)
	require.Len(t, started, 1)
	assert.Contains(t, started[0].Description, "ma_crossover")
	assert.Equal(t, 7, started[0].Data["candles"])

	finished, err := mem.GetEvents(journal.EventRunFinished, time.Time{}, until)
	require.NoError(t, err)
	require.Len(t, finished, 1)
	assert.Equal(t, 1, finished[0].Data["trades"])
}

func TestStateString(t *testing.T) {
	assert.Equal(t, "not_loaded", NotLoaded.String())
	assert.Equal(t, "loaded", Loaded.String())
	assert.Equal(t, "running", Running.String())
	assert.Equal(t, "done", Done.String())
}
