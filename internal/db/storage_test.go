package db

import (
	"context"
	"testing"
	"time"

	"github.com/amirphl/nse-backtest/internal/backtest"
	"github.com/amirphl/nse-backtest/internal/candle"
	"github.com/amirphl/nse-backtest/internal/journal"
	"github.com/amirphl/nse-backtest/internal/position"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var seedBase = time.Date(2024, 1, 15, 9, 15, 0, 0, time.UTC)

func seedCandle(i int, close float64) candle.Candle {
	return candle.Candle{
		Timestamp: seedBase.Add(time.Duration(i) * time.Minute),
		Open:      close,
		High:      close + 1,
		Low:       close - 1,
		Close:     close,
		Volume:    1000,
		Symbol:    "NIFTY",
		Timeframe: "1m",
		Source:    "nse",
	}
}

func seedResults(runID, strategy, symbol string, startedAt time.Time) *backtest.Results {
	trades := []position.Trade{
		{
			ID:              runID + "-t1",
			Symbol:          symbol,
			Side:            position.Long,
			EntryPrice:      100,
			ExitPrice:       103,
			Quantity:        75,
			Lots:            1,
			PnL:             225,
			MarginUsed:      900,
			TransactionCost: 2.25,
			Instrument:      symbol,
			Reason:          position.ReasonTakeProfit,
			EntryTime:       seedBase,
			ExitTime:        seedBase.Add(5 * time.Minute),
		},
		{
			ID:              runID + "-t2",
			Symbol:          symbol,
			Side:            position.Short,
			EntryPrice:      102,
			ExitPrice:       103,
			Quantity:        75,
			Lots:            1,
			PnL:             -75,
			MarginUsed:      918,
			TransactionCost: 2.3,
			Instrument:      symbol,
			Reason:          position.ReasonStopLoss,
			EntryTime:       seedBase.Add(10 * time.Minute),
			ExitTime:        seedBase.Add(15 * time.Minute),
		},
	}

	r := &backtest.Results{
		RunID:                 runID,
		Strategy:              strategy,
		Symbol:                symbol,
		Exchange:              "NSE",
		Timeframe:             "1m",
		Start:                 seedBase,
		Finish:                seedBase.Add(time.Hour),
		StartedAt:             startedAt,
		FinishedAt:            startedAt.Add(2 * time.Second),
		InitialCapital:        100000,
		FinalCapital:          100150,
		TotalReturn:           150,
		TotalReturnPercentage: 0.15,
		Trades:                trades,
	}
	r.Metrics = position.CalculateMetrics(trades, r.InitialCapital)
	return r
}

func testCandleStorage(t *testing.T, store Storage) {
	ctx := context.Background()

	candles := []candle.Candle{seedCandle(0, 100), seedCandle(1, 101), seedCandle(2, 99)}
	require.NoError(t, store.SaveCandles(ctx, candles))

	t.Run("range query is ordered and half-open", func(t *testing.T) {
		got, err := store.GetCandles(ctx, "NIFTY", "1m", "", seedBase, seedBase.Add(2*time.Minute))
		require.NoError(t, err)
		require.Len(t, got, 2)
		assert.Equal(t, candles[0], got[0])
		assert.Equal(t, candles[1], got[1])
	})

	t.Run("source filter", func(t *testing.T) {
		got, err := store.GetCandles(ctx, "NIFTY", "1m", "nse", seedBase, seedBase.Add(time.Hour))
		require.NoError(t, err)
		assert.Len(t, got, 3)

		got, err = store.GetCandles(ctx, "NIFTY", "1m", "constructed", seedBase, seedBase.Add(time.Hour))
		require.NoError(t, err)
		assert.Empty(t, got)
	})

	t.Run("save is an upsert", func(t *testing.T) {
		updated := candles[1]
		updated.Close = 150
		require.NoError(t, store.SaveCandle(ctx, updated))

		count, err := store.GetCandleCount(ctx, "NIFTY", "1m", seedBase, seedBase.Add(time.Hour))
		require.NoError(t, err)
		assert.Equal(t, 3, count)

		got, err := store.GetCandles(ctx, "NIFTY", "1m", "", seedBase.Add(time.Minute), seedBase.Add(2*time.Minute))
		require.NoError(t, err)
		require.Len(t, got, 1)
		assert.Equal(t, 150.0, got[0].Close)
	})

	t.Run("latest candle", func(t *testing.T) {
		latest, err := store.GetLatestCandle(ctx, "NIFTY", "1m")
		require.NoError(t, err)
		require.NotNil(t, latest)
		assert.Equal(t, seedBase.Add(2*time.Minute), latest.Timestamp)

		missing, err := store.GetLatestCandle(ctx, "BANKNIFTY", "1m")
		require.NoError(t, err)
		assert.Nil(t, missing)
	})

	t.Run("invalid candle is rejected", func(t *testing.T) {
		bad := seedCandle(5, 100)
		bad.Timestamp = time.Time{}
		err := store.SaveCandles(ctx, []candle.Candle{bad})
		assert.Error(t, err)
	})

	t.Run("delete before cutoff", func(t *testing.T) {
		require.NoError(t, store.DeleteCandles(ctx, "NIFTY", "1m", seedBase.Add(2*time.Minute)))

		got, err := store.GetCandles(ctx, "NIFTY", "1m", "", seedBase, seedBase.Add(time.Hour))
		require.NoError(t, err)
		require.Len(t, got, 1)
		assert.Equal(t, seedBase.Add(2*time.Minute), got[0].Timestamp)
	})
}

func testRunStorage(t *testing.T, store Storage) {
	ctx := context.Background()

	first := seedResults("run-1", "ma_crossover", "NIFTY", seedBase.Add(2*time.Hour))
	second := seedResults("run-2", "rsi_mean_reversion", "BANKNIFTY", seedBase.Add(3*time.Hour))
	require.NoError(t, store.SaveRun(ctx, first))
	require.NoError(t, store.SaveRun(ctx, second))

	t.Run("round trip with recomputed metrics", func(t *testing.T) {
		got, err := store.GetRun(ctx, "run-1")
		require.NoError(t, err)
		require.NotNil(t, got)
		assert.Equal(t, first, got)
		assert.Equal(t, 3.0, got.Metrics.ProfitFactor)
	})

	t.Run("missing run returns nil", func(t *testing.T) {
		got, err := store.GetRun(ctx, "run-404")
		require.NoError(t, err)
		assert.Nil(t, got)
	})

	t.Run("trades are ordered by exit time", func(t *testing.T) {
		trades, err := store.GetTrades(ctx, "run-1")
		require.NoError(t, err)
		require.Len(t, trades, 2)
		assert.Equal(t, "run-1-t1", trades[0].ID)
		assert.Equal(t, "run-1-t2", trades[1].ID)
	})

	t.Run("list newest first", func(t *testing.T) {
		runs, err := store.ListRuns(ctx, "", "", 0)
		require.NoError(t, err)
		require.Len(t, runs, 2)
		assert.Equal(t, "run-2", runs[0].RunID)
		assert.Equal(t, "run-1", runs[1].RunID)

		// Summaries carry counts but not trades
		assert.Nil(t, runs[0].Trades)
		assert.Equal(t, 2, runs[0].Metrics.TotalTrades)
		assert.Equal(t, 1, runs[0].Metrics.WinningTrades)
		assert.Equal(t, 1, runs[0].Metrics.LosingTrades)
		assert.InDelta(t, 0.5, runs[0].Metrics.WinRate, 1e-9)
	})

	t.Run("list filters and limit", func(t *testing.T) {
		runs, err := store.ListRuns(ctx, "NIFTY", "", 0)
		require.NoError(t, err)
		require.Len(t, runs, 1)
		assert.Equal(t, "run-1", runs[0].RunID)

		runs, err = store.ListRuns(ctx, "", "rsi_mean_reversion", 0)
		require.NoError(t, err)
		require.Len(t, runs, 1)
		assert.Equal(t, "run-2", runs[0].RunID)

		runs, err = store.ListRuns(ctx, "", "", 1)
		require.NoError(t, err)
		require.Len(t, runs, 1)
		assert.Equal(t, "run-2", runs[0].RunID)
	})

	t.Run("resaving a run replaces its trades", func(t *testing.T) {
		rerun := seedResults("run-1", "ma_crossover", "NIFTY", seedBase.Add(4*time.Hour))
		rerun.Trades = rerun.Trades[:1]
		rerun.Metrics = position.CalculateMetrics(rerun.Trades, rerun.InitialCapital)
		require.NoError(t, store.SaveRun(ctx, rerun))

		trades, err := store.GetTrades(ctx, "run-1")
		require.NoError(t, err)
		require.Len(t, trades, 1)
		assert.Equal(t, "run-1-t1", trades[0].ID)
	})

	t.Run("run without ID is rejected", func(t *testing.T) {
		assert.Error(t, store.SaveRun(ctx, &backtest.Results{}))
		assert.Error(t, store.SaveRun(ctx, nil))
	})
}

func testEventStorage(t *testing.T, store Storage) {
	ctx := context.Background()

	events := []journal.Event{
		{Time: seedBase, Type: journal.EventRunStarted, Description: "run started", Data: map[string]any{"run_id": "run-1"}},
		{Time: seedBase.Add(time.Minute), Type: journal.EventRunFinished, Description: "run finished", Data: map[string]any{"trades": float64(2)}},
		{Time: seedBase.Add(2 * time.Minute), Type: journal.EventError, Description: "load failed", Data: nil},
	}
	for _, e := range events {
		require.NoError(t, store.LogEvent(ctx, e))
	}

	t.Run("filter by type", func(t *testing.T) {
		got, err := store.GetEvents(ctx, journal.EventError, seedBase, seedBase.Add(time.Hour))
		require.NoError(t, err)
		require.Len(t, got, 1)
		assert.Equal(t, "load failed", got[0].Description)
	})

	t.Run("empty type matches all", func(t *testing.T) {
		got, err := store.GetEvents(ctx, "", seedBase, seedBase.Add(time.Hour))
		require.NoError(t, err)
		require.Len(t, got, 3)
		assert.Equal(t, journal.EventRunStarted, got[0].Type)
		assert.Equal(t, map[string]any{"run_id": "run-1"}, got[0].Data)
	})

	t.Run("range is inclusive", func(t *testing.T) {
		got, err := store.GetEvents(ctx, "", seedBase, seedBase.Add(time.Minute))
		require.NoError(t, err)
		assert.Len(t, got, 2)
	})

	t.Run("delete old events of a type", func(t *testing.T) {
		require.NoError(t, store.DeleteEvents(ctx, journal.EventRunStarted, seedBase.Add(time.Hour)))

		got, err := store.GetEvents(ctx, "", seedBase, seedBase.Add(time.Hour))
		require.NoError(t, err)
		require.Len(t, got, 2)
		assert.Equal(t, journal.EventRunFinished, got[0].Type)
	})
}
