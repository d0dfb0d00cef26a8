package backtest

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sort"
	"time"

	"github.com/amirphl/nse-backtest/internal/candle"
	"github.com/amirphl/nse-backtest/internal/instrument"
	"github.com/amirphl/nse-backtest/internal/journal"
	"github.com/amirphl/nse-backtest/internal/strategy"
	"github.com/amirphl/nse-backtest/internal/utils"
)

// CandleProvider returns the candle series for one symbol and timeframe.
type CandleProvider func(ctx context.Context, symbol, timeframe string) ([]candle.Candle, error)

// BatchConfig describes a sequential batch: every configured strategy run
// against every configured symbol, each pair in its own independent engine.
type BatchConfig struct {
	Symbols        []string
	Strategies     []string
	Exchange       string
	Timeframe      string
	InitialCapital float64
	Start          time.Time
	Finish         time.Time

	StrategyConfig strategy.Config
	Registry       *instrument.Registry
	Journal        journal.Journaler
}

// BatchResults aggregates the outcomes of a batch.
type BatchResults struct {
	Results        []*Results
	StartTime      time.Time
	EndTime        time.Time
	TotalRuns      int
	SuccessfulRuns int
	FailedRuns     int
}

// RunBatch runs one engine per (symbol, strategy) pair sequentially. A
// pair that fails to load or run is logged and counted, and the batch
// moves on; cancellation aborts the whole batch.
func RunBatch(ctx context.Context, cfg BatchConfig, provider CandleProvider) (*BatchResults, error) {
	batch := &BatchResults{StartTime: time.Now().UTC()}

	for _, symbol := range cfg.Symbols {
		candles, err := provider(ctx, symbol, cfg.Timeframe)
		if err != nil {
			utils.GetLogger().Printf("Backtest | [%s] Failed to load candles: %v", symbol, err)
			batch.TotalRuns += len(cfg.Strategies)
			batch.FailedRuns += len(cfg.Strategies)
			continue
		}

		for _, name := range cfg.Strategies {
			batch.TotalRuns++

			strat, err := strategy.New(name, cfg.StrategyConfig, cfg.Registry)
			if err != nil {
				utils.GetLogger().Printf("Backtest | [%s] Skipping strategy %s: %v", symbol, name, err)
				batch.FailedRuns++
				continue
			}

			engine := New(strat, Config{
				Symbol:         symbol,
				Exchange:       cfg.Exchange,
				Timeframe:      cfg.Timeframe,
				InitialCapital: cfg.InitialCapital,
				Start:          cfg.Start,
				Finish:         cfg.Finish,
			})
			engine.Journal = cfg.Journal

			if err := engine.Load(candles); err != nil {
				utils.GetLogger().Printf("Backtest | [%s] Skipping strategy %s: %v", symbol, name, err)
				batch.FailedRuns++
				continue
			}

			results, err := engine.Run(ctx)
			if err != nil {
				if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
					return nil, err
				}
				utils.GetLogger().Printf("Backtest | [%s] Run failed for strategy %s: %v", symbol, name, err)
				batch.FailedRuns++
				continue
			}

			batch.Results = append(batch.Results, results)
			batch.SuccessfulRuns++
		}
	}

	batch.EndTime = time.Now().UTC()
	return batch, nil
}

// PrintSummary writes the batch overview followed by the completed runs
// ranked by total return.
func (b *BatchResults) PrintSummary(w io.Writer) {
	fmt.Fprintln(w)
	fmt.Fprintln(w, "===== BATCH BACKTEST SUMMARY =====")
	fmt.Fprintf(w, "Duration: %v\n", b.EndTime.Sub(b.StartTime).Round(time.Second))
	fmt.Fprintf(w, "Total Runs: %d\n", b.TotalRuns)
	fmt.Fprintf(w, "Successful Runs: %d\n", b.SuccessfulRuns)
	fmt.Fprintf(w, "Failed Runs: %d\n", b.FailedRuns)

	if len(b.Results) == 0 {
		return
	}

	ranked := make([]*Results, len(b.Results))
	copy(ranked, b.Results)
	sort.Slice(ranked, func(i, j int) bool {
		return ranked[i].TotalReturn > ranked[j].TotalReturn
	})

	fmt.Fprintln(w)
	fmt.Fprintln(w, "=== RUNS BY TOTAL RETURN ===")
	for i, r := range ranked {
		fmt.Fprintf(w, "%d. %s on %s: ₹%s (%.2f%%), %d trades\n",
			i+1, r.Strategy, r.Symbol, inr.Sprintf("%.2f", r.TotalReturn), r.TotalReturnPercentage, r.Metrics.TotalTrades)
	}
}
