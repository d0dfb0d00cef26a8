// Package backtest
package backtest

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/amirphl/nse-backtest/internal/candle"
	"github.com/amirphl/nse-backtest/internal/journal"
	"github.com/amirphl/nse-backtest/internal/position"
	"github.com/amirphl/nse-backtest/internal/strategy"
	"github.com/amirphl/nse-backtest/internal/utils"
)

// State tracks an engine through its lifecycle.
type State int

const (
	NotLoaded State = iota
	Loaded
	Running
	Done
)

func (s State) String() string {
	switch s {
	case NotLoaded:
		return "not_loaded"
	case Loaded:
		return "loaded"
	case Running:
		return "running"
	case Done:
		return "done"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

var (
	// ErrNotReady is returned by Run before any data has been loaded.
	ErrNotReady = errors.New("engine not ready: no data loaded, call Load first")

	// ErrNoCandles is returned by Load when the series is empty after
	// date filtering.
	ErrNoCandles = errors.New("no candles to backtest")
)

// Config describes a single backtest run.
type Config struct {
	Symbol         string
	Exchange       string
	Timeframe      string
	InitialCapital float64
	Start          time.Time // zero means from the first candle
	Finish         time.Time // zero means to the last candle
}

// Engine drives one strategy over one candle series and aggregates the
// closed trades into run results. Each engine owns its strategy, trader
// and candles exclusively; a second Run starts a fresh pass over the same
// data, not a continuation.
type Engine struct {
	cfg      Config
	strategy strategy.Strategy
	trader   *position.Trader

	// Journal receives run lifecycle events when set.
	Journal journal.Journaler

	candles []candle.Candle
	state   State
	results *Results
}

// Results is the frozen outcome of one completed run.
type Results struct {
	RunID                 string           `json:"run_id"`
	Strategy              string           `json:"strategy"`
	Symbol                string           `json:"symbol"`
	Exchange              string           `json:"exchange"`
	Timeframe             string           `json:"timeframe"`
	Start                 time.Time        `json:"start"`
	Finish                time.Time        `json:"finish"`
	StartedAt             time.Time        `json:"started_at"`
	FinishedAt            time.Time        `json:"finished_at"`
	InitialCapital        float64          `json:"initial_capital"`
	FinalCapital          float64          `json:"final_capital"`
	TotalReturn           float64          `json:"total_return"`
	TotalReturnPercentage float64          `json:"total_return_percentage"`
	Trades                []position.Trade `json:"trades"`
	Metrics               position.Metrics `json:"metrics"`
}

// New creates an engine for the strategy. The trader starts with the
// configured capital and is handed to the strategy for sizing and
// accounting policies when the strategy carries them.
func New(s strategy.Strategy, cfg Config) *Engine {
	if cfg.Exchange == "" {
		cfg.Exchange = "NSE"
	}

	trader := position.NewTrader(cfg.Symbol, cfg.InitialCapital, nil, nil)
	if c, ok := s.(strategy.TraderConfigurer); ok {
		c.ConfigureTrader(trader)
	}

	return &Engine{
		cfg:      cfg,
		strategy: s,
		trader:   trader,
	}
}

// State returns the engine's lifecycle state.
func (e *Engine) State() State { return e.state }

// Results returns the outcome of the last completed run, or nil.
func (e *Engine) Results() *Results { return e.results }

// Load validates and installs the candle series, filtered to the
// configured date range (inclusive on both ends). The series must be in
// ascending timestamp order.
func (e *Engine) Load(candles []candle.Candle) error {
	filtered := e.filterByRange(candles)
	if len(filtered) == 0 {
		return ErrNoCandles
	}
	for i := 1; i < len(filtered); i++ {
		if filtered[i].Timestamp.Before(filtered[i-1].Timestamp) {
			return fmt.Errorf("candles out of order at index %d: %s before %s",
				i, filtered[i].Timestamp.Format(time.RFC3339), filtered[i-1].Timestamp.Format(time.RFC3339))
		}
	}

	e.candles = filtered
	e.state = Loaded
	e.results = nil

	utils.GetLogger().Printf("Backtest | [%s %s] Loaded %d candles for backtesting", e.cfg.Symbol, e.cfg.Timeframe, len(filtered))
	return nil
}

func (e *Engine) filterByRange(candles []candle.Candle) []candle.Candle {
	if e.cfg.Start.IsZero() && e.cfg.Finish.IsZero() {
		return candles
	}

	var out []candle.Candle
	for _, c := range candles {
		if !e.cfg.Start.IsZero() && c.Timestamp.Before(e.cfg.Start) {
			continue
		}
		if !e.cfg.Finish.IsZero() && c.Timestamp.After(e.cfg.Finish) {
			continue
		}
		out = append(out, c)
	}
	return out
}

// Run executes the per-bar loop over the loaded candles: Before, then
// entry checks while flat (long checked first, either entry vetoed by
// ShouldCancelEntry), then After while a position is open. A position
// still open after the last candle is liquidated at its close.
// Cancellation is checked once per bar and aborts without results.
func (e *Engine) Run(ctx context.Context) (*Results, error) {
	if e.state != Loaded && e.state != Done {
		return nil, ErrNotReady
	}

	e.state = Running
	e.results = nil
	e.strategy.Reset()
	e.trader.Reset()

	runID := utils.NewID()
	startedAt := time.Now().UTC()

	utils.GetLogger().Printf("Backtest | [%s %s] Run %s started: strategy=%s capital=%.2f candles=%d",
		e.cfg.Symbol, e.cfg.Timeframe, runID, e.strategy.Name(), e.cfg.InitialCapital, len(e.candles))
	e.journalEvent(journal.EventRunStarted,
		fmt.Sprintf("%s on %s %s", e.strategy.Name(), e.cfg.Symbol, e.cfg.Timeframe),
		map[string]any{"run_id": runID, "candles": len(e.candles)})

	for i := range e.candles {
		select {
		case <-ctx.Done():
			e.state = Loaded
			return nil, ctx.Err()
		default:
		}

		c := e.candles[i]
		bar := &strategy.Bar{Index: i, Candle: c, History: e.candles[:i+1], Trader: e.trader}

		e.strategy.Before(bar)

		if e.trader.Book.IsFlat() {
			if e.strategy.ShouldLong(bar) {
				if !e.strategy.ShouldCancelEntry(bar) {
					e.trader.GoLong(c, 0, 0)
				}
			} else if e.strategy.ShouldShort(bar) {
				if !e.strategy.ShouldCancelEntry(bar) {
					e.trader.GoShort(c, 0, 0)
				}
			}
		}

		if !e.trader.Book.IsFlat() {
			e.strategy.After(bar)
		}
	}

	// Close any remaining position at the last close.
	last := e.candles[len(e.candles)-1]
	e.trader.Liquidate(last, last.Close, position.ReasonEndOfData)

	results := &Results{
		RunID:          runID,
		Strategy:       e.strategy.Name(),
		Symbol:         e.cfg.Symbol,
		Exchange:       e.cfg.Exchange,
		Timeframe:      e.cfg.Timeframe,
		Start:          e.candles[0].Timestamp,
		Finish:         last.Timestamp,
		StartedAt:      startedAt,
		FinishedAt:     time.Now().UTC(),
		InitialCapital: e.trader.InitialCapital,
		FinalCapital:   e.trader.Capital,
		TotalReturn:    e.trader.Capital - e.trader.InitialCapital,
		Trades:         e.trader.Trades,
		Metrics:        e.trader.Metrics(),
	}
	if results.InitialCapital > 0 {
		results.TotalReturnPercentage = results.TotalReturn / results.InitialCapital * 100
	}

	e.results = results
	e.state = Done

	utils.GetLogger().Printf("Backtest | [%s %s] Run %s finished: trades=%d final=%.2f return=%.2f%%",
		e.cfg.Symbol, e.cfg.Timeframe, runID, results.Metrics.TotalTrades, results.FinalCapital, results.TotalReturnPercentage)
	e.journalEvent(journal.EventRunFinished,
		fmt.Sprintf("%s on %s %s", e.strategy.Name(), e.cfg.Symbol, e.cfg.Timeframe),
		map[string]any{
			"run_id":        runID,
			"trades":        results.Metrics.TotalTrades,
			"final_capital": results.FinalCapital,
		})

	return results, nil
}

func (e *Engine) journalEvent(eventType, description string, data map[string]any) {
	if e.Journal == nil {
		return
	}
	event := journal.Event{
		Time:        time.Now().UTC(),
		Type:        eventType,
		Description: description,
		Data:        data,
	}
	if err := e.Journal.LogEvent(event); err != nil {
		utils.GetLogger().Printf("Backtest | [%s %s] Failed to journal %s event: %v", e.cfg.Symbol, e.cfg.Timeframe, eventType, err)
	}
}
