package db

import (
	"context"
	"database/sql"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/amirphl/nse-backtest/internal/backtest"
	"github.com/amirphl/nse-backtest/internal/candle"
	"github.com/amirphl/nse-backtest/internal/journal"
	"github.com/amirphl/nse-backtest/internal/position"
)

// MemoryStorage keeps everything in process memory. Used by tests and
// for throwaway runs where persistence is not wanted.
type MemoryStorage struct {
	mu sync.RWMutex

	// Candles keyed by symbol|timeframe|timestamp|source
	candles map[string]candle.Candle

	// Runs by run ID, trades kept inside the results
	runs map[string]backtest.Results

	// Events (append-only)
	events []journal.Event
}

func NewMemory() *MemoryStorage {
	return &MemoryStorage{
		candles: make(map[string]candle.Candle),
		runs:    make(map[string]backtest.Results),
		events:  make([]journal.Event, 0, 1024),
	}
}

// GetDB returns nil for in-memory storage (no SQL database)
func (m *MemoryStorage) GetDB() *sql.DB { return nil }

func (m *MemoryStorage) Close() error { return nil }

func candleKey(symbol, timeframe string, ts time.Time, source string) string {
	return symbol + "|" + timeframe + "|" + ts.UTC().Format(time.RFC3339Nano) + "|" + source
}

func (m *MemoryStorage) SaveCandle(ctx context.Context, c candle.Candle) error {
	return m.SaveCandles(ctx, []candle.Candle{c})
}

func (m *MemoryStorage) SaveCandles(_ context.Context, candles []candle.Candle) error {
	for i, c := range candles {
		if err := c.Validate(); err != nil {
			return fmt.Errorf("invalid candle at index %d for %s %s at %s: %w",
				i, c.Symbol, c.Timeframe, c.Timestamp, err)
		}
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	for _, c := range candles {
		m.candles[candleKey(c.Symbol, c.Timeframe, c.Timestamp, c.Source)] = c
	}
	return nil
}

func (m *MemoryStorage) GetCandles(_ context.Context, symbol, timeframe, source string, start, end time.Time) ([]candle.Candle, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var out []candle.Candle
	for _, c := range m.candles {
		if c.Symbol != symbol || c.Timeframe != timeframe {
			continue
		}
		if source != "" && c.Source != source {
			continue
		}
		if c.Timestamp.Before(start) || !c.Timestamp.Before(end) {
			continue
		}
		out = append(out, c)
	}

	sort.Slice(out, func(i, j int) bool { return out[i].Timestamp.Before(out[j].Timestamp) })
	return out, nil
}

func (m *MemoryStorage) GetLatestCandle(_ context.Context, symbol, timeframe string) (*candle.Candle, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var latest *candle.Candle
	for _, c := range m.candles {
		if c.Symbol != symbol || c.Timeframe != timeframe {
			continue
		}
		if latest == nil || c.Timestamp.After(latest.Timestamp) {
			cc := c
			latest = &cc
		}
	}
	return latest, nil
}

func (m *MemoryStorage) GetCandleCount(_ context.Context, symbol, timeframe string, start, end time.Time) (int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	count := 0
	for _, c := range m.candles {
		if c.Symbol != symbol || c.Timeframe != timeframe {
			continue
		}
		if c.Timestamp.Before(start) || !c.Timestamp.Before(end) {
			continue
		}
		count++
	}
	return count, nil
}

func (m *MemoryStorage) DeleteCandles(_ context.Context, symbol, timeframe string, before time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	for k, c := range m.candles {
		if c.Symbol == symbol && c.Timeframe == timeframe && c.Timestamp.Before(before) {
			delete(m.candles, k)
		}
	}
	return nil
}

func (m *MemoryStorage) SaveRun(_ context.Context, r *backtest.Results) error {
	if r == nil || r.RunID == "" {
		return fmt.Errorf("cannot save run without a run ID")
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	stored := *r
	stored.Trades = append([]position.Trade(nil), r.Trades...)
	m.runs[r.RunID] = stored
	return nil
}

func (m *MemoryStorage) GetRun(_ context.Context, runID string) (*backtest.Results, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	stored, ok := m.runs[runID]
	if !ok {
		return nil, nil
	}

	r := stored
	r.Trades = append([]position.Trade(nil), stored.Trades...)
	r.Metrics = position.CalculateMetrics(r.Trades, r.InitialCapital)
	return &r, nil
}

func (m *MemoryStorage) ListRuns(_ context.Context, symbol, strategy string, limit int) ([]backtest.Results, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var runs []backtest.Results
	for _, stored := range m.runs {
		if symbol != "" && stored.Symbol != symbol {
			continue
		}
		if strategy != "" && stored.Strategy != strategy {
			continue
		}
		r := stored
		r.Trades = nil
		r.Metrics = position.Metrics{
			TotalTrades:           stored.Metrics.TotalTrades,
			WinningTrades:         stored.Metrics.WinningTrades,
			LosingTrades:          stored.Metrics.TotalTrades - stored.Metrics.WinningTrades,
			WinRate:               stored.Metrics.WinRate,
			TotalProfit:           stored.TotalReturn,
			TotalProfitPercentage: stored.TotalReturnPercentage,
		}
		runs = append(runs, r)
	}

	sort.Slice(runs, func(i, j int) bool { return runs[i].StartedAt.After(runs[j].StartedAt) })

	if limit > 0 && len(runs) > limit {
		runs = runs[:limit]
	}
	return runs, nil
}

func (m *MemoryStorage) GetTrades(_ context.Context, runID string) ([]position.Trade, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	stored, ok := m.runs[runID]
	if !ok {
		return nil, nil
	}
	return append([]position.Trade(nil), stored.Trades...), nil
}

func (m *MemoryStorage) LogEvent(_ context.Context, event journal.Event) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.events = append(m.events, event)
	return nil
}

func (m *MemoryStorage) GetEvents(_ context.Context, eventType string, start, end time.Time) ([]journal.Event, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var out []journal.Event
	for _, e := range m.events {
		if eventType != "" && e.Type != eventType {
			continue
		}
		if e.Time.Before(start) || e.Time.After(end) {
			continue
		}
		out = append(out, e)
	}

	sort.Slice(out, func(i, j int) bool { return out[i].Time.Before(out[j].Time) })
	return out, nil
}

func (m *MemoryStorage) DeleteEvents(_ context.Context, eventType string, before time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	kept := m.events[:0]
	for _, e := range m.events {
		if e.Type == eventType && e.Time.Before(before) {
			continue
		}
		kept = append(kept, e)
	}
	m.events = kept
	return nil
}
