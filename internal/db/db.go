// Package db
package db

import (
	"context"
	"database/sql"
	"time"

	"github.com/amirphl/nse-backtest/internal/backtest"
	"github.com/amirphl/nse-backtest/internal/candle"
	"github.com/amirphl/nse-backtest/internal/journal"
	"github.com/amirphl/nse-backtest/internal/position"
)

// CandleStorage manages historical candle data.
type CandleStorage interface {
	SaveCandle(ctx context.Context, c candle.Candle) error
	SaveCandles(ctx context.Context, candles []candle.Candle) error
	GetCandles(ctx context.Context, symbol, timeframe, source string, start, end time.Time) ([]candle.Candle, error)
	GetLatestCandle(ctx context.Context, symbol, timeframe string) (*candle.Candle, error)
	GetCandleCount(ctx context.Context, symbol, timeframe string, start, end time.Time) (int, error)
	DeleteCandles(ctx context.Context, symbol, timeframe string, before time.Time) error
}

// RunStorage persists completed backtest runs and their trades.
// ListRuns returns run summaries without trades; load them with GetTrades.
type RunStorage interface {
	SaveRun(ctx context.Context, r *backtest.Results) error
	GetRun(ctx context.Context, runID string) (*backtest.Results, error)
	ListRuns(ctx context.Context, symbol, strategy string, limit int) ([]backtest.Results, error)
	GetTrades(ctx context.Context, runID string) ([]position.Trade, error)
}

// EventStorage journals engine lifecycle events.
type EventStorage interface {
	LogEvent(ctx context.Context, event journal.Event) error
	GetEvents(ctx context.Context, eventType string, start, end time.Time) ([]journal.Event, error)
	DeleteEvents(ctx context.Context, eventType string, before time.Time) error
}

// Storage is the interface for all persistent storage.
type Storage interface {
	GetDB() *sql.DB
	Close() error
	CandleStorage
	RunStorage
	EventStorage
}

// Journal adapts the event log of a Storage to the journal.Journaler
// interface the backtest engine consumes.
type Journal struct {
	store EventStorage
}

func NewJournal(store EventStorage) *Journal {
	return &Journal{store: store}
}

func (j *Journal) LogEvent(event journal.Event) error {
	return j.store.LogEvent(context.Background(), event)
}

func (j *Journal) GetEvents(eventType string, start, end time.Time) ([]journal.Event, error) {
	return j.store.GetEvents(context.Background(), eventType, start, end)
}
