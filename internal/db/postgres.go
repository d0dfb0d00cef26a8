package db

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/amirphl/nse-backtest/internal/backtest"
	"github.com/amirphl/nse-backtest/internal/candle"
	"github.com/amirphl/nse-backtest/internal/db/conf"
	"github.com/amirphl/nse-backtest/internal/journal"
	"github.com/amirphl/nse-backtest/internal/position"
	_ "github.com/lib/pq"
)

type Default struct {
	db *sql.DB
}

func New(c conf.Config) (*Default, error) {
	return &Default{db: c.DB}, nil
}

func (p *Default) GetDB() *sql.DB {
	return p.db
}

func (p *Default) Close() error {
	return p.db.Close()
}

// SaveCandle saves a single candle to the database
func (p *Default) SaveCandle(ctx context.Context, c candle.Candle) error {
	// Validate candle before saving
	if err := c.Validate(); err != nil {
		return fmt.Errorf("invalid candle for %s %s at %s: %w", c.Symbol, c.Timeframe, c.Timestamp, err)
	}

	return executeWithTransaction(ctx, p.db, func(tx *sql.Tx) error {
		_, err := tx.ExecContext(ctx, `
		INSERT INTO candles (symbol, timeframe, timestamp, open, high, low, close, volume, source)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)
		ON CONFLICT (symbol, timeframe, timestamp, source) DO UPDATE SET
			open=EXCLUDED.open, high=EXCLUDED.high, low=EXCLUDED.low,
			close=EXCLUDED.close, volume=EXCLUDED.volume`,
			c.Symbol, c.Timeframe, c.Timestamp, c.Open, c.High, c.Low, c.Close, c.Volume, c.Source)
		if err != nil {
			return fmt.Errorf("failed to save candle for %s %s at %s: %w", c.Symbol, c.Timeframe, c.Timestamp, err)
		}

		return nil
	})
}

func (p *Default) SaveCandles(ctx context.Context, candles []candle.Candle) error {
	if len(candles) == 0 {
		return nil
	}

	// Validate all candles first
	for i, c := range candles {
		if err := c.Validate(); err != nil {
			return fmt.Errorf("invalid candle at index %d for %s %s at %s: %w",
				i, c.Symbol, c.Timeframe, c.Timestamp, err)
		}
	}

	return executeWithTransaction(ctx, p.db, func(tx *sql.Tx) error {
		stmt, err := tx.PrepareContext(ctx, `
			INSERT INTO candles (symbol, timeframe, timestamp, open, high, low, close, volume, source)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
			ON CONFLICT (symbol, timeframe, timestamp, source) DO UPDATE SET
				open=EXCLUDED.open, high=EXCLUDED.high, low=EXCLUDED.low,
				close=EXCLUDED.close, volume=EXCLUDED.volume
		`)
		if err != nil {
			return fmt.Errorf("failed to prepare insert statement: %w", err)
		}
		defer stmt.Close()

		for i, c := range candles {
			_, err := stmt.ExecContext(ctx,
				c.Symbol, c.Timeframe, c.Timestamp, c.Open, c.High, c.Low, c.Close, c.Volume, c.Source)
			if err != nil {
				return fmt.Errorf("failed to save candle at index %d (%s %s at %s): %w",
					i, c.Symbol, c.Timeframe, c.Timestamp, err)
			}
		}

		return nil
	})
}

func (p *Default) GetCandles(ctx context.Context, symbol, timeframe, source string, start, end time.Time) ([]candle.Candle, error) {
	query := `
		SELECT timestamp, open, high, low, close, volume, symbol, timeframe, source
		FROM candles
		WHERE symbol=$1 AND timeframe=$2 AND timestamp >= $3 AND timestamp < $4`
	args := []any{symbol, timeframe, start, end}

	if source != "" {
		query += " AND source=$5"
		args = append(args, source)
	}

	query += " ORDER BY timestamp ASC"

	rows, err := queryWithTransaction(ctx, p.db, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query candles in range: %w", err)
	}
	defer rows.Close()

	var candles []candle.Candle
	for rows.Next() {
		var c candle.Candle
		if err := rows.Scan(&c.Timestamp, &c.Open, &c.High, &c.Low, &c.Close, &c.Volume, &c.Symbol, &c.Timeframe, &c.Source); err != nil {
			return nil, fmt.Errorf("failed to scan candle: %w", err)
		}
		c.Timestamp = c.Timestamp.UTC()
		candles = append(candles, c)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating candle rows: %w", err)
	}

	return candles, nil
}

func (p *Default) GetLatestCandle(ctx context.Context, symbol, timeframe string) (*candle.Candle, error) {
	rows, err := queryWithTransaction(ctx, p.db, `
		SELECT timestamp, open, high, low, close, volume, symbol, timeframe, source
		FROM candles
		WHERE symbol=$1 AND timeframe=$2
		ORDER BY timestamp DESC LIMIT 1`,
		symbol, timeframe)
	if err != nil {
		return nil, fmt.Errorf("failed to query latest candle: %w", err)
	}
	defer rows.Close()

	var c candle.Candle
	if rows.Next() {
		if err := rows.Scan(&c.Timestamp, &c.Open, &c.High, &c.Low, &c.Close, &c.Volume, &c.Symbol, &c.Timeframe, &c.Source); err != nil {
			return nil, fmt.Errorf("failed to scan latest candle: %w", err)
		}
		c.Timestamp = c.Timestamp.UTC()
		return &c, nil
	}

	return nil, rows.Err()
}

func (p *Default) GetCandleCount(ctx context.Context, symbol, timeframe string, start, end time.Time) (int, error) {
	var count int
	rows, err := queryWithTransaction(ctx, p.db, `
		SELECT COUNT(*) FROM candles
		WHERE symbol=$1 AND timeframe=$2 AND timestamp >= $3 AND timestamp < $4`,
		symbol, timeframe, start, end)
	if err != nil {
		return 0, fmt.Errorf("failed to get candle count: %w", err)
	}
	defer rows.Close()

	if rows.Next() {
		if err := rows.Scan(&count); err != nil {
			return 0, fmt.Errorf("failed to scan candle count: %w", err)
		}
	}

	return count, rows.Err()
}

// DeleteCandles removes candles older than the cutoff for a symbol and timeframe
func (p *Default) DeleteCandles(ctx context.Context, symbol, timeframe string, before time.Time) error {
	return executeWithTransaction(ctx, p.db, func(tx *sql.Tx) error {
		_, err := tx.ExecContext(ctx, `DELETE FROM candles WHERE symbol=$1 AND timeframe=$2 AND timestamp < $3`,
			symbol, timeframe, before)
		if err != nil {
			return fmt.Errorf("failed to delete candles: %w", err)
		}
		return nil
	})
}

// SaveRun persists a completed run and its trades in one transaction.
// Saving the same run again overwrites the previous row and its trades.
func (p *Default) SaveRun(ctx context.Context, r *backtest.Results) error {
	if r == nil || r.RunID == "" {
		return fmt.Errorf("cannot save run without a run ID")
	}

	return executeWithTransaction(ctx, p.db, func(tx *sql.Tx) error {
		_, err := tx.ExecContext(ctx, `
		INSERT INTO runs (run_id, strategy, symbol, exchange, timeframe, start_time, finish_time,
			started_at, finished_at, initial_capital, final_capital, total_return,
			total_return_percentage, total_trades, winning_trades, win_rate)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16)
		ON CONFLICT (run_id) DO UPDATE SET
			strategy=EXCLUDED.strategy, symbol=EXCLUDED.symbol, exchange=EXCLUDED.exchange,
			timeframe=EXCLUDED.timeframe, start_time=EXCLUDED.start_time, finish_time=EXCLUDED.finish_time,
			started_at=EXCLUDED.started_at, finished_at=EXCLUDED.finished_at,
			initial_capital=EXCLUDED.initial_capital, final_capital=EXCLUDED.final_capital,
			total_return=EXCLUDED.total_return, total_return_percentage=EXCLUDED.total_return_percentage,
			total_trades=EXCLUDED.total_trades, winning_trades=EXCLUDED.winning_trades, win_rate=EXCLUDED.win_rate`,
			r.RunID, r.Strategy, r.Symbol, r.Exchange, r.Timeframe, r.Start, r.Finish,
			r.StartedAt, r.FinishedAt, r.InitialCapital, r.FinalCapital, r.TotalReturn,
			r.TotalReturnPercentage, r.Metrics.TotalTrades, r.Metrics.WinningTrades, r.Metrics.WinRate)
		if err != nil {
			return fmt.Errorf("failed to save run %s: %w", r.RunID, err)
		}

		if _, err := tx.ExecContext(ctx, `DELETE FROM trades WHERE run_id=$1`, r.RunID); err != nil {
			return fmt.Errorf("failed to clear trades for run %s: %w", r.RunID, err)
		}

		stmt, err := tx.PrepareContext(ctx, `
			INSERT INTO trades (id, run_id, symbol, side, entry_price, exit_price, quantity, lots,
				pnl, margin_used, transaction_cost, instrument, reason, entry_time, exit_time)
			VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15)`)
		if err != nil {
			return fmt.Errorf("failed to prepare trade insert: %w", err)
		}
		defer stmt.Close()

		for i, t := range r.Trades {
			_, err := stmt.ExecContext(ctx, t.ID, r.RunID, t.Symbol, string(t.Side), t.EntryPrice, t.ExitPrice,
				t.Quantity, t.Lots, t.PnL, t.MarginUsed, t.TransactionCost, t.Instrument, t.Reason,
				t.EntryTime, t.ExitTime)
			if err != nil {
				return fmt.Errorf("failed to save trade at index %d for run %s: %w", i, r.RunID, err)
			}
		}

		return nil
	})
}

// GetRun loads a run with its trades. Metrics are recomputed from the
// stored trades. Returns nil when the run does not exist.
func (p *Default) GetRun(ctx context.Context, runID string) (*backtest.Results, error) {
	rows, err := queryWithTransaction(ctx, p.db, `
		SELECT run_id, strategy, symbol, exchange, timeframe, start_time, finish_time,
			started_at, finished_at, initial_capital, final_capital, total_return, total_return_percentage
		FROM runs WHERE run_id=$1`, runID)
	if err != nil {
		return nil, fmt.Errorf("failed to query run %s: %w", runID, err)
	}
	defer rows.Close()

	if !rows.Next() {
		return nil, rows.Err()
	}

	var r backtest.Results
	if err := rows.Scan(&r.RunID, &r.Strategy, &r.Symbol, &r.Exchange, &r.Timeframe, &r.Start, &r.Finish,
		&r.StartedAt, &r.FinishedAt, &r.InitialCapital, &r.FinalCapital, &r.TotalReturn, &r.TotalReturnPercentage); err != nil {
		return nil, fmt.Errorf("failed to scan run %s: %w", runID, err)
	}
	rows.Close()
	normalizeRunTimes(&r)

	r.Trades, err = p.GetTrades(ctx, runID)
	if err != nil {
		return nil, err
	}
	r.Metrics = position.CalculateMetrics(r.Trades, r.InitialCapital)

	return &r, nil
}

// ListRuns returns run summaries ordered by start time, newest first.
// Empty symbol or strategy matches all; limit <= 0 returns everything.
// Trades and the trade-derived profit factor are not populated.
func (p *Default) ListRuns(ctx context.Context, symbol, strategy string, limit int) ([]backtest.Results, error) {
	query := `
		SELECT run_id, strategy, symbol, exchange, timeframe, start_time, finish_time,
			started_at, finished_at, initial_capital, final_capital, total_return,
			total_return_percentage, total_trades, winning_trades, win_rate
		FROM runs WHERE 1=1`
	var args []any

	if symbol != "" {
		args = append(args, symbol)
		query += fmt.Sprintf(" AND symbol=$%d", len(args))
	}
	if strategy != "" {
		args = append(args, strategy)
		query += fmt.Sprintf(" AND strategy=$%d", len(args))
	}

	query += " ORDER BY started_at DESC"

	if limit > 0 {
		args = append(args, limit)
		query += fmt.Sprintf(" LIMIT $%d", len(args))
	}

	rows, err := queryWithTransaction(ctx, p.db, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query runs: %w", err)
	}
	defer rows.Close()

	var runs []backtest.Results
	for rows.Next() {
		var r backtest.Results
		if err := rows.Scan(&r.RunID, &r.Strategy, &r.Symbol, &r.Exchange, &r.Timeframe, &r.Start, &r.Finish,
			&r.StartedAt, &r.FinishedAt, &r.InitialCapital, &r.FinalCapital, &r.TotalReturn,
			&r.TotalReturnPercentage, &r.Metrics.TotalTrades, &r.Metrics.WinningTrades, &r.Metrics.WinRate); err != nil {
			return nil, fmt.Errorf("failed to scan run: %w", err)
		}
		normalizeRunTimes(&r)
		r.Metrics.LosingTrades = r.Metrics.TotalTrades - r.Metrics.WinningTrades
		r.Metrics.TotalProfit = r.TotalReturn
		r.Metrics.TotalProfitPercentage = r.TotalReturnPercentage
		runs = append(runs, r)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating run rows: %w", err)
	}

	return runs, nil
}

func (p *Default) GetTrades(ctx context.Context, runID string) ([]position.Trade, error) {
	rows, err := queryWithTransaction(ctx, p.db, `
		SELECT id, symbol, side, entry_price, exit_price, quantity, lots, pnl,
			margin_used, transaction_cost, instrument, reason, entry_time, exit_time
		FROM trades WHERE run_id=$1 ORDER BY exit_time ASC, id ASC`, runID)
	if err != nil {
		return nil, fmt.Errorf("failed to query trades for run %s: %w", runID, err)
	}
	defer rows.Close()

	var trades []position.Trade
	for rows.Next() {
		var t position.Trade
		var side string
		if err := rows.Scan(&t.ID, &t.Symbol, &side, &t.EntryPrice, &t.ExitPrice, &t.Quantity, &t.Lots,
			&t.PnL, &t.MarginUsed, &t.TransactionCost, &t.Instrument, &t.Reason, &t.EntryTime, &t.ExitTime); err != nil {
			return nil, fmt.Errorf("failed to scan trade: %w", err)
		}
		t.Side = position.Side(side)
		t.EntryTime = t.EntryTime.UTC()
		t.ExitTime = t.ExitTime.UTC()
		trades = append(trades, t)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating trade rows: %w", err)
	}

	return trades, nil
}

func (p *Default) LogEvent(ctx context.Context, event journal.Event) error {
	return executeWithTransaction(ctx, p.db, func(tx *sql.Tx) error {
		data, _ := json.Marshal(event.Data)
		_, err := tx.ExecContext(ctx, `INSERT INTO events (time, type, description, data) VALUES ($1,$2,$3,$4)`,
			event.Time, event.Type, event.Description, data)
		if err != nil {
			return fmt.Errorf("failed to log event: %w", err)
		}
		return nil
	})
}

// GetEvents returns events in [start, end]. Empty eventType matches all types.
func (p *Default) GetEvents(ctx context.Context, eventType string, start, end time.Time) ([]journal.Event, error) {
	query := `SELECT time, type, description, data FROM events WHERE time >= $1 AND time <= $2`
	args := []any{start, end}

	if eventType != "" {
		query += " AND type=$3"
		args = append(args, eventType)
	}

	query += " ORDER BY time ASC"

	rows, err := queryWithTransaction(ctx, p.db, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query events: %w", err)
	}
	defer rows.Close()

	var events []journal.Event
	for rows.Next() {
		var e journal.Event
		var data []byte
		if err := rows.Scan(&e.Time, &e.Type, &e.Description, &data); err != nil {
			return nil, fmt.Errorf("failed to scan event: %w", err)
		}
		json.Unmarshal(data, &e.Data)
		e.Time = e.Time.UTC()
		events = append(events, e)
	}

	return events, rows.Err()
}

func (p *Default) DeleteEvents(ctx context.Context, eventType string, before time.Time) error {
	return executeWithTransaction(ctx, p.db, func(tx *sql.Tx) error {
		_, err := tx.ExecContext(ctx, `DELETE FROM events WHERE type=$1 AND time < $2`, eventType, before)
		if err != nil {
			return fmt.Errorf("failed to delete events: %w", err)
		}
		return nil
	})
}

func normalizeRunTimes(r *backtest.Results) {
	r.Start = r.Start.UTC()
	r.Finish = r.Finish.UTC()
	r.StartedAt = r.StartedAt.UTC()
	r.FinishedAt = r.FinishedAt.UTC()
}
