package db

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/amirphl/nse-backtest/internal/backtest"
	"github.com/amirphl/nse-backtest/internal/candle"
	"github.com/amirphl/nse-backtest/internal/journal"
	"github.com/amirphl/nse-backtest/internal/position"
	_ "modernc.org/sqlite"
)

// Time columns are stored as integer epoch nanoseconds. SQLite compares
// text timestamps lexicographically, which misorders values of mixed
// fractional precision; integers compare exactly.
const sqliteSchema = `
CREATE TABLE IF NOT EXISTS candles (
	symbol TEXT NOT NULL,
	timeframe TEXT NOT NULL,
	timestamp INTEGER NOT NULL,
	open REAL NOT NULL,
	high REAL NOT NULL,
	low REAL NOT NULL,
	close REAL NOT NULL,
	volume REAL NOT NULL,
	source TEXT NOT NULL DEFAULT '',
	PRIMARY KEY (symbol, timeframe, timestamp, source)
);

CREATE TABLE IF NOT EXISTS runs (
	run_id TEXT PRIMARY KEY,
	strategy TEXT NOT NULL,
	symbol TEXT NOT NULL,
	exchange TEXT NOT NULL,
	timeframe TEXT NOT NULL,
	start_time INTEGER NOT NULL,
	finish_time INTEGER NOT NULL,
	started_at INTEGER NOT NULL,
	finished_at INTEGER NOT NULL,
	initial_capital REAL NOT NULL,
	final_capital REAL NOT NULL,
	total_return REAL NOT NULL,
	total_return_percentage REAL NOT NULL,
	total_trades INTEGER NOT NULL,
	winning_trades INTEGER NOT NULL,
	win_rate REAL NOT NULL
);

CREATE TABLE IF NOT EXISTS trades (
	id TEXT PRIMARY KEY,
	run_id TEXT NOT NULL REFERENCES runs(run_id) ON DELETE CASCADE,
	symbol TEXT NOT NULL,
	side TEXT NOT NULL,
	entry_price REAL NOT NULL,
	exit_price REAL NOT NULL,
	quantity REAL NOT NULL,
	lots INTEGER NOT NULL,
	pnl REAL NOT NULL,
	margin_used REAL NOT NULL,
	transaction_cost REAL NOT NULL,
	instrument TEXT NOT NULL,
	reason TEXT NOT NULL,
	entry_time INTEGER NOT NULL,
	exit_time INTEGER NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_trades_run ON trades(run_id);

CREATE TABLE IF NOT EXISTS events (
	time INTEGER NOT NULL,
	type TEXT NOT NULL,
	description TEXT NOT NULL,
	data TEXT
);

CREATE INDEX IF NOT EXISTS idx_events_type_time ON events(type, time);
`

// SQLite is a file-backed Storage for single-machine runs where no
// postgres server is available.
type SQLite struct {
	db *sql.DB
}

func OpenSQLite(path string) (*SQLite, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open sqlite database at %s: %w", path, err)
	}

	// SQLite permits a single writer; one connection avoids SQLITE_BUSY.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec("PRAGMA journal_mode=WAL; PRAGMA foreign_keys=ON;"); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to configure sqlite database: %w", err)
	}

	if _, err := db.Exec(sqliteSchema); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to apply sqlite schema: %w", err)
	}

	return &SQLite{db: db}, nil
}

func (s *SQLite) GetDB() *sql.DB {
	return s.db
}

func (s *SQLite) Close() error {
	return s.db.Close()
}

func (s *SQLite) SaveCandle(ctx context.Context, c candle.Candle) error {
	return s.SaveCandles(ctx, []candle.Candle{c})
}

func (s *SQLite) SaveCandles(ctx context.Context, candles []candle.Candle) error {
	if len(candles) == 0 {
		return nil
	}

	for i, c := range candles {
		if err := c.Validate(); err != nil {
			return fmt.Errorf("invalid candle at index %d for %s %s at %s: %w",
				i, c.Symbol, c.Timeframe, c.Timestamp, err)
		}
	}

	return executeWithTransaction(ctx, s.db, func(tx *sql.Tx) error {
		stmt, err := tx.PrepareContext(ctx, `
			INSERT INTO candles (symbol, timeframe, timestamp, open, high, low, close, volume, source)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
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
				c.Symbol, c.Timeframe, c.Timestamp.UnixNano(), c.Open, c.High, c.Low, c.Close, c.Volume, c.Source)
			if err != nil {
				return fmt.Errorf("failed to save candle at index %d (%s %s at %s): %w",
					i, c.Symbol, c.Timeframe, c.Timestamp, err)
			}
		}

		return nil
	})
}

func (s *SQLite) GetCandles(ctx context.Context, symbol, timeframe, source string, start, end time.Time) ([]candle.Candle, error) {
	query := `
		SELECT timestamp, open, high, low, close, volume, symbol, timeframe, source
		FROM candles
		WHERE symbol=? AND timeframe=? AND timestamp >= ? AND timestamp < ?`
	args := []any{symbol, timeframe, start.UnixNano(), end.UnixNano()}

	if source != "" {
		query += " AND source=?"
		args = append(args, source)
	}

	query += " ORDER BY timestamp ASC"

	rows, err := queryWithTransaction(ctx, s.db, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query candles in range: %w", err)
	}
	defer rows.Close()

	var candles []candle.Candle
	for rows.Next() {
		c, err := scanSQLiteCandle(rows)
		if err != nil {
			return nil, err
		}
		candles = append(candles, c)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating candle rows: %w", err)
	}

	return candles, nil
}

func (s *SQLite) GetLatestCandle(ctx context.Context, symbol, timeframe string) (*candle.Candle, error) {
	rows, err := queryWithTransaction(ctx, s.db, `
		SELECT timestamp, open, high, low, close, volume, symbol, timeframe, source
		FROM candles
		WHERE symbol=? AND timeframe=?
		ORDER BY timestamp DESC LIMIT 1`,
		symbol, timeframe)
	if err != nil {
		return nil, fmt.Errorf("failed to query latest candle: %w", err)
	}
	defer rows.Close()

	if rows.Next() {
		c, err := scanSQLiteCandle(rows)
		if err != nil {
			return nil, err
		}
		return &c, nil
	}

	return nil, rows.Err()
}

func (s *SQLite) GetCandleCount(ctx context.Context, symbol, timeframe string, start, end time.Time) (int, error) {
	var count int
	rows, err := queryWithTransaction(ctx, s.db, `
		SELECT COUNT(*) FROM candles
		WHERE symbol=? AND timeframe=? AND timestamp >= ? AND timestamp < ?`,
		symbol, timeframe, start.UnixNano(), end.UnixNano())
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

func (s *SQLite) DeleteCandles(ctx context.Context, symbol, timeframe string, before time.Time) error {
	return executeWithTransaction(ctx, s.db, func(tx *sql.Tx) error {
		_, err := tx.ExecContext(ctx, `DELETE FROM candles WHERE symbol=? AND timeframe=? AND timestamp < ?`,
			symbol, timeframe, before.UnixNano())
		if err != nil {
			return fmt.Errorf("failed to delete candles: %w", err)
		}
		return nil
	})
}

func (s *SQLite) SaveRun(ctx context.Context, r *backtest.Results) error {
	if r == nil || r.RunID == "" {
		return fmt.Errorf("cannot save run without a run ID")
	}

	return executeWithTransaction(ctx, s.db, func(tx *sql.Tx) error {
		_, err := tx.ExecContext(ctx, `
		INSERT INTO runs (run_id, strategy, symbol, exchange, timeframe, start_time, finish_time,
			started_at, finished_at, initial_capital, final_capital, total_return,
			total_return_percentage, total_trades, winning_trades, win_rate)
		VALUES (?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?)
		ON CONFLICT (run_id) DO UPDATE SET
			strategy=EXCLUDED.strategy, symbol=EXCLUDED.symbol, exchange=EXCLUDED.exchange,
			timeframe=EXCLUDED.timeframe, start_time=EXCLUDED.start_time, finish_time=EXCLUDED.finish_time,
			started_at=EXCLUDED.started_at, finished_at=EXCLUDED.finished_at,
			initial_capital=EXCLUDED.initial_capital, final_capital=EXCLUDED.final_capital,
			total_return=EXCLUDED.total_return, total_return_percentage=EXCLUDED.total_return_percentage,
			total_trades=EXCLUDED.total_trades, winning_trades=EXCLUDED.winning_trades, win_rate=EXCLUDED.win_rate`,
			r.RunID, r.Strategy, r.Symbol, r.Exchange, r.Timeframe, r.Start.UnixNano(), r.Finish.UnixNano(),
			r.StartedAt.UnixNano(), r.FinishedAt.UnixNano(), r.InitialCapital, r.FinalCapital, r.TotalReturn,
			r.TotalReturnPercentage, r.Metrics.TotalTrades, r.Metrics.WinningTrades, r.Metrics.WinRate)
		if err != nil {
			return fmt.Errorf("failed to save run %s: %w", r.RunID, err)
		}

		if _, err := tx.ExecContext(ctx, `DELETE FROM trades WHERE run_id=?`, r.RunID); err != nil {
			return fmt.Errorf("failed to clear trades for run %s: %w", r.RunID, err)
		}

		stmt, err := tx.PrepareContext(ctx, `
			INSERT INTO trades (id, run_id, symbol, side, entry_price, exit_price, quantity, lots,
				pnl, margin_used, transaction_cost, instrument, reason, entry_time, exit_time)
			VALUES (?,?,?,?,?,?,?,?,?,?,?,?,?,?,?)`)
		if err != nil {
			return fmt.Errorf("failed to prepare trade insert: %w", err)
		}
		defer stmt.Close()

		for i, t := range r.Trades {
			_, err := stmt.ExecContext(ctx, t.ID, r.RunID, t.Symbol, string(t.Side), t.EntryPrice, t.ExitPrice,
				t.Quantity, t.Lots, t.PnL, t.MarginUsed, t.TransactionCost, t.Instrument, t.Reason,
				t.EntryTime.UnixNano(), t.ExitTime.UnixNano())
			if err != nil {
				return fmt.Errorf("failed to save trade at index %d for run %s: %w", i, r.RunID, err)
			}
		}

		return nil
	})
}

func (s *SQLite) GetRun(ctx context.Context, runID string) (*backtest.Results, error) {
	rows, err := queryWithTransaction(ctx, s.db, `
		SELECT run_id, strategy, symbol, exchange, timeframe, start_time, finish_time,
			started_at, finished_at, initial_capital, final_capital, total_return, total_return_percentage
		FROM runs WHERE run_id=?`, runID)
	if err != nil {
		return nil, fmt.Errorf("failed to query run %s: %w", runID, err)
	}
	defer rows.Close()

	if !rows.Next() {
		return nil, rows.Err()
	}

	var r backtest.Results
	var start, finish, startedAt, finishedAt int64
	if err := rows.Scan(&r.RunID, &r.Strategy, &r.Symbol, &r.Exchange, &r.Timeframe, &start, &finish,
		&startedAt, &finishedAt, &r.InitialCapital, &r.FinalCapital, &r.TotalReturn, &r.TotalReturnPercentage); err != nil {
		return nil, fmt.Errorf("failed to scan run %s: %w", runID, err)
	}
	rows.Close()
	setRunTimes(&r, start, finish, startedAt, finishedAt)

	r.Trades, err = s.GetTrades(ctx, runID)
	if err != nil {
		return nil, err
	}
	r.Metrics = position.CalculateMetrics(r.Trades, r.InitialCapital)

	return &r, nil
}

func (s *SQLite) ListRuns(ctx context.Context, symbol, strategy string, limit int) ([]backtest.Results, error) {
	query := `
		SELECT run_id, strategy, symbol, exchange, timeframe, start_time, finish_time,
			started_at, finished_at, initial_capital, final_capital, total_return,
			total_return_percentage, total_trades, winning_trades, win_rate
		FROM runs WHERE 1=1`
	var args []any

	if symbol != "" {
		query += " AND symbol=?"
		args = append(args, symbol)
	}
	if strategy != "" {
		query += " AND strategy=?"
		args = append(args, strategy)
	}

	query += " ORDER BY started_at DESC"

	if limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}

	rows, err := queryWithTransaction(ctx, s.db, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query runs: %w", err)
	}
	defer rows.Close()

	var runs []backtest.Results
	for rows.Next() {
		var r backtest.Results
		var start, finish, startedAt, finishedAt int64
		if err := rows.Scan(&r.RunID, &r.Strategy, &r.Symbol, &r.Exchange, &r.Timeframe, &start, &finish,
			&startedAt, &finishedAt, &r.InitialCapital, &r.FinalCapital, &r.TotalReturn,
			&r.TotalReturnPercentage, &r.Metrics.TotalTrades, &r.Metrics.WinningTrades, &r.Metrics.WinRate); err != nil {
			return nil, fmt.Errorf("failed to scan run: %w", err)
		}
		setRunTimes(&r, start, finish, startedAt, finishedAt)
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

func (s *SQLite) GetTrades(ctx context.Context, runID string) ([]position.Trade, error) {
	rows, err := queryWithTransaction(ctx, s.db, `
		SELECT id, symbol, side, entry_price, exit_price, quantity, lots, pnl,
			margin_used, transaction_cost, instrument, reason, entry_time, exit_time
		FROM trades WHERE run_id=? ORDER BY exit_time ASC, id ASC`, runID)
	if err != nil {
		return nil, fmt.Errorf("failed to query trades for run %s: %w", runID, err)
	}
	defer rows.Close()

	var trades []position.Trade
	for rows.Next() {
		var t position.Trade
		var side string
		var entry, exit int64
		if err := rows.Scan(&t.ID, &t.Symbol, &side, &t.EntryPrice, &t.ExitPrice, &t.Quantity, &t.Lots,
			&t.PnL, &t.MarginUsed, &t.TransactionCost, &t.Instrument, &t.Reason, &entry, &exit); err != nil {
			return nil, fmt.Errorf("failed to scan trade: %w", err)
		}
		t.Side = position.Side(side)
		t.EntryTime = time.Unix(0, entry).UTC()
		t.ExitTime = time.Unix(0, exit).UTC()
		trades = append(trades, t)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating trade rows: %w", err)
	}

	return trades, nil
}

func (s *SQLite) LogEvent(ctx context.Context, event journal.Event) error {
	return executeWithTransaction(ctx, s.db, func(tx *sql.Tx) error {
		data, _ := json.Marshal(event.Data)
		_, err := tx.ExecContext(ctx, `INSERT INTO events (time, type, description, data) VALUES (?,?,?,?)`,
			event.Time.UnixNano(), event.Type, event.Description, data)
		if err != nil {
			return fmt.Errorf("failed to log event: %w", err)
		}
		return nil
	})
}

func (s *SQLite) GetEvents(ctx context.Context, eventType string, start, end time.Time) ([]journal.Event, error) {
	query := `SELECT time, type, description, data FROM events WHERE time >= ? AND time <= ?`
	args := []any{start.UnixNano(), end.UnixNano()}

	if eventType != "" {
		query += " AND type=?"
		args = append(args, eventType)
	}

	query += " ORDER BY time ASC"

	rows, err := queryWithTransaction(ctx, s.db, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query events: %w", err)
	}
	defer rows.Close()

	var events []journal.Event
	for rows.Next() {
		var e journal.Event
		var ts int64
		var data []byte
		if err := rows.Scan(&ts, &e.Type, &e.Description, &data); err != nil {
			return nil, fmt.Errorf("failed to scan event: %w", err)
		}
		json.Unmarshal(data, &e.Data)
		e.Time = time.Unix(0, ts).UTC()
		events = append(events, e)
	}

	return events, rows.Err()
}

func (s *SQLite) DeleteEvents(ctx context.Context, eventType string, before time.Time) error {
	return executeWithTransaction(ctx, s.db, func(tx *sql.Tx) error {
		_, err := tx.ExecContext(ctx, `DELETE FROM events WHERE type=? AND time < ?`, eventType, before.UnixNano())
		if err != nil {
			return fmt.Errorf("failed to delete events: %w", err)
		}
		return nil
	})
}

func scanSQLiteCandle(rows *sql.Rows) (candle.Candle, error) {
	var c candle.Candle
	var ts int64
	if err := rows.Scan(&ts, &c.Open, &c.High, &c.Low, &c.Close, &c.Volume, &c.Symbol, &c.Timeframe, &c.Source); err != nil {
		return c, fmt.Errorf("failed to scan candle: %w", err)
	}
	c.Timestamp = time.Unix(0, ts).UTC()
	return c, nil
}

func setRunTimes(r *backtest.Results, start, finish, startedAt, finishedAt int64) {
	r.Start = time.Unix(0, start).UTC()
	r.Finish = time.Unix(0, finish).UTC()
	r.StartedAt = time.Unix(0, startedAt).UTC()
	r.FinishedAt = time.Unix(0, finishedAt).UTC()
}
