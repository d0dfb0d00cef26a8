package main

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"net/url"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/lib/pq"

	"github.com/amirphl/nse-backtest/internal/backtest"
	"github.com/amirphl/nse-backtest/internal/candle"
	"github.com/amirphl/nse-backtest/internal/config"
	"github.com/amirphl/nse-backtest/internal/db"
	"github.com/amirphl/nse-backtest/internal/db/conf"
	"github.com/amirphl/nse-backtest/internal/exchange"
	"github.com/amirphl/nse-backtest/internal/instrument"
)

func main() {
	// Load configuration
	cfg := config.MustLoadConfig()
	log.Println("Starting nse-backtest in mode:", cfg.Mode)

	// Set up context with cancellation
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Set up signal handling for graceful shutdown
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		log.Printf("Received signal %v, shutting down...", sig)
		cancel()
	}()

	store := openStorage(ctx, cfg)
	defer store.Close()

	switch cfg.Mode {
	case "import":
		runImport(ctx, cfg, store)
	case "backtest":
		runBacktest(ctx, cfg, store)
	default:
		log.Fatalf("Unsupported mode: %s", cfg.Mode)
	}
}

// openStorage opens the configured storage backend, running migrations
// first when enabled.
func openStorage(ctx context.Context, cfg config.Config) db.Storage {
	switch cfg.Storage {
	case "postgres":
		if cfg.RunMigration {
			if err := runMigrations(ctx, cfg.DBConnStr); err != nil {
				log.Fatalf("Failed to run migrations: %v", err)
			}
		}
		dbConfig, err := conf.NewConfig(cfg.DBConnStr, cfg.DBMaxOpen, cfg.DBMaxIdle)
		if err != nil {
			log.Fatalf("Failed to create DB config: %v", err)
		}
		store, err := db.New(*dbConfig)
		if err != nil {
			log.Fatalf("Failed to initialize database: %v", err)
		}
		log.Println("Connected to Postgres/TimescaleDB")
		return store
	case "sqlite":
		path := cfg.SQLiteFile()
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			log.Fatalf("Failed to create database directory: %v", err)
		}
		store, err := db.OpenSQLite(path)
		if err != nil {
			log.Fatalf("Failed to open SQLite database: %v", err)
		}
		log.Println("Using SQLite database at", path)
		return store
	default:
		log.Println("Using in-memory storage; nothing will be persisted")
		return db.NewMemory()
	}
}

// runImport loads candle files into storage for later backtests.
func runImport(ctx context.Context, cfg config.Config, store db.Storage) {
	for _, symbol := range cfg.Symbols {
		path := cfg.DataFileFor(symbol)
		importCfg := candle.DefaultImportConfig(path, symbol, cfg.Timeframe)
		importCfg.FilterSession = cfg.FilterSession

		candles, err := candle.NewImporter(importCfg).Import()
		if err != nil {
			log.Fatalf("Failed to import %s: %v", path, err)
		}

		saveCtx, cancel := context.WithTimeout(ctx, 5*time.Minute)
		err = store.SaveCandles(saveCtx, candles)
		cancel()
		if err != nil {
			log.Fatalf("Failed to save candles for %s: %v", symbol, err)
		}
		log.Printf("Imported %d candles for %s from %s", len(candles), symbol, path)
	}
}

// runBacktest runs every configured strategy against every configured
// symbol, then prints, saves and persists the results.
func runBacktest(ctx context.Context, cfg config.Config, store db.Storage) {
	batchCfg := backtest.BatchConfig{
		Symbols:        cfg.Symbols,
		Strategies:     cfg.Strategies,
		Exchange:       cfg.Exchange,
		Timeframe:      cfg.Timeframe,
		InitialCapital: cfg.InitialCapital,
		Start:          cfg.From.Time,
		Finish:         cfg.To.Time,
		StrategyConfig: cfg.StrategyParams,
		Registry:       instrument.NewDefaultRegistry(),
		Journal:        db.NewJournal(store),
	}

	batch, err := backtest.RunBatch(ctx, batchCfg, candleProvider(cfg, store))
	if err != nil {
		log.Fatalf("Backtest failed: %v", err)
	}

	if cfg.SaveTrades {
		if err := os.MkdirAll(cfg.OutputDir, 0o755); err != nil {
			log.Fatalf("Failed to create output directory: %v", err)
		}
	}

	for _, results := range batch.Results {
		results.PrintResults(os.Stdout)

		if cfg.SaveTrades {
			path := filepath.Join(cfg.OutputDir, results.TradeLogFilename())
			if err := results.SaveTradeLog(path); err != nil {
				log.Printf("Failed to save trade log %s: %v", path, err)
			} else {
				log.Printf("Trade log saved to %s", path)
			}
		}

		if cfg.PersistRuns {
			saveCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
			err := store.SaveRun(saveCtx, results)
			cancel()
			if err != nil {
				log.Printf("Failed to persist run %s: %v", results.RunID, err)
			}
		}
	}

	batch.PrintSummary(os.Stdout)
}

// candleProvider loads candles for one symbol: storage first, then the
// symbol's data file, then the exchange when downloads are enabled.
func candleProvider(cfg config.Config, store db.Storage) backtest.CandleProvider {
	return func(ctx context.Context, symbol, timeframe string) ([]candle.Candle, error) {
		start := cfg.From.Time
		finish := cfg.To.Time
		if finish.IsZero() {
			finish = time.Now().UTC()
		}

		candles, err := store.GetCandles(ctx, symbol, timeframe, "", start, finish)
		if err != nil {
			return nil, fmt.Errorf("error loading candles from storage: %w", err)
		}
		if len(candles) > 0 {
			return candles, nil
		}

		if path := cfg.DataFileFor(symbol); fileExists(path) {
			return importCandles(ctx, cfg, store, symbol, path)
		}

		if cfg.Download {
			return downloadCandles(ctx, cfg, store, symbol, timeframe, start, finish)
		}

		return nil, fmt.Errorf("no candles for %s %s: provide %s or enable -download", symbol, timeframe, cfg.DataFileFor(symbol))
	}
}

// importCandles runs the file import pipeline and saves the result so
// later runs hit storage directly.
func importCandles(ctx context.Context, cfg config.Config, store db.Storage, symbol, path string) ([]candle.Candle, error) {
	log.Printf("No candles in storage for %s, importing %s...", symbol, path)

	importCfg := candle.DefaultImportConfig(path, symbol, cfg.Timeframe)
	importCfg.FilterSession = cfg.FilterSession

	candles, err := candle.NewImporter(importCfg).Import()
	if err != nil {
		return nil, fmt.Errorf("error importing %s: %w", path, err)
	}

	saveCtx, cancel := context.WithTimeout(ctx, 5*time.Minute)
	err = store.SaveCandles(saveCtx, candles)
	cancel()
	if err != nil {
		return nil, fmt.Errorf("error saving imported candles: %w", err)
	}
	return candles, nil
}

// downloadCandles fetches candles from the exchange in 30-day chunks to
// avoid hitting API limits, saving each chunk, then reloads the full
// range from storage.
func downloadCandles(ctx context.Context, cfg config.Config, store db.Storage, symbol, timeframe string, from, to time.Time) ([]candle.Candle, error) {
	if from.IsZero() {
		return nil, fmt.Errorf("downloading candles requires a start date")
	}

	log.Printf("No historical candles found for %s, downloading from exchange...", symbol)
	ex := exchange.NewWallexExchange(cfg.WallexAPIKey)

	currTime := from
	const maxChunkDays = 30

	for currTime.Before(to) {
		next := currTime.Add(maxChunkDays * 24 * time.Hour)
		if next.After(to) {
			next = to
		}

		downloadCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
		downloaded, err := ex.FetchCandles(downloadCtx, symbol, timeframe, currTime, next)
		cancel()
		if err != nil {
			return nil, fmt.Errorf("error fetching candles from %s to %s: %w",
				currTime.Format(time.RFC3339), next.Format(time.RFC3339), err)
		}

		if len(downloaded) > 0 {
			saveCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
			err = store.SaveCandles(saveCtx, downloaded)
			cancel()
			if err != nil {
				return nil, fmt.Errorf("error saving candles: %w", err)
			}
			log.Printf("Downloaded and saved %d candles [%s-%s]",
				len(downloaded), currTime.Format(time.RFC3339), next.Format(time.RFC3339))
		} else {
			log.Printf("No candles available from %s to %s",
				currTime.Format(time.RFC3339), next.Format(time.RFC3339))
		}

		currTime = next
	}

	candles, err := store.GetCandles(ctx, symbol, timeframe, "", from, to)
	if err != nil {
		return nil, fmt.Errorf("error loading downloaded candles: %w", err)
	}
	return candles, nil
}

func fileExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}

// runMigrations creates the database if it doesn't exist and applies
// scripts/schema.sql. TimescaleDB is optional; without it the hypertable
// conversion is skipped and candles stay a plain table.
func runMigrations(ctx context.Context, connStr string) error {
	log.Println("Running database migrations...")

	// Parse connection string to extract database name
	u, err := url.Parse(connStr)
	if err != nil {
		return fmt.Errorf("failed to parse connection string: %w", err)
	}

	dbName := strings.TrimPrefix(u.Path, "/")
	if dbName == "" {
		return fmt.Errorf("database name not found in connection string")
	}

	// Create a connection string to the postgres database to create our database
	baseConnStr := fmt.Sprintf("postgres://%s:%s@%s/postgres%s",
		u.User.Username(),
		func() string {
			p, _ := u.User.Password()
			return p
		}(),
		u.Host,
		func() string {
			if u.RawQuery != "" {
				return "?" + u.RawQuery
			}
			return ""
		}())

	// Connect to the postgres database
	baseDB, err := sql.Open("postgres", baseConnStr)
	if err != nil {
		return fmt.Errorf("failed to connect to postgres: %w", err)
	}
	defer baseDB.Close()

	// Check if our database exists
	var exists bool
	err = baseDB.QueryRowContext(ctx, "SELECT EXISTS(SELECT 1 FROM pg_database WHERE datname = $1)", dbName).Scan(&exists)
	if err != nil {
		return fmt.Errorf("failed to check if database exists: %w", err)
	}

	// Create the database if it doesn't exist
	if !exists {
		log.Printf("Creating database %s...", dbName)
		_, err = baseDB.ExecContext(ctx, fmt.Sprintf("CREATE DATABASE %s", pq.QuoteIdentifier(dbName)))
		if err != nil {
			return fmt.Errorf("failed to create database: %w", err)
		}
	}

	// Connect to our database
	migrateDB, err := sql.Open("postgres", connStr)
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}
	defer migrateDB.Close()

	var hasTimescaleDB bool
	err = migrateDB.QueryRowContext(ctx, "SELECT 1 FROM pg_available_extensions WHERE name = 'timescaledb'").Scan(&hasTimescaleDB)
	if err != nil && err != sql.ErrNoRows {
		return fmt.Errorf("failed to check for timescaledb: %w", err)
	}
	if hasTimescaleDB {
		if _, err := migrateDB.ExecContext(ctx, "CREATE EXTENSION IF NOT EXISTS timescaledb CASCADE;"); err != nil {
			return fmt.Errorf("failed to create timescaledb extension: %w", err)
		}
	}

	// Read the schema.sql file
	schemaSQL, err := os.ReadFile("scripts/schema.sql")
	if err != nil {
		return fmt.Errorf("failed to read schema.sql: %w", err)
	}

	// Execute the schema statement by statement so the hypertable
	// conversion can be skipped on plain Postgres.
	for stmt := range strings.SplitSeq(string(schemaSQL), ";") {
		stmt = strings.TrimSpace(stmt)
		if stmt == "" {
			continue
		}
		if !hasTimescaleDB && strings.Contains(strings.ToLower(stmt), "create_hypertable") {
			log.Printf("Skipping TimescaleDB statement: %s", stmt)
			continue
		}
		if _, err := migrateDB.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("failed to execute schema statement: %w", err)
		}
	}

	log.Println("Database migrations completed successfully")
	return nil
}
