package candle

import (
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/amirphl/nse-backtest/internal/tfutils"
	"github.com/amirphl/nse-backtest/internal/utils"
)

// ImportConfig holds configuration for the historical data import pipeline.
type ImportConfig struct {
	Path          string
	Format        string // "csv", "parquet", or "" to infer from extension
	Symbol        string
	Timeframe     string // target timeframe after resampling
	Location      *time.Location
	FilterSession bool
	Session       *Session
}

// DefaultImportConfig returns an import configuration for NSE minute data.
func DefaultImportConfig(path, symbol, timeframe string) ImportConfig {
	session := NewNSESession()
	return ImportConfig{
		Path:          path,
		Format:        "",
		Symbol:        symbol,
		Timeframe:     timeframe,
		Location:      session.Location,
		FilterSession: true,
		Session:       session,
	}
}

// Importer loads raw candle files and prepares them for a backtest:
// load, validate, session-filter, sort, deduplicate, resample.
type Importer struct {
	cfg ImportConfig
}

// NewImporter creates an importer for the given configuration.
func NewImporter(cfg ImportConfig) *Importer {
	return &Importer{cfg: cfg}
}

// Import runs the full pipeline and returns candles ready for the engine.
func (im *Importer) Import() ([]Candle, error) {
	cfg := im.cfg
	if cfg.Symbol == "" {
		return nil, fmt.Errorf("no symbol configured for import")
	}
	if !tfutils.IsValidTimeframe(cfg.Timeframe) {
		return nil, fmt.Errorf("unsupported timeframe: %s", cfg.Timeframe)
	}

	raw, err := im.load()
	if err != nil {
		return nil, err
	}
	utils.GetLogger().Printf("Importer | Loaded %d raw candles for %s from %s", len(raw), cfg.Symbol, cfg.Path)

	// Drop rows that fail validation instead of aborting the whole import;
	// broker exports routinely contain a handful of bad rows.
	valid := raw[:0]
	skipped := 0
	for _, c := range raw {
		if err := c.Validate(); err != nil {
			skipped++
			continue
		}
		valid = append(valid, c)
	}
	if skipped > 0 {
		utils.GetLogger().Printf("Importer | Skipped %d invalid candles for %s", skipped, cfg.Symbol)
	}

	if cfg.FilterSession {
		before := len(valid)
		valid = FilterSession(valid, cfg.Session)
		utils.GetLogger().Printf("Importer | Session filter kept %d of %d candles", len(valid), before)
	}

	valid = SortAndDeduplicate(valid)
	if len(valid) == 0 {
		return nil, fmt.Errorf("no candles left after cleaning %s", cfg.Path)
	}

	resampled, err := Resample(valid, cfg.Timeframe)
	if err != nil {
		return nil, fmt.Errorf("failed to resample to %s: %w", cfg.Timeframe, err)
	}
	utils.GetLogger().Printf("Importer | Prepared %d %s candles for %s", len(resampled), cfg.Timeframe, cfg.Symbol)

	return resampled, nil
}

func (im *Importer) load() ([]Candle, error) {
	format := im.cfg.Format
	if format == "" {
		switch strings.ToLower(filepath.Ext(im.cfg.Path)) {
		case ".parquet":
			format = "parquet"
		default:
			format = "csv"
		}
	}

	switch format {
	case "csv":
		return LoadCSV(im.cfg.Path, im.cfg.Symbol, im.cfg.Location)
	case "parquet":
		return LoadParquet(im.cfg.Path, im.cfg.Symbol)
	default:
		return nil, fmt.Errorf("unsupported data format: %s", format)
	}
}
