// Package candle
package candle

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/parquet-go/parquet-go"
)

// ParquetCandle is the on-disk Parquet schema for candle rows.
type ParquetCandle struct {
	Symbol    string  `parquet:"symbol"`
	Timeframe string  `parquet:"timeframe"`
	Timestamp int64   `parquet:"timestamp,timestamp(millisecond)"` // Unix ms
	Open      float64 `parquet:"open"`
	High      float64 `parquet:"high"`
	Low       float64 `parquet:"low"`
	Close     float64 `parquet:"close"`
	Volume    float64 `parquet:"volume"`
}

// LoadParquet reads candles from a Parquet file. Rows are returned sorted by
// timestamp; the symbol argument overrides empty symbol columns.
func LoadParquet(path, symbol string) ([]Candle, error) {
	rows, err := parquet.ReadFile[ParquetCandle](path)
	if err != nil {
		return nil, fmt.Errorf("failed to read parquet %s: %w", path, err)
	}

	candles := make([]Candle, 0, len(rows))
	for _, r := range rows {
		c := Candle{
			Timestamp: time.UnixMilli(r.Timestamp).UTC(),
			Open:      r.Open,
			High:      r.High,
			Low:       r.Low,
			Close:     r.Close,
			Volume:    r.Volume,
			Symbol:    r.Symbol,
			Timeframe: r.Timeframe,
			Source:    "parquet",
		}
		if c.Symbol == "" {
			c.Symbol = symbol
		}
		if c.Timeframe == "" {
			c.Timeframe = "1m"
		}
		candles = append(candles, c)
	}

	sort.Slice(candles, func(i, j int) bool {
		return candles[i].Timestamp.Before(candles[j].Timestamp)
	})
	return candles, nil
}

// SaveParquet writes candles to a Parquet file, creating parent directories
// as needed.
func SaveParquet(path string, candles []Candle) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}

	rows := make([]ParquetCandle, len(candles))
	for i, c := range candles {
		rows[i] = ParquetCandle{
			Symbol:    c.Symbol,
			Timeframe: c.Timeframe,
			Timestamp: c.Timestamp.UnixMilli(),
			Open:      c.Open,
			High:      c.High,
			Low:       c.Low,
			Close:     c.Close,
			Volume:    c.Volume,
		}
	}
	if err := parquet.WriteFile(path, rows); err != nil {
		return fmt.Errorf("failed to write parquet %s: %w", path, err)
	}
	return nil
}
