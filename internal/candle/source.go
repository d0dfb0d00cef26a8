// Package candle
package candle

import "fmt"

// Source selects which derived price a candle contributes to an indicator
// series.
type Source string

const (
	SourceClose Source = "close"
	SourceOpen  Source = "open"
	SourceHigh  Source = "high"
	SourceLow   Source = "low"
	SourceHL2   Source = "hl2"
	SourceHLC3  Source = "hlc3"
	SourceOHLC4 Source = "ohlc4"
)

// ParseSource validates a price source name.
func ParseSource(s string) (Source, error) {
	switch Source(s) {
	case SourceClose, SourceOpen, SourceHigh, SourceLow, SourceHL2, SourceHLC3, SourceOHLC4:
		return Source(s), nil
	default:
		return "", fmt.Errorf("invalid candle source: %s", s)
	}
}

// SourcePrice returns the selected derived price of the candle.
func (c Candle) SourcePrice(s Source) float64 {
	switch s {
	case SourceOpen:
		return c.Open
	case SourceHigh:
		return c.High
	case SourceLow:
		return c.Low
	case SourceHL2:
		return (c.High + c.Low) / 2
	case SourceHLC3:
		return (c.High + c.Low + c.Close) / 3
	case SourceOHLC4:
		return (c.Open + c.High + c.Low + c.Close) / 4
	default:
		return c.Close
	}
}

// Series extracts the selected price of every candle in order.
func Series(candles []Candle, s Source) []float64 {
	prices := make([]float64, len(candles))
	for i, c := range candles {
		prices[i] = c.SourcePrice(s)
	}
	return prices
}

// Closes extracts close prices in order.
func Closes(candles []Candle) []float64 { return Series(candles, SourceClose) }

// Highs extracts high prices in order.
func Highs(candles []Candle) []float64 { return Series(candles, SourceHigh) }

// Lows extracts low prices in order.
func Lows(candles []Candle) []float64 { return Series(candles, SourceLow) }
