// Package candle
package candle

import (
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/amirphl/nse-backtest/internal/tfutils"
)

type Candle struct {
	Timestamp time.Time `json:"timestamp"`
	Open      float64   `json:"open"`
	High      float64   `json:"high"`
	Low       float64   `json:"low"`
	Close     float64   `json:"close"`
	Volume    float64   `json:"volume"`
	Symbol    string    `json:"symbol"`
	Timeframe string    `json:"timeframe"`
	Source    string    `json:"source"`
}

// Validate checks if a candle has valid data
func (c *Candle) Validate() error {
	if c.Timestamp.IsZero() {
		return errors.New("candle timestamp is zero")
	}
	if c.Open <= 0 || c.High <= 0 || c.Low <= 0 || c.Close <= 0 {
		return errors.New("candle prices must be positive")
	}
	if c.High < c.Low {
		return errors.New("candle high cannot be less than low")
	}
	if c.Open < c.Low || c.Open > c.High {
		return errors.New("candle open price must be between high and low")
	}
	if c.Close < c.Low || c.Close > c.High {
		return errors.New("candle close price must be between high and low")
	}
	if c.Volume < 0 {
		return errors.New("candle volume cannot be negative")
	}
	if c.Symbol == "" {
		return errors.New("candle symbol cannot be empty")
	}
	if c.Timeframe == "" {
		return errors.New("candle timeframe cannot be empty")
	}
	return nil
}

// SortAndDeduplicate sorts candles by timestamp ascending and drops duplicate
// timestamps, keeping the first occurrence. The input slice is not modified.
func SortAndDeduplicate(candles []Candle) []Candle {
	if len(candles) == 0 {
		return nil
	}

	sorted := make([]Candle, len(candles))
	copy(sorted, candles)
	sort.Slice(sorted, func(i, j int) bool {
		return sorted[i].Timestamp.Before(sorted[j].Timestamp)
	})

	result := sorted[:1]
	for _, c := range sorted[1:] {
		if !c.Timestamp.Equal(result[len(result)-1].Timestamp) {
			result = append(result, c)
		}
	}
	return result
}

// TrimRange keeps candles with start <= timestamp < end. A zero start or end
// leaves that side unbounded.
func TrimRange(candles []Candle, start, end time.Time) []Candle {
	var trimmed []Candle
	for _, c := range candles {
		if !start.IsZero() && c.Timestamp.Before(start) {
			continue
		}
		if !end.IsZero() && !c.Timestamp.Before(end) {
			continue
		}
		trimmed = append(trimmed, c)
	}
	return trimmed
}

// Resample aggregates candles into targetTimeframe buckets: open is the first
// open, high the max, low the min, close the last close, volume the sum.
// The aggregated candle keeps the timestamp of the first candle in its bucket
// and buckets with no candles are dropped, so session gaps never produce
// synthetic bars. Input must be sorted ascending and share one symbol.
func Resample(candles []Candle, targetTimeframe string) ([]Candle, error) {
	if len(candles) == 0 {
		return nil, nil
	}

	dur, err := tfutils.ParseTimeframe(targetTimeframe)
	if err != nil {
		return nil, fmt.Errorf("invalid timeframe %s: %w", targetTimeframe, err)
	}

	srcDur := tfutils.GetTimeframeDuration(candles[0].Timeframe)
	if srcDur > dur {
		return nil, fmt.Errorf("cannot resample %s candles to %s", candles[0].Timeframe, targetTimeframe)
	}
	if srcDur == dur {
		return candles, nil
	}

	symbol := candles[0].Symbol
	buckets := make(map[time.Time][]Candle)
	var order []time.Time
	for i, c := range candles {
		if err := c.Validate(); err != nil {
			return nil, fmt.Errorf("invalid candle at index %d: %w", i, err)
		}
		if c.Symbol != symbol {
			return nil, fmt.Errorf("candle at index %d has symbol %s, expected %s", i, c.Symbol, symbol)
		}
		bucket := c.Timestamp.Truncate(dur)
		if _, exists := buckets[bucket]; !exists {
			order = append(order, bucket)
		}
		buckets[bucket] = append(buckets[bucket], c)
	}

	sort.Slice(order, func(i, j int) bool { return order[i].Before(order[j]) })

	result := make([]Candle, 0, len(order))
	for _, bucket := range order {
		group := buckets[bucket]
		agg := Candle{
			Timestamp: group[0].Timestamp,
			Open:      group[0].Open,
			High:      group[0].High,
			Low:       group[0].Low,
			Close:     group[len(group)-1].Close,
			Symbol:    symbol,
			Timeframe: targetTimeframe,
			Source:    "resampled",
		}
		for _, c := range group {
			if c.High > agg.High {
				agg.High = c.High
			}
			if c.Low < agg.Low {
				agg.Low = c.Low
			}
			agg.Volume += c.Volume
		}
		result = append(result, agg)
	}

	return result, nil
}

// ResampleFrom1m aggregates 1m candles to a higher timeframe.
func ResampleFrom1m(oneMCandles []Candle, targetTimeframe string) ([]Candle, error) {
	for i, c := range oneMCandles {
		if c.Timeframe != "1m" {
			return nil, fmt.Errorf("candle at index %d is not 1m: %s", i, c.Timeframe)
		}
	}
	return Resample(oneMCandles, targetTimeframe)
}
