// Package exchange
package exchange

import (
	"context"
	"time"

	"github.com/amirphl/nse-backtest/internal/candle"
)

// Exchange is a remote source of historical candles.
type Exchange interface {
	Name() string
	FetchCandles(ctx context.Context, symbol, timeframe string, start, end time.Time) ([]candle.Candle, error)
}
