// Package strategy
package strategy

import (
	"github.com/amirphl/nse-backtest/internal/candle"
	"github.com/amirphl/nse-backtest/internal/position"
)

// Bar is the per-candle view the engine hands to a strategy on every step
// of a backtest. History holds all candles up to and including the current
// one, so History[Index] == Candle.
type Bar struct {
	Index   int
	Candle  candle.Candle
	History []candle.Candle
	Trader  *position.Trader
}

// Strategy is the interface for all trading strategies. The engine drives
// it in a fixed per-bar order: Before recomputes indicator state, then
// while flat ShouldLong is checked before ShouldShort and a true signal
// may still be vetoed by ShouldCancelEntry, then After manages the open
// position (bracket placement, indicator exits, stop/target checks).
type Strategy interface {
	Name() string
	WarmupPeriod() int
	Reset()
	Before(bar *Bar)
	ShouldLong(bar *Bar) bool
	ShouldShort(bar *Bar) bool
	ShouldCancelEntry(bar *Bar) bool
	After(bar *Bar)
}

// TraderConfigurer is implemented by strategies that carry their own
// sizing and accounting policies. The engine applies them to the trader it
// builds before a run starts.
type TraderConfigurer interface {
	ConfigureTrader(t *position.Trader)
}

// applyBrackets places the stop loss and take profit as percentage offsets
// from the entry price. Brackets are placed at most once per trade: only
// when both are still unset.
func applyBrackets(t *position.Trader, stopLossPercent, takeProfitPercent float64) {
	if t.Book.IsFlat() || t.Book.HasBrackets() {
		return
	}

	entry := t.Book.EntryPrice
	if t.Book.IsLong() {
		t.SetStopLoss(entry * (1 - stopLossPercent))
		t.SetTakeProfit(entry * (1 + takeProfitPercent))
	} else {
		t.SetStopLoss(entry * (1 + stopLossPercent))
		t.SetTakeProfit(entry * (1 - takeProfitPercent))
	}
}
