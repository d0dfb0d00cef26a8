package position

import "github.com/amirphl/nse-backtest/internal/instrument"

// SizingPolicy decides how large a new position should be. It returns the
// quantity in shares and, for lot-based instruments, the number of lots. A
// zero quantity means the trade cannot be sized, which callers treat as a
// no-op that leaves the trader flat.
type SizingPolicy interface {
	Size(capital, price float64) (quantity float64, lots int)
}

// FullCapitalSizing puts all available capital into the position. This is
// the default for simple cash strategies.
type FullCapitalSizing struct{}

func (FullCapitalSizing) Size(capital, price float64) (float64, int) {
	if price <= 0 || capital <= 0 {
		return 0, 0
	}
	return capital / price, 0
}

// RiskFractionSizing risks a fraction of capital per trade, assuming the
// stop loss sits StopLossPercent away from the entry. The resulting size is
// capped at MaxCapitalFraction of capital.
type RiskFractionSizing struct {
	RiskPercent        float64
	StopLossPercent    float64
	MaxCapitalFraction float64
}

func (s RiskFractionSizing) Size(capital, price float64) (float64, int) {
	if price <= 0 || capital <= 0 {
		return 0, 0
	}

	priceDiff := price * s.StopLossPercent
	if priceDiff <= 0 {
		return 0, 0
	}
	size := capital * s.RiskPercent / priceDiff

	maxSize := capital * s.MaxCapitalFraction / price
	if size > maxSize {
		size = maxSize
	}
	if size <= 0 {
		return 0, 0
	}
	return size, 0
}

// LotMarginSizing sizes leveraged positions in whole lots against available
// margin. RiskFraction is the share of capital usable as margin, MaxLots
// caps lots per trade, and LotsPerEntry further limits a single entry (the
// futures strategies trade one lot at a time). Fewer than one affordable
// lot rejects the trade.
type LotMarginSizing struct {
	Instrument   instrument.Instrument
	RiskFraction float64
	MaxLots      int
	LotsPerEntry int
}

func (s LotMarginSizing) Size(capital, price float64) (float64, int) {
	lots := s.Instrument.MaxLots(capital, price, s.RiskFraction)
	if s.MaxLots > 0 && lots > s.MaxLots {
		lots = s.MaxLots
	}
	if s.LotsPerEntry > 0 && lots > s.LotsPerEntry {
		lots = s.LotsPerEntry
	}
	if lots < 1 {
		return 0, 0
	}
	return float64(s.Instrument.Quantity(lots)), lots
}
