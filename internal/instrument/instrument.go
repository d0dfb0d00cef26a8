// Package instrument
package instrument

import (
	"errors"
	"fmt"
	"math"
	"strings"
)

// Kind classifies an instrument for margin and lot handling.
type Kind string

const (
	Equity  Kind = "equity"
	Futures Kind = "futures"
	Options Kind = "options"
	ETF     Kind = "etf"
)

// Instrument describes the contract specification of a tradeable symbol:
// lot size, margin requirement, tick size and transaction costs. Equity
// instruments have LotSize 1 and MarginRate 1.0 (fully funded).
type Instrument struct {
	Symbol              string  `json:"symbol" yaml:"symbol"`
	Kind                Kind    `json:"kind" yaml:"kind"`
	LotSize             int     `json:"lot_size" yaml:"lot_size"`
	MarginRate          float64 `json:"margin_rate" yaml:"margin_rate"`
	TickSize            float64 `json:"tick_size" yaml:"tick_size"`
	MaxLeverage         float64 `json:"max_leverage" yaml:"max_leverage"`
	TransactionCostRate float64 `json:"transaction_cost_rate" yaml:"transaction_cost_rate"`
}

// New creates a validated instrument.
func New(symbol string, kind Kind, lotSize int, marginRate, tickSize, maxLeverage, transactionCostRate float64) (Instrument, error) {
	inst := Instrument{
		Symbol:              strings.ToUpper(symbol),
		Kind:                kind,
		LotSize:             lotSize,
		MarginRate:          marginRate,
		TickSize:            tickSize,
		MaxLeverage:         maxLeverage,
		TransactionCostRate: transactionCostRate,
	}
	if err := inst.Validate(); err != nil {
		return Instrument{}, err
	}
	return inst, nil
}

// DefaultFutures returns the fallback futures specification used when a
// symbol is not registered: 50 per lot at 15% margin.
func DefaultFutures(symbol string) Instrument {
	return Instrument{
		Symbol:              strings.ToUpper(symbol),
		Kind:                Futures,
		LotSize:             50,
		MarginRate:          0.15,
		TickSize:            0.05,
		MaxLeverage:         1.0,
		TransactionCostRate: 0.0003,
	}
}

// Validate checks the specification. A zero margin rate is rejected because
// it would make MaxLots unbounded.
func (i Instrument) Validate() error {
	if i.Symbol == "" {
		return errors.New("instrument symbol cannot be empty")
	}
	if i.LotSize < 1 {
		return fmt.Errorf("instrument %s: lot size must be at least 1", i.Symbol)
	}
	if i.MarginRate <= 0 {
		return fmt.Errorf("instrument %s: margin rate must be positive", i.Symbol)
	}
	if i.TickSize <= 0 {
		return fmt.Errorf("instrument %s: tick size must be positive", i.Symbol)
	}
	if i.TransactionCostRate < 0 {
		return fmt.Errorf("instrument %s: transaction cost rate cannot be negative", i.Symbol)
	}
	return nil
}

// ContractValue is the notional value of lots at the given price.
func (i Instrument) ContractValue(price float64, lots int) float64 {
	return price * float64(i.LotSize) * float64(lots)
}

// MarginRequired is the margin needed to hold lots at the given price.
func (i Instrument) MarginRequired(price float64, lots int) float64 {
	return i.ContractValue(price, lots) * i.MarginRate
}

// MaxLots is the number of lots that capital*riskFraction can margin at the
// given price, clamped to be non-negative.
func (i Instrument) MaxLots(capital, price, riskFraction float64) int {
	marginPerLot := i.MarginRequired(price, 1)
	if marginPerLot <= 0 {
		return 0
	}
	lots := int(math.Floor(capital * riskFraction / marginPerLot))
	if lots < 0 {
		return 0
	}
	return lots
}

// Quantity converts lots to shares.
func (i Instrument) Quantity(lots int) int {
	return lots * i.LotSize
}

// TransactionCost is the cost charged on a traded notional value.
func (i Instrument) TransactionCost(value float64) float64 {
	return value * i.TransactionCostRate
}

// IsValidQuantity reports whether quantity is a whole number of lots.
func (i Instrument) IsValidQuantity(quantity int) bool {
	return quantity%i.LotSize == 0
}

// RoundToLotSize rounds quantity down to a whole number of lots.
func (i Instrument) RoundToLotSize(quantity int) int {
	return (quantity / i.LotSize) * i.LotSize
}

func (i Instrument) String() string {
	return fmt.Sprintf("Instrument(%s, %s, lot_size=%d, margin=%.1f%%)", i.Symbol, i.Kind, i.LotSize, i.MarginRate*100)
}
