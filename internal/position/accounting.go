package position

import "github.com/amirphl/nse-backtest/internal/instrument"

// AccountingPolicy defines how capital moves when a position opens and
// closes: how much margin to reserve at entry and what transaction cost to
// charge at exit.
type AccountingPolicy interface {
	MarginRequired(price, quantity float64, lots int) float64
	CloseCost(exitPrice, quantity float64, lots int) float64
}

// CashAccounting is fully funded trading: no margin is reserved and no
// transaction costs are charged. Matches the plain equity strategies.
type CashAccounting struct{}

func (CashAccounting) MarginRequired(price, quantity float64, lots int) float64 { return 0 }
func (CashAccounting) CloseCost(exitPrice, quantity float64, lots int) float64  { return 0 }

// MarginAccounting reserves instrument margin at entry and releases it at
// exit. ChargeCosts controls whether the instrument's transaction cost is
// deducted on close; the hardcoded NIFTY strategy skips it while the
// registry-driven one charges it.
type MarginAccounting struct {
	Instrument  instrument.Instrument
	ChargeCosts bool
}

func (a MarginAccounting) MarginRequired(price, quantity float64, lots int) float64 {
	return a.Instrument.MarginRequired(price, lots)
}

func (a MarginAccounting) CloseCost(exitPrice, quantity float64, lots int) float64 {
	if !a.ChargeCosts {
		return 0
	}
	return a.Instrument.TransactionCost(a.Instrument.ContractValue(exitPrice, lots))
}
