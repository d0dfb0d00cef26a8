package instrument

import (
	"sort"
	"strings"
	"sync"
)

// Registry holds instrument specifications keyed by uppercased symbol.
// Registration is last-wins, lookups are case-insensitive, and custom
// instruments can be registered at runtime.
type Registry struct {
	mu          sync.RWMutex
	instruments map[string]Instrument
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{instruments: make(map[string]Instrument)}
}

// NewDefaultRegistry creates a registry seeded with the common NSE
// instruments: index futures, equity (cash and MTF) and the NIFTY ETF.
func NewDefaultRegistry() *Registry {
	r := NewRegistry()

	defaults := []Instrument{
		{Symbol: "NIFTY", Kind: Futures, LotSize: 75, MarginRate: 0.11, TickSize: 0.05, MaxLeverage: 9.0, TransactionCostRate: 0.0003},
		{Symbol: "BANKNIFTY", Kind: Futures, LotSize: 25, MarginRate: 0.12, TickSize: 0.05, MaxLeverage: 8.3, TransactionCostRate: 0.0003},
		{Symbol: "FINNIFTY", Kind: Futures, LotSize: 50, MarginRate: 0.12, TickSize: 0.05, MaxLeverage: 8.3, TransactionCostRate: 0.0003},
		{Symbol: "EQUITY_MTF", Kind: Equity, LotSize: 1, MarginRate: 0.25, TickSize: 0.05, MaxLeverage: 4.0, TransactionCostRate: 0.001},
		{Symbol: "EQUITY", Kind: Equity, LotSize: 1, MarginRate: 1.0, TickSize: 0.05, MaxLeverage: 1.0, TransactionCostRate: 0.001},
		{Symbol: "NIFTY_ETF", Kind: ETF, LotSize: 1, MarginRate: 1.0, TickSize: 0.01, MaxLeverage: 1.0, TransactionCostRate: 0.0005},
	}
	for _, inst := range defaults {
		_ = r.Register(inst)
	}

	return r
}

// Register validates and inserts an instrument, overwriting any existing
// registration for the same symbol.
func (r *Registry) Register(inst Instrument) error {
	if err := inst.Validate(); err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	r.instruments[strings.ToUpper(inst.Symbol)] = inst
	return nil
}

// Get looks up an instrument by symbol, case-insensitively.
func (r *Registry) Get(symbol string) (Instrument, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	inst, ok := r.instruments[strings.ToUpper(symbol)]
	return inst, ok
}

// List returns all registered instruments sorted by symbol.
func (r *Registry) List() []Instrument {
	r.mu.RLock()
	defer r.mu.RUnlock()

	list := make([]Instrument, 0, len(r.instruments))
	for _, inst := range r.instruments {
		list = append(list, inst)
	}
	sort.Slice(list, func(i, j int) bool { return list[i].Symbol < list[j].Symbol })
	return list
}
