package strategy

import (
	"fmt"
	"math"

	"github.com/amirphl/nse-backtest/internal/indicator"
	"github.com/amirphl/nse-backtest/internal/instrument"
	"github.com/amirphl/nse-backtest/internal/position"
	"github.com/amirphl/nse-backtest/internal/utils"
)

// FuturesConfig holds the hyperparameters for the instrument-
// parameterized futures mean reversion strategy. Instrument names a
// symbol in the registry; unknown symbols fall back to the default
// futures contract terms.
type FuturesConfig struct {
	Instrument        string  `yaml:"instrument"`
	RSIPeriod         int     `yaml:"rsi_period"`
	RSIOversold       float64 `yaml:"rsi_oversold"`
	RSIOverbought     float64 `yaml:"rsi_overbought"`
	RSINeutral        float64 `yaml:"rsi_neutral"`
	SMAPeriod         int     `yaml:"sma_period"`
	StopLossPercent   float64 `yaml:"stop_loss_percent"`
	TakeProfitPercent float64 `yaml:"take_profit_percent"`
	RiskFraction      float64 `yaml:"risk_fraction"`
	MaxLotsPerTrade   int     `yaml:"max_lots_per_trade"`
}

// DefaultFuturesConfig returns the standard hyperparameters: NIFTY
// futures, RSI(14) with 40/60 bands, 1.5% stop, 2.5% target, 80% of
// capital available as margin, at most 3 affordable lots and one lot
// traded per entry.
func DefaultFuturesConfig() FuturesConfig {
	return FuturesConfig{
		Instrument:        "NIFTY",
		RSIPeriod:         14,
		RSIOversold:       40,
		RSIOverbought:     60,
		RSINeutral:        50,
		SMAPeriod:         20,
		StopLossPercent:   0.015,
		TakeProfitPercent: 0.025,
		RiskFraction:      0.8,
		MaxLotsPerTrade:   3,
	}
}

// Validate checks the hyperparameters.
func (c FuturesConfig) Validate() error {
	if c.Instrument == "" {
		return fmt.Errorf("instrument must not be empty")
	}
	if c.RSIPeriod <= 0 || c.SMAPeriod <= 0 {
		return fmt.Errorf("periods must be positive")
	}
	if c.StopLossPercent <= 0 || c.TakeProfitPercent <= 0 {
		return fmt.Errorf("stop loss and take profit percentages must be positive")
	}
	if c.RiskFraction <= 0 || c.RiskFraction > 1 {
		return fmt.Errorf("risk fraction must be in (0, 1]")
	}
	if c.MaxLotsPerTrade < 1 {
		return fmt.Errorf("max lots per trade must be at least 1")
	}
	return nil
}

// FuturesMeanReversion trades any registered futures contract against RSI
// extremes with margin-based lot sizing. The contract terms (lot size,
// margin rate, transaction costs) come from the instrument registry, so
// the same strategy runs NIFTY, BANKNIFTY or FINNIFTY unchanged. One lot
// per entry; exits when RSI returns to neutral or through the brackets.
// Transaction costs are charged on every close.
type FuturesMeanReversion struct {
	cfg        FuturesConfig
	instrument instrument.Instrument

	rsiState *indicator.RSIState
	closes   *Window
	rsi      *Window
	sma      *Window
}

// NewFuturesMeanReversion creates the futures strategy from cfg,
// resolving the contract terms through the registry. An unknown
// instrument logs a warning and falls back to the default futures
// contract.
func NewFuturesMeanReversion(cfg FuturesConfig, registry *instrument.Registry) (*FuturesMeanReversion, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("futures_mean_reversion: %w", err)
	}

	var inst instrument.Instrument
	var ok bool
	if registry != nil {
		inst, ok = registry.Get(cfg.Instrument)
	}
	if !ok {
		utils.GetLogger().Printf("Strategy | [%s futures_mean_reversion] Instrument not found, using default futures config", cfg.Instrument)
		inst = instrument.DefaultFutures(cfg.Instrument)
	}

	return &FuturesMeanReversion{
		cfg:        cfg,
		instrument: inst,
		rsiState:   indicator.NewRSIState(cfg.RSIPeriod),
		closes:     NewWindow(cfg.SMAPeriod),
		rsi:        NewWindow(5),
		sma:        NewWindow(3),
	}, nil
}

// Name returns the canonical strategy name.
func (s *FuturesMeanReversion) Name() string { return "futures_mean_reversion" }

// Instrument returns the resolved contract terms.
func (s *FuturesMeanReversion) Instrument() instrument.Instrument { return s.instrument }

// WarmupPeriod returns the number of candles consumed before signals can
// fire.
func (s *FuturesMeanReversion) WarmupPeriod() int { return s.warmup() }

func (s *FuturesMeanReversion) warmup() int {
	if s.cfg.SMAPeriod > s.cfg.RSIPeriod {
		return s.cfg.SMAPeriod
	}
	return s.cfg.RSIPeriod
}

// Reset clears all indicator state for a fresh pass.
func (s *FuturesMeanReversion) Reset() {
	s.rsiState.Reset()
	s.closes.Reset()
	s.rsi.Reset()
	s.sma.Reset()
}

// ConfigureTrader attaches lot-based margin sizing and margin accounting
// with transaction costs.
func (s *FuturesMeanReversion) ConfigureTrader(t *position.Trader) {
	t.InstrumentName = s.instrument.Symbol
	t.Sizing = position.LotMarginSizing{
		Instrument:   s.instrument,
		RiskFraction: s.cfg.RiskFraction,
		MaxLots:      s.cfg.MaxLotsPerTrade,
		LotsPerEntry: 1,
	}
	t.Accounting = position.MarginAccounting{Instrument: s.instrument, ChargeCosts: true}
}

// Before updates the RSI and SMA snapshots for the current bar.
func (s *FuturesMeanReversion) Before(bar *Bar) {
	r := s.rsiState.Update(bar.Candle.Close)
	s.closes.Push(bar.Candle.Close)

	if bar.Index < s.warmup() {
		return
	}

	if !math.IsNaN(r) {
		s.rsi.Push(r)
	}
	if m := s.closes.MeanLast(s.cfg.SMAPeriod); !math.IsNaN(m) {
		s.sma.Push(m)
	}
}

// ShouldLong reports an oversold RSI while flat with margin for at least
// one lot.
func (s *FuturesMeanReversion) ShouldLong(bar *Bar) bool {
	if s.rsi.Len() < 1 {
		return false
	}

	oversold := s.rsi.Last() < s.cfg.RSIOversold
	flat := bar.Trader.Book.IsFlat()
	hasMargin := s.affordableLots(bar.Trader.Capital, bar.Candle.Close) >= 1

	return oversold && flat && hasMargin
}

// ShouldShort reports an overbought RSI while flat with margin for at
// least one lot.
func (s *FuturesMeanReversion) ShouldShort(bar *Bar) bool {
	if s.rsi.Len() < 1 {
		return false
	}

	overbought := s.rsi.Last() > s.cfg.RSIOverbought
	flat := bar.Trader.Book.IsFlat()
	hasMargin := s.affordableLots(bar.Trader.Capital, bar.Candle.Close) >= 1

	return overbought && flat && hasMargin
}

// affordableLots returns how many lots the current capital can margin,
// capped at MaxLotsPerTrade.
func (s *FuturesMeanReversion) affordableLots(capital, price float64) int {
	lots := s.instrument.MaxLots(capital, price, s.cfg.RiskFraction)
	if lots > s.cfg.MaxLotsPerTrade {
		lots = s.cfg.MaxLotsPerTrade
	}
	return lots
}

// ShouldCancelEntry never vetoes an entry for this strategy.
func (s *FuturesMeanReversion) ShouldCancelEntry(bar *Bar) bool { return false }

// After places the brackets once, exits when RSI returns to neutral and
// runs the stop/target checks otherwise.
func (s *FuturesMeanReversion) After(bar *Bar) {
	t := bar.Trader
	if t.Book.IsFlat() {
		return
	}

	applyBrackets(t, s.cfg.StopLossPercent, s.cfg.TakeProfitPercent)

	if s.shouldExit(t) {
		t.Liquidate(bar.Candle, 0, position.ReasonSignal)
		return
	}
	t.UpdatePosition(bar.Candle)
}

// shouldExit reports RSI back at neutral for the open side.
func (s *FuturesMeanReversion) shouldExit(t *position.Trader) bool {
	if s.rsi.Len() < 1 {
		return false
	}

	r := s.rsi.Last()
	switch {
	case t.Book.IsLong():
		return r > s.cfg.RSINeutral
	case t.Book.IsShort():
		return r < s.cfg.RSINeutral
	}
	return false
}
