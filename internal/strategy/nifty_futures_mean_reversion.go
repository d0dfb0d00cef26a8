package strategy

import (
	"fmt"
	"math"

	"github.com/amirphl/nse-backtest/internal/indicator"
	"github.com/amirphl/nse-backtest/internal/instrument"
	"github.com/amirphl/nse-backtest/internal/position"
)

// NiftyFuturesConfig holds the hyperparameters for the NIFTY futures mean
// reversion strategy. LotSize and MarginRate describe the NIFTY futures
// contract directly rather than going through the instrument registry.
type NiftyFuturesConfig struct {
	LotSize           int     `yaml:"lot_size"`
	MarginRate        float64 `yaml:"margin_rate"`
	MaxLots           int     `yaml:"max_lots"`
	RSIPeriod         int     `yaml:"rsi_period"`
	RSIOversold       float64 `yaml:"rsi_oversold"`
	RSIOverbought     float64 `yaml:"rsi_overbought"`
	RSINeutral        float64 `yaml:"rsi_neutral"`
	SMAPeriod         int     `yaml:"sma_period"`
	StopLossPercent   float64 `yaml:"stop_loss_percent"`
	TakeProfitPercent float64 `yaml:"take_profit_percent"`
	RiskFraction      float64 `yaml:"risk_fraction"`
}

// DefaultNiftyFuturesConfig returns the NIFTY futures contract terms (75
// shares per lot, 11% margin) and the standard hyperparameters: RSI(14)
// with 40/60 bands, 1.5% stop, 2.5% target, 90% of capital available as
// margin, at most 3 affordable lots and one lot traded per entry.
func DefaultNiftyFuturesConfig() NiftyFuturesConfig {
	return NiftyFuturesConfig{
		LotSize:           75,
		MarginRate:        0.11,
		MaxLots:           3,
		RSIPeriod:         14,
		RSIOversold:       40,
		RSIOverbought:     60,
		RSINeutral:        50,
		SMAPeriod:         20,
		StopLossPercent:   0.015,
		TakeProfitPercent: 0.025,
		RiskFraction:      0.9,
	}
}

// Validate checks the hyperparameters.
func (c NiftyFuturesConfig) Validate() error {
	if c.LotSize < 1 {
		return fmt.Errorf("lot size must be at least 1")
	}
	if c.MarginRate <= 0 {
		return fmt.Errorf("margin rate must be positive")
	}
	if c.MaxLots < 1 {
		return fmt.Errorf("max lots must be at least 1")
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
	return nil
}

// NiftyFuturesMeanReversion trades NIFTY futures against RSI extremes
// with margin-based lot sizing: oversold opens a long, overbought opens a
// short, one lot per entry, and the position exits once RSI returns to
// neutral or through the brackets. Margin is reserved on entry and
// released on exit; no transaction costs are charged.
type NiftyFuturesMeanReversion struct {
	cfg        NiftyFuturesConfig
	instrument instrument.Instrument

	rsiState *indicator.RSIState
	closes   *Window
	rsi      *Window
	sma      *Window
}

// NewNiftyFuturesMeanReversion creates the NIFTY futures strategy from
// cfg.
func NewNiftyFuturesMeanReversion(cfg NiftyFuturesConfig) (*NiftyFuturesMeanReversion, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("nifty_futures_mean_reversion: %w", err)
	}

	inst, err := instrument.New("NIFTY", instrument.Futures, cfg.LotSize, cfg.MarginRate, 0.05, 9.0, 0.0003)
	if err != nil {
		return nil, fmt.Errorf("nifty_futures_mean_reversion: %w", err)
	}

	return &NiftyFuturesMeanReversion{
		cfg:        cfg,
		instrument: inst,
		rsiState:   indicator.NewRSIState(cfg.RSIPeriod),
		closes:     NewWindow(cfg.SMAPeriod),
		rsi:        NewWindow(5),
		sma:        NewWindow(3),
	}, nil
}

// Name returns the canonical strategy name.
func (s *NiftyFuturesMeanReversion) Name() string { return "nifty_futures_mean_reversion" }

// WarmupPeriod returns the number of candles consumed before signals can
// fire.
func (s *NiftyFuturesMeanReversion) WarmupPeriod() int { return s.warmup() }

func (s *NiftyFuturesMeanReversion) warmup() int {
	if s.cfg.SMAPeriod > s.cfg.RSIPeriod {
		return s.cfg.SMAPeriod
	}
	return s.cfg.RSIPeriod
}

// Reset clears all indicator state for a fresh pass.
func (s *NiftyFuturesMeanReversion) Reset() {
	s.rsiState.Reset()
	s.closes.Reset()
	s.rsi.Reset()
	s.sma.Reset()
}

// ConfigureTrader attaches lot-based margin sizing and margin accounting
// without transaction costs.
func (s *NiftyFuturesMeanReversion) ConfigureTrader(t *position.Trader) {
	t.InstrumentName = s.instrument.Symbol
	t.Sizing = position.LotMarginSizing{
		Instrument:   s.instrument,
		RiskFraction: s.cfg.RiskFraction,
		MaxLots:      s.cfg.MaxLots,
		LotsPerEntry: 1,
	}
	t.Accounting = position.MarginAccounting{Instrument: s.instrument}
}

// Before updates the RSI and SMA snapshots for the current bar.
func (s *NiftyFuturesMeanReversion) Before(bar *Bar) {
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
func (s *NiftyFuturesMeanReversion) ShouldLong(bar *Bar) bool {
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
func (s *NiftyFuturesMeanReversion) ShouldShort(bar *Bar) bool {
	if s.rsi.Len() < 1 {
		return false
	}

	overbought := s.rsi.Last() > s.cfg.RSIOverbought
	flat := bar.Trader.Book.IsFlat()
	hasMargin := s.affordableLots(bar.Trader.Capital, bar.Candle.Close) >= 1

	return overbought && flat && hasMargin
}

// affordableLots returns how many lots the current capital can margin,
// capped at MaxLots.
func (s *NiftyFuturesMeanReversion) affordableLots(capital, price float64) int {
	lots := s.instrument.MaxLots(capital, price, s.cfg.RiskFraction)
	if lots > s.cfg.MaxLots {
		lots = s.cfg.MaxLots
	}
	return lots
}

// ShouldCancelEntry never vetoes an entry for this strategy.
func (s *NiftyFuturesMeanReversion) ShouldCancelEntry(bar *Bar) bool { return false }

// After places the brackets once, exits when RSI returns to neutral and
// runs the stop/target checks otherwise.
func (s *NiftyFuturesMeanReversion) After(bar *Bar) {
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
func (s *NiftyFuturesMeanReversion) shouldExit(t *position.Trader) bool {
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
