package strategy

import (
	"fmt"
	"math"

	"github.com/amirphl/nse-backtest/internal/indicator"
	"github.com/amirphl/nse-backtest/internal/position"
)

// RSIMeanReversionConfig holds the hyperparameters for the RSI mean
// reversion strategy.
type RSIMeanReversionConfig struct {
	RSIPeriod          int     `yaml:"rsi_period"`
	RSIOversold        float64 `yaml:"rsi_oversold"`
	RSIOverbought      float64 `yaml:"rsi_overbought"`
	RSINeutralLow      float64 `yaml:"rsi_neutral_low"`
	RSINeutralHigh     float64 `yaml:"rsi_neutral_high"`
	SMAPeriod          int     `yaml:"sma_period"`
	StopLossPercent    float64 `yaml:"stop_loss_percent"`
	TakeProfitPercent  float64 `yaml:"take_profit_percent"`
	RiskPercent        float64 `yaml:"risk_percent"`
	MaxCapitalFraction float64 `yaml:"max_capital_fraction"`
}

// DefaultRSIMeanReversionConfig returns the standard hyperparameters:
// RSI(14) 30/70 bands with a 45-55 neutral zone, SMA(20) trend filter,
// 1.5% stop, 2.5% target, 1% risk capped at 10% of capital.
func DefaultRSIMeanReversionConfig() RSIMeanReversionConfig {
	return RSIMeanReversionConfig{
		RSIPeriod:          14,
		RSIOversold:        30,
		RSIOverbought:      70,
		RSINeutralLow:      45,
		RSINeutralHigh:     55,
		SMAPeriod:          20,
		StopLossPercent:    0.015,
		TakeProfitPercent:  0.025,
		RiskPercent:        0.01,
		MaxCapitalFraction: 0.1,
	}
}

// Validate checks the hyperparameters.
func (c RSIMeanReversionConfig) Validate() error {
	if c.RSIPeriod <= 0 || c.SMAPeriod <= 0 {
		return fmt.Errorf("periods must be positive")
	}
	if c.RSIOversold >= c.RSIOverbought {
		return fmt.Errorf("oversold level %.1f must be below overbought level %.1f", c.RSIOversold, c.RSIOverbought)
	}
	if c.StopLossPercent <= 0 || c.TakeProfitPercent <= 0 {
		return fmt.Errorf("stop loss and take profit percentages must be positive")
	}
	if c.RiskPercent <= 0 || c.MaxCapitalFraction <= 0 {
		return fmt.Errorf("risk percent and max capital fraction must be positive")
	}
	return nil
}

// RSIMeanReversion fades RSI extremes when price agrees with the SMA
// trend filter: oversold above the SMA opens a long, overbought below the
// SMA opens a short. Re-arm flags limit each oversold or overbought
// episode to a single signal, releasing only after RSI has traded back
// through the neutral zone. Positions exit when RSI returns to neutral or
// through the brackets.
type RSIMeanReversion struct {
	cfg RSIMeanReversionConfig

	rsiState *indicator.RSIState
	closes   *Window
	rsi      *Window
	sma      *Window
	canLong  bool
	canShort bool
}

// NewRSIMeanReversion creates the RSI mean reversion strategy from cfg.
func NewRSIMeanReversion(cfg RSIMeanReversionConfig) (*RSIMeanReversion, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("rsi_mean_reversion: %w", err)
	}
	return &RSIMeanReversion{
		cfg:      cfg,
		rsiState: indicator.NewRSIState(cfg.RSIPeriod),
		closes:   NewWindow(cfg.SMAPeriod),
		rsi:      NewWindow(3),
		sma:      NewWindow(3),
		canLong:  true,
		canShort: true,
	}, nil
}

// Name returns the canonical strategy name.
func (s *RSIMeanReversion) Name() string { return "rsi_mean_reversion" }

// WarmupPeriod returns the number of candles consumed before signals can
// fire.
func (s *RSIMeanReversion) WarmupPeriod() int { return s.cfg.SMAPeriod }

// Reset clears indicator state and re-arms both entry flags.
func (s *RSIMeanReversion) Reset() {
	s.rsiState.Reset()
	s.closes.Reset()
	s.rsi.Reset()
	s.sma.Reset()
	s.canLong = true
	s.canShort = true
}

// ConfigureTrader attaches the risk-fraction sizing and cash accounting
// this strategy trades with.
func (s *RSIMeanReversion) ConfigureTrader(t *position.Trader) {
	t.Sizing = position.RiskFractionSizing{
		RiskPercent:        s.cfg.RiskPercent,
		StopLossPercent:    s.cfg.StopLossPercent,
		MaxCapitalFraction: s.cfg.MaxCapitalFraction,
	}
	t.Accounting = position.CashAccounting{}
}

// Before updates the RSI and SMA snapshots for the current bar.
func (s *RSIMeanReversion) Before(bar *Bar) {
	r := s.rsiState.Update(bar.Candle.Close)
	s.closes.Push(bar.Candle.Close)

	if bar.Index < s.cfg.SMAPeriod {
		return
	}

	if !math.IsNaN(r) {
		s.rsi.Push(r)
	}
	if m := s.closes.MeanLast(s.cfg.SMAPeriod); !math.IsNaN(m) {
		s.sma.Push(m)
	}
}

// ShouldLong reports an oversold RSI with price above the SMA. The
// canLong flag re-arms once RSI trades above the neutral high, so one
// oversold episode produces at most one signal.
func (s *RSIMeanReversion) ShouldLong(bar *Bar) bool {
	if s.rsi.Len() < 2 || s.sma.Len() < 1 {
		return false
	}

	currentRSI := s.rsi.Last()
	currentSMA := s.sma.Last()
	price := bar.Candle.Close

	if currentRSI > s.cfg.RSINeutralHigh {
		s.canLong = true
	}

	oversold := currentRSI < s.cfg.RSIOversold
	if oversold && !s.canLong {
		return false
	}

	if oversold && price > currentSMA && bar.Trader.Book.IsFlat() {
		s.canLong = false
		return true
	}
	return false
}

// ShouldShort reports an overbought RSI with price below the SMA. The
// canShort flag re-arms once RSI trades below the neutral low.
func (s *RSIMeanReversion) ShouldShort(bar *Bar) bool {
	if s.rsi.Len() < 2 || s.sma.Len() < 1 {
		return false
	}

	currentRSI := s.rsi.Last()
	currentSMA := s.sma.Last()
	price := bar.Candle.Close

	if currentRSI < s.cfg.RSINeutralLow {
		s.canShort = true
	}

	overbought := currentRSI > s.cfg.RSIOverbought
	if overbought && !s.canShort {
		return false
	}

	if overbought && price < currentSMA && bar.Trader.Book.IsFlat() {
		s.canShort = false
		return true
	}
	return false
}

// ShouldCancelEntry never vetoes an entry for this strategy.
func (s *RSIMeanReversion) ShouldCancelEntry(bar *Bar) bool { return false }

// After places the brackets once, exits when RSI returns to the neutral
// zone and runs the stop/target checks otherwise.
func (s *RSIMeanReversion) After(bar *Bar) {
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

// shouldExit reports RSI back inside the neutral zone for the open side.
func (s *RSIMeanReversion) shouldExit(t *position.Trader) bool {
	if s.rsi.Len() < 1 {
		return false
	}

	r := s.rsi.Last()
	switch {
	case t.Book.IsLong():
		return r > s.cfg.RSINeutralHigh
	case t.Book.IsShort():
		return r < s.cfg.RSINeutralLow
	}
	return false
}
