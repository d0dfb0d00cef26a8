package strategy

import (
	"fmt"
	"math"

	"github.com/amirphl/nse-backtest/internal/indicator"
	"github.com/amirphl/nse-backtest/internal/position"
)

// MACrossoverConfig holds the hyperparameters for the MA crossover
// strategy.
type MACrossoverConfig struct {
	FastPeriod         int     `yaml:"fast_period"`
	SlowPeriod         int     `yaml:"slow_period"`
	RSIPeriod          int     `yaml:"rsi_period"`
	RSIOverbought      float64 `yaml:"rsi_overbought"`
	RSIOversold        float64 `yaml:"rsi_oversold"`
	StopLossPercent    float64 `yaml:"stop_loss_percent"`
	TakeProfitPercent  float64 `yaml:"take_profit_percent"`
	RiskPercent        float64 `yaml:"risk_percent"`
	MaxCapitalFraction float64 `yaml:"max_capital_fraction"`
}

// DefaultMACrossoverConfig returns the standard hyperparameters: 10/20
// moving averages with an RSI(14) filter, 2% stop, 3% target, 2% risk per
// trade.
func DefaultMACrossoverConfig() MACrossoverConfig {
	return MACrossoverConfig{
		FastPeriod:         10,
		SlowPeriod:         20,
		RSIPeriod:          14,
		RSIOverbought:      70,
		RSIOversold:        30,
		StopLossPercent:    0.02,
		TakeProfitPercent:  0.03,
		RiskPercent:        0.02,
		MaxCapitalFraction: 1.0,
	}
}

// Validate checks the hyperparameters.
func (c MACrossoverConfig) Validate() error {
	if c.FastPeriod <= 0 || c.SlowPeriod <= 0 || c.RSIPeriod <= 0 {
		return fmt.Errorf("periods must be positive")
	}
	if c.FastPeriod >= c.SlowPeriod {
		return fmt.Errorf("fast period %d must be shorter than slow period %d", c.FastPeriod, c.SlowPeriod)
	}
	if c.StopLossPercent <= 0 || c.TakeProfitPercent <= 0 {
		return fmt.Errorf("stop loss and take profit percentages must be positive")
	}
	if c.RiskPercent <= 0 || c.MaxCapitalFraction <= 0 {
		return fmt.Errorf("risk percent and max capital fraction must be positive")
	}
	return nil
}

// MACrossover trades moving average crossovers filtered by RSI: a bullish
// crossover of the fast MA above the slow MA opens a long unless RSI is
// overbought, a bearish crossover opens a short unless RSI is oversold.
// Positions exit through the stop loss or take profit only.
type MACrossover struct {
	cfg MACrossoverConfig

	rsiState *indicator.RSIState
	closes   *Window
	fast     *Window
	slow     *Window
	rsi      *Window
}

// NewMACrossover creates the MA crossover strategy from cfg.
func NewMACrossover(cfg MACrossoverConfig) (*MACrossover, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("ma_crossover: %w", err)
	}
	return &MACrossover{
		cfg:      cfg,
		rsiState: indicator.NewRSIState(cfg.RSIPeriod),
		closes:   NewWindow(cfg.SlowPeriod),
		fast:     NewWindow(5),
		slow:     NewWindow(5),
		rsi:      NewWindow(5),
	}, nil
}

// Name returns the canonical strategy name.
func (s *MACrossover) Name() string { return "ma_crossover" }

// WarmupPeriod returns the number of candles consumed before signals can
// fire.
func (s *MACrossover) WarmupPeriod() int { return s.cfg.SlowPeriod }

// Reset clears all indicator state for a fresh pass.
func (s *MACrossover) Reset() {
	s.rsiState.Reset()
	s.closes.Reset()
	s.fast.Reset()
	s.slow.Reset()
	s.rsi.Reset()
}

// ConfigureTrader attaches the risk-fraction sizing and cash accounting
// this strategy trades with.
func (s *MACrossover) ConfigureTrader(t *position.Trader) {
	t.Sizing = position.RiskFractionSizing{
		RiskPercent:        s.cfg.RiskPercent,
		StopLossPercent:    s.cfg.StopLossPercent,
		MaxCapitalFraction: s.cfg.MaxCapitalFraction,
	}
	t.Accounting = position.CashAccounting{}
}

// Before updates the moving average and RSI snapshots for the current bar.
func (s *MACrossover) Before(bar *Bar) {
	r := s.rsiState.Update(bar.Candle.Close)
	s.closes.Push(bar.Candle.Close)

	if bar.Index < s.cfg.SlowPeriod {
		return
	}

	if fast := s.closes.MeanLast(s.cfg.FastPeriod); !math.IsNaN(fast) {
		s.fast.Push(fast)
	}
	if slow := s.closes.MeanLast(s.cfg.SlowPeriod); !math.IsNaN(slow) {
		s.slow.Push(slow)
	}
	if !math.IsNaN(r) {
		s.rsi.Push(r)
	}
}

// ShouldLong reports a bullish crossover with RSI below the overbought
// level.
func (s *MACrossover) ShouldLong(bar *Bar) bool {
	if s.fast.Len() < 2 || s.slow.Len() < 2 {
		return false
	}

	crossover := indicator.Crossover(s.fast.Prev(), s.slow.Prev(), s.fast.Last(), s.slow.Last())

	rsiOK := true
	if s.rsi.Len() > 0 {
		rsiOK = s.rsi.Last() < s.cfg.RSIOverbought
	}

	return crossover && rsiOK && bar.Trader.Book.IsFlat()
}

// ShouldShort reports a bearish crossover with RSI above the oversold
// level.
func (s *MACrossover) ShouldShort(bar *Bar) bool {
	if s.fast.Len() < 2 || s.slow.Len() < 2 {
		return false
	}

	crossunder := indicator.Crossunder(s.fast.Prev(), s.slow.Prev(), s.fast.Last(), s.slow.Last())

	rsiOK := true
	if s.rsi.Len() > 0 {
		rsiOK = s.rsi.Last() > s.cfg.RSIOversold
	}

	return crossunder && rsiOK && bar.Trader.Book.IsFlat()
}

// ShouldCancelEntry never vetoes an entry for this strategy.
func (s *MACrossover) ShouldCancelEntry(bar *Bar) bool { return false }

// After places the brackets once and runs the stop/target checks.
func (s *MACrossover) After(bar *Bar) {
	if bar.Trader.Book.IsFlat() {
		return
	}
	applyBrackets(bar.Trader, s.cfg.StopLossPercent, s.cfg.TakeProfitPercent)
	bar.Trader.UpdatePosition(bar.Candle)
}
