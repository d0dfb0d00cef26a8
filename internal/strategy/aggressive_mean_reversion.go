package strategy

import (
	"fmt"
	"math"

	"github.com/amirphl/nse-backtest/internal/indicator"
	"github.com/amirphl/nse-backtest/internal/position"
)

const millisPerDay = 24 * 60 * 60 * 1000

// AggressiveMeanReversionConfig holds the hyperparameters for the
// aggressive mean reversion strategy.
type AggressiveMeanReversionConfig struct {
	RSIPeriod          int     `yaml:"rsi_period"`
	RSIOversold        float64 `yaml:"rsi_oversold"`
	RSIOverbought      float64 `yaml:"rsi_overbought"`
	RSINeutral         float64 `yaml:"rsi_neutral"`
	SMAPeriod          int     `yaml:"sma_period"`
	StopLossPercent    float64 `yaml:"stop_loss_percent"`
	TakeProfitPercent  float64 `yaml:"take_profit_percent"`
	RiskPercent        float64 `yaml:"risk_percent"`
	MaxCapitalFraction float64 `yaml:"max_capital_fraction"`
	MaxTradesPerDay    int     `yaml:"max_trades_per_day"`
}

// DefaultAggressiveMeanReversionConfig returns the standard
// hyperparameters tuned for the 15m timeframe: RSI(10) with 40/60 bands,
// SMA(10) trend filter, 2% stop, 3% target, 2% risk capped at 20% of
// capital and at most three trades per day.
func DefaultAggressiveMeanReversionConfig() AggressiveMeanReversionConfig {
	return AggressiveMeanReversionConfig{
		RSIPeriod:          10,
		RSIOversold:        40,
		RSIOverbought:      60,
		RSINeutral:         50,
		SMAPeriod:          10,
		StopLossPercent:    0.02,
		TakeProfitPercent:  0.03,
		RiskPercent:        0.02,
		MaxCapitalFraction: 0.2,
		MaxTradesPerDay:    3,
	}
}

// Validate checks the hyperparameters.
func (c AggressiveMeanReversionConfig) Validate() error {
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
	if c.MaxTradesPerDay <= 0 {
		return fmt.Errorf("max trades per day must be positive")
	}
	return nil
}

// AggressiveMeanReversion fades shallower RSI extremes (40/60 on a short
// RSI(10)) for more frequent signals, requiring RSI to have started
// turning back and price to agree with the SMA filter. A daily trade cap
// limits churn. Positions exit when RSI reaches neutral, on a reversal
// away from an extreme, or through the brackets.
type AggressiveMeanReversion struct {
	cfg AggressiveMeanReversionConfig

	rsiState    *indicator.RSIState
	closes      *Window
	rsi         *Window
	sma         *Window
	tradesToday int
	lastDay     int64
	haveDay     bool
}

// NewAggressiveMeanReversion creates the aggressive mean reversion
// strategy from cfg.
func NewAggressiveMeanReversion(cfg AggressiveMeanReversionConfig) (*AggressiveMeanReversion, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("aggressive_mean_reversion: %w", err)
	}
	return &AggressiveMeanReversion{
		cfg:      cfg,
		rsiState: indicator.NewRSIState(cfg.RSIPeriod),
		closes:   NewWindow(cfg.SMAPeriod),
		rsi:      NewWindow(5),
		sma:      NewWindow(3),
	}, nil
}

// Name returns the canonical strategy name.
func (s *AggressiveMeanReversion) Name() string { return "aggressive_mean_reversion" }

// WarmupPeriod returns the number of candles consumed before signals can
// fire.
func (s *AggressiveMeanReversion) WarmupPeriod() int { return s.warmup() }

func (s *AggressiveMeanReversion) warmup() int {
	if s.cfg.SMAPeriod > s.cfg.RSIPeriod {
		return s.cfg.SMAPeriod
	}
	return s.cfg.RSIPeriod
}

// Reset clears indicator state and the daily trade counter.
func (s *AggressiveMeanReversion) Reset() {
	s.rsiState.Reset()
	s.closes.Reset()
	s.rsi.Reset()
	s.sma.Reset()
	s.tradesToday = 0
	s.lastDay = 0
	s.haveDay = false
}

// ConfigureTrader attaches the risk-fraction sizing and cash accounting
// this strategy trades with.
func (s *AggressiveMeanReversion) ConfigureTrader(t *position.Trader) {
	t.Sizing = position.RiskFractionSizing{
		RiskPercent:        s.cfg.RiskPercent,
		StopLossPercent:    s.cfg.StopLossPercent,
		MaxCapitalFraction: s.cfg.MaxCapitalFraction,
	}
	t.Accounting = position.CashAccounting{}
}

// Before updates the RSI and SMA snapshots and rolls the daily trade
// counter over at day boundaries.
func (s *AggressiveMeanReversion) Before(bar *Bar) {
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

	day := bar.Candle.Timestamp.UnixMilli() / millisPerDay
	if s.haveDay && day != s.lastDay {
		s.tradesToday = 0
	}
	s.lastDay = day
	s.haveDay = true
}

// ShouldLong reports an oversold RSI that has started turning up while
// price holds above the SMA, subject to the daily trade cap. A true
// signal counts against the cap.
func (s *AggressiveMeanReversion) ShouldLong(bar *Bar) bool {
	if s.rsi.Len() < 2 || s.sma.Len() < 1 {
		return false
	}

	currentRSI := s.rsi.Last()
	previousRSI := s.rsi.Prev()
	currentSMA := s.sma.Last()
	price := bar.Candle.Close

	oversold := currentRSI < s.cfg.RSIOversold
	turningUp := currentRSI > previousRSI
	aboveSMA := price > currentSMA
	flat := bar.Trader.Book.IsFlat()
	underCap := s.tradesToday < s.cfg.MaxTradesPerDay

	if oversold && turningUp && aboveSMA && flat && underCap {
		s.tradesToday++
		return true
	}
	return false
}

// ShouldShort reports an overbought RSI that has started turning down
// while price holds below the SMA, subject to the daily trade cap.
func (s *AggressiveMeanReversion) ShouldShort(bar *Bar) bool {
	if s.rsi.Len() < 2 || s.sma.Len() < 1 {
		return false
	}

	currentRSI := s.rsi.Last()
	previousRSI := s.rsi.Prev()
	currentSMA := s.sma.Last()
	price := bar.Candle.Close

	overbought := currentRSI > s.cfg.RSIOverbought
	turningDown := currentRSI < previousRSI
	belowSMA := price < currentSMA
	flat := bar.Trader.Book.IsFlat()
	underCap := s.tradesToday < s.cfg.MaxTradesPerDay

	if overbought && turningDown && belowSMA && flat && underCap {
		s.tradesToday++
		return true
	}
	return false
}

// ShouldCancelEntry never vetoes an entry for this strategy.
func (s *AggressiveMeanReversion) ShouldCancelEntry(bar *Bar) bool { return false }

// After places the brackets once, exits on the RSI conditions and runs
// the stop/target checks otherwise.
func (s *AggressiveMeanReversion) After(bar *Bar) {
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

// shouldExit reports RSI back at neutral, or turning back from beyond 65
// (longs) or 35 (shorts) before neutral is reached.
func (s *AggressiveMeanReversion) shouldExit(t *position.Trader) bool {
	if s.rsi.Len() < 1 {
		return false
	}

	r := s.rsi.Last()
	switch {
	case t.Book.IsLong():
		if r > s.cfg.RSINeutral {
			return true
		}
		return r > 65 && s.rsi.Len() >= 2 && r < s.rsi.Prev()
	case t.Book.IsShort():
		if r < s.cfg.RSINeutral {
			return true
		}
		return r < 35 && s.rsi.Len() >= 2 && r > s.rsi.Prev()
	}
	return false
}
