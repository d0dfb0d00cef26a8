package strategy

import (
	"fmt"
	"strings"

	"github.com/amirphl/nse-backtest/internal/instrument"
)

// Config bundles the hyperparameters for every built-in strategy. Start
// from DefaultConfig and override the fields for the strategies being
// run.
type Config struct {
	MACrossover      MACrossoverConfig             `yaml:"ma_crossover"`
	RSIMeanReversion RSIMeanReversionConfig        `yaml:"rsi_mean_reversion"`
	Aggressive       AggressiveMeanReversionConfig `yaml:"aggressive_mean_reversion"`
	NiftyFutures     NiftyFuturesConfig            `yaml:"nifty_futures_mean_reversion"`
	Futures          FuturesConfig                 `yaml:"futures_mean_reversion"`
}

// DefaultConfig returns the default hyperparameters for all built-in
// strategies.
func DefaultConfig() Config {
	return Config{
		MACrossover:      DefaultMACrossoverConfig(),
		RSIMeanReversion: DefaultRSIMeanReversionConfig(),
		Aggressive:       DefaultAggressiveMeanReversionConfig(),
		NiftyFutures:     DefaultNiftyFuturesConfig(),
		Futures:          DefaultFuturesConfig(),
	}
}

// New creates the named strategy from cfg. The registry is only consulted
// by strategies that resolve instrument contract terms.
func New(name string, cfg Config, registry *instrument.Registry) (Strategy, error) {
	switch name {
	case "ma_crossover":
		return NewMACrossover(cfg.MACrossover)
	case "rsi_mean_reversion":
		return NewRSIMeanReversion(cfg.RSIMeanReversion)
	case "aggressive_mean_reversion":
		return NewAggressiveMeanReversion(cfg.Aggressive)
	case "nifty_futures_mean_reversion":
		return NewNiftyFuturesMeanReversion(cfg.NiftyFutures)
	case "futures_mean_reversion":
		return NewFuturesMeanReversion(cfg.Futures, registry)
	default:
		return nil, fmt.Errorf("unknown strategy %q (available: %s)", name, strings.Join(List(), ", "))
	}
}

// List returns the names of all built-in strategies.
func List() []string {
	return []string{
		"aggressive_mean_reversion",
		"futures_mean_reversion",
		"ma_crossover",
		"nifty_futures_mean_reversion",
		"rsi_mean_reversion",
	}
}
