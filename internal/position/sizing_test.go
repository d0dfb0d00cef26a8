package position

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/amirphl/nse-backtest/internal/instrument"
)

func TestFullCapitalSizing(t *testing.T) {
	s := FullCapitalSizing{}

	qty, lots := s.Size(100000, 23500)
	assert.InDelta(t, 100000.0/23500.0, qty, 1e-9)
	assert.Equal(t, 0, lots)

	qty, _ = s.Size(0, 23500)
	assert.Equal(t, 0.0, qty)

	qty, _ = s.Size(100000, 0)
	assert.Equal(t, 0.0, qty)
}

func TestRiskFractionSizing(t *testing.T) {
	s := RiskFractionSizing{RiskPercent: 0.02, StopLossPercent: 0.02, MaxCapitalFraction: 1.0}

	t.Run("Risk based size", func(t *testing.T) {
		// risk 2000, stop distance 470: 4.2553 shares, under the cap of
		// 100000/23500 = 4.2553... exactly at the cap here.
		qty, lots := s.Size(100000, 23500)
		assert.InDelta(t, 100000.0*0.02/(23500.0*0.02), qty, 1e-9)
		assert.Equal(t, 0, lots)
	})

	t.Run("Capped at capital fraction", func(t *testing.T) {
		capped := RiskFractionSizing{RiskPercent: 0.01, StopLossPercent: 0.015, MaxCapitalFraction: 0.1}
		qty, _ := capped.Size(100000, 100)

		// Uncapped: 1000 / 1.5 = 666.67 shares. Cap: 10000 / 100 = 100.
		assert.InDelta(t, 100.0, qty, 1e-9)
	})

	t.Run("Zero stop distance cannot size", func(t *testing.T) {
		broken := RiskFractionSizing{RiskPercent: 0.02, StopLossPercent: 0, MaxCapitalFraction: 1.0}
		qty, _ := broken.Size(100000, 23500)
		assert.Equal(t, 0.0, qty)
	})
}

func TestLotMarginSizing(t *testing.T) {
	inst, err := instrument.New("NIFTY", instrument.Futures, 75, 0.11, 0.05, 9.0, 0.0003)
	require.NoError(t, err)

	t.Run("One lot per entry", func(t *testing.T) {
		s := LotMarginSizing{Instrument: inst, RiskFraction: 0.9, MaxLots: 3, LotsPerEntry: 1}

		// 2M capital could margin several lots but each entry takes one.
		qty, lots := s.Size(2000000, 23500)
		assert.Equal(t, 1, lots)
		assert.Equal(t, 75.0, qty)
	})

	t.Run("Capped by max lots", func(t *testing.T) {
		s := LotMarginSizing{Instrument: inst, RiskFraction: 0.9, MaxLots: 3}

		// floor(2M x 0.9 / 193875) = 9, capped at 3.
		qty, lots := s.Size(2000000, 23500)
		assert.Equal(t, 3, lots)
		assert.Equal(t, 225.0, qty)
	})

	t.Run("Below one lot rejects", func(t *testing.T) {
		s := LotMarginSizing{Instrument: inst, RiskFraction: 0.9, MaxLots: 3, LotsPerEntry: 1}

		qty, lots := s.Size(100000, 23500)
		assert.Equal(t, 0, lots)
		assert.Equal(t, 0.0, qty)
	})

	t.Run("Uncapped uses affordable lots", func(t *testing.T) {
		s := LotMarginSizing{Instrument: inst, RiskFraction: 0.9}

		_, lots := s.Size(2000000, 23500)
		assert.Equal(t, 9, lots)
	})
}
