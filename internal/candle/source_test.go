package candle

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseSource(t *testing.T) {
	for _, s := range []string{"close", "open", "high", "low", "hl2", "hlc3", "ohlc4"} {
		parsed, err := ParseSource(s)
		require.NoError(t, err)
		assert.Equal(t, Source(s), parsed)
	}

	_, err := ParseSource("median")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid candle source")
}

func TestSourcePrice(t *testing.T) {
	c := Candle{Open: 100, High: 110, Low: 90, Close: 105}

	tests := []struct {
		source Source
		want   float64
	}{
		{SourceClose, 105},
		{SourceOpen, 100},
		{SourceHigh, 110},
		{SourceLow, 90},
		{SourceHL2, 100},
		{SourceHLC3, 101.666666},
		{SourceOHLC4, 101.25},
	}

	for _, tt := range tests {
		t.Run(string(tt.source), func(t *testing.T) {
			assert.InDelta(t, tt.want, c.SourcePrice(tt.source), 0.001)
		})
	}
}

func TestSeriesHelpers(t *testing.T) {
	candles := []Candle{
		{Open: 100, High: 110, Low: 90, Close: 105},
		{Open: 105, High: 120, Low: 100, Close: 115},
	}

	assert.Equal(t, []float64{105, 115}, Closes(candles))
	assert.Equal(t, []float64{110, 120}, Highs(candles))
	assert.Equal(t, []float64{90, 100}, Lows(candles))
	assert.Equal(t, []float64{100, 105}, Series(candles, SourceOpen))
}
