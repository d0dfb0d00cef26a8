package tfutils

import (
	"errors"
	"time"
)

// ParseTimeframe parses timeframe string (e.g., "5m", "1h") to time.Duration
func ParseTimeframe(timeframe string) (time.Duration, error) {
	switch timeframe {
	case "1m":
		return time.Minute, nil
	case "3m":
		return 3 * time.Minute, nil
	case "5m":
		return 5 * time.Minute, nil
	case "15m":
		return 15 * time.Minute, nil
	case "30m":
		return 30 * time.Minute, nil
	case "1h":
		return time.Hour, nil
	case "2h":
		return 2 * time.Hour, nil
	case "4h":
		return 4 * time.Hour, nil
	case "1D":
		return 24 * time.Hour, nil
	case "1W":
		return 7 * 24 * time.Hour, nil
	default:
		return 0, errors.New("unsupported timeframe")
	}
}

// GetTimeframeDuration returns the duration for a given timeframe
func GetTimeframeDuration(timeframe string) time.Duration {
	d, err := ParseTimeframe(timeframe)
	if err != nil {
		return 0
	}
	return d
}

// TimeframeMinutes returns the number of minutes in a timeframe, 0 if unsupported.
func TimeframeMinutes(timeframe string) int {
	return int(GetTimeframeDuration(timeframe) / time.Minute)
}

// GetSupportedTimeframes returns all supported timeframes
func GetSupportedTimeframes() []string {
	return []string{"1m", "3m", "5m", "15m", "30m", "1h", "2h", "4h", "1D", "1W"}
}

// GetAggregationTimeframes returns the timeframes 1m candles can be resampled to.
func GetAggregationTimeframes() []string {
	return []string{"3m", "5m", "15m", "30m", "1h", "2h", "4h", "1D", "1W"}
}

// IsValidTimeframe checks if a timeframe is supported
func IsValidTimeframe(timeframe string) bool {
	return GetTimeframeDuration(timeframe) > 0
}
