// Package candle
package candle

import (
	"time"
)

// Session describes a market's trading hours. Candles timestamped outside the
// session (or on a holiday) are not tradable and get filtered out before a
// backtest.
type Session struct {
	OpenHour    int
	OpenMinute  int
	CloseHour   int
	CloseMinute int
	Location    *time.Location
	TradingDays map[time.Weekday]bool
	Holidays    map[string]bool // "2006-01-02" keys, in session local time
}

// NewNSESession returns the NSE cash/futures session: 09:15-15:30 IST,
// Monday through Friday.
func NewNSESession() *Session {
	loc, err := time.LoadLocation("Asia/Kolkata")
	if err != nil {
		loc = time.FixedZone("IST", 5*3600+1800)
	}
	return &Session{
		OpenHour:    9,
		OpenMinute:  15,
		CloseHour:   15,
		CloseMinute: 30,
		Location:    loc,
		TradingDays: map[time.Weekday]bool{
			time.Monday:    true,
			time.Tuesday:   true,
			time.Wednesday: true,
			time.Thursday:  true,
			time.Friday:    true,
		},
		Holidays: make(map[string]bool),
	}
}

// AddHoliday marks a date (YYYY-MM-DD in session local time) as closed.
func (s *Session) AddHoliday(date string) {
	s.Holidays[date] = true
}

// IsOpen reports whether the market trades at t. Both session boundaries are
// inclusive, matching exchange-published hours.
func (s *Session) IsOpen(t time.Time) bool {
	local := t.In(s.Location)
	if !s.TradingDays[local.Weekday()] {
		return false
	}
	if s.Holidays[local.Format("2006-01-02")] {
		return false
	}

	minutes := local.Hour()*60 + local.Minute()
	openMin := s.OpenHour*60 + s.OpenMinute
	closeMin := s.CloseHour*60 + s.CloseMinute
	return minutes >= openMin && minutes <= closeMin
}

// FilterSession drops candles timestamped outside the trading session.
func FilterSession(candles []Candle, s *Session) []Candle {
	if s == nil {
		return candles
	}
	var filtered []Candle
	for _, c := range candles {
		if s.IsOpen(c.Timestamp) {
			filtered = append(filtered, c)
		}
	}
	return filtered
}
