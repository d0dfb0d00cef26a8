// Package position
package position

import "time"

// Side is the direction of an open position. The zero value means flat.
type Side string

const (
	Flat  Side = ""
	Long  Side = "long"
	Short Side = "short"
)

func (s Side) String() string {
	if s == Flat {
		return "flat"
	}
	return string(s)
}

// Book is the mutable state of the single open position. StopLoss and
// TakeProfit use 0 as the unset sentinel since no valid NSE price is zero.
type Book struct {
	Side           Side      `json:"side"`
	Size           float64   `json:"size"`
	Lots           int       `json:"lots"`
	EntryPrice     float64   `json:"entry_price"`
	EntryTime      time.Time `json:"entry_time"`
	StopLoss       float64   `json:"stop_loss"`
	TakeProfit     float64   `json:"take_profit"`
	MarginReserved float64   `json:"margin_reserved"`
}

func (b *Book) IsFlat() bool  { return b.Side == Flat }
func (b *Book) IsLong() bool  { return b.Side == Long }
func (b *Book) IsShort() bool { return b.Side == Short }

// HasBrackets reports whether a stop loss or take profit has been set for
// the current trade.
func (b *Book) HasBrackets() bool {
	return b.StopLoss != 0 || b.TakeProfit != 0
}

// Reset clears the book back to flat.
func (b *Book) Reset() {
	*b = Book{}
}
