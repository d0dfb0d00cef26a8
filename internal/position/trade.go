package position

import (
	"math"
	"time"
)

// Trade is an immutable record of a closed round trip.
type Trade struct {
	ID              string    `json:"id"`
	Symbol          string    `json:"symbol"`
	Side            Side      `json:"side"`
	EntryPrice      float64   `json:"entry_price"`
	ExitPrice       float64   `json:"exit_price"`
	Quantity        float64   `json:"quantity"`
	Lots            int       `json:"lots"`
	PnL             float64   `json:"pnl"`
	MarginUsed      float64   `json:"margin_used"`
	TransactionCost float64   `json:"transaction_cost"`
	Instrument      string    `json:"instrument"`
	Reason          string    `json:"reason"`
	EntryTime       time.Time `json:"entry_time"`
	ExitTime        time.Time `json:"exit_time"`
}

// Exit reasons recorded on trades.
const (
	ReasonStopLoss   = "stop_loss"
	ReasonTakeProfit = "take_profit"
	ReasonSignal     = "signal"
	ReasonEndOfData  = "end_of_data"
)

// Metrics summarizes the performance of a list of trades.
type Metrics struct {
	TotalTrades           int     `json:"total_trades"`
	WinningTrades         int     `json:"winning_trades"`
	LosingTrades          int     `json:"losing_trades"`
	WinRate               float64 `json:"win_rate"`
	ProfitFactor          float64 `json:"profit_factor"`
	TotalProfit           float64 `json:"total_profit"`
	TotalProfitPercentage float64 `json:"total_profit_percentage"`
}

// CalculateMetrics computes performance metrics over closed trades. A trade
// with zero PnL counts as a loss. With winning trades and no gross losses
// the profit factor is +Inf; with no trades at all every metric is zero.
func CalculateMetrics(trades []Trade, initialCapital float64) Metrics {
	if len(trades) == 0 {
		return Metrics{}
	}

	var wins int
	var totalProfit, grossWins, grossLosses float64
	for _, t := range trades {
		totalProfit += t.PnL
		if t.PnL > 0 {
			wins++
			grossWins += t.PnL
		} else {
			grossLosses += -t.PnL
		}
	}

	m := Metrics{
		TotalTrades:   len(trades),
		WinningTrades: wins,
		LosingTrades:  len(trades) - wins,
		WinRate:       float64(wins) / float64(len(trades)),
		TotalProfit:   totalProfit,
	}
	if initialCapital > 0 {
		m.TotalProfitPercentage = totalProfit / initialCapital * 100
	}

	switch {
	case grossLosses > 0:
		m.ProfitFactor = grossWins / grossLosses
	case grossWins == 0:
		m.ProfitFactor = 0
	default:
		m.ProfitFactor = math.Inf(1)
	}

	return m
}
