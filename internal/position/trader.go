package position

import (
	"github.com/amirphl/nse-backtest/internal/candle"
	"github.com/amirphl/nse-backtest/internal/utils"
)

// Trader owns the capital, the position book and the trade history for one
// symbol. Entries flow through the sizing policy, margin and costs through
// the accounting policy, so every strategy variant shares the same
// lifecycle: open, bracket, liquidate, record.
type Trader struct {
	Symbol         string
	InstrumentName string
	InitialCapital float64
	Capital        float64
	Book           Book
	Trades         []Trade

	Sizing     SizingPolicy
	Accounting AccountingPolicy
}

// NewTrader creates a trader with the given policies. A nil sizing policy
// defaults to full-capital sizing, a nil accounting policy to cash
// accounting.
func NewTrader(symbol string, initialCapital float64, sizing SizingPolicy, accounting AccountingPolicy) *Trader {
	if sizing == nil {
		sizing = FullCapitalSizing{}
	}
	if accounting == nil {
		accounting = CashAccounting{}
	}
	return &Trader{
		Symbol:         symbol,
		InitialCapital: initialCapital,
		Capital:        initialCapital,
		Sizing:         sizing,
		Accounting:     accounting,
	}
}

// GoLong opens a long position at price (current close when price is 0),
// sized by the sizing policy when quantity is 0. Opening while a position
// is already held is a no-op, as is an entry the policy cannot size.
func (t *Trader) GoLong(c candle.Candle, quantity, price float64) {
	t.open(Long, c, quantity, price)
}

// GoShort opens a short position, mirroring GoLong.
func (t *Trader) GoShort(c candle.Candle, quantity, price float64) {
	t.open(Short, c, quantity, price)
}

func (t *Trader) open(side Side, c candle.Candle, quantity, price float64) {
	if t.Book.Side == side {
		return
	}
	if !t.Book.IsFlat() {
		utils.GetLogger().Printf("Trader | [%s] Ignoring %s entry while %s position open", t.Symbol, side, t.Book.Side)
		return
	}

	if price <= 0 {
		price = c.Close
	}

	var lots int
	if quantity <= 0 {
		quantity, lots = t.Sizing.Size(t.Capital, price)
	} else if sizer, ok := t.Sizing.(LotMarginSizing); ok {
		// Explicit quantities on lot-based instruments are rounded down to
		// whole lots before any margin math.
		rounded := sizer.Instrument.RoundToLotSize(int(quantity))
		quantity = float64(rounded)
		lots = rounded / sizer.Instrument.LotSize
	}
	if quantity <= 0 {
		return
	}

	margin := t.Accounting.MarginRequired(price, quantity, lots)
	if margin > t.Capital {
		utils.GetLogger().Printf("Trader | [%s] Insufficient capital for %s: need %.2f margin, have %.2f", t.Symbol, side, margin, t.Capital)
		return
	}

	t.Book = Book{
		Side:           side,
		Size:           quantity,
		Lots:           lots,
		EntryPrice:     price,
		EntryTime:      c.Timestamp,
		MarginReserved: margin,
	}
	t.Capital -= margin

	if lots > 0 {
		utils.GetLogger().Printf("Trader | [%s] %s %d lot(s) (%.0f qty) at %.2f, margin reserved %.2f", t.Symbol, side, lots, quantity, price, margin)
	} else {
		utils.GetLogger().Printf("Trader | [%s] %s %.4f qty at %.2f", t.Symbol, side, quantity, price)
	}
}

// SetStopLoss sets the stop price for the open position.
func (t *Trader) SetStopLoss(price float64) {
	t.Book.StopLoss = price
}

// SetTakeProfit sets the target price for the open position.
func (t *Trader) SetTakeProfit(price float64) {
	t.Book.TakeProfit = price
}

// Liquidate closes the open position at price (current close when price is
// 0), realizes PnL net of transaction costs, releases reserved margin and
// appends the trade record. Liquidating while flat is a no-op.
func (t *Trader) Liquidate(c candle.Candle, price float64, reason string) {
	if t.Book.IsFlat() {
		return
	}

	if price <= 0 {
		price = c.Close
	}

	var gross float64
	if t.Book.IsLong() {
		gross = (price - t.Book.EntryPrice) * t.Book.Size
	} else {
		gross = (t.Book.EntryPrice - price) * t.Book.Size
	}

	cost := t.Accounting.CloseCost(price, t.Book.Size, t.Book.Lots)
	pnl := gross - cost

	t.Capital += t.Book.MarginReserved + pnl

	trade := Trade{
		ID:              utils.NewID(),
		Symbol:          t.Symbol,
		Side:            t.Book.Side,
		EntryPrice:      t.Book.EntryPrice,
		ExitPrice:       price,
		Quantity:        t.Book.Size,
		Lots:            t.Book.Lots,
		PnL:             pnl,
		MarginUsed:      t.Book.MarginReserved,
		TransactionCost: cost,
		Instrument:      t.InstrumentName,
		Reason:          reason,
		EntryTime:       t.Book.EntryTime,
		ExitTime:        c.Timestamp,
	}
	t.Trades = append(t.Trades, trade)

	utils.GetLogger().Printf("Trader | [%s] Closed %s at %.2f, PnL %.2f (cost %.2f), margin released %.2f", t.Symbol, trade.Side, price, pnl, cost, trade.MarginUsed)

	t.Book.Reset()
}

// UpdatePosition checks the stop loss first and then the take profit
// against the candle's range, liquidating at the bracket price when hit.
// Both hitting in the same bar resolves to the stop loss.
func (t *Trader) UpdatePosition(c candle.Candle) {
	if t.Book.IsFlat() {
		return
	}

	if t.stopLossHit(c) {
		t.Liquidate(c, t.Book.StopLoss, ReasonStopLoss)
		return
	}
	if t.takeProfitHit(c) {
		t.Liquidate(c, t.Book.TakeProfit, ReasonTakeProfit)
	}
}

func (t *Trader) stopLossHit(c candle.Candle) bool {
	if t.Book.StopLoss == 0 {
		return false
	}
	if t.Book.IsLong() {
		return c.Low <= t.Book.StopLoss
	}
	return c.High >= t.Book.StopLoss
}

func (t *Trader) takeProfitHit(c candle.Candle) bool {
	if t.Book.TakeProfit == 0 {
		return false
	}
	if t.Book.IsLong() {
		return c.High >= t.Book.TakeProfit
	}
	return c.Low <= t.Book.TakeProfit
}

// Metrics computes performance metrics over the recorded trades.
func (t *Trader) Metrics() Metrics {
	return CalculateMetrics(t.Trades, t.InitialCapital)
}

// Reset returns the trader to its initial state for a fresh run.
func (t *Trader) Reset() {
	t.Capital = t.InitialCapital
	t.Book.Reset()
	t.Trades = nil
}
