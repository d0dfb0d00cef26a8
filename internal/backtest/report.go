package backtest

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

// maxTradesShown limits the trade details block of the console report.
const maxTradesShown = 10

// inr renders rupee amounts with comma digit grouping.
var inr = message.NewPrinter(language.English)

// PrintResults writes the formatted run report: header, capital block,
// trade statistics and the first trades.
func (r *Results) PrintResults(w io.Writer) {
	thick := strings.Repeat("=", 60)
	thin := strings.Repeat("-", 60)

	fmt.Fprintln(w)
	fmt.Fprintln(w, thick)
	fmt.Fprintln(w, "BACKTEST RESULTS")
	fmt.Fprintln(w, thick)
	fmt.Fprintf(w, "Strategy: %s\n", r.Strategy)
	fmt.Fprintf(w, "Symbol: %s\n", r.Symbol)
	fmt.Fprintf(w, "Timeframe: %s\n", r.Timeframe)
	fmt.Fprintf(w, "Period: %s to %s\n", r.Start.Format("2006-01-02 15:04"), r.Finish.Format("2006-01-02 15:04"))
	fmt.Fprintln(w, thin)
	fmt.Fprintf(w, "Initial Capital: ₹%s\n", inr.Sprintf("%.2f", r.InitialCapital))
	fmt.Fprintf(w, "Final Capital: ₹%s\n", inr.Sprintf("%.2f", r.FinalCapital))
	fmt.Fprintf(w, "Total Return: ₹%s\n", inr.Sprintf("%.2f", r.TotalReturn))
	fmt.Fprintf(w, "Total Return %%: %.2f%%\n", r.TotalReturnPercentage)
	fmt.Fprintln(w, thin)
	fmt.Fprintln(w, "TRADE STATISTICS:")
	fmt.Fprintf(w, "Total Trades: %d\n", r.Metrics.TotalTrades)
	fmt.Fprintf(w, "Win Rate: %.2f%%\n", r.Metrics.WinRate*100)
	fmt.Fprintf(w, "Profit Factor: %.2f\n", r.Metrics.ProfitFactor)
	fmt.Fprintln(w, thick)

	if len(r.Trades) == 0 {
		return
	}

	fmt.Fprintln(w)
	fmt.Fprintln(w, "TRADE DETAILS:")
	fmt.Fprintln(w, thin)

	shown := len(r.Trades)
	if shown > maxTradesShown {
		shown = maxTradesShown
	}
	for i := 0; i < shown; i++ {
		t := r.Trades[i]
		fmt.Fprintf(w, "Trade %d: %s | Entry: ₹%.2f (%s) | Exit: ₹%.2f (%s) | P&L: ₹%.2f\n",
			i+1, strings.ToUpper(string(t.Side)),
			t.EntryPrice, t.EntryTime.Format("2006-01-02 15:04"),
			t.ExitPrice, t.ExitTime.Format("2006-01-02 15:04"),
			t.PnL)
	}
	if len(r.Trades) > maxTradesShown {
		fmt.Fprintf(w, "... and %d more trades\n", len(r.Trades)-maxTradesShown)
	}
}

// TradeLogFilename returns the default export filename for the run.
func (r *Results) TradeLogFilename() string {
	return fmt.Sprintf("backtest_results_%s_%s.csv", r.Symbol, r.FinishedAt.Format("20060102_150405"))
}

// SaveTradeLog writes the run's trades to a CSV file at path.
func (r *Results) SaveTradeLog(path string) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create trade log %s: %w", path, err)
	}
	defer f.Close()

	w := csv.NewWriter(f)

	header := []string{
		"id", "symbol", "side", "entry_price", "exit_price", "quantity", "lots",
		"pnl", "margin_used", "transaction_cost", "instrument", "reason",
		"entry_time", "exit_time",
	}
	if err := w.Write(header); err != nil {
		return fmt.Errorf("failed to write trade log header: %w", err)
	}

	for _, t := range r.Trades {
		row := []string{
			t.ID,
			t.Symbol,
			string(t.Side),
			strconv.FormatFloat(t.EntryPrice, 'f', -1, 64),
			strconv.FormatFloat(t.ExitPrice, 'f', -1, 64),
			strconv.FormatFloat(t.Quantity, 'f', -1, 64),
			strconv.Itoa(t.Lots),
			strconv.FormatFloat(t.PnL, 'f', -1, 64),
			strconv.FormatFloat(t.MarginUsed, 'f', -1, 64),
			strconv.FormatFloat(t.TransactionCost, 'f', -1, 64),
			t.Instrument,
			t.Reason,
			t.EntryTime.UTC().Format(time.RFC3339),
			t.ExitTime.UTC().Format(time.RFC3339),
		}
		if err := w.Write(row); err != nil {
			return fmt.Errorf("failed to write trade log row: %w", err)
		}
	}

	w.Flush()
	return w.Error()
}
