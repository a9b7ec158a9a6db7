package reporting

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"

	"github.com/quantfold/strategy-engine/pkg/types"
)

// ConsoleReporter renders a session summary to a terminal.
type ConsoleReporter struct {
	out io.Writer
}

func NewConsoleReporter() *ConsoleReporter {
	return &ConsoleReporter{out: os.Stdout}
}

func NewConsoleReporterTo(out io.Writer) *ConsoleReporter {
	return &ConsoleReporter{out: out}
}

// PrintSummary prints the session totals and a trade table.
func (r *ConsoleReporter) PrintSummary(summary *SessionSummary) {
	fmt.Fprintln(r.out, "\n"+strings.Repeat("=", 50))
	fmt.Fprintf(r.out, "📊 SESSION SUMMARY: %s\n", summary.Session)
	fmt.Fprintln(r.out, strings.Repeat("=", 50))

	fmt.Fprintf(r.out, "⏱  Duration:        %s\n", summary.EndedAt.Sub(summary.StartedAt).Round(1e9))
	fmt.Fprintf(r.out, "🔄 Ticks:           %d\n", summary.Ticks)
	fmt.Fprintf(r.out, "📡 Signals:         %d\n", summary.Signals)
	fmt.Fprintf(r.out, "📥 Entries:         %d\n", summary.Entries)
	fmt.Fprintf(r.out, "📤 Exits:           %d\n", summary.Exits)
	fmt.Fprintf(r.out, "🚫 Drops:           %d\n", summary.Drops)
	fmt.Fprintf(r.out, "⛔ Rejections:      %d\n", summary.Rejections)

	closed := len(summary.ClosedPositions)
	fmt.Fprintf(r.out, "✅ Closed Trades:   %d", closed)
	if closed > 0 {
		winRate := float64(summary.WinningTrades()) / float64(closed) * 100
		fmt.Fprintf(r.out, " (%.1f%% winners)", winRate)
	}
	fmt.Fprintln(r.out)
	fmt.Fprintf(r.out, "💹 Realized P&L:    $%.2f\n", summary.RealizedPnL())

	if closed > 0 {
		r.printTradeTable(summary.ClosedPositions)
	}
	if len(summary.Exposure) > 0 {
		r.printExposureTable(summary.Exposure)
	}
}

func (r *ConsoleReporter) printTradeTable(positions []*types.Position) {
	t := table.NewWriter()
	t.SetOutputMirror(r.out)
	t.SetStyle(table.StyleLight)
	t.AppendHeader(table.Row{"Instrument", "Strategy", "Side", "Qty", "Entry", "Exit", "Reason", "P&L"})

	for _, pos := range positions {
		side := "LONG"
		qty := pos.Quantity
		if !pos.IsLong() {
			side = "SHORT"
			qty = -qty
		}
		t.AppendRow(table.Row{
			pos.Instrument,
			pos.StrategyID,
			side,
			fmt.Sprintf("%.4f", qty),
			fmt.Sprintf("%.4f", pos.EntryPrice),
			fmt.Sprintf("%.4f", pos.ExitPrice),
			pos.ExitReason,
			fmt.Sprintf("%.2f", pos.UnrealizedPnL(pos.ExitPrice)),
		})
	}
	t.SetColumnConfigs([]table.ColumnConfig{
		{Name: "Qty", Align: text.AlignRight},
		{Name: "Entry", Align: text.AlignRight},
		{Name: "Exit", Align: text.AlignRight},
		{Name: "P&L", Align: text.AlignRight},
	})
	t.Render()
}

func (r *ConsoleReporter) printExposureTable(records []types.ExposureRecord) {
	t := table.NewWriter()
	t.SetOutputMirror(r.out)
	t.SetStyle(table.StyleLight)
	t.AppendHeader(table.Row{"Instrument", "Committed Notional"})
	for _, rec := range records {
		t.AppendRow(table.Row{rec.Instrument, fmt.Sprintf("$%.2f", rec.CommittedNotional)})
	}
	t.SetColumnConfigs([]table.ColumnConfig{
		{Name: "Committed Notional", Align: text.AlignRight},
	})
	t.Render()
}
