package report

import (
	"fmt"
	"os"

	"github.com/gocarina/gocsv"

	"vnbacktest/internal/domain"
)

// equityRow/tradeRow exist because gocsv marshals struct tags, and the
// domain types carry decimal.Decimal/time.Time fields that need
// explicit string formatting to match spec.md §6's exact CSV headers.
type equityRow struct {
	Date               string `csv:"date"`
	TotalValue         string `csv:"total_value"`
	Cash               string `csv:"cash"`
	OpenPositionsValue string `csv:"open_positions_value"`
}

type tradeRow struct {
	Symbol     string `csv:"symbol"`
	EntryDate  string `csv:"entry_date"`
	EntryPrice string `csv:"entry_price"`
	ExitDate   string `csv:"exit_date"`
	ExitPrice  string `csv:"exit_price"`
	Qty        string `csv:"qty"`
	Reason     string `csv:"reason"`
	ReturnPct  string `csv:"return_pct"`
	PnlVND     string `csv:"pnl_vnd"`
	HoldDays   string `csv:"hold_days"`
}

const isoDate = "2006-01-02"

// WriteEquityCSV writes the `equity_curve.csv` of spec.md §6.
func WriteEquityCSV(path string, curve []domain.EquityPoint) error {
	rows := make([]*equityRow, len(curve))
	for i, p := range curve {
		rows[i] = &equityRow{
			Date:               p.Date.Format(isoDate),
			TotalValue:         p.TotalValue.String(),
			Cash:               p.Cash.String(),
			OpenPositionsValue: p.OpenPositionsValue.String(),
		}
	}
	return writeCSV(path, rows)
}

// WriteTradesCSV writes the `trades.csv` of spec.md §6.
func WriteTradesCSV(path string, trades []domain.ClosedTrade) error {
	rows := make([]*tradeRow, len(trades))
	for i, t := range trades {
		rows[i] = &tradeRow{
			Symbol:     t.Symbol,
			EntryDate:  t.EntryDate.Format(isoDate),
			EntryPrice: fmt.Sprintf("%.4f", t.EntryPrice),
			ExitDate:   t.ExitDate.Format(isoDate),
			ExitPrice:  fmt.Sprintf("%.4f", t.ExitPrice),
			Qty:        fmt.Sprintf("%d", t.Qty),
			Reason:     string(t.Reason),
			ReturnPct:  fmt.Sprintf("%.6f", t.ReturnPct),
			PnlVND:     t.PnlVND.String(),
			HoldDays:   fmt.Sprintf("%d", t.HoldDays),
		}
	}
	return writeCSV(path, rows)
}

func writeCSV[T any](path string, rows []T) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", path, err)
	}
	defer f.Close()

	if err := gocsv.MarshalFile(&rows, f); err != nil {
		return fmt.Errorf("failed to write csv %s: %w", path, err)
	}
	return nil
}
