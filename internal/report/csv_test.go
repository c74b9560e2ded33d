package report

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"vnbacktest/internal/domain"
)

func TestWriteEquityCSV_WritesExpectedHeaderAndRow(t *testing.T) {
	path := filepath.Join(t.TempDir(), "equity_curve.csv")
	curve := []domain.EquityPoint{
		ep(d(2024, 1, 1), 900_000, 100_000, 1_000_000),
	}

	require.NoError(t, WriteEquityCSV(path, curve))

	contents, err := os.ReadFile(path)
	require.NoError(t, err)
	require.Contains(t, string(contents), "date,total_value,cash,open_positions_value")
	require.Contains(t, string(contents), "2024-01-01")
	require.Contains(t, string(contents), "1000000")
	require.Contains(t, string(contents), "900000")
	require.Contains(t, string(contents), "100000")
}

func TestWriteTradesCSV_WritesExpectedHeaderAndRow(t *testing.T) {
	path := filepath.Join(t.TempDir(), "trades.csv")
	trades := []domain.ClosedTrade{
		{
			Symbol:     "ABC",
			EntryDate:  d(2024, 1, 1),
			EntryPrice: 100,
			ExitDate:   d(2024, 1, 8),
			ExitPrice:  110,
			Qty:        10_000,
			Reason:     domain.ExitSell,
			ReturnPct:  0.10,
			PnlVND:     decimal.NewFromInt(100_000),
			HoldDays:   7,
		},
	}

	require.NoError(t, WriteTradesCSV(path, trades))

	contents, err := os.ReadFile(path)
	require.NoError(t, err)
	require.Contains(t, string(contents), "symbol,entry_date,entry_price,exit_date,exit_price,qty,reason,return_pct,pnl_vnd,hold_days")
	require.Contains(t, string(contents), "ABC")
	require.Contains(t, string(contents), "SELL")
	require.Contains(t, string(contents), "100000")
}

func TestWriteEquityCSV_EmptyCurveStillWritesHeader(t *testing.T) {
	path := filepath.Join(t.TempDir(), "empty.csv")
	require.NoError(t, WriteEquityCSV(path, nil))

	contents, err := os.ReadFile(path)
	require.NoError(t, err)
	require.Contains(t, string(contents), "date,total_value,cash,open_positions_value")
}
