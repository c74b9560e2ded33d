package report

import (
	"math"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"vnbacktest/internal/domain"
)

func d(y, m, day int) time.Time {
	return time.Date(y, time.Month(m), day, 0, 0, 0, 0, time.UTC)
}

func ep(date time.Time, cash, open, total int64) domain.EquityPoint {
	return domain.EquityPoint{
		Date:               date,
		Cash:               decimal.NewFromInt(cash),
		OpenPositionsValue: decimal.NewFromInt(open),
		TotalValue:         decimal.NewFromInt(total),
	}
}

func TestSummarize_EmptyCurveReturnsInitialCashUnchanged(t *testing.T) {
	initial := decimal.NewFromInt(10_000_000)
	s := Summarize(initial, nil, nil)

	require.True(t, s.FinalValue.Equal(initial))
	require.Equal(t, 0, s.NumTrades)
	require.Zero(t, s.TotalReturn)
	require.Zero(t, s.CAGR)
	require.Zero(t, s.MaxDrawdown)
}

func TestSummarize_TotalReturnAndMaxDrawdown(t *testing.T) {
	initial := decimal.NewFromInt(1_000_000)
	curve := []domain.EquityPoint{
		ep(d(2024, 1, 1), 1_000_000, 0, 1_000_000),
		ep(d(2024, 1, 2), 200_000, 1_000_000, 1_200_000), // peak
		ep(d(2024, 1, 3), 200_000, 700_000, 900_000),     // drawdown from peak
		ep(d(2024, 1, 4), 1_100_000, 0, 1_100_000),
	}

	s := Summarize(initial, nil, curve)

	require.InDelta(t, 0.10, s.TotalReturn, 1e-9) // 1,100,000/1,000,000 - 1
	require.InDelta(t, 0.25, s.MaxDrawdown, 1e-9) // (1,200,000-900,000)/1,200,000
}

func TestSummarize_WinRateAndProfitFactor(t *testing.T) {
	trades := []domain.ClosedTrade{
		{PnlVND: decimal.NewFromInt(100_000), HoldDays: 4},
		{PnlVND: decimal.NewFromInt(-50_000), HoldDays: 2},
		{PnlVND: decimal.NewFromInt(50_000), HoldDays: 6},
	}
	curve := []domain.EquityPoint{
		ep(d(2024, 1, 1), 1_000_000, 0, 1_000_000),
		ep(d(2024, 1, 2), 1_000_000, 0, 1_100_000),
	}

	s := Summarize(decimal.NewFromInt(1_000_000), trades, curve)

	require.Equal(t, 3, s.NumTrades)
	require.InDelta(t, 2.0/3.0, s.WinRate, 1e-9)
	require.InDelta(t, 4.0, s.AvgHoldDays, 1e-9)
	require.InDelta(t, 3.0, s.ProfitFactor, 1e-9) // 150,000 gross gain / 50,000 gross loss
}

func TestSummarize_ProfitFactorWithNoLossesIsInfinite(t *testing.T) {
	trades := []domain.ClosedTrade{
		{PnlVND: decimal.NewFromInt(100_000), HoldDays: 1},
	}
	curve := []domain.EquityPoint{
		ep(d(2024, 1, 1), 1_000_000, 0, 1_000_000),
	}
	s := Summarize(decimal.NewFromInt(1_000_000), trades, curve)
	require.True(t, math.IsInf(s.ProfitFactor, 1))
}

func TestSummarize_ProfitFactorWithNoTradesIsZero(t *testing.T) {
	curve := []domain.EquityPoint{ep(d(2024, 1, 1), 1_000_000, 0, 1_000_000)}
	s := Summarize(decimal.NewFromInt(1_000_000), nil, curve)
	require.Zero(t, s.ProfitFactor)
	require.Zero(t, s.WinRate)
}

func TestDiffRange_IsBestMinusWorst(t *testing.T) {
	worst := Summary{FinalValue: decimal.NewFromInt(900_000), TotalReturn: -0.1, NumTrades: 5}
	best := Summary{FinalValue: decimal.NewFromInt(1_200_000), TotalReturn: 0.2, NumTrades: 8}

	diff := DiffRange(worst, best)

	require.True(t, diff.Diff.FinalValue.Equal(decimal.NewFromInt(300_000)))
	require.InDelta(t, 0.3, diff.Diff.TotalReturn, 1e-9)
	require.Equal(t, 3, diff.Diff.NumTrades)
	require.Equal(t, worst, diff.Worst)
	require.Equal(t, best, diff.Best)
}

func TestVerifyEquityInvariant_PassesOnConsistentCurve(t *testing.T) {
	curve := []domain.EquityPoint{
		ep(d(2024, 1, 1), 1_000_000, 0, 1_000_000),
		ep(d(2024, 1, 2), 900_000, 100_000, 1_000_000),
	}
	require.NoError(t, VerifyEquityInvariant(curve))
}

func TestVerifyEquityInvariant_CatchesTotalMismatch(t *testing.T) {
	curve := []domain.EquityPoint{
		ep(d(2024, 1, 1), 900_000, 50_000, 1_000_000), // 900,000+50,000 != 1,000,000
	}
	require.Error(t, VerifyEquityInvariant(curve))
}

func TestVerifyEquityInvariant_CatchesNonIncreasingDates(t *testing.T) {
	curve := []domain.EquityPoint{
		ep(d(2024, 1, 2), 1_000_000, 0, 1_000_000),
		ep(d(2024, 1, 1), 1_000_000, 0, 1_000_000),
	}
	require.Error(t, VerifyEquityInvariant(curve))
}

func TestVerifyEquityInvariant_CatchesNegativeCash(t *testing.T) {
	curve := []domain.EquityPoint{
		ep(d(2024, 1, 1), -100_000, 1_100_000, 1_000_000),
	}
	require.Error(t, VerifyEquityInvariant(curve))
}
