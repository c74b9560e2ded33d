package domain

import (
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
)

func TestEngineState_DeepCopy_ProducesEqualButIndependentState(t *testing.T) {
	orig := NewEngineState(decimal.NewFromInt(10_000_000))
	orig.OpenTrades["HPG"] = &OpenTrade{
		Symbol:     "HPG",
		EntryDate:  time.Date(2026, 1, 5, 0, 0, 0, 0, time.UTC),
		EntryPrice: 28.5,
		Qty:        100,
		StopLoss:   27.0,
		TakeProfit: 32.0,
		Cost:       decimal.NewFromInt(2_850_000),
	}
	orig.PendingEntries["VNM"] = &PendingEntry{
		Symbol:     "VNM",
		EntryPrice: 70.0,
		StopLoss:   66.0,
		TakeProfit: 78.0,
		TargetQty:  50,
	}
	orig.LastClose["FPT"] = 120.0
	orig.ClosedTrades = append(orig.ClosedTrades, ClosedTrade{Symbol: "MWG", Reason: ExitTP})
	require.NoError(t, orig.RecordEquity(time.Date(2026, 1, 5, 0, 0, 0, 0, time.UTC), map[string]float64{"HPG": 28.5}))

	cp := orig.DeepCopy()

	if diff := cmp.Diff(orig, cp, cmp.Comparer(func(a, b decimal.Decimal) bool { return a.Equal(b) })); diff != "" {
		t.Fatalf("DeepCopy produced a state that differs from the original:\n%s", diff)
	}

	cp.OpenTrades["HPG"].Qty = 999
	cp.PendingEntries["VNM"].TargetQty = 999
	cp.LastClose["FPT"] = 1.0
	cp.ClosedTrades[0].Reason = ExitSL
	cp.Cash = decimal.NewFromInt(1)

	require.Equal(t, int64(100), orig.OpenTrades["HPG"].Qty, "mutating the copy must not affect the original open trade")
	require.Equal(t, int64(50), orig.PendingEntries["VNM"].TargetQty, "mutating the copy must not affect the original pending entry")
	require.Equal(t, 120.0, orig.LastClose["FPT"], "mutating the copy's LastClose must not affect the original")
	require.Equal(t, ExitTP, orig.ClosedTrades[0].Reason, "mutating the copy's closed trades must not affect the original")
	require.True(t, orig.Cash.Equal(decimal.NewFromInt(10_000_000)), "mutating the copy's cash must not affect the original")
}
