package week

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"vnbacktest/internal/config"
	"vnbacktest/internal/domain"
	"vnbacktest/internal/engine"
)

func date(y, m, d int) time.Time {
	return time.Date(y, time.Month(m), d, 0, 0, 0, 0, time.UTC)
}

func flatWeekBars(monday time.Time, open, high, low, close float64) []domain.Bar {
	var out []domain.Bar
	for i := 0; i < 5; i++ {
		out = append(out, domain.Bar{
			Date: monday.AddDate(0, 0, i), Open: open, High: high, Low: low, Close: close, Volume: 1000,
		})
	}
	return out
}

func buyRec(symbol string, entry, sl, tp, targetPct float64) domain.Recommendation {
	return domain.Recommendation{
		Symbol:            symbol,
		Action:            domain.ActionBuy,
		EntryType:         domain.EntryPullback,
		EntryPrice:        entry,
		BuyZoneLow:        entry,
		BuyZoneHigh:       entry,
		StopLoss:          sl,
		TakeProfit:        tp,
		PositionTargetPct: targetPct,
	}
}

func sellRec(symbol string) domain.Recommendation {
	return domain.Recommendation{Symbol: symbol, Action: domain.ActionSell, EntryType: domain.EntryNone}
}

func TestRun_StaticPlan_FillThenManualSellNextWeek(t *testing.T) {
	cfg := config.Default()
	cfg.Risk.MaxOpenPositions = 0
	eng := engine.New(cfg, nil)
	state := domain.NewEngineState(decimal.NewFromInt(10_000_000))

	week1Monday := date(2024, 1, 1)
	week2Monday := date(2024, 1, 8)

	history := map[string]domain.Series{
		"ABC": append(
			domain.Series(flatWeekBars(week1Monday, 100, 101, 99, 100)),
			flatWeekBars(week2Monday, 110, 111, 109, 110)...,
		),
	}

	driver := New(eng, cfg, nil)
	week1Plan := domain.WeeklyPlan{Recommendations: []domain.Recommendation{buyRec("ABC", 100, 94, 112, 0.10)}}
	require.NoError(t, driver.Run(state, history, week1Monday, date(2024, 1, 5), StaticSource{Plan: week1Plan}))

	require.Contains(t, state.OpenTrades, "ABC")
	require.Equal(t, int64(10_000), state.OpenTrades["ABC"].Qty)
	require.True(t, state.Cash.Equal(decimal.NewFromInt(9_000_000)))

	driver2 := New(eng, cfg, nil)
	week2Plan := domain.WeeklyPlan{Recommendations: []domain.Recommendation{sellRec("ABC")}}
	require.NoError(t, driver2.Run(state, history, week2Monday, date(2024, 1, 12), StaticSource{Plan: week2Plan}))

	require.Empty(t, state.OpenTrades)
	require.Len(t, state.ClosedTrades, 1)
	require.Equal(t, domain.ExitSell, state.ClosedTrades[0].Reason)
	require.Equal(t, 110.0, state.ClosedTrades[0].ExitPrice)
	require.True(t, state.ClosedTrades[0].PnlVND.Equal(decimal.NewFromInt(100_000)))
	require.True(t, state.Cash.Equal(decimal.NewFromInt(10_100_000)))

	for i := 1; i < len(state.EquityCurve); i++ {
		require.True(t, state.EquityCurve[i].Date.After(state.EquityCurve[i-1].Date))
	}
}

func TestRun_StaticPlan_InvalidBuyRecommendationRejected(t *testing.T) {
	cfg := config.Default()
	cfg.Risk.MaxOpenPositions = 0
	eng := engine.New(cfg, nil)
	state := domain.NewEngineState(decimal.NewFromInt(10_000_000))

	monday := date(2024, 1, 1)
	history := map[string]domain.Series{"ABC": flatWeekBars(monday, 100, 101, 99, 100)}

	// stop_loss >= entry_price: the kind of malformed BUY only a
	// hand-edited --plan-file YAML document could produce.
	badRec := buyRec("ABC", 100, 100, 112, 0.10)

	driver := New(eng, cfg, nil)
	plan := domain.WeeklyPlan{Recommendations: []domain.Recommendation{badRec}}
	require.NoError(t, driver.Run(state, history, monday, date(2024, 1, 5), StaticSource{Plan: plan}))

	require.Empty(t, state.OpenTrades)
	require.Empty(t, state.PendingEntries)
	require.True(t, state.Cash.Equal(decimal.NewFromInt(10_000_000)))
}

func TestRun_GeneratorSource_InsufficientHistoryNeverTrades(t *testing.T) {
	cfg := config.Default() // MinWeeklyBars == 30
	eng := engine.New(cfg, nil)
	initialCash := decimal.NewFromInt(10_000_000)
	state := domain.NewEngineState(initialCash)

	monday := date(2024, 1, 1)
	var bars domain.Series
	for w := 0; w < 3; w++ {
		bars = append(bars, flatWeekBars(monday.AddDate(0, 0, 7*w), 100, 101, 99, 100)...)
	}
	history := map[string]domain.Series{"ABC": bars}

	driver := New(eng, cfg, nil)
	require.NoError(t, driver.Run(state, history, monday, monday.AddDate(0, 0, 18), GeneratorSource{}))

	require.Empty(t, state.OpenTrades)
	require.Empty(t, state.PendingEntries)
	require.Empty(t, state.ClosedTrades)
	require.True(t, state.Cash.Equal(initialCash))
	require.NotEmpty(t, state.EquityCurve)
	last := state.EquityCurve[len(state.EquityCurve)-1]
	require.True(t, last.TotalValue.Equal(initialCash))
}

func TestRun_EmptyHistoryIsNoop(t *testing.T) {
	cfg := config.Default()
	eng := engine.New(cfg, nil)
	initialCash := decimal.NewFromInt(5_000_000)
	state := domain.NewEngineState(initialCash)

	driver := New(eng, cfg, nil)
	require.NoError(t, driver.Run(state, map[string]domain.Series{}, date(2024, 1, 1), date(2024, 1, 31), GeneratorSource{}))

	require.Empty(t, state.EquityCurve)
	require.True(t, state.Cash.Equal(initialCash))
}
