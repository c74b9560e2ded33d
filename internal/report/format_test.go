package report

import (
	"testing"

	"github.com/stretchr/testify/require"

	"vnbacktest/internal/domain"
)

func TestFormatPlanText_EmptyPlan(t *testing.T) {
	plan := domain.WeeklyPlan{WeekStart: d(2024, 1, 1), StrategyID: "trend-v1", StrategyVersion: "1.0.0"}

	out := FormatPlanText(plan)

	require.Contains(t, out, "2024-01-01")
	require.Contains(t, out, "trend-v1")
	require.Contains(t, out, "no recommendations")
}

func TestFormatPlanText_BuyAndSellLines(t *testing.T) {
	plan := domain.WeeklyPlan{
		WeekStart: d(2024, 1, 1),
		Recommendations: []domain.Recommendation{
			{
				Symbol: "ABC", Action: domain.ActionBuy, EntryType: domain.EntryPullback,
				EntryPrice: 100, BuyZoneLow: 98, BuyZoneHigh: 101,
				StopLoss: 94, TakeProfit: 112, PositionTargetPct: 0.1, Rationale: "trend up",
			},
			{Symbol: "XYZ", Action: domain.ActionSell, EntryType: domain.EntryNone, Rationale: "trend down"},
		},
	}

	out := FormatPlanText(plan)

	require.Contains(t, out, "BUY")
	require.Contains(t, out, "ABC")
	require.Contains(t, out, "trend up")
	require.Contains(t, out, "SELL")
	require.Contains(t, out, "XYZ")
	require.Contains(t, out, "trend down")
}
