package report

import (
	"fmt"
	"strings"

	"vnbacktest/internal/domain"
)

// FormatPlanText renders a WeeklyPlan as a human-readable digest for
// `--mode generate --dry-run`, grounded on the original implementation's
// telegram/formatter.py (no bot integration — messaging surfaces are out
// of scope).
func FormatPlanText(plan domain.WeeklyPlan) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Weekly plan for %s (%s %s)\n", plan.WeekStart.Format(isoDate), plan.StrategyID, plan.StrategyVersion)

	if len(plan.Recommendations) == 0 {
		b.WriteString("  no recommendations this week\n")
		return b.String()
	}

	for _, rec := range plan.Recommendations {
		switch rec.Action {
		case domain.ActionBuy:
			fmt.Fprintf(&b, "  BUY  %-8s entry=%.2f zone=[%.2f,%.2f] sl=%.2f tp=%.2f size=%.1f%% (%s) — %s\n",
				rec.Symbol, rec.EntryPrice, rec.BuyZoneLow, rec.BuyZoneHigh, rec.StopLoss, rec.TakeProfit,
				rec.PositionTargetPct*100, rec.EntryType, rec.Rationale)
		default:
			fmt.Fprintf(&b, "  %-5s%-8s — %s\n", rec.Action, rec.Symbol, rec.Rationale)
		}
	}
	return b.String()
}
