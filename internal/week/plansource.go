package week

import (
	"time"

	"vnbacktest/internal/config"
	"vnbacktest/internal/domain"
	"vnbacktest/internal/signal"
)

// GeneratorSource backs CLI `--mode generate`: the portfolio-aware
// signal generator recomputes a fresh plan every week.
type GeneratorSource struct{}

func (GeneratorSource) PlanFor(weekStart time.Time, marketData map[string]domain.Series, openPositions map[string]domain.OpenPositionView, cfg config.Config) domain.WeeklyPlan {
	return signal.Generate(marketData, openPositions, cfg, weekStart)
}

// StaticSource backs CLI `--mode plan`: the same recommendations are
// replayed every week, with breakout earliest-fill dates re-anchored to
// the current week so the T+1 fill rule still holds.
type StaticSource struct {
	Plan domain.WeeklyPlan
}

func (s StaticSource) PlanFor(weekStart time.Time, _ map[string]domain.Series, _ map[string]domain.OpenPositionView, _ config.Config) domain.WeeklyPlan {
	out := domain.WeeklyPlan{
		GeneratedAt:     s.Plan.GeneratedAt,
		WeekStart:       weekStart,
		StrategyID:      s.Plan.StrategyID,
		StrategyVersion: s.Plan.StrategyVersion,
	}
	nextMonday := weekStart.AddDate(0, 0, 7)
	for _, rec := range s.Plan.Recommendations {
		r := rec
		if r.Action == domain.ActionBuy && r.EntryType == domain.EntryBreakout {
			efd := nextMonday
			r.EarliestFillDate = &efd
		}
		out.Recommendations = append(out.Recommendations, r)
	}
	return out
}
