// Package week implements the Week Driver of spec.md §4.5: it owns the
// calendar, slices each symbol's history strictly before the current
// week (the lookahead guard), invokes a PlanSource for a WeeklyPlan,
// seeds pending entries through the sizer, applies manual SELL/REDUCE
// at the next trading day's open, and advances the engine day by day
// up to the next week boundary.
package week

import (
	"fmt"
	"sort"
	"time"

	"go.uber.org/zap"

	"vnbacktest/internal/config"
	"vnbacktest/internal/domain"
	"vnbacktest/internal/engine"
	"vnbacktest/internal/sizer"
)

// PlanSource supplies the WeeklyPlan the driver acts on for a given
// week. signal.Generate backs the default "generate" CLI mode;
// StaticSource backs "plan" mode (spec.md §6).
type PlanSource interface {
	PlanFor(weekStart time.Time, marketData map[string]domain.Series, openPositions map[string]domain.OpenPositionView, cfg config.Config) domain.WeeklyPlan
}

type Driver struct {
	Engine *engine.Engine
	Cfg    config.Config
	Log    *zap.SugaredLogger

	// calendar is a per-symbol date->bar index built once from the full
	// history, so day lookups inside the week loop are O(1).
	calendar map[string]map[string]domain.Bar
}

func New(eng *engine.Engine, cfg config.Config, log *zap.SugaredLogger) *Driver {
	return &Driver{Engine: eng, Cfg: cfg, Log: log}
}

const dayLayout = "2006-01-02"

func (d *Driver) index(history map[string]domain.Series) {
	d.calendar = make(map[string]map[string]domain.Bar, len(history))
	for symbol, series := range history {
		byDate := make(map[string]domain.Bar, len(series))
		for _, b := range series {
			byDate[b.Date.Format(dayLayout)] = b
		}
		d.calendar[symbol] = byDate
	}
}

func (d *Driver) barOn(symbol string, date time.Time) (domain.Bar, bool) {
	byDate, ok := d.calendar[symbol]
	if !ok {
		return domain.Bar{}, false
	}
	bar, ok := byDate[date.Format(dayLayout)]
	return bar, ok
}

// Run drives the full [from, to] window. from/to bound the trading
// calendar; start is the first Monday ≥ from, end is the last
// processed day ≤ to (spec.md §4.5's "Boundaries").
func (d *Driver) Run(state *domain.EngineState, history map[string]domain.Series, from, to time.Time, plan PlanSource) error {
	d.index(history)

	tradingDays := unionDates(history, from, to)
	if len(tradingDays) == 0 {
		return nil
	}

	for weekStart := firstMonday(from); !weekStart.After(to); weekStart = weekStart.AddDate(0, 0, 7) {
		nextWeekStart := weekStart.AddDate(0, 0, 7)

		daysThisWeek := daysInRange(tradingDays, weekStart, nextWeekStart, to)
		marketSnapshot := make(map[string]domain.Series, len(history))
		for symbol, series := range history {
			marketSnapshot[symbol] = series.Before(weekStart)
		}

		openPositions := state.OpenPositionsView()
		weeklyPlan := plan.PlanFor(weekStart, marketSnapshot, openPositions, d.Cfg)

		d.cancelStalePendingEntries(state, weekStart)
		if err := d.seedPendingEntries(state, weeklyPlan, openPositions, nextWeekStart); err != nil {
			return err
		}
		if len(daysThisWeek) > 0 {
			d.applyManualExits(state, weeklyPlan, daysThisWeek[0])
		}

		for _, day := range daysThisWeek {
			bars := make(map[string]domain.Bar, len(history))
			for symbol := range history {
				if bar, ok := d.barOn(symbol, day); ok {
					bars[symbol] = bar
				}
			}
			if err := d.Engine.ProcessDay(state, day, bars); err != nil {
				return fmt.Errorf("week of %s: %w", weekStart.Format(dayLayout), err)
			}
		}
	}
	return nil
}

// cancelStalePendingEntries drops any pending entry that has reached
// its ExpiresAt as of this week's start, before seedPendingEntries
// re-registers whatever the new plan reconfirms. Without this, a
// pending entry from week T whose BUY isn't reconfirmed in week T+1's
// plan would otherwise sit in state.PendingEntries until the day loop
// happens to call fillPending's non-touched path — and a touch on the
// very first trading day of week T+1 would fill it before that ever
// runs. With Strategy.CancelPendingAtWeekEnd set (the default), every
// unfilled pending entry is cancelled at week end, the way
// `_examples/original_source/src/backtest/cli.py` clears
// pending_entries at the end of every week's loop; with it unset this
// does nothing.
func (d *Driver) cancelStalePendingEntries(state *domain.EngineState, weekStart time.Time) {
	if !d.Cfg.Strategy.CancelPendingAtWeekEnd {
		return
	}
	for symbol, pending := range state.PendingEntries {
		if !weekStart.Before(pending.ExpiresAt) {
			d.logDebug("cancelling stale pending entry for %s at week start %s", symbol, weekStart.Format(dayLayout))
			delete(state.PendingEntries, symbol)
		}
	}
}

func (d *Driver) seedPendingEntries(state *domain.EngineState, plan domain.WeeklyPlan, openPositions map[string]domain.OpenPositionView, expiresAt time.Time) error {
	equity, err := state.TotalValue(state.LastClose)
	if err != nil {
		return fmt.Errorf("computing equity for sizing: %w", err)
	}

	if !d.Cfg.Strategy.CancelPendingAtWeekEnd {
		expiresAt = expiresAt.AddDate(1, 0, 0)
	}

	filled := 0
	for _, rec := range plan.Recommendations {
		if rec.Action != domain.ActionBuy {
			continue
		}
		if filled >= d.Cfg.Strategy.MaxBuysPerWeek {
			break
		}
		if _, held := openPositions[rec.Symbol]; held {
			// Portfolio-awareness guard: never double-enter a held symbol,
			// even if a static plan source disagrees.
			continue
		}
		if err := rec.Validate(); err != nil {
			// A malformed BUY can only originate from a user-supplied
			// --plan-file; signal.Generate's own buildBuy always satisfies
			// this invariant. Reject it the same way a sizing rejection is
			// handled, per spec.md §7.
			d.logDebug("rejecting BUY candidate %s: invalid recommendation: %v", rec.Symbol, err)
			continue
		}

		result := sizer.Size(sizer.Input{
			Equity:            equity,
			EntryPrice:        rec.EntryPrice,
			PositionTargetPct: rec.PositionTargetPct,
			AvailableCash:     state.Cash,
			FeePerTrade:       d.Cfg.Risk.FeePerTrade,
		})
		if result.Rejected {
			d.logDebug("rejecting BUY candidate %s: %s", rec.Symbol, result.RejectMsg)
			continue
		}

		engine.RegisterPendingEntry(state, rec.Symbol, rec.EntryPrice, rec.StopLoss, rec.TakeProfit, result.Qty, rec.EntryType, rec.EarliestFillDate, expiresAt)
		filled++
	}
	return nil
}

func (d *Driver) applyManualExits(state *domain.EngineState, plan domain.WeeklyPlan, firstDay time.Time) {
	for _, rec := range plan.Recommendations {
		switch rec.Action {
		case domain.ActionSell:
			bar, ok := d.barOn(rec.Symbol, firstDay)
			if !ok {
				continue
			}
			if err := d.Engine.ForceExitAtMarket(state, rec.Symbol, firstDay, bar.Open, domain.ExitSell); err != nil {
				d.logDebug("manual SELL for %s failed: %v", rec.Symbol, err)
			}
		case domain.ActionReduce:
			if d.Cfg.Run.ExitMode != config.ExitMode4Action {
				continue
			}
			bar, ok := d.barOn(rec.Symbol, firstDay)
			if !ok {
				continue
			}
			if err := d.Engine.ReduceHalf(state, rec.Symbol, firstDay, bar.Open); err != nil {
				d.logDebug("manual REDUCE for %s failed: %v", rec.Symbol, err)
			}
		}
	}
}

func (d *Driver) logDebug(format string, args ...any) {
	if d.Log == nil {
		return
	}
	d.Log.Debugf(format, args...)
}

// firstMonday returns the first ISO-week Monday on or after t.
func firstMonday(t time.Time) time.Time {
	offset := (int(time.Monday) - int(t.Weekday()) + 7) % 7
	y, m, day := t.Date()
	return time.Date(y, m, day, 0, 0, 0, 0, t.Location()).AddDate(0, 0, offset)
}

// unionDates returns the sorted set of distinct dates across all
// symbols' series within [from, to].
func unionDates(history map[string]domain.Series, from, to time.Time) []time.Time {
	set := map[string]time.Time{}
	for _, series := range history {
		for _, b := range series {
			if b.Date.Before(from) || b.Date.After(to) {
				continue
			}
			set[b.Date.Format(dayLayout)] = b.Date
		}
	}
	out := make([]time.Time, 0, len(set))
	for _, t := range set {
		out = append(out, t)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Before(out[j]) })
	return out
}

// daysInRange filters a sorted date slice to [start, end) and never
// beyond cutoff.
func daysInRange(days []time.Time, start, end, cutoff time.Time) []time.Time {
	var out []time.Time
	for _, d := range days {
		if d.Before(start) || !d.Before(end) || d.After(cutoff) {
			continue
		}
		out = append(out, d)
	}
	return out
}
