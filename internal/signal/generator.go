// Package signal implements the portfolio-aware weekly signal generator
// of spec.md §4.2. It is a pure function of (market data snapshot,
// open-positions view, config, as-of week start) — the generator never
// touches engine state directly, only the read-only view the week
// driver hands it. Making that view a required parameter is the fix
// for the "stateless signal generator" bug spec.md §9 calls out: the
// source ran this per week without the engine's open positions, so
// held symbols never got SELL/REDUCE signals.
package signal

import (
	"sort"
	"time"

	"vnbacktest/internal/config"
	"vnbacktest/internal/domain"
	"vnbacktest/internal/indicators"
)

const (
	StrategyID      = "trend-momentum-atr"
	StrategyVersion = "1.0.0"
)

type symbolMetrics struct {
	symbol          string
	weekly          []domain.WeeklyBar
	price           float64
	ma10            float64
	ma30            float64
	rsi14           float64
	atr14           float64
	vol14           float64
	prevWeekHigh    float64
	closeT          float64
	volumeT         float64
	ok              bool
}

// Generate produces one WeeklyPlan for asOfWeekStart. marketData must
// already be filtered to date < asOfWeekStart by the caller (the week
// driver) — the lookahead guard lives there, not here, so a bug in this
// package can never leak future bars into a signal.
func Generate(
	marketData map[string]domain.Series,
	openPositions map[string]domain.OpenPositionView,
	cfg config.Config,
	asOfWeekStart time.Time,
) domain.WeeklyPlan {
	plan := domain.WeeklyPlan{
		GeneratedAt:     time.Now(),
		WeekStart:       asOfWeekStart,
		StrategyID:      StrategyID,
		StrategyVersion: StrategyVersion,
	}

	symbols := make([]string, 0, len(marketData))
	for s := range marketData {
		symbols = append(symbols, s)
	}
	sort.Strings(symbols)

	type buyCandidate struct {
		rec   domain.Recommendation
		rsi14 float64
	}
	var buyCandidates []buyCandidate
	var rest []domain.Recommendation

	for _, symbol := range symbols {
		m := computeMetrics(symbol, marketData[symbol], cfg.Strategy)
		if !m.ok {
			continue // insufficient history or NaN indicator: skip, not fatal
		}
		_, held := openPositions[symbol]

		rec, isBuy, emit := decide(m, held, cfg, asOfWeekStart)
		if !emit {
			continue
		}
		if isBuy {
			buyCandidates = append(buyCandidates, buyCandidate{rec: rec, rsi14: m.rsi14})
		} else {
			rest = append(rest, rec)
		}
	}

	// Ordering & tie-break: descending RSI, then ascending stop distance pct.
	sort.SliceStable(buyCandidates, func(i, j int) bool {
		if buyCandidates[i].rsi14 != buyCandidates[j].rsi14 {
			return buyCandidates[i].rsi14 > buyCandidates[j].rsi14
		}
		return stopDistancePct(buyCandidates[i].rec) < stopDistancePct(buyCandidates[j].rec)
	})
	if limit := cfg.Strategy.MaxBuysPerWeek; limit > 0 && len(buyCandidates) > limit {
		buyCandidates = buyCandidates[:limit]
	}

	for _, c := range buyCandidates {
		plan.Recommendations = append(plan.Recommendations, c.rec)
	}
	plan.Recommendations = append(plan.Recommendations, orderRest(rest)...)

	return plan
}

// orderRest sorts the non-BUY recommendations HOLD, REDUCE, SELL, WATCH
// per spec.md §3's documented plan ordering.
func orderRest(recs []domain.Recommendation) []domain.Recommendation {
	rank := map[domain.Action]int{
		domain.ActionHold:   0,
		domain.ActionReduce: 1,
		domain.ActionSell:   2,
		domain.ActionWatch:  3,
	}
	sort.SliceStable(recs, func(i, j int) bool {
		return rank[recs[i].Action] < rank[recs[j].Action]
	})
	return recs
}

func stopDistancePct(r domain.Recommendation) float64 {
	if r.EntryPrice == 0 {
		return 0
	}
	return (r.EntryPrice - r.StopLoss) / r.EntryPrice
}

func computeMetrics(symbol string, daily domain.Series, scfg config.Strategy) symbolMetrics {
	weekly := indicators.WeeklyResample(daily)
	if len(weekly) < scfg.MinWeeklyBars {
		return symbolMetrics{}
	}

	closes := make([]float64, len(weekly))
	volumes := make([]float64, len(weekly))
	for i, w := range weekly {
		closes[i] = w.Close
		volumes[i] = w.Volume
	}

	ma10, ok1 := indicators.SMA(closes, scfg.MAShort)
	ma30, ok2 := indicators.SMA(closes, scfg.MALong)
	vol14, ok3 := indicators.SMA(volumes, scfg.BreakoutVolumeWindow)
	rsiSeries := indicators.RSI(closes, scfg.RSIPeriod)
	atrSeries := indicators.ATR(weekly, scfg.ATRPeriod)

	if !ok1 || !ok2 || !ok3 || len(rsiSeries) == 0 || len(atrSeries) == 0 {
		return symbolMetrics{}
	}

	last := len(weekly) - 1
	m := symbolMetrics{
		symbol:       symbol,
		weekly:       weekly,
		price:        closes[last],
		ma10:         ma10,
		ma30:         ma30,
		rsi14:        rsiSeries[len(rsiSeries)-1],
		atr14:        atrSeries[len(atrSeries)-1],
		vol14:        vol14,
		closeT:       weekly[last].Close,
		volumeT:      weekly[last].Volume,
		ok:           true,
	}
	if last-1 >= 0 {
		m.prevWeekHigh = weekly[last-1].High
	}
	return m
}

func decide(m symbolMetrics, held bool, cfg config.Config, asOfWeekStart time.Time) (domain.Recommendation, bool, bool) {
	trendUp := m.price > m.ma10 && m.ma10 > m.ma30
	trendWeakening := m.ma30 < m.price && m.price <= m.ma10
	trendDown := m.price <= m.ma30
	rsiBullish := m.rsi14 >= 50
	rsiOverbought := m.rsi14 >= 70

	breakoutConfirmed := m.closeT >= m.prevWeekHigh &&
		m.volumeT >= m.vol14 &&
		trendUp && rsiBullish && !rsiOverbought &&
		m.prevWeekHigh > 0

	switch {
	case breakoutConfirmed && !held:
		entry := m.prevWeekHigh * 1.001
		fillDate := nextMonday(asOfWeekStart)
		return buildBuy(m, entry, entry, entry, domain.EntryBreakout, &fillDate, cfg), true, true

	case trendUp && !rsiOverbought && !held && !breakoutConfirmed:
		hi := m.price - 0.5*m.atr14
		lo := m.price - 1.0*m.atr14
		entry := (hi + lo) / 2
		return buildBuy(m, entry, lo, hi, domain.EntryPullback, nil, cfg), true, true

	case trendUp && held:
		return hold(m.symbol, "trend up, position held"), false, true

	case trendWeakening && held:
		if cfg.Run.ExitMode == config.ExitMode4Action {
			return domain.Recommendation{
				Symbol:    m.symbol,
				Action:    domain.ActionReduce,
				EntryType: domain.EntryNone,
				Rationale: "trend weakening: price below short MA but above long MA",
			}, false, true
		}
		return hold(m.symbol, "trend weakening but exit mode does not reduce"), false, true

	case trendDown && held:
		return domain.Recommendation{
			Symbol:    m.symbol,
			Action:    domain.ActionSell,
			EntryType: domain.EntryNone,
			Rationale: "trend down, exiting held position",
		}, false, true

	default:
		// contradictory state (e.g. held but would re-BUY) collapses to
		// HOLD so the plan never duplicates a position; symbols with
		// nothing actionable are omitted rather than watched, to keep
		// plans small — WATCH is reserved for explicit near-miss cases,
		// none of which this decision table currently emits.
		if held {
			return hold(m.symbol, "no actionable change"), false, true
		}
		return domain.Recommendation{}, false, false
	}
}

func hold(symbol, rationale string) domain.Recommendation {
	return domain.Recommendation{
		Symbol:    symbol,
		Action:    domain.ActionHold,
		EntryType: domain.EntryNone,
		Rationale: rationale,
	}
}

func buildBuy(m symbolMetrics, entry, zoneLow, zoneHigh float64, entryType domain.EntryType, earliestFill *time.Time, cfg config.Config) domain.Recommendation {
	stop := entry - cfg.Strategy.ATRStopMult*m.atr14
	target := entry + cfg.Strategy.ATRTargetMult*m.atr14
	stopDistPct := (entry - stop) / entry

	targetPct := cfg.Risk.RiskPerTradePct / stopDistPct
	if targetPct < cfg.Risk.MinAllocPct {
		targetPct = cfg.Risk.MinAllocPct
	}
	if targetPct > cfg.Risk.MaxAllocPct {
		targetPct = cfg.Risk.MaxAllocPct
	}

	rationale := "trend up, momentum confirmed"
	if entryType == domain.EntryBreakout {
		rationale = "breakout confirmed above prior week high on volume"
	}

	return domain.Recommendation{
		Symbol:            m.symbol,
		Action:            domain.ActionBuy,
		EntryType:         entryType,
		EntryPrice:        entry,
		BuyZoneLow:        zoneLow,
		BuyZoneHigh:       zoneHigh,
		StopLoss:          stop,
		TakeProfit:        target,
		PositionTargetPct: targetPct,
		EarliestFillDate:  earliestFill,
		Rationale:         rationale,
	}
}

func nextMonday(weekStart time.Time) time.Time {
	return weekStart.AddDate(0, 0, 7)
}
