// Package report implements the Reporter of spec.md §4.6: summary
// metrics over closed trades and the equity curve, per-trade/equity CSV
// writers, a worst-vs-best range-mode diff, and a human-readable plan
// digest. Metrics grounded on the teacher's calculator.CalculateMetrics
// (github.com/montanaflynn/stats for stdev), adapted from EquityPoint
// return series instead of the teacher's factor-portfolio snapshots.
package report

import (
	"fmt"
	"math"

	"github.com/montanaflynn/stats"
	"github.com/shopspring/decimal"

	"vnbacktest/internal/domain"
)

// Summary is the top-level run report of spec.md §4.6.
type Summary struct {
	InitialCash     decimal.Decimal `json:"initial_cash"`
	FinalValue      decimal.Decimal `json:"final_value"`
	TotalReturn     float64         `json:"total_return"`
	CAGR            float64         `json:"cagr"`
	MaxDrawdown     float64         `json:"max_drawdown"`
	WinRate         float64         `json:"win_rate"`
	AvgHoldDays     float64         `json:"avg_hold_days"`
	NumTrades       int             `json:"num_trades"`
	ProfitFactor    float64         `json:"profit_factor"`
	AvgInvestedPct  float64         `json:"avg_invested_pct"`
	AnnualizedStdev float64         `json:"annualized_stdev"`
	SharpeRatio     float64         `json:"sharpe_ratio"`
}

// Summarize computes spec.md §4.6's metrics from a finished run's closed
// trades and daily equity curve. An empty equity curve (empty universe
// or empty date range, spec.md §8) returns a zero-trade summary with
// final_value == initial_cash rather than an error.
func Summarize(initialCash decimal.Decimal, trades []domain.ClosedTrade, curve []domain.EquityPoint) Summary {
	if len(curve) == 0 {
		return Summary{InitialCash: initialCash, FinalValue: initialCash}
	}

	final := curve[len(curve)-1].TotalValue
	initialF := initialCash.InexactFloat64()
	finalF := final.InexactFloat64()

	s := Summary{
		InitialCash: initialCash,
		FinalValue:  final,
		TotalReturn: finalF/initialF - 1,
		NumTrades:   len(trades),
		MaxDrawdown: maxDrawdown(curve),
	}

	days := curve[len(curve)-1].Date.Sub(curve[0].Date).Hours() / 24
	if days > 0 && initialF > 0 {
		s.CAGR = math.Pow(finalF/initialF, 365/days) - 1
	}

	s.WinRate, s.AvgHoldDays, s.ProfitFactor = tradeStats(trades)
	s.AvgInvestedPct = avgInvestedPct(curve)

	returns := dailyReturns(curve)
	if len(returns) >= 2 {
		if stdev, err := stats.StandardDeviationSample(returns); err == nil {
			s.AnnualizedStdev = stdev * math.Sqrt(252)
			if stdev > 0 {
				s.SharpeRatio = (s.CAGR) / s.AnnualizedStdev
			}
		}
	}

	return s
}

func dailyReturns(curve []domain.EquityPoint) []float64 {
	if len(curve) < 2 {
		return nil
	}
	out := make([]float64, 0, len(curve)-1)
	for i := 1; i < len(curve); i++ {
		prev := curve[i-1].TotalValue.InexactFloat64()
		if prev == 0 {
			continue
		}
		cur := curve[i].TotalValue.InexactFloat64()
		out = append(out, cur/prev-1)
	}
	return out
}

func maxDrawdown(curve []domain.EquityPoint) float64 {
	peak := curve[0].TotalValue.InexactFloat64()
	maxDD := 0.0
	for _, p := range curve {
		v := p.TotalValue.InexactFloat64()
		if v > peak {
			peak = v
		}
		if peak <= 0 {
			continue
		}
		dd := (peak - v) / peak
		if dd > maxDD {
			maxDD = dd
		}
	}
	return maxDD
}

func tradeStats(trades []domain.ClosedTrade) (winRate, avgHoldDays, profitFactor float64) {
	if len(trades) == 0 {
		return 0, 0, 0
	}
	wins := 0
	holdSum := 0
	grossGain := 0.0
	grossLoss := 0.0
	for _, t := range trades {
		if t.PnlVND.IsPositive() {
			wins++
			grossGain += t.PnlVND.InexactFloat64()
		} else if t.PnlVND.IsNegative() {
			grossLoss += -t.PnlVND.InexactFloat64()
		}
		holdSum += t.HoldDays
	}
	winRate = float64(wins) / float64(len(trades))
	avgHoldDays = float64(holdSum) / float64(len(trades))
	switch {
	case grossLoss == 0 && grossGain == 0:
		profitFactor = 0
	case grossLoss == 0:
		profitFactor = math.Inf(1)
	default:
		profitFactor = grossGain / grossLoss
	}
	return winRate, avgHoldDays, profitFactor
}

func avgInvestedPct(curve []domain.EquityPoint) float64 {
	sum := 0.0
	n := 0
	for _, p := range curve {
		total := p.TotalValue.InexactFloat64()
		if total <= 0 {
			continue
		}
		sum += p.OpenPositionsValue.InexactFloat64() / total
		n++
	}
	if n == 0 {
		return 0
	}
	return sum / float64(n)
}

// RangeSummary is the worst-vs-best comparison spec.md §4.6's
// `--run-range` mode emits, plus an element-wise diff.
type RangeSummary struct {
	Worst Summary `json:"worst"`
	Best  Summary `json:"best"`
	Diff  Summary `json:"diff"`
}

// DiffRange computes best-minus-worst for every numeric field, the
// `range_summary.json` payload of spec.md §6.
func DiffRange(worst, best Summary) RangeSummary {
	return RangeSummary{
		Worst: worst,
		Best:  best,
		Diff: Summary{
			FinalValue:      best.FinalValue.Sub(worst.FinalValue),
			TotalReturn:     best.TotalReturn - worst.TotalReturn,
			CAGR:            best.CAGR - worst.CAGR,
			MaxDrawdown:     best.MaxDrawdown - worst.MaxDrawdown,
			WinRate:         best.WinRate - worst.WinRate,
			AvgHoldDays:     best.AvgHoldDays - worst.AvgHoldDays,
			NumTrades:       best.NumTrades - worst.NumTrades,
			ProfitFactor:    best.ProfitFactor - worst.ProfitFactor,
			AvgInvestedPct:  best.AvgInvestedPct - worst.AvgInvestedPct,
			AnnualizedStdev: best.AnnualizedStdev - worst.AnnualizedStdev,
			SharpeRatio:     best.SharpeRatio - worst.SharpeRatio,
		},
	}
}

// VerifyEquityInvariant checks the universal invariant of spec.md §8:
// every point's total equals cash plus open-positions value, and the
// sequence is strictly increasing in date.
func VerifyEquityInvariant(curve []domain.EquityPoint) error {
	for i, p := range curve {
		want := p.Cash.Add(p.OpenPositionsValue)
		if !want.Equal(p.TotalValue) {
			return fmt.Errorf("equity point %s: total %s != cash+open_positions_value %s", p.Date.Format("2006-01-02"), p.TotalValue, want)
		}
		if i > 0 && !p.Date.After(curve[i-1].Date) {
			return fmt.Errorf("equity point %s does not strictly follow %s", p.Date.Format("2006-01-02"), curve[i-1].Date.Format("2006-01-02"))
		}
		if p.Cash.IsNegative() {
			return fmt.Errorf("equity point %s: negative cash %s", p.Date.Format("2006-01-02"), p.Cash)
		}
	}
	return nil
}
