// Package indicators holds pure, deterministic functions over ordered
// numeric sequences: weekly resampling and the three indicators the
// signal generator needs (SMA, RSI(14), ATR(14)). No I/O, no state.
package indicators

import (
	"time"

	"vnbacktest/internal/domain"
)

// WeeklyResample groups daily bars by ISO (year, week) and emits one
// weekly bar per group with at least one daily bar. Open is the first
// day's open, close is the last day's close, high/low are extrema,
// volume sums. Groups are emitted in date order.
func WeeklyResample(daily domain.Series) []domain.WeeklyBar {
	if len(daily) == 0 {
		return nil
	}
	var weeks []domain.WeeklyBar
	var cur *domain.WeeklyBar
	var curYear, curWeek int

	for _, b := range daily {
		y, w := b.Date.ISOWeek()
		if cur == nil || y != curYear || w != curWeek {
			if cur != nil {
				weeks = append(weeks, *cur)
			}
			ws := mondayOf(b.Date)
			cur = &domain.WeeklyBar{
				WeekStart: ws,
				Open:      b.Open,
				High:      b.High,
				Low:       b.Low,
				Close:     b.Close,
				Volume:    b.Volume,
			}
			curYear, curWeek = y, w
			continue
		}
		if b.High > cur.High {
			cur.High = b.High
		}
		if b.Low < cur.Low {
			cur.Low = b.Low
		}
		cur.Close = b.Close
		cur.Volume += b.Volume
	}
	if cur != nil {
		weeks = append(weeks, *cur)
	}
	return weeks
}

// mondayOf returns the Monday (ISO week start) of the week containing t.
func mondayOf(t time.Time) time.Time {
	offset := int(t.Weekday()) - int(time.Monday)
	if offset < 0 {
		offset += 7
	}
	y, m, d := t.Date()
	day := time.Date(y, m, d, 0, 0, 0, 0, t.Location())
	return day.AddDate(0, 0, -offset)
}

// SMA returns the trailing simple moving average of the last n values of
// closes, or (0, false) if fewer than n values are available.
func SMA(values []float64, n int) (float64, bool) {
	if n <= 0 || len(values) < n {
		return 0, false
	}
	sum := 0.0
	for _, v := range values[len(values)-n:] {
		sum += v
	}
	return sum / float64(n), true
}

// SMASeries computes the SMA(n) at every index where it is defined,
// aligned so out[i] is the mean of values[i:i+n], the window ending at
// values[i+n-1].
func SMASeries(values []float64, n int) []float64 {
	if n <= 0 || len(values) < n {
		return nil
	}
	out := make([]float64, len(values)-n+1)
	sum := 0.0
	for i := 0; i < n; i++ {
		sum += values[i]
	}
	out[0] = sum / float64(n)
	for i := n; i < len(values); i++ {
		sum += values[i] - values[i-n]
		out[i-n+1] = sum / float64(n)
	}
	return out
}

// RSI computes Wilder-smoothed RSI(period) over closes. The first value
// is defined at index == period (spec.md §4.1); returns nil if there are
// not enough closes.
func RSI(closes []float64, period int) []float64 {
	if len(closes) <= period {
		return nil
	}
	gains := make([]float64, 0, len(closes)-1)
	losses := make([]float64, 0, len(closes)-1)
	for i := 1; i < len(closes); i++ {
		diff := closes[i] - closes[i-1]
		if diff > 0 {
			gains = append(gains, diff)
			losses = append(losses, 0)
		} else {
			gains = append(gains, 0)
			losses = append(losses, -diff)
		}
	}

	avgGain, avgLoss := 0.0, 0.0
	for i := 0; i < period; i++ {
		avgGain += gains[i]
		avgLoss += losses[i]
	}
	avgGain /= float64(period)
	avgLoss /= float64(period)

	out := make([]float64, 0, len(gains)-period+1)
	out = append(out, rsiFromAvg(avgGain, avgLoss))

	for i := period; i < len(gains); i++ {
		avgGain = (avgGain*float64(period-1) + gains[i]) / float64(period)
		avgLoss = (avgLoss*float64(period-1) + losses[i]) / float64(period)
		out = append(out, rsiFromAvg(avgGain, avgLoss))
	}
	return out
}

func rsiFromAvg(avgGain, avgLoss float64) float64 {
	if avgLoss == 0 {
		return 100
	}
	rs := avgGain / avgLoss
	return 100 - 100/(1+rs)
}

// ATR computes Wilder-smoothed Average True Range(period) over bars. The
// first value is defined at index == period; returns nil if there are
// not enough bars.
func ATR(bars []domain.WeeklyBar, period int) []float64 {
	if len(bars) <= period {
		return nil
	}
	trs := make([]float64, 0, len(bars)-1)
	for i := 1; i < len(bars); i++ {
		trs = append(trs, trueRange(bars[i], bars[i-1]))
	}

	avg := 0.0
	for i := 0; i < period; i++ {
		avg += trs[i]
	}
	avg /= float64(period)

	out := make([]float64, 0, len(trs)-period+1)
	out = append(out, avg)
	for i := period; i < len(trs); i++ {
		avg = (avg*float64(period-1) + trs[i]) / float64(period)
		out = append(out, avg)
	}
	return out
}

func trueRange(cur, prev domain.WeeklyBar) float64 {
	hl := cur.High - cur.Low
	hc := absf(cur.High - prev.Close)
	lc := absf(cur.Low - prev.Close)
	return maxf(hl, maxf(hc, lc))
}

func absf(x float64) float64 {
	if x < 0 {
		return -x
	}
	return x
}

func maxf(a, b float64) float64 {
	if a > b {
		return a
	}
	return b
}
