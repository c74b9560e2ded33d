package domain

import (
	"fmt"
	"sort"
	"time"

	"github.com/shopspring/decimal"
)

// EngineState is the full mutable state of one backtest run. The engine
// owns it exclusively; trades never reference it back (spec.md §9: no
// cyclic ownership). Keyed by symbol for O(1) lookup, at most one open
// trade and one pending entry per symbol, matching the teacher's
// Portfolio.Positions map-by-symbol convention (_examples/sahilsk11-factorbacktest/internal/domain/portfolio.go).
type EngineState struct {
	Cash           decimal.Decimal
	OpenTrades     map[string]*OpenTrade
	PendingEntries map[string]*PendingEntry
	ClosedTrades   []ClosedTrade
	EquityCurve    []EquityPoint

	// LastClose carries forward the most recent close seen for a symbol,
	// so a day with a data gap for a held symbol can still be valued
	// (spec.md §4.4: "data gaps ... are tolerated per-symbol").
	LastClose map[string]float64
}

func NewEngineState(initialCash decimal.Decimal) *EngineState {
	return &EngineState{
		Cash:           initialCash,
		OpenTrades:     map[string]*OpenTrade{},
		PendingEntries: map[string]*PendingEntry{},
		LastClose:      map[string]float64{},
	}
}

// DeepCopy gives each parameter-sweep goroutine its own EngineState
// with no shared mutable state, per spec.md §5.
func (s *EngineState) DeepCopy() *EngineState {
	cp := &EngineState{
		Cash:           s.Cash,
		OpenTrades:     make(map[string]*OpenTrade, len(s.OpenTrades)),
		PendingEntries: make(map[string]*PendingEntry, len(s.PendingEntries)),
		ClosedTrades:   append([]ClosedTrade{}, s.ClosedTrades...),
		EquityCurve:    append([]EquityPoint{}, s.EquityCurve...),
		LastClose:      make(map[string]float64, len(s.LastClose)),
	}
	for symbol, c := range s.LastClose {
		cp.LastClose[symbol] = c
	}
	for symbol, t := range s.OpenTrades {
		tc := *t
		cp.OpenTrades[symbol] = &tc
	}
	for symbol, p := range s.PendingEntries {
		pc := *p
		cp.PendingEntries[symbol] = &pc
	}
	return cp
}

// OpenPositionsView returns the read-only snapshot passed to the signal
// generator: it may see qty and entry_price, nothing else.
func (s *EngineState) OpenPositionsView() map[string]OpenPositionView {
	view := make(map[string]OpenPositionView, len(s.OpenTrades))
	for symbol, t := range s.OpenTrades {
		view[symbol] = OpenPositionView{Qty: t.Qty, EntryPrice: t.EntryPrice}
	}
	return view
}

// OpenPositionsValue sums qty*close across all open trades using the
// supplied day's closes. A missing close for a held symbol is an
// invariant violation: the engine never holds a symbol it has no price
// for on a processed day.
func (s *EngineState) OpenPositionsValue(closes map[string]float64) (decimal.Decimal, error) {
	total := decimal.Zero
	for symbol, t := range s.OpenTrades {
		close, ok := closes[symbol]
		if !ok {
			return decimal.Zero, fmt.Errorf("open positions value: missing close for held symbol %s", symbol)
		}
		total = total.Add(decimal.NewFromFloat(close).Mul(decimal.NewFromInt(t.Qty)))
	}
	return total, nil
}

// TotalValue is cash + open positions value — the invariant the equity
// curve reconstruction test in spec.md §9 checks against the trade log.
func (s *EngineState) TotalValue(closes map[string]float64) (decimal.Decimal, error) {
	opv, err := s.OpenPositionsValue(closes)
	if err != nil {
		return decimal.Zero, err
	}
	return s.Cash.Add(opv), nil
}

// SymbolsLexicographic returns a symbol set in ascending order, the
// deterministic per-phase iteration order spec.md §4.4/§5 require.
func SymbolsLexicographic(m map[string]struct{}) []string {
	out := make([]string, 0, len(m))
	for s := range m {
		out = append(out, s)
	}
	sort.Strings(out)
	return out
}

// RecordEquity appends one EquityPoint, enforcing the monotone-date
// invariant of spec.md §4.4.
func (s *EngineState) RecordEquity(date time.Time, closes map[string]float64) error {
	total, err := s.TotalValue(closes)
	if err != nil {
		return err
	}
	opv, err := s.OpenPositionsValue(closes)
	if err != nil {
		return err
	}
	if n := len(s.EquityCurve); n > 0 {
		last := s.EquityCurve[n-1].Date
		if !date.After(last) {
			return fmt.Errorf("invariant violation: equity date %s does not advance past %s", date.Format("2006-01-02"), last.Format("2006-01-02"))
		}
	}
	s.EquityCurve = append(s.EquityCurve, EquityPoint{
		Date:               date,
		Cash:               s.Cash,
		OpenPositionsValue: opv,
		TotalValue:         total,
	})
	return nil
}
