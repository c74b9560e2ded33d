// Package engine implements the per-day backtest simulation loop of
// spec.md §4.4: fill pending entries on touch, evaluate exits under the
// active mode, apply the same-bar tie-break, update cash/positions,
// record daily equity. The engine is single-threaded, synchronous, and
// holds exclusive ownership of domain.EngineState — no other package
// mutates it.
package engine

import (
	"fmt"
	"sort"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"vnbacktest/internal/config"
	"vnbacktest/internal/domain"
)

type Engine struct {
	ExitMode         config.ExitMode
	TieBreaker       config.TieBreaker
	FeePerTrade      int64
	MaxOpenPositions int
	Log              *zap.SugaredLogger
}

func New(cfg config.Config, log *zap.SugaredLogger) *Engine {
	return &Engine{
		ExitMode:         cfg.Run.ExitMode,
		TieBreaker:       cfg.Run.TieBreaker,
		FeePerTrade:      cfg.Risk.FeePerTrade,
		MaxOpenPositions: cfg.Risk.MaxOpenPositions,
		Log:              log,
	}
}

// InvariantError marks a programming-error-grade failure that must halt
// the simulation, per spec.md §7 ("fatal: abort with a diagnostic
// identifying the symbol and week").
type InvariantError struct {
	Symbol string
	Detail string
}

func (e *InvariantError) Error() string {
	return fmt.Sprintf("invariant violation for %s: %s", e.Symbol, e.Detail)
}

// RegisterPendingEntry stores a BUY recommendation as a pending entry.
// A new BUY for a symbol with an existing pending entry replaces it
// (spec.md §3, PendingEntry).
func RegisterPendingEntry(state *domain.EngineState, symbol string, entryPrice, stopLoss, takeProfit float64, qty int64, entryType domain.EntryType, earliestFill *time.Time, expiresAt time.Time) {
	state.PendingEntries[symbol] = &domain.PendingEntry{
		Symbol:           symbol,
		EntryPrice:       entryPrice,
		StopLoss:         stopLoss,
		TakeProfit:       takeProfit,
		TargetQty:        qty,
		EntryType:        entryType,
		EarliestFillDate: earliestFill,
		ExpiresAt:        expiresAt,
	}
}

// ProcessDay runs the three ordered phases of spec.md §4.4 for one
// trading day: fill pending entries, evaluate exits on already-open
// trades, then record the day's equity point. bars must contain a Bar
// for every symbol currently held or pending for this date; a missing
// bar for a held symbol is tolerated (spec.md §4.4 "failure semantics")
// only in that the symbol is skipped this day, never synthesized.
func (e *Engine) ProcessDay(state *domain.EngineState, date time.Time, bars map[string]domain.Bar) error {
	pendingSymbols := symbolsOf(state.PendingEntries)
	for _, symbol := range pendingSymbols {
		bar, ok := bars[symbol]
		if err := e.fillPending(state, symbol, date, bar, ok); err != nil {
			return err
		}
	}

	openSymbols := symbolsOf(state.OpenTrades)
	for _, symbol := range openSymbols {
		bar, ok := bars[symbol]
		if !ok {
			continue
		}
		if err := e.evaluateExit(state, symbol, date, bar); err != nil {
			return err
		}
	}

	for symbol, bar := range bars {
		state.LastClose[symbol] = bar.Close
	}

	closes := make(map[string]float64, len(state.OpenTrades))
	for symbol := range state.OpenTrades {
		close, ok := state.LastClose[symbol]
		if !ok {
			return &InvariantError{Symbol: symbol, Detail: "no bar ever seen for an open position on a processed day"}
		}
		closes[symbol] = close
	}
	return state.RecordEquity(date, closes)
}

func symbolsOf[T any](m map[string]T) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

func (e *Engine) fillPending(state *domain.EngineState, symbol string, date time.Time, bar domain.Bar, haveBar bool) error {
	pending, ok := state.PendingEntries[symbol]
	if !ok {
		return nil
	}
	if !haveBar {
		e.maybeExpire(state, symbol, date)
		return nil // no bar today for this symbol; stays pending (unless it just expired)
	}

	if pending.EarliestFillDate != nil && date.Before(*pending.EarliestFillDate) {
		e.maybeExpire(state, symbol, date)
		return nil
	}

	touched := bar.Low <= pending.EntryPrice && pending.EntryPrice <= bar.High
	if touched {
		if _, alreadyOpen := state.OpenTrades[symbol]; alreadyOpen {
			return &InvariantError{Symbol: symbol, Detail: "pending entry touched while a position is already open"}
		}
		if e.MaxOpenPositions > 0 && len(state.OpenTrades) >= e.MaxOpenPositions {
			e.logDebug("rejecting fill for %s: max open positions (%d) reached", symbol, e.MaxOpenPositions)
			delete(state.PendingEntries, symbol)
			return nil
		}

		cost := decimal.NewFromInt(pending.TargetQty).Mul(decimal.NewFromFloat(pending.EntryPrice)).Add(decimal.NewFromInt(e.FeePerTrade))
		if cost.GreaterThan(state.Cash) {
			e.logDebug("rejecting fill for %s: cost %s exceeds cash %s", symbol, cost, state.Cash)
			delete(state.PendingEntries, symbol)
			return nil
		}
		if pending.StopLoss >= pending.EntryPrice || pending.EntryPrice >= pending.TakeProfit {
			return &InvariantError{Symbol: symbol, Detail: "pending entry violates stop_loss < entry_price < take_profit"}
		}

		state.Cash = state.Cash.Sub(cost)
		state.OpenTrades[symbol] = &domain.OpenTrade{
			Symbol:     symbol,
			EntryDate:  date,
			EntryPrice: pending.EntryPrice,
			Qty:        pending.TargetQty,
			StopLoss:   pending.StopLoss,
			TakeProfit: pending.TakeProfit,
			Cost:       cost,
			EntryType:  pending.EntryType,
		}
		delete(state.PendingEntries, symbol)
		if state.Cash.IsNegative() {
			return &InvariantError{Symbol: symbol, Detail: "cash went negative on fill"}
		}
		return nil
	}

	e.maybeExpire(state, symbol, date)
	return nil
}

func (e *Engine) maybeExpire(state *domain.EngineState, symbol string, date time.Time) {
	pending, ok := state.PendingEntries[symbol]
	if !ok {
		return
	}
	if !date.Before(pending.ExpiresAt) {
		e.logDebug("cancelling unfilled pending entry for %s at week end", symbol)
		delete(state.PendingEntries, symbol)
	}
}

// evaluateExit applies the no-same-day-exit rule and, in tpsl_only mode,
// the automatic SL/TP touch logic with the configured tie-break.
func (e *Engine) evaluateExit(state *domain.EngineState, symbol string, date time.Time, bar domain.Bar) error {
	trade, ok := state.OpenTrades[symbol]
	if !ok {
		return nil
	}
	if !trade.EntryDate.Before(date) {
		return nil // no same-day entry+exit
	}
	if e.ExitMode != config.ExitModeTPSLOnly {
		return nil // manual signals drive exits in 3action/4action modes
	}

	hitSL := bar.Low <= trade.StopLoss
	hitTP := bar.High >= trade.TakeProfit

	switch {
	case hitSL && hitTP:
		if e.TieBreaker == config.TieBreakWorst {
			return e.closeTrade(state, symbol, date, trade.StopLoss, domain.ExitSL)
		}
		return e.closeTrade(state, symbol, date, trade.TakeProfit, domain.ExitTP)
	case hitSL:
		return e.closeTrade(state, symbol, date, trade.StopLoss, domain.ExitSL)
	case hitTP:
		return e.closeTrade(state, symbol, date, trade.TakeProfit, domain.ExitTP)
	}
	return nil
}

func (e *Engine) closeTrade(state *domain.EngineState, symbol string, exitDate time.Time, exitPrice float64, reason domain.ExitReason) error {
	trade, ok := state.OpenTrades[symbol]
	if !ok {
		return &InvariantError{Symbol: symbol, Detail: "closeTrade called with no open trade"}
	}
	if !exitDate.After(trade.EntryDate) {
		return &InvariantError{Symbol: symbol, Detail: "exit_date does not exceed entry_date"}
	}

	proceeds := decimal.NewFromInt(trade.Qty).Mul(decimal.NewFromFloat(exitPrice)).Sub(decimal.NewFromInt(e.FeePerTrade))
	state.Cash = state.Cash.Add(proceeds)

	pnl := proceeds.Sub(trade.Cost)
	returnPct := (exitPrice - trade.EntryPrice) / trade.EntryPrice

	state.ClosedTrades = append(state.ClosedTrades, domain.ClosedTrade{
		Symbol:     symbol,
		EntryDate:  trade.EntryDate,
		EntryPrice: trade.EntryPrice,
		ExitDate:   exitDate,
		ExitPrice:  exitPrice,
		Qty:        trade.Qty,
		Reason:     reason,
		ReturnPct:  returnPct,
		PnlVND:     pnl,
		HoldDays:   int(exitDate.Sub(trade.EntryDate).Hours() / 24),
	})
	delete(state.OpenTrades, symbol)

	if state.Cash.IsNegative() {
		return &InvariantError{Symbol: symbol, Detail: "cash went negative on exit"}
	}
	return nil
}

// ForceExitAtMarket closes the entire position at a given market price,
// used by the week driver to apply a manual SELL signal (spec.md §4.4).
func (e *Engine) ForceExitAtMarket(state *domain.EngineState, symbol string, date time.Time, price float64, reason domain.ExitReason) error {
	if _, ok := state.OpenTrades[symbol]; !ok {
		return nil // signals for non-held symbols are ignored by the engine
	}
	return e.closeTrade(state, symbol, date, price, reason)
}

// ReduceHalf halves qty (integer floor), realizing PnL on the sold half.
// If the residual quantity would be zero, it coalesces into a full
// SELL instead of leaving a dangling zero-qty position — the choice
// spec.md §9's open question on REDUCE-at-qty==1 resolves in favor of.
func (e *Engine) ReduceHalf(state *domain.EngineState, symbol string, date time.Time, price float64) error {
	trade, ok := state.OpenTrades[symbol]
	if !ok {
		return nil
	}
	half := trade.Qty / 2
	if half <= 0 {
		return e.closeTrade(state, symbol, date, price, domain.ExitSell)
	}
	if !date.After(trade.EntryDate) {
		return &InvariantError{Symbol: symbol, Detail: "reduce exit_date does not exceed entry_date"}
	}

	sold := half
	proceeds := decimal.NewFromInt(sold).Mul(decimal.NewFromFloat(price)).Sub(decimal.NewFromInt(e.FeePerTrade))
	costBasis := decimal.NewFromInt(sold).Mul(decimal.NewFromFloat(trade.EntryPrice))
	pnl := proceeds.Sub(costBasis)

	state.Cash = state.Cash.Add(proceeds)
	trade.Qty -= sold
	trade.RealizedPnl = trade.RealizedPnl.Add(pnl)
	trade.Cost = trade.Cost.Sub(costBasis)

	returnPct := (price - trade.EntryPrice) / trade.EntryPrice
	state.ClosedTrades = append(state.ClosedTrades, domain.ClosedTrade{
		Symbol:     symbol,
		EntryDate:  trade.EntryDate,
		EntryPrice: trade.EntryPrice,
		ExitDate:   date,
		ExitPrice:  price,
		Qty:        sold,
		Reason:     domain.ExitReduce,
		ReturnPct:  returnPct,
		PnlVND:     pnl,
		HoldDays:   int(date.Sub(trade.EntryDate).Hours() / 24),
	})

	if state.Cash.IsNegative() {
		return &InvariantError{Symbol: symbol, Detail: "cash went negative on reduce"}
	}
	return nil
}

func (e *Engine) logDebug(format string, args ...any) {
	if e.Log == nil {
		return
	}
	e.Log.Debugf(format, args...)
}
