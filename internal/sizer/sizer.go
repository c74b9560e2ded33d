// Package sizer implements the risk-based position sizer of spec.md
// §4.3: convert a recommendation's position_target_pct into an integer
// share count, rejecting the entry if it would be zero shares or cost
// more than the cash on hand.
package sizer

import (
	"math"

	"github.com/shopspring/decimal"
)

type Input struct {
	Equity            decimal.Decimal
	EntryPrice        float64
	PositionTargetPct float64
	AvailableCash     decimal.Decimal
	FeePerTrade       int64
}

type Result struct {
	Qty       int64
	Cost      decimal.Decimal
	Rejected  bool
	RejectMsg string
}

// Size computes qty = floor(position_target_pct * equity / entry_price).
// Returns a rejected Result (qty 0) rather than an error: sizing
// rejection is a silent, debug-logged failure mode per spec.md §7, not
// a fatal one.
func Size(in Input) Result {
	if in.EntryPrice <= 0 {
		return Result{Rejected: true, RejectMsg: "non-positive entry price"}
	}

	dollars := in.Equity.Mul(decimal.NewFromFloat(in.PositionTargetPct))
	qtyFloat := dollars.Div(decimal.NewFromFloat(in.EntryPrice)).InexactFloat64()
	qty := int64(math.Floor(qtyFloat))

	if qty <= 0 {
		return Result{Rejected: true, RejectMsg: "computed quantity is zero"}
	}

	cost := decimal.NewFromInt(qty).Mul(decimal.NewFromFloat(in.EntryPrice)).Add(decimal.NewFromInt(in.FeePerTrade))
	if cost.GreaterThan(in.AvailableCash) {
		return Result{Rejected: true, RejectMsg: "projected cost exceeds available cash"}
	}

	return Result{Qty: qty, Cost: cost}
}
