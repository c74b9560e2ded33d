package domain

import (
	"fmt"
	"time"
)

type Action string

const (
	ActionBuy    Action = "BUY"
	ActionHold   Action = "HOLD"
	ActionReduce Action = "REDUCE"
	ActionSell   Action = "SELL"
	ActionWatch  Action = "WATCH"
)

type EntryType string

const (
	EntryBreakout EntryType = "breakout"
	EntryPullback EntryType = "pullback"
	EntryNone     EntryType = "none"
)

// Recommendation is one symbol's weekly signal output. See spec.md §3.
type Recommendation struct {
	Symbol            string
	Action            Action
	EntryType         EntryType
	EntryPrice        float64
	BuyZoneLow        float64
	BuyZoneHigh       float64
	StopLoss          float64
	TakeProfit        float64
	PositionTargetPct float64
	EarliestFillDate  *time.Time
	Rationale         string
}

// Validate enforces the BUY invariant from spec.md §3.
func (r Recommendation) Validate() error {
	if r.Action != ActionBuy {
		return nil
	}
	if !(r.StopLoss < r.EntryPrice && r.EntryPrice <= r.BuyZoneHigh) {
		return fmt.Errorf("recommendation %s: stop_loss %.4f < entry_price %.4f <= buy_zone_high %.4f violated", r.Symbol, r.StopLoss, r.EntryPrice, r.BuyZoneHigh)
	}
	if !(r.TakeProfit > r.EntryPrice) {
		return fmt.Errorf("recommendation %s: take_profit %.4f must exceed entry_price %.4f", r.Symbol, r.TakeProfit, r.EntryPrice)
	}
	return nil
}

// WeeklyPlan is the generator's full output for one week, ordered
// BUY, HOLD, REDUCE, SELL, WATCH per spec.md §3.
type WeeklyPlan struct {
	GeneratedAt     time.Time
	WeekStart       time.Time
	StrategyID      string
	StrategyVersion string
	Recommendations []Recommendation
}
