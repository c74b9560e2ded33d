package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

type ExitReason string

const (
	ExitTP      ExitReason = "TP"
	ExitSL      ExitReason = "SL"
	ExitSell    ExitReason = "SELL"
	ExitReduce  ExitReason = "REDUCE"
	ExitTimeout ExitReason = "TIMEOUT"
)

// PendingEntry is a BUY accepted by the week driver but not yet filled.
// Destroyed on fill, on expiry, or when the engine cancels it.
type PendingEntry struct {
	Symbol           string
	EntryPrice       float64
	StopLoss         float64
	TakeProfit       float64
	TargetQty        int64
	EntryType        EntryType
	EarliestFillDate *time.Time
	ExpiresAt        time.Time
}

// OpenTrade is a filled, still-open position. Money fields are kept on
// decimal.Decimal's exact grid (never binary float) per spec.md §9.
type OpenTrade struct {
	Symbol      string
	EntryDate   time.Time
	EntryPrice  float64
	Qty         int64
	StopLoss    float64
	TakeProfit  float64
	Cost        decimal.Decimal
	EntryType   EntryType
	RealizedPnl decimal.Decimal
}

// ClosedTrade is an exited position, append-only in EngineState.
type ClosedTrade struct {
	Symbol     string
	EntryDate  time.Time
	EntryPrice float64
	ExitDate   time.Time
	ExitPrice  float64
	Qty        int64
	Reason     ExitReason
	ReturnPct  float64
	PnlVND     decimal.Decimal
	HoldDays   int
}

// EquityPoint is one day's portfolio valuation.
type EquityPoint struct {
	Date               time.Time
	Cash               decimal.Decimal
	OpenPositionsValue decimal.Decimal
	TotalValue         decimal.Decimal
}

// OpenPositionView is the read-only slice of an OpenTrade the portfolio-aware
// signal generator is allowed to see: qty and entry_price, per spec.md §4.2.
type OpenPositionView struct {
	Qty        int64
	EntryPrice float64
}
