package sizer

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
)

func TestSize_HappyPath(t *testing.T) {
	result := Size(Input{
		Equity:            decimal.NewFromInt(10_000_000),
		EntryPrice:        100,
		PositionTargetPct: 0.10,
		AvailableCash:     decimal.NewFromInt(10_000_000),
	})
	require.False(t, result.Rejected)
	require.Equal(t, int64(10_000), result.Qty)
}

func TestSize_RejectsZeroQuantity(t *testing.T) {
	result := Size(Input{
		Equity:            decimal.NewFromInt(100),
		EntryPrice:        1000,
		PositionTargetPct: 0.03,
		AvailableCash:     decimal.NewFromInt(100),
	})
	require.True(t, result.Rejected)
	require.Equal(t, int64(0), result.Qty)
}

func TestSize_RejectsInsufficientCash(t *testing.T) {
	result := Size(Input{
		Equity:            decimal.NewFromInt(10_000_000),
		EntryPrice:        100,
		PositionTargetPct: 0.10,
		AvailableCash:     decimal.NewFromInt(500_000),
	})
	require.True(t, result.Rejected)
	require.Equal(t, int64(0), result.Qty)
}

func TestSize_NonPositiveEntryPrice(t *testing.T) {
	result := Size(Input{
		Equity:            decimal.NewFromInt(10_000_000),
		EntryPrice:        0,
		PositionTargetPct: 0.10,
		AvailableCash:     decimal.NewFromInt(10_000_000),
	})
	require.True(t, result.Rejected)
}
