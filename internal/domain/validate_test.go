package domain

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestBar_Validate_RejectsOpenOutsideHighLow(t *testing.T) {
	bar := Bar{Date: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC), Open: 105, High: 102, Low: 99, Close: 100, Volume: 1000}
	require.Error(t, bar.Validate())
}

func TestBar_Validate_RejectsNegativeVolume(t *testing.T) {
	bar := Bar{Date: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC), Open: 100, High: 102, Low: 99, Close: 101, Volume: -1}
	require.Error(t, bar.Validate())
}

func TestBar_Validate_AcceptsWellFormedBar(t *testing.T) {
	bar := Bar{Date: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC), Open: 100, High: 102, Low: 99, Close: 101, Volume: 1000}
	require.NoError(t, bar.Validate())
}

func TestRecommendation_Validate_RejectsStopLossAboveEntry(t *testing.T) {
	rec := Recommendation{
		Symbol: "ABC", Action: ActionBuy,
		EntryPrice: 100, BuyZoneHigh: 100,
		StopLoss: 101, TakeProfit: 110,
	}
	require.Error(t, rec.Validate())
}

func TestRecommendation_Validate_RejectsTakeProfitBelowEntry(t *testing.T) {
	rec := Recommendation{
		Symbol: "ABC", Action: ActionBuy,
		EntryPrice: 100, BuyZoneHigh: 100,
		StopLoss: 95, TakeProfit: 99,
	}
	require.Error(t, rec.Validate())
}

func TestRecommendation_Validate_IgnoresNonBuyActions(t *testing.T) {
	rec := Recommendation{Symbol: "ABC", Action: ActionSell, StopLoss: 100, EntryPrice: 50}
	require.NoError(t, rec.Validate())
}
