package indicators

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"vnbacktest/internal/domain"
)

func date(y, m, d int) time.Time {
	return time.Date(y, time.Month(m), d, 0, 0, 0, 0, time.UTC)
}

func TestWeeklyResample(t *testing.T) {
	daily := domain.Series{
		{Date: date(2024, 1, 1), Open: 10, High: 12, Low: 9, Close: 11, Volume: 100}, // Mon
		{Date: date(2024, 1, 2), Open: 11, High: 13, Low: 10, Close: 12, Volume: 100},
		{Date: date(2024, 1, 3), Open: 12, High: 14, Low: 11, Close: 13, Volume: 100},
		{Date: date(2024, 1, 8), Open: 13, High: 15, Low: 8, Close: 14, Volume: 200}, // next Mon
	}

	weeks := WeeklyResample(daily)
	require.Len(t, weeks, 2)

	require.Equal(t, date(2024, 1, 1), weeks[0].WeekStart)
	require.Equal(t, 10.0, weeks[0].Open)
	require.Equal(t, 14.0, weeks[0].High)
	require.Equal(t, 9.0, weeks[0].Low)
	require.Equal(t, 13.0, weeks[0].Close)
	require.Equal(t, 300.0, weeks[0].Volume)

	require.Equal(t, date(2024, 1, 8), weeks[1].WeekStart)
	require.Equal(t, 200.0, weeks[1].Volume)
}

func TestSMA(t *testing.T) {
	values := []float64{1, 2, 3, 4, 5}

	_, ok := SMA(values, 6)
	require.False(t, ok)

	avg, ok := SMA(values, 3)
	require.True(t, ok)
	require.InDelta(t, 4.0, avg, 1e-9) // (3+4+5)/3
}

func TestSMASeries(t *testing.T) {
	values := []float64{1, 2, 3, 4, 5}
	series := SMASeries(values, 2)
	require.Equal(t, []float64{1.5, 2.5, 3.5, 4.5}, series)
}

func TestRSI_AllGains(t *testing.T) {
	closes := make([]float64, 20)
	for i := range closes {
		closes[i] = float64(i + 1)
	}
	rsi := RSI(closes, 14)
	require.NotEmpty(t, rsi)
	for _, v := range rsi {
		require.InDelta(t, 100.0, v, 1e-9)
	}
}

func TestRSI_InsufficientHistory(t *testing.T) {
	closes := []float64{1, 2, 3}
	require.Nil(t, RSI(closes, 14))
}

func TestATR_InsufficientHistory(t *testing.T) {
	bars := []domain.WeeklyBar{{High: 10, Low: 9, Close: 9.5}}
	require.Nil(t, ATR(bars, 14))
}

func TestATR_Basic(t *testing.T) {
	bars := make([]domain.WeeklyBar, 16)
	price := 100.0
	for i := range bars {
		bars[i] = domain.WeeklyBar{High: price + 2, Low: price - 2, Close: price}
		price += 1
	}
	atr := ATR(bars, 14)
	require.NotEmpty(t, atr)
	for _, v := range atr {
		require.Greater(t, v, 0.0)
	}
}
