package provider

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"vnbacktest/internal/domain"
)

// fakeProvider is a hand-written test double (no go.uber.org/mock — see
// SPEC_FULL.md's rationale) that returns canned data or an error per call.
type fakeProvider struct {
	name      string
	history   map[string]domain.Series
	histErr   error
	prices    map[string]float64
	pricesErr error
	calls     int
}

func (f *fakeProvider) Name() string { return f.name }

func (f *fakeProvider) GetDailyHistory(_ context.Context, symbol string, _, _ time.Time) (domain.Series, error) {
	f.calls++
	if f.histErr != nil {
		return nil, f.histErr
	}
	return f.history[symbol], nil
}

func (f *fakeProvider) GetLastPrices(_ context.Context, symbols []string) (map[string]float64, error) {
	f.calls++
	if f.pricesErr != nil {
		return nil, f.pricesErr
	}
	out := make(map[string]float64)
	for _, s := range symbols {
		if p, ok := f.prices[s]; ok {
			out[s] = p
		}
	}
	return out, nil
}

func date(y, m, d int) time.Time {
	return time.Date(y, time.Month(m), d, 0, 0, 0, 0, time.UTC)
}

func TestLoadHistories_TreatsProviderErrorAsEmptyNotFatal(t *testing.T) {
	p := &fakeProvider{name: "f", histErr: errors.New("timeout")}
	var errs []string
	out := LoadHistories(context.Background(), p, []string{"ABC", "XYZ"}, date(2024, 1, 1), date(2024, 1, 31), func(symbol string, err error) {
		errs = append(errs, symbol)
	})

	require.Empty(t, out["ABC"])
	require.Empty(t, out["XYZ"])
	require.ElementsMatch(t, []string{"ABC", "XYZ"}, errs)
}

func TestLoadHistories_ReturnsDataPerSymbol(t *testing.T) {
	p := &fakeProvider{name: "f", history: map[string]domain.Series{
		"ABC": {{Date: date(2024, 1, 1), Open: 1, High: 1, Low: 1, Close: 1}},
	}}
	out := LoadHistories(context.Background(), p, []string{"ABC"}, date(2024, 1, 1), date(2024, 1, 31), nil)
	require.Len(t, out["ABC"], 1)
}

func TestCompositeProvider_FallsThroughOnEmptyResult(t *testing.T) {
	primary := &fakeProvider{name: "primary", history: map[string]domain.Series{}}
	secondary := &fakeProvider{name: "secondary", history: map[string]domain.Series{
		"ABC": {{Date: date(2024, 1, 1), Close: 100}},
	}}
	c := NewCompositeProvider(nil, primary, secondary)

	out, err := c.GetDailyHistory(context.Background(), "ABC", date(2024, 1, 1), date(2024, 1, 31))

	require.NoError(t, err)
	require.Len(t, out, 1)
	require.Equal(t, 1, primary.calls)
	require.Equal(t, 1, secondary.calls)
}

func TestCompositeProvider_FallsThroughOnError(t *testing.T) {
	primary := &fakeProvider{name: "primary", histErr: errors.New("down")}
	secondary := &fakeProvider{name: "secondary", history: map[string]domain.Series{
		"ABC": {{Date: date(2024, 1, 1), Close: 100}},
	}}
	c := NewCompositeProvider(nil, primary, secondary)

	out, err := c.GetDailyHistory(context.Background(), "ABC", date(2024, 1, 1), date(2024, 1, 31))

	require.NoError(t, err)
	require.Len(t, out, 1)
}

func TestCompositeProvider_AllProvidersFailReturnsLastErr(t *testing.T) {
	primary := &fakeProvider{name: "primary", histErr: errors.New("down")}
	secondary := &fakeProvider{name: "secondary", histErr: errors.New("also down")}
	c := NewCompositeProvider(nil, primary, secondary)

	out, err := c.GetDailyHistory(context.Background(), "ABC", date(2024, 1, 1), date(2024, 1, 31))

	require.Error(t, err)
	require.Empty(t, out)
}

func TestCompositeProvider_LastPricesFillsGapsFromSecondary(t *testing.T) {
	primary := &fakeProvider{name: "primary", prices: map[string]float64{"ABC": 100}}
	secondary := &fakeProvider{name: "secondary", prices: map[string]float64{"XYZ": 200}}
	c := NewCompositeProvider(nil, primary, secondary)

	out, err := c.GetLastPrices(context.Background(), []string{"ABC", "XYZ"})

	require.NoError(t, err)
	require.Equal(t, 100.0, out["ABC"])
	require.Equal(t, 200.0, out["XYZ"])
}

func TestCacheProvider_SecondCallHitsCacheNotBackingProvider(t *testing.T) {
	backing := &fakeProvider{name: "backing", history: map[string]domain.Series{
		"ABC": {{Date: date(2024, 1, 1), Close: 100}},
	}}
	cache := NewCacheProvider(NewMemoryCacheBackend(), backing)

	from, to := date(2024, 1, 1), date(2024, 1, 31)
	_, err := cache.GetDailyHistory(context.Background(), "ABC", from, to)
	require.NoError(t, err)
	_, err = cache.GetDailyHistory(context.Background(), "ABC", from, to)
	require.NoError(t, err)

	require.Equal(t, 1, backing.calls)
}

func TestCacheProvider_DifferentWindowMissesCache(t *testing.T) {
	backing := &fakeProvider{name: "backing", history: map[string]domain.Series{
		"ABC": {{Date: date(2024, 1, 1), Close: 100}},
	}}
	cache := NewCacheProvider(NewMemoryCacheBackend(), backing)

	_, _ = cache.GetDailyHistory(context.Background(), "ABC", date(2024, 1, 1), date(2024, 1, 31))
	_, _ = cache.GetDailyHistory(context.Background(), "ABC", date(2024, 2, 1), date(2024, 2, 28))

	require.Equal(t, 2, backing.calls)
}

func TestCacheProvider_ErrorIsNotCached(t *testing.T) {
	backing := &fakeProvider{name: "backing", histErr: errors.New("boom")}
	cache := NewCacheProvider(NewMemoryCacheBackend(), backing)

	from, to := date(2024, 1, 1), date(2024, 1, 31)
	_, err1 := cache.GetDailyHistory(context.Background(), "ABC", from, to)
	_, err2 := cache.GetDailyHistory(context.Background(), "ABC", from, to)

	require.Error(t, err1)
	require.Error(t, err2)
	require.Equal(t, 2, backing.calls)
}
