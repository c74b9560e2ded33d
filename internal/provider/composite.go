package provider

import (
	"context"
	"time"

	"go.uber.org/zap"

	"vnbacktest/internal/domain"
)

// CompositeProvider is the fallback chain of SPEC_FULL.md §4, grounded
// on original_source/src/providers/composite_provider.py: try each
// provider in order, first non-empty result wins, every failure is
// logged and the next provider tried.
type CompositeProvider struct {
	Providers []Provider
	Log       *zap.SugaredLogger
}

func NewCompositeProvider(log *zap.SugaredLogger, providers ...Provider) *CompositeProvider {
	return &CompositeProvider{Providers: providers, Log: log}
}

func (c *CompositeProvider) Name() string { return "composite" }

func (c *CompositeProvider) log() *zap.SugaredLogger {
	if c.Log == nil {
		return zap.NewNop().Sugar()
	}
	return c.Log
}

func (c *CompositeProvider) GetDailyHistory(ctx context.Context, symbol string, from, to time.Time) (domain.Series, error) {
	var lastErr error
	for _, p := range c.Providers {
		series, err := p.GetDailyHistory(ctx, symbol, from, to)
		if err != nil {
			lastErr = err
			c.log().Warnw("composite: provider failed", "provider", p.Name(), "symbol", symbol, "error", err)
			continue
		}
		if len(series) > 0 {
			c.log().Infow("composite: provider returned history", "provider", p.Name(), "symbol", symbol, "bars", len(series))
			return series, nil
		}
	}
	return domain.Series{}, lastErr
}

func (c *CompositeProvider) GetLastPrices(ctx context.Context, symbols []string) (map[string]float64, error) {
	remaining := append([]string{}, symbols...)
	result := make(map[string]float64, len(symbols))
	var lastErr error

	for _, p := range c.Providers {
		if len(remaining) == 0 {
			break
		}
		prices, err := p.GetLastPrices(ctx, remaining)
		if err != nil {
			lastErr = err
			c.log().Warnw("composite: provider failed", "provider", p.Name(), "error", err)
			continue
		}
		for symbol, price := range prices {
			result[symbol] = price
		}
		remaining = missing(remaining, prices)
	}
	if len(result) == 0 && lastErr != nil {
		return result, lastErr
	}
	return result, nil
}

func missing(symbols []string, got map[string]float64) []string {
	out := make([]string, 0, len(symbols))
	for _, s := range symbols {
		if _, ok := got[s]; !ok {
			out = append(out, s)
		}
	}
	return out
}
