// Package provider implements the Provider Interface of spec.md §6: an
// abstract OHLCV price source, with a CSV-file default implementation,
// a fallback chain, and a caching wrapper. Grounded on
// original_source/src/providers/base.py's PriceProvider ABC, translated
// into a Go interface the way the teacher defines its repository
// interfaces (e.g. repository.AdjustedPriceRepository).
package provider

import (
	"context"
	"time"

	"vnbacktest/internal/domain"
)

// Provider is the abstract price source spec.md §6 consumes. Every
// implementation must return bars sorted non-decreasing by date with
// no duplicates; a symbol with no data returns an empty slice, not an
// error, so a single bad symbol never aborts a whole run.
type Provider interface {
	// GetDailyHistory returns symbol's OHLCV history in [from, to], ascending by date.
	GetDailyHistory(ctx context.Context, symbol string, from, to time.Time) (domain.Series, error)
	// GetLastPrices returns the latest close for each symbol that has one. Missing symbols are omitted.
	GetLastPrices(ctx context.Context, symbols []string) (map[string]float64, error)
	// Name identifies the provider for logging, the way original_source's providers carry a `name` class attribute.
	Name() string
}

// LoadHistories fetches history for every symbol in universe, tolerating
// per-symbol provider errors per spec.md §7: a failing symbol is logged
// and treated as empty, not fatal. LoadHistories itself never returns an
// error for partial failures; callers decide whether the all-empty case
// (spec.md's exit code 4) applies.
func LoadHistories(ctx context.Context, p Provider, universe []string, from, to time.Time, onError func(symbol string, err error)) map[string]domain.Series {
	out := make(map[string]domain.Series, len(universe))
	for _, symbol := range universe {
		series, err := p.GetDailyHistory(ctx, symbol, from, to)
		if err != nil {
			if onError != nil {
				onError(symbol, err)
			}
			out[symbol] = domain.Series{}
			continue
		}
		out[symbol] = series
	}
	return out
}
