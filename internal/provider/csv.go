package provider

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/gocarina/gocsv"
	"go.uber.org/zap"

	"vnbacktest/internal/apperr"
	"vnbacktest/internal/domain"
)

// csvRow is the on-disk shape of one symbol's history file:
// `<dir>/<symbol>.csv` with header date,open,high,low,close,volume.
type csvRow struct {
	Date   string  `csv:"date"`
	Open   float64 `csv:"open"`
	High   float64 `csv:"high"`
	Low    float64 `csv:"low"`
	Close  float64 `csv:"close"`
	Volume float64 `csv:"volume"`
}

const csvDateLayout = "2006-01-02"

// CSVProvider is the default, offline Provider: one CSV file per symbol
// under Dir. There is no live-price feed behind it, so GetLastPrices
// falls back to each symbol's most recent close on disk.
type CSVProvider struct {
	Dir string
	Log *zap.SugaredLogger
}

func NewCSVProvider(dir string) *CSVProvider {
	return &CSVProvider{Dir: dir}
}

func (p *CSVProvider) Name() string { return "csv" }

func (p *CSVProvider) log() *zap.SugaredLogger {
	if p.Log == nil {
		return zap.NewNop().Sugar()
	}
	return p.Log
}

func (p *CSVProvider) GetDailyHistory(_ context.Context, symbol string, from, to time.Time) (domain.Series, error) {
	path := filepath.Join(p.Dir, symbol+".csv")
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return domain.Series{}, nil
		}
		return nil, apperr.ProviderError{Symbol: symbol, Detail: err.Error()}
	}
	defer f.Close()

	var rows []*csvRow
	if err := gocsv.Unmarshal(f, &rows); err != nil {
		return nil, apperr.ProviderError{Symbol: symbol, Detail: fmt.Sprintf("malformed csv: %s", err)}
	}

	out := make(domain.Series, 0, len(rows))
	for _, r := range rows {
		date, err := time.Parse(csvDateLayout, r.Date)
		if err != nil {
			continue
		}
		if date.Before(from) || date.After(to) {
			continue
		}
		bar := domain.Bar{Date: date, Open: r.Open, High: r.High, Low: r.Low, Close: r.Close, Volume: r.Volume}
		if err := bar.Validate(); err != nil {
			p.log().Warnw("dropping malformed bar", "symbol", symbol, "error", err)
			continue
		}
		out = append(out, bar)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Date.Before(out[j].Date) })
	return out, nil
}

func (p *CSVProvider) GetLastPrices(ctx context.Context, symbols []string) (map[string]float64, error) {
	out := make(map[string]float64, len(symbols))
	for _, symbol := range symbols {
		series, err := p.GetDailyHistory(ctx, symbol, time.Time{}, time.Now())
		if err != nil || len(series) == 0 {
			continue
		}
		out[symbol] = series[len(series)-1].Close
	}
	return out, nil
}
