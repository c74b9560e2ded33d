package provider

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/ClickHouse/clickhouse-go/v2"
	"go.uber.org/zap"

	"vnbacktest/internal/domain"
)

// ClickHouseProvider is the optional historical-bar backend of
// SPEC_FULL.md §4, grounded on Junivor-DoAn-Finpull's
// pkg/clickhouse/client.go connection-pool pattern and
// Mrhb33-backtest's go-services/services/clickhouse query style. Reads
// from a `bars(symbol, date, open, high, low, close, volume)` table;
// schema management is out of scope the way persistence layers are
// for the teacher's migrations.
type ClickHouseProvider struct {
	db  *sql.DB
	Log *zap.SugaredLogger
}

func NewClickHouseProvider(dsn string) (*ClickHouseProvider, error) {
	db, err := sql.Open("clickhouse", dsn)
	if err != nil {
		return nil, fmt.Errorf("clickhouse open: %w", err)
	}
	db.SetMaxOpenConns(10)
	db.SetConnMaxLifetime(5 * time.Minute)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("clickhouse ping: %w", err)
	}
	return &ClickHouseProvider{db: db}, nil
}

func (p *ClickHouseProvider) Name() string { return "clickhouse" }

func (p *ClickHouseProvider) Close() error { return p.db.Close() }

func (p *ClickHouseProvider) log() *zap.SugaredLogger {
	if p.Log == nil {
		return zap.NewNop().Sugar()
	}
	return p.Log
}

func (p *ClickHouseProvider) GetDailyHistory(ctx context.Context, symbol string, from, to time.Time) (domain.Series, error) {
	rows, err := p.db.QueryContext(ctx, `
		SELECT date, open, high, low, close, volume
		FROM bars
		WHERE symbol = ? AND date >= ? AND date <= ?
		ORDER BY date ASC
	`, symbol, from.Format(csvDateLayout), to.Format(csvDateLayout))
	if err != nil {
		return nil, fmt.Errorf("clickhouse query %s: %w", symbol, err)
	}
	defer rows.Close()

	var out domain.Series
	for rows.Next() {
		var bar domain.Bar
		if err := rows.Scan(&bar.Date, &bar.Open, &bar.High, &bar.Low, &bar.Close, &bar.Volume); err != nil {
			return nil, fmt.Errorf("clickhouse scan %s: %w", symbol, err)
		}
		if err := bar.Validate(); err != nil {
			p.log().Warnw("dropping malformed bar", "symbol", symbol, "error", err)
			continue
		}
		out = append(out, bar)
	}
	return out, rows.Err()
}

func (p *ClickHouseProvider) GetLastPrices(ctx context.Context, symbols []string) (map[string]float64, error) {
	out := make(map[string]float64, len(symbols))
	for _, symbol := range symbols {
		var close float64
		err := p.db.QueryRowContext(ctx, `
			SELECT close FROM bars WHERE symbol = ? ORDER BY date DESC LIMIT 1
		`, symbol).Scan(&close)
		if err != nil {
			continue
		}
		out[symbol] = close
	}
	return out, nil
}
