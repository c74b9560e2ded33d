package main

import (
	"context"
	"fmt"
	"sync"

	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"

	"vnbacktest/internal/config"
	"vnbacktest/internal/domain"
	"vnbacktest/internal/logger"
	"vnbacktest/internal/metrics"
	"vnbacktest/internal/provider"
	"vnbacktest/internal/report"
)

// sweepResult pairs a parameter combination with the summary it produced.
type sweepResult struct {
	RiskPerTradePct float64        `json:"risk_per_trade_pct"`
	MAShort         int            `json:"ma_short"`
	MALong          int            `json:"ma_long"`
	Summary         report.Summary `json:"summary"`
}

func sweepCmd() *cobra.Command {
	f := &runFlags{}
	var riskGrid []float64
	var maShortGrid, maLongGrid []int

	cmd := &cobra.Command{
		Use:   "sweep",
		Short: "Run a parameter sweep over risk_per_trade_pct x ma_short x ma_long and report the best by CAGR",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSweep(cmd.Context(), f, riskGrid, maShortGrid, maLongGrid)
		},
	}
	bindRunFlags(cmd, f)
	cmd.Flags().Float64SliceVar(&riskGrid, "risk-grid", []float64{0.005, 0.01, 0.02}, "risk_per_trade_pct values to sweep")
	cmd.Flags().IntSliceVar(&maShortGrid, "ma-short-grid", []int{5, 10, 20}, "ma_short values to sweep")
	cmd.Flags().IntSliceVar(&maLongGrid, "ma-long-grid", []int{20, 30, 50}, "ma_long values to sweep")
	return cmd
}

func runSweep(ctx context.Context, f *runFlags, riskGrid []float64, maShortGrid, maLongGrid []int) error {
	log := logger.New()
	defer log.Sync()

	cfg, from, to, universe, err := resolveRunInputs(f)
	if err != nil {
		return &exitError{code: 2, err: err}
	}
	log = logger.WithRunContext(log, "sweep", string(cfg.Run.ExitMode), string(cfg.Run.TieBreaker))

	p, err := buildProvider(f, log)
	if err != nil {
		return &exitError{code: 3, err: err}
	}
	history := provider.LoadHistories(ctx, p, universe, from, to, func(symbol string, err error) {
		log.Warnw("provider error during sweep, treating symbol as empty", "symbol", symbol, "error", err)
	})
	if allEmpty(history) {
		return &exitError{code: 4, err: fmt.Errorf("no data for any symbol in universe")}
	}

	planSource, err := loadPlanSource(f)
	if err != nil {
		return &exitError{code: 2, err: err}
	}

	type paramSet struct {
		cfg     config.Config
		risk    float64
		maShort int
		maLong  int
	}
	var grid []paramSet
	for _, risk := range riskGrid {
		for _, maShort := range maShortGrid {
			for _, maLong := range maLongGrid {
				c := cfg
				c.Risk.RiskPerTradePct = risk
				c.Strategy.MAShort = maShort
				c.Strategy.MALong = maLong
				grid = append(grid, paramSet{cfg: c, risk: risk, maShort: maShort, maLong: maLong})
			}
		}
	}

	baseState := domain.NewEngineState(decimal.NewFromInt(cfg.Run.InitialCash))
	rec := metrics.New()

	results := make([]sweepResult, len(grid))
	var wg sync.WaitGroup
	for i, params := range grid {
		wg.Add(1)
		go func(i int, params paramSet) {
			defer wg.Done()
			state := baseState.DeepCopy()
			summary, _, err := runBacktestWithState(state, params.cfg, from, to, history, planSource, log, rec)
			if err != nil {
				log.Warnw("sweep combination failed", "risk", params.risk, "ma_short", params.maShort, "ma_long", params.maLong, "error", err)
				return
			}
			results[i] = sweepResult{RiskPerTradePct: params.risk, MAShort: params.maShort, MALong: params.maLong, Summary: summary}
		}(i, params)
	}
	wg.Wait()

	best := bestByCAGR(results)
	log.Infow("sweep complete", "combinations", len(results), "best_risk", best.RiskPerTradePct, "best_ma_short", best.MAShort, "best_ma_long", best.MALong, "best_cagr", best.Summary.CAGR)
	fmt.Printf("best combination: risk_per_trade_pct=%.4f ma_short=%d ma_long=%d cagr=%.4f\n",
		best.RiskPerTradePct, best.MAShort, best.MALong, best.Summary.CAGR)
	return nil
}

func bestByCAGR(results []sweepResult) sweepResult {
	best := results[0]
	for _, r := range results[1:] {
		if r.Summary.CAGR > best.Summary.CAGR {
			best = r
		}
	}
	return best
}
