package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"vnbacktest/internal/config"
	"vnbacktest/internal/domain"
	"vnbacktest/internal/engine"
	"vnbacktest/internal/metrics"
	"vnbacktest/internal/report"
	"vnbacktest/internal/signal"
	"vnbacktest/internal/week"
)

// planFileRecommendation is the on-disk shape of one line of a
// `--plan-file`, kept separate from domain.Recommendation the way
// internal/provider's csvRow is kept separate from domain.Bar: the
// domain type stays free of serialization tags.
type planFileRecommendation struct {
	Symbol            string  `yaml:"symbol"`
	Action            string  `yaml:"action"`
	EntryType         string  `yaml:"entry_type"`
	EntryPrice        float64 `yaml:"entry_price"`
	BuyZoneLow        float64 `yaml:"buy_zone_low"`
	BuyZoneHigh       float64 `yaml:"buy_zone_high"`
	StopLoss          float64 `yaml:"stop_loss"`
	TakeProfit        float64 `yaml:"take_profit"`
	PositionTargetPct float64 `yaml:"position_target_pct"`
	Rationale         string  `yaml:"rationale"`
}

type planFile struct {
	StrategyID      string                   `yaml:"strategy_id"`
	StrategyVersion string                   `yaml:"strategy_version"`
	Recommendations []planFileRecommendation `yaml:"recommendations"`
}

func loadPlanSource(f *runFlags) (week.PlanSource, error) {
	if f.mode != "plan" {
		return week.GeneratorSource{}, nil
	}

	bytes, err := os.ReadFile(f.planFile)
	if err != nil {
		return nil, fmt.Errorf("failed to read plan file %s: %w", f.planFile, err)
	}
	var pf planFile
	if err := yaml.Unmarshal(bytes, &pf); err != nil {
		return nil, fmt.Errorf("failed to parse plan file %s: %w", f.planFile, err)
	}

	plan := domain.WeeklyPlan{
		StrategyID:      pf.StrategyID,
		StrategyVersion: pf.StrategyVersion,
	}
	for _, r := range pf.Recommendations {
		plan.Recommendations = append(plan.Recommendations, domain.Recommendation{
			Symbol:            r.Symbol,
			Action:            domain.Action(r.Action),
			EntryType:         domain.EntryType(r.EntryType),
			EntryPrice:        r.EntryPrice,
			BuyZoneLow:        r.BuyZoneLow,
			BuyZoneHigh:       r.BuyZoneHigh,
			StopLoss:          r.StopLoss,
			TakeProfit:        r.TakeProfit,
			PositionTargetPct: r.PositionTargetPct,
			Rationale:         r.Rationale,
		})
	}
	return week.StaticSource{Plan: plan}, nil
}

func runBacktest(cfg config.Config, from, to time.Time, history map[string]domain.Series, planSource week.PlanSource, log *zap.SugaredLogger, rec *metrics.Recorder) (report.Summary, *domain.EngineState, error) {
	return runBacktestWithState(domain.NewEngineState(decimal.NewFromInt(cfg.Run.InitialCash)), cfg, from, to, history, planSource, log, rec)
}

// runBacktestWithState runs the same simulation as runBacktest but over
// a caller-supplied EngineState, so a parameter sweep can hand each
// goroutine its own domain.EngineState.DeepCopy() rather than share one.
func runBacktestWithState(state *domain.EngineState, cfg config.Config, from, to time.Time, history map[string]domain.Series, planSource week.PlanSource, log *zap.SugaredLogger, rec *metrics.Recorder) (report.Summary, *domain.EngineState, error) {
	eng := engine.New(cfg, log)
	driver := week.New(eng, cfg, log)

	if err := driver.Run(state, history, from, to, planSource); err != nil {
		return report.Summary{}, state, fmt.Errorf("week driver run failed: %w", err)
	}
	if err := report.VerifyEquityInvariant(state.EquityCurve); err != nil {
		return report.Summary{}, state, fmt.Errorf("equity invariant violated: %w", err)
	}

	for _, t := range state.ClosedTrades {
		rec.RecordFill(t.Symbol, string(t.Reason))
	}

	summary := report.Summarize(decimal.NewFromInt(cfg.Run.InitialCash), state.ClosedTrades, state.EquityCurve)
	return summary, state, nil
}

func runSingleMode(ctx context.Context, cfg config.Config, from, to time.Time, history map[string]domain.Series, f *runFlags, outDir string, log *zap.SugaredLogger, rec *metrics.Recorder) error {
	if f.dryRun {
		return printDryRunPlan(cfg, history, from, log)
	}

	planSource, err := loadPlanSource(f)
	if err != nil {
		return &exitError{code: 2, err: err}
	}

	started := time.Now()
	summary, state, err := runBacktest(cfg, from, to, history, planSource, log, rec)
	rec.RecordRunDuration(time.Since(started))
	if err != nil {
		return &exitError{code: 1, err: err}
	}

	if err := writeSummaryJSON(outDir, "summary.json", summary); err != nil {
		return &exitError{code: 1, err: err}
	}
	if err := report.WriteEquityCSV(filepath.Join(outDir, "equity_curve.csv"), state.EquityCurve); err != nil {
		return &exitError{code: 1, err: err}
	}
	if err := report.WriteTradesCSV(filepath.Join(outDir, "trades.csv"), state.ClosedTrades); err != nil {
		return &exitError{code: 1, err: err}
	}
	domain.GetRunProfile(ctx).Add("write_reports")

	log.Infow("run complete", "out_dir", outDir, "final_value", summary.FinalValue.String(), "num_trades", summary.NumTrades)
	return nil
}

func runRangeMode(ctx context.Context, cfg config.Config, from, to time.Time, history map[string]domain.Series, f *runFlags, outDir string, log *zap.SugaredLogger, rec *metrics.Recorder) error {
	planSource, err := loadPlanSource(f)
	if err != nil {
		return &exitError{code: 2, err: err}
	}

	worstCfg, bestCfg := cfg, cfg
	worstCfg.Run.TieBreaker = config.TieBreakWorst
	bestCfg.Run.TieBreaker = config.TieBreakBest

	worstSummary, worstState, err := runBacktest(worstCfg, from, to, history, planSource, log, rec)
	if err != nil {
		return &exitError{code: 1, err: fmt.Errorf("worst tie-breaker run: %w", err)}
	}
	bestSummary, bestState, err := runBacktest(bestCfg, from, to, history, planSource, log, rec)
	if err != nil {
		return &exitError{code: 1, err: fmt.Errorf("best tie-breaker run: %w", err)}
	}

	diff := report.DiffRange(worstSummary, bestSummary)

	if err := writeSummaryJSON(outDir, "summary_worst.json", worstSummary); err != nil {
		return &exitError{code: 1, err: err}
	}
	if err := writeSummaryJSON(outDir, "summary_best.json", bestSummary); err != nil {
		return &exitError{code: 1, err: err}
	}
	if err := writeRangeSummaryJSON(outDir, diff); err != nil {
		return &exitError{code: 1, err: err}
	}
	if err := report.WriteEquityCSV(filepath.Join(outDir, "equity_curve_worst.csv"), worstState.EquityCurve); err != nil {
		return &exitError{code: 1, err: err}
	}
	if err := report.WriteEquityCSV(filepath.Join(outDir, "equity_curve_best.csv"), bestState.EquityCurve); err != nil {
		return &exitError{code: 1, err: err}
	}
	if err := report.WriteTradesCSV(filepath.Join(outDir, "trades_worst.csv"), worstState.ClosedTrades); err != nil {
		return &exitError{code: 1, err: err}
	}
	if err := report.WriteTradesCSV(filepath.Join(outDir, "trades_best.csv"), bestState.ClosedTrades); err != nil {
		return &exitError{code: 1, err: err}
	}
	domain.GetRunProfile(ctx).Add("write_reports")

	log.Infow("range run complete", "out_dir", outDir)
	return nil
}

func printDryRunPlan(cfg config.Config, history map[string]domain.Series, weekStart time.Time, log *zap.SugaredLogger) error {
	snapshot := make(map[string]domain.Series, len(history))
	for symbol, series := range history {
		snapshot[symbol] = series.Before(weekStart)
	}
	plan := signal.Generate(snapshot, map[string]domain.OpenPositionView{}, cfg, weekStart)
	fmt.Print(report.FormatPlanText(plan))
	return nil
}

func writeRangeSummaryJSON(outDir string, diff report.RangeSummary) error {
	bytes, err := json.MarshalIndent(diff, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal range_summary.json: %w", err)
	}
	return os.WriteFile(filepath.Join(outDir, "range_summary.json"), bytes, 0o644)
}
