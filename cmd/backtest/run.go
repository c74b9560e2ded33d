package main

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"vnbacktest/internal/apperr"
	"vnbacktest/internal/config"
	"vnbacktest/internal/domain"
	"vnbacktest/internal/logger"
	"vnbacktest/internal/manifest"
	"vnbacktest/internal/metrics"
	"vnbacktest/internal/provider"
	"vnbacktest/internal/report"
	"vnbacktest/internal/util"
)

const isoDate = "2006-01-02"

var defaultUniverse = []string{"HPG", "VNM", "FPT", "MWG", "VCB"}

// runFlags mirrors spec.md §6's CLI surface.
type runFlags struct {
	from          string
	to            string
	initialCash   int64
	orderSize     int64
	tradesPerWeek int
	universePath  string
	mode          string
	planFile      string
	tieBreaker    string
	exitMode      string
	runRange      bool
	configPath    string
	dataDir       string
	outDir        string
	cacheBackend  string
	redisAddr     string
	metricsAddr   string
	dryRun        bool
	dataBackend   string
	clickhouseDSN string
}

func runCmd() *cobra.Command {
	f := &runFlags{}
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run a single backtest over a date range",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runOnce(cmd.Context(), f)
		},
	}
	bindRunFlags(cmd, f)
	return cmd
}

func bindRunFlags(cmd *cobra.Command, f *runFlags) {
	cmd.Flags().StringVar(&f.from, "from", "", "start date YYYY-MM-DD (required)")
	cmd.Flags().StringVar(&f.to, "to", "", "end date YYYY-MM-DD (required)")
	cmd.Flags().Int64Var(&f.initialCash, "initial-cash", 10_000_000, "starting cash in VND")
	cmd.Flags().Int64Var(&f.orderSize, "order-size", 1_000_000, "order size in VND; recorded in the run config and manifest only, sizing is always risk-based and does not read it")
	cmd.Flags().IntVar(&f.tradesPerWeek, "trades-per-week", 4, "max buys accepted per week")
	cmd.Flags().StringVar(&f.universePath, "universe", "", "newline-separated symbols file (# comments allowed); empty uses the builtin default")
	cmd.Flags().StringVar(&f.mode, "mode", "generate", "generate|plan")
	cmd.Flags().StringVar(&f.planFile, "plan-file", "", "static plan YAML file, required with --mode plan")
	cmd.Flags().StringVar(&f.tieBreaker, "tie-breaker", "worst", "worst|best")
	cmd.Flags().StringVar(&f.exitMode, "exit-mode", "tpsl_only", "tpsl_only|3action|4action")
	cmd.Flags().BoolVar(&f.runRange, "run-range", false, "run both tie-breakers and emit a comparison")
	cmd.Flags().StringVar(&f.configPath, "config", "", "YAML config file overlaid on defaults")
	cmd.Flags().StringVar(&f.dataDir, "data-dir", "data", "directory of <symbol>.csv OHLCV files, used when --data-backend csv")
	cmd.Flags().StringVar(&f.dataBackend, "data-backend", "csv", "csv|clickhouse")
	cmd.Flags().StringVar(&f.clickhouseDSN, "clickhouse-dsn", "", "ClickHouse DSN, required when --data-backend clickhouse")
	cmd.Flags().StringVar(&f.outDir, "out", "", "output directory; default is a timestamped dir under ./runs")
	cmd.Flags().StringVar(&f.cacheBackend, "cache-backend", "memory", "memory|redis")
	cmd.Flags().StringVar(&f.redisAddr, "redis-addr", "localhost:6379", "redis address, used when --cache-backend redis")
	cmd.Flags().StringVar(&f.metricsAddr, "metrics-addr", "", "if set, serve Prometheus /metrics on this address for the run's duration")
	cmd.Flags().BoolVar(&f.dryRun, "dry-run", false, "with --mode generate, print the first week's plan and exit without simulating")
}

func runOnce(ctx context.Context, f *runFlags) error {
	log := logger.New()
	defer log.Sync()

	cfg, from, to, universe, err := resolveRunInputs(f)
	if err != nil {
		return &exitError{code: 2, err: err}
	}

	if f.metricsAddr != "" {
		metricsCtx, cancel := context.WithCancel(ctx)
		defer cancel()
		go func() {
			if err := metrics.Serve(metricsCtx, f.metricsAddr); err != nil {
				log.Warnw("metrics server stopped", "error", err)
			}
		}()
	}
	rec := metrics.New()

	p, err := buildProvider(f, log)
	if err != nil {
		return &exitError{code: 3, err: err}
	}
	profile := domain.NewRunProfile()
	ctx = context.WithValue(ctx, domain.ContextProfileKey, profile)
	history := provider.LoadHistories(ctx, p, universe, from, to, func(symbol string, err error) {
		log.Warnw("provider error, treating symbol as empty", "symbol", symbol, "error", err)
		rec.RecordSkip("provider_error")
	})
	if allEmpty(history) {
		return &exitError{code: 4, err: fmt.Errorf("no data for any symbol in universe")}
	}

	outDir, err := resolveOutDir(f.outDir)
	if err != nil {
		return &exitError{code: 1, err: err}
	}

	profile.Add("load_history")

	m, err := manifest.New(cfg, f.from, f.to, universe, time.Now().UTC())
	if err != nil {
		return &exitError{code: 1, err: err}
	}
	if err := writeManifest(outDir, m); err != nil {
		return &exitError{code: 1, err: err}
	}
	log = logger.WithRunContext(log, m.RunID, string(cfg.Run.ExitMode), string(cfg.Run.TieBreaker))

	var runErr error
	if f.runRange {
		runErr = runRangeMode(ctx, cfg, from, to, history, f, outDir, log, rec)
	} else {
		runErr = runSingleMode(ctx, cfg, from, to, history, f, outDir, log, rec)
	}
	profile.Add("run")
	profile.End()
	if err := writeProfile(outDir, profile); err != nil {
		log.Warnw("failed to write profile.json", "error", err)
	}
	return runErr
}

func writeProfile(outDir string, p *domain.RunProfile) error {
	bytes, err := p.ToJSONBytes()
	if err != nil {
		return err
	}
	return os.WriteFile(filepath.Join(outDir, "profile.json"), bytes, 0o644)
}

func resolveRunInputs(f *runFlags) (config.Config, time.Time, time.Time, []string, error) {
	cfg, err := config.Load(f.configPath)
	if err != nil {
		return cfg, time.Time{}, time.Time{}, nil, err
	}
	applyFlagOverrides(&cfg, f)
	if err := cfg.Validate(); err != nil {
		return cfg, time.Time{}, time.Time{}, nil, err
	}

	if f.from == "" || f.to == "" {
		return cfg, time.Time{}, time.Time{}, nil, apperr.InputError{Detail: "--from and --to are both required"}
	}
	from, err := time.Parse(isoDate, f.from)
	if err != nil {
		return cfg, time.Time{}, time.Time{}, nil, apperr.InputError{Detail: fmt.Sprintf("bad --from: %s", err)}
	}
	to, err := time.Parse(isoDate, f.to)
	if err != nil {
		return cfg, time.Time{}, time.Time{}, nil, apperr.InputError{Detail: fmt.Sprintf("bad --to: %s", err)}
	}
	if !util.DateLte(from, to) {
		return cfg, time.Time{}, time.Time{}, nil, apperr.InputError{Detail: "--from must not be after --to"}
	}

	if f.mode != "generate" && f.mode != "plan" {
		return cfg, time.Time{}, time.Time{}, nil, apperr.InputError{Detail: fmt.Sprintf("unknown --mode %q", f.mode)}
	}
	if f.mode == "plan" && f.planFile == "" {
		return cfg, time.Time{}, time.Time{}, nil, apperr.InputError{Detail: "--plan-file is required with --mode plan"}
	}

	if f.dataBackend != "csv" && f.dataBackend != "clickhouse" {
		return cfg, time.Time{}, time.Time{}, nil, apperr.InputError{Detail: fmt.Sprintf("unknown --data-backend %q", f.dataBackend)}
	}
	if f.dataBackend == "clickhouse" && f.clickhouseDSN == "" {
		return cfg, time.Time{}, time.Time{}, nil, apperr.InputError{Detail: "--clickhouse-dsn is required with --data-backend clickhouse"}
	}

	universe, err := loadUniverse(f.universePath)
	if err != nil {
		return cfg, time.Time{}, time.Time{}, nil, err
	}

	return cfg, from, to, universe, nil
}

func applyFlagOverrides(cfg *config.Config, f *runFlags) {
	cfg.Run.InitialCash = f.initialCash
	cfg.Run.OrderSize = f.orderSize
	cfg.Run.TradesPerWeek = f.tradesPerWeek
	cfg.Run.TieBreaker = config.TieBreaker(f.tieBreaker)
	cfg.Run.ExitMode = config.ExitMode(f.exitMode)
	cfg.Strategy.MaxBuysPerWeek = f.tradesPerWeek
}

func loadUniverse(path string) ([]string, error) {
	if path == "" {
		return defaultUniverse, nil
	}
	file, err := os.Open(path)
	if err != nil {
		return nil, apperr.InputError{Detail: fmt.Sprintf("failed to read universe file %s: %s", path, err)}
	}
	defer file.Close()

	var symbols []string
	scanner := bufio.NewScanner(file)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		symbols = append(symbols, line)
	}
	if err := scanner.Err(); err != nil {
		return nil, apperr.InputError{Detail: fmt.Sprintf("failed to scan universe file %s: %s", path, err)}
	}
	if len(symbols) == 0 {
		return defaultUniverse, nil
	}
	return symbols, nil
}

func buildProvider(f *runFlags, log *zap.SugaredLogger) (provider.Provider, error) {
	var base provider.Provider
	switch f.dataBackend {
	case "clickhouse":
		ch, err := provider.NewClickHouseProvider(f.clickhouseDSN)
		if err != nil {
			return nil, apperr.ProviderError{Detail: fmt.Sprintf("clickhouse connect: %s", err)}
		}
		ch.Log = log
		base = ch
	default:
		csv := provider.NewCSVProvider(f.dataDir)
		csv.Log = log
		base = csv
	}
	composite := provider.NewCompositeProvider(log, base)

	switch f.cacheBackend {
	case "redis":
		return provider.NewCacheProvider(provider.NewRedisCacheBackend(f.redisAddr, 1*time.Hour), composite), nil
	default:
		return provider.NewCacheProvider(provider.NewMemoryCacheBackend(), composite), nil
	}
}

func allEmpty(history map[string]domain.Series) bool {
	for _, series := range history {
		if len(series) > 0 {
			return false
		}
	}
	return true
}

func resolveOutDir(requested string) (string, error) {
	dir := requested
	if dir == "" {
		dir = filepath.Join("runs", time.Now().UTC().Format("20060102-150405"))
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("failed to create output dir %s: %w", dir, err)
	}
	return dir, nil
}

func writeManifest(outDir string, m manifest.Manifest) error {
	bytes, err := m.ToJSON()
	if err != nil {
		return err
	}
	return os.WriteFile(filepath.Join(outDir, "manifest.json"), bytes, 0o644)
}

func writeSummaryJSON(outDir, name string, s report.Summary) error {
	bytes, err := json.MarshalIndent(s, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal %s: %w", name, err)
	}
	return os.WriteFile(filepath.Join(outDir, name), bytes, 0o644)
}
