// Package config loads the strategy/risk/run configuration schema of
// spec.md §6. YAML is the file format (gopkg.in/yaml.v3, already an
// indirect teacher dependency, used directly here); CLI flags in
// cmd/backtest override whatever a --config file sets, the same
// flags-then-file layering the teacher's util.LoadSecrets applies to
// environment-sourced secrets.
package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

type ExitMode string

const (
	ExitModeTPSLOnly ExitMode = "tpsl_only"
	ExitMode3Action  ExitMode = "3action"
	ExitMode4Action  ExitMode = "4action"
)

func (m ExitMode) Valid() bool {
	switch m {
	case ExitModeTPSLOnly, ExitMode3Action, ExitMode4Action:
		return true
	}
	return false
}

type TieBreaker string

const (
	TieBreakWorst TieBreaker = "worst"
	TieBreakBest  TieBreaker = "best"
)

func (t TieBreaker) Valid() bool {
	return t == TieBreakWorst || t == TieBreakBest
}

// Strategy holds the weekly signal generator's indicator/decision
// parameters, spec.md §6.
type Strategy struct {
	MAShort               int     `yaml:"ma_short"`
	MALong                int     `yaml:"ma_long"`
	RSIPeriod             int     `yaml:"rsi_period"`
	ATRPeriod             int     `yaml:"atr_period"`
	ATRStopMult           float64 `yaml:"atr_stop_mult"`
	ATRTargetMult         float64 `yaml:"atr_target_mult"`
	BreakoutVolumeWindow  int     `yaml:"breakout_volume_window"`
	MaxBuysPerWeek        int     `yaml:"max_buys_per_week"`
	MinWeeklyBars         int     `yaml:"min_weekly_bars"`
	CancelPendingAtWeekEnd bool   `yaml:"cancel_pending_at_week_end"`
}

// Risk holds the position sizer's parameters, spec.md §6.
type Risk struct {
	RiskPerTradePct float64 `yaml:"risk_per_trade_pct"`
	MinAllocPct     float64 `yaml:"min_alloc_pct"`
	MaxAllocPct     float64 `yaml:"max_alloc_pct"`
	FeePerTrade     int64   `yaml:"fee_per_trade"`
	MaxOpenPositions int    `yaml:"max_open_positions"` // 0 = no cap; supplemental guardrail
}

// Run holds the run-level knobs: date range, cash, exit policy.
type Run struct {
	InitialCash   int64      `yaml:"initial_cash"`
	OrderSize     int64      `yaml:"order_size"`
	TradesPerWeek int        `yaml:"trades_per_week"`
	TieBreaker    TieBreaker `yaml:"tie_breaker"`
	ExitMode      ExitMode   `yaml:"exit_mode"`
}

type Config struct {
	Strategy Strategy `yaml:"strategy"`
	Risk     Risk     `yaml:"risk"`
	Run      Run      `yaml:"run"`
}

// Default matches spec.md §6's documented defaults exactly.
func Default() Config {
	return Config{
		Strategy: Strategy{
			MAShort:                10,
			MALong:                 30,
			RSIPeriod:              14,
			ATRPeriod:              14,
			ATRStopMult:            1.5,
			ATRTargetMult:          2.5,
			BreakoutVolumeWindow:   14,
			MaxBuysPerWeek:         4,
			MinWeeklyBars:          30,
			CancelPendingAtWeekEnd: true,
		},
		Risk: Risk{
			RiskPerTradePct:  0.01,
			MinAllocPct:      0.03,
			MaxAllocPct:      0.15,
			FeePerTrade:      0,
			MaxOpenPositions: 0,
		},
		Run: Run{
			InitialCash:   10_000_000,
			OrderSize:     1_000_000,
			TradesPerWeek: 4,
			TieBreaker:    TieBreakWorst,
			ExitMode:      ExitModeTPSLOnly,
		},
	}
}

// Load reads a YAML file and overlays it on Default(); a missing path
// is not an error — callers only pass --config when they have one.
func Load(path string) (Config, error) {
	cfg := Default()
	if path == "" {
		return cfg, nil
	}
	bytes, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("failed to read config %s: %w", path, err)
	}
	if err := yaml.Unmarshal(bytes, &cfg); err != nil {
		return cfg, fmt.Errorf("failed to parse config %s: %w", path, err)
	}
	return cfg, nil
}

// Validate fails fast on the startup-time input errors spec.md §7 names:
// unknown tie-breaker or exit mode.
func (c Config) Validate() error {
	if !c.Run.TieBreaker.Valid() {
		return fmt.Errorf("unknown tie_breaker %q", c.Run.TieBreaker)
	}
	if !c.Run.ExitMode.Valid() {
		return fmt.Errorf("unknown exit_mode %q", c.Run.ExitMode)
	}
	if c.Risk.MinAllocPct > c.Risk.MaxAllocPct {
		return fmt.Errorf("risk.min_alloc_pct %.4f exceeds risk.max_alloc_pct %.4f", c.Risk.MinAllocPct, c.Risk.MaxAllocPct)
	}
	return nil
}
