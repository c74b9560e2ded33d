package main

import (
	"github.com/spf13/cobra"
)

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "backtest",
		Short: "Simulate a weekly-cadence VND equity trading strategy over historical OHLCV data",
	}
	root.AddCommand(runCmd())
	root.AddCommand(sweepCmd())
	root.AddCommand(quoteCmd())
	return root
}
