// Command backtest runs the weekly-cadence equity backtest of spec.md
// over a CSV-backed price history, producing a summary report and
// per-trade/equity CSVs in a timestamped run directory. Flags follow
// spec.md §6; cobra wiring follows the teacher pack's CLI idiom
// (Xinguang-agentic-coder's cmd/agentic-coder/main.go).
package main

import (
	"errors"
	"fmt"
	"os"
)

// exitError carries one of spec.md §6's exit codes (2 input error, 3
// provider error, 4 no data for the whole universe) out of run().
type exitError struct {
	code int
	err  error
}

func (e *exitError) Error() string { return e.err.Error() }
func (e *exitError) Unwrap() error { return e.err }

func main() {
	root := newRootCmd()
	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		var ee *exitError
		if errors.As(err, &ee) {
			os.Exit(ee.code)
		}
		os.Exit(1)
	}
}
