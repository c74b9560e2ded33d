package main

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"vnbacktest/internal/apperr"
	"vnbacktest/internal/logger"
	"vnbacktest/internal/provider"
)

// quoteCmd exercises WebSocketProvider's live-tick path: spec.md §6
// documents get_last_prices as used "for live paths only; not required
// by the simulator" — this subcommand is that live path, a read-only
// quote snapshot with no order routing or execution (spec.md §1's
// live-execution Non-goal stays out of scope).
func quoteCmd() *cobra.Command {
	var feedURL string
	var universePath string
	var wait time.Duration

	cmd := &cobra.Command{
		Use:   "quote",
		Short: "Connect to a live websocket price feed and print the latest tick per symbol",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runQuote(cmd.Context(), feedURL, universePath, wait)
		},
	}
	cmd.Flags().StringVar(&feedURL, "feed-url", "", "websocket URL of the live price feed (required)")
	cmd.Flags().StringVar(&universePath, "universe", "", "newline-separated symbols file; empty uses the builtin default")
	cmd.Flags().DurationVar(&wait, "wait", 5*time.Second, "how long to listen for ticks before printing the snapshot")
	return cmd
}

func runQuote(ctx context.Context, feedURL, universePath string, wait time.Duration) error {
	if feedURL == "" {
		return &exitError{code: 2, err: apperr.InputError{Detail: "--feed-url is required"}}
	}
	log := logger.New()
	defer log.Sync()

	universe, err := loadUniverse(universePath)
	if err != nil {
		return &exitError{code: 2, err: err}
	}

	feed := provider.NewWebSocketProvider(feedURL)
	listenCtx, cancel := context.WithTimeout(ctx, wait)
	defer cancel()
	if err := feed.Connect(listenCtx, universe); err != nil {
		return &exitError{code: 3, err: fmt.Errorf("connecting to live feed: %w", err)}
	}
	<-listenCtx.Done()

	prices, err := feed.GetLastPrices(ctx, universe)
	if err != nil {
		return &exitError{code: 3, err: err}
	}
	if len(prices) == 0 {
		log.Warnw("no ticks received before timeout", "feed_url", feedURL, "wait", wait)
	}

	bytes, err := json.MarshalIndent(prices, "", "  ")
	if err != nil {
		return &exitError{code: 1, err: err}
	}
	fmt.Println(string(bytes))
	return nil
}
