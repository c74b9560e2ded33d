package logger

import (
	"context"
	"fmt"
	"os"
	"strings"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// binary identifies this process on every log line, the way a
// fleet-wide log aggregator needs a "service" field to separate
// vnbacktest's output from whatever else feeds the same index.
const binary = "vnbacktest"

func New() *zap.SugaredLogger {
	var (
		logger *zap.Logger
		err    error
	)
	opts := []zap.Option{
		zap.AddStacktrace(zap.ErrorLevel),
		// zap.AddCallerSkip(1),
	}

	if strings.ToLower(os.Getenv("BACKTEST_ENV")) == "dev" {
		logger, err = zap.NewDevelopment(opts...)
	} else {
		opts[0] = zap.AddStacktrace(zap.InfoLevel)
		opts = append(opts, zap.Fields(zap.Field{
			Key:    "env",
			Type:   zapcore.StringType,
			String: os.Getenv("BACKTEST_ENV"),
		}))
		logger, err = zap.NewProduction(opts...)
	}

	if err != nil {
		panic(fmt.Errorf("failed to initialize logger: %w", err))
	}

	return logger.Sugar().With(zap.String("service", binary))
}

// WithRunContext stamps the manifest run ID and the resolved exit-mode/
// tie-breaker config as static fields on every subsequent log line, so a
// line from deep inside the engine can be traced back to the manifest.json
// and summary.json it belongs to by run_id alone, without the engine or
// week driver having to accept and thread a run ID through every call.
func WithRunContext(log *zap.SugaredLogger, runID, exitMode, tieBreaker string) *zap.SugaredLogger {
	return log.With(
		zap.String("run_id", runID),
		zap.String("exit_mode", exitMode),
		zap.String("tie_breaker", tieBreaker),
	)
}

const ContextKey = "LOGGER"

func FromContext(ctx context.Context) *zap.SugaredLogger {
	logger, ok := ctx.Value(ContextKey).(*zap.SugaredLogger)
	if !ok {
		logger = New()
		logger.Warn("no logger found in ctx - creating new one")
	}
	return logger
}

func init() {
	logger := New()
	zap.ReplaceGlobals(logger.Desugar())
}
