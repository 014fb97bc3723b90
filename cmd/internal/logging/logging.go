// Package logging sets up the process-wide slog handler. The exit func
// reports failure when anything logged at error level, so clip failures
// surface in the exit code without threading a counter through the pipeline.
package logging

import (
	"context"
	"flag"
	"log/slog"
	"os"
	"sync/atomic"
)

func Logging() (exit func()) {
	var logLevel slog.LevelVar
	flag.TextVar(&logLevel, "log-level", &logLevel, "Set the logging level")

	h := &errorTrackingHandler{
		Handler: slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: &logLevel}),
	}

	slog.SetDefault(slog.New(h))
	slog.SetLogLoggerLevel(slog.LevelError)

	return func() {
		if h.sawError.Load() {
			os.Exit(1)
		}
		os.Exit(0)
	}
}

type errorTrackingHandler struct {
	slog.Handler
	sawError atomic.Bool
}

func (h *errorTrackingHandler) Handle(ctx context.Context, r slog.Record) error {
	if r.Level >= slog.LevelError {
		h.sawError.Store(true)
	}
	return h.Handler.Handle(ctx, r)
}
