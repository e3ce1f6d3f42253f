package collector

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"
)

// exit is swapped in tests.
var exit = os.Exit

// SetupSignalHandler creates a context that is cancelled on SIGTERM or SIGINT.
// It also calls the provided shutdown function before cancelling. A second
// signal exits the process without waiting for the final flush.
func SetupSignalHandler(logger *zap.Logger, shutdownFunc func(context.Context)) context.Context {
	if logger == nil {
		logger = zap.NewNop()
	}
	ctx, cancel := context.WithCancel(context.Background())

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGTERM, syscall.SIGINT)

	go func() {
		sig := <-sigCh
		logger.Warn("Received signal, finishing current match and flushing", zap.Stringer("signal", sig))

		if shutdownFunc != nil {
			shutdownFunc(ctx)
		}

		cancel()

		sig = <-sigCh
		logger.Error("Received second signal, forcing exit", zap.Stringer("signal", sig))
		exit(1)
	}()

	return ctx
}
