package engine

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/sandboxws/stagesync/pkg/operator"
)

const defaultShutdownTimeout = 30 * time.Second

// RunWithGracefulShutdown runs the engine until its input ends or it fails.
// The first SIGTERM/SIGINT stops the source and lets messages already read
// finish. A second signal, or the timeout expiring, cancels in-flight
// statements and uploads so Run returns.
func RunWithGracefulShutdown(ctx context.Context, engine *Engine, src operator.Source, sink operator.Sink, timeout time.Duration) error {
	if timeout <= 0 {
		timeout = defaultShutdownTimeout
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	sigCh := make(chan os.Signal, 2)
	signal.Notify(sigCh, syscall.SIGTERM, syscall.SIGINT)
	defer signal.Stop(sigCh)

	errCh := make(chan error, 1)
	go func() {
		errCh <- engine.Run(ctx, src, sink)
	}()

	var drain <-chan time.Time
	for {
		select {
		case err := <-errCh:
			return err

		case sig := <-sigCh:
			if drain == nil {
				slog.Info("received shutdown signal, draining", "signal", sig, "timeout", timeout)
				engine.Stop()
				drain = time.After(timeout)
				continue
			}
			slog.Warn("received second shutdown signal, forcing exit", "signal", sig)
			cancel()

		case <-drain:
			slog.Warn("shutdown timeout expired, forcing exit", "timeout", timeout)
			cancel()
		}
	}
}
