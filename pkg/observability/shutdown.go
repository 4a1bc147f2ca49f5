package observability

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"
)

// WaitForSignal blocks until SIGINT or SIGTERM, or until the context is
// cancelled.
func WaitForSignal(ctx context.Context) os.Signal {
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigCh)

	select {
	case sig := <-sigCh:
		return sig
	case <-ctx.Done():
		return nil
	}
}

// Shutdowner is anything that can be stopped with a deadline.
type Shutdowner interface {
	Shutdown(ctx context.Context) error
}

// GracefulShutdown stops components in order within the timeout,
// logging failures instead of aborting so later components still get
// their chance to stop.
func GracefulShutdown(logger *slog.Logger, timeout time.Duration, components map[string]Shutdowner) {
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	for name, component := range components {
		if component == nil {
			continue
		}
		if err := component.Shutdown(ctx); err != nil {
			logger.Error("shutdown failed", slog.String("component", name), slog.String("error", err.Error()))
		} else {
			logger.Info("component stopped", slog.String("component", name))
		}
	}
}
