package runtime

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
)

// SignalContext is cancelled by the first SIGINT or SIGTERM so servers can
// drain. A second signal exits at once.
func SignalContext(logger *slog.Logger) (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(context.Background())
	ch := make(chan os.Signal, 2)
	signal.Notify(ch, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		defer signal.Stop(ch)
		select {
		case sig := <-ch:
			logger.Info("shutdown requested", "signal", sig.String())
			cancel()
		case <-ctx.Done():
			return
		}
		select {
		case sig := <-ch:
			logger.Warn("forced exit", "signal", sig.String())
			os.Exit(1)
		case <-ctx.Done():
		}
	}()
	return ctx, cancel
}
