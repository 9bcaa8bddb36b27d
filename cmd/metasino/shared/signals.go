package shared

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/charmbracelet/log"
)

// SignalContext returns a context cancelled on SIGINT or SIGTERM. The
// returned stop function releases the signal handler and cancels the
// context; cancellation through stop or parent is not logged.
func SignalContext(parent context.Context, logger *log.Logger) (context.Context, context.CancelFunc) {
	ctx, stop := signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)

	stopLog := context.AfterFunc(ctx, func() {
		if parent.Err() == nil {
			logger.Info("Received signal, shutting down gracefully")
		}
	})

	return ctx, func() {
		stopLog()
		stop()
	}
}
