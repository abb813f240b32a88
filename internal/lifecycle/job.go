// internal/lifecycle/job.go
package lifecycle

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"
)

// StartScheduledRuns runs the supervisor every interval until ctx ends.
// A zero interval leaves scheduling to an external cron.
func StartScheduledRuns(ctx context.Context, svc Service, interval, timeout time.Duration, logger *zap.Logger) {
	if interval <= 0 {
		return
	}
	logger = logger.Named("scheduler")
	ticker := time.NewTicker(interval)
	go func() {
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				tickCtx, cancel := ctx, context.CancelFunc(func() {})
				if timeout > 0 {
					tickCtx, cancel = context.WithTimeout(ctx, timeout)
				}
				summary, err := svc.Run(tickCtx)
				cancel()
				if errors.Is(err, ErrRunInProgress) {
					logger.Info("skipping tick, previous run still in progress")
					continue
				}
				if err != nil {
					logger.Error("scheduled run failed", zap.Error(err))
					continue
				}
				logger.Info("scheduled run finished", zap.Int("sent", summary.NotificationsSent))
			}
		}
	}()
}
