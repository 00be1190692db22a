package scheduler

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"emailtoics/src-server/model"
	"emailtoics/src-server/utils"

	"github.com/robfig/cron/v3"
)

// Delete every pending invite older than the configured TTL.
func SweepOnce(ctx context.Context, as *utils.AppState, now time.Time) (int64, error) {
	start := time.Now()
	n, err := model.DeleteExpiredPendingInvites(ctx, as.BunDB, as.Config.GetPendingTTL(), now)
	if err != nil {
		return 0, err
	}
	as.MetricChans.Report(as.MetricChans.DatabaseWrite, float64(time.Since(start).Microseconds()))
	return n, nil
}

// Run SweepOnce on the PENDING_SWEEP_CRON schedule until graceful shutdown.
func PendingSweep(as *utils.AppState) error {
	c := cron.New()
	if _, err := c.AddFunc(as.Config.GetPendingSweepCron(), func() {
		n, err := SweepOnce(context.Background(), as, time.Now())
		if err != nil {
			slog.Error("PendingSweep: can't delete expired invites", "error", err)
			return
		}
		if n > 0 {
			slog.Info("PendingSweep: expired invites deleted", "count", n)
		}
	}); err != nil {
		return fmt.Errorf("PendingSweep: %w", err)
	}

	gracefulShutdownCh := as.CreateGracefulShutdownChan()
	c.Start()
	go func() {
		<-*gracefulShutdownCh
		<-c.Stop().Done()
		slog.Debug("PendingSweep: stopped")
	}()
	return nil
}
