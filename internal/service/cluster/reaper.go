package cluster

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/robfig/cron/v3"

	"kadali/internal/domain"
)

// Reaper terminates RUNNING clusters that have been idle longer than the
// configured threshold. A cluster's AutoTerminateMinutes overrides the
// default threshold when set.
type Reaper struct {
	svc         *Service
	cron        *cron.Cron
	interval    time.Duration
	idleTimeout time.Duration
	logger      *slog.Logger
}

// NewReaper creates an idle reaper sweeping at the given interval.
func NewReaper(svc *Service, interval, idleTimeout time.Duration, logger *slog.Logger) *Reaper {
	return &Reaper{
		svc:         svc,
		cron:        cron.New(),
		interval:    interval,
		idleTimeout: idleTimeout,
		logger:      logger.With("component", "reaper"),
	}
}

// Start schedules the sweep and starts the cron scheduler.
func (r *Reaper) Start() error {
	spec := fmt.Sprintf("@every %s", r.interval)
	if _, err := r.cron.AddFunc(spec, func() {
		r.Sweep(context.Background())
	}); err != nil {
		return fmt.Errorf("schedule reaper sweep: %w", err)
	}
	r.cron.Start()
	r.logger.Info("idle reaper started", "interval", r.interval, "idle_timeout", r.idleTimeout)
	return nil
}

// Stop gracefully stops the cron scheduler.
func (r *Reaper) Stop() {
	r.cron.Stop()
	r.logger.Info("idle reaper stopped")
}

// Sweep terminates every RUNNING cluster past its idle threshold. One
// cluster's failure does not stop the sweep; failures are retried implicitly
// on the next pass.
func (r *Reaper) Sweep(ctx context.Context) {
	clusters, err := r.svc.repo.ListRunning(ctx)
	if err != nil {
		r.logger.Error("list running clusters", "error", err)
		return
	}

	now := time.Now().UTC()
	for i := range clusters {
		c := &clusters[i]

		threshold := r.idleTimeout
		if c.AutoTerminateMinutes > 0 {
			threshold = time.Duration(c.AutoTerminateMinutes) * time.Minute
		}

		idleSince := c.IdleSince()
		if idleSince.IsZero() || now.Sub(idleSince) <= threshold {
			continue
		}

		if err := r.svc.Terminate(ctx, c.TenantID, c.ClusterID); err != nil {
			// already-terminal races are fine; anything else waits for the next sweep
			if _, ok := err.(*domain.InvalidStateError); ok {
				continue
			}
			r.logger.Warn("reap idle cluster",
				"tenant_id", c.TenantID,
				"cluster_id", c.ClusterID,
				"error", err)
			continue
		}

		r.logger.Info("reaped idle cluster",
			"tenant_id", c.TenantID,
			"cluster_id", c.ClusterID,
			"idle", now.Sub(idleSince).Round(time.Second))
	}
}
