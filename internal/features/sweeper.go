package features

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"quinn/internal/metrics"
	"quinn/internal/models"
)

// Sweeper enforces the session time limit even when the candidate stops
// submitting: it periodically completes IN_PROGRESS interviews whose
// startedAt is older than the configured duration.
type Sweeper struct {
	service  *Quinn
	schedule string
	cron     *cron.Cron
	logger   *zap.Logger
}

func NewSweeper(service *Quinn, schedule string, logger *zap.Logger) *Sweeper {
	if schedule == "" {
		schedule = "@every 1m"
	}
	return &Sweeper{
		service:  service,
		schedule: schedule,
		cron:     cron.New(),
		logger:   logger,
	}
}

func (sw *Sweeper) Start() error {
	_, err := sw.cron.AddFunc(sw.schedule, func() {
		if err := sw.Run(context.Background()); err != nil {
			sw.logger.Error("Sweeper run failed", zap.Error(err))
		}
	})
	if err != nil {
		return fmt.Errorf("failed to schedule sweeper: %w", err)
	}
	sw.cron.Start()
	sw.logger.Info("Interview sweeper started", zap.String("schedule", sw.schedule))
	return nil
}

func (sw *Sweeper) Stop() {
	if sw.cron != nil {
		sw.cron.Stop()
		sw.logger.Info("Interview sweeper stopped")
	}
}

// Run performs a single sweep.
func (sw *Sweeper) Run(ctx context.Context) error {
	metrics.SweeperRuns.Inc()
	cutoff := sw.service.now().Add(-sw.service.policy.MaxDuration)
	expired, err := sw.service.repo.Interview.ListExpired(ctx, cutoff)
	if err != nil {
		return err
	}
	for _, interview := range expired {
		if err := sw.service.ForceComplete(ctx, interview.ID, models.CompletionReasonTimeLimit); err != nil {
			sw.logger.Error("Failed to complete expired interview",
				zap.String("interviewId", interview.ID),
				zap.Error(err))
			continue
		}
		sw.logger.Info("Completed expired interview",
			zap.String("interviewId", interview.ID),
			zap.Time("startedAt", derefTime(interview.StartedAt)))
	}
	return nil
}

func derefTime(t *time.Time) time.Time {
	if t == nil {
		return time.Time{}
	}
	return *t
}
