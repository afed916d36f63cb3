package lifecycle

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"event-lifecycle-service/internal/repositories"
)

// Scheduler arms end-of-event timers.
type Scheduler interface {
	Schedule(eventID string, fireAt time.Time) (bool, error)
}

// RecoveryReport counts what a recovery sweep did.
type RecoveryReport struct {
	Scheduled int `json:"scheduled"`
	Processed int `json:"processed"`
	Failed    int `json:"failed"`
}

// Recovery rebuilds in-memory timers after a restart and flushes events that
// ended while the process was down.
type Recovery struct {
	events    repositories.EventRepository
	scheduler Scheduler
	runner    Runner
	lookback  time.Duration
	logger    *zap.Logger
	now       func() time.Time
}

// NewRecovery builds a Recovery. A zero lookback scans every event ever
// created; a positive one ignores events that ended longer ago than that.
func NewRecovery(events repositories.EventRepository, scheduler Scheduler, runner Runner, lookback time.Duration, logger *zap.Logger) *Recovery {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Recovery{
		events:    events,
		scheduler: scheduler,
		runner:    runner,
		lookback:  lookback,
		logger:    logger,
		now:       time.Now,
	}
}

// RecoverAll schedules future ends and processes past ones. Failures of a
// single event are counted and logged; only the listing query aborts.
func (r *Recovery) RecoverAll(ctx context.Context) (RecoveryReport, error) {
	var report RecoveryReport
	now := r.now()

	var endAfter time.Time
	if r.lookback > 0 {
		endAfter = now.Add(-r.lookback)
	}
	events, err := r.events.ListSchedulable(ctx, endAfter)
	if err != nil {
		return report, fmt.Errorf("list schedulable events: %w", err)
	}

	for _, event := range events {
		if !event.HasValidDuration() {
			report.Failed++
			r.logger.Warn("recovery: malformed duration",
				zap.String("event_id", event.ID),
				zap.Int("duration_minutes", event.DurationMinutes))
			continue
		}

		end := event.EndTime()
		if end.After(now) {
			armed, err := r.scheduler.Schedule(event.ID, end)
			switch {
			case err != nil:
				report.Failed++
				r.logger.Error("recovery: scheduling failed",
					zap.String("event_id", event.ID),
					zap.Error(err))
			case armed:
				report.Scheduled++
			default:
				report.Processed++
			}
			continue
		}

		if _, err := r.runner.Process(ctx, event.ID); err != nil {
			report.Failed++
			r.logger.Error("recovery: processing failed",
				zap.String("event_id", event.ID),
				zap.Error(err))
			continue
		}
		report.Processed++
	}

	r.logger.Info("recovery: sweep finished",
		zap.Int("scheduled", report.Scheduled),
		zap.Int("processed", report.Processed),
		zap.Int("failed", report.Failed))
	return report, nil
}
