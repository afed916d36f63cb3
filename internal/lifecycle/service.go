package lifecycle

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"event-lifecycle-service/internal/repositories"
)

// MaxScheduleHorizon is the furthest ahead an event end may be scheduled.
const MaxScheduleHorizon = 2 * 365 * 24 * time.Hour

var (
	ErrInvalidDuration  = errors.New("event duration out of range")
	ErrBeyondHorizon    = errors.New("end time beyond scheduling horizon")
	ErrAlreadyRecovered = errors.New("recovery already ran")
)

// Service is the entry point other components use to drive event lifecycles.
type Service struct {
	events     repositories.EventRepository
	registry   *Registry
	recovery   *Recovery
	reconciler *Reconciler
	logger     *zap.Logger
	now        func() time.Time
	recovered  atomic.Bool
}

func NewService(events repositories.EventRepository, registry *Registry, recovery *Recovery, reconciler *Reconciler, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{
		events:     events,
		registry:   registry,
		recovery:   recovery,
		reconciler: reconciler,
		logger:     logger,
		now:        time.Now,
	}
}

// ScheduleEventEnd (re)arms the end-of-event timers. Past end times are
// processed before it returns and a processing failure is returned. It
// reports whether timers were armed.
func (s *Service) ScheduleEventEnd(eventID string, endTime time.Time) (bool, error) {
	if endTime.After(s.now().Add(MaxScheduleHorizon)) {
		return false, fmt.Errorf("%w: %s", ErrBeyondHorizon, eventID)
	}
	armed, err := s.registry.Schedule(eventID, endTime)
	if err != nil {
		return false, fmt.Errorf("schedule %s: %w", eventID, err)
	}
	s.logger.Info("lifecycle: event end scheduled",
		zap.String("event_id", eventID),
		zap.Time("end_time", endTime),
		zap.Bool("armed", armed))
	return armed, nil
}

// ScheduleEvent loads the event and schedules its computed end time.
func (s *Service) ScheduleEvent(ctx context.Context, eventID string) (time.Time, bool, error) {
	event, err := s.events.GetEvent(ctx, eventID)
	if err != nil {
		return time.Time{}, false, err
	}
	if !event.HasValidDuration() {
		return time.Time{}, false, fmt.Errorf("%w: %s", ErrInvalidDuration, eventID)
	}
	end := event.EndTime()
	armed, err := s.ScheduleEventEnd(eventID, end)
	return end, armed, err
}

// CancelEventScheduling drops any timer for eventID.
func (s *Service) CancelEventScheduling(eventID string) {
	s.registry.Cancel(eventID)
	s.logger.Info("lifecycle: event scheduling cancelled", zap.String("event_id", eventID))
}

// RecoverAll runs the startup sweep. It may only run once per process.
func (s *Service) RecoverAll(ctx context.Context) (RecoveryReport, error) {
	if !s.recovered.CompareAndSwap(false, true) {
		return RecoveryReport{}, ErrAlreadyRecovered
	}
	return s.recovery.RecoverAll(ctx)
}

// Reconcile runs one reconciliation pass synchronously.
func (s *Service) Reconcile(ctx context.Context) (Summary, error) {
	return s.reconciler.RunOnce(ctx)
}

func (s *Service) Timers() []Timer {
	return s.registry.Entries()
}
