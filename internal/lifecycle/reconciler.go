package lifecycle

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"event-lifecycle-service/internal/repositories"
)

// DefaultReconcileWindow bounds how far back a reconciliation run looks.
const DefaultReconcileWindow = 2 * time.Hour

// ReconcileResult is one event touched by a reconciliation run.
type ReconcileResult struct {
	Result
	Error string `json:"error,omitempty"`
}

// Summary is the outcome of one reconciliation run.
type Summary struct {
	ProcessedCount int               `json:"processedCount"`
	Results        []ReconcileResult `json:"results"`
}

// Reconciler re-runs processing for recently ended events that still own a
// conversation, independently of the in-memory timers.
type Reconciler struct {
	events   repositories.EventRepository
	runner   Runner
	window   time.Duration
	interval time.Duration
	logger   *zap.Logger
	now      func() time.Time

	mu   sync.Mutex
	cron *cron.Cron
}

func NewReconciler(events repositories.EventRepository, runner Runner, window, interval time.Duration, logger *zap.Logger) *Reconciler {
	if logger == nil {
		logger = zap.NewNop()
	}
	if window <= 0 {
		window = DefaultReconcileWindow
	}
	return &Reconciler{
		events:   events,
		runner:   runner,
		window:   window,
		interval: interval,
		logger:   logger,
		now:      time.Now,
	}
}

// RunOnce processes every event that ended within the window and still has a
// conversation. Per-event failures are reported in the summary.
func (r *Reconciler) RunOnce(ctx context.Context) (Summary, error) {
	summary := Summary{Results: []ReconcileResult{}}
	now := r.now()

	events, err := r.events.ListEndedWithConversation(ctx, now.Add(-r.window), now)
	if err != nil {
		return summary, fmt.Errorf("list ended events: %w", err)
	}

	for _, event := range events {
		result, err := r.runner.Process(ctx, event.ID)
		item := ReconcileResult{Result: result}
		if item.EventName == "" {
			item.EventName = event.Name
			item.EndTime = event.EndTime()
		}
		if err != nil {
			item.Error = err.Error()
			r.logger.Error("reconcile: processing failed", zap.String("event_id", event.ID), zap.Error(err))
		} else if result.Found {
			summary.ProcessedCount++
		}
		summary.Results = append(summary.Results, item)
	}

	if len(events) > 0 {
		r.logger.Info("reconcile: run finished",
			zap.Int("candidates", len(events)),
			zap.Int("processed", summary.ProcessedCount))
	}
	return summary, nil
}

// Start runs RunOnce every interval. A non-positive interval disables the
// periodic sweep.
func (r *Reconciler) Start() error {
	if r.interval <= 0 {
		r.logger.Info("reconcile: periodic sweep disabled")
		return nil
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if r.cron != nil {
		return nil
	}

	logger := cronLogger{logger: r.logger}
	c := cron.New(
		cron.WithLogger(logger),
		cron.WithChain(cron.Recover(logger), cron.SkipIfStillRunning(logger)),
	)
	if _, err := c.AddFunc("@every "+r.interval.String(), func() {
		if _, err := r.RunOnce(context.Background()); err != nil {
			r.logger.Error("reconcile: run failed", zap.Error(err))
		}
	}); err != nil {
		return fmt.Errorf("schedule reconciliation: %w", err)
	}
	c.Start()
	r.cron = c
	r.logger.Info("reconcile: periodic sweep started", zap.Duration("interval", r.interval), zap.Duration("window", r.window))
	return nil
}

// Stop halts the periodic sweep and waits for a running pass.
func (r *Reconciler) Stop() {
	r.mu.Lock()
	c := r.cron
	r.cron = nil
	r.mu.Unlock()
	if c == nil {
		return
	}
	<-c.Stop().Done()
}

type cronLogger struct {
	logger *zap.Logger
}

func (l cronLogger) Info(msg string, keysAndValues ...interface{}) {
	l.logger.Sugar().Debugw("cron: "+msg, keysAndValues...)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	l.logger.Sugar().Errorw("cron: "+msg, append(keysAndValues, "error", err)...)
}
