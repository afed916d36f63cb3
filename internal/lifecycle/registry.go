package lifecycle

import (
	"context"
	"errors"
	"math"
	"sync"
	"time"

	"go.uber.org/zap"

	"event-lifecycle-service/internal/observability"
)

// DefaultBackstopWindow is how long after the primary timer the backstop fires.
const DefaultBackstopWindow = time.Hour

// ErrRegistryStopped is returned by Schedule after Stop.
var ErrRegistryStopped = errors.New("timer registry stopped")

// Timer is a snapshot of one armed registry entry.
type Timer struct {
	EventID      string    `json:"eventId"`
	FireAt       time.Time `json:"fireAt"`
	BackstopAt   time.Time `json:"backstopAt"`
	PrimaryFired bool      `json:"primaryFired"`
}

type timerEntry struct {
	generation   uint64
	fireAt       time.Time
	primary      *time.Timer
	backstop     *time.Timer
	primaryFired bool
}

// Registry keeps at most one live schedule per event. Each schedule is a
// primary timer at the end time plus a backstop timer one window later.
type Registry struct {
	runner         Runner
	backstopWindow time.Duration
	logger         *zap.Logger
	now            func() time.Time

	ctx    context.Context
	cancel context.CancelFunc

	mu         sync.Mutex
	entries    map[string]*timerEntry
	generation uint64
	stopped    bool
}

func NewRegistry(runner Runner, backstopWindow time.Duration, logger *zap.Logger) *Registry {
	if logger == nil {
		logger = zap.NewNop()
	}
	if backstopWindow <= 0 {
		backstopWindow = DefaultBackstopWindow
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Registry{
		runner:         runner,
		backstopWindow: backstopWindow,
		logger:         logger,
		now:            time.Now,
		ctx:            ctx,
		cancel:         cancel,
		entries:        make(map[string]*timerEntry),
	}
}

// Schedule replaces any existing schedule for eventID. When fireAt is not in
// the future the event is processed synchronously and nothing is armed; the
// processing error, if any, is returned. It reports whether timers were armed.
func (r *Registry) Schedule(eventID string, fireAt time.Time) (bool, error) {
	delay := fireAt.Sub(r.now())

	r.mu.Lock()
	r.disarmLocked(eventID)
	if r.stopped {
		r.mu.Unlock()
		return false, ErrRegistryStopped
	}
	if delay <= 0 {
		n := len(r.entries)
		r.mu.Unlock()
		observability.SetTimersArmed(n)
		observability.IncTimerFire("immediate")
		return false, r.run(eventID, "immediate")
	}

	r.generation++
	gen := r.generation
	entry := &timerEntry{generation: gen, fireAt: fireAt}
	entry.primary = time.AfterFunc(delay, func() { r.fire(eventID, gen, false) })
	entry.backstop = time.AfterFunc(backstopDelay(delay, r.backstopWindow), func() { r.fire(eventID, gen, true) })
	r.entries[eventID] = entry
	n := len(r.entries)
	r.mu.Unlock()

	observability.SetTimersArmed(n)
	r.logger.Debug("lifecycle: timers armed",
		zap.String("event_id", eventID),
		zap.Time("fire_at", fireAt),
		zap.Duration("delay", delay))
	return true, nil
}

// backstopDelay saturates instead of wrapping negative for far-future ends.
func backstopDelay(delay, window time.Duration) time.Duration {
	if b := delay + window; b >= delay {
		return b
	}
	return time.Duration(math.MaxInt64)
}

// Cancel disarms both timers of eventID. Unknown ids are ignored.
func (r *Registry) Cancel(eventID string) {
	r.mu.Lock()
	removed := r.disarmLocked(eventID)
	n := len(r.entries)
	r.mu.Unlock()

	if removed {
		observability.SetTimersArmed(n)
		r.logger.Debug("lifecycle: timers cancelled", zap.String("event_id", eventID))
	}
}

// Pending returns the live schedule of eventID, if any.
func (r *Registry) Pending(eventID string) (Timer, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	entry, ok := r.entries[eventID]
	if !ok {
		return Timer{}, false
	}
	return r.snapshot(eventID, entry), true
}

// Entries lists every live schedule.
func (r *Registry) Entries() []Timer {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Timer, 0, len(r.entries))
	for id, entry := range r.entries {
		out = append(out, r.snapshot(id, entry))
	}
	return out
}

func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.entries)
}

// Stop disarms all timers and cancels in-flight runs. Later Schedule calls
// are ignored.
func (r *Registry) Stop() {
	r.mu.Lock()
	for id := range r.entries {
		r.disarmLocked(id)
	}
	r.stopped = true
	r.mu.Unlock()

	r.cancel()
	observability.SetTimersArmed(0)
}

func (r *Registry) fire(eventID string, gen uint64, backstop bool) {
	kind := "primary"
	r.mu.Lock()
	entry, ok := r.entries[eventID]
	if !ok || entry.generation != gen {
		r.mu.Unlock()
		return
	}
	if backstop {
		kind = "backstop"
		delete(r.entries, eventID)
	} else {
		entry.primaryFired = true
	}
	n := len(r.entries)
	r.mu.Unlock()

	observability.SetTimersArmed(n)
	observability.IncTimerFire(kind)
	_ = r.run(eventID, kind)
}

func (r *Registry) run(eventID, kind string) error {
	_, err := r.runner.Process(r.ctx, eventID)
	if err != nil {
		r.logger.Error("lifecycle: processing failed",
			zap.String("event_id", eventID),
			zap.String("trigger", kind),
			zap.Error(err))
	}
	return err
}

func (r *Registry) disarmLocked(eventID string) bool {
	entry, ok := r.entries[eventID]
	if !ok {
		return false
	}
	entry.primary.Stop()
	entry.backstop.Stop()
	delete(r.entries, eventID)
	return true
}

func (r *Registry) snapshot(eventID string, entry *timerEntry) Timer {
	return Timer{
		EventID:      eventID,
		FireAt:       entry.fireAt,
		BackstopAt:   entry.fireAt.Add(r.backstopWindow),
		PrimaryFired: entry.primaryFired,
	}
}
