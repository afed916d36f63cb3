package handlers

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"event-lifecycle-service/internal/lifecycle"
	"event-lifecycle-service/internal/models"
	"event-lifecycle-service/internal/observability"
	"event-lifecycle-service/internal/repositories"
)

// LifecycleService is what the HTTP surface needs from the scheduler.
type LifecycleService interface {
	ScheduleEventEnd(eventID string, endTime time.Time) (bool, error)
	ScheduleEvent(ctx context.Context, eventID string) (time.Time, bool, error)
	CancelEventScheduling(eventID string)
	Reconcile(ctx context.Context) (lifecycle.Summary, error)
	Timers() []lifecycle.Timer
}

// Auditor records audit entries for operator actions.
type Auditor interface {
	Emit(ctx context.Context, level, text, requestID, eventID string, data map[string]any)
}

// LifecycleHandler exposes scheduling triggers and manual reconciliation.
type LifecycleHandler struct {
	service LifecycleService
	auditor Auditor
}

// NewLifecycleHandler builds a LifecycleHandler. auditor may be nil.
func NewLifecycleHandler(service LifecycleService, auditor Auditor) *LifecycleHandler {
	return &LifecycleHandler{service: service, auditor: auditor}
}

type scheduleRequest struct {
	EndTime         *time.Time `json:"end_time"`
	StartTime       *time.Time `json:"start_time"`
	DurationMinutes *int       `json:"duration_minutes"`
}

// ScheduleEvent (re)schedules the end of an event. The end time comes from
// the body or, when the body is empty, from the event store.
func (h *LifecycleHandler) ScheduleEvent(c *gin.Context) {
	eventID := c.Param("event_id")

	var req scheduleRequest
	if c.Request.ContentLength != 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": err.Error()})
			return
		}
	}

	var (
		endTime time.Time
		armed   bool
		err     error
	)
	switch {
	case req.EndTime != nil:
		endTime = *req.EndTime
		armed, err = h.service.ScheduleEventEnd(eventID, endTime)
	case req.StartTime != nil || req.DurationMinutes != nil:
		if req.StartTime == nil || req.DurationMinutes == nil {
			c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": "start_time and duration_minutes go together"})
			return
		}
		if *req.DurationMinutes <= 0 || *req.DurationMinutes > models.MaxDurationMinutes {
			c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": fmt.Sprintf("duration_minutes must be between 1 and %d", models.MaxDurationMinutes)})
			return
		}
		endTime = req.StartTime.Add(time.Duration(*req.DurationMinutes) * time.Minute)
		armed, err = h.service.ScheduleEventEnd(eventID, endTime)
	default:
		endTime, armed, err = h.service.ScheduleEvent(c.Request.Context(), eventID)
	}

	switch {
	case errors.Is(err, repositories.ErrEventNotFound):
		c.JSON(http.StatusNotFound, gin.H{"success": false, "error": "event not found"})
		return
	case errors.Is(err, lifecycle.ErrInvalidDuration), errors.Is(err, lifecycle.ErrBeyondHorizon):
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": err.Error()})
		return
	case errors.Is(err, lifecycle.ErrRegistryStopped):
		c.JSON(http.StatusServiceUnavailable, gin.H{"success": false, "error": err.Error()})
		return
	case err != nil:
		c.JSON(http.StatusInternalServerError, gin.H{"success": false, "error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success":   true,
		"eventId":   eventID,
		"endTime":   endTime.UTC(),
		"scheduled": armed,
		"processed": !armed,
	})
}

// CancelEvent drops the timers of an event deleted before it ended.
func (h *LifecycleHandler) CancelEvent(c *gin.Context) {
	eventID := c.Param("event_id")
	h.service.CancelEventScheduling(eventID)
	c.JSON(http.StatusOK, gin.H{"success": true, "eventId": eventID})
}

func (h *LifecycleHandler) ListTimers(c *gin.Context) {
	timers := h.service.Timers()
	c.JSON(http.StatusOK, gin.H{"success": true, "count": len(timers), "timers": timers})
}

// Reconcile synchronously processes recently ended events.
func (h *LifecycleHandler) Reconcile(c *gin.Context) {
	requestID := requestIDFromContext(c)
	ctx := observability.WithRequestID(c.Request.Context(), requestID)

	summary, err := h.service.Reconcile(ctx)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"success": false, "error": err.Error()})
		return
	}

	if h.auditor != nil {
		h.auditor.Emit(ctx, "info", "manual reconciliation", requestID, "", map[string]any{
			"processed_count": summary.ProcessedCount,
			"candidates":      len(summary.Results),
		})
	}
	c.JSON(http.StatusOK, gin.H{
		"success":        true,
		"processedCount": summary.ProcessedCount,
		"results":        summary.Results,
	})
}

// Health reports liveness.
func Health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}
