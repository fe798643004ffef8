package services

import (
	"context"
	"time"

	"lesson-booking/models"
)

// Events is the observability sink injected into the capacity engine.
// The engine itself keeps no process-wide state; everything observable
// (cache sync, realtime publish, metrics) happens behind this interface
// and only after the underlying write committed.
type Events interface {
	// AvailabilityChanged fires after any committed write that changed a
	// lesson's seat state.
	AvailabilityChanged(ctx context.Context, lesson *models.Lesson)

	// LessonDeleted fires after a lesson record was removed.
	LessonDeleted(ctx context.Context, lessonID string)

	// WriteConflict fires when a guarded seat write lost against a
	// concurrent writer and is about to retry.
	WriteConflict(lessonID string)

	// OrderCompleted fires once per committed order.
	OrderCompleted(ctx context.Context, order *models.Order, took time.Duration)

	// OrderFailed fires once per aborted order with a coarse reason.
	OrderFailed(reason string)
}

// NopEvents discards every event. It is the default when no sink is
// wired, and what tests run with.
type NopEvents struct{}

func (NopEvents) AvailabilityChanged(context.Context, *models.Lesson) {}

func (NopEvents) LessonDeleted(context.Context, string) {}

func (NopEvents) WriteConflict(string) {}

func (NopEvents) OrderCompleted(context.Context, *models.Order, time.Duration) {}

func (NopEvents) OrderFailed(string) {}
