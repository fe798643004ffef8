package realtime

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	pubnub "github.com/pubnub/go/v7"
	"github.com/redis/go-redis/v9"

	"lesson-booking/models"
	"lesson-booking/monitoring"
	"lesson-booking/utils"
)

// Broadcaster fans seat-state changes out to the read-side caches and
// push channels: a Redis availability hash per lesson, PubNub messages
// for subscribed clients, and Prometheus metrics. Publishing runs
// behind a circuit breaker so a slow push provider cannot stall
// bookings.
type Broadcaster struct {
	redis   *redis.Client
	pubnub  *pubnub.PubNub
	breaker *utils.CircuitBreaker
}

func NewBroadcaster(redisClient *redis.Client, pn *pubnub.PubNub) *Broadcaster {
	// Publish volume is one message per seat write, far below the
	// default thresholds; trip after 10 requests with half failing
	// inside a 30s window.
	return &Broadcaster{
		redis:   redisClient,
		pubnub:  pn,
		breaker: utils.NewCircuitBreakerWithConfig("pubnub-publish", 10, 30*time.Second, 0.5),
	}
}

func availabilityKey(lessonID string) string {
	return fmt.Sprintf("lesson:availability:%s", lessonID)
}

// AvailabilityChanged refreshes the lesson's availability hash and
// notifies the lesson channel.
func (b *Broadcaster) AvailabilityChanged(ctx context.Context, lesson *models.Lesson) {
	monitoring.SetLessonSeats(lesson.ID, lesson.Capacity, lesson.AvailableSeats)

	if b.redis != nil {
		err := b.redis.HSet(ctx, availabilityKey(lesson.ID),
			"capacity", strconv.Itoa(lesson.Capacity),
			"available_seats", strconv.Itoa(lesson.AvailableSeats),
			"booked_seats", strconv.Itoa(lesson.BookedSeats()),
		).Err()
		if err != nil {
			slog.Warn("availability cache update failed", "lesson_id", lesson.ID, "error", err)
		}
	}

	b.publish(fmt.Sprintf("lesson-%s", lesson.ID), map[string]any{
		"type":            "seat_availability",
		"lesson_id":       lesson.ID,
		"capacity":        lesson.Capacity,
		"available_seats": lesson.AvailableSeats,
	})
}

// LessonDeleted drops the lesson's cached availability and tells
// subscribers the lesson is gone.
func (b *Broadcaster) LessonDeleted(ctx context.Context, lessonID string) {
	monitoring.ClearLessonSeats(lessonID)

	if b.redis != nil {
		if err := b.redis.Del(ctx, availabilityKey(lessonID)).Err(); err != nil {
			slog.Warn("availability cache delete failed", "lesson_id", lessonID, "error", err)
		}
	}

	b.publish(fmt.Sprintf("lesson-%s", lessonID), map[string]any{
		"type":      "lesson_deleted",
		"lesson_id": lessonID,
	})
}

// WriteConflict counts a guarded seat update that lost to a concurrent
// writer.
func (b *Broadcaster) WriteConflict(lessonID string) {
	monitoring.TrackSeatConflict(lessonID)
}

// OrderCompleted records the order metrics and notifies the purchaser's
// channel.
func (b *Broadcaster) OrderCompleted(ctx context.Context, order *models.Order, took time.Duration) {
	monitoring.TrackOrder("completed")
	monitoring.ObserveOrderDuration(took)

	b.publish(fmt.Sprintf("user-%s", order.Email), map[string]any{
		"type":        "order_completed",
		"order_id":    order.ID,
		"reference":   order.Reference,
		"total_price": order.TotalPrice,
		"lessons":     len(order.Lessons),
	})
}

// OrderFailed counts a failed order placement by reason.
func (b *Broadcaster) OrderFailed(reason string) {
	monitoring.TrackOrder(reason)
}

// Availability returns the cached seat state of a lesson. The map is
// empty when the lesson has no cache entry yet.
func (b *Broadcaster) Availability(ctx context.Context, lessonID string) (map[string]string, error) {
	if b.redis == nil {
		return map[string]string{}, nil
	}
	return b.redis.HGetAll(ctx, availabilityKey(lessonID)).Result()
}

func (b *Broadcaster) publish(channel string, message map[string]any) {
	if b.pubnub == nil {
		return
	}

	_, err := b.breaker.Execute(context.Background(), func() (any, error) {
		_, _, err := b.pubnub.Publish().
			Channel(channel).
			Message(message).
			Execute()
		return nil, err
	})
	if err != nil {
		slog.Warn("realtime publish failed", "channel", channel, "error", err)
	}
}
