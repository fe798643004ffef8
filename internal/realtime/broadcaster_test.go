package realtime

import (
	"context"
	"errors"
	"testing"

	"github.com/go-redis/redismock/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"lesson-booking/models"
)

func cachedLesson() *models.Lesson {
	return &models.Lesson{
		ID:             "lesson1",
		Name:           "Go for Beginners",
		Capacity:       10,
		AvailableSeats: 7,
		Participants:   []models.Participant{{Email: "amy@school.test", Seats: 3}},
	}
}

func TestBroadcaster_AvailabilityChanged_WritesCache(t *testing.T) {
	db, mock := redismock.NewClientMock()
	b := NewBroadcaster(db, nil)

	mock.ExpectHSet("lesson:availability:lesson1",
		"capacity", "10",
		"available_seats", "7",
		"booked_seats", "3",
	).SetVal(3)

	b.AvailabilityChanged(context.Background(), cachedLesson())

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestBroadcaster_AvailabilityChanged_SurvivesRedisError(t *testing.T) {
	db, mock := redismock.NewClientMock()
	b := NewBroadcaster(db, nil)

	mock.ExpectHSet("lesson:availability:lesson1",
		"capacity", "10",
		"available_seats", "7",
		"booked_seats", "3",
	).SetErr(errors.New("connection refused"))

	// Cache failures are logged, never propagated into the booking path
	b.AvailabilityChanged(context.Background(), cachedLesson())

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestBroadcaster_LessonDeleted_DropsCache(t *testing.T) {
	db, mock := redismock.NewClientMock()
	b := NewBroadcaster(db, nil)

	mock.ExpectDel("lesson:availability:lesson1").SetVal(1)

	b.LessonDeleted(context.Background(), "lesson1")

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestBroadcaster_Availability_ReadsCache(t *testing.T) {
	db, mock := redismock.NewClientMock()
	b := NewBroadcaster(db, nil)

	mock.ExpectHGetAll("lesson:availability:lesson1").SetVal(map[string]string{
		"capacity":        "10",
		"available_seats": "7",
		"booked_seats":    "3",
	})

	seats, err := b.Availability(context.Background(), "lesson1")
	require.NoError(t, err)
	assert.Equal(t, "7", seats["available_seats"])
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestBroadcaster_Availability_ColdCache(t *testing.T) {
	db, mock := redismock.NewClientMock()
	b := NewBroadcaster(db, nil)

	mock.ExpectHGetAll("lesson:availability:missing").SetVal(map[string]string{})

	seats, err := b.Availability(context.Background(), "missing")
	require.NoError(t, err)
	assert.Empty(t, seats)
}

func TestBroadcaster_NilClientsAreSafe(t *testing.T) {
	b := NewBroadcaster(nil, nil)
	ctx := context.Background()

	b.AvailabilityChanged(ctx, cachedLesson())
	b.LessonDeleted(ctx, "lesson1")
	b.WriteConflict("lesson1")
	b.OrderFailed("invalid")

	seats, err := b.Availability(ctx, "lesson1")
	require.NoError(t, err)
	assert.Empty(t, seats)
}
