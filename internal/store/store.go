// Package store is the persistence collaborator of the capacity engine.
// It exposes find/insert/delete primitives, a guarded conditional update
// for seat state, and a transaction scope with all-or-nothing
// visibility. The production implementation sits on PocketBase records;
// tests substitute an in-memory double.
package store

import (
	"context"

	"lesson-booking/models"
)

// Expect is the optimistic-concurrency precondition for a lesson write:
// the seat state the caller observed when it read the lesson. A guarded
// update only applies while all of it still matches. Revision is the
// part that defeats counter wraparound: two intervening writes can
// restore the (capacity, available seats) pair a stale writer read, but
// they each bumped the revision, so the stale write still loses and the
// participant list it carries cannot clobber a committed one.
type Expect struct {
	Capacity       int
	AvailableSeats int
	Revision       int
}

// ExpectFor captures the precondition from a freshly read lesson.
func ExpectFor(l *models.Lesson) Expect {
	return Expect{
		Capacity:       l.Capacity,
		AvailableSeats: l.AvailableSeats,
		Revision:       l.SeatRevision,
	}
}

// Store is the persistence surface the capacity engine writes through.
// Implementations must guarantee that UpdateLessonGuarded is a single
// atomic read-check-write, and that WithTransaction rolls every write
// back when the callback returns an error.
type Store interface {
	FindLesson(ctx context.Context, id string) (*models.Lesson, error)
	FindLessons(ctx context.Context) ([]*models.Lesson, error)
	FindLessonsByOwner(ctx context.Context, email string) ([]*models.Lesson, error)
	FindLessonsByParticipant(ctx context.Context, email string) ([]*models.Lesson, error)

	// FindDuplicateLesson looks up a lesson with the same identifying
	// field tuple as l, returning a wrapped status.ErrNotFound when
	// there is none.
	FindDuplicateLesson(ctx context.Context, l *models.Lesson) (*models.Lesson, error)

	InsertLesson(ctx context.Context, l *models.Lesson) (*models.Lesson, error)

	// UpdateLessonGuarded persists every mutable lesson field in one
	// conditional update and reports false, without error, when the
	// precondition no longer holds.
	UpdateLessonGuarded(ctx context.Context, l *models.Lesson, expect Expect) (bool, error)

	DeleteLesson(ctx context.Context, id string) error

	InsertOrder(ctx context.Context, o *models.Order) (*models.Order, error)
	FindOrder(ctx context.Context, id string) (*models.Order, error)
	FindOrders(ctx context.Context) ([]*models.Order, error)

	FindUserByEmail(ctx context.Context, email string) (*models.User, error)

	// WithTransaction runs fn against a Store view whose writes become
	// visible only when fn returns nil; any error rolls all of them
	// back and is returned unchanged.
	WithTransaction(ctx context.Context, fn func(tx Store) error) error
}
