package services

import (
	"context"
	"log/slog"

	"lesson-booking/internal/status"
	"lesson-booking/internal/store"
	"lesson-booking/models"
)

// EnrollmentService is the single primitive through which seats change
// hands. Both the direct enroll/unenroll endpoints and the order
// coordinator route every seat write through here, so the availability
// checks and the guarded-update discipline cannot diverge between
// callers.
type EnrollmentService struct {
	store   store.Store
	retries int
	events  Events
}

func NewEnrollmentService(st store.Store, retries int, events Events) *EnrollmentService {
	if events == nil {
		events = NopEvents{}
	}
	if retries < 0 {
		retries = 0
	}
	return &EnrollmentService{store: st, retries: retries, events: events}
}

// AddParticipant allocates seats for a participant against the base
// store and announces the availability change on success.
func (s *EnrollmentService) AddParticipant(ctx context.Context, lessonID, email string, seats int) (*models.Lesson, error) {
	lesson, err := s.AddParticipantTx(ctx, s.store, lessonID, email, seats)
	if err != nil {
		return nil, err
	}
	s.events.AvailabilityChanged(ctx, lesson)
	return lesson, nil
}

// AddParticipantTx is the transaction-scoped variant: it writes through
// the caller-supplied store view and leaves event publication to
// whoever owns the enclosing transaction.
//
// The availability check and the participant mutation are collapsed
// into one guarded update, so two concurrent adds that both read the
// same free seat count cannot both win; the loser re-reads fresh state
// and retries.
func (s *EnrollmentService) AddParticipantTx(ctx context.Context, st store.Store, lessonID, email string, seats int) (*models.Lesson, error) {
	if seats < 1 {
		return nil, status.Invalid("seats must be at least 1")
	}

	for attempt := 0; attempt <= s.retries; attempt++ {
		lesson, err := st.FindLesson(ctx, lessonID)
		if err != nil {
			return nil, err
		}
		if lesson.AvailableSeats <= 0 {
			return nil, status.Invalid("no seats available in lesson %q", lesson.Name)
		}
		if lesson.AvailableSeats < seats {
			return nil, status.Invalid("not enough seats in lesson %q, only %d left", lesson.Name, lesson.AvailableSeats)
		}

		expect := store.ExpectFor(lesson)
		lesson.AddSeats(email, seats)

		ok, err := st.UpdateLessonGuarded(ctx, lesson, expect)
		if err != nil {
			return nil, err
		}
		if ok {
			return lesson, nil
		}

		s.events.WriteConflict(lessonID)
		slog.Debug("seat write lost, retrying", "lesson_id", lessonID, "attempt", attempt+1)
	}

	return nil, status.Invalid("seat availability of lesson %s changed, please retry", lessonID)
}

// RemoveParticipant releases seats held by a participant. seats <= 0
// releases the participant's full holding.
func (s *EnrollmentService) RemoveParticipant(ctx context.Context, lessonID, email string, seats int) (*models.Lesson, error) {
	lesson, err := s.removeParticipant(ctx, s.store, lessonID, email, seats)
	if err != nil {
		return nil, err
	}
	s.events.AvailabilityChanged(ctx, lesson)
	return lesson, nil
}

func (s *EnrollmentService) removeParticipant(ctx context.Context, st store.Store, lessonID, email string, seats int) (*models.Lesson, error) {
	for attempt := 0; attempt <= s.retries; attempt++ {
		lesson, err := st.FindLesson(ctx, lessonID)
		if err != nil {
			return nil, err
		}

		idx := lesson.ParticipantIndex(email)
		if idx < 0 {
			return nil, status.Invalid("%s is not enrolled in lesson %q", email, lesson.Name)
		}

		held := lesson.Participants[idx].Seats
		release := seats
		if release <= 0 {
			release = held
		}
		if release > held {
			return nil, status.Invalid("%s holds only %d seat(s) in lesson %q", email, held, lesson.Name)
		}
		if lesson.AvailableSeats+release > lesson.Capacity {
			return nil, status.Invalid("releasing %d seat(s) would exceed the capacity of lesson %q", release, lesson.Name)
		}

		expect := store.ExpectFor(lesson)
		lesson.ReleaseSeats(email, release)

		ok, err := st.UpdateLessonGuarded(ctx, lesson, expect)
		if err != nil {
			return nil, err
		}
		if ok {
			return lesson, nil
		}

		s.events.WriteConflict(lessonID)
	}

	return nil, status.Invalid("seat availability of lesson %s changed, please retry", lessonID)
}
