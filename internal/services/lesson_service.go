package services

import (
	"context"
	"errors"
	"log/slog"

	"lesson-booking/internal/status"
	"lesson-booking/internal/store"
	"lesson-booking/models"
)

// LessonService owns the lifecycle of a lesson's capacity state:
// creation, field updates (including the embedded student add/remove
// instruction), and deletion.
type LessonService struct {
	store       store.Store
	minCapacity int
	retries     int
	events      Events
}

func NewLessonService(st store.Store, minCapacity, retries int, events Events) *LessonService {
	if events == nil {
		events = NopEvents{}
	}
	if retries < 0 {
		retries = 0
	}
	return &LessonService{store: st, minCapacity: minCapacity, retries: retries, events: events}
}

// CreateLessonInput carries the already shape-validated fields of a new
// lesson. The service still re-checks the numeric invariants since they
// are business rules, not input shape.
type CreateLessonInput struct {
	Name        string
	Topic       string
	Location    string
	Description string
	Image       string
	Price       float64
	Capacity    int
	CreatedBy   string
}

// Create inserts a new lesson with an empty participant list and all
// seats available. Identical resubmissions are rejected so a double
// posted form does not produce two lessons.
func (s *LessonService) Create(ctx context.Context, input CreateLessonInput) (*models.Lesson, error) {
	if input.Capacity < s.minCapacity {
		return nil, status.Invalid("capacity must be at least %d", s.minCapacity)
	}
	if input.Price < 0 {
		return nil, status.Invalid("price cannot be negative")
	}

	if _, err := s.store.FindUserByEmail(ctx, input.CreatedBy); err != nil {
		return nil, err
	}

	lesson := &models.Lesson{
		Name:           input.Name,
		Topic:          input.Topic,
		Location:       input.Location,
		Description:    input.Description,
		Image:          input.Image,
		CreatedBy:      input.CreatedBy,
		Capacity:       input.Capacity,
		AvailableSeats: input.Capacity,
		Price:          input.Price,
		Participants:   []models.Participant{},
	}

	if _, err := s.store.FindDuplicateLesson(ctx, lesson); err == nil {
		return nil, status.Duplicate("an identical lesson already exists")
	} else if !errors.Is(err, status.ErrNotFound) {
		return nil, err
	}

	created, err := s.store.InsertLesson(ctx, lesson)
	if err != nil {
		return nil, err
	}

	s.events.AvailabilityChanged(ctx, created)
	return created, nil
}

// StudentInstruction is the embedded participant mutation a lesson
// update may carry. Seats is required for "add" and ignored for
// "remove", where the student's full current holding is released.
type StudentInstruction struct {
	Action string
	Email  string
	Seats  int
}

const (
	StudentActionAdd    = "add"
	StudentActionRemove = "remove"
)

// LessonPatch is a partial lesson update. Nil fields are left
// untouched.
type LessonPatch struct {
	Name           *string
	Topic          *string
	Location       *string
	Description    *string
	Image          *string
	Price          *float64
	Capacity       *int
	AvailableSeats *int
	Student        *StudentInstruction
}

// Update applies a partial update, keeping capacity, available seats
// and the participant list consistent with each other. All field
// changes land in one guarded write keyed on the seat state observed at
// read time; a losing writer retries against fresh state.
func (s *LessonService) Update(ctx context.Context, id string, patch LessonPatch) (*models.Lesson, error) {
	if st := patch.Student; st != nil {
		switch st.Action {
		case StudentActionAdd:
			if st.Seats < 1 {
				return nil, status.Invalid("student seats must be at least 1")
			}
		case StudentActionRemove:
		default:
			return nil, status.Invalid("unknown student action %q", st.Action)
		}
		if _, err := s.store.FindUserByEmail(ctx, st.Email); err != nil {
			return nil, err
		}
	}
	if patch.Capacity != nil && *patch.Capacity < s.minCapacity {
		return nil, status.Invalid("capacity must be at least %d", s.minCapacity)
	}
	if patch.Price != nil && *patch.Price < 0 {
		return nil, status.Invalid("price cannot be negative")
	}

	for attempt := 0; attempt <= s.retries; attempt++ {
		lesson, err := s.store.FindLesson(ctx, id)
		if err != nil {
			return nil, err
		}
		expect := store.ExpectFor(lesson)

		currentBooked := lesson.BookedSeats()
		delta := 0
		if st := patch.Student; st != nil {
			idx := lesson.ParticipantIndex(st.Email)
			if st.Action == StudentActionAdd {
				delta = st.Seats
			} else {
				if idx < 0 {
					return nil, status.Invalid("%s is not enrolled in lesson %q", st.Email, lesson.Name)
				}
				delta = -lesson.Participants[idx].Seats
			}
		}
		futureBooked := currentBooked + delta

		capacity := lesson.Capacity
		if patch.Capacity != nil {
			capacity = *patch.Capacity
		}
		if capacity < futureBooked {
			if patch.Capacity == nil {
				return nil, status.Invalid("not enough space in lesson %q, only %d seat(s) left", lesson.Name, lesson.AvailableSeats)
			}
			return nil, status.Invalid("capacity cannot be less than the %d booked seat(s)", futureBooked)
		}

		// available is derived from capacity and the post-update booked
		// total; an explicit value is accepted only as a consistency
		// assertion, never as a way to resize the ledger sideways.
		available := capacity - futureBooked
		if patch.AvailableSeats != nil && *patch.AvailableSeats != available {
			return nil, status.Invalid("available seats must equal capacity minus the %d booked seat(s)", futureBooked)
		}

		if patch.Name != nil {
			lesson.Name = *patch.Name
		}
		if patch.Topic != nil {
			lesson.Topic = *patch.Topic
		}
		if patch.Location != nil {
			lesson.Location = *patch.Location
		}
		if patch.Description != nil {
			lesson.Description = *patch.Description
		}
		if patch.Image != nil {
			lesson.Image = *patch.Image
		}
		if patch.Price != nil {
			lesson.Price = *patch.Price
		}
		lesson.Capacity = capacity
		if st := patch.Student; st != nil {
			if st.Action == StudentActionAdd {
				lesson.AddSeats(st.Email, st.Seats)
			} else {
				lesson.ReleaseSeats(st.Email, -delta)
			}
		}
		lesson.AvailableSeats = available

		ok, err := s.store.UpdateLessonGuarded(ctx, lesson, expect)
		if err != nil {
			return nil, err
		}
		if ok {
			s.events.AvailabilityChanged(ctx, lesson)
			return lesson, nil
		}

		s.events.WriteConflict(id)
	}

	return nil, status.Invalid("lesson %s changed concurrently, please retry", id)
}

// Delete removes a lesson. Deleting a lesson that still has enrolled
// students is permitted; the released holdings are logged so the
// operation can be audited.
func (s *LessonService) Delete(ctx context.Context, id string) (bool, error) {
	lesson, err := s.store.FindLesson(ctx, id)
	if err != nil {
		return false, err
	}
	if booked := lesson.BookedSeats(); booked > 0 {
		slog.Warn("deleting lesson with enrolled students",
			"lesson_id", id,
			"lesson", lesson.Name,
			"booked_seats", booked,
			"students", len(lesson.Participants),
		)
	}
	if err := s.store.DeleteLesson(ctx, id); err != nil {
		return false, err
	}
	s.events.LessonDeleted(ctx, id)
	return true, nil
}

// Get returns a single lesson.
func (s *LessonService) Get(ctx context.Context, id string) (*models.Lesson, error) {
	return s.store.FindLesson(ctx, id)
}

// List returns all lessons.
func (s *LessonService) List(ctx context.Context) ([]*models.Lesson, error) {
	return s.store.FindLessons(ctx)
}

// ListByTeacher returns the lessons a teacher owns.
func (s *LessonService) ListByTeacher(ctx context.Context, email string) ([]*models.Lesson, error) {
	return s.store.FindLessonsByOwner(ctx, email)
}

// ListEnrolled returns the lessons a student currently holds seats in.
func (s *LessonService) ListEnrolled(ctx context.Context, email string) ([]*models.Lesson, error) {
	return s.store.FindLessonsByParticipant(ctx, email)
}
