package handlers

import (
	"net/http"
	"strconv"

	"github.com/pocketbase/pocketbase/apis"
	"github.com/pocketbase/pocketbase/core"

	"lesson-booking/internal/realtime"
	"lesson-booking/internal/services"
)

type LessonHandler struct {
	lessons     *services.LessonService
	enrollment  *services.EnrollmentService
	broadcaster *realtime.Broadcaster
}

func NewLessonHandler(lessons *services.LessonService, enrollment *services.EnrollmentService, broadcaster *realtime.Broadcaster) *LessonHandler {
	return &LessonHandler{
		lessons:     lessons,
		enrollment:  enrollment,
		broadcaster: broadcaster,
	}
}

// List - Get all lessons, optionally filtered by teacher or enrolled student
func (h *LessonHandler) List(e *core.RequestEvent) error {
	ctx := e.Request.Context()
	query := e.Request.URL.Query()

	if teacher := query.Get("teacher"); teacher != "" {
		lessons, err := h.lessons.ListByTeacher(ctx, teacher)
		if err != nil {
			return toAPIError(err)
		}
		return e.JSON(http.StatusOK, map[string]any{"lessons": lessons, "total": len(lessons)})
	}

	if student := query.Get("student"); student != "" {
		lessons, err := h.lessons.ListEnrolled(ctx, student)
		if err != nil {
			return toAPIError(err)
		}
		return e.JSON(http.StatusOK, map[string]any{"lessons": lessons, "total": len(lessons)})
	}

	lessons, err := h.lessons.List(ctx)
	if err != nil {
		return toAPIError(err)
	}
	return e.JSON(http.StatusOK, map[string]any{"lessons": lessons, "total": len(lessons)})
}

func (h *LessonHandler) Get(e *core.RequestEvent) error {
	lessonID := e.Request.PathValue("lessonId")
	if lessonID == "" {
		return apis.NewBadRequestError("Lesson ID is required", nil)
	}

	lesson, err := h.lessons.Get(e.Request.Context(), lessonID)
	if err != nil {
		return toAPIError(err)
	}
	return e.JSON(http.StatusOK, lesson)
}

func (h *LessonHandler) Create(e *core.RequestEvent) error {
	var req struct {
		Name        string  `json:"name"`
		Topic       string  `json:"topic"`
		Location    string  `json:"location"`
		Description string  `json:"description"`
		Image       string  `json:"image"`
		Price       float64 `json:"price"`
		Capacity    int     `json:"capacity"`
		CreatedBy   string  `json:"created_by"`
	}
	if err := e.BindBody(&req); err != nil {
		return apis.NewBadRequestError("Invalid request", err)
	}

	lesson, err := h.lessons.Create(e.Request.Context(), services.CreateLessonInput{
		Name:        req.Name,
		Topic:       req.Topic,
		Location:    req.Location,
		Description: req.Description,
		Image:       req.Image,
		Price:       req.Price,
		Capacity:    req.Capacity,
		CreatedBy:   req.CreatedBy,
	})
	if err != nil {
		return toAPIError(err)
	}
	return e.JSON(http.StatusCreated, lesson)
}

type studentRequest struct {
	Action string `json:"action"`
	Email  string `json:"email"`
	Seats  int    `json:"seats"`
}

// Update - Partial lesson update; may carry an embedded student
// add/remove instruction alongside field changes.
func (h *LessonHandler) Update(e *core.RequestEvent) error {
	lessonID := e.Request.PathValue("lessonId")
	if lessonID == "" {
		return apis.NewBadRequestError("Lesson ID is required", nil)
	}

	var req struct {
		Name           *string         `json:"name"`
		Topic          *string         `json:"topic"`
		Location       *string         `json:"location"`
		Description    *string         `json:"description"`
		Image          *string         `json:"image"`
		Price          *float64        `json:"price"`
		Capacity       *int            `json:"capacity"`
		AvailableSeats *int            `json:"available_seats"`
		Student        *studentRequest `json:"student"`
	}
	if err := e.BindBody(&req); err != nil {
		return apis.NewBadRequestError("Invalid request", err)
	}

	patch := services.LessonPatch{
		Name:           req.Name,
		Topic:          req.Topic,
		Location:       req.Location,
		Description:    req.Description,
		Image:          req.Image,
		Price:          req.Price,
		Capacity:       req.Capacity,
		AvailableSeats: req.AvailableSeats,
	}
	if req.Student != nil {
		patch.Student = &services.StudentInstruction{
			Action: req.Student.Action,
			Email:  req.Student.Email,
			Seats:  req.Student.Seats,
		}
	}

	lesson, err := h.lessons.Update(e.Request.Context(), lessonID, patch)
	if err != nil {
		return toAPIError(err)
	}
	return e.JSON(http.StatusOK, lesson)
}

func (h *LessonHandler) Delete(e *core.RequestEvent) error {
	lessonID := e.Request.PathValue("lessonId")
	if lessonID == "" {
		return apis.NewBadRequestError("Lesson ID is required", nil)
	}

	deleted, err := h.lessons.Delete(e.Request.Context(), lessonID)
	if err != nil {
		return toAPIError(err)
	}
	return e.JSON(http.StatusOK, map[string]any{"deleted": deleted, "lesson_id": lessonID})
}

// AddStudent - Enroll a student into a lesson
func (h *LessonHandler) AddStudent(e *core.RequestEvent) error {
	lessonID := e.Request.PathValue("lessonId")
	if lessonID == "" {
		return apis.NewBadRequestError("Lesson ID is required", nil)
	}

	var req struct {
		Email string `json:"email"`
		Seats int    `json:"seats"`
	}
	if err := e.BindBody(&req); err != nil {
		return apis.NewBadRequestError("Invalid request", err)
	}
	if req.Email == "" {
		return apis.NewBadRequestError("Student email is required", nil)
	}

	lesson, err := h.enrollment.AddParticipant(e.Request.Context(), lessonID, req.Email, req.Seats)
	if err != nil {
		return toAPIError(err)
	}
	return e.JSON(http.StatusOK, lesson)
}

// RemoveStudent - Release a student's seats; zero seats releases all
func (h *LessonHandler) RemoveStudent(e *core.RequestEvent) error {
	lessonID := e.Request.PathValue("lessonId")
	if lessonID == "" {
		return apis.NewBadRequestError("Lesson ID is required", nil)
	}

	var req struct {
		Email string `json:"email"`
		Seats int    `json:"seats"`
	}
	if err := e.BindBody(&req); err != nil {
		return apis.NewBadRequestError("Invalid request", err)
	}
	if req.Email == "" {
		return apis.NewBadRequestError("Student email is required", nil)
	}

	lesson, err := h.enrollment.RemoveParticipant(e.Request.Context(), lessonID, req.Email, req.Seats)
	if err != nil {
		return toAPIError(err)
	}
	return e.JSON(http.StatusOK, lesson)
}

// Availability - Cached seat state from Redis, falling back to the
// database when the cache is cold.
func (h *LessonHandler) Availability(e *core.RequestEvent) error {
	lessonID := e.Request.PathValue("lessonId")
	if lessonID == "" {
		return apis.NewBadRequestError("Lesson ID is required", nil)
	}
	ctx := e.Request.Context()

	if h.broadcaster != nil {
		cached, err := h.broadcaster.Availability(ctx, lessonID)
		if err == nil && len(cached) > 0 {
			return e.JSON(http.StatusOK, map[string]any{
				"lesson_id": lessonID,
				"source":    "cache",
				"seats":     cached,
			})
		}
	}

	lesson, err := h.lessons.Get(ctx, lessonID)
	if err != nil {
		return toAPIError(err)
	}
	return e.JSON(http.StatusOK, map[string]any{
		"lesson_id": lessonID,
		"source":    "database",
		"seats": map[string]string{
			"capacity":        strconv.Itoa(lesson.Capacity),
			"available_seats": strconv.Itoa(lesson.AvailableSeats),
			"booked_seats":    strconv.Itoa(lesson.BookedSeats()),
		},
	})
}
