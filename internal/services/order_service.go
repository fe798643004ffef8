package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/shopspring/decimal"

	"lesson-booking/internal/status"
	"lesson-booking/internal/store"
	"lesson-booking/models"
	"lesson-booking/utils"
)

// OrderService coordinates a multi-lesson purchase as one all-or-nothing
// unit of work. Every read and write of an order happens inside a
// single transaction scope; a failing line item rolls back the seats
// already allocated for this order and no order record is created.
type OrderService struct {
	store      store.Store
	enrollment *EnrollmentService
	events     Events
}

func NewOrderService(st store.Store, enrollment *EnrollmentService, events Events) *OrderService {
	if events == nil {
		events = NopEvents{}
	}
	return &OrderService{store: st, enrollment: enrollment, events: events}
}

// LineItem is one requested lesson booking within an order.
type LineItem struct {
	LessonID string
	Seats    int
}

// PlaceOrderInput carries the purchaser's contact details and the
// requested line items, in the order the purchaser submitted them.
type PlaceOrderInput struct {
	Name    string
	Phone   string
	Email   string
	Lessons []LineItem
}

// PlaceOrder books every line item or none of them.
//
// Line items are processed in the caller-supplied order and each one
// allocates its seats immediately, so a later item referencing the same
// lesson sees the reduced availability of an earlier one: a single
// order cannot oversell a lesson by splitting it across two items.
func (s *OrderService) PlaceOrder(ctx context.Context, input PlaceOrderInput) (*models.Order, error) {
	if len(input.Lessons) == 0 {
		return nil, status.Invalid("an order needs at least one lesson")
	}
	for _, item := range input.Lessons {
		if item.LessonID == "" {
			return nil, status.Invalid("every order line needs a lesson id")
		}
		if item.Seats < 1 {
			return nil, status.Invalid("seats must be at least 1 for lesson %s", item.LessonID)
		}
	}

	started := time.Now()
	var placed *models.Order
	var touched []*models.Lesson

	err := s.store.WithTransaction(ctx, func(tx store.Store) error {
		if _, err := tx.FindUserByEmail(ctx, input.Email); err != nil {
			return err
		}

		total := decimal.Zero
		items := make([]models.OrderLesson, 0, len(input.Lessons))
		touched = touched[:0]

		for _, item := range input.Lessons {
			lesson, err := tx.FindLesson(ctx, item.LessonID)
			if err != nil {
				return err
			}
			if lesson.AvailableSeats < item.Seats {
				return status.Invalid("not enough space in lesson %q at %s, only %d seat(s) left",
					lesson.Name, lesson.Location, lesson.AvailableSeats)
			}

			total = total.Add(decimal.NewFromFloat(lesson.Price).Mul(decimal.NewFromInt(int64(item.Seats))))

			updated, err := s.enrollment.AddParticipantTx(ctx, tx, item.LessonID, input.Email, item.Seats)
			if err != nil {
				return err
			}
			touched = append(touched, updated)
			items = append(items, models.OrderLesson{LessonID: item.LessonID, Seats: item.Seats})
		}

		reference, err := utils.GenerateCode(4)
		if err != nil {
			return fmt.Errorf("generate order reference: %w", err)
		}

		order := &models.Order{
			Reference:  reference,
			Name:       input.Name,
			Phone:      input.Phone,
			Email:      input.Email,
			Lessons:    items,
			TotalPrice: total.InexactFloat64(),
		}
		placed, err = tx.InsertOrder(ctx, order)
		return err
	})
	if err != nil {
		s.events.OrderFailed(failureReason(err))
		if status.IsDomain(err) {
			return nil, err
		}
		slog.Error("order transaction aborted", "email", input.Email, "error", err)
		return nil, fmt.Errorf("place order: %w: %w", err, status.ErrUnavailable)
	}

	took := time.Since(started)
	s.events.OrderCompleted(ctx, placed, took)
	for _, lesson := range touched {
		s.events.AvailabilityChanged(ctx, lesson)
	}
	return placed, nil
}

// Get returns a single order.
func (s *OrderService) Get(ctx context.Context, id string) (*models.Order, error) {
	return s.store.FindOrder(ctx, id)
}

// List returns all orders.
func (s *OrderService) List(ctx context.Context) ([]*models.Order, error) {
	return s.store.FindOrders(ctx)
}

func failureReason(err error) string {
	switch {
	case errors.Is(err, status.ErrNotFound):
		return "not_found"
	case errors.Is(err, status.ErrInvalid):
		return "invalid"
	default:
		return "unavailable"
	}
}
