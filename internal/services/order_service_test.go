package services

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"lesson-booking/internal/status"
	"lesson-booking/models"
)

func newOrderFixture() (*memStore, *OrderService) {
	st := newMemStore()
	st.addUser("buyer@school.test")
	enrollment := NewEnrollmentService(st, 3, nil)
	return st, NewOrderService(st, enrollment, nil)
}

func TestPlaceOrder_BooksEveryLineItem(t *testing.T) {
	st, svc := newOrderFixture()

	goLesson := newTestLesson(10)
	goLesson.Price = 10
	st.addLesson(goLesson)

	rustLesson := newTestLesson(10)
	rustLesson.Name = "Rust Intro"
	rustLesson.Price = 20
	st.addLesson(rustLesson)

	order, err := svc.PlaceOrder(context.Background(), PlaceOrderInput{
		Name:  "Buyer",
		Phone: "555-0101",
		Email: "buyer@school.test",
		Lessons: []LineItem{
			{LessonID: goLesson.ID, Seats: 2},
			{LessonID: rustLesson.ID, Seats: 1},
		},
	})
	require.NoError(t, err)

	assert.NotEmpty(t, order.ID)
	assert.Len(t, order.Reference, 8)
	assert.Equal(t, 40.0, order.TotalPrice)
	assert.Equal(t, 3, order.TotalSeats())

	first := st.lesson(goLesson.ID)
	assert.Equal(t, 8, first.AvailableSeats)
	assert.Equal(t, 2, first.BookedSeats())
	assert.True(t, first.SeatsBalanced())

	second := st.lesson(rustLesson.ID)
	assert.Equal(t, 9, second.AvailableSeats)
	assert.True(t, second.SeatsBalanced())
}

func TestPlaceOrder_SingleLessonTotal(t *testing.T) {
	st, svc := newOrderFixture()

	lesson := newTestLesson(5)
	lesson.Price = 20
	st.addLesson(lesson)

	order, err := svc.PlaceOrder(context.Background(), PlaceOrderInput{
		Email:   "buyer@school.test",
		Lessons: []LineItem{{LessonID: lesson.ID, Seats: 2}},
	})
	require.NoError(t, err)

	assert.Equal(t, 40.0, order.TotalPrice)
	assert.Equal(t, 3, st.lesson(lesson.ID).AvailableSeats)
}

func TestPlaceOrder_RollsBackWhenALineItemFails(t *testing.T) {
	st, svc := newOrderFixture()

	goLesson := st.addLesson(newTestLesson(10))

	tight := newTestLesson(5)
	tight.Name = "Tight Lesson"
	tight.AvailableSeats = 1
	tight.Participants = []models.Participant{{Email: "bob@school.test", Seats: 4}}
	st.addLesson(tight)

	_, err := svc.PlaceOrder(context.Background(), PlaceOrderInput{
		Email: "buyer@school.test",
		Lessons: []LineItem{
			{LessonID: goLesson.ID, Seats: 3},
			{LessonID: tight.ID, Seats: 2},
		},
	})
	require.Error(t, err)
	assert.ErrorIs(t, err, status.ErrInvalid)

	// The first item's allocation was rolled back
	first := st.lesson(goLesson.ID)
	assert.Equal(t, 10, first.AvailableSeats)
	assert.Empty(t, first.Participants)

	// And no order record exists
	orders, listErr := svc.List(context.Background())
	require.NoError(t, listErr)
	assert.Empty(t, orders)
}

// Two line items for the same lesson within one order must see each
// other's allocation; the order cannot oversell by splitting seats.
func TestPlaceOrder_SelfReferencingItemsShareAvailability(t *testing.T) {
	st, svc := newOrderFixture()

	lesson := newTestLesson(10)
	lesson.AvailableSeats = 3
	lesson.Participants = []models.Participant{{Email: "bob@school.test", Seats: 7}}
	st.addLesson(lesson)
	ctx := context.Background()

	_, err := svc.PlaceOrder(ctx, PlaceOrderInput{
		Email: "buyer@school.test",
		Lessons: []LineItem{
			{LessonID: lesson.ID, Seats: 2},
			{LessonID: lesson.ID, Seats: 2},
		},
	})
	require.Error(t, err)
	assert.ErrorIs(t, err, status.ErrInvalid)

	// Fully rolled back, including the first item's two seats
	assert.Equal(t, 3, st.lesson(lesson.ID).AvailableSeats)

	// A split that fits commits both items into one holding
	order, err := svc.PlaceOrder(ctx, PlaceOrderInput{
		Email: "buyer@school.test",
		Lessons: []LineItem{
			{LessonID: lesson.ID, Seats: 2},
			{LessonID: lesson.ID, Seats: 1},
		},
	})
	require.NoError(t, err)
	assert.Equal(t, 3, order.TotalSeats())

	final := st.lesson(lesson.ID)
	assert.Equal(t, 0, final.AvailableSeats)
	idx := final.ParticipantIndex("buyer@school.test")
	require.GreaterOrEqual(t, idx, 0)
	assert.Equal(t, 3, final.Participants[idx].Seats)
	assert.True(t, final.SeatsBalanced())
}

func TestPlaceOrder_UnknownPurchaser(t *testing.T) {
	st, svc := newOrderFixture()
	lesson := st.addLesson(newTestLesson(10))

	_, err := svc.PlaceOrder(context.Background(), PlaceOrderInput{
		Email:   "stranger@school.test",
		Lessons: []LineItem{{LessonID: lesson.ID, Seats: 1}},
	})
	require.Error(t, err)
	assert.ErrorIs(t, err, status.ErrNotFound)

	// No seats moved
	assert.Equal(t, 10, st.lesson(lesson.ID).AvailableSeats)
}

func TestPlaceOrder_UnknownLesson(t *testing.T) {
	_, svc := newOrderFixture()

	_, err := svc.PlaceOrder(context.Background(), PlaceOrderInput{
		Email:   "buyer@school.test",
		Lessons: []LineItem{{LessonID: "missing", Seats: 1}},
	})
	assert.ErrorIs(t, err, status.ErrNotFound)
}

func TestPlaceOrder_RejectsEmptyOrder(t *testing.T) {
	_, svc := newOrderFixture()

	_, err := svc.PlaceOrder(context.Background(), PlaceOrderInput{Email: "buyer@school.test"})
	require.Error(t, err)
	assert.ErrorIs(t, err, status.ErrInvalid)
	assert.Contains(t, err.Error(), "at least one lesson")
}

func TestPlaceOrder_RejectsNonPositiveSeats(t *testing.T) {
	st, svc := newOrderFixture()
	lesson := st.addLesson(newTestLesson(10))

	_, err := svc.PlaceOrder(context.Background(), PlaceOrderInput{
		Email:   "buyer@school.test",
		Lessons: []LineItem{{LessonID: lesson.ID, Seats: 0}},
	})
	assert.ErrorIs(t, err, status.ErrInvalid)
}

func TestOrderGetAndList(t *testing.T) {
	st, svc := newOrderFixture()
	lesson := st.addLesson(newTestLesson(10))
	ctx := context.Background()

	placed, err := svc.PlaceOrder(ctx, PlaceOrderInput{
		Email:   "buyer@school.test",
		Lessons: []LineItem{{LessonID: lesson.ID, Seats: 1}},
	})
	require.NoError(t, err)

	got, err := svc.Get(ctx, placed.ID)
	require.NoError(t, err)
	assert.Equal(t, placed.Reference, got.Reference)
	assert.Equal(t, placed.Lessons, got.Lessons)

	orders, err := svc.List(ctx)
	require.NoError(t, err)
	assert.Len(t, orders, 1)
}
