package models

import (
	"time"
)

// OrderLesson is one line item of an order: a lesson and the number of
// seats booked in it.
type OrderLesson struct {
	LessonID string `json:"lesson_id"`
	Seats    int    `json:"seats"`
}

// Order is an immutable purchase record. It is created once, after all
// of its line items were allocated inside a single transaction, and is
// never edited or deleted afterwards.
type Order struct {
	ID         string        `json:"id"`
	Reference  string        `json:"reference"`
	Name       string        `json:"name"`
	Phone      string        `json:"phone"`
	Email      string        `json:"email"`
	Lessons    []OrderLesson `json:"lessons"`
	TotalPrice float64       `json:"total_price"`
	Created    time.Time     `json:"created"`
}

// TotalSeats returns the number of seats booked across all line items.
func (o *Order) TotalSeats() int {
	total := 0
	for _, l := range o.Lessons {
		total += l.Seats
	}
	return total
}
