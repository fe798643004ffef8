package models

import (
	"time"
)

// Participant is one enrolled student and the number of seats they hold.
// A participant never holds less than one seat; releasing the last seat
// removes the entry entirely.
type Participant struct {
	Email string `json:"email"`
	Seats int    `json:"seats"`
}

// Lesson is the capacity ledger for a single lesson. The bookkeeping
// fields must always satisfy
//
//	Capacity == AvailableSeats + sum(Participants[*].Seats)
//
// and every seat-changing write goes through a single conditional update
// keyed on the previously read seat state. SeatRevision increments on
// every such write; guarding on the revision rather than the seat
// counters alone keeps a stale writer out even when intervening writes
// happen to restore the counters it originally read.
type Lesson struct {
	ID             string        `json:"id"`
	Name           string        `json:"name"`
	Topic          string        `json:"topic"`
	Location       string        `json:"location"`
	Description    string        `json:"description"`
	Image          string        `json:"image"`
	CreatedBy      string        `json:"created_by"`
	Capacity       int           `json:"capacity"`
	AvailableSeats int           `json:"available_seats"`
	Price          float64       `json:"price"`
	Participants   []Participant `json:"participants"`
	SeatRevision   int           `json:"seat_revision"`
	Created        time.Time     `json:"created"`
	Updated        time.Time     `json:"updated"`
}

// BookedSeats returns the total number of seats currently held across
// all participants.
func (l *Lesson) BookedSeats() int {
	total := 0
	for _, p := range l.Participants {
		total += p.Seats
	}
	return total
}

// ParticipantIndex returns the position of the participant with the
// given email, or -1 when they are not enrolled.
func (l *Lesson) ParticipantIndex(email string) int {
	for i, p := range l.Participants {
		if p.Email == email {
			return i
		}
	}
	return -1
}

// SeatsBalanced reports whether the stored bookkeeping fields agree
// with each other.
func (l *Lesson) SeatsBalanced() bool {
	return l.Capacity == l.AvailableSeats+l.BookedSeats() && l.AvailableSeats >= 0
}

// AddSeats records seats for a participant, inserting them on first
// enrollment, and decrements the available counter by the same amount.
// Callers are responsible for checking availability first.
func (l *Lesson) AddSeats(email string, seats int) {
	if i := l.ParticipantIndex(email); i >= 0 {
		l.Participants[i].Seats += seats
	} else {
		l.Participants = append(l.Participants, Participant{Email: email, Seats: seats})
	}
	l.AvailableSeats -= seats
}

// ReleaseSeats gives seats back from a participant's holding and
// increments the available counter. A participant reduced to zero is
// removed from the list.
func (l *Lesson) ReleaseSeats(email string, seats int) {
	i := l.ParticipantIndex(email)
	if i < 0 {
		return
	}
	l.Participants[i].Seats -= seats
	if l.Participants[i].Seats <= 0 {
		l.Participants = append(l.Participants[:i], l.Participants[i+1:]...)
	}
	l.AvailableSeats += seats
}

// Clone returns a deep copy, so snapshots taken before a mutation are
// not aliased to the live participant slice.
func (l *Lesson) Clone() *Lesson {
	clone := *l
	clone.Participants = make([]Participant, len(l.Participants))
	copy(clone.Participants, l.Participants)
	return &clone
}
