package reservation

import (
	"fmt"
	"time"

	"libreserve-backend/internal/libraryerr"
)

// DayLayout is the calendar-day key reservations are grouped by.
const DayLayout = "2006-01-02"

// Kind discriminates the two kinds of people who occupy seats.
type Kind string

const (
	KindStudent   Kind = "student"
	KindLibrarian Kind = "librarian"
)

// Owner identifies who a reservation belongs to. ID is the matric number for
// students and the staff number for librarians.
type Owner struct {
	Kind    Kind
	ID      string
	Contact string
}

// Record is one person's reservation for a day. Status only moves forward through
// Transition; everything else is plain data.
type Record struct {
	Code       string
	Owner      Owner
	BookedAt   time.Time
	CheckInAt  *time.Time
	CheckOutAt *time.Time
	OverTime   int

	status Status
}

// New returns a freshly booked reservation.
func New(code string, owner Owner, bookedAt time.Time) Record {
	return Record{Code: code, Owner: owner, BookedAt: bookedAt, status: StatusBooked}
}

// Restore rebuilds a record loaded from storage with its persisted status.
func Restore(r Record, status string) (Record, error) {
	s, err := ParseStatus(status)
	if err != nil {
		return Record{}, err
	}
	r.status = s
	return r, nil
}

func (r Record) Status() Status {
	return r.status
}

// In returns r with every timestamp expressed in loc. Status is kept.
func (r Record) In(loc *time.Location) Record {
	r.BookedAt = r.BookedAt.In(loc)
	if r.CheckInAt != nil {
		t := r.CheckInAt.In(loc)
		r.CheckInAt = &t
	}
	if r.CheckOutAt != nil {
		t := r.CheckOutAt.In(loc)
		r.CheckOutAt = &t
	}
	return r
}

// Day is the calendar day the reservation was made for.
func (r Record) Day() string {
	return r.BookedAt.Format(DayLayout)
}

// Transition moves the record to next, rejecting edges the lifecycle does not have.
func (r *Record) Transition(next Status) error {
	if !r.status.CanTransition(next) {
		return fmt.Errorf("%w: cannot move reservation %s from %s to %s",
			libraryerr.ErrInvalidReservation, r.Code, r.status, next)
	}
	switch next {
	case StatusLibrarianCheckedOut:
		if r.Owner.Kind != KindLibrarian {
			return fmt.Errorf("%w: %s is only valid for librarian sessions", libraryerr.ErrInvalidReservation, next)
		}
	case StatusCheckedOut, StatusBlacklisted, StatusExpired:
		if r.Owner.Kind != KindStudent {
			return fmt.Errorf("%w: %s is only valid for student reservations", libraryerr.ErrInvalidReservation, next)
		}
	}
	r.status = next
	return nil
}

// CheckIn records the arrival and moves BOOKED -> CHECKED_IN.
func (r *Record) CheckIn(at time.Time) error {
	if err := r.Transition(StatusCheckedIn); err != nil {
		return err
	}
	r.CheckInAt = &at
	return nil
}

// CheckOut ends the session with the given terminal status and settles overtime.
func (r *Record) CheckOut(next Status, at time.Time, allowed time.Duration) error {
	if err := r.Transition(next); err != nil {
		return err
	}
	r.CheckOutAt = &at
	r.OverTime = r.OverTimeAt(at, allowed)
	return nil
}

// OverTimeAt is the number of whole minutes spent inside beyond allowed, as of at.
func (r Record) OverTimeAt(at time.Time, allowed time.Duration) int {
	if r.CheckInAt == nil || allowed <= 0 {
		return 0
	}
	over := at.Sub(*r.CheckInAt) - allowed
	if over <= 0 {
		return 0
	}
	return int(over / time.Minute)
}
