package admission

import (
	"context"
	"time"

	"libreserve-backend/internal/libraryerr"
	"libreserve-backend/internal/reservation"
)

// ReservationView is the display form of a reservation.
type ReservationView struct {
	ReservationCode string             `json:"reservationCode"`
	OwnerKind       reservation.Kind   `json:"ownerKind"`
	OwnerID         string             `json:"ownerId"`
	Day             string             `json:"day"`
	BookedTime      string             `json:"bookedTime"`
	Status          reservation.Status `json:"status"`
	CheckInTime     *time.Time         `json:"checkInTime,omitempty"`
	CheckOutTime    *time.Time         `json:"checkOutTime,omitempty"`
	OverTime        int                `json:"overTime"`
}

func NewView(r reservation.Record) ReservationView {
	return ReservationView{
		ReservationCode: r.Code,
		OwnerKind:       r.Owner.Kind,
		OwnerID:         r.Owner.ID,
		Day:             r.Day(),
		BookedTime:      r.BookedAt.Format("15:04"),
		Status:          r.Status(),
		CheckInTime:     r.CheckInAt,
		CheckOutTime:    r.CheckOutAt,
		OverTime:        r.OverTime,
	}
}

// Every list query below reports an empty result as ErrReservationNotFound
// rather than an empty slice.
func (c *Coordinator) views(records []reservation.Record) ([]ReservationView, error) {
	if len(records) == 0 {
		return nil, libraryerr.ErrReservationNotFound
	}
	out := make([]ReservationView, 0, len(records))
	for _, r := range records {
		out = append(out, NewView(c.local(r)))
	}
	return out, nil
}

// VerifyReservationCode resolves a code to its reservation, whatever the day.
func (c *Coordinator) VerifyReservationCode(ctx context.Context, code string) (ReservationView, error) {
	r, err := c.Reservations.FindByCode(ctx, code)
	if err != nil {
		return ReservationView{}, err
	}
	return NewView(c.local(r)), nil
}

// StudentReservationsForToday lists a student's reservations made for today.
func (c *Coordinator) StudentReservationsForToday(ctx context.Context, matricNumber string) ([]ReservationView, error) {
	records, err := c.Reservations.ListByOwnerAndDate(ctx, matricNumber, c.today())
	if err != nil {
		return nil, err
	}
	return c.views(records)
}

// StudentReservations lists every reservation a student ever made.
func (c *Coordinator) StudentReservations(ctx context.Context, matricNumber string) ([]ReservationView, error) {
	records, err := c.Reservations.ListByOwner(ctx, matricNumber)
	if err != nil {
		return nil, err
	}
	return c.views(records)
}

// StudentsInLibrary lists the reservations of students currently inside.
func (c *Coordinator) StudentsInLibrary() ([]ReservationView, error) {
	var records []reservation.Record
	for _, e := range c.Queue.List(reservation.KindStudent) {
		records = append(records, e.Reservation)
	}
	return c.views(records)
}

// ReservationsForToday lists every student reservation made for today.
func (c *Coordinator) ReservationsForToday(ctx context.Context) ([]ReservationView, error) {
	records, err := c.Reservations.ListByDate(ctx, c.today())
	if err != nil {
		return nil, err
	}
	return c.views(records)
}
