// Package entry decides whether a booked reservation may be admitted right now.
package entry

import (
	"fmt"
	"time"

	"libreserve-backend/internal/libraryerr"
	"libreserve-backend/internal/policy"
	"libreserve-backend/internal/reservation"
)

// Validate checks r against the check-in window around its booked time.
//
// Arrival exactly at the booked time counts as on time. A late arrival outside
// every allowance expires the record in place and returns ErrLateCheckIn; that is
// the only mutation Validate performs, persisting it is the caller's job.
func Validate(r *reservation.Record, now time.Time, p policy.Policy) error {
	if r.Status() != reservation.StatusBooked {
		return fmt.Errorf("%w: reservation %s is %s", libraryerr.ErrInvalidReservation, r.Code, r.Status())
	}

	delta := now.Sub(r.BookedAt)
	minutes := int(delta / time.Minute)

	if delta < 0 {
		early := -minutes
		if early <= p.RecommendedCheckInTime ||
			(p.AllowEarlyCheckIn && early <= p.AllowedEarlyCheckInMinutes) {
			return nil
		}
		return &libraryerr.EarlyCheckInError{BookedAt: r.BookedAt}
	}

	if minutes <= p.RecommendedCheckInTime ||
		(p.AllowLateCheckIn && minutes <= p.AllowedLateCheckInTimeInMinutes) {
		return nil
	}
	if err := r.Transition(reservation.StatusExpired); err != nil {
		return err
	}
	return libraryerr.ErrLateCheckIn
}

// Deadline is the last instant a booking made for bookedAt can still be admitted.
func Deadline(bookedAt time.Time, p policy.Policy) time.Time {
	grace := p.RecommendedCheckInTime
	if p.AllowLateCheckIn && p.AllowedLateCheckInTimeInMinutes > grace {
		grace = p.AllowedLateCheckInTimeInMinutes
	}
	// Validate truncates to whole minutes, so the window stays open until the next minute starts.
	return bookedAt.Add(time.Duration(grace+1)*time.Minute - time.Nanosecond)
}
