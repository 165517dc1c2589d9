package admission

import (
	"context"

	"libreserve-backend/internal/notification"
	"libreserve-backend/internal/reservation"
)

// ReservationStore persists student reservations. Finders return
// libraryerr.ErrReservationNotFound when nothing matches.
type ReservationStore interface {
	FindActiveByOwnerAndDate(ctx context.Context, matricNumber, day string) (reservation.Record, error)
	FindByCodeAndDate(ctx context.Context, code, day string) (reservation.Record, error)
	FindByCode(ctx context.Context, code string) (reservation.Record, error)
	ListByOwnerAndDate(ctx context.Context, matricNumber, day string) ([]reservation.Record, error)
	ListByOwner(ctx context.Context, matricNumber string) ([]reservation.Record, error)
	ListByDate(ctx context.Context, day string) ([]reservation.Record, error)
	Save(ctx context.Context, r reservation.Record) error
}

// LibrarianSessionStore persists librarian sessions. FindActiveByStaffNumber
// returns the open (CHECKED_IN) session or libraryerr.ErrReservationNotFound.
type LibrarianSessionStore interface {
	FindActiveByStaffNumber(ctx context.Context, staffNumber string) (reservation.Record, error)
	Save(ctx context.Context, r reservation.Record) error
}

// Account is the lockable login account of a student.
type Account struct {
	NotLocked bool
}

// Student is the account-store view of a student. Reservations holds records
// appended during this request that must be saved together with the account.
type Student struct {
	MatricNumber string
	Email        string
	Account      Account
	Reservations []reservation.Record
}

// AccountStore loads and saves student accounts.
// FindByMatricNumber returns libraryerr.ErrStudentNotFound when absent.
type AccountStore interface {
	FindByMatricNumber(ctx context.Context, matricNumber string) (*Student, error)
	Save(ctx context.Context, s *Student) error
}

// TokenService invalidates access tokens. Blacklist reports success.
type TokenService interface {
	Blacklist(ctx context.Context, token string) bool
}

// Notifier delivers notices fire-and-forget; it never reports failures back.
type Notifier interface {
	Notify(kind notification.Kind, contact notification.Contact)
}
