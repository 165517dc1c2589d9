package libraryerr

import (
	"errors"
	"fmt"
	"time"
)

// Precondition errors are caller faults and are reported to the end user as-is.
var (
	ErrReservationNotFound = errors.New("reservation does not exist")
	ErrInvalidReservation  = errors.New("invalid reservation")
	ErrUserNotInLibrary    = errors.New("user is not in the library")
	ErrStudentNotFound     = errors.New("student not found")
	ErrAccountLocked       = errors.New("account is locked")
)

// Timing-policy errors. They are expected outcomes of the check-in window, not bugs.
var (
	ErrEarlyCheckIn = errors.New("early check-in")
	ErrLateCheckIn  = errors.New("late check-in, reservation expired")
)

// ErrLibraryRuntimeFault signals that an operation whose precondition was already
// verified failed anyway, e.g. the occupancy queue refused a validated entry.
var ErrLibraryRuntimeFault = errors.New("library runtime fault")

// ErrInvalidPolicy is returned when a policy snapshot breaks its own invariants.
var ErrInvalidPolicy = errors.New("invalid library policy")

// EarlyCheckInError carries the booked time so the caller can tell the user when to come back.
type EarlyCheckInError struct {
	BookedAt time.Time
}

func (e *EarlyCheckInError) Error() string {
	return fmt.Sprintf("early check-in, reservation starts at %s", e.BookedAt.Format("15:04"))
}

// Is lets errors.Is(err, ErrEarlyCheckIn) match.
func (e *EarlyCheckInError) Is(target error) bool {
	return target == ErrEarlyCheckIn
}

// Fault wraps ErrLibraryRuntimeFault with context.
func Fault(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrLibraryRuntimeFault, fmt.Sprintf(format, args...))
}
