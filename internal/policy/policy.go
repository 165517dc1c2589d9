package policy

import (
	"fmt"
	"sync/atomic"
	"time"

	"libreserve-backend/internal/libraryerr"
)

// Policy is a read-only snapshot of the library rules the admission engine runs on.
// All durations are whole minutes, as configured.
type Policy struct {
	NumberOfSeats        int
	ReserveLibrarianSeat bool
	NumberOfLibrarians   int

	RecommendedCheckInTime int

	AllowEarlyCheckIn          bool
	AllowedEarlyCheckInMinutes int

	AllowLateCheckIn                bool
	AllowedLateCheckInTimeInMinutes int

	BookingTimeAllowedInMinutes int

	AllowTimeExtension                   bool
	MaximumTimeExtensionAllowedInMinutes int
	AllowMultipleTimeExtension           bool
}

// Validate checks the invariants every snapshot must hold before it is published.
func (p Policy) Validate() error {
	if p.NumberOfSeats <= 0 {
		return fmt.Errorf("%w: numberOfSeats must be positive, got %d", libraryerr.ErrInvalidPolicy, p.NumberOfSeats)
	}
	if p.RecommendedCheckInTime < 0 {
		return fmt.Errorf("%w: recommendedCheckInTime must not be negative", libraryerr.ErrInvalidPolicy)
	}
	if p.AllowEarlyCheckIn && p.AllowedEarlyCheckInMinutes < p.RecommendedCheckInTime {
		return fmt.Errorf("%w: allowedEarlyCheckInMinutes (%d) is below recommendedCheckInTime (%d)",
			libraryerr.ErrInvalidPolicy, p.AllowedEarlyCheckInMinutes, p.RecommendedCheckInTime)
	}
	if p.AllowLateCheckIn && p.AllowedLateCheckInTimeInMinutes < p.RecommendedCheckInTime {
		return fmt.Errorf("%w: allowedLateCheckInTimeInMinutes (%d) is below recommendedCheckInTime (%d)",
			libraryerr.ErrInvalidPolicy, p.AllowedLateCheckInTimeInMinutes, p.RecommendedCheckInTime)
	}
	if p.ReserveLibrarianSeat && (p.NumberOfLibrarians < 0 || p.NumberOfLibrarians >= p.NumberOfSeats) {
		return fmt.Errorf("%w: numberOfLibrarians (%d) must leave at least one student seat out of %d",
			libraryerr.ErrInvalidPolicy, p.NumberOfLibrarians, p.NumberOfSeats)
	}
	if p.AllowTimeExtension && p.MaximumTimeExtensionAllowedInMinutes <= 0 {
		return fmt.Errorf("%w: maximumTimeExtensionAllowedInMinutes must be positive when extensions are allowed", libraryerr.ErrInvalidPolicy)
	}
	return nil
}

// SetRecommendedCheckInTime rejects values above an enabled early or late allowance.
func (p *Policy) SetRecommendedCheckInTime(minutes int) error {
	next := *p
	next.RecommendedCheckInTime = minutes
	if err := next.Validate(); err != nil {
		return err
	}
	*p = next
	return nil
}

// SetAllowedEarlyCheckInMinutes enables early check-in with the given allowance.
func (p *Policy) SetAllowedEarlyCheckInMinutes(minutes int) error {
	if minutes < p.RecommendedCheckInTime {
		return fmt.Errorf("%w: allowedEarlyCheckInMinutes (%d) is below recommendedCheckInTime (%d)",
			libraryerr.ErrInvalidPolicy, minutes, p.RecommendedCheckInTime)
	}
	p.AllowEarlyCheckIn = true
	p.AllowedEarlyCheckInMinutes = minutes
	return nil
}

// SetAllowedLateCheckInTimeInMinutes enables late check-in with the given allowance.
func (p *Policy) SetAllowedLateCheckInTimeInMinutes(minutes int) error {
	if minutes < p.RecommendedCheckInTime {
		return fmt.Errorf("%w: allowedLateCheckInTimeInMinutes (%d) is below recommendedCheckInTime (%d)",
			libraryerr.ErrInvalidPolicy, minutes, p.RecommendedCheckInTime)
	}
	p.AllowLateCheckIn = true
	p.AllowedLateCheckInTimeInMinutes = minutes
	return nil
}

// Capacity is the total number of people allowed inside at once.
func (p Policy) Capacity() int {
	return p.NumberOfSeats
}

// StudentCapacity is the share of seats students may fill. Seats held back for
// librarians are excluded when ReserveLibrarianSeat is set.
func (p Policy) StudentCapacity() int {
	if p.ReserveLibrarianSeat {
		return p.NumberOfSeats - p.NumberOfLibrarians
	}
	return p.NumberOfSeats
}

// SessionLength is how long a student may stay before overtime accrues.
func (p Policy) SessionLength() time.Duration {
	return time.Duration(p.BookingTimeAllowedInMinutes) * time.Minute
}

// Holder publishes the current snapshot. Readers always see a complete, validated policy.
type Holder struct {
	current atomic.Pointer[Policy]
}

// NewHolder validates p and returns a holder serving it.
func NewHolder(p Policy) (*Holder, error) {
	h := &Holder{}
	if err := h.Store(p); err != nil {
		return nil, err
	}
	return h, nil
}

// Load returns the current snapshot by value.
func (h *Holder) Load() Policy {
	return *h.current.Load()
}

// Store swaps in a new snapshot. An invalid policy is rejected and the old one stays.
func (h *Holder) Store(p Policy) error {
	if err := p.Validate(); err != nil {
		return err
	}
	h.current.Store(&p)
	return nil
}
