package reservation

import (
	"fmt"
	"sort"

	"libreserve-backend/internal/libraryerr"
)

// Status is the lifecycle state of a reservation. The zero value is not a valid
// state, so a Record that was never constructed through New or Restore can't be admitted.
type Status uint8

const (
	statusUnknown Status = iota
	StatusBooked
	StatusCheckedIn
	StatusExpired
	StatusBlacklisted
	StatusCheckedOut
	StatusLibrarianCheckedOut
)

var statusNames = map[Status]string{
	StatusBooked:              "BOOKED",
	StatusCheckedIn:           "CHECKED_IN",
	StatusExpired:             "EXPIRED",
	StatusBlacklisted:         "BLACKLISTED",
	StatusCheckedOut:          "CHECKED_OUT",
	StatusLibrarianCheckedOut: "LIBRARIAN_CHECKED_OUT",
}

// transitions is the whole state machine; anything not listed is illegal.
var transitions = map[Status][]Status{
	StatusBooked:    {StatusCheckedIn, StatusExpired},
	StatusCheckedIn: {StatusCheckedOut, StatusBlacklisted, StatusLibrarianCheckedOut},
}

func (s Status) String() string {
	if name, ok := statusNames[s]; ok {
		return name
	}
	return "UNKNOWN"
}

// Terminal reports whether no further transition is possible.
func (s Status) Terminal() bool {
	_, ok := statusNames[s]
	return ok && len(transitions[s]) == 0
}

// CanTransition reports whether s -> next is an edge of the lifecycle.
func (s Status) CanTransition(next Status) bool {
	for _, allowed := range transitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

// Replaces lists the statuses a stored record may hold for s to overwrite it:
// s itself and every status with a legal transition into s.
func (s Status) Replaces() []Status {
	out := []Status{s}
	for from := range transitions {
		if from.CanTransition(s) {
			out = append(out, from)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// ParseStatus maps a stored status name back to a Status.
func ParseStatus(name string) (Status, error) {
	for s, n := range statusNames {
		if n == name {
			return s, nil
		}
	}
	return statusUnknown, fmt.Errorf("%w: unknown status %q", libraryerr.ErrInvalidReservation, name)
}

// MarshalText lets Status render by name in JSON responses.
func (s Status) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

func (s *Status) UnmarshalText(text []byte) error {
	parsed, err := ParseStatus(string(text))
	if err != nil {
		return err
	}
	*s = parsed
	return nil
}
