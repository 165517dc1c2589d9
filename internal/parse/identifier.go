// Package parse normalizes the identifiers people type at the library desk.
package parse

import (
	"errors"
	"fmt"
	"regexp"
	"strings"
)

var (
	ErrEmpty     = errors.New("identifier is empty")
	ErrMalformed = errors.New("identifier is malformed")
)

var (
	// Matric and staff numbers look like "csc/2019/001" or "lib-0042".
	personRe = regexp.MustCompile(`^[a-z0-9][a-z0-9/_.\-]{1,63}$`)
	codeRe   = regexp.MustCompile(`^[A-Za-z0-9][A-Za-z0-9_\-]{3,63}$`)
	spaceRe  = regexp.MustCompile(`\s+`)
)

// MatricNumber returns the canonical form of a student's matric number:
// trimmed, inner whitespace removed and lower-cased.
func MatricNumber(raw string) (string, error) {
	return person("matric number", raw)
}

// StaffNumber is MatricNumber for librarians.
func StaffNumber(raw string) (string, error) {
	return person("staff number", raw)
}

// ReservationCode trims a reservation code. Codes are case-sensitive.
func ReservationCode(raw string) (string, error) {
	s := strings.TrimSpace(raw)
	if s == "" {
		return "", fmt.Errorf("reservation code: %w", ErrEmpty)
	}
	if !codeRe.MatchString(s) {
		return "", fmt.Errorf("reservation code %q: %w", raw, ErrMalformed)
	}
	return s, nil
}

func person(what, raw string) (string, error) {
	s := strings.ToLower(spaceRe.ReplaceAllString(strings.TrimSpace(raw), ""))
	if s == "" {
		return "", fmt.Errorf("%s: %w", what, ErrEmpty)
	}
	if !personRe.MatchString(s) {
		return "", fmt.Errorf("%s %q: %w", what, raw, ErrMalformed)
	}
	return s, nil
}
