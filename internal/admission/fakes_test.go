package admission

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"

	"libreserve-backend/internal/libraryerr"
	"libreserve-backend/internal/notification"
	"libreserve-backend/internal/reservation"
)

// memReservations is an in-memory ReservationStore keyed by code.
type memReservations struct {
	mu      sync.Mutex
	records map[string]reservation.Record
	saveErr error
	saves   int
}

func newMemReservations(rs ...reservation.Record) *memReservations {
	m := &memReservations{records: make(map[string]reservation.Record)}
	for _, r := range rs {
		m.records[r.Code] = r
	}
	return m
}

func (m *memReservations) get(code string) reservation.Record {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.records[code]
}

func (m *memReservations) filter(keep func(reservation.Record) bool) []reservation.Record {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []reservation.Record
	for _, r := range m.records {
		if keep(r) {
			out = append(out, r)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].BookedAt.Before(out[j].BookedAt) })
	return out
}

func (m *memReservations) FindActiveByOwnerAndDate(_ context.Context, matric, day string) (reservation.Record, error) {
	rs := m.filter(func(r reservation.Record) bool { return r.Owner.ID == matric && r.Day() == day })
	for _, r := range rs {
		if r.Status() == reservation.StatusBooked {
			return r, nil
		}
	}
	if len(rs) > 0 {
		return rs[0], nil
	}
	return reservation.Record{}, libraryerr.ErrReservationNotFound
}

func (m *memReservations) FindByCodeAndDate(_ context.Context, code, day string) (reservation.Record, error) {
	rs := m.filter(func(r reservation.Record) bool { return r.Code == code && r.Day() == day })
	if len(rs) == 0 {
		return reservation.Record{}, libraryerr.ErrReservationNotFound
	}
	return rs[0], nil
}

func (m *memReservations) FindByCode(_ context.Context, code string) (reservation.Record, error) {
	rs := m.filter(func(r reservation.Record) bool { return r.Code == code })
	if len(rs) == 0 {
		return reservation.Record{}, libraryerr.ErrReservationNotFound
	}
	return rs[0], nil
}

func (m *memReservations) ListByOwnerAndDate(_ context.Context, matric, day string) ([]reservation.Record, error) {
	return m.filter(func(r reservation.Record) bool { return r.Owner.ID == matric && r.Day() == day }), nil
}

func (m *memReservations) ListByOwner(_ context.Context, matric string) ([]reservation.Record, error) {
	return m.filter(func(r reservation.Record) bool { return r.Owner.ID == matric }), nil
}

func (m *memReservations) ListByDate(_ context.Context, day string) ([]reservation.Record, error) {
	return m.filter(func(r reservation.Record) bool { return r.Day() == day }), nil
}

func (m *memReservations) Save(_ context.Context, r reservation.Record) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.saveErr != nil {
		return m.saveErr
	}
	m.saves++
	m.records[r.Code] = r
	return nil
}

// memLibrarians is an in-memory LibrarianSessionStore.
type memLibrarians struct {
	mu       sync.Mutex
	sessions map[string]reservation.Record
	saveErr  error
	// afterFind runs once a lookup has finished, outside the lock.
	afterFind func()
}

func newMemLibrarians() *memLibrarians {
	return &memLibrarians{sessions: make(map[string]reservation.Record)}
}

func (m *memLibrarians) FindActiveByStaffNumber(_ context.Context, staff string) (reservation.Record, error) {
	if m.afterFind != nil {
		defer m.afterFind()
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, r := range m.sessions {
		if r.Owner.ID == staff && r.Status() == reservation.StatusCheckedIn {
			return r, nil
		}
	}
	return reservation.Record{}, libraryerr.ErrReservationNotFound
}

func (m *memLibrarians) Save(_ context.Context, r reservation.Record) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.saveErr != nil {
		return m.saveErr
	}
	m.sessions[r.Code] = r
	return nil
}

// memAccounts is an in-memory AccountStore. Saved reservations are forwarded
// to reservations, like the transactional gorm store does.
type memAccounts struct {
	mu           sync.Mutex
	students     map[string]Student
	reservations *memReservations
	saves        int
}

func newMemAccounts(reservations *memReservations, students ...Student) *memAccounts {
	m := &memAccounts{students: make(map[string]Student), reservations: reservations}
	for _, s := range students {
		m.students[s.MatricNumber] = s
	}
	return m
}

func (m *memAccounts) FindByMatricNumber(_ context.Context, matric string) (*Student, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.students[matric]
	if !ok {
		return nil, fmt.Errorf("%w: %s", libraryerr.ErrStudentNotFound, matric)
	}
	return &s, nil
}

func (m *memAccounts) Save(ctx context.Context, s *Student) error {
	for _, r := range s.Reservations {
		if err := m.reservations.Save(ctx, r); err != nil {
			return err
		}
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.saves++
	stored := *s
	stored.Reservations = nil
	m.students[s.MatricNumber] = stored
	return nil
}

func (m *memAccounts) locked(matric string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return !m.students[matric].Account.NotLocked
}

type fakeTokens struct {
	mu     sync.Mutex
	ok     bool
	tokens []string
}

func (f *fakeTokens) Blacklist(_ context.Context, token string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.tokens = append(f.tokens, token)
	return f.ok
}

type recordingNotifier struct {
	mu      sync.Mutex
	notices []notification.Notice
}

func (n *recordingNotifier) Notify(kind notification.Kind, contact notification.Contact) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.notices = append(n.notices, notification.Notice{Kind: kind, Contact: contact})
}

func (n *recordingNotifier) kinds() []notification.Kind {
	n.mu.Lock()
	defer n.mu.Unlock()
	out := make([]notification.Kind, 0, len(n.notices))
	for _, notice := range n.notices {
		out = append(out, notice.Kind)
	}
	return out
}

var errDiskFull = errors.New("disk full")
