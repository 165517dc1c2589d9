// Package admission drives the reservation lifecycle for every entry and exit
// event: it validates, updates the occupancy queue and persists the outcome.
package admission

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"libreserve-backend/internal/entry"
	"libreserve-backend/internal/libraryerr"
	"libreserve-backend/internal/metrics"
	"libreserve-backend/internal/notification"
	"libreserve-backend/internal/occupancy"
	"libreserve-backend/internal/policy"
	"libreserve-backend/internal/reservation"
)

// Dependencies are the collaborators a Coordinator cannot run without.
type Dependencies struct {
	Queue        *occupancy.Queue
	Policy       *policy.Holder
	Reservations ReservationStore
	Librarians   LibrarianSessionStore
	Accounts     AccountStore
	Tokens       TokenService
	Notifier     Notifier
}

// Coordinator is the admission engine. It is safe for concurrent use; the
// occupancy queue is the only state it shares between requests.
type Coordinator struct {
	Dependencies
	logger  *zap.Logger
	now     func() time.Time
	newCode func() string
}

type Option func(*Coordinator)

func WithLogger(logger *zap.Logger) Option {
	return func(c *Coordinator) {
		c.logger = logger
	}
}

// WithClock replaces time.Now. The clock's location decides what "today" is.
func WithClock(now func() time.Time) Option {
	return func(c *Coordinator) {
		c.now = now
	}
}

// WithCodeGenerator replaces the generator used for librarian session codes.
func WithCodeGenerator(gen func() string) Option {
	return func(c *Coordinator) {
		c.newCode = gen
	}
}

func New(deps Dependencies, opts ...Option) (*Coordinator, error) {
	switch {
	case deps.Queue == nil:
		return nil, errors.New("occupancy queue is required")
	case deps.Policy == nil:
		return nil, errors.New("policy holder is required")
	case deps.Reservations == nil, deps.Librarians == nil, deps.Accounts == nil:
		return nil, errors.New("reservation, librarian and account stores are required")
	case deps.Tokens == nil:
		return nil, errors.New("token service is required")
	case deps.Notifier == nil:
		return nil, errors.New("notifier is required")
	}

	c := &Coordinator{
		Dependencies: deps,
		logger:       zap.NewNop(),
		now:          time.Now,
		newCode:      uuid.NewString,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// Result describes what a sign-in did, with enough detail to reconcile the
// queue and the store if the two ever disagree.
type Result struct {
	Record         reservation.Record
	PreviousStatus reservation.Status
	Admitted       bool
	Persisted      bool
}

func (c *Coordinator) today() string {
	return c.now().Format(reservation.DayLayout)
}

// local moves a stored record into the clock's zone, so booked and check-in
// times read the same as "today" does.
func (c *Coordinator) local(r reservation.Record) reservation.Record {
	return r.In(c.now().Location())
}

// SignInByMatricNumber admits a student on today's reservation.
func (c *Coordinator) SignInByMatricNumber(ctx context.Context, matricNumber string) (Result, error) {
	r, err := c.Reservations.FindActiveByOwnerAndDate(ctx, matricNumber, c.today())
	if err != nil {
		return Result{}, err
	}
	return c.allowEntry(ctx, c.local(r))
}

// SignInByReservationCode admits a student on the reservation with the given code,
// provided it was made for today.
func (c *Coordinator) SignInByReservationCode(ctx context.Context, code string) (Result, error) {
	r, err := c.Reservations.FindByCodeAndDate(ctx, code, c.today())
	if err != nil {
		return Result{}, err
	}
	return c.allowEntry(ctx, c.local(r))
}

// allowEntry validates r, takes a seat, then persists CHECKED_IN. The seat is
// taken first so the store write never happens under the queue lock; if the
// write fails the seat is released again.
func (c *Coordinator) allowEntry(ctx context.Context, r reservation.Record) (res Result, err error) {
	defer func() { metrics.Admissions.WithLabelValues("student_sign_in", metrics.Outcome(err)).Inc() }()

	res = Result{Record: r, PreviousStatus: r.Status()}
	if r.Owner.Kind != reservation.KindStudent {
		return res, fmt.Errorf("%w: %s is not a student reservation", libraryerr.ErrInvalidReservation, r.Code)
	}

	if err := c.checkAccount(ctx, r.Owner.ID); err != nil {
		return res, err
	}

	now := c.now()
	candidate := r
	if err := entry.Validate(&candidate, now, c.Policy.Load()); err != nil {
		if candidate.Status() == reservation.StatusExpired {
			res.Record = candidate
			if saveErr := c.Reservations.Save(ctx, candidate); saveErr != nil {
				c.logger.Warn("failed to persist expired reservation",
					zap.String("reservation_code", candidate.Code), zap.Error(saveErr))
			} else {
				res.Persisted = true
			}
		}
		return res, err
	}

	if err := candidate.CheckIn(now); err != nil {
		return res, err
	}

	seat := occupancy.NewEntry(candidate)
	if !c.Queue.SignIn(seat) {
		return res, c.fault("seat admission rejected for validated reservation",
			zap.String("matric_number", r.Owner.ID),
			zap.String("reservation_code", r.Code),
			zap.Bool("library_full", c.Queue.IsFull()))
	}
	res.Admitted = true

	if err := c.Reservations.Save(ctx, candidate); err != nil {
		if !c.Queue.SignOut(seat) {
			c.logger.Error("failed to release seat after save failure", zap.String("reservation_code", r.Code))
		}
		res.Admitted = false
		return res, fmt.Errorf("save checked-in reservation %s: %w", r.Code, err)
	}

	c.logger.Info("student signed in",
		zap.String("matric_number", r.Owner.ID),
		zap.String("reservation_code", r.Code))
	res.Record = candidate
	res.Persisted = true
	return res, nil
}

// checkAccount refuses blacklisted students. A student missing from the
// roster is not locked; the reservation alone is enough to enter.
func (c *Coordinator) checkAccount(ctx context.Context, matricNumber string) error {
	s, err := c.Accounts.FindByMatricNumber(ctx, matricNumber)
	switch {
	case errors.Is(err, libraryerr.ErrStudentNotFound):
		return nil
	case err != nil:
		return err
	case !s.Account.NotLocked:
		return fmt.Errorf("%w: %s", libraryerr.ErrAccountLocked, matricNumber)
	}
	return nil
}

// SignOutStudent ends a present student's session normally.
func (c *Coordinator) SignOutStudent(ctx context.Context, matricNumber string) (r reservation.Record, err error) {
	defer func() { metrics.Admissions.WithLabelValues("student_sign_out", metrics.Outcome(err)).Inc() }()

	seat, ok := c.Queue.IsPresent(reservation.KindStudent, matricNumber)
	if !ok {
		return reservation.Record{}, libraryerr.ErrUserNotInLibrary
	}

	r = seat.Reservation
	if err := r.CheckOut(reservation.StatusCheckedOut, c.now(), c.Policy.Load().SessionLength()); err != nil {
		return reservation.Record{}, err
	}
	if !c.Queue.SignOut(seat) {
		return reservation.Record{}, c.fault("present student could not be signed out",
			zap.String("matric_number", matricNumber))
	}
	if err := c.Reservations.Save(ctx, r); err != nil {
		return r, fmt.Errorf("save checked-out reservation %s: %w", r.Code, err)
	}
	return r, nil
}

// KickOutByMatricNumber forcibly removes a present student and blacklists the reservation.
func (c *Coordinator) KickOutByMatricNumber(ctx context.Context, matricNumber string) (reservation.Record, error) {
	seat, ok := c.Queue.IsPresent(reservation.KindStudent, matricNumber)
	if !ok {
		return reservation.Record{}, libraryerr.ErrUserNotInLibrary
	}
	return c.kickOutAndSave(ctx, seat)
}

// KickOutByReservationCode is KickOutByMatricNumber keyed by the reservation the student entered on.
func (c *Coordinator) KickOutByReservationCode(ctx context.Context, code string) (reservation.Record, error) {
	seat, ok := c.Queue.FindByReservationCode(code)
	if !ok || seat.Kind != reservation.KindStudent {
		return reservation.Record{}, libraryerr.ErrUserNotInLibrary
	}
	return c.kickOutAndSave(ctx, seat)
}

func (c *Coordinator) kickOutAndSave(ctx context.Context, seat occupancy.Entry) (r reservation.Record, err error) {
	defer func() { metrics.Admissions.WithLabelValues("kick_out", metrics.Outcome(err)).Inc() }()

	r, err = c.kickOut(seat)
	if err != nil {
		return reservation.Record{}, err
	}
	if err := c.Reservations.Save(ctx, r); err != nil {
		return r, fmt.Errorf("save blacklisted reservation %s: %w", r.Code, err)
	}
	return r, nil
}

// kickOut is the forced-exit transition shared by kick-out and blacklisting.
func (c *Coordinator) kickOut(seat occupancy.Entry) (reservation.Record, error) {
	if _, ok := c.Queue.IsPresent(seat.Kind, seat.OwnerID); !ok {
		return reservation.Record{}, libraryerr.ErrUserNotInLibrary
	}

	r := seat.Reservation
	if err := r.CheckOut(reservation.StatusBlacklisted, c.now(), c.Policy.Load().SessionLength()); err != nil {
		return reservation.Record{}, err
	}
	if !c.Queue.SignOut(seat) {
		return reservation.Record{}, c.fault("present student could not be kicked out",
			zap.String("matric_number", seat.OwnerID),
			zap.String("reservation_code", r.Code))
	}

	c.logger.Info("student kicked out",
		zap.String("matric_number", seat.OwnerID),
		zap.String("reservation_code", r.Code))
	c.Notifier.Notify(notification.KindKickedOut, notification.Contact{OwnerID: seat.OwnerID, Email: r.Owner.Contact})
	return r, nil
}

// BlacklistStudent locks the student's account, removes them from the library
// if they are inside, and always sends a blacklist notice.
func (c *Coordinator) BlacklistStudent(ctx context.Context, matricNumber string) (s *Student, err error) {
	defer func() { metrics.Admissions.WithLabelValues("blacklist", metrics.Outcome(err)).Inc() }()

	s, err = c.Accounts.FindByMatricNumber(ctx, matricNumber)
	if err != nil {
		return nil, err
	}
	s.Account.NotLocked = false

	if seat, ok := c.Queue.IsPresent(reservation.KindStudent, matricNumber); ok {
		r, err := c.kickOut(seat)
		if err != nil {
			return nil, err
		}
		s.Reservations = append(s.Reservations, r)
	}

	if err := c.Accounts.Save(ctx, s); err != nil {
		return nil, fmt.Errorf("save blacklisted student %s: %w", matricNumber, err)
	}

	c.logger.Info("student blacklisted", zap.String("matric_number", matricNumber))
	c.Notifier.Notify(notification.KindBlacklisted, notification.Contact{OwnerID: s.MatricNumber, Email: s.Email})
	return s, nil
}

// SignInLibrarian opens (or reuses) a librarian session. Librarians are staff,
// so no check-in window applies.
func (c *Coordinator) SignInLibrarian(ctx context.Context, staffNumber string) (res Result, err error) {
	defer func() { metrics.Admissions.WithLabelValues("librarian_sign_in", metrics.Outcome(err)).Inc() }()

	if seat, ok := c.Queue.IsPresent(reservation.KindLibrarian, staffNumber); ok {
		return Result{Record: seat.Reservation, PreviousStatus: seat.Reservation.Status(), Admitted: true, Persisted: true}, nil
	}

	r, err := c.Librarians.FindActiveByStaffNumber(ctx, staffNumber)
	switch {
	case err == nil:
		r = c.local(r)
		res = Result{Record: r, PreviousStatus: r.Status(), Persisted: true}
	case errors.Is(err, libraryerr.ErrReservationNotFound):
		now := c.now()
		r = reservation.New(c.newCode(), reservation.Owner{Kind: reservation.KindLibrarian, ID: staffNumber}, now)
		res = Result{PreviousStatus: r.Status()}
		if err := r.CheckIn(now); err != nil {
			return res, err
		}
	default:
		return Result{}, err
	}

	seat := occupancy.NewEntry(r)
	if !c.Queue.SignIn(seat) {
		// A concurrent sign-in by the same librarian got there first.
		if present, ok := c.Queue.IsPresent(reservation.KindLibrarian, staffNumber); ok {
			return Result{Record: present.Reservation, PreviousStatus: present.Reservation.Status(), Admitted: true, Persisted: true}, nil
		}
		return res, c.fault("librarian could not take a seat",
			zap.String("staff_number", staffNumber),
			zap.Bool("library_full", c.Queue.IsFull()))
	}
	res.Admitted = true
	res.Record = r

	if !res.Persisted {
		if err := c.Librarians.Save(ctx, r); err != nil {
			c.Queue.SignOut(seat)
			res.Admitted = false
			return res, fmt.Errorf("save librarian session %s: %w", r.Code, err)
		}
		res.Persisted = true
	}

	c.logger.Info("librarian signed in", zap.String("staff_number", staffNumber))
	return res, nil
}

// SignOutLibrarian closes the librarian's session if one is open and always
// blacklists the presented token.
func (c *Coordinator) SignOutLibrarian(ctx context.Context, staffNumber, token string) (err error) {
	defer func() { metrics.Admissions.WithLabelValues("librarian_sign_out", metrics.Outcome(err)).Inc() }()

	wasInSession, signedOut := false, false

	r, err := c.Librarians.FindActiveByStaffNumber(ctx, staffNumber)
	switch {
	case err == nil:
		r = c.local(r)
		wasInSession = true
		signedOut = c.Queue.SignOut(occupancy.NewEntry(r))
		if err := r.CheckOut(reservation.StatusLibrarianCheckedOut, c.now(), 0); err != nil {
			return err
		}
		if err := c.Librarians.Save(ctx, r); err != nil {
			c.logger.Error("failed to persist librarian check-out",
				zap.String("staff_number", staffNumber), zap.Error(err))
		}
	case errors.Is(err, libraryerr.ErrReservationNotFound):
	default:
		return err
	}

	blacklisted := c.Tokens.Blacklist(ctx, token)
	if wasInSession && !signedOut {
		return c.fault("open librarian session was not in the occupancy queue",
			zap.String("staff_number", staffNumber))
	}
	if !blacklisted {
		return c.fault("access token could not be blacklisted", zap.String("staff_number", staffNumber))
	}
	c.logger.Info("librarian signed out", zap.String("staff_number", staffNumber), zap.Bool("had_session", wasInSession))
	return nil
}

func (c *Coordinator) fault(msg string, fields ...zap.Field) error {
	metrics.RuntimeFaults.Inc()
	c.logger.Error(msg, fields...)
	return libraryerr.Fault("%s", msg)
}
