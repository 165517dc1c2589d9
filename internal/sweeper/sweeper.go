// Package sweeper runs the periodic reservation lifecycle maintenance that no
// entry or exit event triggers on its own.
package sweeper

import (
	"context"
	"time"

	"go.uber.org/zap"

	"libreserve-backend/internal/entry"
	"libreserve-backend/internal/metrics"
	"libreserve-backend/internal/notification"
	"libreserve-backend/internal/occupancy"
	"libreserve-backend/internal/policy"
	"libreserve-backend/internal/reservation"
)

// Store is what the sweeper needs from the reservation store.
type Store interface {
	ListByDateAndStatus(ctx context.Context, day string, status reservation.Status) ([]reservation.Record, error)
	Expire(ctx context.Context, code string) (bool, error)
	UpdateOverTime(ctx context.Context, code string, minutes int) error
}

type Notifier interface {
	Notify(kind notification.Kind, contact notification.Contact)
}

// Report summarizes one sweep.
type Report struct {
	Expired  int
	Overtime int
	Notified int
}

// Sweeper expires no-show reservations and tracks overtime of students inside.
// SweepOnce must not be called concurrently with itself.
type Sweeper struct {
	store    Store
	queue    *occupancy.Queue
	policy   *policy.Holder
	notifier Notifier
	interval time.Duration
	logger   *zap.Logger
	now      func() time.Time

	// reservation codes whose overtime notice has gone out
	notified map[string]struct{}
}

type Option func(*Sweeper)

// WithClock replaces time.Now. It must agree with the admission clock on what
// "today" is.
func WithClock(now func() time.Time) Option {
	return func(s *Sweeper) {
		s.now = now
	}
}

func New(store Store, queue *occupancy.Queue, p *policy.Holder, notifier Notifier, interval time.Duration, logger *zap.Logger, opts ...Option) *Sweeper {
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &Sweeper{
		store:    store,
		queue:    queue,
		policy:   p,
		notifier: notifier,
		interval: interval,
		logger:   logger,
		now:      time.Now,
		notified: make(map[string]struct{}),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Run sweeps every interval until ctx ends.
func (s *Sweeper) Run(ctx context.Context) {
	s.logger.Info("starting lifecycle sweeper", zap.Duration("interval", s.interval))
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			s.logger.Info("lifecycle sweeper shutting down")
			return
		case <-ticker.C:
			report, err := s.SweepOnce(ctx)
			if err != nil {
				s.logger.Error("lifecycle sweep failed", zap.Error(err))
				continue
			}
			if report != (Report{}) {
				s.logger.Info("lifecycle sweep finished",
					zap.Int("expired", report.Expired),
					zap.Int("overtime", report.Overtime),
					zap.Int("notified", report.Notified))
			}
		}
	}
}

// SweepOnce expires today's BOOKED reservations whose check-in window has
// closed and records overtime for every student still inside.
func (s *Sweeper) SweepOnce(ctx context.Context) (Report, error) {
	start := time.Now()
	defer func() {
		metrics.SweepDurationMs.Observe(float64(time.Since(start).Microseconds()) / 1000.0)
	}()

	now := s.now()
	p := s.policy.Load()
	var report Report

	booked, err := s.store.ListByDateAndStatus(ctx, now.Format(reservation.DayLayout), reservation.StatusBooked)
	if err != nil {
		return report, err
	}
	for _, r := range booked {
		if !now.After(entry.Deadline(r.BookedAt, p)) {
			continue
		}
		expired, err := s.store.Expire(ctx, r.Code)
		if err != nil {
			return report, err
		}
		if expired {
			report.Expired++
			metrics.Expired.Inc()
		}
	}

	present := make(map[string]struct{})
	allowed := p.SessionLength()
	for _, e := range s.queue.List(reservation.KindStudent) {
		r := e.Reservation
		present[r.Code] = struct{}{}

		minutes := r.OverTimeAt(now, allowed)
		if minutes == 0 {
			continue
		}
		if err := s.store.UpdateOverTime(ctx, r.Code, minutes); err != nil {
			s.logger.Warn("failed to record overtime", zap.String("reservation_code", r.Code), zap.Error(err))
			continue
		}
		report.Overtime++

		if _, done := s.notified[r.Code]; !done {
			s.notified[r.Code] = struct{}{}
			s.notifier.Notify(notification.KindOvertime, notification.Contact{OwnerID: e.OwnerID, Email: r.Owner.Contact})
			report.Notified++
		}
	}

	for code := range s.notified {
		if _, ok := present[code]; !ok {
			delete(s.notified, code)
		}
	}
	return report, nil
}
