package internal

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/SherClockHolmes/webpush-go"
	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"libreserve-backend/config"
	"libreserve-backend/internal/admission"
	"libreserve-backend/internal/api"
	"libreserve-backend/internal/db"
	"libreserve-backend/internal/libraryerr"
	"libreserve-backend/internal/model"
	"libreserve-backend/internal/notification"
	"libreserve-backend/internal/occupancy"
	"libreserve-backend/internal/policy"
	"libreserve-backend/internal/reservation"
	"libreserve-backend/internal/roster"
	"libreserve-backend/internal/store"
	"libreserve-backend/internal/sweeper"
	"libreserve-backend/internal/token"
)

var today = time.Date(2024, 3, 4, 0, 0, 0, 0, time.UTC)

func at(hour, minute int) time.Time {
	return today.Add(time.Duration(hour)*time.Hour + time.Duration(minute)*time.Minute)
}

type system struct {
	db           *gorm.DB
	router       *gin.Engine
	reservations *store.ReservationStore
	accounts     *store.AccountStore
	librarians   *store.LibrarianStore
	queue        *occupancy.Queue
	policies     *policy.Holder
	workers      *notification.WorkerPool
	tokens       *token.Service
	now          time.Time
}

func newSystem(t *testing.T) *system {
	gin.SetMode(gin.TestMode)
	testDB, err := gorm.Open(sqlite.Open("file:"+t.Name()+"?mode=memory&cache=shared"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)
	sqlDB, err := testDB.DB()
	require.NoError(t, err)
	t.Cleanup(func() { sqlDB.Close() })
	require.NoError(t, db.Migrate(testDB))

	p := policy.Policy{
		NumberOfSeats:                   2,
		ReserveLibrarianSeat:            true,
		NumberOfLibrarians:              1,
		RecommendedCheckInTime:          10,
		AllowLateCheckIn:                true,
		AllowedLateCheckInTimeInMinutes: 15,
		BookingTimeAllowedInMinutes:     60,
	}
	policies, err := policy.NewHolder(p)
	require.NoError(t, err)

	s := &system{
		db:           testDB,
		reservations: store.NewReservationStore(testDB),
		accounts:     store.NewAccountStore(testDB),
		librarians:   store.NewLibrarianStore(testDB),
		queue:        occupancy.NewQueue(p.Capacity(), p.StudentCapacity()),
		policies:     policies,
		// Workers are never started, so queued notices stay observable.
		workers: notification.NewWorkerPool(1, 16, testDB, &webpush.Options{}, zaptest.NewLogger(t)),
		tokens:  token.NewService("integration-secret", "libreserve", time.Hour, token.NewMemoryList(), zaptest.NewLogger(t)),
		now:     at(9, 5),
	}

	coordinator, err := admission.New(admission.Dependencies{
		Queue:        s.queue,
		Policy:       s.policies,
		Reservations: s.reservations,
		Librarians:   s.librarians,
		Accounts:     s.accounts,
		Tokens:       s.tokens,
		Notifier:     s.workers,
	}, admission.WithLogger(zaptest.NewLogger(t)), admission.WithClock(func() time.Time { return s.now }))
	require.NoError(t, err)

	h := api.NewHandler(coordinator, store.NewSubscriptionStore(testDB), &webpush.Options{VAPIDPublicKey: "pub"}, zaptest.NewLogger(t))
	s.router = api.NewRouter(h, s.tokens, config.ServerConfig{RateLimitPerSec: 1000, RateLimitBurst: 1000, CacheTTLSeconds: 60}, zaptest.NewLogger(t))
	return s
}

func (s *system) request(t *testing.T, method, path, bearer string) *httptest.ResponseRecorder {
	t.Helper()
	w := httptest.NewRecorder()
	req := httptest.NewRequest(method, path, nil)
	if bearer != "" {
		req.Header.Set("Authorization", "Bearer "+bearer)
	}
	s.router.ServeHTTP(w, req)
	return w
}

func (s *system) status(t *testing.T, code string) reservation.Status {
	t.Helper()
	r, err := s.reservations.FindByCode(context.Background(), code)
	require.NoError(t, err)
	return r.Status()
}

func (s *system) drainNotices() []notification.Kind {
	var kinds []notification.Kind
	for {
		select {
		case n := <-s.workers.Jobs():
			kinds = append(kinds, n.Kind)
		default:
			return kinds
		}
	}
}

func seedRoster(t *testing.T, s *system) {
	registry := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var resp roster.Response
		resp.Data.Total = 3
		resp.Data.Items = []roster.Entry{
			{MatricNumber: "CSC/2019/001", FullName: "Ada", Email: "ada@uni.test"},
			{MatricNumber: "CSC/2019/002", FullName: "Bola", Email: "bola@uni.test"},
			{MatricNumber: "CSC/2019/003", FullName: "Chidi", Email: "chidi@uni.test"},
		}
		json.NewEncoder(w).Encode(resp)
	}))
	defer registry.Close()

	n, err := roster.NewService(config.RosterConfig{
		Enabled:               true,
		UniversityURL:         registry.URL,
		PageSize:              10,
		ConnectTimeoutSeconds: 1,
		ReadTimeoutSeconds:    1,
	}, s.accounts, zaptest.NewLogger(t)).SyncOnce(context.Background())
	require.NoError(t, err)
	require.Equal(t, 3, n)
}

func seedBooking(t *testing.T, s *system, code, matric string, bookedAt time.Time) {
	r := reservation.New(code, reservation.Owner{Kind: reservation.KindStudent, ID: matric, Contact: matric + "@uni.test"}, bookedAt)
	require.NoError(t, s.reservations.Save(context.Background(), r))
}

// TestAdmissionLifecycle drives a library day through the HTTP surface and
// checks the durable state after each step.
func TestAdmissionLifecycle(t *testing.T) {
	s := newSystem(t)
	seedRoster(t, s)
	seedBooking(t, s, "ada-0900", "csc/2019/001", at(9, 0))
	seedBooking(t, s, "bola-0900", "csc/2019/002", at(9, 0))
	seedBooking(t, s, "chidi-0800", "csc/2019/003", at(8, 0))

	librarian, err := s.tokens.Issue("lib-01", token.RoleLibrarian)
	require.NoError(t, err)

	// Anonymous callers never reach the desk routes.
	w := s.request(t, http.MethodGet, "/api/reservations/today", "")
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w = s.request(t, http.MethodPost, "/api/librarians/sign-in", librarian)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	_, err = s.librarians.FindActiveByStaffNumber(context.Background(), "lib-01")
	require.NoError(t, err)

	w = s.request(t, http.MethodPost, "/api/admissions/students/matric/CSC%2F2019%2F001", librarian)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, reservation.StatusCheckedIn, s.status(t, "ada-0900"))

	// One seat is held back for the librarian, so the student side is now full.
	w = s.request(t, http.MethodPost, "/api/admissions/students/code/bola-0900", librarian)
	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.Equal(t, reservation.StatusBooked, s.status(t, "bola-0900"))

	w = s.request(t, http.MethodPost, "/api/admissions/students/code/chidi-0800", librarian)
	assert.Equal(t, http.StatusForbidden, w.Code)
	assert.Contains(t, w.Body.String(), "late_check_in")
	assert.Equal(t, reservation.StatusExpired, s.status(t, "chidi-0800"))

	w = s.request(t, http.MethodGet, "/api/occupancy/students", librarian)
	require.Equal(t, http.StatusOK, w.Code)
	var present []admission.ReservationView
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &present))
	require.Len(t, present, 1)
	assert.Equal(t, "ada-0900", present[0].ReservationCode)

	s.now = at(10, 30)
	w = s.request(t, http.MethodDelete, "/api/occupancy/students/code/ada-0900", librarian)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	ada, err := s.reservations.FindByCode(context.Background(), "ada-0900")
	require.NoError(t, err)
	assert.Equal(t, reservation.StatusBlacklisted, ada.Status())
	assert.Equal(t, 25, ada.OverTime)
	assert.Equal(t, []notification.Kind{notification.KindKickedOut}, s.drainNotices())

	w = s.request(t, http.MethodPost, "/api/students/csc%2F2019%2F002/blacklist", librarian)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var bola model.Student
	require.NoError(t, s.db.First(&bola, "matric_number = ?", "csc/2019/002").Error)
	assert.False(t, bola.NotLocked)
	assert.Equal(t, []notification.Kind{notification.KindBlacklisted}, s.drainNotices())

	s.now = at(9, 5)
	w = s.request(t, http.MethodPost, "/api/admissions/students/code/bola-0900", librarian)
	assert.Equal(t, http.StatusLocked, w.Code)

	w = s.request(t, http.MethodPost, "/api/librarians/sign-out", librarian)
	assert.Equal(t, http.StatusNoContent, w.Code)
	assert.Zero(t, s.queue.Len())

	w = s.request(t, http.MethodGet, "/api/reservations/today", librarian)
	assert.Equal(t, http.StatusUnauthorized, w.Code, "a signed-out token is revoked")
}

func TestSweeperExpiresNoShows(t *testing.T) {
	s := newSystem(t)
	seedBooking(t, s, "no-show", "csc/2019/001", at(8, 0))
	seedBooking(t, s, "upcoming", "csc/2019/002", at(11, 0))
	seedBooking(t, s, "on-time", "csc/2019/003", at(9, 0))

	librarian, err := s.tokens.Issue("lib-01", token.RoleLibrarian)
	require.NoError(t, err)
	w := s.request(t, http.MethodPost, "/api/admissions/students/code/on-time", librarian)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	s.now = at(10, 30)
	sw := sweeper.New(s.reservations, s.queue, s.policies, s.workers, time.Minute, zaptest.NewLogger(t),
		sweeper.WithClock(func() time.Time { return s.now }))
	report, err := sw.SweepOnce(context.Background())
	require.NoError(t, err)
	assert.Equal(t, sweeper.Report{Expired: 1, Overtime: 1, Notified: 1}, report)

	assert.Equal(t, reservation.StatusExpired, s.status(t, "no-show"))
	assert.Equal(t, reservation.StatusBooked, s.status(t, "upcoming"))
	onTime, err := s.reservations.FindByCode(context.Background(), "on-time")
	require.NoError(t, err)
	assert.Equal(t, 25, onTime.OverTime)
	assert.Equal(t, []notification.Kind{notification.KindOvertime}, s.drainNotices())

	// The no-show can no longer be admitted on its expired booking.
	w = s.request(t, http.MethodPost, "/api/admissions/students/code/no-show", librarian)
	assert.Equal(t, http.StatusConflict, w.Code)
}

// sweptUnderneath expires every reservation right after a sign-in loads it,
// the way a sweeper pass landing mid-request would.
type sweptUnderneath struct {
	*store.ReservationStore
}

func (s sweptUnderneath) FindByCodeAndDate(ctx context.Context, code, day string) (reservation.Record, error) {
	r, err := s.ReservationStore.FindByCodeAndDate(ctx, code, day)
	if err != nil {
		return r, err
	}
	if _, err := s.Expire(ctx, code); err != nil {
		return r, err
	}
	return r, nil
}

func TestSignInLosesToConcurrentExpiry(t *testing.T) {
	ctx := context.Background()
	s := newSystem(t)
	seedBooking(t, s, "late-ish", "csc/2019/001", at(8, 55))

	coordinator, err := admission.New(admission.Dependencies{
		Queue:        s.queue,
		Policy:       s.policies,
		Reservations: sweptUnderneath{s.reservations},
		Librarians:   s.librarians,
		Accounts:     s.accounts,
		Tokens:       s.tokens,
		Notifier:     s.workers,
	}, admission.WithLogger(zaptest.NewLogger(t)), admission.WithClock(func() time.Time { return s.now }))
	require.NoError(t, err)

	_, err = coordinator.SignInByReservationCode(ctx, "late-ish")
	assert.ErrorIs(t, err, libraryerr.ErrInvalidReservation)
	assert.Zero(t, s.queue.Len(), "the seat is released again")
	assert.Equal(t, reservation.StatusExpired, s.status(t, "late-ish"))
}
