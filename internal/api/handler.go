package api

import (
	"context"

	"github.com/SherClockHolmes/webpush-go"
	"go.uber.org/zap"

	"libreserve-backend/internal/admission"
	"libreserve-backend/internal/model"
	"libreserve-backend/internal/reservation"
)

// Admissions is the part of the admission coordinator the HTTP layer drives.
type Admissions interface {
	SignInByMatricNumber(ctx context.Context, matricNumber string) (admission.Result, error)
	SignInByReservationCode(ctx context.Context, code string) (admission.Result, error)
	SignOutStudent(ctx context.Context, matricNumber string) (reservation.Record, error)
	KickOutByMatricNumber(ctx context.Context, matricNumber string) (reservation.Record, error)
	KickOutByReservationCode(ctx context.Context, code string) (reservation.Record, error)
	BlacklistStudent(ctx context.Context, matricNumber string) (*admission.Student, error)
	SignInLibrarian(ctx context.Context, staffNumber string) (admission.Result, error)
	SignOutLibrarian(ctx context.Context, staffNumber, token string) error

	VerifyReservationCode(ctx context.Context, code string) (admission.ReservationView, error)
	StudentReservationsForToday(ctx context.Context, matricNumber string) ([]admission.ReservationView, error)
	StudentReservations(ctx context.Context, matricNumber string) ([]admission.ReservationView, error)
	StudentsInLibrary() ([]admission.ReservationView, error)
	ReservationsForToday(ctx context.Context) ([]admission.ReservationView, error)
}

// Subscriptions stores browser push subscriptions.
type Subscriptions interface {
	Put(ctx context.Context, sub model.PushSubscription) error
	Get(ctx context.Context, endpoint string) (model.PushSubscription, error)
	Delete(ctx context.Context, endpoint string) error
}

// Handler holds shared dependencies for API handlers.
type Handler struct {
	admissions    Admissions
	subscriptions Subscriptions
	webpush       *webpush.Options
	logger        *zap.Logger
}

// NewHandler creates a new API handler.
func NewHandler(a Admissions, subs Subscriptions, webpushOptions *webpush.Options, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{
		admissions:    a,
		subscriptions: subs,
		webpush:       webpushOptions,
		logger:        logger,
	}
}
