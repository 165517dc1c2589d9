package store

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"libreserve-backend/internal/admission"
	"libreserve-backend/internal/libraryerr"
	"libreserve-backend/internal/model"
	"libreserve-backend/internal/reservation"
)

var bookedFirst = fmt.Sprintf("CASE WHEN status = '%s' THEN 0 ELSE 1 END, booked_at", reservation.StatusBooked)

// ReservationStore is the GORM-backed store of student reservations.
type ReservationStore struct {
	db *gorm.DB
}

// NewReservationStore creates a new GORM-backed reservation store.
func NewReservationStore(db *gorm.DB) *ReservationStore {
	return &ReservationStore{db: db}
}

// DB exposes the underlying handle.
func (s *ReservationStore) DB() *gorm.DB {
	return s.db
}

// FindActiveByOwnerAndDate returns the student's reservation for day, preferring
// the earliest one still BOOKED over those already consumed.
func (s *ReservationStore) FindActiveByOwnerAndDate(ctx context.Context, matricNumber, day string) (reservation.Record, error) {
	var row model.StudentReservation
	err := s.db.WithContext(ctx).
		Where("matric_number = ? AND reserved_for = ?", matricNumber, day).
		Order(bookedFirst).
		First(&row).Error
	if err != nil {
		return reservation.Record{}, notFound(err, "reservation for %s on %s", matricNumber, day)
	}
	return studentRecord(row)
}

// FindByCodeAndDate returns the reservation with the given code made for day.
func (s *ReservationStore) FindByCodeAndDate(ctx context.Context, code, day string) (reservation.Record, error) {
	var row model.StudentReservation
	err := s.db.WithContext(ctx).
		Where("reservation_code = ? AND reserved_for = ?", code, day).
		First(&row).Error
	if err != nil {
		return reservation.Record{}, notFound(err, "reservation %s on %s", code, day)
	}
	return studentRecord(row)
}

// FindByCode returns the reservation with the given code, whatever the day.
func (s *ReservationStore) FindByCode(ctx context.Context, code string) (reservation.Record, error) {
	var row model.StudentReservation
	if err := s.db.WithContext(ctx).Where("reservation_code = ?", code).First(&row).Error; err != nil {
		return reservation.Record{}, notFound(err, "reservation %s", code)
	}
	return studentRecord(row)
}

func (s *ReservationStore) ListByOwnerAndDate(ctx context.Context, matricNumber, day string) ([]reservation.Record, error) {
	return s.list(ctx, "matric_number = ? AND reserved_for = ?", matricNumber, day)
}

func (s *ReservationStore) ListByOwner(ctx context.Context, matricNumber string) ([]reservation.Record, error) {
	return s.list(ctx, "matric_number = ?", matricNumber)
}

func (s *ReservationStore) ListByDate(ctx context.Context, day string) ([]reservation.Record, error) {
	return s.list(ctx, "reserved_for = ?", day)
}

// ListByDateAndStatus is used by the lifecycle sweeper.
func (s *ReservationStore) ListByDateAndStatus(ctx context.Context, day string, status reservation.Status) ([]reservation.Record, error) {
	return s.list(ctx, "reserved_for = ? AND status = ?", day, status.String())
}

func (s *ReservationStore) list(ctx context.Context, query string, args ...any) ([]reservation.Record, error) {
	var rows []model.StudentReservation
	if err := s.db.WithContext(ctx).Where(query, args...).Order("booked_at").Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("failed to list reservations: %w", err)
	}
	records := make([]reservation.Record, 0, len(rows))
	for _, row := range rows {
		r, err := studentRecord(row)
		if err != nil {
			return nil, fmt.Errorf("reservation %s: %w", row.ReservationCode, err)
		}
		records = append(records, r)
	}
	return records, nil
}

// Save upserts the reservation by its code. Only lifecycle columns change on
// conflict, and only when the stored status can legally move to r's status;
// otherwise Save fails with libraryerr.ErrInvalidReservation.
func (s *ReservationStore) Save(ctx context.Context, r reservation.Record) error {
	return saveStudentReservation(s.db.WithContext(ctx), r)
}

// UpdateOverTime records running overtime for a session that is still open.
func (s *ReservationStore) UpdateOverTime(ctx context.Context, code string, minutes int) error {
	return s.db.WithContext(ctx).
		Model(&model.StudentReservation{}).
		Where("reservation_code = ? AND status = ?", code, reservation.StatusCheckedIn.String()).
		UpdateColumn("over_time", minutes).Error
}

// Expire moves a reservation from BOOKED to EXPIRED. It reports false when the
// reservation was no longer BOOKED, e.g. because a sign-in won the race.
func (s *ReservationStore) Expire(ctx context.Context, code string) (bool, error) {
	res := s.db.WithContext(ctx).
		Model(&model.StudentReservation{}).
		Where("reservation_code = ? AND status = ?", code, reservation.StatusBooked.String()).
		Update("status", reservation.StatusExpired.String())
	if res.Error != nil {
		return false, fmt.Errorf("failed to expire reservation %s: %w", code, res.Error)
	}
	return res.RowsAffected == 1, nil
}

func saveStudentReservation(tx *gorm.DB, r reservation.Record) error {
	row := model.StudentReservation{
		ReservationCode: r.Code,
		MatricNumber:    r.Owner.ID,
		Email:           r.Owner.Contact,
		ReservedFor:     r.Day(),
		BookedAt:        r.BookedAt,
		CheckInAt:       r.CheckInAt,
		CheckOutAt:      r.CheckOutAt,
		Status:          r.Status().String(),
		OverTime:        r.OverTime,
	}
	res := tx.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "reservation_code"}},
		Where:     lifecycleGuard(r.Status()),
		DoUpdates: clause.AssignmentColumns([]string{"status", "check_in_at", "check_out_at", "over_time", "updated_at"}),
	}).Create(&row)
	if res.Error != nil {
		return fmt.Errorf("failed to save reservation %s: %w", r.Code, res.Error)
	}
	if res.RowsAffected == 0 {
		return staleStatus(r)
	}
	return nil
}

// lifecycleGuard restricts an upsert to rows whose stored status may move to
// next, so a status written by someone else (the sweeper's EXPIRED, say) is
// never overwritten backwards.
func lifecycleGuard(next reservation.Status) clause.Where {
	from := make([]any, 0, 2)
	for _, s := range next.Replaces() {
		from = append(from, s.String())
	}
	return clause.Where{Exprs: []clause.Expression{
		clause.IN{Column: clause.Column{Table: clause.CurrentTable, Name: "status"}, Values: from},
	}}
}

func staleStatus(r reservation.Record) error {
	return fmt.Errorf("%w: reservation %s changed before it could become %s",
		libraryerr.ErrInvalidReservation, r.Code, r.Status())
}

func studentRecord(row model.StudentReservation) (reservation.Record, error) {
	return reservation.Restore(reservation.Record{
		Code:       row.ReservationCode,
		Owner:      reservation.Owner{Kind: reservation.KindStudent, ID: row.MatricNumber, Contact: row.Email},
		BookedAt:   row.BookedAt,
		CheckInAt:  row.CheckInAt,
		CheckOutAt: row.CheckOutAt,
		OverTime:   row.OverTime,
	}, row.Status)
}

// LibrarianStore is the GORM-backed store of librarian sessions.
type LibrarianStore struct {
	db *gorm.DB
}

func NewLibrarianStore(db *gorm.DB) *LibrarianStore {
	return &LibrarianStore{db: db}
}

// FindActiveByStaffNumber returns the librarian's open session.
func (s *LibrarianStore) FindActiveByStaffNumber(ctx context.Context, staffNumber string) (reservation.Record, error) {
	var row model.LibrarianReservation
	err := s.db.WithContext(ctx).
		Where("staff_number = ? AND status = ?", staffNumber, reservation.StatusCheckedIn.String()).
		Order("booked_at DESC").
		First(&row).Error
	if err != nil {
		return reservation.Record{}, notFound(err, "open session for librarian %s", staffNumber)
	}
	return reservation.Restore(reservation.Record{
		Code:       row.ReservationCode,
		Owner:      reservation.Owner{Kind: reservation.KindLibrarian, ID: row.StaffNumber},
		BookedAt:   row.BookedAt,
		CheckInAt:  row.CheckInAt,
		CheckOutAt: row.CheckOutAt,
	}, row.Status)
}

// Save upserts the session by its code.
func (s *LibrarianStore) Save(ctx context.Context, r reservation.Record) error {
	row := model.LibrarianReservation{
		ReservationCode: r.Code,
		StaffNumber:     r.Owner.ID,
		ReservedFor:     r.Day(),
		BookedAt:        r.BookedAt,
		CheckInAt:       r.CheckInAt,
		CheckOutAt:      r.CheckOutAt,
		Status:          r.Status().String(),
	}
	res := s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "reservation_code"}},
		Where:     lifecycleGuard(r.Status()),
		DoUpdates: clause.AssignmentColumns([]string{"status", "check_in_at", "check_out_at", "updated_at"}),
	}).Create(&row)
	if res.Error != nil {
		return fmt.Errorf("failed to save librarian session %s: %w", r.Code, res.Error)
	}
	if res.RowsAffected == 0 {
		return staleStatus(r)
	}
	return nil
}

// AccountStore is the GORM-backed store of student accounts.
type AccountStore struct {
	db *gorm.DB
}

func NewAccountStore(db *gorm.DB) *AccountStore {
	return &AccountStore{db: db}
}

func (s *AccountStore) FindByMatricNumber(ctx context.Context, matricNumber string) (*admission.Student, error) {
	var row model.Student
	if err := s.db.WithContext(ctx).Where("matric_number = ?", matricNumber).First(&row).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("%w: %s", libraryerr.ErrStudentNotFound, matricNumber)
		}
		return nil, fmt.Errorf("failed to load student %s: %w", matricNumber, err)
	}
	return &admission.Student{
		MatricNumber: row.MatricNumber,
		Email:        row.Email,
		Account:      admission.Account{NotLocked: row.NotLocked},
	}, nil
}

// Save writes the account lock state and any reservations appended to the
// student in one transaction.
func (s *AccountStore) Save(ctx context.Context, st *admission.Student) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Model(&model.Student{}).
			Where("matric_number = ?", st.MatricNumber).
			Update("not_locked", st.Account.NotLocked)
		if res.Error != nil {
			return fmt.Errorf("failed to update account of %s: %w", st.MatricNumber, res.Error)
		}
		if res.RowsAffected == 0 {
			return fmt.Errorf("%w: %s", libraryerr.ErrStudentNotFound, st.MatricNumber)
		}
		for _, r := range st.Reservations {
			if err := saveStudentReservation(tx, r); err != nil {
				return err
			}
		}
		return nil
	})
}

// UpsertStudents inserts or refreshes roster data. Lock state is never touched.
func (s *AccountStore) UpsertStudents(ctx context.Context, students []model.Student) error {
	if len(students) == 0 {
		return nil
	}
	return s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "matric_number"}},
		DoUpdates: clause.AssignmentColumns([]string{"full_name", "email", "faculty", "level", "updated_at"}),
	}).Create(&students).Error
}

func notFound(err error, format string, args ...any) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return fmt.Errorf("%w: %s", libraryerr.ErrReservationNotFound, fmt.Sprintf(format, args...))
	}
	return fmt.Errorf("failed to load %s: %w", fmt.Sprintf(format, args...), err)
}
