package model

import "time"

// StudentReservation is one student's booking for a day (durable record).
type StudentReservation struct {
	ID              int64      `gorm:"primaryKey"`
	ReservationCode string     `gorm:"uniqueIndex;size:64;not null"`
	MatricNumber    string     `gorm:"index;size:64;not null"`
	Email           string     `gorm:"size:256"`
	ReservedFor     string     `gorm:"index;size:10;not null"` // YYYY-MM-DD
	BookedAt        time.Time  `gorm:"not null"`
	CheckInAt       *time.Time
	CheckOutAt      *time.Time
	Status          string     `gorm:"size:32;index;not null"`
	OverTime        int        `gorm:"not null;default:0"`
	CreatedAt       time.Time  `gorm:"not null"`
	UpdatedAt       time.Time  `gorm:"not null"`
}

// LibrarianReservation is one librarian session, opened on sign-in.
type LibrarianReservation struct {
	ID              int64      `gorm:"primaryKey"`
	ReservationCode string     `gorm:"uniqueIndex;size:64;not null"`
	StaffNumber     string     `gorm:"index;size:64;not null"`
	ReservedFor     string     `gorm:"index;size:10;not null"`
	BookedAt        time.Time  `gorm:"not null"`
	CheckInAt       *time.Time
	CheckOutAt      *time.Time
	Status          string     `gorm:"size:32;index;not null"`
	CreatedAt       time.Time  `gorm:"not null"`
	UpdatedAt       time.Time  `gorm:"not null"`
}
