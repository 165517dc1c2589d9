package model

import "time"

// Student is a library user synced from the university roster.
type Student struct {
	ID           int64     `gorm:"primaryKey"`
	MatricNumber string    `gorm:"uniqueIndex;size:64;not null"`
	FullName     string    `gorm:"size:256"`
	Email        string    `gorm:"size:256"`
	Faculty      string    `gorm:"size:128"`
	Level        string    `gorm:"size:16"`
	NotLocked    bool      `gorm:"not null;default:true"`
	CreatedAt    time.Time `gorm:"not null"`
	UpdatedAt    time.Time `gorm:"not null"`
}

// Librarian is a staff member who may open sessions without a booking.
type Librarian struct {
	ID          int64     `gorm:"primaryKey"`
	StaffNumber string    `gorm:"uniqueIndex;size:64;not null"`
	FullName    string    `gorm:"size:256"`
	Email       string    `gorm:"size:256"`
	NotLocked   bool      `gorm:"not null;default:true"`
	CreatedAt   time.Time `gorm:"not null"`
	UpdatedAt   time.Time `gorm:"not null"`
}
