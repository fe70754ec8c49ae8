package models

import "time"

// SuperUserID is the primary key of the only superuser row.
const SuperUserID = 1

// SuperUser is the admin account guarding /superuser.
type SuperUser struct {
	ID           uint   `gorm:"primaryKey"`
	Username     string `gorm:"not null"`
	PasswordHash string `gorm:"not null"`
	CreatedAt    time.Time
	UpdatedAt    time.Time
}
