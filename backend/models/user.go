package models

import (
	"time"

	"gorm.io/gorm"
)

const (
	RoleStudent = "student"
	RoleAdmin   = "admin"
)

type User struct {
	gorm.Model
	Username     string `gorm:"unique;not null"`
	Email        string `gorm:"unique;not null"`
	PasswordHash string `gorm:"not null"`
	IsStaff      bool   `gorm:"default:false"`
	IsSuperuser  bool   `gorm:"default:false"`
}

// UserProfile holds a student's academic identity. Content access is
// gated on IsProfileComplete, which is recomputed by the write path on
// every save (see services.ComputeCompleteness).
type UserProfile struct {
	gorm.Model
	UserID            uint `gorm:"uniqueIndex;not null"`
	FullName          string
	RollNo            string
	CollegeID         string
	Branch            string
	CurrentSemester   int
	Division          string
	ContactNumber     string
	ProfilePictureURL string
	Role              string `gorm:"default:student"` // student, admin
	IsProfileComplete bool   `gorm:"default:false"`
}

type LoginHistory struct {
	gorm.Model
	UserID    uint `gorm:"index"`
	LoginTime time.Time
}

type UserActivity struct {
	gorm.Model
	UserID     uint `gorm:"uniqueIndex"`
	LastActive time.Time
	StreakDays int `gorm:"default:0"`
}
