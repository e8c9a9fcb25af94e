package models

import (
	"strings"
	"time"
)

// UserRole enumerates the roles a user may hold.
type UserRole string

const (
	RoleStudent UserRole = "student"
	RoleTeacher UserRole = "teacher"
	RoleAdmin   UserRole = "admin"
)

// ParseRole normalises a raw role string, reporting whether it is known.
func ParseRole(raw string) (UserRole, bool) {
	switch role := UserRole(strings.ToLower(strings.TrimSpace(raw))); role {
	case RoleStudent, RoleTeacher, RoleAdmin:
		return role, true
	default:
		return "", false
	}
}

// User is anyone able to sign in: students, teachers and administrators.
type User struct {
	ID           uint      `gorm:"primaryKey" json:"id"`
	Name         string    `gorm:"size:255;not null" json:"name"`
	Email        string    `gorm:"size:255;not null;uniqueIndex" json:"email"`
	PasswordHash string    `gorm:"size:255;not null" json:"-"`
	Role         UserRole  `gorm:"size:32;not null;index" json:"role"`
	Active       bool      `gorm:"not null" json:"active"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// IsTeacher reports whether the user may own classes.
func (u User) IsTeacher() bool {
	return u.Role == RoleTeacher
}

// IsStudent reports whether the user may be enrolled and submit work.
func (u User) IsStudent() bool {
	return u.Role == RoleStudent
}
