package service

import (
	"strings"

	"github.com/noah-isme/taskhub-api/internal/models"
)

// Actor represents the authenticated caller performing an action.
type Actor struct {
	ID   uint
	Role string
}

func (a Actor) role() string {
	return strings.ToLower(strings.TrimSpace(a.Role))
}

// IsTeacher reports whether the caller acts as a teacher.
func (a Actor) IsTeacher() bool {
	return a.role() == string(models.RoleTeacher)
}

// IsStudent reports whether the caller acts as a student.
func (a Actor) IsStudent() bool {
	return a.role() == string(models.RoleStudent)
}

// actsFor reports whether the caller may act on behalf of the given user. Students only act for themselves.
func (a Actor) actsFor(userID uint) bool {
	if a.IsStudent() {
		return a.ID == userID
	}
	return true
}

// IsAdmin reports whether the caller acts as an administrator.
func (a Actor) IsAdmin() bool {
	return a.role() == string(models.RoleAdmin)
}

// canManageClass reports whether the caller may mutate the class. Teachers are limited to their own
// classes; admins and internal callers are not.
func (a Actor) canManageClass(class models.Class) bool {
	if a.IsTeacher() {
		return class.IsOwnedBy(a.ID)
	}
	return true
}
