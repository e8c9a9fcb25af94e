package models

import (
	"sort"
	"time"
)

// Class groups students under a single owning teacher.
type Class struct {
	ID          uint              `gorm:"primaryKey" json:"id"`
	Name        string            `gorm:"size:255;not null;uniqueIndex" json:"name"`
	TeacherID   uint              `gorm:"not null;index" json:"teacher_id"`
	Day         string            `gorm:"size:32;not null" json:"day"`
	Time        string            `gorm:"size:32" json:"time"`
	RoomNumber  string            `gorm:"size:64" json:"room_number"`
	CreatedAt   time.Time         `json:"created_at"`
	UpdatedAt   time.Time         `json:"updated_at"`
	Teacher     User              `gorm:"foreignKey:TeacherID" json:"teacher"`
	Enrollments []ClassEnrollment `gorm:"foreignKey:ClassID;constraint:OnDelete:CASCADE" json:"-"`
}

// ClassEnrollment is one student's seat in a class. Position keeps the roster order stable.
type ClassEnrollment struct {
	ClassID   uint      `gorm:"primaryKey" json:"class_id"`
	StudentID uint      `gorm:"primaryKey;index" json:"student_id"`
	Position  int       `gorm:"not null" json:"position"`
	CreatedAt time.Time `json:"created_at"`
	Student   User      `gorm:"foreignKey:StudentID" json:"student"`
}

// IsOwnedBy reports whether the given teacher owns the class.
func (c Class) IsOwnedBy(teacherID uint) bool {
	return teacherID != 0 && c.TeacherID == teacherID
}

// Students returns the enrolled students in roster order.
func (c Class) Students() []User {
	enrollments := c.orderedEnrollments()
	students := make([]User, 0, len(enrollments))
	for _, enrollment := range enrollments {
		student := enrollment.Student
		if student.ID == 0 {
			student.ID = enrollment.StudentID
		}
		students = append(students, student)
	}
	return students
}

// StudentIDs returns the enrolled student ids in roster order.
func (c Class) StudentIDs() []uint {
	enrollments := c.orderedEnrollments()
	ids := make([]uint, 0, len(enrollments))
	for _, enrollment := range enrollments {
		ids = append(ids, enrollment.StudentID)
	}
	return ids
}

func (c Class) orderedEnrollments() []ClassEnrollment {
	enrollments := append([]ClassEnrollment(nil), c.Enrollments...)
	sort.SliceStable(enrollments, func(i, j int) bool {
		return enrollments[i].Position < enrollments[j].Position
	})
	return enrollments
}
