package dto

import (
	"time"

	"github.com/noah-isme/taskhub-api/internal/models"
)

// ClassCreateRequest is the payload for creating a class.
type ClassCreateRequest struct {
	Name       string `json:"name" validate:"required,max=255"`
	TeacherID  uint   `json:"teacher_id" validate:"required,gt=0"`
	Day        string `json:"day" validate:"required,max=32"`
	Time       string `json:"time" validate:"omitempty,max=32"`
	RoomNumber string `json:"room_number" validate:"omitempty,max=64"`
	StudentIDs []uint `json:"student_ids"`
}

// ClassUpdateRequest is a partial update of a class.
type ClassUpdateRequest struct {
	Name       *string `json:"name" validate:"omitempty,min=1,max=255"`
	TeacherID  *uint   `json:"teacher_id" validate:"omitempty,gt=0"`
	Day        *string `json:"day" validate:"omitempty,min=1,max=32"`
	Time       *string `json:"time" validate:"omitempty,max=32"`
	RoomNumber *string `json:"room_number" validate:"omitempty,max=64"`
}

// ClassStudentsRequest replaces the ordered roster of a class.
type ClassStudentsRequest struct {
	StudentIDs []uint `json:"student_ids" validate:"required"`
}

// ClassResponse is returned when viewing classes.
type ClassResponse struct {
	ID         uint       `json:"id"`
	Name       string     `json:"name"`
	Day        string     `json:"day"`
	Time       string     `json:"time"`
	RoomNumber string     `json:"room_number"`
	Teacher    UserLite   `json:"teacher"`
	Students   []UserLite `json:"students"`
	CreatedAt  time.Time  `json:"created_at"`
	UpdatedAt  time.Time  `json:"updated_at"`
}

// NewClassResponse converts a Class model into a DTO.
func NewClassResponse(model models.Class) ClassResponse {
	teacher := NewUserLite(model.Teacher)
	if teacher.ID == 0 {
		teacher.ID = model.TeacherID
	}

	students := model.Students()
	lite := make([]UserLite, 0, len(students))
	for _, student := range students {
		lite = append(lite, NewUserLite(student))
	}

	return ClassResponse{
		ID:         model.ID,
		Name:       model.Name,
		Day:        model.Day,
		Time:       model.Time,
		RoomNumber: model.RoomNumber,
		Teacher:    teacher,
		Students:   lite,
		CreatedAt:  model.CreatedAt,
		UpdatedAt:  model.UpdatedAt,
	}
}

// NewClassResponseSlice converts a slice of classes.
func NewClassResponseSlice(classes []models.Class) []ClassResponse {
	responses := make([]ClassResponse, 0, len(classes))
	for _, class := range classes {
		responses = append(responses, NewClassResponse(class))
	}
	return responses
}
