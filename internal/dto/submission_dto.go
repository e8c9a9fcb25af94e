package dto

import (
	"fmt"
	"time"

	"github.com/noah-isme/taskhub-api/internal/models"
)

// SubmissionCreateRequest describes the multipart or JSON payload for a first submission.
type SubmissionCreateRequest struct {
	ActivityID     uint   `json:"activity_id" form:"activity_id" validate:"required,gt=0"`
	StudentID      uint   `json:"student_id" form:"student_id" validate:"required,gt=0"`
	Content        string `json:"content" form:"content"`
	SubmissionDate string `json:"submission_date" form:"submission_date"`
}

// SubmissionResubmitRequest replaces the payload of an existing submission.
type SubmissionResubmitRequest struct {
	Content        *string `json:"content" form:"content"`
	SubmissionDate string  `json:"submission_date" form:"submission_date"`
}

// SubmissionScoreRequest carries a raw score. Numbers and numeric strings are accepted.
type SubmissionScoreRequest struct {
	Score interface{} `json:"score"`
}

// SubmissionFilter describes query string filters for looking up a submission.
type SubmissionFilter struct {
	ActivityID uint `query:"activityId" validate:"required,gt=0"`
	StudentID  uint `query:"studentId" validate:"required,gt=0"`
}

// SubmissionResponse is returned to API clients when viewing submissions.
type SubmissionResponse struct {
	ID          uint                `json:"id"`
	ActivityID  uint                `json:"activity_id"`
	StudentID   uint                `json:"student_id"`
	Content     string              `json:"content"`
	Status      string              `json:"status"`
	Score       *float64            `json:"score"`
	SubmittedAt time.Time           `json:"submitted_at"`
	File        *AttachmentResponse `json:"file"`
	CreatedAt   time.Time           `json:"created_at"`
	UpdatedAt   time.Time           `json:"updated_at"`
	Activity    ActivityLite        `json:"activity"`
	Student     UserLite            `json:"student"`
}

// NewSubmissionResponse converts a Submission model into a DTO.
func NewSubmissionResponse(model models.Submission) SubmissionResponse {
	activity := NewActivityLite(model.Activity)
	if activity.ID == 0 {
		activity.ID = model.ActivityID
	}
	student := NewUserLite(model.Student)
	if student.ID == 0 {
		student.ID = model.StudentID
	}

	return SubmissionResponse{
		ID:          model.ID,
		ActivityID:  model.ActivityID,
		StudentID:   model.StudentID,
		Content:     model.Content,
		Status:      string(model.Status),
		Score:       model.Score,
		SubmittedAt: model.SubmittedAt,
		File:        NewAttachmentResponse(model.File, fmt.Sprintf("/api/v1/submissions/%d", model.ID)),
		CreatedAt:   model.CreatedAt,
		UpdatedAt:   model.UpdatedAt,
		Activity:    activity,
		Student:     student,
	}
}

// NewSubmissionResponseSlice converts a slice of submissions.
func NewSubmissionResponseSlice(submissions []models.Submission) []SubmissionResponse {
	responses := make([]SubmissionResponse, 0, len(submissions))
	for _, submission := range submissions {
		responses = append(responses, NewSubmissionResponse(submission))
	}
	return responses
}
