package dto

import (
	"fmt"
	"time"

	"github.com/noah-isme/taskhub-api/internal/models"
)

// ActivityCreateRequest describes the JSON or multipart payload for creating an activity.
type ActivityCreateRequest struct {
	ClassID     uint     `json:"class_id" form:"class_id" validate:"required,gt=0"`
	Title       string   `json:"title" form:"title" validate:"required,max=255"`
	Description string   `json:"description" form:"description"`
	Date        string   `json:"date" form:"date" validate:"required"`
	TotalPoints *float64 `json:"total_points" form:"total_points" validate:"omitempty,gte=0"`
	Link        string   `json:"link" form:"link" validate:"omitempty,url,max=1024"`
	// Attachment accepts an already-stored reference (cloud URL or legacy path) instead of an upload.
	Attachment string `json:"attachment" form:"attachment" validate:"omitempty,max=1024"`
}

// ActivityUpdateRequest is a partial update of an activity.
type ActivityUpdateRequest struct {
	Title       *string  `json:"title" form:"title" validate:"omitempty,min=1,max=255"`
	Description *string  `json:"description" form:"description"`
	Date        *string  `json:"date" form:"date"`
	TotalPoints *float64 `json:"total_points" form:"total_points" validate:"omitempty,gte=0"`
	Link        *string  `json:"link" form:"link" validate:"omitempty,max=1024"`
	Attachment  *string  `json:"attachment" form:"attachment" validate:"omitempty,max=1024"`
}

// ActivityLockRequest toggles submission acceptance for an activity.
type ActivityLockRequest struct {
	IsLocked *bool `json:"is_locked" validate:"required"`
}

// ActivityFilter narrows activity listings.
type ActivityFilter struct {
	ClassID *uint `query:"classId"`
}

// AttachmentResponse describes a stored file without leaking storage paths.
type AttachmentResponse struct {
	Name        string `json:"name"`
	MimeType    string `json:"mime_type,omitempty"`
	Size        int64  `json:"size,omitempty"`
	Storage     string `json:"storage"`
	DownloadURL string `json:"download_url"`
	ViewURL     string `json:"view_url"`
}

// ActivityResponse is returned when viewing activities.
type ActivityResponse struct {
	ID          uint                `json:"id"`
	ClassID     uint                `json:"class_id"`
	Title       string              `json:"title"`
	Description string              `json:"description"`
	Date        time.Time           `json:"date"`
	TotalPoints *float64            `json:"total_points"`
	Link        string              `json:"link,omitempty"`
	Attachment  *AttachmentResponse `json:"attachment"`
	IsLocked    bool                `json:"is_locked"`
	CreatedBy   uint                `json:"created_by"`
	CreatedAt   time.Time           `json:"created_at"`
	UpdatedAt   time.Time           `json:"updated_at"`
}

// ActivityLite summarizes an activity in submission responses.
type ActivityLite struct {
	ID      uint      `json:"id"`
	ClassID uint      `json:"class_id"`
	Title   string    `json:"title"`
	Date    time.Time `json:"date"`
}

// NewAttachmentResponse exposes a FileRef through the API routes that serve it.
func NewAttachmentResponse(ref models.FileRef, basePath string) *AttachmentResponse {
	if ref.IsZero() {
		return nil
	}
	return &AttachmentResponse{
		Name:        ref.DisplayName(),
		MimeType:    ref.MimeType,
		Size:        ref.Size,
		Storage:     string(ref.Kind),
		DownloadURL: basePath + "/download",
		ViewURL:     basePath + "/view",
	}
}

// NewActivityResponse converts an Activity model into a DTO.
func NewActivityResponse(model models.Activity) ActivityResponse {
	return ActivityResponse{
		ID:          model.ID,
		ClassID:     model.ClassID,
		Title:       model.Title,
		Description: model.Description,
		Date:        model.Date,
		TotalPoints: model.TotalPoints,
		Link:        model.Link,
		Attachment:  NewAttachmentResponse(model.Attachment, fmt.Sprintf("/api/v1/activities/%d", model.ID)),
		IsLocked:    model.IsLocked,
		CreatedBy:   model.CreatedBy,
		CreatedAt:   model.CreatedAt,
		UpdatedAt:   model.UpdatedAt,
	}
}

// NewActivityResponseSlice converts a slice of activities.
func NewActivityResponseSlice(activities []models.Activity) []ActivityResponse {
	responses := make([]ActivityResponse, 0, len(activities))
	for _, activity := range activities {
		responses = append(responses, NewActivityResponse(activity))
	}
	return responses
}

// NewActivityLite summarizes an activity.
func NewActivityLite(model models.Activity) ActivityLite {
	return ActivityLite{ID: model.ID, ClassID: model.ClassID, Title: model.Title, Date: model.Date}
}
