package dto

import (
	"time"

	"github.com/noah-isme/taskhub-api/internal/models"
)

// AnnouncementCreateRequest is the payload for posting an announcement.
type AnnouncementCreateRequest struct {
	ClassID  uint   `json:"class_id" validate:"required,gt=0"`
	Title    string `json:"title" validate:"required,max=255"`
	Content  string `json:"content" validate:"required"`
	PostedBy uint   `json:"posted_by"`
}

// AnnouncementUpdateRequest is a partial update of an announcement.
type AnnouncementUpdateRequest struct {
	Title   *string `json:"title" validate:"omitempty,min=1,max=255"`
	Content *string `json:"content" validate:"omitempty,min=1"`
}

// AnnouncementFilter selects announcements by class or by a student's classes.
type AnnouncementFilter struct {
	ClassID   *uint `query:"classId"`
	StudentID *uint `query:"studentId"`
}

// AnnouncementCommentRequest adds a comment.
type AnnouncementCommentRequest struct {
	Text     string `json:"text" validate:"required,max=2000"`
	PostedBy uint   `json:"posted_by"`
}

// AnnouncementReactionRequest toggles an emoji reaction.
type AnnouncementReactionRequest struct {
	Emoji  string `json:"emoji" validate:"required,max=32"`
	UserID uint   `json:"user_id"`
}

// AnnouncementViewRequest marks an announcement as viewed.
type AnnouncementViewRequest struct {
	UserID uint `json:"user_id"`
}

// AnnouncementCommentResponse serializes a comment.
type AnnouncementCommentResponse struct {
	ID     uint      `json:"id"`
	Text   string    `json:"text"`
	Poster UserLite  `json:"poster"`
	Date   time.Time `json:"date"`
}

// AnnouncementReactionResponse serializes a reaction.
type AnnouncementReactionResponse struct {
	Emoji  string `json:"emoji"`
	UserID uint   `json:"user_id"`
}

// AnnouncementResponse is returned when viewing announcements.
type AnnouncementResponse struct {
	ID         uint                           `json:"id"`
	ClassID    uint                           `json:"class_id"`
	Title      string                         `json:"title"`
	Content    string                         `json:"content"`
	DatePosted time.Time                      `json:"date_posted"`
	Poster     UserLite                       `json:"poster"`
	Comments   []AnnouncementCommentResponse  `json:"comments"`
	Reactions  []AnnouncementReactionResponse `json:"reactions"`
	ViewedBy   []uint                         `json:"viewed_by"`
}

// NewAnnouncementResponse converts an Announcement model into a DTO.
func NewAnnouncementResponse(model models.Announcement) AnnouncementResponse {
	poster := NewUserLite(model.Poster)
	if poster.ID == 0 {
		poster.ID = model.PostedBy
	}

	comments := make([]AnnouncementCommentResponse, 0, len(model.Comments))
	for _, comment := range model.Comments {
		commentPoster := NewUserLite(comment.Poster)
		if commentPoster.ID == 0 {
			commentPoster.ID = comment.PostedBy
		}
		comments = append(comments, AnnouncementCommentResponse{
			ID:     comment.ID,
			Text:   comment.Text,
			Poster: commentPoster,
			Date:   comment.Date,
		})
	}

	reactions := make([]AnnouncementReactionResponse, 0, len(model.Reactions))
	for _, reaction := range model.Reactions {
		reactions = append(reactions, AnnouncementReactionResponse{Emoji: reaction.Emoji, UserID: reaction.UserID})
	}

	viewedBy := make([]uint, 0, len(model.Views))
	for _, view := range model.Views {
		viewedBy = append(viewedBy, view.UserID)
	}

	return AnnouncementResponse{
		ID:         model.ID,
		ClassID:    model.ClassID,
		Title:      model.Title,
		Content:    model.Content,
		DatePosted: model.DatePosted,
		Poster:     poster,
		Comments:   comments,
		Reactions:  reactions,
		ViewedBy:   viewedBy,
	}
}

// NewAnnouncementResponseSlice converts a slice of announcements.
func NewAnnouncementResponseSlice(announcements []models.Announcement) []AnnouncementResponse {
	responses := make([]AnnouncementResponse, 0, len(announcements))
	for _, announcement := range announcements {
		responses = append(responses, NewAnnouncementResponse(announcement))
	}
	return responses
}
