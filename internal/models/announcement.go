package models

import "time"

// Announcement is a post on a class board.
type Announcement struct {
	ID         uint                   `gorm:"primaryKey" json:"id"`
	ClassID    uint                   `gorm:"not null;index" json:"class_id"`
	Title      string                 `gorm:"size:255;not null" json:"title"`
	Content    string                 `gorm:"type:text;not null" json:"content"`
	PostedBy   uint                   `gorm:"not null" json:"posted_by"`
	DatePosted time.Time              `gorm:"not null;index" json:"date_posted"`
	CreatedAt  time.Time              `json:"created_at"`
	UpdatedAt  time.Time              `json:"updated_at"`
	Poster     User                   `gorm:"foreignKey:PostedBy" json:"poster"`
	Comments   []AnnouncementComment  `gorm:"constraint:OnDelete:CASCADE" json:"comments"`
	Reactions  []AnnouncementReaction `gorm:"constraint:OnDelete:CASCADE" json:"reactions"`
	Views      []AnnouncementView     `gorm:"constraint:OnDelete:CASCADE" json:"views"`
}

// AnnouncementComment is a reply on an announcement.
type AnnouncementComment struct {
	ID             uint      `gorm:"primaryKey" json:"id"`
	AnnouncementID uint      `gorm:"not null;index" json:"announcement_id"`
	Text           string    `gorm:"type:text;not null" json:"text"`
	PostedBy       uint      `gorm:"not null" json:"posted_by"`
	Date           time.Time `gorm:"not null" json:"date"`
	Poster         User      `gorm:"foreignKey:PostedBy" json:"poster"`
}

// AnnouncementReaction is an emoji left by a user. A user holds each emoji at most once per announcement.
type AnnouncementReaction struct {
	ID             uint      `gorm:"primaryKey" json:"id"`
	AnnouncementID uint      `gorm:"not null;uniqueIndex:idx_announcement_reaction" json:"announcement_id"`
	UserID         uint      `gorm:"not null;uniqueIndex:idx_announcement_reaction" json:"user_id"`
	Emoji          string    `gorm:"size:32;not null;uniqueIndex:idx_announcement_reaction" json:"emoji"`
	CreatedAt      time.Time `json:"created_at"`
}

// AnnouncementView records that a user has opened an announcement.
type AnnouncementView struct {
	AnnouncementID uint      `gorm:"primaryKey" json:"announcement_id"`
	UserID         uint      `gorm:"primaryKey" json:"user_id"`
	ViewedAt       time.Time `json:"viewed_at"`
}
