package models

import "time"

// Activity is a piece of work a teacher assigns to a class.
type Activity struct {
	ID          uint      `gorm:"primaryKey" json:"id"`
	ClassID     uint      `gorm:"not null;index" json:"class_id"`
	Title       string    `gorm:"size:255;not null" json:"title"`
	Description string    `gorm:"type:text" json:"description"`
	Date        time.Time `gorm:"not null;index" json:"date"`
	TotalPoints *float64  `json:"total_points"`
	Link        string    `gorm:"size:1024" json:"link"`
	Attachment  FileRef   `gorm:"embedded;embeddedPrefix:attachment_" json:"attachment"`
	CreatedBy   uint      `gorm:"not null" json:"created_by"`
	IsLocked    bool      `gorm:"not null" json:"is_locked"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
	Class       Class     `gorm:"constraint:OnUpdate:CASCADE,OnDelete:CASCADE" json:"-"`
}
