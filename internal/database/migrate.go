package database

import (
	"gorm.io/gorm"

	"github.com/noah-isme/taskhub-api/internal/models"
)

// Migrate creates or updates the schema for every persisted model.
func Migrate(db *gorm.DB) error {
	return db.AutoMigrate(
		&models.User{},
		&models.Class{},
		&models.ClassEnrollment{},
		&models.Activity{},
		&models.Submission{},
		&models.Announcement{},
		&models.AnnouncementComment{},
		&models.AnnouncementReaction{},
		&models.AnnouncementView{},
		&models.AuditEntry{},
	)
}
