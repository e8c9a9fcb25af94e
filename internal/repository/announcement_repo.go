package repository

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/noah-isme/taskhub-api/internal/models"
)

// AnnouncementRepository defines persistence operations for class announcements.
type AnnouncementRepository interface {
	ListByClasses(ctx context.Context, classIDs []uint) ([]models.Announcement, error)
	GetByID(ctx context.Context, id uint) (models.Announcement, error)
	Create(ctx context.Context, announcement *models.Announcement) error
	Update(ctx context.Context, announcement *models.Announcement) error
	Delete(ctx context.Context, id uint) error
	AddComment(ctx context.Context, comment *models.AnnouncementComment) error
	// ToggleReaction removes the reaction if the user already left it, otherwise adds it. It reports
	// whether the reaction is present afterwards.
	ToggleReaction(ctx context.Context, reaction models.AnnouncementReaction) (bool, error)
	MarkViewed(ctx context.Context, announcementID, userID uint, at time.Time) error
}

type announcementRepository struct {
	db *gorm.DB
}

// NewAnnouncementRepository constructs a GORM-backed announcement repository.
func NewAnnouncementRepository(db *gorm.DB) AnnouncementRepository {
	return &announcementRepository{db: db}
}

func (r *announcementRepository) baseQuery(ctx context.Context) *gorm.DB {
	return r.db.WithContext(ctx).Model(&models.Announcement{}).
		Preload("Poster").
		Preload("Comments", func(db *gorm.DB) *gorm.DB {
			return db.Order("date ASC").Order("id ASC")
		}).
		Preload("Comments.Poster").
		Preload("Reactions", func(db *gorm.DB) *gorm.DB {
			return db.Order("id ASC")
		}).
		Preload("Views", func(db *gorm.DB) *gorm.DB {
			return db.Order("viewed_at ASC")
		})
}

func (r *announcementRepository) ListByClasses(ctx context.Context, classIDs []uint) ([]models.Announcement, error) {
	if len(classIDs) == 0 {
		return []models.Announcement{}, nil
	}

	var announcements []models.Announcement
	if err := r.baseQuery(ctx).
		Where("class_id IN ?", classIDs).
		Order("date_posted DESC").
		Order("id DESC").
		Find(&announcements).Error; err != nil {
		return nil, err
	}
	return announcements, nil
}

func (r *announcementRepository) GetByID(ctx context.Context, id uint) (models.Announcement, error) {
	var announcement models.Announcement
	if err := r.baseQuery(ctx).First(&announcement, id).Error; err != nil {
		return models.Announcement{}, err
	}
	return announcement, nil
}

func (r *announcementRepository) Create(ctx context.Context, announcement *models.Announcement) error {
	return r.db.WithContext(ctx).Omit(clause.Associations).Create(announcement).Error
}

func (r *announcementRepository) Update(ctx context.Context, announcement *models.Announcement) error {
	return r.db.WithContext(ctx).Omit(clause.Associations).Save(announcement).Error
}

func (r *announcementRepository) Delete(ctx context.Context, id uint) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var announcement models.Announcement
		if err := tx.Select("id").First(&announcement, id).Error; err != nil {
			return err
		}
		return deleteAnnouncements(tx, []uint{id})
	})
}

func (r *announcementRepository) AddComment(ctx context.Context, comment *models.AnnouncementComment) error {
	return r.db.WithContext(ctx).Omit(clause.Associations).Create(comment).Error
}

func (r *announcementRepository) ToggleReaction(ctx context.Context, reaction models.AnnouncementReaction) (bool, error) {
	present := false

	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var existing models.AnnouncementReaction
		err := tx.Where("announcement_id = ? AND user_id = ? AND emoji = ?", reaction.AnnouncementID, reaction.UserID, reaction.Emoji).
			First(&existing).Error
		switch {
		case err == nil:
			return tx.Delete(&existing).Error
		case errors.Is(err, gorm.ErrRecordNotFound):
			present = true
			return tx.Create(&reaction).Error
		default:
			return err
		}
	})
	if err != nil {
		return false, err
	}

	return present, nil
}

func (r *announcementRepository) MarkViewed(ctx context.Context, announcementID, userID uint, at time.Time) error {
	view := models.AnnouncementView{AnnouncementID: announcementID, UserID: userID, ViewedAt: at}
	return r.db.WithContext(ctx).Clauses(clause.OnConflict{DoNothing: true}).Create(&view).Error
}

// deleteAnnouncements removes announcements with their comments, reactions and views inside tx.
func deleteAnnouncements(tx *gorm.DB, announcementIDs []uint) error {
	if len(announcementIDs) == 0 {
		return nil
	}

	for _, model := range []interface{}{&models.AnnouncementComment{}, &models.AnnouncementReaction{}, &models.AnnouncementView{}} {
		if err := tx.Where("announcement_id IN ?", announcementIDs).Delete(model).Error; err != nil {
			return err
		}
	}

	return tx.Where("id IN ?", announcementIDs).Delete(&models.Announcement{}).Error
}
