package repository

import (
	"context"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/noah-isme/taskhub-api/internal/models"
)

// ActivityFilter narrows activity listings.
type ActivityFilter struct {
	ClassID *uint
}

// ActivityRepository defines persistence operations for activities.
type ActivityRepository interface {
	List(ctx context.Context, filter ActivityFilter) ([]models.Activity, error)
	ListByClassChronological(ctx context.Context, classID uint) ([]models.Activity, error)
	ListByClasses(ctx context.Context, classIDs []uint) ([]models.Activity, error)
	ListScheduled(ctx context.Context, classIDs []uint, from, to time.Time) ([]models.Activity, error)
	GetByID(ctx context.Context, id uint) (models.Activity, error)
	Create(ctx context.Context, activity *models.Activity) error
	Update(ctx context.Context, activity *models.Activity) error
	// Delete removes the activity and its submissions and returns the files that lost their owner.
	Delete(ctx context.Context, id uint) ([]models.FileRef, error)
}

type activityRepository struct {
	db *gorm.DB
}

// NewActivityRepository instantiates a GORM-backed repository.
func NewActivityRepository(db *gorm.DB) ActivityRepository {
	return &activityRepository{db: db}
}

func (r *activityRepository) List(ctx context.Context, filter ActivityFilter) ([]models.Activity, error) {
	query := r.db.WithContext(ctx).Model(&models.Activity{})
	if filter.ClassID != nil {
		query = query.Where("class_id = ?", *filter.ClassID)
	}

	var activities []models.Activity
	if err := query.Order("date DESC").Order("id DESC").Find(&activities).Error; err != nil {
		return nil, err
	}
	return activities, nil
}

func (r *activityRepository) ListByClassChronological(ctx context.Context, classID uint) ([]models.Activity, error) {
	var activities []models.Activity
	if err := r.db.WithContext(ctx).
		Where("class_id = ?", classID).
		Order("date ASC").
		Order("id ASC").
		Find(&activities).Error; err != nil {
		return nil, err
	}
	return activities, nil
}

func (r *activityRepository) ListByClasses(ctx context.Context, classIDs []uint) ([]models.Activity, error) {
	if len(classIDs) == 0 {
		return []models.Activity{}, nil
	}

	var activities []models.Activity
	if err := r.db.WithContext(ctx).Where("class_id IN ?", classIDs).Order("id ASC").Find(&activities).Error; err != nil {
		return nil, err
	}
	return activities, nil
}

func (r *activityRepository) ListScheduled(ctx context.Context, classIDs []uint, from, to time.Time) ([]models.Activity, error) {
	if len(classIDs) == 0 {
		return []models.Activity{}, nil
	}

	var activities []models.Activity
	if err := r.db.WithContext(ctx).
		Where("class_id IN ?", classIDs).
		Where("date >= ? AND date < ?", from, to).
		Order("date ASC").
		Order("id ASC").
		Find(&activities).Error; err != nil {
		return nil, err
	}
	return activities, nil
}

func (r *activityRepository) GetByID(ctx context.Context, id uint) (models.Activity, error) {
	var activity models.Activity
	if err := r.db.WithContext(ctx).First(&activity, id).Error; err != nil {
		return models.Activity{}, err
	}
	return activity, nil
}

func (r *activityRepository) Create(ctx context.Context, activity *models.Activity) error {
	return r.db.WithContext(ctx).Omit(clause.Associations).Create(activity).Error
}

func (r *activityRepository) Update(ctx context.Context, activity *models.Activity) error {
	return r.db.WithContext(ctx).Omit(clause.Associations).Save(activity).Error
}

func (r *activityRepository) Delete(ctx context.Context, id uint) ([]models.FileRef, error) {
	var orphaned []models.FileRef

	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var activity models.Activity
		if err := tx.Select("id").First(&activity, id).Error; err != nil {
			return err
		}

		files, err := deleteActivities(tx, []uint{id})
		if err != nil {
			return err
		}
		orphaned = files
		return nil
	})
	if err != nil {
		return nil, err
	}

	return orphaned, nil
}

// deleteActivities removes the given activities with their submissions inside tx.
func deleteActivities(tx *gorm.DB, activityIDs []uint) ([]models.FileRef, error) {
	if len(activityIDs) == 0 {
		return nil, nil
	}

	var activities []models.Activity
	if err := tx.Where("id IN ?", activityIDs).Find(&activities).Error; err != nil {
		return nil, err
	}

	var submissions []models.Submission
	if err := tx.Where("activity_id IN ?", activityIDs).Find(&submissions).Error; err != nil {
		return nil, err
	}

	files := make([]models.FileRef, 0, len(activities)+len(submissions))
	for _, submission := range submissions {
		if !submission.File.IsZero() {
			files = append(files, submission.File)
		}
	}
	for _, activity := range activities {
		if !activity.Attachment.IsZero() {
			files = append(files, activity.Attachment)
		}
	}

	if err := tx.Where("activity_id IN ?", activityIDs).Delete(&models.Submission{}).Error; err != nil {
		return nil, err
	}
	if err := tx.Where("id IN ?", activityIDs).Delete(&models.Activity{}).Error; err != nil {
		return nil, err
	}

	return files, nil
}
