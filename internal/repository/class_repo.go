package repository

import (
	"context"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/noah-isme/taskhub-api/internal/models"
)

// ClassRepository defines persistence operations for classes and their rosters.
type ClassRepository interface {
	List(ctx context.Context) ([]models.Class, error)
	ListByTeacher(ctx context.Context, teacherID uint) ([]models.Class, error)
	ListForStudent(ctx context.Context, studentID uint) ([]models.Class, error)
	ClassIDsForStudent(ctx context.Context, studentID uint) ([]uint, error)
	GetByID(ctx context.Context, id uint) (models.Class, error)
	Create(ctx context.Context, class *models.Class, studentIDs []uint) error
	Update(ctx context.Context, class *models.Class) error
	ReplaceStudents(ctx context.Context, classID uint, studentIDs []uint) error
	// Delete removes the class with everything it owns and returns the files that lost their owner.
	Delete(ctx context.Context, id uint) ([]models.FileRef, error)
}

type classRepository struct {
	db *gorm.DB
}

// NewClassRepository instantiates a GORM-backed repository.
func NewClassRepository(db *gorm.DB) ClassRepository {
	return &classRepository{db: db}
}

func (r *classRepository) baseQuery(ctx context.Context) *gorm.DB {
	return r.db.WithContext(ctx).Model(&models.Class{}).
		Preload("Teacher").
		Preload("Enrollments", func(db *gorm.DB) *gorm.DB {
			return db.Order("position ASC")
		}).
		Preload("Enrollments.Student")
}

func (r *classRepository) List(ctx context.Context) ([]models.Class, error) {
	var classes []models.Class
	if err := r.baseQuery(ctx).Order("created_at DESC").Order("id DESC").Find(&classes).Error; err != nil {
		return nil, err
	}
	return classes, nil
}

func (r *classRepository) ListByTeacher(ctx context.Context, teacherID uint) ([]models.Class, error) {
	var classes []models.Class
	if err := r.db.WithContext(ctx).
		Where("teacher_id = ?", teacherID).
		Order("id ASC").
		Find(&classes).Error; err != nil {
		return nil, err
	}
	return classes, nil
}

func (r *classRepository) ListForStudent(ctx context.Context, studentID uint) ([]models.Class, error) {
	var classes []models.Class
	if err := r.baseQuery(ctx).
		Where("id IN (?)", r.enrolledClassIDs(ctx, studentID)).
		Order("created_at DESC").
		Order("id DESC").
		Find(&classes).Error; err != nil {
		return nil, err
	}
	return classes, nil
}

func (r *classRepository) ClassIDsForStudent(ctx context.Context, studentID uint) ([]uint, error) {
	var ids []uint
	if err := r.enrolledClassIDs(ctx, studentID).Pluck("class_id", &ids).Error; err != nil {
		return nil, err
	}
	return ids, nil
}

func (r *classRepository) enrolledClassIDs(ctx context.Context, studentID uint) *gorm.DB {
	return r.db.WithContext(ctx).Model(&models.ClassEnrollment{}).
		Select("class_id").
		Where("student_id = ?", studentID)
}

func (r *classRepository) GetByID(ctx context.Context, id uint) (models.Class, error) {
	var class models.Class
	if err := r.baseQuery(ctx).First(&class, id).Error; err != nil {
		return models.Class{}, err
	}
	return class, nil
}

func (r *classRepository) Create(ctx context.Context, class *models.Class, studentIDs []uint) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Omit(clause.Associations).Create(class).Error; err != nil {
			return err
		}
		return writeEnrollments(tx, class.ID, studentIDs)
	})
}

func (r *classRepository) Update(ctx context.Context, class *models.Class) error {
	return r.db.WithContext(ctx).Omit(clause.Associations).Save(class).Error
}

func (r *classRepository) ReplaceStudents(ctx context.Context, classID uint, studentIDs []uint) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("class_id = ?", classID).Delete(&models.ClassEnrollment{}).Error; err != nil {
			return err
		}
		return writeEnrollments(tx, classID, studentIDs)
	})
}

func writeEnrollments(tx *gorm.DB, classID uint, studentIDs []uint) error {
	if len(studentIDs) == 0 {
		return nil
	}

	enrollments := make([]models.ClassEnrollment, 0, len(studentIDs))
	for position, studentID := range studentIDs {
		enrollments = append(enrollments, models.ClassEnrollment{
			ClassID:   classID,
			StudentID: studentID,
			Position:  position,
		})
	}
	return tx.Omit(clause.Associations).Create(&enrollments).Error
}

func (r *classRepository) Delete(ctx context.Context, id uint) ([]models.FileRef, error) {
	var orphaned []models.FileRef

	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var class models.Class
		if err := tx.Select("id").First(&class, id).Error; err != nil {
			return err
		}

		var activityIDs []uint
		if err := tx.Model(&models.Activity{}).Where("class_id = ?", id).Pluck("id", &activityIDs).Error; err != nil {
			return err
		}

		files, err := deleteActivities(tx, activityIDs)
		if err != nil {
			return err
		}
		orphaned = files

		var announcementIDs []uint
		if err := tx.Model(&models.Announcement{}).Where("class_id = ?", id).Pluck("id", &announcementIDs).Error; err != nil {
			return err
		}
		if err := deleteAnnouncements(tx, announcementIDs); err != nil {
			return err
		}

		if err := tx.Where("class_id = ?", id).Delete(&models.ClassEnrollment{}).Error; err != nil {
			return err
		}

		return tx.Delete(&models.Class{}, id).Error
	})
	if err != nil {
		return nil, err
	}

	return orphaned, nil
}
