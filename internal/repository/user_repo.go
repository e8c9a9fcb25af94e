package repository

import (
	"context"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/noah-isme/taskhub-api/internal/models"
)

// UserRepository defines persistence operations for users.
type UserRepository interface {
	List(ctx context.Context, role models.UserRole) ([]models.User, error)
	GetByID(ctx context.Context, id uint) (models.User, error)
	GetByEmail(ctx context.Context, email string) (models.User, error)
	ListByIDs(ctx context.Context, ids []uint) ([]models.User, error)
	Create(ctx context.Context, user *models.User) error
	Update(ctx context.Context, user *models.User) error
	// Delete removes the user with their enrollments, submissions, reactions and views, returning the
	// submission files that lost their owner. Users who still own classes or authored posts are kept and
	// gorm.ErrForeignKeyViolated is returned.
	Delete(ctx context.Context, id uint) ([]models.FileRef, error)
}

type userRepository struct {
	db *gorm.DB
}

// NewUserRepository instantiates a GORM-backed repository.
func NewUserRepository(db *gorm.DB) UserRepository {
	return &userRepository{db: db}
}

func (r *userRepository) List(ctx context.Context, role models.UserRole) ([]models.User, error) {
	query := r.db.WithContext(ctx).Model(&models.User{})
	if role != "" {
		query = query.Where("role = ?", role)
	}

	var users []models.User
	if err := query.Order("name ASC").Order("id ASC").Find(&users).Error; err != nil {
		return nil, err
	}
	return users, nil
}

func (r *userRepository) GetByID(ctx context.Context, id uint) (models.User, error) {
	var user models.User
	if err := r.db.WithContext(ctx).First(&user, id).Error; err != nil {
		return models.User{}, err
	}
	return user, nil
}

func (r *userRepository) GetByEmail(ctx context.Context, email string) (models.User, error) {
	var user models.User
	if err := r.db.WithContext(ctx).Where("email = ?", email).First(&user).Error; err != nil {
		return models.User{}, err
	}
	return user, nil
}

func (r *userRepository) ListByIDs(ctx context.Context, ids []uint) ([]models.User, error) {
	if len(ids) == 0 {
		return []models.User{}, nil
	}

	var users []models.User
	if err := r.db.WithContext(ctx).Where("id IN ?", ids).Find(&users).Error; err != nil {
		return nil, err
	}
	return users, nil
}

func (r *userRepository) Create(ctx context.Context, user *models.User) error {
	return r.db.WithContext(ctx).Create(user).Error
}

func (r *userRepository) Update(ctx context.Context, user *models.User) error {
	return r.db.WithContext(ctx).Omit(clause.Associations).Save(user).Error
}

func (r *userRepository) Delete(ctx context.Context, id uint) ([]models.FileRef, error) {
	var orphaned []models.FileRef

	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var user models.User
		if err := tx.Select("id").First(&user, id).Error; err != nil {
			return err
		}

		referenced, err := authoredRecords(tx, id)
		if err != nil {
			return err
		}
		if referenced {
			return gorm.ErrForeignKeyViolated
		}

		var submissions []models.Submission
		if err := tx.Where("student_id = ?", id).Find(&submissions).Error; err != nil {
			return err
		}
		for _, submission := range submissions {
			if !submission.File.IsZero() {
				orphaned = append(orphaned, submission.File)
			}
		}

		if err := tx.Where("student_id = ?", id).Delete(&models.Submission{}).Error; err != nil {
			return err
		}
		if err := tx.Where("student_id = ?", id).Delete(&models.ClassEnrollment{}).Error; err != nil {
			return err
		}
		for _, model := range []interface{}{&models.AnnouncementReaction{}, &models.AnnouncementView{}} {
			if err := tx.Where("user_id = ?", id).Delete(model).Error; err != nil {
				return err
			}
		}

		return tx.Delete(&models.User{}, id).Error
	})
	if err != nil {
		return nil, err
	}

	return orphaned, nil
}

func authoredRecords(tx *gorm.DB, userID uint) (bool, error) {
	checks := []struct {
		model  interface{}
		column string
	}{
		{&models.Class{}, "teacher_id"},
		{&models.Announcement{}, "posted_by"},
		{&models.AnnouncementComment{}, "posted_by"},
	}

	for _, check := range checks {
		var count int64
		if err := tx.Model(check.model).Where(check.column+" = ?", userID).Count(&count).Error; err != nil {
			return false, err
		}
		if count > 0 {
			return true, nil
		}
	}
	return false, nil
}
