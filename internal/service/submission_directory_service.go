package service

import (
	"context"
	"errors"

	"github.com/rs/zerolog"
	"gorm.io/gorm"

	"github.com/noah-isme/taskhub-api/internal/dto"
	"github.com/noah-isme/taskhub-api/internal/models"
	"github.com/noah-isme/taskhub-api/internal/repository"
)

// SubmissionDirectoryService exposes submissions scoped to the classes a teacher owns.
type SubmissionDirectoryService interface {
	TeacherView(ctx context.Context, actor Actor, teacherID uint, classID *uint) ([]dto.SubmissionResponse, error)
}

type submissionDirectoryService struct {
	classes     repository.ClassRepository
	activities  repository.ActivityRepository
	submissions repository.SubmissionRepository
	logger      zerolog.Logger
}

// NewSubmissionDirectoryService constructs the teacher-scoped directory.
func NewSubmissionDirectoryService(classes repository.ClassRepository, activities repository.ActivityRepository, submissions repository.SubmissionRepository, logger zerolog.Logger) SubmissionDirectoryService {
	return &submissionDirectoryService{
		classes:     classes,
		activities:  activities,
		submissions: submissions,
		logger:      logger.With().Str("component", "submission_directory_service").Logger(),
	}
}

func (s *submissionDirectoryService) TeacherView(ctx context.Context, actor Actor, teacherID uint, classID *uint) ([]dto.SubmissionResponse, error) {
	if teacherID == 0 {
		return nil, newValidationError("teacher id is required", "teacher_id")
	}

	// Teachers only ever see their own directory.
	if actor.IsTeacher() && actor.ID != teacherID {
		return nil, ErrClassAccessDenied
	}

	var classIDs []uint
	if classID != nil {
		class, err := s.classes.GetByID(ctx, *classID)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return nil, ErrClassAccessDenied
			}
			return nil, err
		}
		if !class.IsOwnedBy(teacherID) {
			s.logger.Warn().Uint("teacher_id", teacherID).Uint("class_id", class.ID).Msg("teacher requested foreign class")
			return nil, ErrClassAccessDenied
		}
		classIDs = []uint{class.ID}
	} else {
		owned, err := s.classes.ListByTeacher(ctx, teacherID)
		if err != nil {
			return nil, err
		}
		classIDs = classIDList(owned)
	}

	activities, err := s.activities.ListByClasses(ctx, classIDs)
	if err != nil {
		return nil, err
	}

	activityIDs := make([]uint, 0, len(activities))
	for _, activity := range activities {
		activityIDs = append(activityIDs, activity.ID)
	}

	submissions, err := s.submissions.ListByActivities(ctx, activityIDs)
	if err != nil {
		return nil, err
	}

	return dto.NewSubmissionResponseSlice(submissions), nil
}

func classIDList(classes []models.Class) []uint {
	ids := make([]uint, 0, len(classes))
	for _, class := range classes {
		ids = append(ids, class.ID)
	}
	return ids
}
