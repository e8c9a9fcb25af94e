package service

import (
	"context"
	"errors"
	"mime/multipart"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog"
	"gorm.io/gorm"

	"github.com/noah-isme/taskhub-api/internal/dto"
	"github.com/noah-isme/taskhub-api/internal/models"
	"github.com/noah-isme/taskhub-api/internal/repository"
)

// ActivityService exposes activity catalog use cases.
type ActivityService interface {
	List(ctx context.Context, filter dto.ActivityFilter) ([]dto.ActivityResponse, error)
	Get(ctx context.Context, id uint) (dto.ActivityResponse, error)
	Create(ctx context.Context, actor Actor, payload dto.ActivityCreateRequest, file *multipart.FileHeader) (dto.ActivityResponse, error)
	Update(ctx context.Context, actor Actor, id uint, payload dto.ActivityUpdateRequest, file *multipart.FileHeader) (dto.ActivityResponse, error)
	SetLock(ctx context.Context, actor Actor, id uint, payload dto.ActivityLockRequest) (dto.ActivityResponse, error)
	Delete(ctx context.Context, actor Actor, id uint) error
	TodaySchedule(ctx context.Context, studentID uint) ([]dto.ActivityResponse, error)
}

// ActivityDependencies groups the collaborators of the activity catalog.
type ActivityDependencies struct {
	Activities repository.ActivityRepository
	Classes    repository.ClassRepository
	Intake     FileIntake
	Cleaner    FileCleaner
	Audit      AuditRecorder
	Scores     ScoreCacheInvalidator
}

type activityService struct {
	activities repository.ActivityRepository
	classes    repository.ClassRepository
	intake     FileIntake
	cleaner    FileCleaner
	audit      AuditRecorder
	scores     ScoreCacheInvalidator
	validator  *validator.Validate
	logger     zerolog.Logger
	now        func() time.Time
}

// NewActivityService builds a new activity service.
func NewActivityService(deps ActivityDependencies, validate *validator.Validate, logger zerolog.Logger) ActivityService {
	return &activityService{
		activities: deps.Activities,
		classes:    deps.Classes,
		intake:     deps.Intake,
		cleaner:    deps.Cleaner,
		audit:      deps.Audit,
		scores:     deps.Scores,
		validator:  validate,
		logger:     logger.With().Str("component", "activity_service").Logger(),
		now:        time.Now,
	}
}

func (s *activityService) List(ctx context.Context, filter dto.ActivityFilter) ([]dto.ActivityResponse, error) {
	activities, err := s.activities.List(ctx, repository.ActivityFilter{ClassID: filter.ClassID})
	if err != nil {
		return nil, err
	}
	return dto.NewActivityResponseSlice(activities), nil
}

func (s *activityService) Get(ctx context.Context, id uint) (dto.ActivityResponse, error) {
	activity, err := s.load(ctx, id)
	if err != nil {
		return dto.ActivityResponse{}, err
	}
	return dto.NewActivityResponse(activity), nil
}

func (s *activityService) Create(ctx context.Context, actor Actor, payload dto.ActivityCreateRequest, file *multipart.FileHeader) (dto.ActivityResponse, error) {
	if err := validationFailure(s.validator.Struct(payload)); err != nil {
		return dto.ActivityResponse{}, err
	}

	date, err := parseActivityDate(payload.Date)
	if err != nil {
		return dto.ActivityResponse{}, err
	}

	class, err := s.classes.GetByID(ctx, payload.ClassID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return dto.ActivityResponse{}, ErrClassNotFound
		}
		return dto.ActivityResponse{}, err
	}
	if !actor.canManageClass(class) {
		return dto.ActivityResponse{}, ErrClassAccessDenied
	}

	activity := models.Activity{
		ClassID:     class.ID,
		Title:       strings.TrimSpace(payload.Title),
		Description: payload.Description,
		Date:        date,
		TotalPoints: payload.TotalPoints,
		Link:        strings.TrimSpace(payload.Link),
		Attachment:  models.NewFileRef(payload.Attachment),
		CreatedBy:   actor.ID,
	}

	if file != nil {
		stored, err := s.store(ctx, file)
		if err != nil {
			return dto.ActivityResponse{}, err
		}
		activity.Attachment = stored
	}

	if err := s.activities.Create(ctx, &activity); err != nil {
		if file != nil {
			s.discard(activity.Attachment)
		}
		return dto.ActivityResponse{}, err
	}

	s.record(ctx, actor, "activity.created", activity, nil)
	s.invalidate(ctx, activity.ClassID)
	s.logger.Info().Uint("activity_id", activity.ID).Uint("class_id", activity.ClassID).Msg("activity created")

	return dto.NewActivityResponse(activity), nil
}

func (s *activityService) Update(ctx context.Context, actor Actor, id uint, payload dto.ActivityUpdateRequest, file *multipart.FileHeader) (dto.ActivityResponse, error) {
	if err := validationFailure(s.validator.Struct(payload)); err != nil {
		return dto.ActivityResponse{}, err
	}

	activity, err := s.load(ctx, id)
	if err != nil {
		return dto.ActivityResponse{}, err
	}
	if err := s.authorize(ctx, actor, activity.ClassID); err != nil {
		return dto.ActivityResponse{}, err
	}

	if payload.Title != nil {
		activity.Title = strings.TrimSpace(*payload.Title)
	}
	if payload.Description != nil {
		activity.Description = *payload.Description
	}
	if payload.Date != nil {
		date, err := parseActivityDate(*payload.Date)
		if err != nil {
			return dto.ActivityResponse{}, err
		}
		activity.Date = date
	}
	if payload.TotalPoints != nil {
		activity.TotalPoints = payload.TotalPoints
	}
	if payload.Link != nil {
		activity.Link = strings.TrimSpace(*payload.Link)
	}

	previous := activity.Attachment
	if payload.Attachment != nil {
		activity.Attachment = models.NewFileRef(*payload.Attachment)
	}
	if file != nil {
		stored, err := s.store(ctx, file)
		if err != nil {
			return dto.ActivityResponse{}, err
		}
		activity.Attachment = stored
	}

	if err := s.activities.Update(ctx, &activity); err != nil {
		if file != nil {
			s.discard(activity.Attachment)
		}
		return dto.ActivityResponse{}, err
	}

	if previous.Location != activity.Attachment.Location {
		s.discard(previous)
	}

	s.record(ctx, actor, "activity.updated", activity, nil)
	s.invalidate(ctx, activity.ClassID)
	s.logger.Info().Uint("activity_id", activity.ID).Msg("activity updated")

	return dto.NewActivityResponse(activity), nil
}

func (s *activityService) SetLock(ctx context.Context, actor Actor, id uint, payload dto.ActivityLockRequest) (dto.ActivityResponse, error) {
	if err := validationFailure(s.validator.Struct(payload)); err != nil {
		return dto.ActivityResponse{}, err
	}

	activity, err := s.load(ctx, id)
	if err != nil {
		return dto.ActivityResponse{}, err
	}
	if err := s.authorize(ctx, actor, activity.ClassID); err != nil {
		return dto.ActivityResponse{}, err
	}

	if activity.IsLocked == *payload.IsLocked {
		return dto.NewActivityResponse(activity), nil
	}

	activity.IsLocked = *payload.IsLocked
	if err := s.activities.Update(ctx, &activity); err != nil {
		return dto.ActivityResponse{}, err
	}

	action := "activity.unlocked"
	if activity.IsLocked {
		action = "activity.locked"
	}
	s.record(ctx, actor, action, activity, nil)
	s.logger.Info().Uint("activity_id", activity.ID).Bool("locked", activity.IsLocked).Msg("activity lock changed")

	return dto.NewActivityResponse(activity), nil
}

func (s *activityService) Delete(ctx context.Context, actor Actor, id uint) error {
	activity, err := s.load(ctx, id)
	if err != nil {
		return err
	}
	if err := s.authorize(ctx, actor, activity.ClassID); err != nil {
		return err
	}

	files, err := s.activities.Delete(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrActivityNotFound
		}
		return err
	}

	for _, file := range files {
		s.discard(file)
	}

	s.record(ctx, actor, "activity.deleted", activity, map[string]interface{}{"files_released": len(files)})
	s.invalidate(ctx, activity.ClassID)
	s.logger.Info().Uint("activity_id", id).Int("files", len(files)).Msg("activity deleted")

	return nil
}

func (s *activityService) TodaySchedule(ctx context.Context, studentID uint) ([]dto.ActivityResponse, error) {
	if studentID == 0 {
		return nil, newValidationError("user id is required", "user_id")
	}

	classIDs, err := s.classes.ClassIDsForStudent(ctx, studentID)
	if err != nil {
		return nil, err
	}

	now := s.now()
	start := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())
	activities, err := s.activities.ListScheduled(ctx, classIDs, start, start.AddDate(0, 0, 1))
	if err != nil {
		return nil, err
	}

	return dto.NewActivityResponseSlice(activities), nil
}

func (s *activityService) load(ctx context.Context, id uint) (models.Activity, error) {
	activity, err := s.activities.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return models.Activity{}, ErrActivityNotFound
		}
		return models.Activity{}, err
	}
	return activity, nil
}

func (s *activityService) authorize(ctx context.Context, actor Actor, classID uint) error {
	if !actor.IsTeacher() {
		return nil
	}
	class, err := s.classes.GetByID(ctx, classID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrClassAccessDenied
		}
		return err
	}
	if !actor.canManageClass(class) {
		return ErrClassAccessDenied
	}
	return nil
}

func (s *activityService) store(ctx context.Context, file *multipart.FileHeader) (models.FileRef, error) {
	if s.intake == nil {
		return models.FileRef{}, errors.New("file uploads are not configured")
	}
	return s.intake.Store(ctx, file)
}

func (s *activityService) discard(ref models.FileRef) {
	if ref.IsZero() || s.cleaner == nil {
		return
	}
	s.cleaner.Schedule(ref)
}

func (s *activityService) invalidate(ctx context.Context, classID uint) {
	if s.scores != nil {
		s.scores.Invalidate(ctx, classID)
	}
}

func (s *activityService) record(ctx context.Context, actor Actor, action string, activity models.Activity, metadata map[string]interface{}) {
	if s.audit == nil {
		return
	}
	if metadata == nil {
		metadata = map[string]interface{}{}
	}
	metadata["class_id"] = activity.ClassID
	metadata["title"] = activity.Title
	entityID := activity.ID
	if err := s.audit.Record(ctx, AuditRecord{Actor: actor, Action: action, EntityType: "activity", EntityID: &entityID, Metadata: metadata}); err != nil {
		s.logger.Warn().Err(err).Uint("activity_id", activity.ID).Msg("failed to record audit entry")
	}
}

// parseActivityDate accepts RFC 3339 timestamps or plain calendar dates.
func parseActivityDate(raw string) (time.Time, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return time.Time{}, newValidationError("date is required", "date")
	}
	if parsed, err := time.Parse(time.RFC3339, raw); err == nil {
		return parsed, nil
	}
	if parsed, err := time.ParseInLocation("2006-01-02", raw, time.UTC); err == nil {
		return parsed, nil
	}
	return time.Time{}, newValidationError("date must be RFC 3339 or YYYY-MM-DD", "date")
}
