package service

import (
	"context"
	"errors"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog"
	"gorm.io/gorm"

	"github.com/noah-isme/taskhub-api/internal/dto"
	"github.com/noah-isme/taskhub-api/internal/models"
	"github.com/noah-isme/taskhub-api/internal/repository"
)

// ClassService manages classes and their ordered rosters.
type ClassService interface {
	List(ctx context.Context) ([]dto.ClassResponse, error)
	Get(ctx context.Context, id uint) (dto.ClassResponse, error)
	ListForStudent(ctx context.Context, studentID uint) ([]dto.ClassResponse, error)
	Create(ctx context.Context, actor Actor, payload dto.ClassCreateRequest) (dto.ClassResponse, error)
	Update(ctx context.Context, actor Actor, id uint, payload dto.ClassUpdateRequest) (dto.ClassResponse, error)
	ReplaceStudents(ctx context.Context, actor Actor, id uint, payload dto.ClassStudentsRequest) (dto.ClassResponse, error)
	Delete(ctx context.Context, actor Actor, id uint) error
}

// ClassDependencies groups the collaborators of the class roster.
type ClassDependencies struct {
	Classes repository.ClassRepository
	Users   repository.UserRepository
	Cleaner FileCleaner
	Audit   AuditRecorder
	Scores  ScoreCacheInvalidator
}

type classService struct {
	classes   repository.ClassRepository
	users     repository.UserRepository
	cleaner   FileCleaner
	audit     AuditRecorder
	scores    ScoreCacheInvalidator
	validator *validator.Validate
	logger    zerolog.Logger
}

// NewClassService builds a class service.
func NewClassService(deps ClassDependencies, validate *validator.Validate, logger zerolog.Logger) ClassService {
	return &classService{
		classes:   deps.Classes,
		users:     deps.Users,
		cleaner:   deps.Cleaner,
		audit:     deps.Audit,
		scores:    deps.Scores,
		validator: validate,
		logger:    logger.With().Str("component", "class_service").Logger(),
	}
}

func (s *classService) List(ctx context.Context) ([]dto.ClassResponse, error) {
	classes, err := s.classes.List(ctx)
	if err != nil {
		return nil, err
	}
	return dto.NewClassResponseSlice(classes), nil
}

func (s *classService) Get(ctx context.Context, id uint) (dto.ClassResponse, error) {
	class, err := s.load(ctx, id)
	if err != nil {
		return dto.ClassResponse{}, err
	}
	return dto.NewClassResponse(class), nil
}

func (s *classService) ListForStudent(ctx context.Context, studentID uint) ([]dto.ClassResponse, error) {
	classes, err := s.classes.ListForStudent(ctx, studentID)
	if err != nil {
		return nil, err
	}
	return dto.NewClassResponseSlice(classes), nil
}

func (s *classService) Create(ctx context.Context, actor Actor, payload dto.ClassCreateRequest) (dto.ClassResponse, error) {
	if err := validationFailure(s.validator.Struct(payload)); err != nil {
		return dto.ClassResponse{}, err
	}

	if actor.IsTeacher() && payload.TeacherID != actor.ID {
		return dto.ClassResponse{}, ErrClassAccessDenied
	}

	if err := s.ensureTeacher(ctx, payload.TeacherID); err != nil {
		return dto.ClassResponse{}, err
	}

	studentIDs, err := s.filterStudents(ctx, payload.StudentIDs)
	if err != nil {
		return dto.ClassResponse{}, err
	}

	class := models.Class{
		Name:       strings.TrimSpace(payload.Name),
		TeacherID:  payload.TeacherID,
		Day:        strings.TrimSpace(payload.Day),
		Time:       strings.TrimSpace(payload.Time),
		RoomNumber: strings.TrimSpace(payload.RoomNumber),
	}

	if err := s.classes.Create(ctx, &class, studentIDs); err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return dto.ClassResponse{}, ErrDuplicateClassName
		}
		return dto.ClassResponse{}, err
	}

	created, err := s.load(ctx, class.ID)
	if err != nil {
		return dto.ClassResponse{}, err
	}

	s.record(ctx, actor, "class.created", created, map[string]interface{}{"students": len(studentIDs)})
	s.logger.Info().Uint("class_id", created.ID).Uint("teacher_id", created.TeacherID).Msg("class created")

	return dto.NewClassResponse(created), nil
}

func (s *classService) Update(ctx context.Context, actor Actor, id uint, payload dto.ClassUpdateRequest) (dto.ClassResponse, error) {
	if err := validationFailure(s.validator.Struct(payload)); err != nil {
		return dto.ClassResponse{}, err
	}

	class, err := s.owned(ctx, actor, id)
	if err != nil {
		return dto.ClassResponse{}, err
	}

	if payload.Name != nil {
		class.Name = strings.TrimSpace(*payload.Name)
	}
	if payload.TeacherID != nil && *payload.TeacherID != class.TeacherID {
		if actor.IsTeacher() {
			return dto.ClassResponse{}, ErrClassAccessDenied
		}
		if err := s.ensureTeacher(ctx, *payload.TeacherID); err != nil {
			return dto.ClassResponse{}, err
		}
		class.TeacherID = *payload.TeacherID
		class.Teacher = models.User{}
	}
	if payload.Day != nil {
		class.Day = strings.TrimSpace(*payload.Day)
	}
	if payload.Time != nil {
		class.Time = strings.TrimSpace(*payload.Time)
	}
	if payload.RoomNumber != nil {
		class.RoomNumber = strings.TrimSpace(*payload.RoomNumber)
	}

	if err := s.classes.Update(ctx, &class); err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return dto.ClassResponse{}, ErrDuplicateClassName
		}
		return dto.ClassResponse{}, err
	}

	updated, err := s.load(ctx, id)
	if err != nil {
		return dto.ClassResponse{}, err
	}

	s.record(ctx, actor, "class.updated", updated, nil)
	return dto.NewClassResponse(updated), nil
}

func (s *classService) ReplaceStudents(ctx context.Context, actor Actor, id uint, payload dto.ClassStudentsRequest) (dto.ClassResponse, error) {
	if err := validationFailure(s.validator.Struct(payload)); err != nil {
		return dto.ClassResponse{}, err
	}

	if _, err := s.owned(ctx, actor, id); err != nil {
		return dto.ClassResponse{}, err
	}

	studentIDs, err := s.filterStudents(ctx, payload.StudentIDs)
	if err != nil {
		return dto.ClassResponse{}, err
	}

	if err := s.classes.ReplaceStudents(ctx, id, studentIDs); err != nil {
		return dto.ClassResponse{}, err
	}

	updated, err := s.load(ctx, id)
	if err != nil {
		return dto.ClassResponse{}, err
	}

	s.record(ctx, actor, "class.roster_replaced", updated, map[string]interface{}{"students": len(studentIDs)})
	s.invalidate(ctx, id)
	s.logger.Info().Uint("class_id", id).Int("students", len(studentIDs)).Msg("class roster replaced")

	return dto.NewClassResponse(updated), nil
}

func (s *classService) Delete(ctx context.Context, actor Actor, id uint) error {
	class, err := s.owned(ctx, actor, id)
	if err != nil {
		return err
	}

	files, err := s.classes.Delete(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrClassNotFound
		}
		return err
	}

	if s.cleaner != nil {
		for _, file := range files {
			if !file.IsZero() {
				s.cleaner.Schedule(file)
			}
		}
	}

	s.record(ctx, actor, "class.deleted", class, map[string]interface{}{"files_released": len(files)})
	s.invalidate(ctx, id)
	s.logger.Info().Uint("class_id", id).Int("files", len(files)).Msg("class deleted")

	return nil
}

func (s *classService) load(ctx context.Context, id uint) (models.Class, error) {
	class, err := s.classes.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return models.Class{}, ErrClassNotFound
		}
		return models.Class{}, err
	}
	return class, nil
}

func (s *classService) owned(ctx context.Context, actor Actor, id uint) (models.Class, error) {
	class, err := s.load(ctx, id)
	if err != nil {
		return models.Class{}, err
	}
	if !actor.canManageClass(class) {
		return models.Class{}, ErrClassAccessDenied
	}
	return class, nil
}

func (s *classService) ensureTeacher(ctx context.Context, teacherID uint) error {
	teacher, err := s.users.GetByID(ctx, teacherID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return newValidationError("teacher not found", "teacher_id")
		}
		return err
	}
	if !teacher.IsTeacher() {
		return newValidationError("teacher_id must reference a teacher", "teacher_id")
	}
	return nil
}

// filterStudents keeps the caller's order and drops unknown, duplicate or non-student ids.
func (s *classService) filterStudents(ctx context.Context, ids []uint) ([]uint, error) {
	if len(ids) == 0 {
		return []uint{}, nil
	}

	users, err := s.users.ListByIDs(ctx, ids)
	if err != nil {
		return nil, err
	}

	students := make(map[uint]struct{}, len(users))
	for _, user := range users {
		if user.IsStudent() {
			students[user.ID] = struct{}{}
		}
	}

	filtered := make([]uint, 0, len(ids))
	for _, id := range ids {
		if _, ok := students[id]; !ok {
			continue
		}
		filtered = append(filtered, id)
		delete(students, id)
	}
	return filtered, nil
}

func (s *classService) invalidate(ctx context.Context, classID uint) {
	if s.scores != nil {
		s.scores.Invalidate(ctx, classID)
	}
}

func (s *classService) record(ctx context.Context, actor Actor, action string, class models.Class, metadata map[string]interface{}) {
	if s.audit == nil {
		return
	}
	if metadata == nil {
		metadata = map[string]interface{}{}
	}
	metadata["name"] = class.Name
	entityID := class.ID
	if err := s.audit.Record(ctx, AuditRecord{Actor: actor, Action: action, EntityType: "class", EntityID: &entityID, Metadata: metadata}); err != nil {
		s.logger.Warn().Err(err).Uint("class_id", class.ID).Msg("failed to record audit entry")
	}
}
