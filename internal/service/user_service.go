package service

import (
	"context"
	"errors"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"

	"github.com/noah-isme/taskhub-api/internal/dto"
	"github.com/noah-isme/taskhub-api/internal/models"
	"github.com/noah-isme/taskhub-api/internal/repository"
)

// UserService manages the user directory.
type UserService interface {
	List(ctx context.Context, filter dto.UserFilter) ([]dto.UserResponse, error)
	Create(ctx context.Context, actor Actor, payload dto.UserCreateRequest) (dto.UserResponse, error)
	Update(ctx context.Context, actor Actor, id uint, payload dto.UserUpdateRequest) (dto.UserResponse, error)
	ToggleActive(ctx context.Context, actor Actor, id uint) (dto.UserResponse, error)
	Delete(ctx context.Context, actor Actor, id uint) error
}

// UserDependencies groups the collaborators of the user directory. Only Users is required.
type UserDependencies struct {
	Users   repository.UserRepository
	Classes repository.ClassRepository
	Audit   AuditRecorder
	Cleaner FileCleaner
	Scores  ScoreCacheInvalidator
}

type userService struct {
	users     repository.UserRepository
	classes   repository.ClassRepository
	audit     AuditRecorder
	cleaner   FileCleaner
	scores    ScoreCacheInvalidator
	validator *validator.Validate
	logger    zerolog.Logger
	hashCost  int
}

// NewUserService constructs the user directory service.
func NewUserService(deps UserDependencies, validate *validator.Validate, logger zerolog.Logger) UserService {
	return &userService{
		users:     deps.Users,
		classes:   deps.Classes,
		audit:     deps.Audit,
		cleaner:   deps.Cleaner,
		scores:    deps.Scores,
		validator: validate,
		logger:    logger.With().Str("component", "user_service").Logger(),
		hashCost:  bcrypt.DefaultCost,
	}
}

func (s *userService) List(ctx context.Context, filter dto.UserFilter) ([]dto.UserResponse, error) {
	if err := validationFailure(s.validator.Struct(filter)); err != nil {
		return nil, err
	}

	role, _ := models.ParseRole(filter.Role)
	users, err := s.users.List(ctx, role)
	if err != nil {
		return nil, err
	}
	return dto.NewUserResponseSlice(users), nil
}

func (s *userService) Create(ctx context.Context, actor Actor, payload dto.UserCreateRequest) (dto.UserResponse, error) {
	payload.Email = normalizeEmail(payload.Email)
	if err := validationFailure(s.validator.Struct(payload)); err != nil {
		return dto.UserResponse{}, err
	}

	role, ok := models.ParseRole(payload.Role)
	if !ok {
		return dto.UserResponse{}, newValidationError("role must be student, teacher or admin", "role")
	}

	hash, err := s.hash(payload.Password)
	if err != nil {
		return dto.UserResponse{}, err
	}

	user := models.User{
		Name:         strings.TrimSpace(payload.Name),
		Email:        payload.Email,
		PasswordHash: hash,
		Role:         role,
		Active:       true,
	}

	if err := s.users.Create(ctx, &user); err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return dto.UserResponse{}, ErrDuplicateEmail
		}
		return dto.UserResponse{}, err
	}

	s.record(ctx, actor, "user.created", user)
	s.logger.Info().Uint("user_id", user.ID).Str("role", string(user.Role)).Msg("user created")

	return dto.NewUserResponse(user), nil
}

func (s *userService) Update(ctx context.Context, actor Actor, id uint, payload dto.UserUpdateRequest) (dto.UserResponse, error) {
	if payload.Email != nil {
		email := normalizeEmail(*payload.Email)
		payload.Email = &email
	}
	if err := validationFailure(s.validator.Struct(payload)); err != nil {
		return dto.UserResponse{}, err
	}

	user, err := s.load(ctx, id)
	if err != nil {
		return dto.UserResponse{}, err
	}
	previousName, previousEmail := user.Name, user.Email

	if payload.Name != nil {
		user.Name = strings.TrimSpace(*payload.Name)
	}
	if payload.Email != nil {
		user.Email = *payload.Email
	}
	if payload.Role != nil {
		role, ok := models.ParseRole(*payload.Role)
		if !ok {
			return dto.UserResponse{}, newValidationError("role must be student, teacher or admin", "role")
		}
		user.Role = role
	}
	if payload.Password != nil {
		hash, err := s.hash(*payload.Password)
		if err != nil {
			return dto.UserResponse{}, err
		}
		user.PasswordHash = hash
	}

	if err := s.users.Update(ctx, &user); err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return dto.UserResponse{}, ErrDuplicateEmail
		}
		return dto.UserResponse{}, err
	}

	s.record(ctx, actor, "user.updated", user)
	if user.Name != previousName || user.Email != previousEmail {
		s.invalidateScores(ctx, user.ID)
	}
	return dto.NewUserResponse(user), nil
}

func (s *userService) ToggleActive(ctx context.Context, actor Actor, id uint) (dto.UserResponse, error) {
	user, err := s.load(ctx, id)
	if err != nil {
		return dto.UserResponse{}, err
	}

	user.Active = !user.Active
	if err := s.users.Update(ctx, &user); err != nil {
		return dto.UserResponse{}, err
	}

	s.record(ctx, actor, "user.status_toggled", user)
	s.logger.Info().Uint("user_id", user.ID).Bool("active", user.Active).Msg("user status toggled")

	return dto.NewUserResponse(user), nil
}

func (s *userService) Delete(ctx context.Context, actor Actor, id uint) error {
	user, err := s.load(ctx, id)
	if err != nil {
		return err
	}

	classIDs := s.enrolledClasses(ctx, id)

	orphaned, err := s.users.Delete(ctx, id)
	if err != nil {
		switch {
		case errors.Is(err, gorm.ErrRecordNotFound):
			return ErrUserNotFound
		case errors.Is(err, gorm.ErrForeignKeyViolated):
			return ErrUserInUse
		}
		return err
	}

	if s.cleaner != nil {
		for _, ref := range orphaned {
			s.cleaner.Schedule(ref)
		}
	}
	if s.scores != nil {
		for _, classID := range classIDs {
			s.scores.Invalidate(ctx, classID)
		}
	}

	s.record(ctx, actor, "user.deleted", user)
	s.logger.Info().Uint("user_id", id).Int("orphaned_files", len(orphaned)).Msg("user deleted")
	return nil
}

func (s *userService) enrolledClasses(ctx context.Context, userID uint) []uint {
	if s.classes == nil || s.scores == nil {
		return nil
	}
	ids, err := s.classes.ClassIDsForStudent(ctx, userID)
	if err != nil {
		s.logger.Warn().Err(err).Uint("user_id", userID).Msg("failed to load enrolled classes")
		return nil
	}
	return ids
}

func (s *userService) invalidateScores(ctx context.Context, userID uint) {
	for _, classID := range s.enrolledClasses(ctx, userID) {
		s.scores.Invalidate(ctx, classID)
	}
}

func (s *userService) load(ctx context.Context, id uint) (models.User, error) {
	user, err := s.users.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return models.User{}, ErrUserNotFound
		}
		return models.User{}, err
	}
	return user, nil
}

func (s *userService) hash(password string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), s.hashCost)
	if err != nil {
		return "", err
	}
	return string(hash), nil
}

func (s *userService) record(ctx context.Context, actor Actor, action string, user models.User) {
	if s.audit == nil {
		return
	}
	entityID := user.ID
	metadata := map[string]interface{}{"email": user.Email, "role": string(user.Role), "active": user.Active}
	if err := s.audit.Record(ctx, AuditRecord{Actor: actor, Action: action, EntityType: "user", EntityID: &entityID, Metadata: metadata}); err != nil {
		s.logger.Warn().Err(err).Uint("user_id", user.ID).Msg("failed to record audit entry")
	}
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
