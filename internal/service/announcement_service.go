package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/microcosm-cc/bluemonday"
	"github.com/rs/zerolog"
	"gorm.io/gorm"

	"github.com/noah-isme/taskhub-api/internal/dto"
	"github.com/noah-isme/taskhub-api/internal/models"
	"github.com/noah-isme/taskhub-api/internal/repository"
)

// AnnouncementService exposes the class announcement board.
type AnnouncementService interface {
	List(ctx context.Context, filter dto.AnnouncementFilter) ([]dto.AnnouncementResponse, error)
	Get(ctx context.Context, id uint) (dto.AnnouncementResponse, error)
	Create(ctx context.Context, actor Actor, payload dto.AnnouncementCreateRequest) (dto.AnnouncementResponse, error)
	Update(ctx context.Context, actor Actor, id uint, payload dto.AnnouncementUpdateRequest) (dto.AnnouncementResponse, error)
	Delete(ctx context.Context, actor Actor, id uint) error
	AddComment(ctx context.Context, actor Actor, id uint, payload dto.AnnouncementCommentRequest) (dto.AnnouncementResponse, error)
	ToggleReaction(ctx context.Context, actor Actor, id uint, payload dto.AnnouncementReactionRequest) (dto.AnnouncementResponse, error)
	MarkViewed(ctx context.Context, actor Actor, id uint, payload dto.AnnouncementViewRequest) (dto.AnnouncementResponse, error)
}

type announcementService struct {
	announcements repository.AnnouncementRepository
	classes       repository.ClassRepository
	audit         AuditRecorder
	validator     *validator.Validate
	sanitizer     *bluemonday.Policy
	logger        zerolog.Logger
	now           func() time.Time
}

// NewAnnouncementService constructs the announcement board service.
func NewAnnouncementService(announcements repository.AnnouncementRepository, classes repository.ClassRepository, audit AuditRecorder, validate *validator.Validate, logger zerolog.Logger) AnnouncementService {
	policy := bluemonday.UGCPolicy()
	policy.AllowElements("br")

	return &announcementService{
		announcements: announcements,
		classes:       classes,
		audit:         audit,
		validator:     validate,
		sanitizer:     policy,
		logger:        logger.With().Str("component", "announcement_service").Logger(),
		now:           time.Now,
	}
}

func (s *announcementService) List(ctx context.Context, filter dto.AnnouncementFilter) ([]dto.AnnouncementResponse, error) {
	var classIDs []uint
	switch {
	case filter.ClassID != nil:
		classIDs = []uint{*filter.ClassID}
	case filter.StudentID != nil:
		ids, err := s.classes.ClassIDsForStudent(ctx, *filter.StudentID)
		if err != nil {
			return nil, err
		}
		classIDs = ids
	default:
		return nil, newValidationError("classId or studentId is required", "classId", "studentId")
	}

	if len(classIDs) == 0 {
		return []dto.AnnouncementResponse{}, nil
	}

	announcements, err := s.announcements.ListByClasses(ctx, classIDs)
	if err != nil {
		return nil, err
	}
	return dto.NewAnnouncementResponseSlice(announcements), nil
}

func (s *announcementService) Get(ctx context.Context, id uint) (dto.AnnouncementResponse, error) {
	announcement, err := s.load(ctx, id)
	if err != nil {
		return dto.AnnouncementResponse{}, err
	}
	return dto.NewAnnouncementResponse(announcement), nil
}

func (s *announcementService) Create(ctx context.Context, actor Actor, payload dto.AnnouncementCreateRequest) (dto.AnnouncementResponse, error) {
	if err := validationFailure(s.validator.Struct(payload)); err != nil {
		return dto.AnnouncementResponse{}, err
	}

	posterID := payload.PostedBy
	if posterID == 0 {
		posterID = actor.ID
	}
	if posterID == 0 {
		return dto.AnnouncementResponse{}, newValidationError("posted_by is required", "posted_by")
	}
	if !actor.actsFor(posterID) {
		return dto.AnnouncementResponse{}, ErrForbidden
	}

	class, err := s.classes.GetByID(ctx, payload.ClassID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return dto.AnnouncementResponse{}, ErrClassNotFound
		}
		return dto.AnnouncementResponse{}, err
	}
	if !actor.canManageClass(class) {
		return dto.AnnouncementResponse{}, ErrClassAccessDenied
	}

	title := strings.TrimSpace(s.sanitizer.Sanitize(payload.Title))
	content := strings.TrimSpace(s.sanitizer.Sanitize(payload.Content))
	if title == "" || content == "" {
		return dto.AnnouncementResponse{}, newValidationError("title and content must not be empty after sanitization", "title", "content")
	}

	announcement := models.Announcement{
		ClassID:    class.ID,
		Title:      title,
		Content:    content,
		PostedBy:   posterID,
		DatePosted: s.now().UTC(),
	}

	if err := s.announcements.Create(ctx, &announcement); err != nil {
		return dto.AnnouncementResponse{}, err
	}

	s.record(ctx, actor, "announcement.created", announcement)
	s.logger.Info().Uint("announcement_id", announcement.ID).Uint("class_id", class.ID).Msg("announcement posted")

	return s.Get(ctx, announcement.ID)
}

func (s *announcementService) Update(ctx context.Context, actor Actor, id uint, payload dto.AnnouncementUpdateRequest) (dto.AnnouncementResponse, error) {
	if err := validationFailure(s.validator.Struct(payload)); err != nil {
		return dto.AnnouncementResponse{}, err
	}

	announcement, err := s.editable(ctx, actor, id)
	if err != nil {
		return dto.AnnouncementResponse{}, err
	}

	if payload.Title != nil {
		title := strings.TrimSpace(s.sanitizer.Sanitize(*payload.Title))
		if title == "" {
			return dto.AnnouncementResponse{}, newValidationError("title must not be empty after sanitization", "title")
		}
		announcement.Title = title
	}
	if payload.Content != nil {
		content := strings.TrimSpace(s.sanitizer.Sanitize(*payload.Content))
		if content == "" {
			return dto.AnnouncementResponse{}, newValidationError("content must not be empty after sanitization", "content")
		}
		announcement.Content = content
	}

	if err := s.announcements.Update(ctx, &announcement); err != nil {
		return dto.AnnouncementResponse{}, err
	}

	s.record(ctx, actor, "announcement.updated", announcement)
	return s.Get(ctx, id)
}

func (s *announcementService) Delete(ctx context.Context, actor Actor, id uint) error {
	announcement, err := s.editable(ctx, actor, id)
	if err != nil {
		return err
	}

	if err := s.announcements.Delete(ctx, id); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrAnnouncementNotFound
		}
		return err
	}

	s.record(ctx, actor, "announcement.deleted", announcement)
	s.logger.Info().Uint("announcement_id", id).Msg("announcement deleted")
	return nil
}

func (s *announcementService) AddComment(ctx context.Context, actor Actor, id uint, payload dto.AnnouncementCommentRequest) (dto.AnnouncementResponse, error) {
	if err := validationFailure(s.validator.Struct(payload)); err != nil {
		return dto.AnnouncementResponse{}, err
	}

	if _, err := s.load(ctx, id); err != nil {
		return dto.AnnouncementResponse{}, err
	}

	posterID := payload.PostedBy
	if posterID == 0 {
		posterID = actor.ID
	}
	if posterID == 0 {
		return dto.AnnouncementResponse{}, newValidationError("posted_by is required", "posted_by")
	}

	text := strings.TrimSpace(s.sanitizer.Sanitize(payload.Text))
	if text == "" {
		return dto.AnnouncementResponse{}, newValidationError("comment must not be empty after sanitization", "text")
	}

	comment := models.AnnouncementComment{
		AnnouncementID: id,
		Text:           text,
		PostedBy:       posterID,
		Date:           s.now().UTC(),
	}
	if err := s.announcements.AddComment(ctx, &comment); err != nil {
		return dto.AnnouncementResponse{}, err
	}

	return s.Get(ctx, id)
}

func (s *announcementService) ToggleReaction(ctx context.Context, actor Actor, id uint, payload dto.AnnouncementReactionRequest) (dto.AnnouncementResponse, error) {
	if err := validationFailure(s.validator.Struct(payload)); err != nil {
		return dto.AnnouncementResponse{}, err
	}

	if _, err := s.load(ctx, id); err != nil {
		return dto.AnnouncementResponse{}, err
	}

	userID := payload.UserID
	if userID == 0 {
		userID = actor.ID
	}
	if userID == 0 {
		return dto.AnnouncementResponse{}, newValidationError("user_id is required", "user_id")
	}
	if !actor.actsFor(userID) {
		return dto.AnnouncementResponse{}, ErrForbidden
	}

	present, err := s.announcements.ToggleReaction(ctx, models.AnnouncementReaction{
		AnnouncementID: id,
		UserID:         userID,
		Emoji:          strings.TrimSpace(payload.Emoji),
	})
	if err != nil {
		return dto.AnnouncementResponse{}, err
	}

	s.logger.Debug().Uint("announcement_id", id).Uint("user_id", userID).Bool("present", present).Msg("reaction toggled")
	return s.Get(ctx, id)
}

func (s *announcementService) MarkViewed(ctx context.Context, actor Actor, id uint, payload dto.AnnouncementViewRequest) (dto.AnnouncementResponse, error) {
	if _, err := s.load(ctx, id); err != nil {
		return dto.AnnouncementResponse{}, err
	}

	userID := payload.UserID
	if userID == 0 {
		userID = actor.ID
	}
	if userID == 0 {
		return dto.AnnouncementResponse{}, newValidationError("user_id is required", "user_id")
	}
	if !actor.actsFor(userID) {
		return dto.AnnouncementResponse{}, ErrForbidden
	}

	if err := s.announcements.MarkViewed(ctx, id, userID, s.now().UTC()); err != nil {
		return dto.AnnouncementResponse{}, err
	}

	return s.Get(ctx, id)
}

func (s *announcementService) load(ctx context.Context, id uint) (models.Announcement, error) {
	announcement, err := s.announcements.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return models.Announcement{}, ErrAnnouncementNotFound
		}
		return models.Announcement{}, err
	}
	return announcement, nil
}

// editable loads the announcement if the caller posted it or may manage its class.
func (s *announcementService) editable(ctx context.Context, actor Actor, id uint) (models.Announcement, error) {
	announcement, err := s.load(ctx, id)
	if err != nil {
		return models.Announcement{}, err
	}
	if actor.ID != 0 && announcement.PostedBy == actor.ID {
		return announcement, nil
	}
	if actor.IsAdmin() {
		return announcement, nil
	}

	class, err := s.classes.GetByID(ctx, announcement.ClassID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return models.Announcement{}, ErrClassAccessDenied
		}
		return models.Announcement{}, err
	}
	if !actor.IsTeacher() || !actor.canManageClass(class) {
		return models.Announcement{}, ErrClassAccessDenied
	}
	return announcement, nil
}

func (s *announcementService) record(ctx context.Context, actor Actor, action string, announcement models.Announcement) {
	if s.audit == nil {
		return
	}
	entityID := announcement.ID
	metadata := map[string]interface{}{"class_id": announcement.ClassID, "title": announcement.Title}
	if err := s.audit.Record(ctx, AuditRecord{Actor: actor, Action: action, EntityType: "announcement", EntityID: &entityID, Metadata: metadata}); err != nil {
		s.logger.Warn().Err(err).Uint("announcement_id", announcement.ID).Msg("failed to record audit entry")
	}
}
