package service

import (
	"context"
	"encoding/json"
	"errors"
	"math"
	"mime/multipart"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"gorm.io/gorm"

	"github.com/noah-isme/taskhub-api/internal/dto"
	"github.com/noah-isme/taskhub-api/internal/models"
	"github.com/noah-isme/taskhub-api/internal/observability"
	"github.com/noah-isme/taskhub-api/internal/repository"
)

// Submission lifecycle event types.
const (
	EventSubmissionSubmitted   = "submission.submitted"
	EventSubmissionResubmitted = "submission.resubmitted"
	EventSubmissionGraded      = "submission.graded"
	EventSubmissionDeleted     = "submission.deleted"
)

// ScoreCacheInvalidator drops cached score exports of a class.
type ScoreCacheInvalidator interface {
	Invalidate(ctx context.Context, classID uint)
}

// SubmissionService orchestrates the submission lifecycle.
type SubmissionService interface {
	Submit(ctx context.Context, actor Actor, payload dto.SubmissionCreateRequest, file *multipart.FileHeader) (dto.SubmissionResponse, error)
	Resubmit(ctx context.Context, actor Actor, id uint, payload dto.SubmissionResubmitRequest, file *multipart.FileHeader) (dto.SubmissionResponse, error)
	Grade(ctx context.Context, actor Actor, id uint, payload dto.SubmissionScoreRequest) (dto.SubmissionResponse, error)
	Delete(ctx context.Context, actor Actor, id uint) error
	Find(ctx context.Context, filter dto.SubmissionFilter) (dto.SubmissionResponse, error)
	ListForStudent(ctx context.Context, studentID uint, classID *uint) ([]dto.SubmissionResponse, error)
}

// SubmissionDependencies groups the collaborators of the lifecycle manager. Only the repositories are required.
type SubmissionDependencies struct {
	Submissions repository.SubmissionRepository
	Activities  repository.ActivityRepository
	Intake      FileIntake
	Cleaner     FileCleaner
	Audit       AuditRecorder
	Events      EventPublisher
	Scores      ScoreCacheInvalidator
}

type submissionService struct {
	submissions repository.SubmissionRepository
	activities  repository.ActivityRepository
	intake      FileIntake
	cleaner     FileCleaner
	audit       AuditRecorder
	events      EventPublisher
	scores      ScoreCacheInvalidator
	validator   *validator.Validate
	logger      zerolog.Logger
	tracer      trace.Tracer
	now         func() time.Time
}

// NewSubmissionService constructs a SubmissionService instance.
func NewSubmissionService(deps SubmissionDependencies, validate *validator.Validate, logger zerolog.Logger) SubmissionService {
	return &submissionService{
		submissions: deps.Submissions,
		activities:  deps.Activities,
		intake:      deps.Intake,
		cleaner:     deps.Cleaner,
		audit:       deps.Audit,
		events:      deps.Events,
		scores:      deps.Scores,
		validator:   validate,
		logger:      logger.With().Str("component", "submission_service").Logger(),
		tracer:      otel.Tracer("github.com/noah-isme/taskhub-api/internal/service/submission"),
		now:         time.Now,
	}
}

func (s *submissionService) Submit(ctx context.Context, actor Actor, payload dto.SubmissionCreateRequest, file *multipart.FileHeader) (dto.SubmissionResponse, error) {
	ctx, span := s.tracer.Start(ctx, "submission.submit")
	defer span.End()
	span.SetAttributes(
		attribute.Int64("submission.activity_id", int64(payload.ActivityID)),
		attribute.Int64("submission.student_id", int64(payload.StudentID)),
	)

	if err := validationFailure(s.validator.Struct(payload)); err != nil {
		return dto.SubmissionResponse{}, s.fail(span, "submitted", err)
	}

	if !actor.actsFor(payload.StudentID) {
		return dto.SubmissionResponse{}, s.fail(span, "submitted", ErrForbidden)
	}

	content := strings.TrimSpace(payload.Content)
	if file == nil && content == "" {
		return dto.SubmissionResponse{}, s.fail(span, "submitted", newValidationError("a file or text content is required", "file", "content"))
	}

	submittedAt, err := s.submissionTime(payload.SubmissionDate)
	if err != nil {
		return dto.SubmissionResponse{}, s.fail(span, "submitted", err)
	}

	activity, err := s.activities.GetByID(ctx, payload.ActivityID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			err = ErrActivityNotFound
		}
		return dto.SubmissionResponse{}, s.fail(span, "submitted", err)
	}

	if activity.IsLocked {
		return dto.SubmissionResponse{}, s.fail(span, "submitted", ErrActivityLocked)
	}

	if _, err := s.submissions.GetByActivityAndStudent(ctx, payload.ActivityID, payload.StudentID); err == nil {
		return dto.SubmissionResponse{}, s.fail(span, "submitted", ErrDuplicateSubmission)
	} else if !errors.Is(err, gorm.ErrRecordNotFound) {
		return dto.SubmissionResponse{}, s.fail(span, "submitted", err)
	}

	var stored models.FileRef
	if file != nil {
		stored, err = s.store(ctx, file)
		if err != nil {
			return dto.SubmissionResponse{}, s.fail(span, "submitted", err)
		}
	}

	submission := models.Submission{
		ActivityID:  payload.ActivityID,
		StudentID:   payload.StudentID,
		File:        stored,
		Content:     content,
		SubmittedAt: submittedAt,
		Status:      models.SubmissionStatusSubmitted,
	}

	if err := s.submissions.Create(ctx, &submission); err != nil {
		s.discard(stored)
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			err = ErrDuplicateSubmission
		}
		return dto.SubmissionResponse{}, s.fail(span, "submitted", err)
	}

	created, err := s.submissions.GetByID(ctx, submission.ID)
	if err != nil {
		return dto.SubmissionResponse{}, s.fail(span, "submitted", err)
	}

	s.afterTransition(ctx, actor, EventSubmissionSubmitted, created, map[string]interface{}{
		"has_file": !stored.IsZero(),
	})
	span.SetStatus(codes.Ok, "submitted")
	s.logger.Info().Uint("submission_id", created.ID).Uint("activity_id", created.ActivityID).Msg("submission created")

	return dto.NewSubmissionResponse(created), nil
}

func (s *submissionService) Resubmit(ctx context.Context, actor Actor, id uint, payload dto.SubmissionResubmitRequest, file *multipart.FileHeader) (dto.SubmissionResponse, error) {
	ctx, span := s.tracer.Start(ctx, "submission.resubmit")
	defer span.End()
	span.SetAttributes(attribute.Int64("submission.id", int64(id)))

	submission, err := s.submissions.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			err = ErrSubmissionNotFound
		}
		return dto.SubmissionResponse{}, s.fail(span, "resubmitted", err)
	}

	if !actor.actsFor(submission.StudentID) {
		return dto.SubmissionResponse{}, s.fail(span, "resubmitted", ErrForbidden)
	}

	activity, err := s.activities.GetByID(ctx, submission.ActivityID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			err = ErrActivityNotFound
		}
		return dto.SubmissionResponse{}, s.fail(span, "resubmitted", err)
	}

	if activity.IsLocked {
		return dto.SubmissionResponse{}, s.fail(span, "resubmitted", ErrActivityLocked)
	}

	var content *string
	if payload.Content != nil {
		trimmed := strings.TrimSpace(*payload.Content)
		if trimmed != "" {
			content = &trimmed
		}
	}
	if file == nil && content == nil {
		return dto.SubmissionResponse{}, s.fail(span, "resubmitted", newValidationError("a new file or text content is required", "file", "content"))
	}

	submittedAt, err := s.submissionTime(payload.SubmissionDate)
	if err != nil {
		return dto.SubmissionResponse{}, s.fail(span, "resubmitted", err)
	}

	var replacement *models.FileRef
	if file != nil {
		stored, err := s.store(ctx, file)
		if err != nil {
			return dto.SubmissionResponse{}, s.fail(span, "resubmitted", err)
		}
		replacement = &stored
	}

	orphan := submission.Resubmit(replacement, content, submittedAt)

	if err := s.submissions.Update(ctx, &submission); err != nil {
		if replacement != nil {
			s.discard(*replacement)
		}
		return dto.SubmissionResponse{}, s.fail(span, "resubmitted", err)
	}

	s.discard(orphan)
	submission.Activity = activity

	s.afterTransition(ctx, actor, EventSubmissionResubmitted, submission, map[string]interface{}{
		"replaced_file": !orphan.IsZero(),
	})
	span.SetStatus(codes.Ok, "resubmitted")
	s.logger.Info().Uint("submission_id", submission.ID).Msg("submission resubmitted")

	return dto.NewSubmissionResponse(submission), nil
}

func (s *submissionService) Grade(ctx context.Context, actor Actor, id uint, payload dto.SubmissionScoreRequest) (dto.SubmissionResponse, error) {
	ctx, span := s.tracer.Start(ctx, "submission.grade")
	defer span.End()
	span.SetAttributes(
		attribute.Int64("submission.id", int64(id)),
		attribute.Int64("grading.actor_id", int64(actor.ID)),
	)

	score, err := parseScore(payload.Score)
	if err != nil {
		return dto.SubmissionResponse{}, s.fail(span, "graded", err)
	}

	submission, err := s.submissions.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			err = ErrSubmissionNotFound
		}
		return dto.SubmissionResponse{}, s.fail(span, "graded", err)
	}

	if !submission.Grade(score) {
		span.SetAttributes(attribute.Bool("grading.idempotent", true))
		observability.SubmissionTransitions().WithLabelValues("graded", "noop").Inc()
		return dto.NewSubmissionResponse(submission), nil
	}

	if err := s.submissions.Update(ctx, &submission); err != nil {
		return dto.SubmissionResponse{}, s.fail(span, "graded", err)
	}

	s.afterTransition(ctx, actor, EventSubmissionGraded, submission, map[string]interface{}{
		"score": score,
	})
	span.SetStatus(codes.Ok, "graded")
	s.logger.Info().Uint("submission_id", submission.ID).Float64("score", score).Msg("submission graded")

	return dto.NewSubmissionResponse(submission), nil
}

func (s *submissionService) Delete(ctx context.Context, actor Actor, id uint) error {
	ctx, span := s.tracer.Start(ctx, "submission.delete")
	defer span.End()
	span.SetAttributes(attribute.Int64("submission.id", int64(id)))

	submission, err := s.submissions.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			err = ErrSubmissionNotFound
		}
		return s.fail(span, "deleted", err)
	}

	if err := s.submissions.Delete(ctx, id); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			err = ErrSubmissionNotFound
		}
		return s.fail(span, "deleted", err)
	}

	s.discard(submission.File)
	s.afterTransition(ctx, actor, EventSubmissionDeleted, submission, nil)
	span.SetStatus(codes.Ok, "deleted")
	s.logger.Info().Uint("submission_id", id).Msg("submission deleted")

	return nil
}

func (s *submissionService) Find(ctx context.Context, filter dto.SubmissionFilter) (dto.SubmissionResponse, error) {
	if err := validationFailure(s.validator.Struct(filter)); err != nil {
		return dto.SubmissionResponse{}, err
	}

	submission, err := s.submissions.GetByActivityAndStudent(ctx, filter.ActivityID, filter.StudentID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return dto.SubmissionResponse{}, ErrSubmissionNotFound
		}
		return dto.SubmissionResponse{}, err
	}

	return dto.NewSubmissionResponse(submission), nil
}

func (s *submissionService) ListForStudent(ctx context.Context, studentID uint, classID *uint) ([]dto.SubmissionResponse, error) {
	if studentID == 0 {
		return nil, newValidationError("student id is required", "student_id")
	}

	submissions, err := s.submissions.ListForStudent(ctx, studentID, classID)
	if err != nil {
		return nil, err
	}

	return dto.NewSubmissionResponseSlice(submissions), nil
}

func (s *submissionService) store(ctx context.Context, file *multipart.FileHeader) (models.FileRef, error) {
	if s.intake == nil {
		return models.FileRef{}, errors.New("file uploads are not configured")
	}
	return s.intake.Store(ctx, file)
}

func (s *submissionService) discard(ref models.FileRef) {
	if ref.IsZero() || s.cleaner == nil {
		return
	}
	s.cleaner.Schedule(ref)
}

func (s *submissionService) submissionTime(raw string) (time.Time, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return s.now(), nil
	}
	parsed, err := time.Parse(time.RFC3339, raw)
	if err != nil {
		return time.Time{}, newValidationError("submission date must be RFC 3339", "submission_date")
	}
	return parsed, nil
}

func (s *submissionService) fail(span trace.Span, transition string, err error) error {
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
	observability.SubmissionTransitions().WithLabelValues(transition, outcomeLabel(err)).Inc()
	return err
}

func (s *submissionService) afterTransition(ctx context.Context, actor Actor, eventType string, submission models.Submission, metadata map[string]interface{}) {
	transition := strings.TrimPrefix(eventType, "submission.")
	observability.SubmissionTransitions().WithLabelValues(transition, "ok").Inc()

	classID := submission.Activity.ClassID

	if s.audit != nil {
		if metadata == nil {
			metadata = map[string]interface{}{}
		}
		metadata["activity_id"] = submission.ActivityID
		metadata["student_id"] = submission.StudentID
		metadata["status"] = string(submission.Status)
		entityID := submission.ID
		if err := s.audit.Record(ctx, AuditRecord{
			Actor:      actor,
			Action:     eventType,
			EntityType: "submission",
			EntityID:   &entityID,
			Metadata:   metadata,
		}); err != nil {
			s.logger.Warn().Err(err).Uint("submission_id", submission.ID).Msg("failed to record audit entry")
		}
	}

	if s.events != nil {
		s.events.Publish(ctx, SubmissionEvent{
			Type:         eventType,
			SubmissionID: submission.ID,
			ActivityID:   submission.ActivityID,
			ClassID:      classID,
			StudentID:    submission.StudentID,
			Status:       string(submission.Status),
			Score:        submission.Score,
			ActorID:      actor.ID,
			OccurredAt:   s.now().UTC(),
		})
	}

	if s.scores != nil && classID != 0 {
		s.scores.Invalidate(ctx, classID)
	}
}

func outcomeLabel(err error) string {
	var validationErr *ValidationError
	switch {
	case errors.As(err, &validationErr):
		return "invalid"
	case errors.Is(err, ErrActivityLocked):
		return "locked"
	case errors.Is(err, ErrDuplicateSubmission):
		return "conflict"
	case errors.Is(err, ErrForbidden):
		return "forbidden"
	case errors.Is(err, ErrActivityNotFound), errors.Is(err, ErrSubmissionNotFound):
		return "not_found"
	default:
		return "error"
	}
}

// parseScore accepts JSON numbers and numeric strings. NaN and infinities are rejected.
func parseScore(raw interface{}) (float64, error) {
	invalid := newValidationError("score must be a number", "score")

	var value float64
	switch v := raw.(type) {
	case nil:
		return 0, newValidationError("score is required", "score")
	case float64:
		value = v
	case float32:
		value = float64(v)
	case int:
		value = float64(v)
	case int64:
		value = float64(v)
	case json.Number:
		parsed, err := v.Float64()
		if err != nil {
			return 0, invalid
		}
		value = parsed
	case string:
		trimmed := strings.TrimSpace(v)
		if trimmed == "" {
			return 0, newValidationError("score is required", "score")
		}
		parsed, err := strconv.ParseFloat(trimmed, 64)
		if err != nil {
			return 0, invalid
		}
		value = parsed
	default:
		return 0, invalid
	}

	if math.IsNaN(value) || math.IsInf(value, 0) {
		return 0, invalid
	}
	return value, nil
}
