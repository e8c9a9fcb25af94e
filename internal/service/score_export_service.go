package service

import (
	"context"
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"gorm.io/gorm"

	"github.com/noah-isme/taskhub-api/internal/dto"
	"github.com/noah-isme/taskhub-api/internal/models"
	"github.com/noah-isme/taskhub-api/internal/observability"
	"github.com/noah-isme/taskhub-api/internal/repository"
)

// ScoreExportService builds the per-class score matrix.
type ScoreExportService interface {
	ScoreCacheInvalidator
	Export(ctx context.Context, classID uint) (dto.ScoreExportResponse, error)
}

type scoreExportService struct {
	classes     repository.ClassRepository
	activities  repository.ActivityRepository
	submissions repository.SubmissionRepository
	cache       *redis.Client
	cacheTTL    time.Duration
	logger      zerolog.Logger
}

// NewScoreExportService builds the exporter. A nil cache disables caching.
func NewScoreExportService(classes repository.ClassRepository, activities repository.ActivityRepository, submissions repository.SubmissionRepository, cache *redis.Client, ttl time.Duration, logger zerolog.Logger) ScoreExportService {
	return &scoreExportService{
		classes:     classes,
		activities:  activities,
		submissions: submissions,
		cache:       cache,
		cacheTTL:    ttl,
		logger:      logger.With().Str("component", "score_export_service").Logger(),
	}
}

func scoreCacheKey(classID uint) string {
	return fmt.Sprintf("scores:class:%d", classID)
}

func (s *scoreExportService) Export(ctx context.Context, classID uint) (dto.ScoreExportResponse, error) {
	if classID == 0 {
		return dto.ScoreExportResponse{}, newValidationError("class id is required", "class_id")
	}

	cacheKey := scoreCacheKey(classID)
	if s.cache != nil {
		if cached, err := s.cache.Get(ctx, cacheKey).Result(); err == nil {
			var response dto.ScoreExportResponse
			if unmarshalErr := json.Unmarshal([]byte(cached), &response); unmarshalErr == nil {
				observability.ScoreCache().WithLabelValues("hit").Inc()
				s.logger.Debug().Uint("class_id", classID).Msg("score export cache hit")
				return response, nil
			}
		} else if !errors.Is(err, redis.Nil) {
			s.logger.Warn().Err(err).Msg("failed to read score export cache")
		}
		observability.ScoreCache().WithLabelValues("miss").Inc()
	}

	class, err := s.classes.GetByID(ctx, classID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return dto.ScoreExportResponse{}, ErrClassNotFound
		}
		return dto.ScoreExportResponse{}, err
	}

	activities, err := s.activities.ListByClassChronological(ctx, classID)
	if err != nil {
		return dto.ScoreExportResponse{}, err
	}

	activityIDs := make([]uint, 0, len(activities))
	for _, activity := range activities {
		activityIDs = append(activityIDs, activity.ID)
	}

	submissions, err := s.submissions.ListByActivities(ctx, activityIDs)
	if err != nil {
		return dto.ScoreExportResponse{}, err
	}

	response := buildScoreMatrix(class, activities, submissions)

	if s.cache != nil {
		if payload, err := json.Marshal(response); err == nil {
			if err := s.cache.Set(ctx, cacheKey, payload, s.cacheTTL).Err(); err != nil {
				s.logger.Warn().Err(err).Msg("failed to store score export cache")
			}
		}
	}

	return response, nil
}

func (s *scoreExportService) Invalidate(ctx context.Context, classID uint) {
	if s.cache == nil || classID == 0 {
		return
	}
	if err := s.cache.Del(ctx, scoreCacheKey(classID)).Err(); err != nil {
		s.logger.Warn().Err(err).Uint("class_id", classID).Msg("failed to invalidate score export cache")
	}
}

type scoreKey struct {
	studentID  uint
	activityID uint
}

func buildScoreMatrix(class models.Class, activities []models.Activity, submissions []models.Submission) dto.ScoreExportResponse {
	scores := make(map[scoreKey]*float64, len(submissions))
	for _, submission := range submissions {
		scores[scoreKey{studentID: submission.StudentID, activityID: submission.ActivityID}] = submission.Score
	}

	titles := uniqueTitles(activities)
	columns := make([]string, 0, len(titles)+2)
	columns = append(columns, "Name", "Email")
	columns = append(columns, titles...)

	students := class.Students()
	rows := make([]dto.ScoreExportRow, 0, len(students))
	for _, student := range students {
		row := dto.ScoreExportRow{
			StudentID: student.ID,
			Name:      student.Name,
			Email:     student.Email,
			Scores:    make([]string, 0, len(activities)),
		}
		for _, activity := range activities {
			row.Scores = append(row.Scores, formatScore(scores[scoreKey{studentID: student.ID, activityID: activity.ID}]))
		}
		rows = append(rows, row)
	}

	return dto.ScoreExportResponse{
		ClassID:        class.ID,
		Columns:        columns,
		ActivityTitles: titles,
		Rows:           rows,
	}
}

// uniqueTitles keeps column headers distinct when two activities share a title.
func uniqueTitles(activities []models.Activity) []string {
	seen := make(map[string]int, len(activities))
	titles := make([]string, 0, len(activities))
	for _, activity := range activities {
		title := activity.Title
		seen[title]++
		if count := seen[title]; count > 1 {
			title = fmt.Sprintf("%s (%d)", title, count)
		}
		titles = append(titles, title)
	}
	return titles
}

func formatScore(score *float64) string {
	if score == nil {
		return ""
	}
	return strconv.FormatFloat(*score, 'f', -1, 64)
}

// WriteScoresCSV renders the export as CSV with a header row.
func WriteScoresCSV(w io.Writer, export dto.ScoreExportResponse) error {
	writer := csv.NewWriter(w)
	if err := writer.WriteAll(export.Records()); err != nil {
		return fmt.Errorf("failed to write score csv: %w", err)
	}
	return nil
}
