package service

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path"
	"strings"

	"github.com/gabriel-vasile/mimetype"
	"github.com/rs/zerolog"
	"github.com/spf13/afero"
	"gorm.io/gorm"

	"github.com/noah-isme/taskhub-api/internal/models"
	"github.com/noah-isme/taskhub-api/internal/repository"
)

// AttachmentMode selects how the client wants to receive a file.
type AttachmentMode string

const (
	AttachmentDownload AttachmentMode = "download"
	AttachmentView     AttachmentMode = "view"
)

// AttachmentStrategy says whether the file is served by redirect or streamed from disk.
type AttachmentStrategy string

const (
	StrategyRedirect AttachmentStrategy = "redirect"
	StrategyStream   AttachmentStrategy = "stream"
)

const announcementUploadDir = "uploads/announcements"

// AttachmentResolution tells the transport layer how to serve a stored file.
type AttachmentResolution struct {
	Strategy    AttachmentStrategy
	URL         string
	Path        string
	FileName    string
	ContentType string
	Size        int64
	Mode        AttachmentMode
}

// ContentDisposition renders the header value for streamed files.
func (r AttachmentResolution) ContentDisposition() string {
	disposition := "inline"
	if r.Mode == AttachmentDownload {
		disposition = "attachment"
	}
	name := strings.NewReplacer(`"`, "", "\r", "", "\n", "").Replace(r.FileName)
	return fmt.Sprintf(`%s; filename="%s"`, disposition, name)
}

// AttachmentService resolves stored file references into a serving strategy.
type AttachmentService interface {
	ResolveActivity(ctx context.Context, activityID uint, mode AttachmentMode) (AttachmentResolution, error)
	ResolveSubmission(ctx context.Context, submissionID uint, mode AttachmentMode) (AttachmentResolution, error)
	ResolveAnnouncementFile(ctx context.Context, filename string, mode AttachmentMode) (AttachmentResolution, error)
	Resolve(ref models.FileRef, mode AttachmentMode) (AttachmentResolution, error)
	Open(resolution AttachmentResolution) (io.ReadCloser, error)
}

type attachmentService struct {
	activities  repository.ActivityRepository
	submissions repository.SubmissionRepository
	disk        legacyDisk
	logger      zerolog.Logger
}

// NewAttachmentService constructs the resolver over the legacy upload root.
func NewAttachmentService(activities repository.ActivityRepository, submissions repository.SubmissionRepository, fs afero.Fs, legacyRoot string, logger zerolog.Logger) AttachmentService {
	return &attachmentService{
		activities:  activities,
		submissions: submissions,
		disk:        newLegacyDisk(fs, legacyRoot),
		logger:      logger.With().Str("component", "attachment_service").Logger(),
	}
}

func (s *attachmentService) ResolveActivity(ctx context.Context, activityID uint, mode AttachmentMode) (AttachmentResolution, error) {
	activity, err := s.activities.GetByID(ctx, activityID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return AttachmentResolution{}, ErrActivityNotFound
		}
		return AttachmentResolution{}, err
	}
	return s.Resolve(activity.Attachment, mode)
}

func (s *attachmentService) ResolveSubmission(ctx context.Context, submissionID uint, mode AttachmentMode) (AttachmentResolution, error) {
	submission, err := s.submissions.GetByID(ctx, submissionID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return AttachmentResolution{}, ErrSubmissionNotFound
		}
		return AttachmentResolution{}, err
	}
	return s.Resolve(submission.File, mode)
}

func (s *attachmentService) ResolveAnnouncementFile(_ context.Context, filename string, mode AttachmentMode) (AttachmentResolution, error) {
	name := strings.TrimSpace(filename)
	if name == "" || name != path.Base(name) || strings.ContainsAny(name, `/\`) || name == "." || name == ".." {
		return AttachmentResolution{}, ErrAttachmentNotFound
	}
	return s.Resolve(models.LegacyFile(path.Join(announcementUploadDir, name)), mode)
}

func (s *attachmentService) Resolve(ref models.FileRef, mode AttachmentMode) (AttachmentResolution, error) {
	if mode != AttachmentDownload {
		mode = AttachmentView
	}

	if ref.IsZero() {
		return AttachmentResolution{}, ErrAttachmentNotFound
	}

	if ref.IsCloud() {
		target := ref.Location
		if mode == AttachmentDownload {
			target = ref.DownloadURL()
		}
		return AttachmentResolution{
			Strategy:    StrategyRedirect,
			URL:         target,
			FileName:    ref.DisplayName(),
			ContentType: ref.MimeType,
			Size:        ref.Size,
			Mode:        mode,
		}, nil
	}

	diskPath, err := s.disk.path(ref)
	if err != nil {
		return AttachmentResolution{}, err
	}

	info, err := s.disk.stat(diskPath)
	if err != nil {
		if !errors.Is(err, ErrAttachmentNotFound) {
			s.logger.Error().Err(err).Str("path", diskPath).Msg("failed to stat legacy file")
		}
		return AttachmentResolution{}, err
	}

	contentType := ref.MimeType
	if contentType == "" {
		contentType = s.detect(diskPath)
	}

	return AttachmentResolution{
		Strategy:    StrategyStream,
		Path:        diskPath,
		FileName:    ref.DisplayName(),
		ContentType: contentType,
		Size:        info.Size(),
		Mode:        mode,
	}, nil
}

func (s *attachmentService) Open(resolution AttachmentResolution) (io.ReadCloser, error) {
	if resolution.Strategy != StrategyStream {
		return nil, fmt.Errorf("resolution is not streamable")
	}
	file, err := s.disk.fs.Open(resolution.Path)
	if err != nil {
		return nil, ErrAttachmentNotFound
	}
	return file, nil
}

func (s *attachmentService) detect(diskPath string) string {
	file, err := s.disk.fs.Open(diskPath)
	if err != nil {
		return "application/octet-stream"
	}
	defer file.Close()

	detected, err := mimetype.DetectReader(file)
	if err != nil {
		return "application/octet-stream"
	}
	return detected.String()
}
