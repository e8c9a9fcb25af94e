package service

import (
	"archive/zip"
	"bytes"
	"context"
	"fmt"
	"io"
	"mime/multipart"
	"path/filepath"
	"strings"
	"time"

	"github.com/gabriel-vasile/mimetype"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/noah-isme/taskhub-api/internal/models"
	"github.com/noah-isme/taskhub-api/internal/observability"
	"github.com/noah-isme/taskhub-api/pkg/cloudinary"
)

// ObjectStorage abstracts the cloud store holding uploaded files.
type ObjectStorage interface {
	Upload(ctx context.Context, name string, reader io.Reader) (cloudinary.Asset, error)
	Destroy(ctx context.Context, publicID, resourceType string) error
}

// FileIntake validates an uploaded file and stores it, returning the reference to persist.
type FileIntake interface {
	Store(ctx context.Context, file *multipart.FileHeader) (models.FileRef, error)
}

type fileIntake struct {
	storage ObjectStorage
	logger  zerolog.Logger
	maxSize int64
	tracer  trace.Tracer
}

// NewFileIntake constructs the upload pipeline shared by activities and submissions.
func NewFileIntake(storage ObjectStorage, maxSizeMB int, logger zerolog.Logger) FileIntake {
	if maxSizeMB <= 0 {
		maxSizeMB = 10
	}
	return &fileIntake{
		storage: storage,
		logger:  logger.With().Str("component", "file_intake").Logger(),
		maxSize: int64(maxSizeMB) * 1024 * 1024,
		tracer:  otel.Tracer("github.com/noah-isme/taskhub-api/internal/service/file_intake"),
	}
}

func (s *fileIntake) Store(ctx context.Context, file *multipart.FileHeader) (models.FileRef, error) {
	ctx, span := s.tracer.Start(ctx, "upload.store")
	defer span.End()

	span.SetAttributes(attribute.Int64("upload.max_bytes", s.maxSize))

	start := time.Now()
	defer func() {
		observability.UploadLatency().Observe(time.Since(start).Seconds())
	}()

	if file == nil {
		err := newValidationError("file is required", "file")
		span.RecordError(err)
		span.SetStatus(codes.Error, "validation failed")
		return models.FileRef{}, err
	}

	span.SetAttributes(
		attribute.String("upload.original_name", strings.TrimSpace(file.Filename)),
		attribute.Int64("upload.request_size", file.Size),
	)

	if s.storage == nil {
		span.RecordError(ErrStorageUnavailable)
		span.SetStatus(codes.Error, "storage unavailable")
		return models.FileRef{}, ErrStorageUnavailable
	}

	if file.Size > s.maxSize {
		observability.UploadRejected().WithLabelValues("size").Inc()
		span.RecordError(ErrUploadTooLarge)
		span.SetStatus(codes.Error, "payload too large")
		return models.FileRef{}, ErrUploadTooLarge
	}

	handle, err := file.Open()
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "open failed")
		return models.FileRef{}, fmt.Errorf("failed to open file: %w", err)
	}
	defer handle.Close()

	buf := bytes.NewBuffer(nil)
	if _, err := io.Copy(buf, io.LimitReader(handle, s.maxSize+1)); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "read failed")
		return models.FileRef{}, err
	}
	if int64(buf.Len()) > s.maxSize {
		observability.UploadRejected().WithLabelValues("size").Inc()
		span.RecordError(ErrUploadTooLarge)
		span.SetStatus(codes.Error, "payload too large")
		return models.FileRef{}, ErrUploadTooLarge
	}

	detected := mimetype.Detect(buf.Bytes())
	fileType := normalizeMime(detected.String())
	span.SetAttributes(attribute.String("upload.detected_mime", fileType))
	if !isAllowedType(fileType) {
		observability.UploadRejected().WithLabelValues("type").Inc()
		span.RecordError(ErrUploadTypeNotAllowed)
		span.SetStatus(codes.Error, "type not allowed")
		return models.FileRef{}, ErrUploadTypeNotAllowed
	}

	if err := s.scan(buf.Bytes(), fileType); err != nil {
		observability.UploadRejected().WithLabelValues("scan").Inc()
		span.RecordError(err)
		span.SetStatus(codes.Error, "scan failed")
		return models.FileRef{}, err
	}

	sanitizedName := sanitizeFileName(file.Filename)
	asset, err := s.storage.Upload(ctx, sanitizedName, bytes.NewReader(buf.Bytes()))
	if err != nil {
		observability.UploadRejected().WithLabelValues("storage").Inc()
		span.RecordError(err)
		span.SetStatus(codes.Error, "storage failed")
		return models.FileRef{}, fmt.Errorf("failed to upload file: %w", err)
	}

	observability.UploadRequests().WithLabelValues(fileType).Inc()
	span.SetStatus(codes.Ok, "stored")
	s.logger.Debug().Str("public_id", asset.PublicID).Int("size", buf.Len()).Msg("file stored")

	originalName := strings.TrimSpace(filepath.Base(file.Filename))
	if originalName == "" || originalName == "." {
		originalName = sanitizedName
	}

	return models.CloudFile(asset.SecureURL, asset.PublicID, asset.ResourceType).
		WithMetadata(originalName, detected.String(), int64(buf.Len())), nil
}

func (s *fileIntake) scan(payload []byte, mime string) error {
	if mime == "application/zip" {
		reader, err := zip.NewReader(bytes.NewReader(payload), int64(len(payload)))
		if err != nil {
			return ErrUploadScanFailed
		}
		var totalUncompressed uint64
		for _, f := range reader.File {
			totalUncompressed += f.UncompressedSize64
			if totalUncompressed > uint64(s.maxSize*20) {
				return fmt.Errorf("zip archive uncompressed size too large: %w", ErrUploadScanFailed)
			}
		}
	}
	return nil
}

func sanitizeFileName(name string) string {
	base := strings.TrimSuffix(filepath.Base(name), filepath.Ext(name))
	base = strings.ToLower(base)
	base = strings.Map(func(r rune) rune {
		if (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') {
			return r
		}
		if r == '-' || r == '_' {
			return r
		}
		return '-'
	}, base)
	base = strings.Trim(base, "-")
	if base == "" {
		base = fmt.Sprintf("upload-%d", time.Now().Unix())
	}
	ext := strings.ToLower(filepath.Ext(name))
	if ext == "" {
		ext = ".bin"
	}
	return base + ext
}

func normalizeMime(m string) string {
	lower := strings.ToLower(strings.TrimSpace(m))
	if idx := strings.Index(lower, ";"); idx >= 0 {
		lower = strings.TrimSpace(lower[:idx])
	}
	switch {
	case strings.HasPrefix(lower, "image/"):
		return "image"
	case strings.HasPrefix(lower, "text/"):
		return "text"
	case strings.HasPrefix(lower, "application/vnd.openxmlformats-officedocument."),
		strings.HasPrefix(lower, "application/vnd.ms-"),
		lower == "application/msword",
		strings.HasPrefix(lower, "application/vnd.oasis.opendocument."):
		return "document"
	}
	switch lower {
	case "application/zip", "application/x-zip-compressed":
		return "application/zip"
	default:
		return lower
	}
}

func isAllowedType(m string) bool {
	switch m {
	case "image", "text", "document", "application/pdf", "application/zip", "application/json":
		return true
	default:
		return false
	}
}
