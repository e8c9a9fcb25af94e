package service

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/afero"

	"github.com/noah-isme/taskhub-api/internal/models"
	"github.com/noah-isme/taskhub-api/internal/observability"
	"github.com/noah-isme/taskhub-api/pkg/cloudinary"
)

// FileCleaner accepts files whose owning record is gone. Removal is advisory and never reports back.
type FileCleaner interface {
	Schedule(ref models.FileRef)
}

// AssetDestroyer removes assets from the cloud store.
type AssetDestroyer interface {
	Destroy(ctx context.Context, publicID, resourceType string) error
}

// DefaultJanitorDrainTimeout bounds how long queued files are still processed after shutdown begins.
const DefaultJanitorDrainTimeout = 4 * time.Second

// FileJanitor drains a bounded queue of orphaned files on a single goroutine.
type FileJanitor struct {
	queue        chan models.FileRef
	storage      AssetDestroyer
	disk         legacyDisk
	logger       zerolog.Logger
	drainTimeout time.Duration
	start        sync.Once
	done         chan struct{}
}

// NewFileJanitor builds a janitor with the given queue capacity.
func NewFileJanitor(storage AssetDestroyer, fs afero.Fs, legacyRoot string, queueSize int, logger zerolog.Logger) *FileJanitor {
	if queueSize <= 0 {
		queueSize = 64
	}
	return &FileJanitor{
		queue:        make(chan models.FileRef, queueSize),
		storage:      storage,
		disk:         newLegacyDisk(fs, legacyRoot),
		logger:       logger.With().Str("component", "file_janitor").Logger(),
		drainTimeout: DefaultJanitorDrainTimeout,
		done:         make(chan struct{}),
	}
}

// Start launches the worker. Once ctx is cancelled the files already queued are still removed, bounded by
// the drain timeout; Done is closed afterwards.
func (j *FileJanitor) Start(ctx context.Context) {
	j.start.Do(func() {
		go j.run(ctx)
	})
}

// Done is closed once the worker has exited.
func (j *FileJanitor) Done() <-chan struct{} {
	return j.done
}

// Schedule enqueues the file without blocking. A full queue drops the job.
func (j *FileJanitor) Schedule(ref models.FileRef) {
	if ref.IsZero() {
		return
	}

	select {
	case j.queue <- ref:
	default:
		observability.FileCleanup().WithLabelValues(string(ref.Kind), "dropped").Inc()
		j.logger.Warn().Str("storage", string(ref.Kind)).Str("location", ref.Location).Msg("cleanup queue full, dropping file")
	}
}

func (j *FileJanitor) run(ctx context.Context) {
	defer close(j.done)

	for {
		select {
		case <-ctx.Done():
			j.drain(ctx)
			return
		case ref := <-j.queue:
			j.process(ctx, ref)
		}
	}
}

func (j *FileJanitor) drain(parent context.Context) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(parent), j.drainTimeout)
	defer cancel()

	processed, abandoned := 0, 0
	for {
		select {
		case ref := <-j.queue:
			if ctx.Err() != nil {
				abandoned++
				observability.FileCleanup().WithLabelValues(string(ref.Kind), "abandoned").Inc()
				continue
			}
			j.process(ctx, ref)
			processed++
		default:
			if abandoned > 0 {
				j.logger.Warn().Int("processed", processed).Int("abandoned", abandoned).Msg("cleanup queue not fully drained before shutdown")
			}
			return
		}
	}
}

func (j *FileJanitor) process(ctx context.Context, ref models.FileRef) {
	err := j.Remove(ctx, ref)
	switch {
	case err == nil:
		observability.FileCleanup().WithLabelValues(string(ref.Kind), "removed").Inc()
	case errors.Is(err, ErrAttachmentNotFound):
		observability.FileCleanup().WithLabelValues(string(ref.Kind), "missing").Inc()
		j.logger.Debug().Str("location", ref.Location).Msg("file already gone")
	default:
		observability.FileCleanup().WithLabelValues(string(ref.Kind), "failed").Inc()
		j.logger.Error().Err(err).Str("storage", string(ref.Kind)).Str("location", ref.Location).Msg("failed to remove file")
	}
}

// Remove deletes the file synchronously.
func (j *FileJanitor) Remove(ctx context.Context, ref models.FileRef) error {
	switch {
	case ref.IsCloud():
		if j.storage == nil {
			return errors.New("file storage is not configured")
		}
		publicID, resourceType := ref.PublicID, ref.ResourceType
		if publicID == "" {
			parsedID, parsedType, ok := cloudinary.ParseAssetURL(ref.Location)
			if !ok {
				return ErrAttachmentNotFound
			}
			publicID = parsedID
			if resourceType == "" {
				resourceType = parsedType
			}
		}
		return j.storage.Destroy(ctx, publicID, resourceType)
	case ref.IsLegacy():
		return j.disk.remove(ref)
	default:
		return ErrAttachmentNotFound
	}
}
