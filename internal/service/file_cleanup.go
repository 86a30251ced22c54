package service

import (
	"context"
	"errors"

	"go.uber.org/zap"

	"github.com/noah-isme/admission-api/pkg/jobs"
	"github.com/noah-isme/admission-api/pkg/storage"
)

// JobTypeDeleteFile removes a stored upload that a newer upload replaced.
const JobTypeDeleteFile = "storage.delete"

type jobEnqueuer interface {
	Enqueue(job jobs.Job) error
}

// ApplicationServiceOption configures the application service.
type ApplicationServiceOption func(*ApplicationService)

// WithFileCleanupQueue moves deletion of replaced uploads onto a background queue.
func WithFileCleanupQueue(queue jobEnqueuer) ApplicationServiceOption {
	return func(s *ApplicationService) {
		if queue != nil {
			s.cleanup = queue
		}
	}
}

// FileCleanupHandler deletes the storage key carried in the job payload.
// A key that is already gone counts as done.
func FileCleanupHandler(files storage.FileStorage, logger *zap.Logger) jobs.Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return func(ctx context.Context, job jobs.Job) error {
		key, ok := job.Payload.(string)
		if !ok || key == "" {
			logger.Warn("file cleanup job without key", zap.String("job_id", job.ID))
			return nil
		}
		if err := files.Delete(ctx, key); err != nil && !errors.Is(err, storage.ErrNotExist) {
			return err
		}
		logger.Debug("replaced file deleted", zap.String("key", key))
		return nil
	}
}
