package service

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/noah-isme/admission-api/internal/models"
	appErrors "github.com/noah-isme/admission-api/pkg/errors"
)

type reviewRepository interface {
	SetStatus(ctx context.Context, id string, status models.ReviewStatus, now time.Time) (models.ReviewStatus, error)
	BulkSetStatus(ctx context.Context, ids []string, status models.ReviewStatus, now time.Time) (int, error)
	List(ctx context.Context, filter models.ApplicationFilter) ([]models.ApplicationListItem, int, error)
}

// ReviewService lets staff list applications and record review decisions.
type ReviewService struct {
	repo      reviewRepository
	audit     auditRecorder
	cache     *CacheService
	metrics   *MetricsService
	validator *validator.Validate
	logger    *zap.Logger
	now       func() time.Time
}

// NewReviewService constructs a ReviewService.
func NewReviewService(repo reviewRepository, audit auditRecorder, cache *CacheService, metrics *MetricsService, validate *validator.Validate, logger *zap.Logger) *ReviewService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if validate == nil {
		validate = NewValidator()
	}
	return &ReviewService{repo: repo, audit: audit, cache: cache, metrics: metrics, validator: validate, logger: logger, now: time.Now}
}

// List returns the staff listing with pagination metadata.
func (s *ReviewService) List(ctx context.Context, filter models.ApplicationFilter) ([]models.ApplicationListItem, *models.Pagination, error) {
	if filter.Status != nil && !filter.Status.Valid() {
		return nil, nil, appErrors.Clone(appErrors.ErrValidation, "unknown review status")
	}
	if filter.FirstChoice != "" && !models.IsCourse(filter.FirstChoice) {
		return nil, nil, appErrors.Clone(appErrors.ErrValidation, "unknown course")
	}
	filter.Page, filter.PageSize = models.Normalize(filter.Page, filter.PageSize)
	items, total, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list applications")
	}
	return items, &models.Pagination{Page: filter.Page, PageSize: filter.PageSize, TotalCount: total}, nil
}

// SetStatus records a review decision. Review status is independent of submission.
func (s *ReviewService) SetStatus(ctx context.Context, applicationID string, req models.SetReviewStatusRequest, actor Actor) (models.ReviewStatus, error) {
	if err := s.validator.Struct(req); err != nil {
		return "", appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid review status")
	}
	previous, err := s.repo.SetStatus(ctx, applicationID, req.Status, s.now().UTC())
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return "", appErrors.Clone(appErrors.ErrNotFound, "application not found")
		}
		return "", appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update review status")
	}
	if previous != req.Status {
		recordAudit(ctx, s.audit, s.logger, actor, models.AuditActionReviewStatus, "application", applicationID,
			map[string]string{"status": string(previous)}, map[string]string{"status": string(req.Status)})
		s.metrics.RecordReviewChange(string(req.Status), 1)
		_ = s.cache.Invalidate(ctx, SummaryCacheKey)
		s.logger.Info("application review status changed",
			zap.String("application_id", applicationID),
			zap.String("from", string(previous)),
			zap.String("to", string(req.Status)),
			zap.String("actor", actor.AccountID))
	}
	return previous, nil
}

// BulkSetStatus applies one decision to many applications and returns how many changed.
func (s *ReviewService) BulkSetStatus(ctx context.Context, req models.BulkReviewStatusRequest, actor Actor) (int, error) {
	if err := s.validator.Struct(req); err != nil {
		return 0, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid bulk review request")
	}
	ids := dedupe(req.ApplicationIDs)
	changed, err := s.repo.BulkSetStatus(ctx, ids, req.Status, s.now().UTC())
	if err != nil {
		return 0, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update review status")
	}
	if changed > 0 {
		recordAudit(ctx, s.audit, s.logger, actor, models.AuditActionReviewStatus, "application", "",
			nil, map[string]interface{}{"status": req.Status, "application_ids": ids, "changed": changed})
		s.metrics.RecordReviewChange(string(req.Status), changed)
		_ = s.cache.Invalidate(ctx, SummaryCacheKey)
	}
	return changed, nil
}

func dedupe(values []string) []string {
	seen := make(map[string]struct{}, len(values))
	out := make([]string, 0, len(values))
	for _, v := range values {
		if _, ok := seen[v]; ok {
			continue
		}
		seen[v] = struct{}{}
		out = append(out, v)
	}
	return out
}
