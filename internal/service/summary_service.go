package service

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/noah-isme/admission-api/internal/models"
	"github.com/noah-isme/admission-api/pkg/cache"
	appErrors "github.com/noah-isme/admission-api/pkg/errors"
)

// SummaryCacheKey holds the cached admin summary. Writers that change any counted state delete it.
var SummaryCacheKey = cache.Key("admin", "summary")

type summaryApplicationCounter interface {
	CountByStatus(ctx context.Context) ([]models.StatusCount, error)
	CountSubmitted(ctx context.Context) (int, error)
}

type summaryPaymentCounter interface {
	CountByStatus(ctx context.Context) ([]models.StatusCount, error)
}

type summaryReferralCounter interface {
	Counts(ctx context.Context) (used, available int, err error)
}

// SummaryService aggregates the staff dashboard counters.
type SummaryService struct {
	applications summaryApplicationCounter
	payments     summaryPaymentCounter
	referrals    summaryReferralCounter
	cache        *CacheService
	ttl          time.Duration
	logger       *zap.Logger
	now          func() time.Time
}

// NewSummaryService constructs a SummaryService.
func NewSummaryService(applications summaryApplicationCounter, payments summaryPaymentCounter, referrals summaryReferralCounter, cacheSvc *CacheService, ttl time.Duration, logger *zap.Logger) *SummaryService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &SummaryService{applications: applications, payments: payments, referrals: referrals, cache: cacheSvc, ttl: ttl, logger: logger, now: time.Now}
}

// Summary returns the counters, served from cache while fresh, and whether the cache answered.
func (s *SummaryService) Summary(ctx context.Context) (*models.AdmissionSummary, bool, error) {
	var cached models.AdmissionSummary
	if hit, _ := s.cache.Get(ctx, SummaryCacheKey, &cached); hit {
		return &cached, true, nil
	}

	summary, err := s.compute(ctx)
	if err != nil {
		return nil, false, err
	}
	_ = s.cache.Set(ctx, SummaryCacheKey, summary, s.ttl)
	return summary, false, nil
}

func (s *SummaryService) compute(ctx context.Context) (*models.AdmissionSummary, error) {
	summary := &models.AdmissionSummary{
		Applications: map[string]int{},
		Payments:     map[string]int{},
		GeneratedAt:  s.now().UTC(),
	}
	for _, status := range []models.ReviewStatus{models.ReviewPending, models.ReviewApproved, models.ReviewRejected, models.ReviewIncomplete} {
		summary.Applications[string(status)] = 0
	}
	for _, status := range []models.PaymentStatus{models.PaymentPending, models.PaymentSuccess, models.PaymentFailed, models.PaymentCancelled} {
		summary.Payments[string(status)] = 0
	}

	appCounts, err := s.applications.CountByStatus(ctx)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to count applications")
	}
	for _, c := range appCounts {
		summary.Applications[c.Status] = c.Total
	}
	if summary.SubmittedCount, err = s.applications.CountSubmitted(ctx); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to count submissions")
	}

	payCounts, err := s.payments.CountByStatus(ctx)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to count payments")
	}
	for _, c := range payCounts {
		summary.Payments[c.Status] = c.Total
	}

	if summary.ReferralCodesUsed, summary.ReferralCodesAvail, err = s.referrals.Counts(ctx); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to count referral codes")
	}
	return summary, nil
}
