package service

import (
	"context"
	"crypto/rand"
	"database/sql"
	"errors"
	"fmt"
	"math/big"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/noah-isme/admission-api/internal/models"
	"github.com/noah-isme/admission-api/internal/repository"
	appErrors "github.com/noah-isme/admission-api/pkg/errors"
)

const (
	referralCodeLength   = 8
	referralCodeAlphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"
	maxGenerateRounds    = 10
)

type referralRepository interface {
	Redeem(ctx context.Context, accountID, code string, now time.Time) (*models.ReferralCode, error)
	InsertCodes(ctx context.Context, codes []string) ([]string, error)
	List(ctx context.Context, filter models.ReferralCodeFilter) ([]models.ReferralCode, int, error)
}

// ReferralService redeems and issues single-use referral codes.
type ReferralService struct {
	repo      referralRepository
	audit     auditRecorder
	cache     *CacheService
	metrics   *MetricsService
	validator *validator.Validate
	logger    *zap.Logger
	newCode   func() (string, error)
}

// NewReferralService constructs a ReferralService.
func NewReferralService(repo referralRepository, audit auditRecorder, cache *CacheService, metrics *MetricsService, validate *validator.Validate, logger *zap.Logger) *ReferralService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if validate == nil {
		validate = NewValidator()
	}
	return &ReferralService{repo: repo, audit: audit, cache: cache, metrics: metrics, validator: validate, logger: logger, newCode: randomReferralCode}
}

// Redeem attaches code to the account's student profile and grants application access.
func (s *ReferralService) Redeem(ctx context.Context, accountID, code string) (*models.ReferralCode, error) {
	code = strings.ToUpper(strings.TrimSpace(code))
	if err := s.validator.Struct(models.RedeemReferralRequest{Code: code}); err != nil {
		s.metrics.RecordReferralRedemption(OutcomeInvalid)
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "referral code is required")
	}

	referral, err := s.repo.Redeem(ctx, accountID, code, time.Now().UTC())
	if err != nil {
		switch {
		case errors.Is(err, repository.ErrCodeUnavailable):
			s.metrics.RecordReferralRedemption(OutcomeInvalid)
			return nil, appErrors.Clone(appErrors.ErrInvalidReferral, "")
		case errors.Is(err, repository.ErrAlreadyGranted):
			s.metrics.RecordReferralRedemption(OutcomeAlreadyOK)
			return nil, appErrors.Clone(appErrors.ErrAlreadyGranted, "")
		case errors.Is(err, sql.ErrNoRows):
			return nil, appErrors.Clone(appErrors.ErrForbidden, "only applicants can redeem referral codes")
		}
		s.metrics.RecordReferralRedemption(OutcomeError)
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to redeem referral code")
	}

	s.metrics.RecordReferralRedemption(OutcomeGranted)
	s.logger.Info("referral code redeemed", zap.String("account_id", accountID), zap.String("code_id", referral.ID))
	_ = s.cache.Invalidate(ctx, SummaryCacheKey)
	return referral, nil
}

// Generate creates count new unique codes. Collisions with existing codes are retried.
func (s *ReferralService) Generate(ctx context.Context, count int, actor Actor) ([]string, error) {
	if err := s.validator.Struct(models.GenerateReferralCodesRequest{Count: count}); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "count must be between 1 and 1000")
	}

	generated := make([]string, 0, count)
	for round := 0; round < maxGenerateRounds && len(generated) < count; round++ {
		batch, err := s.candidates(count - len(generated))
		if err != nil {
			return generated, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to generate referral codes")
		}
		inserted, err := s.repo.InsertCodes(ctx, batch)
		generated = append(generated, inserted...)
		if err != nil {
			return generated, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to store referral codes")
		}
	}
	if len(generated) < count {
		return generated, appErrors.Wrap(fmt.Errorf("generated %d of %d codes", len(generated), count), appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "could not generate enough unique referral codes")
	}

	s.logger.Info("referral codes generated", zap.Int("count", len(generated)))
	recordAudit(ctx, s.audit, s.logger, actor, models.AuditActionReferralCreate, "referral_codes", "", nil, map[string]int{"count": len(generated)})
	_ = s.cache.Invalidate(ctx, SummaryCacheKey)
	return generated, nil
}

// List returns codes for the admin listing.
func (s *ReferralService) List(ctx context.Context, filter models.ReferralCodeFilter) ([]models.ReferralCode, *models.Pagination, error) {
	filter.Page, filter.PageSize = models.Normalize(filter.Page, filter.PageSize)
	codes, total, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list referral codes")
	}
	return codes, &models.Pagination{Page: filter.Page, PageSize: filter.PageSize, TotalCount: total}, nil
}

// candidates returns n codes distinct within the batch.
func (s *ReferralService) candidates(n int) ([]string, error) {
	seen := make(map[string]struct{}, n)
	batch := make([]string, 0, n)
	for len(batch) < n {
		code, err := s.newCode()
		if err != nil {
			return nil, err
		}
		if _, dup := seen[code]; dup {
			continue
		}
		seen[code] = struct{}{}
		batch = append(batch, code)
	}
	return batch, nil
}

func randomReferralCode() (string, error) {
	var b strings.Builder
	b.Grow(referralCodeLength)
	limit := big.NewInt(int64(len(referralCodeAlphabet)))
	for i := 0; i < referralCodeLength; i++ {
		n, err := rand.Int(rand.Reader, limit)
		if err != nil {
			return "", err
		}
		b.WriteByte(referralCodeAlphabet[n.Int64()])
	}
	return b.String(), nil
}
