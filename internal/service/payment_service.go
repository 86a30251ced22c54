package service

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/noah-isme/admission-api/internal/models"
	"github.com/noah-isme/admission-api/internal/repository"
	appErrors "github.com/noah-isme/admission-api/pkg/errors"
	"github.com/noah-isme/admission-api/pkg/paystack"
)

type paymentRepository interface {
	Initiate(ctx context.Context, accountID, reference string, amount decimal.Decimal, amountMinor int64) (*models.Payment, bool, error)
	FindByReference(ctx context.Context, reference string) (*models.PaymentWithOwner, error)
	FindByID(ctx context.Context, id string) (*models.PaymentWithOwner, error)
	MarkSuccess(ctx context.Context, paymentID string, gatewayReference *string, now time.Time) (bool, error)
	MarkFailed(ctx context.Context, paymentID string, now time.Time) (bool, error)
	List(ctx context.Context, filter models.PaymentFilter) ([]models.PaymentWithOwner, int, error)
}

type paymentAccountLookup interface {
	FindByID(ctx context.Context, id string) (*models.Account, error)
}

// PaymentGateway verifies a transaction reference with the payment provider.
type PaymentGateway interface {
	Verify(ctx context.Context, reference string) (*paystack.Verification, error)
}

// PaymentConfig is the access-control configuration for fee payments.
type PaymentConfig struct {
	FeeAmount      decimal.Decimal
	FeeAmountMinor int64
	Currency       string
	PublicKey      string
	CallbackURL    string
	VerifyTimeout  time.Duration
}

// PaymentService runs the fee payment half of the access-control state machine.
type PaymentService struct {
	repo     paymentRepository
	accounts paymentAccountLookup
	gateway  PaymentGateway
	audit    auditRecorder
	cache    *CacheService
	metrics  *MetricsService
	logger   *zap.Logger
	config   PaymentConfig
	now      func() time.Time
}

// NewPaymentService constructs a PaymentService.
func NewPaymentService(repo paymentRepository, accounts paymentAccountLookup, gateway PaymentGateway, audit auditRecorder, cache *CacheService, metrics *MetricsService, logger *zap.Logger, config PaymentConfig) *PaymentService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if config.VerifyTimeout <= 0 {
		config.VerifyTimeout = 30 * time.Second
	}
	return &PaymentService{repo: repo, accounts: accounts, gateway: gateway, audit: audit, cache: cache, metrics: metrics, logger: logger, config: config, now: time.Now}
}

// Initiate returns the student's pending payment, creating one with a fresh reference when none exists.
func (s *PaymentService) Initiate(ctx context.Context, accountID string) (*models.PaymentInitiation, error) {
	account, err := s.accounts.FindByID(ctx, accountID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrUnauthorized, "account not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load account")
	}

	payment, reused, err := s.repo.Initiate(ctx, accountID, uuid.NewString(), s.config.FeeAmount, s.config.FeeAmountMinor)
	if err != nil {
		switch {
		case errors.Is(err, repository.ErrAlreadyGranted):
			return nil, appErrors.Clone(appErrors.ErrAlreadyGranted, "")
		case errors.Is(err, sql.ErrNoRows):
			return nil, appErrors.Clone(appErrors.ErrForbidden, "only applicants can pay the application fee")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to initiate payment")
	}

	if !reused {
		s.logger.Info("payment initiated", zap.String("account_id", accountID), zap.String("reference", payment.Reference))
		_ = s.cache.Invalidate(ctx, SummaryCacheKey)
	}

	return &models.PaymentInitiation{
		Reference:   payment.Reference,
		Amount:      payment.Amount,
		AmountMinor: payment.AmountMinor,
		Currency:    s.config.Currency,
		Email:       account.Email,
		PublicKey:   s.config.PublicKey,
		CallbackURL: s.config.CallbackURL,
		Reused:      reused,
	}, nil
}

// Verify confirms a payment with the gateway and grants access on success.
// Gateway outages leave the payment pending; an explicit rejection marks it failed.
func (s *PaymentService) Verify(ctx context.Context, reference, accountID string) (*models.PaymentVerification, error) {
	reference = strings.TrimSpace(reference)
	if reference == "" {
		return nil, appErrors.Clone(appErrors.ErrValidation, "payment reference is required")
	}

	payment, err := s.repo.FindByReference(ctx, reference)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "payment not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load payment")
	}
	if payment.AccountID != accountID {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "payment does not belong to this account")
	}

	result := &models.PaymentVerification{Reference: payment.Reference}
	if payment.Status == models.PaymentSuccess {
		s.metrics.RecordPaymentVerification(OutcomeAlreadyOK)
		result.Status, result.CanApply, result.AlreadyOK = models.PaymentSuccess, true, true
		return result, nil
	}

	verifyCtx, cancel := context.WithTimeout(ctx, s.config.VerifyTimeout)
	defer cancel()
	start := time.Now()
	verification, err := s.gateway.Verify(verifyCtx, payment.Reference)
	s.metrics.ObserveGatewayCall(time.Since(start))
	if err != nil {
		s.metrics.RecordPaymentVerification(OutcomeUnavailable)
		s.logger.Warn("payment gateway unavailable", zap.String("reference", payment.Reference), zap.Error(err))
		return nil, appErrors.Wrap(err, appErrors.ErrGatewayUnavailable.Code, appErrors.ErrGatewayUnavailable.Status, appErrors.ErrGatewayUnavailable.Message)
	}

	if !verification.Succeeded(payment.Reference, s.config.FeeAmountMinor) {
		reason := verification.Reason(payment.Reference, s.config.FeeAmountMinor)
		if _, err := s.repo.MarkFailed(ctx, payment.ID, s.now().UTC()); err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to record payment failure")
		}
		s.metrics.RecordPaymentVerification(OutcomeRejected)
		s.logger.Info("payment rejected by gateway", zap.String("reference", payment.Reference), zap.String("reason", reason))
		_ = s.cache.Invalidate(ctx, SummaryCacheKey)
		return nil, appErrors.Clone(appErrors.ErrPaymentRejected, "payment was not confirmed: "+reason)
	}

	gatewayRef := verification.Reference
	granted, err := s.repo.MarkSuccess(ctx, payment.ID, &gatewayRef, s.now().UTC())
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to record payment")
	}

	result.Status, result.CanApply, result.AlreadyOK = models.PaymentSuccess, true, !granted
	if !granted {
		s.metrics.RecordPaymentVerification(OutcomeAlreadyOK)
		return result, nil
	}
	s.metrics.RecordPaymentVerification(OutcomeGranted)
	s.logger.Info("payment verified, access granted", zap.String("account_id", accountID), zap.String("reference", payment.Reference), zap.String("transaction_id", verification.TransactionID))
	_ = s.cache.Invalidate(ctx, SummaryCacheKey)
	return result, nil
}

// List returns payments for the staff listing.
func (s *PaymentService) List(ctx context.Context, filter models.PaymentFilter) ([]models.PaymentWithOwner, *models.Pagination, error) {
	if filter.Status != nil && !filter.Status.Valid() {
		return nil, nil, appErrors.Clone(appErrors.ErrValidation, "unknown payment status")
	}
	filter.Page, filter.PageSize = models.Normalize(filter.Page, filter.PageSize)
	payments, total, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list payments")
	}
	return payments, &models.Pagination{Page: filter.Page, PageSize: filter.PageSize, TotalCount: total}, nil
}

// MarkSucceeded lets staff confirm a payment manually. It shares the grant transaction with Verify.
func (s *PaymentService) MarkSucceeded(ctx context.Context, paymentID string, actor Actor) (*models.PaymentWithOwner, error) {
	payment, err := s.findForStaff(ctx, paymentID)
	if err != nil {
		return nil, err
	}
	granted, err := s.repo.MarkSuccess(ctx, payment.ID, nil, s.now().UTC())
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to mark payment successful")
	}
	if granted {
		recordAudit(ctx, s.audit, s.logger, actor, models.AuditActionPaymentSucceed, "payment", payment.ID,
			map[string]string{"status": string(payment.Status)}, map[string]string{"status": string(models.PaymentSuccess)})
		s.logger.Info("payment marked successful by staff", zap.String("payment_id", payment.ID), zap.String("actor", actor.AccountID))
		_ = s.cache.Invalidate(ctx, SummaryCacheKey)
	}
	payment.Status = models.PaymentSuccess
	return payment, nil
}

// MarkFailed lets staff fail a payment. Successful payments cannot be reverted.
func (s *PaymentService) MarkFailed(ctx context.Context, paymentID string, actor Actor) (*models.PaymentWithOwner, error) {
	payment, err := s.findForStaff(ctx, paymentID)
	if err != nil {
		return nil, err
	}
	if payment.Status == models.PaymentSuccess {
		return nil, appErrors.Clone(appErrors.ErrConflict, "successful payments cannot be marked failed")
	}
	changed, err := s.repo.MarkFailed(ctx, payment.ID, s.now().UTC())
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to mark payment failed")
	}
	if changed {
		recordAudit(ctx, s.audit, s.logger, actor, models.AuditActionPaymentFail, "payment", payment.ID,
			map[string]string{"status": string(payment.Status)}, map[string]string{"status": string(models.PaymentFailed)})
		_ = s.cache.Invalidate(ctx, SummaryCacheKey)
		payment.Status = models.PaymentFailed
	}
	return payment, nil
}

func (s *PaymentService) findForStaff(ctx context.Context, paymentID string) (*models.PaymentWithOwner, error) {
	payment, err := s.repo.FindByID(ctx, paymentID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "payment not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load payment")
	}
	return payment, nil
}
