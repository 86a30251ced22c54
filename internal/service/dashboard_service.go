package service

import (
	"context"
	"database/sql"
	"errors"
	"strings"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/noah-isme/admission-api/internal/models"
	appErrors "github.com/noah-isme/admission-api/pkg/errors"
)

type dashboardProfileReader interface {
	ProfileByAccountID(ctx context.Context, accountID string) (*models.StudentProfile, error)
}

type dashboardApplicationReader interface {
	FindByStudentID(ctx context.Context, studentID string) (*models.Application, error)
}

// DashboardServiceConfig carries the fee details shown before payment.
type DashboardServiceConfig struct {
	FeeAmount decimal.Decimal
	Currency  string
	PublicKey string
}

// DashboardService composes the applicant landing payload.
type DashboardService struct {
	profiles     dashboardProfileReader
	applications dashboardApplicationReader
	logger       *zap.Logger
	cfg          DashboardServiceConfig
}

// DashboardServiceParams groups constructor dependencies.
type DashboardServiceParams struct {
	Profiles     dashboardProfileReader
	Applications dashboardApplicationReader
	Logger       *zap.Logger
	Config       DashboardServiceConfig
}

// NewDashboardService constructs a DashboardService with sane defaults.
func NewDashboardService(params DashboardServiceParams) *DashboardService {
	cfg := params.Config
	if cfg.Currency == "" {
		cfg.Currency = "NGN"
	}
	logger := params.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &DashboardService{
		profiles:     params.Profiles,
		applications: params.Applications,
		logger:       logger,
		cfg:          cfg,
	}
}

// Overview returns the student's access state and, when one exists, the application summary.
// It never creates an application.
func (s *DashboardService) Overview(ctx context.Context, accountID string) (*models.StudentOverview, error) {
	profile, err := s.profiles.ProfileByAccountID(ctx, accountID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrForbidden, "only applicants have a dashboard")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load student profile")
	}

	overview := &models.StudentOverview{
		Account:     models.NewAccountInfo(profile.Account()),
		Phone:       profile.Phone,
		HasPaid:     profile.HasPaid,
		CanApply:    profile.CanApply,
		ViaReferral: profile.ReferralCodeID != nil,
		Fee:         s.cfg.FeeAmount,
		Currency:    s.cfg.Currency,
		PublicKey:   s.cfg.PublicKey,
	}

	if !profile.CanApply {
		return overview, nil
	}
	app, err := s.applications.FindByStudentID(ctx, profile.ID)
	switch {
	case err == nil:
		overview.Application = &models.ApplicationOverview{
			ID:                app.ID,
			ApplicationNumber: app.ApplicationNumber,
			Status:            app.Status,
			IsSubmitted:       app.IsSubmitted,
			HasPassport:       app.HasPassport(),
			HasDeclaration:    strings.TrimSpace(app.DeclarationText) != "",
		}
	case errors.Is(err, sql.ErrNoRows):
	default:
		s.logger.Warn("dashboard application lookup failed", zap.String("account_id", accountID), zap.Error(err))
	}
	return overview, nil
}
