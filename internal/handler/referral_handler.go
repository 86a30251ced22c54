package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/admission-api/internal/models"
	"github.com/noah-isme/admission-api/internal/service"
	appErrors "github.com/noah-isme/admission-api/pkg/errors"
	"github.com/noah-isme/admission-api/pkg/response"
)

type referralService interface {
	Redeem(ctx context.Context, accountID, code string) (*models.ReferralCode, error)
	Generate(ctx context.Context, count int, actor service.Actor) ([]string, error)
	List(ctx context.Context, filter models.ReferralCodeFilter) ([]models.ReferralCode, *models.Pagination, error)
}

// ReferralHandler exposes referral redemption and code administration.
type ReferralHandler struct {
	service referralService
}

// NewReferralHandler constructs the handler.
func NewReferralHandler(svc referralService) *ReferralHandler {
	return &ReferralHandler{service: svc}
}

// Redeem godoc
// @Summary Redeem a referral code
// @Tags Access
// @Accept json
// @Produce json
// @Param payload body models.RedeemReferralRequest true "Referral code"
// @Success 200 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /referrals/redeem [post]
func (h *ReferralHandler) Redeem(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	var req models.RedeemReferralRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid referral payload"))
		return
	}

	code, err := h.service.Redeem(c.Request.Context(), claims.AccountID, req.Code)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, gin.H{"code": code.Code, "can_apply": true}, nil)
}

// List godoc
// @Summary List referral codes
// @Tags Admin
// @Produce json
// @Param used query bool false "Used filter"
// @Param page query int false "Page number"
// @Param page_size query int false "Page size"
// @Success 200 {object} response.Envelope
// @Router /admin/referral-codes [get]
func (h *ReferralHandler) List(c *gin.Context) {
	filter := models.ReferralCodeFilter{Used: optionalBool(c, "used")}
	filter.Page, filter.PageSize = paging(c)

	codes, pagination, err := h.service.List(c.Request.Context(), filter)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, codes, pagination)
}

// Generate godoc
// @Summary Generate referral codes
// @Tags Admin
// @Accept json
// @Produce json
// @Param payload body models.GenerateReferralCodesRequest true "Count"
// @Success 201 {object} response.Envelope
// @Router /admin/referral-codes [post]
func (h *ReferralHandler) Generate(c *gin.Context) {
	var req models.GenerateReferralCodesRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid generate payload"))
		return
	}

	codes, err := h.service.Generate(c.Request.Context(), req.Count, actorFromContext(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, gin.H{"codes": codes, "count": len(codes)})
}
