package handler

import (
	"context"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/admission-api/internal/models"
	"github.com/noah-isme/admission-api/internal/service"
	appErrors "github.com/noah-isme/admission-api/pkg/errors"
	"github.com/noah-isme/admission-api/pkg/response"
)

type paymentService interface {
	Initiate(ctx context.Context, accountID string) (*models.PaymentInitiation, error)
	Verify(ctx context.Context, reference, accountID string) (*models.PaymentVerification, error)
	List(ctx context.Context, filter models.PaymentFilter) ([]models.PaymentWithOwner, *models.Pagination, error)
	MarkSucceeded(ctx context.Context, paymentID string, actor service.Actor) (*models.PaymentWithOwner, error)
	MarkFailed(ctx context.Context, paymentID string, actor service.Actor) (*models.PaymentWithOwner, error)
}

// PaymentHandler exposes fee payment endpoints.
type PaymentHandler struct {
	service paymentService
}

// NewPaymentHandler constructs the handler.
func NewPaymentHandler(svc paymentService) *PaymentHandler {
	return &PaymentHandler{service: svc}
}

// Initiate godoc
// @Summary Start a fee payment
// @Description Returns the pending payment for the student, creating one when needed
// @Tags Access
// @Produce json
// @Success 200 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /payments/initiate [post]
func (h *PaymentHandler) Initiate(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	res, err := h.service.Initiate(c.Request.Context(), claims.AccountID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, res, nil)
}

// Verify godoc
// @Summary Verify a fee payment
// @Description Confirms the payment with the gateway. The checkout redirect lands on the frontend, which relays reference (or trxref) here with the student's token.
// @Tags Access
// @Produce json
// @Param reference query string true "Payment reference"
// @Success 200 {object} response.Envelope
// @Failure 402 {object} response.Envelope
// @Failure 503 {object} response.Envelope
// @Router /payments/verify [get]
func (h *PaymentHandler) Verify(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	reference := strings.TrimSpace(c.Query("reference"))
	if reference == "" {
		// Paystack appends trxref alongside reference on redirects.
		reference = strings.TrimSpace(c.Query("trxref"))
	}
	if reference == "" {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "reference is required"))
		return
	}

	res, err := h.service.Verify(c.Request.Context(), reference, claims.AccountID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, res, nil)
}

// List godoc
// @Summary List payments
// @Tags Admin
// @Produce json
// @Param status query string false "Payment status"
// @Param search query string false "Reference, username or email"
// @Param page query int false "Page number"
// @Param page_size query int false "Page size"
// @Success 200 {object} response.Envelope
// @Router /admin/payments [get]
func (h *PaymentHandler) List(c *gin.Context) {
	var filter models.PaymentFilter
	filter.Page, filter.PageSize = paging(c)
	if status := c.Query("status"); status != "" {
		s := models.PaymentStatus(status)
		filter.Status = &s
	}
	filter.Search = c.Query("search")

	payments, pagination, err := h.service.List(c.Request.Context(), filter)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, payments, pagination)
}

// MarkSucceeded godoc
// @Summary Mark a payment successful
// @Description Grants application access. Repeating the call changes nothing.
// @Tags Admin
// @Produce json
// @Param id path string true "Payment ID"
// @Success 200 {object} response.Envelope
// @Router /admin/payments/{id}/succeed [post]
func (h *PaymentHandler) MarkSucceeded(c *gin.Context) {
	payment, err := h.service.MarkSucceeded(c.Request.Context(), c.Param("id"), actorFromContext(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, payment, nil)
}

// MarkFailed godoc
// @Summary Mark a payment failed
// @Tags Admin
// @Produce json
// @Param id path string true "Payment ID"
// @Success 200 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /admin/payments/{id}/fail [post]
func (h *PaymentHandler) MarkFailed(c *gin.Context) {
	payment, err := h.service.MarkFailed(c.Request.Context(), c.Param("id"), actorFromContext(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, payment, nil)
}
