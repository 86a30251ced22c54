package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/admission-api/internal/middleware"
	"github.com/noah-isme/admission-api/internal/models"
	appErrors "github.com/noah-isme/admission-api/pkg/errors"
	"github.com/noah-isme/admission-api/pkg/response"
)

type dashboardService interface {
	Overview(ctx context.Context, accountID string) (*models.StudentOverview, error)
}

type summaryService interface {
	Summary(ctx context.Context) (*models.AdmissionSummary, bool, error)
}

// DashboardHandler wires dashboard services to HTTP endpoints.
type DashboardHandler struct {
	service dashboardService
	summary summaryService
}

// NewDashboardHandler constructs the handler.
func NewDashboardHandler(service dashboardService, summary summaryService) *DashboardHandler {
	return &DashboardHandler{service: service, summary: summary}
}

// Me godoc
// @Summary Applicant dashboard
// @Tags Dashboard
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /me [get]
func (h *DashboardHandler) Me(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	overview, err := h.service.Overview(c.Request.Context(), claims.AccountID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, overview, nil)
}

// Summary godoc
// @Summary Admission summary
// @Tags Admin
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /admin/summary [get]
func (h *DashboardHandler) Summary(c *gin.Context) {
	if h.summary == nil {
		response.Error(c, appErrors.ErrInternal)
		return
	}
	start := time.Now()
	summary, cacheHit, err := h.summary.Summary(c.Request.Context())
	if err != nil {
		response.Error(c, err)
		return
	}
	middleware.SetCacheHit(c, cacheHit)
	meta := middleware.ExtractMeta(c)
	if meta == nil {
		meta = map[string]interface{}{}
	}
	meta["processing_time_ms"] = time.Since(start).Milliseconds()
	response.JSON(c, http.StatusOK, summary, nil, meta)
}
