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

type reviewService interface {
	List(ctx context.Context, filter models.ApplicationFilter) ([]models.ApplicationListItem, *models.Pagination, error)
	SetStatus(ctx context.Context, applicationID string, req models.SetReviewStatusRequest, actor service.Actor) (models.ReviewStatus, error)
	BulkSetStatus(ctx context.Context, req models.BulkReviewStatusRequest, actor service.Actor) (int, error)
}

type applicationReader interface {
	Detail(ctx context.Context, applicationID string) (*models.ApplicationDetail, error)
	StaffDownloadLink(ctx context.Context, applicationID, kind, staffID string) (*models.DownloadLink, error)
}

type rosterExporter interface {
	Roster(ctx context.Context, filter models.ApplicationFilter) (*service.ExportResult, error)
}

// ReviewHandler exposes the staff review surface.
type ReviewHandler struct {
	review       reviewService
	applications applicationReader
	export       rosterExporter
}

// NewReviewHandler constructs the handler.
func NewReviewHandler(review reviewService, applications applicationReader, export rosterExporter) *ReviewHandler {
	return &ReviewHandler{review: review, applications: applications, export: export}
}

func applicationFilter(c *gin.Context) models.ApplicationFilter {
	var filter models.ApplicationFilter
	filter.Page, filter.PageSize = paging(c)
	if status := c.Query("status"); status != "" {
		s := models.ReviewStatus(status)
		filter.Status = &s
	}
	filter.Submitted = optionalBool(c, "submitted")
	filter.FirstChoice = c.Query("first_choice")
	filter.Search = c.Query("search")
	return filter
}

// List godoc
// @Summary List applications
// @Tags Admin
// @Produce json
// @Param status query string false "Review status"
// @Param submitted query bool false "Submitted filter"
// @Param first_choice query string false "Course code"
// @Param search query string false "Number, name or email"
// @Param page query int false "Page number"
// @Param page_size query int false "Page size"
// @Success 200 {object} response.Envelope
// @Router /admin/applications [get]
func (h *ReviewHandler) List(c *gin.Context) {
	items, pagination, err := h.review.List(c.Request.Context(), applicationFilter(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, items, pagination)
}

// Export godoc
// @Summary Export the application roster
// @Tags Admin
// @Produce application/vnd.openxmlformats-officedocument.spreadsheetml.sheet
// @Param status query string false "Review status"
// @Param submitted query bool false "Submitted filter"
// @Param first_choice query string false "Course code"
// @Success 200 {file} file
// @Router /admin/applications/export [get]
func (h *ReviewHandler) Export(c *gin.Context) {
	result, err := h.export.Roster(c.Request.Context(), applicationFilter(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Attachment(c, result.Filename, result.ContentType, result.Data)
}

// Detail godoc
// @Summary Get application detail
// @Tags Admin
// @Produce json
// @Param id path string true "Application ID"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /admin/applications/{id} [get]
func (h *ReviewHandler) Detail(c *gin.Context) {
	detail, err := h.applications.Detail(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, detail, nil)
}

// DocumentLink godoc
// @Summary Sign a download link for an applicant's file
// @Tags Admin
// @Produce json
// @Param id path string true "Application ID"
// @Param type path string true "passport or a document type"
// @Success 200 {object} response.Envelope
// @Router /admin/applications/{id}/documents/{type}/link [get]
func (h *ReviewHandler) DocumentLink(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	link, err := h.applications.StaffDownloadLink(c.Request.Context(), c.Param("id"), c.Param("type"), claims.AccountID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, link, nil)
}

// SetStatus godoc
// @Summary Set review status
// @Tags Admin
// @Accept json
// @Produce json
// @Param id path string true "Application ID"
// @Param payload body models.SetReviewStatusRequest true "Status"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /admin/applications/{id}/status [put]
func (h *ReviewHandler) SetStatus(c *gin.Context) {
	var req models.SetReviewStatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid status payload"))
		return
	}
	previous, err := h.review.SetStatus(c.Request.Context(), c.Param("id"), req, actorFromContext(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, gin.H{"id": c.Param("id"), "previous_status": previous, "status": req.Status}, nil)
}

// BulkSetStatus godoc
// @Summary Set review status on many applications
// @Tags Admin
// @Accept json
// @Produce json
// @Param payload body models.BulkReviewStatusRequest true "Applications and status"
// @Success 200 {object} response.Envelope
// @Router /admin/applications/status [post]
func (h *ReviewHandler) BulkSetStatus(c *gin.Context) {
	var req models.BulkReviewStatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid bulk status payload"))
		return
	}
	changed, err := h.review.BulkSetStatus(c.Request.Context(), req, actorFromContext(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, gin.H{"updated": changed, "status": req.Status}, nil)
}
