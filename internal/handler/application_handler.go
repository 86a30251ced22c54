package handler

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/admission-api/internal/models"
	"github.com/noah-isme/admission-api/internal/service"
	appErrors "github.com/noah-isme/admission-api/pkg/errors"
	"github.com/noah-isme/admission-api/pkg/response"
)

type applicationService interface {
	GetOrCreate(ctx context.Context, accountID string) (*models.ApplicationDetail, error)
	SaveSection(ctx context.Context, accountID, section string, payload json.RawMessage) (*models.ApplicationDetail, error)
	SavePassport(ctx context.Context, accountID string, upload service.Upload) (*models.ApplicationDetail, error)
	SaveDocuments(ctx context.Context, accountID string, uploads map[models.DocumentType]service.Upload) (*models.ApplicationDetail, error)
	Submit(ctx context.Context, accountID string) (*models.ApplicationDetail, error)
	OwnDetail(ctx context.Context, accountID string) (*models.ApplicationDetail, error)
	DownloadLink(ctx context.Context, accountID, kind string) (*models.DownloadLink, error)
	OpenSigned(ctx context.Context, token string) (*service.Download, error)
}

type applicationPDFRenderer interface {
	ApplicationPDF(ctx context.Context, detail *models.ApplicationDetail) (*service.ExportResult, error)
}

// ApplicationHandler serves the applicant's own form.
type ApplicationHandler struct {
	service applicationService
	export  applicationPDFRenderer
}

// NewApplicationHandler constructs the handler.
func NewApplicationHandler(svc applicationService, export applicationPDFRenderer) *ApplicationHandler {
	return &ApplicationHandler{service: svc, export: export}
}

// Courses godoc
// @Summary List courses
// @Tags Catalogue
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /courses [get]
func (h *ApplicationHandler) Courses(c *gin.Context) {
	response.JSON(c, http.StatusOK, models.Courses, nil)
}

// Get godoc
// @Summary Get or create my application
// @Description Returns the application, creating it with pre-filled details on first access
// @Tags Application
// @Produce json
// @Success 200 {object} response.Envelope
// @Failure 403 {object} response.Envelope
// @Router /application [get]
func (h *ApplicationHandler) Get(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	detail, err := h.service.GetOrCreate(c.Request.Context(), claims.AccountID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, detail, nil)
}

// SaveSection godoc
// @Summary Save one section
// @Description JSON body for every section except documents, which takes multipart files keyed by document type
// @Tags Application
// @Accept json,mpfd
// @Produce json
// @Param section path string true "personal, guardian, schools, exams, courses, declaration or documents"
// @Success 200 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Router /application/sections/{section} [put]
func (h *ApplicationHandler) SaveSection(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	section := c.Param("section")

	if section == models.SectionDocuments {
		h.saveDocuments(c, claims.AccountID)
		return
	}

	payload, err := io.ReadAll(io.LimitReader(c.Request.Body, 1<<20))
	if err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "failed to read payload"))
		return
	}
	detail, err := h.service.SaveSection(c.Request.Context(), claims.AccountID, section, payload)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, detail, nil)
}

func (h *ApplicationHandler) saveDocuments(c *gin.Context, accountID string) {
	form, err := c.MultipartForm()
	if err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "documents must be sent as multipart form data"))
		return
	}

	uploads := make(map[models.DocumentType]service.Upload, len(form.File))
	var opened []multipart.File
	defer func() {
		for _, f := range opened {
			_ = f.Close()
		}
	}()
	for field, headers := range form.File {
		if len(headers) == 0 {
			continue
		}
		if len(headers) > 1 {
			response.Error(c, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("only one file allowed for %s", field)))
			return
		}
		file, err := headers[0].Open()
		if err != nil {
			response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "failed to read "+field))
			return
		}
		opened = append(opened, file)
		uploads[models.DocumentType(field)] = service.Upload{Filename: headers[0].Filename, Size: headers[0].Size, Body: file}
	}

	detail, err := h.service.SaveDocuments(c.Request.Context(), accountID, uploads)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, detail, nil)
}

// SavePassport godoc
// @Summary Upload passport photo
// @Tags Application
// @Accept mpfd
// @Produce json
// @Param passport_photo formData file true "JPEG or PNG photo"
// @Success 200 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Router /application/passport [put]
func (h *ApplicationHandler) SavePassport(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	header, err := c.FormFile("passport_photo")
	if err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "passport_photo file is required"))
		return
	}
	file, err := header.Open()
	if err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "failed to read passport photo"))
		return
	}
	defer file.Close()

	detail, err := h.service.SavePassport(c.Request.Context(), claims.AccountID, service.Upload{Filename: header.Filename, Size: header.Size, Body: file})
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, detail, nil)
}

// Submit godoc
// @Summary Submit my application
// @Tags Application
// @Produce json
// @Success 200 {object} response.Envelope
// @Failure 422 {object} response.Envelope
// @Router /application/submit [post]
func (h *ApplicationHandler) Submit(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	detail, err := h.service.Submit(c.Request.Context(), claims.AccountID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, detail, nil)
}

// PDF godoc
// @Summary Download my application form
// @Tags Application
// @Produce application/pdf
// @Success 200 {file} file
// @Failure 404 {object} response.Envelope
// @Router /application/pdf [get]
func (h *ApplicationHandler) PDF(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	detail, err := h.service.OwnDetail(c.Request.Context(), claims.AccountID)
	if err != nil {
		response.Error(c, err)
		return
	}
	result, err := h.export.ApplicationPDF(c.Request.Context(), detail)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Attachment(c, result.Filename, result.ContentType, result.Data)
}

// DocumentLink godoc
// @Summary Sign a download link for my passport photo or a document
// @Tags Application
// @Produce json
// @Param type path string true "passport or a document type"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /application/documents/{type}/link [get]
func (h *ApplicationHandler) DocumentLink(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	link, err := h.service.DownloadLink(c.Request.Context(), claims.AccountID, c.Param("type"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, link, nil)
}

// File godoc
// @Summary Download a stored file
// @Description The signed token is the only credential
// @Tags Files
// @Produce octet-stream
// @Param token path string true "Signed token"
// @Success 200 {file} file
// @Failure 403 {object} response.Envelope
// @Router /files/{token} [get]
func (h *ApplicationHandler) File(c *gin.Context) {
	download, err := h.service.OpenSigned(c.Request.Context(), strings.TrimSpace(c.Param("token")))
	if err != nil {
		response.Error(c, err)
		return
	}
	defer download.Body.Close()

	c.Header("Cache-Control", "private, no-store")
	c.Header("Content-Disposition", fmt.Sprintf("inline; filename=%q", download.Filename))
	c.Header("X-Content-Type-Options", "nosniff")
	c.DataFromReader(http.StatusOK, -1, download.ContentType, download.Body, nil)
}
