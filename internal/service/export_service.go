package service

import (
	"context"
	"fmt"
	"io"
	"path"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/noah-isme/admission-api/internal/models"
	appErrors "github.com/noah-isme/admission-api/pkg/errors"
	"github.com/noah-isme/admission-api/pkg/export"
	"github.com/noah-isme/admission-api/pkg/storage"
)

type rosterSource interface {
	ListAll(ctx context.Context, filter models.ApplicationFilter) ([]models.ApplicationListItem, error)
}

type formRenderer interface {
	RenderForm(doc export.FormDocument) ([]byte, error)
}

type sheetRenderer interface {
	Render(data export.Dataset, sheet string) ([]byte, error)
}

// ExportConfig tunes export behaviour.
type ExportConfig struct {
	InstitutionName string
	NumberPrefix    string
}

// ExportResult is a rendered file ready to be sent as an attachment.
type ExportResult struct {
	Filename    string
	ContentType string
	Data        []byte
}

// ExportService renders application forms and staff rosters.
type ExportService struct {
	roster rosterSource
	files  storage.FileStorage
	pdf    formRenderer
	xlsx   sheetRenderer
	logger *zap.Logger
	cfg    ExportConfig
	now    func() time.Time
}

// NewExportService constructs an ExportService.
func NewExportService(roster rosterSource, files storage.FileStorage, cfg ExportConfig, logger *zap.Logger, pdf formRenderer, xlsx sheetRenderer) *ExportService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.InstitutionName == "" {
		cfg.InstitutionName = "COLLEGE OF HEALTH SCIENCES AND TECHNOLOGY HADEJIA"
	}
	if cfg.NumberPrefix == "" {
		cfg.NumberPrefix = "CHSTH"
	}
	if pdf == nil {
		pdf = export.NewPDFExporter()
	}
	if xlsx == nil {
		xlsx = export.NewXLSXExporter()
	}
	return &ExportService{roster: roster, files: files, pdf: pdf, xlsx: xlsx, logger: logger, cfg: cfg, now: time.Now}
}

// ApplicationPDF renders the printable application form.
func (s *ExportService) ApplicationPDF(ctx context.Context, detail *models.ApplicationDetail) (*ExportResult, error) {
	if detail == nil {
		return nil, appErrors.Clone(appErrors.ErrNotFound, "application not found")
	}
	doc := export.FormDocument{
		Title:     strings.ToUpper(s.cfg.InstitutionName),
		Subtitle:  "ADMISSION APPLICATION FORM",
		Reference: "Application Number: " + detail.ApplicationNumber,
		Photo:     s.passportPhoto(ctx, detail.Application),
		Sections: []export.FormSection{
			{Heading: "SECTION A: PERSONAL INFORMATION", Rows: []export.FormRow{
				{Label: "First Name:", Value: detail.FirstName},
				{Label: "Surname:", Value: detail.Surname},
				{Label: "Other Name:", Value: orNA(detail.OtherName)},
				{Label: "Date of Birth:", Value: formatDate(detail.DateOfBirth)},
				{Label: "Phone:", Value: detail.Phone},
				{Label: "Email:", Value: detail.Email},
				{Label: "Address:", Value: detail.Address},
				{Label: "LGA:", Value: detail.LGA},
				{Label: "State of Origin:", Value: detail.StateOfOrigin},
			}},
			{Heading: "GUARDIAN/NEXT OF KIN INFORMATION", Rows: []export.FormRow{
				{Label: "Full Name:", Value: detail.GuardianName},
				{Label: "Phone:", Value: detail.GuardianPhone},
				{Label: "Address:", Value: detail.GuardianAddress},
				{Label: "Relationship:", Value: detail.GuardianRelationship},
			}},
			{Heading: "SECTION D: COURSE SELECTION", Rows: []export.FormRow{
				{Label: "First Choice:", Value: models.CourseName(detail.FirstChoice)},
				{Label: "Second Choice:", Value: models.CourseName(detail.SecondChoice)},
			}},
		},
		Footer: "This is a computer-generated document.",
	}
	if text := strings.TrimSpace(detail.DeclarationText); text != "" {
		doc.Sections = append(doc.Sections, export.FormSection{Heading: "SECTION E: DECLARATION", Text: text})
	}

	data, err := s.pdf.RenderForm(doc)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to render application form")
	}
	filename := fmt.Sprintf("%s_Application_%s.pdf", s.cfg.NumberPrefix, sanitizeFilename(detail.ApplicationNumber))
	return &ExportResult{Filename: filename, ContentType: "application/pdf", Data: data}, nil
}

// Roster renders every application matching filter as a spreadsheet.
func (s *ExportService) Roster(ctx context.Context, filter models.ApplicationFilter) (*ExportResult, error) {
	if filter.Status != nil && !filter.Status.Valid() {
		return nil, appErrors.Clone(appErrors.ErrValidation, "unknown review status")
	}
	items, err := s.roster.ListAll(ctx, filter)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load applications")
	}

	dataset := export.Dataset{Headers: []string{"Application Number", "Student Name", "Email", "Phone", "First Choice", "Second Choice", "Status", "Submitted At"}}
	for _, item := range items {
		name := models.Application{FirstName: item.FirstName, Surname: item.Surname, OtherName: item.OtherName}.FullName()
		submitted := ""
		if item.SubmittedAt != nil {
			submitted = item.SubmittedAt.UTC().Format("2006-01-02 15:04")
		}
		dataset.Rows = append(dataset.Rows, map[string]string{
			"Application Number": item.ApplicationNumber,
			"Student Name":       name,
			"Email":              item.Email,
			"Phone":              item.Phone,
			"First Choice":       models.CourseName(item.FirstChoice),
			"Second Choice":      models.CourseName(item.SecondChoice),
			"Status":             string(item.Status),
			"Submitted At":       submitted,
		})
	}

	data, err := s.xlsx.Render(dataset, "Applications")
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to render roster")
	}
	s.logger.Info("roster exported", zap.Int("rows", len(items)))
	return &ExportResult{
		Filename:    fmt.Sprintf("applications_%s.xlsx", s.now().UTC().Format("20060102_150405")),
		ContentType: "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet",
		Data:        data,
	}, nil
}

// passportPhoto loads the photo for embedding. A missing or unreadable photo is left out of the form.
func (s *ExportService) passportPhoto(ctx context.Context, app models.Application) *export.FormPhoto {
	if !app.HasPassport() || s.files == nil {
		return nil
	}
	imageType := ""
	switch strings.ToLower(path.Ext(*app.PassportPhoto)) {
	case ".jpg", ".jpeg":
		imageType = "JPG"
	case ".png":
		imageType = "PNG"
	default:
		return nil
	}
	rc, err := s.files.Open(ctx, *app.PassportPhoto)
	if err != nil {
		s.logger.Warn("passport photo unavailable for pdf", zap.String("application_id", app.ID), zap.Error(err))
		return nil
	}
	defer rc.Close()
	data, err := io.ReadAll(rc)
	if err != nil {
		s.logger.Warn("passport photo unreadable", zap.String("application_id", app.ID), zap.Error(err))
		return nil
	}
	return &export.FormPhoto{Data: data, ImageType: imageType}
}

func orNA(v string) string {
	if strings.TrimSpace(v) == "" {
		return "N/A"
	}
	return v
}

func formatDate(t *time.Time) string {
	if t == nil {
		return "N/A"
	}
	return t.Format("2006-01-02")
}

func sanitizeFilename(raw string) string {
	if raw == "" {
		return "na"
	}
	replacer := strings.NewReplacer(" ", "_", "/", "-", "\\", "-", ":", "-", "..", ".", "__", "_")
	result := replacer.Replace(raw)
	if len(result) > 100 {
		return result[:100]
	}
	return result
}
