package service

import (
	"bytes"
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"github.com/noah-isme/admission-api/internal/models"
	"github.com/noah-isme/admission-api/pkg/export"
)

type rosterStub struct {
	items  []models.ApplicationListItem
	filter models.ApplicationFilter
}

func (r *rosterStub) ListAll(ctx context.Context, filter models.ApplicationFilter) ([]models.ApplicationListItem, error) {
	r.filter = filter
	return r.items, nil
}

type formCapture struct {
	doc export.FormDocument
}

func (f *formCapture) RenderForm(doc export.FormDocument) ([]byte, error) {
	f.doc = doc
	return []byte("%PDF-stub"), nil
}

func exportDetail() *models.ApplicationDetail {
	dob := time.Date(2004, 5, 17, 0, 0, 0, 0, time.UTC)
	photo := "applications/app-1/passport/photo.png"
	return &models.ApplicationDetail{Application: models.Application{
		ID:                "app-1",
		ApplicationNumber: "CHSTH/2025/0007",
		PassportPhoto:     &photo,
		FirstName:         "Amina",
		Surname:           "Bello",
		DateOfBirth:       &dob,
		FirstChoice:       "diploma_xray",
		SecondChoice:      "diploma_nutrition",
	}}
}

func TestApplicationPDFDocument(t *testing.T) {
	files := newMemStorage()
	require.NoError(t, files.Save(context.Background(), "applications/app-1/passport/photo.png", bytes.NewReader(pngBytes), "image/png"))
	capture := &formCapture{}
	svc := NewExportService(&rosterStub{}, files, ExportConfig{InstitutionName: "College of Health Sciences and Technology Hadejia"}, nil, capture, nil)

	result, err := svc.ApplicationPDF(context.Background(), exportDetail())
	require.NoError(t, err)
	assert.Equal(t, "CHSTH_Application_CHSTH-2025-0007.pdf", result.Filename)
	assert.Equal(t, "application/pdf", result.ContentType)

	doc := capture.doc
	assert.Equal(t, "COLLEGE OF HEALTH SCIENCES AND TECHNOLOGY HADEJIA", doc.Title)
	assert.Equal(t, "ADMISSION APPLICATION FORM", doc.Subtitle)
	assert.Contains(t, doc.Reference, "CHSTH/2025/0007")
	assert.Equal(t, "This is a computer-generated document.", doc.Footer)
	require.NotNil(t, doc.Photo)
	assert.Equal(t, "PNG", doc.Photo.ImageType)

	require.Len(t, doc.Sections, 3, "declaration is omitted when empty")
	assert.Equal(t, export.FormRow{Label: "Other Name:", Value: "N/A"}, doc.Sections[0].Rows[2])
	assert.Equal(t, "2004-05-17", doc.Sections[0].Rows[3].Value)
	assert.Equal(t, "Diploma in X-Ray Technology", doc.Sections[2].Rows[0].Value)
}

func TestApplicationPDFRendersWithDeclaration(t *testing.T) {
	detail := exportDetail()
	detail.PassportPhoto = nil
	detail.DeclarationText = "I declare that the information given is correct."
	svc := NewExportService(&rosterStub{}, newMemStorage(), ExportConfig{}, nil, nil, nil)

	result, err := svc.ApplicationPDF(context.Background(), detail)
	require.NoError(t, err)
	assert.True(t, bytes.HasPrefix(result.Data, []byte("%PDF")))
}

func TestRosterSpreadsheet(t *testing.T) {
	submitted := time.Date(2025, 3, 2, 9, 30, 0, 0, time.UTC)
	roster := &rosterStub{items: []models.ApplicationListItem{
		{ApplicationNumber: "CHSTH/2025/0001", FirstName: "Amina", Surname: "Bello", Email: "amina@example.com", Phone: "+2348012345678", FirstChoice: "diploma_xray", SecondChoice: "diploma_nutrition", Status: models.ReviewApproved, IsSubmitted: true, SubmittedAt: &submitted},
		{ApplicationNumber: "CHSTH/2025/0002", FirstName: "Musa", Surname: "Ibrahim", Status: models.ReviewPending},
	}}
	svc := NewExportService(roster, nil, ExportConfig{}, nil, nil, nil)

	status := models.ReviewApproved
	result, err := svc.Roster(context.Background(), models.ApplicationFilter{Status: &status})
	require.NoError(t, err)
	assert.Equal(t, &status, roster.filter.Status)
	assert.Contains(t, result.Filename, ".xlsx")

	book, err := excelize.OpenReader(bytes.NewReader(result.Data))
	require.NoError(t, err)
	defer book.Close()
	rows, err := book.GetRows("Applications")
	require.NoError(t, err)
	require.Len(t, rows, 3)
	assert.Equal(t, []string{"Application Number", "Student Name", "Email", "Phone", "First Choice", "Second Choice", "Status", "Submitted At"}, rows[0])
	assert.Equal(t, "Bello Amina", rows[1][1])
	assert.Equal(t, "Diploma in X-Ray Technology", rows[1][4])
	assert.Equal(t, "2025-03-02 09:30", rows[1][7])
	assert.Equal(t, "pending", rows[2][6])
}
